package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/errors"
)

func TestNewValidatesBaseURL(t *testing.T) {
	for _, bad := range []string{"", "ftp://example.com", "::nope"} {
		_, err := New(bad, "k", nil, "postgrest")
		assert.Error(t, err, bad)
	}
	c, err := New("https://example.supabase.co/", "k", nil, "postgrest")
	require.NoError(t, err)
	assert.Equal(t, "postgrest", c.Remote())
}

func TestURL(t *testing.T) {
	c, err := New("https://example.supabase.co/", "k", nil, "storage")
	require.NoError(t, err)

	assert.Equal(t, "https://example.supabase.co/rest/v1/staff?limit=10",
		c.URL(url.Values{"limit": {"10"}}, "rest", "v1", "staff"))
	assert.Equal(t, "https://example.supabase.co/storage/v1/object/photos/a%20b.jpg",
		c.URL(nil, "storage", "v1", "object", "photos", "a b.jpg"))
}

func TestDoJSON(t *testing.T) {
	var gotBody, gotType, gotKey, gotPrefer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotKey = r.Header.Get("apikey")
		gotPrefer = r.Header.Get("Prefer")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":7}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", &SupabaseAuth{}, "postgrest")
	require.NoError(t, err)

	resp, err := c.DoJSON(context.Background(), http.MethodPost, nil, map[string]any{"emp_id": "1"},
		http.Header{"Prefer": {"return=representation"}}, "rest", "v1", "staff")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, DecodeResponse(resp, c.Remote(), &rows, http.StatusOK, http.StatusCreated))
	assert.Len(t, rows, 1)
	assert.JSONEq(t, `{"emp_id":"1"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "return=representation", gotPrefer)
}

func TestExpectStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(strings.Repeat("denied ", 50)))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "k", &BearerAuth{}, "storage")
	require.NoError(t, err)

	resp, err := c.DoJSON(context.Background(), http.MethodGet, nil, nil, nil, "bucket")
	require.NoError(t, err)

	err = Expect(resp, c.Remote(), http.StatusOK)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.LessOrEqual(t, len(apiErr.Message), 100)
	assert.Equal(t, "GET /bucket", apiErr.Endpoint)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(base, "k", nil, "postgrest")
	require.NoError(t, err)
	_, err = c.DoJSON(context.Background(), http.MethodGet, nil, nil, nil, "x")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
}
