package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/errors"
	"github.com/agentstation/rostersync/pkg/logging"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// Expect closes resp and returns an APIError unless its status is one of
// ok. The error message is the response body, truncated.
func Expect(resp *http.Response, remote string, ok ...int) error {
	defer closeBody(resp)
	return check(resp, remote, ok)
}

// DecodeResponse checks the status like Expect and decodes the JSON body
// into target.
func DecodeResponse(resp *http.Response, remote string, target any, ok ...int) error {
	defer closeBody(resp)
	if err := check(resp, remote, ok); err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

func check(resp *http.Response, remote string, ok []int) error {
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	if slices.Contains(ok, resp.StatusCode) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	endpoint := ""
	if resp.Request != nil {
		endpoint = resp.Request.Method + " " + resp.Request.URL.Path
	}
	return &errors.APIError{
		Remote:     remote,
		StatusCode: resp.StatusCode,
		Message:    truncate(msg, constants.MaxDetailLength),
		Endpoint:   endpoint,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if err := resp.Body.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close response body")
	}
}
