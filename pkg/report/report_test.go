package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/resolver"
	"github.com/agentstation/rostersync/pkg/roster"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "山田", Truncate("山田太郎", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Len(t, []rune(Truncate(strings.Repeat("x", 300), 100)), 100)
}

func TestFail(t *testing.T) {
	o := Fail("2001", fmt.Errorf("%s", strings.Repeat("e", 150)), 100)
	assert.Equal(t, Failed, o.Action)
	assert.Len(t, o.Detail, 100)
}

func TestActionText(t *testing.T) {
	data, err := json.Marshal(Outcome{Key: "1", Action: Updated})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"1","action":"UPDATED"}`, string(data))

	var o Outcome
	require.NoError(t, json.Unmarshal(data, &o))
	assert.Equal(t, Updated, o.Action)
	assert.Error(t, json.Unmarshal([]byte(`{"action":"MOVED"}`), &o))
}

func TestCollectorConcurrentAppend(t *testing.T) {
	c := NewCollector(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(Outcome{Key: fmt.Sprint(i), Action: Created})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
	assert.Equal(t, 50, Tally(c.Outcomes())[Created])
}

func TestTally(t *testing.T) {
	c := Tally([]Outcome{{Action: Created}, {Action: Failed}, {Action: Created}})
	assert.Equal(t, 2, c[Created])
	assert.Equal(t, 0, c[Updated])
	assert.Equal(t, 3, c.Total())
}

func sample() *Report {
	r := New("run-1", false)
	entities := []roster.EntityRecord{
		{NaturalKey: "1042", DisplayName: "山田太郎"},
		{NaturalKey: "3003", DisplayName: "Tanaka Ichiro"},
	}
	matches := []resolver.MatchResult{
		{NaturalKey: "1042", Strategy: resolver.ExactID, MatchedAsset: &assets.AssetFile{RawName: "1042.jpg"}},
		{NaturalKey: "3003", Strategy: resolver.None},
	}
	r.SetMatches(entities, matches)
	r.AddStage(StageRecords, []Outcome{
		{Key: "1042", Action: Updated},
		{Key: "3003", Action: Failed, Detail: "status 500"},
	})
	return r
}

func TestReportSummary(t *testing.T) {
	r := sample()

	assert.Equal(t, 2, r.Entities)
	assert.Equal(t, 1, r.Matching.WithAsset)
	assert.Equal(t, 1, r.Matching.ByStrategy["EXACT_ID"])
	assert.Equal(t, 1, r.Matching.ByStrategy["NONE"])
	assert.Equal(t, 0, r.Matching.ByStrategy["BRIDGE_NAME"])
	require.Len(t, r.Unmatched, 1)
	assert.Equal(t, "3003", r.Unmatched[0].NaturalKey)

	st, ok := r.Stage(StageRecords)
	require.True(t, ok)
	assert.Equal(t, 1, st.Count(Updated))
	assert.Equal(t, 1, st.Count(Failed))
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, []ErrorDetail{{Stage: StageRecords, Key: "3003", Detail: "status 500"}}, r.Errors)

	_, ok = r.Stage(StageUploads)
	assert.False(t, ok)
}

func TestReportBounds(t *testing.T) {
	r := New("run-2", true)
	var entities []roster.EntityRecord
	var matches []resolver.MatchResult
	var failures []Outcome
	for i := 0; i < 80; i++ {
		key := fmt.Sprint(i)
		entities = append(entities, roster.EntityRecord{NaturalKey: key})
		matches = append(matches, resolver.MatchResult{NaturalKey: key, Strategy: resolver.None})
		failures = append(failures, Outcome{Key: key, Action: Failed, Detail: "x"})
	}
	r.SetMatches(entities, matches)
	r.AddStage(StageUploads, failures)

	assert.Len(t, r.Unmatched, 50)
	assert.Equal(t, 80, r.UnmatchedTotal)
	assert.Len(t, r.Errors, 5)
	assert.Equal(t, 80, r.ErrorTotal)
}

func TestRender(t *testing.T) {
	r := sample()
	r.Abort(fmt.Errorf("remote unreachable"))

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "EXACT_ID")
	assert.Contains(t, out, "FILENAME_CONTAINMENT")
	assert.Contains(t, out, "records")
	assert.Contains(t, out, "Tanaka Ichiro")
	assert.Contains(t, out, "[records] 3003: status 500")
	assert.Contains(t, out, "Aborted: remote unreachable")
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Markdown(&buf))
	out := buf.String()

	assert.Contains(t, out, "# Sync run run-1")
	assert.Contains(t, out, "## Matching")
	assert.Contains(t, out, "EXACT_ID")
	assert.Contains(t, out, "## Unmatched (1 of 1)")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	r := sample()
	r.Finish()

	jsonPath := filepath.Join(dir, "import_summary.json")
	require.NoError(t, r.Write(jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Contains(t, decoded, "unmatched")

	mdPath := filepath.Join(dir, "summary.md")
	require.NoError(t, r.Write(mdPath))
	assert.FileExists(t, mdPath)

	yamlPath := filepath.Join(dir, "summary.yaml")
	require.NoError(t, r.Write(yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "runId: run-1")
}
