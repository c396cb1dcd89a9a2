// Package resolver links each entity to at most one pool asset by trying
// fixed-priority strategies against an index.Index. The first strategy that
// succeeds wins and lower-priority ones are never consulted.
package resolver

import (
	"strings"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/index"
	"github.com/agentstation/rostersync/pkg/normalize"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Containment scores.
const (
	ScoreExact    = 100
	ScoreContains = 50
)

// MatchResult is the resolution of one entity. Score is only meaningful for
// FilenameContainment.
type MatchResult struct {
	NaturalKey   string            `json:"naturalKey" yaml:"naturalKey"`
	MatchedAsset *assets.AssetFile `json:"matchedAsset,omitempty" yaml:"matchedAsset,omitempty"`
	Strategy     Strategy          `json:"strategy" yaml:"strategy"`
	Score        int               `json:"score,omitempty" yaml:"score,omitempty"`
}

// Matched reports whether any strategy succeeded.
func (m MatchResult) Matched() bool {
	return m.Strategy != None && m.MatchedAsset != nil
}

type candidate struct {
	asset *assets.AssetFile
	stem  string
}

// Resolver is deterministic: the same index and entities always produce the
// same results, including containment tie-breaks.
type Resolver struct {
	idx        *index.Index
	candidates []candidate
}

// New prepares a resolver. Normalized stems are computed once, in the
// index's lexicographic asset order.
func New(idx *index.Index) *Resolver {
	r := &Resolver{idx: idx, candidates: make([]candidate, 0, len(idx.Assets))}
	for _, a := range idx.Assets {
		stem := normalize.StemKey(a.RawName)
		if a.RepairedName != "" {
			stem = normalize.StemKey(a.RepairedName)
		}
		if stem == "" {
			continue
		}
		r.candidates = append(r.candidates, candidate{asset: a, stem: stem})
	}
	return r
}

// Resolve returns the highest-priority match for one entity, or a None result.
func (r *Resolver) Resolve(e roster.EntityRecord) MatchResult {
	res := MatchResult{NaturalKey: e.NaturalKey, Strategy: None}

	if a, ok := r.idx.ByStem[e.NaturalKey]; ok && e.NaturalKey != "" {
		res.MatchedAsset, res.Strategy = a, ExactID
		return res
	}

	for _, name := range []string{e.DisplayName, e.RomanizedName} {
		key := normalize.Normalize(name)
		if key == "" {
			continue
		}
		if a, ok := r.idx.ByNormalizedBridgeName[key]; ok {
			res.MatchedAsset, res.Strategy = a, BridgeName
			return res
		}
	}

	if a, score := r.bestContainment(normalize.Normalize(e.DisplayName)); a != nil {
		res.MatchedAsset, res.Strategy, res.Score = a, FilenameContainment, score
	}
	return res
}

// bestContainment returns the first asset with the maximum nonzero score.
func (r *Resolver) bestContainment(name string) (*assets.AssetFile, int) {
	if name == "" {
		return nil, 0
	}
	var best *assets.AssetFile
	bestScore := 0
	for _, c := range r.candidates {
		score := 0
		switch {
		case c.stem == name:
			score = ScoreExact
		case strings.Contains(c.stem, name) || strings.Contains(name, c.stem):
			score = ScoreContains
		}
		if score > bestScore {
			best, bestScore = c.asset, score
			if score == ScoreExact {
				break
			}
		}
	}
	return best, bestScore
}

// ResolveAll resolves entities in order.
func (r *Resolver) ResolveAll(entities []roster.EntityRecord) []MatchResult {
	out := make([]MatchResult, 0, len(entities))
	for _, e := range entities {
		out = append(out, r.Resolve(e))
	}
	return out
}

// Counts tallies results per strategy.
func Counts(results []MatchResult) map[Strategy]int {
	counts := make(map[Strategy]int, len(strategyNames))
	for _, s := range Strategies() {
		counts[s] = 0
	}
	for _, m := range results {
		counts[m.Strategy]++
	}
	return counts
}
