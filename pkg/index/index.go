// Package index builds the lookup structures that match resolution runs
// against: pool files by raw, repaired and numeric stem name, and bridge
// names to the pool files they reference.
package index

import (
	"sort"
	"strings"

	"github.com/agentstation/rostersync/pkg/assets"
	"github.com/agentstation/rostersync/pkg/normalize"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Normalizer is the subset of normalize.Normalizer the index needs.
type Normalizer interface {
	Normalize(s string) string
	Repair(raw string) (string, bool)
}

// Index is built once per run and read-only afterwards.
type Index struct {
	ByRawName              map[string]*assets.AssetFile `json:"byRawName"`
	ByRepairedName         map[string]*assets.AssetFile `json:"byRepairedName"`
	ByNormalizedBridgeName map[string]*assets.AssetFile `json:"byNormalizedBridgeName"`
	ByStem                 map[string]*assets.AssetFile `json:"byStem"`

	// Assets holds the pool in lexicographic raw-name order.
	Assets []*assets.AssetFile `json:"-"`

	byFoldedName map[string]*assets.AssetFile
	Stats        Stats `json:"stats"`
}

// Stats counts index entries.
type Stats struct {
	Assets        int `json:"assets"`
	Repaired      int `json:"repaired"`
	NumericStems  int `json:"numericStems"`
	BridgeRecords int `json:"bridgeRecords"`
	BridgeNames   int `json:"bridgeNames"`
	BridgeMissing int `json:"bridgeMissing"`
}

// Build indexes the pool and bridge in a single pass over each. Within a
// map, later entries overwrite earlier ones. Bridge records whose asset is
// not in the pool are counted but not indexed.
func Build(pool []assets.AssetFile, bridge []roster.BridgeRecord, n Normalizer) *Index {
	if n == nil {
		n = normalize.Default()
	}
	idx := &Index{
		ByRawName:              make(map[string]*assets.AssetFile, len(pool)),
		ByRepairedName:         make(map[string]*assets.AssetFile),
		ByNormalizedBridgeName: make(map[string]*assets.AssetFile),
		ByStem:                 make(map[string]*assets.AssetFile),
		Assets:                 make([]*assets.AssetFile, 0, len(pool)),
		byFoldedName:           make(map[string]*assets.AssetFile, len(pool)),
	}

	for i := range pool {
		cp := pool[i]
		a := &cp
		if a.RepairedName == "" {
			if repaired, ok := n.Repair(a.RawName); ok {
				a.RepairedName = repaired
			}
		}

		idx.Assets = append(idx.Assets, a)
		idx.ByRawName[a.RawName] = a
		idx.byFoldedName[strings.ToLower(a.RawName)] = a
		if a.RepairedName != "" {
			idx.ByRepairedName[a.RepairedName] = a
		}
		if stem := normalize.Stem(a.RawName); normalize.IsNumeric(stem) {
			idx.ByStem[stem] = a
		}
	}

	sort.SliceStable(idx.Assets, func(i, j int) bool { return idx.Assets[i].RawName < idx.Assets[j].RawName })

	for _, b := range bridge {
		if b.AssetRef == "" {
			continue
		}
		a := idx.Lookup(b.AssetRef)
		if a == nil {
			idx.Stats.BridgeMissing++
			continue
		}
		for _, name := range []string{b.Name, b.RomanizedName} {
			if key := n.Normalize(name); key != "" {
				idx.ByNormalizedBridgeName[key] = a
			}
		}
	}

	idx.Stats.Assets = len(idx.Assets)
	idx.Stats.Repaired = len(idx.ByRepairedName)
	idx.Stats.NumericStems = len(idx.ByStem)
	idx.Stats.BridgeRecords = len(bridge)
	idx.Stats.BridgeNames = len(idx.ByNormalizedBridgeName)
	return idx
}

// Lookup resolves a filename to a pool file by raw name, then repaired name,
// then case-insensitive raw name. It returns nil when nothing matches.
func (idx *Index) Lookup(name string) *assets.AssetFile {
	if a, ok := idx.ByRawName[name]; ok {
		return a
	}
	if a, ok := idx.ByRepairedName[name]; ok {
		return a
	}
	return idx.byFoldedName[strings.ToLower(name)]
}
