package upsert

import (
	"github.com/agentstation/rostersync/pkg/constants"
	"github.com/agentstation/rostersync/pkg/roster"
)

// Columns names the remote columns entity fields are written to. An empty
// name leaves that field out of the payload.
type Columns struct {
	Key           string `mapstructure:"key_column" yaml:"key_column"`
	Name          string `mapstructure:"name_column" yaml:"name_column"`
	RomanizedName string `mapstructure:"romanized_column" yaml:"romanized_column"`
	Asset         string `mapstructure:"asset_column" yaml:"asset_column"`
}

// DefaultColumns matches the staff table.
func DefaultColumns() Columns {
	return Columns{
		Key:           constants.DefaultKeyColumn,
		Name:          "full_name",
		RomanizedName: "full_name_roman",
		Asset:         constants.DefaultAssetColumn,
	}
}

// PayloadFunc renders an entity into the body of a create or update call.
type PayloadFunc func(e roster.EntityRecord) map[string]any

// ColumnPayload copies the entity's carried attributes and sets the mapped
// columns. The asset column is only present when AssetRef is set, so an
// update never clears a photo linked by an earlier run.
func ColumnPayload(c Columns) PayloadFunc {
	return func(e roster.EntityRecord) map[string]any {
		out := make(map[string]any, len(e.Attributes)+4)
		for k, v := range e.Attributes {
			out[k] = v
		}
		out[c.Key] = e.NaturalKey
		if c.Name != "" && e.DisplayName != "" {
			out[c.Name] = e.DisplayName
		}
		if c.RomanizedName != "" && e.RomanizedName != "" {
			out[c.RomanizedName] = e.RomanizedName
		}
		if c.Asset != "" && e.AssetRef != "" {
			out[c.Asset] = e.AssetRef
		}
		return out
	}
}
