// Package roster holds the entity and bridge records that reconciliation
// works on, and loads them from the flat JSON or YAML exports produced by
// the extraction step.
package roster

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/agentstation/rostersync/pkg/errors"
)

// EntityRecord is one real-world subject. NaturalKey never changes once
// assigned; AssetRef is only set by the relinker.
//
// SourceAssetRef is whatever the export had in its asset field. It is
// written back to the roster when no canonical link was made, but never
// sent to the remote store.
type EntityRecord struct {
	NaturalKey     string         `json:"naturalKey" yaml:"naturalKey"`
	DisplayName    string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	RomanizedName  string         `json:"romanizedName,omitempty" yaml:"romanizedName,omitempty"`
	AssetRef       string         `json:"assetRef,omitempty" yaml:"assetRef,omitempty"`
	SourceAssetRef string         `json:"sourceAssetRef,omitempty" yaml:"sourceAssetRef,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// HasAsset reports whether the entity is linked to a canonical asset.
func (e EntityRecord) HasAsset() bool {
	return e.AssetRef != ""
}

// BridgeRecord links a foreign identifier and a name to an asset filename.
type BridgeRecord struct {
	ForeignID     string `json:"foreignId" yaml:"foreignId"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	RomanizedName string `json:"romanizedName,omitempty" yaml:"romanizedName,omitempty"`
	AssetRef      string `json:"assetRef,omitempty" yaml:"assetRef,omitempty"`
}

// FieldMap names the source fields each record attribute is read from.
type FieldMap struct {
	Key           string `mapstructure:"key" yaml:"key"`
	Name          string `mapstructure:"name" yaml:"name"`
	RomanizedName string `mapstructure:"romanized_name" yaml:"romanized_name"`
	Asset         string `mapstructure:"asset" yaml:"asset"`
}

// DefaultEntityFields matches the roster export.
func DefaultEntityFields() FieldMap {
	return FieldMap{Key: "empId", Name: "fullName", RomanizedName: "nameRoman", Asset: "avatar"}
}

// DefaultBridgeFields matches the resume export.
func DefaultBridgeFields() FieldMap {
	return FieldMap{Key: "resumeId", Name: "name", RomanizedName: "nameRoman", Asset: "photo"}
}

// WithDefaults fills empty field names from def.
func (m FieldMap) WithDefaults(def FieldMap) FieldMap {
	if m.Key == "" {
		m.Key = def.Key
	}
	if m.Name == "" {
		m.Name = def.Name
	}
	if m.RomanizedName == "" {
		m.RomanizedName = def.RomanizedName
	}
	if m.Asset == "" {
		m.Asset = def.Asset
	}
	return m
}

func (m FieldMap) mapped(field string) bool {
	return field == m.Key || field == m.Name || field == m.RomanizedName || field == m.Asset
}

// FromFields builds an entity from one flat record. Fields not named by the
// map are kept in Attributes. An empty natural key is a validation error.
func FromFields(fields map[string]any, m FieldMap) (EntityRecord, error) {
	key := Stringify(fields[m.Key])
	if key == "" {
		return EntityRecord{}, errors.NewValidationError(m.Key, fields[m.Key], "natural key is empty")
	}

	e := EntityRecord{
		NaturalKey:     key,
		DisplayName:    Stringify(fields[m.Name]),
		RomanizedName:  Stringify(fields[m.RomanizedName]),
		SourceAssetRef: Stringify(fields[m.Asset]),
	}
	for k, v := range fields {
		if m.mapped(k) {
			continue
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]any, len(fields))
		}
		e.Attributes[k] = v
	}
	return e, nil
}

// ToFields is the inverse of FromFields. The asset field holds AssetRef
// when set and the source value otherwise.
func (e EntityRecord) ToFields(m FieldMap) map[string]any {
	out := make(map[string]any, len(e.Attributes)+4)
	for k, v := range e.Attributes {
		out[k] = v
	}
	out[m.Key] = e.NaturalKey
	if e.DisplayName != "" {
		out[m.Name] = e.DisplayName
	}
	if e.RomanizedName != "" {
		out[m.RomanizedName] = e.RomanizedName
	}
	switch {
	case e.AssetRef != "":
		out[m.Asset] = e.AssetRef
	case e.SourceAssetRef != "":
		out[m.Asset] = e.SourceAssetRef
	}
	return out
}

// BridgeFromFields builds a bridge record from one flat record.
func BridgeFromFields(fields map[string]any, m FieldMap) BridgeRecord {
	return BridgeRecord{
		ForeignID:     Stringify(fields[m.Key]),
		Name:          Stringify(fields[m.Name]),
		RomanizedName: Stringify(fields[m.RomanizedName]),
		AssetRef:      Stringify(fields[m.Asset]),
	}
}

// Stringify renders a primitive field value as trimmed text. Integral
// floats lose their decimals, so a workbook's 1042.0 becomes "1042".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		if f, err := val.Float64(); err == nil && isIntegral(f) && strings.ContainsAny(val.String(), ".eE") {
			return strconv.FormatInt(int64(f), 10)
		}
		return val.String()
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func formatFloat(f float64) string {
	if isIntegral(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < 1e15
}
