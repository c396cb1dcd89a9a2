package roster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/rostersync/pkg/errors"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string trimmed", "  1042 ", "1042"},
		{"integral float", 1042.0, "1042"},
		{"fractional float", 1.5, "1.5"},
		{"json integer", json.Number("2001"), "2001"},
		{"json integral float", json.Number("2001.0"), "2001"},
		{"json fraction", json.Number("2001.25"), "2001.25"},
		{"uint64 from yaml", uint64(7), "7"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

func TestFromFields(t *testing.T) {
	m := DefaultEntityFields()
	e, err := FromFields(map[string]any{
		"empId":     1042.0,
		"fullName":  "山田太郎",
		"nameRoman": "YAMADA TARO",
		"avatar":    "old.jpg",
		"dept":      "Sales",
	}, m)
	require.NoError(t, err)

	assert.Equal(t, "1042", e.NaturalKey)
	assert.Equal(t, "山田太郎", e.DisplayName)
	assert.Equal(t, "YAMADA TARO", e.RomanizedName)
	assert.Empty(t, e.AssetRef)
	assert.Equal(t, "old.jpg", e.SourceAssetRef)
	assert.Equal(t, map[string]any{"dept": "Sales"}, e.Attributes)
	assert.False(t, e.HasAsset())
}

func TestFromFieldsEmptyKey(t *testing.T) {
	_, err := FromFields(map[string]any{"empId": "  ", "fullName": "x"}, DefaultEntityFields())
	assert.True(t, errors.IsValidationError(err))
}

func TestToFields(t *testing.T) {
	m := DefaultEntityFields()
	e := EntityRecord{NaturalKey: "2001", DisplayName: "NGUYEN VAN A", Attributes: map[string]any{"dept": "Ops"}}

	fields := e.ToFields(m)
	assert.NotContains(t, fields, "avatar")
	assert.NotContains(t, fields, "nameRoman")

	e.AssetRef = "2001.png"
	fields = e.ToFields(m)
	assert.Equal(t, "2001.png", fields["avatar"])
	assert.Equal(t, "2001", fields["empId"])
	assert.Equal(t, "Ops", fields["dept"])
}

func TestToFieldsKeepsSourceAsset(t *testing.T) {
	m := DefaultEntityFields()
	e, err := FromFields(map[string]any{"empId": 7, "fullName": "A", "avatar": "old-photo.jpg", "dept": "x"}, m)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"empId":    "7",
		"fullName": "A",
		"avatar":   "old-photo.jpg",
		"dept":     "x",
	}, e.ToFields(m))

	e.AssetRef = "7.jpg"
	assert.Equal(t, "7.jpg", e.ToFields(m)["avatar"])
}

func TestFromRecordsRejectsEmptyAndDuplicate(t *testing.T) {
	r := FromRecords([]map[string]any{
		{"empId": "1", "fullName": "first"},
		{"fullName": "no key"},
		{"empId": "1", "fullName": "second"},
		{"empId": "2"},
	}, DefaultEntityFields())

	require.Len(t, r.Entities, 2)
	assert.Equal(t, "first", r.Entities[0].DisplayName)
	assert.Equal(t, "2", r.Entities[1].NaturalKey)

	require.Len(t, r.Rejected, 2)
	assert.Equal(t, 1, r.Rejected[0].Index)
	assert.Equal(t, Rejected{Index: 2, Key: "1", Reason: "duplicate natural key"}, r.Rejected[1])
}

func TestFieldMapWithDefaults(t *testing.T) {
	m := FieldMap{Key: "id"}.WithDefaults(DefaultEntityFields())
	assert.Equal(t, FieldMap{Key: "id", Name: "fullName", RomanizedName: "nameRoman", Asset: "avatar"}, m)
}

func TestLoadEntitiesJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "legacy_staff.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"empId": 1042.0, "fullName": "山田太郎"}]`), 0o644))
	yamlPath := filepath.Join(dir, "legacy_staff.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- empId: 1042\n  fullName: 山田太郎\n"), 0o644))

	for _, path := range []string{jsonPath, yamlPath} {
		r, err := LoadEntities(path, DefaultEntityFields())
		require.NoError(t, err, path)
		require.Len(t, r.Entities, 1)
		assert.Equal(t, "1042", r.Entities[0].NaturalKey)
		assert.Equal(t, "山田太郎", r.Entities[0].DisplayName)
	}
}

func TestLoadBridge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy_resumes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"resumeId": 9, "name": "Sato Hanako", "photo": "resume_9.jpg"}]`), 0o644))

	bridge, err := LoadBridge(path, DefaultBridgeFields())
	require.NoError(t, err)
	assert.Equal(t, []BridgeRecord{{ForeignID: "9", Name: "Sato Hanako", AssetRef: "resume_9.jpg"}}, bridge)

	bridge, err = LoadBridge(filepath.Join(dir, "missing.json"), DefaultBridgeFields())
	require.NoError(t, err)
	assert.Empty(t, bridge)
}

func TestSaveEntitiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy_staff_fixed.json")
	m := DefaultEntityFields()
	in := []EntityRecord{{NaturalKey: "2001", DisplayName: "NGUYEN VAN A", AssetRef: "2001.png"}}

	require.NoError(t, SaveEntities(path, in, m))

	r, err := LoadEntities(path, m)
	require.NoError(t, err)
	require.Len(t, r.Entities, 1)
	assert.Equal(t, "2001", r.Entities[0].NaturalKey)
	assert.Empty(t, r.Entities[0].AssetRef)
	assert.Equal(t, "2001.png", r.Entities[0].SourceAssetRef)
	assert.Empty(t, r.Entities[0].Attributes)
}
