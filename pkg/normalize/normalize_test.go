package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"full-width letters", "Ｊohn  Doe", "JOHN DOE"},
		{"ideographic space", "山田　太郎", "山田 太郎"},
		{"mixed whitespace runs", " \tnguyen \n van   a ", "NGUYEN VAN A"},
		{"full-width digits", "１０４２", "1042"},
		{"empty", "", ""},
		{"only spaces", "　 \t", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsWidthAndCaseInsensitive(t *testing.T) {
	assert.Equal(t, Normalize("JOHN DOE"), Normalize("Ｊohn  Doe"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Ｊohn  Doe", "山田　太郎", "ｎｇｕｙｅｎ van a", "Émile Zola", "  ", "ﾔﾏﾀﾞ"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestStemKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"nguyen van a.png", "NGUYEN VAN A"},
		{"nguyen_van-a.JPG", "NGUYEN VAN A"},
		{"1042.jpg", "1042"},
		{"dr. smith", "DR SMITH"},
		{"photos/yamada.taro.jpeg", "YAMADA TARO"},
		{".jpg", "JPG"},
		{"___.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StemKey(tt.input))
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "1042", Stem("1042.jpg"))
	assert.Equal(t, "1042", Stem("1042"))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))
	assert.Equal(t, ".hidden", Stem(".hidden"))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("1042"))
	assert.True(t, IsNumeric("007"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("10a"))
	assert.False(t, IsNumeric("１０"))
}

// corrupt reproduces the damage: Shift_JIS bytes read back as ISO-8859-1.
func corrupt(t *testing.T, s string) string {
	t.Helper()
	b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	require.NoError(t, err)
	return string(out)
}

func TestRepairEncoding(t *testing.T) {
	raw := corrupt(t, "山田太郎.jpg")
	require.NotEqual(t, "山田太郎.jpg", raw)

	repaired, ok := RepairEncoding(raw)
	require.True(t, ok)
	assert.Equal(t, "山田太郎.jpg", repaired)
}

func TestRepairEncodingRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain ascii is unchanged", "1042.jpg"},
		{"not latin1 encodable", "山田.jpg"},
		{"invalid shift_jis", "\u0081 .jpg"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired, ok := RepairEncoding(tt.raw)
			assert.False(t, ok)
			assert.Empty(t, repaired)
		})
	}
}

func TestNewRepairer(t *testing.T) {
	r, err := NewRepairer("ISO-8859-1", "Shift_JIS")
	require.NoError(t, err)

	repaired, ok := r.Repair(corrupt(t, "佐藤.png"))
	require.True(t, ok)
	assert.Equal(t, "佐藤.png", repaired)

	_, err = NewRepairer("not-a-charset", "Shift_JIS")
	assert.Error(t, err)
}

func TestNormalizerWithoutRepairer(t *testing.T) {
	n := New(nil)
	_, ok := n.Repair(corrupt(t, "佐藤.png"))
	assert.False(t, ok)
	assert.Equal(t, "NGUYEN VAN A", n.StemKey("nguyen van a.png"))
	assert.Equal(t, "A B", Default().Normalize(" a  b "))
}
