package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 42, `42`},
		{"int64", int64(-7), `-7`},
		{"bool", true, `true`},
		{"int slice", []int{3, 1, 2}, `[3,1,2]`},
		{"empty int slice", []int{}, `[]`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"sorted keys", map[string]any{"b": 1, "a": 2, "aa": 3}, `{"a":2,"aa":3,"b":1}`},
		{"nested", map[string]any{"x": []any{map[string]any{"z": false, "y": "q"}}}, `{"x":[{"y":"q","z":false}]}`},
		{"nfc", "e\u0301", "\"\u00e9\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00, so it sorts before
	// U+FF61 in UTF-16 but after it in UTF-8 byte order.
	got, err := MarshalCanonical(map[string]any{"\U0001F600": 1, "｡": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"｡\":2}", string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for name, in := range map[string]any{
		"null":        nil,
		"float":       1.5,
		"nested null": map[string]any{"a": []any{nil}},
		"struct":      struct{}{},
	} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, name)
	}
}
