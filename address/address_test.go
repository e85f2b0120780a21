package address

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForContent(t *testing.T) {
	a := ForString("some string")
	assert.Equal(t, "8b45e4bd1c6acb88bebf6407d16205f567e62a3e", a.String())
}

func TestForContentDeterministic(t *testing.T) {
	inputs := []string{"", "shared-secret", "node 1", "node 2", strings.Repeat("x", 4096)}
	seen := make(map[Address]string)

	for _, in := range inputs {
		a := ForString(in)
		assert.Equal(t, a, ForContent([]byte(in)), "derivation of %q must be stable", in)

		if prev, ok := seen[a]; ok {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[a] = in
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "canonical",
			input: "8b45e4bd1c6acb88bebf6407d16205f567e62a3e",
			want:  "8b45e4bd1c6acb88bebf6407d16205f567e62a3e",
		},
		{
			name:  "upper case is normalized",
			input: "8B45E4BD1C6ACB88BEBF6407D16205F567E62A3E",
			want:  "8b45e4bd1c6acb88bebf6407d16205f567e62a3e",
		},
		{
			name:  "null",
			input: "0000000000000000000000000000000000000000",
			want:  "0000000000000000000000000000000000000000",
		},
		{name: "not hex", input: "not-valid-hex", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "8b45e4bd1c6acb88bebf6407d16205f567e62a3", wantErr: true},
		{name: "too long", input: "8b45e4bd1c6acb88bebf6407d16205f567e62a3e00", wantErr: true},
		{name: "bad character", input: "8b45e4bd1c6acb88bebf6407d16205f567e62a3g", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAddressFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.String())
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		a, err := Random()
		require.NoError(t, err)

		s := a.String()
		assert.Len(t, s, HexLength)
		assert.Equal(t, strings.ToLower(s), s)

		parsed, err := FromString(s)
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
}

func TestNull(t *testing.T) {
	assert.True(t, Null().IsNull())
	assert.Equal(t, strings.Repeat("0", HexLength), Null().String())
	assert.False(t, ForString("x").IsNull())
}

func TestEquality(t *testing.T) {
	a, err := FromString("8b45e4bd1c6acb88bebf6407d16205f567e62a3e")
	require.NoError(t, err)
	b, err := FromString("8b45e4bd1c6acb88bebf6407d16205f567e62a3e")
	require.NoError(t, err)
	c, err := FromString("8b45e4bd1c6acb88bebf6407d16205f567e62a3f")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDistanceAndLess(t *testing.T) {
	lo, _ := FromString("0000000000000000000000000000000000000001")
	hi, _ := FromString("ffffffffffffffffffffffffffffffffffffffff")

	assert.True(t, lo.Less(hi))
	assert.False(t, hi.Less(lo))
	assert.False(t, lo.Less(lo))

	assert.True(t, lo.Distance(lo).IsNull())
	assert.Equal(t, "fffffffffffffffffffffffffffffffffffffffe", lo.Distance(hi).String())
	assert.Equal(t, lo.Distance(hi), hi.Distance(lo))
}

func TestFromBytes(t *testing.T) {
	a := ForString("bytes")
	b, err := FromBytes(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = FromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidAddressFormat)
}

func TestTextMarshaling(t *testing.T) {
	type envelope struct {
		To Address `json:"to"`
	}

	in := envelope{To: ForString("json")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), in.To.String())

	var out envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"to":"zz"}`), &out)
	assert.ErrorIs(t, err, ErrInvalidAddressFormat)
}
