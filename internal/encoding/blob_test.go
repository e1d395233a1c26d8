package encoding

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBlobRoundTrip(t *testing.T) {
	f := newFixture(t)
	tables := f.tables(t)

	blob, err := tables.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte("ISEL"), blob[:4])

	decoded, err := UnmarshalTables(blob)
	require.NoError(t, err)
	assert.Equal(t, tables, decoded)
	require.NoError(t, decoded.Validate(Limits{Recipes: f.catalog.Len()}))

	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, blob, again)
}

func TestUnmarshalRejects(t *testing.T) {
	f := newFixture(t)
	blob, err := f.tables(t).MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("ELSI"), blob[4:]...)},
		{"bad version", append(append([]byte("ISEL"), 9), blob[5:]...)},
		{"truncated", blob[:len(blob)/2]},
		{"missing end", blob[:len(blob)-1]},
		{"trailing section", append(append([]byte(nil), blob[:len(blob)-1]...), 7)},
		{"sections swapped", swapFirstSections(t, blob)},
		{"oversized section", []byte("ISEL\x01\x01\xf0\xff\xff\xff\xff")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalTables(tc.blob)
			assert.ErrorIs(t, err, ErrBadBlob)
		})
	}
}

// swapFirstSections exchanges the actions and modes sections.
func swapFirstSections(t *testing.T, blob []byte) []byte {
	r := NewReader(bytes.NewReader(blob[5:]))
	id1, body1, err := r.ReadSection()
	require.NoError(t, err)
	id2, body2, err := r.ReadSection()
	require.NoError(t, err)
	rest := blob[5+int(r.Position()):]

	var w Writer
	w.Write(blob[:5])
	w.WriteSection(id2, body2)
	w.WriteSection(id1, body1)
	w.Write(rest)
	return w.Bytes()
}

func TestVarintRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint32().Draw(t, "v")
		var w Writer
		w.WriteVarint(v)
		r := NewReader(bytes.NewReader(w.Bytes()))
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("varint %d decoded as %d", v, got)
		}
		if r.Position() != int64(w.Len()) {
			t.Fatalf("varint %d left %d bytes", v, int64(w.Len())-r.Position())
		}
	})
}

func TestVarintLengths(t *testing.T) {
	tests := []struct {
		v    uint32
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{1<<14 - 1, 2},
		{1 << 14, 3},
		{1<<28 - 1, 4},
		{1 << 28, 5},
		{0xffffffff, 5},
	}
	for _, tc := range tests {
		var w Writer
		w.WriteVarint(tc.v)
		assert.Equal(t, tc.size, w.Len(), "%d", tc.v)
	}

	r := NewReader(bytes.NewReader([]byte{0xf8, 0, 0, 0, 0, 0}))
	_, err := r.ReadVarint()
	assert.Error(t, err)
}

func TestReadSectionLengthBound(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{3, 0x7f, 'a'}))
	_, _, err := r.ReadSection()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	r = NewReader(bytes.NewReader([]byte{3, 2, 'a', 'b', 4}))
	sec, body, err := r.ReadSection()
	require.NoError(t, err)
	assert.Equal(t, byte(3), sec)
	assert.Equal(t, []byte("ab"), body)
	assert.Equal(t, int64(4), r.Position())
}
