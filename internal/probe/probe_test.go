package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSequenceVisitsEverySlot(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8, 64, 1024} {
		seen := make(map[int]bool, size)
		seq := Start(0xdeadbeef, size)
		for n := 0; n < size; n++ {
			seen[seq.Index()] = true
			seq.Next()
		}
		assert.Len(t, seen, size, "size %d", size)
	}
}

func TestFindTerminatesOnFullTable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		log2 := rapid.IntRange(0, 10).Draw(t, "log2")
		size := 1 << log2
		hash := rapid.Uint32().Draw(t, "hash")

		probes := 0
		_, found := Find(size, hash, func(int) Slot {
			probes++
			return Occupied
		})
		if found {
			t.Fatalf("found a key in a table without matches")
		}
		if probes != size {
			t.Fatalf("expected %d probes, got %d", size, probes)
		}
	})
}

func TestInsertThenFind(t *testing.T) {
	const size = 16
	table := make([]int, size)
	for i := range table {
		table[i] = -1
	}
	for key := 0; key < size; key++ {
		i, err := Insert(size, Mix(uint32(key)), func(i int) bool { return table[i] >= 0 })
		require.NoError(t, err)
		table[i] = key
	}

	_, err := Insert(size, Mix(99), func(i int) bool { return table[i] >= 0 })
	assert.ErrorIs(t, err, ErrTableFull)

	for key := 0; key < size; key++ {
		i, ok := Find(size, Mix(uint32(key)), func(i int) Slot {
			switch table[i] {
			case -1:
				return Empty
			case key:
				return Match
			}
			return Occupied
		})
		require.True(t, ok, "key %d", key)
		assert.Equal(t, key, table[i])
	}
}

func TestBadSize(t *testing.T) {
	_, err := Insert(6, 1, func(int) bool { return false })
	assert.ErrorIs(t, err, ErrBadSize)

	_, ok := Find(0, 1, func(int) Slot { return Match })
	assert.False(t, ok)
}

func TestSizeFor(t *testing.T) {
	assert.Equal(t, 1, SizeFor(0))
	assert.Equal(t, 2, SizeFor(1))
	assert.Equal(t, 4, SizeFor(3))
	assert.Equal(t, 8, SizeFor(4))
	assert.Equal(t, 32, SizeFor(17))
}
