package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/isel/internal/settings"
)

func TestSharedDefaults(t *testing.T) {
	s := DefaultShared()
	assert.Equal(t, OptNone, s.OptLevel())
	assert.Equal(t, uint8(12), s.ProbestackSizeLog2())
	assert.True(t, s.EnableVerifier())
	assert.False(t, s.IsPIC())
	assert.True(t, s.ColocatedLibcalls())
	assert.False(t, s.AvoidDivTraps())
	assert.True(t, s.EnableFloat())
	assert.False(t, s.EnableSIMD())
	assert.True(t, s.EnableAtomics())
	assert.True(t, s.EnableProbestack())
	assert.False(t, s.EnablePinnedReg())
	assert.False(t, s.UsePinnedReg())
	assert.Equal(t, 5, SharedTemplate().ByteSize())
}

func TestSharedAccessors(t *testing.T) {
	b := NewSharedBuilder()
	require.NoError(t, b.Set("opt_level", "speed_and_size"))
	require.NoError(t, b.Set("probestack_size_log2", "16"))
	require.NoError(t, b.Set("is_pic", "true"))
	require.NoError(t, b.Set("enable_pinned_reg", "true"))
	s, err := NewShared(b)
	require.NoError(t, err)

	assert.Equal(t, OptSpeedAndSize, s.OptLevel())
	assert.Equal(t, uint8(16), s.ProbestackSizeLog2())
	assert.True(t, s.IsPIC())
	assert.True(t, s.UsePinnedReg())

	// later builder changes do not leak into frozen flags
	require.NoError(t, b.Set("is_pic", "false"))
	assert.True(t, s.IsPIC())
}

func TestNewSharedRejectsForeignBuilder(t *testing.T) {
	other, err := settings.NewTemplate("other", []settings.Definition{{Name: "x", Kind: settings.Bool}}, nil, nil)
	require.NoError(t, err)
	_, err = NewShared(settings.NewBuilder(other))
	assert.ErrorIs(t, err, settings.ErrBadValue)
}

func TestSharedFromBytes(t *testing.T) {
	b := NewSharedBuilder()
	require.NoError(t, b.Set("enable_simd", "true"))
	s, err := NewShared(b)
	require.NoError(t, err)

	again, err := SharedFromBytes(s.Bytes())
	require.NoError(t, err)
	assert.True(t, again.EnableSIMD())
	assert.Equal(t, s.Bytes(), again.Bytes())

	_, err = SharedFromBytes(nil)
	assert.ErrorIs(t, err, settings.ErrBadLength)
}
