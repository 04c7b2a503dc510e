package keyunit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	require.NoError(t, l.Validate())

	assert.Equal(t, 2_000_014, l.UnitSize())
	assert.Equal(t, 1_000_007, l.EnvelopeSize())
	assert.Equal(t, 1_000_000, l.MaxMessage())
	assert.Equal(t, 250, l.Units())
	assert.GreaterOrEqual(t, l.TableSize, l.Units()*l.UnitSize())
}

func TestLayoutWithDefaults(t *testing.T) {
	l := Layout{HalfSize: 64}.WithDefaults()
	assert.Equal(t, 64, l.HalfSize)
	assert.Equal(t, DefaultPoolCapacity, l.PoolCapacity)
	assert.Equal(t, DefaultSeedCount, l.SeedCount)
}

func TestLayoutValidate(t *testing.T) {
	cases := map[string]Layout{
		"header only":    {HalfSize: HeaderSize, PoolCapacity: 1, TableSize: 1 << 20, SeedCount: 2},
		"half too large": {HalfSize: DefaultHalfSize + 1, PoolCapacity: 1, TableSize: DefaultTableSize, SeedCount: 2},
		"zero capacity":  {HalfSize: 64, PoolCapacity: 0, TableSize: 1 << 20, SeedCount: 2},
		"huge capacity":  {HalfSize: 64, PoolCapacity: 1000, TableSize: 1 << 30, SeedCount: 2},
		"short table":    {HalfSize: 64, PoolCapacity: 4, TableSize: 4*2*128 - 1, SeedCount: 2},
		"one seed":       {HalfSize: 64, PoolCapacity: 4, TableSize: 1 << 20, SeedCount: 1},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, l.Validate(), ErrInvalidLayout)
		})
	}

	ok := Layout{HalfSize: 64, PoolCapacity: 4, TableSize: 4 * 2 * 128, SeedCount: 2}
	assert.NoError(t, ok.Validate())
}

func TestSecretWipe(t *testing.T) {
	b := []byte("top secret key material")
	s := WrapSecret(b)
	require.Equal(t, len(b), s.Len())

	s.Wipe()
	assert.True(t, s.Wiped())
	assert.Nil(t, s.Bytes())
	// the ones pass runs last
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, len(b)), b)

	s.Wipe()
	var nilSecret *Secret
	nilSecret.Wipe()
	assert.Zero(t, nilSecret.Len())
}

func TestUnitHalves(t *testing.T) {
	fill := bytes.Repeat([]byte{1}, 16)
	pad := bytes.Repeat([]byte{2}, 16)

	u, err := Join(fill, pad)
	require.NoError(t, err)
	assert.Equal(t, 16, u.HalfSize())
	assert.Equal(t, 32, u.Size())
	assert.Equal(t, fill, u.Fill())
	assert.Equal(t, pad, u.Pad())

	c := u.Clone()
	u.Destroy()
	assert.True(t, u.Destroyed())
	assert.Nil(t, u.Fill())
	assert.Nil(t, u.Pad())

	assert.False(t, c.Destroyed())
	assert.Equal(t, fill, c.Fill())
}

func TestNewUnitRejectsBadSizes(t *testing.T) {
	_, err := NewUnit(make([]byte, 33))
	assert.ErrorIs(t, err, ErrUnitSize)

	_, err = NewUnit(make([]byte, 2*HeaderSize))
	assert.ErrorIs(t, err, ErrUnitSize)

	_, err = Join(make([]byte, 10), make([]byte, 11))
	assert.ErrorIs(t, err, ErrUnitSize)
}

func TestShred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 3*shredBlock+17), 0o600))

	require.NoError(t, Shred(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestShredMissingFile(t *testing.T) {
	err := Shred(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOverwriteFileLeavesPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unit")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o600))

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	require.NoError(t, overwriteFile(f, 8, patternOnes))
	require.NoError(t, f.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 8), got)
}
