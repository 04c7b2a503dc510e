package keygen

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func smallLayout() keyunit.Layout {
	return keyunit.Layout{
		HalfSize:     16,
		PoolCapacity: 3,
		TableSize:    sweepBlock + 123,
		SeedCount:    testSeedCount,
	}
}

const testSeedCount = keyunit.DefaultSeedCount

func fixedSeeds(v uint32) []uint32 {
	seeds := make([]uint32, testSeedCount)
	for i := range seeds {
		seeds[i] = v
	}
	return seeds
}

func generate(t *testing.T, seeds []uint32) []byte {
	t.Helper()
	g, err := New(smallLayout(), nil)
	require.NoError(t, err)

	table, err := g.Generate(context.Background(), seeds)
	require.NoError(t, err)
	out := append([]byte(nil), table.Bytes()...)
	table.Wipe()
	return out
}

func TestGenerateDeterministic(t *testing.T) {
	a := generate(t, fixedSeeds(123456789))
	b := generate(t, fixedSeeds(123456789))

	require.Len(t, a, smallLayout().TableSize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, make([]byte, len(a)), a)
}

func TestGenerateDependsOnOrder(t *testing.T) {
	seeds := fixedSeeds(123456789)
	seeds[0] = 222222222
	seeds[1] = 333333333
	a := generate(t, seeds)

	swapped := fixedSeeds(123456789)
	swapped[0] = 333333333
	swapped[1] = 222222222
	b := generate(t, swapped)

	assert.NotEqual(t, a, b)
}

func TestGenerateDependsOnEverySeed(t *testing.T) {
	base := generate(t, fixedSeeds(500000000))

	seeds := fixedSeeds(500000000)
	seeds[len(seeds)-1] = 500000001
	assert.NotEqual(t, base, generate(t, seeds))
}

func TestGenerateRejectsSeeds(t *testing.T) {
	g, err := New(smallLayout(), nil)
	require.NoError(t, err)

	low := fixedSeeds(123456789)
	low[17] = 99_999_999
	_, err = g.Generate(context.Background(), low)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	high := fixedSeeds(123456789)
	high[89] = 1_000_000_000
	_, err = g.Generate(context.Background(), high)
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = g.Generate(context.Background(), fixedSeeds(123456789)[:89])
	assert.ErrorIs(t, err, ErrSeedCount)
}

func TestGenerateCancelled(t *testing.T) {
	g, err := New(smallLayout(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table, err := g.Generate(ctx, fixedSeeds(123456789))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, table)
}

func TestNewRejectsInvalidLayout(t *testing.T) {
	_, err := New(keyunit.Layout{HalfSize: 3}, nil)
	assert.ErrorIs(t, err, keyunit.ErrInvalidLayout)
}

func TestPassDirection(t *testing.T) {
	const n = 2*sweepBlock + 77
	buf := make([]byte, sweepBlock)

	asc := make([]byte, n)
	require.NoError(t, pass{seed: 123456788}.apply(asc, buf))

	desc := make([]byte, n)
	require.NoError(t, pass{seed: 123456788, descending: true}.apply(desc, buf))

	for i := 0; i < n; i++ {
		if desc[i] != asc[n-1-i] {
			t.Fatalf("descending sweep mismatch at %d", i)
		}
	}
}

func TestPassAddsModulo256(t *testing.T) {
	buf := make([]byte, sweepBlock)
	stream := make([]byte, 100)
	require.NoError(t, pass{seed: 111111111}.apply(stream, buf))

	table := make([]byte, 100)
	for i := range table {
		table[i] = 200
	}
	require.NoError(t, pass{seed: 111111111}.apply(table, buf))

	for i := range table {
		assert.Equal(t, byte(200+int(stream[i])), table[i])
	}
}

func TestSumSeeds(t *testing.T) {
	seeds := fixedSeeds(MaxSeed)
	assert.Equal(t, uint32(999_999_910), sumSeeds(seeds, 1))
	assert.Equal(t, uint32(999_999_955), sumSeeds(seeds, 2))

	small := []uint32{100000000, 200000000, 300000000}
	assert.Equal(t, uint32(600000000), sumSeeds(small, 1))
	assert.Equal(t, uint32(400000000), sumSeeds(small, 2))
}

func TestWipeSeeds(t *testing.T) {
	seeds := fixedSeeds(987654321)
	WipeSeeds(seeds)
	for _, s := range seeds {
		assert.Zero(t, s)
	}
}

func TestParseSeed(t *testing.T) {
	v, err := ParseSeed(" 123456789\n")
	require.NoError(t, err)
	assert.Equal(t, uint32(123456789), v)

	for _, bad := range []string{"", "12345678", "1234567890", "012345678", "+12345678", "12345678x"} {
		_, err := ParseSeed(bad)
		assert.ErrorIs(t, err, ErrInvalidSeed, bad)
	}
}

func TestParseSeeds(t *testing.T) {
	seeds, err := ParseSeeds("123456789 987654321\n555555555\t")
	require.NoError(t, err)
	assert.Equal(t, []uint32{123456789, 987654321, 555555555}, seeds)

	_, err = ParseSeeds("123456789 42")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestParseSeedRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint32Range(MinSeed, MaxSeed).Draw(t, "seed")
		got, err := ParseSeed(strconv.FormatUint(uint64(v), 10))
		if err != nil {
			t.Fatalf("parse %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("got %d, want %d", got, v)
		}
	})
}

func TestParseSeedsRejectsEveryOutOfRangeValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint32Range(0, MinSeed-1).Draw(t, "seed")
		text := strings.Repeat("123456789 ", 3) + strconv.FormatUint(uint64(v), 10)
		if _, err := ParseSeeds(text); err == nil {
			t.Fatalf("accepted %d", v)
		}
	})
}
