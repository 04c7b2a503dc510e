package testutil

import (
	"flag"
	"testing"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

var RunLong = flag.Bool("long", false, "run long/heavy tests")

func RequireLong(t *testing.T) {
	t.Helper()
	if !*RunLong {
		t.Skip("skipping long test (use -long to enable)")
	}
}

// SmallLayout is a geometry small enough to generate and consume a whole
// channel in milliseconds. The table is a little longer than the pools need.
func SmallLayout() keyunit.Layout {
	l := keyunit.Layout{
		HalfSize:     32,
		PoolCapacity: 3,
		SeedCount:    4,
	}
	l.TableSize = l.Units()*l.UnitSize() + 17
	return l
}

// Seeds returns count valid seeds starting at base.
func Seeds(count int, base uint32) []uint32 {
	seeds := make([]uint32, count)
	for i := range seeds {
		seeds[i] = base + uint32(i)*7919
	}
	return seeds
}
