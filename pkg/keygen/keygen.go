// Package keygen expands a batch of caller-chosen nine-digit seeds into the
// byte table that a channel's key units are cut from.
//
// Every seed drives one pseudo-random byte stream that is added (mod 256) to
// the whole table. Even seeds sweep the table in ascending index order, odd
// seeds in descending order. Two whitening passes follow: one seeded by the
// sum of all seeds (ascending) and one by the sum of every second seed
// (descending). Identical seed sequences give identical tables.
//
// The output is only as strong as the entropy of the seeds. Mixing spreads
// that entropy over the table; it does not add any.
package keygen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

const (
	MinSeed = 100_000_000
	MaxSeed = 999_999_999

	seedModulus = 1_000_000_000
)

var (
	ErrInvalidSeed = errors.New("keygen: seed must be a nine-digit integer")
	ErrSeedCount   = errors.New("keygen: wrong number of seeds")
)

// Generator produces tables for one layout.
type Generator struct {
	layout keyunit.Layout
	log    *slog.Logger
}

// New returns a generator for layout. A nil logger discards output.
func New(layout keyunit.Layout, logger *slog.Logger) (*Generator, error) { // A
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{layout: layout, log: logger}, nil
}

// ValidateSeeds checks count and range of every seed without mixing anything.
func (g *Generator) ValidateSeeds(seeds []uint32) error {
	if len(seeds) != g.layout.SeedCount {
		return fmt.Errorf("%w: want %d, got %d", ErrSeedCount, g.layout.SeedCount, len(seeds))
	}
	for i, s := range seeds {
		if s < MinSeed || s > MaxSeed {
			return fmt.Errorf("%w: seed %d of %d", ErrInvalidSeed, i+1, len(seeds))
		}
	}
	return nil
}

// Generate returns the mixed table. The caller owns the secret and must wipe
// it. Seeds are validated before the table is allocated. Cancellation is
// checked between passes; a cancelled run wipes the partial table.
func (g *Generator) Generate( // A
	ctx context.Context,
	seeds []uint32,
) (*keyunit.Secret, error) {
	if err := g.ValidateSeeds(seeds); err != nil {
		return nil, err
	}

	passes := make([]pass, 0, len(seeds)+2)
	for _, s := range seeds {
		passes = append(passes, pass{seed: s, descending: s%2 == 1})
	}
	passes = append(passes,
		pass{seed: sumSeeds(seeds, 1), descending: false},
		pass{seed: sumSeeds(seeds, 2), descending: true},
	)

	table := keyunit.NewSecret(g.layout.TableSize)
	buf := make([]byte, sweepBlock)
	defer keyunit.Overwrite(buf)

	for i, p := range passes {
		if err := ctx.Err(); err != nil {
			table.Wipe()
			return nil, err
		}
		if err := p.apply(table.Bytes(), buf); err != nil {
			table.Wipe()
			return nil, fmt.Errorf("mixing pass %d: %w", i+1, err)
		}
		g.log.Debug("mixing pass done", "pass", i+1, "of", len(passes))
	}

	g.log.Info("key material mixed", "bytes", g.layout.TableSize, "passes", len(passes))
	return table, nil
}

// sumSeeds adds every step-th seed starting at the first, mod 10^9.
func sumSeeds(seeds []uint32, step int) uint32 {
	var sum uint64
	for i := 0; i < len(seeds); i += step {
		sum = (sum + uint64(seeds[i])) % seedModulus
	}
	return uint32(sum)
}

// WipeSeeds overwrites the seed slice in place.
func WipeSeeds(seeds []uint32) {
	for i := range seeds {
		seeds[i] = 0
	}
	for i := range seeds {
		seeds[i] = ^uint32(0)
	}
	for i := range seeds {
		seeds[i] = 0
	}
}

// ParseSeed accepts exactly nine decimal digits, surrounding space ignored.
func ParseSeed(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) != 9 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeed, s)
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v < MinSeed {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeed, s)
	}
	return uint32(v), nil
}

// ParseSeeds splits text on whitespace and parses every field.
func ParseSeeds(text string) ([]uint32, error) {
	fields := strings.Fields(text)
	seeds := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := ParseSeed(f)
		if err != nil {
			WipeSeeds(seeds)
			return nil, err
		}
		seeds = append(seeds, v)
	}
	return seeds, nil
}
