// Package ledger keeps the two per-direction counters of a channel. Each
// counter is a small text file starting with a three-digit count, rewritten
// atomically on every change.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Counter names one of the two ledger files.
type Counter string

const (
	Encrypt Counter = "encrypt"
	Decrypt Counter = "decrypt"
)

var (
	ErrLedgerExhausted = errors.New("ledger: counter exhausted")
	ErrLedgerCorrupt   = errors.New("ledger: counter file corrupt")
	ErrLedgerMissing   = errors.New("ledger: counter file missing")
	ErrUnknownCounter  = errors.New("ledger: unknown counter")
)

func Counters() []Counter { return []Counter{Encrypt, Decrypt} }

func (c Counter) Valid() bool { return c == Encrypt || c == Decrypt }

// Other is the counter of the opposite direction.
func (c Counter) Other() Counter {
	if c == Encrypt {
		return Decrypt
	}
	return Encrypt
}

// FileName is the on-disk name of the counter.
func (c Counter) FileName() string {
	return "remaining." + string(c) + ".txt"
}

type Ledger struct {
	dir      string
	capacity int
}

// New returns a ledger rooted at dir whose counters never exceed capacity.
func New(dir string, capacity int) *Ledger {
	return &Ledger{dir: dir, capacity: capacity}
}

func (l *Ledger) path(c Counter) string {
	return filepath.Join(l.dir, c.FileName())
}

// Exists reports whether both counter files are present.
func (l *Ledger) Exists() (bool, error) {
	for _, c := range Counters() {
		if _, err := os.Stat(l.path(c)); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// AnyExists reports whether at least one counter file is present.
func (l *Ledger) AnyExists() (bool, error) {
	for _, c := range Counters() {
		_, err := os.Stat(l.path(c))
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

// Remaining reads a counter. Values outside [0, capacity] are corrupt.
func (l *Ledger) Remaining(c Counter) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCounter, c)
	}
	raw, err := os.ReadFile(l.path(c))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrLedgerMissing, c.FileName())
		}
		return 0, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ErrLedgerCorrupt, c.FileName())
	}
	if !threeDigits(fields[0]) {
		return 0, fmt.Errorf("%w: %s: %q", ErrLedgerCorrupt, c.FileName(), fields[0])
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrLedgerCorrupt, c.FileName(), fields[0])
	}
	if n < 0 || n > l.capacity {
		return 0, fmt.Errorf("%w: %s holds %d, capacity %d", ErrLedgerCorrupt, c.FileName(), n, l.capacity)
	}
	return n, nil
}

// Decrement lowers a counter by one and returns the new value. A counter at
// zero is left untouched and ErrLedgerExhausted returned.
func (l *Ledger) Decrement(c Counter) (int, error) {
	n, err := l.Remaining(c)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrLedgerExhausted, c)
	}
	n--
	return n, l.write(c, n)
}

// ResetAll sets both counters to capacity.
func (l *Ledger) ResetAll() error {
	for _, c := range Counters() {
		if err := l.write(c, l.capacity); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes both counter files. Missing files are ignored.
func (l *Ledger) Remove() error {
	var errs []error
	for _, c := range Counters() {
		if err := os.Remove(l.path(c)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// write replaces the counter file through a synced temp file and rename.
func (l *Ledger) write(c Counter, n int) error {
	if n < 0 || n > l.capacity {
		return fmt.Errorf("%w: refusing to write %d", ErrLedgerCorrupt, n)
	}
	tmp, err := os.CreateTemp(l.dir, "."+c.FileName()+".*")
	if err != nil {
		return fmt.Errorf("ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := fmt.Fprintf(tmp, "%03d files left to %s. Do not modify this file.\n", n, c); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, l.path(c))
}

func threeDigits(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
