package keypool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/i5heu/ouroboros-otp/internal/keyValStore"
	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

// Consume removes the oldest unit of a pool and returns it. The index entry
// is deleted in the same transaction that reads the unit, then the file is
// shredded. If shredding fails the unit is wiped and an error returned: the
// unit is gone from the pool either way and is never handed out.
func (p *Pool) Consume(name Name) (*keyunit.Unit, error) { // A
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	kv, err := p.index(false)
	if err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, ErrKeysDepleted
	}

	var (
		unit *keyunit.Unit
		path string
	)
	err = kv.TakeFirst(indexPrefix(name), func(_, value []byte) error {
		path = filepath.Join(p.poolDir(name), string(value))
		u, err := p.readUnit(path)
		if err != nil {
			return err
		}
		unit = u
		return nil
	})
	if errors.Is(err, keyValStore.ErrEmpty) {
		return nil, ErrKeysDepleted
	}
	if err != nil {
		return nil, err
	}

	if err := keyunit.Shred(path); err != nil {
		unit.Destroy()
		return nil, fmt.Errorf("destroy consumed unit: %w", err)
	}

	p.log.Info("key unit consumed", "pool", string(name), "file", filepath.Base(path))
	return unit, nil
}

func (p *Pool) readUnit(path string) (*keyunit.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s missing", ErrUnitCorrupt, path)
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := p.layout.UnitSize()
	if info.Size() != int64(size) {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrUnitCorrupt, path, info.Size(), size)
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(f, b); err != nil {
		keyunit.Overwrite(b)
		return nil, fmt.Errorf("read unit %s: %w", path, err)
	}
	return keyunit.NewUnit(b)
}
