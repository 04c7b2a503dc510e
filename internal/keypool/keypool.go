// Package keypool stores a channel's key units in two directional pools and
// hands them out oldest first.
//
// Unit files live under keys/incoming and keys/outgoing, named by a
// three-digit ordinal. The order of consumption is kept in a badger index
// under keys/index: one key per unit, sorted by insertion sequence, so the
// next unit is the first key under the pool's prefix.
package keypool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-otp/internal/keyValStore"
	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
	workerpool "github.com/i5heu/ouroboros-otp/pkg/workerPool"
)

// Name identifies one of the two pools.
type Name string

const (
	Incoming Name = "incoming"
	Outgoing Name = "outgoing"
)

const (
	keysDir  = "keys"
	indexDir = "index"
)

var (
	ErrPoolAlreadyExists = errors.New("keypool: pool already exists")
	ErrKeysDepleted      = errors.New("keypool: keys depleted")
	ErrUnitCorrupt       = errors.New("keypool: key unit file corrupt")
	ErrUnknownPool       = errors.New("keypool: unknown pool")
	ErrShortTable        = errors.New("keypool: table too short for layout")
	ErrNotEnoughSpace    = errors.New("keypool: not enough disk space for key units")
)

// Names lists both pools in table order.
func Names() []Name { return []Name{Incoming, Outgoing} }

func (n Name) Valid() bool { return n == Incoming || n == Outgoing }

// Opposite is the pool the counterparty draws from for the same traffic.
func (n Name) Opposite() Name {
	if n == Incoming {
		return Outgoing
	}
	return Incoming
}

type Config struct {
	// Dir is the channel directory that contains keys/.
	Dir    string
	Layout keyunit.Layout
	// MinimumFreeGB is kept free on top of the units Initialize writes.
	MinimumFreeGB uint
	// Workers bounds parallel unit file writes. Zero means one per CPU.
	Workers     int
	Logger      *slog.Logger
	StoreLogger *logrus.Logger
}

// Pool is the on-disk pair of pools. The badger index is opened lazily so
// that inspecting an empty directory writes nothing.
type Pool struct {
	config Config
	layout keyunit.Layout
	log    *slog.Logger
	kv     *keyValStore.KeyValStore
}

func Open(config Config) (*Pool, error) { // A
	if config.Dir == "" {
		return nil, errors.New("keypool: no directory configured")
	}
	layout := config.Layout.WithDefaults()
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pool{config: config, layout: layout, log: config.Logger}, nil
}

func (p *Pool) poolDir(name Name) string {
	return filepath.Join(p.config.Dir, keysDir, string(name))
}

func (p *Pool) indexPath() string {
	return filepath.Join(p.config.Dir, keysDir, indexDir)
}

func unitFileName(ordinal int) string {
	return fmt.Sprintf("%03d", ordinal)
}

func indexPrefix(name Name) []byte {
	return []byte("pool/" + string(name) + "/")
}

func indexKey(name Name, seq int) []byte {
	return []byte(fmt.Sprintf("pool/%s/%08d", name, seq))
}

// index opens the badger index. With create unset a missing index yields
// (nil, nil).
func (p *Pool) index(create bool) (*keyValStore.KeyValStore, error) {
	if p.kv != nil {
		return p.kv, nil
	}
	path := p.indexPath()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if !create {
			return nil, nil
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:  []string{path},
		Logger: p.config.StoreLogger,
	})
	if err != nil {
		return nil, err
	}
	p.kv = kv
	return kv, nil
}

// Exists reports whether any unit file or index entry is present.
func (p *Pool) Exists() (bool, error) {
	for _, name := range Names() {
		entries, err := os.ReadDir(p.poolDir(name))
		if err != nil && !os.IsNotExist(err) {
			return false, err
		}
		if len(entries) > 0 {
			return true, nil
		}
	}

	kv, err := p.index(false)
	if err != nil || kv == nil {
		return false, err
	}
	n, err := kv.CountPrefix([]byte("pool/"))
	return n > 0, err
}

// Len is the number of units left in a pool.
func (p *Pool) Len(name Name) (int, error) {
	if !name.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	kv, err := p.index(false)
	if err != nil || kv == nil {
		return 0, err
	}
	return kv.CountPrefix(indexPrefix(name))
}

// Remaining lists the unit file names of a pool, oldest first.
func (p *Pool) Remaining(name Name) ([]string, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	kv, err := p.index(false)
	if err != nil || kv == nil {
		return nil, err
	}
	items, err := kv.GetItemsWithPrefix(indexPrefix(name))
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(items))
	for _, it := range items {
		files = append(files, string(it[1]))
	}
	return files, nil
}

// Release closes the index so the directory can be copied. The next call
// reopens it.
func (p *Pool) Release() error {
	if p.kv == nil {
		return nil
	}
	err := p.kv.Close()
	p.kv = nil
	return err
}

func (p *Pool) Close() error {
	return p.Release()
}

func (p *Pool) workerPool() *workerpool.WorkerPool {
	return workerpool.NewWorkerPool(workerpool.Config{WorkerCount: p.config.Workers})
}

// RequiredBytes is the disk space Initialize writes.
func (p *Pool) RequiredBytes() uint64 {
	return uint64(p.layout.Units()) * uint64(p.layout.UnitSize())
}

// CheckSpace fails with ErrNotEnoughSpace unless the volume holding Dir can
// take the units and still keep MinimumFreeGB free.
func (p *Pool) CheckSpace() error {
	free, err := keyValStore.FreeBytes(p.config.Dir)
	if err != nil {
		return err
	}
	need := p.RequiredBytes() + uint64(p.config.MinimumFreeGB)<<30
	if free < need {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrNotEnoughSpace, need, free)
	}
	return nil
}

// Destroy shreds every unit file and removes the index. It is the rollback
// of a generation whose remaining steps failed.
func (p *Pool) Destroy() error {
	return p.discard()
}
