// Package keyValStore wraps the badger database that keeps the ordered index
// of a channel's key units.
package keyValStore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// ErrEmpty is returned by TakeFirst when no key carries the prefix.
var ErrEmpty = errors.New("keyValStore: no entry with prefix")

type StoreConfig struct {
	Paths            []string // absolute path at the moment only first path is supported
	MinimumFreeSpace int      // in GB
	Logger           *logrus.Logger
}

type KeyValStore struct {
	config   StoreConfig
	log      *logrus.Logger
	badgerDB *badger.DB
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
		config.Logger.SetLevel(logrus.WarnLevel)
	}

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	// The index holds a few hundred tiny entries. Small files keep the
	// directory cheap to copy to the other party.
	opts := badger.DefaultOptions(config.Paths[0]).
		WithLogger(config.Logger).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithValueLogFileSize(1 << 20).
		WithMemTableSize(4 << 20).
		WithValueThreshold(1 << 10).
		WithBlockCacheSize(8 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", config.Paths[0], err)
	}

	if err := displayDiskUsage(config.Logger, config.Paths); err != nil {
		config.Logger.Warnf("disk usage unavailable: %v", err)
	}

	return &KeyValStore{
		config:   config,
		log:      config.Logger,
		badgerDB: db,
	}, nil
}

// WriteBatch stores all pairs in one transaction.
func (k *KeyValStore) WriteBatch(batch [][2][]byte) error {
	return k.badgerDB.Update(func(txn *badger.Txn) error {
		for _, kv := range batch {
			if err := txn.Set(kv[0], kv[1]); err != nil {
				return fmt.Errorf("write %q: %w", kv[0], err)
			}
		}
		return nil
	})
}

// TakeFirst hands the lowest key with prefix to fn and deletes it in the
// same transaction. If fn fails nothing is deleted.
func (k *KeyValStore) TakeFirst( // A
	prefix []byte,
	fn func(key, value []byte) error,
) error {
	return k.badgerDB.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			it.Close()
			return ErrEmpty
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		it.Close()
		if err != nil {
			return err
		}

		if err := fn(key, value); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// CountPrefix counts keys with prefix without reading values.
func (k *KeyValStore) CountPrefix(prefix []byte) (int, error) {
	n := 0
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// will return all keys and values with the given prefix, in key order
func (k *KeyValStore) GetItemsWithPrefix(prefix []byte) ([][][]byte, error) {
	var keysAndValues [][][]byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			keysAndValues = append(keysAndValues, [][]byte{k, v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keysAndValues, nil
}

func (k *KeyValStore) Close() error {
	if err := k.badgerDB.Sync(); err != nil {
		k.log.Warnf("error syncing db: %v", err)
	}
	return k.badgerDB.Close()
}
