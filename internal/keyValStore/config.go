package keyValStore

import (
	"errors"
	"fmt"
	"os"
)

var ErrNotEnoughSpace = errors.New("keyValStore: not enough space available on disk")

func (sc *StoreConfig) checkConfig() error {
	if len(sc.Paths) == 0 {
		return errors.New("no path provided in configuration")
	}

	path := sc.Paths[0] // Currently only the first path is utilized
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}

	if sc.MinimumFreeSpace <= 0 {
		return nil
	}

	free, err := FreeBytes(path)
	if err != nil {
		return err
	}
	if free/(1024*1024*1024) < uint64(sc.MinimumFreeSpace) {
		return fmt.Errorf("%w: %d GB required at %s", ErrNotEnoughSpace, sc.MinimumFreeSpace, path)
	}

	return nil
}
