package keyunit

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const shredBlock = 64 * 1024

// Shred overwrites the whole file with zeros, syncs, overwrites it with ones,
// syncs again and removes it. A missing file is an error: a unit that should
// exist but does not means the pool was tampered with.
func Shred(path string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	for _, pattern := range []byte{patternZeros, patternOnes} {
		if err := overwriteFile(f, info.Size(), pattern); err != nil {
			return fmt.Errorf("overwrite %s: %w", path, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func overwriteFile(f *os.File, size int64, pattern byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	block := make([]byte, shredBlock)
	fill(block, pattern)

	for left := size; left > 0; {
		n := int64(len(block))
		if left < n {
			n = left
		}
		if _, err := f.Write(block[:n]); err != nil {
			return err
		}
		left -= n
	}
	return f.Sync()
}
