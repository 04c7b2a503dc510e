package keypool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	chunk "github.com/ipfs/boxo/chunker"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

// Initialize cuts table into consecutive units and writes the first
// PoolCapacity of them to the incoming pool and the next PoolCapacity to the
// outgoing pool. Bytes of table past the last unit are ignored. It refuses to
// touch a directory that already holds units. On failure every written file
// is shredded.
func (p *Pool) Initialize(ctx context.Context, table io.Reader) error { // A
	exists, err := p.Exists()
	if err != nil {
		return err
	}
	if exists {
		return ErrPoolAlreadyExists
	}

	if err := p.CheckSpace(); err != nil {
		return err
	}

	for _, name := range Names() {
		if err := os.MkdirAll(p.poolDir(name), 0o700); err != nil {
			return fmt.Errorf("create pool dir: %w", err)
		}
	}

	if err := p.writeUnits(ctx, table); err != nil {
		return errors.Join(err, p.discard())
	}

	batch := make([][2][]byte, 0, p.layout.Units())
	for _, name := range Names() {
		for i := 0; i < p.layout.PoolCapacity; i++ {
			batch = append(batch, [2][]byte{indexKey(name, i), []byte(unitFileName(i))})
		}
	}
	kv, err := p.index(true)
	if err == nil {
		err = kv.WriteBatch(batch)
	}
	if err != nil {
		return errors.Join(fmt.Errorf("write pool index: %w", err), p.discard())
	}

	p.log.Info("key pools initialized",
		"units", p.layout.Units(),
		"unitSize", p.layout.UnitSize(),
		"dir", filepath.Join(p.config.Dir, keysDir))
	return nil
}

func (p *Pool) writeUnits(ctx context.Context, table io.Reader) error {
	unitSize := p.layout.UnitSize()
	src := &unitReader{r: table, buf: make([]byte, unitSize), units: p.layout.Units()}
	defer src.wipe()
	splitter := chunk.NewSizeSplitter(src, int64(unitSize))

	wp := p.workerPool()
	defer wp.Close()
	room := wp.CreateRoom(p.layout.Units())

	var produceErr error
	for i := 0; i < p.layout.Units(); i++ {
		if produceErr = ctx.Err(); produceErr != nil {
			break
		}
		b, err := splitter.NextBytes()
		if err == io.EOF {
			produceErr = fmt.Errorf("%w: ends after %d units", ErrShortTable, i)
			break
		}
		if err != nil {
			produceErr = fmt.Errorf("read table: %w", err)
			break
		}

		name := Incoming
		if i >= p.layout.PoolCapacity {
			name = Outgoing
		}
		path := filepath.Join(p.poolDir(name), unitFileName(i%p.layout.PoolCapacity))
		room.NewTaskWaitForFreeSlot(func() error {
			defer keyunit.Overwrite(b)
			return writeUnitFile(path, b)
		})
	}

	return errors.Join(produceErr, room.Collect())
}

// unitReader hands the table to the splitter one whole unit at a time. A
// trailing partial unit is wiped here and reported as ErrShortTable, so no
// key bytes are left behind in the splitter's buffer pool. It stops after
// units units.
type unitReader struct {
	r     io.Reader
	buf   []byte
	off   int
	end   int
	units int
	read  int
}

func (u *unitReader) Read(p []byte) (int, error) {
	if u.off == u.end {
		if u.read == u.units {
			return 0, io.EOF
		}
		n, err := io.ReadFull(u.r, u.buf)
		switch {
		case err == io.EOF:
			return 0, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			keyunit.Overwrite(u.buf[:n])
			return 0, fmt.Errorf("%w: unit %d has %d bytes", ErrShortTable, u.read, n)
		case err != nil:
			keyunit.Overwrite(u.buf[:n])
			return 0, err
		}
		u.off, u.end = 0, n
		u.read++
	}
	n := copy(p, u.buf[u.off:u.end])
	u.off += n
	if u.off == u.end {
		keyunit.Overwrite(u.buf)
	}
	return n, nil
}

func (u *unitReader) wipe() { keyunit.Overwrite(u.buf) }

func writeUnitFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create unit %s: %w", path, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write unit %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync unit %s: %w", path, err)
	}
	return f.Close()
}

// discard shreds every unit file and removes the pool directories and index.
func (p *Pool) discard() error {
	var errs []error
	for _, name := range Names() {
		dir := p.poolDir(name)
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if err := keyunit.Shred(filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(p.indexPath()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
