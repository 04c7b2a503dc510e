// Package bundle packs selected entries of a channel directory into a single
// tar.xz stream and unpacks such a stream into an empty directory. It is the
// carrier for handing a freshly generated channel to the counterparty.
package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// lockFile is badger's process lock. It must not travel with the index.
const lockFile = "LOCK"

var (
	ErrTargetNotEmpty = errors.New("bundle: target directory is not empty")
	ErrUnsafePath     = errors.New("bundle: archive entry escapes target directory")
	ErrNothingToPack  = errors.New("bundle: none of the entries exist")
)

// Export writes the named entries of dir (files or directory trees, relative
// to dir) to w. Missing entries are skipped.
func Export(w io.Writer, dir string, entries []string) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("bundle: xz writer: %w", err)
	}
	tw := tar.NewWriter(xw)

	packed := 0
	for _, entry := range entries {
		root := filepath.Join(dir, entry)
		if _, err := os.Lstat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Name() == lockFile || d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			packed++
			return addEntry(tw, p, filepath.ToSlash(rel), d)
		})
		if err != nil {
			return fmt.Errorf("bundle: pack %s: %w", entry, err)
		}
	}
	if packed == 0 {
		return ErrNothingToPack
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return xw.Close()
}

func addEntry(tw *tar.Writer, src, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if d.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Import unpacks r into dir, which must be empty or absent.
func Import(r io.Reader, dir string) error {
	if err := ensureEmpty(dir); err != nil {
		return err
	}

	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("bundle: xz reader: %w", err)
	}
	tr := tar.NewReader(xr)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("bundle: read archive: %w", err)
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := extractFile(tr, target); err != nil {
				return err
			}
		default:
			return fmt.Errorf("bundle: unsupported entry %s of type %q", hdr.Name, hdr.Typeflag)
		}
	}
}

func extractFile(r io.Reader, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ensureEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o700)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrTargetNotEmpty, dir)
	}
	return nil
}

func safeJoin(dir, name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, "\\") || path.IsAbs(name) || strings.HasPrefix(path.Clean(name), "..") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dir, filepath.FromSlash(clean[1:])), nil
}
