package otp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
	"github.com/i5heu/ouroboros-otp/pkg/transcode"
)

// EncodeFile encodes the message in plainPath into cipherPath and shreds
// plainPath on success. The output file is prepared before a unit is
// consumed, so an unwritable target leaves the channel untouched.
func (c *Channel) EncodeFile(plainPath, cipherPath string) error {
	msg, err := readArtifact(plainPath)
	if err != nil {
		return err
	}
	defer keyunit.Overwrite(msg)
	if err := transcode.ValidateMessage(msg, c.layout.HalfSize); err != nil {
		return err
	}

	out, err := newArtifact(cipherPath)
	if err != nil {
		return err
	}
	defer out.abort()

	cipher, err := c.Encode(msg)
	if err != nil {
		return err
	}
	if err := out.commit(cipher); err != nil {
		return fmt.Errorf("write ciphertext (unit already consumed): %w", err)
	}

	if err := keyunit.Shred(plainPath); err != nil {
		return fmt.Errorf("remove plainfile: %w", err)
	}
	c.log.Info("message encoded", "cipherfile", cipherPath)
	return nil
}

// DecodeFile decodes cipherPath into plainPath.
func (c *Channel) DecodeFile(cipherPath, plainPath string) error {
	cipher, err := readArtifact(cipherPath)
	if err != nil {
		return err
	}
	if err := transcode.ValidateCiphertext(cipher, c.layout.HalfSize); err != nil {
		return err
	}

	out, err := newArtifact(plainPath)
	if err != nil {
		return err
	}
	defer out.abort()

	msg, err := c.Decode(cipher)
	if err != nil {
		return err
	}
	defer keyunit.Overwrite(msg)
	if err := out.commit(msg); err != nil {
		return fmt.Errorf("write plainfile (unit already consumed): %w", err)
	}

	c.log.Info("message decoded", "plainfile", plainPath)
	return nil
}

func readArtifact(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// artifact is an output file written through a temp file in the target
// directory and renamed into place.
type artifact struct {
	path string
	tmp  *os.File
	done bool
}

func newArtifact(path string) (*artifact, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	return &artifact{path: path, tmp: tmp}, nil
}

func (a *artifact) commit(b []byte) error {
	if _, err := a.tmp.Write(b); err != nil {
		return err
	}
	if err := a.tmp.Sync(); err != nil {
		return err
	}
	if err := a.tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(a.tmp.Name(), a.path); err != nil {
		return err
	}
	a.done = true
	return nil
}

func (a *artifact) abort() {
	if a.done {
		return
	}
	_ = a.tmp.Close()
	_ = keyunit.Shred(a.tmp.Name())
}
