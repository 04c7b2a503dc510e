package keyunit

import "runtime"

const (
	patternZeros = 0x00
	patternOnes  = 0xFF
)

// Secret is a byte buffer that holds key material or plaintext. Wipe
// overwrites the whole buffer with zeros, then ones, and drops it. Callers
// defer Wipe right after the buffer is created so every exit path clears it.
type Secret struct {
	b []byte
}

// NewSecret allocates a zeroed secret of n bytes.
func NewSecret(n int) *Secret {
	return &Secret{b: make([]byte, n)}
}

// WrapSecret takes ownership of b. The caller must not keep other references.
func WrapSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Bytes returns the live buffer, or nil after Wipe.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Wiped reports whether the buffer has been released.
func (s *Secret) Wiped() bool {
	return s == nil || s.b == nil
}

// Wipe is safe to call more than once and on a nil receiver.
func (s *Secret) Wipe() {
	if s == nil || s.b == nil {
		return
	}
	Overwrite(s.b)
	s.b = nil
}

// Overwrite runs the zero pass and the ones pass over b in place.
func Overwrite(b []byte) {
	fill(b, patternZeros)
	fill(b, patternOnes)
	runtime.KeepAlive(b)
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
