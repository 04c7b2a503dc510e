package keygen

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	sweepBlock = 64 * 1024
	streamInfo = "ouroboros-otp seed stream v1"
)

type pass struct {
	seed       uint32
	descending bool
}

// newStream derives a ChaCha20 keystream from a single seed value. The seed
// is the only input, so the stream is fully determined by it.
func newStream(seed uint32) (*chacha20.Cipher, error) {
	var ikm [4]byte
	binary.BigEndian.PutUint32(ikm[:], seed)

	material := make([]byte, chacha20.KeySize+chacha20.NonceSize)
	defer clear(material)

	kdf := hkdf.New(sha256.New, ikm[:], nil, []byte(streamInfo))
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, fmt.Errorf("derive stream key: %w", err)
	}
	return chacha20.NewUnauthenticatedCipher(
		material[:chacha20.KeySize],
		material[chacha20.KeySize:],
	)
}

// apply adds one stream byte to every table position. The n-th stream byte
// lands on index n ascending or len-1-n descending.
func (p pass) apply(table, buf []byte) error {
	stream, err := newStream(p.seed)
	if err != nil {
		return err
	}

	last := len(table) - 1
	for done := 0; done < len(table); {
		k := len(buf)
		if rest := len(table) - done; rest < k {
			k = rest
		}
		block := buf[:k]
		clear(block)
		stream.XORKeyStream(block, block)

		if p.descending {
			for i, v := range block {
				table[last-done-i] += v
			}
		} else {
			dst := table[done : done+k]
			for i, v := range block {
				dst[i] += v
			}
		}
		done += k
	}
	return nil
}
