package transcode

import "github.com/i5heu/ouroboros-otp/pkg/keyunit"

// putHeader writes n as HeaderSize decimal digits, one digit value (0..9)
// per byte, most significant first.
func putHeader(b []byte, n int) {
	for i := keyunit.HeaderSize - 1; i >= 0; i-- {
		b[i] = byte(n % 10)
		n /= 10
	}
}

// readHeader recovers the message length. A digit byte above 9 can only come
// from a wrong key, so it is read modulo 10, and the value is reduced modulo
// maxMessage+1. A header written by putHeader reads back unchanged; any other
// header still yields a length the envelope can carry.
func readHeader(b []byte, maxMessage int) int {
	n := 0
	for i := 0; i < keyunit.HeaderSize; i++ {
		n = n*10 + int(b[i]%10)
	}
	return n % (maxMessage + 1)
}

// buildEnvelope lays out header, message and filler into env. The tail
// after the message is copied from the same offsets of fill.
func buildEnvelope(env, msg, fill []byte) {
	putHeader(env, len(msg))
	end := keyunit.HeaderSize + copy(env[keyunit.HeaderSize:], msg)
	copy(env[end:], fill[end:])
}
