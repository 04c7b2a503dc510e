package transcode

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func randomUnit(t testing.TB, half int) *keyunit.Unit {
	t.Helper()
	b := make([]byte, 2*half)
	_, err := rand.Read(b)
	require.NoError(t, err)
	u, err := keyunit.NewUnit(b)
	require.NoError(t, err)
	return u
}

func genUnit(t *rapid.T, half int, label string) *keyunit.Unit {
	b := rapid.SliceOfN(rapid.Byte(), 2*half, 2*half).Draw(t, label)
	u, err := keyunit.NewUnit(b)
	if err != nil {
		t.Fatalf("new unit: %v", err)
	}
	return u
}

func TestHelloScenario(t *testing.T) {
	half := keyunit.DefaultHalfSize
	unit := randomUnit(t, half)
	paired := unit.Clone()

	cipher, err := Encode([]byte("hello"), unit)
	require.NoError(t, err)
	require.Len(t, cipher, 1_000_007)

	env := make([]byte, half)
	subtractPad(env, cipher, paired.Pad())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 5}, env[:keyunit.HeaderSize])
	assert.Equal(t, 5, readHeader(env, half-keyunit.HeaderSize))

	msg, err := Decode(cipher, paired)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg)

	// An unrelated unit that happens to agree on the header pad bytes.
	other := randomUnit(t, half)
	copy(other.Pad()[:keyunit.HeaderSize], paired.Pad()[:keyunit.HeaderSize])
	garbage, err := Decode(cipher, other)
	require.NoError(t, err)
	assert.Len(t, garbage, 5)

	// Any unit at all still decodes without error.
	random, err := Decode(cipher, randomUnit(t, half))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(random), half-keyunit.HeaderSize)
}

func TestEncodeLayout(t *testing.T) {
	unit := randomUnit(t, 64)
	msg := []byte("attack at dawn")

	cipher, err := Encode(msg, unit)
	require.NoError(t, err)
	require.Len(t, cipher, 64)

	env := make([]byte, 64)
	subtractPad(env, cipher, unit.Pad())

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 1, 4}, env[:7])
	assert.Equal(t, msg, env[7:7+len(msg)])
	// tail is literal filler from the same offsets
	assert.Equal(t, unit.Fill()[7+len(msg):], env[7+len(msg):])
}

func TestEncodeValidation(t *testing.T) {
	unit := randomUnit(t, 64)

	_, err := Encode(nil, unit)
	assert.ErrorIs(t, err, ErrInputMissing)

	_, err = Encode([]byte{}, unit)
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = Encode(make([]byte, 58), unit)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = Encode(make([]byte, 57), unit)
	assert.NoError(t, err)
}

func TestMessageLimitsDefaultLayout(t *testing.T) {
	half := keyunit.DefaultHalfSize
	assert.NoError(t, ValidateMessage(make([]byte, 1_000_000), half))
	assert.ErrorIs(t, ValidateMessage(make([]byte, 1_000_001), half), ErrMessageTooLarge)
}

func TestFullSizeMessageRoundTrip(t *testing.T) {
	half := keyunit.DefaultHalfSize
	unit := randomUnit(t, half)
	msg := make([]byte, half-keyunit.HeaderSize)
	_, err := rand.Read(msg)
	require.NoError(t, err)

	cipher, err := Encode(msg, unit)
	require.NoError(t, err)
	got, err := Decode(cipher, unit)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(msg, got))
}

func TestDecodeValidation(t *testing.T) {
	unit := randomUnit(t, 64)

	_, err := Decode(nil, unit)
	assert.ErrorIs(t, err, ErrInputMissing)

	_, err = Decode(make([]byte, 63), unit)
	assert.ErrorIs(t, err, ErrCiphertextWrongSize)

	_, err = Decode(make([]byte, 65), unit)
	assert.ErrorIs(t, err, ErrCiphertextWrongSize)
}

func TestDestroyedUnitRejected(t *testing.T) {
	unit := randomUnit(t, 64)
	unit.Destroy()

	_, err := Encode([]byte("x"), unit)
	assert.ErrorIs(t, err, ErrUnitDestroyed)
	_, err = Decode(make([]byte, 64), unit)
	assert.ErrorIs(t, err, ErrUnitDestroyed)
}

func TestEncodeLeavesUnitIntact(t *testing.T) {
	unit := randomUnit(t, 64)
	before := append([]byte(nil), unit.Bytes()...)

	_, err := Encode([]byte("abc"), unit)
	require.NoError(t, err)
	assert.Equal(t, before, unit.Bytes())
}

func TestHeaderRoundTrip(t *testing.T) {
	b := make([]byte, keyunit.HeaderSize)
	for _, n := range []int{0, 1, 9, 10, 999_999, 1_000_000} {
		putHeader(b, n)
		assert.Equal(t, n, readHeader(b, 1_000_000))
	}
}

func TestReadHeaderWrongKeyStaysInRange(t *testing.T) {
	b := []byte{255, 255, 255, 255, 255, 255, 255}
	n := readHeader(b, 1_000_000)
	// 5555555 mod 1000001
	assert.Equal(t, 5_555_555%1_000_001, n)
}

func TestDecoyKey(t *testing.T) {
	unit := randomUnit(t, 128)
	cipher, err := Encode([]byte("hello"), unit)
	require.NoError(t, err)

	filler := make([]byte, 128)
	_, err = rand.Read(filler)
	require.NoError(t, err)

	decoy, err := DecoyKey(cipher, []byte("world"), filler)
	require.NoError(t, err)
	assert.Equal(t, 256, decoy.Size())
	assert.Equal(t, filler, decoy.Fill())

	msg, err := Decode(cipher, decoy)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), msg)

	msg, err = Decode(cipher, unit)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg)
}

func TestDecoyKeyValidation(t *testing.T) {
	cipher := make([]byte, 64)

	_, err := DecoyKey(cipher, []byte{}, make([]byte, 64))
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = DecoyKey(cipher, []byte("x"), make([]byte, 63))
	assert.ErrorIs(t, err, keyunit.ErrUnitSize)

	_, err = DecoyKey(make([]byte, 7), []byte("x"), make([]byte, 7))
	assert.ErrorIs(t, err, ErrCiphertextWrongSize)
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		half := rapid.IntRange(keyunit.HeaderSize+1, 512).Draw(t, "half")
		msg := rapid.SliceOfN(rapid.Byte(), 1, half-keyunit.HeaderSize).Draw(t, "msg")
		unit := genUnit(t, half, "unit")
		paired := unit.Clone()

		cipher, err := Encode(msg, unit)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(cipher) != half {
			t.Fatalf("ciphertext is %d bytes, want %d", len(cipher), half)
		}
		got, err := Decode(cipher, paired)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(msg, got) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestPlausibleDecodingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		half := rapid.IntRange(keyunit.HeaderSize+1, 512).Draw(t, "half")
		cipher := rapid.SliceOfN(rapid.Byte(), half, half).Draw(t, "cipher")
		unit := genUnit(t, half, "unit")

		msg, err := Decode(cipher, unit)
		if err != nil {
			t.Fatalf("decode with arbitrary unit failed: %v", err)
		}
		if len(msg) > half-keyunit.HeaderSize {
			t.Fatalf("declared length %d exceeds capacity %d", len(msg), half-keyunit.HeaderSize)
		}

		env := make([]byte, half)
		subtractPad(env, cipher, unit.Pad())
		if got := readHeader(env, half-keyunit.HeaderSize); got != len(msg) {
			t.Fatalf("header says %d, message has %d bytes", got, len(msg))
		}
	})
}

func TestSubtractPadMatchesModulo(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.Byte().Draw(t, "cipher")
		p := rapid.Byte().Draw(t, "pad")
		env := make([]byte, 1)
		subtractPad(env, []byte{c}, []byte{p})
		if want := byte((int(c) - int(p) + 256) % 256); env[0] != want {
			t.Fatalf("got %d, want %d", env[0], want)
		}
	})
}
