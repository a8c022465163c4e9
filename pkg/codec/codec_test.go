package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URLKnownVectors(t *testing.T) {
	assert.Equal(t, "_-7dzLuq", EncodeBase64URL([]byte{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa}))
	assert.Equal(t, []byte("foo"), DecodeBase64URL("Zm9v"))
	assert.Equal(t, []byte("fo"), DecodeBase64URL("Zm8"))
}

func TestBase64URLNoPaddingChars(t *testing.T) {
	for i := 0; i < 50; i++ {
		data := randomBytes(i)
		encoded := EncodeBase64URL(data)
		assert.NotContains(t, encoded, "+")
		assert.NotContains(t, encoded, "/")
		assert.NotContains(t, encoded, "=")
	}
}

func TestBase64URLRoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		data := randomBytes(i % 37)
		got := DecodeBase64URL(EncodeBase64URL(data))
		assert.True(t, bytes.Equal(data, got), "round trip mismatch for len %d", len(data))
	}
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	assert.Equal(t, "deadbeef", EncodeHex(data, 0, false, ""))
	assert.Equal(t, "DEADBEEF", EncodeHex(data, 0, true, ""))
	assert.Equal(t, "de:ad:be:ef", EncodeHex(data, 1, false, ":"))

	decoded, err := DecodeHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestHexDecodeRejectsInvalidNibble(t *testing.T) {
	_, err := DecodeHex("deadbeeg")
	assert.Error(t, err)
	_, err = DecodeHex("abc")
	assert.Error(t, err)
}

func TestPKCS7RoundTrip(t *testing.T) {
	for n := 0; n < 64; n++ {
		data := randomBytes(n)
		padded := PadPKCS7(data)
		assert.Equal(t, 0, len(padded)%BlockSize)
		got, err := UnpadPKCS7(padded)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestPKCS7UnpadRejectsInvalid(t *testing.T) {
	_, err := UnpadPKCS7([]byte{})
	assert.Error(t, err)

	_, err = UnpadPKCS7([]byte{1, 2, 3, 0})
	assert.Error(t, err)

	_, err = UnpadPKCS7([]byte{1, 2, 3, 17})
	assert.Error(t, err)

	_, err = UnpadPKCS7([]byte{1, 2, 3, 2})
	assert.Error(t, err, "trailing byte disagrees with declared pad length")
}

func TestConstantTimeCompare(t *testing.T) {
	assert.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("ab")))
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
