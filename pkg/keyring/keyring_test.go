package keyring

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretd/pkg/cryptobackend"
)

func TestOpenMissingFileCreatesFresh(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()

	kr, err := Open(backend, filepath.Join(dir, "absent.keyring"), []byte("password"))
	require.NoError(t, err)
	assert.Len(t, kr.Salt, saltSize)
	assert.Equal(t, uint32(defaultIterCount), kr.Iterations)
	assert.Empty(t, kr.Items)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.keyring")

	kr, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)

	payload, err := kr.EncryptPayload([]byte("hello secret"))
	require.NoError(t, err)
	kr.Items = append(kr.Items, &Item{
		HashedAttrs: map[string][]byte{"foo": kr.backend.HMACSHA256(kr.Key, []byte("a"))},
		Payload:     payload,
		Created:     1000,
		Modified:    1000,
	})
	kr.Usage++

	require.NoError(t, kr.WriteFile(path))

	reopened, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)
	require.Len(t, reopened.Items, 1)
	assert.Equal(t, kr.Salt, reopened.Salt)
	assert.Equal(t, kr.Key, reopened.Key)

	plaintext, err := reopened.DecryptPayload(reopened.Items[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello secret"), plaintext)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	backend := cryptobackend.Default()
	_, err := decode(backend, []byte("not a keyring file at all......"), []byte("password"))
	assert.Error(t, err)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	backend := cryptobackend.Default()
	data := append(append([]byte{}, Magic...), 9, 9)
	_, err := decode(backend, data, []byte("password"))
	assert.Error(t, err)
}

func TestDecryptPayloadRejectsTamperedMAC(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	kr, err := Open(backend, filepath.Join(dir, "test.keyring"), []byte("password"))
	require.NoError(t, err)

	payload, err := kr.EncryptPayload([]byte("value"))
	require.NoError(t, err)
	payload[len(payload)-1] ^= 0xff

	_, err = kr.DecryptPayload(payload)
	assert.Error(t, err)
}
