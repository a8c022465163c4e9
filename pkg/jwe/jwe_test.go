package jwe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretd/pkg/codec"
	"github.com/sage-x-project/secretd/pkg/cryptobackend"
)

func TestSymmetricEncryptDecryptKnownKey(t *testing.T) {
	backend := cryptobackend.Default()
	key := codec.DecodeBase64URL("7IYHpL3E0SApQ3Uk58_Liw")
	require.Len(t, key, 16)

	plaintext := []byte("test test\n")
	env, err := SymmetricEncrypt(backend, plaintext, "A128GCM", key)
	require.NoError(t, err)

	protectedJSON := codec.DecodeBase64URL(env.Protected)
	var hdr protectedHeader
	require.NoError(t, json.Unmarshal(protectedJSON, &hdr))
	assert.Equal(t, "A128GCM", hdr.Enc)
	assert.Equal(t, "dir", env.Header.Alg)
	assert.Equal(t, "", env.EncryptedKey)

	decrypted, err := SymmetricDecrypt(backend, env, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	backend := cryptobackend.Default()
	key := make([]byte, 32)
	env, err := SymmetricEncrypt(backend, []byte("round trip"), "A256GCM", key)
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)

	decrypted, err := SymmetricDecrypt(backend, parsed, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("round trip"), decrypted)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	backend := cryptobackend.Default()
	key := make([]byte, 16)
	env, err := SymmetricEncrypt(backend, []byte("secret"), "A128GCM", key)
	require.NoError(t, err)

	wrongKey := make([]byte, 16)
	wrongKey[0] = 0xff
	_, err = SymmetricDecrypt(backend, env, wrongKey)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	backend := cryptobackend.Default()
	key := make([]byte, 16)
	env, err := SymmetricEncrypt(backend, []byte("secret"), "A128GCM", key)
	require.NoError(t, err)

	raw := codec.DecodeBase64URL(env.Ciphertext)
	raw[0] ^= 0xff
	env.Ciphertext = codec.EncodeBase64URL(raw)

	_, err = SymmetricDecrypt(backend, env, key)
	assert.Error(t, err)
}
