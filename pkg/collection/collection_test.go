package collection

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretd/pkg/cryptobackend"
)

func TestReplaceSearchClearEndToEnd(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "login.keyring")

	col, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)

	require.NoError(t, col.Replace(map[string]string{"foo": "a", "bar": "b", "baz": "c"}, "label1", []byte("test1")))
	require.NoError(t, col.Replace(map[string]string{"apple": "a", "orange": "b", "banana": "c"}, "label2", []byte("test1")))

	found, err := col.Search(map[string]string{"foo": "a"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "label1", found[0].Label)
	assert.Equal(t, []byte("test1"), found[0].Value)

	removed, err := col.Clear(map[string]string{"foo": "a"})
	require.NoError(t, err)
	assert.True(t, removed)

	found, err = col.Search(map[string]string{"foo": "a"})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, col.Write())

	reopened, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)
	found, err = reopened.Search(map[string]string{"foo": "a"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = reopened.Search(map[string]string{"apple": "a"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "label2", found[0].Label)
}

func TestReplacePreservesCreatedBumpsModified(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	col, err := Open(backend, filepath.Join(dir, "x.keyring"), []byte("password"))
	require.NoError(t, err)

	tick := int64(1000)
	col.now = func() int64 { tick++; return tick }

	require.NoError(t, col.Replace(map[string]string{"k": "v"}, "l1", []byte("v1")))
	firstCreated := col.kr.Items[0].Created

	require.NoError(t, col.Replace(map[string]string{"k": "v"}, "l1", []byte("v2")))
	require.Len(t, col.kr.Items, 1)
	assert.Equal(t, firstCreated, col.kr.Items[0].Created)
	assert.Greater(t, col.kr.Items[0].Modified, firstCreated)
}

func TestSearchRequiresSupersetMatch(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	col, err := Open(backend, filepath.Join(dir, "x.keyring"), []byte("password"))
	require.NoError(t, err)

	require.NoError(t, col.Replace(map[string]string{"a": "1", "b": "2"}, "l", []byte("v")))

	found, err := col.Search(map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = col.Search(map[string]string{"a": "1", "b": "wrong"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUsageCountMonotonic(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	col, err := Open(backend, filepath.Join(dir, "x.keyring"), []byte("password"))
	require.NoError(t, err)

	require.NoError(t, col.Replace(map[string]string{"a": "1"}, "l1", []byte("v1")))
	require.NoError(t, col.Replace(map[string]string{"a": "1"}, "l1", []byte("v2")))
	require.NoError(t, col.Replace(map[string]string{"b": "2"}, "l2", []byte("v3")))

	assert.Equal(t, uint64(3), col.kr.Usage)
}
