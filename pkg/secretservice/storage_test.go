package secretservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretd/pkg/cryptobackend"
)

func TestStoreLookupClearDefaultCollection(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "default.jwe")

	s, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)

	ctx := context.Background()
	attrs := map[string]string{"service": "github", "account": "alice"}
	value := &SecretValue{Bytes: []byte("tok_12345"), ContentType: "text/plain"}

	require.NoError(t, s.Store(ctx, nil, attrs, DefaultCollection, "github token", value))

	found, err := s.Lookup(ctx, nil, attrs)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []byte("tok_12345"), found.Bytes)

	reopened, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)
	found, err = reopened.Lookup(ctx, nil, attrs)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []byte("tok_12345"), found.Bytes)

	removed, err := reopened.Clear(ctx, nil, attrs)
	require.NoError(t, err)
	assert.True(t, removed)

	found, err = reopened.Lookup(ctx, nil, attrs)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSessionCollectionNeverPersists(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "default.jwe")

	s, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)

	ctx := context.Background()
	attrs := map[string]string{"k": "v"}
	value := &SecretValue{Bytes: []byte("ephemeral"), ContentType: "text/plain"}

	require.NoError(t, s.Store(ctx, nil, attrs, SessionCollection, "temp", value))

	found, err := s.Lookup(ctx, nil, attrs)
	require.NoError(t, err)
	require.NotNil(t, found)

	reopened, err := Open(backend, path, []byte("password"))
	require.NoError(t, err)
	found, err = reopened.Lookup(ctx, nil, attrs)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSchemaValidationRejectsUnknownAttribute(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	s, err := Open(backend, filepath.Join(dir, "default.jwe"), []byte("password"))
	require.NoError(t, err)

	schema := &Schema{
		Name:       "org.example.Test",
		Attributes: map[string]AttributeKind{"service": KindString},
		AllowOther: false,
	}

	ctx := context.Background()
	value := &SecretValue{Bytes: []byte("v"), ContentType: "text/plain"}
	err = s.Store(ctx, schema, map[string]string{"unknown": "x"}, SessionCollection, "l", value)
	assert.Error(t, err)
}

func TestSchemaRejectsEmptyAndNULValues(t *testing.T) {
	schema := &Schema{Attributes: map[string]AttributeKind{"a": KindString}, AllowOther: true}
	assert.Error(t, schema.Validate(map[string]string{"a": ""}))
	assert.Error(t, schema.Validate(map[string]string{"a": "bad\x00value"}))
	assert.NoError(t, schema.Validate(map[string]string{"a": "ok"}))
}

func TestSchemaValidatesIntegerAndBoolean(t *testing.T) {
	schema := &Schema{
		Attributes: map[string]AttributeKind{"count": KindInteger, "enabled": KindBoolean},
		AllowOther: false,
	}
	assert.NoError(t, schema.Validate(map[string]string{"count": "42", "enabled": "true"}))
	assert.Error(t, schema.Validate(map[string]string{"count": "not-a-number"}))
	assert.Error(t, schema.Validate(map[string]string{"enabled": "yes"}))
}

func TestSearchReturnsRetrievableHandles(t *testing.T) {
	backend := cryptobackend.Default()
	dir := t.TempDir()
	s, err := Open(backend, filepath.Join(dir, "default.jwe"), []byte("password"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Store(ctx, nil, map[string]string{"service": "github"}, DefaultCollection, "l1", &SecretValue{Bytes: []byte("v1"), ContentType: "text/plain"}))
	require.NoError(t, s.Store(ctx, nil, map[string]string{"service": "gitlab"}, DefaultCollection, "l2", &SecretValue{Bytes: []byte("v2"), ContentType: "text/plain"}))

	results, err := s.Search(ctx, nil, map[string]string{"service": "github"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "l1", results[0].Label())

	secret, err := results[0].RetrieveSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), secret.Bytes)
}
