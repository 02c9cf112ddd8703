package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/mocks"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

func TestNewInitHandler(t *testing.T) {
	collections := &mocks.CollectionManager{}

	handler := NewInitHandler(collections, 1536)

	require.NotNil(t, handler)
	assert.Equal(t, collections, handler.collectionManager)
	assert.Equal(t, uint64(1536), handler.vectorSize)
}

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()
	collections := &mocks.CollectionManager{}

	handler := NewInitHandler(collections, 1536)

	result, err := handler.Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Equal(t, config.DatabasePath(tmpDir), result.DatabasePath)
	assert.Equal(t, "forklore_snapshots", result.CollectionName)
	assert.Equal(t, []uint64{1536}, collections.VectorSizes)

	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_WithoutSearch(t *testing.T) {
	tmpDir := t.TempDir()

	handler := NewInitHandler(nil, 0)

	result, err := handler.Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	assert.Empty(t, result.CollectionName)
	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()

	err := config.WriteDefault(tmpDir)
	require.NoError(t, err)

	collections := &mocks.CollectionManager{}
	handler := NewInitHandler(collections, 1536)

	_, err = handler.Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
	assert.Empty(t, collections.VectorSizes)
}

func TestInitHandler_Handle_CollectionError(t *testing.T) {
	tmpDir := t.TempDir()

	collections := &mocks.CollectionManager{
		EnsureErr: errors.New("connection failed"),
	}

	handler := NewInitHandler(collections, 1536)

	_, err := handler.Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating collection")
	assert.Contains(t, err.Error(), "connection failed")
}
