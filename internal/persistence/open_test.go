package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activities/internal/config"
	"example.com/activities/internal/domain"
)

func TestOpenMemoryBackend(t *testing.T) {
	backend, err := Open(context.Background(), config.Config{StoreDriver: config.StoreMemory}, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, backend.Close(context.Background())) }()

	assert.Equal(t, config.StoreMemory, backend.Driver)
	assert.Nil(t, backend.Pool)

	ctx := context.Background()
	require.NoError(t, backend.Store.UpsertUser(ctx, "user-1", "ada"))
	require.NoError(t, backend.Store.CreateForOwner(ctx, domain.Activity{ID: "act-1", OwnerID: "user-1", City: "Madrid"}))

	user, err := backend.Store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"act-1"}, user.Activities)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreDriver: "sqlite"}, nil)
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}
