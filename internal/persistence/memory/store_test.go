package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/activities/internal/domain"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.UpsertUser(context.Background(), "owner", "ona"))
	require.NoError(t, s.UpsertUser(context.Background(), "fan", "pau"))
	return s
}

func activity(id, city string) domain.Activity {
	return domain.Activity{ID: id, OwnerID: "owner", Name: id, City: city, CreatedAt: time.Now().UTC()}
}

func TestCreateAppendsToOwner(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))
	require.NoError(t, s.CreateForOwner(ctx, activity("a2", "Madrid")))

	owner, err := s.GetUser(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, owner.Activities)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "a2", list[1].ID)
}

func TestCreateUnknownOwner(t *testing.T) {
	s := NewStore()
	err := s.CreateForOwner(context.Background(), activity("a1", "Barcelona"))
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	got, err := s.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateAppliesPatch(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))

	city := "Sitges"
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Update(ctx, "a1", domain.ActivityPatch{City: &city}, at))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Sitges", got.City)
	assert.Equal(t, "a1", got.Name)
	assert.Equal(t, at, got.UpdatedAt)

	require.ErrorIs(t, s.Update(ctx, "ghost", domain.ActivityPatch{City: &city}, at), domain.ErrActivityNotFound)
}

func TestFavourites(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))
	require.NoError(t, s.CreateForOwner(ctx, activity("a2", "Madrid")))

	require.NoError(t, s.AddFavourite(ctx, "fan", "a2"))
	require.NoError(t, s.AddFavourite(ctx, "fan", "a1"))
	require.ErrorIs(t, s.AddFavourite(ctx, "fan", "a1"), domain.ErrAlreadyFavourite)
	require.ErrorIs(t, s.AddFavourite(ctx, "ghost", "a1"), domain.ErrUserNotFound)

	favs, err := s.ListFavourites(ctx, "fan")
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, "a2", favs[0].ID)
	assert.Equal(t, "a1", favs[1].ID)

	none, err := s.ListFavourites(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRemovesReferences(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))
	require.NoError(t, s.AddFavourite(ctx, "fan", "a1"))

	require.NoError(t, s.Delete(ctx, "a1", "owner"))
	require.ErrorIs(t, s.Delete(ctx, "a1", "owner"), domain.ErrActivityNotFound)

	owner, _ := s.GetUser(ctx, "owner")
	fan, _ := s.GetUser(ctx, "fan")
	assert.Empty(t, owner.Activities)
	assert.Empty(t, fan.Favourites)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetUserReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))

	u, err := s.GetUser(ctx, "owner")
	require.NoError(t, err)
	u.Activities[0] = "tampered"

	again, _ := s.GetUser(ctx, "owner")
	assert.Equal(t, "a1", again.Activities[0])
}

func TestConcurrentFavouritesAddOnce(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.CreateForOwner(ctx, activity("a1", "Barcelona")))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AddFavourite(ctx, "fan", "a1")
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, domain.ErrAlreadyFavourite)
		}
	}
	assert.Equal(t, 1, ok)

	fan, _ := s.GetUser(ctx, "fan")
	assert.Equal(t, []string{"a1"}, fan.Favourites)
}
