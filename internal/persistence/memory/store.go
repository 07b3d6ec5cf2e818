// Package memory provides an in-process activity store for local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
)

// Store keeps activities and user lists in memory.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	order      []string
	users      map[string]*domain.User
}

var _ domain.ActivityRepository = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]domain.Activity),
		users:      make(map[string]*domain.User),
	}
}

// UpsertUser creates or renames a user profile.
func (s *Store) UpsertUser(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.Username = username
		return nil
	}
	s.users[userID] = &domain.User{ID: userID, Username: username}
	return nil
}

// CreateForOwner implements domain.ActivityRepository.
func (s *Store) CreateForOwner(_ context.Context, activity domain.Activity) (err error) {
	defer func() { observability.RecordMutation("create", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[activity.OwnerID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if _, exists := s.activities[activity.ID]; !exists {
		s.order = append(s.order, activity.ID)
	}
	s.activities[activity.ID] = activity
	owner.Activities = append(owner.Activities, activity.ID)
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get implements domain.ActivityRepository.
func (s *Store) Get(_ context.Context, activityID string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activity, ok := s.activities[activityID]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// List implements domain.ActivityRepository.
func (s *Store) List(_ context.Context) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Activity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.activities[id])
	}
	return out, nil
}

// Update implements domain.ActivityRepository.
func (s *Store) Update(_ context.Context, activityID string, patch domain.ActivityPatch, updatedAt time.Time) (err error) {
	defer func() { observability.RecordMutation("update", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	patch.Apply(&activity)
	activity.UpdatedAt = updatedAt
	s.activities[activityID] = activity
	observability.RecordActivityPersisted(updatedAt)
	return nil
}

// Delete implements domain.ActivityRepository.
func (s *Store) Delete(_ context.Context, activityID, ownerID string) (err error) {
	defer func() { observability.RecordMutation("delete", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[activityID]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(s.activities, activityID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == activityID })

	if owner, ok := s.users[ownerID]; ok {
		owner.Activities = slices.DeleteFunc(owner.Activities, func(id string) bool { return id == activityID })
	}
	for _, u := range s.users {
		u.Favourites = slices.DeleteFunc(u.Favourites, func(id string) bool { return id == activityID })
	}
	return nil
}

// GetUser implements domain.ActivityRepository.
func (s *Store) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	clone := domain.User{
		ID:         u.ID,
		Username:   u.Username,
		Activities: slices.Clone(u.Activities),
		Favourites: slices.Clone(u.Favourites),
	}
	return &clone, nil
}

// AddFavourite implements domain.ActivityRepository.
func (s *Store) AddFavourite(_ context.Context, userID, activityID string) (err error) {
	defer func() { observability.RecordMutation("add_favourite", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.HasFavourite(activityID) {
		return domain.ErrAlreadyFavourite
	}
	u.Favourites = append(u.Favourites, activityID)
	return nil
}

// ListFavourites implements domain.ActivityRepository.
func (s *Store) ListFavourites(_ context.Context, userID string) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []domain.Activity{}, nil
	}
	out := make([]domain.Activity, 0, len(u.Favourites))
	for _, id := range u.Favourites {
		if activity, ok := s.activities[id]; ok {
			out = append(out, activity)
		}
	}
	return out, nil
}
