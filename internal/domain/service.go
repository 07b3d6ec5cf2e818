// Package domain defines the business logic for the activities service.
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	// CreateForOwner stores the activity and appends its id to the owner's activity list.
	CreateForOwner(ctx context.Context, activity Activity) error
	Get(ctx context.Context, activityID string) (*Activity, error)
	List(ctx context.Context) ([]Activity, error)
	Update(ctx context.Context, activityID string, patch ActivityPatch, updatedAt time.Time) error
	Delete(ctx context.Context, activityID, ownerID string) error
	GetUser(ctx context.Context, userID string) (*User, error)
	AddFavourite(ctx context.Context, userID, activityID string) error
	ListFavourites(ctx context.Context, userID string) ([]Activity, error)
}

// Ranker orders activities by proximity to a reference city.
type Ranker interface {
	Rank(ctx context.Context, activities []Activity, referenceCity string) ([]RankedActivity, error)
}

// Service orchestrates activity workflows.
type Service struct {
	repo          ActivityRepository
	ranker        Ranker
	gate          AuthGate
	referenceCity string
	logger        *zap.Logger
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithReferenceCity overrides the city listings are ranked against.
func WithReferenceCity(city string) Option {
	return func(s *Service) {
		if strings.TrimSpace(city) != "" {
			s.referenceCity = city
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, ranker Ranker, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		ranker:        ranker,
		gate:          OwnerGate{},
		referenceCity: DefaultReferenceCity,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReferenceCity returns the city listings are ranked against.
func (s *Service) ReferenceCity() string {
	return s.referenceCity
}

// ListRanked returns every activity ordered by proximity to the reference city.
func (s *Service) ListRanked(ctx context.Context, actor Actor) ([]RankedActivity, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	activities, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapPersistence("list activities", err)
	}
	ranked, err := s.ranker.Rank(ctx, activities, s.referenceCity)
	if err != nil {
		s.logger.Warn("ranking activities failed",
			zap.String("reference_city", s.referenceCity),
			zap.Int("activities", len(activities)),
			zap.Error(err))
		return nil, err
	}
	return ranked, nil
}

// CreateActivity stores a new activity owned by the actor.
func (s *Service) CreateActivity(ctx context.Context, actor Actor, input CreateActivityInput) (*Activity, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	activity := Activity{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Country:     strings.TrimSpace(input.Country),
		City:        strings.TrimSpace(input.City),
		Address:     strings.TrimSpace(input.Address),
		Type:        strings.TrimSpace(input.Type),
		Price:       input.Price,
		PhotoURL:    strings.TrimSpace(input.PhotoURL),
		Reservation: strings.TrimSpace(input.Reservation),
		Description: strings.TrimSpace(input.Description),
		OwnerID:     actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateForOwner(ctx, activity); err != nil {
		s.logger.Error("create activity failed",
			zap.String("activity_id", activity.ID),
			zap.String("owner_id", actor.UserID),
			zap.Error(err))
		return nil, wrapPersistence("create activity", err)
	}

	s.logger.Info("activity created",
		zap.String("activity_id", activity.ID),
		zap.String("owner_id", actor.UserID),
		zap.String("city", activity.City))
	return &activity, nil
}

// GetActivity fetches an activity with its owner populated.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*ActivityDetails, error) {
	activity, err := s.get(ctx, activityID)
	if err != nil {
		return nil, err
	}

	details := &ActivityDetails{Activity: *activity, Owner: Owner{ID: activity.OwnerID}}
	owner, err := s.repo.GetUser(ctx, activity.OwnerID)
	if err != nil {
		return nil, wrapPersistence("get owner", err)
	}
	if owner != nil {
		details.Owner.Username = owner.Username
	}
	return details, nil
}

// GetActivityForEdit fetches an activity the actor is allowed to edit.
func (s *Service) GetActivityForEdit(ctx context.Context, actor Actor, activityID string) (*Activity, error) {
	activity, err := s.get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeMutation(actor, *activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// UpdateActivity applies an owner's edit.
func (s *Service) UpdateActivity(ctx context.Context, actor Actor, activityID string, patch ActivityPatch) (*Activity, error) {
	activity, err := s.GetActivityForEdit(ctx, actor, activityID)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	updatedAt := s.now().UTC()
	if err := s.repo.Update(ctx, activityID, patch, updatedAt); err != nil {
		return nil, wrapPersistence("update activity", err)
	}

	patch.Apply(activity)
	activity.UpdatedAt = updatedAt
	s.logger.Info("activity updated",
		zap.String("activity_id", activityID),
		zap.Strings("fields", patch.Fields()))
	return activity, nil
}

// DeleteActivity removes an activity owned by the actor.
func (s *Service) DeleteActivity(ctx context.Context, actor Actor, activityID string) error {
	activity, err := s.GetActivityForEdit(ctx, actor, activityID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, activityID, activity.OwnerID); err != nil {
		return wrapPersistence("delete activity", err)
	}
	s.logger.Info("activity deleted", zap.String("activity_id", activityID))
	return nil
}

// ListFavourites returns the actor's favourite activities.
func (s *Service) ListFavourites(ctx context.Context, actor Actor) ([]Activity, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthenticated
	}
	favourites, err := s.repo.ListFavourites(ctx, actor.UserID)
	if err != nil {
		return nil, wrapPersistence("list favourites", err)
	}
	return favourites, nil
}

// AddFavourite bookmarks an activity for the actor. userID comes from the
// route and must name the actor. Adding the same activity twice returns
// ErrAlreadyFavourite.
func (s *Service) AddFavourite(ctx context.Context, actor Actor, userID, activityID string) error {
	if actor.UserID == "" {
		return ErrUnauthenticated
	}
	if userID != actor.UserID {
		return ErrForbidden
	}
	if _, err := s.get(ctx, activityID); err != nil {
		return err
	}
	if err := s.repo.AddFavourite(ctx, actor.UserID, activityID); err != nil {
		return wrapPersistence("add favourite", err)
	}
	s.logger.Info("favourite added",
		zap.String("user_id", actor.UserID),
		zap.String("activity_id", activityID))
	return nil
}

// FormOptions describes the choices shown before creating an activity.
type FormOptions struct {
	Title string
	Types []string
}

// CreateOptions returns the options offered by the create flow.
func (s *Service) CreateOptions() FormOptions {
	types := make([]string, len(ActivityTypes))
	copy(types, ActivityTypes)
	return FormOptions{Title: "Activities", Types: types}
}

// FormDescription describes the payload the create flow expects.
type FormDescription struct {
	Title    string
	Required []string
	Types    []string
}

// CreateForm returns the required fields and allowed types for create.
func (s *Service) CreateForm() FormDescription {
	opts := s.CreateOptions()
	required := make([]string, len(RequiredCreateFields))
	copy(required, RequiredCreateFields)
	return FormDescription{Title: opts.Title, Required: required, Types: opts.Types}
}

func (s *Service) get(ctx context.Context, activityID string) (*Activity, error) {
	if strings.TrimSpace(activityID) == "" {
		return nil, ErrActivityNotFound
	}
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, wrapPersistence("get activity", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}
