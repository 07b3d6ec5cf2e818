// Package mongostore stores activities and user lists in the MongoDB
// activities and users collections.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
)

const (
	activitiesCollection = "activities"
	usersCollection      = "users"
)

type activityDocument struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner"`
	Name        string    `bson:"name"`
	Country     string    `bson:"country"`
	City        string    `bson:"city"`
	Address     string    `bson:"address"`
	Type        string    `bson:"type"`
	Price       float64   `bson:"price"`
	PhotoURL    string    `bson:"photo_url,omitempty"`
	Reservation string    `bson:"reservation,omitempty"`
	Description string    `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d activityDocument) toDomain() domain.Activity {
	return domain.Activity{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Country:     d.Country,
		City:        d.City,
		Address:     d.Address,
		Type:        d.Type,
		Price:       d.Price,
		PhotoURL:    d.PhotoURL,
		Reservation: d.Reservation,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func fromDomain(a domain.Activity) activityDocument {
	return activityDocument{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Name:        a.Name,
		Country:     a.Country,
		City:        a.City,
		Address:     a.Address,
		Type:        a.Type,
		Price:       a.Price,
		PhotoURL:    a.PhotoURL,
		Reservation: a.Reservation,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type userDocument struct {
	ID         string   `bson:"_id"`
	Username   string   `bson:"username"`
	Activities []string `bson:"activities"`
	Favourites []string `bson:"favourites"`
}

// Store implements domain.ActivityRepository on a MongoDB database.
// Multi-document operations are sequential writes without a transaction;
// a failure after the first write is reported as a partial PersistenceError.
type Store struct {
	activities *mongo.Collection
	users      *mongo.Collection
}

var _ domain.ActivityRepository = (*Store)(nil)

// NewStore constructs a Store on db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		activities: db.Collection(activitiesCollection),
		users:      db.Collection(usersCollection),
	}
}

// Connect dials uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the secondary indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.activities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "city", Value: 1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "favourites", Value: 1}}})
	return err
}

// UpsertUser creates or renames a user profile.
func (s *Store) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":         bson.M{"username": username},
			"$setOnInsert": bson.M{"activities": bson.A{}, "favourites": bson.A{}},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// CreateForOwner inserts the activity, then pushes its id onto the owner's list.
func (s *Store) CreateForOwner(ctx context.Context, activity domain.Activity) (err error) {
	defer func() { observability.RecordMutation("create", err) }()

	if err := s.users.FindOne(ctx, bson.M{"_id": activity.OwnerID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrUserNotFound
		}
		return err
	}

	if _, err := s.activities.InsertOne(ctx, fromDomain(activity)); err != nil {
		return err
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": activity.OwnerID}, bson.M{"$push": bson.M{"activities": activity.ID}})
	if err == nil && res.MatchedCount == 0 {
		err = domain.ErrUserNotFound
	}
	if err != nil {
		return &domain.PersistenceError{Op: "append owner activity", Partial: true, Err: err}
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get implements domain.ActivityRepository.
func (s *Store) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	var doc activityDocument
	if err := s.activities.FindOne(ctx, bson.M{"_id": activityID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

// List implements domain.ActivityRepository.
func (s *Store) List(ctx context.Context) ([]domain.Activity, error) {
	cur, err := s.activities.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeActivities(ctx, cur)
}

// Update applies the patch with $set.
func (s *Store) Update(ctx context.Context, activityID string, patch domain.ActivityPatch, updatedAt time.Time) (err error) {
	defer func() { observability.RecordMutation("update", err) }()

	set := bson.M{"updated_at": updatedAt}
	for _, c := range patch.Changes() {
		set[c.Field] = c.Value
	}
	res, err := s.activities.UpdateOne(ctx, bson.M{"_id": activityID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrActivityNotFound
	}
	observability.RecordActivityPersisted(updatedAt)
	return nil
}

// Delete removes the activity, then pulls it from the owner and every favourites list.
func (s *Store) Delete(ctx context.Context, activityID, ownerID string) (err error) {
	defer func() { observability.RecordMutation("delete", err) }()

	res, err := s.activities.DeleteOne(ctx, bson.M{"_id": activityID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrActivityNotFound
	}

	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": ownerID}, bson.M{"$pull": bson.M{"activities": activityID}}); err != nil {
		return &domain.PersistenceError{Op: "pull owner activity", Partial: true, Err: err}
	}
	if _, err := s.users.UpdateMany(ctx, bson.M{"favourites": activityID}, bson.M{"$pull": bson.M{"favourites": activityID}}); err != nil {
		return &domain.PersistenceError{Op: "pull favourites", Partial: true, Err: err}
	}
	return nil
}

// GetUser implements domain.ActivityRepository.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.User{ID: doc.ID, Username: doc.Username, Activities: doc.Activities, Favourites: doc.Favourites}, nil
}

// AddFavourite pushes activityID unless the user already has it.
func (s *Store) AddFavourite(ctx context.Context, userID, activityID string) (err error) {
	defer func() { observability.RecordMutation("add_favourite", err) }()

	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "favourites": bson.M{"$ne": activityID}},
		bson.M{"$push": bson.M{"favourites": activityID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrAlreadyFavourite
	}
	return domain.ErrUserNotFound
}

// ListFavourites returns the user's favourites in the order they were added.
func (s *Store) ListFavourites(ctx context.Context, userID string) ([]domain.Activity, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || len(user.Favourites) == 0 {
		return []domain.Activity{}, nil
	}

	cur, err := s.activities.Find(ctx, bson.M{"_id": bson.M{"$in": user.Favourites}})
	if err != nil {
		return nil, err
	}
	found, err := decodeActivities(ctx, cur)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Activity, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]domain.Activity, 0, len(user.Favourites))
	for _, id := range user.Favourites {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func decodeActivities(ctx context.Context, cur *mongo.Cursor) ([]domain.Activity, error) {
	defer cur.Close(ctx)

	out := make([]domain.Activity, 0)
	for cur.Next(ctx) {
		var doc activityDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
