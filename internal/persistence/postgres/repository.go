// Package postgres stores activities and user lists in Postgres and records
// domain events in the outbox table inside the same transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
	"example.com/activities/pkg/events"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	db  DB
	now func() time.Time
}

var _ domain.ActivityRepository = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const activityColumns = `activity_id, owner_id, name, country, city, address, type, price, photo_url, reservation, description, created_at, updated_at`

// CreateForOwner inserts the activity, appends it to the owner's list and
// records activity.created, all in one transaction.
func (r *Repository) CreateForOwner(ctx context.Context, a domain.Activity) (err error) {
	defer func() { observability.RecordMutation("create", err) }()

	err = r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET activities = array_append(activities, $1) WHERE user_id = $2`, a.ID, a.OwnerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		_, err = tx.Exec(ctx, `INSERT INTO activities (`+activityColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			a.ID, a.OwnerID, a.Name, a.Country, a.City, a.Address, a.Type, a.Price,
			a.PhotoURL, a.Reservation, a.Description, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxEvent{
			Type:        events.TypeActivityCreated,
			AggregateID: a.ID,
			OccurredAt:  a.CreatedAt,
			Payload: events.ActivityCreated{
				ActivityID: a.ID,
				OwnerID:    a.OwnerID,
				Name:       a.Name,
				Country:    a.Country,
				City:       a.City,
				Type:       a.Type,
				Price:      a.Price,
				CreatedAt:  a.CreatedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID. A missing activity yields nil, nil.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = $1`, activityID)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// List returns every activity in insertion order.
func (r *Repository) List(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY created_at, activity_id`)
	if err != nil {
		return nil, err
	}
	return collectActivities(rows)
}

// Update sets only the fields carried by patch and records activity.updated.
func (r *Repository) Update(ctx context.Context, activityID string, patch domain.ActivityPatch, updatedAt time.Time) (err error) {
	defer func() { observability.RecordMutation("update", err) }()

	changes := patch.Changes()
	if len(changes) == 0 {
		return nil
	}

	builder := sq.Update("activities").PlaceholderFormat(sq.Dollar)
	for _, c := range changes {
		builder = builder.Set(c.Field, c.Value)
	}
	query, args, err := builder.
		Set("updated_at", updatedAt).
		Where(sq.Eq{"activity_id": activityID}).
		Suffix("RETURNING owner_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	err = r.withTx(ctx, func(tx pgx.Tx) error {
		var ownerID string
		if err := tx.QueryRow(ctx, query, args...).Scan(&ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrActivityNotFound
			}
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			Type:        events.TypeActivityUpdated,
			AggregateID: activityID,
			OccurredAt:  updatedAt,
			Payload: events.ActivityUpdated{
				ActivityID: activityID,
				OwnerID:    ownerID,
				Fields:     patch.Fields(),
				UpdatedAt:  updatedAt,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(updatedAt)
	return nil
}

// Delete removes the activity and every reference to it from user lists.
func (r *Repository) Delete(ctx context.Context, activityID, ownerID string) (err error) {
	defer func() { observability.RecordMutation("delete", err) }()

	deletedAt := r.now().UTC()
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id = $1`, activityID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET activities = array_remove(activities, $1) WHERE user_id = $2`, activityID, ownerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET favourites = array_remove(favourites, $1) WHERE $1 = ANY(favourites)`, activityID); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			Type:        events.TypeActivityDeleted,
			AggregateID: activityID,
			OccurredAt:  deletedAt,
			Payload:     events.ActivityDeleted{ActivityID: activityID, OwnerID: ownerID, DeletedAt: deletedAt},
		})
	})
}

// GetUser loads a user's lists. A missing user yields nil, nil.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT user_id, username, activities, favourites FROM users WHERE user_id = $1`, userID)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Activities, &u.Favourites); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UpsertUser creates or renames a user profile. Profiles are owned by the
// identity provider; this exists for provisioning and local development.
func (r *Repository) UpsertUser(ctx context.Context, userID, username string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (user_id, username) VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`, userID, username)
	return err
}

// AddFavourite appends activityID to the user's favourites unless it is
// already present, and records favourite.added.
func (r *Repository) AddFavourite(ctx context.Context, userID, activityID string) (err error) {
	defer func() { observability.RecordMutation("add_favourite", err) }()

	addedAt := r.now().UTC()
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET favourites = array_append(favourites, $2)
        WHERE user_id = $1 AND NOT ($2 = ANY(favourites))`, userID, activityID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return domain.ErrAlreadyFavourite
			}
			return domain.ErrUserNotFound
		}
		return insertOutbox(ctx, tx, outboxEvent{
			Type:         events.TypeFavouriteAdded,
			AggregateID:  activityID,
			PartitionKey: userID,
			OccurredAt:   addedAt,
			DedupeSuffix: userID,
			Payload:      events.FavouriteAdded{ActivityID: activityID, UserID: userID, AddedAt: addedAt},
		})
	})
}

// ListFavourites returns the user's favourite activities in the order they were added.
func (r *Repository) ListFavourites(ctx context.Context, userID string) ([]domain.Activity, error) {
	rows, err := r.db.Query(ctx, `SELECT a.activity_id, a.owner_id, a.name, a.country, a.city, a.address, a.type, a.price,
            a.photo_url, a.reservation, a.description, a.created_at, a.updated_at
        FROM users u
        CROSS JOIN LATERAL unnest(u.favourites) WITH ORDINALITY AS f(activity_id, pos)
        JOIN activities a ON a.activity_id = f.activity_id
        WHERE u.user_id = $1
        ORDER BY f.pos`, userID)
	if err != nil {
		return nil, err
	}
	return collectActivities(rows)
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Country, &a.City, &a.Address, &a.Type, &a.Price,
		&a.PhotoURL, &a.Reservation, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectActivities(rows pgx.Rows) ([]domain.Activity, error) {
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type outboxEvent struct {
	Type        string
	AggregateID string
	// PartitionKey defaults to AggregateID.
	PartitionKey string
	// DedupeSuffix distinguishes events of the same type on one aggregate.
	DedupeSuffix string
	OccurredAt   time.Time
	Payload      any
}

func insertOutbox(ctx context.Context, tx pgx.Tx, ev outboxEvent) error {
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[ev.Type]
	if !ok {
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}

	partitionKey := ev.PartitionKey
	if partitionKey == "" {
		partitionKey = ev.AggregateID
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", ev.AggregateID, ev.Type, ev.OccurredAt.UnixNano())
	if ev.DedupeSuffix != "" {
		dedupeKey += ":" + ev.DedupeSuffix
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		ev.AggregateID,
		ev.Type,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {AggregateType: "activity", Topic: "activity_events", SchemaSubject: "activity_events-activity.created"},
	events.TypeActivityUpdated: {AggregateType: "activity", Topic: "activity_events", SchemaSubject: "activity_events-activity.updated"},
	events.TypeActivityDeleted: {AggregateType: "activity", Topic: "activity_events", SchemaSubject: "activity_events-activity.deleted"},
	events.TypeFavouriteAdded:  {AggregateType: "favourite", Topic: "favourite_events", SchemaSubject: "favourite_events-value"},
}
