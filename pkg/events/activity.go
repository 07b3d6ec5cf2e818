// Package events defines the event payloads published for activities and favourites.
package events

import "time"

// Event types carried in the outbox and on Kafka.
const (
	TypeActivityCreated = "activity.created"
	TypeActivityUpdated = "activity.updated"
	TypeActivityDeleted = "activity.deleted"
	TypeFavouriteAdded  = "favourite.added"
)

// ActivityCreated is emitted when a user submits a new activity.
type ActivityCreated struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	Type       string    `json:"type"`
	Price      float64   `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityUpdated lists the fields changed by an owner edit.
type ActivityUpdated struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	Fields     []string  `json:"fields"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActivityDeleted is emitted once an owner removes an activity.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// FavouriteAdded records a user bookmarking an activity.
type FavouriteAdded struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	AddedAt    time.Time `json:"added_at"`
}
