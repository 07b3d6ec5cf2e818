package domain

import (
	"math"
	"strings"
	"time"
)

// DefaultReferenceCity is the city listings are ranked against unless configured otherwise.
const DefaultReferenceCity = "Barcelona"

// ActivityTypes are the categories offered by the create form.
var ActivityTypes = []string{"culture", "food", "nature", "nightlife", "sport", "other"}

// Activity is a user-submitted thing to do in a city.
type Activity struct {
	ID          string
	Name        string
	Country     string
	City        string
	Address     string
	Type        string
	Price       float64
	PhotoURL    string
	Reservation string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the slice of a user profile this service reads and appends to.
// Profiles themselves are created by the identity service.
type User struct {
	ID         string
	Username   string
	Activities []string
	Favourites []string
}

// HasFavourite reports whether activityID is already in the user's favourites.
func (u User) HasFavourite(activityID string) bool {
	for _, id := range u.Favourites {
		if id == activityID {
			return true
		}
	}
	return false
}

// Owner is the populated owner reference shown with activity details.
type Owner struct {
	ID       string
	Username string
}

// ActivityDetails is an activity with its owner populated.
type ActivityDetails struct {
	Activity
	Owner Owner
}

// RankedActivity annotates an activity with its distance from the reference city.
// Activities located in the reference city carry a zero distance.
type RankedActivity struct {
	Activity
	DistanceKm float64
}

// Actor identifies the caller of an operation.
type Actor struct {
	UserID string
}

// CreateActivityInput captures the payload for a new activity.
type CreateActivityInput struct {
	Name        string
	Country     string
	City        string
	Address     string
	Type        string
	Price       float64
	PhotoURL    string
	Reservation string
	Description string
}

// Validate checks the required create fields.
func (in CreateActivityInput) Validate() error {
	verr := &ValidationError{}
	required := map[string]string{
		"name":    in.Name,
		"country": in.Country,
		"city":    in.City,
		"address": in.Address,
		"type":    in.Type,
	}
	for _, field := range RequiredCreateFields {
		value, ok := required[field]
		if ok && strings.TrimSpace(value) == "" {
			verr.add(field, "is required")
		}
	}
	if !validPrice(in.Price) {
		verr.add("price", "must be a finite number >= 0")
	}
	return verr.orNil()
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

// RequiredCreateFields lists the fields the create form must supply.
var RequiredCreateFields = []string{"name", "country", "city", "address", "type", "price"}

// ActivityPatch carries the fields of an edit. Nil fields are left untouched.
type ActivityPatch struct {
	Name        *string
	Country     *string
	City        *string
	Address     *string
	Type        *string
	Price       *float64
	PhotoURL    *string
	Reservation *string
	Description *string
}

// FieldChange is a single field set by a patch.
type FieldChange struct {
	Field string
	Value any
}

// Changes returns the set fields with their new values, in a fixed order.
func (p ActivityPatch) Changes() []FieldChange {
	changes := make([]FieldChange, 0, 9)
	for _, f := range p.stringFields() {
		if f.value != nil {
			changes = append(changes, FieldChange{Field: f.name, Value: *f.value})
		}
	}
	if p.Price != nil {
		changes = append(changes, FieldChange{Field: "price", Value: *p.Price})
	}
	return changes
}

// Fields returns the names of the fields set on the patch, in a fixed order.
func (p ActivityPatch) Fields() []string {
	changes := p.Changes()
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	return fields
}

// IsEmpty reports whether the patch changes nothing.
func (p ActivityPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Validate rejects blank required fields and negative prices.
func (p ActivityPatch) Validate() error {
	verr := &ValidationError{}
	if p.IsEmpty() {
		verr.add("body", "no fields to update")
	}
	for _, f := range p.stringFields() {
		if f.value == nil || !f.required {
			continue
		}
		if strings.TrimSpace(*f.value) == "" {
			verr.add(f.name, "must not be blank")
		}
	}
	if p.Price != nil && !validPrice(*p.Price) {
		verr.add("price", "must be a finite number >= 0")
	}
	return verr.orNil()
}

// Apply copies the set fields onto a.
func (p ActivityPatch) Apply(a *Activity) {
	targets := map[string]*string{
		"name":        &a.Name,
		"country":     &a.Country,
		"city":        &a.City,
		"address":     &a.Address,
		"type":        &a.Type,
		"photo_url":   &a.PhotoURL,
		"reservation": &a.Reservation,
		"description": &a.Description,
	}
	for _, f := range p.stringFields() {
		if f.value != nil {
			*targets[f.name] = *f.value
		}
	}
	if p.Price != nil {
		a.Price = *p.Price
	}
}

type patchField struct {
	name     string
	value    *string
	required bool
}

func (p ActivityPatch) stringFields() []patchField {
	return []patchField{
		{"name", p.Name, true},
		{"country", p.Country, true},
		{"city", p.City, true},
		{"address", p.Address, true},
		{"type", p.Type, true},
		{"photo_url", p.PhotoURL, false},
		{"reservation", p.Reservation, false},
		{"description", p.Description, false},
	}
}
