package domain

// AuthGate decides whether an actor may mutate an activity.
type AuthGate interface {
	AuthorizeMutation(actor Actor, activity Activity) error
}

// OwnerGate only lets the owner of an activity edit or delete it.
type OwnerGate struct{}

// AuthorizeMutation returns ErrForbidden unless actor owns activity.
func (OwnerGate) AuthorizeMutation(actor Actor, activity Activity) error {
	if actor.UserID == "" || actor.UserID != activity.OwnerID {
		return ErrForbidden
	}
	return nil
}
