// Package api exposes HTTP handlers for the activities service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/activities/internal/auth"
	"example.com/activities/internal/domain"
)

const (
	maxBodyBytes = 1 << 20

	profilePath    = "/profile"
	activitiesPath = "/activities"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /activities", h.authorized(h.listActivities))
	mux.HandleFunc("POST /activities", h.authorized(h.createActivity))
	mux.HandleFunc("GET /activities/create-options", h.authorized(h.createOptions))
	mux.HandleFunc("GET /activities/create", h.authorized(h.createForm))
	mux.HandleFunc("GET /activities/{activityId}/details", h.authorized(h.activityDetails))
	mux.HandleFunc("GET /activities/{activityId}/edit", h.authorized(h.editActivity))
	mux.HandleFunc("POST /activities/{activityId}/edit", h.authorized(h.updateActivity))
	mux.HandleFunc("POST /activities/{activityId}/delete", h.authorized(h.deleteActivity))

	mux.HandleFunc("GET /favourites", h.authorized(h.listFavourites))
	mux.HandleFunc("POST /favourites/{userId}/addFavourite/{activityId}", h.authorized(h.addFavourite))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actor domain.Actor)

// authorized resolves the actor from the bearer token and checks its scopes.
func (h *Handler) authorized(next actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !auth.Permits(claims, r.Method) {
			writeError(w, http.StatusForbidden, "forbidden", "insufficient scope")
			return
		}
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
			return
		}
		next(w, r, actor)
	}
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	ranked, err := h.service.ListRanked(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]RankedActivityView, 0, len(ranked))
	for _, item := range ranked {
		items = append(items, RankedActivityView{ActivityView: toActivityView(item.Activity), DistanceKm: item.DistanceKm})
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		ReferenceCity: h.service.ReferenceCity(),
		Items:         items,
	})
}

func (h *Handler) createOptions(w http.ResponseWriter, _ *http.Request, _ domain.Actor) {
	opts := h.service.CreateOptions()
	writeJSON(w, http.StatusOK, FormOptionsResponse{Title: opts.Title, Types: opts.Types})
}

func (h *Handler) createForm(w http.ResponseWriter, _ *http.Request, _ domain.Actor) {
	form := h.service.CreateForm()
	writeJSON(w, http.StatusOK, FormDescriptionResponse{Title: form.Title, Required: form.Required, Types: form.Types})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req ActivityRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	input, err := req.CreateInput()
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if _, err := h.service.CreateActivity(r.Context(), actor, input); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, profilePath, http.StatusSeeOther)
}

func (h *Handler) activityDetails(w http.ResponseWriter, r *http.Request, _ domain.Actor) {
	details, err := h.service.GetActivity(r.Context(), r.PathValue("activityId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityDetailsView{
		ActivityView: toActivityView(details.Activity),
		Owner:        OwnerView{ID: details.Owner.ID, Username: details.Owner.Username},
	})
}

func (h *Handler) editActivity(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	activity, err := h.service.GetActivityForEdit(r.Context(), actor, r.PathValue("activityId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	var req ActivityRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if _, err := h.service.UpdateActivity(r.Context(), actor, r.PathValue("activityId"), req.Patch()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, profilePath, http.StatusSeeOther)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	if err := h.service.DeleteActivity(r.Context(), actor, r.PathValue("activityId")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, profilePath, http.StatusSeeOther)
}

func (h *Handler) listFavourites(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	favourites, err := h.service.ListFavourites(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(favourites))
	for _, activity := range favourites {
		items = append(items, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, FavouritesResponse{Items: items})
}

func (h *Handler) addFavourite(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	err := h.service.AddFavourite(r.Context(), actor, r.PathValue("userId"), r.PathValue("activityId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	http.Redirect(w, r, activitiesPath, http.StatusSeeOther)
}

// ActivityRequest is the create and edit payload. Every field is optional at
// decode time; create enforces the required set, edit applies what is present.
type ActivityRequest struct {
	Name        *string  `json:"name"`
	Country     *string  `json:"country"`
	City        *string  `json:"city"`
	Address     *string  `json:"address"`
	Type        *string  `json:"type"`
	Price       *float64 `json:"price"`
	PhotoURL    *string  `json:"photo_url"`
	Reservation *string  `json:"reservation"`
	Description *string  `json:"description"`
}

// CreateInput converts the request into a create input. A missing price is a
// validation failure rather than a silent zero.
func (r ActivityRequest) CreateInput() (domain.CreateActivityInput, error) {
	if r.Price == nil {
		return domain.CreateActivityInput{}, &domain.ValidationError{Fields: map[string]string{"price": "is required"}}
	}
	return domain.CreateActivityInput{
		Name:        deref(r.Name),
		Country:     deref(r.Country),
		City:        deref(r.City),
		Address:     deref(r.Address),
		Type:        deref(r.Type),
		Price:       *r.Price,
		PhotoURL:    deref(r.PhotoURL),
		Reservation: deref(r.Reservation),
		Description: deref(r.Description),
	}, nil
}

// Patch converts the request into a partial update.
func (r ActivityRequest) Patch() domain.ActivityPatch {
	return domain.ActivityPatch{
		Name:        r.Name,
		Country:     r.Country,
		City:        r.City,
		Address:     r.Address,
		Type:        r.Type,
		Price:       r.Price,
		PhotoURL:    r.PhotoURL,
		Reservation: r.Reservation,
		Description: r.Description,
	}
}

// decodeRequest reads a JSON or urlencoded form body into req.
func decodeRequest(w http.ResponseWriter, r *http.Request, req *ActivityRequest) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			return bodyError(err, "unable to parse body")
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return bodyError(err, "unable to parse form")
	}
	form := r.PostForm
	fields := map[string]**string{
		"name":        &req.Name,
		"country":     &req.Country,
		"city":        &req.City,
		"address":     &req.Address,
		"type":        &req.Type,
		"photo_url":   &req.PhotoURL,
		"reservation": &req.Reservation,
		"description": &req.Description,
	}
	for key, dst := range fields {
		if values, ok := form[key]; ok && len(values) > 0 {
			value := values[0]
			*dst = &value
		}
	}
	if values, ok := form["price"]; ok && len(values) > 0 {
		price, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
		if err != nil {
			return &domain.ValidationError{Fields: map[string]string{"price": "must be a number"}}
		}
		req.Price = &price
	}
	return nil
}

func bodyError(err error, detail string) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return &requestError{detail: detail}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// requestError reports a body that could not be decoded at all.
type requestError struct {
	detail string
}

func (e *requestError) Error() string { return fmt.Sprintf("invalid request: %s", e.detail) }

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	Address     string    `json:"address"`
	Type        string    `json:"type"`
	Price       float64   `json:"price"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Reservation string    `json:"reservation,omitempty"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RankedActivityView adds the distance from the reference city.
type RankedActivityView struct {
	ActivityView
	DistanceKm float64 `json:"distance_km"`
}

// OwnerView is the populated owner of an activity.
type OwnerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ActivityDetailsView is an activity with its owner.
type ActivityDetailsView struct {
	ActivityView
	Owner OwnerView `json:"owner"`
}

// ListActivitiesResponse packages the ranked listing.
type ListActivitiesResponse struct {
	ReferenceCity string               `json:"reference_city"`
	Items         []RankedActivityView `json:"items"`
}

// FavouritesResponse packages the caller's favourites.
type FavouritesResponse struct {
	Items []ActivityView `json:"items"`
}

// FormOptionsResponse describes the create options page.
type FormOptionsResponse struct {
	Title string   `json:"title"`
	Types []string `json:"types"`
}

// FormDescriptionResponse describes the create form.
type FormDescriptionResponse struct {
	Title    string   `json:"title"`
	Required []string `json:"required"`
	Types    []string `json:"types"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:          a.ID,
		Name:        a.Name,
		Country:     a.Country,
		City:        a.City,
		Address:     a.Address,
		Type:        a.Type,
		Price:       a.Price,
		PhotoURL:    a.PhotoURL,
		Reservation: a.Reservation,
		Description: a.Description,
		OwnerID:     a.OwnerID,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
