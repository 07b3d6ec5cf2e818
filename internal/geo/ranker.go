package geo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
)

// ErrPlaceNotFound is returned by a Geocoder that has no candidate for a place name.
var ErrPlaceNotFound = errors.New("place not found")

// Geocoder resolves a free-text place name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, place string) (Coordinate, error)
}

// GeocodingError aborts a ranking because City could not be resolved.
type GeocodingError struct {
	City string
	Err  error
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("geocoding %q: %v", e.City, e.Err)
}

func (e *GeocodingError) Unwrap() error { return e.Err }

// Ranker orders activities by ascending distance from a reference city.
// Lookups are sequential and memoised for a single call only.
type Ranker struct {
	geocoder Geocoder
	logger   *zap.Logger
}

// NewRanker constructs a Ranker.
func NewRanker(geocoder Geocoder, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{geocoder: geocoder, logger: logger}
}

var _ domain.Ranker = (*Ranker)(nil)

// Rank returns a new slice with activities in referenceCity first, in their
// original order, followed by the rest sorted by distance. The input slice is
// not modified. Any lookup failure fails the whole call.
func (r *Ranker) Rank(ctx context.Context, activities []domain.Activity, referenceCity string) ([]domain.RankedActivity, error) {
	ctx, span := otel.Tracer("activities/geo").Start(ctx, "Ranker.Rank")
	defer span.End()
	span.SetAttributes(
		attribute.String("reference_city", referenceCity),
		attribute.Int("activities", len(activities)),
	)

	start := time.Now()
	ranked, lookups, err := r.rank(ctx, activities, referenceCity)
	observability.RecordRanking(time.Since(start), lookups, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ranking failed")
		return nil, err
	}
	return ranked, nil
}

func (r *Ranker) rank(ctx context.Context, activities []domain.Activity, referenceCity string) ([]domain.RankedActivity, int, error) {
	ranked := make([]domain.RankedActivity, 0, len(activities))
	if len(activities) == 0 {
		return ranked, 0, nil
	}

	coords := make(map[string]Coordinate)
	resolve := func(city string) (Coordinate, error) {
		if c, ok := coords[city]; ok {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return Coordinate{}, &GeocodingError{City: city, Err: err}
		}
		c, err := r.geocoder.Resolve(ctx, city)
		if err != nil {
			return Coordinate{}, &GeocodingError{City: city, Err: err}
		}
		coords[city] = c
		return c, nil
	}

	origin, err := resolve(referenceCity)
	if err != nil {
		return nil, len(coords), err
	}

	for _, activity := range activities {
		entry := domain.RankedActivity{Activity: activity}
		if activity.City != referenceCity {
			c, err := resolve(activity.City)
			if err != nil {
				return nil, len(coords), err
			}
			entry.DistanceKm = Haversine(origin, c)
		}
		ranked = append(ranked, entry)
	}

	slices.SortStableFunc(ranked, func(a, b domain.RankedActivity) int {
		aHome := a.City == referenceCity
		bHome := b.City == referenceCity
		switch {
		case aHome && bHome:
			return 0
		case aHome:
			return -1
		case bHome:
			return 1
		}
		if a.DistanceKm < b.DistanceKm {
			return -1
		}
		if a.DistanceKm > b.DistanceKm {
			return 1
		}
		return 0
	})

	if ce := r.logger.Check(zap.DebugLevel, "activities ranked"); ce != nil {
		distances := make(map[string]float64, len(coords))
		for city, c := range coords {
			distances[city] = Haversine(origin, c)
		}
		ce.Write(
			zap.String("reference_city", referenceCity),
			zap.Int("lookups", len(coords)),
			zap.Any("distances_km", distances),
		)
	}

	return ranked, len(coords), nil
}
