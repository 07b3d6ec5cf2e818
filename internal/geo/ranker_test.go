package geo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/activities/internal/domain"
)

type stubGeocoder struct {
	places map[string]Coordinate
	fail   map[string]error
	calls  map[string]int
	order  []string
}

func newStubGeocoder(places map[string]Coordinate) *stubGeocoder {
	return &stubGeocoder{places: places, fail: map[string]error{}, calls: map[string]int{}}
}

func (s *stubGeocoder) Resolve(_ context.Context, place string) (Coordinate, error) {
	s.calls[place]++
	s.order = append(s.order, place)
	if err, ok := s.fail[place]; ok {
		return Coordinate{}, err
	}
	c, ok := s.places[place]
	if !ok {
		return Coordinate{}, ErrPlaceNotFound
	}
	return c, nil
}

func europe() map[string]Coordinate {
	return map[string]Coordinate{
		"Barcelona": barcelona,
		"Madrid":    madrid,
		"Paris":     paris,
		"Girona":    {Lat: 41.9794, Lon: 2.8214},
		"Berlin":    {Lat: 52.52, Lon: 13.405},
		"Lisbon":    {Lat: 38.7223, Lon: -9.1393},
	}
}

func activitiesIn(cities ...string) []domain.Activity {
	out := make([]domain.Activity, len(cities))
	for i, city := range cities {
		out[i] = domain.Activity{ID: fmt.Sprintf("a%d", i), Name: city + " activity", City: city}
	}
	return out
}

func ids(ranked []domain.RankedActivity) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

func TestRankBarcelonaMadridParis(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, zaptest.NewLogger(t))

	input := activitiesIn("Barcelona", "Madrid", "Barcelona", "Paris")
	ranked, err := ranker.Rank(context.Background(), input, "Barcelona")
	require.NoError(t, err)

	// Madrid (~505 km) is closer to Barcelona than Paris (~831 km).
	assert.Equal(t, []string{"a0", "a2", "a1", "a3"}, ids(ranked))
	assert.Zero(t, ranked[0].DistanceKm)
	assert.Zero(t, ranked[1].DistanceKm)
	assert.InDelta(t, 505, ranked[2].DistanceKm, 5)
	assert.InDelta(t, 831, ranked[3].DistanceKm, 5)
}

func TestRankPartitionsReferenceCityFirst(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, nil)

	input := activitiesIn("Berlin", "Barcelona", "Girona", "Lisbon", "Barcelona", "Madrid", "Barcelona")
	ranked, err := ranker.Rank(context.Background(), input, "Barcelona")
	require.NoError(t, err)
	require.Len(t, ranked, len(input))

	seenOther := false
	for _, r := range ranked {
		if r.City == "Barcelona" {
			require.False(t, seenOther, "reference-city activity after a non-reference one")
			continue
		}
		seenOther = true
	}

	// reference-city activities keep their input order
	assert.Equal(t, []string{"a1", "a4", "a6"}, ids(ranked[:3]))

	for i := 4; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].DistanceKm, ranked[i].DistanceKm)
	}
	assert.Equal(t, []string{"a2", "a5", "a3", "a0"}, ids(ranked[3:]))
}

func TestRankResolvesEachCityOnce(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, nil)

	input := activitiesIn("Madrid", "Paris", "Madrid", "Barcelona", "Paris", "Madrid")
	_, err := ranker.Rank(context.Background(), input, "Barcelona")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Barcelona": 1, "Madrid": 1, "Paris": 1}, geocoder.calls)
	assert.Equal(t, []string{"Barcelona", "Madrid", "Paris"}, geocoder.order)
}

func TestRankDoesNotShareCacheAcrossCalls(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, nil)
	input := activitiesIn("Madrid", "Paris")

	for i := 0; i < 2; i++ {
		_, err := ranker.Rank(context.Background(), input, "Barcelona")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, geocoder.calls["Madrid"])
	assert.Equal(t, 2, geocoder.calls["Barcelona"])
}

func TestRankResolvesReferenceMissingFromInput(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, nil)

	ranked, err := ranker.Rank(context.Background(), activitiesIn("Paris", "Madrid"), "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a0"}, ids(ranked))
	assert.Equal(t, 1, geocoder.calls["Barcelona"])
}

func TestRankNotFoundFailsWholeCall(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranker := NewRanker(geocoder, nil)

	ranked, err := ranker.Rank(context.Background(), activitiesIn("Madrid", "Atlantis", "Paris"), "Barcelona")
	require.Error(t, err)
	assert.Nil(t, ranked)

	var gerr *GeocodingError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Atlantis", gerr.City)
	assert.ErrorIs(t, err, ErrPlaceNotFound)
	assert.Zero(t, geocoder.calls["Paris"], "ranking must stop at the first failure")
}

func TestRankUpstreamFailure(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	upstream := errors.New("mapbox: 503 Service Unavailable")
	geocoder.fail["Barcelona"] = upstream
	ranker := NewRanker(geocoder, nil)

	_, err := ranker.Rank(context.Background(), activitiesIn("Madrid"), "Barcelona")
	var gerr *GeocodingError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Barcelona", gerr.City)
	assert.ErrorIs(t, err, upstream)
}

func TestRankEmptyInputSkipsLookups(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ranked, err := NewRanker(geocoder, nil).Rank(context.Background(), nil, "Barcelona")
	require.NoError(t, err)
	assert.Empty(t, ranked)
	assert.Empty(t, geocoder.calls)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	input := activitiesIn("Paris", "Madrid", "Barcelona")
	snapshot := append([]domain.Activity(nil), input...)

	_, err := NewRanker(geocoder, nil).Rank(context.Background(), input, "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, snapshot, input)
}

func TestRankHonoursCancelledContext(t *testing.T) {
	geocoder := newStubGeocoder(europe())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRanker(geocoder, nil).Rank(ctx, activitiesIn("Madrid"), "Barcelona")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, geocoder.calls)
}
