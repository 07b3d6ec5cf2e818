package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	barcelona = Coordinate{Lat: 41.3874, Lon: 2.1686}
	madrid    = Coordinate{Lat: 40.4168, Lon: -3.7038}
	paris     = Coordinate{Lat: 48.8566, Lon: 2.3522}
)

func TestHaversineQuarterMeridian(t *testing.T) {
	d := Haversine(Coordinate{Lat: 0, Lon: 0}, Coordinate{Lat: 0, Lon: 90})
	require.InDelta(t, EarthRadiusKm*math.Pi/2, d, 0.1)
	require.InDelta(t, 10007.5, d, 0.1)
}

func TestHaversineSamePointIsZero(t *testing.T) {
	for _, c := range []Coordinate{barcelona, madrid, {Lat: -89.9, Lon: 179.9}, {}} {
		require.InDelta(t, 0, Haversine(c, c), 1e-9)
	}
}

func TestHaversineIsSymmetric(t *testing.T) {
	points := []Coordinate{
		barcelona, madrid, paris,
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 64.1466, Lon: -21.9426},
		{Lat: 0, Lon: 180},
		{Lat: 0, Lon: -180},
	}
	for _, a := range points {
		for _, b := range points {
			require.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
		}
	}
}

func TestHaversineKnownCities(t *testing.T) {
	require.InDelta(t, 505, Haversine(barcelona, madrid), 5)
	require.InDelta(t, 831, Haversine(barcelona, paris), 5)
}

func TestHaversineAntipodes(t *testing.T) {
	half := EarthRadiusKm * math.Pi
	for lat := -89.5; lat <= 89.5; lat += 0.37 {
		for lon := -180.0; lon <= 180.0; lon += 0.53 {
			d := Haversine(Coordinate{Lat: lat, Lon: lon}, Coordinate{Lat: -lat, Lon: lon + 180})
			require.False(t, math.IsNaN(d), "NaN distance at lat=%v lon=%v", lat, lon)
			require.InDelta(t, half, d, 0.5)
		}
	}
	require.InDelta(t, 20015, half, 1)
}
