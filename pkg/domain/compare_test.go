package domain

import (
	"testing"
	"time"
)

func TestEqualIsTypeSensitive(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"string vs int", "1", int64(1), false},
		{"int vs float", int64(1), float64(1), false},
		{"equal strings", "a", "a", true},
		{"equal ints", int64(7), int64(7), true},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"equal times", time.Unix(100, 0), time.Unix(100, 0).UTC(), true},
		{"geo points", GeoPoint{Longitude: 1, Latitude: 2}, GeoPoint{Longitude: 1, Latitude: 2}, true},
		{"encoded values", EncodedValue{Data: []byte{1, 2}}, EncodedValue{Data: []byte{1, 2}}, true},
		{"encoded values differ", EncodedValue{Data: []byte{1, 2}}, EncodedValue{Data: []byte{1, 3}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCompareNaturalOrdering(t *testing.T) {
	cases := []struct {
		name   string
		a, b   any
		want   int
		wantOK bool
	}{
		{"ints", int64(1), int64(2), -1, true},
		{"floats", 2.5, 1.5, 1, true},
		{"strings", "a", "a", 0, true},
		{"bools", false, true, -1, true},
		{"local times", MustLocalTime(8, 0, 0), MustLocalTime(9, 0, 0), -1, true},
		{"mixed kinds", int64(1), "1", 0, false},
		{"unordered kind", GeoPoint{}, GeoPoint{}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Compare(tc.a, tc.b)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Compare(%v, %v) = (%d, %v), want (%d, %v)", tc.a, tc.b, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}
