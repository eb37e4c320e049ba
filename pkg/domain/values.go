package domain

import (
	"fmt"
	"time"
)

// NamespaceProperty is the reserved property name that implements logical
// namespacing within an environment. Entities carrying the same value for
// this property belong to the same namespace.
const NamespaceProperty = "____NAMESPACE____"

// GeoPoint is a longitude/latitude pair in degrees.
type GeoPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// NewGeoPoint validates coordinate ranges and returns the point.
func NewGeoPoint(longitude, latitude float64) (GeoPoint, error) {
	if latitude < -90 || latitude > 90 {
		return GeoPoint{}, fmt.Errorf("latitude %v out of range [-90, 90]", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return GeoPoint{}, fmt.Errorf("longitude %v out of range [-180, 180]", longitude)
	}
	return GeoPoint{Longitude: longitude, Latitude: latitude}, nil
}

// LocalTime is a wall-clock time of day without a date or zone.
type LocalTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

// NewLocalTime validates the components and returns the time of day.
func NewLocalTime(hour, minute, second int) (LocalTime, error) {
	if hour < 0 || hour > 23 {
		return LocalTime{}, fmt.Errorf("hour %d out of range [0, 23]", hour)
	}
	if minute < 0 || minute > 59 {
		return LocalTime{}, fmt.Errorf("minute %d out of range [0, 59]", minute)
	}
	if second < 0 || second > 59 {
		return LocalTime{}, fmt.Errorf("second %d out of range [0, 59]", second)
	}
	return LocalTime{Hour: hour, Minute: minute, Second: second}, nil
}

// MustLocalTime is NewLocalTime for constants in tests and fixtures.
func MustLocalTime(hour, minute, second int) LocalTime {
	t, err := NewLocalTime(hour, minute, second)
	if err != nil {
		panic(err)
	}
	return t
}

func (t LocalTime) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is strictly earlier in the day than other.
func (t LocalTime) Before(other LocalTime) bool { return t.seconds() < other.seconds() }

// After reports whether t is strictly later in the day than other.
func (t LocalTime) After(other LocalTime) bool { return t.seconds() > other.seconds() }

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// LocalTimeRange is a closed interval of wall-clock time.
type LocalTimeRange struct {
	Lower LocalTime `json:"lower"`
	Upper LocalTime `json:"upper"`
}

// NewLocalTimeRange validates ordering and returns the range.
func NewLocalTimeRange(lower, upper LocalTime) (LocalTimeRange, error) {
	if lower.After(upper) {
		return LocalTimeRange{}, fmt.Errorf("lower bound %s after upper bound %s", lower, upper)
	}
	return LocalTimeRange{Lower: lower, Upper: upper}, nil
}

// Overlaps reports whether the closed intervals [r.Lower, r.Upper] and
// [other.Lower, other.Upper] have a non-empty intersection. This is the
// single overlap definition used everywhere a time-range condition is
// evaluated.
func (r LocalTimeRange) Overlaps(other LocalTimeRange) bool {
	return !r.Upper.Before(other.Lower) && !other.Upper.Before(r.Lower)
}

// EmbeddedMap is a nested property value. Nested values are stored in an
// explicit structural encoding because the store's native comparison type
// system only supports flat scalars.
type EmbeddedMap map[string]any

// EmbeddedList is a nested ordered list property value.
type EmbeddedList []any

// EncodedValue wraps the structural encoding of an EmbeddedMap or
// EmbeddedList as persisted by the storage engine. It is opaque to the
// store and compared by its raw bytes.
type EncodedValue struct {
	Data []byte
}

// ValidValue reports whether v belongs to the closed scalar set accepted
// as a property value. A nil value is valid and means "delete the
// property" on write.
func ValidValue(v any) bool {
	switch v.(type) {
	case nil, string, int64, float64, bool, time.Time,
		GeoPoint, LocalTime, LocalTimeRange, EmbeddedMap, EmbeddedList, EncodedValue:
		return true
	}
	return false
}
