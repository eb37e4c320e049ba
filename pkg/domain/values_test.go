package domain

import "testing"

func TestNewGeoPointValidation(t *testing.T) {
	cases := []struct {
		name      string
		longitude float64
		latitude  float64
		wantErr   bool
	}{
		{"valid", 120.976171, 14.580919, false},
		{"boundary", 180, -90, false},
		{"latitude high", 0, 90.1, true},
		{"latitude low", 0, -90.1, true},
		{"longitude high", 180.1, 0, true},
		{"longitude low", -180.1, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGeoPoint(tc.longitude, tc.latitude)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewGeoPoint(%v, %v) err=%v, wantErr=%v", tc.longitude, tc.latitude, err, tc.wantErr)
			}
		})
	}
}

func TestNewLocalTimeValidation(t *testing.T) {
	if _, err := NewLocalTime(24, 0, 0); err == nil {
		t.Fatal("expected error for hour 24")
	}
	if _, err := NewLocalTime(0, 60, 0); err == nil {
		t.Fatal("expected error for minute 60")
	}
	if _, err := NewLocalTime(0, 0, 60); err == nil {
		t.Fatal("expected error for second 60")
	}
	got, err := NewLocalTime(23, 59, 59)
	if err != nil {
		t.Fatalf("NewLocalTime: %v", err)
	}
	if got.String() != "23:59:59" {
		t.Fatalf("String() = %q", got.String())
	}
}

func TestLocalTimeRangeOverlaps(t *testing.T) {
	query := LocalTimeRange{Lower: MustLocalTime(10, 0, 0), Upper: MustLocalTime(11, 0, 0)}
	cases := []struct {
		name   string
		stored LocalTimeRange
		want   bool
	}{
		{"enclosing", LocalTimeRange{MustLocalTime(7, 0, 0), MustLocalTime(18, 0, 0)}, true},
		{"overlapping", LocalTimeRange{MustLocalTime(8, 0, 0), MustLocalTime(22, 0, 0)}, true},
		{"disjoint before", LocalTimeRange{MustLocalTime(1, 0, 0), MustLocalTime(6, 0, 0)}, false},
		{"disjoint after", LocalTimeRange{MustLocalTime(12, 0, 0), MustLocalTime(13, 0, 0)}, false},
		{"touching lower bound", LocalTimeRange{MustLocalTime(9, 0, 0), MustLocalTime(10, 0, 0)}, true},
		{"touching upper bound", LocalTimeRange{MustLocalTime(11, 0, 0), MustLocalTime(12, 0, 0)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.stored.Overlaps(query); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.stored, query, got, tc.want)
			}
			if got := query.Overlaps(tc.stored); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %v", tc.stored)
			}
		})
	}
}

func TestNewLocalTimeRangeOrdering(t *testing.T) {
	if _, err := NewLocalTimeRange(MustLocalTime(12, 0, 0), MustLocalTime(11, 0, 0)); err == nil {
		t.Fatal("expected error for inverted bounds")
	}
}
