package domain

import (
	"bytes"
	"strings"
	"time"
)

// Equal reports type-sensitive equality between two property values. A
// string "1" never equals the integer 1; values of different kinds are
// simply unequal, not coerced.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case GeoPoint:
		bv, ok := b.(GeoPoint)
		return ok && av == bv
	case LocalTime:
		bv, ok := b.(LocalTime)
		return ok && av == bv
	case LocalTimeRange:
		bv, ok := b.(LocalTimeRange)
		return ok && av == bv
	case EncodedValue:
		bv, ok := b.(EncodedValue)
		return ok && bytes.Equal(av.Data, bv.Data)
	}
	return false
}

// Compare orders two property values of the same kind under the value's
// natural ordering. The second return is false when the values are of
// different kinds or the kind has no natural ordering.
func Compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case LocalTime:
		bv, ok := b.(LocalTime)
		if !ok {
			return 0, false
		}
		as, bs := av.seconds(), bv.seconds()
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
