package storage

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EntityID addresses a stored entity within one environment as a
// (type id, local id) pair. The string form "typeID-localID" is the
// opaque id handed to clients; it is only meaningful within the
// environment that produced it.
type EntityID struct {
	TypeID  int
	LocalID int64
}

func (id EntityID) String() string {
	return strconv.Itoa(id.TypeID) + "-" + strconv.FormatInt(id.LocalID, 10)
}

// ParseEntityID parses the opaque string form back into an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	typePart, localPart, ok := strings.Cut(s, "-")
	if !ok {
		return EntityID{}, fmt.Errorf("malformed entity id %q", s)
	}
	typeID, err := strconv.Atoi(typePart)
	if err != nil {
		return EntityID{}, fmt.Errorf("malformed entity id %q: %w", s, err)
	}
	localID, err := strconv.ParseInt(localPart, 10, 64)
	if err != nil {
		return EntityID{}, fmt.Errorf("malformed entity id %q: %w", s, err)
	}
	return EntityID{TypeID: typeID, LocalID: localID}, nil
}

func (id EntityID) less(other EntityID) bool {
	if id.TypeID != other.TypeID {
		return id.TypeID < other.TypeID
	}
	return id.LocalID < other.LocalID
}

func sortIDs(ids []EntityID) {
	slices.SortFunc(ids, func(a, b EntityID) int {
		if a.less(b) {
			return -1
		}
		if b.less(a) {
			return 1
		}
		return 0
	})
}
