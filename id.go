package blazedb

import (
	"bytes"

	"github.com/google/uuid"
)

// ID is BlazeDB's 128-bit record identifier, a thin wrapper over
// google/uuid so the rest of the module never imports it directly.
type ID uuid.UUID

// NilID is the zero-value ID.
var NilID ID

// NewID mints a fresh random ID, retrying briefly on entropy-source error
// before giving up; generating an ID is never allowed to silently fail.
func NewID() ID {
	var err error
	for i := 0; i < 10; i++ {
		u, genErr := uuid.NewRandom()
		if genErr == nil {
			return ID(u)
		}
		err = genErr
	}
	panic(err)
}

// ParseID parses the canonical text form of an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, NewError(Unknown, err, s)
	}
	return ID(u), nil
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return bytes.Equal(id[:], NilID[:])
}

// String returns the canonical text representation.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Compare orders two IDs byte-wise, returning -1, 0, or 1 like
// bytes.Compare, for callers that need a deterministic order of IDs.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText and UnmarshalText let ID serialize as a plain string inside
// the JSON layout/page payloads instead of a byte array.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
