// Package idx mints the ULID identifiers loginkit attaches to things it
// must tell apart later: session rows in the store and per-login flow
// correlation ids in logs. ULIDs sort by creation time, so store listings
// and log greps line up chronologically for free.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in its canonical 26-character string form.
type ID string

// Zero is the absent id. New store records carry Zero until the store
// assigns them a real one.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

// entropy feeds every generated id. Monotonic within a millisecond so ids
// minted back to back still sort in mint order; locked so concurrent callers
// can share it.
var entropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.Reader, 0),
}

// New mints an ID stamped with the current UTC time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt mints an ID stamped with the given time. Tests use it to fabricate
// ids with a known ordering.
func NewAt(t time.Time) ID {
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// MustNew mints an ID, panicking if the entropy source ever yields an empty
// one. Callers treat id generation as infallible.
func MustNew() ID {
	id := New()
	if id.IsZero() {
		panic("idx: failed to generate ULID")
	}
	return id
}

// Parse validates s as a canonical ULID and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}

	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}

	return ID(s), nil
}

// MustParse is Parse for hard-coded ids, panicking on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether id is the absent value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical 26-character form.
func (id ID) String() string { return string(id) }

// Time returns the UTC timestamp embedded in the id, or the zero time when
// the id is zero or malformed.
func (id ID) Time() time.Time {
	if id.IsZero() {
		return time.Time{}
	}

	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}

	// ULID time component is ms since epoch.
	return ulid.Time(u.Time())
}
