package ephemeris

import (
	"encoding/json"
	"time"
)

// Occurrence is the result of an event search: either Present with an
// instant, or Absent when the event does not happen inside the search
// window (polar day or night, moon not rising that day).
//
// The zero value is Absent.
type Occurrence struct {
	at      time.Time
	present bool
}

// Present wraps a found instant.
func Present(t time.Time) Occurrence {
	return Occurrence{at: t, present: true}
}

// Absent reports that no event was found.
func Absent() Occurrence {
	return Occurrence{}
}

// Get returns the instant and whether it is present.
func (o Occurrence) Get() (time.Time, bool) {
	return o.at, o.present
}

// IsPresent reports whether the event was found.
func (o Occurrence) IsPresent() bool {
	return o.present
}

// String formats the instant in RFC 3339 UTC, or "absent".
func (o Occurrence) String() string {
	if !o.present {
		return "absent"
	}
	return o.at.UTC().Format(time.RFC3339)
}

// MarshalJSON encodes an absent occurrence as null.
func (o Occurrence) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.at.UTC())
}
