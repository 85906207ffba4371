package visibility

import (
	"fmt"
	"strings"
)

// Tier is a discrete crescent visibility class.
type Tier int

const (
	NotVisible Tier = iota
	VisibleWithOpticalAid
	VisibleUnderGoodConditions
	EasilyVisible
)

// Tiers lists every tier, easiest first.
var Tiers = []Tier{EasilyVisible, VisibleUnderGoodConditions, VisibleWithOpticalAid, NotVisible}

var tierNames = map[Tier]string{
	EasilyVisible:              "EASILY_VISIBLE",
	VisibleUnderGoodConditions: "VISIBLE_UNDER_GOOD_CONDITIONS",
	VisibleWithOpticalAid:      "VISIBLE_WITH_OPTICAL_AID",
	NotVisible:                 "NOT_VISIBLE",
}

// String returns the upper snake case tier identifier.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Label returns a short human readable description.
func (t Tier) Label() string {
	switch t {
	case EasilyVisible:
		return "Easily visible"
	case VisibleUnderGoodConditions:
		return "Visible under perfect conditions"
	case VisibleWithOpticalAid:
		return "Needs optical aid"
	default:
		return "Not visible"
	}
}

// Color returns the display color as a hex RGB string.
func (t Tier) Color() string {
	switch t {
	case EasilyVisible:
		return "#00FF00"
	case VisibleUnderGoodConditions:
		return "#FF00FF"
	case VisibleWithOpticalAid:
		return "#0055FF"
	default:
		return "#808080"
	}
}

// Visible reports whether the crescent can be seen at all, with or without aid.
func (t Tier) Visible() bool {
	return t != NotVisible
}

// ParseTier accepts the identifier produced by String, case-insensitively.
func ParseTier(s string) (Tier, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == want {
			return tier, nil
		}
	}
	return NotVisible, fmt.Errorf("unknown visibility tier %q", s)
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
