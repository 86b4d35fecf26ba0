// Package versions holds the closed set of regulatory rule editions a query
// can be biased toward.
package versions

import (
	"strings"

	"github.com/pkg/errors"
)

// Version identifies one edition of the SEC climate disclosure rules.
// The zero value, None, means "no preference, prefer the most current".
type Version string

const (
	None         Version = ""
	Final2024    Version = "2024_final"
	Proposed2022 Version = "2022_proposed"
)

var ErrUnknownVersion = errors.New("unknown document version")

var all = []Version{None, Final2024, Proposed2022}

var labels = map[Version]string{
	None:         "All versions (prefer final rule)",
	Final2024:    "2024 Final Rule",
	Proposed2022: "2022 Proposed Rule",
}

// All returns every selectable filter value, None first.
func All() []Version {
	ret := make([]Version, len(all))
	copy(ret, all)
	return ret
}

// Parse maps a user supplied identifier to a Version. "", "none", "all" and
// "any" all select None.
func Parse(s string) (Version, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "none", "all", "any":
		return None, nil
	default:
		if Version(v).Valid() {
			return Version(v), nil
		}
		return None, errors.Wrapf(ErrUnknownVersion, "%q", s)
	}
}

func (v Version) Valid() bool {
	_, ok := labels[v]
	return ok
}

func (v Version) Label() string {
	if l, ok := labels[v]; ok {
		return l
	}
	return string(v)
}

// Next cycles through All, wrapping around to None.
func (v Version) Next() Version {
	for i, candidate := range all {
		if candidate == v {
			return all[(i+1)%len(all)]
		}
	}
	return None
}

// Pointer returns the wire form of the filter: nil for None so it encodes as
// JSON null.
func (v Version) Pointer() *string {
	if v == None {
		return nil
	}
	s := string(v)
	return &s
}

func (v Version) String() string {
	if v == None {
		return "none"
	}
	return string(v)
}
