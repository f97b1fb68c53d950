package domain

import (
	"strings"
	"time"
)

// DropReason explains why a raw location did not resolve to a tracked entity.
type DropReason string

const (
	DropEmptyLocation   DropReason = "empty location"
	DropUnknownRegion   DropReason = "unknown region code"
	DropUntrackedEntity DropReason = "entity not tracked"
)

// Resolution is the tagged outcome of resolving one raw location string:
// either a canonical Key, or a drop Reason.
type Resolution struct {
	Key    string
	Reason DropReason
}

// Dropped reports whether the location was rejected.
func (r Resolution) Dropped() bool { return r.Reason != "" }

func resolved(key string) Resolution        { return Resolution{Key: key} }
func dropped(reason DropReason) Resolution { return Resolution{Reason: reason} }

// Fixup redirects raw strings containing any of Contains to Target, on Date only.
type Fixup struct {
	Date     time.Time
	Contains []string
	Target   string
}

// Vessel routes any location mentioning Name to the repatriated entity Key.
type Vessel struct {
	Name string
	Key  string
}

// ResolverRules is the alias data a Resolver applies. It is static for a run.
type ResolverRules struct {
	Fixups  []Fixup
	Vessels []Vessel
	// Exceptions map exact raw strings to keys ahead of region-code splitting,
	// e.g. "Virgin Islands, U.S." which is not "<place>, <code>".
	Exceptions map[string]string
	// Renames map historical or variant names to the canonical key.
	Renames map[string]string
}

// Resolver maps raw report locations to canonical entity keys.
type Resolver struct {
	fixups     map[time.Time][]Fixup
	vessels    []Vessel
	exceptions map[string]string
	renames    map[string]string
	regions    map[string]string
}

// NewResolver builds a Resolver. regions maps region codes ("CA") to full
// names ("California"); pass nil to disable "<place>, <code>" splitting,
// which world-level names such as "Korea, South" require.
func NewResolver(rules ResolverRules, regions map[string]string) *Resolver {
	r := &Resolver{
		fixups:     make(map[time.Time][]Fixup, len(rules.Fixups)),
		exceptions: foldKeys(rules.Exceptions),
		renames:    foldKeys(rules.Renames),
	}
	for _, f := range rules.Fixups {
		day := Day(f.Date)
		r.fixups[day] = append(r.fixups[day], f)
	}
	for _, v := range rules.Vessels {
		r.vessels = append(r.vessels, Vessel{Name: fold(v.Name), Key: fold(v.Key)})
	}
	if regions != nil {
		r.regions = make(map[string]string, len(regions))
		for code, name := range regions {
			r.regions[strings.ToUpper(strings.ReplaceAll(code, " ", ""))] = fold(name)
		}
	}
	return r
}

// Resolve returns the canonical key for raw as reported on date.
func (r *Resolver) Resolve(raw string, date time.Time) Resolution {
	loc := strings.TrimSpace(raw)
	if loc == "" {
		return dropped(DropEmptyLocation)
	}
	folded := fold(loc)

	for _, f := range r.fixups[Day(date)] {
		for _, c := range f.Contains {
			if strings.Contains(folded, fold(c)) {
				return resolved(fold(f.Target))
			}
		}
	}

	for _, v := range r.vessels {
		if strings.Contains(folded, v.Name) {
			return resolved(v.Key)
		}
	}

	if key, ok := r.exceptions[folded]; ok {
		return resolved(key)
	}

	if r.regions != nil {
		if i := strings.LastIndex(loc, ","); i >= 0 {
			code := strings.ToUpper(strings.ReplaceAll(loc[i+1:], " ", ""))
			name, ok := r.regions[code]
			if !ok {
				return dropped(DropUnknownRegion)
			}
			return resolved(r.rename(name))
		}
	}

	return resolved(r.rename(folded))
}

func (r *Resolver) rename(key string) string {
	if to, ok := r.renames[key]; ok {
		return to
	}
	return key
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[fold(k)] = fold(v)
	}
	return out
}
