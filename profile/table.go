package profile

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
)

var ErrNoProfiles = errors.New("no version profiles registered")

// Profile is the immutable set of extractors valid for one ddrescue version.
type Profile struct {
	Version    string
	extractors []Extractor
}

// Extractors returns the extractors of the given kind in registration order.
func (p *Profile) Extractors(kind Kind) []Extractor {
	var out []Extractor
	for _, e := range p.extractors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether the profile knows how to handle kind.
func (p *Profile) Has(kind Kind) bool {
	for _, e := range p.extractors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// StatusMarker is the token separating status text from measurements on
// this version's combined status and progress line.
func (p *Profile) StatusMarker() string {
	for _, e := range p.extractors {
		if e.Kind == KindStatusProgress && e.Marker != "" {
			return e.Marker
		}
	}
	return ""
}

// Names lists the extractor names, mostly useful for logging.
func (p *Profile) Names() []string {
	names := make([]string, 0, len(p.extractors))
	for _, e := range p.extractors {
		names = append(names, e.Kind.String()+"/"+e.Name)
	}
	return names
}

// Selection is the outcome of resolving an installed version to a profile.
type Selection struct {
	Profile *Profile
	// Requested is the version string as reported by ddrescue.
	Requested string
	// Clamped is set when the requested version is outside the supported
	// range and the nearest profile was used instead.
	Clamped bool
	// Prerelease is set for -rc and -pre builds.
	Prerelease bool
}

// Warning returns the operator facing message for a clamped or prerelease
// selection, or "" when the version is supported as is.
func (s Selection) Warning() string {
	var msgs []string
	if s.Clamped {
		msgs = append(msgs, fmt.Sprintf("ddrescue %s is not supported, output is decoded as ddrescue %s and some values may be wrong", s.Requested, s.Profile.Version))
	}
	if s.Prerelease {
		msgs = append(msgs, fmt.Sprintf("ddrescue %s is a prerelease build, some values may be wrong", s.Requested))
	}
	return strings.Join(msgs, "; ")
}

// Table maps every supported version to its Profile.
type Table struct {
	versions []*version.Version
	profiles map[string]*Profile
}

// NewTable builds a table from a set of extractors. Every version named by
// any extractor gets a profile.
func NewTable(extractors []Extractor) (*Table, error) {
	t := &Table{profiles: map[string]*Profile{}}
	for _, e := range extractors {
		if e.Name == "" {
			return nil, fmt.Errorf("extractor of kind %s has no name", e.Kind)
		}
		if e.Extract == nil && e.Estimate == nil {
			return nil, fmt.Errorf("extractor %s has no function", e.Name)
		}
		for _, v := range e.Versions {
			key, _, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("extractor %s: %w", e.Name, err)
			}
			p, ok := t.profiles[key]
			if !ok {
				p = &Profile{Version: key}
				t.profiles[key] = p
				t.versions = append(t.versions, version.Must(version.NewVersion(key)))
			}
			p.extractors = append(p.extractors, e)
		}
	}
	if len(t.profiles) == 0 {
		return nil, ErrNoProfiles
	}
	sort.Sort(version.Collection(t.versions))
	return t, nil
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable is the table of built-in extractors, 1.14 through 1.25.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = mustTable(Registered())
	})
	return defaultTable
}

func mustTable(extractors []Extractor) *Table {
	t, err := NewTable(extractors)
	if err != nil {
		panic(err)
	}
	return t
}

// Versions lists the supported versions in ascending order.
func (t *Table) Versions() []string {
	out := make([]string, 0, len(t.versions))
	for _, v := range t.versions {
		out = append(out, key(v))
	}
	return out
}

// FunctionsFor returns every extractor for v, clamped to the supported
// range the same way Select does. It returns nil only for a version string
// that cannot be parsed.
func (t *Table) FunctionsFor(v string) []Extractor {
	sel, err := t.Select(v)
	if err != nil {
		return nil
	}
	out := make([]Extractor, len(sel.Profile.extractors))
	copy(out, sel.Profile.extractors)
	return out
}

// Select resolves a version string to a profile. Versions below the lowest
// supported one use the lowest profile, versions above the highest use the
// highest profile.
func (t *Table) Select(requested string) (Selection, error) {
	sel := Selection{Requested: requested}
	k, pre, err := normalize(requested)
	if err != nil {
		return sel, err
	}
	sel.Prerelease = pre

	v := version.Must(version.NewVersion(k))
	lowest, highest := t.versions[0], t.versions[len(t.versions)-1]
	switch {
	case v.LessThan(lowest):
		k = key(lowest)
		sel.Clamped = true
	case v.GreaterThan(highest):
		k = key(highest)
		sel.Clamped = true
	}
	p, ok := t.profiles[k]
	if !ok {
		// Inside the range but not registered, e.g. a gap in the table.
		return sel, fmt.Errorf("no profile for ddrescue %s", requested)
	}
	sel.Profile = p
	return sel, nil
}

var numericVersion = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+`)

// normalize returns "major.minor" for v and whether it is a prerelease.
func normalize(v string) (string, bool, error) {
	trimmed := strings.TrimSpace(v)
	parsed, err := version.NewVersion(trimmed)
	if err != nil {
		// ddrescue has shipped oddly suffixed builds; fall back to the
		// leading numeric part and treat the rest as a prerelease tag.
		m := numericVersion.FindString(trimmed)
		if m == "" {
			return "", false, fmt.Errorf("invalid ddrescue version %q: %w", v, err)
		}
		parsed, err = version.NewVersion(m)
		if err != nil {
			return "", false, fmt.Errorf("invalid ddrescue version %q: %w", v, err)
		}
		return key(parsed), m != trimmed, nil
	}
	return key(parsed), parsed.Prerelease() != "", nil
}

func key(v *version.Version) string {
	s := v.Segments()
	return fmt.Sprintf("%d.%d", s[0], s[1])
}
