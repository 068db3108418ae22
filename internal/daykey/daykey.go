// Package daykey maps instants to calendar-day identifiers in a local zone.
package daykey

import (
	"fmt"
	"time"
)

// Layout is the textual shape of a Key. Lexicographic order equals chronological order.
const Layout = "2006-01-02"

// Key identifies a local calendar day, e.g. "2024-01-02".
type Key string

func (k Key) String() string { return string(k) }

// Resolver converts instants to day keys in a fixed location.
type Resolver struct {
	loc *time.Location
}

// New returns a Resolver for loc. A nil loc means time.Local.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{loc: loc}
}

// Load returns a Resolver for the named IANA zone. "" and "Local" mean the
// process local zone. An unknown name falls back to the local zone and the
// load error is returned alongside the usable Resolver.
func Load(name string) (*Resolver, error) {
	if name == "" || name == "Local" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return New(time.Local), fmt.Errorf("load location %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the zone used for day boundaries.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the key of the local day containing t.
func (r *Resolver) Resolve(t time.Time) Key {
	return Key(t.In(r.loc).Format(Layout))
}

// StartOfDay returns local midnight of the day containing t.
func (r *Resolver) StartOfDay(t time.Time) time.Time {
	lt := t.In(r.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, r.loc)
}

// NextMidnight returns the first instant of the day after the one containing t.
func (r *Resolver) NextMidnight(t time.Time) time.Time {
	lt := t.In(r.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, r.loc)
}

// Start returns local midnight of the day named by k.
func (r *Resolver) Start(k Key) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, string(k), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", k, err)
	}
	return t, nil
}

// AddDays returns the key n days after k (n may be negative).
func (r *Resolver) AddDays(k Key, n int) (Key, error) {
	t, err := r.Start(k)
	if err != nil {
		return "", err
	}
	return Key(t.AddDate(0, 0, n).Format(Layout)), nil
}

// Valid reports whether s has the shape of a day key and names a real date.
func Valid(s string) bool {
	if len(s) != len(Layout) {
		return false
	}
	t, err := time.Parse(Layout, s)
	return err == nil && t.Format(Layout) == s
}
