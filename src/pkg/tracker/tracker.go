// Package tracker wraps report data so that every key read during a rule
// evaluation is recorded, and reads of absent or null values flag the
// evaluation as incomplete.
package tracker

import (
	"sort"
	"strings"
)

const analyzerPrefix = "results."

// Session holds the access log shared by a root Tracker and all of the child
// trackers handed out for nested maps. One session covers one evaluation.
type Session struct {
	accessed   map[string]struct{}
	incomplete bool
}

func NewSession() *Session {
	return &Session{accessed: make(map[string]struct{})}
}

func (s *Session) RecordAccess(path string) {
	s.accessed[path] = struct{}{}
}

func (s *Session) MarkIncomplete() {
	s.incomplete = true
}

// Incomplete reports whether any read hit an absent or null value.
func (s *Session) Incomplete() bool {
	return s.incomplete
}

// AccessedKeys returns every recorded path, sorted.
func (s *Session) AccessedKeys() []string {
	keys := make([]string, 0, len(s.accessed))
	for k := range s.accessed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Analyzers returns the sorted, de-duplicated analyzer names referenced
// through "results.<analyzer>..." paths.
func (s *Session) Analyzers() []string {
	seen := make(map[string]struct{})
	for path := range s.accessed {
		if !strings.HasPrefix(path, analyzerPrefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(path, analyzerPrefix), ".")
		if name != "" {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Tracker is a read-only view over a map that reports its reads to a Session.
type Tracker struct {
	data    map[string]any
	path    string
	session *Session
}

// New returns a root tracker over data. A nil session starts a fresh one.
func New(data map[string]any, session *Session) *Tracker {
	if session == nil {
		session = NewSession()
	}
	return &Tracker{data: data, session: session}
}

func (t *Tracker) Session() *Session {
	return t.session
}

// Path is the dotted path of this tracker from the root, empty for the root.
func (t *Tracker) Path() string {
	return t.path
}

func (t *Tracker) fullPath(key string) string {
	if t.path == "" {
		return key
	}
	return t.path + "." + key
}

// Get reads key. Absent keys return ok=false; both absent and null values
// mark the session incomplete. Nested maps come back wrapped in a child
// Tracker sharing this session.
func (t *Tracker) Get(key string) (any, bool) {
	full := t.fullPath(key)
	t.session.RecordAccess(full)
	v, ok := t.data[key]
	if !ok {
		t.session.MarkIncomplete()
		return nil, false
	}
	if v == nil {
		t.session.MarkIncomplete()
		return nil, true
	}
	if m, isMap := v.(map[string]any); isMap {
		return &Tracker{data: m, path: full, session: t.session}, true
	}
	return v, true
}

// Has tests membership. It is recorded like a read and a miss marks the
// session incomplete.
func (t *Tracker) Has(key string) bool {
	t.session.RecordAccess(t.fullPath(key))
	_, ok := t.data[key]
	if !ok {
		t.session.MarkIncomplete()
	}
	return ok
}

func (t *Tracker) Len() int {
	return len(t.data)
}

// Keys returns the wrapped map's keys, sorted. Listing keys is not recorded.
func (t *Tracker) Keys() []string {
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unwrap returns the underlying map without recording anything.
func (t *Tracker) Unwrap() map[string]any {
	return t.data
}
