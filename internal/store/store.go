// Package store keeps per-subject result matrices under structured keys
// such as "sub01_HRF_0". A subject accumulates raw and preprocessed BOLD,
// HRFs and deconvolved series; each kind may hold several entries,
// distinguished by index.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFound   = errors.New("store: key not found")
	ErrInvalidKey = errors.New("store: invalid key")
	ErrNilData    = errors.New("store: nil data")
)

// Kind labels what an entry holds.
type Kind string

const (
	KindBOLD         Kind = "BOLD"
	KindPreprocessed Kind = "Preprocessed-BOLD"
	KindHRF          Kind = "HRF"
	KindDeconvolved  Kind = "Deconvolved-BOLD"
)

// ParseKind accepts a kind label.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBOLD, KindPreprocessed, KindHRF, KindDeconvolved:
		return k, nil
	}

	return "", fmt.Errorf("%w: kind %q", ErrInvalidKey, s)
}

// Key addresses one entry.
type Key struct {
	Subject string
	Kind    Kind
	Index   int
}

// String formats the key as subject_kind_index.
func (k Key) String() string {
	return k.Subject + "_" + string(k.Kind) + "_" + strconv.Itoa(k.Index)
}

// ParseKey is the inverse of [Key.String]. Subjects may contain
// underscores; the kind and index are taken from the end.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	idx, err := strconv.Atoi(s[i+1:])
	if err != nil || idx < 0 {
		return Key{}, fmt.Errorf("%w: index in %q", ErrInvalidKey, s)
	}

	rest := s[:i]

	j := strings.LastIndexByte(rest, '_')
	if j <= 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}

	kind, err := ParseKind(rest[j+1:])
	if err != nil {
		return Key{}, err
	}

	return Key{Subject: rest[:j], Kind: kind, Index: idx}, nil
}

// Entry is one stored matrix. Source names the entry it was derived from;
// it is the zero Key for raw input.
type Entry struct {
	Key    Key
	Data   *mat.Dense
	Source Key
	Meta   map[string]string
}

// Store is an in-memory, concurrency-safe entry map.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[Key]Entry)}
}

// Put stores data under the next free index for subject and kind and
// returns the assigned key.
func (s *Store) Put(subject string, kind Kind, data *mat.Dense, source Key, meta map[string]string) (Key, error) {
	if data == nil {
		return Key{}, ErrNilData
	}

	if subject == "" {
		return Key{}, fmt.Errorf("%w: empty subject", ErrInvalidKey)
	}

	if _, err := ParseKind(string(kind)); err != nil {
		return Key{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key{Subject: subject, Kind: kind}
	for {
		if _, ok := s.entries[k]; !ok {
			break
		}

		k.Index++
	}

	s.entries[k] = Entry{Key: k, Data: data, Source: source, Meta: meta}

	return k, nil
}

// Get returns the entry for k.
func (s *Store) Get(k Key) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[k]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, k)
	}

	return e, nil
}

// Remove deletes k and reports whether it existed.
func (s *Store) Remove(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[k]
	delete(s.entries, k)

	return ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Subjects returns the sorted distinct subjects.
func (s *Store) Subjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.entries {
		seen[k.Subject] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for sub := range seen {
		out = append(out, sub)
	}

	slices.Sort(out)

	return out
}

// Keys returns the keys of subject ordered by kind and index. An empty
// subject selects every key.
func (s *Store) Keys(subject string) []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Key
	for k := range s.entries {
		if subject == "" || k.Subject == subject {
			out = append(out, k)
		}
	}

	slices.SortFunc(out, compareKeys)

	return out
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Subject, b.Subject); c != 0 {
		return c
	}

	if c := kindRank(a.Kind) - kindRank(b.Kind); c != 0 {
		return c
	}

	return a.Index - b.Index
}

func kindRank(k Kind) int {
	switch k {
	case KindBOLD:
		return 0
	case KindPreprocessed:
		return 1
	case KindHRF:
		return 2
	default:
		return 3
	}
}
