package quoteform

import "sync"

// Store owns the current record of one form session.
type Store struct {
	mu       sync.RWMutex
	record   Record
	revision uint64
}

// NewStore returns a store holding the default record.
func NewStore() *Store {
	return &Store{record: NewRecord()}
}

// SetField replaces the value of the field with the given wire name. Unknown
// names are rejected with *UnknownFieldError and leave the record untouched.
// Values are stored verbatim; validation happens at submit time.
func (s *Store) SetField(name, value string) error {
	f, err := ParseField(name)
	if err != nil {
		return err
	}
	s.Set(f, value)
	return nil
}

// SetFields applies several updates atomically. If any name is unknown
// nothing is applied.
func (s *Store) SetFields(values map[string]string) error {
	parsed := make(map[Field]string, len(values))
	for name, value := range values {
		f, err := ParseField(name)
		if err != nil {
			return err
		}
		parsed[f] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for f, value := range parsed {
		s.record.values[f] = value
	}
	if len(parsed) > 0 {
		s.revision++
	}
	return nil
}

// Set replaces the value of f.
func (s *Store) Set(f Field, value string) {
	if !f.Valid() {
		return
	}
	s.mu.Lock()
	s.record.values[f] = value
	s.revision++
	s.mu.Unlock()
}

// Reset restores every field to its default.
func (s *Store) Reset() {
	s.mu.Lock()
	s.record = NewRecord()
	s.revision++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Revision increases on every mutation, including Reset.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
