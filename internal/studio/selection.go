package studio

import (
	"fmt"
	"sync"
)

// Selection is the set of content types marked for batch generation. The
// zero value is empty; NewSelection starts with all four types selected.
type Selection struct {
	mu  sync.RWMutex
	set map[ContentType]struct{}
}

// NewSelection returns a Selection holding every content type.
func NewSelection() *Selection {
	s := &Selection{set: make(map[ContentType]struct{}, len(allContentTypes))}
	for _, c := range allContentTypes {
		s.set[c] = struct{}{}
	}
	return s
}

// Keys returns the selected types in display order.
func (s *Selection) Keys() []ContentType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ContentType, 0, len(s.set))
	for _, c := range allContentTypes {
		if _, ok := s.set[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Set replaces the selection. Unknown keys are rejected and leave it untouched.
func (s *Selection) Set(keys []ContentType) error {
	next := make(map[ContentType]struct{}, len(keys))
	for _, c := range keys {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownContentType, c)
		}
		next[c] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = next
	return nil
}

// Toggle flips membership of key and reports whether it is now selected.
func (s *Selection) Toggle(key ContentType) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownContentType, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[ContentType]struct{})
	}
	if _, ok := s.set[key]; ok {
		delete(s.set, key)
		return false, nil
	}
	s.set[key] = struct{}{}
	return true, nil
}
