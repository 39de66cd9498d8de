package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/LovationAdmin/astrodart-api/models"
)

// MemoryStore keeps encoded documents in process. Every read decodes a fresh
// copy, so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Scan(ctx context.Context, startKey string, limit int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = pageLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		if k > startKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &Page{}
	if len(keys) > limit {
		keys = keys[:limit]
		page.NextKey = keys[limit-1]
	}
	for _, k := range keys {
		user, err := decodeJSON(s.docs[k])
		if err != nil {
			page.reject(k, err)
			continue
		}
		page.Users = append(page.Users, *user)
	}
	return page, nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	raw, ok := s.docs[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeJSON(raw)
}

func (s *MemoryStore) Put(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(toDocument(user))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	s.mu.Lock()
	s.docs[user.UserID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, userID string, field models.Field, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := encodeField(field, value)
	if err != nil {
		return err
	}
	rawValue, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.docs[userID]
	if !ok {
		return ErrNotFound
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode user: %w", err)
	}
	fields[string(field)] = rawValue
	updated, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	s.docs[userID] = updated
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, userID)
	s.mu.Unlock()
	return nil
}

func decodeJSON(raw []byte) (*models.User, error) {
	var d document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user := fromDocument(d)
	return &user, nil
}
