// Package store persists one document per user, keyed by email.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/LovationAdmin/astrodart-api/models"
)

// DefaultPageSize is used when a scan is requested with no limit.
const DefaultPageSize = 100

var (
	ErrNotFound     = errors.New("user not found")
	ErrUnknownField = errors.New("unknown document field")
	ErrFieldType    = errors.New("wrong value type for document field")
)

// Page is one scan result. An empty NextKey means the scan is exhausted.
// Documents that fail to decode are listed in Invalid and do not fail the page.
type Page struct {
	Users   []models.User
	Invalid []InvalidDocument
	NextKey string
}

// InvalidDocument is a stored document that could not be decoded.
type InvalidDocument struct {
	UserID string
	Err    error
}

func (p *Page) reject(userID string, err error) {
	p.Invalid = append(p.Invalid, InvalidDocument{UserID: userID, Err: err})
}

type Store interface {
	Scan(ctx context.Context, startKey string, limit int) (*Page, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
	// Update replaces a single top-level field of an existing document.
	Update(ctx context.Context, userID string, field models.Field, value interface{}) error
	Delete(ctx context.Context, userID string) error
}

// ScanAll follows continuation keys until the store reports none left.
// Undecodable documents from every page are collected into invalid.
func ScanAll(ctx context.Context, s Store, pageSize int) (users []models.User, invalid []InvalidDocument, err error) {
	startKey := ""
	for {
		page, err := s.Scan(ctx, startKey, pageSize)
		if err != nil {
			return users, invalid, fmt.Errorf("scan users after %q: %w", startKey, err)
		}
		users = append(users, page.Users...)
		invalid = append(invalid, page.Invalid...)
		if page.NextKey == "" {
			return users, invalid, nil
		}
		startKey = page.NextKey
	}
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}
