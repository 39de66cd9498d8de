package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/LovationAdmin/astrodart-api/models"
)

// PostgresStore keeps each document as JSONB in user_documents. The table is
// created by config.RunMigrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Scan(ctx context.Context, startKey string, limit int) (*Page, error) {
	limit = pageLimit(limit)

	// One extra row tells us whether another page exists.
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, doc FROM user_documents
		WHERE user_id > $1
		ORDER BY user_id
		LIMIT $2
	`, startKey, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &Page{}
	seen := 0
	for rows.Next() {
		var (
			userID string
			raw    []byte
		)
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, err
		}
		seen++
		if seen > limit {
			break
		}
		page.NextKey = userID

		user, err := decodeJSON(raw)
		if err != nil {
			page.reject(userID, err)
			continue
		}
		page.Users = append(page.Users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if seen <= limit {
		page.NextKey = ""
	}
	return page, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.User, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM user_documents WHERE user_id = $1", userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeJSON(raw)
}

func (s *PostgresStore) Put(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(toDocument(user))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (user_id, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, user.UserID, string(raw))
	return err
}

func (s *PostgresStore) Update(ctx context.Context, userID string, field models.Field, value interface{}) error {
	encoded, err := encodeField(field, value)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE user_documents
		SET doc = jsonb_set(doc, ARRAY[$2]::text[], $3::jsonb, true), updated_at = NOW()
		WHERE user_id = $1
	`, userID, string(field), string(raw))
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM user_documents WHERE user_id = $1", userID)
	return err
}
