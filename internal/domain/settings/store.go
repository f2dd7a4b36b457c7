package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Known settings keys.
const (
	KeySMTP          = "smtp"
	KeySigning       = "signing"
	KeyNotifications = "notifications"
)

var ErrNotFound = errors.New("setting not found")

var knownKeys = map[string]bool{
	KeySMTP:          true,
	KeySigning:       true,
	KeyNotifications: true,
}

func KnownKey(key string) bool {
	return knownKeys[key]
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value []byte
	err := s.DB.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO settings (key, value) VALUES ($1, $2::jsonb)
    ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
  `, key, []byte(value))
	return err
}

// GetInto unmarshals a stored setting into out, leaving out untouched when
// the key has never been written.
func (s *Store) GetInto(ctx context.Context, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
