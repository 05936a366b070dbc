package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateKey    = errors.New("a card with this Jira key already exists")
	ErrDuplicateColumn = errors.New("column name already used in this scope")
	ErrInvalidColumn   = errors.New("invalid column definition")
)

// Store is the record store for cards and everything attached to them.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("database: load %s %v: %w", what, id, err)
}

func cardWriteErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("database: %s: %w", op, ErrDuplicateKey)
	}
	return fmt.Errorf("database: %s: %w", op, err)
}
