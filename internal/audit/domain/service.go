package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByTarget(ctx context.Context, db *gorm.DB, targetType, targetID string, limit int) ([]AuditLog, error)
}

type Service interface {
	// Record writes entry using db, which is normally the caller's open
	// transaction so the audit row commits or rolls back with the mutation.
	Record(ctx context.Context, db *gorm.DB, entry Entry) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
