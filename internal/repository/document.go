// Package repository contains data access abstractions for processing records.
// Implementations live in subpackages (e.g., postgres).
package repository

import (
	"context"

	"docjson/internal/model"
)

// DocumentRepository persists one record per processed upload. Records are
// append-only; nothing in the service updates or deletes them.
type DocumentRepository interface {
	// Create inserts a new record and returns it as stored.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a record by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a page of records, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
