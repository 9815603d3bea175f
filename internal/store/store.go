// Package store persists one exploration document per target application.
// Two backends exist: a file per app with atomic replace (the default) and a
// single-row-per-app PostgreSQL table. Both honor the same contract: a
// failed write never corrupts the previous document, and every load
// revalidates the document before it is resumed from.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// ErrNotFound is returned when no document exists for the application.
var ErrNotFound = errors.New("document not found")

// MalformedDocumentError wraps a parse or validation failure of a persisted
// document. Exploration cannot resume until the document is fixed or a
// fresh session is started.
type MalformedDocumentError struct {
	App string
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed exploration document for %q: %v", e.App, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// DocumentStore is the persistence contract for exploration graphs.
type DocumentStore interface {
	// Load reads and validates the document for an application. Missing
	// documents return ErrNotFound; unparseable or invalid ones return a
	// *MalformedDocumentError.
	Load(ctx context.Context, appName string) (*schemas.ExplorationGraph, error)
	// Save writes the document, recomputing derived stats first. The write
	// is atomic: on failure the previously persisted document is intact.
	Save(ctx context.Context, doc *schemas.ExplorationGraph) error
	// Exists reports whether a document exists for the application.
	Exists(ctx context.Context, appName string) (bool, error)
}
