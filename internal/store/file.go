package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/graph"
)

// FileStore keeps one JSON document per application under a data directory.
// Writes go to a temp file first and are renamed into place, so a crash or
// write error never leaves a half-written document behind.
type FileStore struct {
	dir string
	log *zap.Logger
}

var _ DocumentStore = (*FileStore)(nil)

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{dir: dir, log: logger.Named("filestore")}, nil
}

// Path returns where the named application's document lives.
func (s *FileStore) Path(appName string) string {
	name := graph.Slugify(appName)
	if name == "" {
		name = "app"
	}
	return filepath.Join(s.dir, name+".json")
}

func (s *FileStore) Load(ctx context.Context, appName string) (*schemas.ExplorationGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(appName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("app %q: %w", appName, ErrNotFound)
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var doc schemas.ExplorationGraph
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedDocumentError{App: appName, Err: err}
	}
	graph.Rehydrate(&doc)
	if err := graph.Validate(&doc); err != nil {
		return nil, &MalformedDocumentError{App: appName, Err: err}
	}

	s.log.Debug("Document loaded",
		zap.String("app", appName),
		zap.Int("screens", len(doc.Screens)))
	return &doc, nil
}

func (s *FileStore) Save(ctx context.Context, doc *schemas.ExplorationGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	graph.RecomputeStats(doc)
	doc.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}

	final := s.Path(doc.AppName)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp document: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing document: %w", err)
	}

	s.log.Debug("Document saved",
		zap.String("app", doc.AppName),
		zap.String("path", final),
		zap.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) Exists(ctx context.Context, appName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(appName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
