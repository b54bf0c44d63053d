// Package chromem implements memory.Store over chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/marcolabs/marco-go-sdk/core"
	"github.com/marcolabs/marco-go-sdk/memory"
)

// Store wraps chromem-go. Each (container, scope) pair maps to its own
// chromem collection for partition isolation; collections are created
// lazily on first use.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory chromem store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewPersistent creates a chromem store backed by the given directory,
// so documents survive process restarts.
func NewPersistent(path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}
	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// getOrCreateCollection returns the collection for a container/scope pair,
// creating it on first use. Only one caller performs the creation.
func (s *Store) getOrCreateCollection(container string, scope core.Scope) (*chromem.Collection, error) {
	name := collectionName(container, scope)

	s.mu.RLock()
	col, exists := s.collections[name]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[name]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		name,
		nil, // No custom embedding func (we provide embeddings)
		nil, // No custom distance func (use default cosine)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[name] = col
	return col, nil
}

// CreateDocument stores a document with its embedding.
func (s *Store) CreateDocument(ctx context.Context, container string, doc *memory.Document) error {
	if err := doc.Scope.Validate(); err != nil {
		return err
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("document %s has no embedding", doc.ID)
	}

	col, err := s.getOrCreateCollection(container, doc.Scope)
	if err != nil {
		return err
	}

	log.Printf("[CHROMEM] Storing document: container=%s, id=%s, scope=%s", container, doc.ID, doc.Scope.Key())

	metadata := map[string]string{
		"scope_key":  doc.Scope.Key(),
		"role":       doc.Role,
		"created_at": doc.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// GetDocument is not supported: chromem-go has no point lookup by ID.
func (s *Store) GetDocument(ctx context.Context, container string, scope core.Scope, id string) (*memory.Document, error) {
	return nil, memory.ErrNotSupported
}

// QuerySimilar retrieves documents from the scope partition ordered by
// ascending vector distance.
func (s *Store) QuerySimilar(ctx context.Context, container string, scope core.Scope, embedding []float32, limit int) ([]memory.Document, error) {
	col, err := s.getOrCreateCollection(container, scope)
	if err != nil {
		return nil, err
	}

	log.Printf("[CHROMEM] Querying container=%s, scope=%s, limit=%d", container, scope.Key(), limit)

	where := map[string]string{
		"scope_key": scope.Key(),
	}

	// chromem-go requires nResults <= collection size.
	// Retry with smaller limits until a query fits.
	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		results, err = col.QueryEmbedding(ctx, embedding, currentLimit, where, nil)
		if err == nil {
			break
		}

		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				// Partition is empty
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	docs := make([]memory.Document, 0, len(results))
	for i, result := range results {
		doc, err := fromResult(result, scope)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		docs = append(docs, doc)
	}

	log.Printf("[CHROMEM] Returning %d documents", len(docs))
	return docs, nil
}

// Close releases resources. chromem-go keeps everything in memory.
func (s *Store) Close() error {
	return nil
}

func fromResult(result chromem.Result, scope core.Scope) (memory.Document, error) {
	createdAt, err := time.Parse(time.RFC3339, result.Metadata["created_at"])
	if err != nil {
		createdAt = time.Time{}
	}

	metadata := make(map[string]string)
	for k, v := range result.Metadata {
		if k != "scope_key" && k != "role" && k != "created_at" {
			metadata[k] = v
		}
	}

	return memory.Document{
		ID:        result.ID,
		Scope:     scope,
		Role:      result.Metadata["role"],
		Content:   result.Content,
		Metadata:  metadata,
		Embedding: result.Embedding,
		CreatedAt: createdAt,
	}, nil
}

func collectionName(container string, scope core.Scope) string {
	// chromem collection names reject some punctuation; scope keys use '|'.
	key := strings.ReplaceAll(scope.Key(), "|", "_")
	return fmt.Sprintf("%s_%s", container, key)
}

// isInsufficientDocsError checks if an error is due to querying for more
// results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
