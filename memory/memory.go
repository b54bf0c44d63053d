package memory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/marcolabs/marco-go-sdk/core"
)

// Context is one provider's contribution to a turn: extra system
// instructions and/or messages injected ahead of the model call.
type Context struct {
	Instructions string
	Messages     []core.Message
}

// Empty reports whether the provider contributed nothing.
func (c *Context) Empty() bool {
	return c == nil || (c.Instructions == "" && len(c.Messages) == 0)
}

// Turn is the unit of work providers observe. Messages holds the full
// conversation including the latest user message; Response holds the
// assistant messages produced during the turn and is only populated for
// PostTurn. Err is set when response generation failed.
type Turn struct {
	Messages []core.Message
	Response []core.Message
	Err      error
}

// Provider contributes pre-turn context and performs post-turn memory
// capture for one memory concern.
//
// PreTurn may suspend on I/O but must not mutate state observable by other
// providers in the same turn. A failing provider contributes nothing; the
// Pipeline isolates the failure so the turn proceeds.
//
// PostTurn is only invoked for turns that completed without error; the
// Pipeline enforces this, providers need not re-check Turn.Err.
type Provider interface {
	PreTurn(ctx context.Context, turn *Turn) (*Context, error)
	PostTurn(ctx context.Context, turn *Turn) error

	// Serialize returns an opaque snapshot of the provider's state for
	// persistence and debugging.
	Serialize() (json.RawMessage, error)
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local, build tag), cached (wrapper).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ErrNotSupported is returned by stores that cannot serve an operation.
var ErrNotSupported = errors.New("operation not supported by this store")

// Store is the partitioned, similarity-searchable document store backing
// memory providers. Containers are created lazily on first write.
type Store interface {
	// CreateDocument stores a document in the named container, partitioned
	// by the document's scope. The document must carry its embedding.
	CreateDocument(ctx context.Context, container string, doc *Document) error

	// GetDocument performs a point lookup by ID within a scope partition.
	GetDocument(ctx context.Context, container string, scope core.Scope, id string) (*Document, error)

	// QuerySimilar returns up to limit documents from the scope partition,
	// ordered by ascending vector distance to the query embedding.
	QuerySimilar(ctx context.Context, container string, scope core.Scope, embedding []float32, limit int) ([]Document, error)

	// Close releases resources.
	Close() error
}
