package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/marcolabs/marco-go-sdk/core"
)

// Document is the stored unit in a vector container: chat-history messages
// and catalog entries both use this shape. Documents are immutable after
// creation.
type Document struct {
	ID        string            `json:"id"`
	Scope     core.Scope        `json:"scope"`
	Role      string            `json:"role,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewDocument creates a document with a fresh ID and creation timestamp.
func NewDocument(scope core.Scope, role, content string) *Document {
	return &Document{
		ID:        uuid.New().String(),
		Scope:     scope,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
