//go:build !onnx

package main

import (
	"fmt"

	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/memory/embedder/mock"
)

// newEmbedder returns the deterministic mock embedder. Build with the
// onnx tag for real local embeddings.
func newEmbedder(backend string) (memory.Embedder, error) {
	switch backend {
	case "", "mock":
		return mock.New(), nil
	case "onnx":
		return nil, fmt.Errorf("onnx embedder requires building with -tags onnx")
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", backend)
	}
}
