//go:build onnx

package main

import (
	"fmt"
	"os"

	"github.com/marcolabs/marco-go-sdk/memory"
	"github.com/marcolabs/marco-go-sdk/memory/embedder/mock"
	"github.com/marcolabs/marco-go-sdk/memory/embedder/onnx"
)

// newEmbedder returns the configured embedder backend.
func newEmbedder(backend string) (memory.Embedder, error) {
	switch backend {
	case "", "mock":
		return mock.New(), nil
	case "onnx":
		return onnx.New(onnx.Config{
			ModelPath:     os.Getenv("ONNX_MODEL_PATH"),
			TokenizerPath: os.Getenv("ONNX_TOKENIZER_PATH"),
		})
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", backend)
	}
}
