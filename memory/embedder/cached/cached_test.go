package cached

import (
	"context"
	"errors"
	"testing"

	"github.com/marcolabs/marco-go-sdk/memory/embedder/mock"
)

// countingEmbedder counts upstream calls.
type countingEmbedder struct {
	inner *mock.Embedder
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestEmbedCachesRepeats(t *testing.T) {
	upstream := &countingEmbedder{inner: mock.New()}
	e, err := New(upstream, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	first, err := e.Embed(context.Background(), "flights to Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	// ristretto admits asynchronously; Wait makes the Set visible.
	e.cache.Wait()

	second, err := e.Embed(context.Background(), "flights to Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	if upstream.calls != 1 {
		t.Errorf("upstream called %d times", upstream.calls)
	}
	if len(first) != len(second) {
		t.Errorf("cached vector differs in length")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestEmbedDistinctTexts(t *testing.T) {
	upstream := &countingEmbedder{inner: mock.New()}
	e, err := New(upstream, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.Embed(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}
	if upstream.calls != 2 {
		t.Errorf("upstream called %d times for distinct texts", upstream.calls)
	}
}

func TestEmbedErrorNotCached(t *testing.T) {
	upstream := &countingEmbedder{inner: mock.New(), err: errors.New("model unavailable")}
	e, err := New(upstream, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected upstream error")
	}

	upstream.err = nil
	if _, err := e.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("recovered upstream still failing: %v", err)
	}
	if upstream.calls != 2 {
		t.Errorf("upstream called %d times", upstream.calls)
	}
}

func TestDimensions(t *testing.T) {
	e, err := New(mock.New(), 16)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Dimensions() != mock.New().Dimensions() {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}
