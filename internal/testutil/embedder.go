package testutil

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder is a deterministic ai.Embedder for tests. Identical input
// text always produces an identical vector, so idempotency and ranking
// tests behave the same on every run without network access.
//
// Failure modes can be injected: Err fails every call, RateLimitUntil
// fails the first N calls with a rate-limit error so retry paths can be
// exercised.
type MockEmbedder struct {
	mu sync.Mutex

	// Dim is the dimension of returned vectors. Defaults to 8.
	Dim int

	// Err, when set, is returned by every Embed call.
	Err error

	// RateLimitUntil fails calls with a rate-limit error until the call
	// count reaches this value.
	RateLimitUntil int

	calls int
}

// rateLimitError mimics the provider's quota failure text so that
// rate-limit detection treats it as retryable.
type rateLimitError struct{}

func (rateLimitError) Error() string {
	return "googleapi: Error 429: quota exceeded for embed requests"
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(api.Registry) {}

// Embed returns one deterministic vector per input document, derived
// from an FNV hash of the document text.
func (m *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.calls <= m.RateLimitUntil {
		return nil, rateLimitError{}
	}

	dim := m.Dim
	if dim == 0 {
		dim = 8
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: deterministicVector(text, dim),
		})
	}
	return resp, nil
}

// Calls returns how many times Embed has been invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// deterministicVector hashes text into a fixed-dimension vector with
// values in (0, 1]. FNV-1a per component with the index mixed in.
func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		h := uint32(2166136261)
		h = (h ^ uint32(i)) * 16777619 // #nosec G115 -- index is small
		for _, b := range []byte(text) {
			h = (h ^ uint32(b)) * 16777619
		}
		// Map the hash into (0, 1] so no vector is ever zero.
		vec[i] = float32(h%1000+1) / 1000
	}
	return vec
}
