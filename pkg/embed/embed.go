package embed

import (
	"context"

	"github.com/strata-db/strata/pkg/value"
)

// QueryEmbedder turns text into a fixed-dimension vector. It is the only
// contract between the core and whatever model runtime an embedder
// backs onto — selecting CPU/CUDA/Metal, model format, and cache
// directory are all the embedder's concern, not the core's.
type QueryEmbedder interface {
	// Embed returns the vector for text. The returned slice's length must
	// be stable for a given QueryEmbedder instance — VectorCollection
	// implementations are expected to fix their dimension on the first
	// insert and reject mismatches afterward as KindDimensionMismatch.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is one ranked hit from a VectorCollection query.
type SearchResult struct {
	Key      string
	Score    float32
	Metadata *value.Object
}

// VectorCollection stores embedded vectors for similarity search. Strata's
// core never constructs or traverses the index directly — it only calls
// through this interface after the auto-embed hook produces a vector
//, or when a session dispatches an explicit vector command.
//
// Sharp edges preserved deliberately: a
// VectorCollection implementation is NOT required to validate vectors for
// NaN or +/-Inf before accepting them — that poisons downstream
// similarity scores, and the core does not guard against it either;
// validation belongs at the insert boundary, in the implementation, if
// it is needed at all.
type VectorCollection interface {
	// EnsureCollection creates collection with the given dimension if it
	// does not already exist. The session's auto-embed hook logs and
	// swallows every error from this call, as it does for Embed and Insert
	// errors, so the triggering write still succeeds — a known sharp edge:
	// a transient backend error on that auto-create path is handled exactly
	// like "collection already existed", and this interface defines no
	// typed AlreadyExists error to tell the two apart.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Insert indexes vector under key in collection, replacing any prior
	// vector at the same key. Returns KindDimensionMismatch if vector's
	// length does not match the collection's configured dimension.
	Insert(ctx context.Context, collection, key string, vector []float32, metadata *value.Object) error

	// Delete removes key's vector from collection, if present.
	Delete(ctx context.Context, collection, key string) error

	// Query returns the topK nearest vectors to vector in collection,
	// most similar first.
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
}

// EmbeddableText extracts the text an auto-embed hook should embed from a
// written value: a bare String value embeds directly; an Object embeds
// the value at a distinguished text field if present. ok is
// false for values with no embeddable text (the hook is a no-op for them).
func EmbeddableText(v value.Value, textField string) (string, bool) {
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if o, ok := v.AsObject(); ok {
		if field, ok := o.Get(textField); ok {
			if s, ok := field.AsString(); ok {
				return s, true
			}
		}
	}
	return "", false
}
