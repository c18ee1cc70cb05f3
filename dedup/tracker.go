package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Entries is the persisted content of one collection's index.
type Entries struct {
	Documents map[string]int // document hash -> chunk count
	Chunks    []string
	Sources   []string
	Dimension int // zero when no dimension is pinned
}

// Persister stores index entries durably. Implementations must be safe for
// concurrent use.
type Persister interface {
	// Load returns every entry recorded for collection.
	Load(ctx context.Context, collection string) (*Entries, error)

	// AddDocument records a document hash and its chunk count.
	AddDocument(ctx context.Context, collection, hash string, chunks int) error

	// AddChunk records a chunk content hash.
	AddChunk(ctx context.Context, collection, hash string) error

	// AddSource records a source hash.
	AddSource(ctx context.Context, collection, hash string) error

	// SetDimension records the vector dimension of collection. Zero forgets it.
	SetDimension(ctx context.Context, collection string, dim int) error

	// Reset removes every hash entry of collection. The dimension is kept.
	Reset(ctx context.Context, collection string) error
}

// Stats reports the size of each hash set.
type Stats struct {
	Collection string
	Documents  int
	Chunks     int
	Sources    int
	Dimension  int
}

// Tracker is the deduplication index of one collection. Membership checks
// and inserts on a set are atomic with respect to each other. Entries are
// only added after the content they describe was stored; the sets shrink
// only through Reset. The tracker also pins the vector dimension of the
// collection once it is known.
type Tracker struct {
	collection string
	persister  Persister
	logger     *slog.Logger

	mu        sync.RWMutex
	documents map[string]int
	chunks    map[string]struct{}
	sources   map[string]struct{}
	dimension int

	claimsMu sync.Mutex
	claims   map[string]chan struct{}
}

func newTracker(collection string, persister Persister, logger *slog.Logger) *Tracker {
	return &Tracker{
		collection: collection,
		persister:  persister,
		logger:     logger.With("component", "dedup", "collection", collection),
		documents:  make(map[string]int),
		chunks:     make(map[string]struct{}),
		sources:    make(map[string]struct{}),
		claims:     make(map[string]chan struct{}),
	}
}

// NewTracker creates an empty, memory only tracker for collection.
func NewTracker(collection string) *Tracker {
	return newTracker(collection, nil, slog.Default())
}

// Collection returns the collection the tracker indexes.
func (t *Tracker) Collection() string {
	return t.collection
}

func (t *Tracker) load(ctx context.Context) error {
	if t.persister == nil {
		return nil
	}
	entries, err := t.persister.Load(ctx, t.collection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if entries == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for hash, chunks := range entries.Documents {
		t.documents[hash] = chunks
	}
	for _, hash := range entries.Chunks {
		t.chunks[hash] = struct{}{}
	}
	for _, hash := range entries.Sources {
		t.sources[hash] = struct{}{}
	}
	t.dimension = entries.Dimension
	t.logger.Debug("loaded deduplication index",
		"documents", len(t.documents), "chunks", len(t.chunks), "sources", len(t.sources),
		"dimension", t.dimension)
	return nil
}

// IsDuplicateDocument reports whether the document hash is registered.
func (t *Tracker) IsDuplicateDocument(hash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.documents[hash]
	return ok
}

// DocumentChunks returns the chunk count remembered for a registered document.
func (t *Tracker) DocumentChunks(hash string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	chunks, ok := t.documents[hash]
	return chunks, ok
}

// IsDuplicateChunk reports whether the chunk content hash is registered.
func (t *Tracker) IsDuplicateChunk(hash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.chunks[hash]
	return ok
}

// IsDuplicateSource reports whether the source hash is registered.
func (t *Tracker) IsDuplicateSource(hash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sources[hash]
	return ok
}

// RegisterDocument records a fully ingested document with its chunk count.
// Registering a known hash is a no-op.
func (t *Tracker) RegisterDocument(ctx context.Context, hash string, chunks int) error {
	if hash == "" {
		return ErrEmptyHash
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.documents[hash]; ok {
		return nil
	}
	if t.persister != nil {
		if err := t.persister.AddDocument(ctx, t.collection, hash, chunks); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	t.documents[hash] = chunks
	return nil
}

// RegisterChunk records a stored chunk's content hash. Idempotent.
func (t *Tracker) RegisterChunk(ctx context.Context, hash string) error {
	return t.registerIn(ctx, t.chunks, hash, t.persisterAddChunk)
}

// RegisterSource records a source hash. Idempotent.
func (t *Tracker) RegisterSource(ctx context.Context, hash string) error {
	return t.registerIn(ctx, t.sources, hash, t.persisterAddSource)
}

func (t *Tracker) persisterAddChunk(ctx context.Context, hash string) error {
	return t.persister.AddChunk(ctx, t.collection, hash)
}

func (t *Tracker) persisterAddSource(ctx context.Context, hash string) error {
	return t.persister.AddSource(ctx, t.collection, hash)
}

func (t *Tracker) registerIn(ctx context.Context, set map[string]struct{}, hash string, persist func(context.Context, string) error) error {
	if hash == "" {
		return ErrEmptyHash
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := set[hash]; ok {
		return nil
	}
	if t.persister != nil {
		if err := persist(ctx, hash); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	set[hash] = struct{}{}
	return nil
}

// Dimension returns the pinned vector dimension, or zero when none is pinned.
func (t *Tracker) Dimension() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dimension
}

// PinDimension pins dim as the vector dimension of the collection unless one
// is already pinned, and returns the pinned dimension.
func (t *Tracker) PinDimension(ctx context.Context, dim int) (int, error) {
	if dim <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dimension != 0 {
		return t.dimension, nil
	}
	if t.persister != nil {
		if err := t.persister.SetDimension(ctx, t.collection, dim); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	t.dimension = dim
	t.logger.Info("vector dimension pinned", "dimension", dim)
	return dim, nil
}

// ForgetDimension unpins the vector dimension. Only call it once the
// collection holds no vectors.
func (t *Tracker) ForgetDimension(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.persister != nil {
		if err := t.persister.SetDimension(ctx, t.collection, 0); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	t.dimension = 0
	return nil
}

// Reset clears all three sets, in memory and in the persister. The pinned
// dimension is kept since stored vectors are untouched. It is an
// administrative operation and is never called during ingestion.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.persister != nil {
		if err := t.persister.Reset(ctx, t.collection); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	t.documents = make(map[string]int)
	t.chunks = make(map[string]struct{})
	t.sources = make(map[string]struct{})
	t.logger.Info("deduplication index reset")
	return nil
}

// Stats returns the current set sizes.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		Collection: t.collection,
		Documents:  len(t.documents),
		Chunks:     len(t.chunks),
		Sources:    len(t.sources),
		Dimension:  t.dimension,
	}
}

// Claim takes the exclusive claim on a document hash, waiting while another
// run holds it. Two runs ingesting identical bytes into one collection are
// thereby serialised: the second sees the first's registrations. The
// returned release func must be called exactly once; extra calls are no-ops.
func (t *Tracker) Claim(ctx context.Context, docHash string) (func(), error) {
	for {
		t.claimsMu.Lock()
		held, busy := t.claims[docHash]
		if !busy {
			done := make(chan struct{})
			t.claims[docHash] = done
			t.claimsMu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					t.claimsMu.Lock()
					delete(t.claims, docHash)
					t.claimsMu.Unlock()
					close(done)
				})
			}, nil
		}
		t.claimsMu.Unlock()

		t.logger.Debug("waiting for document claim", "document", docHash)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held:
		}
	}
}
