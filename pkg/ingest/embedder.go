// Package ingest implements the Document Embedder (C8), the composite that
// glues the Text Chunker (C5), the Embedding Generator (C6), and the Vector
// Index Client (C7) together to embed and search whole documents.
package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/chunk"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
)

// Config tunes the Document Embedder (spec §4.6, §6.4 "embeddings" section
// DocumentCollection).
type Config struct {
	// DefaultCollection names the vector index collection used when a caller
	// does not override it.
	DefaultCollection string
	// DefaultChunkSize/DefaultChunkOverlap feed pkg/chunk.Config when a
	// caller does not override them.
	DefaultChunkSize    int
	DefaultChunkOverlap int
	// EmbedConcurrency bounds how many disjoint chunk ranges are upserted
	// concurrently. Embedding is not split by it: all chunks of a document
	// are embedded first, in one EmbedBatch call. Default: 4.
	EmbedConcurrency int
}

func (c Config) withDefaults() Config {
	if c.DefaultCollection == "" {
		c.DefaultCollection = "documents"
	}
	if c.DefaultChunkSize <= 0 {
		c.DefaultChunkSize = 1000
	}
	if c.DefaultChunkOverlap <= 0 {
		c.DefaultChunkOverlap = 200
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	return c
}

// DocumentSearchResult is one hit from SearchSimilar, with payload fields
// mapped back into a typed record (spec §4.6 "Similarity search").
type DocumentSearchResult struct {
	ID              string
	Score           float32
	Text            string
	DocumentID      string
	DocumentTitle   string
	Section         string
	ChunkIndex      int
}

// Embedder implements the Document Embedder (C8) over a chunker, generator,
// and vector index client.
type Embedder struct {
	cfg       Config
	generator *embedding.Generator
	index     vectorindex.Client
	metrics   *observe.Metrics
}

// New constructs an Embedder gluing C5 (chunk.ChunkDocument, called
// directly), generator (C6), and index (C7).
func New(cfg Config, generator *embedding.Generator, index vectorindex.Client) *Embedder {
	return &Embedder{
		cfg:       cfg.withDefaults(),
		generator: generator,
		index:     index,
		metrics:   observe.DefaultMetrics(),
	}
}

func (e *Embedder) resolveCollection(collection string) string {
	if collection != "" {
		return collection
	}
	return e.cfg.DefaultCollection
}

// ensureCollection implements spec §4.6 step 1: probe the model's dimension
// and create the collection if it does not yet exist.
func (e *Embedder) ensureCollection(ctx context.Context, collection, model, tenant string) error {
	exists, err := e.index.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	dim, err := e.generator.Dimension(ctx, model)
	if err != nil {
		return err
	}
	return e.index.CreateCollection(ctx, collection, dim)
}

// ProcessDocument implements the Document Embedder contract (C8): chunk,
// embed, and upsert a whole document, returning the number of chunks
// stored.
func (e *Embedder) ProcessDocument(ctx context.Context, documentID, text, title string, metadata map[string]any, tenant, collection, model string, chunkSize, overlap int) (int, error) {
	if documentID == "" || text == "" || tenant == "" {
		return 0, coreerr.New(coreerr.KindInvalidArgument, "ingest.ProcessDocument", errMissingRequiredField)
	}
	collection = e.resolveCollection(collection)
	if chunkSize <= 0 {
		chunkSize = e.cfg.DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = e.cfg.DefaultChunkOverlap
	}

	if err := e.ensureCollection(ctx, collection, model, tenant); err != nil {
		return 0, err
	}

	chunks := chunk.ChunkDocument(text, title, chunk.Config{MaxChunkSize: chunkSize, Overlap: overlap})
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := e.generator.EmbedBatch(ctx, texts, model, tenant)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, coreerr.New(coreerr.KindInternal, "ingest.ProcessDocument",
			fmt.Errorf("embedded %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	points := make([]vectorindex.Point, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		section := c.Section
		if section == "" {
			section = title
		}
		payload := map[string]any{
			vectorindex.PayloadText:          c.Text,
			vectorindex.PayloadSection:       section,
			vectorindex.PayloadDocumentID:    documentID,
			vectorindex.PayloadDocumentTitle: title,
			vectorindex.PayloadChunkIndex:    c.Position,
			vectorindex.PayloadTenantID:      tenant,
			vectorindex.PayloadCreatedAt:     now,
		}
		for k, v := range metadata {
			if _, reserved := payload[k]; !reserved {
				payload[k] = v
			}
		}
		points[i] = vectorindex.Point{
			ID:      fmt.Sprintf("%s_%d", documentID, c.Position),
			Vector:  vectors[i],
			Payload: payload,
		}
	}

	if err := e.upsertConcurrent(ctx, collection, points); err != nil {
		return 0, coreerr.New(coreerr.KindInternal, "ingest.ProcessDocument", err)
	}
	e.metrics.ChunksEmbedded.Add(ctx, int64(len(points)))
	observe.Logger(ctx).Debug("ingest: document processed", "document_id", documentID, "tenant_id", tenant, "chunks", len(points), "duration", time.Since(start))
	return len(points), nil
}

// upsertConcurrent splits points into up to EmbedConcurrency disjoint
// ranges and upserts them concurrently (spec §5).
func (e *Embedder) upsertConcurrent(ctx context.Context, collection string, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}
	workers := e.cfg.EmbedConcurrency
	if workers > len(points) {
		workers = len(points)
	}
	chunkLen := (len(points) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(points); start += chunkLen {
		end := start + chunkLen
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]
		g.Go(func() error {
			return e.index.Upsert(gctx, collection, batch)
		})
	}
	return g.Wait()
}

// SearchSimilar implements spec §4.6 "Similarity search": embeds query_text
// and delegates to the vector index, mapping payload fields back into typed
// results.
func (e *Embedder) SearchSimilar(ctx context.Context, queryText string, limit int, tenant, collection, model string) ([]DocumentSearchResult, error) {
	if queryText == "" || tenant == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "ingest.SearchSimilar", errMissingRequiredField)
	}
	collection = e.resolveCollection(collection)

	vec, err := e.generator.Embed(ctx, queryText, model, tenant)
	if err != nil {
		return nil, err
	}

	hits, err := e.index.Search(ctx, collection, vec, tenant, limit, 0, nil)
	if err != nil {
		return nil, err
	}

	out := make([]DocumentSearchResult, len(hits))
	for i, h := range hits {
		out[i] = DocumentSearchResult{
			ID:            h.ID,
			Score:         h.Score,
			Text:          stringField(h.Payload, vectorindex.PayloadText),
			DocumentID:    stringField(h.Payload, vectorindex.PayloadDocumentID),
			DocumentTitle: stringField(h.Payload, vectorindex.PayloadDocumentTitle),
			Section:       stringField(h.Payload, vectorindex.PayloadSection),
			ChunkIndex:    intField(h.Payload, vectorindex.PayloadChunkIndex),
		}
	}
	return out, nil
}

// DeleteDocument implements spec §4.6 "Deletion": removes every point
// belonging to documentID for tenant.
func (e *Embedder) DeleteDocument(ctx context.Context, documentID, tenant, collection string) error {
	if documentID == "" || tenant == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "ingest.DeleteDocument", errMissingRequiredField)
	}
	collection = e.resolveCollection(collection)
	return e.index.DeleteDocument(ctx, collection, documentID, tenant)
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func intField(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
