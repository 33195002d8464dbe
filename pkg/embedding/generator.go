package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/resilience"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
)

// Config tunes a [Generator]'s batching, truncation, retry, and
// normalization behavior (spec §4.4, §6.4 "embeddings" section).
type Config struct {
	// DefaultModel is used when a caller does not specify one.
	DefaultModel string

	// MaxInputLength truncates any text longer than this many runes before
	// embedding. Default: 8192.
	MaxInputLength int

	// MaxBatchSize caps how many texts are sent to the backend per call;
	// larger inputs are split into multiple batches. Default: 32.
	MaxBatchSize int

	// MaxRetryAttempts is the total number of attempts per backend call,
	// including the first. Default: 3.
	MaxRetryAttempts int

	// RetryDelayMs is the base backoff delay in milliseconds. Default: 500.
	RetryDelayMs int

	// NormalizeVectors, when true, L2-normalizes every returned vector.
	NormalizeVectors bool
}

func (c Config) withDefaults() Config {
	if c.MaxInputLength <= 0 {
		c.MaxInputLength = 8192
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 32
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = 3
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = 500
	}
	return c
}

// Generator implements the Embedding Generator contract (C6) over one or
// more named [Backend]s.
type Generator struct {
	cfg      Config
	backends map[string]Backend

	mu       sync.Mutex
	dims     map[string]int
	breakers map[string]*resilience.CircuitBreaker

	metrics *observe.Metrics
}

// NewGenerator builds a Generator backed by the given named backends. Keys
// are model identifiers as reported by each Backend.ModelID(); callers
// typically register one backend per model they intend to serve.
func NewGenerator(cfg Config, backends map[string]Backend) *Generator {
	return &Generator{
		cfg:      cfg.withDefaults(),
		backends: backends,
		dims:     make(map[string]int),
		breakers: make(map[string]*resilience.CircuitBreaker),
		metrics:  observe.DefaultMetrics(),
	}
}

// breakerFor returns the circuit breaker guarding calls to model's backend,
// creating one on first use so a persistently failing backend fails fast
// instead of every caller paying the full retry budget on each call.
func (g *Generator) breakerFor(model string) *resilience.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[model]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "embedding." + model})
		g.breakers[model] = cb
	}
	return cb
}

func (g *Generator) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return g.cfg.DefaultModel
}

func (g *Generator) backendFor(model string) (Backend, error) {
	b, ok := g.backends[model]
	if !ok {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "embedding.Generator", fmt.Errorf("no backend registered for model %q", model))
	}
	return b, nil
}

// truncate clamps text to MaxInputLength runes, returning the (possibly
// shortened) text and whether truncation occurred.
func (g *Generator) truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= g.cfg.MaxInputLength {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:g.cfg.MaxInputLength]), true
}

// Embed computes the embedding vector for a single text string using model
// (or DefaultModel when empty). tenant is used only to attribute the
// truncation warning in the log.
func (g *Generator) Embed(ctx context.Context, text string, model, tenant string) ([]float32, error) {
	model = g.resolveModel(model)
	backend, err := g.backendFor(model)
	if err != nil {
		return nil, err
	}

	truncated, wasTruncated := g.truncate(text)
	if wasTruncated {
		observe.Logger(ctx).Warn("embedding: input truncated",
			"model", model, "tenant_id", tenant, "max_input_length", g.cfg.MaxInputLength)
	}

	var vec []float32
	start := time.Now()
	err = g.breakerFor(model).Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			MaxAttempts: g.cfg.MaxRetryAttempts,
			BaseDelay:   time.Duration(g.cfg.RetryDelayMs) * time.Millisecond,
		}, nil, func() error {
			var callErr error
			vec, callErr = backend.Embed(ctx, truncated)
			return callErr
		})
	})
	g.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("model", model)))
	if err != nil {
		g.metrics.RecordCoreError(ctx, "embedding", coreerr.KindTransient.String())
		return nil, coreerr.New(coreerr.KindTransient, "embedding.Generator.Embed", err)
	}

	g.cacheDimension(model, len(vec))
	if g.cfg.NormalizeVectors {
		normalize(vec)
	}
	return vec, nil
}

// EmbedBatch computes embedding vectors for texts, splitting into batches of
// at most MaxBatchSize and concatenating results in input order.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string, model, tenant string) ([][]float32, error) {
	model = g.resolveModel(model)
	backend, err := g.backendFor(model)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	truncatedAny := false
	for i, t := range texts {
		truncated, was := g.truncate(t)
		prepared[i] = truncated
		truncatedAny = truncatedAny || was
	}
	if truncatedAny {
		observe.Logger(ctx).Warn("embedding: one or more batch inputs truncated",
			"model", model, "tenant_id", tenant, "max_input_length", g.cfg.MaxInputLength)
	}

	result := make([][]float32, 0, len(prepared))
	for start := 0; start < len(prepared); start += g.cfg.MaxBatchSize {
		end := start + g.cfg.MaxBatchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch := prepared[start:end]

		var vecs [][]float32
		callStart := time.Now()
		err := g.breakerFor(model).Execute(func() error {
			return resilience.Retry(ctx, resilience.RetryConfig{
				MaxAttempts: g.cfg.MaxRetryAttempts,
				BaseDelay:   time.Duration(g.cfg.RetryDelayMs) * time.Millisecond,
			}, nil, func() error {
				var callErr error
				vecs, callErr = backend.EmbedBatch(ctx, batch)
				return callErr
			})
		})
		g.metrics.EmbeddingDuration.Record(ctx, time.Since(callStart).Seconds(), metric.WithAttributes(attribute.String("model", model)))
		if err != nil {
			g.metrics.RecordCoreError(ctx, "embedding", coreerr.KindTransient.String())
			return nil, coreerr.New(coreerr.KindTransient, "embedding.Generator.EmbedBatch", err)
		}
		if len(vecs) != len(batch) {
			return nil, coreerr.New(coreerr.KindInternal, "embedding.Generator.EmbedBatch",
				fmt.Errorf("backend returned %d vectors for %d inputs", len(vecs), len(batch)))
		}

		for _, v := range vecs {
			g.cacheDimension(model, len(v))
			if g.cfg.NormalizeVectors {
				normalize(v)
			}
			result = append(result, v)
		}
	}
	return result, nil
}

// Dimension returns the cached vector length for model, probing the backend
// with a single embed call if the dimension is not yet known.
func (g *Generator) Dimension(ctx context.Context, model string) (int, error) {
	model = g.resolveModel(model)

	g.mu.Lock()
	if d, ok := g.dims[model]; ok {
		g.mu.Unlock()
		return d, nil
	}
	g.mu.Unlock()

	backend, err := g.backendFor(model)
	if err != nil {
		return 0, err
	}
	if d := backend.Dimensions(); d > 0 {
		g.cacheDimension(model, d)
		return d, nil
	}

	// Fall back to a probe call.
	vec, err := backend.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, coreerr.New(coreerr.KindTransient, "embedding.Generator.Dimension", err)
	}
	g.cacheDimension(model, len(vec))
	return len(vec), nil
}

func (g *Generator) cacheDimension(model string, dim int) {
	if dim <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dims[model]; !ok {
		g.dims[model] = dim
	}
}

// normalize scales v in place to unit L2 norm. Zero vectors are left as-is
// to avoid division by zero.
func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
}
