package relation

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
)

// Config tunes the Relation Mapping Pipeline (spec §4.1, §6.4
// "relation_mapping" section).
type Config struct {
	MinConfidenceThreshold float64
	AllowSelfRelations     bool
	ValidateEntityTypes    bool
	AutoConvertToTriples   bool
	DefaultGraphURI        string
}

func (c Config) withDefaults() Config {
	if c.MinConfidenceThreshold == 0 {
		c.MinConfidenceThreshold = 0.5
	}
	return c
}

// Converter maps surviving Relations onto triples and stores them. It is
// satisfied by a pkg/triple Mapper+Store pairing, wired in at the caller
// (cmd/knowledgecore) to avoid a direct package dependency from relation to
// triple.
type Converter interface {
	ConvertAndStore(ctx context.Context, relations []Relation, tenantID, graphURI string) error
}

// Pipeline implements the Relation Mapping Pipeline (C2): it selects
// extractors, fans them out, validates and deduplicates their output, and
// optionally hands the survivors to a Converter.
type Pipeline struct {
	registry  *Registry
	cfg       Config
	converter Converter
	metrics   *observe.Metrics
}

// NewPipeline builds a Pipeline over registry's extractors. converter may be
// nil; if so, AutoConvertToTriples is a no-op regardless of configuration.
func NewPipeline(registry *Registry, cfg Config, converter Converter) *Pipeline {
	return &Pipeline{
		registry:  registry,
		cfg:       cfg.withDefaults(),
		converter: converter,
		metrics:   observe.DefaultMetrics(),
	}
}

// Process runs the full pipeline: select → extract (fan-out) → validate →
// deduplicate → optional auto-convert. extractorFilter, when non-empty,
// selects extractors whose name contains (case-insensitively) any filter
// token; an empty selection falls back to all extractors with a warning.
func (p *Pipeline) Process(ctx context.Context, text string, entities []Entity, sourceDocumentID, tenantID string, extractorFilter []string) ([]Relation, error) {
	if text == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "relation.Pipeline.Process", errEmptyText)
	}
	if entities == nil {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "relation.Pipeline.Process", errNilEntities)
	}
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "relation.Pipeline.Process", errEmptyTenant)
	}

	extractors := p.selectExtractors(ctx, extractorFilter)
	candidates := p.extractAll(ctx, extractors, text, entities, sourceDocumentID, tenantID)
	validated := p.validate(entities, candidates)
	deduped := deduplicate(validated)

	if p.cfg.AutoConvertToTriples && p.converter != nil && len(deduped) > 0 {
		if err := p.converter.ConvertAndStore(ctx, deduped, tenantID, p.cfg.DefaultGraphURI); err != nil {
			observe.Logger(ctx).Warn("relation: auto-convert to triples failed", "error", err, "tenant_id", tenantID)
		}
	}

	return deduped, nil
}

// selectExtractors picks extractors whose Name() contains, case
// insensitively, any token in filter. An empty filter, or one that matches
// nothing, returns every registered extractor.
func (p *Pipeline) selectExtractors(ctx context.Context, filter []string) []Extractor {
	all := p.registry.All()
	if len(filter) == 0 {
		return all
	}

	tokens := make([]string, len(filter))
	for i, f := range filter {
		tokens[i] = strings.ToLower(f)
	}

	var selected []Extractor
	for _, e := range all {
		name := strings.ToLower(e.Name())
		for _, t := range tokens {
			if strings.Contains(name, t) {
				selected = append(selected, e)
				break
			}
		}
	}

	if len(selected) == 0 {
		observe.Logger(ctx).Warn("relation: extractor_filter matched no extractors; falling back to all", "filter", filter)
		return all
	}
	return selected
}

// extractAll fans out one goroutine per extractor. A single extractor's
// error is logged and does not abort the others or the pipeline.
func (p *Pipeline) extractAll(ctx context.Context, extractors []Extractor, text string, entities []Entity, sourceDocumentID, tenantID string) []Relation {
	var (
		mu      sync.Mutex
		results []Relation
	)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, e := range extractors {
		e := e
		g.Go(func() error {
			start := time.Now()
			rels, err := e.Extract(gctx, text, entities, sourceDocumentID, tenantID)
			if err != nil {
				observe.Logger(ctx).Warn("relation: extractor failed", "extractor", e.Name(), "error", err)
				return nil
			}
			p.metrics.RecordRelationsExtracted(ctx, e.Name(), int64(len(rels)))
			observe.Logger(ctx).Debug("relation: extractor completed", "extractor", e.Name(), "count", len(rels), "duration", time.Since(start))

			mu.Lock()
			results = append(results, rels...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // extractor errors are already swallowed above; this only waits

	return results
}

// validate applies the per-candidate rules from spec §4.1 step 4.
func (p *Pipeline) validate(entities []Entity, candidates []Relation) []Relation {
	entityByID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		entityByID[e.ID] = e
	}

	out := make([]Relation, 0, len(candidates))
	for _, r := range candidates {
		if r.Confidence < p.cfg.MinConfidenceThreshold {
			p.metrics.RecordRelationDropped(context.Background(), "low_confidence")
			continue
		}
		source, sourceOK := entityByID[r.SourceEntityID]
		target, targetOK := entityByID[r.TargetEntityID]
		if !sourceOK || !targetOK {
			p.metrics.RecordRelationDropped(context.Background(), "missing_entity")
			continue
		}
		if r.TenantID == "" {
			p.metrics.RecordRelationDropped(context.Background(), "empty_tenant")
			continue
		}
		if !p.cfg.AllowSelfRelations && r.SourceEntityID == r.TargetEntityID {
			p.metrics.RecordRelationDropped(context.Background(), "self_relation")
			continue
		}
		if p.cfg.ValidateEntityTypes {
			if ext, err := p.registry.Get(r.ExtractionMethod); err == nil {
				if !ext.Validate(source, target, r.RelationType) {
					p.metrics.RecordRelationDropped(context.Background(), "type_mismatch")
					continue
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// deduplicate keeps the highest-confidence Relation per (source, target,
// type) key; ties resolve to the first-seen candidate.
func deduplicate(relations []Relation) []Relation {
	best := make(map[dedupKey]int, len(relations)) // key -> index in `out`
	out := make([]Relation, 0, len(relations))

	for _, r := range relations {
		k := r.key()
		if idx, ok := best[k]; ok {
			if r.Confidence > out[idx].Confidence {
				out[idx] = r
			}
			continue
		}
		best[k] = len(out)
		out = append(out, r)
	}
	return out
}
