// Package llm provides a relation.Extractor that asks a chat-completion
// model, in a single structured call, to identify typed relations between
// the supplied entities.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
)

// DefaultModel is used when the caller does not specify one.
const DefaultModel = "gpt-4o-mini"

var _ relation.Extractor = (*Extractor)(nil)

// Extractor implements relation.Extractor using a single chat-completion
// call that returns a JSON array of candidate relations.
type Extractor struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the extractor.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for New.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option { return func(c *config) { c.baseURL = url } }

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option { return func(c *config) { c.organization = org } }

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// New constructs an Extractor backed by the OpenAI chat-completion API.
func New(apiKey, model string, opts ...Option) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("relation/extractor/llm: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Extractor{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements relation.Extractor.
func (e *Extractor) Name() string { return "llm" }

// SupportedTypes implements relation.Extractor. The model may emit any
// closed type plus DomainSpecific; callers relying on SupportedTypes for
// pre-filtering should treat this extractor as a wildcard.
func (e *Extractor) SupportedTypes() []relation.Type { return nil }

// Validate implements relation.Extractor. The model is trusted to have
// already reasoned about type compatibility; this always returns true so
// that validate_entity_types does not reject every LLM-sourced candidate.
func (e *Extractor) Validate(source, target relation.Entity, relType relation.Type) bool {
	return true
}

// candidateRelation is the JSON shape the model is asked to emit.
type candidateRelation struct {
	SourceEntityID string  `json:"source_entity_id"`
	TargetEntityID string  `json:"target_entity_id"`
	RelationType   string  `json:"relation_type"`
	RelationName   string  `json:"relation_name,omitempty"`
	Confidence     float64 `json:"confidence"`
	IsDirectional  bool    `json:"is_directional"`
	Context        string  `json:"context,omitempty"`
}

// Extract implements relation.Extractor.
func (e *Extractor) Extract(ctx context.Context, text string, entities []relation.Entity, sourceDocumentID, tenantID string) ([]relation.Relation, error) {
	prompt := buildPrompt(text, entities)

	resp, err := e.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage("You extract typed relations between entities from text and answer with a JSON array only, no prose."),
			oai.UserMessage(prompt),
		},
		Temperature: param.NewOpt(0.0),
	})
	if err != nil {
		return nil, fmt.Errorf("relation/extractor/llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("relation/extractor/llm: empty choices in response")
	}

	raw := extractJSONArray(resp.Choices[0].Message.Content)
	var candidates []candidateRelation
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("relation/extractor/llm: parse model output: %w", err)
	}

	now := time.Now()
	out := make([]relation.Relation, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, relation.Relation{
			TenantID:         tenantID,
			SourceEntityID:   c.SourceEntityID,
			TargetEntityID:   c.TargetEntityID,
			RelationType:     relation.Type(c.RelationType),
			RelationName:     c.RelationName,
			Confidence:       c.Confidence,
			IsDirectional:    c.IsDirectional,
			SourceDocumentID: sourceDocumentID,
			SourceContext:    c.Context,
			ExtractionMethod: e.Name(),
			CreatedAt:        now,
			UpdatedAt:        now,
			Version:          1,
		})
	}
	return out, nil
}

// buildPrompt renders the text and known entities into an instruction asking
// for a JSON array of candidateRelation objects.
func buildPrompt(text string, entities []relation.Entity) string {
	var b strings.Builder
	b.WriteString("Entities (id: name [type]):\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s: %s [%s]\n", e.ID, e.Name, e.Type)
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON array of objects with keys: source_entity_id, target_entity_id, relation_type, relation_name (only for DomainSpecific), confidence (0-1), is_directional, context.")
	return b.String()
}

// extractJSONArray trims surrounding prose/code fences the model may add
// despite instructions, returning the first top-level JSON array found.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return "[]"
	}
	return s[start : end+1]
}
