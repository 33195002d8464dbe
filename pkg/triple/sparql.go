package triple

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
)

// SPARQLResult is the output of Store.ExecuteSPARQL. Exactly one of
// Bindings (SELECT) or Triples (CONSTRUCT) is populated.
type SPARQLResult struct {
	Variables []string
	Bindings  []map[string]string
	Triples   []Triple
}

// sparqlPattern is one parsed "subject predicate object" clause from a
// WHERE block.
type sparqlPattern struct {
	subject   string
	predicate string
	object    string
}

var (
	selectRe    = regexp.MustCompile(`(?is)^\s*SELECT\s+(.+?)\s+WHERE\s*\{(.*)\}\s*(?:LIMIT\s+(\d+))?\s*$`)
	constructRe = regexp.MustCompile(`(?is)^\s*CONSTRUCT\s*\{(.*?)\}\s+WHERE\s*\{(.*)\}\s*(?:LIMIT\s+(\d+))?\s*$`)
	tokenRe     = regexp.MustCompile(`<[^>]*>|"[^"]*"|\?\w+|[^\s.]+`)
)

// parseSPARQL recognizes the minimal SELECT/CONSTRUCT subset: a flat list of
// "subject predicate object ." triple patterns inside a single WHERE block,
// no nested graph patterns, OPTIONAL, or UNION. This is sufficient for the
// structural querying SPARQL is meant to expose atop the triple store; it is
// not a general-purpose SPARQL engine.
func parseSPARQL(query string) (isConstruct bool, template []sparqlPattern, where []sparqlPattern, limit int, err error) {
	query = strings.TrimSpace(query)
	if m := constructRe.FindStringSubmatch(query); m != nil {
		template, err = parsePatterns(m[1])
		if err != nil {
			return false, nil, nil, 0, err
		}
		where, err = parsePatterns(m[2])
		if err != nil {
			return false, nil, nil, 0, err
		}
		limit = parseLimit(m[3])
		return true, template, where, limit, nil
	}
	if m := selectRe.FindStringSubmatch(query); m != nil {
		where, err = parsePatterns(m[2])
		if err != nil {
			return false, nil, nil, 0, err
		}
		limit = parseLimit(m[3])
		return false, nil, where, limit, nil
	}
	return false, nil, nil, 0, fmt.Errorf("only SELECT and CONSTRUCT queries are supported")
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	n := 0
	fmt.Sscanf(raw, "%d", &n)
	return n
}

func parsePatterns(block string) ([]sparqlPattern, error) {
	var patterns []sparqlPattern
	for _, clause := range strings.Split(block, ".") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		toks := tokenRe.FindAllString(clause, -1)
		if len(toks) < 3 {
			return nil, fmt.Errorf("malformed triple pattern: %q", clause)
		}
		patterns = append(patterns, sparqlPattern{subject: toks[0], predicate: toks[1], object: toks[2]})
	}
	return patterns, nil
}

func isVar(tok string) bool { return strings.HasPrefix(tok, "?") }

func termValue(tok string) string {
	if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		return strings.Trim(tok, "<>")
	}
	return strings.Trim(tok, `"`)
}

// matchPatterns evaluates where against triples (already tenant-scoped by
// the caller), returning one binding map per satisfying assignment.
func matchPatterns(triples []Triple, where []sparqlPattern) []map[string]string {
	bindings := []map[string]string{{}}
	for _, pat := range where {
		var next []map[string]string
		for _, b := range bindings {
			for _, t := range triples {
				nb := matchOne(pat, t, b)
				if nb != nil {
					next = append(next, nb)
				}
			}
		}
		bindings = next
		if len(bindings) == 0 {
			return nil
		}
	}
	return bindings
}

func matchOne(pat sparqlPattern, t Triple, b map[string]string) map[string]string {
	obj := t.ObjectID
	candidate := map[string]string{}
	for k, v := range b {
		candidate[k] = v
	}
	if !bindTerm(pat.subject, t.SubjectID, candidate) {
		return nil
	}
	if !bindTerm(pat.predicate, t.PredicateURI, candidate) {
		return nil
	}
	if !bindTerm(pat.object, obj, candidate) {
		return nil
	}
	return candidate
}

func bindTerm(tok, value string, b map[string]string) bool {
	if isVar(tok) {
		if existing, ok := b[tok]; ok {
			return existing == value
		}
		b[tok] = value
		return true
	}
	return termValue(tok) == value
}

// ExecuteSPARQLOver runs a parsed SELECT/CONSTRUCT query against an
// already tenant-filtered triple set. Store implementations call this after
// restricting candidates to the requesting tenant, satisfying the
// tenant-isolation requirement without relying on query text.
func ExecuteSPARQLOver(query string, triples []Triple) (SPARQLResult, error) {
	isConstruct, template, where, limit, err := parseSPARQL(query)
	if err != nil {
		return SPARQLResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.ExecuteSPARQL", err)
	}

	bindings := matchPatterns(triples, where)
	if limit > 0 && len(bindings) > limit {
		bindings = bindings[:limit]
	}

	if isConstruct {
		var out []Triple
		for _, b := range bindings {
			for _, pat := range template {
				out = append(out, Triple{
					SubjectID:    resolveTerm(pat.subject, b),
					PredicateURI: resolveTerm(pat.predicate, b),
					ObjectID:     resolveTerm(pat.object, b),
				})
			}
		}
		return SPARQLResult{Triples: out}, nil
	}

	vars := distinctVars(where)
	return SPARQLResult{Variables: vars, Bindings: bindings}, nil
}

func resolveTerm(tok string, b map[string]string) string {
	if isVar(tok) {
		return b[tok]
	}
	return termValue(tok)
}

func distinctVars(where []sparqlPattern) []string {
	seen := map[string]bool{}
	var vars []string
	for _, pat := range where {
		for _, tok := range []string{pat.subject, pat.predicate, pat.object} {
			if isVar(tok) && !seen[tok] {
				seen[tok] = true
				vars = append(vars, tok)
			}
		}
	}
	return vars
}
