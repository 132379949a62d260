package planner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/graphfed/gateway/federation/graph"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/n9te9/graphql-parser/ast"
	"golang.org/x/sync/singleflight"
)

// CostWeights holds the cost-model weights of a planning run (core spec §9
// open question). CachingPlanner hashes them into its plan fingerprint;
// PlanOptimized does not read them: its subgraph choice follows the
// federated graph's edge weights (0 within a subgraph, 1 per @key crossing).
type CostWeights struct {
	FetchBase float64
	Alpha     float64
	Beta      float64
}

// DefaultCostWeights is the weight set DefaultPlannerOptions carries.
var DefaultCostWeights = CostWeights{FetchBase: 1.0, Alpha: 1.0, Beta: 0.1}

// PlannerOptions bounds search and fixes the cost model for a planning run.
type PlannerOptions struct {
	MaxDepth           int
	MaxPlansConsidered int
	CostWeights        CostWeights
	CacheSize          int
}

// DefaultPlannerOptions is a ready-made option set. CachingPlanner.Plan
// enforces its MaxDepth and MaxPlansConsidered; PlanOptimized itself applies
// no search bound.
var DefaultPlannerOptions = PlannerOptions{
	MaxDepth:           32,
	MaxPlansConsidered: 256,
	CostWeights:        DefaultCostWeights,
	CacheSize:          512,
}

// CachingPlanner wraps PlannerV2 with a bounded plan cache and single-flight
// de-duplication, fingerprinting each request on (schema identity, operation
// text, variable shape, options) per core spec §5's "fingerprint-keyed cache"
// and §8 scenario 6 ("repeated identical query reuses the cached plan").
type CachingPlanner struct {
	inner    *PlannerV2
	schemaID string
	options  PlannerOptions
	cache    *lru.Cache[uint64, *PlanV2]
	group    singleflight.Group
}

// NewCachingPlanner builds a CachingPlanner over superGraph. schemaID should
// change whenever the supergraph is recomposed, invalidating old fingerprints
// implicitly since they hash it in.
func NewCachingPlanner(superGraph *graph.SuperGraphV2, schemaID string, options PlannerOptions) (*CachingPlanner, error) {
	if options.CacheSize <= 0 {
		options.CacheSize = DefaultPlannerOptions.CacheSize
	}
	cache, err := lru.New[uint64, *PlanV2](options.CacheSize)
	if err != nil {
		return nil, err
	}
	return &CachingPlanner{
		inner:    NewPlannerV2(superGraph),
		schemaID: schemaID,
		options:  options,
		cache:    cache,
	}, nil
}

// Plan returns a cached PlanV2 for an identical (operationText, variables)
// pair when one exists, otherwise plans once per fingerprint even under
// concurrent identical requests and caches the result.
func (c *CachingPlanner) Plan(operationText string, doc *ast.Document, variables map[string]any) (*PlanV2, error) {
	key := c.fingerprint(operationText, variables)

	if plan, ok := c.cache.Get(key); ok {
		return plan, nil
	}

	result, err, _ := c.group.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if plan, ok := c.cache.Get(key); ok {
			return plan, nil
		}
		if depth := operationDepth(doc); c.options.MaxDepth > 0 && depth > c.options.MaxDepth {
			return nil, newError(ErrQueryPlanComplexityExceeded, "operation selection depth %d exceeds max depth %d", depth, c.options.MaxDepth)
		}

		plan, err := c.inner.PlanOptimized(doc, variables)
		if err != nil {
			return nil, err
		}
		if c.options.MaxPlansConsidered > 0 && len(plan.Steps) > c.options.MaxPlansConsidered {
			return nil, newError(ErrQueryPlanComplexityExceeded, "plan step count %d exceeds max plans considered %d", len(plan.Steps), c.options.MaxPlansConsidered)
		}
		c.cache.Add(key, plan)
		return plan, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*PlanV2), nil
}

// operationDepth returns the deepest selection-set nesting level across every
// operation in doc, counting fragment spreads and inline fragments as
// transparent (they do not add a level of their own).
func operationDepth(doc *ast.Document) int {
	max := 0
	fragments := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok {
			fragments[frag.Name.String()] = frag
		}
	}
	var walk func(sels []ast.Selection, level int, seen map[string]bool)
	walk = func(sels []ast.Selection, level int, seen map[string]bool) {
		if level > max {
			max = level
		}
		for _, sel := range sels {
			switch s := sel.(type) {
			case *ast.Field:
				if len(s.SelectionSet) > 0 {
					walk(s.SelectionSet, level+1, seen)
				}
			case *ast.InlineFragment:
				walk(s.SelectionSet, level, seen)
			case *ast.FragmentSpread:
				name := s.Name.String()
				if seen[name] {
					continue
				}
				if frag, ok := fragments[name]; ok {
					seen[name] = true
					walk(frag.SelectionSet, level, seen)
					delete(seen, name)
				}
			}
		}
	}
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			walk(op.SelectionSet, 1, make(map[string]bool))
		}
	}
	return max
}

// fingerprint hashes the schema identity, operation text, the set of
// variable names supplied (not their values: coerced argument values do not
// change the shape of a plan, only @skip/@include's boolean variables would,
// and those are resolved at execution time against the already-planned step
// selection sets), and the planner options in effect.
func (c *CachingPlanner) fingerprint(operationText string, variables map[string]any) uint64 {
	h := xxhash.New()
	h.WriteString(c.schemaID)
	h.WriteString("\x00")
	h.WriteString(operationText)
	h.WriteString("\x00")

	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)
	h.WriteString(strings.Join(names, ","))
	h.WriteString("\x00")

	h.WriteString(strconv.Itoa(c.options.MaxDepth))
	h.WriteString(",")
	h.WriteString(strconv.Itoa(c.options.MaxPlansConsidered))
	h.WriteString(",")
	h.WriteString(strconv.FormatFloat(c.options.CostWeights.FetchBase, 'f', -1, 64))
	h.WriteString(",")
	h.WriteString(strconv.FormatFloat(c.options.CostWeights.Alpha, 'f', -1, 64))
	h.WriteString(",")
	h.WriteString(strconv.FormatFloat(c.options.CostWeights.Beta, 'f', -1, 64))

	return h.Sum64()
}
