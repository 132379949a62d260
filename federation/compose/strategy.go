package compose

import "github.com/n9te9/graphql-parser/ast"

// ArgumentStrategy merges a directive argument's values across subgraphs into
// one supergraph value. Strategies are keyed by name (MAX, MIN, SUM,
// INTERSECTION, UNION) and each only supports a subset of argument types.
type ArgumentStrategy interface {
	Name() string
	Supports(t ast.Type) bool
	Merge(values []any) (any, error)
}

// baseTypeName unwraps List/NonNull wrappers to the named type, mirroring
// planner.PlannerV2.getNamedType.
func baseTypeName(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return baseTypeName(typ.Type)
	case *ast.NonNullType:
		return baseTypeName(typ.Type)
	default:
		return ""
	}
}

func isNonNull(t ast.Type) bool {
	_, ok := t.(*ast.NonNullType)
	return ok
}

func isList(t ast.Type) bool {
	switch typ := t.(type) {
	case *ast.NonNullType:
		return isList(typ.Type)
	case *ast.ListType:
		return true
	default:
		_ = typ
		return false
	}
}

// fixedTypeSupport rejects anything but the named scalar type, non-null.
type fixedTypeSupport struct {
	name string
}

func (f fixedTypeSupport) Supports(t ast.Type) bool {
	return isNonNull(t) && baseTypeName(t) == f.name
}

// nonNullListSupport accepts a non-null list of any element type, matching
// Apollo's "support_any_non_null_array" validator.
type nonNullListSupport struct{}

func (nonNullListSupport) Supports(t ast.Type) bool {
	return isNonNull(t) && isList(t)
}

// MaxStrategy takes the maximum of a set of Int arguments.
type MaxStrategy struct{ fixedTypeSupport }

func NewMaxStrategy() *MaxStrategy { return &MaxStrategy{fixedTypeSupport{name: "Int"}} }
func (s *MaxStrategy) Name() string { return "MAX" }
func (s *MaxStrategy) Merge(values []any) (any, error) {
	best := int64(minInt64)
	for _, v := range values {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n > best {
			best = n
		}
	}
	return best, nil
}

// MinStrategy takes the minimum of a set of Int arguments.
type MinStrategy struct{ fixedTypeSupport }

func NewMinStrategy() *MinStrategy { return &MinStrategy{fixedTypeSupport{name: "Int"}} }
func (s *MinStrategy) Name() string { return "MIN" }
func (s *MinStrategy) Merge(values []any) (any, error) {
	best := int64(maxInt64)
	for _, v := range values {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < best {
			best = n
		}
	}
	return best, nil
}

// SumStrategy adds Int arguments together (saturating, matching Apollo's
// saturating_add so overflow never panics).
type SumStrategy struct{ fixedTypeSupport }

func NewSumStrategy() *SumStrategy { return &SumStrategy{fixedTypeSupport{name: "Int"}} }
func (s *SumStrategy) Name() string { return "SUM" }
func (s *SumStrategy) Merge(values []any) (any, error) {
	var total int64
	for _, v := range values {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		total = saturatingAdd(total, n)
	}
	return total, nil
}

// IntersectionStrategy keeps only values present in every subgraph's list.
type IntersectionStrategy struct{ nonNullListSupport }

func NewIntersectionStrategy() *IntersectionStrategy { return &IntersectionStrategy{} }
func (s *IntersectionStrategy) Name() string          { return "INTERSECTION" }
func (s *IntersectionStrategy) Merge(values []any) (any, error) {
	lists, err := toStringLists(values)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return []string{}, nil
	}
	result := lists[0]
	for _, list := range lists[1:] {
		set := make(map[string]bool, len(list))
		for _, v := range list {
			set[v] = true
		}
		filtered := result[:0:0]
		for _, v := range result {
			if set[v] {
				filtered = append(filtered, v)
			}
		}
		result = filtered
	}
	return result, nil
}

// UnionStrategy merges lists with de-duplication, preserving first-seen order.
type UnionStrategy struct{ nonNullListSupport }

func NewUnionStrategy() *UnionStrategy { return &UnionStrategy{} }
func (s *UnionStrategy) Name() string   { return "UNION" }
func (s *UnionStrategy) Merge(values []any) (any, error) {
	lists, err := toStringLists(values)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var result []string
	for _, list := range lists {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				result = append(result, v)
			}
		}
	}
	return result, nil
}

const (
	minInt64 = -1 << 63
	maxInt64 = 1<<63 - 1
)

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return maxInt64
		}
		return minInt64
	}
	return sum
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, errNotInt
	}
}

func toStringLists(values []any) ([][]string, error) {
	lists := make([][]string, 0, len(values))
	for _, v := range values {
		list, ok := v.([]string)
		if !ok {
			return nil, errNotList
		}
		lists = append(lists, list)
	}
	return lists, nil
}
