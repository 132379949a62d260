package compose

// Strategies is the registry of directive-argument composition strategies
// (core spec §4.1 step 3). Callers merging a directive's argument look it up
// by name and call Merge on the per-subgraph argument values.
var Strategies = map[string]ArgumentStrategy{
	"MAX":          NewMaxStrategy(),
	"MIN":          NewMinStrategy(),
	"SUM":          NewSumStrategy(),
	"INTERSECTION": NewIntersectionStrategy(),
	"UNION":        NewUnionStrategy(),
}
