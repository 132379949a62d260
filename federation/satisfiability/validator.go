// Package satisfiability proves that every field selectable from the API
// schema is resolvable by some plan over the federated query graph (core
// spec §4.2).
package satisfiability

import (
	"fmt"
	"sort"

	"github.com/graphfed/gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
)

// Validate walks the supergraph's root types top-down and attempts a witness
// traversal for every (parent-type, field) tuple. It accumulates every
// unsatisfiability error before returning (core spec §4.2 failure semantics).
func Validate(sg *graph.SuperGraphV2) (hints []*Hint, errs []*Error) {
	if sg.Graph == nil {
		sg.Graph = graph.BuildGraph(sg.SubGraphs)
	}

	entryPoints := rootEntryPoints(sg, "Query")
	dijkstra := sg.Graph.Dijkstra(entryPoints)

	var typeNames []string
	for _, def := range sg.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok {
			typeNames = append(typeNames, objDef.Name.String())
		}
	}
	sort.Strings(typeNames)

	for _, typeName := range typeNames {
		objDef := findObjectType(sg, typeName)
		if objDef == nil {
			continue
		}
		for _, field := range objDef.Fields {
			fieldName := field.Name.String()
			if fieldErr := checkFieldReachable(sg, dijkstra, typeName, fieldName); fieldErr != nil {
				errs = append(errs, fieldErr)
			}
		}
	}

	errs = append(errs, checkDisjointRuntimeTypes(sg)...)
	errs = append(errs, checkInterfaceObjectKeys(sg)...)
	hints = append(hints, checkRedundantKeys(sg)...)

	return hints, errs
}

// checkInterfaceObjectKeys implements core spec §4.2's @interfaceObject
// special case: a subgraph that stores an interface's shared fields via
// @interfaceObject without ever declaring a resolvable @key for it can never
// be reached by an entity jump, since no subgraph can supply the
// representation needed to resolve into it.
func checkInterfaceObjectKeys(sg *graph.SuperGraphV2) []*Error {
	var errs []*Error
	reported := make(map[string]bool)
	for _, subGraph := range sg.SubGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			if !entity.IsInterfaceObject() || reported[typeName] {
				continue
			}
			if len(entity.Keys) == 0 || !entity.IsResolvable() {
				reported[typeName] = true
				errs = append(errs, interfaceObjectNoKeyError(typeName))
			}
		}
	}
	return errs
}

// rootEntryPoints returns the node keys for every subgraph's root operation
// type (core spec §3: "Root entry: virtual-root -> (G,QueryRoot) for every
// subgraph exposing the operation root").
func rootEntryPoints(sg *graph.SuperGraphV2, rootType string) []string {
	var entries []string
	for _, subGraph := range sg.SubGraphs {
		key := graph.NodeKey(subGraph.Name, rootType, "")
		if _, ok := sg.Graph.Nodes[key]; ok {
			entries = append(entries, key)
		}
	}
	return entries
}

func findObjectType(sg *graph.SuperGraphV2, typeName string) *ast.ObjectTypeDefinition {
	for _, def := range sg.Schema.Definitions {
		if objDef, ok := def.(*ast.ObjectTypeDefinition); ok && objDef.Name.String() == typeName {
			return objDef
		}
	}
	return nil
}

// requiresVisit identifies one (subgraph, type, field) witness attempt so
// the @requires recursion below can detect cycles instead of looping.
type requiresVisit struct {
	subgraph, typeName, fieldName string
}

const maxRequiresDepth = 8

// checkFieldReachable attempts a witness traversal for (typeName, fieldName):
// the field is reachable if some subgraph's field node has finite distance
// from the root entry points AND, when the field carries a @requires, every
// required field is itself witness-reachable (recursively, since a
// @requires target can itself require further fields). Non-entity types are
// resolved entirely within their owning subgraph and are always reachable
// once that subgraph's root is. Every subgraph that was attempted and failed
// contributes a reason to the final error, per core spec §4.2's expectation
// that a witness failure names why each candidate fell short.
func checkFieldReachable(sg *graph.SuperGraphV2, dijkstra *graph.DijkstraResult, typeName, fieldName string) *Error {
	const inf = int(^uint(0) >> 1)

	var reasons []string
	anyEntityTouches := false

	for _, subGraph := range sg.SubGraphs {
		entity, hasEntity := subGraph.GetEntity(typeName)
		if !hasEntity {
			continue
		}
		anyEntityTouches = true

		fieldKey := graph.NodeKey(subGraph.Name, typeName, fieldName)
		dist, reachable := dijkstra.Dist[fieldKey]
		if !reachable || dist == inf {
			reasons = append(reasons, fmt.Sprintf("%s: field node %s has no finite-cost path from any root", subGraph.Name, fieldKey))
			continue
		}

		visited := make(map[requiresVisit]bool)
		if ok, reason := requiresSatisfied(sg, dijkstra, subGraph, entity, typeName, fieldName, visited, 0); ok {
			return nil
		} else if reason != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", subGraph.Name, reason))
		}
	}

	if !anyEntityTouches {
		// Field not declared as part of any tracked entity; only entities are
		// graph-tracked (core spec §3 nodes are (subgraph,type) pairs for
		// types participating in entity resolution).
		return nil
	}

	// Special case: the only subgraphs touching this type have exclusively
	// non-resolvable keys, so no key-jump can ever reach it.
	for _, subGraph := range sg.SubGraphs {
		entity, ok := subGraph.GetEntity(typeName)
		if !ok {
			continue
		}
		if len(entity.Keys) > 0 && !entity.IsResolvable() {
			return nonResolvableKeyError(typeName, subGraph.Name)
		}
	}

	return unreachableFieldError(typeName, fieldName, reasons)
}

// requiresSatisfied recursively verifies that every field named in a
// @requires directive on (typeName, fieldName) within subGraph is itself
// witness-reachable. visited guards against cyclic @requires chains and
// maxRequiresDepth bounds runaway recursion on malformed schemas.
func requiresSatisfied(
	sg *graph.SuperGraphV2,
	dijkstra *graph.DijkstraResult,
	subGraph *graph.SubGraphV2,
	entity *graph.Entity,
	typeName, fieldName string,
	visited map[requiresVisit]bool,
	depth int,
) (bool, string) {
	if depth > maxRequiresDepth {
		return false, "max @requires recursion depth exceeded"
	}

	field, ok := entity.Fields[fieldName]
	if !ok || len(field.Requires) == 0 {
		return true, ""
	}

	key := requiresVisit{subGraph.Name, typeName, fieldName}
	if visited[key] {
		return false, "cyclic @requires chain"
	}
	visited[key] = true
	defer delete(visited, key)

	const inf = int(^uint(0) >> 1)
	for _, req := range field.Requires {
		satisfied := false
		for _, other := range sg.SubGraphs {
			otherEntity, ok := other.GetEntity(typeName)
			if !ok {
				continue
			}
			reqKey := graph.NodeKey(other.Name, typeName, req)
			dist, reachable := dijkstra.Dist[reqKey]
			if !reachable || dist == inf {
				continue
			}
			if ok, _ := requiresSatisfied(sg, dijkstra, other, otherEntity, typeName, req, visited, depth+1); ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false, fmt.Sprintf("@requires field %q on %s.%s is not itself satisfiable", req, typeName, fieldName)
		}
	}
	return true, ""
}

// checkDisjointRuntimeTypes implements core spec §4.2's explicit special
// case: "Shared field with non-intersecting runtime types across subgraphs".
func checkDisjointRuntimeTypes(sg *graph.SuperGraphV2) []*Error {
	var errs []*Error

	interfaces := make(map[string]bool)
	for _, def := range sg.Schema.Definitions {
		if intDef, ok := def.(*ast.InterfaceTypeDefinition); ok {
			interfaces[intDef.Name.String()] = true
		}
	}

	for fieldCoordinate, returnType := range sharedInterfaceFields(sg) {
		if !interfaces[returnType] {
			continue
		}
		runtimeTypesBySubgraph := make(map[string][]string)
		for _, subGraph := range sg.SubGraphs {
			impls := implementorsInSubgraph(subGraph, returnType)
			if len(impls) > 0 {
				runtimeTypesBySubgraph[subGraph.Name] = impls
			}
		}
		if len(runtimeTypesBySubgraph) < 2 {
			continue
		}
		if !runtimeSetsIntersect(runtimeTypesBySubgraph) {
			errs = append(errs, disjointRuntimeTypesError(fieldCoordinate, returnType))
		}
	}

	return errs
}

// sharedInterfaceFields returns, for every "Type.field" resolved in more
// than one subgraph, the field's base return type name.
func sharedInterfaceFields(sg *graph.SuperGraphV2) map[string]string {
	counts := make(map[string]map[string]bool) // field coordinate -> set of subgraphs
	baseType := make(map[string]string)

	for _, subGraph := range sg.SubGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			for fieldName, field := range entity.Fields {
				coordinate := fmt.Sprintf("%s.%s", typeName, fieldName)
				if counts[coordinate] == nil {
					counts[coordinate] = make(map[string]bool)
				}
				counts[coordinate][subGraph.Name] = true
				baseType[coordinate] = fieldBaseTypeName(field)
			}
		}
	}

	shared := make(map[string]string)
	for coordinate, subs := range counts {
		if len(subs) > 1 {
			shared[coordinate] = baseType[coordinate]
		}
	}
	return shared
}

func fieldBaseTypeName(field *graph.Field) string {
	switch t := field.Type.(type) {
	case *ast.NamedType:
		return t.Name.String()
	case *ast.ListType:
		return listElementName(t.Type)
	case *ast.NonNullType:
		return fieldBaseTypeNameOf(t.Type)
	default:
		return ""
	}
}

func fieldBaseTypeNameOf(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NamedType:
		return typ.Name.String()
	case *ast.ListType:
		return listElementName(typ.Type)
	case *ast.NonNullType:
		return fieldBaseTypeNameOf(typ.Type)
	default:
		return ""
	}
}

func listElementName(t ast.Type) string {
	return fieldBaseTypeNameOf(t)
}

func implementorsInSubgraph(subGraph *graph.SubGraphV2, interfaceName string) []string {
	var impls []string
	for _, def := range subGraph.Schema.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}
		for _, iface := range objDef.Interfaces {
			if named, ok := iface.(*ast.NamedType); ok && named.Name.String() == interfaceName {
				impls = append(impls, objDef.Name.String())
			}
		}
	}
	sort.Strings(impls)
	return impls
}

func runtimeSetsIntersect(bySubgraph map[string][]string) bool {
	var sets [][]string
	for _, v := range bySubgraph {
		sets = append(sets, v)
	}
	intersection := make(map[string]bool)
	for _, t := range sets[0] {
		intersection[t] = true
	}
	for _, set := range sets[1:] {
		next := make(map[string]bool)
		for _, t := range set {
			if intersection[t] {
				next[t] = true
			}
		}
		intersection = next
	}
	return len(intersection) > 0
}

// checkRedundantKeys emits a hint when a type declares the same @key field
// set more than once in one subgraph (core spec §4.2: "produces hints
// (e.g., redundant key) independently").
func checkRedundantKeys(sg *graph.SuperGraphV2) []*Hint {
	var hints []*Hint
	for _, subGraph := range sg.SubGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			if len(entity.Keys) <= 1 {
				continue
			}
			seen := make(map[string]bool)
			for _, k := range entity.Keys {
				if seen[k.FieldSet] {
					hints = append(hints, &Hint{
						Code:    "REDUNDANT_KEY",
						Message: fmt.Sprintf("Type %q in subgraph %q declares a duplicate @key(fields: %q).", typeName, subGraph.Name, k.FieldSet),
					})
				}
				seen[k.FieldSet] = true
			}
		}
	}
	return hints
}
