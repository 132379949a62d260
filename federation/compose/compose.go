// Package compose implements schema composition: merging N subgraph schemas
// into one supergraph schema, reporting divergences as hints or errors (core
// spec §4.1).
package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphfed/gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
)

// Result is the outcome of a successful composition pass.
type Result struct {
	Supergraph *graph.SuperGraphV2
	Hints      []*Hint
}

// Compose merges subgraphs into a supergraph, returning either a Result with
// accumulated hints or the full list of fatal errors found across the pass
// (core spec §4.1: "compose(subgraphs) -> Result<{supergraph, hints}, errors>").
func Compose(subGraphs []*graph.SubGraphV2) (*Result, []*Error) {
	names := make([]string, len(subGraphs))
	for i, sg := range subGraphs {
		names[i] = sg.Name
	}
	reporter := NewReporter(names)

	supergraph, err := graph.NewSuperGraphV2(subGraphs)
	if err != nil {
		reporter.AddError(&Error{Code: "SCHEMA_MERGE_FAILED", Message: err.Error()})
		return nil, reporter.Errors()
	}

	checkFieldConsistency(supergraph, subGraphs, reporter)
	checkEntityKeys(subGraphs, reporter)
	checkEnumValueAgreement(subGraphs, reporter)
	checkInputFieldAgreement(subGraphs, reporter)
	composeDirectiveArguments(supergraph, subGraphs, reporter)

	if reporter.HasErrors() {
		return nil, reporter.Errors()
	}
	return &Result{Supergraph: supergraph, Hints: reporter.Hints()}, nil
}

// checkFieldConsistency implements core spec §4.1 step 2(i): fields shared by
// more than one subgraph must agree on return type up to nullability. Only
// the base named type is compared; descriptions and arguments are not.
func checkFieldConsistency(sg *graph.SuperGraphV2, subGraphs []*graph.SubGraphV2, reporter *Reporter) {
	type occurrence struct {
		subgraph string
		typeName string
	}

	// Collect, per (type, field), the return-type base name as seen in each
	// subgraph that defines it non-externally.
	byField := make(map[string]map[string]string) // "Type.field" -> subgraph -> base type name
	for _, subGraph := range subGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			for fieldName, field := range entity.Fields {
				if field.IsExternal() {
					continue
				}
				key := fmt.Sprintf("%s.%s", typeName, fieldName)
				if byField[key] == nil {
					byField[key] = make(map[string]string)
				}
				byField[key][subGraph.Name] = baseTypeName(field.Type)
			}
		}
	}

	var keys []string
	for k := range byField {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		bySubgraph := byField[key]
		if len(bySubgraph) < 2 {
			continue
		}
		distinct := make(map[string]bool)
		for _, v := range bySubgraph {
			distinct[v] = true
		}
		if len(distinct) <= 1 {
			continue
		}

		// Disagreement on the base type name (not just nullability) is fatal:
		// core spec step 2(i) requires the same return type up to nullability.
		supergraphValue := firstValue(bySubgraph)
		reporter.ReportMismatchError(
			"FIELD_TYPE_MISMATCH",
			fmt.Sprintf("Field %q has mismatched return types", key),
			supergraphValue,
			bySubgraph,
		)
	}
}

func firstValue(m map[string]string) string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return m[keys[0]]
}

// checkEntityKeys implements core spec §4.1 step 4: record resolvable keys
// per subgraph, and detect "stub" types (only resolvable:false keys
// everywhere they're defined).
func checkEntityKeys(subGraphs []*graph.SubGraphV2, reporter *Reporter) {
	seenAnywhere := make(map[string]bool)
	resolvableAnywhere := make(map[string]bool)

	for _, subGraph := range subGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			if len(entity.Keys) == 0 {
				continue
			}
			seenAnywhere[typeName] = true
			if entity.IsResolvable() {
				resolvableAnywhere[typeName] = true
			}
		}
	}

	var stubTypes []string
	for typeName := range seenAnywhere {
		if !resolvableAnywhere[typeName] {
			stubTypes = append(stubTypes, typeName)
		}
	}
	sort.Strings(stubTypes)
	for _, typeName := range stubTypes {
		reporter.AddHint(&Hint{
			Code:    "STUB_ENTITY_TYPE",
			Message: fmt.Sprintf("Type %q has only non-resolvable @key entries across all subgraphs and is treated as a stub.", typeName),
		})
	}
}

// checkEnumValueAgreement implements core spec §4.1 step 2's enum merge: a
// value set used only in output position unions across subgraphs, while any
// input-position usage narrows the merge to an intersection so no subgraph
// can be sent a value it never declared as an input.
func checkEnumValueAgreement(subGraphs []*graph.SubGraphV2, reporter *Reporter) {
	valuesBySubgraph := make(map[string]map[string][]string) // enum name -> subgraph -> values

	for _, subGraph := range subGraphs {
		for _, def := range subGraph.Schema.Definitions {
			enumDef, ok := def.(*ast.EnumTypeDefinition)
			if !ok {
				continue
			}
			name := enumDef.Name.String()
			if valuesBySubgraph[name] == nil {
				valuesBySubgraph[name] = make(map[string][]string)
			}
			values := make([]string, 0, len(enumDef.Values))
			for _, v := range enumDef.Values {
				values = append(values, v.Name.String())
			}
			valuesBySubgraph[name][subGraph.Name] = values
		}
	}

	if len(valuesBySubgraph) == 0 {
		return
	}

	inputPosition := make(map[string]bool)
	markInputPositionTypes(subGraphs, inputPosition)

	var enumNames []string
	for name := range valuesBySubgraph {
		enumNames = append(enumNames, name)
	}
	sort.Strings(enumNames)

	for _, name := range enumNames {
		bySubgraph := valuesBySubgraph[name]
		if len(bySubgraph) < 2 {
			continue
		}

		union := make(map[string]bool)
		var subgraphNames []string
		for sgName, values := range bySubgraph {
			subgraphNames = append(subgraphNames, sgName)
			for _, v := range values {
				union[v] = true
			}
		}
		sort.Strings(subgraphNames)

		intersection := make(map[string]bool, len(union))
		for v := range union {
			intersection[v] = true
		}
		for _, values := range bySubgraph {
			have := make(map[string]bool, len(values))
			for _, v := range values {
				have[v] = true
			}
			for v := range intersection {
				if !have[v] {
					delete(intersection, v)
				}
			}
		}

		if len(union) == len(intersection) {
			continue
		}

		merged := intersection
		mergeKind := "intersection"
		if !inputPosition[name] {
			merged = union
			mergeKind = "union"
		}

		mergedList := make([]string, 0, len(merged))
		for v := range merged {
			mergedList = append(mergedList, v)
		}
		sort.Strings(mergedList)

		reporter.AddHint(&Hint{
			Code: "ENUM_VALUE_MISMATCH",
			Message: fmt.Sprintf("Enum %q has inconsistent values across %s; merged by %s to [%s].",
				name, humanReadableNames(subgraphNames), mergeKind, strings.Join(mergedList, ", ")),
		})
	}
}

// markInputPositionTypes records, per named type, whether it is ever used as
// an input argument, input-object field, or directive argument anywhere
// across the subgraphs.
func markInputPositionTypes(subGraphs []*graph.SubGraphV2, inputPosition map[string]bool) {
	markArgs := func(args []*ast.InputValueDefinition) {
		for _, arg := range args {
			inputPosition[baseTypeName(arg.Type)] = true
		}
	}
	for _, subGraph := range subGraphs {
		for _, def := range subGraph.Schema.Definitions {
			switch d := def.(type) {
			case *ast.ObjectTypeDefinition:
				for _, field := range d.Fields {
					markArgs(field.Arguments)
				}
			case *ast.ObjectTypeExtension:
				for _, field := range d.Fields {
					markArgs(field.Arguments)
				}
			case *ast.InputObjectTypeDefinition:
				for _, field := range d.Fields {
					inputPosition[baseTypeName(field.Type)] = true
				}
			case *ast.DirectiveDefinition:
				markArgs(d.Arguments)
			}
		}
	}
}

// checkInputFieldAgreement implements core spec §4.1 step 2(iii): input
// object fields shared by more than one subgraph must agree on type up to
// nullability, mirroring checkFieldConsistency for ordinary object fields.
func checkInputFieldAgreement(subGraphs []*graph.SubGraphV2, reporter *Reporter) {
	byField := make(map[string]map[string]string) // "InputType.field" -> subgraph -> base type name

	for _, subGraph := range subGraphs {
		for _, def := range subGraph.Schema.Definitions {
			inputDef, ok := def.(*ast.InputObjectTypeDefinition)
			if !ok {
				continue
			}
			typeName := inputDef.Name.String()
			for _, field := range inputDef.Fields {
				key := fmt.Sprintf("%s.%s", typeName, field.Name.String())
				if byField[key] == nil {
					byField[key] = make(map[string]string)
				}
				byField[key][subGraph.Name] = baseTypeName(field.Type)
			}
		}
	}

	var keys []string
	for k := range byField {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		bySubgraph := byField[key]
		if len(bySubgraph) < 2 {
			continue
		}
		distinct := make(map[string]bool)
		for _, v := range bySubgraph {
			distinct[v] = true
		}
		if len(distinct) <= 1 {
			continue
		}
		supergraphValue := firstValue(bySubgraph)
		reporter.ReportMismatchError(
			"INPUT_FIELD_TYPE_MISMATCH",
			fmt.Sprintf("Input field %q has mismatched types", key),
			supergraphValue,
			bySubgraph,
		)
	}
}

// directiveArgStrategy binds a directive's argument name to the
// ArgumentStrategy applied when the directive is repeated on the same field
// by more than one subgraph (core spec §4.1 step 3). Only the cost-control
// directives carry composable numeric arguments; other repeatable directives
// such as @tag are left as separate applications.
var directiveArgStrategy = map[string]map[string]string{
	"cost":     {"weight": "MAX"},
	"listSize": {"assumedSize": "SUM"},
}

// composeDirectiveArguments implements core spec §4.1 step 3: directive
// applications on the same field from different subgraphs are merged through
// the bound ArgumentStrategy instead of left as duplicate applications.
//
// The merge is computed from each subgraph's own raw field definitions,
// mirroring checkFieldConsistency, because the naive schema merge in
// graph.SuperGraphV2 keeps only the first subgraph's field (and therefore its
// directives) whenever a field name repeats across subgraphs.
func composeDirectiveArguments(supergraph *graph.SuperGraphV2, subGraphs []*graph.SubGraphV2, reporter *Reporter) {
	byField := make(map[string][]*ast.Directive) // "Type.field" -> every directive occurrence across subgraphs

	collect := func(typeName string, fields []*ast.FieldDefinition) {
		for _, field := range fields {
			key := typeName + "." + field.Name.String()
			byField[key] = append(byField[key], field.Directives...)
		}
	}
	for _, subGraph := range subGraphs {
		for _, def := range subGraph.Schema.Definitions {
			switch d := def.(type) {
			case *ast.ObjectTypeDefinition:
				collect(d.Name.String(), d.Fields)
			case *ast.ObjectTypeExtension:
				collect(d.Name.String(), d.Fields)
			}
		}
	}

	var keys []string
	for k := range byField {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		merged := mergeDirectivesForField(key, byField[key], reporter)
		if merged != nil {
			setSupergraphFieldDirectives(supergraph, key, merged)
		}
	}
}

// mergeDirectivesForField merges every bound directive that repeats across
// byField's occurrences, leaving unbound directives as separate applications.
// Returns nil when nothing for this field needed merging.
func mergeDirectivesForField(fieldCoordinate string, occurrences []*ast.Directive, reporter *Reporter) []*ast.Directive {
	byName := make(map[string][]*ast.Directive)
	var order []string
	for _, d := range occurrences {
		if _, seen := byName[d.Name]; !seen {
			order = append(order, d.Name)
		}
		byName[d.Name] = append(byName[d.Name], d)
	}

	mergedAny := false
	result := make([]*ast.Directive, 0, len(occurrences))
	for _, name := range order {
		group := byName[name]
		argBindings, bound := directiveArgStrategy[name]
		if !bound || len(group) < 2 {
			result = append(result, group[0])
			continue
		}
		mergedAny = true
		merged, err := mergeDirectiveOccurrences(group, argBindings)
		if err != nil {
			reporter.AddHint(&Hint{
				Code:    "DIRECTIVE_ARG_COMPOSE_FAILED",
				Message: fmt.Sprintf("Could not compose @%s arguments on %s: %v", name, fieldCoordinate, err),
			})
			result = append(result, group[0])
			continue
		}
		result = append(result, merged)
	}

	if !mergedAny {
		return nil
	}
	return result
}

// setSupergraphFieldDirectives overwrites the composed schema's field
// directives with the merge result once composeDirectiveArguments has
// computed it from the raw per-subgraph definitions.
func setSupergraphFieldDirectives(supergraph *graph.SuperGraphV2, fieldCoordinate string, directives []*ast.Directive) {
	apply := func(fields []*ast.FieldDefinition) bool {
		for _, field := range fields {
			if fieldCoordinateMatches(fieldCoordinate, field) {
				field.Directives = directives
				return true
			}
		}
		return false
	}
	for _, def := range supergraph.Schema.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if strings.HasPrefix(fieldCoordinate, d.Name.String()+".") && apply(d.Fields) {
				return
			}
		case *ast.ObjectTypeExtension:
			if strings.HasPrefix(fieldCoordinate, d.Name.String()+".") && apply(d.Fields) {
				return
			}
		}
	}
}

func fieldCoordinateMatches(fieldCoordinate string, field *ast.FieldDefinition) bool {
	return strings.HasSuffix(fieldCoordinate, "."+field.Name.String())
}

func mergeDirectiveOccurrences(occurrences []*ast.Directive, argBindings map[string]string) (*ast.Directive, error) {
	merged := &ast.Directive{Name: occurrences[0].Name}

	var argNames []string
	for argName := range argBindings {
		argNames = append(argNames, argName)
	}
	sort.Strings(argNames)

	for _, argName := range argNames {
		strategy, ok := Strategies[argBindings[argName]]
		if !ok {
			continue
		}

		var values []any
		var argAST *ast.Argument
		for _, occ := range occurrences {
			for _, arg := range occ.Arguments {
				if arg.Name.String() != argName {
					continue
				}
				if argAST == nil {
					argAST = arg
				}
				lit, ok := literalValue(arg.Value)
				if !ok {
					return nil, fmt.Errorf("argument %q has a non-literal value", argName)
				}
				values = append(values, lit)
			}
		}
		if len(values) == 0 {
			continue
		}

		mergedVal, err := strategy.Merge(values)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", argName, err)
		}
		val, ok := literalToValue(mergedVal)
		if !ok {
			return nil, fmt.Errorf("argument %q merged to an unrepresentable value", argName)
		}
		merged.Arguments = append(merged.Arguments, &ast.Argument{Name: argAST.Name, Value: val})
	}

	for _, arg := range occurrences[0].Arguments {
		if _, bound := argBindings[arg.Name.String()]; !bound {
			merged.Arguments = append(merged.Arguments, arg)
		}
	}

	return merged, nil
}

// literalValue extracts a Go value out of a directive argument's AST literal
// so it can be handed to an ArgumentStrategy.
func literalValue(v ast.Value) (any, bool) {
	switch val := v.(type) {
	case *ast.IntValue:
		return int64(val.Value), true
	case *ast.FloatValue:
		return val.Value, true
	case *ast.StringValue:
		return val.Value, true
	case *ast.BooleanValue:
		return val.Value, true
	case *ast.EnumValue:
		return val.Value, true
	case *ast.ListValue:
		strs := make([]string, 0, len(val.Values))
		for _, item := range val.Values {
			lit, ok := literalValue(item)
			if !ok {
				return nil, false
			}
			str, ok := lit.(string)
			if !ok {
				return nil, false
			}
			strs = append(strs, str)
		}
		return strs, true
	default:
		return nil, false
	}
}

// literalToValue is literalValue's inverse, turning a merged Go value back
// into the AST literal a directive argument expects.
func literalToValue(v any) (ast.Value, bool) {
	switch val := v.(type) {
	case int64:
		return &ast.IntValue{Value: int(val)}, true
	case string:
		return &ast.StringValue{Value: val}, true
	case []string:
		values := make([]ast.Value, len(val))
		for i, s := range val {
			values[i] = &ast.StringValue{Value: s}
		}
		return &ast.ListValue{Values: values}, true
	default:
		return nil, false
	}
}

// ToAPISchema strips @inaccessible elements, producing the schema clients
// see (core spec §4.1: "to_api_schema(supergraph, options) -> api_schema").
func ToAPISchema(supergraph *graph.SuperGraphV2) *ast.Document {
	inaccessible := make(map[string]map[string]bool) // typeName -> fieldName -> true
	for _, subGraph := range supergraph.SubGraphs {
		for typeName, entity := range subGraph.GetEntities() {
			for fieldName, field := range entity.Fields {
				if field.IsInaccessible() {
					if inaccessible[typeName] == nil {
						inaccessible[typeName] = make(map[string]bool)
					}
					inaccessible[typeName][fieldName] = true
				}
			}
		}
	}

	out := &ast.Document{Definitions: make([]ast.Definition, 0, len(supergraph.Schema.Definitions))}
	for _, def := range supergraph.Schema.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			out.Definitions = append(out.Definitions, def)
			continue
		}
		hidden := inaccessible[objDef.Name.String()]
		if len(hidden) == 0 {
			out.Definitions = append(out.Definitions, objDef)
			continue
		}
		filtered := &ast.ObjectTypeDefinition{
			Name:       objDef.Name,
			Interfaces: objDef.Interfaces,
			Directives: objDef.Directives,
		}
		for _, field := range objDef.Fields {
			if !hidden[field.Name.String()] {
				filtered.Fields = append(filtered.Fields, field)
			}
		}
		out.Definitions = append(out.Definitions, filtered)
	}
	return out
}
