// Package formatter shapes a raw merged response document into the
// client-visible response: selection-set walk, leaf coercion, null
// propagation, aliasing (core spec §4.5), grounded on the CompleteValue()
// algorithm in GraphQL spec §6.3 as implemented by
// result_coercion.rs's complete_value.
package formatter

import (
	"fmt"
	"math"

	"github.com/graphfed/gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
)

// FieldError is one formatting-time diagnostic, carrying a stable GraphQL
// response path (core spec §4.5: "merged into the final errors list with
// stable GraphQL paths").
type FieldError struct {
	Message string
	Path    []any
}

func (e *FieldError) Error() string { return e.Message }

// Format walks operation's selection set against document (the merged
// response data) and produces the client-visible {data, errors} shape.
func Format(sg *graph.SuperGraphV2, operation *ast.Document, document map[string]any) (map[string]any, []*FieldError) {
	var errs []*FieldError

	for _, def := range operation.Definitions {
		opDef, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		rootType := rootTypeName(opDef.Operation)
		result, propagate := executeSelectionSet(sg, opDef.SelectionSet, rootType, document, nil, &errs)
		if propagate {
			return map[string]any{"data": nil}, errs
		}
		return map[string]any{"data": result}, errs
	}

	return map[string]any{"data": document}, errs
}

func rootTypeName(op ast.OperationType) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

// executeSelectionSet mirrors GraphQL §6.3's ExecuteSelectionSet: collect
// fields by response key (honoring fragments against the runtime
// __typename), then complete each field's value by type.
func executeSelectionSet(sg *graph.SuperGraphV2, selections []ast.Selection, parentType string, source map[string]any, path []any, errs *[]*FieldError) (map[string]any, bool) {
	out := make(map[string]any)

	for _, selection := range collectFields(selections, parentType, source) {
		responseKey := selection.responseKey()
		fieldValue := source[selection.sourceKey()]
		fieldType := fieldTypeOf(sg, parentType, selection.name())
		fieldPath := append(append([]any{}, path...), responseKey)

		if fieldValue == nil && isNonNullType(fieldType) {
			addFieldError(errs, fmt.Sprintf("Cannot return null for non-nullable field %s.%s", parentType, selection.name()), fieldPath)
			return nil, true
		}

		completed, propagate := completeValue(sg, fieldType, selection.field.SelectionSet, fieldValue, fieldPath, errs)
		if propagate {
			if isNonNullType(fieldType) {
				return nil, true
			}
			out[responseKey] = nil
			continue
		}
		out[responseKey] = completed
	}

	return out, false
}

type collectedField struct {
	field *ast.Field
}

func (c collectedField) name() string { return c.field.Name.String() }
func (c collectedField) responseKey() string {
	if c.field.Alias != nil {
		return c.field.Alias.String()
	}
	return c.name()
}
func (c collectedField) sourceKey() string { return c.responseKey() }

// collectFields flattens fragment spreads/inline fragments into a plain list
// of fields to resolve, skipping fragments whose type condition does not
// match the object's runtime __typename when present in source.
func collectFields(selections []ast.Selection, parentType string, source map[string]any) []collectedField {
	var out []collectedField
	runtimeType := parentType
	if tn, ok := source["__typename"].(string); ok && tn != "" {
		runtimeType = tn
	}

	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name.String() == "__typename" {
				continue
			}
			out = append(out, collectedField{field: s})
		case *ast.InlineFragment:
			cond := ""
			if s.TypeCondition != nil {
				cond = s.TypeCondition.String()
			}
			if cond == "" || cond == runtimeType {
				out = append(out, collectFields(s.SelectionSet, runtimeType, source)...)
			}
		case *ast.FragmentSpread:
			// Named fragments are expanded by the planner before execution
			// (federation/planner's collectFragmentDefinitions); by the time
			// the formatter runs, only inline fragments remain in practice.
		}
	}
	return out
}

func fieldTypeOf(sg *graph.SuperGraphV2, parentType, fieldName string) ast.Type {
	for _, def := range sg.Schema.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok || objDef.Name.String() != parentType {
			continue
		}
		for _, f := range objDef.Fields {
			if f.Name.String() == fieldName {
				return f.Type
			}
		}
	}
	return nil
}

func isNonNullType(t ast.Type) bool {
	_, ok := t.(*ast.NonNullType)
	return ok
}

// completeValue implements CompleteValue() (GraphQL §6.3): null check against
// nullability, list recursion with per-index paths, object recursion, scalar
// coercion. Returns (value, propagate) where propagate means a non-null
// field errored and the null must bubble to the nearest nullable ancestor.
func completeValue(sg *graph.SuperGraphV2, ty ast.Type, childSelections []ast.Selection, resolved any, path []any, errs *[]*FieldError) (any, bool) {
	if ty == nil {
		return resolved, false
	}

	if resolved == nil {
		if isNonNullType(ty) {
			addFieldError(errs, fmt.Sprintf("Cannot return null for non-nullable field %s", typeLabel(ty)), path)
			return nil, true
		}
		return nil, false
	}

	if nn, ok := ty.(*ast.NonNullType); ok {
		return completeValue(sg, nn.Type, childSelections, resolved, path, errs)
	}

	if listTy, ok := ty.(*ast.ListType); ok {
		items, ok := resolved.([]any)
		if !ok {
			addFieldError(errs, fmt.Sprintf("Non-list type %s resolved to a non-list value", typeLabel(ty)), path)
			return nil, true
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			itemPath := append(append([]any{}, path...), i)
			completed, propagate := completeValue(sg, listTy.Type, childSelections, item, itemPath, errs)
			if propagate {
				if isNonNullType(listTy.Type) {
					return nil, true
				}
				out = append(out, nil)
				continue
			}
			out = append(out, completed)
		}
		return out, false
	}

	named, ok := ty.(*ast.NamedType)
	if !ok {
		return resolved, false
	}
	typeName := named.Name.String()

	if obj, ok := resolved.(map[string]any); ok {
		result, propagate := executeSelectionSet(sg, childSelections, typeName, obj, path, errs)
		return result, propagate
	}

	coerced, err := coerceLeaf(sg, typeName, resolved)
	if err != nil {
		addFieldError(errs, err.Error(), path)
		return nil, true
	}
	return coerced, false
}

// coerceLeaf coerces scalar/enum leaf values per GraphQL result coercion
// rules: Int range check, Float finiteness, ID accepts string or int, enum
// membership against the type's declared values.
func coerceLeaf(sg *graph.SuperGraphV2, typeName string, value any) (any, error) {
	switch typeName {
	case "Int":
		switch n := value.(type) {
		case float64:
			if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("Int cannot represent non-32-bit-integer value: %v", value)
			}
			return int32(n), nil
		case int:
			return n, nil
		default:
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", value)
		}
	case "Float":
		n, ok := value.(float64)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
		}
		return n, nil
	case "ID":
		switch value.(type) {
		case string, float64, int:
			return fmt.Sprintf("%v", value), nil
		default:
			return nil, fmt.Errorf("ID cannot represent value: %v", value)
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent a non string value: %v", value)
	default:
		if values, ok := enumValues(sg, typeName); ok {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("Enum %q cannot represent non-string value: %v", typeName, value)
			}
			for _, v := range values {
				if v == s {
					return s, nil
				}
			}
			return nil, fmt.Errorf("Enum %q cannot represent value: %s", typeName, s)
		}
		// Custom scalar: no declared coercion rule, pass through as-is.
		return value, nil
	}
}

// enumValues returns typeName's declared enum values and true if typeName
// names an enum in sg's schema, or (nil, false) for any other type (custom
// scalars in particular, which have no fixed value set to check against).
func enumValues(sg *graph.SuperGraphV2, typeName string) ([]string, bool) {
	if sg == nil {
		return nil, false
	}
	for _, def := range sg.Schema.Definitions {
		enumDef, ok := def.(*ast.EnumTypeDefinition)
		if !ok || enumDef.Name.String() != typeName {
			continue
		}
		values := make([]string, 0, len(enumDef.Values))
		for _, v := range enumDef.Values {
			values = append(values, v.Name.String())
		}
		return values, true
	}
	return nil, false
}

func addFieldError(errs *[]*FieldError, message string, path []any) {
	*errs = append(*errs, &FieldError{Message: message, Path: path})
}

func typeLabel(t ast.Type) string {
	switch typ := t.(type) {
	case *ast.NonNullType:
		return typeLabel(typ.Type) + "!"
	case *ast.ListType:
		return "[" + typeLabel(typ.Type) + "]"
	case *ast.NamedType:
		return typ.Name.String()
	default:
		return ""
	}
}
