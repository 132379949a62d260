// Package validate parses and validates client GraphQL operations against
// the gateway's API schema before planning, producing the ParseError and
// ValidationError classes named in core spec §7. It reuses
// github.com/n9te9/graphql-parser, the same library the teacher's
// federation/graph package already uses for SDL, rather than introducing a
// second GraphQL parser for the operation-document grammar.
package validate

import (
	"fmt"

	"github.com/graphfed/gateway/federation/graph"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// Kind is the closed set of validation failure classes (core spec §7).
type Kind string

const (
	KindParse      Kind = "ParseError"
	KindValidation Kind = "ValidationError"
)

// Error is a single parse or validation diagnostic, carrying the GraphQL
// response path to the offending selection when one is known.
type Error struct {
	Kind    Kind
	Message string
	Path    []any
}

func (e *Error) Error() string { return e.Message }

// Parse lexes and parses a client operation document, returning ParseError
// diagnostics on syntax failure.
func Parse(query string) (*ast.Document, []*Error) {
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		out := make([]*Error, 0, len(errs))
		for _, e := range errs {
			out = append(out, &Error{Kind: KindParse, Message: fmt.Sprint(e)})
		}
		return nil, out
	}
	return doc, nil
}

// Validate checks a parsed operation against the supergraph's API schema:
// every selected field must exist on its parent type and must not be
// @inaccessible (core spec §7, core spec §4.1 "accessibility").
// Validation accumulates every diagnostic rather than stopping at the first.
func Validate(sg *graph.SuperGraphV2, doc *ast.Document) []*Error {
	var errs []*Error

	for _, def := range doc.Definitions {
		if fragDef, ok := def.(*ast.FragmentDefinition); ok {
			validateSelectionSet(sg, fragDef.SelectionSet, fragDef.TypeCondition.Name.String(), nil, &errs)
			continue
		}
		opDef, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		rootTypeName := "Query"
		switch opDef.Operation {
		case ast.Mutation:
			rootTypeName = "Mutation"
		case ast.Subscription:
			rootTypeName = "Subscription"
		}
		validateSelectionSet(sg, opDef.SelectionSet, rootTypeName, nil, &errs)
	}

	return errs
}

func validateSelectionSet(sg *graph.SuperGraphV2, selSet []ast.Selection, parentType string, path []any, errs *[]*Error) {
	for _, sel := range selSet {
		switch s := sel.(type) {
		case *ast.Field:
			fieldName := s.Name.String()
			if fieldName == "__typename" || fieldName == "__schema" || fieldName == "__type" {
				continue
			}

			responseKey := fieldName
			if s.Alias != nil {
				responseKey = s.Alias.String()
			}
			fieldPath := append(append([]any{}, path...), responseKey)

			fieldDef := findField(sg, parentType, fieldName)
			if fieldDef == nil {
				*errs = append(*errs, &Error{
					Kind:    KindValidation,
					Message: fmt.Sprintf("Cannot query field %q on type %q.", fieldName, parentType),
					Path:    fieldPath,
				})
				continue
			}
			if fieldDef.IsInaccessible() {
				*errs = append(*errs, &Error{
					Kind:    KindValidation,
					Message: fmt.Sprintf("Cannot query field %q on type %q.", fieldName, parentType),
					Path:    fieldPath,
				})
				continue
			}

			if next := baseTypeName(fieldDef.Type); next != "" {
				validateSelectionSet(sg, s.SelectionSet, next, fieldPath, errs)
			}

		case *ast.InlineFragment:
			cond := parentType
			if s.TypeCondition != nil {
				cond = s.TypeCondition.String()
			}
			validateSelectionSet(sg, s.SelectionSet, cond, path, errs)

		case *ast.FragmentSpread:
			// Named fragment definitions are validated once each by Validate,
			// against their own type condition; the spread itself adds
			// nothing to check here.
		}
	}
}

// findField looks up a field on typeName across every subgraph's view of
// the API schema, since no single subgraph owns the full merged type.
func findField(sg *graph.SuperGraphV2, typeName, fieldName string) *graph.Field {
	for _, subGraph := range sg.SubGraphs {
		if entity, ok := subGraph.GetEntity(typeName); ok {
			if field, ok := entity.Fields[fieldName]; ok {
				return field
			}
		}
		for _, def := range subGraph.Schema.Definitions {
			objDef, ok := def.(*ast.ObjectTypeDefinition)
			if !ok || objDef.Name.String() != typeName {
				continue
			}
			for _, f := range objDef.Fields {
				if f.Name.String() == fieldName {
					return &graph.Field{Name: fieldName, Type: f.Type}
				}
			}
		}
	}
	return nil
}

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
