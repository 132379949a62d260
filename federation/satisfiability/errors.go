package satisfiability

import (
	"fmt"
	"strings"
)

// Error is a fatal unsatisfiability finding: some field reachable from an
// API schema root has no witness traversal over the federated query graph
// (core spec §4.2).
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Hint is a non-fatal satisfiability observation (e.g. a redundant key).
type Hint struct {
	Code    string
	Message string
}

func nonResolvableKeyError(typeName, subgraph string) *Error {
	return &Error{
		Code:    "NO_RESOLVABLE_KEY",
		Message: fmt.Sprintf("none of the @key defined on type %q in subgraph %q are resolvable", typeName, subgraph),
	}
}

func disjointRuntimeTypesError(fieldCoordinate, returnType string) *Error {
	return &Error{
		Code:    "DISJOINT_RUNTIME_TYPES",
		Message: fmt.Sprintf("Shared field %q return type %q has a non-intersecting set of possible runtime types across subgraphs", fieldCoordinate, returnType),
	}
}

func unreachableFieldError(typeName, fieldName string, reasons []string) *Error {
	return &Error{
		Code:    "FIELD_UNREACHABLE",
		Message: fmt.Sprintf("field %q on type %q is not reachable by any plan: %s", fieldName, typeName, strings.Join(reasons, "; ")),
	}
}

func interfaceObjectNoKeyError(typeName string) *Error {
	return &Error{
		Code:    "INTERFACE_OBJECT_NO_KEY",
		Message: fmt.Sprintf("no subgraph can be reached to resolve the implementation type of interface %q used via @interfaceObject without a @key", typeName),
	}
}
