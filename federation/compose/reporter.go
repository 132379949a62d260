package compose

import (
	"fmt"
	"sort"
	"strings"
)

// Reporter accumulates composition errors and hints across a pass and never
// short-circuits on the first failure, matching core spec §4.1's "failure
// semantics": composition reports the whole batch so operators fix once.
type Reporter struct {
	errors []*Error
	hints  []*Hint
	names  []string // canonical, lexicographically-sorted subgraph names
}

// NewReporter builds a reporter over the given subgraph names, sorting them
// so hint/error ordering is deterministic regardless of input order (core
// spec §8: "Composition error/hint lists are deterministic").
func NewReporter(names []string) *Reporter {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &Reporter{names: sorted}
}

func (r *Reporter) AddError(err *Error) { r.errors = append(r.errors, err) }
func (r *Reporter) AddHint(hint *Hint)  { r.hints = append(r.hints, hint) }

func (r *Reporter) HasErrors() bool { return len(r.errors) > 0 }
func (r *Reporter) HasHints() bool  { return len(r.hints) > 0 }

func (r *Reporter) Errors() []*Error { return r.errors }
func (r *Reporter) Hints() []*Hint   { return r.hints }

// separators controls how reportMismatch renders its distribution sentence.
// Error wording and hint wording differ only by these three joins, not by a
// second code path (grounded on error_reporter.rs's report_mismatch_error
// vs report_mismatch_hint, which share one private report_mismatch).
type separators struct {
	first string
	mid   string
	last  string
}

var errorSeparators = separators{first: " but ", mid: " and ", last: " and "}
var hintSeparators = separators{first: " and ", mid: ", ", last: " but "}

// joinDistribution renders a list of "value in subgraph X [and Y]" strings
// into one English sentence using the given separators.
func joinDistribution(parts []string, sep separators) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + sep.first + parts[1]
	default:
		out := parts[0] + sep.first + parts[1]
		for _, p := range parts[2 : len(parts)-1] {
			out += sep.mid + p
		}
		out += sep.last + parts[len(parts)-1]
		return out
	}
}

// distribution groups elements by (value produced) and returns
// "value in subgraph-list" strings, with the supergraph's own value first.
func (r *Reporter) distribution(supergraphValue string, bySubgraph map[string]string) []string {
	byValue := make(map[string][]string)
	for _, name := range r.names {
		if v, ok := bySubgraph[name]; ok {
			byValue[v] = append(byValue[v], name)
		}
	}

	var out []string
	if names, ok := byValue[supergraphValue]; ok {
		out = append(out, describeValue(supergraphValue, names))
	} else {
		out = append(out, describeValue(supergraphValue, nil))
	}

	// Remaining values in a deterministic (sorted) order.
	var otherValues []string
	for v := range byValue {
		if v != supergraphValue {
			otherValues = append(otherValues, v)
		}
	}
	sort.Strings(otherValues)
	for _, v := range otherValues {
		out = append(out, describeValue(v, byValue[v]))
	}
	return out
}

func describeValue(value string, subgraphs []string) string {
	if len(subgraphs) == 0 {
		return fmt.Sprintf("%s in undefined", value)
	}
	return fmt.Sprintf("%s in %s", value, humanReadableNames(subgraphs))
}

func humanReadableNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("subgraph %q", n)
	}
	return joinDistribution(quoted, separators{first: " and ", mid: ", ", last: " and "})
}

// ReportMismatchError records a fatal mismatch (core spec §4.1 step 5).
func (r *Reporter) ReportMismatchError(code, elementDescription, supergraphValue string, bySubgraph map[string]string) {
	distribution := r.distribution(supergraphValue, bySubgraph)
	sentence := joinDistribution(distribution, errorSeparators)
	r.AddError(&Error{
		Code:    code,
		Message: fmt.Sprintf("%s: %s", elementDescription, sentence),
	})
}

// ReportMismatchHint records a non-fatal divergence (core spec §4.1 step 5).
func (r *Reporter) ReportMismatchHint(code, message, supergraphValue string, bySubgraph map[string]string) {
	distribution := r.distribution(supergraphValue, bySubgraph)
	sentence := joinDistribution(distribution, hintSeparators)
	r.AddHint(&Hint{
		Code:    code,
		Message: strings.TrimSuffix(message, ".") + " " + sentence + ".",
	})
}
