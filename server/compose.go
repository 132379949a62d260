package server

import (
	"fmt"
	"os"

	"github.com/graphfed/gateway/federation/compose"
	"github.com/graphfed/gateway/federation/graph"
	"github.com/graphfed/gateway/federation/satisfiability"
)

// SubGraphSource names a subgraph SDL file to compose offline: the "compose"
// CLI subcommand's input, distinct from GatewayOption.Services since it
// carries no runtime host (composition never contacts a subgraph).
type SubGraphSource struct {
	Name string
	Path string
}

// Compose reads each named subgraph's SDL file, runs composition and
// satisfiability validation, and reports hints/errors to stdout/stderr. It
// returns a non-nil error when composition or satisfiability fails, so the
// CLI can exit non-zero without composing a broken supergraph into the
// running gateway.
func Compose(sources []SubGraphSource) error {
	var subGraphs []*graph.SubGraphV2
	for _, s := range sources {
		sdl, err := os.ReadFile(s.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.Path, err)
		}
		subGraph, err := graph.NewSubGraphV2(s.Name, sdl, "")
		if err != nil {
			return fmt.Errorf("parsing subgraph %q: %w", s.Name, err)
		}
		subGraphs = append(subGraphs, subGraph)
	}

	result, errs := compose.Compose(subGraphs)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "composition error [%s]: %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("composition failed with %d error(s)", len(errs))
	}

	for _, h := range result.Hints {
		fmt.Fprintf(os.Stdout, "composition hint [%s]: %s\n", h.Code, h.Message)
	}

	hints, satErrs := satisfiability.Validate(result.Supergraph)
	for _, h := range hints {
		fmt.Fprintf(os.Stdout, "satisfiability hint [%s]: %s\n", h.Code, h.Message)
	}
	if len(satErrs) > 0 {
		for _, e := range satErrs {
			fmt.Fprintf(os.Stderr, "satisfiability error [%s]: %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("supergraph is not satisfiable: %d error(s)", len(satErrs))
	}

	fmt.Println("supergraph composed successfully")
	return nil
}
