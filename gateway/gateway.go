package gateway

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/graphfed/gateway/federation/compose"
	"github.com/graphfed/gateway/federation/executor"
	"github.com/graphfed/gateway/federation/formatter"
	"github.com/graphfed/gateway/federation/graph"
	"github.com/graphfed/gateway/federation/planner"
	"github.com/graphfed/gateway/federation/satisfiability"
	"github.com/graphfed/gateway/federation/validate"
	"github.com/n9te9/graphql-parser/ast"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type GatewayService struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	SchemaFiles []string `yaml:"schema_files"`
}

// sdlSource returns this service's SDL, reading SchemaFiles if any are
// configured and otherwise fetching it from Host via { _service { sdl } },
// the federation introspection query every subgraph implements.
func (s GatewayService) sdlSource(httpClient *http.Client, retry RetryOption) ([]byte, error) {
	if len(s.SchemaFiles) == 0 {
		sdl, err := fetchSDL(s.Host, httpClient, retry)
		if err != nil {
			return nil, fmt.Errorf("fetching SDL for service %q: %w", s.Name, err)
		}
		return []byte(sdl), nil
	}

	var schema []byte
	for _, f := range s.SchemaFiles {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		schema = append(schema, src...)
	}
	return schema, nil
}

type GatewayOption struct {
	Endpoint                    string               `yaml:"endpoint"`
	ServiceName                 string               `yaml:"service_name"`
	Port                        int                  `yaml:"port"`
	TimeoutDuration             string               `yaml:"timeout_duration" default:"5s"`
	EnableHangOverRequestHeader bool                 `yaml:"enable_hang_over_request_header" default:"true"`
	MaxSubgraphConcurrency      int                  `yaml:"max_subgraph_concurrency"`
	SchemaFetchRetry            RetryOption          `yaml:"schema_fetch_retry"`
	Services                    []GatewayService     `yaml:"services"`
	Opentelemetry               OpentelemetrySetting `yaml:"opentelemetry"`
}

type OpentelemetrySetting struct {
	TracingSetting OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable          bool   `yaml:"enable" default:"false"`
	CollectorEndpoint string `yaml:"collector_endpoint"`
}

type gateway struct {
	graphQLEndpoint string
	serviceName     string
	planner         *planner.CachingPlanner
	executor        *executor.ExecutorV2
	superGraph      *graph.SuperGraphV2

	enableComplementRequestId   bool
	enableHangOverRequestHeader bool
	enableOpentelemetryTracing  bool
}

var _ http.Handler = (*gateway)(nil)

func NewGateway(settings GatewayOption) (*gateway, error) {
	// Create HTTP client with timeout, used both for subgraph SDL fetch and
	// for request execution once the gateway is serving traffic.
	httpClient := &http.Client{
		Timeout: 3 * time.Second, // 3 second timeout for subgraph requests
	}

	if settings.Opentelemetry.TracingSetting.Enable {
		httpClient.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	var subGraphs []*graph.SubGraphV2
	schemaDigest := xxhash.New()
	for _, s := range settings.Services {
		schema, err := s.sdlSource(httpClient, settings.SchemaFetchRetry)
		if err != nil {
			return nil, err
		}
		schemaDigest.WriteString(s.Name)
		schemaDigest.Write(schema)

		subGraph, err := graph.NewSubGraphV2(s.Name, schema, s.Host)
		if err != nil {
			return nil, err
		}

		subGraphs = append(subGraphs, subGraph)
	}

	composed, composeErrs := compose.Compose(subGraphs)
	if len(composeErrs) > 0 {
		messages := make([]string, len(composeErrs))
		for i, e := range composeErrs {
			messages[i] = e.Error()
		}
		return nil, fmt.Errorf("schema composition failed: %v", messages)
	}
	superGraph := composed.Supergraph

	if _, satErrs := satisfiability.Validate(superGraph); len(satErrs) > 0 {
		messages := make([]string, len(satErrs))
		for i, e := range satErrs {
			messages[i] = e.Error()
		}
		return nil, fmt.Errorf("supergraph is not satisfiable: %v", messages)
	}

	schemaID := strconv.FormatUint(schemaDigest.Sum64(), 16)
	cachingPlanner, err := planner.NewCachingPlanner(superGraph, schemaID, planner.DefaultPlannerOptions)
	if err != nil {
		return nil, err
	}

	maxConcurrency := settings.MaxSubgraphConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = executor.DefaultMaxSubgraphConcurrency
	}

	return &gateway{
		graphQLEndpoint:             settings.Endpoint,
		serviceName:                 settings.ServiceName,
		planner:                     cachingPlanner,
		executor:                    executor.NewExecutorV2WithConcurrency(httpClient, superGraph, maxConcurrency),
		superGraph:                  superGraph,
		enableComplementRequestId:   true,
		enableHangOverRequestHeader: settings.EnableHangOverRequestHeader,
		enableOpentelemetryTracing:  settings.Opentelemetry.TracingSetting.Enable,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if g.enableHangOverRequestHeader {
		ctx = executor.SetRequestHeaderToContext(ctx, r.Header)
	}

	if g.enableOpentelemetryTracing {
		var span oteltrace.Span
		ctx, span = otel.Tracer(g.serviceName).Start(ctx, "graphql.request")
		defer span.End()
	}

	doc, parseErrs := validate.Parse(req.Query)
	if len(parseErrs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": validationErrorsToResponse(parseErrs),
		})
		return
	}

	if validationErrs := validate.Validate(g.superGraph, doc); len(validationErrs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": validationErrorsToResponse(validationErrs),
		})
		return
	}

	plan, err := g.planner.Plan(req.Query, doc, req.Variables)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{err.Error()},
		})
		return
	}

	resp, err := g.executor.Execute(ctx, plan, req.Variables)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []string{err.Error()},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.formatResponse(doc, resp))
}

func (g *gateway) Start(port int) error {
	fmt.Printf("Gateway started on port %d\n", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), g)
}

// formatResponse runs the executor's merged, pruned response through the
// CompleteValue() formatter (null propagation, leaf coercion, aliasing)
// before it reaches the client, merging any formatting-time field errors
// with whatever the executor already collected.
func (g *gateway) formatResponse(doc *ast.Document, resp map[string]any) map[string]any {
	data, _ := resp["data"].(map[string]any)
	formatted, fieldErrs := formatter.Format(g.superGraph, doc, data)

	var errs []any
	if execErrs, ok := resp["errors"].([]executor.GraphQLError); ok {
		for _, e := range execErrs {
			errs = append(errs, e)
		}
	}
	for _, e := range fieldErrs {
		errs = append(errs, map[string]any{"message": e.Message, "path": e.Path})
	}
	if len(errs) > 0 {
		formatted["errors"] = errs
	}

	return formatted
}

// validationErrorsToResponse renders parse/validation diagnostics into the
// GraphQL response errors array shape, tagging each with its failure class
// so clients can distinguish a syntax error from a field-selection error.
func validationErrorsToResponse(errs []*validate.Error) []map[string]any {
	out := make([]map[string]any, 0, len(errs))
	for _, e := range errs {
		entry := map[string]any{
			"message":    e.Message,
			"extensions": map[string]string{"code": string(e.Kind)},
		}
		if len(e.Path) > 0 {
			entry["path"] = e.Path
		}
		out = append(out, entry)
	}
	return out
}
