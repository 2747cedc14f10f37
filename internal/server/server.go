package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/helianthus/reflectgen/internal/emit"
	"github.com/helianthus/reflectgen/internal/engine"
	"github.com/helianthus/reflectgen/internal/logger"
	"github.com/helianthus/reflectgen/internal/model"
)

const (
	ManifestURI = "reflectgen://manifest"
	ClassesURI  = "reflectgen://classes"
)

// Server wraps the MCP server and connects it to the generation engine.
type Server struct {
	mcp *mcp.Server
	eng *engine.Engine
	log logger.Logger
}

// New creates a new MCP server wired to the given engine. Tool calls log
// through l; a nil l uses the logger of the context passed to Run.
func New(eng *engine.Engine, version string, l logger.Logger) *Server {
	s := &Server{eng: eng, log: l}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "reflectgen",
		Version: version,
	}, nil)
	s.registerResources()
	s.registerTools()
	return s
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	if s.log == nil {
		s.log = logger.FromContext(ctx)
	}
	s.log.WithPrefix("server").Info("starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources adds MCP resources for the run manifest and class index.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         ManifestURI,
		Name:        "Run Manifest",
		Description: "Files written, unchanged and deleted by the last generation run, with its warnings",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := s.eng.Manifest()
		if err != nil {
			return nil, fmt.Errorf("no manifest available: %w (run generate first)", err)
		}
		return jsonResource(req.Params.URI, content), nil
	})

	s.mcp.AddResource(&mcp.Resource{
		URI:         ClassesURI,
		Name:        "Reflected Classes",
		Description: "Every class record extracted by the last generation run",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		var buf bytes.Buffer
		if err := s.eng.Index().WriteJSON(&buf); err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, buf.Bytes()), nil
	})
}

func jsonResource(uri string, content []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, Text: string(content), MIMEType: "application/json"},
		},
	}
}

type generateArgs struct{}

// listClassesArgs are the arguments for the list_classes tool.
type listClassesArgs struct {
	Name string `json:"name,omitempty" jsonschema:"Filter by class name using substring match"`
	File string `json:"file,omitempty" jsonschema:"Filter by source file path prefix relative to the source root"`
	Tag  string `json:"tag,omitempty" jsonschema:"Filter by class tag or method tag"`
}

// describeClassArgs are the arguments for the describe_class tool.
type describeClassArgs struct {
	Name      string `json:"name" jsonschema:"required,Exact class name"`
	Fragments bool   `json:"fragments,omitempty" jsonschema:"Include the generated registration and services sources"`
}

// showSourceArgs are the arguments for the show_source tool.
type showSourceArgs struct {
	Name         string `json:"name" jsonschema:"required,Exact class name"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the declaration (default 30)"`
}

// mountPlanArgs are the arguments for the mount_plan tool.
type mountPlanArgs struct {
	Tags []string `json:"tags,omitempty" jsonschema:"Required method tags; empty mounts every service with a factory"`
}

// registerTools adds MCP tools for generation and class inspection.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate",
		Description: "Run the reflection generator over the configured source tree and write the registration sources. Returns a summary of the run.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generateArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.eng.Run(s.toolContext(ctx, "generate"))
		if err != nil {
			return errorResult(fmt.Sprintf("generation failed: %v", err)), nil, nil
		}
		return textResult(generateSummary(res)), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_classes",
		Description: "List reflected classes with their source file, tags and member counts. Filters combine.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listClassesArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.listClasses(args)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "describe_class",
		Description: "Show the full extracted record of one class as JSON, optionally with its generated sources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args describeClassArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.describeClass(args)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_source",
		Description: "Show the annotated C++ source around a class declaration.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showSourceArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.showSource(args)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "mount_plan",
		Description: "Predict which generated services RegisterReflectedServices mounts for a set of required method tags.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mountPlanArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.mountPlan(args)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})
}

// toolContext attaches the server logger to a request context, which the MCP
// transport creates without one.
func (s *Server) toolContext(ctx context.Context, tool string) context.Context {
	l := s.log
	if l == nil {
		l = logger.FromContext(ctx)
	}
	return logger.ContextWithLogger(ctx, l.With("tool", tool))
}

func generateSummary(res *engine.Result) string {
	var sb strings.Builder
	sb.WriteString("Generation finished.\n\n")
	fmt.Fprintf(&sb, "- Source: %s\n", res.Source)
	fmt.Fprintf(&sb, "- Output: %s\n", res.Output)
	fmt.Fprintf(&sb, "- Classes: %d\n", len(res.Classes))
	fmt.Fprintf(&sb, "- Written: %d\n", len(res.Written))
	fmt.Fprintf(&sb, "- Unchanged: %d\n", len(res.Unchanged))
	fmt.Fprintf(&sb, "- Deleted: %d\n", len(res.Deleted))
	fmt.Fprintf(&sb, "- Duration: %s\n", res.DurationStr)
	if len(res.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	fmt.Fprintf(&sb, "\nUse the %s resource to read the full manifest.", ManifestURI)
	return sb.String()
}

// classSummary is one row of list_classes.
type classSummary struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Tags       []string `json:"tags"`
	Properties int      `json:"properties"`
	Methods    int      `json:"methods"`
	Functions  int      `json:"functions"`
	Factory    bool     `json:"factory"`
}

const maxListed = 100

func (s *Server) listClasses(args listClassesArgs) (string, error) {
	idx := s.eng.Index()
	if idx.Count() == 0 {
		return "", fmt.Errorf("no classes available, run generate first")
	}

	results := idx.Query(args.Name, args.File, args.Tag)
	total := len(results)
	if total > maxListed {
		results = results[:maxListed]
	}

	rows := make([]classSummary, 0, len(results))
	for _, c := range results {
		rows = append(rows, classSummary{
			Name:       c.Name,
			File:       c.SourceFile,
			Line:       c.Line,
			Tags:       c.Tags,
			Properties: len(c.Properties),
			Methods:    len(c.Methods),
			Functions:  len(c.Functions),
			Factory:    c.HasFactory,
		})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	text := string(data)
	if total > maxListed {
		text += fmt.Sprintf("\n\n... (showing %d of %d classes, refine your query)", maxListed, total)
	}
	return text, nil
}

func (s *Server) lookup(name string) (model.ClassRecord, error) {
	if name == "" {
		return model.ClassRecord{}, fmt.Errorf("name is required")
	}
	c, ok := s.eng.Index().Get(name)
	if !ok {
		return model.ClassRecord{}, fmt.Errorf("no class named %q", name)
	}
	return c, nil
}

func (s *Server) describeClass(args describeClassArgs) (string, error) {
	c, err := s.lookup(args.Name)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal class: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n```json\n%s\n```\n", c.Name, data)
	fmt.Fprintf(&sb, "\nFragments: %s, %s\n", emit.RegistrationPath(&c), emit.ServicesPath(&c))
	if args.Fragments {
		for _, f := range emit.Fragments(&c, s.eng.Config().EmitOptions()) {
			fmt.Fprintf(&sb, "\n#### %s\n\n```cpp\n%s```\n", f.Path, f.Content)
		}
	}
	return sb.String(), nil
}

func (s *Server) showSource(args showSourceArgs) (string, error) {
	c, err := s.lookup(args.Name)
	if err != nil {
		return "", err
	}
	contextLines := args.ContextLines
	if contextLines <= 0 {
		contextLines = 30
	}
	line := c.Line
	if line <= 0 {
		line = 1
	}

	absFile := filepath.Join(s.eng.Config().Source, filepath.FromSlash(c.SourceFile))
	source, err := readSourceWindow(absFile, line, contextLines)
	if err != nil {
		return "", fmt.Errorf("could not read source: %w", err)
	}
	return fmt.Sprintf("### %s\nFile: %s  Line: %d\n\n```cpp\n%s```\n", c.Name, c.SourceFile, c.Line, source), nil
}

func (s *Server) mountPlan(args mountPlanArgs) (string, error) {
	idx := s.eng.Index()
	if idx.Count() == 0 {
		return "", fmt.Errorf("no classes available, run generate first")
	}
	plan := emit.PlanMount(idx.All(), args.Tags, s.eng.Config().EmitOptions())
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}
	return string(data), nil
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := max(centerLine-contextLines/2, 1)
	endLine := min(centerLine+contextLines/2, len(lines))

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d│ %s\n", i, lines[i-1])
	}
	return sb.String(), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
