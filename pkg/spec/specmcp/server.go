// Package specmcp exposes a spec store as an MCP server so coding agents can
// pick, start and complete tasks without shelling out to the CLI.
package specmcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jingkaihe/agentkit/pkg/logger"
	"github.com/jingkaihe/agentkit/pkg/spec"
)

const serverInstructions = `Tracks spec-driven work in the repository's .spec/ directory.
Call spec_ready to find the next task, spec_start before working on it and
spec_done with a summary of the evidence when it is finished.`

type taskSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Epic     string   `json:"epic,omitempty"`
	Blocked  []string `json:"blocked_by,omitempty"`
}

func summarize(tasks []*spec.Task) []taskSummary {
	out := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskSummary{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Priority: t.Priority,
			Epic:     t.Epic,
			Blocked:  t.BlockedBy,
		})
	}
	return out
}

// Handlers serves the spec tools for one store.
type Handlers struct {
	store *spec.Store
}

// New creates an MCP server with every spec tool registered.
func New(store *spec.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"agentkit-spec",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	h := &Handlers{store: store}
	for _, t := range h.Tools() {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(store *spec.Store, version string) error {
	return server.ServeStdio(New(store, version))
}

// Tools returns the tool definitions with their handlers.
func (h *Handlers) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("spec_ready",
				mcp.WithDescription("List todo tasks whose blockers are all done, most urgent first"),
				mcp.WithString("epic", mcp.Description("Only list tasks of this epic")),
			),
			Handler: h.Ready,
		},
		{
			Tool:    mcp.NewTool("spec_status", mcp.WithDescription("Summarize task counts, in-progress and ready tasks")),
			Handler: h.Status,
		},
		{
			Tool: mcp.NewTool("spec_show",
				mcp.WithDescription("Return the markdown of a task, epic or requirement"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Task, epic or requirement id")),
			),
			Handler: h.Show,
		},
		{
			Tool: mcp.NewTool("spec_start",
				mcp.WithDescription("Mark a task in progress and open a work session"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
			),
			Handler: h.Start,
		},
		{
			Tool: mcp.NewTool("spec_done",
				mcp.WithDescription("Mark a task done and record the evidence"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
				mcp.WithString("summary", mcp.Description("What was done")),
				mcp.WithString("files", mcp.Description("Comma-separated changed files")),
				mcp.WithString("commits", mcp.Description("Comma-separated commit hashes")),
				mcp.WithString("tests", mcp.Description("Test results")),
			),
			Handler: h.Done,
		},
		{
			Tool: mcp.NewTool("spec_dep_add",
				mcp.WithDescription("Record that a task depends on another task"),
				mcp.WithString("task", mcp.Required(), mcp.Description("Dependent task id")),
				mcp.WithString("depends_on", mcp.Required(), mcp.Description("Task it depends on")),
				mcp.WithString("type", mcp.Description("blocks (default) or discovered-from"),
					mcp.Enum(spec.DepBlocks, spec.DepDiscoveredFrom)),
			),
			Handler: h.DepAdd,
		},
		{
			Tool:    mcp.NewTool("spec_validate", mcp.WithDescription("Check .spec/ for missing fields, dangling references and cycles")),
			Handler: h.Validate,
		},
		{
			Tool:    mcp.NewTool("spec_handoff", mcp.WithDescription("Summarize the active session for handing work over")),
			Handler: h.Handoff,
		},
	}
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return strings.TrimSpace(v)
}

func requireArg(req mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v := stringArg(req, name)
	if v == "" {
		return "", mcp.NewToolResultError("missing required argument: " + name)
	}
	return v, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failed turns a domain error into a tool error the model can read.
func failed(ctx context.Context, tool string, err error) (*mcp.CallToolResult, error) {
	logger.G(ctx).WithError(err).WithField("tool", tool).Debug("spec tool failed")
	return mcp.NewToolResultError(err.Error()), nil
}

// Ready lists ready tasks.
func (h *Handlers) Ready(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ready, err := h.store.Ready(stringArg(req, "epic"))
	if err != nil {
		return failed(ctx, "spec_ready", err)
	}
	return jsonResult(summarize(ready))
}

// Status reports the project overview.
func (h *Handlers) Status(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	o, err := h.store.Overview()
	if err != nil {
		return failed(ctx, "spec_status", err)
	}
	return jsonResult(map[string]interface{}{
		"counts":      o.Counts,
		"in_progress": summarize(o.InProgress),
		"ready":       summarize(o.Ready),
		"recent":      o.Recent,
	})
}

// Show returns the raw markdown of an item.
func (h *Handlers) Show(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireArg(req, "id")
	if bad != nil {
		return bad, nil
	}
	content, err := h.store.Show(id)
	if err != nil {
		return failed(ctx, "spec_show", err)
	}
	return mcp.NewToolResultText(content), nil
}

// Start begins work on a task.
func (h *Handlers) Start(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireArg(req, "id")
	if bad != nil {
		return bad, nil
	}
	res, err := h.store.Start(ctx, id)
	if err != nil {
		return failed(ctx, "spec_start", err)
	}

	out := map[string]interface{}{
		"task":                res.Task.ID,
		"already_in_progress": res.AlreadyInProgress,
	}
	if res.Session != nil {
		out["session"] = res.Session
	}
	if res.Other != nil {
		out["replaced_session"] = res.Other.Task
	}
	return jsonResult(out)
}

// Done completes a task.
func (h *Handlers) Done(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireArg(req, "id")
	if bad != nil {
		return bad, nil
	}
	res, err := h.store.Done(ctx, id, spec.Evidence{
		Summary: stringArg(req, "summary"),
		Files:   spec.SplitList(stringArg(req, "files")),
		Commits: spec.SplitList(stringArg(req, "commits")),
		Tests:   stringArg(req, "tests"),
	})
	if err != nil {
		return failed(ctx, "spec_done", err)
	}
	return jsonResult(map[string]interface{}{
		"task":  res.Task.ID,
		"ready": summarize(res.Unblocked),
	})
}

// DepAdd adds a dependency between tasks.
func (h *Handlers) DepAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, bad := requireArg(req, "task")
	if bad != nil {
		return bad, nil
	}
	dep, bad := requireArg(req, "depends_on")
	if bad != nil {
		return bad, nil
	}
	added, err := h.store.DepAdd(task, dep, stringArg(req, "type"))
	if err != nil {
		return failed(ctx, "spec_dep_add", err)
	}
	return jsonResult(map[string]interface{}{"task": task, "depends_on": dep, "added": added})
}

// Validate reports consistency issues.
func (h *Handlers) Validate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, err := h.store.Validate()
	if err != nil {
		return failed(ctx, "spec_validate", err)
	}
	if issues == nil {
		issues = []string{}
	}
	return jsonResult(map[string]interface{}{"ok": len(issues) == 0, "issues": issues})
}

// Handoff summarizes the active session.
func (h *Handlers) Handoff(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handoff, err := h.store.Handoff(ctx)
	if err != nil {
		return failed(ctx, "spec_handoff", err)
	}
	return jsonResult(handoff)
}
