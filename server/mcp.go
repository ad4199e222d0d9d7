// CLAUDE:SUMMARY Registers all domveil MCP tools — session open, selector generation, rules CRUD, undo, render.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domveil/engine"
	"github.com/hazyhaar/domveil/session"
	"github.com/hazyhaar/domveil/suggest"
)

// RegisterMCP registers domveil tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerOpenSessionTool(srv)
	s.registerGenerateTool(srv)
	s.registerAddRuleTool(srv)
	s.registerListRulesTool(srv)
	s.registerDeleteRuleTool(srv)
	s.registerUndoTool(srv)
	s.registerResetTool(srv)
	s.registerRenderTool(srv)
	if s.sugg != nil {
		s.registerSuggestTool(srv)
	}
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// registerTool wires a decode function and an endpoint into an MCP tool.
// Tool errors are reported through the result, never as transport errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, decode func(*mcp.CallToolRequest) (any, error), endpoint func(context.Context, any) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func (s *Server) mcpSession(id string) (*session.Session, error) {
	sess := s.session(id)
	if sess == nil {
		return nil, fmt.Errorf("unknown session %s", id)
	}
	return sess, nil
}

// --- open_session ---

type openSessionRequest struct {
	HTML   string `json:"html"`
	Origin string `json:"origin"`
}

func (s *Server) registerOpenSessionTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_open_session",
		Description: "Parse an HTML document and open a suppression session over it. Stored rules for the origin are applied immediately.",
		InputSchema: inputSchema(map[string]any{
			"html":   map[string]any{"type": "string", "description": "Full HTML of the page"},
			"origin": map[string]any{"type": "string", "description": "Page origin, e.g. https://example.com"},
		}, []string{"html", "origin"}),
	}

	registerTool(srv, tool, decodeInto[openSessionRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*openSessionRequest)
		opts := []session.Option{session.WithLogger(s.cfg.Logger)}
		if s.rec != nil {
			opts = append(opts, session.WithRecorder(s.rec))
		}
		sess, err := session.New(ctx, r.HTML, r.Origin, s.store, opts...)
		if err != nil {
			return nil, err
		}
		id := s.newID()
		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()
		return map[string]any{"session_id": id, "origin": sess.Origin(), "rules": len(sess.Engine().Rules())}, nil
	})
}

// --- generate ---

type generateRequest struct {
	SessionID string `json:"session_id"`
	Probe     string `json:"probe"`
}

func (s *Server) registerGenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_generate",
		Description: "Generate a stable selector for the single element matched by the probe selector. Returns the selector, its confidence, and the anchors it was built from.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID from veil_open_session"},
			"probe":      map[string]any{"type": "string", "description": "CSS selector matching exactly one element"},
		}, []string{"session_id", "probe"}),
	}

	registerTool(srv, tool, decodeInto[generateRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*generateRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		return sess.Generate(r.Probe)
	})
}

// --- add_rule ---

type addRuleRequest struct {
	SessionID      string `json:"session_id"`
	Action         string `json:"action"`
	Selector       string `json:"selector"`
	PreserveLayout bool   `json:"preserve_layout,omitempty"`
	CollapseSpace  bool   `json:"collapse_space,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) registerAddRuleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_add_rule",
		Description: "Create a suppression rule, apply it to the session document, and persist it for the origin. Returns the rule and the number of affected elements.",
		InputSchema: inputSchema(map[string]any{
			"session_id":      map[string]any{"type": "string", "description": "Session ID"},
			"action":          map[string]any{"type": "string", "enum": []any{"hide", "blank", "replace"}, "description": "Suppression action"},
			"selector":        map[string]any{"type": "string", "description": "CSS selector for elements to suppress"},
			"preserve_layout": map[string]any{"type": "boolean", "description": "Keep the element's box in the layout"},
			"collapse_space":  map[string]any{"type": "boolean", "description": "Collapse the freed space"},
			"notes":           map[string]any{"type": "string", "description": "Free-text note attached to the rule"},
		}, []string{"session_id", "action", "selector"}),
	}

	registerTool(srv, tool, decodeInto[addRuleRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*addRuleRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		strat := engine.Strategy{PreserveLayout: r.PreserveLayout, CollapseSpace: r.CollapseSpace}
		rule, affected, err := sess.CreateRule(ctx, engine.Action(r.Action), r.Selector, strat, suggest.SanitizeNote(r.Notes))
		if err != nil {
			return nil, err
		}
		if rule == nil {
			return nil, errors.New("rule rejected: no valid targets within the broadness cap")
		}
		return map[string]any{"rule": rule, "affected": affected}, nil
	})
}

// --- list_rules ---

type sessionOnlyRequest struct {
	SessionID string `json:"session_id"`
}

func sessionOnlySchema() map[string]any {
	return inputSchema(map[string]any{
		"session_id": map[string]any{"type": "string", "description": "Session ID"},
	}, []string{"session_id"})
}

func (s *Server) registerListRulesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_list_rules",
		Description: "List the session's rules with the number of elements each currently affects.",
		InputSchema: sessionOnlySchema(),
	}

	registerTool(srv, tool, decodeInto[sessionOnlyRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionOnlyRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		rules := sess.Engine().Rules()
		out := make([]map[string]any, 0, len(rules))
		for _, rule := range rules {
			out = append(out, map[string]any{"rule": rule, "affected": sess.Engine().AffectedCount(rule.ID)})
		}
		return out, nil
	})
}

// --- delete_rule ---

type deleteRuleRequest struct {
	SessionID string `json:"session_id"`
	RuleID    string `json:"rule_id"`
}

func (s *Server) registerDeleteRuleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_delete_rule",
		Description: "Remove a rule, restore its elements, and delete it from the origin's stored rules.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
			"rule_id":    map[string]any{"type": "string", "description": "Rule ID to remove"},
		}, []string{"session_id", "rule_id"}),
	}

	registerTool(srv, tool, decodeInto[deleteRuleRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*deleteRuleRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		if !sess.RemoveRule(ctx, r.RuleID) {
			return nil, fmt.Errorf("unknown rule %s", r.RuleID)
		}
		return map[string]string{"status": "removed"}, nil
	})
}

// --- undo / reset / render ---

func (s *Server) registerUndoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_undo",
		Description: "Undo the most recent apply or remove in the session.",
		InputSchema: sessionOnlySchema(),
	}

	registerTool(srv, tool, decodeInto[sessionOnlyRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionOnlyRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"undone": sess.Undo()}, nil
	})
}

func (s *Server) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_reset",
		Description: "Restore every suppressed element in the session and clear the undo history.",
		InputSchema: sessionOnlySchema(),
	}

	registerTool(srv, tool, decodeInto[sessionOnlyRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionOnlyRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		sess.ResetAll()
		return map[string]string{"status": "reset"}, nil
	})
}

func (s *Server) registerRenderTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_render",
		Description: "Serialise the session document with all suppressions applied.",
		InputSchema: sessionOnlySchema(),
	}

	registerTool(srv, tool, decodeInto[sessionOnlyRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*sessionOnlyRequest)
		sess, err := s.mcpSession(r.SessionID)
		if err != nil {
			return nil, err
		}
		out, err := sess.Document().Render()
		if err != nil {
			return nil, err
		}
		return map[string]string{"html": out}, nil
	})
}

// --- suggest ---

type suggestRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) registerSuggestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "veil_suggest",
		Description: "Ask the configured suggestion backend for candidate selectors matching a natural-language description.",
		InputSchema: inputSchema(map[string]any{
			"prompt": map[string]any{"type": "string", "description": "Description of the content to suppress"},
		}, []string{"prompt"}),
	}

	registerTool(srv, tool, decodeInto[suggestRequest], func(ctx context.Context, req any) (any, error) {
		r := req.(*suggestRequest)
		return s.sugg.Suggest(ctx, r.Prompt)
	})
}

// decodeInto unmarshals MCP arguments into a typed request.
func decodeInto[T any](req *mcp.CallToolRequest) (any, error) {
	var r T
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
