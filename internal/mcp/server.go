// Package mcp implements the tool-call endpoint used by remote task bodies.
package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roea-ai/botmind/internal/command"
	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/executor/remote"
	"github.com/roea-ai/botmind/pkg/types"
)

// SessionHeader carries the session ID when it is not in the query string.
const SessionHeader = "X-Botmind-Session"

// Worlds resolves a world's bot registry. *agent.Worlds implements it.
type Worlds interface {
	Get(world string) (*agent.Registry, bool)
}

// ToolHandler handles one tool call. session is nil for tools that do not
// need one.
type ToolHandler func(session *remote.Session, params map[string]any) (any, error)

type tool struct {
	handler     ToolHandler
	needSession bool
}

// Server dispatches tool calls to the remote backend.
type Server struct {
	backend *remote.Backend
	worlds  Worlds
	logger  *log.Logger

	tools map[string]tool
}

// NewServer creates a new Server.
func NewServer(backend *remote.Backend, worlds Worlds, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		backend: backend,
		worlds:  worlds,
		logger:  logger,
		tools:   make(map[string]tool),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.tools["bot_list_tasks"] = tool{handler: s.handleListTasks}
	s.tools["bot_report_progress"] = tool{handler: s.handleReportProgress, needSession: true}
	s.tools["bot_complete_task"] = tool{handler: s.handleCompleteTask, needSession: true}
	s.tools["bot_fail_task"] = tool{handler: s.handleFailTask, needSession: true}
	s.tools["bot_spawn_subtask"] = tool{handler: s.handleSpawnSubtask, needSession: true}
}

// HandleToolCall processes one tool call.
func (s *Server) HandleToolCall(sessionID, toolName string, params map[string]any) (any, error) {
	t, ok := s.tools[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
	if params == nil {
		params = map[string]any{}
	}
	if !t.needSession {
		return t.handler(nil, params)
	}

	if sessionID == "" {
		return nil, fmt.Errorf("session required for %s", toolName)
	}
	session, err := s.backend.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return t.handler(&session, params)
}

func (s *Server) handleListTasks(_ *remote.Session, params map[string]any) (any, error) {
	world, _ := params["world"].(string)
	bot, _ := params["bot"].(string)
	return map[string]any{
		"sessions": s.backend.Sessions(world, bot),
	}, nil
}

func (s *Server) handleReportProgress(session *remote.Session, params map[string]any) (any, error) {
	message, _ := params["message"].(string)
	percent, _ := params["percent_complete"].(float64)

	if err := s.backend.ReportProgress(session.ID, int(percent), message); err != nil {
		return nil, fmt.Errorf("failed to report progress: %w", err)
	}
	return map[string]any{"status": "ok"}, nil
}

func (s *Server) handleCompleteTask(session *remote.Session, params map[string]any) (any, error) {
	summary, _ := params["result_summary"].(string)

	if err := s.backend.Complete(session.ID, summary); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	return map[string]any{"status": "completed"}, nil
}

func (s *Server) handleFailTask(session *remote.Session, params map[string]any) (any, error) {
	reason, _ := params["error"].(string)

	if err := s.backend.Fail(session.ID, reason); err != nil {
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}
	return map[string]any{"status": "failed"}, nil
}

// handleSpawnSubtask queues a follow-up command on the session's bot, or
// delegates it to another bot of the same world.
func (s *Server) handleSpawnSubtask(session *remote.Session, params map[string]any) (any, error) {
	line, _ := params["command"].(string)
	cmd, err := command.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subtask: %w", err)
	}

	reg, ok := s.worlds.Get(session.World)
	if !ok {
		return nil, fmt.Errorf("world not loaded: %s", session.World)
	}
	from, ok := reg.Get(session.Bot)
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrBotNotFound, session.Bot)
	}

	priority := types.TaskPriority(0)
	if name, _ := params["priority"].(string); name != "" {
		p, ok := types.ParsePriority(name)
		if !ok {
			return nil, fmt.Errorf("unknown priority %q", name)
		}
		priority = p
	}

	t := &types.Task{
		ID:         uuid.NewString(),
		Kind:       cmd.Kind,
		Priority:   priority,
		Parameters: cmd.Parameters,
		IssuedBy:   from.Owner(),
	}
	if t.Parameters == nil {
		t.Parameters = map[string]string{}
	}
	t.Parameters["parent_task"] = session.TaskID

	to, _ := params["bot"].(string)
	if to == "" || strings.EqualFold(to, session.Bot) {
		if err := from.Tasks().EnqueueTask(t); err != nil {
			return nil, fmt.Errorf("failed to queue subtask: %w", err)
		}
		return &types.SpawnSubtaskResult{TaskID: t.ID}, nil
	}

	target, ok := reg.Get(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrBotNotFound, to)
	}
	if !strings.EqualFold(target.Owner(), from.Owner()) {
		return nil, fmt.Errorf("%w: %s is not owned by %s", agent.ErrUnauthorized, to, from.Owner())
	}
	if !reg.DelegateSubtask(from.Name(), target.Name(), t) {
		return nil, fmt.Errorf("delegation to %s failed", to)
	}
	return &types.SpawnSubtaskResult{TaskID: t.ID, Delegated: true}, nil
}

// ToolDefinitions returns the list of available tools.
func (s *Server) ToolDefinitions() []*types.MCPToolDefinition {
	return []*types.MCPToolDefinition{
		{
			Name:        "bot_list_tasks",
			Description: "List open remote task sessions",
			Parameters: map[string]types.MCPParameterDef{
				"world": {Type: "string", Description: "Only sessions of this world"},
				"bot":   {Type: "string", Description: "Only sessions of this bot"},
			},
		},
		{
			Name:        "bot_report_progress",
			Description: "Report progress on the session's task",
			Parameters: map[string]types.MCPParameterDef{
				"message":          {Type: "string", Description: "Progress message", Required: true},
				"percent_complete": {Type: "number", Description: "Percent complete (0-100)"},
			},
		},
		{
			Name:        "bot_complete_task",
			Description: "Mark the session's task as completed",
			Parameters: map[string]types.MCPParameterDef{
				"result_summary": {Type: "string", Description: "Summary of work completed", Required: true},
			},
		},
		{
			Name:        "bot_fail_task",
			Description: "Mark the session's task as failed",
			Parameters: map[string]types.MCPParameterDef{
				"error": {Type: "string", Description: "Why the task failed", Required: true},
			},
		},
		{
			Name:        "bot_spawn_subtask",
			Description: "Queue a follow-up command on this bot or another bot of the same owner",
			Parameters: map[string]types.MCPParameterDef{
				"command":  {Type: "string", Description: "Command line, e.g. \"mine iron_ore 32\"", Required: true},
				"bot":      {Type: "string", Description: "Target bot (defaults to the session's bot)"},
				"priority": {Type: "string", Description: "critical, high, normal, low or deferred"},
			},
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req types.MCPRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}

	switch req.Method {
	case "tools/list":
		s.respondJSON(w, map[string]any{"tools": s.ToolDefinitions()})
	case "tools/call":
		toolName, _ := req.Params["name"].(string)
		arguments, _ := req.Params["arguments"].(map[string]any)

		result, err := s.HandleToolCall(sessionID, toolName, arguments)
		if err != nil {
			s.logger.Printf("mcp: %s: %v", toolName, err)
			s.respondJSON(w, &types.MCPResponse{Error: err.Error()})
			return
		}
		s.respondJSON(w, &types.MCPResponse{Result: result})
	default:
		http.Error(w, "Unknown method: "+strconv.Quote(req.Method), http.StatusBadRequest)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
