package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/internal/executor/remote"
	"github.com/roea-ai/botmind/internal/sensor"
	"github.com/roea-ai/botmind/pkg/types"
)

var quiet = log.New(io.Discard, "", 0)

type fixture struct {
	backend *remote.Backend
	worlds  *agent.Worlds
	server  *Server
	alex    *agent.Bot
	bea     *agent.Bot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := remote.NewBackend([]types.CommandKind{types.CommandBuild}, quiet)
	board := sensor.NewBoard(types.Signals{HasActiveSubject: true})
	f := &agent.Factory{
		Executor: func(cfg types.BotConfig) task.Executor {
			return execution.NewRouter(backend.For(cfg.World, cfg.Name))
		},
		Sampler: func(world, bot string) decision.Sampler { return board.For(world, bot) },
		Logger:  quiet,
	}
	worlds := agent.NewWorlds(nil, nil, quiet)
	reg := worlds.Open("overworld")

	fx := &fixture{
		backend: backend,
		worlds:  worlds,
		server:  NewServer(backend, worlds, quiet),
		alex:    f.NewBot(types.BotConfig{Name: "alex", Owner: "Steve", World: "overworld"}),
		bea:     f.NewBot(types.BotConfig{Name: "bea", Owner: "Steve", World: "overworld"}),
	}
	for _, b := range []*agent.Bot{fx.alex, fx.bea} {
		if err := reg.RegisterBot(b); err != nil {
			t.Fatalf("RegisterBot: %v", err)
		}
	}
	return fx
}

func (fx *fixture) call(t *testing.T, session, tool string, args map[string]any) types.MCPResponse {
	t.Helper()
	body, _ := json.Marshal(types.MCPRequest{
		Method: "tools/call",
		Params: map[string]any{"name": tool, "arguments": args},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mcp", bytes.NewReader(body))
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: status %d: %s", tool, rec.Code, rec.Body.String())
	}
	var resp types.MCPResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s: decode: %v", tool, err)
	}
	return resp
}

func (fx *fixture) startBuild(t *testing.T) (*types.Task, string) {
	t.Helper()
	queued, err := fx.alex.QueueTask("Steve", types.ParsedCommand{
		Kind:       types.CommandBuild,
		Parameters: map[string]string{"target": "house"},
	}, 0)
	if err != nil {
		t.Fatalf("QueueTask: %v", err)
	}
	fx.alex.Tick()

	sessions := fx.backend.Sessions("overworld", "alex")
	if len(sessions) != 1 || sessions[0].TaskID != queued.ID {
		t.Fatalf("sessions = %+v", sessions)
	}
	return queued, sessions[0].ID
}

func TestServer_RemoteBodyCompletesTask(t *testing.T) {
	fx := newFixture(t)
	queued, session := fx.startBuild(t)

	resp := fx.call(t, "", "bot_list_tasks", map[string]any{"bot": "alex"})
	if resp.Error != "" {
		t.Fatalf("list: %s", resp.Error)
	}

	if resp := fx.call(t, session, "bot_report_progress", map[string]any{"message": "walls", "percent_complete": 50.0}); resp.Error != "" {
		t.Fatalf("progress: %s", resp.Error)
	}
	if resp := fx.call(t, session, "bot_complete_task", map[string]any{"result_summary": "done"}); resp.Error != "" {
		t.Fatalf("complete: %s", resp.Error)
	}
	fx.alex.Tick()

	got, ok := fx.alex.Tasks().LookupTask(queued.ID)
	if !ok || got.Status != types.TaskCompleted {
		t.Fatalf("task = %+v", got)
	}
}

func TestServer_FailAndSessionErrors(t *testing.T) {
	fx := newFixture(t)
	queued, session := fx.startBuild(t)

	if resp := fx.call(t, "", "bot_fail_task", map[string]any{"error": "x"}); resp.Error == "" {
		t.Fatalf("fail without session accepted")
	}
	if resp := fx.call(t, "nope", "bot_fail_task", map[string]any{"error": "x"}); resp.Error == "" {
		t.Fatalf("fail with unknown session accepted")
	}
	if resp := fx.call(t, session, "bot_dance", nil); resp.Error == "" {
		t.Fatalf("unknown tool accepted")
	}
	if resp := fx.call(t, session, "bot_fail_task", map[string]any{"error": "no blocks"}); resp.Error != "" {
		t.Fatalf("fail: %s", resp.Error)
	}
	fx.alex.Tick()

	got, _ := fx.alex.Tasks().LookupTask(queued.ID)
	if got.Status != types.TaskFailed || got.FailureReason != "no blocks" {
		t.Fatalf("task = %+v", got)
	}
}

func TestServer_SpawnSubtask(t *testing.T) {
	fx := newFixture(t)
	_, session := fx.startBuild(t)

	resp := fx.call(t, session, "bot_spawn_subtask", map[string]any{"command": "gather oak_log 16"})
	if resp.Error != "" {
		t.Fatalf("spawn: %s", resp.Error)
	}
	if fx.alex.Tasks().QueueSize() != 1 {
		t.Fatalf("alex queue = %d", fx.alex.Tasks().QueueSize())
	}

	resp = fx.call(t, session, "bot_spawn_subtask", map[string]any{"command": "mine stone 8", "bot": "BEA", "priority": "high"})
	if resp.Error != "" {
		t.Fatalf("delegate: %s", resp.Error)
	}
	queued := fx.bea.Tasks().QueuedTasks()
	if len(queued) != 1 || queued[0].Priority != types.PriorityHigh || queued[0].IssuedBy != "Steve" {
		t.Fatalf("bea queue = %+v", queued)
	}

	if resp := fx.call(t, session, "bot_spawn_subtask", map[string]any{"command": "dance"}); resp.Error == "" {
		t.Fatalf("bad command accepted")
	}
}

func TestServer_ToolsList(t *testing.T) {
	fx := newFixture(t)
	body, _ := json.Marshal(types.MCPRequest{Method: "tools/list"})
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mcp", bytes.NewReader(body)))

	var out struct {
		Tools []types.MCPToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Tools) != 5 {
		t.Fatalf("tools = %d", len(out.Tools))
	}
}
