// Package api provides the REST API for botmind.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roea-ai/botmind/internal/api/handlers"
	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/core/approval"
	"github.com/roea-ai/botmind/internal/core/dispatch"
	"github.com/roea-ai/botmind/internal/core/events"
	"github.com/roea-ai/botmind/internal/feedback"
	"github.com/roea-ai/botmind/internal/sensor"
	"github.com/roea-ai/botmind/pkg/types"
)

const writeTimeout = 10 * time.Second

// Options holds the router's collaborators. Worlds, Dispatcher and
// Approvals are required.
type Options struct {
	Worlds     *agent.Worlds
	Spawner    handlers.Spawner
	Board      *sensor.Board
	Dispatcher *dispatch.Dispatcher
	Approvals  *approval.Manager
	Feedback   *feedback.Recorder
	History    handlers.HistoryLister
	EventStore handlers.EventLister
	Events     *events.Hub
	MCP        http.Handler
	Auth       *Auth
	Logger     *log.Logger
}

type wsClient struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	world string
}

func (c *wsClient) send(msg types.WebSocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) wants(event *types.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.world == "" || event.World == "" || strings.EqualFold(c.world, event.World)
}

// Router holds all API dependencies and routes.
type Router struct {
	engine *gin.Engine
	opts   Options
	logger *log.Logger

	bots      *handlers.BotHandler
	tasks     *handlers.TaskHandler
	jobs      *handlers.JobHandler
	approvals *handlers.ApprovalHandler
	history   *handlers.HistoryHandler

	upgrader websocket.Upgrader
	subID    string

	wsClientsMu sync.RWMutex
	wsClients   map[*websocket.Conn]*wsClient
}

// NewRouter creates a new API router and starts forwarding hub events to
// websocket clients.
func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Auth == nil {
		opts.Auth, _ = NewAuth(types.AuthConfig{})
	}

	r := &Router{
		engine:    gin.Default(),
		opts:      opts,
		logger:    opts.Logger,
		bots:      handlers.NewBotHandler(opts.Worlds, opts.Spawner, opts.Board),
		tasks:     handlers.NewTaskHandler(opts.Worlds),
		jobs:      handlers.NewJobHandler(opts.Dispatcher),
		approvals: handlers.NewApprovalHandler(opts.Approvals),
		history:   handlers.NewHistoryHandler(opts.Feedback, opts.History, opts.EventStore, eventsOrNil(opts.Events)),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		subID:     "api-" + uuid.NewString(),
		wsClients: make(map[*websocket.Conn]*wsClient),
	}

	r.setupRoutes()

	if opts.Events != nil {
		go r.broadcastEvents(opts.Events.Subscribe(r.subID))
	}

	return r
}

func eventsOrNil(hub *events.Hub) handlers.RecentEvents {
	if hub == nil {
		return nil
	}
	return hub
}

// setupRoutes configures all API routes.
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "worlds": len(r.opts.Worlds.Names())})
	})

	r.engine.Use(r.opts.Auth.Middleware())

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/auth/token", r.opts.Auth.handleToken)

		v1.GET("/worlds", r.bots.ListWorlds)

		world := v1.Group("/worlds/:world")
		{
			world.GET("/bots", r.bots.List)
			world.POST("/bots", r.bots.Register)
			world.GET("/available", r.bots.Available)

			bot := world.Group("/bots/:bot")
			{
				bot.GET("", r.bots.Get)
				bot.DELETE("", r.bots.Delete)
				bot.POST("/mode", r.bots.SetMode)
				bot.POST("/unlock", r.bots.Unlock)
				bot.PUT("/signals", r.bots.SetSignals)

				bot.POST("/tasks", r.tasks.Queue)
				bot.GET("/tasks/current", r.tasks.Current)
				bot.GET("/tasks/queue", r.tasks.Queued)
				bot.GET("/tasks/completed", r.tasks.Completed)
				bot.POST("/tasks/pause", r.tasks.Pause)
				bot.POST("/tasks/resume", r.tasks.Resume)
				bot.POST("/tasks/cancel", r.tasks.Cancel)
				bot.POST("/tasks/clear", r.tasks.Clear)
				bot.DELETE("/tasks/:id", r.tasks.Delete)
			}

			jobs := world.Group("/jobs")
			{
				jobs.GET("", r.jobs.List)
				jobs.POST("", r.jobs.Create)
				jobs.GET("/:id", r.jobs.Get)
				jobs.POST("/:id/subtasks", r.jobs.AddSubtask)
				jobs.POST("/:id/dispatch", r.jobs.Dispatch)
				jobs.POST("/:id/pause", r.jobs.Pause)
				jobs.POST("/:id/resume", r.jobs.Resume)
				jobs.POST("/:id/cancel", r.jobs.Cancel)
				jobs.POST("/:id/subtasks/:sid/redispatch", r.jobs.Redispatch)
			}
		}

		v1.GET("/approvals", r.approvals.List)
		v1.POST("/approvals/:id", r.approvals.Answer)

		v1.GET("/feedback", r.history.Feedback)
		v1.GET("/history", r.history.History)
		v1.GET("/events", r.history.Events)

		if r.opts.MCP != nil {
			v1.Any("/mcp", r.handleMCP)
		}
	}

	// WebSocket for real-time updates
	r.engine.GET("/ws", r.handleWebSocket)
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Close stops forwarding events and disconnects websocket clients.
func (r *Router) Close() {
	if r.opts.Events != nil {
		r.opts.Events.Unsubscribe(r.subID)
	}
	r.wsClientsMu.Lock()
	defer r.wsClientsMu.Unlock()
	for conn := range r.wsClients {
		conn.Close()
		delete(r.wsClients, conn)
	}
}

func (r *Router) handleMCP(c *gin.Context) {
	r.opts.MCP.ServeHTTP(c.Writer, c.Request)
}

func (r *Router) snapshot(world string) []types.BotInfo {
	out := []types.BotInfo{}
	for _, name := range r.opts.Worlds.Names() {
		if world != "" && !strings.EqualFold(world, name) {
			continue
		}
		reg, ok := r.opts.Worlds.Get(name)
		if !ok {
			continue
		}
		for _, b := range reg.Bots() {
			out = append(out, b.Info())
		}
	}
	return out
}

// handleWebSocket streams events. Clients may narrow the stream with
// {"action":"subscribe_world","world":"..."}.
func (r *Router) handleWebSocket(c *gin.Context) {
	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{conn: conn, world: c.Query("world")}

	r.wsClientsMu.Lock()
	r.wsClients[conn] = client
	r.wsClientsMu.Unlock()

	defer func() {
		r.wsClientsMu.Lock()
		delete(r.wsClients, conn)
		r.wsClientsMu.Unlock()
		conn.Close()
	}()

	client.send(types.WebSocketMessage{Type: "snapshot", Payload: r.snapshot(client.world)})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req struct {
			Action string `json:"action"`
			World  string `json:"world"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Action {
		case "subscribe_world":
			client.mu.Lock()
			client.world = req.World
			client.mu.Unlock()
			client.send(types.WebSocketMessage{Type: "snapshot", Payload: r.snapshot(req.World)})
		}
	}
}

// broadcastEvents forwards hub events to websocket clients until the
// subscription is closed.
func (r *Router) broadcastEvents(ch <-chan *types.Event) {
	for event := range ch {
		msg := types.WebSocketMessage{Type: "event", Payload: event}

		r.wsClientsMu.RLock()
		for _, client := range r.wsClients {
			if !client.wants(event) {
				continue
			}
			if err := client.send(msg); err != nil {
				// Client will be removed when read fails
				continue
			}
		}
		r.wsClientsMu.RUnlock()
	}
}
