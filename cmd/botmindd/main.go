// Package main is the entry point for the botmind daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roea-ai/botmind/internal/api"
	"github.com/roea-ai/botmind/internal/behavior"
	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/core/approval"
	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/internal/core/dispatch"
	"github.com/roea-ai/botmind/internal/core/events"
	"github.com/roea-ai/botmind/internal/core/execution"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/internal/crypto"
	"github.com/roea-ai/botmind/internal/decisionlog"
	"github.com/roea-ai/botmind/internal/executor/remote"
	"github.com/roea-ai/botmind/internal/executor/sim"
	"github.com/roea-ai/botmind/internal/feedback"
	"github.com/roea-ai/botmind/internal/mcp"
	"github.com/roea-ai/botmind/internal/sensor"
	"github.com/roea-ai/botmind/internal/store"
	"github.com/roea-ai/botmind/pkg/types"
)

var (
	configPath   = flag.String("config", "", "Path to config file (.yaml, .yml or .toml)")
	initMode     = flag.Bool("init", false, "Write a default config and identity")
	projectPath  = flag.String("path", ".", "Directory for -init")
	showVersion  = flag.Bool("version", false, "Show version")
	tokenFor     = flag.String("token", "", "Print a bearer token for this principal and exit")
	hashPassword = flag.String("hash-password", "", "Print the bcrypt hash of a password and exit")
	replayDir    = flag.String("replay", "", "Summarize the decision log in this directory and exit")
	replayBot    = flag.String("bot", "", "Only replay this bot's decisions (with -replay)")
)

const (
	version       = "0.1.0"
	historyBuffer = 1024
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("botmindd version %s\n", version)
		os.Exit(0)
	}

	if *initMode {
		if err := initializeBotmind(*projectPath); err != nil {
			log.Fatalf("Initialization failed: %v", err)
		}
		fmt.Println("botmind initialized successfully!")
		os.Exit(0)
	}

	if *hashPassword != "" {
		hash, err := api.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Hash failed: %v", err)
		}
		fmt.Println(hash)
		os.Exit(0)
	}

	if *replayDir != "" {
		if err := replay(*replayDir, *replayBot); err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		os.Exit(0)
	}

	// Load configuration
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *tokenFor != "" {
		if err := printToken(config, *tokenFor); err != nil {
			log.Fatalf("Token failed: %v", err)
		}
		os.Exit(0)
	}

	// Run the server
	if err := run(config); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run(config *types.Config) error {
	log.Printf("Starting botmind daemon v%s", version)
	logger := log.Default()

	// Initialize crypto
	var payloads *crypto.PayloadService
	if config.Crypto.EncryptHistory {
		keyManager := crypto.NewKeyManager(config.Crypto.IdentityPath)
		if err := keyManager.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize crypto: %w", err)
		}
		log.Printf("Crypto initialized, public key: %s", keyManager.PublicKeyHint())
		payloads = crypto.NewPayloadService(keyManager)
	}

	// Initialize SQLite store. Interface values stay nil without it.
	var (
		archive    task.Archiver
		persist    feedback.Persister
		jobStore   *store.JobStore
		jobSaver   dispatch.JobStore
		eventSaver events.Store
		history    *store.HistoryStore
		eventStore *store.EventStore
	)
	if config.Store.Path != "" {
		db, err := store.Open(config.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer db.Close()
		log.Printf("Store initialized: %s", db.Path())

		history = store.NewHistoryStore(db, payloads, historyBuffer, logger)
		defer history.Close()
		jobStore = store.NewJobStore(db)
		eventStore = store.NewEventStore(db)

		archive = history
		persist = store.NewFeedbackStore(db)
		jobSaver = jobStore
		eventSaver = eventStore
	}

	recorder := feedback.NewRecorder(persist, logger)
	hub := events.NewHub(eventSaver, logger)
	approvals := approval.NewManager(time.Duration(config.Scheduler.ApprovalTimeoutSeconds)*time.Second, hub, logger)
	remoteBackend := remote.NewBackend(config.Remote.Kinds, logger)
	board := sensor.NewBoard(types.Signals{HasActiveSubject: true})

	var decisions decision.Recorder
	if config.DecisionLog.Enabled {
		writer := decisionlog.NewWriter(config.DecisionLog.Dir)
		defer writer.Close()
		decisions = writer
		log.Printf("Decision log: %s", config.DecisionLog.Dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(config.Scheduler.TickIntervalMS) * time.Millisecond
	runner := agent.NewRunner(ctx, interval, logger)
	worlds := agent.NewWorlds(runner, hub, logger)

	factory := &agent.Factory{
		HistoryLimit:        config.Scheduler.HistoryLimit,
		CoordinatorCapacity: config.Scheduler.CoordinatorCapacity,
		Executor: func(cfg types.BotConfig) task.Executor {
			// Remote kinds win over the simulated bodies.
			return execution.NewRouter(
				remoteBackend.For(cfg.World, cfg.Name),
				sim.NewExecutor(sim.DefaultStrategies(approvals, cfg), logger),
			)
		},
		Feedback: feedback.NewSafe(recorder, logger),
		Archive:  archive,
		Events:   hub,
		Recorder: decisions,
		Sampler: func(world, bot string) decision.Sampler {
			return board.For(world, bot)
		},
		Behaviors: func(bot string) map[types.Mode]decision.Behavior {
			return behavior.Defaults(bot, logger)
		},
		Modules: func(bot string) map[coordinator.ModuleKind]decision.CombatModule {
			return behavior.DefaultModules(bot, logger)
		},
		Logger: logger,
	}

	for _, bc := range config.Bots {
		if err := worlds.Open(bc.World).RegisterBot(factory.NewBot(bc)); err != nil {
			return fmt.Errorf("failed to register bot %s: %w", bc.Name, err)
		}
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Resolve: func(world string) (dispatch.Directory, bool) {
			reg, ok := worlds.Get(world)
			if !ok {
				return nil, false
			}
			return reg, true
		},
		Store:  jobSaver,
		Events: hub,
		Logger: logger,
	})
	if jobStore != nil {
		jobs, err := jobStore.LoadJobs(types.JobCompleted, types.JobFailed, types.JobCancelled)
		if err != nil {
			return fmt.Errorf("failed to load jobs: %w", err)
		}
		log.Printf("Restored %d finished jobs", dispatcher.Restore(jobs))
	}
	go dispatcher.Run(ctx, interval)

	// Initialize MCP server
	mcpServer := mcp.NewServer(remoteBackend, worlds, logger)

	auth, err := api.NewAuth(config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	apiOpts := api.Options{
		Worlds:     worlds,
		Spawner:    factory,
		Board:      board,
		Dispatcher: dispatcher,
		Approvals:  approvals,
		Feedback:   recorder,
		Events:     hub,
		MCP:        mcpServer,
		Auth:       auth,
		Logger:     logger,
	}
	if history != nil {
		apiOpts.History = history
		apiOpts.EventStore = eventStore
	}
	router := api.NewRouter(apiOpts)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Print startup info
	log.Printf("botmind ready! %d bots in %d worlds", len(config.Bots), len(worlds.Names()))
	log.Printf("  API: http://%s/api/v1", addr)
	log.Printf("  MCP: http://%s/api/v1/mcp", addr)
	log.Printf("  WebSocket: ws://%s/ws", addr)
	if auth.Enabled() {
		log.Printf("  Auth: bearer tokens (%d principals)", len(config.Auth.Principals))
	}

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	router.Close()
	worlds.Close()
	runner.Wait()

	if history != nil {
		if dropped := history.Dropped(); dropped > 0 {
			log.Printf("History writer dropped %d records", dropped)
		}
	}
	log.Println("Server stopped")
	return nil
}

func printToken(config *types.Config, principal string) error {
	auth, err := api.NewAuth(config.Auth)
	if err != nil {
		return err
	}
	if !auth.Enabled() {
		return fmt.Errorf("auth is disabled in this config")
	}
	token, expires, err := auth.Sign(principal)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
	return nil
}

func replay(dir, bot string) error {
	summary, err := decisionlog.Summarize(dir, bot)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func initializeBotmind(projectPath string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}

	// Create .botmind directory
	botmindDir := filepath.Join(absPath, ".botmind")
	if err := os.MkdirAll(botmindDir, 0755); err != nil {
		return fmt.Errorf("failed to create .botmind directory: %w", err)
	}

	// Create default config
	config := types.DefaultConfig()
	config.Store.Path = filepath.Join(botmindDir, "botmind.db")
	config.Crypto.IdentityPath = filepath.Join(botmindDir, "botmind.key")
	config.DecisionLog.Dir = filepath.Join(botmindDir, "decisions")
	config.Bots = []types.BotConfig{
		{Name: "helper", Owner: "Steve", World: "overworld", Roles: []string{"gatherer", "builder"}},
	}

	configData, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(absPath, "botmind.yaml")
	if err := os.WriteFile(configPath, configData, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Created config: %s\n", configPath)

	// Initialize crypto
	keyManager := crypto.NewKeyManager(config.Crypto.IdentityPath)
	if err := keyManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize crypto: %w", err)
	}
	fmt.Printf("Created identity: %s\n", config.Crypto.IdentityPath)
	fmt.Printf("Public key: %s\n", keyManager.PublicKey())

	// Create the database schema up front
	db, err := store.Open(config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	db.Close()
	fmt.Printf("Created store: %s\n", config.Store.Path)

	fmt.Println("\nbotmind initialization complete!")
	fmt.Println("Run 'botmindd' to start the server.")

	return nil
}
