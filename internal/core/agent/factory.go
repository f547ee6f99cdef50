package agent

import (
	"log"

	"github.com/roea-ai/botmind/internal/core/coordinator"
	"github.com/roea-ai/botmind/internal/core/decision"
	"github.com/roea-ai/botmind/internal/core/lock"
	"github.com/roea-ai/botmind/internal/core/task"
	"github.com/roea-ai/botmind/pkg/types"
)

// Factory assembles a bot's scheduler from shared collaborators.
type Factory struct {
	HistoryLimit        int
	CoordinatorCapacity int

	Executor  func(cfg types.BotConfig) task.Executor
	Feedback  task.FeedbackSink
	Archive   task.Archiver
	Events    task.Publisher
	Recorder  decision.Recorder
	Sampler   func(world, bot string) decision.Sampler
	Behaviors func(bot string) map[types.Mode]decision.Behavior
	Modules   func(bot string) map[coordinator.ModuleKind]decision.CombatModule

	Logger *log.Logger
}

// NewBot builds a bot with its own lock, task manager and decision engine.
func (f *Factory) NewBot(cfg types.BotConfig) *Bot {
	logger := f.Logger
	if logger == nil {
		logger = log.Default()
	}

	locks := lock.NewManager(cfg.Name, cfg.Owner, cfg.Trusted, logger)
	tasks := task.NewManager(task.Options{
		World:        cfg.World,
		Bot:          cfg.Name,
		HistoryLimit: f.HistoryLimit,
		Lock:         locks,
		Feedback:     f.Feedback,
		Archive:      f.Archive,
		Events:       f.Events,
		Logger:       logger,
	})

	engineCfg := decision.Config{
		World:       cfg.World,
		Bot:         cfg.Name,
		Tasks:       tasks,
		Coordinator: coordinator.New(f.CoordinatorCapacity),
		Feedback:    f.Feedback,
		Recorder:    f.Recorder,
		Events:      f.Events,
		Logger:      logger,
	}
	if f.Executor != nil {
		engineCfg.Executor = f.Executor(cfg)
	}
	if f.Sampler != nil {
		engineCfg.Sampler = f.Sampler(cfg.World, cfg.Name)
	}
	if f.Behaviors != nil {
		engineCfg.Behaviors = f.Behaviors(cfg.Name)
	}
	if f.Modules != nil {
		engineCfg.Modules = f.Modules(cfg.Name)
	}

	return NewBot(BotOptions{
		Name:   cfg.Name,
		Owner:  cfg.Owner,
		World:  cfg.World,
		Roles:  cfg.Roles,
		Tasks:  tasks,
		Engine: decision.NewEngine(engineCfg),
		Lock:   locks,
		Logger: logger,
	})
}
