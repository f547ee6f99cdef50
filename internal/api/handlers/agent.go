package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/sensor"
	"github.com/roea-ai/botmind/pkg/types"
)

// Spawner builds a bot from its declaration. *agent.Factory implements it.
type Spawner interface {
	NewBot(cfg types.BotConfig) *agent.Bot
}

// BotHandler handles world and bot requests.
type BotHandler struct {
	worlds  *agent.Worlds
	spawner Spawner
	board   *sensor.Board
}

// NewBotHandler creates a new BotHandler. board may be nil.
func NewBotHandler(worlds *agent.Worlds, spawner Spawner, board *sensor.Board) *BotHandler {
	return &BotHandler{
		worlds:  worlds,
		spawner: spawner,
		board:   board,
	}
}

type worldSummary struct {
	Name string `json:"name"`
	Bots int    `json:"bots"`
}

// ListWorlds returns the loaded worlds.
func (h *BotHandler) ListWorlds(c *gin.Context) {
	names := h.worlds.Names()
	out := make([]worldSummary, 0, len(names))
	for _, name := range names {
		reg, ok := h.worlds.Get(name)
		if !ok {
			continue
		}
		out = append(out, worldSummary{Name: reg.World(), Bots: len(reg.Bots())})
	}
	c.JSON(http.StatusOK, out)
}

func (h *BotHandler) registry(c *gin.Context) (*agent.Registry, bool) {
	world := c.Param("world")
	reg, ok := h.worlds.Get(world)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "world not loaded: " + world})
		return nil, false
	}
	return reg, true
}

// lookupBot resolves the :world and :bot path parameters.
func lookupBot(worlds *agent.Worlds, c *gin.Context) (*agent.Bot, bool) {
	world, name := c.Param("world"), c.Param("bot")
	reg, ok := worlds.Get(world)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "world not loaded: " + world})
		return nil, false
	}
	b, ok := reg.Get(name)
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", agent.ErrBotNotFound, name))
		return nil, false
	}
	return b, true
}

// List returns every bot of a world.
func (h *BotHandler) List(c *gin.Context) {
	reg, ok := h.registry(c)
	if !ok {
		return
	}
	bots := reg.Bots()
	out := make([]types.BotInfo, 0, len(bots))
	for _, b := range bots {
		out = append(out, b.Info())
	}
	c.JSON(http.StatusOK, out)
}

type registerRequest struct {
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Roles   []string `json:"roles"`
	Trusted []string `json:"trusted"`
}

// Register spawns a bot in a world, opening the world if needed. The owner
// defaults to the principal, and only the owner may register a bot.
func (h *BotHandler) Register(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.spawner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "bot registration disabled"})
		return
	}

	var req registerRequest
	if !bindValidated(c, botSchema, &req) {
		return
	}
	if req.Owner == "" {
		req.Owner = principal
	}
	if !strings.EqualFold(req.Owner, principal) {
		respondError(c, fmt.Errorf("%w: %s cannot register a bot for %s", agent.ErrUnauthorized, principal, req.Owner))
		return
	}

	cfg := types.BotConfig{
		Name:    req.Name,
		Owner:   req.Owner,
		World:   c.Param("world"),
		Roles:   req.Roles,
		Trusted: req.Trusted,
	}
	reg := h.worlds.Open(cfg.World)
	b := h.spawner.NewBot(cfg)
	if err := reg.RegisterBot(b); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b.Info())
}

// Delete unregisters a bot. Primary owner only.
func (h *BotHandler) Delete(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	if !b.Lock().IsPrimaryOwner(principal) {
		respondError(c, fmt.Errorf("%w: only %s may remove %s", agent.ErrUnauthorized, b.Owner(), b.Name()))
		return
	}

	reg, _ := h.worlds.Get(b.World())
	reg.UnregisterBot(b.Name())
	if h.board != nil {
		h.board.Forget(b.World(), b.Name())
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type botDetail struct {
	types.BotInfo
	Trusted  []string              `json:"trusted"`
	Signals  *types.Signals        `json:"signals,omitempty"`
	Decision *types.DecisionRecord `json:"last_decision,omitempty"`
}

// Get returns a bot with its trust list, signals and last decision.
func (h *BotHandler) Get(c *gin.Context) {
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}

	out := botDetail{BotInfo: b.Info(), Trusted: b.Lock().Trusted()}
	if h.board != nil {
		if sig, found := h.board.Get(b.World(), b.Name()); found {
			out.Signals = &sig
		}
	}
	if b.Engine() != nil {
		rec := b.Engine().LastDecision()
		out.Decision = &rec
	}
	c.JSON(http.StatusOK, out)
}

// Available returns the owner's bots free to take work for a role.
func (h *BotHandler) Available(c *gin.Context) {
	reg, ok := h.registry(c)
	if !ok {
		return
	}
	owner := c.Query("owner")
	if owner == "" {
		owner = Principal(c)
	}
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner required"})
		return
	}

	bots := reg.FindAvailableBotsForRole(owner, c.Query("role"))
	out := make([]types.BotInfo, 0, len(bots))
	for _, b := range bots {
		out = append(out, b.Info())
	}
	c.JSON(http.StatusOK, out)
}

// SetMode switches a bot's passive mode.
func (h *BotHandler) SetMode(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}

	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, valid := types.ParseMode(strings.ToLower(req.Mode))
	if !valid || !mode.IsPassive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be builder, gatherer or stasis"})
		return
	}

	if err := b.EnableMode(principal, mode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b.Info())
}

// Unlock clears the task lock of a bot. Primary owner only.
func (h *BotHandler) Unlock(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	if err := b.ForceUnlock(principal); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

// SetSignals replaces the environment snapshot sampled by a bot's decision
// engine.
func (h *BotHandler) SetSignals(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if h.board == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "signal board disabled"})
		return
	}
	b, ok := lookupBot(h.worlds, c)
	if !ok {
		return
	}
	if !b.Lock().AuthorizeCommand(principal, "signals") {
		respondError(c, fmt.Errorf("%w: %s may not feed signals to %s", agent.ErrUnauthorized, principal, b.Name()))
		return
	}

	var sig types.Signals
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.board.For(b.World(), b.Name()).Set(sig)
	c.JSON(http.StatusOK, sig)
}
