package sim

import (
	"fmt"
	"strconv"

	"github.com/roea-ai/botmind/internal/core/approval"
	"github.com/roea-ai/botmind/pkg/types"
)

const maxUnits = 4096

// Quantity spends one unit per requested item.
type Quantity struct{}

func (Quantity) Plan(t *types.Task) (int, error) {
	return quantity(t)
}

// Fixed spends a constant number of units.
type Fixed int

func (f Fixed) Plan(*types.Task) (int, error) {
	if f <= 0 {
		return 1, nil
	}
	return int(f), nil
}

// Build needs a structure to place.
type Build struct{}

func (Build) Plan(t *types.Task) (int, error) {
	if t.Param("target", "") == "" {
		return 0, fmt.Errorf("build needs a target structure")
	}
	return quantity(t)
}

// Trade asks the bot's owner before every trade and waits for an answer by
// polling on each completion check.
type Trade struct {
	Approvals *approval.Manager
	World     string
	Bot       string
	Owner     string
}

func (tr *Trade) Plan(t *types.Task) (int, error) {
	if t.Param("target", "") == "" {
		return 0, fmt.Errorf("trade needs a target item")
	}
	return 1, nil
}

func (tr *Trade) Step(t *types.Task, b *Body) (bool, error) {
	if tr.Approvals == nil {
		return true, nil
	}

	id := b.Data["approval"]
	if id == "" {
		owner := tr.Owner
		if owner == "" {
			owner = t.IssuedBy
		}
		details := fmt.Sprintf("%s x%s", t.Param("target", ""), t.Param("quantity", "1"))
		b.Data["approval"] = tr.Approvals.Create(tr.World, tr.Bot, owner, t.ID, "trade", details)
		return false, nil
	}

	status, err := tr.Approvals.Poll(id)
	if err != nil {
		return false, err
	}
	switch status {
	case approval.StatusApproved:
		tr.Approvals.Forget(id)
		return true, nil
	case approval.StatusDenied:
		tr.Approvals.Forget(id)
		return false, fmt.Errorf("trade denied by owner")
	case approval.StatusExpired:
		tr.Approvals.Forget(id)
		return false, fmt.Errorf("trade approval expired")
	}
	return false, nil
}

func (tr *Trade) Cancel(_ *types.Task, b *Body) {
	if tr.Approvals != nil && b.Data["approval"] != "" {
		tr.Approvals.Forget(b.Data["approval"])
	}
}

// DefaultStrategies returns a strategy for every command kind of one bot.
func DefaultStrategies(approvals *approval.Manager, bot types.BotConfig) map[types.CommandKind]Strategy {
	return map[types.CommandKind]Strategy{
		types.CommandAttack:  Fixed(3),
		types.CommandDefend:  Fixed(3),
		types.CommandFlee:    Fixed(1),
		types.CommandFollow:  Fixed(5),
		types.CommandCome:    Fixed(2),
		types.CommandGuard:   Fixed(10),
		types.CommandMine:    Quantity{},
		types.CommandGather:  Quantity{},
		types.CommandFarm:    Quantity{},
		types.CommandBuild:   Build{},
		types.CommandCraft:   Quantity{},
		types.CommandDeliver: Quantity{},
		types.CommandTrade:   &Trade{Approvals: approvals, World: bot.World, Bot: bot.Name, Owner: bot.Owner},
		types.CommandFish:    Quantity{},
		types.CommandExplore: Fixed(8),
		types.CommandIdle:    Fixed(1),
	}
}

func quantity(t *types.Task) (int, error) {
	raw := t.Param("quantity", "1")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", raw)
	}
	if n <= 0 {
		n = 1
	}
	if n > maxUnits {
		n = maxUnits
	}
	return n, nil
}
