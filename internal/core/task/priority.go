package task

import "github.com/roea-ai/botmind/pkg/types"

// priorities is the static command-kind lookup table. Identical commands
// always enqueue at identical priority.
var priorities = map[types.CommandKind]types.TaskPriority{
	types.CommandAttack:  types.PriorityCritical,
	types.CommandDefend:  types.PriorityCritical,
	types.CommandFlee:    types.PriorityCritical,
	types.CommandFollow:  types.PriorityHigh,
	types.CommandCome:    types.PriorityHigh,
	types.CommandGuard:   types.PriorityHigh,
	types.CommandMine:    types.PriorityNormal,
	types.CommandGather:  types.PriorityNormal,
	types.CommandFarm:    types.PriorityNormal,
	types.CommandBuild:   types.PriorityNormal,
	types.CommandCraft:   types.PriorityNormal,
	types.CommandDeliver: types.PriorityNormal,
	types.CommandTrade:   types.PriorityLow,
	types.CommandFish:    types.PriorityLow,
	types.CommandExplore: types.PriorityDeferred,
	types.CommandIdle:    types.PriorityDeferred,
}

// PriorityFor returns the priority for a command kind. Unknown kinds are NORMAL.
func PriorityFor(kind types.CommandKind) types.TaskPriority {
	if p, ok := priorities[kind]; ok {
		return p
	}
	return types.PriorityNormal
}
