// Package command parses chat-style commands such as "mine iron_ore 32".
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roea-ai/botmind/pkg/types"
)

var (
	ErrEmpty       = errors.New("empty command")
	ErrUnknownKind = errors.New("unknown command")
)

var kinds = map[string]types.CommandKind{
	"attack":  types.CommandAttack,
	"defend":  types.CommandDefend,
	"flee":    types.CommandFlee,
	"follow":  types.CommandFollow,
	"come":    types.CommandCome,
	"guard":   types.CommandGuard,
	"mine":    types.CommandMine,
	"gather":  types.CommandGather,
	"farm":    types.CommandFarm,
	"build":   types.CommandBuild,
	"craft":   types.CommandCraft,
	"deliver": types.CommandDeliver,
	"trade":   types.CommandTrade,
	"fish":    types.CommandFish,
	"explore": types.CommandExplore,
	"idle":    types.CommandIdle,

	"kill":  types.CommandAttack,
	"run":   types.CommandFlee,
	"chop":  types.CommandGather,
	"give":  types.CommandDeliver,
	"stop":  types.CommandIdle,
	"wait":  types.CommandIdle,
	"here":  types.CommandCome,
	"scout": types.CommandExplore,
}

// Kind maps a command word or kind name to its kind.
func Kind(word string) (types.CommandKind, bool) {
	k, ok := kinds[strings.ToLower(word)]
	return k, ok
}

// Parse splits a command line into its kind and parameters. The first
// argument is the target and a trailing integer is the quantity; key=value
// arguments set parameters directly.
func Parse(line string) (types.ParsedCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return types.ParsedCommand{}, ErrEmpty
	}

	kind, ok := Kind(fields[0])
	if !ok {
		return types.ParsedCommand{}, fmt.Errorf("%w: %s", ErrUnknownKind, fields[0])
	}

	params := make(map[string]string)
	var positional []string
	for _, f := range fields[1:] {
		if k, v, found := strings.Cut(f, "="); found && k != "" {
			params[strings.ToLower(k)] = v
			continue
		}
		positional = append(positional, f)
	}

	if n := len(positional); n > 0 {
		if q, err := strconv.Atoi(positional[n-1]); err == nil {
			if q <= 0 {
				return types.ParsedCommand{}, fmt.Errorf("invalid quantity %d", q)
			}
			params["quantity"] = strconv.Itoa(q)
			positional = positional[:n-1]
		}
	}
	if len(positional) > 0 {
		params["target"] = positional[0]
	}
	if len(positional) > 1 {
		params["args"] = strings.Join(positional[1:], " ")
	}

	cmd := types.ParsedCommand{Kind: kind}
	if len(params) > 0 {
		cmd.Parameters = params
	}
	return cmd, nil
}
