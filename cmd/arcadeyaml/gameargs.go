package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
)

// gameFlagSet parses a game's declared CLI arguments (§6.5 "<game-specific
// flags>") against a pflag.FlagSet built dynamically from its CLIArgSchema.
type gameFlagSet struct {
	fs     *pflag.FlagSet
	values map[string]ecs.Value
	kinds  map[string]string
}

func newGameFlagSet(schema map[string]gamedef.CLIArg) *gameFlagSet {
	g := &gameFlagSet{
		fs:     pflag.NewFlagSet("game-args", pflag.ContinueOnError),
		values: make(map[string]ecs.Value, len(schema)),
		kinds:  make(map[string]string, len(schema)),
	}
	g.fs.ParseErrorsWhitelist.UnknownFlags = true
	for name, arg := range schema {
		g.kinds[name] = arg.Type
		switch arg.Type {
		case "number":
			g.fs.Float64(name, arg.Default.AsNumber(), arg.Description)
		case "bool":
			g.fs.Bool(name, arg.Default.Bool, arg.Description)
		default:
			g.fs.String(name, arg.Default.AsString(), arg.Description)
		}
	}
	return g
}

func (g *gameFlagSet) Parse(args []string) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}
	for name, kind := range g.kinds {
		switch kind {
		case "number":
			v, err := g.fs.GetFloat64(name)
			if err != nil {
				return fmt.Errorf("game flag %q: %w", name, err)
			}
			g.values[name] = ecs.Number(v)
		case "bool":
			v, err := g.fs.GetBool(name)
			if err != nil {
				return fmt.Errorf("game flag %q: %w", name, err)
			}
			g.values[name] = ecs.Bool(v)
		default:
			v, err := g.fs.GetString(name)
			if err != nil {
				return fmt.Errorf("game flag %q: %w", name, err)
			}
			g.values[name] = ecs.String(v)
		}
	}
	return nil
}
