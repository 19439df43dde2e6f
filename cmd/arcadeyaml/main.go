// Command arcadeyaml is the launcher: it discovers installed games, loads
// one by slug, and drives it through an ebiten desktop window (§6.5).
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/contentfs"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
	"github.com/arcadeyaml/engine/internal/engine/registry"
	"github.com/arcadeyaml/engine/internal/engine/session"
	"github.com/arcadeyaml/engine/internal/platform/config"
	applog "github.com/arcadeyaml/engine/internal/platform/log"
)

// Exit codes per §6.5's CLI surface table.
const (
	exitOK       = 0
	exitLoadErr  = 1
	exitInternal = 2
)

type cliFlags struct {
	listGames  bool
	game       string
	level      string
	backend    string
	fullscreen bool
	display    int
	resolution string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run builds the registry, resolves the requested game, merges its
// game-specific flags, and either lists games or launches one. It is split
// out from main so exit codes are returned rather than os.Exit'd, matching
// the rest of the engine's no-panics-at-the-top policy.
func run(args []string) int {
	cfg := config.Load()
	rootLog, err := applog.New(applog.Config{Level: cfg.LogLevel, ModuleLevels: cfg.ModuleLogLevels, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintln(os.Stderr, "arcadeyaml: failed to initialize logging:", err)
		return exitInternal
	}
	defer rootLog.Sync()

	flags := &cliFlags{}
	root := newRootCommand(flags, rootLog, cfg)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		if ec, ok := err.(exitCoder); ok {
			return ec.ExitCode()
		}
		return exitInternal
	}
	return exitCode(root)
}

// exitCoder lets a RunE return a specific exit code alongside its error.
type exitCoder interface {
	error
	ExitCode() int
}

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) ExitCode() int { return e.code }
func (e *codedError) Unwrap() error { return e.err }

// lastExitCode records the exit code runArcade chose on its last run:
// exitOK on success, or the same code as the codedError it returned.
var lastExitCode = exitOK

func exitCode(*cobra.Command) int { return lastExitCode }

func newRootCommand(flags *cliFlags, log *zap.Logger, cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arcadeyaml",
		Short: "Run declarative arcade games defined in YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArcade(cmd, flags, log, cfg, args)
		},
	}
	cmd.Flags().BoolVar(&flags.listGames, "list-games", false, "print discovered games and exit")
	cmd.Flags().StringVar(&flags.game, "game", "", "slug of the game to launch")
	cmd.Flags().StringVar(&flags.level, "level", "", "level slug to load")
	cmd.Flags().StringVar(&flags.backend, "backend", "mouse", "input adapter: mouse|laser|object")
	cmd.Flags().BoolVar(&flags.fullscreen, "fullscreen", false, "launch in fullscreen")
	cmd.Flags().IntVar(&flags.display, "display", 0, "display index hint")
	cmd.Flags().StringVar(&flags.resolution, "resolution", "", "window resolution hint, WxH")

	// Game-specific flags are declared by the game definition itself, so they
	// cannot be registered until --game is known. A lenient pre-parse finds
	// it without failing on flags this pass doesn't recognize yet.
	cmd.FParseErrWhitelist.UnknownFlags = true

	return cmd
}

func buildRegistry(log *zap.Logger, cfg config.Config) (*registry.Registry, error) {
	fs := contentfs.New(log, cfg.DataDir, cfg.OverlayDirs, "content/engine")
	loader, err := gamedef.NewLoader(log, fs, gamedef.DefaultSchemaJSON, cfg.SkipSchemaValidation)
	if err != nil {
		return nil, err
	}
	reg := registry.New(log, fs, loader)
	if err := reg.Discover(); err != nil {
		return nil, err
	}
	return reg, nil
}

func runArcade(cmd *cobra.Command, flags *cliFlags, log *zap.Logger, cfg config.Config, extraArgs []string) error {
	reg, err := buildRegistry(log, cfg)
	if err != nil {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, err}
	}

	if flags.listGames {
		printGameList(reg.List())
		lastExitCode = exitOK
		return nil
	}

	if flags.game == "" {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, fmt.Errorf("--game is required unless --list-games is set")}
	}

	meta, ok := reg.Lookup(flags.game)
	if !ok {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, fmt.Errorf("game %q not found", flags.game)}
	}

	gameArgs, err := parseGameArgs(meta.CLIArgSchema, extraArgs)
	if err != nil {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, err}
	}

	def, err := reg.Load(context.Background(), flags.game)
	if err != nil {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, err}
	}

	sessLog := applog.ForModule(log, applog.Config{ModuleLevels: cfg.ModuleLogLevels}, "session")
	sess, err := session.New(sessLog, def, session.DefaultConfig())
	if err != nil {
		lastExitCode = exitLoadErr
		return &codedError{exitLoadErr, err}
	}
	defer sess.Close()

	applyGameArgs(sess, gameArgs)

	levelName := flags.level
	if levelName == "" && len(def.Levels) > 0 {
		levelName = def.Levels[0].Layout
	}
	if levelName != "" {
		if err := sess.LoadLayout(levelName); err != nil {
			lastExitCode = exitLoadErr
			return &codedError{exitLoadErr, err}
		}
	}

	launcher := newLauncher(sess, log, flags)
	if err := launcher.Run(); err != nil {
		lastExitCode = exitInternal
		return &codedError{exitInternal, err}
	}

	lastExitCode = exitOK
	return nil
}

func printGameList(games []registry.Metadata) {
	sort.Slice(games, func(i, j int) bool { return games[i].Slug < games[j].Slug })
	for _, g := range games {
		fmt.Printf("%s\t%s\t%s\t%s\n", g.Slug, g.Name, g.Version, g.Author)
	}
}

// parseGameArgs merges raw --<flag> args against schema, the CLI args a game
// declares in its definition (§6.5 "<game-specific flags>").
func parseGameArgs(schema map[string]gamedef.CLIArg, raw []string) (map[string]ecs.Value, error) {
	fs := newGameFlagSet(schema)
	if err := fs.Parse(raw); err != nil {
		return nil, err
	}
	return fs.values, nil
}

func applyGameArgs(sess *session.Session, args map[string]ecs.Value) {
	sess.SetGameConfig(args)
}
