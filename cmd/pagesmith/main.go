package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pagesmith/internal/config"
)

const appName = "pagesmith"

type envKey struct{}

// appEnv is shared by every command once the command line is parsed.
type appEnv struct {
	Cfg   *config.Config
	Log   *zap.Logger
	start time.Time
}

func envFromContext(ctx context.Context) *appEnv {
	if env, ok := ctx.Value(envKey{}).(*appEnv); ok {
		return env
	}
	panic("application environment is not set")
}

func contextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &appEnv{Log: zap.NewNop(), start: time.Now()})
}

// initializeAppContext loads configuration and prepares logging after the
// command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	env := envFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.Load(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		env.Cfg.Logging.Level = "debug"
	}
	if env.Log, err = env.Cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("runtime", runtime.Version()))
	if len(configFile) == 0 {
		env.Log.Debug("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	env.Log.Debug("Program ended", zap.Duration("elapsed", time.Since(env.start)))
	_ = env.Log.Sync()
	return nil
}

// errors from subcommands are reported once, here, while the log is still open
var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := envFromContext(ctx)
	if env.Cfg != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(contextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            appName,
		Usage:           "generates, edits and publishes landing pages",
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:         "serve",
				Usage:        "Runs the HTTP API",
				OnUsageError: usageErrorHandler,
				Action:       runServe,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen on `PORT` instead of the configured one"},
					&cli.StringFlag{Name: "db", Usage: "SQLite database `PATH` (\":memory:\" for a throwaway store)"},
				},
			},
			{
				Name:         "edit",
				Usage:        "Applies scripted edits to an HTML file",
				OnUsageError: usageErrorHandler,
				Action:       runEdit,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "select", Aliases: []string{"s"}, Required: true, Usage: "click the element matching `SELECTOR`"},
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "replace the selection's text"},
					&cli.StringSliceFlag{Name: "style", Usage: "apply `PROPERTY=VALUE` to the selection, may be repeated"},
					&cli.BoolFlag{Name: "bold", Usage: "toggle bold"},
					&cli.BoolFlag{Name: "italic", Usage: "toggle italic"},
					&cli.BoolFlag{Name: "underline", Usage: "toggle underline"},
				},
				ArgsUsage: "SOURCE [DESTINATION]",
			},
			{
				Name:         "inline",
				Usage:        "Copies <style> rules onto elements for standalone use",
				OnUsageError: usageErrorHandler,
				Action:       runInline,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "keep-styles", Usage: "keep the original <style> tags"},
				},
				ArgsUsage: "SOURCE [DESTINATION]",
			},
			{
				Name:         "outline",
				Usage:        "Prints the text structure of an HTML file as Markdown",
				OnUsageError: usageErrorHandler,
				Action:       runOutline,
				ArgsUsage:    "SOURCE [DESTINATION]",
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
			},
		},
	}

	var err error
	// os.Exit skips deferred calls, keep this the only one
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		cfg   = env.Cfg
		state = "actual"
	)
	if cmd.Bool("default") {
		def := config.Default()
		cfg, state = &def, "default"
	}
	data, err := config.Dump(cfg)
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	fname := cmd.Args().Get(0)
	env.Log.Debug("Outputing configuration", zap.String("state", state), zap.String("file", fname))
	return writeOutput(fname, data)
}

// writeOutput writes data to fname, or to stdout when fname is empty.
func writeOutput(fname string, data []byte) error {
	if fname == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", fname, err)
	}
	return nil
}
