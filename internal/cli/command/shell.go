package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/cli/config"
	"github.com/dataglove/glovectl/internal/cli/repl"
	"github.com/dataglove/glovectl/internal/client"
	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/infra/confloader"
	"github.com/dataglove/glovectl/internal/infra/shutdown"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

const shellShutdownTimeout = 5 * time.Second

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive console that keeps the session and the current page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "start",
				Value: defaultOpenTarget,
				Usage: "page opened when the shell starts (empty for none)",
			},
			&cli.StringFlag{
				Name:  "metrics-listen",
				Usage: "serve client metrics over HTTP at this address while the shell runs (e.g. 127.0.0.1:9464)",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	rt := GetRuntime(c)
	cfg, err := rt.Config()
	if err != nil {
		return err
	}
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}

	handler := shutdown.NewHandler(shellShutdownTimeout)
	ctx, cancel := handler.NotifyContext(c.Context)
	defer cancel()

	history := repl.NewHistory(cfg.History.File, cfg.History.Size)
	if err := history.Load(); err != nil {
		rt.Logger().Warn("history not loaded", "error", err)
	}
	handler.OnClose(history.Save)

	if w := watchConfig(rt, cfg); w != nil {
		handler.OnClose(w.Close)
	}
	if addr := c.String("metrics-listen"); addr != "" {
		srv, err := serveMetrics(rt, cl, addr)
		if err != nil {
			return errors.Join(err, handler.Shutdown())
		}
		handler.OnShutdown(srv.Shutdown)
	}

	r := repl.New(shellExec(rt, cl),
		repl.WithIO(rt.In, rt.Out),
		repl.WithPrompt(func() string { return prompt(cl) }),
		repl.WithHistory(history),
		repl.WithCompleter(repl.NewCompleter(commandNames(), cl.Router.Paths)),
	)

	rt.mu.Lock()
	rt.readLine = r.ReadLine
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		rt.readLine = nil
		rt.mu.Unlock()
	}()

	fmt.Fprintln(rt.Out, "glovectl shell. Type 'help' for commands, 'exit' to quit.")
	if start := c.String("start"); start != "" {
		if _, err := cl.Navigator.Navigate(ctx, start); err != nil {
			fmt.Fprintf(rt.Out, "error: %v\n", err)
		}
	}

	runErr := r.Run(ctx)
	return errors.Join(runErr, handler.Shutdown())
}

// shellExec runs one line through the shared command set, then lets the
// navigator follow any redirect the line queued.
func shellExec(rt *Runtime, cl *client.Client) repl.ExecFunc {
	return func(ctx context.Context, args []string) error {
		app := &cli.App{
			Name:           "glovectl",
			HideVersion:    true,
			Commands:       shellCommands(),
			Reader:         rt.In,
			Writer:         rt.Out,
			ErrWriter:      rt.Err,
			Metadata:       map[string]any{runtimeKey: rt},
			ExitErrHandler: func(*cli.Context, error) {},
		}
		err := app.RunContext(ctx, append([]string{app.Name}, args...))
		_, serr := cl.Navigator.Settle(ctx)
		return errors.Join(err, serr)
	}
}

// shellCommands is the command set without the shell itself.
func shellCommands() []*cli.Command {
	var out []*cli.Command
	for _, cmd := range commands() {
		if cmd.Name != "shell" {
			out = append(out, cmd)
		}
	}
	return out
}

func commandNames() []string {
	var names []string
	for _, cmd := range shellCommands() {
		names = append(names, cmd.Names()...)
	}
	return names
}

func prompt(cl *client.Client) string {
	user := "-"
	if id, ok := cl.State.Identity(); ok {
		user = id.Username
	} else if cl.State.IsAuthenticated() {
		user = "?"
	}
	page := cl.Navigator.Current().Path
	if page == "" {
		page = "/"
	}
	return fmt.Sprintf("glovectl %s %s> ", user, page)
}

// serveMetrics exposes the client registry on addr until shutdown.
func serveMetrics(rt *Runtime, cl *client.Client, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", cl.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := rt.Logger()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	rt.Notify(notice.LevelInfo, "metrics on http://"+ln.Addr().String()+"/metrics")
	return srv, nil
}

// watchConfig follows the configuration file so a changed log level
// applies without leaving the shell.
func watchConfig(rt *Runtime, cfg *config.Loaded) *confloader.Watcher {
	log := rt.Logger()
	w, err := confloader.Watch(cfg.Path, func(path string) {
		next, err := config.Load(path, rt.Flags.overrides())
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		log.Info("log level reloaded", "level", next.Log.Level)
	}, logger.Slog(log))
	if err != nil {
		log.Warn("config watch unavailable", "error", err)
		return nil
	}
	return w
}
