package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dataglove/glovectl/internal/cli/config"
	"github.com/dataglove/glovectl/internal/cli/output"
	"github.com/dataglove/glovectl/internal/client"
	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/infra/buildinfo"
	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// Runtime holds what commands share within one invocation, or across
// every line of a shell. The configuration and the session stack are built
// on first use so commands that need neither never touch the disk.
type Runtime struct {
	Flags *GlobalFlags
	In    io.Reader
	Out   io.Writer
	Err   io.Writer

	mu       sync.Mutex
	cfg      *config.Loaded
	log      logger.Logger
	logFile  *os.File
	client   *client.Client
	view     *pageView
	notices  notice.Notifier
	activity *output.Activity

	// readLine, when set, takes interactive input instead of In.
	readLine func(ctx context.Context, prompt string) (string, error)
	stdin    *bufio.Reader

	// clientOpts are appended when the client is built (tests).
	clientOpts []client.Option
}

// NewRuntime creates a runtime writing to out and err.
func NewRuntime(flags *GlobalFlags, in io.Reader, out, errw io.Writer) *Runtime {
	if flags == nil {
		flags = &GlobalFlags{}
	}
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}

	terminal := isTerminal(errw)
	return &Runtime{
		Flags:    flags,
		In:       in,
		Out:      out,
		Err:      errw,
		notices:  output.NewNoticePrinter(errw, terminal),
		activity: output.NewActivity(errw, terminal && !flags.Verbose),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && output.IsTerminal(f)
}

// Config loads the configuration once and sets up logging from it.
func (rt *Runtime) Config() (*config.Loaded, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.configLocked()
}

func (rt *Runtime) configLocked() (*config.Loaded, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}

	cfg, err := config.Load(rt.Flags.ConfigPath, rt.Flags.overrides())
	if err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = rt.Err
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rt.logFile = f
		logCfg.Output = f
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(l)

	rt.cfg = cfg
	rt.log = l
	return cfg, nil
}

// Logger returns the configured logger, or the default one before the
// configuration is loaded.
func (rt *Runtime) Logger() logger.Logger {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.log == nil {
		return logger.Default()
	}
	return rt.log
}

// Client builds and starts the session stack on first use.
func (rt *Runtime) Client(ctx context.Context) (*client.Client, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.client != nil {
		return rt.client, nil
	}

	cfg, err := rt.configLocked()
	if err != nil {
		return nil, err
	}
	if !rt.Flags.Ephemeral {
		if _, err := config.EnsureClientID(cfg); err != nil {
			rt.log.Warn("client id not persisted", "error", err)
		}
	}

	rt.view = &pageView{rt: rt}
	opts := append([]client.Option{
		client.WithNotifier(rt.notices),
		client.WithProgress(rt.activity),
		client.WithView(rt.view),
		client.WithLogger(rt.log),
	}, rt.clientOpts...)

	cl, err := client.New(cfg.ClientConfig(buildinfo.UserAgent()), opts...)
	if err != nil {
		return nil, err
	}
	if err := cl.Start(ctx); err != nil {
		return nil, errors.Join(err, cl.Close())
	}
	rt.view.client = cl
	rt.client = cl
	return cl, nil
}

// Notify surfaces a notice the way the session stack does.
func (rt *Runtime) Notify(level notice.Level, msg string) {
	rt.notices.Notify(notice.Notice{Level: level, Message: msg})
}

// Render writes data in the configured output format.
func (rt *Runtime) Render(data any) error {
	format := output.FormatTable
	if cfg, err := rt.Config(); err == nil {
		if f, err := output.ParseFormat(cfg.Output); err == nil {
			format = f
		}
	}
	return output.NewFormatter(format, rt.Flags.Wide).Format(rt.Out, data)
}

// Tabular reports whether output is meant for a person.
func (rt *Runtime) Tabular() bool {
	cfg, err := rt.Config()
	return err != nil || cfg.Output == string(output.FormatTable)
}

// Close releases the session stack and the log file.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var errs []error
	if rt.client != nil {
		errs = append(errs, rt.client.Close())
		rt.client = nil
	}
	if rt.logFile != nil {
		errs = append(errs, rt.logFile.Close())
		rt.logFile = nil
	}
	return errors.Join(errs...)
}
