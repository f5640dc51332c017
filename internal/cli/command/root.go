package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/infra/buildinfo"
)

const runtimeKey = "runtime"

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:     "glovectl",
		Usage:    "Command-line client for the data glove platform",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Commands: commands(),
		Before: func(c *cli.Context) error {
			rt := NewRuntime(ParseGlobalFlags(c), c.App.Reader, c.App.Writer, c.App.ErrWriter)
			c.App.Metadata[runtimeKey] = rt
			return nil
		},
		After: func(c *cli.Context) error {
			if rt := GetRuntime(c); rt != nil {
				return rt.Close()
			}
			return nil
		},
		// main prints the error; urfave must not exit on its own.
		ExitErrHandler: func(*cli.Context, error) {},
	}
	app.Metadata = map[string]any{}

	return app
}

// commands is shared by the application and the shell.
func commands() []*cli.Command {
	return []*cli.Command{
		LoginCommand(),
		RegisterCommand(),
		LogoutCommand(),
		WhoamiCommand(),
		PasswdCommand(),
		RefreshCommand(),
		OpenCommand(),
		RoutesCommand(),
		UploadCommand(),
		DownloadCommand(),
		ConfigCommand(),
		MetricsCommand(),
		VersionCommand(),
		ShellCommand(),
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "service origin (e.g. https://glove.example.com)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file",
			EnvVars: []string{"GLOVECTL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "log requests and session changes to stderr",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "keep the session in memory only",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server     string
	ConfigPath string
	Output     string
	Wide       bool
	Verbose    bool
	Ephemeral  bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:     c.String("server"),
		ConfigPath: c.String("config"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
		Ephemeral:  c.Bool("ephemeral"),
	}
}

// overrides maps the set global flags onto configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := map[string]any{}
	if f.Server != "" {
		m["server"] = f.Server
	}
	if f.Output != "" {
		m["output"] = f.Output
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	if f.Ephemeral {
		m["credential.backend"] = "memory"
	}
	return m
}

// GetRuntime retrieves the runtime from context.
func GetRuntime(c *cli.Context) *Runtime {
	if c == nil || c.App == nil {
		return nil
	}
	if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return rt
	}
	return nil
}

// PrintError prints an error message to stderr.
func PrintError(w io.Writer, err error) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

// positional returns the command arguments, between lo and hi of them.
// Flag parsing stops at the first argument, so anything flag-shaped after
// it is reported instead of being taken as an argument.
func positional(c *cli.Context, lo, hi int) ([]string, error) {
	args := c.Args().Slice()
	usage := strings.TrimSpace(c.Command.Name + " [flags] " + c.Command.ArgsUsage)
	for _, a := range args {
		if len(a) > 1 && a[0] == '-' {
			return nil, fmt.Errorf("flag %s after arguments; flags go first: %s", a, usage)
		}
	}
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	return args, nil
}
