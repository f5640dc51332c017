package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/cli/config"
	"github.com/dataglove/glovectl/internal/client/notice"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change the local configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:      "set",
				Usage:     "Write one key to the configuration file",
				ArgsUsage: "KEY VALUE",
				Action:    configSet,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: configPath,
			},
			{
				Name:   "keys",
				Usage:  "List the known keys",
				Action: configKeys,
			},
		},
	}
}

type configRow struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func configShow(c *cli.Context) error {
	rt := GetRuntime(c)
	cfg, err := rt.Config()
	if err != nil {
		return err
	}

	values := cfg.Loader.Values()
	rows := make([]configRow, 0, len(values))
	for _, v := range values {
		rows = append(rows, configRow{Key: v.Key, Value: fmt.Sprint(v.Value), Source: v.Source})
	}
	return rt.Render(rows)
}

func configSet(c *cli.Context) error {
	rt := GetRuntime(c)
	if c.NArg() != 2 {
		return errors.New("usage: config set KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	path := rt.configPath()
	if err := config.Set(path, key, value); err != nil {
		return err
	}
	rt.Notify(notice.LevelSuccess, fmt.Sprintf("%s set in %s", key, path))
	return nil
}

func configPath(c *cli.Context) error {
	rt := GetRuntime(c)
	_, err := fmt.Fprintln(rt.Out, rt.configPath())
	return err
}

func configKeys(c *cli.Context) error {
	rt := GetRuntime(c)
	for _, k := range config.Keys {
		if _, err := fmt.Fprintln(rt.Out, k); err != nil {
			return err
		}
	}
	return nil
}

// configPath is the file commands read and write, without loading it.
func (rt *Runtime) configPath() string {
	if rt.Flags.ConfigPath != "" {
		return rt.Flags.ConfigPath
	}
	return config.DefaultConfigPath()
}
