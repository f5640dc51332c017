package command

import (
	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			return GetRuntime(c).Render(buildinfo.Get())
		},
	}
}

// MetricsCommand returns the metrics command.
func MetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Dump client metrics in the Prometheus text format",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "include Go runtime and process metrics"},
		},
		Action: metrics,
	}
}

func metrics(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	return cl.Metrics.Dump(rt.Out, !c.Bool("all"))
}
