package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/cli/output"
	"github.com/dataglove/glovectl/internal/client/notice"
)

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a file to a service endpoint",
		ArgsUsage: "ENDPOINT FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "file name sent to the service (default: base name of FILE)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "no progress bar"},
		},
		Action: upload,
	}
}

func upload(c *cli.Context) error {
	rt := GetRuntime(c)
	args, err := positional(c, 2, 2)
	if err != nil {
		return err
	}
	endpoint, file := args[0], args[1]

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}

	name := firstNonEmpty(c.String("name"), filepath.Base(file))
	bar := rt.progressBar(c, "upload "+name, info.Size())
	var result any
	err = cl.Pipeline.Upload(c.Context, endpoint, name, f, info.Size(), percentFunc(bar), &result)
	finishBar(bar, err)
	if err != nil {
		return err
	}

	rt.Notify(notice.LevelSuccess, fmt.Sprintf("uploaded %s (%s)", name, output.FormatBytes(info.Size())))
	if result != nil {
		return rt.Render(result)
	}
	return nil
}

// DownloadCommand returns the download command.
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a file from a service endpoint",
		ArgsUsage: "ENDPOINT [DEST]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "no progress bar"},
		},
		Action: download,
	}
}

func download(c *cli.Context) error {
	rt := GetRuntime(c)
	args, err := positional(c, 1, 2)
	if err != nil {
		return err
	}
	endpoint, dest := args[0], ""
	if len(args) == 2 {
		dest = args[1]
	}

	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}

	bar := rt.progressBar(c, "download", 0)
	t, err := cl.Pipeline.Download(c.Context, endpoint, dest, percentFunc(bar))
	finishBar(bar, err)
	if err != nil {
		return err
	}

	rt.Notify(notice.LevelSuccess, fmt.Sprintf("saved %s (%s)", t.Path, output.FormatBytes(t.Bytes)))
	return nil
}

// progressBar returns nil when quiet or when stderr is not a terminal.
func (rt *Runtime) progressBar(c *cli.Context, title string, size int64) *output.ProgressBar {
	if c.Bool("quiet") || !isTerminal(rt.Err) {
		return nil
	}
	return output.NewProgressBar(rt.Err, title, size)
}

// percentFunc feeds bar from the pipeline's progress callback.
func percentFunc(bar *output.ProgressBar) func(int) {
	if bar == nil {
		return nil
	}
	return bar.Percent
}

func finishBar(bar *output.ProgressBar, err error) {
	if bar != nil {
		bar.Finish(err == nil)
	}
}
