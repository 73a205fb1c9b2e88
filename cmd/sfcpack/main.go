package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sfcpack/sfcpack"
	"github.com/sfcpack/sfcpack/internal/logger"
)

func main() {
	resourcesFlag := &cli.StringFlag{
		Name:  "resources",
		Value: "resources",
		Usage: "project resources `DIR`",
	}
	symbolsFlag := &cli.StringFlag{
		Name:     "symbols",
		Required: true,
		Usage:    "symbol map `FILE` of the prebuilt image",
	}

	app := &cli.App{
		Name:    "sfcpack",
		Usage:   "compile and link game resources into a .sfc image",
		Version: sfcpack.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "verbose output"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only display errors"},
			&cli.StringFlag{Name: "log-file", Usage: "also write a rotated JSON log to `FILE`"},
			&cli.IntFlag{
				Name:    "processes",
				Aliases: []string{"j"},
				Value:   runtime.NumCPU(),
				Usage:   "number of concurrent resource compilers",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "compile every resource and report all errors",
				Flags:  []cli.Flag{resourcesFlag, symbolsFlag},
				Action: runCheck,
			},
			{
				Name:  "insert",
				Usage: "compile every resource and link it into an image",
				Flags: []cli.Flag{
					resourcesFlag,
					symbolsFlag,
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "prebuilt image `FILE`"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "output image `FILE`"},
				},
				Action: runInsert,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) *zap.SugaredLogger {
	verbose, quiet := c.Bool("verbose"), c.Bool("quiet")
	if path := c.String("log-file"); path != "" {
		return logger.NewWithFile(verbose, quiet, path)
	}
	return logger.New(verbose, quiet)
}

func options(c *cli.Context, log *zap.SugaredLogger) sfcpack.Options {
	return sfcpack.Options{
		ResourcesDir: c.String("resources"),
		SymbolsFile:  c.String("symbols"),
		InputImage:   c.String("input"),
		OutputImage:  c.String("output"),
		NProcesses:   c.Int("processes"),
		Log:          log,
	}
}

// reportErrors logs every aggregated failure on its own line.
func reportErrors(log *zap.SugaredLogger, err error) error {
	for _, e := range multierr.Errors(err) {
		log.Error(e)
	}
	return cli.Exit("", 1)
}

func runCheck(c *cli.Context) error {
	log := newLogger(c)
	defer func() { _ = log.Sync() }()

	if err := sfcpack.Check(options(c, log)); err != nil {
		return reportErrors(log, err)
	}
	return nil
}

func runInsert(c *cli.Context) error {
	log := newLogger(c)
	defer func() { _ = log.Sync() }()

	opt := options(c, log)
	if bar := newProgressBar(c); bar != nil {
		opt.Progress = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}
	if err := sfcpack.Insert(opt); err != nil {
		return reportErrors(log, err)
	}
	return nil
}

// newProgressBar sizes a compile progress bar from the mappings. Nil when
// stderr is not a terminal, quiet is set, or the mappings cannot be read
// (the run itself reports that).
func newProgressBar(c *cli.Context) *progressbar.ProgressBar {
	if c.Bool("quiet") || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	m, err := sfcpack.LoadMappings(filepath.Join(c.String("resources"), "mappings.json"))
	if err != nil {
		return nil
	}
	return progressbar.NewOptions(sfcpack.NWorkItems(m),
		progressbar.OptionSetDescription("compiling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
