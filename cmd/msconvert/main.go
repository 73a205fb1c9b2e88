// msconvert compiles a single metasprite sheet without touching an image:
// it writes the PPU data blob and the frameset entries as text, ready for a
// later link step.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sfcpack/sfcpack"
	"github.com/sfcpack/sfcpack/internal/logger"
)

var (
	binOutput  string
	msFsOutput string
	verbose    bool
	quiet      bool
)

func main() {
	initAndParseFlags()
	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: msconvert [options] <metasprites.json> <ms-export-order.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	log := logger.New(verbose, quiet)
	defer func() { _ = log.Sync() }()

	msFile, eoFile := args[0], args[1]
	if binOutput == "" {
		binOutput = destinationFilename(msFile, ".bin")
	}
	if msFsOutput == "" {
		msFsOutput = destinationFilename(msFile, ".txt")
	}

	eo, err := sfcpack.LoadMsExportOrder(eoFile)
	if err != nil {
		log.Fatal(err)
	}
	ms, err := sfcpack.LoadMsSpritesheet(msFile)
	if err != nil {
		log.Fatal(err)
	}

	grids := sfcpack.GeneratePatternGrids(eo)
	ppuData, entries, err := sfcpack.ConvertSpritesheet(ms, eo, grids, filepath.Dir(msFile), log)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if err := os.WriteFile(binOutput, ppuData, 0644); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(msFsOutput)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := sfcpack.WriteMsFsEntries(f, entries); err != nil {
		log.Fatal(err)
	}
	if !quiet {
		log.Infof("converted %q to %q and %q", msFile, binOutput, msFsOutput)
	}
}

func destinationFilename(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

func initAndParseFlags() {
	flag.BoolVar(&quiet, "q", false, "quiet")
	flag.BoolVar(&quiet, "quiet", false, "quiet, only display errors")
	flag.BoolVar(&verbose, "v", false, "verbose")
	flag.BoolVar(&verbose, "verbose", false, "verbose output")
	flag.StringVar(&binOutput, "bin-output", "", "specify the PPU data outfile, by default it changes extension to .bin")
	flag.StringVar(&msFsOutput, "msfs-output", "", "specify the frameset text outfile, by default it changes extension to .txt")
	flag.Parse()
}
