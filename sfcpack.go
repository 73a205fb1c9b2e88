// Package sfcpack compiles game resources (metasprite sheets, tile sets,
// audio scripts) into engine blobs and links them into the resource banks of
// a prebuilt .sfc image.
package sfcpack

import (
	"os"

	"go.uber.org/zap"
)

// Version is the library and tool version.
const Version = "0.3.1"

// Options configures a Check or Insert run. InputImage and OutputImage are
// only used by Insert.
type Options struct {
	ResourcesDir string
	SymbolsFile  string
	InputImage   string
	OutputImage  string

	// NProcesses is the worker pool size; <1 means one worker per CPU.
	NProcesses int

	// Progress, when non-nil, is called once per compiled resource.
	Progress func()

	Log *zap.SugaredLogger
}

func (opt *Options) logger() *zap.SugaredLogger {
	if opt.Log == nil {
		return zap.NewNop().Sugar()
	}
	return opt.Log
}

// Check compiles every resource and builds the link-phase data blocks
// without touching an image. All failures come back aggregated so one run
// reports everything that is broken.
func Check(opt Options) error {
	log := opt.logger()
	in, err := LoadSharedInput(opt.ResourcesDir, opt.SymbolsFile, log)
	if err != nil {
		return err
	}
	ds, err := CompileAll(in, opt.NProcesses, opt.Progress)
	if err != nil {
		return err
	}
	if err := ValidateEntityRomDataSymbols(in.Symbols, len(in.Entities.Entities)); err != nil {
		return err
	}
	_, fsMap, err := BuildMsFsData(ds.MsFsEntries(), in.Symbols, in.Mappings.MemoryMap.Mode)
	if err != nil {
		return err
	}
	if _, err := BuildEntityRomData(in.Entities, fsMap); err != nil {
		return err
	}
	log.Infof("%d resources ok", NWorkItems(in.Mappings))
	return nil
}

// Insert compiles every resource, links the blobs into the input image,
// finalizes the checksum and writes the output image. Nothing is written
// unless every phase succeeded.
func Insert(opt Options) error {
	log := opt.logger()
	in, err := LoadSharedInput(opt.ResourcesDir, opt.SymbolsFile, log)
	if err != nil {
		return err
	}
	image, err := LoadImage(opt.InputImage)
	if err != nil {
		return err
	}

	ds, err := CompileAll(in, opt.NProcesses, opt.Progress)
	if err != nil {
		return err
	}
	log.Debugf("compiled %d resources", NWorkItems(in.Mappings))

	if err := InsertAll(image, in, ds); err != nil {
		return err
	}
	if err := UpdateChecksum(image, in.Mappings.MemoryMap.Mode); err != nil {
		return err
	}
	if err := os.WriteFile(opt.OutputImage, image, 0644); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes)", opt.OutputImage, len(image))
	return nil
}
