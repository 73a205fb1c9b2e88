package sfcpack

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sfcpack/sfcpack/bytecode"
)

// SharedInput is the project state every compiler works from. It is built
// once, before the worker pool starts, and never mutated afterwards.
type SharedInput struct {
	Dir          string
	Mappings     *Mappings
	Resources    *Resources
	Entities     *Entities
	ExportOrder  *MsExportOrder
	PatternGrids []PatternGrid
	Symbols      SymbolMap
	Log          *zap.SugaredLogger
}

// LoadSharedInput loads and cross-validates every project file under the
// resources directory.
func LoadSharedInput(dir, symbolsFile string, log *zap.SugaredLogger) (*SharedInput, error) {
	m, err := LoadMappings(filepath.Join(dir, "mappings.json"))
	if err != nil {
		return nil, err
	}
	res, err := LoadResources(filepath.Join(dir, "resources.json"))
	if err != nil {
		return nil, err
	}
	for _, name := range m.Tiles {
		if _, ok := res.Tiles[name]; !ok {
			return nil, fmt.Errorf("tiles resource %q is not declared in resources.json", name)
		}
	}
	eo, err := LoadMsExportOrder(filepath.Join(dir, "ms-export-order.json"))
	if err != nil {
		return nil, err
	}
	entities, err := LoadEntities(filepath.Join(dir, "entities.json"))
	if err != nil {
		return nil, err
	}
	symbols, err := LoadSymbols(symbolsFile)
	if err != nil {
		return nil, err
	}
	return &SharedInput{
		Dir:          dir,
		Mappings:     m,
		Resources:    res,
		Entities:     entities,
		ExportOrder:  eo,
		PatternGrids: GeneratePatternGrids(eo),
		Symbols:      symbols,
		Log:          log,
	}, nil
}

// DataStore holds the compiled blobs, indexed by (type, id), plus the MsFs
// entries each spritesheet produced. It is filled by the collector and read
// by the single threaded link phase.
type DataStore struct {
	data [nResourceTypes][][]byte
	msFs [][]*MsFsEntry
}

func NewDataStore(m *Mappings) *DataStore {
	ds := &DataStore{}
	ds.data[ResourceTypeMtTilesets] = make([][]byte, len(m.MtTilesets))
	ds.data[ResourceTypeMsSpritesheets] = make([][]byte, len(m.MsSpritesheets))
	ds.data[ResourceTypeTiles] = make([][]byte, len(m.Tiles))
	ds.data[ResourceTypeAudioData] = make([][]byte, len(m.Audio))
	ds.msFs = make([][]*MsFsEntry, len(m.MsSpritesheets))
	return ds
}

func (ds *DataStore) store(rd *ResourceData) {
	ds.data[rd.Type][rd.ID] = rd.Data
	if rd.Type == ResourceTypeMsSpritesheets {
		ds.msFs[rd.ID] = rd.MsFs
	}
}

// DataForType returns the blobs of one resource type in id order.
func (ds *DataStore) DataForType(t ResourceType) [][]byte {
	return ds.data[t]
}

// MsFsEntries returns the per-spritesheet frameset entries in id order.
func (ds *DataStore) MsFsEntries() [][]*MsFsEntry {
	return ds.msFs
}

type workItem struct {
	Type ResourceType
	ID   int
	Name string
}

// ResourceData is one compiled resource. MsFs is only set for spritesheets.
type ResourceData struct {
	Type ResourceType
	ID   int
	Name string
	Data []byte
	MsFs []*MsFsEntry
}

// ResourceError tags a compile failure with the resource it came from.
type ResourceError struct {
	Type ResourceType
	Name string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Type, e.Name, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func workItems(m *Mappings) []workItem {
	items := make([]workItem, 0, NWorkItems(m))
	add := func(t ResourceType, names []string) {
		for i, n := range names {
			items = append(items, workItem{Type: t, ID: i, Name: n})
		}
	}
	add(ResourceTypeMtTilesets, m.MtTilesets)
	add(ResourceTypeMsSpritesheets, m.MsSpritesheets)
	add(ResourceTypeTiles, m.Tiles)
	add(ResourceTypeAudioData, m.Audio)
	return items
}

// NWorkItems reports how many resources a run compiles, for progress sizing.
func NWorkItems(m *Mappings) int {
	return len(m.MtTilesets) + len(m.MsSpritesheets) + len(m.Tiles) + len(m.Audio)
}

// CompileAll compiles every resource the mappings name on nProcs workers and
// returns the filled DataStore. The pool always drains: one broken resource
// never hides another, all failures come back in one aggregated error.
// progress, when non-nil, is called once per finished resource.
func CompileAll(in *SharedInput, nProcs int, progress func()) (*DataStore, error) {
	if nProcs < 1 {
		nProcs = runtime.NumCPU()
	}

	work := make(chan workItem)
	data := make(chan *ResourceData)
	errc := make(chan error)

	var wg sync.WaitGroup
	wg.Add(nProcs)
	for i := 0; i < nProcs; i++ {
		go func() {
			defer wg.Done()
			for item := range work {
				in.Log.Debugf("compiling %s %s", item.Type, item.Name)
				rd, err := compileResource(in, item)
				if err != nil {
					errc <- &ResourceError{Type: item.Type, Name: item.Name, Err: err}
					continue
				}
				data <- rd
			}
		}()
	}

	go func() {
		for _, item := range workItems(in.Mappings) {
			work <- item
		}
		close(work)
		wg.Wait()
		close(data)
		close(errc)
	}()

	ds := NewDataStore(in.Mappings)
	var errs error
	for data != nil || errc != nil {
		select {
		case rd, ok := <-data:
			if !ok {
				data = nil
				continue
			}
			ds.store(rd)
			if progress != nil {
				progress()
			}
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			errs = multierr.Append(errs, err)
			if progress != nil {
				progress()
			}
		}
	}
	if errs != nil {
		return nil, errs
	}
	return ds, nil
}

func compileResource(in *SharedInput, item workItem) (*ResourceData, error) {
	rd := &ResourceData{Type: item.Type, ID: item.ID, Name: item.Name}
	var err error
	switch item.Type {
	case ResourceTypeMtTilesets:
		rd.Data, err = compileMtTileset(in, item.Name)
	case ResourceTypeMsSpritesheets:
		rd.Data, rd.MsFs, err = compileSpritesheet(in, item.Name)
	case ResourceTypeTiles:
		rd.Data, err = compileTiles(in, item.Name)
	case ResourceTypeAudioData:
		rd.Data, err = compileAudio(in, item.Name)
	default:
		err = fmt.Errorf("unknown resource type %d", item.Type)
	}
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// compileMtTileset passes a pre-compiled tileset blob through verbatim.
func compileMtTileset(in *SharedInput, name string) ([]byte, error) {
	return readBinaryFile(filepath.Join(in.Dir, "mt_tilesets", name+".bin"), maxResourceSize)
}

func compileSpritesheet(in *SharedInput, name string) ([]byte, []*MsFsEntry, error) {
	msDir := filepath.Join(in.Dir, "metasprites")
	ms, err := LoadMsSpritesheet(filepath.Join(msDir, name+".json"))
	if err != nil {
		return nil, nil, err
	}
	if ms.Name != name {
		return nil, nil, fmt.Errorf("spritesheet name %q does not match mappings name %q", ms.Name, name)
	}
	return ConvertSpritesheet(ms, in.ExportOrder, in.PatternGrids, msDir, in.Log)
}

func compileTiles(in *SharedInput, name string) ([]byte, error) {
	ti := in.Resources.Tiles[name]
	img, err := loadImage(filepath.Join(in.Dir, "tiles", ti.Source))
	if err != nil {
		return nil, err
	}
	return ConvertTilesImage(img, tileFormatBitDepth[ti.Format])
}

func compileAudio(in *SharedInput, name string) ([]byte, error) {
	f, err := os.Open(filepath.Join(in.Dir, "audio", name+".txt"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bytecode.AssembleSong(f)
}

// maxResourceSize caps pass-through resource files; the inserter rejects
// anything this large anyway.
const maxResourceSize = 0xffff

func readBinaryFile(filename string, maxSize int64) ([]byte, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxSize {
		return nil, fmt.Errorf("file %q is too large (%d bytes, max %d)", filename, fi.Size(), maxSize)
	}
	return os.ReadFile(filename)
}
