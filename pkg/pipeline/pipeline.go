// Package pipeline runs the load → parse → build → render conversion
// over every layer in an uploaded archive.
//
// The HTTP server and the CLI both drive conversions through the same
// Runner, so caching and failure semantics stay identical across entry
// points.
//
// # Failure model
//
// A member that fails to parse, build, or render becomes a per-file
// failure entry; its siblings are unaffected. Only two conditions fail
// the whole batch: an unreadable archive, and a batch where not a
// single layer rendered.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Convert(ctx, zipBytes, pipeline.Options{})
//	if err != nil {
//	    return err
//	}
//	for _, layer := range result.Layers {
//	    os.WriteFile(layer.Name+".png", layer.PNG, 0644)
//	}
package pipeline

import (
	"time"

	"github.com/pcbpeek/pcbpeek/pkg/archive"
	"github.com/pcbpeek/pcbpeek/pkg/gerber"
	"github.com/pcbpeek/pcbpeek/pkg/geometry"
	"github.com/pcbpeek/pcbpeek/pkg/raster"
)

// DefaultWorkers bounds the per-archive render fan-out. Conversions
// are memory-heavy (one canvas per in-flight layer), so the default
// stays small; deployments with headroom raise it in config.
const DefaultWorkers = 4

// DefaultCacheTTL is how long rendered layers stay in the render cache.
const DefaultCacheTTL = 24 * time.Hour

// Options configures one conversion run.
type Options struct {
	// Workers is the maximum number of layers rendered concurrently.
	Workers int

	// CacheTTL is the render cache TTL for layers produced by this run.
	CacheTTL time.Duration

	Archive archive.Limits
	Parse   gerber.Limits
	Build   geometry.Options
	Raster  raster.Options

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults applies defaults for unset fields.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Archive == (archive.Limits{}) {
		o.Archive = archive.DefaultLimits()
	}
	if o.Parse == (gerber.Limits{}) {
		o.Parse = gerber.DefaultLimits()
	}
	if o.Build.MaxRegionVertices <= 0 {
		o.Build = geometry.DefaultOptions()
	}
	if o.Raster.DPMM <= 0 {
		o.Raster = raster.DefaultOptions()
	}
	o.validated = true
	return nil
}

// Layer is one successfully rendered archive member.
type Layer struct {
	// Name is the source member name; the serving layer derives image
	// names from it.
	Name string

	PNG []byte

	// WidthMM and HeightMM are the layer's physical extents, rounded
	// to two decimals. A layer with no geometry reports 0x0.
	WidthMM  float64
	HeightMM float64

	PixelW int
	PixelH int

	// CacheHit reports whether the render came from the cache.
	CacheHit bool
}

// Empty reports whether the layer produced no geometry. Empty layers
// are kept in the result but excluded from dimension averaging.
func (l *Layer) Empty() bool {
	return l.WidthMM == 0 && l.HeightMM == 0
}

// FileError is a per-file failure entry. The JSON shape is part of
// the conversion response contract.
type FileError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// Result is the outcome of one conversion.
type Result struct {
	// Layers holds successful renders in archive enumeration order.
	Layers []Layer

	// Failures holds per-file errors, also in enumeration order.
	Failures []FileError

	// AvgWidthMM and AvgHeightMM average the successful non-empty
	// layers, rounded to two decimals.
	AvgWidthMM  float64
	AvgHeightMM float64

	Stats Stats
}

// Stats contains conversion execution statistics.
type Stats struct {
	Members   int
	Rendered  int
	Failed    int
	CacheHits int

	LoadTime   time.Duration
	RenderTime time.Duration
}
