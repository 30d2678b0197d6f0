package config

import (
	"github.com/pcbpeek/pcbpeek/pkg/archive"
	"github.com/pcbpeek/pcbpeek/pkg/geometry"
	"github.com/pcbpeek/pcbpeek/pkg/gerber"
	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
	"github.com/pcbpeek/pcbpeek/pkg/raster"
)

// PipelineOptions maps the configured limits onto conversion options.
func (c *Config) PipelineOptions() pipeline.Options {
	build := geometry.DefaultOptions()
	if c.Limits.MaxRegionVertices > 0 {
		build.MaxRegionVertices = c.Limits.MaxRegionVertices
	}

	ras := raster.DefaultOptions()
	if c.Render.DPMM > 0 {
		ras.DPMM = c.Render.DPMM
	}
	if c.Render.MarginMM > 0 {
		ras.MarginMM = c.Render.MarginMM
	}
	if c.Limits.MaxCanvasPixels > 0 {
		ras.MaxCanvasPixels = c.Limits.MaxCanvasPixels
	}
	if c.Limits.MaxPrimitives > 0 {
		ras.MaxPrimitives = c.Limits.MaxPrimitives
	}

	return pipeline.Options{
		Workers:  c.Limits.Workers,
		CacheTTL: c.Cache.TTL.Value(pipeline.DefaultCacheTTL),
		Archive: archive.Limits{
			MaxArchiveBytes: c.Limits.MaxArchiveBytes,
			MaxMemberBytes:  c.Limits.MaxMemberBytes,
		},
		Parse: gerber.Limits{
			MaxCommands:   c.Limits.MaxCommands,
			MaxMacroSteps: c.Limits.MaxMacroSteps,
		},
		Build:  build,
		Raster: ras,
	}
}
