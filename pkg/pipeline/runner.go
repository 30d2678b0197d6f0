package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pcbpeek/pcbpeek/pkg/archive"
	"github.com/pcbpeek/pcbpeek/pkg/cache"
	"github.com/pcbpeek/pcbpeek/pkg/errors"
	"github.com/pcbpeek/pcbpeek/pkg/gerber"
	"github.com/pcbpeek/pcbpeek/pkg/geometry"
	"github.com/pcbpeek/pcbpeek/pkg/observability"
	"github.com/pcbpeek/pcbpeek/pkg/raster"
)

// Runner executes conversions with render caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store conversion results. Multiple goroutines can safely share one
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Convert runs the full conversion over an uploaded ZIP.
func (r *Runner) Convert(ctx context.Context, zipData []byte, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	loadStart := time.Now()
	a, err := archive.Load(zipData, opts.Archive)
	if err != nil {
		return nil, err
	}
	candidates := a.Gerbers()

	result := &Result{}
	result.Stats.Members = len(a.Members)
	result.Stats.LoadTime = time.Since(loadStart)

	r.Logger.Info("loaded archive",
		"members", len(a.Members),
		"candidates", len(candidates),
		"duration", result.Stats.LoadTime)

	renderStart := time.Now()
	observability.Conversion().OnConvertStart(ctx, len(candidates))

	// Fan out over candidates; each goroutine owns its slot, so no
	// outcome crosses a goroutine boundary until Wait returns.
	type outcome struct {
		layer *Layer
		fail  *FileError
	}
	outcomes := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, m := range candidates {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			memberStart := time.Now()
			layer, err := r.renderMember(gctx, m, opts)
			observability.Conversion().OnLayerComplete(gctx, m.Name, time.Since(memberStart), err)
			if err != nil {
				// Archive-level fatality was decided at load time; any
				// error here belongs to this member alone.
				if gctx.Err() != nil {
					return err
				}
				r.Logger.Warn("layer failed", "file", m.Name, "err", err)
				outcomes[i].fail = &FileError{FileName: m.Name, Error: errors.UserMessage(err)}
				return nil
			}
			outcomes[i].layer = layer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.Conversion().OnConvertComplete(ctx, 0, 0, time.Since(renderStart), err)
		return nil, err
	}

	var sumW, sumH float64
	var measured int
	for _, o := range outcomes {
		switch {
		case o.layer != nil:
			result.Layers = append(result.Layers, *o.layer)
			result.Stats.Rendered++
			if o.layer.CacheHit {
				result.Stats.CacheHits++
			}
			if !o.layer.Empty() {
				sumW += o.layer.WidthMM
				sumH += o.layer.HeightMM
				measured++
			}
		case o.fail != nil:
			result.Failures = append(result.Failures, *o.fail)
			result.Stats.Failed++
		}
	}
	result.Stats.RenderTime = time.Since(renderStart)

	if result.Stats.Rendered == 0 {
		err := errors.New(errors.ErrCodeNoRenderableLayers,
			"no renderable layers in archive (%d members, %d failures)",
			len(a.Members), result.Stats.Failed)
		observability.Conversion().OnConvertComplete(ctx, 0, result.Stats.Failed, result.Stats.RenderTime, err)
		return nil, err
	}
	if measured > 0 {
		result.AvgWidthMM = round2(sumW / float64(measured))
		result.AvgHeightMM = round2(sumH / float64(measured))
	}

	r.Logger.Info("converted archive",
		"rendered", result.Stats.Rendered,
		"failed", result.Stats.Failed,
		"cache_hits", result.Stats.CacheHits,
		"avg_width_mm", result.AvgWidthMM,
		"avg_height_mm", result.AvgHeightMM,
		"duration", result.Stats.RenderTime)
	observability.Conversion().OnConvertComplete(ctx,
		result.Stats.Rendered, result.Stats.Failed, result.Stats.RenderTime, nil)

	return result, nil
}

// cachedRender is the cache payload for one rendered layer. The member
// name stays out of it: identical bytes under different names share an
// entry.
type cachedRender struct {
	PNG      []byte  `json:"png"`
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	PixelW   int     `json:"pixel_w"`
	PixelH   int     `json:"pixel_h"`
}

func (r *Runner) renderMember(ctx context.Context, m archive.Member, opts Options) (*Layer, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	key := r.Keyer.RenderKey(cache.Hash(m.Data), cache.RenderKeyOpts{
		DPMM:     opts.Raster.DPMM,
		MarginMM: opts.Raster.MarginMM,
	})
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		var cr cachedRender
		if err := json.Unmarshal(data, &cr); err == nil {
			observability.Cache().OnCacheHit(ctx, "render")
			return &Layer{
				Name:     m.Name,
				PNG:      cr.PNG,
				WidthMM:  cr.WidthMM,
				HeightMM: cr.HeightMM,
				PixelW:   cr.PixelW,
				PixelH:   cr.PixelH,
				CacheHit: true,
			}, nil
		}
		// Corrupt entry - recompute and overwrite below.
	}
	observability.Cache().OnCacheMiss(ctx, "render")

	cmds, err := gerber.Parse(m.Data, opts.Parse)
	if err != nil {
		return nil, err
	}
	prims, err := geometry.Build(cmds, opts.Build)
	if err != nil {
		return nil, err
	}
	bbox := geometry.BoundingBox(prims)

	img, err := raster.Render(prims, bbox, opts.Raster)
	if err != nil {
		return nil, err
	}
	png, err := raster.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	widthMM, heightMM := Dimensions(bbox)
	layer := &Layer{
		Name:     m.Name,
		PNG:      png,
		WidthMM:  widthMM,
		HeightMM: heightMM,
		PixelW:   img.Bounds().Dx(),
		PixelH:   img.Bounds().Dy(),
	}

	if data, err := json.Marshal(cachedRender{
		PNG:      layer.PNG,
		WidthMM:  layer.WidthMM,
		HeightMM: layer.HeightMM,
		PixelW:   layer.PixelW,
		PixelH:   layer.PixelH,
	}); err == nil {
		_ = r.Cache.Set(ctx, key, data, opts.CacheTTL)
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
	return layer, nil
}

// Dimensions reports a layer's physical extents in millimeters,
// rounded to two decimals. An empty bounding box measures 0x0.
func Dimensions(bbox geometry.Rect) (widthMM, heightMM float64) {
	if bbox.Empty() {
		return 0, 0
	}
	return round2(bbox.Width()), round2(bbox.Height())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
