// Package pkg provides the core libraries for pcbpeek Gerber conversion.
//
// # Overview
//
// pcbpeek turns a ZIP archive of Gerber RS-274X files into raster
// previews of the PCB layers it contains. The pkg directory is
// organized by pipeline stage:
//
//  1. [archive] - ZIP loading and layer-file classification
//  2. [gerber] - RS-274X tokenizer and parser (apertures, macros, modal state)
//  3. [geometry] - Parsed commands to 2D primitives plus bounding boxes
//  4. [raster] - Painter's-algorithm rendering of primitives to PNG
//  5. [pipeline] - Orchestration (load → parse → build → render) with caching
//  6. [store] - Short-lived result storage (memory, Redis) and Mongo history
//
// # Architecture
//
// The typical data flow through pcbpeek:
//
//	ZIP upload
//	     ↓
//	[archive] package (extract + classify members)
//	     ↓
//	[gerber] package (parse RS-274X into commands)
//	     ↓
//	[geometry] package (commands into primitives + bounds)
//	     ↓
//	[raster] package (primitives into a PNG preview)
//
// # Quick Start
//
// Convert an archive and inspect the result:
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/pcbpeek/pcbpeek/pkg/pipeline"
//	)
//
//	data, _ := os.ReadFile("board.zip")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, err := runner.Convert(context.Background(), data, pipeline.Options{})
//	if err != nil {
//	    // BatchFatal errors failed the whole archive; per-file
//	    // problems land in result.Failures instead.
//	}
//	for _, layer := range result.Layers {
//	    os.WriteFile(layer.Name+".png", layer.PNG, 0o644)
//	}
//
// # Supporting Packages
//
// [cache] - Render cache (file-backed or disabled) keyed by content
// hash and render options.
//
// [errors] - Coded errors shared across the pipeline. The code decides
// whether a failure is fatal to the batch or scoped to one file.
//
// [observability] - Optional hooks for conversion and cache events.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/gerber/...   # Specific package
//
// [archive]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/archive
// [gerber]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/gerber
// [geometry]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/geometry
// [raster]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/raster
// [pipeline]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/pipeline
// [store]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/store
// [cache]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/cache
// [errors]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/errors
// [observability]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/pcbpeek/pcbpeek/pkg/buildinfo
package pkg
