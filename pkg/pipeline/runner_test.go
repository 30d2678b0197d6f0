package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/pcbpeek/pcbpeek/pkg/cache"
	"github.com/pcbpeek/pcbpeek/pkg/errors"
)

const gerberHeader = "%FSLAX25Y25*%\n%MOMM*%\n"

// rectGerber draws a closed region of the given size in millimeters
// (2.5 format: 1 mm = 100000).
func rectGerber(wmm, hmm int) string {
	w, h := wmm*100000, hmm*100000
	return gerberHeader + "G36*\n" +
		"X0Y0D02*\n" +
		coord(w, 0) + coord(w, h) + coord(0, h) + coord(0, 0) +
		"G37*\nM02*\n"
}

func coord(x, y int) string {
	return fmt.Sprintf("X%dY%dD01*\n", x, y)
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func testRunner() *Runner {
	return NewRunner(nil, nil, log.New(io.Discard))
}

func TestConvertSingleLayer(t *testing.T) {
	data := zipBytes(t, map[string]string{"top.gbr": rectGerber(10, 5)})

	result, err := testRunner().Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(result.Layers) != 1 || len(result.Failures) != 0 {
		t.Fatalf("layers=%d failures=%d, want 1/0", len(result.Layers), len(result.Failures))
	}

	layer := result.Layers[0]
	if layer.Name != "top.gbr" {
		t.Errorf("layer name = %q, want top.gbr", layer.Name)
	}
	if len(layer.PNG) == 0 {
		t.Error("layer PNG should not be empty")
	}
	if layer.WidthMM != 10 || layer.HeightMM != 5 {
		t.Errorf("dimensions = %vx%v, want 10x5", layer.WidthMM, layer.HeightMM)
	}
	if result.AvgWidthMM != 10 || result.AvgHeightMM != 5 {
		t.Errorf("averages = %vx%v, want 10x5", result.AvgWidthMM, result.AvgHeightMM)
	}
}

func TestConvertAveraging(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"a.gbr": rectGerber(10, 5),
		"b.gbr": rectGerber(20, 15),
	})

	result, err := testRunner().Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(result.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(result.Layers))
	}
	if result.AvgWidthMM != 15 || result.AvgHeightMM != 10 {
		t.Errorf("averages = %vx%v, want 15x10", result.AvgWidthMM, result.AvgHeightMM)
	}
}

func TestConvertMixedFailure(t *testing.T) {
	// The undefined-aperture member fails alone; the batch succeeds.
	data := zipBytes(t, map[string]string{
		"good.gbr": rectGerber(10, 5),
		"bad.gbr":  gerberHeader + "D99*\nX0Y0D02*\nM02*\n",
	})

	result, err := testRunner().Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(result.Layers) != 1 || len(result.Failures) != 1 {
		t.Fatalf("layers=%d failures=%d, want 1/1", len(result.Layers), len(result.Failures))
	}
	if result.Failures[0].FileName != "bad.gbr" {
		t.Errorf("failure file = %q, want bad.gbr", result.Failures[0].FileName)
	}
	if result.Failures[0].Error == "" {
		t.Error("failure entry should carry a message")
	}
	// The failed layer must not drag the average down.
	if result.AvgWidthMM != 10 || result.AvgHeightMM != 5 {
		t.Errorf("averages = %vx%v, want 10x5", result.AvgWidthMM, result.AvgHeightMM)
	}
}

func TestConvertEmptyArchive(t *testing.T) {
	data := zipBytes(t, nil)
	_, err := testRunner().Convert(context.Background(), data, Options{})
	if !errors.Is(err, errors.ErrCodeNoRenderableLayers) {
		t.Errorf("Convert = %v, want NO_RENDERABLE_LAYERS", err)
	}
}

func TestConvertAllLayersFail(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"bad.gbr": gerberHeader + "D99*\nM02*\n",
	})
	_, err := testRunner().Convert(context.Background(), data, Options{})
	if !errors.Is(err, errors.ErrCodeNoRenderableLayers) {
		t.Errorf("Convert = %v, want NO_RENDERABLE_LAYERS", err)
	}
}

func TestConvertNotAZip(t *testing.T) {
	_, err := testRunner().Convert(context.Background(), []byte("not a zip"), Options{})
	if !errors.Is(err, errors.ErrCodeArchive) {
		t.Errorf("Convert = %v, want ARCHIVE_ERROR", err)
	}
}

func TestConvertEmptyLayerExcludedFromAverage(t *testing.T) {
	// A syntactically valid layer with no geometry renders 0x0 and
	// stays out of the averages.
	data := zipBytes(t, map[string]string{
		"empty.gbr": gerberHeader + "M02*\n",
		"full.gbr":  rectGerber(10, 5),
	})

	result, err := testRunner().Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(result.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(result.Layers))
	}
	for _, layer := range result.Layers {
		if layer.Name == "empty.gbr" && !layer.Empty() {
			t.Errorf("empty.gbr dimensions = %vx%v, want 0x0", layer.WidthMM, layer.HeightMM)
		}
	}
	if result.AvgWidthMM != 10 || result.AvgHeightMM != 5 {
		t.Errorf("averages = %vx%v, want 10x5", result.AvgWidthMM, result.AvgHeightMM)
	}
}

func TestConvertRenderCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	runner := NewRunner(fc, nil, log.New(io.Discard))
	data := zipBytes(t, map[string]string{"top.gbr": rectGerber(10, 5)})

	first, err := runner.Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("first Convert error: %v", err)
	}
	if first.Stats.CacheHits != 0 {
		t.Errorf("first run cache hits = %d, want 0", first.Stats.CacheHits)
	}

	second, err := runner.Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("second Convert error: %v", err)
	}
	if second.Stats.CacheHits != 1 {
		t.Errorf("second run cache hits = %d, want 1", second.Stats.CacheHits)
	}
	if !second.Layers[0].CacheHit {
		t.Error("second run layer should report a cache hit")
	}
	if !bytes.Equal(first.Layers[0].PNG, second.Layers[0].PNG) {
		t.Error("cached PNG should match the original render")
	}
}

func TestConvertIgnoresDrillFiles(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"top.gbr":   rectGerber(10, 5),
		"holes.drl": "M48\nT1C0.8\n%",
	})
	result, err := testRunner().Convert(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}
	if len(result.Layers) != 1 || len(result.Failures) != 0 {
		t.Errorf("layers=%d failures=%d, want 1/0 (drill files are skipped, not errors)",
			len(result.Layers), len(result.Failures))
	}
}
