package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pcbpeek/pcbpeek/internal/config"
	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
	"github.com/pcbpeek/pcbpeek/pkg/store"
)

const rectGerber = "%FSLAX25Y25*%\n%MOMM*%\n" +
	"G36*\nX0Y0D02*\nX1000000Y0D01*\nX1000000Y500000D01*\nX0Y500000D01*\nX0Y0D01*\nG37*\nM02*\n"

func testServer() *Server {
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, logger)
	return New(runner, store.NewMemoryStore(), nil, config.Default(), logger)
}

func zipUpload(t *testing.T, filename string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var zbuf bytes.Buffer
	zw := zip.NewWriter(&zbuf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(zbuf.Bytes()); err != nil {
		t.Fatalf("form write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("form close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestConvertEndpoint(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	body, contentType := zipUpload(t, "board.zip", map[string]string{"top.gbr": rectGerber})
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message         string `json:"message"`
		AvailableImages []struct {
			Name   string  `json:"name"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"available_images"`
		AverageDimensions struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"average_dimensions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.AvailableImages) != 1 {
		t.Fatalf("got %d images, want 1", len(resp.AvailableImages))
	}
	if resp.AvailableImages[0].Name != "top.gbr.png" {
		t.Errorf("image name = %q, want top.gbr.png", resp.AvailableImages[0].Name)
	}
	if resp.AverageDimensions.Width != 10 || resp.AverageDimensions.Height != 5 {
		t.Errorf("average = %+v, want 10x5", resp.AverageDimensions)
	}

	// The conversion cookie must come back so the image side channel
	// can resolve the right conversion.
	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == conversionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("conversion cookie not set")
	}
}

func TestConvertRejectsNonZipFilename(t *testing.T) {
	srv := testServer()
	body, contentType := zipUpload(t, "board.tar.gz", map[string]string{"top.gbr": rectGerber})
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Detail == "" {
		t.Error("error response should carry a detail message")
	}
}

func TestConvertEmptyArchiveIs400(t *testing.T) {
	srv := testServer()
	body, contentType := zipUpload(t, "board.zip", nil)
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for no renderable layers", rec.Code)
	}
}

func TestImageEndpoint(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	body, contentType := zipUpload(t, "board.zip", map[string]string{"top.gbr": rectGerber})
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()

	// With cookie.
	req = httptest.NewRequest(http.MethodGet, "/images/top.gbr.png", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("image body should not be empty")
	}

	// Without cookie the server falls back to the latest conversion.
	req = httptest.NewRequest(http.MethodGet, "/images/top.gbr.png", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cookieless image status = %d, want 200 via latest conversion", rec.Code)
	}
}

func TestImageNotFound(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodGet, "/images/missing.png", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListImagesEndpoint(t *testing.T) {
	srv := testServer()
	router := srv.Router()

	body, contentType := zipUpload(t, "board.zip", map[string]string{"top.gbr": rectGerber})
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	req = httptest.NewRequest(http.MethodGet, "/list-images/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		AvailableImages []struct {
			Name string `json:"name"`
		} `json:"available_images"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.AvailableImages) != 1 || resp.AvailableImages[0].Name != "top.gbr.png" {
		t.Errorf("available images = %+v", resp.AvailableImages)
	}
}

func TestListImagesRoundsAverages(t *testing.T) {
	srv := testServer()
	id := "conv-rounding"
	images := []store.Image{
		{Name: "a.png", WidthMM: 10.01, HeightMM: 5.01},
		{Name: "b.png", WidthMM: 10.01, HeightMM: 5.01},
		{Name: "c.png", WidthMM: 10.02, HeightMM: 5.02},
	}
	if err := srv.store.Put(context.Background(), id, images, time.Minute); err != nil {
		t.Fatalf("store put: %v", err)
	}
	srv.setLatest(id)

	req := httptest.NewRequest(http.MethodGet, "/list-images/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		AverageDimensions struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"average_dimensions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// Averaging 2-decimal layers yields a 3-decimal mean; the response
	// must round it back to 2 decimals.
	if resp.AverageDimensions.Width != 10.01 || resp.AverageDimensions.Height != 5.01 {
		t.Errorf("average = %+v, want 10.01x5.01", resp.AverageDimensions)
	}
}

type fakeHistory struct {
	recs []store.Record
}

func (h *fakeHistory) Record(ctx context.Context, rec store.Record) error {
	h.recs = append(h.recs, rec)
	return nil
}

func (h *fakeHistory) Recent(ctx context.Context, limit int) ([]store.Record, error) {
	if limit < len(h.recs) {
		return h.recs[:limit], nil
	}
	return h.recs, nil
}

func (h *fakeHistory) Close(ctx context.Context) error { return nil }

func TestHistoryEndpoint(t *testing.T) {
	logger := log.New(io.Discard)
	hist := &fakeHistory{}
	srv := New(pipeline.NewRunner(nil, nil, logger), store.NewMemoryStore(), hist, config.Default(), logger)
	router := srv.Router()

	body, contentType := zipUpload(t, "board.zip", map[string]string{"top.gbr": rectGerber})
	req := httptest.NewRequest(http.MethodPost, "/convert-gerber/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/history/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var resp struct {
		Conversions []store.Record `json:"conversions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Conversions) != 1 {
		t.Fatalf("got %d conversions, want 1", len(resp.Conversions))
	}
	if resp.Conversions[0].LayerCount != 1 || resp.Conversions[0].FailureCount != 0 {
		t.Errorf("record = %+v, want 1 layer and 0 failures", resp.Conversions[0])
	}

	// Bad limit is a client error.
	req = httptest.NewRequest(http.MethodGet, "/history/?limit=zero", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHistoryEndpointWithoutBackend(t *testing.T) {
	srv := testServer() // NullHistory
	req := httptest.NewRequest(http.MethodGet, "/history/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"conversions":[]`) {
		t.Errorf("body = %s, want an empty conversions array", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
