package server

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pcbpeek/pcbpeek/pkg/errors"
	"github.com/pcbpeek/pcbpeek/pkg/store"
)

// conversionCookie carries the conversion ID between the convert call
// and the image side channel.
const conversionCookie = "pcbpeek_conversion"

// Response shapes. These mirror the contract the upload page consumes.
type imageInfo struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type convertResponse struct {
	Message           string      `json:"message"`
	AvailableImages   []imageInfo `json:"available_images"`
	AverageDimensions dimensions  `json:"average_dimensions"`
	Failures          []fileError `json:"failures,omitempty"`
}

type fileError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Multipart overhead on top of the archive cap.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxArchiveBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "multipart field %q is required", "file"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "only .zip archives are accepted"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload"))
		return
	}

	result, err := s.runner.Convert(r.Context(), data, s.cfg.PipelineOptions())
	if err != nil {
		s.writeError(w, err)
		return
	}

	conversionID := uuid.NewString()
	images := make([]store.Image, 0, len(result.Layers))
	infos := make([]imageInfo, 0, len(result.Layers))
	for _, layer := range result.Layers {
		name := layer.Name + ".png"
		images = append(images, store.Image{
			Name:     name,
			PNG:      layer.PNG,
			WidthMM:  layer.WidthMM,
			HeightMM: layer.HeightMM,
			Created:  time.Now(),
		})
		infos = append(infos, imageInfo{Name: name, Width: layer.WidthMM, Height: layer.HeightMM})
	}

	ttl := s.cfg.Store.TTL.Value(store.DefaultTTL)
	if err := s.store.Put(r.Context(), conversionID, images, ttl); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "store images"))
		return
	}
	s.setLatest(conversionID)

	// History is best effort; a down recorder never fails a conversion.
	if err := s.history.Record(r.Context(), store.Record{
		ConversionID: conversionID,
		CreatedAt:    time.Now(),
		LayerCount:   len(result.Layers),
		FailureCount: len(result.Failures),
		AvgWidthMM:   result.AvgWidthMM,
		AvgHeightMM:  result.AvgHeightMM,
	}); err != nil {
		s.logger.Warn("history record failed", "err", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     conversionCookie,
		Value:    conversionID,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := convertResponse{
		Message:           "conversion complete",
		AvailableImages:   infos,
		AverageDimensions: dimensions{Width: result.AvgWidthMM, Height: result.AvgHeightMM},
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, fileError{FileName: f.FileName, Error: f.Error})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	img, err := s.store.Get(r.Context(), s.conversionID(r), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(img.PNG)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	id := s.conversionID(r)
	names, err := s.store.List(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	infos := make([]imageInfo, 0, len(names))
	var sumW, sumH float64
	var measured int
	for _, name := range names {
		img, err := s.store.Get(r.Context(), id, name)
		if err != nil {
			continue // entry expired between List and Get
		}
		infos = append(infos, imageInfo{Name: img.Name, Width: img.WidthMM, Height: img.HeightMM})
		if img.WidthMM > 0 || img.HeightMM > 0 {
			sumW += img.WidthMM
			sumH += img.HeightMM
			measured++
		}
	}

	// Dimensions are reported at 2 decimals everywhere; an average of
	// rounded values needs rounding again.
	var avg dimensions
	if measured > 0 {
		avg.Width = round2(sumW / float64(measured))
		avg.Height = round2(sumH / float64(measured))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"available_images":   infos,
		"average_dimensions": avg,
	})
}

// handleHistory lists recent conversion summaries. Deployments without
// a history backend get an empty list, not an error.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "query history"))
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversions": recs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// conversionID resolves the conversion a request refers to: the cookie
// if present, the newest conversion otherwise.
func (s *Server) conversionID(r *http.Request) string {
	if c, err := r.Cookie(conversionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return s.getLatest()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

// writeError maps engine errors onto the {detail} error contract:
// client-attributable failures are 400, missing images 404, the rest 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.BatchFatal(err):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, errorResponse{Detail: errors.UserMessage(err)})
}
