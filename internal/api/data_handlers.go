package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/export"
	"github.com/JakeFAU/academic-crawler/internal/store"
)

const (
	defaultSampleLimit = 10
	maxSampleLimit     = 1000
	maxPageLimit       = 10000
	readTimeout        = 10 * time.Second
	downloadTimeout    = 2 * time.Minute
)

type dataHandler struct {
	repo   store.RecordReader
	logger *zap.Logger
}

func newDataHandler(repo store.RecordReader, logger *zap.Logger) *dataHandler {
	return &dataHandler{repo: repo, logger: logger}
}

// list handles GET /api/data?field=&type=&search=&limit=&offset=. Without a
// limit every matching record is returned. X-Total-Count carries the match
// count before paging.
func (h *dataHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, 0, maxPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := store.ListFilter{
		Field:  strings.TrimSpace(q.Get("field")),
		Type:   strings.TrimSpace(q.Get("type")),
		Search: strings.TrimSpace(q.Get("search")),
		Limit:  limit,
		Offset: offset,
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	total, err := h.repo.CountRecords(ctx, filter)
	if err != nil {
		h.logger.Error("count records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	records, err := h.repo.ListRecords(ctx, filter)
	if err != nil {
		h.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, records)
}

// sample handles GET /api/data/sample?limit= (default 10).
func (h *dataHandler) sample(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	limit, _, err := parseLimitOffset(r, defaultSampleLimit, maxSampleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	records, err := h.repo.ListRecords(ctx, store.ListFilter{Limit: limit})
	if err != nil {
		h.logger.Error("sample records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sample")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// byField handles GET /api/data/field/{field}.
func (h *dataHandler) byField(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	field := chi.URLParam(r, "field")
	if unescaped, err := url.PathUnescape(field); err == nil {
		field = unescaped
	}
	field = strings.TrimSpace(field)
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	records, err := h.repo.ListRecords(ctx, store.ListFilter{Field: field})
	if err != nil {
		h.logger.Error("list records by field failed", zap.String("field", field), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// statistics handles GET /api/statistics.
func (h *dataHandler) statistics(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	stats, err := h.repo.Statistics(ctx)
	if err != nil {
		h.logger.Error("statistics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// download handles GET /download_json, serving the whole corpus as an attachment.
func (h *dataHandler) download(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), downloadTimeout)
	defer cancel()
	records, err := h.repo.ListRecords(ctx, store.ListFilter{})
	if err != nil {
		h.logger.Error("download records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export records")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.FileName)
	w.WriteHeader(http.StatusOK)
	if err := export.Encode(w, records); err != nil {
		h.logger.Error("write download failed", zap.Error(err))
	}
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
