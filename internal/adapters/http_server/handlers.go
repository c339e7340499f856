package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rental_insights/internal/adapters/upload"
	"rental_insights/internal/app"
	"rental_insights/internal/domain"
)

type Handlers struct {
	Q         *app.QueryService
	I         *app.IngestionService
	MaxUpload int64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type listingRequest struct {
	PropertyName string                  `json:"propertyName"`
	URL          string                  `json:"url"`
	Snapshot     *domain.ListingSnapshot `json:"snapshot"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(MaxBody(h.MaxUpload))
			r.Post("/uploads/transactions", h.uploadTransactions)
			r.Post("/uploads/earnings", h.uploadEarnings)
			r.Post("/listings", h.postListing)
		})
		r.Get("/properties", h.listProperties)
		r.Get("/properties/{id}", h.getProperty)
		r.Delete("/properties/{id}", h.deleteProperty)
		r.Post("/properties/{id}/refresh-listing", h.refreshListing)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidWindow), errors.Is(err, domain.ErrEmptyName):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrNoListingURL):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, app.ErrNoScraper):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeCached answers with an ETag and honors If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

// parseWindow reads ?start=&end= as an inclusive window; both or neither.
func parseWindow(r *http.Request) (*domain.DateRange, error) {
	qs, qe := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if qs == "" && qe == "" {
		return nil, nil
	}
	start, err1 := time.Parse("2006-01-02", qs)
	end, err2 := time.Parse("2006-01-02", qe)
	if err1 != nil || err2 != nil || end.Before(start) {
		return nil, domain.ErrInvalidWindow
	}
	return &domain.DateRange{Start: start, End: end}, nil
}

// uploadBody returns the "file" part of a multipart form, or the raw body.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return r.Body, nil
}

func (h *Handlers) uploadTransactions(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid window", "start and end must both be YYYY-MM-DD with end >= start")
		return
	}
	body, err := uploadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	rows, err := upload.ReadRows(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, err)
			return
		}
		writeProblem(w, http.StatusBadRequest, "Unreadable CSV", err.Error())
		return
	}
	out, err := h.I.IngestTransactions(r.Context(), rows, window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) uploadEarnings(w http.ResponseWriter, r *http.Request) {
	body, err := uploadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	text, err := io.ReadAll(body)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.I.IngestEarnings(r.Context(), string(text), r.URL.Query().Get("property"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) postListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, err)
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.PropertyName) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid listing", "propertyName is required")
		return
	}

	var (
		p   domain.Property
		err error
	)
	if req.Snapshot != nil {
		p, err = h.I.IngestListing(r.Context(), req.PropertyName, req.URL, *req.Snapshot)
	} else {
		p, err = h.I.ScrapeListing(r.Context(), req.PropertyName, req.URL)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) refreshListing(w http.ResponseWriter, r *http.Request) {
	p, err := h.I.RefreshListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Q.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "property not found")
			return
		}
		writeError(w, err)
		return
	}
	writeCached(w, r, p)
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	q := domain.PropertiesQuery{Limit: limit}
	if c := r.URL.Query().Get("cursor"); c != "" {
		q.Cursor = &c
	}
	out, err := h.Q.ListProperties(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) deleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := h.I.DeleteProperty(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
