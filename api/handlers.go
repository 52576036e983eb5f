package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gumtree-scraper/models"
	"gumtree-scraper/services"
)

// scrapeBody is the POST /scrape payload. save_to_sheets defaults to true.
type scrapeBody struct {
	CategoryURL  string `json:"category_url"`
	MaxPages     *int   `json:"max_pages"`
	MaxListings  *int   `json:"max_listings"`
	Location     string `json:"location"`
	SaveToSheets *bool  `json:"save_to_sheets"`
}

func (b scrapeBody) request() models.CrawlRequest {
	persist := true
	if b.SaveToSheets != nil {
		persist = *b.SaveToSheets
	}
	return models.CrawlRequest{
		CategoryTarget: strings.TrimSpace(b.CategoryURL),
		MaxPages:       b.MaxPages,
		MaxListings:    b.MaxListings,
		Location:       strings.TrimSpace(b.Location),
		PersistToStore: persist,
	}
}

func (s *Server) handleScrapePost(w http.ResponseWriter, r *http.Request) {
	var body scrapeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.scrape(w, r, body.request())
}

func (s *Server) handleScrapeGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	body := scrapeBody{
		CategoryURL: q.Get("category_url"),
		Location:    q.Get("location"),
	}

	var err error
	if body.MaxPages, err = optionalInt(q.Get("max_pages")); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "max_pages must be an integer")
		return
	}
	if body.MaxListings, err = optionalInt(q.Get("max_listings")); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "max_listings must be an integer")
		return
	}
	if v := q.Get("save_to_sheets"); v != "" {
		persist := strings.EqualFold(v, "true") || v == "1"
		body.SaveToSheets = &persist
	}
	s.scrape(w, r, body.request())
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request, req models.CrawlRequest) {
	if !s.running.TryLock() {
		s.respondWithError(w, http.StatusConflict, "A scrape is already running")
		return
	}
	defer s.running.Unlock()

	res, err := s.runner.Run(r.Context(), req)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("[api] Scrape failed: %v", err)
		s.respondWithJSON(w, http.StatusInternalServerError, map[string]any{
			"success":    false,
			"error":      err.Error(),
			"scraped_at": time.Now().Format(time.RFC3339),
		})
		return
	}
	s.respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "healthy",
		"service": "Gumtree Scraper API",
		"store":   s.config.StoreBackend,
	}
	s.respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithError(w, http.StatusNotFound, "Run history is disabled")
		return
	}
	latest, err := s.history.Latest(r.Context())
	if err != nil {
		s.logger.Error("[api] Failed to read run history: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve run history")
		return
	}
	if latest == nil {
		s.respondWithError(w, http.StatusNotFound, "No runs recorded yet")
		return
	}
	s.respondWithJSON(w, http.StatusOK, latest)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondWithJSON(w, http.StatusOK, []models.RunSummary{})
		return
	}
	limit, err := optionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	runs, err := s.history.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error("[api] Failed to read run history: %v", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve run history")
		return
	}
	s.respondWithJSON(w, http.StatusOK, runs)
}

// --- Helper Functions ---

func optionalInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", v, err)
	}
	return &n, nil
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]any{"success": false, "error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("[api] Encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
