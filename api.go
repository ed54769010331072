package coachdata

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// ScrapeRunner launches a scrape run in the background. Satisfied by the
// scraper service; the trigger endpoint is fire-and-forget.
type ScrapeRunner interface {
	Start()
}

// APIServer serves the browsing/filtering read API and the scrape trigger.
type APIServer struct {
	store   Store
	scraper ScrapeRunner
}

// NewAPIServer creates an API server over the given store and scraper.
func NewAPIServer(store Store, scraper ScrapeRunner) *APIServer {
	return &APIServer{store: store, scraper: scraper}
}

// ErrorResponse is the JSON body of error replies.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Routes returns a mux with all API routes registered.
func (s *APIServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/coaches", s.HandleListCoaches)
	mux.HandleFunc("/api/coaches/", s.HandleGetCoach)
	mux.HandleFunc("/api/makes", s.HandleMakes)
	mux.HandleFunc("/api/models", s.HandleModels)
	mux.HandleFunc("/api/years", s.HandleYears)
	mux.HandleFunc("/api/scrape", s.HandleScrape)
	return mux
}

// HandleListCoaches handles GET /api/coaches: the filtered, sorted,
// paginated coach list.
func (s *APIServer) HandleListCoaches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	search, err := parseSearch(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	page, err := s.store.GetCoaches(r.Context(), *search)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list coaches: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, page)
}

// HandleGetCoach handles GET /api/coaches/{id}: a single coach with its
// images and features.
func (s *APIServer) HandleGetCoach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/coaches/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid coach ID")
		return
	}

	coach, err := s.store.GetCoachByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get coach: "+err.Error())
		return
	}
	if coach == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "Coach not found")
		return
	}

	images, err := s.store.GetCoachImages(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get coach images: "+err.Error())
		return
	}
	features, err := s.store.GetCoachFeatures(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get coach features: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, CoachDetail{Coach: *coach, Images: images, Features: features})
}

// HandleMakes handles GET /api/makes, for filter dropdowns.
func (s *APIServer) HandleMakes(w http.ResponseWriter, r *http.Request) {
	s.handleStrings(w, r, s.store.GetCoachMakes)
}

// HandleModels handles GET /api/models.
func (s *APIServer) HandleModels(w http.ResponseWriter, r *http.Request) {
	s.handleStrings(w, r, s.store.GetCoachModels)
}

// HandleYears handles GET /api/years.
func (s *APIServer) HandleYears(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	years, err := s.store.GetCoachYears(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get years: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, years)
}

// HandleScrape handles POST /api/scrape: starts a scrape run in the
// background and acknowledges immediately, regardless of the run's eventual
// outcome.
func (s *APIServer) HandleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	s.scraper.Start()
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Scraper started"})
}

func (s *APIServer) handleStrings(w http.ResponseWriter, r *http.Request, get func(context.Context) ([]string, error)) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	values, err := get(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "Failed to get values: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

// writeJSON writes a JSON response with the given status.
func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *APIServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// parseSearch builds a CoachSearch from query parameters. Numeric
// parameters that fail to parse are rejected rather than silently ignored.
func parseSearch(r *http.Request) (*CoachSearch, error) {
	query := r.URL.Query()
	search := CoachSearch{
		Search: query.Get("search"),
		Make:   query.Get("make"),
		Model:  query.Get("model"),
		Status: query.Get("status"),
		SortBy: query.Get("sortBy"),
		Page:   1,
		Limit:  6,
	}

	var err error
	if search.Year, err = intParam(query.Get("year"), "year"); err != nil {
		return nil, err
	}
	if search.MinPrice, err = floatParam(query.Get("minPrice"), "minPrice"); err != nil {
		return nil, err
	}
	if search.MaxPrice, err = floatParam(query.Get("maxPrice"), "maxPrice"); err != nil {
		return nil, err
	}
	if v := query.Get("page"); v != "" {
		if search.Page, err = intParam(v, "page"); err != nil {
			return nil, err
		}
	}
	if v := query.Get("limit"); v != "" {
		if search.Limit, err = intParam(v, "limit"); err != nil {
			return nil, err
		}
	}

	return &search, nil
}

func intParam(value, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &paramError{name}
	}
	return n, nil
}

func floatParam(value, name string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &paramError{name}
	}
	return f, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "Invalid " + e.name + " parameter: must be numeric"
}

// CORSMiddleware adds permissive CORS headers for the browsing front end.
func (s *APIServer) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
