package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/internal/observability"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/geocode"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

// searchLimit caps geocoder results per query.
const searchLimit = 5

// qiblaPathPoints is the number of great-circle segments returned for the
// Qibla line.
const qiblaPathPoints = 64

// placeSearcher is the geocoder as seen by the server.
type placeSearcher interface {
	Lookup(ctx context.Context, query string, limit int) ([]geocode.Place, error)
}

// placeRepository is the saved-places store as seen by the server.
type placeRepository interface {
	List(ctx context.Context) ([]db.Place, error)
	FindByName(ctx context.Context, name string) (*db.Place, error)
	Save(ctx context.Context, place *db.Place) error
	Delete(ctx context.Context, name string) error
}

// Server holds the HTTP router and its dependencies.
type Server struct {
	router    *chi.Mux
	engine    *app.Engine
	scans     *scanCache
	collector *observability.ScanCollector
	geocoder  placeSearcher
	places    placeRepository
	health    func(context.Context) bool
	tracer    trace.Tracer
}

// NewServer wires the routes. geocoder, places and health may be nil.
func NewServer(engine *app.Engine, collector *observability.ScanCollector, geocoder placeSearcher, places placeRepository, health func(context.Context) bool) (*Server, error) {
	scans, err := newScanCache(engine, collector, scanCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		router:    chi.NewRouter(),
		engine:    engine,
		scans:     scans,
		collector: collector,
		geocoder:  geocoder,
		places:    places,
		health:    health,
		tracer:    otel.Tracer("github.com/unklstewy/hilalscope/cmd/hilal-web"),
	}
	s.setupRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.collector.Middleware)
	r.Use(s.traceRequests)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Scan-Run-Id", "X-Scan-Cells", "X-Cache"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.collector.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/visibility", s.handleVisibility)
		r.Get("/visibility.xlsx", s.handleVisibilityWorkbook)
		r.Get("/summary", s.handleSummary)
		r.Get("/classify", s.handleClassify)
		r.Get("/qibla", s.handleQibla)
		r.Get("/search", s.handleSearch)

		r.Get("/places", s.handleListPlaces)
		r.Post("/places", s.handleSavePlace)
		r.Delete("/places/{name}", s.handleDeletePlace)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok"}
	if s.health != nil {
		status["database"] = s.health(r.Context())
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, hit, err := s.scans.Get(r.Context(), scanRequest{Date: date})
	if err != nil {
		respondScanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	setScanHeaders(w, res, hit)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func (s *Server) handleVisibilityWorkbook(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := scanRequest{Date: date, Workbook: true, All: r.URL.Query().Get("all") == "true"}
	res, hit, err := s.scans.Get(r.Context(), req)
	if err != nil {
		respondScanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="visibility-%s.xlsx"`, date.Format(time.DateOnly)))
	setScanHeaders(w, res, hit)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func setScanHeaders(w http.ResponseWriter, res *scanResult, hit bool) {
	cache := "miss"
	if hit {
		cache = "hit"
	}
	w.Header().Set("X-Scan-Run-Id", res.Completion.RunID)
	w.Header().Set("X-Scan-Cells", strconv.Itoa(res.Completion.Cells))
	w.Header().Set("X-Cache", cache)
}

func respondScanError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusServiceUnavailable, "scan interrupted")
		return
	}
	zap.L().Error("scan failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "scan failed")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sum := s.engine.Summaries.Compute(date, lat, lon)
	lag, hasLag := sum.LagTime()
	resp := map[string]interface{}{"summary": sum}
	if hasLag {
		resp["lag_minutes"] = lag.Minutes()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, err := parseLatLon(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a := s.engine.Classifier.Evaluate(date, lat, lon)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":       date.Format(time.DateOnly),
		"latitude":   lat,
		"longitude":  lon,
		"label":      a.Tier.Label(),
		"color":      a.Tier.Color(),
		"assessment": a,
	})
}

func (s *Server) handleQibla(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := qibla.BearingAndDistance(lat, lon)
	from := coordinates.Geographic{Latitude: lat, Longitude: lon}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bearing_degrees": res.BearingDegrees,
		"distance_km":     res.DistanceKm,
		"cardinal":        qibla.Cardinal(res.BearingDegrees),
		"style":           qibla.LineStyle,
		"path":            render.GreatCircle(from, qibla.Kaaba, qiblaPathPoints),
	})
}

// handleSearch answers from saved places first, then from the geocoder.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	if s.places != nil {
		p, err := s.places.FindByName(r.Context(), q)
		if err == nil {
			respondJSON(w, http.StatusOK, []app.Location{{Latitude: p.Latitude, Longitude: p.Longitude, Label: p.Name}})
			return
		}
		if !errors.Is(err, db.ErrNotFound) {
			zap.L().Warn("saved place lookup failed", zap.Error(err))
		}
	}

	if s.geocoder == nil {
		respondError(w, http.StatusNotFound, "place not found")
		return
	}
	places, err := s.geocoder.Lookup(r.Context(), q, searchLimit)
	if err != nil {
		if rl, ok := geocode.IsRateLimitError(err); ok {
			if rl.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
			}
			respondError(w, http.StatusTooManyRequests, "geocoder is rate limiting, try again later")
			return
		}
		zap.L().Error("geocoder failed", zap.String("query", q), zap.Error(err))
		respondError(w, http.StatusBadGateway, "geocoder unavailable")
		return
	}
	if len(places) == 0 {
		respondError(w, http.StatusNotFound, "place not found")
		return
	}

	out := make([]app.Location, 0, len(places))
	for _, p := range places {
		out = append(out, app.Location{Latitude: p.Latitude, Longitude: p.Longitude, Label: p.Label()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	if !s.requirePlaces(w) {
		return
	}
	places, err := s.places.List(r.Context())
	if err != nil {
		zap.L().Error("failed to list places", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list places")
		return
	}
	if places == nil {
		places = []db.Place{}
	}
	respondJSON(w, http.StatusOK, places)
}

func (s *Server) handleSavePlace(w http.ResponseWriter, r *http.Request) {
	if !s.requirePlaces(w) {
		return
	}

	var req struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := coordinates.ValidateLatLon(req.Latitude, req.Longitude); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	place := db.Place{Name: req.Name, Latitude: req.Latitude, Longitude: req.Longitude}
	if err := s.places.Save(r.Context(), &place); err != nil {
		zap.L().Error("failed to save place", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save place")
		return
	}
	respondJSON(w, http.StatusCreated, place)
}

func (s *Server) handleDeletePlace(w http.ResponseWriter, r *http.Request) {
	if !s.requirePlaces(w) {
		return
	}
	name := chi.URLParam(r, "name")
	err := s.places.Delete(r.Context(), name)
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, "place not found")
	case err != nil:
		zap.L().Error("failed to delete place", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete place")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) requirePlaces(w http.ResponseWriter) bool {
	if s.places == nil {
		respondError(w, http.StatusServiceUnavailable, "saved places are not enabled")
		return false
	}
	return true
}

// parseDate reads ?date=YYYY-MM-DD, defaulting to today in UTC.
func parseDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return date, nil
}

// parseLatLon reads and validates ?lat=&lon=.
func parseLatLon(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lon %q", q.Get("lon"))
	}
	if err := coordinates.ValidateLatLon(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
