package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	wsadapter "tilequest/adapters/websocket"
	"tilequest/analytics"
	"tilequest/claims"
	"tilequest/logging"
	"tilequest/realtime"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// CORSOrigins enables CORS for the listed origins ("*" for any).
	CORSOrigins []string
	// AdminAPIKeys, if non-empty, protect list, stats and export via
	// Authorization: Bearer or X-API-Key. Submission stays public.
	AdminAPIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Health is probed by /healthz; nil reports storage as ok.
	Health Pinger
	// Analytics, if set, is served at /analytics (admin).
	Analytics *analytics.Metrics
	// Debug adds error details to 500 responses.
	Debug  bool
	Logger zerolog.Logger
}

type handler struct {
	svc       *claims.Service
	health    Pinger
	analytics *analytics.Metrics
	debug     bool
	now       func() time.Time
}

// NewMux builds the claim API and WebSocket stream.
// Routes:
//   - POST {prefix}/addresses
//   - GET  {prefix}/addresses?level=&address=&limit=&offset=   (admin)
//   - GET  {prefix}/addresses/stats                           (admin)
//   - GET  {prefix}/addresses/export.csv                      (admin)
//   - GET  {prefix}/analytics?period=&date=                   (admin)
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?types=
func NewMux(svc *claims.Service, hub *realtime.Hub, opts Options) http.Handler {
	h := &handler{svc: svc, health: opts.Health, analytics: opts.Analytics, debug: opts.Debug, now: time.Now}

	root := mux.NewRouter()
	r := root
	if p := strings.TrimSuffix(opts.PathPrefix, "/"); p != "" {
		r = root.PathPrefix(p).Subrouter()
	}
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	root.Use(logging.RequestID(opts.Logger))
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		root.Use(withRateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}

	admin := func(next http.HandlerFunc) http.Handler {
		if len(opts.AdminAPIKeys) == 0 {
			return next
		}
		return withAPIKeyAuth(next, opts.AdminAPIKeys)
	}

	r.HandleFunc("/healthz", h.healthCheck).Methods(http.MethodGet)
	if hub != nil {
		r.Handle("/ws", wsadapter.Handler(hub, opts.Logger))
	}
	r.HandleFunc("/addresses", h.submit).Methods(http.MethodPost)
	r.Handle("/addresses", admin(h.list)).Methods(http.MethodGet)
	r.Handle("/addresses/stats", admin(h.stats)).Methods(http.MethodGet)
	r.Handle("/addresses/export.csv", admin(h.exportCSV)).Methods(http.MethodGet)
	if h.analytics != nil {
		r.Handle("/analytics", admin(h.summary)).Methods(http.MethodGet)
	}

	var out http.Handler = root
	if len(opts.CORSOrigins) > 0 {
		out = cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
		}).Handler(out)
	}
	return out
}

type submitResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    submittedData `json:"data"`
}

type submittedData struct {
	ID            int64  `json:"id"`
	WalletAddress string `json:"wallet_address"`
	NFTLevel      int    `json:"nft_level"`
	NFTName       string `json:"nft_name"`
	SubmittedAt   string `json:"submitted_at"`
}

// user-facing messages for validation failures
var clientErrors = map[error]string{
	claims.ErrMissingFields:  "Wallet address and NFT level are required",
	claims.ErrInvalidAddress: "Invalid EVM wallet address format",
	claims.ErrInvalidLevel:   "Invalid NFT level",
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var sub claims.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	sub.UserAgent = r.UserAgent()
	sub.IPAddress = clientIP(r)

	a, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		for target, msg := range clientErrors {
			if errors.Is(err, target) {
				writeError(w, http.StatusBadRequest, msg, nil)
				return
			}
		}
		if errors.Is(err, claims.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Address already submitted for this NFT level", nil)
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success: true,
		Message: "NFT claim submitted successfully for " + a.NFTName,
		Data: submittedData{
			ID:            a.ID,
			WalletAddress: a.WalletAddress,
			NFTLevel:      a.NFTLevel,
			NFTName:       a.NFTName,
			SubmittedAt:   a.SubmittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	})
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type listResponse struct {
	Success    bool             `json:"success"`
	Data       []claims.Address `json:"data"`
	Pagination pagination       `json:"pagination"`
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	f, bad := parseFilter(r)
	if bad != "" {
		writeError(w, http.StatusBadRequest, "Invalid "+bad+" parameter", nil)
		return
	}
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    page.Items,
		Pagination: pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

// parseFilter returns the name of the first malformed numeric parameter, if any.
func parseFilter(r *http.Request) (claims.ListFilter, string) {
	q := r.URL.Query()
	var f claims.ListFilter
	for name, dst := range map[string]*int{"level": &f.Level, "limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, name
		}
		*dst = n
	}
	f.Address = q.Get("address")
	return f, ""
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": st})
}

// summary aggregates bus events for the period containing date (default today).
func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := analytics.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period parameter", nil)
		return
	}
	at := h.now()
	if raw := q.Get("date"); raw != "" {
		if at, err = time.Parse(time.DateOnly, raw); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date parameter", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.analytics.Summarize(period, at)})
}

// healthCheck verifies the claim store is reachable.
func (h *handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			code = http.StatusServiceUnavailable
			status["status"] = "unhealthy"
			status["checks"] = map[string]any{"storage": "failed"}
		}
	}
	writeJSON(w, code, status)
}

func (h *handler) logFailure(r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logFailure(r, err)
	var details any
	if h.debug {
		details = err.Error()
	}
	writeError(w, http.StatusInternalServerError, "Internal server error", details)
}

// clientIP is the first X-Forwarded-For hop, else the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, apiError{Error: msg, Details: details})
}
