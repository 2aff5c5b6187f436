package http

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/sagarc03/blobkeep"
)

// Service is the blob store the handler serves.
type Service interface {
	Put(ctx context.Context, key string, content io.Reader) (blobkeep.BlobInfo, bool, error)
	Get(ctx context.Context, key string) (blobkeep.BlobInfo, io.ReadSeekCloser, error)
	Stat(ctx context.Context, key string) (blobkeep.BlobInfo, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) iter.Seq2[string, error]
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	// MaxUploadSize caps the PUT body in bytes. 0 means no limit.
	MaxUploadSize int64
	// RateLimit is the sustained requests per second allowed. 0 disables limiting.
	RateLimit float64
	// RateBurst is the token bucket size used with RateLimit.
	RateBurst int
	// Compress enables gzip for responses when the client accepts it.
	Compress bool
	// Version is reported by GET /.
	Version string
	// Ready is pinged by GET /ready. Nil means always ready.
	Ready Pinger
	CORS  CORSConfig
}

// readyTimeout bounds a readiness check.
const readyTimeout = 5 * time.Second

// Handler provides HTTP handlers for blob operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with all routes and middleware configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	if h.config.RateLimit > 0 {
		burst := max(1, h.config.RateBurst)
		r.Use(RateLimit(rate.NewLimiter(rate.Limit(h.config.RateLimit), burst)))
	}

	if h.config.Compress {
		r.Use(func(next http.Handler) http.Handler {
			return gzhttp.GzipHandler(next)
		})
	}

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/", h.handleInfo)
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/blobs", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{key}", h.handleGet)
		r.Head("/{key}", h.handleHead)
		r.With(LimitBody(h.config.MaxUploadSize)).Put("/{key}", h.handlePut)
		r.Delete("/{key}", h.handleDelete)

		r.Put("/", h.handleInvalidKey)
		r.Delete("/", h.handleInvalidKey)

		// keys never contain a separator
		r.HandleFunc("/*", h.handleInvalidKey)
	})

	return r
}

// keyParam returns the validated key of the request, or writes a 400 and
// returns false. chi routes on RawPath when it is set, so only then is the param still
// escaped. Path is already decoded and must not be decoded again.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid key")
			return "", false
		}
		key = unescaped
	}

	if err := blobkeep.ValidateKey(key); err != nil {
		HandleError(w, r, err)
		return "", false
	}

	return key, true
}

// VersionHeader carries BlobInfo.Version. It is absent for blobs the
// metadata index does not know yet.
const VersionHeader = "X-Blob-Version"

func setVersionHeaders(w http.ResponseWriter, info blobkeep.BlobInfo) {
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	if info.Version > 0 {
		w.Header().Set(VersionHeader, strconv.FormatInt(info.Version, 10))
	}
}

func setBlobHeaders(w http.ResponseWriter, info blobkeep.BlobInfo) {
	setVersionHeaders(w, info)
	w.Header().Set("Content-Type", "application/octet-stream")
}

func (h *Handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, ServiceInfo{
		Name:    "blobkeep",
		Version: h.config.Version,
		Endpoints: map[string]string{
			"put":    "PUT /blobs/{key}",
			"get":    "GET /blobs/{key}",
			"stat":   "HEAD /blobs/{key}",
			"delete": "DELETE /blobs/{key}",
			"list":   "GET /blobs",
			"health": "GET /health",
			"ready":  "GET /ready",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.config.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := h.config.Ready.Ping(ctx); err != nil {
			logger(r).Warn("readiness check failed", "err", err)
			WriteError(w, http.StatusServiceUnavailable, "storage_unavailable", "Metadata index unavailable")
			return
		}
	}

	_ = WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	keys := []string{}
	for key, err := range h.service.List(r.Context()) {
		if err != nil {
			HandleError(w, r, err)
			return
		}
		keys = append(keys, key)
	}

	_ = WriteJSON(w, http.StatusOK, keys)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	info, content, err := h.service.Get(r.Context(), key)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	defer func() { _ = content.Close() }()

	setBlobHeaders(w, info)

	http.ServeContent(w, r, key, info.ModifiedAt, content)
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	info, err := h.service.Stat(r.Context(), key)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	setBlobHeaders(w, info)
	w.Header().Set("Last-Modified", info.ModifiedAt.UTC().Format(http.TimeFormat))

	if notModified(r, info) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
}

// notModified evaluates If-None-Match and, when absent, If-Modified-Since.
func notModified(r *http.Request, info blobkeep.BlobInfo) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		for tag := range strings.SplitSeq(inm, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" {
				return true
			}
			tag = strings.TrimPrefix(tag, "W/")
			if strings.Trim(tag, `"`) == info.ETag {
				return true
			}
		}
		return false
	}

	ims := r.Header.Get("If-Modified-Since")
	if ims == "" || info.ModifiedAt.IsZero() {
		return false
	}

	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}

	return !info.ModifiedAt.Truncate(time.Second).After(t)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	info, created, err := h.service.Put(r.Context(), key, r.Body)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/blobs/"+key)
	}
	setVersionHeaders(w, info)

	_ = WriteJSON(w, status, info)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), key); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInvalidKey(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid key")
}
