// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the media
// gateway. It exposes the catalog, the upload lifecycle endpoints, upload
// status polling, and delegation to the search and chat backends.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nebula-foundry/media-gateway-go/internal/chat"
	"github.com/nebula-foundry/media-gateway-go/internal/config"
	errordefs "github.com/nebula-foundry/media-gateway-go/internal/errors"
	"github.com/nebula-foundry/media-gateway-go/internal/event"
	"github.com/nebula-foundry/media-gateway-go/internal/metrics"
	"github.com/nebula-foundry/media-gateway-go/internal/model"
	"github.com/nebula-foundry/media-gateway-go/internal/resolver"
	"github.com/nebula-foundry/media-gateway-go/internal/schema"
	"github.com/nebula-foundry/media-gateway-go/internal/search"
	"github.com/nebula-foundry/media-gateway-go/internal/status"
	"github.com/nebula-foundry/media-gateway-go/internal/storage"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

// ContextKeyCorrelationID stores the per-request correlation id.
const ContextKeyCorrelationID ContextKey = "correlationId"

const tracerName = "media-gateway"

// Signer produces time-limited URLs against the object store. Read URLs
// serve catalog playback; upload URLs let clients transfer bytes directly.
type Signer interface {
	resolver.ObjectSigner
	SignedUploadURL(ctx context.Context, bucket, object, contentType string, ttl time.Duration) (string, error)
}

// Mux handles HTTP requests for the media gateway. It owns the dependency
// set shared by all handlers.
type Mux struct {
	mux *http.ServeMux

	s       storage.Store
	p       event.Publisher
	signer  Signer
	res     *resolver.Resolver
	searchc *search.Client // nil when no search backend configured
	chatc   *chat.Client   // nil when no chat backend configured

	validator *schema.Validator
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader

	apiKey             string
	bucket             string
	signedURLTTL       time.Duration
	maxUploadSize      int64
	allowedMimeTypes   []string
	corsAllowedOrigins []string
}

// NewMux creates the gateway's HTTP mux with all endpoints registered.
// Search and chat clients may be nil when the corresponding backend is not
// configured; their endpoints then answer with an upstream error.
func NewMux(s storage.Store, p event.Publisher, signer Signer, searchc *search.Client, chatc *chat.Client, cfg config.Config) (*http.ServeMux, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("schema validator init: %w", err)
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		s:                  s,
		p:                  p,
		signer:             signer,
		res:                resolver.New(signer, cfg.SignedURLTTL, slog.Default()),
		searchc:            searchc,
		chatc:              chatc,
		validator:          validator,
		metrics:            metrics.NewMetrics(),
		apiKey:             cfg.APIKey,
		bucket:             cfg.GCSBucket,
		signedURLTTL:       cfg.SignedURLTTL,
		maxUploadSize:      cfg.MaxUploadSize,
		allowedMimeTypes:   cfg.AllowedMimeTypes,
		corsAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return m.originAllowed(r.Header.Get("Origin")) },
	}

	// Health endpoints are unauthenticated.
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// API endpoints share the middleware chain.
	m.mux.HandleFunc("/api/movies", m.method("GET", m.withMiddleware("/api/movies", m.handleMovies)))
	m.mux.HandleFunc("/api/upload/signed-url", m.method("POST", m.withMiddleware("/api/upload/signed-url", m.handleSignedUploadURL)))
	m.mux.HandleFunc("/api/upload/publish", m.method("POST", m.withMiddleware("/api/upload/publish", m.handlePublish)))
	m.mux.HandleFunc("/api/upload/status/", m.method("GET", m.withMiddleware("/api/upload/status/", m.handleUploadStatus)))
	m.mux.HandleFunc("/api/search", m.method("GET", m.withMiddleware("/api/search", m.handleSearch)))
	m.mux.HandleFunc("/api/chat/ws", m.method("GET", m.withMiddleware("/api/chat/ws", m.handleChatSocket)))

	return m.mux, nil
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && r.Method != http.MethodOptions {
			err := errordefs.New(errordefs.MEDIA_BAD_REQUEST, "method not allowed", "")
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// withMiddleware applies CORS, correlation id, API key auth, and request
// metrics to a handler. The route argument is the registered pattern, used
// as the metrics label so path parameters do not explode cardinality.
func (m *Mux) withMiddleware(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if err := m.checkAPIKey(r); err != nil {
			err.CorrelationID = correlationID
			m.writeErrorDef(rec, err)
			m.observe(r, route, rec.status, start, correlationID, err)
			return
		}

		h(rec, r)
		m.observe(r, route, rec.status, start, correlationID, nil)
	}
}

// checkAPIKey enforces the shared-secret auth contract. When no key is
// configured the check is skipped entirely. The key is accepted from the
// X-API-Key header or the apiKey query parameter.
func (m *Mux) checkAPIKey(r *http.Request) *errordefs.Error {
	if m.apiKey == "" {
		return nil
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("apiKey")
	}
	if key != m.apiKey {
		return errordefs.New(errordefs.MEDIA_UNAUTHORIZED, "invalid or missing API key", "")
	}
	return nil
}

// applyCORS sets the response CORS headers when the request origin is
// allowed.
func (m *Mux) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !m.originAllowed(origin) {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Correlation-Id")
		w.Header().Set("Access-Control-Max-Age", "86400")
	}
}

func (m *Mux) originAllowed(origin string) bool {
	if len(m.corsAllowedOrigins) == 0 {
		// No explicit allowlist: same-origin clients only, which never
		// send an Origin header. Websocket upgrades without Origin are
		// accepted.
		return origin == ""
	}
	for _, allowed := range m.corsAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusRecorder captures the response status for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// observe records request metrics and emits the access log line.
func (m *Mux) observe(r *http.Request, route string, status int, start time.Time, correlationID string, err error) {
	duration := time.Since(start)
	m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(duration.Seconds())

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("correlation_id", correlationID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
		return
	}
	slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
}

// writeJSON writes a JSON response body.
func (m *Mux) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorDef writes an error response following the gateway error
// taxonomy.
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	body := map[string]any{
		"error": map[string]any{
			"code":          string(err.Code),
			"message":       err.Message,
			"correlationId": err.CorrelationID,
		},
	}
	if err.Details != nil {
		body["error"].(map[string]any)["details"] = err.Details
	}
	_ = json.NewEncoder(w).Encode(body)
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests. It probes the record
// store; a not-found answer proves the store is reachable.
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, err := m.s.GetMediaRecord(ctx, "health-check")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleMovies handles GET /api/movies. Every record is passed through the
// playback resolver so the response carries directly usable URLs.
func (m *Mux) handleMovies(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleMovies")
	defer span.End()

	opStart := time.Now()
	records, err := m.s.ListMediaRecords(ctx)
	m.observeStorage("list", opStart, err)
	if err != nil {
		span.SetStatus(codes.Error, "list failed")
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_INTERNAL, "failed to load catalog", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_NOT_FOUND, "no media records found", correlationID(ctx)))
		return
	}

	out := make([]model.MediaRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, m.res.Resolve(ctx, rec))
	}
	m.writeJSON(w, http.StatusOK, out)
}

// assetIDSanitizer collapses anything outside [a-z0-9] in a file base name.
var assetIDSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// newAssetID derives an asset id from a file name: lowercase sanitized base
// name joined with a millisecond timestamp for uniqueness.
func newAssetID(fileName string, now time.Time) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	base = assetIDSanitizer.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "asset"
	}
	return fmt.Sprintf("%s-%d", base, now.UnixMilli())
}

// contentTypeAllowed checks an upload content type against the configured
// allowlist. The list is exhaustive; audio formats are only accepted when
// the deployment configures them.
func (m *Mux) contentTypeAllowed(contentType string) bool {
	for _, allowed := range m.allowedMimeTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// handleSignedUploadURL handles POST /api/upload/signed-url. It mints the
// asset id, derives the object key, and signs a write-scoped URL bound to
// the declared content type.
func (m *Mux) handleSignedUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleSignedUploadURL")
	defer span.End()
	defer r.Body.Close()

	var req model.SignedUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	if req.FileName == "" || req.ContentType == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_VALIDATION, "fileName and contentType are required", correlationID(ctx)))
		return
	}
	if !m.contentTypeAllowed(req.ContentType) {
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.MEDIA_VALIDATION, "unsupported content type", correlationID(ctx), map[string]any{
			"contentType": req.ContentType,
			"allowed":     m.allowedMimeTypes,
		}))
		return
	}
	if m.maxUploadSize > 0 && req.Size > m.maxUploadSize {
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.MEDIA_VALIDATION, "file exceeds maximum upload size", correlationID(ctx), map[string]any{
			"size":    req.Size,
			"maxSize": m.maxUploadSize,
		}))
		return
	}

	assetID := newAssetID(req.FileName, time.Now())
	objectKey := "uploads/" + assetID
	if ext := strings.ToLower(path.Ext(req.FileName)); ext != "" {
		objectKey += ext
	}
	span.SetAttributes(
		attribute.String("asset_id", assetID),
		attribute.String("content_type", req.ContentType),
	)

	signStart := time.Now()
	signedURL, err := m.signer.SignedUploadURL(ctx, m.bucket, objectKey, req.ContentType, m.signedURLTTL)
	m.observeSign("upload", signStart, err)
	if err != nil {
		span.SetStatus(codes.Error, "signing failed")
		slog.Error("upload URL signing failed", "error", err, "object", objectKey, "correlation_id", correlationID(ctx))
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_INTERNAL, "failed to create signed upload URL", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, model.SignedUploadResponse{
		SignedURL: signedURL,
		AssetID:   assetID,
		FilePath:  fmt.Sprintf("gs://%s/%s", m.bucket, objectKey),
	})
}

// handlePublish handles POST /api/upload/publish. It builds the ingestion
// message from the upload metadata, validates it against the pipeline
// schema, and publishes it to the queue.
func (m *Mux) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handlePublish")
	defer span.End()
	defer r.Body.Close()

	var req model.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	var missing []string
	if req.AssetID == "" {
		missing = append(missing, "assetId")
	}
	if req.FileName == "" {
		missing = append(missing, "fileName")
	}
	if req.FilePath == "" {
		missing = append(missing, "filePath")
	}
	if req.ContentType == "" {
		missing = append(missing, "contentType")
	}
	if len(missing) > 0 {
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.MEDIA_VALIDATION, "missing required fields", correlationID(ctx), map[string]any{"missing": missing}))
		return
	}

	category := "video"
	if strings.HasPrefix(req.ContentType, "audio/") {
		category = "audio"
	}
	msg := model.IngestionMessage{
		AssetID:      req.AssetID,
		FileLocation: req.FilePath,
		ContentType:  req.ContentType,
		FileCategory: category,
		FileName:     strings.TrimSuffix(req.FileName, path.Ext(req.FileName)),
		Source:       model.SourceGCS,
	}
	if err := m.validator.ValidateIngestion(msg); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_VALIDATION, err.Error(), correlationID(ctx)))
		return
	}
	span.SetAttributes(
		attribute.String("asset_id", req.AssetID),
		attribute.String("file_category", category),
	)

	pubStart := time.Now()
	messageID, err := m.p.PublishIngestion(ctx, msg)
	m.observePublish(category, pubStart, err)
	if err != nil {
		span.SetStatus(codes.Error, "publish failed")
		slog.Error("ingestion publish failed", "error", err, "asset_id", req.AssetID, "correlation_id", correlationID(ctx))
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_INTERNAL, "failed to publish ingestion event", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, model.PublishResponse{Success: true, MessageID: messageID})
}

// handleUploadStatus handles GET /api/upload/status/{assetId}. An asset with
// no backing document yet reports every stage as pending; the pipeline may
// simply not have written the record.
func (m *Mux) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleUploadStatus")
	defer span.End()

	assetID := strings.TrimPrefix(r.URL.Path, "/api/upload/status/")
	if assetID == "" || strings.Contains(assetID, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_BAD_REQUEST, "asset id is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("asset_id", assetID))

	opStart := time.Now()
	rec, err := m.s.GetMediaRecord(ctx, assetID)
	m.observeStorage("get", opStart, err)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		span.SetStatus(codes.Error, "get failed")
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_INTERNAL, "failed to load asset status", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, status.Aggregate(assetID, rec))
}

// handleSearch handles GET /api/search. The query is forwarded verbatim and
// the backend's response body relayed untouched.
func (m *Mux) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "handleSearch")
	defer span.End()

	query := r.URL.Query().Get("q")
	if query == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_BAD_REQUEST, "q is required", correlationID(ctx)))
		return
	}
	if m.searchc == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_UPSTREAM, "search backend not configured", correlationID(ctx)))
		return
	}

	body, err := m.searchc.Search(ctx, query)
	if err != nil {
		span.SetStatus(codes.Error, "search delegation failed")
		slog.Error("search delegation failed", "error", err, "correlation_id", correlationID(ctx))
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_UPSTREAM, "search request failed", correlationID(ctx)))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// socketError is the error frame sent to chat clients. Backend failure
// details stay server-side.
type socketError struct {
	Error string `json:"error"`
}

type socketMessage struct {
	Message string `json:"message"`
}

type socketResponse struct {
	Response string `json:"response"`
}

// handleChatSocket handles GET /api/chat/ws. Auth has already run in the
// middleware, so a rejected key never reaches the upgrade. Each inbound
// frame is one user message; each outbound frame is the backend's answer or
// a generic error.
func (m *Mux) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	if m.chatc == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.MEDIA_UPSTREAM, "chat backend not configured", correlationID(r.Context())))
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Warn("websocket upgrade failed", "error", err, "correlation_id", correlationID(r.Context()))
		return
	}
	defer conn.Close()

	for {
		var in socketMessage
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("chat socket closed unexpectedly", "error", err)
			}
			return
		}
		if in.Message == "" {
			if err := conn.WriteJSON(socketError{Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		answer, err := m.chatc.Send(r.Context(), in.Message)
		if err != nil {
			slog.Error("chat delegation failed", "error", err)
			if err := conn.WriteJSON(socketError{Error: "chat request failed"}); err != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(socketResponse{Response: answer}); err != nil {
			return
		}
	}
}

func (m *Mux) observeStorage(op string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		status = "error"
	}
	m.metrics.StorageOperationTotal.WithLabelValues(op, status).Inc()
	m.metrics.StorageOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func (m *Mux) observeSign(method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.URLSignTotal.WithLabelValues(method, status).Inc()
	m.metrics.URLSignDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
}

func (m *Mux) observePublish(category string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.IngestionPublishTotal.WithLabelValues(category, status).Inc()
	m.metrics.IngestionPublishDuration.WithLabelValues(category, status).Observe(time.Since(start).Seconds())
}
