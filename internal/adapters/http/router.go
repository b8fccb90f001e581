package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/observability/metrics"
)

const (
	metricsService     = "api"
	maxAskBodyBytes    = 1 << 20
	multipartMemoryCap = 32 << 20
)

type Router struct {
	cfg      config.Config
	ingestor ports.DocumentIngestor
	answerer ports.QuestionAnswerer
	reader   ports.DocumentReader
	storage  ports.ObjectStorage

	metrics *metrics.HTTPServerMetrics
	mcp     http.Handler
	health  func() []string
	api     *apiDescription
}

func NewRouter(
	cfg config.Config,
	ingestor ports.DocumentIngestor,
	answerer ports.QuestionAnswerer,
	reader ports.DocumentReader,
	storage ports.ObjectStorage,
) *Router {
	api, err := loadAPIDescription()
	if err != nil {
		// The document is embedded at build time, so this only fires on a broken build.
		panic(err)
	}
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		answerer: answerer,
		reader:   reader,
		storage:  storage,
		api:      api,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

// WithMCP mounts a Model Context Protocol handler under /mcp.
func (rt *Router) WithMCP(h http.Handler) *Router {
	rt.mcp = h
	return rt
}

// WithHealth reports names of degraded dependencies on /healthz.
func (rt *Router) WithHealth(openCircuits func() []string) *Router {
	rt.health = openCircuits
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	index, static := webUI()
	mux.HandleFunc("GET /{$}", index)
	mux.Handle("GET /static/", static)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	mux.HandleFunc("GET /documents", rt.listDocuments)
	mux.HandleFunc("GET /documents/{id}", rt.getDocument)
	mux.HandleFunc("POST /ingest", rt.ingest)
	mux.HandleFunc("POST /ask", rt.ask)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	if rt.mcp != nil {
		mux.Handle("/mcp", rt.mcp)
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(metricsService, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.recordRejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(metricsService, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	open := []string{}
	if rt.health != nil {
		if names := rt.health(); len(names) > 0 {
			status = "degraded"
			open = names
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "open_circuits": open})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.api.json)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := rt.reader.ListDocuments(r.Context())
	if err != nil {
		slog.Error("list_documents_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, mapErrorToHTTPStatus(err), "could not list documents")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	record, err := rt.reader.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type ingestResponse struct {
	Success           string   `json:"success"`
	IngestedDocuments []string `json:"ingested_documents"`
}

// ingest indexes uploaded files in order. A failing file stops the request;
// files indexed before it stay indexed.
func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(rt.cfg.MaxUploadMB)<<20)
	}
	if err := r.ParseMultipartForm(multipartMemoryCap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB", rt.cfg.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "No files selected")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 || files[0].Filename == "" {
		writeError(w, http.StatusBadRequest, "No files selected")
		return
	}

	ingested := make([]string, 0, len(files))
	for _, fh := range files {
		if !strings.HasSuffix(fh.Filename, ".pdf") {
			rt.recordIngest(len(ingested), errInvalidFileType)
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid file type: %s", fh.Filename))
			return
		}

		documentID, err := rt.ingestOne(r, fh)
		if err != nil {
			rt.recordIngest(len(ingested), err)
			slog.Error("ingest_failed",
				"request_id", requestIDFromContext(r.Context()),
				"filename", fh.Filename,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing %s: %v", fh.Filename, err))
			return
		}
		ingested = append(ingested, documentID)
	}

	rt.recordIngest(len(ingested), nil)
	writeJSON(w, http.StatusOK, ingestResponse{
		Success:           fmt.Sprintf("Successfully ingested %d documents.", len(ingested)),
		IngestedDocuments: ingested,
	})
}

var errInvalidFileType = errors.New("invalid file type")

// ingestOne stages the upload, indexes it and always removes the staged copy.
func (rt *Router) ingestOne(r *http.Request, fh *multipart.FileHeader) (string, error) {
	ctx := r.Context()

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	key := uuid.NewString() + ".pdf"
	if err := rt.storage.Save(ctx, key, file); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if err := rt.storage.Remove(ctx, key); err != nil {
			slog.Warn("staged_upload_remove_failed", "key", key, "error", err)
		}
	}()

	return rt.ingestor.IngestFile(ctx, fh.Filename, rt.storage.Path(key))
}

func (rt *Router) recordIngest(files int, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordIngest(metricsService, "ingest", files, err)
	}
}

type askRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids"`
}

type sourceMetadata struct {
	PageNumber int    `json:"page_number"`
	Source     string `json:"source"`
}

type sourceDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    sourceMetadata `json:"metadata"`
}

type askResponse struct {
	Answer            string           `json:"answer"`
	Sources           []sourceDocument `json:"sources"`
	FollowUpQuestions []string         `json:"followup_questions"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := rt.decodeAskRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "No question provided.")
		return
	}
	if len(req.DocumentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No documents selected.")
		return
	}

	answer, err := rt.answerer.Ask(r.Context(), req.Question, req.DocumentIDs)
	if err != nil {
		slog.Error("ask_failed",
			"request_id", requestIDFromContext(r.Context()),
			"document_ids", req.DocumentIDs,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "An error occurred while processing your question.")
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(metricsService, "ask", len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, toAskResponse(answer))
}

func (rt *Router) decodeAskRequest(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAskBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return askRequest{}, false
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return askRequest{}, false
	}
	if err := rt.api.validateAskBody(generic); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return askRequest{}, false
	}

	var req askRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return askRequest{}, false
	}
	return req, true
}

func toAskResponse(answer *domain.Answer) askResponse {
	sources := make([]sourceDocument, 0, len(answer.Sources))
	for _, s := range answer.Sources {
		sources = append(sources, sourceDocument{
			PageContent: s.Chunk.Text,
			Metadata: sourceMetadata{
				PageNumber: s.Chunk.PageNumber,
				Source:     s.Source,
			},
		})
	}
	followUps := answer.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}
	return askResponse{
		Answer:            answer.Text,
		Sources:           sources,
		FollowUpQuestions: followUps,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
