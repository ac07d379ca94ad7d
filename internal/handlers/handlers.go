package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/store"
)

const (
	msgMissingImage    = "Missing image data."
	msgDecodeFailed    = "Unable to decode image."
	msgPredictFailed   = "Prediction failed."
	msgTooLarge        = "Image too large."
	defaultHistorySize = 20
	maxHistorySize     = 200
)

// Predictor is the decision path the handlers call once per request.
type Predictor interface {
	PredictBytes(data []byte) (model.Prediction, error)
}

// History records served predictions. It is optional.
type History interface {
	Save(ctx context.Context, source string, p model.Prediction) (store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Counts(ctx context.Context) (map[int]int, error)
}

type Handler struct {
	predictor Predictor
	history   History
	logger    *zap.SugaredLogger
	backend   string
	maxBody   int64
	upgrader  websocket.Upgrader
}

// Options configure a Handler.
type Options struct {
	Backend     string
	MaxUploadMB int64
	History     History
}

func NewHandler(predictor Predictor, opts Options, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	maxBody := opts.MaxUploadMB << 20
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Handler{
		predictor: predictor,
		history:   opts.History,
		logger:    logger,
		backend:   opts.Backend,
		maxBody:   maxBody,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// failure maps a prediction error to the status and message a user sees.
// Anything but a decode problem is logged and reported generically.
func (h *Handler) failure(r *http.Request, err error) (int, string) {
	var de *preprocess.DecodeError
	switch {
	case errors.Is(err, errMissingImage):
		return http.StatusBadRequest, msgMissingImage
	case errors.As(err, &de):
		h.logger.Infow("rejected image", "path", r.URL.Path, "reason", err)
		return http.StatusBadRequest, msgDecodeFailed
	default:
		h.logger.Errorw("prediction error", "path", r.URL.Path, "error", err)
		return http.StatusInternalServerError, msgPredictFailed
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *Handler) record(ctx context.Context, source string, p model.Prediction) {
	if h.history == nil {
		return
	}
	if _, err := h.history.Save(ctx, source, p); err != nil {
		h.logger.Warnw("failed to record prediction", "error", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "backend": h.backend})
}

// Predict serves {"image": "data:image/png;base64,..."}.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body.")
		return
	}

	result, err := h.predictDataURI(body)
	if err != nil {
		status, msg := h.failure(r, err)
		writeError(w, status, msg)
		return
	}

	h.record(r.Context(), "json", result)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) predictDataURI(body []byte) (model.Prediction, error) {
	uri, err := imageField(body)
	if err != nil {
		return model.Prediction{}, err
	}
	data, err := DecodeDataURI(uri)
	if err != nil {
		return model.Prediction{}, err
	}
	return h.predictor.PredictBytes(data)
}

// PredictFromImage serves a multipart upload in the "image" field.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form.")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided. Use 'image' as the form field name.")
		return
	}
	defer file.Close()

	h.logger.Debugw("received file", "name", header.Filename, "size", header.Size)

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file.")
		return
	}

	result, err := h.predictor.PredictBytes(data)
	if err != nil {
		status, msg := h.failure(r, err)
		writeError(w, status, msg)
		return
	}

	h.record(r.Context(), "upload", result)
	writeJSON(w, http.StatusOK, result)
}

// RecentPredictions lists the newest history records, ?limit=N.
func (h *Handler) RecentPredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "History is disabled.")
		return
	}

	limit := defaultHistorySize
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = min(n, maxHistorySize)
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Errorw("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "History unavailable.")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type historyStats struct {
	Total  int         `json:"total"`
	Counts map[int]int `json:"counts"`
}

// HistoryStats reports how often each digit has been predicted.
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "History is disabled.")
		return
	}

	counts, err := h.history.Counts(r.Context())
	if err != nil {
		h.logger.Errorw("history count failed", "error", err)
		writeError(w, http.StatusInternalServerError, "History unavailable.")
		return
	}
	stats := historyStats{Counts: counts}
	for _, n := range counts {
		stats.Total += n
	}
	writeJSON(w, http.StatusOK, stats)
}
