package quoteform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/southernunderground/quoteform/libs/shared/httpx"
)

var errEmptyBody = errors.New("request body is empty")

// IdempotencyHeader lets clients pin the client reference of a submit call.
const IdempotencyHeader = "Idempotency-Key"

// SubmissionCoordinator exposes queued submissions to HTTP clients.
type SubmissionCoordinator interface {
	Lookup(ctx context.Context, id string) (*QuoteSubmission, error)
	Metrics(ctx context.Context) (SubmissionMetrics, error)
}

// Handler exposes form sessions over HTTP.
type Handler struct {
	sessions    *SessionManager
	coordinator SubmissionCoordinator
	log         *zap.Logger
}

// HandlerOption customises the handler behaviour.
type HandlerOption func(*Handler)

// WithSubmissionCoordinator attaches the queued submission lookups to the handler.
func WithSubmissionCoordinator(coordinator SubmissionCoordinator) HandlerOption {
	return func(h *Handler) {
		h.coordinator = coordinator
	}
}

// WithHandlerLogger sets the logger used for server-side failures.
func WithHandlerLogger(log *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHandler builds a handler over the given session manager.
func NewHandler(sessions *SessionManager, opts ...HandlerOption) *Handler {
	handler := &Handler{sessions: sessions, log: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Mount registers the routes on the provided router under the supplied base path.
func (h *Handler) Mount(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/quote-sessions"
	}

	router.Route(path, func(r chi.Router) {
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)

		r.Get("/catalog", h.catalog)
		r.Post("/", h.createSession)

		if h.coordinator != nil {
			r.Route("/submissions", func(r chi.Router) {
				r.Get("/metrics", h.queueMetrics)
				r.Get("/{id}", h.getSubmission)
			})
		}

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.closeSession)
			r.Put("/fields/{name}", h.setField)
			r.Patch("/fields", h.setFields)
			r.Post("/submit", h.submit)
			r.Post("/reset", h.reset)
		})
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpx.Error(w, http.StatusNotFound, "route not found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}

type fieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

type setFieldRequest struct {
	Value *string `json:"value"`
}

func (h *Handler) catalog(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"data": Catalog()})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var payload fieldsRequest
	if err := decodeOptionalJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.Create(payload.Fields)
	if err != nil {
		h.writeFieldError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{"data": sessionDTO(session, session.Controller().State())})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sessionDTO(session, session.Controller().State())})
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setField(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload setFieldRequest
	if err := decodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Value == nil {
		httpx.Error(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := session.Controller().SetField(chi.URLParam(r, "name"), *payload.Value); err != nil {
		h.writeFieldError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sessionDTO(session, session.Controller().State())})
}

func (h *Handler) setFields(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload fieldsRequest
	if err := decodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(payload.Fields) == 0 {
		httpx.Error(w, http.StatusBadRequest, "no fields provided")
		return
	}

	if err := session.Controller().SetFields(payload.Fields); err != nil {
		h.writeFieldError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sessionDTO(session, session.Controller().State())})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctrl := session.Controller()

	ref := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if ref == "" {
		ref = session.ID() + ":" + strconv.FormatUint(ctrl.Store().Revision(), 10)
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	results := ctrl.Submit(WithClientReference(r.Context(), ref))

	var outcome Outcome
	select {
	case outcome = <-results:
	default:
		if !wait {
			httpx.JSON(w, http.StatusAccepted, map[string]any{"data": sessionDTO(session, ctrl.State())})
			return
		}
		select {
		case outcome = <-results:
		case <-r.Context().Done():
			return
		}
	}

	h.writeOutcome(w, session, outcome)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, session *Session, outcome Outcome) {
	snap := session.Controller().State()
	switch {
	case errors.Is(outcome.Err, ErrSessionClosed):
		httpx.Error(w, http.StatusNotFound, "session not found")
	case len(outcome.Errors) > 0:
		httpx.ErrorWithDetails(w, http.StatusUnprocessableEntity, "validation failed", "fields", outcome.Errors)
	case outcome.Duplicate:
		dto := sessionDTO(session, snap)
		dto["duplicate"] = true
		httpx.JSON(w, http.StatusOK, map[string]any{"data": dto})
	case outcome.Status == Error:
		message := "submission failed"
		var serr *SubmissionError
		if errors.As(outcome.Err, &serr) {
			message = serr.Message()
		}
		httpx.ErrorWithDetails(w, http.StatusBadGateway, message, "data", sessionDTO(session, snap))
	default:
		httpx.JSON(w, http.StatusOK, map[string]any{"data": sessionDTO(session, snap)})
	}
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := session.Controller().Reset(); err != nil {
		switch {
		case errors.Is(err, ErrSubmitting):
			httpx.Error(w, http.StatusConflict, "submission in progress")
		case errors.Is(err, ErrSessionClosed):
			httpx.Error(w, http.StatusNotFound, "session not found")
		default:
			h.internalError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sessionDTO(session, session.Controller().State())})
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	submission, err := h.coordinator.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if IsNotFound(err) {
			httpx.Error(w, http.StatusNotFound, "submission not found")
			return
		}
		h.internalError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"data": submission.ToDTO()})
}

func (h *Handler) queueMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.coordinator.Metrics(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"data": metrics})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

func (h *Handler) writeFieldError(w http.ResponseWriter, err error) {
	var unknown *UnknownFieldError
	if errors.As(err, &unknown) {
		httpx.ErrorWithDetails(w, http.StatusBadRequest, err.Error(), "fields", []string{unknown.Name})
		return
	}
	h.internalError(w, err)
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.log.Error("quote session request failed", zap.Error(err))
	httpx.Error(w, http.StatusInternalServerError, err.Error())
}

func sessionDTO(session *Session, snap Snapshot) map[string]any {
	dto := map[string]any{
		"id":        session.ID(),
		"status":    snap.Status,
		"fields":    snap.Record,
		"errors":    snap.Errors,
		"revision":  snap.Revision,
		"createdAt": session.CreatedAt(),
	}
	if snap.Errors == nil {
		dto["errors"] = []FieldError{}
	}
	if snap.LastError != nil {
		dto["lastError"] = map[string]any{
			"message":  snap.LastError.Message(),
			"detail":   snap.LastError.Error(),
			"attempts": snap.LastError.Attempts,
		}
	}
	if snap.Ack != nil {
		dto["ack"] = snap.Ack
	}
	return dto
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that treats an empty body as "{}".
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, errEmptyBody) {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
