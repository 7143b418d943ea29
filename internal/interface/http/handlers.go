package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webmasters-learning/receipt-desk/internal/application/session"
	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/register"
	"github.com/webmasters-learning/receipt-desk/internal/interface/http/handlers"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
)

const (
	defaultReceiptLimit = 50
	maxReceiptLimit     = 500
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every dependency. A degraded desk still answers
// 200; only a critical outage answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		report := s.deps.HealthChecker.Check(r.Context())
		report.Version = s.config.Version
		code := http.StatusOK
		if report.State == handlers.StateDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":   handlers.StateOK,
		"uptime":  s.Uptime().Round(time.Second).String(),
		"version": s.config.Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		report := s.deps.HealthChecker.Check(r.Context())
		if !report.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": report.Message,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "state": string(report.State)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "state": string(handlers.StateOK)})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, expiresAt, err := s.deps.Auth.Issue(req.APIKey)
	if err != nil {
		s.logger.Warn("token request rejected", logger.String("ip", getClientIP(r)))
		writeDomainError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleOpenSession starts a session and loads the directory. A failed
// directory load still returns the session; the snapshot carries the notice.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Open(r.Context())
	if sess == nil {
		writeDomainError(w, err, nil)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Warn("directory load failed",
			logger.SessionID(sess.ID()), logger.Err(err))
	}

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID())
	writeJSONWithMeta(w, r, http.StatusCreated, sess.Snapshot(), nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, sess.Snapshot(), nil)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	StudentID string `json:"studentId"`
}

func (s *Server) handleSelectStudent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := sess.Select(r.Context(), req.StudentID); err != nil {
		writeDomainError(w, err, sess)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, sess.Snapshot(), nil)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var values map[string]string
	if !decodeJSON(w, r, &values) {
		return
	}

	if err := sess.UpdateFields(values); err != nil {
		writeDomainError(w, err, sess)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, sess.Snapshot(), nil)
}

type validateResponse struct {
	Valid  bool            `json:"valid"`
	Error  string          `json:"error,omitempty"`
	Notice *session.Notice `json:"notice,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	resp := validateResponse{Valid: sess.Validate()}
	if !resp.Valid {
		resp.Notice = sess.Notice()
		if resp.Notice != nil {
			resp.Error = resp.Notice.Message
		}
	}
	writeJSONWithMeta(w, r, http.StatusOK, resp, nil)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	doc, rec, err := sess.Export(r.Context())
	if err != nil {
		writeDomainError(w, err, sess)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("X-Receipt-ID", rec.ID)
	w.Header().Set("X-Receipt-Signed", strconv.FormatBool(doc.Signed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// session resolves the {id} route parameter, writing the error response
// when it does not name a live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, nil)
		return nil, false
	}
	return sess, true
}

// ══════════════════════════════════════════════════════════════════════════════
// RECEIPT ARCHIVE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	limit := getQueryParamInt(r, "limit", defaultReceiptLimit)
	if limit == 0 || limit > maxReceiptLimit {
		limit = maxReceiptLimit
	}
	offset := getQueryParamInt(r, "offset", 0)

	records, err := s.deps.Archive.List(r.Context(), receipt.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.internalError(w, r, "list receipts", err)
		return
	}
	total, err := s.deps.Archive.Count(r.Context())
	if err != nil {
		s.internalError(w, r, "count receipts", err)
		return
	}
	if records == nil {
		records = []*receipt.Record{}
	}

	writeJSONWithMeta(w, r, http.StatusOK, records, &ResponseMeta{
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(records) < total,
	})
}

func (s *Server) handleReceiptRegister(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Register.Write(r.Context(), &buf); err != nil {
		s.internalError(w, r, "write receipt register", err)
		return
	}

	w.Header().Set("Content-Type", register.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "receipt-register.xlsx"}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps domain error kinds to HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrExpired):
		return http.StatusGone, "session_expired"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrTooManySessions):
		return http.StatusServiceUnavailable, "too_many_sessions"
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case shared.IsExternalService(err):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError writes err with its mapped status. When sess is given
// the response carries the session's notice.
func writeDomainError(w http.ResponseWriter, err error, sess *session.Session) {
	status, code := statusFor(err)

	apiErr := &APIError{Code: code, Message: errorMessage(err, status)}
	if sess != nil {
		if n := sess.Notice(); n != nil {
			apiErr.Notice = n
			apiErr.Message = n.Message
		}
	}
	writeAPIError(w, status, apiErr)
}

func errorMessage(err error, status int) string {
	var de *shared.DomainError
	if errors.As(err, &de) && status != http.StatusInternalServerError {
		return de.Message
	}
	return http.StatusText(status)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.FromContext(r.Context()).Error(op+" failed", logger.Err(err))
	writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return false
	}
	return true
}
