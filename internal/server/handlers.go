package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/matzehuels/grapher/pkg/buildinfo"
	"github.com/matzehuels/grapher/pkg/engine"
	"github.com/matzehuels/grapher/pkg/errors"
	"github.com/matzehuels/grapher/pkg/renderer"
)

type renderFunc func(context.Context, renderer.Request) (*renderer.Result, error)

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

type formatsResponse struct {
	Layouts []engine.Layout `json:"layouts"`
	Formats []engine.Format `json:"formats"`
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formatsResponse{
		Layouts: s.runner.Engine.Layouts(),
		Formats: s.runner.Engine.Formats(),
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.serveRender(w, r, s.runner.Render)
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	s.serveRender(w, r, s.runner.RenderWorkflow)
}

func (s *Server) serveRender(w http.ResponseWriter, r *http.Request, render renderFunc) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			err = errors.New(errors.ErrCodeTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
		} else {
			err = errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body")
		}
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	var refresh bool
	if v := q.Get("refresh"); v != "" {
		if refresh, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid refresh value %q", v))
			return
		}
	}
	res, err := render(r.Context(), renderer.Request{
		Source:  body,
		Layout:  q.Get("layout"),
		Format:  q.Get("format"),
		Refresh: refresh,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("X-Request-ID", res.ID)
	if len(res.Data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	cacheStatus := "miss"
	if res.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("Content-Type", res.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("render failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch code := errors.GetCode(err); {
	case code == errors.ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.IsInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
