package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"hookdeploy/runner"
	"hookdeploy/signature"
)

const maxWebhookBody = 25 << 20

// webhookPayload is the JSON body sent by the repository host.
type webhookPayload struct {
	ProjectName *string `json:"project_name"`
	ProjectPath *string `json:"project_path"`
}

// Webhook authenticates a push event and starts a deployment for the
// project it names. It answers 202 once the job has been registered.
func Webhook(s *Server, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			s.Metrics.recordWebhook("bad_request")
			writeError(w, apiWrapError(err, goerrors.CategoryBadInput, "failed to read request body", http.StatusBadRequest))
			return
		}

		presented := r.Header.Get(signature.HeaderSHA256)
		if presented == "" {
			presented = r.Header.Get(signature.HeaderSHA1)
		}
		if presented == "" || !s.Verifier.Verify(body, presented) {
			logger.Warn("rejected webhook with invalid signature", "remote", r.RemoteAddr)
			s.Metrics.recordWebhook("forbidden")
			writeError(w, apiError("invalid signature", goerrors.CategoryAuth, http.StatusForbidden))
			return
		}

		var payload webhookPayload
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&payload); err != nil {
			logger.Error("invalid JSON payload", "error", err)
			s.Metrics.recordWebhook("bad_request")
			writeError(w, apiWrapError(err, goerrors.CategoryBadInput, "invalid JSON payload", http.StatusBadRequest))
			return
		}
		if payload.ProjectName == nil || payload.ProjectPath == nil {
			s.Metrics.recordWebhook("bad_request")
			writeError(w, apiError("project_name and project_path are required", goerrors.CategoryBadInput, http.StatusBadRequest))
			return
		}

		project, err := s.Resolver.Resolve(*payload.ProjectName, *payload.ProjectPath)
		if err != nil {
			logger.Warn("rejected webhook payload", "project", *payload.ProjectName, "error", err)
			s.Metrics.recordWebhook("bad_request")
			writeError(w, apiWrapError(err, goerrors.CategoryBadInput, err.Error(), http.StatusBadRequest))
			return
		}

		res, err := s.Service.Trigger(r.Context(), runner.TriggerRequest{
			Project: project,
			BaseURL: s.baseURL(r),
		})
		if err != nil {
			logger.Error("failed to start deployment", "project", project.Name, "error", err)
			if errors.Is(err, runner.ErrTooManyJobs) {
				s.Metrics.recordWebhook("unavailable")
				writeError(w, apiWrapError(err, goerrors.CategoryRateLimit, "too many deployments running", http.StatusServiceUnavailable))
				return
			}
			s.Metrics.recordWebhook("error")
			writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to start deployment", http.StatusInternalServerError))
			return
		}

		s.Metrics.recordWebhook("accepted")
		writeJSON(w, http.StatusAccepted, res)
	}
}

func (s *Server) baseURL(r *http.Request) string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
