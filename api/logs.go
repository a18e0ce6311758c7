package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"hookdeploy/runner"
)

// GetLog serves a deployment log by the relative path handed out in the
// log URL, e.g. /logs/deployment_logs/site/20261014_site.log.
func GetLog(sink *runner.LogSink, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/logs/")

		// Checked before any filesystem access.
		if strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") || strings.ContainsAny(rel, "\\\x00") {
			writeError(w, apiError("invalid log file path", goerrors.CategoryBadInput, http.StatusBadRequest))
			return
		}

		parts := strings.Split(rel, "/")
		if len(parts) < 3 || parts[0] != runner.LogDirName || parts[1] == "" || parts[len(parts)-1] == "" {
			writeError(w, apiError("invalid log file path", goerrors.CategoryNotFound, http.StatusNotFound))
			return
		}

		f, err := sink.Open(rel)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeError(w, apiError("log file not found", goerrors.CategoryNotFound, http.StatusNotFound))
				return
			}
			logger.Error("failed to open log file", "path", rel, "error", err)
			writeError(w, apiWrapError(err, goerrors.CategoryInternal, "failed to open log file", http.StatusInternalServerError))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			writeError(w, apiError("log file not found", goerrors.CategoryNotFound, http.StatusNotFound))
			return
		}

		logger.Debug("serving log file", "path", rel)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}
