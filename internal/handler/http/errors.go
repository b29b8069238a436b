package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httputil"
)

// writeError translates store backend failures into the retryable 503
// envelope before delegating to the shared error writer.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, store.ErrUnavailable) {
		logger.ErrorContext(r.Context(), "state store unavailable",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		err = apperrors.Unavailable("state store is unavailable, please retry")
	}
	httputil.WriteError(w, r, err, logger)
}
