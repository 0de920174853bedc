package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/pkg/httpmiddleware"
)

// errBadJSON marks a request body that failed to decode.
var errBadJSON = errors.New("malformed JSON body")

// statusOf maps the error taxonomy to an HTTP status.
func statusOf(err error) int {
	var (
		validation   *apperr.ValidationError
		notFound     *apperr.NotFoundError
		precondition *apperr.PreconditionError
		forbidden    *auth.ForbiddenError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, errBadJSON):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &precondition):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as the API error body. Server errors are logged and their
// details hidden from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("route", httpmiddleware.Route(r)),
			zap.Error(err),
		)
		msg = "internal error"
	}
	httpmiddleware.WriteError(w, status, msg)
}
