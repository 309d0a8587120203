package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const defaultSuccessMessage = "request has been successfully"

type errorResponse struct {
	Message string            `json:"message"`
	Error   map[string]any `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Optional interfaces a handler's response value may implement.
type (
	statusCoder interface{ StatusCode() int }
	messenger   interface{ Message() string }
	metaer      interface{ Meta() map[string]any }
	// retryAfter is implemented by errors that tell the client when to retry.
	retryAfter interface{ RetryAfterSeconds() int }
)

// writeError renders err as an errorResponse. Anything that is not a
// *goerror.Error is reported as a bare 500.
func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	fields := gerr.Fields()
	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		fields = verr.Values()
	}

	resp := errorResponse{Message: gerr.Msg()}
	if len(fields) > 0 {
		resp.Error = make(map[string]any, len(fields)+1)
		for k, v := range fields {
			resp.Error[k] = v
		}
	}

	var ra retryAfter
	if errors.As(err, &ra) && ra.RetryAfterSeconds() > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(ra.RetryAfterSeconds()))
		if resp.Error == nil {
			resp.Error = map[string]any{}
		}
		resp.Error["retry_after_seconds"] = ra.RetryAfterSeconds()
	}

	writeJSON(w, resp, gerr.StatusCode())
}

func writeSuccess(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body := successResponse{Message: defaultSuccessMessage, Data: resp}
	if m, ok := resp.(messenger); ok {
		body.Message = m.Message()
	}
	if m, ok := resp.(metaer); ok {
		body.Meta = m.Meta()
	}

	writeJSON(w, body, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}
