package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"xdao.co/trustchain/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var e *domain.Error
		if errors.As(err, &e) {
			return e
		}
		return domain.WrapError(domain.CodeMalformedReport, fmt.Sprintf("decode request: %v", err), err)
	}
	return nil
}

// statusFor maps an error to its HTTP status by Kind. Not-found style state
// errors get 404.
func statusFor(err error) int {
	var e *domain.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case domain.CodeUnknownProduct, domain.CodeNotRegistered, domain.CodeEvidenceNotFound:
		return http.StatusNotFound
	}
	switch e.Kind {
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindState:
		return http.StatusConflict
	case domain.KindResource:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Code: string(domain.CodeOf(err)), Kind: string(domain.KindInternal), Message: err.Error()}
	var e *domain.Error
	if errors.As(err, &e) {
		body.Kind = string(e.Kind)
	}
	if body.Code == "" {
		body.Code = "INTERNAL"
	}
	if status == http.StatusInternalServerError {
		if h.logger != nil {
			h.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		}
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}
