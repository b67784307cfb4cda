package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

type errorResponse struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps domain errors onto status codes. Anything unrecognized is
// a 500 with a generic body.
func writeError(w http.ResponseWriter, lg *logger.Logger, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		fields := make(map[string]string, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request", Errors: fields})
	case errors.Is(err, errMalformedBody):
		writeDetail(w, http.StatusBadRequest, "malformed request body")
	case errors.Is(err, model.ErrUnauthenticated):
		writeDetail(w, http.StatusUnauthorized, "authentication credentials were not provided")
	case errors.Is(err, model.ErrReplayDetected),
		errors.Is(err, model.ErrAuthentication):
		writeDetail(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, model.ErrRateLimited):
		writeDetail(w, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, model.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrAlreadyRegistered):
		writeDetail(w, http.StatusBadRequest, "identifier or email already registered")
	case errors.Is(err, model.ErrVerificationInvalid):
		writeDetail(w, http.StatusBadRequest, model.ErrVerificationInvalid.Error())
	case errors.Is(err, model.ErrVerificationExpired):
		writeDetail(w, http.StatusBadRequest, model.ErrVerificationExpired.Error())
	case errors.Is(err, model.ErrVerificationConsumed):
		writeDetail(w, http.StatusBadRequest, model.ErrVerificationConsumed.Error())
	case errors.Is(err, model.ErrSecretTooLong):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Detail: "invalid request",
			Errors: map[string]string{"password": model.ErrSecretTooLong.Error()},
		})
	case errors.Is(err, model.ErrWrongSecret):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Detail: "invalid request",
			Errors: map[string]string{"old_password": model.ErrWrongSecret.Error()},
		})
	case model.IsConfigurationError(err):
		lg.Error("HTTP handler: configuration error", "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	default:
		lg.Error("HTTP handler: unexpected error", "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "eqfield":
		return "passwords do not match"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	case "strongpassword":
		return "must mix at least three of lowercase, uppercase, digits and symbols"
	default:
		return "invalid value"
	}
}
