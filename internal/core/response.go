package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"parkwatch/internal/types"
)

// maxRequestBodySize bounds POST bodies. The forecast request, the largest
// body the API accepts, is one integer field.
const maxRequestBodySize = 64 << 10

// APIResponse is the success envelope. Meta is omitted for requests that
// never passed through RequestIDMiddleware.
type APIResponse struct {
	Data any           `json:"data"`
	Meta *ResponseMeta `json:"meta,omitempty"`
}

type ResponseMeta struct {
	RequestID string `json:"request_id"`
}

// APIErrorResponse is the failure envelope.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

func errorEnvelope(code types.ErrorCode, message string, details map[string]any, requestID string) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}}
}

// writeEnvelope encodes v before touching the header, so an unencodable
// payload still turns into a 500 envelope.
func writeEnvelope(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorEnvelope(
			types.ErrCodeInternalUnexpected,
			"failed to encode response",
			nil,
			w.Header().Get("X-Request-Id"),
		))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Data writes data in the success envelope.
func Data(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := APIResponse{Data: data}
	if id := types.GetRequestID(r.Context()); id != "" {
		resp.Meta = &ResponseMeta{RequestID: id}
	}
	writeEnvelope(w, status, resp)
}

// Error renders err as a failure envelope. AppErrors pick the status from
// their code; anything else is a 500 whose message never reaches the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := errorEnvelope(types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil, types.GetRequestID(r.Context()))

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		resp.Error.Code = string(appErr.Code)
		resp.Error.Message = appErr.Message
		resp.Error.Details = appErr.Details
	}

	writeEnvelope(w, status, resp)
}

// DecodeJSON reads exactly one JSON object into dst, rejecting unknown
// fields. Every failure is validation_invalid_json and keeps the decoder
// error wrapped, so callers can still test for io.EOF.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must hold a single JSON object", nil)
	}
	return nil
}

func bodyError(err error) *types.AppError {
	var (
		tooLarge *http.MaxBytesError
		badType  *json.UnmarshalTypeError
		details  map[string]any
	)

	msg := "malformed JSON in request body"
	switch {
	case errors.As(err, &tooLarge):
		msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.As(err, &badType):
		msg = "invalid value for " + badType.Field
		details = map[string]any{"field": badType.Field, "expected": badType.Type.String()}
	case errors.Is(err, io.EOF):
		msg = "request body is empty"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		msg = "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	}

	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, msg, err, details)
}
