/*
Package resp is the JSON envelope shared by the HTTP API and its clients.

Every API response is {code, message, data}: code 0 with the payload on success, an
errs code with its message otherwise. Handlers write it with the Respond helpers; the
client adapters read it back with Decode, which turns a non-zero code into the same
*errs.CustomError the server started from.
*/
package resp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/wire"
)

const successMessage = "success"

// Envelope is the response body of every API call.
type Envelope struct {
	// Code is 0 on success, an errs code otherwise.
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(response)
}

func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, Envelope{Code: 0, Message: successMessage, Data: data})
}

// RespondError writes customErr; nil is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}
	if customErr.Status >= http.StatusInternalServerError {
		logx.Warn("Request failed with internal error",
			"code", customErr.Code,
			"path", r.URL.Path,
		)
	}

	RespondJSON(w, r, customErr.Status, Envelope{Code: customErr.Code, Message: customErr.Message})
}

// Fail writes any error, mapping errors that are not *errs.CustomError to ErrUnknown.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	RespondError(w, r, errs.From(err))
}

// RespondDoc writes a point read: doc nil means the document does not exist.
func RespondDoc(w http.ResponseWriter, r *http.Request, doc *wire.Document) {
	RespondSuccess(w, r, wire.DocResult{Exists: doc != nil, Doc: doc})
}

// RespondDocs writes a query result. An empty result is sent as [] rather than null.
func RespondDocs(w http.ResponseWriter, r *http.Request, docs []wire.Document) {
	if docs == nil {
		docs = []wire.Document{}
	}
	RespondSuccess(w, r, wire.QueryResult{Docs: docs})
}

// Decode reads an envelope from body and unmarshals its data into out (which may be
// nil). status is the HTTP status the body came with.
func Decode(body io.Reader, status int, out any) error {
	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	}
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return fmt.Errorf("status %d: decode envelope: %w", status, err)
	}

	if env.Code != 0 {
		return &errs.CustomError{Code: env.Code, Message: env.Message, Status: status}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
