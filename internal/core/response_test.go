package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cropsight/internal/types"
)

func newRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(types.WithRequestID(r.Context(), "req_test"))
}

func TestJSONWritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/v1/fields", "")

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"id": "fld_1"}})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
}

func TestErrorMapsAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/v1/fields/missing", "")

	Error(w, r, types.NewAppError(types.ErrCodeNotFoundField, "field not found", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	var resp APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeNotFoundField) {
		t.Errorf("code = %q, want %s", resp.Error.Code, types.ErrCodeNotFoundField)
	}
	if resp.Error.RequestID != "req_test" {
		t.Errorf("request_id = %q, want req_test", resp.Error.RequestID)
	}
}

func TestErrorHidesGenericErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/v1/fields", "")

	Error(w, r, errors.New("pq: password authentication failed for user postgres"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("internal error detail leaked to the client")
	}
	var resp APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q, want internal_unexpected_error code", resp.Error.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type dto struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"North paddock"}`, ""},
		{"empty body", ``, "must not be empty"},
		{"malformed", `{"name":`, "malformed JSON"},
		{"unknown field", `{"name":"x","extra":1}`, "unknown field"},
		{"two documents", `{"name":"a"}{"name":"b"}`, "single JSON object"},
		{"wrong type", `{"name":42}`, "invalid value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := newRequest(http.MethodPost, "/v1/fields", tc.body)

			var d dto
			err := DecodeJSON(w, r, &d)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tc.wantErr)
			}
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error type = %T, want *types.AppError", err)
			}
			if appErr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", appErr.HTTPStatus())
			}
		})
	}
}
