// Package testutil holds the request builders and response assertions shared
// by the HTTP handler and router tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRequest builds a bodiless request, e.g. GET /applications?month=2024-03.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest encodes payload as the request body. A nil payload sends no
// body but still declares JSON.
func NewJSONRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err, "encode %s %s payload", method, path)
		body = bytes.NewReader(raw)
	}
	return jsonRequest(method, path, body)
}

// NewRequestWithBody sends raw verbatim, for malformed or hand-written JSON.
func NewRequestWithBody(t *testing.T, method, path string, raw string) *http.Request {
	t.Helper()
	return jsonRequest(method, path, strings.NewReader(raw))
}

func jsonRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithBearer presents token as an edit token in the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// DoRequest serves req in process and returns what was written.
func DoRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ErrorEnvelope is the body every failed request carries.
type ErrorEnvelope struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into), "decode response: %s", rec.Body.String())
}

// UnmarshalResponse decodes the body into a fresh T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	decode(t, rec, out)
	return out
}

// UnmarshalErrorResponse decodes the body as an error envelope.
func UnmarshalErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	decode(t, rec, &env)
	return env
}

func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rec.Code, "status for body %s", rec.Body.String())
}

func AssertStatusOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rec, http.StatusOK)
}

// AssertErrorCode checks the envelope reports failure with the given code.
func AssertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	env := UnmarshalErrorResponse(t, rec)
	assert.False(t, env.Success, "error responses must carry success=false")
	assert.Equal(t, code, env.Error)
}

func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rec, status)
	AssertErrorCode(t, rec, code)
}

// AssertJSONContains compares one top-level field of the body. Numbers decode
// as float64.
func AssertJSONContains(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	fields := map[string]any{}
	decode(t, rec, &fields)
	assert.Equal(t, want, fields[key], "field %q", key)
}

func AssertJSONHasKey(t *testing.T, rec *httptest.ResponseRecorder, key string) {
	t.Helper()
	fields := map[string]any{}
	decode(t, rec, &fields)
	assert.Contains(t, fields, key)
}
