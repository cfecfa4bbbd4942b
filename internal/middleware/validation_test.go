package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "loanrecovery/internal/errors"
)

type sampleBody struct {
	Rows int    `json:"rows" validate:"min=10,max=100000"`
	File string `json:"file,omitempty" validate:"omitempty,upload_ext"`
}

func newTestValidator() *Validator {
	return NewValidator(nil, apierrors.NewErrorHandler(nil, false))
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := newTestValidator()

	assert.NoError(t, v.ValidateStruct(&sampleBody{Rows: 100}))
	assert.NoError(t, v.ValidateStruct(&sampleBody{Rows: 100, File: "loans.XLSX"}))

	err := v.ValidateStruct(&sampleBody{Rows: 5, File: "../etc/passwd.csv"})
	require.Error(t, err)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	details := apiErr.Details.(apierrors.ValidationErrors)
	require.Len(t, details.Errors, 2)
	assert.Equal(t, "rows", details.Errors[0].Field)
	assert.Equal(t, "rows must be at least 10", details.Errors[0].Message)
	assert.Equal(t, "file must be a .csv or .xlsx file", details.Errors[1].Message)
}

func TestValidator_DecodeJSON(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantRows int
		wantCode int
	}{
		{"valid", `{"rows":250}`, true, 250, 0},
		{"empty body keeps defaults", ``, true, 100, 0},
		{"too few rows", `{"rows":3}`, false, 0, http.StatusBadRequest},
		{"malformed", `{"rows":`, false, 0, http.StatusBadRequest},
		{"unknown field", `{"rows":100,"seed":1}`, false, 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := sampleBody{Rows: 100}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			ok := v.DecodeJSON(rec, req, &body)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRows, body.Rows)
				return
			}
			assert.Equal(t, tt.wantCode, rec.Code)
			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, apierrors.TypeValidation, problem["type"])
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	q := NewQueryParamValidator(apierrors.NewErrorHandler(nil, false))

	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 20, true},
		{"limit=5", 5, true},
		{"limit=0", 0, false},
		{"limit=abc", 0, false},
		{"limit=5000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := q.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil), "limit", 1, 1000, 20)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	v, ok := q.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=pdf", nil), "format", []string{"csv", "xlsx"}, "csv")
	assert.False(t, ok)
	assert.Empty(t, v)
}
