package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Date string `json:"date"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"date":"2024-02-01"}`},
		{name: "trailing comma", body: `{"date":"2024-02-01",}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"date":"2024-02-01","user_id":"x"}`, wantErr: true},
		{name: "two objects", body: `{"date":"a"}{"date":"b"}`, wantErr: true},
		{name: "too large", body: `{"date":"` + strings.Repeat("x", MaxRequestBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			var got body
			err := DecodeJSON(httptest.NewRecorder(), req, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "2024-02-01", got.Date)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	type request struct {
		Date string `validate:"required,datetime=2006-01-02"`
	}

	assert.NoError(t, ValidateRequest(request{Date: "2024-02-01"}))
	assert.Error(t, ValidateRequest(request{}))
	assert.Error(t, ValidateRequest(request{Date: "01/02/2024"}))
}
