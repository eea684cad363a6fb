package render

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()

	var envelope ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&envelope), "response should be an error envelope")
	return envelope
}

func TestRender_JSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		data := map[string]any{"key1": 1, "key2": "222"}
		JSON(w, data)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"key1":1,"key2":"222"}`+"\n", string(body))
}

func TestRender_ServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		message := "something terrible happened"
		ServiceError(w, r, message, http.StatusForbidden)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	envelope := decodeEnvelope(t, resp.Body)
	assert.Equal(t, "/test", envelope.Path)
	assert.Equal(t, "something terrible happened", envelope.Error)
	assert.Equal(t, http.StatusForbidden, envelope.Status)
	assert.WithinDuration(t, time.Now().UTC(), envelope.Timestamp, time.Minute)
	assert.Empty(t, envelope.Fields)
}

func TestRender_DecodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := struct {
			Key     string `json:"key"`
			Retries int    `json:"retries"`
		}{}

		err := json.NewDecoder(r.Body).Decode(&value)
		require.Error(t, err, "Please check what JSON was sent. Test expected that it is invalid")
		DecodeError(w, r, err)
	}))
	defer ts.Close()

	tests := []struct {
		name        string
		requestBody string
		expected    string
	}{
		{
			name:        "json parsing error",
			requestBody: `invalid-json`,
			expected:    "Failed to parse JSON: invalid character 'i' looking for beginning of value",
		},
		{
			name:        "invalid type ok",
			requestBody: `{"key": "valid_json", "retries": "but incorrect type"}`,
			expected:    "Invalid data type for field 'retries'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(tc.requestBody))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			defer resp.Body.Close() //nolint:errcheck

			envelope := decodeEnvelope(t, resp.Body)
			assert.Equal(t, "/test", envelope.Path)
			assert.Equal(t, tc.expected, envelope.Error)
			assert.Equal(t, http.StatusBadRequest, envelope.Status)
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	validate := validator.New()

	type T struct {
		Username string `validate:"required"`
		Password string `validate:"min=6"`
		Email    string `validate:"email"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invalidData := T{
			Password: "123",
			Email:    "not-valid-email",
		}

		err := validate.Struct(invalidData)
		require.Error(t, err, "test expects that data not pass validation")
		errs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "be sure you pass structure to validator")
		ValidationErrors(w, r, errs)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	defer resp.Body.Close() //nolint:errcheck

	envelope := decodeEnvelope(t, resp.Body)
	assert.Equal(t, "Request validation failed", envelope.Error)
	assert.Equal(t, map[string]string{
		"Username": "This field is required",         // Message for 'required' tag
		"Password": "Value is too short (minimum 6)", // Message for 'min' validation tag
		"Email":    "Must be a valid email address",  // Message for 'email' tag
	}, envelope.Fields)
}

func TestRender_BindAndValidate(t *testing.T) {
	type User struct {
		Username string `json:"username" validate:"required"`
	}

	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedError  string
		expectedFields map[string]string
	}{
		{
			name:           "valid request",
			requestBody:    `{"username": "john"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid json",
			requestBody:    `invalid-json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Failed to parse JSON: invalid character 'i' looking for beginning of value",
		},
		{
			name:           "validation failed",
			requestBody:    `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Request validation failed",
			expectedFields: map[string]string{"username": "This field is required"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, err := BindAndValidate[User](w, r)
				if err != nil {
					return // Error response already written
				}
				// Success case
				JSON(w, map[string]bool{"success": true})
			}))
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(tc.requestBody))
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			defer resp.Body.Close() //nolint:errcheck

			if tc.expectedStatus == http.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, `{"success": true}`, string(body))
				return
			}

			envelope := decodeEnvelope(t, resp.Body)
			assert.Equal(t, tc.expectedError, envelope.Error)
			assert.Equal(t, tc.expectedFields, envelope.Fields)
		})
	}
}
