package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	configureValidator(validate)
}

type Struct any

// ErrorResponse is the envelope every non-2xx answer carries
// No stack traces, no internal identifiers, just enough for the caller
type ErrorResponse struct {
	Path      string            `json:"path"`
	Error     string            `json:"error"`
	Status    int               `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

// Render a service failure in the common envelope
func ServiceError(w http.ResponseWriter, r *http.Request, message string, code int) {
	jsonWithStatus(w, ErrorResponse{
		Path:      r.URL.Path,
		Error:     message,
		Status:    code,
		Timestamp: time.Now().UTC(),
	}, code)
}

// Render a body decoding failure
func DecodeError(w http.ResponseWriter, r *http.Request, err error) {
	message := fmt.Sprintf("Failed to parse JSON: %s", err.Error())

	// Try to provide more specific error message based on error type
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	}

	jsonWithStatus(w, ErrorResponse{
		Path:      r.URL.Path,
		Error:     message,
		Status:    http.StatusBadRequest,
		Timestamp: time.Now().UTC(),
	}, http.StatusBadRequest)
}

// Render field level validation failures
func ValidationErrors(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Must be a valid email address"
		default:
			message = "Invalid value"
		}

		fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, ErrorResponse{
		Path:      r.URL.Path,
		Error:     "Request validation failed",
		Status:    http.StatusBadRequest,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, r, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, r, errs)
		return value, err
	}

	return value, nil
}

// jsonWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
