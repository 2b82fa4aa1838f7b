package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
)

// MaxBodyBytes caps request bodies read by ValidateJSON.
const MaxBodyBytes = 4 << 20

type bodyKey struct{}

// Middleware provides validation middleware for HTTP handlers
type Middleware struct {
	config *ValidationConfig
}

// NewMiddleware creates a new validation middleware
func NewMiddleware(config *ValidationConfig) *Middleware {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &Middleware{config: config}
}

// ValidateJSON decodes the request body into a new value of structType's
// type, validates it and hands it to next through the request context.
// Handlers read it back with Body.
func (m *Middleware) ValidateJSON(structType interface{}) func(http.Handler) http.Handler {
	typ := reflect.TypeOf(structType)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			val := reflect.New(typ).Interface()

			decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(val); err != nil {
				m.writeErrorResponse(w, http.StatusBadRequest, ValidationErrors{{
					Field:   "request_body",
					Message: fmt.Sprintf("invalid JSON: %v", err),
				}})
				return
			}

			if err := ValidateWithConfig(val, m.config); err != nil {
				if errs, ok := err.(ValidationErrors); ok {
					m.writeErrorResponse(w, http.StatusBadRequest, errs)
					return
				}
				m.writeErrorResponse(w, http.StatusInternalServerError, ValidationErrors{{
					Field:   "validation",
					Message: "validation failed",
				}})
				return
			}

			ctx := context.WithValue(r.Context(), bodyKey{}, val)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Body returns the value decoded by ValidateJSON.
func Body[T any](r *http.Request) (*T, bool) {
	v, ok := r.Context().Value(bodyKey{}).(*T)
	return v, ok
}

// ValidateQueryParams validates URL query parameters. Rules are required,
// numeric, node_id and thread_id.
func (m *Middleware) ValidateQueryParams(paramRules map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			var errs ValidationErrors

			for param, rule := range paramRules {
				value := query.Get(param)
				if msg := checkParam(rule, value); msg != "" {
					errs = append(errs, ValidationError{Field: param, Value: value, Message: msg})
				}
			}

			if len(errs) > 0 {
				m.writeErrorResponse(w, http.StatusBadRequest, errs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkParam(rule, value string) string {
	switch rule {
	case "required":
		if value == "" {
			return "parameter is required"
		}
	case "numeric":
		if value != "" {
			if n, err := strconv.Atoi(value); err != nil || n < 0 {
				return "must be a non-negative integer"
			}
		}
	case "node_id":
		if value != "" && !nodeIDPattern.MatchString(value) {
			return "must be a valid node identifier"
		}
	case "thread_id":
		if value != "" && !threadIDPattern.MatchString(value) {
			return "must be a valid thread identifier"
		}
	}
	return ""
}

// writeErrorResponse writes validation errors as JSON response
func (m *Middleware) writeErrorResponse(w http.ResponseWriter, statusCode int, errs ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, err := MarshalValidationErrors(errs)
	if err != nil {
		w.Write([]byte(`{"error":"validation failed","message":"internal validation error"}`))
		return
	}
	w.Write(data)
}

// RequestValidator provides fluent API for request validation
type RequestValidator struct {
	middleware *Middleware
	handlers   []func(http.Handler) http.Handler
}

// NewRequestValidator creates a new request validator
func NewRequestValidator(config *ValidationConfig) *RequestValidator {
	return &RequestValidator{middleware: NewMiddleware(config)}
}

// JSON adds JSON body validation
func (rv *RequestValidator) JSON(structType interface{}) *RequestValidator {
	rv.handlers = append(rv.handlers, rv.middleware.ValidateJSON(structType))
	return rv
}

// QueryParams adds query parameter validation
func (rv *RequestValidator) QueryParams(rules map[string]string) *RequestValidator {
	rv.handlers = append(rv.handlers, rv.middleware.ValidateQueryParams(rules))
	return rv
}

// Build creates the final middleware handler
func (rv *RequestValidator) Build() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next
		// Apply middleware in reverse order
		for i := len(rv.handlers) - 1; i >= 0; i-- {
			handler = rv.handlers[i](handler)
		}
		return handler
	}
}
