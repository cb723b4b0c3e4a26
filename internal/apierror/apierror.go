// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Code is a stable machine-readable kind (stock_insuficiente, transicion_invalida, ...).
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
	// Reintentable tells the client the same request may succeed if repeated.
	Reintentable bool `json:"reintentable,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithCode builds an error carrying a machine-readable kind.
func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// StockError is returned on 409 stock conflicts so clients can show which line failed.
type StockError struct {
	Detail     string `json:"detail"`
	Code       string `json:"code"`
	ProductoID string `json:"producto_id"`
	Producto   string `json:"producto"`
	Disponible int    `json:"disponible"`
	Solicitado int    `json:"solicitado"`
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
