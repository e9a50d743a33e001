// Package api exposes the notes index over HTTP.
package api

import (
	"strings"
	"unicode/utf8"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidateDocumentID validates a document ID
func ValidateDocumentID(documentID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if documentID == "" {
		result.AddError("doc_id", "Document ID is required")
		return result
	}

	if strings.TrimSpace(documentID) != documentID {
		result.AddError("doc_id", "Document ID cannot have leading or trailing whitespace")
		return result
	}

	if !utf8.ValidString(documentID) {
		result.AddError("doc_id", "Document ID must be valid UTF-8")
	}

	return result
}

// ValidateStoragePath validates the storage path of a create or open request
func ValidateStoragePath(path string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(path) == "" {
		result.AddError("storage_path", "Storage path is required")
		return result
	}

	if strings.ContainsRune(path, 0) {
		result.AddError("storage_path", "Storage path cannot contain NUL bytes")
	}

	return result
}

// ValidateSearchRequest validates paging parameters of a search request.
// The query string itself is validated by the query parser.
func ValidateSearchRequest(req *SearchRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if req.Limit < 0 {
		result.AddError("limit", "Limit cannot be negative")
	}
	if req.Offset < 0 {
		result.AddError("offset", "Offset cannot be negative")
	}

	return result
}
