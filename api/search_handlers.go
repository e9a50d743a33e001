package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SearchHandler runs a query against the open index.
// A malformed query is a 400 with code INVALID_QUERY.
func (api *API) SearchHandler(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, "Invalid request body: "+err.Error())
		return
	}
	if result := ValidateSearchRequest(&req); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	results, err := api.index.Search(req.Query, req.Limit, req.Offset)
	if err != nil {
		var validationErr *indexerrors.ValidationError
		if errors.As(err, &validationErr) {
			SendError(c, http.StatusBadRequest, ErrorCodeInvalidQuery, validationErr.Message,
				ErrorDetail{Field: validationErr.Field, Message: validationErr.Message, Code: "VALIDATION_ERROR"})
			return
		}
		SendIndexError(c, "search", err)
		return
	}

	c.JSON(http.StatusOK, results)
}
