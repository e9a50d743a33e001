package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/source"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// DocumentRequest is the body of PUT /documents/*docId.
// ContentHash is computed from Text when omitted.
type DocumentRequest struct {
	Text        string `json:"text"`
	ContentHash string `json:"content_hash,omitempty"`
}

// docIDParam strips the leading slash of a wildcard document route.
func docIDParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("docId"), "/")
}

// AnalyzeHandler tokenizes text with the index settings without indexing it.
func (api *API) AnalyzeHandler(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"terms": api.index.IndexTextStandalone(req.Text)})
}

// PutDocumentHandler indexes or re-indexes one document.
// Returns 200 with updated=false when the content hash is unchanged.
func (api *API) PutDocumentHandler(c *gin.Context) {
	docID := docIDParam(c)
	if result := ValidateDocumentID(docID); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	hash := req.ContentHash
	if hash == "" {
		hash = source.HashContent([]byte(req.Text))
	}

	result, err := api.index.IndexIncremental(docID, req.Text, hash)
	if err != nil {
		// The update is searchable even though persisting it failed
		if errors.Is(err, indexerrors.ErrPersistence) && result.Updated {
			api.logger.Error("Document indexed but not persisted", "doc_id", docID, "error", err)
		}
		SendIndexError(c, "index document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doc_id":       docID,
		"updated":      result.Updated,
		"term_count":   result.TermCount,
		"content_hash": hash,
	})
}

// GetDocumentHandler returns the metadata of one document.
func (api *API) GetDocumentHandler(c *gin.Context) {
	docID := docIDParam(c)
	if result := ValidateDocumentID(docID); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	info, ok, err := api.index.Document(docID)
	if err != nil {
		SendIndexError(c, "get document", err)
		return
	}
	if !ok {
		SendDocumentNotFoundError(c, docID)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteDocumentHandler removes one document. Removing an unknown document
// succeeds with removed=false.
func (api *API) DeleteDocumentHandler(c *gin.Context) {
	docID := docIDParam(c)
	if result := ValidateDocumentID(docID); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	result, err := api.index.RemoveIndexedDoc(docID)
	if err != nil {
		SendIndexError(c, "remove document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "removed": result.Removed})
}

// ListDocumentsHandler lists document IDs in ascending order.
// Query parameters: offset (default 0), limit (default 100, max 1000).
func (api *API) ListDocumentsHandler(c *gin.Context) {
	validation := &ValidationResult{Valid: true}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		validation.AddError("offset", "Offset must be a non-negative integer")
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		validation.AddError("limit", "Limit must be between 1 and 1000")
	}
	if validation.HasErrors() {
		SendStructuredValidationError(c, validation)
		return
	}

	ids, err := api.index.DocumentIDs()
	if err != nil {
		SendIndexError(c, "list documents", err)
		return
	}

	total := len(ids)
	page := []string{}
	if offset < total {
		page = ids[offset:min(offset+limit, total)]
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": page,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}
