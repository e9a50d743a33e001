package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IndexPathRequest names the snapshot file to create or open.
type IndexPathRequest struct {
	StoragePath string `json:"storage_path"`
}

// CreateIndexHandler starts an empty index at the requested path.
// Request Body: {"storage_path": "..."}
func (api *API) CreateIndexHandler(c *gin.Context) {
	var req IndexPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if result := ValidateStoragePath(req.StoragePath); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	if err := api.index.CreateIndex(req.StoragePath); err != nil {
		SendIndexError(c, "create index", err)
		return
	}

	stats, _ := api.index.Stats()
	c.JSON(http.StatusCreated, gin.H{
		"message": "Index created at '" + stats.StoragePath + "'",
		"stats":   stats,
	})
}

// OpenIndexHandler loads the index at the requested path. A missing or
// corrupt file still opens an empty index; load_status reports which.
func (api *API) OpenIndexHandler(c *gin.Context) {
	var req IndexPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if result := ValidateStoragePath(req.StoragePath); result.HasErrors() {
		SendStructuredValidationError(c, result)
		return
	}

	status, err := api.index.OpenIndex(req.StoragePath)
	if err != nil {
		SendIndexError(c, "open index", err)
		return
	}

	stats, _ := api.index.Stats()
	c.JSON(http.StatusOK, gin.H{
		"load_status": status,
		"stats":       stats,
	})
}

// CloseIndexHandler flushes pending writes and releases the index.
func (api *API) CloseIndexHandler(c *gin.Context) {
	if err := api.index.Close(); err != nil {
		SendIndexError(c, "close index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Index closed"})
}

// ClearIndexHandler removes every document from the open index.
func (api *API) ClearIndexHandler(c *gin.Context) {
	if err := api.index.ClearIndex(); err != nil {
		SendIndexError(c, "clear index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All documents removed"})
}

// GetIndexStatsHandler returns statistics of the open index.
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	stats, err := api.index.Stats()
	if err != nil {
		SendIndexError(c, "get stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SyncHandler reconciles the index with the notes directory.
func (api *API) SyncHandler(c *gin.Context) {
	if api.syncer == nil {
		SendError(c, http.StatusConflict, ErrorCodeIndexState, "No notes root is configured")
		return
	}
	if _, err := api.index.Stats(); err != nil {
		SendIndexError(c, "sync", err)
		return
	}

	report, err := api.syncer.Sync(c.Request.Context())
	if err != nil {
		SendIndexError(c, "sync", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
