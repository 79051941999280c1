package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"visamate-backend/generator"
	"visamate-backend/httpx"
	"visamate-backend/middleware"
	"visamate-backend/models"
	"visamate-backend/service"

	"github.com/gin-gonic/gin"
)

// DocumentHandler handles document generation and refinement jobs
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// GenerateDocumentRequest represents the request body for POST /user/documents
type GenerateDocumentRequest struct {
	Kind         models.DocumentKind `json:"kind" binding:"required"`
	Fields       map[string]string   `json:"fields"`
	Refine       bool                `json:"refine"`
	Instructions string              `json:"instructions"`
}

// Generate handles POST /user/documents. With ?download=true the rendered
// text is returned as an attachment instead of JSON. Refinement requests
// answer 202 with the job id to poll.
func (h *DocumentHandler) Generate(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req GenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	result, err := h.documents.Generate(c.Request.Context(), service.GenerateRequest{
		UserID:       userID,
		Kind:         req.Kind,
		Fields:       req.Fields,
		Refine:       req.Refine,
		Instructions: strings.TrimSpace(req.Instructions),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if result.JobID != nil {
		httpx.OK(c, http.StatusAccepted, gin.H{
			"job_id": result.JobID,
			"status": models.JobStatusPending,
		})
		return
	}

	doc := result.Document
	if download, _ := strconv.ParseBool(c.Query("download")); download {
		c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(doc.Content))
		return
	}
	httpx.OK(c, http.StatusOK, doc)
}

// ListKinds handles GET /user/documents/kinds
func (h *DocumentHandler) ListKinds(c *gin.Context) {
	kinds := []models.DocumentKind{
		models.DocumentCoverLetter,
		models.DocumentRecommendationLetter,
		models.DocumentMockMaterials,
	}
	out := make([]gin.H, 0, len(kinds))
	for _, k := range kinds {
		entry := gin.H{"kind": k, "required_fields": generator.RequiredFields(k)}
		if k == models.DocumentMockMaterials {
			entry["material_types"] = generator.MockMaterialTypes
		}
		out = append(out, entry)
	}
	httpx.OK(c, http.StatusOK, out)
}

// GetJob handles GET /user/jobs/:id
func (h *DocumentHandler) GetJob(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	jobID, ok := parseUUID(c, c.Param("id"), "job id")
	if !ok {
		return
	}

	job, err := h.documents.GetJob(c.Request.Context(), userID, jobID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, job)
}
