package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/germed/backend/internal/model"
	"github.com/germed/backend/internal/service"
)

type DocumentHandler struct {
	svc *service.DocumentService
}

func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// CreateDocument godoc
// @Summary Ingest a document for retrieval
// @Tags documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.DocumentRequest true "Document payload"
// @Success 200 {object} model.DocumentResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /v1/documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req model.DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "content is required"})
		return
	}

	id, embedModel, err := h.svc.CreateDocument(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
		return
	}

	c.JSON(http.StatusOK, model.DocumentResponse{Status: "success", DocumentID: id, Model: embedModel})
}
