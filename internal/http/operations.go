package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/export"
	"dispatch-service/internal/service"
)

func (h *Handler) listOperations(c *gin.Context) {
	operations, err := h.operationService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": operations}))
}

// activeOperation answers with data null when nothing is active.
func (h *Handler) activeOperation(c *gin.Context) {
	operation, err := h.operationService.Active(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(operation))
}

func (h *Handler) getOperation(c *gin.Context) {
	id, ok := pathID(c, "id", "operation")
	if !ok {
		return
	}
	operation, err := h.operationService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(operation))
}

func (h *Handler) createOperation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	operation, err := h.operationService.Create(c.Request.Context(), p, service.CreateOperationInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(operation))
}

func (h *Handler) updateOperation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "operation")
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	operation, err := h.operationService.Update(c.Request.Context(), p, id, service.UpdateOperationInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(operation))
}

func (h *Handler) closeOperation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "operation")
	if !ok {
		return
	}

	operation, err := h.operationService.Close(c.Request.Context(), p, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(operation))
}

func (h *Handler) exportJournal(c *gin.Context) {
	id, ok := pathID(c, "id", "operation")
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", export.FormatPDF)))

	operation, err := h.operationService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	data, err := h.journalService.Export(c.Request.Context(), id, format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("einsatztagebuch_%s.%s", operation.Number, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType(format), data)
}
