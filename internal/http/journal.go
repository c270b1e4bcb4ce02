package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/service"
)

func (h *Handler) listJournal(c *gin.Context) {
	operationID, err := optionalID(c.Query("operation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid operation_id"))
		return
	}
	assignmentID, err := optionalID(c.Query("assignment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid assignment_id"))
		return
	}

	entries, err := h.journalService.List(c.Request.Context(), service.JournalListOptions{
		OperationID:  operationID,
		AssignmentID: assignmentID,
		EntryType:    c.Query("entry_type"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": entries}))
}

func (h *Handler) createJournalEntry(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req struct {
		OperationID  string `json:"operation_id"`
		AssignmentID string `json:"assignment_id"`
		EntryType    string `json:"entry_type"`
		Content      string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	operationID, err := optionalID(req.OperationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid operation_id"))
		return
	}
	assignmentID, err := optionalID(req.AssignmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid assignment_id"))
		return
	}

	entry, err := h.journalService.Append(c.Request.Context(), p, service.AppendJournalInput{
		OperationID:  operationID,
		AssignmentID: assignmentID,
		EntryType:    req.EntryType,
		Content:      req.Content,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(entry))
}

func (h *Handler) updateJournalEntry(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "journal entry")
	if !ok {
		return
	}

	var req struct {
		EntryType *string `json:"entry_type"`
		Content   *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	entry, err := h.journalService.Update(c.Request.Context(), p, id, service.UpdateJournalInput{
		EntryType: req.EntryType,
		Content:   req.Content,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(entry))
}

func (h *Handler) deleteJournalEntry(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "journal entry")
	if !ok {
		return
	}

	if err := h.journalService.Delete(c.Request.Context(), p, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "deleted"}))
}
