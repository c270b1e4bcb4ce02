package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listSettings(c *gin.Context) {
	settings, err := h.settingsService.All(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(settings))
}

func (h *Handler) getSetting(c *gin.Context) {
	setting, err := h.settingsService.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(setting))
}

func (h *Handler) upsertSettings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	settings, err := h.settingsService.Upsert(c.Request.Context(), p, req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(settings))
}
