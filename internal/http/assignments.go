package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/service"
)

type createAssignmentRequest struct {
	OperationID     string   `json:"operation_id"`
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	LocationAddress string   `json:"location_address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

func (h *Handler) listAssignments(c *gin.Context) {
	operationID, err := optionalID(c.Query("operation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid operation_id"))
		return
	}
	assignments, err := h.assignmentService.List(c.Request.Context(), operationID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": assignments}))
}

func (h *Handler) getAssignment(c *gin.Context) {
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}
	assignment, err := h.assignmentService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

// createAssignment serves both the console and the external API key route.
func (h *Handler) createAssignment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	operationID, err := optionalID(req.OperationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid operation_id"))
		return
	}

	assignment, err := h.assignmentService.Create(c.Request.Context(), p, service.CreateAssignmentInput{
		OperationID:     operationID,
		Title:           req.Title,
		Description:     req.Description,
		LocationAddress: req.LocationAddress,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if p.IsExternal() {
		h.log.Info().Str("assignment", assignment.Number).Msg("assignment created via external api")
	}
	c.JSON(http.StatusCreated, successResponse(assignment))
}

func (h *Handler) updateAssignment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}

	var req struct {
		Title           *string  `json:"title"`
		Description     *string  `json:"description"`
		LocationAddress *string  `json:"location_address"`
		Latitude        *float64 `json:"latitude"`
		Longitude       *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	assignment, err := h.assignmentService.Update(c.Request.Context(), p, id, service.UpdateAssignmentInput{
		Title:           req.Title,
		Description:     req.Description,
		LocationAddress: req.LocationAddress,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) completeAssignment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.Complete(c.Request.Context(), p, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) assignVehicle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}

	var req struct {
		VehicleID string `json:"vehicle_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	vehicleID, err := optionalID(req.VehicleID)
	if err != nil || vehicleID == nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid vehicle_id"))
		return
	}

	assignment, err := h.assignmentService.AssignVehicle(c.Request.Context(), p, id, *vehicleID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) unassignVehicle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}
	vehicleID, ok := pathID(c, "vehicleId", "vehicle")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.UnassignVehicle(c.Request.Context(), p, id, vehicleID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) uploadDocument(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read uploaded file"))
		return
	}
	defer file.Close()

	assignment, err := h.assignmentService.AttachDocument(c.Request.Context(), p, id, header.Filename, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(assignment))
}

func (h *Handler) downloadDocument(c *gin.Context) {
	id, ok := pathID(c, "id", "assignment")
	if !ok {
		return
	}

	rc, name, err := h.assignmentService.OpenDocument(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", name),
	})
}
