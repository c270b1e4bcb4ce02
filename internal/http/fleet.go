package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/service"
)

type locationRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// vehicleRequest uses an empty location_id to detach the vehicle.
type vehicleRequest struct {
	Callsign    *string `json:"callsign"`
	VehicleType *string `json:"vehicle_type"`
	CrewCount   *int    `json:"crew_count"`
	LocationID  *string `json:"location_id"`
	Notes       *string `json:"notes"`
}

func (r vehicleRequest) toInput() (service.VehicleInput, error) {
	input := service.VehicleInput{
		Callsign:    r.Callsign,
		VehicleType: r.VehicleType,
		CrewCount:   r.CrewCount,
		Notes:       r.Notes,
	}
	if r.LocationID != nil {
		if strings.TrimSpace(*r.LocationID) == "" {
			input.ClearLocation = true
			return input, nil
		}
		id, err := optionalID(*r.LocationID)
		if err != nil {
			return input, err
		}
		input.LocationID = id
	}
	return input, nil
}

func (h *Handler) listLocations(c *gin.Context) {
	locations, err := h.fleetService.ListLocations(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": locations}))
}

func (h *Handler) getLocation(c *gin.Context) {
	id, ok := pathID(c, "id", "location")
	if !ok {
		return
	}
	location, err := h.fleetService.GetLocation(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(location))
}

func (h *Handler) createLocation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	location, err := h.fleetService.CreateLocation(c.Request.Context(), p, service.LocationInput{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(location))
}

func (h *Handler) updateLocation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "location")
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	location, err := h.fleetService.UpdateLocation(c.Request.Context(), p, id, service.LocationInput{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(location))
}

func (h *Handler) deleteLocation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "location")
	if !ok {
		return
	}
	if err := h.fleetService.DeleteLocation(c.Request.Context(), p, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "deleted"}))
}

func (h *Handler) listVehicles(c *gin.Context) {
	vehicles, err := h.fleetService.ListVehicles(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": vehicles}))
}

func (h *Handler) vehiclesByLocation(c *gin.Context) {
	groups, err := h.fleetService.VehiclesByLocation(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"items": groups}))
}

func (h *Handler) getVehicle(c *gin.Context) {
	id, ok := pathID(c, "id", "vehicle")
	if !ok {
		return
	}
	vehicle, err := h.fleetService.GetVehicle(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) createVehicle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid location_id"))
		return
	}

	vehicle, err := h.fleetService.CreateVehicle(c.Request.Context(), p, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "vehicle")
	if !ok {
		return
	}
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid location_id"))
		return
	}

	vehicle, err := h.fleetService.UpdateVehicle(c.Request.Context(), p, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(vehicle))
}

func (h *Handler) deleteVehicle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "vehicle")
	if !ok {
		return
	}
	if err := h.fleetService.DeleteVehicle(c.Request.Context(), p, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"status": "deleted"}))
}
