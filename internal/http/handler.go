package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/http/middleware"
	"dispatch-service/internal/model"
	"dispatch-service/internal/service"
)

type Handler struct {
	operationService  *service.OperationService
	assignmentService *service.AssignmentService
	journalService    *service.JournalService
	fleetService      *service.FleetService
	settingsService   *service.SettingsService
	maxUploadBytes    int64
	log               zerolog.Logger
}

func NewHandler(
	operationService *service.OperationService,
	assignmentService *service.AssignmentService,
	journalService *service.JournalService,
	fleetService *service.FleetService,
	settingsService *service.SettingsService,
	maxUploadBytes int64,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		operationService:  operationService,
		assignmentService: assignmentService,
		journalService:    journalService,
		fleetService:      fleetService,
		settingsService:   settingsService,
		maxUploadBytes:    maxUploadBytes,
		log:               log,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

// principal aborts with 401 when the auth middleware did not run.
func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
	}
	return p, ok
}

func pathID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(param)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid "+what+" id"))
		return uuid.Nil, false
	}
	return id, true
}

// optionalID parses an optional uuid; an empty value yields nil.
func optionalID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
