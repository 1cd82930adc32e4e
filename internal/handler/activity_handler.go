package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iatidata/sector-harvester/internal/repository"
	"github.com/iatidata/sector-harvester/internal/response"
	"github.com/iatidata/sector-harvester/internal/service"
	"github.com/iatidata/sector-harvester/internal/validator"
)

const defaultPerPage = 100

// ActivityHandler serves harvested activities.
type ActivityHandler struct {
	activityService *service.ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// ListActivitiesQuery holds the pagination parameters of ListActivities.
type ListActivitiesQuery struct {
	Page    int `form:"page" json:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" json:"per_page" binding:"omitempty,min=1,max=1000"`
}

// ListActivities godoc
// GET /api/v1/activities
// Lists stored activity identifiers, paginated.
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	var q ListActivitiesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = defaultPerPage
	}

	page, err := h.activityService.List(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		response.FailFor(c, err)
		return
	}

	response.Paginated(c, gin.H{"activities": page.Identifiers}, q.Page, q.PerPage, page.Total)
}

// GetActivity godoc
// GET /api/v1/activities/:identifier
// Returns one stored activity. Identifiers containing "/" must be percent-encoded.
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	identifier := strings.TrimSpace(c.Param("identifier"))
	if identifier == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stored, err := h.activityService.Get(c.Request.Context(), identifier)
	if err != nil {
		response.FailFor(c, err, response.ErrorMapping{
			Target: repository.ErrActivityNotFound, Status: http.StatusNotFound, Code: response.ErrNotFound,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"iati_identifier": stored.IATIIdentifier,
		"updated_at":      stored.UpdatedAt,
		"activity":        json.RawMessage(stored.Activity),
	})
}
