package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/iatidata/sector-harvester/internal/repository"
	"github.com/iatidata/sector-harvester/internal/response"
	"github.com/iatidata/sector-harvester/internal/service"
)

// RunHandler exposes recorded harvest summaries.
type RunHandler struct {
	runService *service.RunService
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runService *service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

// GetLatestRun godoc
// GET /api/v1/runs/latest
func (h *RunHandler) GetLatestRun(c *gin.Context) {
	summary, err := h.runService.Latest(c.Request.Context())
	h.respond(c, summary, err)
}

// GetRun godoc
// GET /api/v1/runs/:run_id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	summary, err := h.runService.Get(c.Request.Context(), runID.String())
	h.respond(c, summary, err)
}

var runErrors = []response.ErrorMapping{
	{Target: service.ErrRunStatusDisabled, Status: http.StatusNotFound, Code: response.ErrRunStatusOff},
	{Target: repository.ErrRunNotFound, Status: http.StatusNotFound, Code: response.ErrRunNotRecorded},
}

func (h *RunHandler) respond(c *gin.Context, summary *model.RunSummary, err error) {
	if err != nil {
		response.FailFor(c, err, runErrors...)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"run": summary})
}
