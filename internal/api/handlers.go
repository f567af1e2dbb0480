package api

import (
	"net/http"

	"blockrand/app"
	"blockrand/internal/errors"

	"github.com/gin-gonic/gin"
)

// AssignmentHandler serves the allocation JSON API
type AssignmentHandler struct {
	enrollment *app.EnrollmentService
	balance    *app.BalanceReporter
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(enrollment *app.EnrollmentService, balance *app.BalanceReporter) *AssignmentHandler {
	return &AssignmentHandler{
		enrollment: enrollment,
		balance:    balance,
	}
}

type enrollPayload struct {
	SubjectID  string            `json:"subject_id" binding:"required"`
	Name       string            `json:"name"`
	Gender     string            `json:"gender" binding:"required"`
	Age        *int              `json:"age" binding:"required"`
	Covariates map[string]string `json:"covariates"`
}

type blockSizePayload struct {
	BlockSize *int `json:"block_size" binding:"required"`
}

// CreateAssignment enrolls one subject
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var payload enrollPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": errors.CodeInvalidInput, "details": err.Error()})
		return
	}

	result, err := h.enrollment.Enroll(c.Request.Context(), app.EnrollRequest{
		SubjectID:  payload.SubjectID,
		Name:       payload.Name,
		Gender:     payload.Gender,
		Age:        *payload.Age,
		Covariates: payload.Covariates,
	})
	if err != nil {
		body := errorBody(err)
		// the allocation stands even when it could not be written
		if result != nil {
			body["record"] = result.Record
			body["decision"] = result.Decision
		}
		c.JSON(StatusFor(err), body)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListAssignments returns the full history in enrollment order
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	records := h.enrollment.History()
	c.JSON(http.StatusOK, gin.H{
		"assignments": records,
		"count":       len(records),
	})
}

// GetBalance returns the current balance report
func (h *AssignmentHandler) GetBalance(c *gin.Context) {
	c.JSON(http.StatusOK, h.balance.Report())
}

// GetSettings returns the active allocation settings
func (h *AssignmentHandler) GetSettings(c *gin.Context) {
	engine := h.enrollment.Engine()
	cfg := engine.Config()
	c.JSON(http.StatusOK, gin.H{
		"block_size":    cfg.BlockSize,
		"bias_enabled":  cfg.BiasEnabled,
		"priority_mode": cfg.PriorityMode,
		"groups":        cfg.Groups,
		"strata":        engine.Stratifier().Keys(),
	})
}

// UpdateBlockSize changes the block size for blocks generated from now on
func (h *AssignmentHandler) UpdateBlockSize(c *gin.Context) {
	var payload blockSizePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "code": errors.CodeInvalidInput, "details": err.Error()})
		return
	}

	if err := h.enrollment.SetBlockSize(*payload.BlockSize); err != nil {
		c.JSON(StatusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"block_size": h.enrollment.BlockSize()})
}

// ExportHistory rewrites the spreadsheet mirror
func (h *AssignmentHandler) ExportHistory(c *gin.Context) {
	if err := h.enrollment.Export(c.Request.Context()); err != nil {
		c.JSON(StatusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"exported": len(h.enrollment.History())})
}

// Health reports liveness and the number of recorded assignments
func (h *AssignmentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"assignments": len(h.enrollment.History()),
	})
}

// StatusFor maps application error codes to HTTP status codes
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeConfigInvalid:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error(), "code": errors.GetCode(err)}
}
