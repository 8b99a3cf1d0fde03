package endpoint

import (
	"encoding/json"
	"fmt"

	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type CreateHealthLogRequest struct {
	Category string          `json:"category" binding:"required" example:"lifestyle"`
	Data     json.RawMessage `json:"data" binding:"required"`
}

// CreateHealthLog godoc
// @Summary      Create a health log
// @Description  Append a categorized health log for the caller. The server assigns id and timestamp; the owner is always the session user.
// @Tags         HealthLogs
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body CreateHealthLogRequest true "Log entry"
// @Success      200 {object} util.APIResponse{data=model.HealthLog} "Health log created"
// @Failure      400 {object} util.APIResponse "Invalid payload or unknown category"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /health-logs [post]
func CreateHealthLog(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	var req CreateHealthLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallValidationError(c, "Invalid health log payload", validationFieldErrors(err))
		return
	}
	if !model.ValidCategory(req.Category) {
		util.CallValidationError(c, "Invalid health log payload", map[string]string{
			"category": fmt.Sprintf("must be one of: %s, %s, %s", model.CategorySymptom, model.CategoryLifestyle, model.CategoryAssessment),
		})
		return
	}

	log := model.HealthLog{UserID: user.ID, Category: req.Category, Data: datatypes.JSON(req.Data)}
	if err := db.Create(&log).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create health log", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Health log created", Data: log})
}

// ListHealthLogs godoc
// @Summary      List health logs
// @Description  Return the caller's health logs, optionally filtered by category
// @Tags         HealthLogs
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        category query string false "Filter by category (symptom, lifestyle, assessment)"
// @Success      200 {object} util.APIResponse{data=[]model.HealthLog} "Health logs retrieved"
// @Failure      400 {object} util.APIResponse "Unknown category"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /health-logs [get]
func ListHealthLogs(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	category := c.Query("category")
	if category != "" && !model.ValidCategory(category) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Unknown health log category", Err: fmt.Errorf("unknown category %q", category)})
		return
	}

	query := db.Where("user_id = ?", user.ID)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var logs []model.HealthLog
	if err := query.Find(&logs).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve health logs", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Health logs retrieved", Data: logs})
}
