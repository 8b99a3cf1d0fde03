package endpoint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carelens-app/carelens/ai"
	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type AnalyzeSymptomsRequest struct {
	Symptoms []string `json:"symptoms" binding:"required" example:"headache,fever"`
}

// symptomPayload is the data blob stored on a symptom health log. Version
// tags the payload shape: version 1 is a bare symptom string list.
type symptomPayload struct {
	Version  int                 `json:"version"`
	Symptoms []string            `json:"symptoms"`
	Analysis *ai.SymptomAnalysis `json:"analysis"`
}

func validateSymptoms(symptoms []string) map[string]string {
	if len(symptoms) == 0 {
		return map[string]string{"symptoms": "at least one symptom is required"}
	}
	for i, s := range symptoms {
		if strings.TrimSpace(s) == "" {
			return map[string]string{"symptoms": fmt.Sprintf("symptom at index %d is blank", i)}
		}
	}
	return nil
}

// AnalyzeSymptoms godoc
// @Summary      Analyze symptoms
// @Description  Send the symptom list with profile context to the AI service, persist the result as a symptom health log, and return the analysis
// @Tags         Symptoms
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body AnalyzeSymptomsRequest true "Symptom list"
// @Success      200 {object} util.APIResponse{data=ai.SymptomAnalysis} "Analysis complete"
// @Failure      400 {object} util.APIResponse "Invalid symptom list"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Analysis failed"
// @Router       /symptoms/analyze [post]
func AnalyzeSymptoms(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	client, ok := aiClientOrRespond(c)
	if !ok {
		return
	}

	var req AnalyzeSymptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallValidationError(c, "Invalid symptom payload", validationFieldErrors(err))
		return
	}
	if fields := validateSymptoms(req.Symptoms); fields != nil {
		util.CallValidationError(c, "Invalid symptom payload", fields)
		return
	}

	util.LogAnalysisRequested(user.ID, "symptom", c.ClientIP(), len(req.Symptoms))

	profileCtx := ai.ProfileContextFromUser(user, time.Now())
	analysis, err := client.AnalyzeSymptoms(c.Request.Context(), req.Symptoms, profileCtx)
	if err != nil {
		// The raw cause stays in the logs; the client gets a generic failure
		// and no health log is written.
		util.LogAnalysisFailed(user.ID, "symptom", c.ClientIP(), err)
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to analyze symptoms", Err: fmt.Errorf("analysis failed")})
		return
	}

	payload, err := json.Marshal(symptomPayload{Version: 1, Symptoms: req.Symptoms, Analysis: analysis})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to encode analysis", Err: err})
		return
	}

	log := model.HealthLog{UserID: user.ID, Category: model.CategorySymptom, Data: datatypes.JSON(payload)}
	if err := db.Create(&log).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to record analysis", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Analysis complete", Data: analysis})
}

// ListSymptomLogs godoc
// @Summary      List symptom history
// @Description  Return the caller's symptom-category health logs
// @Tags         Symptoms
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=[]model.HealthLog} "Symptom logs retrieved"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /symptoms [get]
func ListSymptomLogs(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	var logs []model.HealthLog
	if err := db.Where("user_id = ? AND category = ?", user.ID, model.CategorySymptom).Find(&logs).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve symptom logs", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Symptom logs retrieved", Data: logs})
}

// ClearSymptomLogs godoc
// @Summary      Clear symptom history
// @Description  Bulk-delete the caller's symptom-category health logs
// @Tags         Symptoms
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Symptom logs cleared"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /symptoms [delete]
func ClearSymptomLogs(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	if err := db.Where("user_id = ? AND category = ?", user.ID, model.CategorySymptom).Delete(&model.HealthLog{}).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to clear symptom logs", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Symptom logs cleared"})
}
