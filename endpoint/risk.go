package endpoint

import (
	"encoding/json"
	"fmt"

	"github.com/carelens-app/carelens/ai"
	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// assessmentPayload is the data blob stored on an assessment health log.
type assessmentPayload struct {
	Version    int                `json:"version"`
	Assessment *ai.RiskAssessment `json:"assessment"`
}

// AssessRisks godoc
// @Summary      Assess health risks
// @Description  Run an AI risk assessment over the caller's full profile, persist it as an assessment health log, and return it
// @Tags         Risks
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=ai.RiskAssessment} "Assessment complete"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Assessment failed"
// @Router       /risks/assess [post]
func AssessRisks(c *gin.Context) {
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

	util.LogAnalysisRequested(user.ID, "risk", c.ClientIP(), 1)

	assessment, err := client.AssessHealthRisks(c.Request.Context(), user)
	if err != nil {
		util.LogAnalysisFailed(user.ID, "risk", c.ClientIP(), err)
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to assess health risks", Err: fmt.Errorf("assessment failed")})
		return
	}

	payload, err := json.Marshal(assessmentPayload{Version: 1, Assessment: assessment})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to encode assessment", Err: err})
		return
	}

	log := model.HealthLog{UserID: user.ID, Category: model.CategoryAssessment, Data: datatypes.JSON(payload)}
	if err := db.Create(&log).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to record assessment", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Assessment complete", Data: assessment})
}
