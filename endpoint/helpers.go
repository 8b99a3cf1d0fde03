package endpoint

import (
	"fmt"

	"github.com/carelens-app/carelens/ai"
	"github.com/carelens-app/carelens/middleware"
	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var aiClient *ai.Client

// SetAIClient wires the analysis client used by the symptom and risk
// endpoints. Called once during startup; tests inject a stubbed client.
func SetAIClient(c *ai.Client) {
	aiClient = c
}

func aiClientOrRespond(c *gin.Context) (*ai.Client, bool) {
	if aiClient == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Analysis service not available", Err: fmt.Errorf("ai client is nil")})
		return nil, false
	}
	return aiClient, true
}

// currentUserOrRespond loads the session user's record, responding with 401
// when unauthenticated and 404/500 on lookup failures.
func currentUserOrRespond(c *gin.Context, db *gorm.DB) (*model.User, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "User not authenticated", Err: fmt.Errorf("user id not found in context")})
		return nil, false
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: err})
			return nil, false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve user", Err: err})
		return nil, false
	}
	return &user, true
}
