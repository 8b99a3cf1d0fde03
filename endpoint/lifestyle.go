package endpoint

import (
	"encoding/json"
	"time"

	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// LifestyleEntry is one day of lifestyle monitoring, stored as the data
// blob of a lifestyle health log.
type LifestyleEntry struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02" example:"2026-08-30"`
	Diet struct {
		Meals    []string `json:"meals"`
		Calories int      `json:"calories"`
		Water    int      `json:"water"`
	} `json:"diet"`
	Activity struct {
		Steps    int `json:"steps"`
		Exercise []struct {
			Type     string `json:"type"`
			Duration int    `json:"duration"`
		} `json:"exercise"`
	} `json:"activity"`
	Sleep struct {
		Hours   float64 `json:"hours"`
		Quality int     `json:"quality"`
	} `json:"sleep"`
	Stress int `json:"stress"`
}

func emptyLifestyleEntry(date string) LifestyleEntry {
	var entry LifestyleEntry
	entry.Date = date
	entry.Diet.Meals = []string{}
	return entry
}

// LogLifestyle godoc
// @Summary      Record a lifestyle entry
// @Description  Append a lifestyle health log for the given day
// @Tags         Lifestyle
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body LifestyleEntry true "Lifestyle entry"
// @Success      200 {object} util.APIResponse{data=LifestyleEntry} "Lifestyle entry recorded"
// @Failure      400 {object} util.APIResponse "Invalid payload"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /lifestyle [post]
func LogLifestyle(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	var entry LifestyleEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		util.CallValidationError(c, "Invalid lifestyle payload", validationFieldErrors(err))
		return
	}
	if entry.Diet.Meals == nil {
		entry.Diet.Meals = []string{}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to encode lifestyle entry", Err: err})
		return
	}

	log := model.HealthLog{UserID: user.ID, Category: model.CategoryLifestyle, Data: datatypes.JSON(payload)}
	if err := db.Create(&log).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to record lifestyle entry", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lifestyle entry recorded", Data: entry})
}

// GetLifestyle godoc
// @Summary      Get a day's lifestyle entry
// @Description  Return the caller's most recent lifestyle entry for the given date, or an empty default
// @Tags         Lifestyle
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        date query string false "Day to fetch (YYYY-MM-DD, default today)"
// @Success      200 {object} util.APIResponse{data=LifestyleEntry} "Lifestyle entry retrieved"
// @Failure      400 {object} util.APIResponse "Invalid date"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /lifestyle [get]
func GetLifestyle(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid date", Err: err})
		return
	}

	var logs []model.HealthLog
	err := db.Where("user_id = ? AND category = ?", user.ID, model.CategoryLifestyle).
		Order("id DESC").Find(&logs).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve lifestyle entries", Err: err})
		return
	}

	// Entries for different days share one category; pick the newest entry
	// whose payload date matches.
	for _, log := range logs {
		var entry LifestyleEntry
		if err := json.Unmarshal(log.Data, &entry); err != nil {
			continue
		}
		if entry.Date == date {
			util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lifestyle entry retrieved", Data: entry})
			return
		}
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lifestyle entry retrieved", Data: emptyLifestyleEntry(date)})
}
