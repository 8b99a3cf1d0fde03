package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ProfileRequest carries every profile field of a user except identity and
// credentials. Updates are full-replace: the persisted profile becomes
// exactly this payload, never a field-level merge.
type ProfileRequest struct {
	FullName    string `json:"full_name" binding:"required" example:"Alice Smith"`
	DateOfBirth string `json:"date_of_birth" binding:"required,datetime=2006-01-02" example:"1990-04-12"`
	Gender      string `json:"gender" binding:"required" example:"female"`
	Email       string `json:"email" binding:"required,email" example:"alice@example.com"`
	Phone       string `json:"phone" binding:"required" example:"+15551234567"`
	Address     string `json:"address" binding:"required" example:"12 Main St"`

	BloodType      string                   `json:"blood_type" binding:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-" example:"O+"`
	MedicalHistory []string                 `json:"medical_history"`
	FamilyHistory  []string                 `json:"family_history"`
	Lifestyle      model.Lifestyle          `json:"lifestyle"`
	Contacts       []model.EmergencyContact `json:"emergency_contacts"`

	OrganDonor  bool `json:"organ_donor"`
	DataSharing bool `json:"data_sharing"`
}

// validationFieldErrors flattens a binding error into a field -> reason map
// covering every failing field, so clients can render per-field messages.
func validationFieldErrors(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_body"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "required field is missing"
		case "email":
			fields[fe.Field()] = "must be a valid email address"
		case "datetime":
			fields[fe.Field()] = fmt.Sprintf("must be a date in %s format", fe.Param())
		case "oneof":
			fields[fe.Field()] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return fields
}

// GetProfile godoc
// @Summary      Get own profile
// @Description  Return the caller's user record including all profile fields
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=model.User} "Profile retrieved"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /profile [get]
func GetProfile(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile retrieved", Data: user})
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Validate and replace every profile field of the caller's record
// @Tags         Profile
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body ProfileRequest true "Full profile"
// @Success      200 {object} util.APIResponse{data=model.User} "Profile updated"
// @Failure      400 {object} util.APIResponse "Validation failed"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      404 {object} util.APIResponse "User not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /profile [post]
func UpdateProfile(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	user, ok := currentUserOrRespond(c, db)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallValidationError(c, "Invalid profile payload", validationFieldErrors(err))
		return
	}

	// The datetime binding already verified the format.
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		util.CallValidationError(c, "Invalid profile payload", map[string]string{"DateOfBirth": "must be a date in 2006-01-02 format"})
		return
	}

	applyProfile(user, &req, dob)

	if err := db.Save(user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update profile", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile updated", Data: user})
}

// applyProfile overwrites every profile field on the user from the request.
func applyProfile(user *model.User, req *ProfileRequest, dob time.Time) {
	user.FullName = util.NormalizeName(req.FullName)
	user.DateOfBirth = &dob
	user.Gender = req.Gender
	user.Email = req.Email
	user.Phone = req.Phone
	user.Address = req.Address
	user.BloodType = req.BloodType
	user.MedicalHistory = req.MedicalHistory
	user.FamilyHistory = req.FamilyHistory
	user.Lifestyle = req.Lifestyle
	user.Contacts = req.Contacts
	user.OrganDonor = req.OrganDonor
	user.DataSharing = req.DataSharing
	user.ApplyDefaultProfile()
}
