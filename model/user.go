package model

import (
	"time"

	"gorm.io/gorm"
)

// Exercise is the single exercise descriptor inside a lifestyle record.
type Exercise struct {
	Type      string `json:"type"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Lifestyle captures smoking/alcohol flags, dietary tags, and the
// user's exercise habits. Stored as a JSON column on the user row.
type Lifestyle struct {
	Smoking  bool     `json:"smoking"`
	Alcohol  bool     `json:"alcohol"`
	Diet     []string `json:"diet"`
	Exercise Exercise `json:"exercise"`
}

// EmergencyContact is a person to notify in a medical emergency.
type EmergencyContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// User represents an account together with its health profile.
// Password and salt are never serialized to JSON.
type User struct {
	gorm.Model
	Username     string `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Password     string `json:"-" gorm:"not null"`
	PasswordSalt string `json:"-"`

	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`

	BloodType      string             `json:"blood_type"`
	MedicalHistory []string           `json:"medical_history" gorm:"serializer:json"`
	FamilyHistory  []string           `json:"family_history" gorm:"serializer:json"`
	Lifestyle      Lifestyle          `json:"lifestyle" gorm:"serializer:json"`
	Contacts       []EmergencyContact `json:"emergency_contacts" gorm:"serializer:json;column:emergency_contacts"`

	OrganDonor  bool `json:"organ_donor"`
	DataSharing bool `json:"data_sharing"`

	FailedAttempts int    `json:"-"`
	LockedUntil    *int64 `json:"-"`
}

// ApplyDefaultProfile fills the clinical and lifestyle fields a freshly
// registered user starts with. Slices are set to empty (not nil) so the
// serialized profile is stable from the first read.
func (u *User) ApplyDefaultProfile() {
	if u.MedicalHistory == nil {
		u.MedicalHistory = []string{}
	}
	if u.FamilyHistory == nil {
		u.FamilyHistory = []string{}
	}
	if u.Lifestyle.Diet == nil {
		u.Lifestyle.Diet = []string{}
	}
	if u.Contacts == nil {
		u.Contacts = []EmergencyContact{}
	}
}
