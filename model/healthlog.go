package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Health log categories. Each category owns the shape of the Data blob.
const (
	CategorySymptom    = "symptom"
	CategoryLifestyle  = "lifestyle"
	CategoryAssessment = "assessment"
)

// ValidCategory reports whether the given tag is a known health log category.
func ValidCategory(category string) bool {
	switch category {
	case CategorySymptom, CategoryLifestyle, CategoryAssessment:
		return true
	}
	return false
}

// HealthLog is an append-only, categorized event record owned by a user.
// Data is an opaque JSON document; its shape is determined by Category,
// not by the storage layer. Logs are never updated once created.
type HealthLog struct {
	gorm.Model
	UserID   uint           `json:"user_id" gorm:"index;not null"`
	Category string         `json:"category" gorm:"column:category;size:32;index;not null"`
	Data     datatypes.JSON `json:"data" gorm:"column:data;type:json"`
}
