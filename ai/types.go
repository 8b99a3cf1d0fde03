package ai

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/carelens-app/carelens/model"
)

// Condition is one potential condition suggested by a symptom analysis.
type Condition struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"` // low | medium | high
}

// SymptomAnalysis is the parsed reply of a symptom analysis. No ordering
// is imposed on Conditions; whatever order the service returns is kept.
type SymptomAnalysis struct {
	Conditions       []Condition `json:"conditions"`
	Recommendations  []string    `json:"recommendations"`
	EmergencyWarning string      `json:"emergencyWarning,omitempty"`
}

// RiskFactor is one condition-level entry of a risk assessment.
type RiskFactor struct {
	Condition       string   `json:"condition"`
	Risk            int      `json:"risk"` // 0-100
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

// OverallHealth summarizes a risk assessment.
type OverallHealth struct {
	Score   int    `json:"score"` // 0-100
	Summary string `json:"summary"`
}

// RiskAssessment is the parsed reply of a health risk assessment.
type RiskAssessment struct {
	RiskFactors   []RiskFactor  `json:"riskFactors"`
	OverallHealth OverallHealth `json:"overallHealth"`
}

// ProfileContext carries the profile-derived fields appended to a symptom
// analysis prompt. Built server-side from the session user, never taken
// from the request body.
type ProfileContext struct {
	Age            int
	Gender         string
	MedicalHistory []string
	FamilyHistory  []string
	Lifestyle      model.Lifestyle
}

// AgeFromDOB computes age as floor((now - dob) / 365.25 days). A dob of
// exactly N years ago yields N; one day short of N years yields N-1.
func AgeFromDOB(dob, now time.Time) int {
	if dob.After(now) {
		return 0
	}
	days := now.Sub(dob).Hours() / 24
	return int(math.Floor(days / 365.25))
}

// ProfileContextFromUser derives the prompt context from a user record.
// Returns nil when the profile holds no date of birth, meaning the user
// never filled in their profile and there is nothing useful to append.
func ProfileContextFromUser(u *model.User, now time.Time) *ProfileContext {
	if u == nil || u.DateOfBirth == nil {
		return nil
	}
	return &ProfileContext{
		Age:            AgeFromDOB(*u.DateOfBirth, now),
		Gender:         u.Gender,
		MedicalHistory: u.MedicalHistory,
		FamilyHistory:  u.FamilyHistory,
		Lifestyle:      u.Lifestyle,
	}
}

func (p *ProfileContext) promptLines() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nPatient context:\n")
	fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	if p.Gender != "" {
		fmt.Fprintf(&b, "- Gender: %s\n", p.Gender)
	}
	if len(p.MedicalHistory) > 0 {
		fmt.Fprintf(&b, "- Medical history: %s\n", strings.Join(p.MedicalHistory, ", "))
	}
	if len(p.FamilyHistory) > 0 {
		fmt.Fprintf(&b, "- Family history: %s\n", strings.Join(p.FamilyHistory, ", "))
	}
	fmt.Fprintf(&b, "- Smoking: %t, Alcohol: %t\n", p.Lifestyle.Smoking, p.Lifestyle.Alcohol)
	if ex := p.Lifestyle.Exercise; ex.Type != "" {
		fmt.Fprintf(&b, "- Exercise: %s, %s, %s\n", ex.Type, ex.Frequency, ex.Duration)
	}
	return b.String()
}
