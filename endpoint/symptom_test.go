package endpoint

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/carelens-app/carelens/model"
)

const symptomReply = `{"conditions":[{"name":"flu","confidence":0.8,"severity":"medium"}],"recommendations":["rest"]}`

func TestAnalyzeSymptomsSuccess(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	useStubAI(t, symptomReply, nil)
	r.POST("/api/symptoms/analyze", asUser(user.ID), AnalyzeSymptoms)

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/symptoms/analyze",
		body:   map[string]interface{}{"symptoms": []string{"headache", "fever"}},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	conditions, ok := dataField(t, resp, "conditions").([]interface{})
	if !ok || len(conditions) != 1 {
		t.Fatalf("expected one condition, got %v", dataField(t, resp, "conditions"))
	}
	condition, _ := conditions[0].(map[string]interface{})
	if condition["name"] != "flu" || condition["severity"] != "medium" {
		t.Errorf("unexpected condition: %v", condition)
	}

	// Exactly one symptom log was written, carrying the original input.
	if got := countHealthLogs(t, db, user.ID, model.CategorySymptom); got != 1 {
		t.Fatalf("expected 1 symptom log, got %d", got)
	}
	var log model.HealthLog
	if err := db.First(&log, "user_id = ? AND category = ?", user.ID, model.CategorySymptom).Error; err != nil {
		t.Fatalf("failed to load log: %v", err)
	}
	var payload symptomPayload
	if err := json.Unmarshal(log.Data, &payload); err != nil {
		t.Fatalf("failed to parse stored payload: %v", err)
	}
	if payload.Version != 1 {
		t.Errorf("expected payload version 1, got %d", payload.Version)
	}
	if len(payload.Symptoms) != 2 || payload.Symptoms[0] != "headache" {
		t.Errorf("expected original symptoms stored, got %v", payload.Symptoms)
	}
	if payload.Analysis == nil || len(payload.Analysis.Conditions) != 1 {
		t.Errorf("expected analysis stored alongside symptoms, got %+v", payload.Analysis)
	}
}

func TestAnalyzeSymptomsServiceFailure(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	useStubAI(t, "", errors.New("upstream unavailable"))
	r.POST("/api/symptoms/analyze", asUser(user.ID), AnalyzeSymptoms)

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/symptoms/analyze",
		body:   map[string]interface{}{"symptoms": []string{"fever"}},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}

	// The raw cause never reaches the client.
	if errStr, _ := resp["error"].(string); errStr != "analysis failed" {
		t.Errorf("expected generic error string, got %q", errStr)
	}

	// Nothing is persisted on failure.
	if got := countHealthLogs(t, db, user.ID, model.CategorySymptom); got != 0 {
		t.Errorf("expected no symptom logs after failure, got %d", got)
	}
}

func TestAnalyzeSymptomsMalformedReply(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	useStubAI(t, "sorry, cannot help", nil)
	r.POST("/api/symptoms/analyze", asUser(user.ID), AnalyzeSymptoms)

	w, _, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/symptoms/analyze",
		body:   map[string]interface{}{"symptoms": []string{"fever"}},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 for unparseable reply, got %d", w.Code)
	}
	if got := countHealthLogs(t, db, user.ID, model.CategorySymptom); got != 0 {
		t.Errorf("expected no symptom logs, got %d", got)
	}
}

func TestAnalyzeSymptomsRejectsInvalidInput(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	useStubAI(t, symptomReply, nil)
	r.POST("/api/symptoms/analyze", asUser(user.ID), AnalyzeSymptoms)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty list", map[string]interface{}{"symptoms": []string{}}},
		{"blank symptom", map[string]interface{}{"symptoms": []string{"fever", "  "}}},
		{"missing field", map[string]interface{}{}},
		{"malformed json", `{"symptoms": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, err := performRequest(r, requestSpec{method: http.MethodPost, path: "/api/symptoms/analyze", body: tt.body})
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
		})
	}

	if got := countHealthLogs(t, db, user.ID, model.CategorySymptom); got != 0 {
		t.Errorf("expected no symptom logs after rejected input, got %d", got)
	}
}

func TestAnalyzeSymptomsUnauthenticated(t *testing.T) {
	r, _ := setupEndpointTest(t)
	useStubAI(t, symptomReply, nil)
	r.POST("/api/symptoms/analyze", AnalyzeSymptoms)

	w, _, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/symptoms/analyze",
		body:   map[string]interface{}{"symptoms": []string{"fever"}},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestListAndClearSymptomLogs(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	other := createTestUser(t, db, "bob")
	useStubAI(t, symptomReply, nil)
	r.POST("/api/symptoms/analyze", asUser(user.ID), AnalyzeSymptoms)
	r.GET("/api/symptoms", asUser(user.ID), ListSymptomLogs)
	r.DELETE("/api/symptoms", asUser(user.ID), ClearSymptomLogs)

	for i := 0; i < 2; i++ {
		if _, _, err := performRequest(r, requestSpec{
			method: http.MethodPost,
			path:   "/api/symptoms/analyze",
			body:   map[string]interface{}{"symptoms": []string{"fever"}},
		}); err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
	}
	// A different user's log must not leak into the listing or the clear.
	otherLog := model.HealthLog{UserID: other.ID, Category: model.CategorySymptom, Data: []byte(`{"version":1,"symptoms":["cough"]}`)}
	if err := db.Create(&otherLog).Error; err != nil {
		t.Fatalf("failed to seed other user's log: %v", err)
	}

	w, resp, err := performRequest(r, requestSpec{method: http.MethodGet, path: "/api/symptoms"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	logs, ok := resp["data"].([]interface{})
	if !ok || len(logs) != 2 {
		t.Fatalf("expected 2 symptom logs, got %v", resp["data"])
	}

	w, _, err = performRequest(r, requestSpec{method: http.MethodDelete, path: "/api/symptoms"})
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := countHealthLogs(t, db, user.ID, model.CategorySymptom); got != 0 {
		t.Errorf("expected caller's logs cleared, got %d", got)
	}
	if got := countHealthLogs(t, db, other.ID, model.CategorySymptom); got != 1 {
		t.Errorf("expected other user's log untouched, got %d", got)
	}
}
