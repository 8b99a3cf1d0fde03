package endpoint

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
)

func TestRegisterSuccess(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/register", Register)

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/register",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	token, _ := dataField(t, resp, "token").(string)
	if token == "" {
		t.Error("expected a session token in the response")
	}
	if dataField(t, resp, "user_id") == nil {
		t.Error("expected a user_id in the response")
	}

	var user model.User
	if err := db.First(&user, "username = ?", "alice").Error; err != nil {
		t.Fatalf("expected user row to exist: %v", err)
	}
	if !strings.HasPrefix(user.Password, "argon2id$") {
		t.Errorf("expected Argon2 password hash, got %s", user.Password)
	}
	if user.MedicalHistory == nil || user.FamilyHistory == nil {
		t.Error("expected default profile with empty history slices")
	}

	// Registration also records a usable session.
	var session model.Session
	if err := db.First(&session, "session_token = ?", token).Error; err != nil {
		t.Fatalf("expected session row for token: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("expected session for user %d, got %d", user.ID, session.UserID)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/register", Register)
	createTestUser(t, db, "alice")

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/register",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for duplicate username, got %d", w.Code)
	}
	if resp["msg"] != "Username already exists" {
		t.Errorf("unexpected message: %v", resp["msg"])
	}

	var count int64
	db.Model(&model.User{}).Where("username = ?", "alice").Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one alice, got %d", count)
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	r, _ := setupEndpointTest(t)
	r.POST("/api/register", Register)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"short password", map[string]string{"username": "bob", "password": "short"}},
		{"short username", map[string]string{"username": "ab", "password": "password123"}},
		{"missing password", map[string]string{"username": "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, err := performRequest(r, requestSpec{method: http.MethodPost, path: "/api/register", body: tt.body})
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)
	user := createTestUser(t, db, "alice")

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	token, _ := dataField(t, resp, "token").(string)
	if token == "" {
		t.Fatal("expected a session token")
	}

	var session model.Session
	if err := db.First(&session, "session_token = ?", token).Error; err != nil {
		t.Fatalf("expected session row: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("expected session for user %d, got %d", user.ID, session.UserID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("expected session expiry in the future")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)
	createTestUser(t, db, "alice")

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "alice", "password": "wrongpassword"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp["msg"] != "Invalid username or password" {
		t.Errorf("unexpected message: %v", resp["msg"])
	}
}

func TestLoginUnknownUser(t *testing.T) {
	r, _ := setupEndpointTest(t)
	r.POST("/api/login", Login)

	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "ghost", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	// Unknown user and wrong password share one message so the endpoint
	// does not leak which usernames exist.
	if resp["msg"] != "Invalid username or password" {
		t.Errorf("unexpected message: %v", resp["msg"])
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)
	user := createTestUser(t, db, "alice")

	for i := 0; i < 5; i++ {
		w, _, err := performRequest(r, requestSpec{
			method: http.MethodPost,
			path:   "/api/login",
			body:   map[string]string{"username": "alice", "password": "wrongpassword"},
		})
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 on attempt %d, got %d", i+1, w.Code)
		}
	}

	var locked model.User
	if err := db.First(&locked, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if locked.LockedUntil == nil || *locked.LockedUntil <= time.Now().Unix() {
		t.Fatal("expected account to be locked after 5 failures")
	}

	// Even the correct password is refused while locked.
	w, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 while locked, got %d", w.Code)
	}
	msg, _ := resp["msg"].(string)
	if !strings.Contains(msg, "locked") {
		t.Errorf("expected lock message, got %q", msg)
	}
}

func TestLoginResetsFailedAttempts(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)
	user := createTestUser(t, db, "alice")

	for i := 0; i < 3; i++ {
		performRequest(r, requestSpec{
			method: http.MethodPost,
			path:   "/api/login",
			body:   map[string]string{"username": "alice", "password": "wrongpassword"},
		})
	}

	w, _, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var loaded model.User
	if err := db.First(&loaded, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if loaded.FailedAttempts != 0 {
		t.Errorf("expected failed attempts reset, got %d", loaded.FailedAttempts)
	}
}

func TestLoginUpgradesLegacyPassword(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)

	// Seed a pre-Argon2 account.
	legacy := model.User{Username: "olduser", Password: util.HashPassword("password123")}
	legacy.ApplyDefaultProfile()
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("failed to create legacy user: %v", err)
	}

	w, _, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "olduser", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var upgraded model.User
	if err := db.First(&upgraded, legacy.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !strings.HasPrefix(upgraded.Password, "argon2id$") {
		t.Errorf("expected password upgraded to Argon2, got %s", upgraded.Password)
	}
	if upgraded.PasswordSalt == "" {
		t.Error("expected a salt after upgrade")
	}
}

func TestLogout(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.POST("/api/login", Login)
	r.DELETE("/api/logout", Logout)
	createTestUser(t, db, "alice")

	_, resp, err := performRequest(r, requestSpec{
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"username": "alice", "password": "password123"},
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	token, _ := dataField(t, resp, "token").(string)

	w, _, err := performRequest(r, requestSpec{
		method:  http.MethodDelete,
		path:    "/api/logout",
		headers: map[string]string{"session-token": token},
	})
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var count int64
	db.Model(&model.Session{}).Where("session_token = ?", token).Count(&count)
	if count != 0 {
		t.Errorf("expected session deleted, found %d", count)
	}
}

func TestLogoutWithoutToken(t *testing.T) {
	r, _ := setupEndpointTest(t)
	r.DELETE("/api/logout", Logout)

	w, _, err := performRequest(r, requestSpec{method: http.MethodDelete, path: "/api/logout"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestLogoutUnknownToken(t *testing.T) {
	r, _ := setupEndpointTest(t)
	r.DELETE("/api/logout", Logout)

	w, _, err := performRequest(r, requestSpec{
		method:  http.MethodDelete,
		path:    "/api/logout",
		headers: map[string]string{"session-token": "no-such-token"},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestCurrentUser(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := createTestUser(t, db, "alice")
	r.GET("/api/user", asUser(user.ID), CurrentUser)

	w, resp, err := performRequest(r, requestSpec{method: http.MethodGet, path: "/api/user"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if dataField(t, resp, "username") != "alice" {
		t.Errorf("expected username alice, got %v", dataField(t, resp, "username"))
	}
	// Credentials never serialize.
	if strings.Contains(w.Body.String(), "argon2id$") {
		t.Error("response must not contain the password hash")
	}
}

func TestCurrentUserUnauthenticated(t *testing.T) {
	r, _ := setupEndpointTest(t)
	r.GET("/api/user", CurrentUser)

	w, _, err := performRequest(r, requestSpec{method: http.MethodGet, path: "/api/user"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}
