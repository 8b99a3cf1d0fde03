package endpoint

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carelens-app/carelens/ai"
	"github.com/carelens-app/carelens/config"
	"github.com/carelens-app/carelens/middleware"
	"github.com/carelens-app/carelens/model"
	"github.com/carelens-app/carelens/util"
	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

// setupEndpointTest opens a fresh in-memory database, migrates the models
// and returns a router with the database middleware installed.
func setupEndpointTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	t.Setenv("APPENV", "test")

	db, err := config.ConnectDB()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.HealthLog{}, &model.Session{}, &model.SecurityLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	config.SetRedisClientForTesting(nil)
	util.InitUsernameCache(100)

	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	return r, db
}

// asUser returns a middleware that marks the request as authenticated for
// the given user, bypassing the session check.
func asUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetUserIDForTest(c, userID)
		c.Next()
	}
}

// createTestUser inserts a user with an Argon2 password of "password123".
func createTestUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	salt, err := util.GenerateSalt()
	if err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	hash, err := util.HashPasswordArgon2("password123", salt)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := model.User{Username: username, Password: hash, PasswordSalt: salt}
	user.ApplyDefaultProfile()
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return &user
}

// stubModel is a canned llms.Model for exercising the analysis endpoints
// without the external service.
type stubModel struct {
	content string
	err     error
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.content}}}, nil
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

// useStubAI wires a stubbed analysis client for the duration of the test.
func useStubAI(t *testing.T, content string, err error) {
	t.Helper()
	SetAIClient(ai.NewClientWithModel(&stubModel{content: content, err: err}))
	t.Cleanup(func() { SetAIClient(nil) })
}

type requestSpec struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
}

// performRequest serves one request against the router and decodes the JSON
// envelope when a body is present.
func performRequest(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	var reader *strings.Reader
	setJSONHeader := false
	switch v := spec.body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(v)
		setJSONHeader = true
	default:
		b, _ := json.Marshal(spec.body)
		reader = strings.NewReader(string(b))
		setJSONHeader = true
	}

	req := httptest.NewRequest(spec.method, spec.path, reader)
	if setJSONHeader {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range spec.headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil, err
		}
	}
	return w, response, nil
}

// dataField extracts a key out of the envelope's data object.
func dataField(t *testing.T, response map[string]interface{}, key string) interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object in response, got %T", response["data"])
	}
	return data[key]
}

func countHealthLogs(t *testing.T, db *gorm.DB, userID uint, category string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&model.HealthLog{}).Where("user_id = ? AND category = ?", userID, category).Count(&count).Error; err != nil {
		t.Fatalf("failed to count health logs: %v", err)
	}
	return count
}
