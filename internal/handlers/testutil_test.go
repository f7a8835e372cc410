package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/familyvault/backend/internal/database"
	"github.com/familyvault/backend/internal/middleware"
	"github.com/familyvault/backend/internal/models"
	"github.com/familyvault/backend/internal/services"
	"github.com/familyvault/backend/internal/storage"
	"github.com/familyvault/backend/pkg/logger"
	"github.com/familyvault/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type testEnv struct {
	App        *fiber.App
	DB         *gorm.DB
	Storage    storage.Client
	StorageDir string
	Family     *services.FamilyService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger.SetOutput(io.Discard)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	storageDir := t.TempDir()
	store, err := storage.NewLocalClient(storageDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	auth := middleware.NewAuthMiddleware(db)
	accessService := services.NewAccessService(db)
	familyService := services.NewFamilyService(db)

	authHandler := NewAuthHandler(db, familyService)
	usersHandler := NewUsersHandler(db, accessService, familyService)
	documentsHandler := NewDocumentsHandler(db, store, accessService, familyService)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.Success(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	})

	app.Post("/auth/register", authHandler.Register)
	app.Post("/auth/login", authHandler.Login)

	users := app.Group("/users", auth.RequireAuth)
	users.Get("/me", usersHandler.Me)
	users.Put("/me", usersHandler.UpdateMe)
	users.Post("/me/family", usersHandler.AddFamilyMember)
	users.Delete("/me/family/:memberId", usersHandler.RemoveFamilyMember)
	users.Get("/:id", usersHandler.Get)

	documents := app.Group("/documents", auth.RequireAuth)
	documents.Post("/", documentsHandler.Upload)
	documents.Get("/", documentsHandler.List)
	documents.Get("/:id", documentsHandler.Get)
	documents.Get("/:id/download", documentsHandler.Download)
	documents.Put("/:id", documentsHandler.Update)
	documents.Delete("/:id", documentsHandler.Delete)
	documents.Post("/:id/share", documentsHandler.Share)

	return &testEnv{
		App:        app,
		DB:         db,
		Storage:    store,
		StorageDir: storageDir,
		Family:     familyService,
	}
}

func createTestUser(t *testing.T, env *testEnv, name, email string, nationalID *string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		NationalID:   nationalID,
	}
	if err := env.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	return &user, token
}

func performRequest(t *testing.T, app *fiber.App, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return performRequest(t, app, method, path, token, body, "application/json")
}

func performUpload(t *testing.T, app *fiber.App, token, fileName, content string, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("document", fileName)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return performRequest(t, app, http.MethodPost, "/documents/", token, &buf, writer.FormDataContentType())
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status: got %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

func dataMap(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response data is not an object: %v", body)
	}
	return data
}
