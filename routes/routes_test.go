package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursehub/config"
	"coursehub/database"
	"coursehub/storage"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:  "test-secret",
		MaxVideoMB: 10,
	}
	store := storage.NewBlobStore(db, int64(cfg.MaxVideoMB)*1024*1024)

	app := fiber.New()
	SetupRoutes(app, db, cfg, store, log.New(io.Discard, "", 0))
	return app
}

func jsonRequest(method, target string, body interface{}, token string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func registerUser(t *testing.T, app *fiber.App, name, email, role string) string {
	t.Helper()

	resp, err := app.Test(jsonRequest("POST", "/api/v1/auth/register", fiber.Map{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	}, ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestRegisterLoginProfile(t *testing.T) {
	app := newTestApp(t)

	registerUser(t, app, "Anna", "anna@example.com", "teacher")

	resp, err := app.Test(jsonRequest("POST", "/api/v1/auth/login", fiber.Map{
		"email":    "anna@example.com",
		"password": "password123",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	resp, err = app.Test(jsonRequest("GET", "/api/v1/users/profile", nil, login.Token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest("GET", "/api/v1/users/profile", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	app := newTestApp(t)
	registerUser(t, app, "Anna", "anna@example.com", "teacher")

	resp, err := app.Test(jsonRequest("POST", "/api/v1/auth/login", fiber.Map{
		"email":    "anna@example.com",
		"password": "not-the-password",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

// multipartCourse builds the form the frontend sends: scalar fields, a
// modules JSON field whose lesson video values are filenames, and the files
// as "videos" parts carrying their real content type.
func multipartCourse(t *testing.T, modules string, videos map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":        "Go from scratch",
		"description":  "A practical course",
		"weeks":        "6",
		"tuition":      "100",
		"minimumSkill": "beginner",
		"modules":      modules,
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range videos {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="videos"; filename="`+name+`"`)
		h.Set("Content-Type", "video/mp4")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type courseEnvelope struct {
	Data struct {
		ID      uint `json:"id"`
		Modules []struct {
			Lessons []struct {
				Video string `json:"video"`
			} `json:"lessons"`
		} `json:"modules"`
	} `json:"data"`
}

func TestCourseLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "Anna", "anna@example.com", "teacher")

	videoBytes := []byte("pretend this is mp4")
	body, contentType := multipartCourse(t,
		`[{"title":"Basics","lessons":[{"title":"Intro","text":"welcome","video":"intro.mp4"}]}]`,
		map[string][]byte{"intro.mp4": videoBytes},
	)
	req := httptest.NewRequest("POST", "/api/v1/courses", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created courseEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created.Data.Modules, 1)
	videoID := created.Data.Modules[0].Lessons[0].Video
	require.NotEmpty(t, videoID)

	// Anyone can stream the published video.
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/videos/"+videoID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, videoBytes, got)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/videos/"+videoID+"/info", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Deleting the course takes its video with it.
	resp, err = app.Test(jsonRequest("DELETE", "/api/v1/courses/1", nil, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/videos/"+videoID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCreateCourseRejectsInvalidPayload(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "Anna", "anna@example.com", "teacher")

	resp, err := app.Test(jsonRequest("POST", "/api/v1/courses", fiber.Map{
		"tuition":      -5,
		"minimumSkill": "wizard",
	}, token))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Details, "title")
	assert.Contains(t, body.Details, "minimumSkill")
}

func TestStudentCannotCreateCourse(t *testing.T) {
	app := newTestApp(t)
	token := registerUser(t, app, "Boris", "boris@example.com", "student")

	resp, err := app.Test(jsonRequest("POST", "/api/v1/courses", fiber.Map{
		"title":        "Nope",
		"description":  "not allowed",
		"weeks":        "1",
		"minimumSkill": "beginner",
	}, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestEnrollmentFlow(t *testing.T) {
	app := newTestApp(t)
	teacherToken := registerUser(t, app, "Anna", "anna@example.com", "teacher")
	studentToken := registerUser(t, app, "Boris", "boris@example.com", "student")

	resp, err := app.Test(jsonRequest("POST", "/api/v1/courses", fiber.Map{
		"title":        "Go from scratch",
		"description":  "A practical course",
		"weeks":        "6",
		"tuition":      100,
		"minimumSkill": "beginner",
	}, teacherToken))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest("POST", "/api/v1/courses/1/enroll", nil, studentToken))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Teachers don't enroll.
	resp, err = app.Test(jsonRequest("POST", "/api/v1/courses/1/enroll", nil, teacherToken))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest("GET", "/api/v1/courses/enrolled", nil, studentToken))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list struct {
		Count *int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.NotNil(t, list.Count)
	assert.Equal(t, 1, *list.Count)
}
