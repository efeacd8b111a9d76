package handlers_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"careportal/internal/handlers"
	"careportal/internal/models"
	"careportal/internal/repositories"
	"careportal/internal/server"
	"careportal/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sessionCookie = "careportal_session"

type testEnv struct {
	app   *fiber.App
	users *repositories.GORMUserRepository
}

// setupApp builds the full application over a private in-memory SQLite
// database and in-memory sessions.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	users := repositories.NewGORMUserRepository(db)
	require.NoError(t, users.Migrate())

	availability := services.NewAvailabilityChecker(users)
	auth := services.NewAuthService(
		users,
		services.NewBcryptHasher(bcrypt.MinCost),
		services.NewRegistrationValidator(availability),
		nil,
		nil,
	)

	app := server.New(server.Deps{
		Users:        users,
		Auth:         auth,
		Sessions:     services.NewSessionService(repositories.NewMockSessionRepository(), "test_session_secret", time.Hour),
		Availability: availability,
		Router:       services.NewRoleRouter(),
		Cookie:       handlers.CookieConfig{Name: sessionCookie},
	})
	return &testEnv{app: app, users: users}
}

// browser replays cookies between requests the way a user agent would.
type browser struct {
	t    *testing.T
	app  *fiber.App
	jar  map[string]string
	host string
}

func newBrowser(t *testing.T, env *testEnv) *browser {
	return &browser{t: t, app: env.app, jar: map[string]string{}, host: "example.com"}
}

func (b *browser) do(method, target string, body url.Values) *http.Response {
	b.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.Encode())
	}
	req := httptest.NewRequest(method, "http://"+b.host+target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range b.jar {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	for _, c := range resp.Cookies() {
		if c.Value == "" || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(b.jar, c.Name)
			continue
		}
		b.jar[c.Name] = c.Value
	}
	return resp
}

func (b *browser) get(target string) *http.Response { return b.do(http.MethodGet, target, nil) }

func (b *browser) post(target string, body url.Values) *http.Response {
	if body == nil {
		body = url.Values{}
	}
	return b.do(http.MethodPost, target, body)
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signupForm(username, email string, role models.Role) url.Values {
	return url.Values{
		"first_name":    {"Asha"},
		"last_name":     {"Rao"},
		"username":      {username},
		"email":         {email},
		"role":          {string(role)},
		"phone_number":  {"+919876543210"},
		"address_line1": {"12 Lake Road"},
		"city":          {"Pune"},
		"state":         {"MH"},
		"pincode":       {"411001"},
		"password1":     {"Str0ng!Pass"},
		"password2":     {"Str0ng!Pass"},
	}
}

// assertSessionCookieExpired checks resp removes the session cookie with the
// same attributes it was issued with.
func assertSessionCookieExpired(t *testing.T, resp *http.Response) {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name != sessionCookie {
			continue
		}
		assert.Empty(t, c.Value)
		assert.True(t, c.Expires.Before(time.Now()))
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		return
	}
	t.Fatalf("response does not expire %s", sessionCookie)
}

func messages(t *testing.T, body map[string]interface{}) []string {
	t.Helper()
	raw, ok := body["messages"].([]interface{})
	require.True(t, ok, "messages missing from %v", body)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.(map[string]interface{})["text"].(string))
	}
	return out
}

func TestSignupLogsInAndRedirectsToRoleDashboard(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)

	resp := b.post("/signup", signupForm("asha", "Asha@Example.com", models.RolePatient))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, services.PatientDashboardPath, resp.Header.Get("Location"))
	assert.Contains(t, b.jar, sessionCookie)

	resp = b.get(services.PatientDashboardPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Patient Dashboard", body["title"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "asha", user["username"])
	assert.Equal(t, "asha@example.com", user["email"])
	assert.Equal(t, "Asha Rao", user["full_name"])
	assert.Equal(t, "12 Lake Road, Pune, MH, 411001", user["full_address"])
	assert.NotContains(t, user, "password_hash")
	assert.Equal(t, []string{"Welcome Asha Rao! Your account has been created successfully."}, messages(t, body))

	// Flash messages are shown once.
	body = decode(t, b.get(services.PatientDashboardPath))
	assert.Empty(t, messages(t, body))

	resp = b.get(services.DashboardPath)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, services.PatientDashboardPath, resp.Header.Get("Location"))
}

func TestSignupValidationErrors(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)

	other := newBrowser(t, env)
	form := signupForm("asha", "ASHA@example.com", models.RoleDoctor)
	form.Set("password2", "Mismatch!1")
	resp := other.post("/signup", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotContains(t, other.jar, sessionCookie)

	body := decode(t, resp)
	errs := body["errors"].(map[string]interface{})
	assert.Equal(t, []interface{}{services.MsgUsernameTaken}, errs["username"])
	assert.Equal(t, []interface{}{services.MsgEmailTaken}, errs["email"])
	assert.Equal(t, []interface{}{services.MsgPasswordMatch}, errs["password2"])

	formBody := body["form"].(map[string]interface{})
	assert.Equal(t, "", formBody["password1"])
	assert.Equal(t, "", formBody["password2"])
	assert.Equal(t, "asha", formBody["username"])
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	env := setupApp(t)
	signup := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, signup.post("/signup", signupForm("drsen", "sen@example.com", models.RoleDoctor)).StatusCode)

	for _, identifier := range []string{"drsen", "SEN@example.com"} {
		t.Run(identifier, func(t *testing.T) {
			b := newBrowser(t, env)
			resp := b.post("/login", url.Values{"username": {identifier}, "password": {"Str0ng!Pass"}})
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, services.DoctorDashboardPath, resp.Header.Get("Location"))

			body := decode(t, b.get(services.DoctorDashboardPath))
			assert.Equal(t, "Doctor Dashboard", body["title"])
			assert.Equal(t, []string{"Welcome back, Asha Rao!"}, messages(t, body))
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := setupApp(t)
	signup := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, signup.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)

	b := newBrowser(t, env)
	wrong := b.post("/login", url.Values{"identifier": {"asha"}, "password": {"Wr0ng!Pass"}})
	unknown := b.post("/login", url.Values{"identifier": {"nobody"}, "password": {"Str0ng!Pass"}})

	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.Equal(t, decode(t, wrong), decode(t, unknown))
	assert.NotContains(t, b.jar, sessionCookie)
}

func TestLoginHonoursLocalNext(t *testing.T) {
	env := setupApp(t)
	signup := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, signup.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)

	b := newBrowser(t, env)
	resp := b.get(services.PatientDashboardPath)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Equal(t, "/login?next="+url.QueryEscape(services.PatientDashboardPath), location)

	resp = b.post(location, url.Values{"identifier": {"asha"}, "password": {"Str0ng!Pass"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, services.PatientDashboardPath, resp.Header.Get("Location"))

	other := newBrowser(t, env)
	resp = other.post("/login?next="+url.QueryEscape("https://evil.test/steal"), url.Values{"identifier": {"asha"}, "password": {"Str0ng!Pass"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, services.PatientDashboardPath, resp.Header.Get("Location"))
}

func TestRoleGuardRedirectsWithAccessDenied(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)
	decode(t, b.get(services.PatientDashboardPath))

	resp := b.get(services.DoctorDashboardPath)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, services.DashboardPath, resp.Header.Get("Location"))

	resp = b.get(services.DashboardPath)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	body := decode(t, b.get(resp.Header.Get("Location")))
	assert.Equal(t, []string{"Access denied. You are not a doctor."}, messages(t, body))
}

func TestInvalidRoleEndsSession(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)

	account, err := env.users.GetByUsername(context.Background(), "asha")
	require.NoError(t, err)
	account.Role = models.Role("admin")
	require.NoError(t, env.users.Update(context.Background(), account))

	resp := b.get(services.DashboardPath)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, services.LoginPath, resp.Header.Get("Location"))
	assertSessionCookieExpired(t, resp)
	assert.NotContains(t, b.jar, sessionCookie)

	body := decode(t, b.get(services.LoginPath))
	assert.Equal(t, []string{"Invalid user type."}, messages(t, body))
}

func TestLogout(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)
	token := b.jar[sessionCookie]

	resp := b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, services.LoginPath, resp.Header.Get("Location"))
	assertSessionCookieExpired(t, resp)
	assert.NotContains(t, b.jar, sessionCookie)

	body := decode(t, b.get(services.LoginPath))
	assert.Equal(t, []string{"Goodbye Asha Rao! You have been logged out successfully."}, messages(t, body))

	// The old token no longer grants access.
	b.jar[sessionCookie] = token
	resp = b.get(services.PatientDashboardPath)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), services.LoginPath))
}

func TestAuthenticatedLoginRedirectsToDashboard(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)
	require.Equal(t, http.StatusSeeOther, newBrowser(t, env).post("/signup", signupForm("drsen", "sen@example.com", models.RoleDoctor)).StatusCode)
	patientToken := b.jar[sessionCookie]

	// An authenticated browser posting to /login is sent to its dashboard.
	resp := b.post("/login", url.Values{"identifier": {"drsen"}, "password": {"Str0ng!Pass"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, services.DashboardPath, resp.Header.Get("Location"))
	assert.Equal(t, patientToken, b.jar[sessionCookie])
}

func TestTamperedSessionCookieIsAnonymous(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	b.jar[sessionCookie] = base64.RawURLEncoding.EncodeToString([]byte("forged"))

	resp := b.get(services.DashboardPath)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), services.LoginPath))

	resp = b.get(services.LoginPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAjaxUsernameAndEmailChecks(t *testing.T) {
	env := setupApp(t)
	b := newBrowser(t, env)
	require.Equal(t, http.StatusSeeOther, b.post("/signup", signupForm("asha", "asha@example.com", models.RolePatient)).StatusCode)

	tests := []struct {
		path      string
		field     string
		value     string
		available bool
		message   string
		kind      string
	}{
		{"/ajax/check-username", "username", "asha", false, "This username is already taken", "error"},
		{"/ajax/check-username", "username", "ravi", true, "Username is available", "success"},
		{"/ajax/check-username", "username", "ab", false, "Username must be at least 3 characters", "error"},
		{"/ajax/check-username", "username", "", false, "Username is required", "error"},
		{"/ajax/check-email", "email", "ASHA@example.com", false, "This email address is already registered", "error"},
		{"/ajax/check-email", "email", "ravi@example.com", true, "Email is available", "success"},
		{"/ajax/check-email", "email", "nope", false, "Invalid email format", "error"},
		{"/ajax/check-email", "email", "", false, "Email is required", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.value, func(t *testing.T) {
			resp := newBrowser(t, env).post(tt.path, url.Values{tt.field: {tt.value}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, tt.available, body["available"])
			assert.Equal(t, tt.message, body["message"])
			assert.Equal(t, tt.kind, body["type"])
		})
	}
}

func TestAjaxValidatePassword(t *testing.T) {
	env := setupApp(t)

	tests := []struct {
		password string
		valid    bool
		strength string
		kind     string
	}{
		{"", false, "weak", "error"},
		{"abc", false, "weak", "warning"},
		{"Abcdefg1", true, "medium", "success"},
		{"Str0ng!Pass", true, "strong", "success"},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			resp := newBrowser(t, env).post("/ajax/validate-password", url.Values{"password": {tt.password}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, tt.valid, body["valid"])
			assert.Equal(t, tt.strength, body["strength"])
			assert.Equal(t, tt.kind, body["type"])
			assert.NotNil(t, body["issues"])
		})
	}
}
