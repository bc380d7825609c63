package controllers_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/routes"
	"github.com/cppla/myblog/search"
	"github.com/cppla/myblog/utils"
)

type sentMail struct {
	From, To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendMail(from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{from, to, subject, body})
	return nil
}

var errSMTPDown = errors.New("smtp down")

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	index  *search.Index
	mailer *fakeMailer
	router *gin.Engine
	author models.User
}

func newApp(t *testing.T, tweak ...func(*config.AppConfig)) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.App.JWTSecret = "test-secret"
	cfg.App.GinMode = "test"
	cfg.App.GinPath = ""
	cfg.App.SiteURL = "http://testserver"
	cfg.App.RateLimitPerMinute = 1000
	cfg.Redis.Host = ""
	for _, fn := range tweak {
		fn(&cfg)
	}
	config.Set(cfg)
	utils.SetRedis(nil)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), NowFunc: func() time.Time { return time.Now().UTC() }})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	index, err := search.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	mailer := &fakeMailer{}
	r, err := routes.SetupRouter(db, mailer, index)
	require.NoError(t, err)

	author := models.User{Username: "ann", FirstName: "Ann", LastName: "Lee", IsStaff: true}
	author.PasswordHash, err = utils.HashPassword("correct horse")
	require.NoError(t, err)
	require.NoError(t, db.Create(&author).Error)

	return &testApp{t: t, db: db, index: index, mailer: mailer, router: r, author: author}
}

func (a *testApp) tag(name string) models.Tag {
	a.t.Helper()
	tag := models.Tag{Name: name, Slug: name}
	require.NoError(a.t, a.db.Create(&tag).Error)
	return tag
}

func (a *testApp) post(title string, status models.Status, publish time.Time, tags ...models.Tag) models.Post {
	a.t.Helper()
	p := models.Post{
		Title:    title,
		Slug:     strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		AuthorID: a.author.ID,
		Body:     "Body of " + title,
		Publish:  publish,
		Status:   status,
		Tags:     tags,
	}
	require.NoError(a.t, a.db.Create(&p).Error)
	require.NoError(a.t, a.index.Update(a.db, p.ID))
	return p
}

type request struct {
	method string
	path   string
	form   url.Values
	body   interface{}
	json   bool
	token  string
}

func (a *testApp) do(req request) *httptest.ResponseRecorder {
	a.t.Helper()
	var body io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		b, err := json.Marshal(req.body)
		require.NoError(a.t, err)
		body = strings.NewReader(string(b))
		contentType = "application/json"
	}
	method := req.method
	if method == "" {
		method = http.MethodGet
	}
	r := httptest.NewRequest(method, req.path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if req.json {
		r.Header.Set("Accept", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	return w
}

func (a *testApp) getJSON(path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	a.t.Helper()
	w := a.do(request{path: path, json: true})
	return w, data(a.t, w)
}

type envelope struct {
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func (a *testApp) login(username, password string) string {
	a.t.Helper()
	w := a.do(request{method: http.MethodPost, path: "/admin/api/login", body: map[string]string{"username": username, "password": password}})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var token string
	decode(a.t, data(a.t, w)["token"], &token)
	return token
}
