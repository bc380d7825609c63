package admin

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/myblog/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), NowFunc: func() time.Time { return time.Now().UTC() }})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedPosts(t *testing.T, db *gorm.DB) (models.User, models.User) {
	t.Helper()
	ann := models.User{Username: "ann"}
	bob := models.User{Username: "bob"}
	require.NoError(t, db.Create(&ann).Error)
	require.NoError(t, db.Create(&bob).Error)
	posts := []models.Post{
		{Title: "Go generics", Slug: "go-generics", Body: "type parameters", AuthorID: ann.ID, Status: models.StatusPublished, Publish: time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)},
		{Title: "Gardening", Slug: "gardening", Body: "tomatoes and go", AuthorID: bob.ID, Status: models.StatusDraft, Publish: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
		{Title: "Channels", Slug: "channels", Body: "select statements", AuthorID: ann.ID, Status: models.StatusPublished, Publish: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, db.Create(&posts).Error)
	return ann, bob
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func list(t *testing.T, db *gorm.DB, params url.Values) ([]models.Post, *ChangeList) {
	t.Helper()
	var posts []models.Post
	cl, err := PostAdmin().ChangeList(db, Query{Params: params}, &posts)
	require.NoError(t, err)
	return posts, cl
}

func TestDefaultSite(t *testing.T) {
	s := DefaultSite()
	names := []string{}
	for _, m := range s.Models() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"comments", "posts"}, names)

	assert.Error(t, s.Register(PostAdmin()))
	bad := &ModelAdmin{Name: "bad", ListDisplay: []string{"missing"}}
	assert.Error(t, NewSite().Register(bad))
}

func TestPrepopulate(t *testing.T) {
	m := PostAdmin()
	assert.Equal(t, "hello-go-world", m.Prepopulate("slug", map[string]string{"title": "Hello, Go World!"}))
	assert.Equal(t, "", m.Prepopulate("title", nil))
}

func TestChangeListDefaultOrdering(t *testing.T) {
	db := openDB(t)
	seedPosts(t, db)
	posts, cl := list(t, db, url.Values{})
	// status asc then publish asc
	assert.Equal(t, []string{"Gardening", "Go generics", "Channels"}, titles(posts))
	assert.Equal(t, []string{"status", "publish"}, cl.Ordering)
	assert.Equal(t, int64(3), cl.Page.Count)
	assert.Equal(t, "ann", posts[1].Author.Username)
}

func TestChangeListSearchAndFilters(t *testing.T) {
	db := openDB(t)
	ann, _ := seedPosts(t, db)

	posts, _ := list(t, db, url.Values{"q": {"GO"}})
	assert.ElementsMatch(t, []string{"Go generics", "Gardening"}, titles(posts))

	posts, _ = list(t, db, url.Values{"q": {"go tomatoes"}})
	assert.Equal(t, []string{"Gardening"}, titles(posts))

	posts, cl := list(t, db, url.Values{"status": {"published"}, "author": {itoa(ann.ID)}})
	assert.ElementsMatch(t, []string{"Go generics", "Channels"}, titles(posts))
	assert.Equal(t, "published", cl.Filters["status"])

	posts, _ = list(t, db, url.Values{"publish__year": {"2024"}, "publish__month": {"5"}})
	assert.Equal(t, []string{"Gardening"}, titles(posts))

	posts, _ = list(t, db, url.Values{"created": {DateToday}})
	assert.Len(t, posts, 3)

	posts, _ = list(t, db, url.Values{"o": {"-title"}})
	assert.Equal(t, []string{"Go generics", "Gardening", "Channels"}, titles(posts))

	posts, cl = list(t, db, url.Values{"o": {"body"}})
	assert.Equal(t, []string{"status", "publish"}, cl.Ordering)
	assert.Len(t, posts, 3)
}

func TestChangeListInvalidLookup(t *testing.T) {
	db := openDB(t)
	var posts []models.Post
	for _, params := range []url.Values{
		{"status": {"archived"}},
		{"author": {"abc"}},
		{"created": {"yesterday"}},
		{"publish__year": {"2024"}, "publish__month": {"13"}},
	} {
		_, err := PostAdmin().ChangeList(db, Query{Params: params}, &posts)
		assert.ErrorIs(t, err, ErrInvalidLookup, params.Encode())
	}
}

func TestCommentChangeList(t *testing.T) {
	db := openDB(t)
	seedPosts(t, db)
	comments := []models.Comment{
		{PostID: 1, Name: "Carol", Email: "carol@example.com", Body: "nice", Active: true},
		{PostID: 1, Name: "Dave", Email: "dave@example.com", Body: "spam"},
	}
	require.NoError(t, db.Create(&comments).Error)

	var out []models.Comment
	cl, err := CommentAdmin().ChangeList(db, Query{Params: url.Values{"active": {"false"}}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Dave", out[0].Name)
	require.NotNil(t, out[0].Post)
	assert.Equal(t, "Go generics", out[0].Post.Title)
	assert.Equal(t, int64(1), cl.Page.Count)
}

func TestDateRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	start, end, err := dateRange(DateThisMonth, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), end)

	start, _, err = dateRange(DatePast7Days, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), start)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
