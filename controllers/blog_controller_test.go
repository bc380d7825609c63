package controllers_test

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

var day = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestPostListPagination(t *testing.T) {
	app := newApp(t)
	for i := 0; i < 5; i++ {
		app.post(fmt.Sprintf("Post %d", i), models.StatusPublished, day.Add(time.Duration(i)*time.Hour))
	}
	app.post("Hidden", models.StatusDraft, day.Add(10*time.Hour))

	cases := []struct {
		query  string
		number int
		titles []string
	}{
		{"", 1, []string{"Post 4", "Post 3", "Post 2"}},
		{"?page=2", 2, []string{"Post 1", "Post 0"}},
		{"?page=99", 2, []string{"Post 1", "Post 0"}},
		{"?page=abc", 1, []string{"Post 4", "Post 3", "Post 2"}},
		{"?page=99999999999999999999", 2, []string{"Post 1", "Post 0"}},
		{"?page=-99999999999999999999", 2, []string{"Post 1", "Post 0"}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			w, body := app.getJSON("/blog" + tc.query)
			require.Equal(t, http.StatusOK, w.Code)
			var posts []models.Post
			decode(t, body["posts"], &posts)
			var page utils.Page
			decode(t, body["page"], &page)
			assert.Equal(t, tc.titles, titles(posts))
			assert.Equal(t, tc.number, page.Number)
			assert.Equal(t, 2, page.NumPages)
			assert.EqualValues(t, 5, page.Count)
		})
	}
}

func TestPostListByTag(t *testing.T) {
	app := newApp(t)
	golang := app.tag("go")
	app.post("Tagged", models.StatusPublished, day, golang)
	app.post("Untagged", models.StatusPublished, day)
	app.post("Tagged draft", models.StatusDraft, day, golang)

	w, body := app.getJSON("/blog/tag/go")
	require.Equal(t, http.StatusOK, w.Code)
	var posts []models.Post
	decode(t, body["posts"], &posts)
	assert.Equal(t, []string{"Tagged"}, titles(posts))

	w = app.do(request{path: "/blog/tag/missing", json: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40401`)
}

func TestPostDetailLookup(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day)
	app.post("Draft One", models.StatusDraft, day)

	w, body := app.getJSON(p.AbsoluteURL(nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Post
	decode(t, body["post"], &got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Ann Lee", got.Author.DisplayName())

	for _, path := range []string{
		"/blog/2024/05/11/hello-world",
		"/blog/2024/05/10/draft-one",
		"/blog/2024/13/10/hello-world",
		"/blog/2024/02/30/hello-world",
		"/blog/2024/may/10/hello-world",
	} {
		w := app.do(request{path: path, json: true})
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestPostDetailCommentModeration(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day)
	token := app.login("ann", "correct horse")

	form := url.Values{"name": {" Bob "}, "email": {"bob@example.com"}, "body": {"<b>Nice</b> post"}}
	w := app.do(request{method: http.MethodPost, path: p.AbsoluteURL(nil), form: form, json: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := data(t, w)
	var created models.Comment
	decode(t, body["new_comment"], &created)
	assert.Equal(t, "Bob", created.Name)
	assert.Equal(t, "Nice post", created.Body)
	assert.False(t, created.Active)

	var comments []models.Comment
	decode(t, body["comments"], &comments)
	assert.Empty(t, comments)

	w = app.do(request{method: http.MethodPost, path: "/admin/api/comments/actions/activate", body: forms.BulkIDs{IDs: []uint{created.ID}}, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, body = app.getJSON(p.AbsoluteURL(nil))
	decode(t, body["comments"], &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "Nice post", comments[0].Body)
}

func TestPostDetailUnmoderatedComments(t *testing.T) {
	app := newApp(t, func(c *config.AppConfig) { c.Blog.ModerateComments = false })
	p := app.post("Hello World", models.StatusPublished, day)

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "body": {"first"}}
	w := app.do(request{method: http.MethodPost, path: p.AbsoluteURL(nil), form: form, json: true})
	require.Equal(t, http.StatusOK, w.Code)
	var comments []models.Comment
	decode(t, data(t, w)["comments"], &comments)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].Active)
}

func TestPostDetailInvalidComment(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day)

	cases := []struct {
		name   string
		form   url.Values
		fields []string
	}{
		{"bad email and blank body", url.Values{"name": {"Bob"}, "email": {"not-an-email"}, "body": {"  "}}, []string{"email", "body"}},
		{"markup only body", url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "body": {"<b></b>"}}, []string{"body"}},
		{"script only body", url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "body": {"<script>spam</script>"}}, []string{"body"}},
		{"markup only name", url.Values{"name": {"<x>"}, "email": {"bob@example.com"}, "body": {"hi"}}, []string{"name"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(request{method: http.MethodPost, path: p.AbsoluteURL(nil), form: tc.form, json: true})
			require.Equal(t, http.StatusOK, w.Code)
			var errs forms.Errors
			decode(t, data(t, w)["errors"], &errs)
			for _, field := range tc.fields {
				assert.True(t, errs.Has(field), field)
			}
		})
	}

	var n int64
	require.NoError(t, app.db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPostDetailSimilarPosts(t *testing.T) {
	app := newApp(t)
	a, b, c := app.tag("a"), app.tag("b"), app.tag("c")
	p := app.post("Main", models.StatusPublished, day, a, b, c)
	two := app.post("Two shared", models.StatusPublished, day.AddDate(0, 0, -3), a, b)
	oneOld := app.post("One shared old", models.StatusPublished, day.AddDate(0, 0, -2), c)
	oneNew := app.post("One shared new", models.StatusPublished, day.AddDate(0, 0, -1), a)
	app.post("Draft shared", models.StatusDraft, day, a, b, c)
	app.post("Unrelated", models.StatusPublished, day)

	_, body := app.getJSON(p.AbsoluteURL(nil))
	var similar []models.Post
	decode(t, body["similar_posts"], &similar)
	assert.Equal(t, []string{two.Title, oneNew.Title, oneOld.Title}, titles(similar))
}

func TestPostShare(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day)
	draft := app.post("Draft", models.StatusDraft, day)
	path := fmt.Sprintf("/blog/share/%d", p.ID)

	assert.Equal(t, http.StatusNotFound, app.do(request{path: fmt.Sprintf("/blog/share/%d", draft.ID), json: true}).Code)
	assert.Equal(t, http.StatusNotFound, app.do(request{path: "/blog/share/abc", json: true}).Code)

	w, body := app.getJSON(path)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", string(body["sent"]))

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "to": {"eve@example.com"}, "comments": {"worth it"}}
	w = app.do(request{method: http.MethodPost, path: path, form: form, json: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", string(data(t, w)["sent"]))

	require.Len(t, app.mailer.sent, 1)
	mail := app.mailer.sent[0]
	assert.Equal(t, "eve@example.com", mail.To)
	assert.Equal(t, "admin@myblog.com", mail.From)
	assert.Equal(t, `Bob (bob@example.com) recommends you reading "Hello World"`, mail.Subject)
	assert.Equal(t, "Read \"Hello World\" at http://testserver/blog/2024/05/10/hello-world\n\nBob's comments:worth it", mail.Body)
}

func TestPostShareInvalidForm(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day)

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "to": {"nobody"}}
	w := app.do(request{method: http.MethodPost, path: fmt.Sprintf("/blog/share/%d", p.ID), form: form, json: true})
	require.Equal(t, http.StatusOK, w.Code)
	var errs forms.Errors
	decode(t, data(t, w)["errors"], &errs)
	assert.True(t, errs.Has("to"))
	assert.Empty(t, app.mailer.sent)
}

func TestPostShareMailerFailure(t *testing.T) {
	app := newApp(t)
	app.mailer.err = errSMTPDown
	p := app.post("Hello World", models.StatusPublished, day)

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "to": {"eve@example.com"}}
	w := app.do(request{method: http.MethodPost, path: fmt.Sprintf("/blog/share/%d", p.ID), form: form, json: true})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "false", string(data(t, w)["sent"]))
}

func TestPostShareCaptcha(t *testing.T) {
	app := newApp(t, func(c *config.AppConfig) { c.Blog.ShareCaptcha = true })
	p := app.post("Hello World", models.StatusPublished, day)

	form := url.Values{"name": {"Bob"}, "email": {"bob@example.com"}, "to": {"eve@example.com"}, "captcha_id": {"nope"}, "captcha": {"1234"}}
	w := app.do(request{method: http.MethodPost, path: fmt.Sprintf("/blog/share/%d", p.ID), form: form, json: true})
	require.Equal(t, http.StatusOK, w.Code)
	var errs forms.Errors
	decode(t, data(t, w)["errors"], &errs)
	assert.True(t, errs.Has("captcha"))
	assert.Empty(t, app.mailer.sent)

	w, body := app.getJSON("/blog/captcha")
	require.Equal(t, http.StatusOK, w.Code)
	var image string
	decode(t, body["image"], &image)
	assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"))
}

func TestPostSearch(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")
	django := app.tag("django")
	p := app.post("Running Django", models.StatusPublished, day, django)
	app.post("Django drafts", models.StatusDraft, day)
	app.post("Cooking", models.StatusPublished, day)

	w, body := app.getJSON("/blog/search")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(body["cd"]))

	w, body = app.getJSON("/blog/search?query=django")
	require.Equal(t, http.StatusOK, w.Code)
	var results []models.Post
	decode(t, body["results"], &results)
	assert.Equal(t, []string{"Running Django"}, titles(results))
	assert.Equal(t, "1", string(body["total_results"]))

	update := map[string]interface{}{"title": p.Title, "slug": p.Slug, "author": app.author.ID, "body": p.Body, "status": "draft", "tags": []string{"django"}}
	w = app.do(request{method: http.MethodPut, path: fmt.Sprintf("/admin/api/posts/%d", p.ID), body: update, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, body = app.getJSON("/blog/search?query=django")
	decode(t, body["results"], &results)
	assert.Empty(t, results)

	_, body = app.getJSON("/blog/search?query=")
	var errs forms.Errors
	decode(t, body["errors"], &errs)
	assert.True(t, errs.Has("query"))
}

func TestFeedAndSitemap(t *testing.T) {
	app := newApp(t)
	app.post("Hello World", models.StatusPublished, day)
	app.post("Secret", models.StatusDraft, day)

	w := app.do(request{path: "/blog/feed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")
	assert.Contains(t, w.Body.String(), "<title>Hello World</title>")
	assert.Contains(t, w.Body.String(), "http://testserver/blog/2024/05/10/hello-world")
	assert.NotContains(t, w.Body.String(), "Secret")

	w = app.do(request{path: "/sitemap.xml"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<loc>http://testserver/blog/2024/05/10/hello-world</loc>")
	assert.Contains(t, w.Body.String(), "<changefreq>weekly</changefreq>")
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestStats(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day, app.tag("go"))
	draft := app.post("Draft", models.StatusDraft, day)
	require.NoError(t, app.db.Create(&models.Comment{PostID: p.ID, Name: "x", Email: "x@example.com", Body: "hi", Active: true}).Error)

	app.do(request{path: p.AbsoluteURL(nil)})
	app.do(request{path: p.AbsoluteURL(nil)})

	w, body := app.getJSON("/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", string(body["post_count"]))
	assert.Equal(t, "1", string(body["comment_count"]))
	assert.Equal(t, "1", string(body["tag_count"]))

	w, body = app.getJSON(fmt.Sprintf("/api/v1/posts/%d/stats", p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", string(body["pv"]))
	assert.Equal(t, "1", string(body["comments_count"]))

	w = app.do(request{path: fmt.Sprintf("/api/v1/posts/%d/stats", draft.ID)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTMLPages(t *testing.T) {
	app := newApp(t)
	p := app.post("Hello World", models.StatusPublished, day, app.tag("go"))

	pages := []struct{ path, want string }{
		{"/", "Hello World"},
		{"/blog/tag/go", "Posts tagged with"},
		{p.AbsoluteURL(nil), "Hello World"},
		{fmt.Sprintf("/blog/share/%d", p.ID), "by e-mail"},
		{"/blog/search?query=hello", "Hello World"},
		{"/blog/search", "Search for posts"},
	}
	for _, pg := range pages {
		w := app.do(request{path: pg.path})
		require.Equal(t, http.StatusOK, w.Code, pg.path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html", pg.path)
		assert.Contains(t, w.Body.String(), pg.want, pg.path)
	}

	w := app.do(request{path: "/blog/2024/01/01/nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	w = app.do(request{path: "/api/v1/nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40400`)
}
