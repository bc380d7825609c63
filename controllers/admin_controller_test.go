package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/myblog/admin"
	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

func TestLogin(t *testing.T) {
	app := newApp(t)
	reader := models.User{Username: "reader"}
	reader.PasswordHash, _ = utils.HashPassword("secret-pass")
	require.NoError(t, app.db.Create(&reader).Error)

	cases := []struct {
		name     string
		username string
		password string
		status   int
	}{
		{"wrong password", "ann", "nope", http.StatusUnauthorized},
		{"unknown user", "ghost", "nope", http.StatusUnauthorized},
		{"not staff", "reader", "secret-pass", http.StatusForbidden},
		{"missing password", "ann", "", http.StatusBadRequest},
		{"staff", "ann", "correct horse", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(request{method: http.MethodPost, path: "/admin/api/login", body: map[string]string{"username": tc.username, "password": tc.password}})
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestStaffEndpointsRequireToken(t *testing.T) {
	app := newApp(t)
	w := app.do(request{path: "/admin/api/posts"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(request{path: "/admin/api/posts", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := app.login("ann", "correct horse")
	w = app.do(request{path: "/admin/api/me", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var user models.User
	decode(t, data(t, w)["user"], &user)
	assert.Equal(t, "ann", user.Username)

	w = app.do(request{method: http.MethodPost, path: "/admin/api/logout", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(request{path: "/admin/api/me", token: token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminModels(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")

	w := app.do(request{path: "/admin/api/models", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var registered []admin.ModelAdmin
	decode(t, data(t, w)["models"], &registered)
	require.Len(t, registered, 2)
	assert.Equal(t, "comments", registered[0].Name)
	assert.Equal(t, "posts", registered[1].Name)
	assert.Equal(t, []string{"title"}, registered[1].PrepopulatedFields["slug"])
}

func TestAdminCreatePost(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")

	body := map[string]interface{}{
		"title":   "Who Was Django Reinhardt?",
		"author":  app.author.ID,
		"body":    "The jazz guitarist.",
		"status":  "published",
		"publish": "2024-05-10T12:00:00Z",
		"tags":    []string{"music", " Jazz ", "jazz"},
	}
	w := app.do(request{method: http.MethodPost, path: "/admin/api/posts", body: body, token: token})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post models.Post
	decode(t, data(t, w)["post"], &post)
	assert.Equal(t, "who-was-django-reinhardt", post.Slug)
	assert.Equal(t, []string{"music", "Jazz"}, post.TagNames())

	w = app.do(request{path: "/blog/2024/05/10/who-was-django-reinhardt", json: true})
	assert.Equal(t, http.StatusOK, w.Code)

	_, found := app.getJSON("/blog/search?query=guitarist")
	var results []models.Post
	decode(t, found["results"], &results)
	require.Len(t, results, 1)
	assert.Equal(t, post.ID, results[0].ID)

	w = app.do(request{method: http.MethodPost, path: "/admin/api/posts", body: body, token: token})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var errs forms.Errors
	decode(t, data(t, w)["errors"], &errs)
	assert.True(t, errs.Has("slug"))

	body["status"] = "archived"
	body["slug"] = "other"
	w = app.do(request{method: http.MethodPost, path: "/admin/api/posts", body: body, token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body["status"] = "draft"
	body["author"] = 9999
	w = app.do(request{method: http.MethodPost, path: "/admin/api/posts", body: body, token: token})
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, data(t, w)["errors"], &errs)
	assert.True(t, errs.Has("author"))
}

func TestAdminChangeList(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")
	app.post("Alpha", models.StatusPublished, day)
	app.post("Beta", models.StatusDraft, day.AddDate(0, 1, 0))
	app.post("Gamma", models.StatusPublished, day.AddDate(1, 0, 0))

	list := func(query string) ([]models.Post, admin.ChangeList) {
		t.Helper()
		w := app.do(request{path: "/admin/api/posts" + query, token: token})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := data(t, w)
		var posts []models.Post
		decode(t, body["items"], &posts)
		var cl admin.ChangeList
		decode(t, body["changelist"], &cl)
		return posts, cl
	}

	posts, cl := list("")
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma"}, titles(posts))
	assert.EqualValues(t, 3, cl.Page.Count)

	posts, _ = list("?status=draft")
	assert.Equal(t, []string{"Beta"}, titles(posts))

	posts, _ = list("?q=alp")
	assert.Equal(t, []string{"Alpha"}, titles(posts))

	posts, _ = list("?publish__year=2024")
	assert.Equal(t, []string{"Beta", "Alpha"}, titles(posts))

	posts, _ = list("?o=title")
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, titles(posts))

	w := app.do(request{path: "/admin/api/posts?status=archived", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDeletePost(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")
	p := app.post("Doomed", models.StatusPublished, day, app.tag("go"))
	require.NoError(t, app.db.Create(&models.Comment{PostID: p.ID, Name: "x", Email: "x@example.com", Body: "hi"}).Error)

	w := app.do(request{method: http.MethodDelete, path: fmt.Sprintf("/admin/api/posts/%d", p.ID), token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var n int64
	require.NoError(t, app.db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
	count, err := app.index.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	w = app.do(request{method: http.MethodDelete, path: fmt.Sprintf("/admin/api/posts/%d", p.ID), token: token})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminComments(t *testing.T) {
	app := newApp(t)
	token := app.login("ann", "correct horse")
	p := app.post("Hello", models.StatusPublished, day)
	comments := []models.Comment{
		{PostID: p.ID, Name: "amy", Email: "amy@example.com", Body: "first"},
		{PostID: p.ID, Name: "bob", Email: "bob@example.com", Body: "second"},
	}
	require.NoError(t, app.db.Create(&comments).Error)

	w := app.do(request{path: "/admin/api/comments?active=false", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var listed []models.Comment
	decode(t, data(t, w)["items"], &listed)
	assert.Len(t, listed, 2)

	w = app.do(request{method: http.MethodPost, path: "/admin/api/comments/actions/activate", body: forms.BulkIDs{IDs: []uint{comments[0].ID, comments[1].ID, comments[0].ID}}, token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", string(data(t, w)["updated"]))

	w = app.do(request{method: http.MethodPost, path: "/admin/api/comments/actions/explode", body: forms.BulkIDs{IDs: []uint{comments[0].ID}}, token: token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(request{method: http.MethodPatch, path: fmt.Sprintf("/admin/api/comments/%d", comments[1].ID), body: map[string]interface{}{"active": false, "body": "<i>edited</i>"}, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.Comment
	require.NoError(t, app.db.First(&got, comments[1].ID).Error)
	assert.False(t, got.Active)
	assert.Equal(t, "edited", got.Body)

	w = app.do(request{method: http.MethodPatch, path: fmt.Sprintf("/admin/api/comments/%d", comments[1].ID), body: map[string]interface{}{"body": "<b></b>"}, token: token})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var errs forms.Errors
	decode(t, data(t, w)["errors"], &errs)
	assert.True(t, errs.Has("body"))
	require.NoError(t, app.db.First(&got, comments[1].ID).Error)
	assert.Equal(t, "edited", got.Body)

	w = app.do(request{method: http.MethodDelete, path: fmt.Sprintf("/admin/api/comments/%d", comments[0].ID), token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var n int64
	require.NoError(t, app.db.Model(&models.Comment{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
