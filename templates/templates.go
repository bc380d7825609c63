package templates

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

//go:embed html/*.html
var files embed.FS

// Load parses every page with the blog's helper functions bound to db.
func Load(db *gorm.DB, blog config.BlogSection) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(FuncMap(db, blog)).ParseFS(files, "html/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// FuncMap returns the template helpers. Query helpers log failures and render empty.
func FuncMap(db *gorm.DB, blog config.BlogSection) template.FuncMap {
	loc := blog.Location()
	h := helpers{db: db}
	return template.FuncMap{
		"site_title":       func() string { return blog.Title },
		"site_description": func() string { return blog.Description },
		"markdown":         func(s string) template.HTML { return template.HTML(utils.Markdown(s)) },
		"truncatewords":    func(s string, n int) string { return utils.TruncateWords(s, n) },
		"excerpt":          utils.Excerpt,
		"post_url":         func(p models.Post) string { return p.AbsoluteURL(loc) },
		"date": func(t time.Time) string {
			return t.In(loc).Format("Jan 2, 2006, 3:04 p.m.")
		},
		"pluralize": func(n interface{}) string {
			if fmt.Sprint(n) == "1" {
				return ""
			}
			return "s"
		},
		"add":                  func(a, b int) int { return a + b },
		"total_posts":          h.totalPosts,
		"latest_posts":         h.latestPosts,
		"most_commented_posts": h.mostCommentedPosts,
	}
}

type helpers struct {
	db *gorm.DB
}

func (h helpers) totalPosts() int64 {
	var n int64
	if err := h.db.Model(&models.Post{}).Where("status = ?", models.StatusPublished).Count(&n).Error; err != nil {
		utils.Sugar.Warnf("count published posts: %v", err)
	}
	return n
}

func (h helpers) latestPosts(n int) []models.Post {
	var posts []models.Post
	if err := h.db.Scopes(models.Published).Limit(n).Find(&posts).Error; err != nil {
		utils.Sugar.Warnf("load latest posts: %v", err)
	}
	return posts
}

// mostCommentedPosts orders published posts by their total comment count.
func (h helpers) mostCommentedPosts(n int) []models.Post {
	var posts []models.Post
	err := h.db.Model(&models.Post{}).
		Select("posts.*, COUNT(comments.id) AS total_comments").
		Joins("LEFT JOIN comments ON comments.post_id = posts.id").
		Where("posts.status = ?", models.StatusPublished).
		Group("posts.id").
		Order("total_comments DESC").Order("posts.publish DESC").
		Limit(n).Find(&posts).Error
	if err != nil {
		utils.Sugar.Warnf("load most commented posts: %v", err)
	}
	return posts
}
