package forms

import (
	"strings"
	"time"

	"github.com/cppla/myblog/utils"
)

// LoginForm authenticates a staff user against the admin API.
type LoginForm struct {
	Username string `json:"username" form:"username" binding:"required,max=150"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (f *LoginForm) Clean() {
	f.Username = strings.TrimSpace(f.Username)
}

// PostForm creates or replaces a post through the admin API.
// Slug is prepopulated from Title when empty; Author is a raw user id.
type PostForm struct {
	Title   string     `json:"title" binding:"required,max=250"`
	Slug    string     `json:"slug" binding:"max=250"`
	Author  uint       `json:"author" binding:"required"`
	Body    string     `json:"body" binding:"required"`
	Publish *time.Time `json:"publish"`
	Status  string     `json:"status" binding:"omitempty,oneof=draft published"`
	Tags    []string   `json:"tags" binding:"dive,max=100"`
}

func (f *PostForm) Clean() {
	f.Title = strings.TrimSpace(f.Title)
	f.Slug = strings.TrimSpace(f.Slug)
	tags := make([]string, 0, len(f.Tags))
	seen := map[string]bool{}
	for _, t := range f.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	f.Tags = tags
}

// CommentPatch toggles moderation state or edits a comment. Absent fields are left unchanged.
type CommentPatch struct {
	Active *bool   `json:"active"`
	Name   *string `json:"name" binding:"omitnil,min=1,max=80"`
	Email  *string `json:"email" binding:"omitnil,email"`
	Body   *string `json:"body" binding:"omitnil,min=1"`
}

func (f *CommentPatch) Clean() {
	plain := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(utils.PlainText(*s))
		}
	}
	plain(f.Name)
	plain(f.Body)
	if f.Email != nil {
		*f.Email = strings.TrimSpace(*f.Email)
	}
}

// BulkIDs selects rows for an admin action.
type BulkIDs struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}
