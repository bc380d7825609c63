package forms

import (
	"strings"

	"github.com/cppla/myblog/utils"
)

// EmailPostForm is the share-by-email form.
type EmailPostForm struct {
	Name          string `form:"name" json:"name" binding:"required,max=25"`
	Email         string `form:"email" json:"email" binding:"required,email"`
	To            string `form:"to" json:"to" binding:"required,email"`
	Comments      string `form:"comments" json:"comments"`
	CaptchaID     string `form:"captcha_id" json:"captcha_id,omitempty"`
	CaptchaAnswer string `form:"captcha" json:"captcha,omitempty"`
}

// Clean trims surrounding whitespace like a form's cleaned_data.
func (f *EmailPostForm) Clean() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.To = strings.TrimSpace(f.To)
	f.Comments = strings.TrimSpace(f.Comments)
}

// CommentForm is the reader comment form shown on a post.
type CommentForm struct {
	Name  string `form:"name" json:"name" binding:"required,max=80"`
	Email string `form:"email" json:"email" binding:"required,email"`
	Body  string `form:"body" json:"body" binding:"required"`
}

// Clean reduces name and body to the plain text that is stored, so required checks what is kept.
func (f *CommentForm) Clean() {
	f.Name = strings.TrimSpace(utils.PlainText(f.Name))
	f.Email = strings.TrimSpace(f.Email)
	f.Body = strings.TrimSpace(utils.PlainText(f.Body))
}

// SearchForm carries the full-text query.
type SearchForm struct {
	Query string `form:"query" json:"query" binding:"required,max=255"`
}

func (f *SearchForm) Clean() {
	f.Query = strings.TrimSpace(f.Query)
}
