package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/cppla/myblog/admin"
	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/search"
	"github.com/cppla/myblog/utils"
)

// AdminController exposes the registered model admins over JSON.
type AdminController struct {
	db    *gorm.DB
	index *search.Index
	site  *admin.Site
	loc   *time.Location
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB, index *search.Index, site *admin.Site, blog config.BlogSection) *AdminController {
	return &AdminController{db: db, index: index, site: site, loc: blog.Location()}
}

var errSlugTaken = errors.New("slug must be unique for the publish date")

// Models describes every registered model admin.
func (a *AdminController) Models(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"models": a.site.Models()})
}

func (a *AdminController) changeList(ctx *gin.Context, name string, dest interface{}) (*admin.ChangeList, bool) {
	m, ok := a.site.Get(name)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40410, "model not registered")
		return nil, false
	}
	cl, err := m.ChangeList(a.db, admin.Query{Params: ctx.Request.URL.Query(), Location: a.loc}, dest)
	if err != nil {
		if errors.Is(err, admin.ErrInvalidLookup) {
			utils.Error(ctx, http.StatusBadRequest, 40010, err.Error())
			return nil, false
		}
		utils.Sugar.Errorf("admin changelist %s: %v", name, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to list "+name)
		return nil, false
	}
	return cl, true
}

// ListPosts returns one changelist page of posts.
func (a *AdminController) ListPosts(ctx *gin.Context) {
	posts := []models.Post{}
	cl, ok := a.changeList(ctx, "posts", &posts)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"items": posts, "changelist": cl})
}

// GetPost returns a post of any status.
func (a *AdminController) GetPost(ctx *gin.Context) {
	post, ok := a.loadPost(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// CreatePost adds a post; the slug is prepopulated from the title when blank.
func (a *AdminController) CreatePost(ctx *gin.Context) {
	var post models.Post
	if !a.savePost(ctx, &post) {
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{"post": post})
}

// UpdatePost replaces a post's fields and tags.
func (a *AdminController) UpdatePost(ctx *gin.Context) {
	post, ok := a.loadPost(ctx)
	if !ok {
		return
	}
	if !a.savePost(ctx, post) {
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post with its comments and tag links.
func (a *AdminController) DeletePost(ctx *gin.Context) {
	post, ok := a.loadPost(ctx)
	if !ok {
		return
	}
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		utils.Sugar.Errorf("admin delete post %d: %v", post.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to delete post")
		return
	}
	if err := a.index.Remove(post.ID); err != nil {
		utils.Sugar.Warnf("admin delete post %d: %v", post.ID, err)
	}
	utils.InvalidateByPrefix(utils.SimilarPostsPrefix)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

func (a *AdminController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40411, "post not found")
		return nil, false
	}
	var post models.Post
	if err := a.db.Preload("Author").Preload("Tags").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40411, "post not found")
			return nil, false
		}
		utils.Sugar.Errorf("admin load post %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load post")
		return nil, false
	}
	return &post, true
}

// savePost binds a PostForm onto post and persists it with its tags, then refreshes the index.
func (a *AdminController) savePost(ctx *gin.Context, post *models.Post) bool {
	var form forms.PostForm
	if errs := forms.Bind(ctx, &form); errs != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40020, "invalid post", gin.H{"errors": errs})
		return false
	}
	if form.Slug == "" {
		if m, ok := a.site.Get("posts"); ok {
			form.Slug = m.Prepopulate("slug", map[string]string{"title": form.Title})
		}
	}
	if form.Slug == "" {
		utils.Respond(ctx, http.StatusBadRequest, 40020, "invalid post", gin.H{"errors": forms.Errors{"slug": {"slug is a required field"}}})
		return false
	}

	var author models.User
	if err := a.db.First(&author, form.Author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Respond(ctx, http.StatusBadRequest, 40020, "invalid post", gin.H{"errors": forms.Errors{"author": {"author does not exist"}}})
			return false
		}
		utils.Sugar.Errorf("admin load author %d: %v", form.Author, err)
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load author")
		return false
	}

	post.Title = form.Title
	post.Slug = form.Slug
	post.Body = form.Body
	post.AuthorID = author.ID
	post.Author = author
	if form.Publish != nil {
		post.Publish = form.Publish.UTC()
	} else if post.Publish.IsZero() {
		post.Publish = time.Now().UTC()
	}
	if form.Status != "" {
		post.Status = models.Status(form.Status)
	} else if post.Status == "" {
		post.Status = models.StatusDraft
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := a.checkSlugForDate(tx, post); err != nil {
			return err
		}
		tags, err := resolveTags(tx, form.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags", "Author").Save(post).Error; err != nil {
			return err
		}
		if err := tx.Model(post).Association("Tags").Replace(tags); err != nil {
			return err
		}
		post.Tags = tags
		return nil
	})
	if errors.Is(err, errSlugTaken) {
		utils.Respond(ctx, http.StatusBadRequest, 40020, "invalid post", gin.H{"errors": forms.Errors{"slug": {err.Error()}}})
		return false
	}
	if err != nil {
		utils.Sugar.Errorf("admin save post: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to save post")
		return false
	}

	if err := a.index.Update(a.db, post.ID); err != nil {
		utils.Sugar.Warnf("admin index post %d: %v", post.ID, err)
	}
	utils.InvalidateByPrefix(utils.SimilarPostsPrefix)
	return true
}

// checkSlugForDate rejects a slug already used by another post published the same day.
func (a *AdminController) checkSlugForDate(tx *gorm.DB, post *models.Post) error {
	day := post.Publish.In(a.loc)
	var n int64
	q := tx.Model(&models.Post{}).
		Scopes(models.PublishedOn(day.Year(), int(day.Month()), day.Day(), a.loc)).
		Where("posts.slug = ?", post.Slug)
	if post.ID != 0 {
		q = q.Where("posts.id <> ?", post.ID)
	}
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if n > 0 {
		return errSlugTaken
	}
	return nil
}

// resolveTags finds tags by name, creating missing ones with a slugified name.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		err := tx.Where(models.Tag{Name: name}).
			Attrs(models.Tag{Slug: slug.Make(name)}).
			FirstOrCreate(&tag).Error
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// ListComments returns one changelist page of comments.
func (a *AdminController) ListComments(ctx *gin.Context) {
	comments := []models.Comment{}
	cl, ok := a.changeList(ctx, "comments", &comments)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"items": comments, "changelist": cl})
}

func (a *AdminController) loadComment(ctx *gin.Context) (*models.Comment, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
		return nil, false
	}
	var cmt models.Comment
	if err := a.db.First(&cmt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return nil, false
		}
		utils.Sugar.Errorf("admin load comment %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load comment")
		return nil, false
	}
	return &cmt, true
}

// UpdateComment edits or moderates a single comment.
func (a *AdminController) UpdateComment(ctx *gin.Context) {
	cmt, ok := a.loadComment(ctx)
	if !ok {
		return
	}
	var req forms.CommentPatch
	if errs := forms.Bind(ctx, &req); errs != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40021, "invalid comment", gin.H{"errors": errs})
		return
	}
	updates := map[string]interface{}{}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Body != nil {
		updates["body"] = *req.Body
	}
	if len(updates) > 0 {
		if err := a.db.Model(cmt).Updates(updates).Error; err != nil {
			utils.Sugar.Errorf("admin update comment %d: %v", cmt.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update comment")
			return
		}
	}
	utils.Success(ctx, gin.H{"comment": cmt})
}

// DeleteComment removes a comment.
func (a *AdminController) DeleteComment(ctx *gin.Context) {
	cmt, ok := a.loadComment(ctx)
	if !ok {
		return
	}
	if err := a.db.Delete(cmt).Error; err != nil {
		utils.Sugar.Errorf("admin delete comment %d: %v", cmt.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

// CommentAction applies a bulk moderation action (activate, deactivate) to the selected comments.
func (a *AdminController) CommentAction(ctx *gin.Context) {
	var active bool
	switch ctx.Param("action") {
	case "activate":
		active = true
	case "deactivate":
		active = false
	default:
		utils.Error(ctx, http.StatusNotFound, 40421, "unknown action")
		return
	}
	var req forms.BulkIDs
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Respond(ctx, http.StatusBadRequest, 40022, "invalid selection", gin.H{"errors": forms.FromError(err)})
		return
	}
	res := a.db.Model(&models.Comment{}).Where("id IN ?", utils.Unique(req.IDs)).Update("active", active)
	if res.Error != nil {
		utils.Sugar.Errorf("admin comment action %s: %v", ctx.Param("action"), res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to update comments")
		return
	}
	utils.Success(ctx, gin.H{"updated": res.RowsAffected})
}
