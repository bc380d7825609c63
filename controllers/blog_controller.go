package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/forms"
	"github.com/cppla/myblog/metrics"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/search"
	"github.com/cppla/myblog/utils"
)

// BlogController serves the public blog pages.
type BlogController struct {
	db     *gorm.DB
	mailer utils.Mailer
	index  *search.Index
	cfg    config.AppConfig
}

// NewBlogController creates a new BlogController instance.
func NewBlogController(db *gorm.DB, mailer utils.Mailer, index *search.Index, cfg config.AppConfig) *BlogController {
	return &BlogController{db: db, mailer: mailer, index: index, cfg: cfg}
}

// PostList lists published posts, optionally filtered by tag, paginated.
func (b *BlogController) PostList(ctx *gin.Context) {
	var tag *models.Tag
	query := b.db.Model(&models.Post{}).Scopes(models.Published)

	if tagSlug := ctx.Param("tag_slug"); tagSlug != "" {
		var t models.Tag
		if err := b.db.Where("slug = ?", tagSlug).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFound(ctx, 40401, "tag not found")
				return
			}
			b.internalError(ctx, 50001, "failed to load tag", err)
			return
		}
		tag = &t
		query = query.Scopes(models.WithTag(t.ID))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		b.internalError(ctx, 50002, "failed to count posts", err)
		return
	}
	pageParam := ctx.Query("page")
	page := utils.Paginate(total, b.cfg.Blog.PostsPerPage, pageParam)

	posts := []models.Post{}
	if err := query.Preload("Tags").Preload("Author").
		Offset(page.Offset()).Limit(page.PerPage).Find(&posts).Error; err != nil {
		b.internalError(ctx, 50003, "failed to list posts", err)
		return
	}

	utils.Render(ctx, http.StatusOK, "list.html", gin.H{
		"posts":      posts,
		"page":       page,
		"page_param": pageParam,
		"tag":        tag,
	})
}

// PostDetail shows one published post with its active comments, and accepts new comments on POST.
func (b *BlogController) PostDetail(ctx *gin.Context) {
	loc := b.cfg.Blog.Location()
	year, month, day, ok := parseDate(ctx.Param("year"), ctx.Param("month"), ctx.Param("day"), loc)
	if !ok {
		utils.NotFound(ctx, 40402, "post not found")
		return
	}

	var post models.Post
	err := b.db.Scopes(models.Published, models.PublishedOn(year, month, day, loc)).
		Where("posts.slug = ?", ctx.Param("slug")).
		Preload("Tags").Preload("Author").
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, 40402, "post not found")
			return
		}
		b.internalError(ctx, 50004, "failed to load post", err)
		return
	}

	var (
		form       forms.CommentForm
		errs       = forms.Errors{}
		newComment *models.Comment
	)
	if ctx.Request.Method == http.MethodPost {
		if errs = forms.Bind(ctx, &form); errs == nil {
			errs = forms.Errors{}
			comment := models.Comment{
				PostID: post.ID,
				Name:   form.Name,
				Email:  form.Email,
				Body:   form.Body,
				Active: !b.cfg.Blog.ModerateComments,
			}
			if err := b.db.Create(&comment).Error; err != nil {
				b.internalError(ctx, 50005, "failed to save comment", err)
				return
			}
			metrics.CommentsSubmitted.Inc()
			newComment = &comment
			form = forms.CommentForm{}
		}
	}

	comments := []models.Comment{}
	if err := b.db.Scopes(models.ActiveComments).Where("post_id = ?", post.ID).Find(&comments).Error; err != nil {
		b.internalError(ctx, 50006, "failed to load comments", err)
		return
	}

	similar, err := b.similarPosts(&post)
	if err != nil {
		utils.Sugar.Warnf("similar posts post_id=%d err=%v", post.ID, err)
		similar = []models.Post{}
	}

	utils.Render(ctx, http.StatusOK, "detail.html", gin.H{
		"title":         post.Title,
		"post":          post,
		"comments":      comments,
		"comment_form":  form,
		"errors":        errs,
		"new_comment":   newComment,
		"moderated":     b.cfg.Blog.ModerateComments,
		"similar_posts": similar,
		"tags":          post.Tags,
	})
}

// similarPosts ranks posts by shared tags. Ranked ids are cached; posts are always reloaded.
func (b *BlogController) similarPosts(post *models.Post) ([]models.Post, error) {
	key := utils.SimilarPostsKey(post.ID)
	var ids []uint
	if !utils.CacheGetJSON(key, &ids) {
		var err error
		ids, err = models.SimilarPostIDs(b.db, post, b.cfg.Blog.SimilarPosts)
		if err != nil {
			return nil, err
		}
		utils.CacheSetJSON(key, ids, time.Hour)
	}
	return models.PostsByID(b.db, ids)
}

// PostShare emails a recommendation of a published post.
func (b *BlogController) PostShare(ctx *gin.Context) {
	postID, err := strconv.ParseUint(ctx.Param("post_id"), 10, 64)
	if err != nil {
		utils.NotFound(ctx, 40403, "post not found")
		return
	}
	var post models.Post
	if err := b.db.Where("status = ?", models.StatusPublished).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(ctx, 40403, "post not found")
			return
		}
		b.internalError(ctx, 50007, "failed to load post", err)
		return
	}

	var (
		form      forms.EmailPostForm
		errs      = forms.Errors{}
		cd        *forms.EmailPostForm
		sent      bool
		sendError string
		status    = http.StatusOK
	)
	if ctx.Request.Method == http.MethodPost {
		errs = forms.Bind(ctx, &form)
		if errs == nil {
			errs = forms.Errors{}
			if b.cfg.Blog.ShareCaptcha && !utils.VerifyCaptcha(form.CaptchaID, form.CaptchaAnswer) {
				errs.Add("captcha", "The code you entered is not valid.")
			}
		}
		if len(errs) == 0 {
			cd = &form
			postURL := b.absoluteURL(ctx, post.AbsoluteURL(b.cfg.Blog.Location()))
			subject := fmt.Sprintf(`%s (%s) recommends you reading "%s"`, form.Name, form.Email, post.Title)
			message := fmt.Sprintf("Read \"%s\" at %s\n\n%s's comments:%s", post.Title, postURL, form.Name, form.Comments)
			if err := b.mailer.SendMail(b.cfg.SMTP.From, form.To, subject, message); err != nil {
				utils.Sugar.Errorf("share post_id=%d to=%s: %v", post.ID, form.To, err)
				metrics.SharesSent.WithLabelValues("failed").Inc()
				status = http.StatusBadGateway
				sendError = "Your e-mail could not be sent. Please try again later."
			} else {
				metrics.SharesSent.WithLabelValues("sent").Inc()
				sent = true
			}
		}
	}

	utils.Render(ctx, status, "share.html", gin.H{
		"title":            "Share a post",
		"post":             post,
		"form":             form,
		"errors":           errs,
		"sent":             sent,
		"cd":               cd,
		"send_error":       sendError,
		"captcha_required": b.cfg.Blog.ShareCaptcha,
	})
}

// Captcha issues a digit captcha for the share form.
func (b *BlogController) Captcha(ctx *gin.Context) {
	id, image, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Sugar.Errorf("generate captcha: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"id": id, "image": image})
}

// PostSearch runs a full-text query over published posts when a query parameter is present.
func (b *BlogController) PostSearch(ctx *gin.Context) {
	var (
		form    forms.SearchForm
		errs    = forms.Errors{}
		cd      *forms.SearchForm
		results = []models.Post{}
		total   uint64
	)
	if _, ok := ctx.GetQuery("query"); ok {
		if errs = forms.Bind(ctx, &form); errs == nil {
			errs = forms.Errors{}
			cd = &form
			var err error
			results, total, err = b.index.Posts(b.db, form.Query, b.cfg.Search.MaxResults)
			if err != nil {
				b.internalError(ctx, 50009, "search failed", err)
				return
			}
			metrics.SearchQueries.Inc()
		}
	}

	utils.Render(ctx, http.StatusOK, "search.html", gin.H{
		"title":         "Search",
		"form":          form,
		"errors":        errs,
		"cd":            cd,
		"results":       results,
		"total_results": total,
	})
}

// absoluteURL prefixes path with app.site_url, or with the scheme and host the request came in on.
func (b *BlogController) absoluteURL(ctx *gin.Context, path string) string {
	if site := strings.TrimRight(b.cfg.App.SiteURL, "/"); site != "" {
		return site + path
	}
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.SplitN(proto, ",", 2)[0])
	}
	return scheme + "://" + ctx.Request.Host + path
}

func (b *BlogController) internalError(ctx *gin.Context, code int, msg string, err error) {
	utils.Sugar.Errorf("%s: %v", msg, err)
	utils.Fail(ctx, http.StatusInternalServerError, code, msg)
}

// parseDate validates a calendar date from path segments.
func parseDate(y, m, d string, loc *time.Location) (int, int, int, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0, 0, 0, false
	}
	return year, month, day, true
}
