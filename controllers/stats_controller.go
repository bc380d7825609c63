package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

// StatsController provides blog statistics such as counts and daily page views.
type StatsController struct {
	db  *gorm.DB
	loc *time.Location
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, blog config.BlogSection) *StatsController {
	return &StatsController{db: db, loc: blog.Location()}
}

// GetStats returns aggregate statistics for the blog.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var postCount int64
	var commentCount int64
	var tagCount int64
	var todayViews int64

	// Counts fall back to 0 instead of failing the whole endpoint.
	if err := s.db.Model(&models.Post{}).Where("status = ?", models.StatusPublished).Count(&postCount).Error; err != nil {
		utils.Sugar.Warnf("stats: count posts: %v", err)
	}
	if err := s.db.Model(&models.Comment{}).Where("active = ?", true).Count(&commentCount).Error; err != nil {
		utils.Sugar.Warnf("stats: count comments: %v", err)
	}
	if err := s.db.Model(&models.Tag{}).Count(&tagCount).Error; err != nil {
		utils.Sugar.Warnf("stats: count tags: %v", err)
	}
	if err := s.db.Model(&models.PageView{}).
		Where("date = ?", models.PageViewDay(time.Now())).
		Select("COALESCE(SUM(count),0)").
		Scan(&todayViews).Error; err != nil {
		utils.Sugar.Warnf("stats: sum page views: %v", err)
	}

	utils.Success(ctx, gin.H{
		"post_count":       postCount,
		"comment_count":    commentCount,
		"tag_count":        tagCount,
		"today_page_views": todayViews,
	})
}

// GetPostStats returns page views and active comment count for a published post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
		return
	}
	var post models.Post
	if err := s.db.Where("status = ?", models.StatusPublished).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Sugar.Errorf("stats: load post %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load post")
		return
	}

	var pv int64
	paths := []string{post.AbsoluteURL(s.loc), "/blog/share/" + strconv.FormatUint(id, 10)}
	if err := s.db.Model(&models.PageView{}).
		Where("path IN ?", paths).
		Select("COALESCE(SUM(count),0)").
		Scan(&pv).Error; err != nil {
		utils.Sugar.Warnf("stats: sum post page views: %v", err)
	}

	var commentsCount int64
	if err := s.db.Model(&models.Comment{}).Where("post_id = ? AND active = ?", post.ID, true).Count(&commentsCount).Error; err != nil {
		utils.Sugar.Warnf("stats: count post comments: %v", err)
	}

	utils.Success(ctx, gin.H{
		"pv":             pv,
		"comments_count": commentsCount,
	})
}
