package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

// PageViewRecorder counts successful page GETs per day and path.
func PageViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}
		path := c.Request.URL.Path
		if !countsAsPageView(path) {
			return
		}

		now := time.Now()
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": now.UTC()}),
		}).Create(&models.PageView{Date: models.PageViewDay(now), Path: path, Count: 1}).Error
		if err != nil {
			utils.Sugar.Warnf("record page view path=%s err=%v", path, err)
		}
	}
}

// countsAsPageView skips non-content endpoints so they do not skew counts.
func countsAsPageView(path string) bool {
	switch {
	case path == "/health", path == "/metrics", path == "/sitemap.xml":
		return false
	case strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/admin/"), strings.HasPrefix(path, "/static/"):
		return false
	case path == "/blog/captcha", path == "/blog/feed":
		return false
	}
	return true
}
