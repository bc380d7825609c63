package controllers

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

const feedDescriptionWords = 30

// PostFeed serves an RSS feed of the latest published posts.
func (b *BlogController) PostFeed(ctx *gin.Context) {
	var posts []models.Post
	if err := b.db.Scopes(models.Published).Preload("Author").
		Limit(b.cfg.Blog.FeedSize).Find(&posts).Error; err != nil {
		b.internalError(ctx, 50010, "failed to load feed", err)
		return
	}

	loc := b.cfg.Blog.Location()
	feed := &feeds.Feed{
		Title:       b.cfg.Blog.Title,
		Link:        &feeds.Link{Href: b.absoluteURL(ctx, "/blog")},
		Description: b.cfg.Blog.Description,
		Created:     time.Now(),
	}
	for i, p := range posts {
		link := b.absoluteURL(ctx, p.AbsoluteURL(loc))
		if i == 0 {
			feed.Updated = p.Publish
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Description: utils.Excerpt(p.Body, feedDescriptionWords),
			Author:      &feeds.Author{Name: p.Author.DisplayName()},
			Created:     p.Publish,
			Updated:     p.UpdatedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		b.internalError(ctx, 50011, "failed to render feed", err)
		return
	}
	ctx.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap lists every published post for crawlers.
func (b *BlogController) Sitemap(ctx *gin.Context) {
	var posts []models.Post
	if err := b.db.Scopes(models.Published).Select("id", "slug", "publish", "updated_at").
		Find(&posts).Error; err != nil {
		b.internalError(ctx, 50012, "failed to load sitemap", err)
		return
	}

	loc := b.cfg.Blog.Location()
	set := sitemapURLSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9", URLs: make([]sitemapURL, 0, len(posts))}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        b.absoluteURL(ctx, p.AbsoluteURL(loc)),
			LastMod:    p.UpdatedAt.In(loc).Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.9",
		})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		b.internalError(ctx, 50013, "failed to render sitemap", err)
		return
	}
	ctx.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
