package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Post is a blog article. Slug is unique per publish date.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:250;not null" json:"title"`
	Slug      string    `gorm:"size:250;not null;index" json:"slug"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Publish   time.Time `gorm:"index;not null" json:"publish"`
	Status    Status    `gorm:"size:10;not null;default:draft;index" json:"status"`
	Tags      []Tag     `gorm:"many2many:post_tags;" json:"tags"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// BeforeSave fills defaults and keeps publish timestamps in UTC so day lookups compare consistently.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	if p.Publish.IsZero() {
		p.Publish = time.Now()
	}
	p.Publish = p.Publish.UTC()
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid post status %q", p.Status)
	}
	return nil
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// AbsoluteURL returns the canonical detail path in the given location.
func (p *Post) AbsoluteURL(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := p.Publish.In(loc)
	return fmt.Sprintf("/blog/%d/%02d/%02d/%s", t.Year(), int(t.Month()), t.Day(), p.Slug)
}

// TagIDs returns the ids of the loaded tags.
func (p *Post) TagIDs() []uint {
	ids := make([]uint, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// TagNames returns the names of the loaded tags.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Published restricts a query to publicly visible posts, newest first.
func Published(db *gorm.DB) *gorm.DB {
	return db.Where("posts.status = ?", StatusPublished).Order("posts.publish DESC")
}

// PublishedOn matches posts published on the calendar day of year/month/day in loc.
func PublishedOn(year, month, day int, loc *time.Location) func(*gorm.DB) *gorm.DB {
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.publish >= ? AND posts.publish < ?", start.UTC(), end.UTC())
	}
}

// WithTag restricts a query to posts carrying the tag.
func WithTag(tagID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Table("post_tags").Select("post_id").Where("tag_id = ?", tagID))
	}
}
