package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a reader-submitted message on a post. Only active comments are public.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	Post      *Post     `json:"post,omitempty"`
	Name      string    `gorm:"size:80;not null" json:"name"`
	Email     string    `gorm:"size:254;not null" json:"email"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Active    bool      `gorm:"not null;default:false;index" json:"active"`
	CreatedAt time.Time `gorm:"index" json:"created"`
	UpdatedAt time.Time `json:"updated"`
}

// ActiveComments restricts a query to approved comments, oldest first.
func ActiveComments(db *gorm.DB) *gorm.DB {
	return db.Where("comments.active = ?", true).Order("comments.created_at ASC")
}
