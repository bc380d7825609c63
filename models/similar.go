package models

import (
	"fmt"

	"gorm.io/gorm"
)

// SimilarPostIDs returns published posts sharing at least one tag with post, excluding post itself.
// More shared tags rank first; ties go to the newer publish date, then the higher id.
func SimilarPostIDs(db *gorm.DB, post *Post, limit int) ([]uint, error) {
	tagIDs := post.TagIDs()
	if len(tagIDs) == 0 || limit <= 0 {
		return []uint{}, nil
	}
	var rows []struct {
		PostID   uint
		SameTags int64
	}
	err := db.Table("post_tags").
		Select("post_tags.post_id, COUNT(*) AS same_tags").
		Joins("JOIN posts ON posts.id = post_tags.post_id").
		Where("post_tags.tag_id IN ?", tagIDs).
		Where("post_tags.post_id <> ?", post.ID).
		Where("posts.status = ?", StatusPublished).
		Group("post_tags.post_id, posts.publish").
		Order("same_tags DESC, posts.publish DESC, post_tags.post_id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("similar posts of %d: %w", post.ID, err)
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.PostID)
	}
	return ids, nil
}

// PostsByID loads published posts keeping the order of ids. Missing or unpublished ids are skipped.
func PostsByID(db *gorm.DB, ids []uint) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}
	var found []Post
	if err := db.Where("posts.id IN ? AND posts.status = ?", ids, StatusPublished).
		Preload("Tags").Preload("Author").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	byID := make(map[uint]Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
