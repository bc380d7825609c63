package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"gorm.io/gorm"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

const textField = "text"

// Index is the full-text index of published posts. Document ids are post ids.
type Index struct {
	idx bleve.Index
}

// Open opens the on-disk index at path, creating it when missing. An empty path keeps the index in memory.
func Open(path string) (*Index, error) {
	if path == "" {
		return NewMemory()
	}
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create index dir: %w", mkErr)
		}
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open search index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// NewMemory creates an index that lives only in memory.
func NewMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(textField, text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// Close releases the index.
func (i *Index) Close() error {
	return i.idx.Close()
}

// Count returns the number of indexed posts.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

// document is the text a post is searchable by: title, tag names and body.
func document(p *models.Post) map[string]interface{} {
	parts := append([]string{p.Title}, p.TagNames()...)
	parts = append(parts, p.Body)
	return map[string]interface{}{textField: strings.Join(parts, "\n")}
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Update indexes the post when it is published and removes it otherwise.
func (i *Index) Update(db *gorm.DB, postID uint) error {
	var post models.Post
	err := db.Preload("Tags").First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return i.Remove(postID)
	}
	if err != nil {
		return fmt.Errorf("load post %d: %w", postID, err)
	}
	if !post.IsPublished() {
		return i.Remove(postID)
	}
	if err := i.idx.Index(docID(post.ID), document(&post)); err != nil {
		return fmt.Errorf("index post %d: %w", post.ID, err)
	}
	return nil
}

// Remove drops a post from the index. Removing an unknown id is not an error.
func (i *Index) Remove(postID uint) error {
	if err := i.idx.Delete(docID(postID)); err != nil {
		return fmt.Errorf("unindex post %d: %w", postID, err)
	}
	return nil
}

const rebuildBatch = 200

// Rebuild clears the index and reindexes every published post. It returns the number indexed.
func (i *Index) Rebuild(db *gorm.DB) (int, error) {
	if err := i.clear(); err != nil {
		return 0, err
	}

	var (
		posts []models.Post
		total int
	)
	err := db.Model(&models.Post{}).Where("status = ?", models.StatusPublished).Preload("Tags").
		FindInBatches(&posts, rebuildBatch, func(tx *gorm.DB, _ int) error {
			b := i.idx.NewBatch()
			for k := range posts {
				if err := b.Index(docID(posts[k].ID), document(&posts[k])); err != nil {
					return err
				}
			}
			if err := i.idx.Batch(b); err != nil {
				return err
			}
			total += len(posts)
			return nil
		}).Error
	if err != nil {
		return total, fmt.Errorf("rebuild index: %w", err)
	}
	utils.Sugar.Infof("search index rebuilt with %d posts", total)
	return total, nil
}

func (i *Index) clear() error {
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), rebuildBatch, 0, false)
		res, err := i.idx.Search(req)
		if err != nil {
			return fmt.Errorf("list indexed posts: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		b := i.idx.NewBatch()
		for _, hit := range res.Hits {
			b.Delete(hit.ID)
		}
		if err := i.idx.Batch(b); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}
}

// Search matches every analysed term of q and returns post ids in score order with the total hit count.
func (i *Index) Search(q string, max int) ([]uint, uint64, error) {
	mq := bleve.NewMatchQuery(q)
	mq.SetField(textField)
	mq.SetOperator(query.MatchQueryOperatorAnd)

	if max <= 0 {
		max = 10
	}
	res, err := i.idx.Search(bleve.NewSearchRequestOptions(mq, max, 0, false))
	if err != nil {
		return nil, 0, fmt.Errorf("search %q: %w", q, err)
	}
	ids := make([]uint, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, res.Total, nil
}

// Posts runs Search and loads the matching published posts in score order.
func (i *Index) Posts(db *gorm.DB, q string, max int) ([]models.Post, uint64, error) {
	ids, total, err := i.Search(q, max)
	if err != nil || len(ids) == 0 {
		return []models.Post{}, total, err
	}
	var found []models.Post
	if err := db.Scopes(models.Published).Preload("Tags").Preload("Author").
		Where("posts.id IN ?", ids).Find(&found).Error; err != nil {
		return nil, 0, fmt.Errorf("load search results: %w", err)
	}
	byID := make(map[uint]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, total, nil
}
