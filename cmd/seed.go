package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/myblog/models"
)

type seedOptions struct {
	Posts    int
	Tags     int
	Comments int
	Seed     int64
}

type seedResult struct {
	Posts    int
	Tags     int
	Comments int
}

var seedOpts seedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake posts, tags and comments",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		res, err := seed(db, seedOpts)
		if err != nil {
			return err
		}
		index, err := openIndex()
		if err != nil {
			return err
		}
		defer index.Close()
		if _, err := index.Rebuild(db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d posts, %d tags, %d comments\n", res.Posts, res.Tags, res.Comments)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Posts, "posts", 20, "number of posts")
	seedCmd.Flags().IntVar(&seedOpts.Tags, "tags", 8, "number of tags")
	seedCmd.Flags().IntVar(&seedOpts.Comments, "comments", 3, "maximum comments per post")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 0, "random seed (0 picks one)")
	rootCmd.AddCommand(seedCmd)
}

func seed(db *gorm.DB, opts seedOptions) (seedResult, error) {
	var res seedResult
	faker := gofakeit.New(opts.Seed)

	err := db.Transaction(func(tx *gorm.DB) error {
		author := models.User{
			Username:  "seed-" + strings.ToLower(faker.Username()),
			Email:     faker.Email(),
			FirstName: faker.FirstName(),
			LastName:  faker.LastName(),
		}
		if err := tx.Create(&author).Error; err != nil {
			return fmt.Errorf("seed author: %w", err)
		}

		tags := make([]models.Tag, 0, opts.Tags)
		seen := map[string]bool{}
		for len(tags) < opts.Tags {
			name := strings.ToLower(faker.Word())
			if seen[name] {
				continue
			}
			seen[name] = true
			tag := models.Tag{Name: name}
			if err := tx.Where(models.Tag{Name: name}).Attrs(models.Tag{Slug: slug.Make(name)}).FirstOrCreate(&tag).Error; err != nil {
				return fmt.Errorf("seed tag: %w", err)
			}
			tags = append(tags, tag)
		}
		res.Tags = len(tags)

		now := time.Now()
		for i := 0; i < opts.Posts; i++ {
			title := strings.TrimSuffix(faker.Sentence(faker.Number(3, 7)), ".")
			status := models.StatusPublished
			if faker.Number(1, 5) == 1 {
				status = models.StatusDraft
			}
			post := models.Post{
				Title:    title,
				Slug:     fmt.Sprintf("%s-%d", slug.Make(title), i+1),
				AuthorID: author.ID,
				Body:     faker.Paragraph(3, 4, 12, "\n\n"),
				Publish:  faker.DateRange(now.AddDate(-1, 0, 0), now),
				Status:   status,
			}
			if len(tags) > 0 {
				for j := 0; j < faker.Number(1, 3); j++ {
					post.Tags = append(post.Tags, tags[faker.Number(0, len(tags)-1)])
				}
				post.Tags = uniqueTags(post.Tags)
			}
			if err := tx.Create(&post).Error; err != nil {
				return fmt.Errorf("seed post: %w", err)
			}
			res.Posts++

			for j := 0; j < faker.Number(0, opts.Comments); j++ {
				c := models.Comment{
					PostID: post.ID,
					Name:   faker.Name(),
					Email:  faker.Email(),
					Body:   faker.Sentence(faker.Number(5, 20)),
					Active: faker.Bool(),
				}
				if err := tx.Create(&c).Error; err != nil {
					return fmt.Errorf("seed comment: %w", err)
				}
				res.Comments++
			}
		}
		return nil
	})
	return res, err
}

func uniqueTags(tags []models.Tag) []models.Tag {
	seen := map[uint]bool{}
	out := tags[:0]
	for _, t := range tags {
		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}
