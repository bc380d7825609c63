package admin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"

	"github.com/cppla/myblog/models"
)

// Kind tells the changelist how to parse filter values of a field.
type Kind string

const (
	KindText   Kind = "text"
	KindChoice Kind = "choice"
	KindBool   Kind = "bool"
	KindTime   Kind = "datetime"
	KindFK     Kind = "fk"
)

// Field maps an admin field name onto its column.
type Field struct {
	Name    string   `json:"name"`
	Column  string   `json:"-"`
	Kind    Kind     `json:"kind"`
	Choices []string `json:"choices,omitempty"`
}

// ModelAdmin declares how a model is listed, filtered, searched and edited.
type ModelAdmin struct {
	Name               string              `json:"name"`
	Table              string              `json:"-"`
	Model              interface{}         `json:"-"`
	Fields             []Field             `json:"fields"`
	ListDisplay        []string            `json:"list_display"`
	ListFilter         []string            `json:"list_filter"`
	SearchFields       []string            `json:"search_fields"`
	Ordering           []string            `json:"ordering"`
	DateHierarchy      string              `json:"date_hierarchy,omitempty"`
	PrepopulatedFields map[string][]string `json:"prepopulated_fields,omitempty"`
	RawIDFields        []string            `json:"raw_id_fields,omitempty"`
	Preload            []string            `json:"-"`
	PerPage            int                 `json:"list_per_page"`
}

const defaultPerPage = 100

// Field returns the field named name.
func (m *ModelAdmin) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (m *ModelAdmin) column(name string) string {
	f, ok := m.Field(name)
	if !ok {
		return ""
	}
	return m.Table + "." + f.Column
}

func (m *ModelAdmin) perPage() int {
	if m.PerPage > 0 {
		return m.PerPage
	}
	return defaultPerPage
}

// Prepopulate derives field from its source fields, slugified. Empty when field is not prepopulated.
func (m *ModelAdmin) Prepopulate(field string, values map[string]string) string {
	sources, ok := m.PrepopulatedFields[field]
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		if v := strings.TrimSpace(values[src]); v != "" {
			parts = append(parts, v)
		}
	}
	return slug.Make(strings.Join(parts, " "))
}

func (m *ModelAdmin) validate() error {
	for _, group := range [][]string{m.ListDisplay, m.ListFilter, m.SearchFields, m.RawIDFields} {
		for _, name := range group {
			if _, ok := m.Field(name); !ok {
				return fmt.Errorf("admin %s: unknown field %q", m.Name, name)
			}
		}
	}
	for _, o := range m.Ordering {
		if _, ok := m.Field(strings.TrimPrefix(o, "-")); !ok {
			return fmt.Errorf("admin %s: unknown ordering field %q", m.Name, o)
		}
	}
	if m.DateHierarchy != "" {
		if f, ok := m.Field(m.DateHierarchy); !ok || f.Kind != KindTime {
			return fmt.Errorf("admin %s: date_hierarchy %q is not a datetime field", m.Name, m.DateHierarchy)
		}
	}
	return nil
}

// Site is a registry of model admins keyed by name.
type Site struct {
	models map[string]*ModelAdmin
}

// NewSite creates an empty registry.
func NewSite() *Site {
	return &Site{models: map[string]*ModelAdmin{}}
}

// Register adds m, rejecting duplicates and declarations naming unknown fields.
func (s *Site) Register(m *ModelAdmin) error {
	if _, dup := s.models[m.Name]; dup {
		return fmt.Errorf("admin %s already registered", m.Name)
	}
	if err := m.validate(); err != nil {
		return err
	}
	s.models[m.Name] = m
	return nil
}

// Get looks up a registered admin.
func (s *Site) Get(name string) (*ModelAdmin, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Models lists registered admins sorted by name.
func (s *Site) Models() []*ModelAdmin {
	out := make([]*ModelAdmin, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PostAdmin lists posts for authoring.
func PostAdmin() *ModelAdmin {
	return &ModelAdmin{
		Name:  "posts",
		Table: "posts",
		Model: &models.Post{},
		Fields: []Field{
			{Name: "id", Column: "id", Kind: KindFK},
			{Name: "title", Column: "title", Kind: KindText},
			{Name: "slug", Column: "slug", Kind: KindText},
			{Name: "author", Column: "author_id", Kind: KindFK},
			{Name: "body", Column: "body", Kind: KindText},
			{Name: "publish", Column: "publish", Kind: KindTime},
			{Name: "created", Column: "created_at", Kind: KindTime},
			{Name: "updated", Column: "updated_at", Kind: KindTime},
			{Name: "status", Column: "status", Kind: KindChoice,
				Choices: []string{string(models.StatusDraft), string(models.StatusPublished)}},
		},
		ListDisplay:        []string{"title", "slug", "author", "publish", "status"},
		ListFilter:         []string{"status", "created", "author", "publish"},
		SearchFields:       []string{"title", "body"},
		Ordering:           []string{"status", "publish"},
		DateHierarchy:      "publish",
		PrepopulatedFields: map[string][]string{"slug": {"title"}},
		RawIDFields:        []string{"author"},
		Preload:            []string{"Author", "Tags"},
	}
}

// CommentAdmin lists comments for moderation.
func CommentAdmin() *ModelAdmin {
	return &ModelAdmin{
		Name:  "comments",
		Table: "comments",
		Model: &models.Comment{},
		Fields: []Field{
			{Name: "id", Column: "id", Kind: KindFK},
			{Name: "name", Column: "name", Kind: KindText},
			{Name: "email", Column: "email", Kind: KindText},
			{Name: "post", Column: "post_id", Kind: KindFK},
			{Name: "body", Column: "body", Kind: KindText},
			{Name: "created", Column: "created_at", Kind: KindTime},
			{Name: "updated", Column: "updated_at", Kind: KindTime},
			{Name: "active", Column: "active", Kind: KindBool},
		},
		ListDisplay:  []string{"name", "email", "post", "created", "active"},
		ListFilter:   []string{"active", "created", "updated"},
		SearchFields: []string{"name", "email", "body"},
		Ordering:     []string{"created"},
		Preload:      []string{"Post"},
	}
}

// DefaultSite registers the blog's post and comment admins.
func DefaultSite() *Site {
	s := NewSite()
	for _, m := range []*ModelAdmin{PostAdmin(), CommentAdmin()} {
		if err := s.Register(m); err != nil {
			panic(err)
		}
	}
	return s
}
