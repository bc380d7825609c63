package admin

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/myblog/utils"
)

// ErrInvalidLookup is returned for filter values that cannot be parsed.
var ErrInvalidLookup = errors.New("invalid lookup")

// Date filter choices for datetime list filters.
const (
	DateToday     = "today"
	DatePast7Days = "past_7_days"
	DateThisMonth = "this_month"
	DateThisYear  = "this_year"
)

// Query is one changelist request.
type Query struct {
	Params   url.Values
	Now      time.Time
	Location *time.Location
}

// ChangeList is one page of an admin listing.
type ChangeList struct {
	Page     utils.Page        `json:"page"`
	Search   string            `json:"q,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
	Ordering []string          `json:"ordering"`
}

// ChangeList filters, orders and paginates the model into dest, which must be a pointer to a slice.
func (m *ModelAdmin) ChangeList(db *gorm.DB, q Query, dest interface{}) (*ChangeList, error) {
	if q.Location == nil {
		q.Location = time.UTC
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}

	tx := db.Model(m.Model)
	cl := &ChangeList{Filters: map[string]string{}}

	var err error
	if tx, err = m.applyFilters(tx, q, cl); err != nil {
		return nil, err
	}
	cl.Search = strings.TrimSpace(q.Params.Get("q"))
	tx = m.applySearch(tx, cl.Search)

	var count int64
	if err := tx.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", m.Name, err)
	}
	cl.Page = utils.Paginate(count, m.perPage(), q.Params.Get("page"))

	cl.Ordering = m.ordering(q.Params.Get("o"))
	for _, o := range cl.Ordering {
		desc := strings.HasPrefix(o, "-")
		col := m.column(strings.TrimPrefix(o, "-"))
		if desc {
			col += " DESC"
		}
		tx = tx.Order(col)
	}
	tx = tx.Order(m.Table + ".id DESC")
	for _, p := range m.Preload {
		tx = tx.Preload(p)
	}
	if err := tx.Offset(cl.Page.Offset()).Limit(cl.Page.PerPage).Find(dest).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", m.Name, err)
	}
	return cl, nil
}

// applySearch requires every whitespace separated term to match at least one search field.
func (m *ModelAdmin) applySearch(tx *gorm.DB, search string) *gorm.DB {
	if search == "" || len(m.SearchFields) == 0 {
		return tx
	}
	for _, term := range strings.Fields(search) {
		like := "%" + strings.ToLower(term) + "%"
		clauses := make([]string, 0, len(m.SearchFields))
		args := make([]interface{}, 0, len(m.SearchFields))
		for _, name := range m.SearchFields {
			clauses = append(clauses, "LOWER("+m.column(name)+") LIKE ?")
			args = append(args, like)
		}
		tx = tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	return tx
}

func (m *ModelAdmin) applyFilters(tx *gorm.DB, q Query, cl *ChangeList) (*gorm.DB, error) {
	for _, name := range m.ListFilter {
		raw := strings.TrimSpace(q.Params.Get(name))
		if raw == "" {
			continue
		}
		f, _ := m.Field(name)
		col := m.column(name)
		switch f.Kind {
		case KindBool:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrInvalidLookup, name, raw)
			}
			tx = tx.Where(col+" = ?", v)
		case KindFK:
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrInvalidLookup, name, raw)
			}
			tx = tx.Where(col+" = ?", id)
		case KindChoice:
			if !contains(f.Choices, raw) {
				return nil, fmt.Errorf("%w: %s=%q", ErrInvalidLookup, name, raw)
			}
			tx = tx.Where(col+" = ?", raw)
		case KindTime:
			start, end, err := dateRange(raw, q.Now, q.Location)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q", ErrInvalidLookup, name, raw)
			}
			tx = tx.Where(col+" >= ? AND "+col+" < ?", start.UTC(), end.UTC())
		default:
			tx = tx.Where(col+" = ?", raw)
		}
		cl.Filters[name] = raw
	}

	if m.DateHierarchy == "" {
		return tx, nil
	}
	start, end, ok, err := m.hierarchyRange(q, cl)
	if err != nil {
		return nil, err
	}
	if ok {
		col := m.column(m.DateHierarchy)
		tx = tx.Where(col+" >= ? AND "+col+" < ?", start.UTC(), end.UTC())
	}
	return tx, nil
}

// hierarchyRange reads <field>__year, __month and __day. Month needs year and day needs month.
func (m *ModelAdmin) hierarchyRange(q Query, cl *ChangeList) (time.Time, time.Time, bool, error) {
	parts := make([]int, 0, 3)
	for _, unit := range []string{"year", "month", "day"} {
		key := m.DateHierarchy + "__" + unit
		raw := strings.TrimSpace(q.Params.Get(key))
		if raw == "" {
			break
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("%w: %s=%q", ErrInvalidLookup, key, raw)
		}
		parts = append(parts, n)
		cl.Filters[key] = raw
	}
	if len(parts) == 0 {
		return time.Time{}, time.Time{}, false, nil
	}

	year, month, day := parts[0], 1, 1
	if len(parts) > 1 {
		month = parts[1]
	}
	if len(parts) > 2 {
		day = parts[2]
	}
	start := time.Date(year, time.Month(month), day, 0, 0, 0, 0, q.Location)
	if start.Year() != year || int(start.Month()) != month || start.Day() != day {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%w: %s date %d-%d-%d", ErrInvalidLookup, m.DateHierarchy, year, month, day)
	}
	var end time.Time
	switch len(parts) {
	case 1:
		end = start.AddDate(1, 0, 0)
	case 2:
		end = start.AddDate(0, 1, 0)
	default:
		end = start.AddDate(0, 0, 1)
	}
	return start, end, true, nil
}

// dateRange resolves a date filter choice to a [start, end) interval.
func dateRange(choice string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)
	switch choice {
	case DateToday:
		return today, tomorrow, nil
	case DatePast7Days:
		return today.AddDate(0, 0, -7), tomorrow, nil
	case DateThisMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(0, 1, 0), nil
	case DateThisYear:
		first := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(1, 0, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown date filter %q", choice)
}

// ordering parses o (comma separated, "-" for descending), keeping only list_display fields.
// Falls back to the declared ordering when nothing valid is requested.
func (m *ModelAdmin) ordering(o string) []string {
	var out []string
	for _, item := range strings.Split(o, ",") {
		item = strings.TrimSpace(item)
		name := strings.TrimPrefix(item, "-")
		if name == "" || !contains(m.ListDisplay, name) {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		out = append(out, m.Ordering...)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
