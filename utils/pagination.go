package utils

import (
	"errors"
	"strconv"
	"strings"
)

// Page describes one page of a paginated listing.
type Page struct {
	Number         int   `json:"number"`
	NumPages       int   `json:"num_pages"`
	PerPage        int   `json:"per_page"`
	Count          int64 `json:"count"`
	HasNext        bool  `json:"has_next"`
	HasPrevious    bool  `json:"has_previous"`
	NextNumber     int   `json:"next_page_number,omitempty"`
	PreviousNumber int   `json:"previous_page_number,omitempty"`
}

// Offset is the number of rows preceding this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Paginate resolves the requested page number against count rows.
// A missing or non-integer page yields the first page; a number below 1 or past the end (however large) yields the last page.
// An empty listing still has one (empty) page.
func Paginate(count int64, perPage int, requested string) Page {
	if perPage <= 0 {
		perPage = 1
	}
	numPages := 1
	if count > 0 {
		numPages = int((count + int64(perPage) - 1) / int64(perPage))
	}

	number, err := strconv.Atoi(strings.TrimSpace(requested))
	switch {
	case errors.Is(err, strconv.ErrRange):
		number = numPages
	case err != nil:
		number = 1
	case number < 1 || number > numPages:
		number = numPages
	}

	p := Page{
		Number:      number,
		NumPages:    numPages,
		PerPage:     perPage,
		Count:       count,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}
	if p.HasNext {
		p.NextNumber = number + 1
	}
	if p.HasPrevious {
		p.PreviousNumber = number - 1
	}
	return p
}
