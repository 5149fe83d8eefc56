package library

import "strings"

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

var sortableFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"author":     true,
	"size":       true,
}

// ListOptions selects one page of the shelf.
type ListOptions struct {
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// Normalize replaces unknown or out-of-range values with defaults.
func (o ListOptions) Normalize() ListOptions {
	o.SortBy = strings.ToLower(strings.TrimSpace(o.SortBy))
	if !sortableFields[o.SortBy] {
		o.SortBy = "created_at"
	}
	o.SortOrder = strings.ToLower(strings.TrimSpace(o.SortOrder))
	if o.SortOrder != "asc" {
		o.SortOrder = "desc"
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	if o.PerPage > MaxPerPage {
		o.PerPage = MaxPerPage
	}
	return o
}

// Offset is the number of rows before the requested page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// OrderClause renders the sort as SQL. Only whitelisted columns reach it.
func (o ListOptions) OrderClause() string {
	n := o.Normalize()
	return n.SortBy + " " + strings.ToUpper(n.SortOrder)
}
