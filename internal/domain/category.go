package domain

import "time"

// Category classifies tickets. Sub-categories point at a top-level parent.
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	ParentID    *int64
	IsActive    bool
	Children    []Category
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsTopLevel reports whether the category has no parent.
func (c *Category) IsTopLevel() bool {
	return c.ParentID == nil
}
