package dto

// CategoryResponse represents a category and, for top-level entries, its children.
type CategoryResponse struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description,omitempty"`
	ParentID    *int64             `json:"parent_id"`
	IsActive    bool               `json:"is_active"`
	Children    []CategoryResponse `json:"children,omitempty"`
}
