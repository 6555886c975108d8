package model

import "time"

// Category is one node of the category tree. The tree is stored flat:
// ParentID points at another row and children are found by querying for it.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ParentID    *string   `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryDetail is a category with its direct children. Children is
// always a JSON array, empty for a leaf.
type CategoryDetail struct {
	Category
	Children []Category `json:"children"`
}

// CategoryRef is the short form of a category embedded in content responses.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
