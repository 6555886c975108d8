package model

import (
	"encoding/json"
	"time"
)

// Content is an authored item tagged with any number of categories.
//
// MetadataTags is opaque to the server: whatever JSON the client sent is
// stored and returned verbatim.
type Content struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	ContentType  string          `json:"content_type"`
	DataURL      *string         `json:"data_url"`
	MetadataTags json.RawMessage `json:"metadata_tags"`
	UserID       string          `json:"user_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Categories   []CategoryRef   `json:"categories"`
}

// CategoryIDs returns the ids of the attached categories.
func (c *Content) CategoryIDs() []string {
	ids := make([]string, 0, len(c.Categories))
	for _, ref := range c.Categories {
		ids = append(ids, ref.ID)
	}
	return ids
}
