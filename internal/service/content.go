package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

// ContentService manages content items and their category associations.
//
// Category ids are resolved by the repository inside the same transaction
// that writes the content row, so an unknown id leaves nothing behind.
type ContentService struct {
	repo   repository.ContentRepository
	logger *slog.Logger
}

func NewContentService(repo repository.ContentRepository, logger *slog.Logger) *ContentService {
	return &ContentService{
		repo:   repo,
		logger: logger,
	}
}

// ContentInput is the body of a create request.
type ContentInput struct {
	Title        string
	ContentType  string
	DataURL      *string
	MetadataTags json.RawMessage
	CategoryIDs  []string
}

// ContentPatch is a partial metadata update. A present category_ids replaces
// the whole association set; null or [] clears it.
type ContentPatch struct {
	Title        model.Optional[string]
	ContentType  model.Optional[string]
	DataURL      model.Optional[string]
	MetadataTags model.Optional[json.RawMessage]
	CategoryIDs  model.Optional[[]string]
}

// Empty reports whether the patch carries no field at all.
func (p ContentPatch) Empty() bool {
	return !p.Title.Set && !p.ContentType.Set && !p.DataURL.Set &&
		!p.MetadataTags.Set && !p.CategoryIDs.Set
}

func (s *ContentService) Create(ctx context.Context, userID string, in ContentInput) (*model.Content, error) {
	title := strings.TrimSpace(in.Title)
	contentType := strings.TrimSpace(in.ContentType)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if contentType == "" {
		return nil, apperror.ValidationFailed("content_type", "content_type is required")
	}

	content := &model.Content{
		Title:        title,
		ContentType:  contentType,
		DataURL:      in.DataURL,
		MetadataTags: in.MetadataTags,
		UserID:       userID,
	}
	if err := s.repo.CreateContent(ctx, content, in.CategoryIDs); err != nil {
		return nil, writeFailed("creating content", err)
	}

	s.logger.Info("content created",
		slog.String("id", content.ID),
		slog.String("user_id", userID),
		slog.Int("categories", len(content.Categories)),
	)
	return content, nil
}

func (s *ContentService) Get(ctx context.Context, id string) (*model.Content, error) {
	return s.repo.GetContent(ctx, id)
}

// List returns content newest first, optionally only that tagged with
// categoryID. A zero limit returns every row.
func (s *ContentService) List(ctx context.Context, categoryID string, limit, offset int) ([]model.Content, error) {
	limit, offset = clampPage(limit, offset)
	contents, err := s.repo.ListContents(ctx, repository.ContentFilter{
		CategoryID: strings.TrimSpace(categoryID),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	return contents, nil
}

// UpdateMetadata applies patch. The boolean is false when the patch was
// empty and nothing was written.
func (s *ContentService) UpdateMetadata(ctx context.Context, id string, patch ContentPatch) (*model.Content, bool, error) {
	content, err := s.repo.GetContent(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if patch.Empty() {
		return content, false, nil
	}

	if patch.Title.Set {
		title := strings.TrimSpace(patch.Title.Value)
		if title == "" {
			return nil, false, apperror.ValidationFailed("title", "title cannot be empty")
		}
		content.Title = title
	}
	if patch.ContentType.Set {
		contentType := strings.TrimSpace(patch.ContentType.Value)
		if contentType == "" {
			return nil, false, apperror.ValidationFailed("content_type", "content_type cannot be empty")
		}
		content.ContentType = contentType
	}
	if patch.DataURL.Set {
		if patch.DataURL.Null {
			content.DataURL = nil
		} else {
			dataURL := patch.DataURL.Value
			content.DataURL = &dataURL
		}
	}
	if patch.MetadataTags.Set {
		content.MetadataTags = patch.MetadataTags.Value
	}

	// nil keeps the current associations; a non-nil slice replaces them.
	var categoryIDs []string
	if patch.CategoryIDs.Set {
		categoryIDs = patch.CategoryIDs.Value
		if categoryIDs == nil {
			categoryIDs = []string{}
		}
	}

	if err := s.repo.UpdateContent(ctx, content, categoryIDs); err != nil {
		return nil, false, writeFailed("updating content", err)
	}

	s.logger.Info("content updated",
		slog.String("id", content.ID),
		slog.Bool("categories_replaced", categoryIDs != nil),
	)
	return content, true, nil
}

// Delete removes the content. Files and progress entries that referenced it
// keep existing with a null content_id.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteContent(ctx, id); err != nil {
		return writeFailed("deleting content", err)
	}
	s.logger.Info("content deleted", slog.String("id", id))
	return nil
}
