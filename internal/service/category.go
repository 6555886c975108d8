package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

const MaxCategoryNameLength = 100

// CategoryService manages the category tree.
//
// The tree is flat in storage: a category points at its parent and children
// are found by querying for that parent. Only a direct self-parent is
// rejected; longer cycles are not detected.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
}

func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		logger: logger,
	}
}

// CategoryInput is the body of a create request.
type CategoryInput struct {
	Name        string
	Description string
	ParentID    *string
}

// CategoryPatch is a partial update. Unset fields are left alone; an explicit
// null (or empty) parent_id makes the category top-level.
type CategoryPatch struct {
	Name        model.Optional[string]
	Description model.Optional[string]
	ParentID    model.Optional[string]
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	name, err := categoryName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	category := &model.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	}
	if in.ParentID != nil && *in.ParentID != "" {
		if err := s.ensureParent(ctx, *in.ParentID); err != nil {
			return nil, err
		}
		category.ParentID = in.ParentID
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, writeFailed("creating category", err)
	}

	s.logger.Info("category created",
		slog.String("id", category.ID),
		slog.String("name", category.Name),
	)
	return category, nil
}

// Get returns the category with its direct children attached.
func (s *CategoryService) Get(ctx context.Context, id string) (*model.CategoryDetail, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	children, err := s.repo.ListChildCategories(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", id, err)
	}
	if children == nil {
		children = []model.Category{}
	}
	return &model.CategoryDetail{Category: *category, Children: children}, nil
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, patch CategoryPatch) (*model.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name.Set {
		name, err := categoryName(patch.Name.Value)
		if err != nil {
			return nil, err
		}
		if name != category.Name {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
		}
		category.Name = name
	}

	if patch.Description.Set {
		category.Description = strings.TrimSpace(patch.Description.Value)
	}

	if patch.ParentID.Set {
		parentID := patch.ParentID.Value
		switch {
		case patch.ParentID.Null || parentID == "":
			category.ParentID = nil
		case parentID == id:
			return nil, apperror.ValidationFailed("parent_id", "a category cannot be its own parent")
		default:
			if err := s.ensureParent(ctx, parentID); err != nil {
				return nil, err
			}
			category.ParentID = &parentID
		}
	}

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, writeFailed("updating category", err)
	}

	s.logger.Info("category updated",
		slog.String("id", category.ID),
		slog.String("name", category.Name),
	)
	return category, nil
}

// Delete removes the category. Its children become top-level and its
// content associations disappear; the content itself is untouched.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return writeFailed("deleting category", err)
	}
	s.logger.Info("category deleted", slog.String("id", id))
	return nil
}

func categoryName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperror.ValidationFailed("name", "category name is required")
	}
	if len(name) > MaxCategoryNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("category name must be %d characters or less", MaxCategoryNameLength))
	}
	return name, nil
}

// ensureNameFree fails with a Conflict when another category (not selfID)
// already uses name.
func (s *CategoryService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.GetCategoryByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperror.Conflict("category", "name", name)
	case err == nil, isNotFound(err):
		return nil
	default:
		return fmt.Errorf("checking category name: %w", err)
	}
}

func (s *CategoryService) ensureParent(ctx context.Context, parentID string) error {
	if _, err := s.repo.GetCategory(ctx, parentID); err != nil {
		if isNotFound(err) {
			return apperror.NotFound("parent category", parentID)
		}
		return fmt.Errorf("resolving parent %s: %w", parentID, err)
	}
	return nil
}
