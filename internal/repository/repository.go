// Package repository declares the storage interfaces the service layer depends on.
// The sqlite subpackage is the production implementation.
package repository

import (
	"context"

	"github.com/sakif/content-hub/internal/model"
)

// ContentFilter narrows a content listing. Zero values mean "no filter";
// Limit <= 0 returns every row.
type ContentFilter struct {
	CategoryID string
	Limit      int
	Offset     int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListChildCategories(ctx context.Context, parentID string) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// ContentRepository writes a content row and its category associations in
// a single transaction. A category id that does not exist aborts the write
// with apperror.ErrNotFound and nothing is persisted.
type ContentRepository interface {
	CreateContent(ctx context.Context, content *model.Content, categoryIDs []string) error
	GetContent(ctx context.Context, id string) (*model.Content, error)
	ListContents(ctx context.Context, filter ContentFilter) ([]model.Content, error)
	// UpdateContent saves the scalar fields. When categoryIDs is non-nil the
	// association set is replaced by it (an empty slice clears it).
	UpdateContent(ctx context.Context, content *model.Content, categoryIDs []string) error
	DeleteContent(ctx context.Context, id string) error
}

type FileRepository interface {
	CreateFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, id string) (*model.File, error)
}

type TargetRepository interface {
	CreateTarget(ctx context.Context, target *model.Target) error
	GetTarget(ctx context.Context, id string) (*model.Target, error)
	GetTargetByName(ctx context.Context, userID, name string) (*model.Target, error)
	ListTargetsByUser(ctx context.Context, userID string) ([]model.Target, error)
	UpdateTarget(ctx context.Context, target *model.Target) error
	DeleteTarget(ctx context.Context, id string) error

	CreateProgress(ctx context.Context, progress *model.TargetProgress) error
	GetProgress(ctx context.Context, id string) (*model.TargetProgress, error)
	ListProgress(ctx context.Context, targetID string) ([]model.TargetProgress, error)
	UpdateProgress(ctx context.Context, progress *model.TargetProgress) error
	DeleteProgress(ctx context.Context, id string) error
}
