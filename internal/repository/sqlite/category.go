package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

var _ repository.CategoryRepository = (*DB)(nil)

const categoryColumns = `id, name, description, parent_id, created_at, updated_at`

// CreateCategory inserts a category. A parent_id that does not reference an
// existing row is reported as apperror.ErrNotFound, a taken name as
// apperror.ErrConflict.
func (db *DB) CreateCategory(ctx context.Context, category *model.Category) error {
	ts := now()
	category.ID = newID()
	category.CreatedAt = ts
	category.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.Name,
		category.Description,
		nullString(category.ParentID),
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return categoryWriteError(err, category, "creating")
	}
	return nil
}

func categoryWriteError(err error, category *model.Category, op string) error {
	switch {
	case isUniqueViolation(err):
		return apperror.Conflict("category", "name", category.Name)
	case isForeignKeyViolation(err) && category.ParentID != nil:
		return apperror.NotFound("parent category", *category.ParentID)
	default:
		return fmt.Errorf("sqlite: %s category: %w", op, err)
	}
}

func (db *DB) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlite: getting category %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("category %q not found", name))
		}
		return nil, fmt.Errorf("sqlite: getting category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	return db.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name`)
}

// ListChildCategories returns the direct children of parentID.
func (db *DB) ListChildCategories(ctx context.Context, parentID string) ([]model.Category, error) {
	return db.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE parent_id = ? ORDER BY name`, parentID)
}

func (db *DB) queryCategories(ctx context.Context, query string, args ...any) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

func (db *DB) UpdateCategory(ctx context.Context, category *model.Category) error {
	category.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE categories
		 SET name = ?, description = ?, parent_id = ?, updated_at = ?
		 WHERE id = ?`,
		category.Name,
		category.Description,
		nullString(category.ParentID),
		category.UpdatedAt,
		category.ID,
	)
	if err != nil {
		return categoryWriteError(err, category, "updating")
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("category", category.ID))
}

// DeleteCategory removes a category. The schema cascades its association
// rows and sets parent_id to NULL on its children.
func (db *DB) DeleteCategory(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting category %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("category", id))
}

func scanCategory(s scanner) (*model.Category, error) {
	var (
		c        model.Category
		parentID sql.NullString
	)
	if err := s.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&parentID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ParentID = stringPtr(parentID)
	return &c, nil
}
