package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

var _ repository.ContentRepository = (*DB)(nil)

const contentColumns = `c.id, c.title, c.content_type, c.data_url, c.metadata_tags, c.user_id, c.created_at, c.updated_at`

// CreateContent inserts the content row and its category associations in one
// transaction. Every category id is resolved first; the first one that does
// not exist aborts the whole write with apperror.ErrNotFound.
func (db *DB) CreateContent(ctx context.Context, content *model.Content, categoryIDs []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	refs, err := resolveCategories(ctx, tx, categoryIDs)
	if err != nil {
		return err
	}

	ts := now()
	content.ID = newID()
	content.CreatedAt = ts
	content.UpdatedAt = ts

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contents (id, title, content_type, data_url, metadata_tags, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		content.ID,
		content.Title,
		content.ContentType,
		nullString(content.DataURL),
		nullJSON(content.MetadataTags),
		content.UserID,
		content.CreatedAt,
		content.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating content: %w", err)
	}

	if err := insertAssociations(ctx, tx, content.ID, refs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing content %s: %w", content.ID, err)
	}

	content.Categories = refs
	return nil
}

func (db *DB) GetContent(ctx context.Context, id string) (*model.Content, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM contents c WHERE c.id = ?`, id)
	content, err := scanContent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("content", id)
		}
		return nil, fmt.Errorf("sqlite: getting content %s: %w", id, err)
	}

	if err := attachCategories(ctx, db.conn, []*model.Content{content}); err != nil {
		return nil, err
	}
	return content, nil
}

// ListContents returns content newest first. A CategoryID filter joins
// through the association table.
func (db *DB) ListContents(ctx context.Context, filter repository.ContentFilter) ([]model.Content, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + contentColumns + ` FROM contents c`)
	if filter.CategoryID != "" {
		query.WriteString(` JOIN content_categories cc ON cc.content_id = c.id AND cc.category_id = ?`)
		args = append(args, filter.CategoryID)
	}
	query.WriteString(` ORDER BY c.created_at DESC, c.rowid DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contents: %w", err)
	}

	contents := make([]model.Content, 0)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning content row: %w", err)
		}
		contents = append(contents, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating contents: %w", err)
	}
	// Released before the category lookup so a single-connection pool
	// does not block on itself.
	rows.Close()

	ptrs := make([]*model.Content, len(contents))
	for i := range contents {
		ptrs[i] = &contents[i]
	}
	if err := attachCategories(ctx, db.conn, ptrs); err != nil {
		return nil, err
	}
	return contents, nil
}

// UpdateContent saves title, content_type, data_url and metadata_tags. When
// categoryIDs is non-nil the association set is replaced in the same
// transaction: delete all, then insert the new set. Any unknown category id
// rolls everything back.
func (db *DB) UpdateContent(ctx context.Context, content *model.Content, categoryIDs []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	content.UpdatedAt = now()
	result, err := tx.ExecContext(ctx,
		`UPDATE contents
		 SET title = ?, content_type = ?, data_url = ?, metadata_tags = ?, updated_at = ?
		 WHERE id = ?`,
		content.Title,
		content.ContentType,
		nullString(content.DataURL),
		nullJSON(content.MetadataTags),
		content.UpdatedAt,
		content.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating content %s: %w", content.ID, err)
	}
	if err := rowsAffectedOrNotFound(result, apperror.NotFound("content", content.ID)); err != nil {
		return err
	}

	if categoryIDs != nil {
		refs, err := resolveCategories(ctx, tx, categoryIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM content_categories WHERE content_id = ?`, content.ID); err != nil {
			return fmt.Errorf("sqlite: clearing categories of content %s: %w", content.ID, err)
		}
		if err := insertAssociations(ctx, tx, content.ID, refs); err != nil {
			return err
		}
	}

	if err := attachCategories(ctx, tx, []*model.Content{content}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing content %s: %w", content.ID, err)
	}
	return nil
}

// DeleteContent removes the content row. Association rows cascade; files
// and progress entries that referenced it keep their row with a NULL link.
func (db *DB) DeleteContent(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting content %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("content", id))
}

// querier is the subset of *sql.DB and *sql.Tx used by the helpers below.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// resolveCategories looks up each id in order, skipping duplicates, and
// fails on the first one that does not exist.
func resolveCategories(ctx context.Context, q querier, ids []string) ([]model.CategoryRef, error) {
	refs := make([]model.CategoryRef, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		ref := model.CategoryRef{ID: id}
		err := q.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, id).Scan(&ref.Name)
		if err != nil {
			if isNoRows(err) {
				return nil, apperror.NotFound("category", id)
			}
			return nil, fmt.Errorf("sqlite: resolving category %s: %w", id, err)
		}
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs, nil
}

func insertAssociations(ctx context.Context, q querier, contentID string, refs []model.CategoryRef) error {
	assignedAt := now()
	for _, ref := range refs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO content_categories (content_id, category_id, assigned_at) VALUES (?, ?, ?)`,
			contentID, ref.ID, assignedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: linking content %s to category %s: %w", contentID, ref.ID, err)
		}
	}
	return nil
}

// attachCategories loads the categories of every given content item with a
// single IN query.
func attachCategories(ctx context.Context, q querier, contents []*model.Content) error {
	if len(contents) == 0 {
		return nil
	}

	byID := make(map[string]*model.Content, len(contents))
	args := make([]any, 0, len(contents))
	for _, c := range contents {
		c.Categories = make([]model.CategoryRef, 0)
		byID[c.ID] = c
		args = append(args, c.ID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := q.QueryContext(ctx,
		`SELECT cc.content_id, cat.id, cat.name
		 FROM content_categories cc
		 JOIN categories cat ON cat.id = cc.category_id
		 WHERE cc.content_id IN (`+placeholders+`)
		 ORDER BY cat.name`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading content categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contentID string
			ref       model.CategoryRef
		)
		if err := rows.Scan(&contentID, &ref.ID, &ref.Name); err != nil {
			return fmt.Errorf("sqlite: scanning content category: %w", err)
		}
		if c, ok := byID[contentID]; ok {
			c.Categories = append(c.Categories, ref)
		}
	}
	return rows.Err()
}

func scanContent(s scanner) (*model.Content, error) {
	var (
		c       model.Content
		dataURL sql.NullString
		tags    sql.NullString
	)
	if err := s.Scan(
		&c.ID,
		&c.Title,
		&c.ContentType,
		&dataURL,
		&tags,
		&c.UserID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.DataURL = stringPtr(dataURL)
	if tags.Valid {
		c.MetadataTags = json.RawMessage(tags.String)
	}
	return &c, nil
}

// nullJSON stores absent or explicit-null metadata as SQL NULL.
func nullJSON(raw json.RawMessage) sql.NullString {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return sql.NullString{}
	}
	return sql.NullString{String: string(trimmed), Valid: true}
}

func sortRefs(refs []model.CategoryRef) {
	slices.SortFunc(refs, func(a, b model.CategoryRef) int {
		return strings.Compare(a.Name, b.Name)
	})
}
