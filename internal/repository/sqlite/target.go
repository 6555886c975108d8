package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

var _ repository.TargetRepository = (*DB)(nil)

const (
	targetColumns   = `id, name, description, user_id, created_at, updated_at`
	progressColumns = `id, target_id, content_id, status, notes, achieved_at, user_id, created_at, updated_at`
)

// CreateTarget inserts a target. Names are unique per user; a clash is
// reported as apperror.ErrConflict.
func (db *DB) CreateTarget(ctx context.Context, target *model.Target) error {
	ts := now()
	target.ID = newID()
	target.CreatedAt = ts
	target.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO targets (`+targetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		target.ID,
		target.Name,
		target.Description,
		target.UserID,
		target.CreatedAt,
		target.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("target", "name", target.Name)
		}
		return fmt.Errorf("sqlite: creating target: %w", err)
	}
	return nil
}

// GetTarget looks a target up by id only. Ownership is the caller's check.
func (db *DB) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("target", id)
		}
		return nil, fmt.Errorf("sqlite: getting target %s: %w", id, err)
	}
	return t, nil
}

func (db *DB) GetTargetByName(ctx context.Context, userID, name string) (*model.Target, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE user_id = ? AND name = ?`, userID, name)
	t, err := scanTarget(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("target %q not found", name))
		}
		return nil, fmt.Errorf("sqlite: getting target by name: %w", err)
	}
	return t, nil
}

// ListTargetsByUser returns the user's targets, newest first.
func (db *DB) ListTargetsByUser(ctx context.Context, userID string) ([]model.Target, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing targets: %w", err)
	}
	defer rows.Close()

	targets := make([]model.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning target row: %w", err)
		}
		targets = append(targets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating targets: %w", err)
	}
	return targets, nil
}

func (db *DB) UpdateTarget(ctx context.Context, target *model.Target) error {
	target.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE targets SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		target.Name,
		target.Description,
		target.UpdatedAt,
		target.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("target", "name", target.Name)
		}
		return fmt.Errorf("sqlite: updating target %s: %w", target.ID, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("target", target.ID))
}

// DeleteTarget removes a target; its progress entries cascade.
func (db *DB) DeleteTarget(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting target %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("target", id))
}

// ===== progress entries =====

func (db *DB) CreateProgress(ctx context.Context, progress *model.TargetProgress) error {
	ts := now()
	progress.ID = newID()
	progress.CreatedAt = ts
	progress.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO target_progress (`+progressColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		progress.ID,
		progress.TargetID,
		nullString(progress.ContentID),
		progress.Status,
		progress.Notes,
		nullTime(progress.AchievedAt),
		progress.UserID,
		progress.CreatedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFoundMessage("target or content referenced by progress entry not found")
		}
		return fmt.Errorf("sqlite: creating progress for target %s: %w", progress.TargetID, err)
	}
	return nil
}

func (db *DB) GetProgress(ctx context.Context, id string) (*model.TargetProgress, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM target_progress WHERE id = ?`, id)
	p, err := scanProgress(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("progress entry", id)
		}
		return nil, fmt.Errorf("sqlite: getting progress %s: %w", id, err)
	}
	return p, nil
}

// ListProgress returns a target's progress log, newest first.
func (db *DB) ListProgress(ctx context.Context, targetID string) ([]model.TargetProgress, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM target_progress WHERE target_id = ?
		 ORDER BY created_at DESC, rowid DESC`, targetID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing progress: %w", err)
	}
	defer rows.Close()

	entries := make([]model.TargetProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning progress row: %w", err)
		}
		entries = append(entries, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating progress: %w", err)
	}
	return entries, nil
}

func (db *DB) UpdateProgress(ctx context.Context, progress *model.TargetProgress) error {
	progress.UpdatedAt = now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE target_progress
		 SET content_id = ?, status = ?, notes = ?, achieved_at = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(progress.ContentID),
		progress.Status,
		progress.Notes,
		nullTime(progress.AchievedAt),
		progress.UpdatedAt,
		progress.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) && progress.ContentID != nil {
			return apperror.NotFound("content", *progress.ContentID)
		}
		return fmt.Errorf("sqlite: updating progress %s: %w", progress.ID, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("progress entry", progress.ID))
}

func (db *DB) DeleteProgress(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM target_progress WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting progress %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(result, apperror.NotFound("progress entry", id))
}

func scanTarget(s scanner) (*model.Target, error) {
	var t model.Target
	if err := s.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.UserID,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanProgress(s scanner) (*model.TargetProgress, error) {
	var (
		p          model.TargetProgress
		contentID  sql.NullString
		achievedAt sql.NullTime
	)
	if err := s.Scan(
		&p.ID,
		&p.TargetID,
		&contentID,
		&p.Status,
		&p.Notes,
		&achievedAt,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ContentID = stringPtr(contentID)
	p.AchievedAt = timePtr(achievedAt)
	return &p, nil
}
