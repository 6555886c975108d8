package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

const MaxTargetNameLength = 200

// TargetService manages per-user targets and their progress logs.
//
// Every operation resolves the target by id alone and only then compares
// the owner: a missing target is 404, somebody else's target is 403.
// Filtering the lookup by owner would make both cases look the same.
type TargetService struct {
	targets  repository.TargetRepository
	contents repository.ContentRepository
	logger   *slog.Logger
}

func NewTargetService(
	targets repository.TargetRepository,
	contents repository.ContentRepository,
	logger *slog.Logger,
) *TargetService {
	return &TargetService{
		targets:  targets,
		contents: contents,
		logger:   logger,
	}
}

// TargetPatch is a partial target update.
type TargetPatch struct {
	Name        model.Optional[string]
	Description model.Optional[string]
}

func (p TargetPatch) Empty() bool {
	return !p.Name.Set && !p.Description.Set
}

// ProgressInput is the body of an add-progress request. AchievedAt is raw
// ISO-8601 text, parsed by ParseTimestamp.
type ProgressInput struct {
	Status     string
	Notes      string
	ContentID  *string
	AchievedAt *string
}

// ProgressPatch is a partial progress update.
type ProgressPatch struct {
	Status     model.Optional[string]
	Notes      model.Optional[string]
	ContentID  model.Optional[string]
	AchievedAt model.Optional[string]
}

func (p ProgressPatch) Empty() bool {
	return !p.Status.Set && !p.Notes.Set && !p.ContentID.Set && !p.AchievedAt.Set
}

// ===== targets =====

func (s *TargetService) Create(ctx context.Context, userID, name, description string) (*model.Target, error) {
	name, err := targetName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, userID, name, ""); err != nil {
		return nil, err
	}

	target := &model.Target{
		Name:        name,
		Description: strings.TrimSpace(description),
		UserID:      userID,
	}
	if err := s.targets.CreateTarget(ctx, target); err != nil {
		return nil, writeFailed("creating target", err)
	}

	s.logger.Info("target created",
		slog.String("id", target.ID),
		slog.String("user_id", userID),
	)
	return target, nil
}

// List returns the caller's own targets, newest first.
func (s *TargetService) List(ctx context.Context, userID string) ([]model.Target, error) {
	targets, err := s.targets.ListTargetsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	return targets, nil
}

func (s *TargetService) Get(ctx context.Context, userID, id string) (*model.Target, error) {
	return s.owned(ctx, userID, id, "access")
}

// Update applies patch. The boolean is false when the patch was empty.
func (s *TargetService) Update(ctx context.Context, userID, id string, patch TargetPatch) (*model.Target, bool, error) {
	target, err := s.owned(ctx, userID, id, "modify")
	if err != nil {
		return nil, false, err
	}
	if patch.Empty() {
		return target, false, nil
	}

	if patch.Name.Set {
		name, err := targetName(patch.Name.Value)
		if err != nil {
			return nil, false, err
		}
		if name != target.Name {
			if err := s.ensureNameFree(ctx, userID, name, id); err != nil {
				return nil, false, err
			}
		}
		target.Name = name
	}
	if patch.Description.Set {
		target.Description = strings.TrimSpace(patch.Description.Value)
	}

	if err := s.targets.UpdateTarget(ctx, target); err != nil {
		return nil, false, writeFailed("updating target", err)
	}

	s.logger.Info("target updated", slog.String("id", target.ID))
	return target, true, nil
}

// Delete removes the target together with its progress entries.
func (s *TargetService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id, "delete"); err != nil {
		return err
	}
	if err := s.targets.DeleteTarget(ctx, id); err != nil {
		return writeFailed("deleting target", err)
	}
	s.logger.Info("target deleted", slog.String("id", id))
	return nil
}

// ===== progress =====

func (s *TargetService) AddProgress(ctx context.Context, userID, targetID string, in ProgressInput) (*model.TargetProgress, error) {
	if _, err := s.owned(ctx, userID, targetID, "modify"); err != nil {
		return nil, err
	}

	status := strings.TrimSpace(in.Status)
	if status == "" {
		return nil, apperror.ValidationFailed("status", "progress status is required")
	}

	progress := &model.TargetProgress{
		TargetID: targetID,
		Status:   status,
		Notes:    strings.TrimSpace(in.Notes),
		UserID:   userID,
	}
	if in.AchievedAt != nil && strings.TrimSpace(*in.AchievedAt) != "" {
		at, err := parseAchievedAt(*in.AchievedAt)
		if err != nil {
			return nil, err
		}
		progress.AchievedAt = &at
	}
	if in.ContentID != nil && *in.ContentID != "" {
		if err := s.ensureContent(ctx, *in.ContentID); err != nil {
			return nil, err
		}
		progress.ContentID = in.ContentID
	}

	if err := s.targets.CreateProgress(ctx, progress); err != nil {
		return nil, writeFailed("adding progress", err)
	}

	s.logger.Info("progress added",
		slog.String("id", progress.ID),
		slog.String("target_id", targetID),
		slog.String("status", status),
	)
	return progress, nil
}

// ListProgress returns the target's progress log, newest first.
func (s *TargetService) ListProgress(ctx context.Context, userID, targetID string) ([]model.TargetProgress, error) {
	if _, err := s.owned(ctx, userID, targetID, "access"); err != nil {
		return nil, err
	}
	entries, err := s.targets.ListProgress(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("listing progress of %s: %w", targetID, err)
	}
	return entries, nil
}

func (s *TargetService) GetProgress(ctx context.Context, userID, targetID, progressID string) (*model.TargetProgress, error) {
	return s.ownedProgress(ctx, userID, targetID, progressID, "access")
}

// UpdateProgress applies patch. The boolean is false when the patch was
// empty. An explicit null clears content_id or achieved_at.
func (s *TargetService) UpdateProgress(
	ctx context.Context,
	userID, targetID, progressID string,
	patch ProgressPatch,
) (*model.TargetProgress, bool, error) {
	progress, err := s.ownedProgress(ctx, userID, targetID, progressID, "modify")
	if err != nil {
		return nil, false, err
	}
	if patch.Empty() {
		return progress, false, nil
	}

	if patch.Status.Set {
		status := strings.TrimSpace(patch.Status.Value)
		if status == "" {
			return nil, false, apperror.ValidationFailed("status", "progress status cannot be empty")
		}
		progress.Status = status
	}
	if patch.Notes.Set {
		progress.Notes = strings.TrimSpace(patch.Notes.Value)
	}
	if patch.AchievedAt.Set {
		if patch.AchievedAt.Null || strings.TrimSpace(patch.AchievedAt.Value) == "" {
			progress.AchievedAt = nil
		} else {
			at, err := parseAchievedAt(patch.AchievedAt.Value)
			if err != nil {
				return nil, false, err
			}
			progress.AchievedAt = &at
		}
	}
	if patch.ContentID.Set {
		if patch.ContentID.Null || patch.ContentID.Value == "" {
			progress.ContentID = nil
		} else {
			contentID := patch.ContentID.Value
			if err := s.ensureContent(ctx, contentID); err != nil {
				return nil, false, err
			}
			progress.ContentID = &contentID
		}
	}

	if err := s.targets.UpdateProgress(ctx, progress); err != nil {
		return nil, false, writeFailed("updating progress", err)
	}

	s.logger.Info("progress updated",
		slog.String("id", progress.ID),
		slog.String("target_id", targetID),
	)
	return progress, true, nil
}

func (s *TargetService) DeleteProgress(ctx context.Context, userID, targetID, progressID string) error {
	if _, err := s.ownedProgress(ctx, userID, targetID, progressID, "delete"); err != nil {
		return err
	}
	if err := s.targets.DeleteProgress(ctx, progressID); err != nil {
		return writeFailed("deleting progress", err)
	}
	s.logger.Info("progress deleted",
		slog.String("id", progressID),
		slog.String("target_id", targetID),
	)
	return nil
}

// ===== helpers =====

// owned loads the target and checks that userID owns it. verb only shapes
// the Forbidden message.
func (s *TargetService) owned(ctx context.Context, userID, id, verb string) (*model.Target, error) {
	target, err := s.targets.GetTarget(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFoundMessage("target not found")
		}
		return nil, fmt.Errorf("loading target %s: %w", id, err)
	}
	if target.UserID != userID {
		return nil, apperror.Forbidden(fmt.Sprintf("you are not allowed to %s this target", verb))
	}
	return target, nil
}

// ownedProgress checks the target first, then that the entry belongs to it.
// An entry filed under a different target is reported as not found.
func (s *TargetService) ownedProgress(
	ctx context.Context,
	userID, targetID, progressID, verb string,
) (*model.TargetProgress, error) {
	if _, err := s.owned(ctx, userID, targetID, verb); err != nil {
		return nil, err
	}
	progress, err := s.targets.GetProgress(ctx, progressID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFoundMessage("progress entry not found")
		}
		return nil, fmt.Errorf("loading progress %s: %w", progressID, err)
	}
	if progress.TargetID != targetID {
		return nil, apperror.NotFoundMessage("progress entry not found")
	}
	return progress, nil
}

func (s *TargetService) ensureNameFree(ctx context.Context, userID, name, selfID string) error {
	existing, err := s.targets.GetTargetByName(ctx, userID, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperror.Conflict("target", "name", name)
	case err == nil, isNotFound(err):
		return nil
	default:
		return fmt.Errorf("checking target name: %w", err)
	}
}

func (s *TargetService) ensureContent(ctx context.Context, contentID string) error {
	if _, err := s.contents.GetContent(ctx, contentID); err != nil {
		return err
	}
	return nil
}

func targetName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperror.ValidationFailed("name", "target name is required")
	}
	if len(name) > MaxTargetNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("target name must be %d characters or less", MaxTargetNameLength))
	}
	return name, nil
}

func parseAchievedAt(raw string) (time.Time, error) {
	at, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("achieved_at",
			"achieved_at must be an ISO 8601 timestamp (YYYY-MM-DDTHH:MM:SSZ or YYYY-MM-DDTHH:MM:SS+00:00)")
	}
	return at, nil
}

// Layouts accepted by ParseTimestamp. Fractional seconds after the seconds
// field are accepted by time.Parse even when the layout omits them.
var (
	zonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05-07",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// ParseTimestamp parses ISO-8601 text leniently and returns it in UTC.
//
//	2024-05-01T10:00:00Z           trailing Z
//	2024-05-01T10:00:00.250+07:00  offset, fractional seconds
//	2024-05-01T10:00:00            no zone, read as UTC
//	2024-05-01                     date only, midnight UTC
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if n := len(s); n > 0 && (s[n-1] == 'Z' || s[n-1] == 'z') {
		s = s[:n-1] + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unrecognized format", raw)
}
