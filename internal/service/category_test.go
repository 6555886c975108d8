package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
)

func newTestCategoryService(t *testing.T) (*CategoryService, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewCategoryService(repo, testLogger()), repo
}

func mustCreateCategory(t *testing.T, svc *CategoryService, name string, parentID *string) *model.Category {
	t.Helper()
	c, err := svc.Create(context.Background(), CategoryInput{Name: name, ParentID: parentID})
	if err != nil {
		t.Fatalf("setup: Create(%q) error = %v", name, err)
	}
	return c
}

// =========================================================================
// CREATE
// =========================================================================

func TestCategoryCreate(t *testing.T) {
	svc, _ := newTestCategoryService(t)
	ctx := context.Background()

	tech := mustCreateCategory(t, svc, " Tech ", nil)
	if tech.Name != "Tech" {
		t.Errorf("Name = %q, want trimmed %q", tech.Name, "Tech")
	}
	if tech.ParentID != nil {
		t.Errorf("ParentID = %v, want nil", *tech.ParentID)
	}

	child := mustCreateCategory(t, svc, "Go", &tech.ID)
	if child.ParentID == nil || *child.ParentID != tech.ID {
		t.Errorf("ParentID = %v, want %q", child.ParentID, tech.ID)
	}

	t.Run("duplicate name", func(t *testing.T) {
		_, err := svc.Create(ctx, CategoryInput{Name: "Tech"})
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.Create(ctx, CategoryInput{Name: "Orphan", ParentID: ptr("nope")})
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("empty parent means top level", func(t *testing.T) {
		c, err := svc.Create(ctx, CategoryInput{Name: "Top", ParentID: ptr("")})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if c.ParentID != nil {
			t.Errorf("ParentID = %q, want nil", *c.ParentID)
		}
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := svc.Create(ctx, CategoryInput{Name: "   "})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("error = %v, want ErrValidation", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := svc.Create(ctx, CategoryInput{Name: strings.Repeat("x", MaxCategoryNameLength+1)})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("error = %v, want ErrValidation", err)
		}
	})
}

// =========================================================================
// GET / LIST
// =========================================================================

func TestCategoryGet_IncludesChildren(t *testing.T) {
	svc, _ := newTestCategoryService(t)

	tech := mustCreateCategory(t, svc, "Tech", nil)
	mustCreateCategory(t, svc, "Rust", &tech.ID)
	mustCreateCategory(t, svc, "Go", &tech.ID)
	mustCreateCategory(t, svc, "Cooking", nil)

	got, err := svc.Get(context.Background(), tech.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(got.Children))
	}
	if got.Children[0].Name != "Go" || got.Children[1].Name != "Rust" {
		t.Errorf("children = %q, %q; want Go, Rust", got.Children[0].Name, got.Children[1].Name)
	}

	leaf, err := svc.Get(context.Background(), got.Children[0].ID)
	if err != nil {
		t.Fatalf("Get(leaf) error = %v", err)
	}
	if leaf.Children == nil || len(leaf.Children) != 0 {
		t.Errorf("leaf children = %#v, want empty non-nil slice", leaf.Children)
	}

	_, err = svc.Get(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCategoryList_OrderedByName(t *testing.T) {
	svc, _ := newTestCategoryService(t)
	for _, name := range []string{"b", "c", "a"} {
		mustCreateCategory(t, svc, name, nil)
	}

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var names []string
	for _, c := range list {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Errorf("names = %v, want [a b c]", names)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestCategoryUpdate(t *testing.T) {
	svc, repo := newTestCategoryService(t)
	ctx := context.Background()

	tech := mustCreateCategory(t, svc, "Tech", nil)
	other := mustCreateCategory(t, svc, "Other", nil)
	child := mustCreateCategory(t, svc, "Go", &tech.ID)

	t.Run("rename to own name is not a conflict", func(t *testing.T) {
		_, err := svc.Update(ctx, tech.ID, CategoryPatch{Name: model.Some("Tech")})
		if err != nil {
			t.Errorf("Update() error = %v", err)
		}
	})

	t.Run("rename to taken name", func(t *testing.T) {
		_, err := svc.Update(ctx, tech.ID, CategoryPatch{Name: model.Some("Other")})
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
	})

	t.Run("self parent", func(t *testing.T) {
		_, err := svc.Update(ctx, tech.ID, CategoryPatch{ParentID: model.Some(tech.ID)})
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
			t.Fatalf("error = %v, want ErrValidation", err)
		}
		if appErr.Field != "parent_id" {
			t.Errorf("Field = %q, want parent_id", appErr.Field)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.Update(ctx, tech.ID, CategoryPatch{ParentID: model.Some("nope")})
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("reparent then clear with null", func(t *testing.T) {
		moved, err := svc.Update(ctx, child.ID, CategoryPatch{ParentID: model.Some(other.ID)})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if moved.ParentID == nil || *moved.ParentID != other.ID {
			t.Errorf("ParentID = %v, want %q", moved.ParentID, other.ID)
		}

		top, err := svc.Update(ctx, child.ID, CategoryPatch{ParentID: model.Null[string]()})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if top.ParentID != nil {
			t.Errorf("ParentID = %q, want nil", *top.ParentID)
		}
	})

	t.Run("description only leaves name alone", func(t *testing.T) {
		got, err := svc.Update(ctx, tech.ID, CategoryPatch{Description: model.Some("all things tech")})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got.Name != "Tech" || got.Description != "all things tech" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		repo.updateCatErr = errDatabaseDown
		defer func() { repo.updateCatErr = nil }()

		_, err := svc.Update(ctx, tech.ID, CategoryPatch{Description: model.Some("x")})
		if !errors.Is(err, apperror.ErrStorage) {
			t.Errorf("error = %v, want ErrStorage", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := svc.Update(ctx, "missing", CategoryPatch{})
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

// =========================================================================
// DELETE
// =========================================================================

func TestCategoryDelete_ChildrenBecomeTopLevel(t *testing.T) {
	svc, repo := newTestCategoryService(t)
	ctx := context.Background()

	tech := mustCreateCategory(t, svc, "Tech", nil)
	child := mustCreateCategory(t, svc, "Go", &tech.ID)

	if err := svc.Delete(ctx, tech.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if repo.categories[child.ID].ParentID != nil {
		t.Error("child still points at the deleted parent")
	}

	if err := svc.Delete(ctx, tech.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
