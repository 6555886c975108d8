package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
	"github.com/sakif/content-hub/internal/storage"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// One in-memory fake implements every repository interface, the same way
// *sqlite.DB does. Each table is a map keyed by id; list methods sort the
// way the real queries do. The *Err fields simulate database failures.

var (
	_ repository.UserRepository     = (*fakeRepo)(nil)
	_ repository.CategoryRepository = (*fakeRepo)(nil)
	_ repository.ContentRepository  = (*fakeRepo)(nil)
	_ repository.FileRepository     = (*fakeRepo)(nil)
	_ repository.TargetRepository   = (*fakeRepo)(nil)
)

type fakeRepo struct {
	users      map[string]*model.User
	categories map[string]*model.Category
	contents   map[string]*model.Content
	files      map[string]*model.File
	targets    map[string]*model.Target
	progress   map[string]*model.TargetProgress

	nextID int
	clock  time.Time

	createUserErr  error
	createFileErr  error
	updateCatErr   error
	listContentErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      make(map[string]*model.User),
		categories: make(map[string]*model.Category),
		contents:   make(map[string]*model.Content),
		files:      make(map[string]*model.File),
		targets:    make(map[string]*model.Target),
		progress:   make(map[string]*model.TargetProgress),
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// tick returns a strictly increasing timestamp so "newest first" is stable.
func (f *fakeRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// ===== users =====

func (f *fakeRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", "username", user.Username)
		}
		if u.Email == user.Email {
			return apperror.Conflict("user", "email", user.Email)
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = f.tick()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeRepo) findUser(match func(*model.User) bool) (*model.User, error) {
	for _, u := range f.users {
		if match(u) {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeRepo) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == githubID })
}

// ===== categories =====

func (f *fakeRepo) CreateCategory(_ context.Context, c *model.Category) error {
	c.ID = f.id("cat")
	c.CreatedAt = f.tick()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	f.categories[c.ID] = &stored
	return nil
}

func (f *fakeRepo) GetCategory(_ context.Context, id string) (*model.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	result := *c
	return &result, nil
}

func (f *fakeRepo) GetCategoryByName(_ context.Context, name string) (*model.Category, error) {
	for _, c := range f.categories {
		if c.Name == name {
			result := *c
			return &result, nil
		}
	}
	return nil, apperror.NotFoundMessage("category not found")
}

func (f *fakeRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	return f.sortedCategories(func(*model.Category) bool { return true }), nil
}

func (f *fakeRepo) ListChildCategories(_ context.Context, parentID string) ([]model.Category, error) {
	return f.sortedCategories(func(c *model.Category) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}), nil
}

func (f *fakeRepo) sortedCategories(keep func(*model.Category) bool) []model.Category {
	result := make([]model.Category, 0)
	for _, c := range f.categories {
		if keep(c) {
			result = append(result, *c)
		}
	}
	slices.SortFunc(result, func(a, b model.Category) int { return strings.Compare(a.Name, b.Name) })
	return result
}

func (f *fakeRepo) UpdateCategory(_ context.Context, c *model.Category) error {
	if f.updateCatErr != nil {
		return f.updateCatErr
	}
	if _, ok := f.categories[c.ID]; !ok {
		return apperror.NotFound("category", c.ID)
	}
	c.UpdatedAt = f.tick()
	stored := *c
	f.categories[c.ID] = &stored
	return nil
}

func (f *fakeRepo) DeleteCategory(_ context.Context, id string) error {
	if _, ok := f.categories[id]; !ok {
		return apperror.NotFound("category", id)
	}
	delete(f.categories, id)
	for _, c := range f.categories {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
		}
	}
	for _, content := range f.contents {
		content.Categories = slices.DeleteFunc(content.Categories, func(r model.CategoryRef) bool {
			return r.ID == id
		})
	}
	return nil
}

// ===== contents =====

func (f *fakeRepo) resolveRefs(ids []string) ([]model.CategoryRef, error) {
	refs := make([]model.CategoryRef, 0, len(ids))
	for _, id := range ids {
		c, ok := f.categories[id]
		if !ok {
			return nil, apperror.NotFound("category", id)
		}
		refs = append(refs, model.CategoryRef{ID: c.ID, Name: c.Name})
	}
	return refs, nil
}

func (f *fakeRepo) CreateContent(_ context.Context, c *model.Content, categoryIDs []string) error {
	refs, err := f.resolveRefs(categoryIDs)
	if err != nil {
		return err
	}
	c.ID = f.id("content")
	c.CreatedAt = f.tick()
	c.UpdatedAt = c.CreatedAt
	c.Categories = refs
	stored := *c
	f.contents[c.ID] = &stored
	return nil
}

func (f *fakeRepo) GetContent(_ context.Context, id string) (*model.Content, error) {
	c, ok := f.contents[id]
	if !ok {
		return nil, apperror.NotFound("content", id)
	}
	result := *c
	return &result, nil
}

func (f *fakeRepo) ListContents(_ context.Context, filter repository.ContentFilter) ([]model.Content, error) {
	if f.listContentErr != nil {
		return nil, f.listContentErr
	}
	result := make([]model.Content, 0)
	for _, c := range f.contents {
		if filter.CategoryID != "" && !slices.Contains(c.CategoryIDs(), filter.CategoryID) {
			continue
		}
		result = append(result, *c)
	}
	slices.SortFunc(result, func(a, b model.Content) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if filter.Offset >= len(result) {
		return []model.Content{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (f *fakeRepo) UpdateContent(_ context.Context, c *model.Content, categoryIDs []string) error {
	if _, ok := f.contents[c.ID]; !ok {
		return apperror.NotFound("content", c.ID)
	}
	if categoryIDs != nil {
		refs, err := f.resolveRefs(categoryIDs)
		if err != nil {
			return err
		}
		c.Categories = refs
	}
	c.UpdatedAt = f.tick()
	stored := *c
	f.contents[c.ID] = &stored
	return nil
}

func (f *fakeRepo) DeleteContent(_ context.Context, id string) error {
	if _, ok := f.contents[id]; !ok {
		return apperror.NotFound("content", id)
	}
	delete(f.contents, id)
	return nil
}

// ===== files =====

func (f *fakeRepo) CreateFile(_ context.Context, file *model.File) error {
	if f.createFileErr != nil {
		return f.createFileErr
	}
	if file.ID == "" {
		file.ID = f.id("file")
	}
	file.UploadedAt = f.tick()
	file.UpdatedAt = file.UploadedAt
	stored := *file
	f.files[file.ID] = &stored
	return nil
}

func (f *fakeRepo) GetFile(_ context.Context, id string) (*model.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, apperror.NotFound("file", id)
	}
	result := *file
	return &result, nil
}

// ===== targets =====

func (f *fakeRepo) CreateTarget(_ context.Context, t *model.Target) error {
	t.ID = f.id("target")
	t.CreatedAt = f.tick()
	t.UpdatedAt = t.CreatedAt
	stored := *t
	f.targets[t.ID] = &stored
	return nil
}

func (f *fakeRepo) GetTarget(_ context.Context, id string) (*model.Target, error) {
	t, ok := f.targets[id]
	if !ok {
		return nil, apperror.NotFound("target", id)
	}
	result := *t
	return &result, nil
}

func (f *fakeRepo) GetTargetByName(_ context.Context, userID, name string) (*model.Target, error) {
	for _, t := range f.targets {
		if t.UserID == userID && t.Name == name {
			result := *t
			return &result, nil
		}
	}
	return nil, apperror.NotFoundMessage("target not found")
}

func (f *fakeRepo) ListTargetsByUser(_ context.Context, userID string) ([]model.Target, error) {
	result := make([]model.Target, 0)
	for _, t := range f.targets {
		if t.UserID == userID {
			result = append(result, *t)
		}
	}
	slices.SortFunc(result, func(a, b model.Target) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return result, nil
}

func (f *fakeRepo) UpdateTarget(_ context.Context, t *model.Target) error {
	if _, ok := f.targets[t.ID]; !ok {
		return apperror.NotFound("target", t.ID)
	}
	t.UpdatedAt = f.tick()
	stored := *t
	f.targets[t.ID] = &stored
	return nil
}

func (f *fakeRepo) DeleteTarget(_ context.Context, id string) error {
	if _, ok := f.targets[id]; !ok {
		return apperror.NotFound("target", id)
	}
	delete(f.targets, id)
	for pid, p := range f.progress {
		if p.TargetID == id {
			delete(f.progress, pid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateProgress(_ context.Context, p *model.TargetProgress) error {
	p.ID = f.id("progress")
	p.CreatedAt = f.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	f.progress[p.ID] = &stored
	return nil
}

func (f *fakeRepo) GetProgress(_ context.Context, id string) (*model.TargetProgress, error) {
	p, ok := f.progress[id]
	if !ok {
		return nil, apperror.NotFound("progress", id)
	}
	result := *p
	return &result, nil
}

func (f *fakeRepo) ListProgress(_ context.Context, targetID string) ([]model.TargetProgress, error) {
	result := make([]model.TargetProgress, 0)
	for _, p := range f.progress {
		if p.TargetID == targetID {
			result = append(result, *p)
		}
	}
	slices.SortFunc(result, func(a, b model.TargetProgress) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return result, nil
}

func (f *fakeRepo) UpdateProgress(_ context.Context, p *model.TargetProgress) error {
	if _, ok := f.progress[p.ID]; !ok {
		return apperror.NotFound("progress", p.ID)
	}
	p.UpdatedAt = f.tick()
	stored := *p
	f.progress[p.ID] = &stored
	return nil
}

func (f *fakeRepo) DeleteProgress(_ context.Context, id string) error {
	if _, ok := f.progress[id]; !ok {
		return apperror.NotFound("progress", id)
	}
	delete(f.progress, id)
	return nil
}

// =========================================================================
// FAKE BLOB STORE
// =========================================================================

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

var _ storage.BlobStore = (*fakeBlobs)(nil)

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
	return nil
}

func (b *fakeBlobs) Open(_ context.Context, name string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, name)
	b.deleted = append(b.deleted, name)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

var errDatabaseDown = errors.New("database is locked")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ptr[T any](v T) *T {
	return &v
}
