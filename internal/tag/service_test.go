package tag

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

type mockTagRepo struct {
	findByIDFn     func(ctx context.Context, id, authorID string) (*model.Tag, error)
	listByAuthorFn func(ctx context.Context, authorID string) ([]*model.Tag, error)
	createFn       func(ctx context.Context, tag *model.Tag) error
	updateFn       func(ctx context.Context, tag *model.Tag) error
	deleteFn       func(ctx context.Context, id, authorID string) error
	autocompleteFn func(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error)
}

func (m *mockTagRepo) FindByID(ctx context.Context, id, authorID string) (*model.Tag, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id, authorID)
	}
	return nil, nil
}
func (m *mockTagRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Tag, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, authorID)
	}
	return nil, nil
}
func (m *mockTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	if m.createFn != nil {
		return m.createFn(ctx, tag)
	}
	return nil
}
func (m *mockTagRepo) Update(ctx context.Context, tag *model.Tag) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, tag)
	}
	return nil
}
func (m *mockTagRepo) Delete(ctx context.Context, id, authorID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, authorID)
	}
	return nil
}
func (m *mockTagRepo) Autocomplete(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error) {
	if m.autocompleteFn != nil {
		return m.autocompleteFn(ctx, authorID, query, limit)
	}
	return nil, nil
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr.Code
}

func TestCreateTag_NormalizesName(t *testing.T) {
	var created *model.Tag
	repo := &mockTagRepo{
		createFn: func(ctx context.Context, tag *model.Tag) error {
			created = tag
			return nil
		},
	}
	svc := NewService(repo)

	tag, err := svc.CreateTag(context.Background(), "u1", CreateTagInput{Name: "  Golang  "})
	if err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	if created == nil {
		t.Fatal("tag was not persisted")
	}
	if tag.Name != "golang" {
		t.Errorf("tag name should be lowercased and trimmed, got %q", tag.Name)
	}
	if tag.Color != defaultColor {
		t.Errorf("expected default color, got %q", tag.Color)
	}
}

func TestCreateTag_EmptyName(t *testing.T) {
	svc := NewService(&mockTagRepo{})

	_, err := svc.CreateTag(context.Background(), "u1", CreateTagInput{Name: "   "})
	if code := apiErrorCode(t, err); code != model.ErrCodeValidation {
		t.Errorf("expected %s, got %s", model.ErrCodeValidation, code)
	}
}

func TestCreateTag_DuplicateName(t *testing.T) {
	repo := &mockTagRepo{
		createFn: func(ctx context.Context, tag *model.Tag) error {
			return repository.ErrDuplicateName
		},
	}
	svc := NewService(repo)

	_, err := svc.CreateTag(context.Background(), "u1", CreateTagInput{Name: "golang"})
	if code := apiErrorCode(t, err); code != model.ErrCodeDuplicateName {
		t.Errorf("expected %s, got %s", model.ErrCodeDuplicateName, code)
	}
}

func TestUpdateTag_NotFound(t *testing.T) {
	svc := NewService(&mockTagRepo{})

	name := "rust"
	_, err := svc.UpdateTag(context.Background(), "u1", "missing", UpdateTagInput{Name: &name})
	if code := apiErrorCode(t, err); code != model.ErrCodeTagNotFound {
		t.Errorf("expected %s, got %s", model.ErrCodeTagNotFound, code)
	}
}

func TestDeleteTag_NotFound(t *testing.T) {
	repo := &mockTagRepo{
		deleteFn: func(ctx context.Context, id, authorID string) error {
			return repository.ErrNotFound
		},
	}
	svc := NewService(repo)

	err := svc.DeleteTag(context.Background(), "u1", "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeTagNotFound {
		t.Errorf("expected %s, got %s", model.ErrCodeTagNotFound, code)
	}
}

func TestAutocomplete_EmptyQueryReturnsEmpty(t *testing.T) {
	called := false
	repo := &mockTagRepo{
		autocompleteFn: func(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error) {
			called = true
			return nil, nil
		},
	}
	svc := NewService(repo)

	tags, err := svc.Autocomplete(context.Background(), "u1", "  ")
	if err != nil {
		t.Fatalf("Autocomplete failed: %v", err)
	}
	if called {
		t.Error("empty query should not hit the repository")
	}
	if len(tags) != 0 {
		t.Errorf("expected empty result, got %d", len(tags))
	}
}

func TestAutocomplete_PassesLimit(t *testing.T) {
	var gotLimit int
	repo := &mockTagRepo{
		autocompleteFn: func(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error) {
			gotLimit = limit
			return []*model.Tag{{ID: "t1", Name: "golang"}}, nil
		},
	}
	svc := NewService(repo)

	tags, err := svc.Autocomplete(context.Background(), "u1", "go")
	if err != nil {
		t.Fatalf("Autocomplete failed: %v", err)
	}
	if gotLimit != autocompleteLimit {
		t.Errorf("expected limit %d, got %d", autocompleteLimit, gotLimit)
	}
	if len(tags) != 1 {
		t.Errorf("expected 1 tag, got %d", len(tags))
	}
}
