package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/tmplregistry/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

const (
	ownerScm = "github.com:1:main"
	otherScm = "github.com:2:main"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestTemplate(name, version, scm string, labels ...string) *domain.Template {
	return domain.TemplateConfig{
		Name:        name,
		Version:     version,
		ScmURI:      scm,
		Maintainer:  "foo@bar.com",
		Description: "test template",
		TemplateURL: "http://foo.bar",
		Labels:      domain.NewLabelSet(labels...),
	}.Template(time.Now())
}

func createTestTemplate(t *testing.T, store Store, name, version string, labels ...string) *domain.Template {
	t.Helper()
	template := newTestTemplate(name, version, ownerScm, labels...)
	require.NoError(t, store.CreateTemplate(context.Background(), template))
	return template
}

func createTestVersion(t *testing.T, store Store, name, version string, labels ...string) *domain.Template {
	t.Helper()
	template := newTestTemplate(name, version, ownerScm, labels...)
	require.NoError(t, store.CreateTemplateVersion(context.Background(), template))
	return template
}

// =============================================================================
// Pipeline Tests
// =============================================================================

func TestCreatePipeline_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pipeline, err := domain.NewPipeline(123, ownerScm)
	require.NoError(t, err)
	require.NoError(t, store.CreatePipeline(ctx, pipeline))

	got, err := store.GetPipeline(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, int64(123), got.ID)
	assert.Equal(t, ownerScm, got.ScmURI)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreatePipeline_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pipeline, err := domain.NewPipeline(123, ownerScm)
	require.NoError(t, err)
	require.NoError(t, store.CreatePipeline(ctx, pipeline))

	err = store.CreatePipeline(ctx, pipeline)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGetPipeline_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetPipeline(context.Background(), 999)
	assert.True(t, IsNotFound(err))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetPipeline", storeErr.Op)
	assert.Equal(t, "999", storeErr.ID)
}

// =============================================================================
// Template Create Tests
// =============================================================================

func TestCreateTemplate_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	template := createTestTemplate(t, store, "template", "1.7", "stable", "beta")
	assert.NotZero(t, template.ID)

	got, err := store.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, "template", got.Name)
	assert.Equal(t, "1.7", got.Version)
	assert.Equal(t, ownerScm, got.ScmURI)
	assert.Equal(t, "foo@bar.com", got.Maintainer)
	assert.Equal(t, "test template", got.Description)
	assert.Equal(t, "http://foo.bar", got.TemplateURL)
	assert.Equal(t, []string{"beta", "stable"}, got.Labels.Slice())
	assert.WithinDuration(t, template.CreatedAt, got.CreatedAt, time.Second)
}

func TestCreateTemplate_NameAlreadyOwned(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "template", "1.0.0")

	// Another pipeline racing to claim the same name loses.
	err := store.CreateTemplate(ctx, newTestTemplate("template", "2.0.0", otherScm))
	assert.ErrorIs(t, err, ErrConflict)

	// The losing insert must not leave a partial version behind.
	_, err = store.FindTemplateExact(ctx, "template", "2.0.0")
	assert.True(t, IsNotFound(err))
}

func TestCreateTemplateVersion_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "template", "1.0.0")
	version := createTestVersion(t, store, "template", "1.1.0", "new")

	got, err := store.FindTemplateExact(ctx, "template", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, version.ID, got.ID)
	assert.Equal(t, []string{"new"}, got.Labels.Slice())
}

func TestCreateTemplateVersion_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "template", "1.0.0")

	err := store.CreateTemplateVersion(ctx, newTestTemplate("template", "1.0.0", ownerScm))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateTemplateVersion_NoFamily(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateTemplateVersion(context.Background(), newTestTemplate("template", "1.0.0", ownerScm))
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestCreateTemplateVersion_ForeignOwner(t *testing.T) {
	store := setupTestStore(t)

	createTestTemplate(t, store, "template", "1.0.0")

	err := store.CreateTemplateVersion(context.Background(), newTestTemplate("template", "2.0.0", otherScm))
	assert.ErrorIs(t, err, ErrConflict)
}

// =============================================================================
// Template Lookup Tests
// =============================================================================

func TestGetTemplate_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetTemplate(context.Background(), 12345)
	assert.True(t, IsNotFound(err))
}

func TestFindTemplateByName_ReturnsLatestVersion(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "template", "1.2.0")
	createTestVersion(t, store, "template", "1.10.0")
	createTestVersion(t, store, "template", "1.9")
	createTestTemplate(t, store, "other", "5.0.0")

	got, err := store.FindTemplateByName(ctx, "template")
	require.NoError(t, err)
	assert.Equal(t, "template", got.Name)
	assert.Equal(t, "1.10.0", got.Version)
}

func TestFindTemplateByName_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.FindTemplateByName(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestFindTemplateExact_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "template", "1.0.0")

	_, err := store.FindTemplateExact(ctx, "template", "1.0.1")
	assert.True(t, IsNotFound(err))

	_, err = store.FindTemplateExact(ctx, "other", "1.0.0")
	assert.True(t, IsNotFound(err))
}

// =============================================================================
// Label Update Tests
// =============================================================================

func TestUpdateTemplateLabels_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	template := createTestTemplate(t, store, "template", "1.0.0", "a")

	updated, err := store.UpdateTemplateLabels(ctx, template.ID, domain.NewLabelSet("a"), domain.NewLabelSet("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, updated.Labels.Slice())

	got, err := store.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Labels.Slice())
}

func TestUpdateTemplateLabels_FromEmpty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	template := createTestTemplate(t, store, "template", "1.0.0")

	updated, err := store.UpdateTemplateLabels(ctx, template.ID, domain.LabelSet{}, domain.NewLabelSet("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, updated.Labels.Slice())
}

func TestUpdateTemplateLabels_StaleExpected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	template := createTestTemplate(t, store, "template", "1.0.0", "a")

	// A concurrent publisher already merged "b".
	_, err := store.UpdateTemplateLabels(ctx, template.ID, domain.NewLabelSet("a"), domain.NewLabelSet("a", "b"))
	require.NoError(t, err)

	_, err = store.UpdateTemplateLabels(ctx, template.ID, domain.NewLabelSet("a"), domain.NewLabelSet("a", "c"))
	assert.True(t, IsConflict(err))

	got, err := store.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Labels.Slice(), "losing update must not overwrite")
}

func TestUpdateTemplateLabels_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.UpdateTemplateLabels(context.Background(), 999, domain.LabelSet{}, domain.NewLabelSet("x"))
	assert.True(t, IsNotFound(err))
}

// =============================================================================
// List Tests
// =============================================================================

func TestListTemplates_SortAndPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestTemplate(t, store, "first", "1.0.0")
	createTestTemplate(t, store, "second", "1.0.0")
	createTestTemplate(t, store, "third", "1.0.0")

	desc, err := store.ListTemplates(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, "third", desc[0].Name)
	assert.Equal(t, "first", desc[2].Name)

	asc, err := store.ListTemplates(ctx, ListOptions{Limit: 2, Sort: SortAscending})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "first", asc[0].Name)
	assert.Equal(t, "second", asc[1].Name)

	page2, err := store.ListTemplates(ctx, Page(2, 2, SortDescending))
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "first", page2[0].Name)

	count, err := store.CountTemplates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestListTemplates_EmptyResult(t *testing.T) {
	store := setupTestStore(t)

	templates, err := store.ListTemplates(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestListTemplates_OffsetBeyondData(t *testing.T) {
	store := setupTestStore(t)

	createTestTemplate(t, store, "template", "1.0.0")

	templates, err := store.ListTemplates(context.Background(), ListOptions{Limit: 10, Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestListOptions_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		input    ListOptions
		expected ListOptions
	}{
		{"defaults", ListOptions{}, ListOptions{Limit: 50, Sort: SortDescending}},
		{"caps limit", ListOptions{Limit: 5000}, ListOptions{Limit: 1000, Sort: SortDescending}},
		{"negative offset", ListOptions{Limit: 10, Offset: -5}, ListOptions{Limit: 10, Sort: SortDescending}},
		{"keeps ascending", ListOptions{Limit: 10, Sort: SortAscending}, ListOptions{Limit: 10, Sort: SortAscending}},
		{"unknown sort", ListOptions{Limit: 10, Sort: "sideways"}, ListOptions{Limit: 10, Sort: SortDescending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.input.Normalize())
		})
	}
}

func TestPage(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 50, Offset: 0, Sort: SortDescending}, Page(1, 50, SortDescending))
	assert.Equal(t, ListOptions{Limit: 20, Offset: 40, Sort: SortAscending}, Page(3, 20, SortAscending))
	assert.Equal(t, ListOptions{Limit: 50, Offset: 0, Sort: SortDescending}, Page(0, 0, ""))
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateTemplate(ctx, newTestTemplate("template", "1.0.0", ownerScm)); err != nil {
			return err
		}
		return tx.CreateTemplateVersion(ctx, newTestTemplate("template", "1.1.0", ownerScm))
	})
	require.NoError(t, err)

	count, err := store.CountTemplates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateTemplate(ctx, newTestTemplate("template", "1.0.0", ownerScm)); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, err = store.FindTemplateByName(ctx, "template")
	assert.True(t, IsNotFound(err))

	// The name was never claimed, so another pipeline can take it.
	require.NoError(t, store.CreateTemplate(ctx, newTestTemplate("template", "1.0.0", otherScm)))
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestPing(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestStoreError_Format(t *testing.T) {
	err := NewStoreError("GetTemplate", "template", "7", "template not found", ErrNotFound)
	assert.Equal(t, "GetTemplate template 7: template not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	err = NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	assert.Equal(t, "WithTx: failed to begin transaction", err.Error())
}
