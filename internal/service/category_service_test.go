package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-desk/internal/domain"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

func TestBuildCategoryTree(t *testing.T) {
	orphanParent := int64(42)
	flat := append(testCategories(), domain.Category{ID: 9, Name: "Orphan", ParentID: &orphanParent})

	tree := BuildCategoryTree(flat)

	require.Len(t, tree, 3)
	assert.Equal(t, "Roads", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Potholes", tree[0].Children[0].Name)
	assert.Equal(t, "Water", tree[1].Name)
	assert.NotNil(t, tree[1].Children)
	assert.Empty(t, tree[1].Children)
	assert.Equal(t, "Archived", tree[2].Name)
}

func TestCategoryTree_ActiveOnly(t *testing.T) {
	svc := NewCategoryService(newFakeCategoryRepo(testCategories()...))

	active, err := svc.Tree(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 2)

	all, err := svc.Tree(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateCategory(t *testing.T) {
	repo := newFakeCategoryRepo(testCategories()...)
	svc := NewCategoryService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, cloneUser(admin), CategoryInput{Name: " Street Lights ", ParentID: int64Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, "Street Lights", created.Name)
	assert.Equal(t, "street-lights", created.Slug)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.ParentID)
	assert.Equal(t, int64(1), *created.ParentID)

	inactive := false
	hidden, err := svc.Create(ctx, cloneUser(superAdmin), CategoryInput{Name: "Drains", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)
}

func TestCreateCategory_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		actor  *domain.User
		input  CategoryInput
		status int
		field  string
	}{
		{"support agent", agent, CategoryInput{Name: "Parks"}, 403, ""},
		{"end user", citizen, CategoryInput{Name: "Parks"}, 403, ""},
		{"missing name", admin, CategoryInput{Name: "  "}, 400, "name"},
		{"punctuation only", admin, CategoryInput{Name: "!!!"}, 400, "name"},
		{"parent missing", admin, CategoryInput{Name: "Parks", ParentID: int64Ptr(99)}, 400, "parent_id"},
		{"third level", admin, CategoryInput{Name: "Deep holes", ParentID: int64Ptr(2)}, 400, "parent_id"},
		{"duplicate slug", admin, CategoryInput{Name: "Roads"}, 409, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCategoryService(newFakeCategoryRepo(testCategories()...))
			_, err := svc.Create(context.Background(), cloneUser(tt.actor), tt.input)
			require.Error(t, err)
			domainErr := apperrors.ToDomainError(err)
			assert.Equal(t, tt.status, domainErr.HTTPStatus)
			if tt.field != "" {
				assert.Contains(t, domainErr.Details["fields"], tt.field)
			}
		})
	}
}

func TestUpdateCategory(t *testing.T) {
	ctx := context.Background()

	svc := NewCategoryService(newFakeCategoryRepo(testCategories()...))
	_, err := svc.Update(ctx, cloneUser(admin), 3, CategoryInput{Name: "Water", ParentID: int64Ptr(3)})
	assert.Contains(t, requireFields(t, err), "parent_id", "self parent")

	_, err = svc.Update(ctx, cloneUser(admin), 1, CategoryInput{Name: "Roads", ParentID: int64Ptr(3)})
	assert.Contains(t, requireFields(t, err), "parent_id", "category with children cannot move under another")

	_, err = svc.Update(ctx, cloneUser(admin), 99, CategoryInput{Name: "Ghost"})
	assert.True(t, apperrors.IsNotFound(err))

	inactive := false
	updated, err := svc.Update(ctx, cloneUser(admin), 3, CategoryInput{Name: "Water Supply", ParentID: int64Ptr(1), IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "water-supply", updated.Slug)
	assert.Equal(t, int64(1), *updated.ParentID)
	assert.False(t, updated.IsActive)
}

func TestDeleteCategory(t *testing.T) {
	repo := newFakeCategoryRepo(testCategories()...)
	repo.referenced[3] = true
	svc := NewCategoryService(repo)
	ctx := context.Background()

	err := svc.Delete(ctx, cloneUser(agent), 1)
	require.Error(t, err)
	assert.Equal(t, 403, apperrors.ToDomainError(err).HTTPStatus)

	err = svc.Delete(ctx, cloneUser(admin), 3)
	require.Error(t, err)
	assert.Equal(t, 409, apperrors.ToDomainError(err).HTTPStatus)

	err = svc.Delete(ctx, cloneUser(admin), 99)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, cloneUser(admin), 1))
	_, err = repo.GetByID(ctx, 2)
	assert.True(t, apperrors.IsNotFound(err), "sub categories go with their parent")
}
