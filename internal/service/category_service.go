package service

import (
	"context"
	"errors"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
	"github.com/spec-kit/grievance-desk/pkg/util/sanitize"
	"github.com/spec-kit/grievance-desk/pkg/util/slug"
	"github.com/spec-kit/grievance-desk/pkg/util/validation"
)

// CategoryInput is the admin payload for creating or editing a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	IsActive    *bool  `json:"is_active"`
}

// CategoryService manages the two-level category tree.
type CategoryService struct {
	categories repository.CategoryRepository
}

// NewCategoryService constructs the service.
func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// Tree returns top-level categories with their children attached.
func (s *CategoryService) Tree(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	flat, err := s.categories.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return BuildCategoryTree(flat), nil
}

// BuildCategoryTree groups a flat list into roots with children, keeping input order.
// Children whose parent is missing from the list are dropped.
func BuildCategoryTree(flat []domain.Category) []domain.Category {
	children := map[int64][]domain.Category{}
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}
	roots := []domain.Category{}
	for _, c := range flat {
		if c.ParentID == nil {
			c.Children = children[c.ID]
			if c.Children == nil {
				c.Children = []domain.Category{}
			}
			roots = append(roots, c)
		}
	}
	return roots
}

// Create adds a category; sub-categories must hang off a top-level category.
func (s *CategoryService) Create(ctx context.Context, actor *domain.User, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.normalize(&input); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, 0, input.ParentID); err != nil {
		return nil, err
	}
	category := &domain.Category{
		Name:        input.Name,
		Slug:        slug.Make(input.Name),
		Description: input.Description,
		ParentID:    input.ParentID,
		IsActive:    input.IsActive == nil || *input.IsActive,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, categoryWriteError(err)
	}
	return category, nil
}

// Update edits a category, regenerating its slug from the name.
func (s *CategoryService) Update(ctx context.Context, actor *domain.User, id int64, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.normalize(&input); err != nil {
		return nil, err
	}
	category, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, id, input.ParentID); err != nil {
		return nil, err
	}
	if input.ParentID != nil {
		count, err := s.categories.CountChildren(ctx, id)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if count > 0 {
			return nil, apperrors.NewFieldError("parent_id", "a category with sub categories cannot become a sub category")
		}
	}

	category.Name = input.Name
	category.Slug = slug.Make(input.Name)
	category.Description = input.Description
	category.ParentID = input.ParentID
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, categoryWriteError(err)
	}
	return category, nil
}

// Delete removes a category and its sub-categories. Categories used by tickets stay.
func (s *CategoryService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("category", map[string]any{"category_id": id})
		}
		if errors.Is(err, repository.ErrReferenced) {
			return apperrors.NewConflict("category is used by tickets", map[string]any{"category_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *CategoryService) normalize(input *CategoryInput) error {
	input.Name = sanitize.Text(input.Name)
	input.Description = sanitize.Text(input.Description)
	if err := validation.Struct(*input); err != nil {
		return err
	}
	if slug.Make(input.Name) == "" {
		return apperrors.NewFieldError("name", "name must contain letters or digits")
	}
	return nil
}

// checkParent enforces a depth of two: a parent must exist, be top-level and not be self.
func (s *CategoryService) checkParent(ctx context.Context, selfID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	if *parentID == selfID {
		return apperrors.NewFieldError("parent_id", "a category cannot be its own parent")
	}
	parent, err := s.categories.GetByID(ctx, *parentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewFieldError("parent_id", "selected parent does not exist")
		}
		return apperrors.MapError(err)
	}
	if !parent.IsTopLevel() {
		return apperrors.NewFieldError("parent_id", "sub categories cannot have children")
	}
	return nil
}

func (s *CategoryService) get(ctx context.Context, id int64) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

func categoryWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict("a category with this name already exists", nil)
	}
	return apperrors.MapError(err)
}
