package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-desk/internal/api/dto"
	"github.com/spec-kit/grievance-desk/internal/service"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
)

// StaffHandler exposes administrator management of staff accounts and categories.
type StaffHandler struct {
	users      *service.UserService
	categories *service.CategoryService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(users *service.UserService, categories *service.CategoryService) *StaffHandler {
	return &StaffHandler{users: users, categories: categories}
}

// ListUsers GET /admin/users.
func (h *StaffHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.users.ListStaff(c.UserContext(), actor)
	if err != nil {
		return err
	}
	resp := make([]*dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateUser POST /admin/users.
func (h *StaffHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.StaffCreateInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.CreateStaff(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "User created successfully.", "data": userResponse(user)})
}

// UpdateUser PUT /admin/users/:id.
func (h *StaffHandler) UpdateUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.StaffUpdateInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.users.UpdateStaff(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User updated successfully.", "data": userResponse(user)})
}

// DeleteUser DELETE /admin/users/:id.
func (h *StaffHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.DeleteStaff(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListCategories GET /categories. Staff see inactive entries with ?all=1.
func (h *StaffHandler) ListCategories(c *fiber.Ctx) error {
	activeOnly := true
	if user, _ := currentUser(c); user != nil && user.Role.IsAdmin() && c.QueryBool("all") {
		activeOnly = false
	}
	tree, err := h.categories.Tree(c.UserContext(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryTree(tree)})
}

// CreateCategory POST /admin/categories.
func (h *StaffHandler) CreateCategory(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req service.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.categories.Create(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "Category created successfully.", "data": categoryResponse(category)})
}

// UpdateCategory PUT /admin/categories/:id.
func (h *StaffHandler) UpdateCategory(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.categories.Update(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category updated successfully.", "data": categoryResponse(category)})
}

// DeleteCategory DELETE /admin/categories/:id.
func (h *StaffHandler) DeleteCategory(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.categories.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
