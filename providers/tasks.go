package providers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/yashUcr773/task-management-app-sub001/src/store"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// ActorHeader names the request header carrying the acting user.
const ActorHeader = "X-User-ID"

func (p *Provider) registerTaskRoutes(group fiber.Router) {
	tasks := group.Group("/api/tasks")
	tasks.Post("/", p.handleCreateTask)
	tasks.Get("/:id", p.handleGetTask)
	tasks.Put("/:id", p.handleUpdateTask)
	tasks.Patch("/:id/status", p.handleUpdateStatus)
	tasks.Delete("/:id", p.handleDeleteTask)
	tasks.Post("/:id/comments", p.handleAddComment)
	group.Post("/api/notifications", p.handleCreateNotification)
}

func actor(c fiber.Ctx) (string, error) {
	id := c.Get(ActorHeader)
	if id == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, ActorHeader+" header is required")
	}
	return id, nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}

func bindJSON(c fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body: "+err.Error())
	}
	return nil
}

func (p *Provider) handleCreateTask(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	var task types.Task
	if err := bindJSON(c, &task); err != nil {
		return err
	}
	created, err := p.store.CreateTask(c.Context(), userID, task)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (p *Provider) handleGetTask(c fiber.Ctx) error {
	task, err := p.store.GetTask(c.Context(), c.Params("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(task)
}

func (p *Provider) handleUpdateTask(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	var task types.Task
	if err := bindJSON(c, &task); err != nil {
		return err
	}
	task.ID = c.Params("id")
	updated, err := p.store.UpdateTask(c.Context(), userID, task)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(updated)
}

func (p *Provider) handleUpdateStatus(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := p.store.UpdateTaskStatus(c.Context(), userID, c.Params("id"), req.Status)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(updated)
}

func (p *Provider) handleDeleteTask(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	if err := p.store.DeleteTask(c.Context(), userID, c.Params("id")); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (p *Provider) handleAddComment(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	comment, err := p.store.AddComment(c.Context(), userID, c.Params("id"), req.Content)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (p *Provider) handleCreateNotification(c fiber.Ctx) error {
	userID, err := actor(c)
	if err != nil {
		return err
	}
	var req struct {
		OrganizationID string `json:"organizationId"`
		types.Notification
	}
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	n, err := p.store.CreateNotification(c.Context(), userID, req.OrganizationID, req.Notification)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}
