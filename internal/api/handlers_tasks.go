package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/storage"
	"github.com/ai-task-scheduler/engine/internal/taskmanager"
)

// --- Request/Response DTOs (spec.md §6.4) ---

// CreateReminderRequest is the payload for POST /api/v1/tasks/reminders.
type CreateReminderRequest struct {
	Text    string                      `json:"text" binding:"required"`
	Time    string                      `json:"time" binding:"required"`
	Channel models.NotificationChannel  `json:"channel" binding:"required"`
}

// CreateTaskRequest is the payload for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title                string                      `json:"title" binding:"required"`
	Description          string                      `json:"description"`
	TaskType             models.TaskType             `json:"task_type" binding:"required"`
	ScheduleType         models.ScheduleType         `json:"schedule_type" binding:"required"`
	ScheduleConfig       models.ScheduleConfig       `json:"schedule_config"`
	NotificationChannels models.NotificationChannels `json:"notification_channels" binding:"required"`
	AIContext            string                      `json:"ai_context"`
	MaxRetries           int                         `json:"max_retries"`
}

// UpdateTaskRequest is the payload for PATCH /api/v1/tasks/:id.
type UpdateTaskRequest struct {
	Title                *string                      `json:"title"`
	Description          *string                      `json:"description"`
	ScheduleType         *models.ScheduleType         `json:"schedule_type"`
	ScheduleConfig       *models.ScheduleConfig       `json:"schedule_config"`
	NotificationChannels *models.NotificationChannels `json:"notification_channels"`
	AIContext            *string                      `json:"ai_context"`
	MaxRetries           *int                         `json:"max_retries"`
}

// PreviewScheduleRequest is the payload for POST /api/v1/schedule/preview.
type PreviewScheduleRequest struct {
	ScheduleType   models.ScheduleType   `json:"schedule_type" binding:"required"`
	ScheduleConfig models.ScheduleConfig `json:"schedule_config"`
}

// TaskResponse is the API representation of a task.
type TaskResponse struct {
	ID                   uuid.UUID                   `json:"id"`
	UserID               string                       `json:"user_id"`
	Title                string                       `json:"title"`
	Description          string                       `json:"description"`
	TaskType             models.TaskType              `json:"task_type"`
	ScheduleType         models.ScheduleType          `json:"schedule_type"`
	ScheduleConfig       models.ScheduleConfig        `json:"schedule_config"`
	NextRunAt            *time.Time                   `json:"next_run_at"`
	LastRunAt            *time.Time                   `json:"last_run_at"`
	Status               models.TaskStatus            `json:"status"`
	NotificationChannels models.NotificationChannels  `json:"notification_channels"`
	AIContext            string                       `json:"ai_context"`
	LastResult           string                       `json:"last_result"`
	RetryCount           int                          `json:"retry_count"`
	MaxRetries           int                          `json:"max_retries"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
}

func taskToResponse(task *models.Task) TaskResponse {
	return TaskResponse{
		ID:                   task.ID,
		UserID:               task.UserID,
		Title:                task.Title,
		Description:          task.Description,
		TaskType:             task.TaskType,
		ScheduleType:         task.ScheduleType,
		ScheduleConfig:       task.ScheduleConfig,
		NextRunAt:            task.NextRunAt,
		LastRunAt:            task.LastRunAt,
		Status:               task.Status,
		NotificationChannels: task.NotificationChannels,
		AIContext:            task.AIContext,
		LastResult:           task.LastResult,
		RetryCount:           task.RetryCount,
		MaxRetries:           task.MaxRetries,
		CreatedAt:            task.CreatedAt,
		UpdatedAt:            task.UpdatedAt,
	}
}

// writeResult renders a taskmanager.Result as the typed envelope spec.md
// §4.6 describes: {ok, value|issues|error}.
func writeResult(c *gin.Context, result taskmanager.Result, successStatus int) {
	if result.Err != nil {
		if result.Err == storage.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Err.Error()})
		return
	}
	if len(result.Issues) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"issues": result.Issues})
		return
	}
	c.JSON(successStatus, taskToResponse(result.Task))
}

// --- Task Handlers ---

// createReminder handles POST /api/v1/tasks/reminders.
func (s *Server) createReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.manager.CreateReminder(c.Request.Context(), taskmanager.CreateReminderRequest{
		UserID:  userIDFromContext(c),
		Text:    req.Text,
		Time:    req.Time,
		Channel: req.Channel,
	})
	writeResult(c, result, http.StatusCreated)
}

// createTask handles POST /api/v1/tasks.
func (s *Server) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.manager.CreateTask(c.Request.Context(), taskmanager.CreateTaskRequest{
		UserID:               userIDFromContext(c),
		Title:                req.Title,
		Description:          req.Description,
		TaskType:             req.TaskType,
		ScheduleType:         req.ScheduleType,
		ScheduleConfig:       req.ScheduleConfig,
		NotificationChannels: req.NotificationChannels,
		AIContext:            req.AIContext,
		MaxRetries:           req.MaxRetries,
	})
	writeResult(c, result, http.StatusCreated)
}

// listTasks handles GET /api/v1/tasks.
func (s *Server) listTasks(c *gin.Context) {
	userID := userIDFromContext(c)

	filter := taskmanagerListFilter(c)
	tasks, err := s.manager.List(c.Request.Context(), userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]TaskResponse, len(tasks))
	for i := range tasks {
		responses[i] = taskToResponse(&tasks[i])
	}
	c.JSON(http.StatusOK, gin.H{"tasks": responses, "count": len(responses)})
}

// getTask handles GET /api/v1/tasks/:id.
func (s *Server) getTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task ID"})
		return
	}

	task, err := s.manager.Get(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		if err == storage.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, taskToResponse(task))
}

// updateTask handles PATCH /api/v1/tasks/:id.
func (s *Server) updateTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task ID"})
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := taskmanager.UpdatePatch{
		Title:                req.Title,
		Description:          req.Description,
		ScheduleType:         req.ScheduleType,
		ScheduleConfig:       req.ScheduleConfig,
		NotificationChannels: req.NotificationChannels,
		AIContext:            req.AIContext,
		MaxRetries:           req.MaxRetries,
	}

	result := s.manager.Update(c.Request.Context(), userIDFromContext(c), id, patch)
	writeResult(c, result, http.StatusOK)
}

// deleteTask handles DELETE /api/v1/tasks/:id. Idempotent per spec.md §8.
func (s *Server) deleteTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task ID"})
		return
	}

	if err := s.manager.Delete(c.Request.Context(), userIDFromContext(c), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// triggerTask handles POST /api/v1/tasks/:id/trigger (SPEC_FULL.md §5's
// manual-trigger enrichment): force a task's next_run_at to now so the
// Poller's next tick runs it ahead of schedule.
func (s *Server) triggerTask(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task ID"})
		return
	}

	result := s.manager.Trigger(c.Request.Context(), userIDFromContext(c), id)
	writeResult(c, result, http.StatusAccepted)
}

// listTaskExecutions handles GET /api/v1/tasks/:id/executions
// (SPEC_FULL.md §5's per-task execution history).
func (s *Server) listTaskExecutions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task ID"})
		return
	}

	if _, err := s.manager.Get(c.Request.Context(), userIDFromContext(c), id); err != nil {
		if err == storage.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	limit := 50
	executions, err := s.execStore.ListByTask(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions, "count": len(executions)})
}

// previewNextRun handles POST /api/v1/schedule/preview (spec.md §4.6's
// CalculateNextRun, exposed for callers that want to confirm a schedule
// before creating a task).
func (s *Server) previewNextRun(c *gin.Context) {
	var req PreviewScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := s.manager.CalculateNextRun(req.ScheduleType, req.ScheduleConfig)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_run_at": next})
}

func taskmanagerListFilter(c *gin.Context) taskmanager.ListFilter {
	filter := taskmanager.ListFilter{Limit: 100}
	if status := c.Query("status"); status != "" {
		filter.Status = models.TaskStatus(status)
	}
	if taskType := c.Query("task_type"); taskType != "" {
		filter.TaskType = models.TaskType(taskType)
	}
	return filter
}
