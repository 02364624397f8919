package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/tasks"
)

// TasksController handles task queue management endpoints.
type TasksController struct {
	queue              TaskQueue
	auditRetentionDays int
}

func NewTasksController(queue TaskQueue, auditRetentionDays int) *TasksController {
	return &TasksController{
		queue:              queue,
		auditRetentionDays: auditRetentionDays,
	}
}

// TaskTypeInfo describes a task that can be triggered manually.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

var taskTypes = []TaskTypeInfo{
	{
		Type:        tasks.SweepOverdueQueue,
		Description: "Mark loans past their due date as overdue and refresh fines",
		Queue:       tasks.SweepOverdueQueue,
	},
	{
		Type:        tasks.CleanupAuditEventsQueue,
		Description: "Delete audit events older than the retention period",
		Queue:       tasks.CleanupAuditEventsQueue,
	},
}

// ListTaskTypes handles GET /api/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"task_types": taskTypes,
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTaskRequest is the optional body for POST /api/tasks/:type/run.
type RunTaskRequest struct {
	// AsOf sweeps as of a past or future instant instead of now.
	AsOf *time.Time `json:"as_of,omitempty"`
	// RetentionDays overrides the configured audit retention.
	RetentionDays int `json:"retention_days,omitempty" binding:"min=0"`
}

// RunTask handles POST /api/tasks/:type/run (admin)
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	var task backlite.Task
	switch taskType {
	case tasks.SweepOverdueQueue:
		t := tasks.SweepOverdueTask{}
		if req.AsOf != nil {
			t.AsOf = req.AsOf.UTC()
		}
		task = t
	case tasks.CleanupAuditEventsQueue:
		days := req.RetentionDays
		if days == 0 {
			days = tc.auditRetentionDays
		}
		task = tasks.CleanupAuditEventsTask{RetentionDays: days}
	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	id, err := tc.queue.Enqueue(c.Request.Context(), task)
	if err != nil {
		respondInternalError(c, err, "enqueue task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task_id": id,
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
