package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/activity"
	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// TaskHandler owns project work items: trackable tasks with assignees,
// notes and one level of subtasks.
type TaskHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewTaskHandler(db *gorm.DB, log *zap.Logger) *TaskHandler {
	return &TaskHandler{DB: db, Log: log}
}

// load fills assignees, notes and, for top-level tasks, subtasks.
func (h *TaskHandler) load(task *models.ProjectTask, withSubtasks bool) {
	var assignees []models.Employee
	h.DB.Joins("JOIN project_task_assignees a ON a.employee_id = employees.id").
		Where("a.task_id = ?", task.ID).Find(&assignees)
	task.Assignees = assignees

	var notes []models.ProjectTaskNote
	h.DB.Where("task_id = ?", task.ID).Order("created_at ASC").Find(&notes)
	for i := range notes {
		if notes[i].AuthorID != nil {
			var emp models.Employee
			if err := h.DB.First(&emp, "id = ?", *notes[i].AuthorID).Error; err == nil {
				notes[i].AuthorName = emp.FirstName + " " + emp.LastName
			}
		}
	}
	task.Notes = notes

	if withSubtasks {
		var subs []models.ProjectTask
		h.DB.Where("parent_id = ?", task.ID).Order("sort_order, created_at").Find(&subs)
		for i := range subs {
			// subtasks nest one level only
			h.load(&subs[i], false)
		}
		task.Subtasks = subs
	}
}

func (h *TaskHandler) setAssignees(tx *gorm.DB, taskID string, employeeIDs []string) error {
	if err := tx.Delete(&models.ProjectTaskAssignee{}, "task_id = ?", taskID).Error; err != nil {
		return err
	}
	for _, id := range employeeIDs {
		if err := tx.Create(&models.ProjectTaskAssignee{TaskID: taskID, EmployeeID: id}).Error; err != nil {
			return err
		}
	}
	return nil
}

// List: GET /api/projects/{id}/tasks — top-level tasks with subtasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var tasks []models.ProjectTask
	if err := h.DB.Where("project_id = ? AND parent_id IS NULL", r.PathValue("id")).
		Order("sort_order, created_at").Find(&tasks).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_tasks", nil)
		return
	}
	for i := range tasks {
		h.load(&tasks[i], true)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": tasks, "total": len(tasks)})
}

type createTaskReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
	ReminderAt  string   `json:"reminder_at,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	SortOrder   int      `json:"sort_order,omitempty"`
	AssigneeIDs []string `json:"assignee_ids,omitempty"`
}

// Create: POST /api/projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req createTaskReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"title": "required"})
		return
	}
	task := models.ProjectTask{
		ID:          ids.New("task-"),
		ProjectID:   projectID,
		ParentID:    req.ParentID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		ReminderAt:  req.ReminderAt,
		SortOrder:   req.SortOrder,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.StartDate == "" {
		task.StartDate = time.Now().Format("2006-01-02")
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		if len(req.AssigneeIDs) > 0 {
			return h.setAssignees(tx, task.ID, req.AssigneeIDs)
		}
		return nil
	})
	if err != nil {
		h.Log.Error("task create failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_task", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "task.created",
		EntityType: "project_task", EntityID: task.ID, ProjectID: projectID,
	})
	h.load(&task, true)
	httpx.JSON(w, http.StatusCreated, task)
}

// Get: GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	var task models.ProjectTask
	if err := h.DB.First(&task, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	h.load(&task, true)
	httpx.JSON(w, http.StatusOK, task)
}

// Update: PATCH /api/tasks/{id} — moving into or out of "done" stamps or
// clears completed_at.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var task models.ProjectTask
	if err := h.DB.First(&task, "id = ?", r.PathValue("id")).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req map[string]any
	if !decodeJSON(w, r, &req) {
		return
	}
	updates := pickFields(req,
		"title", "description", "status", "start_date", "due_date",
		"reminder_at", "parent_id", "sort_order")
	completed := false
	if s, ok := updates["status"].(string); ok {
		if s == models.TaskStatusDone && task.Status != models.TaskStatusDone {
			updates["completed_at"] = time.Now()
			completed = true
		} else if s != models.TaskStatusDone && task.Status == models.TaskStatusDone {
			updates["completed_at"] = nil
		}
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&task).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_task", nil)
			return
		}
	}
	if v, ok := req["assignee_ids"]; ok {
		assignees := []string{}
		if arr, ok := v.([]any); ok {
			for _, it := range arr {
				if s, ok := it.(string); ok {
					assignees = append(assignees, s)
				}
			}
		}
		if err := h.setAssignees(h.DB, task.ID, assignees); err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_assignees", nil)
			return
		}
	}
	if completed {
		actor, _ := auth.UserID(r.Context())
		activity.Log(h.DB, h.Log, activity.Entry{
			ActorID: actor, Action: "task.completed",
			EntityType: "project_task", EntityID: task.ID, ProjectID: task.ProjectID,
		})
	}
	var reloaded models.ProjectTask
	if err := h.DB.First(&reloaded, "id = ?", task.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_task", nil)
		return
	}
	h.load(&reloaded, true)
	httpx.JSON(w, http.StatusOK, reloaded)
}

// Delete: DELETE /api/tasks/{id} — soft-deletes the task and its subtasks.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var task models.ProjectTask
	if err := h.DB.First(&task, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ProjectTask{}, "parent_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ProjectTask{}, "id = ?", id).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_task", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddNote: POST /api/tasks/{id}/notes
func (h *TaskHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var task models.ProjectTask
	if err := h.DB.First(&task, "id = ?", taskID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"content": "required"})
		return
	}
	note := models.ProjectTaskNote{
		ID:      ids.New("note-"),
		TaskID:  taskID,
		Content: req.Content,
	}
	if actor, ok := auth.UserID(r.Context()); ok {
		note.AuthorID = &actor
	}
	if err := h.DB.Create(&note).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_note", nil)
		return
	}
	actor, _ := auth.UserID(r.Context())
	activity.Log(h.DB, h.Log, activity.Entry{
		ActorID: actor, Action: "note.created",
		EntityType: "task_note", EntityID: note.ID, ProjectID: task.ProjectID,
	})
	httpx.JSON(w, http.StatusCreated, note)
}

// DeleteNote: DELETE /api/task-notes/{id} — task notes are removed outright.
func (h *TaskHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var note models.ProjectTaskNote
	if err := h.DB.First(&note, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.DB.Delete(&models.ProjectTaskNote{}, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_note", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
