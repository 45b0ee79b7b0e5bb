package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

func seedTaskProject(t *testing.T, db *gorm.DB) (*models.Project, *models.Employee) {
	t.Helper()
	emp := models.Employee{ID: ids.New("emp-"), FirstName: "Dana", LastName: "Reyes", Email: "dana@conductor.test", IsActive: true}
	if err := db.Create(&emp).Error; err != nil {
		t.Fatalf("employee: %v", err)
	}
	project := models.Project{ID: ids.New("prj-"), Name: "Riverfront Seawall"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("project: %v", err)
	}
	return &project, &emp
}

func createTask(t *testing.T, h *TaskHandler, projectID, body string) models.ProjectTask {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/tasks", strings.NewReader(body))
	req.SetPathValue("id", projectID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", w.Code, w.Body.String())
	}
	var task models.ProjectTask
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return task
}

func patchTask(t *testing.T, h *TaskHandler, taskID, body string) models.ProjectTask {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+taskID, strings.NewReader(body))
	req.SetPathValue("id", taskID)
	w := httptest.NewRecorder()
	h.Update(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("patch task: %d %s", w.Code, w.Body.String())
	}
	var task models.ProjectTask
	if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return task
}

func TestTaskCreateListsSubtasksAndAssignees(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewTaskHandler(db, zap.NewNop())
	project, emp := seedTaskProject(t, db)

	parent := createTask(t, h, project.ID, fmt.Sprintf(`{"title":"Survey site","assignee_ids":[%q]}`, emp.ID))
	if parent.Status != models.TaskStatusTodo {
		t.Fatalf("expected default status todo, got %s", parent.Status)
	}
	if parent.StartDate == "" {
		t.Fatal("expected start_date to default to today")
	}
	createTask(t, h, project.ID, fmt.Sprintf(`{"title":"Order equipment","parent_id":%q}`, parent.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+project.ID+"/tasks", nil)
	req.SetPathValue("id", project.ID)
	w := httptest.NewRecorder()
	h.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []models.ProjectTask `json:"items"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("subtask leaked into the top level: total=%d", resp.Total)
	}
	top := resp.Items[0]
	if len(top.Subtasks) != 1 || top.Subtasks[0].Title != "Order equipment" {
		t.Fatalf("expected one subtask, got %+v", top.Subtasks)
	}
	if len(top.Assignees) != 1 || top.Assignees[0].FirstName != "Dana" {
		t.Fatalf("expected Dana assigned, got %+v", top.Assignees)
	}
}

func TestTaskStatusDoneStampsCompletedAt(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewTaskHandler(db, zap.NewNop())
	project, _ := seedTaskProject(t, db)
	task := createTask(t, h, project.ID, `{"title":"File permit"}`)

	done := patchTask(t, h, task.ID, `{"status":"done"}`)
	if done.CompletedAt == nil {
		t.Fatal("moving to done must stamp completed_at")
	}
	var count int64
	db.Model(&models.ActivityLog{}).Where("action = ? AND entity_id = ?", "task.completed", task.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected one task.completed activity row, got %d", count)
	}

	reopened := patchTask(t, h, task.ID, `{"status":"in_progress"}`)
	if reopened.CompletedAt != nil {
		t.Fatal("reopening must clear completed_at")
	}
}

func TestTaskDeleteCascadesSubtasks(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewTaskHandler(db, zap.NewNop())
	project, _ := seedTaskProject(t, db)
	parent := createTask(t, h, project.ID, `{"title":"Close out project"}`)
	sub := createTask(t, h, project.ID, fmt.Sprintf(`{"title":"Archive drawings","parent_id":%q}`, parent.ID))

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+parent.ID, nil)
	req.SetPathValue("id", parent.ID)
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}

	for _, id := range []string{parent.ID, sub.ID} {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks/"+id, nil)
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		h.Get(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("task %s still visible after delete: %d", id, w.Code)
		}
	}
	var count int64
	db.Unscoped().Model(&models.ProjectTask{}).Count(&count)
	if count != 2 {
		t.Fatalf("delete must be soft, rows=%d", count)
	}
}

func TestTaskNoteLifecycle(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewTaskHandler(db, zap.NewNop())
	project, _ := seedTaskProject(t, db)
	task := createTask(t, h, project.ID, `{"title":"Call the county"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/notes",
		strings.NewReader(`{"content":"left a voicemail"}`))
	req.SetPathValue("id", task.ID)
	w := httptest.NewRecorder()
	h.AddNote(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("add note: %d %s", w.Code, w.Body.String())
	}
	var note models.ProjectTaskNote
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID, nil)
	req.SetPathValue("id", task.ID)
	w = httptest.NewRecorder()
	h.Get(w, req)
	var got models.ProjectTask
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Notes) != 1 || got.Notes[0].Content != "left a voicemail" {
		t.Fatalf("expected the note on the task, got %+v", got.Notes)
	}

	del := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/task-notes/"+note.ID, nil)
		req.SetPathValue("id", note.ID)
		w := httptest.NewRecorder()
		h.DeleteNote(w, req)
		return w
	}
	if w := del(); w.Code != http.StatusOK {
		t.Fatalf("delete note: %d", w.Code)
	}
	if w := del(); w.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404 got %d", w.Code)
	}
}

func TestTaskCreateUnknownProject(t *testing.T) {
	db := setupHandlerDB(t)
	h := NewTaskHandler(db, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/prj-missing/tasks",
		strings.NewReader(`{"title":"Orphan"}`))
	req.SetPathValue("id", "prj-missing")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}
