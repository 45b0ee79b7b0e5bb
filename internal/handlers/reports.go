package handlers

import (
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/models"
)

// ReportsHandler serves aggregate views over the activity trail.
type ReportsHandler struct {
	DB *gorm.DB
}

func NewReportsHandler(db *gorm.DB) *ReportsHandler {
	return &ReportsHandler{DB: db}
}

type weeklyActivityEntry struct {
	models.ActivityLog
	ActorName   string `json:"actor_name"`
	ProjectName string `json:"project_name,omitempty"`
}

type weeklyActiveProject struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	JobCode       string `json:"job_code,omitempty"`
	ProjectNumber string `json:"project_number,omitempty"`
	ClientName    string `json:"client_name,omitempty"`
	ClientCompany string `json:"client_company,omitempty"`
}

// WeeklyActivity: GET /api/reports/weekly-activity?weeks_ago=N — one
// Monday-to-Sunday window of the activity trail, grouped for team review.
// weeks_ago=0 is the current week.
func (h *ReportsHandler) WeeklyActivity(w http.ResponseWriter, r *http.Request) {
	weeksAgo := 0
	if v := r.URL.Query().Get("weeks_ago"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 52 {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_weeks_ago", nil)
			return
		}
		weeksAgo = n
	}
	now := time.Now()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -daysSinceMonday)
	weekStart := monday.AddDate(0, 0, -7*weeksAgo)
	weekEnd := weekStart.AddDate(0, 0, 7)

	var rows []models.ActivityLog
	if err := h.DB.Where("created_at >= ? AND created_at < ?", weekStart, weekEnd).
		Order("created_at DESC").Find(&rows).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_activity", nil)
		return
	}

	summary := map[string]int{
		"proposals_created": 0, "proposals_sent": 0,
		"invoices_created": 0, "invoices_sent": 0, "invoices_paid": 0,
		"tasks_created": 0, "tasks_completed": 0, "notes_written": 0,
		"projects_created": 0, "contracts_created": 0,
	}
	actorNames := map[string]string{}
	projectNames := map[string]string{}
	entries := make([]weeklyActivityEntry, 0, len(rows))
	byEmployee := map[string][]weeklyActivityEntry{}
	for _, row := range rows {
		e := weeklyActivityEntry{ActivityLog: row, ActorName: "System"}
		if row.ActorID != nil {
			name, ok := actorNames[*row.ActorID]
			if !ok {
				var emp models.Employee
				if err := h.DB.Unscoped().First(&emp, "id = ?", *row.ActorID).Error; err == nil {
					name = emp.FirstName + " " + emp.LastName
				}
				actorNames[*row.ActorID] = name
			}
			if name != "" {
				e.ActorName = name
			}
		}
		if row.ProjectID != nil {
			name, ok := projectNames[*row.ProjectID]
			if !ok {
				var p models.Project
				if err := h.DB.Unscoped().First(&p, "id = ?", *row.ProjectID).Error; err == nil {
					name = p.Name
				}
				projectNames[*row.ProjectID] = name
			}
			e.ProjectName = name
		}
		entries = append(entries, e)
		byEmployee[e.ActorName] = append(byEmployee[e.ActorName], e)
		if key := summaryKey(row.EntityType, row.Action); key != "" {
			summary[key]++
		}
	}

	// paid status is stamped by the billing ledger, not the activity trail
	var paid int64
	h.DB.Model(&models.Invoice{}).
		Where("paid_at >= ? AND paid_at < ?", weekStart, weekEnd).Count(&paid)
	summary["invoices_paid"] = int(paid)

	active := make([]weeklyActiveProject, 0)
	h.DB.Table("projects p").
		Select("p.id, p.name, p.status, p.job_code, p.project_number, c.name AS client_name, c.company AS client_company").
		Joins("LEFT JOIN clients c ON c.id = p.client_id").
		Where("p.deleted_at IS NULL AND p.status NOT IN ?", []string{models.ProjectStatusComplete, models.ProjectStatusPaid}).
		Order("p.created_at DESC").
		Scan(&active)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"week_start":           weekStart.Format("2006-01-02"),
		"week_end":             weekEnd.Format("2006-01-02"),
		"weeks_ago":            weeksAgo,
		"summary":              summary,
		"active_projects":      active,
		"activity_by_employee": byEmployee,
		"recent_activity":      entries,
	})
}

func summaryKey(entityType, action string) string {
	switch entityType + ":" + action {
	case "proposal:proposal.created":
		return "proposals_created"
	case "proposal:proposal.sent":
		return "proposals_sent"
	case "invoice:invoice.created":
		return "invoices_created"
	case "invoice:invoice.sent":
		return "invoices_sent"
	case "project_task:task.created":
		return "tasks_created"
	case "project_task:task.completed":
		return "tasks_completed"
	case "project_note:note.created", "task_note:note.created":
		return "notes_written"
	case "project:project.created":
		return "projects_created"
	case "contract:contract.created":
		return "contracts_created"
	}
	return ""
}
