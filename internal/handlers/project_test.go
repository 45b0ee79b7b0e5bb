package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

func newProjectHandler(db *gorm.DB) (*ProjectHandler, *billing.Ledger) {
	locks := ids.NewLocks()
	ledger := billing.NewLedger(db, zap.NewNop(), locks)
	return NewProjectHandler(db, zap.NewNop(), ledger, locks), ledger
}

func TestProjectCompositionCreate(t *testing.T) {
	db := setupHandlerDB(t)
	h, _ := newProjectHandler(db)

	body := `{
		"name": "Bridge Retrofit",
		"location": "Waco, TX",
		"client": {"name": "City of Waco", "email": "pw@waco.test"},
		"contract": {"tasks": [
			{"name": "Survey", "amount": 400},
			{"name": "Design", "amount": 600}
		]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created models.Project
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantPrefix := time.Now().Format("06") + "-"
	if !strings.HasPrefix(created.ProjectNumber, wantPrefix) {
		t.Fatalf("expected year-scoped number, got %s", created.ProjectNumber)
	}
	if created.Status != models.ProjectStatusContract {
		t.Fatalf("inline contract should move status to contract, got %s", created.Status)
	}
	if created.ClientID == nil {
		t.Fatal("inline client was not created")
	}

	var contract models.Contract
	if err := db.First(&contract, "project_id = ?", created.ID).Error; err != nil {
		t.Fatalf("contract: %v", err)
	}
	if contract.TotalAmount != 1000 {
		t.Fatalf("expected total 1000, got %v", contract.TotalAmount)
	}

	// same client email reuses the record
	req = httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(
		`{"name": "Second Project", "client": {"name": "City of Waco", "email": "pw@waco.test"}}`))
	w = httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	var clientCount int64
	db.Model(&models.Client{}).Count(&clientCount)
	if clientCount != 1 {
		t.Fatalf("expected client reuse, got %d clients", clientCount)
	}
}

func TestProjectCascadeDelete(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger := newProjectHandler(db)
	project, inv := seedBilledProject(t, db, ledger)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/"+project.ID+"?cascade=1", nil)
	req.SetPathValue("id", project.ID)
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	if _, err := ledger.Get(inv.ID); err == nil {
		t.Fatal("cascaded invoice still visible")
	}
	var count int64
	db.Model(&models.Contract{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 0 {
		t.Fatalf("cascaded contract still visible: %d", count)
	}
	// rows survive under the soft delete for audit
	db.Unscoped().Model(&models.Invoice{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 1 {
		t.Fatalf("invoice row should survive soft delete, got %d", count)
	}
}

func TestProjectGetComputesBilledState(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger := newProjectHandler(db)
	project, _ := seedBilledProject(t, db, ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+project.ID, nil)
	req.SetPathValue("id", project.ID)
	w := httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp struct {
		Contracts []models.Contract `json:"contracts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Contracts) != 1 || len(resp.Contracts[0].Tasks) != 1 {
		t.Fatalf("unexpected composition: %+v", resp.Contracts)
	}
	task := resp.Contracts[0].Tasks[0]
	if task.BilledPercent != 40 {
		t.Fatalf("expected 40%% billed, got %v", task.BilledPercent)
	}
}
