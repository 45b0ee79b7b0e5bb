package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/render"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeRenderer and friends stand in for the document pipeline.
type fakeRenderer struct{ rendered int }

func (f *fakeRenderer) RenderInvoice(render.InvoiceDoc) (string, error) {
	f.rendered++
	return "/tmp/doc.html", nil
}
func (f *fakeRenderer) RenderProposal(render.ProposalDoc) (string, error) {
	f.rendered++
	return "/tmp/doc.html", nil
}

type fakeExporter struct{}

func (fakeExporter) ExportPDF(dataPath string) (string, error) {
	return strings.TrimSuffix(dataPath, ".html") + ".pdf", nil
}

type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func seedBilledProject(t *testing.T, db *gorm.DB, ledger *billing.Ledger) (*models.Project, *models.Invoice) {
	t.Helper()
	client := models.Client{ID: ids.New("cli-"), Name: "Acme", Email: "office@acme.test", AccountingEmail: "ap@acme.test"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("client: %v", err)
	}
	project := models.Project{ID: ids.New("prj-"), Name: "Test Project", JobCode: "TP01", ClientID: &client.ID}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("project: %v", err)
	}
	contract := models.Contract{ID: ids.New("con-"), ProjectID: project.ID, TotalAmount: 1000}
	if err := db.Create(&contract).Error; err != nil {
		t.Fatalf("contract: %v", err)
	}
	task := models.ContractTask{ID: ids.New("ct-"), ContractID: contract.ID, SortOrder: 1, Name: "Design", Amount: 1000}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("task: %v", err)
	}
	inv, err := ledger.CreateFromContract(contract.ID, billing.FromContractInput{
		Tasks: []billing.TaskPercent{{TaskID: task.ID, Percent: 40}},
	})
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	return &project, inv
}

func newInvoiceHandler(db *gorm.DB) (*InvoiceHandler, *billing.Ledger, *fakeNotifier) {
	ledger := billing.NewLedger(db, zap.NewNop(), nil)
	notifier := &fakeNotifier{}
	h := NewInvoiceHandler(db, zap.NewNop(), ledger, &fakeRenderer{}, fakeExporter{}, notifier)
	return h, ledger, notifier
}

func TestInvoiceGetByNumber(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger, _ := newInvoiceHandler(db)
	_, inv := seedBilledProject(t, db, ledger)

	req := httptest.NewRequest(http.MethodGet, "/api/invoices/by-number/"+inv.InvoiceNumber, nil)
	req.SetPathValue("number", inv.InvoiceNumber)
	w := httptest.NewRecorder()
	h.GetByNumber(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var got models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != inv.ID {
		t.Fatalf("expected %s got %s", inv.ID, got.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/invoices/by-number/NOPE-1", nil)
	req.SetPathValue("number", "NOPE-1")
	w = httptest.NewRecorder()
	h.GetByNumber(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestInvoiceDeleteIdempotence(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger, _ := newInvoiceHandler(db)
	_, inv := seedBilledProject(t, db, ledger)

	del := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/invoices/"+inv.ID, nil)
		req.SetPathValue("id", inv.ID)
		w := httptest.NewRecorder()
		h.Delete(w, req)
		return w
	}
	if w := del(); w.Code != http.StatusOK {
		t.Fatalf("first delete expected 200 got %d", w.Code)
	}
	if w := del(); w.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404 got %d", w.Code)
	}
}

func TestInvoiceListHidesSoftDeleted(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger, _ := newInvoiceHandler(db)
	project, inv := seedBilledProject(t, db, ledger)

	if err := ledger.Delete(inv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/invoices?project_id="+project.ID, nil)
	w := httptest.NewRecorder()
	h.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("soft-deleted invoice leaked into listing: total=%d", resp.Total)
	}
}

func TestInvoiceSendPrefersAccountingEmail(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger, notifier := newInvoiceHandler(db)
	_, inv := seedBilledProject(t, db, ledger)

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+inv.ID+"/send", nil)
	req.SetPathValue("id", inv.ID)
	w := httptest.NewRecorder()
	h.Send(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(notifier.sent))
	}
	if notifier.sent[0].To[0] != "ap@acme.test" {
		t.Fatalf("expected accounting email, got %s", notifier.sent[0].To[0])
	}

	got, err := ledger.Get(inv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.SentStatus != models.SentStatusSent || got.SentAt == nil {
		t.Fatalf("send must stamp sent status, got %s", got.SentStatus)
	}
}

func TestInvoiceSendUnconfiguredNotifierWarns(t *testing.T) {
	db := setupHandlerDB(t)
	h, ledger, notifier := newInvoiceHandler(db)
	notifier.err = notify.ErrNotConfigured
	_, inv := seedBilledProject(t, db, ledger)

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+inv.ID+"/send", nil)
	req.SetPathValue("id", inv.ID)
	w := httptest.NewRecorder()
	h.Send(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["_warning"] == nil || resp["_warning"] == "" {
		t.Fatal("expected a warning when notifier is unconfigured")
	}
	got, _ := ledger.Get(inv.ID)
	if got.SentStatus != models.SentStatusSent {
		t.Fatalf("invoice should still be marked sent, got %s", got.SentStatus)
	}
}

func TestInvoiceSendLogsDataPathPersistFailure(t *testing.T) {
	db := setupHandlerDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	ledger := billing.NewLedger(db, zap.NewNop(), nil)
	h := NewInvoiceHandler(db, zap.New(core), ledger, &fakeRenderer{}, fakeExporter{}, &fakeNotifier{})
	_, inv := seedBilledProject(t, db, ledger)

	// make the rendered path impossible to persist
	if err := db.Exec(`CREATE TRIGGER invoices_data_path_locked
		BEFORE UPDATE OF data_path ON invoices
		BEGIN SELECT RAISE(ABORT, 'data_path locked'); END`).Error; err != nil {
		t.Fatalf("trigger: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+inv.ID+"/send", nil)
	req.SetPathValue("id", inv.ID)
	w := httptest.NewRecorder()
	h.Send(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	found := false
	for _, e := range logs.All() {
		if strings.Contains(e.Message, "data path") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the failed data_path persist to be logged")
	}
}

func TestInvoiceGenerateSheetSkipsWithoutForce(t *testing.T) {
	db := setupHandlerDB(t)
	ledger := billing.NewLedger(db, zap.NewNop(), nil)
	renderer := &fakeRenderer{}
	h := NewInvoiceHandler(db, zap.NewNop(), ledger, renderer, fakeExporter{}, &fakeNotifier{})
	_, inv := seedBilledProject(t, db, ledger)

	gen := func(force bool) *httptest.ResponseRecorder {
		url := "/api/invoices/" + inv.ID + "/generate-sheet"
		if force {
			url += "?force=1"
		}
		req := httptest.NewRequest(http.MethodPost, url, nil)
		req.SetPathValue("id", inv.ID)
		w := httptest.NewRecorder()
		h.GenerateSheet(w, req)
		return w
	}
	if w := gen(false); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if renderer.rendered != 1 {
		t.Fatalf("expected one render, got %d", renderer.rendered)
	}
	// already rendered: no-op without force
	if w := gen(false); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if renderer.rendered != 1 {
		t.Fatalf("expected render skipped, got %d", renderer.rendered)
	}
	if w := gen(true); w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if renderer.rendered != 2 {
		t.Fatalf("expected forced re-render, got %d", renderer.rendered)
	}
}
