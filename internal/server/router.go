// Package server wires handlers into the HTTP router and applies the
// logging and recovery middleware.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/auth"
	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/handlers"
	"github.com/conductorhq/conductor/internal/httpx"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/render"
	"github.com/conductorhq/conductor/internal/services"
)

// Deps carries everything the router needs; collaborators are interfaces so
// tests can drop in fakes.
type Deps struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Sessions *auth.Sessions
	Ledger   *billing.Ledger
	Locks    *ids.Locks
	Renderer render.Renderer
	Exporter render.Exporter
	Notifier notify.Notifier

	// AuthDisabled skips the login requirement; set in development when no
	// SESSION_SECRET is configured.
	AuthDisabled bool
}

// New constructs the root http.Handler with all routes and middleware.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	d.Sessions.Verifier = func(_ context.Context, id string) bool {
		var count int64
		if err := d.DB.Model(&models.Employee{}).
			Where("id = ? AND is_active = ?", id, true).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ah := handlers.NewAuthHandler(d.DB, d.Sessions)
	mux.HandleFunc("POST /api/auth/login", ah.Login)
	mux.HandleFunc("POST /api/auth/logout", ah.Logout)
	mux.Handle("GET /api/auth/me", protect(d, http.HandlerFunc(ah.Me)))

	ch := handlers.NewClientHandler(d.DB)
	api(mux, d, "GET /api/clients", ch.List)
	api(mux, d, "POST /api/clients", ch.Create)
	api(mux, d, "GET /api/clients/{id}", ch.Get)
	api(mux, d, "PATCH /api/clients/{id}", ch.Update)
	api(mux, d, "DELETE /api/clients/{id}", ch.Delete)
	api(mux, d, "POST /api/clients/{id}/contacts", ch.AddContact)
	api(mux, d, "DELETE /api/contacts/{id}", ch.DeleteContact)

	eh := handlers.NewEmployeeHandler(d.DB)
	api(mux, d, "GET /api/employees", eh.List)
	api(mux, d, "POST /api/employees", eh.Create)
	api(mux, d, "GET /api/employees/{id}", eh.Get)
	api(mux, d, "PATCH /api/employees/{id}", eh.Update)
	api(mux, d, "DELETE /api/employees/{id}", eh.Delete)

	ph := handlers.NewProjectHandler(d.DB, d.Log, d.Ledger, d.Locks)
	api(mux, d, "GET /api/projects", ph.List)
	api(mux, d, "POST /api/projects", ph.Create)
	api(mux, d, "GET /api/projects/{id}", ph.Get)
	api(mux, d, "PATCH /api/projects/{id}", ph.Update)
	api(mux, d, "DELETE /api/projects/{id}", ph.Delete)
	api(mux, d, "GET /api/projects/{id}/notes", ph.ListNotes)
	api(mux, d, "POST /api/projects/{id}/notes", ph.AddNote)
	api(mux, d, "POST /api/projects/{id}/invoices", ph.CreateInvoice)

	th := handlers.NewTaskHandler(d.DB, d.Log)
	api(mux, d, "GET /api/projects/{id}/tasks", th.List)
	api(mux, d, "POST /api/projects/{id}/tasks", th.Create)
	api(mux, d, "GET /api/tasks/{id}", th.Get)
	api(mux, d, "PATCH /api/tasks/{id}", th.Update)
	api(mux, d, "DELETE /api/tasks/{id}", th.Delete)
	api(mux, d, "POST /api/tasks/{id}/notes", th.AddNote)
	api(mux, d, "DELETE /api/task-notes/{id}", th.DeleteNote)

	coh := handlers.NewContractHandler(d.DB, d.Log, d.Ledger)
	api(mux, d, "POST /api/contracts", coh.Create)
	api(mux, d, "GET /api/contracts/{id}", coh.Get)
	api(mux, d, "PATCH /api/contracts/{id}", coh.Update)
	api(mux, d, "DELETE /api/contracts/{id}", coh.Delete)
	api(mux, d, "POST /api/contracts/{id}/tasks", coh.AddTask)
	api(mux, d, "PATCH /api/contract-tasks/{id}", coh.UpdateTask)
	api(mux, d, "DELETE /api/contract-tasks/{id}", coh.DeleteTask)
	api(mux, d, "POST /api/contracts/{id}/invoices", coh.CreateInvoice)

	ih := handlers.NewInvoiceHandler(d.DB, d.Log, d.Ledger, d.Renderer, d.Exporter, d.Notifier)
	api(mux, d, "GET /api/invoices", ih.List)
	api(mux, d, "GET /api/invoices/by-number/{number}", ih.GetByNumber)
	api(mux, d, "GET /api/invoices/{id}", ih.Get)
	api(mux, d, "PATCH /api/invoices/{id}", ih.Update)
	api(mux, d, "DELETE /api/invoices/{id}", ih.Delete)
	api(mux, d, "POST /api/invoices/{id}/next", ih.CreateNext)
	api(mux, d, "POST /api/invoices/{id}/generate-sheet", ih.GenerateSheet)
	api(mux, d, "POST /api/invoices/{id}/export-pdf", ih.ExportPDF)
	api(mux, d, "POST /api/invoices/{id}/finalize", ih.Finalize)
	api(mux, d, "POST /api/invoices/{id}/send", ih.Send)

	promotion := services.NewPromotion(d.DB, d.Log)
	prh := handlers.NewProposalHandler(d.DB, d.Log, promotion, d.Renderer, d.Exporter, d.Notifier)
	api(mux, d, "POST /api/proposals", prh.Create)
	api(mux, d, "GET /api/proposals/{id}", prh.Get)
	api(mux, d, "PATCH /api/proposals/{id}", prh.Update)
	api(mux, d, "DELETE /api/proposals/{id}", prh.Delete)
	api(mux, d, "POST /api/proposals/{id}/promote", prh.Promote)
	api(mux, d, "POST /api/proposals/{id}/generate-doc", prh.GenerateDoc)
	api(mux, d, "POST /api/proposals/{id}/export-pdf", prh.ExportPDF)
	api(mux, d, "POST /api/proposals/{id}/send", prh.Send)

	rh := handlers.NewReportsHandler(d.DB)
	api(mux, d, "GET /api/reports/weekly-activity", rh.WeeklyActivity)

	comph := handlers.NewCompanyHandler(d.DB)
	api(mux, d, "GET /api/company", comph.Get)
	api(mux, d, "PUT /api/company", comph.Put)

	return withRecover(d.Log, withLogging(d.Log, mux))
}

func api(mux *http.ServeMux, d Deps, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, protect(d, fn))
}

func protect(d Deps, next http.Handler) http.Handler {
	if d.AuthDisabled {
		return d.Sessions.Middleware(next)
	}
	return d.Sessions.Middleware(d.Sessions.Require(next))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func withRecover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
