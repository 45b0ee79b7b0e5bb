package ids

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Project{}, &models.Invoice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestNewPrefixAndLength(t *testing.T) {
	id := New("inv-")
	if !strings.HasPrefix(id, "inv-") {
		t.Fatalf("missing prefix: %s", id)
	}
	if len(id) != len("inv-")+8 {
		t.Fatalf("expected 8 hex chars after prefix, got %s", id)
	}
	if id == New("inv-") {
		t.Fatal("two generated ids collided")
	}
}

func TestNextProjectNumberSequencesWithinYear(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	n, err := NextProjectNumber(db, now)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "25-001" {
		t.Fatalf("expected 25-001, got %s", n)
	}
	db.Create(&models.Project{ID: New("prj-"), Name: "a", ProjectNumber: n})

	n2, err := NextProjectNumber(db, now)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n2 != "25-002" {
		t.Fatalf("expected 25-002, got %s", n2)
	}
}

func TestNextProjectNumberResetsPerYear(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.Project{ID: New("prj-"), Name: "a", ProjectNumber: "24-007"})

	n, err := NextProjectNumber(db, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "25-001" {
		t.Fatalf("expected fresh sequence for new year, got %s", n)
	}
}

func TestNextProjectNumberSurvivesDeletedProjects(t *testing.T) {
	db := setupTestDB(t)
	p := models.Project{ID: New("prj-"), Name: "a", ProjectNumber: "25-003"}
	db.Create(&p)
	db.Delete(&p)

	n, err := NextProjectNumber(db, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "25-004" {
		t.Fatalf("deleted project number must not be reissued, got %s", n)
	}
}

func TestNextInvoiceNumberPrefixFallback(t *testing.T) {
	db := setupTestDB(t)

	withJob := &models.Project{ID: "p1", Name: "a", JobCode: "JBHL21", ProjectNumber: "25-001"}
	n, err := NextInvoiceNumber(db, withJob)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "JBHL21-1" {
		t.Fatalf("expected job code prefix, got %s", n)
	}

	withNumber := &models.Project{ID: "p2", Name: "b", ProjectNumber: "25-002"}
	n, err = NextInvoiceNumber(db, withNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "25-002-1" {
		t.Fatalf("expected project number prefix, got %s", n)
	}

	bare := &models.Project{ID: "p3", Name: "c"}
	n, err = NextInvoiceNumber(db, bare)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "p3-1" {
		t.Fatalf("expected project id prefix, got %s", n)
	}
}

func TestNextInvoiceNumberCountsSoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	p := models.Project{ID: "p1", Name: "a", JobCode: "AB12"}
	db.Create(&p)

	inv := models.Invoice{ID: New("inv-"), InvoiceNumber: "AB12-1", ProjectID: p.ID}
	db.Create(&inv)
	db.Delete(&inv)

	n, err := NextInvoiceNumber(db, &p)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != "AB12-2" {
		t.Fatalf("numbering must advance past soft-deleted invoices, got %s", n)
	}
}

func TestLocksSerializeByKey(t *testing.T) {
	locks := NewLocks()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("k")
			counter++
			release()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("lost updates under lock: %d", counter)
	}
}
