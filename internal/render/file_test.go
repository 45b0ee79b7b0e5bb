package render

import (
	"os"
	"strings"
	"testing"
	"time"
)

func sampleInvoiceDoc() InvoiceDoc {
	return InvoiceDoc{
		InvoiceNumber: "MC25-1",
		Date:          time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		CompanyName:   "Conductor Engineering",
		ClientCompany: "Hargrove Builders",
		ProjectName:   "Mill Creek Retaining Wall",
		Lines: []InvoiceDocLine{
			{Name: "Design", Fee: 1000, Percent: 50, PriorAmount: 0, Amount: 500},
		},
		TotalDue: 500,
	}
}

func TestFileRendererUnconfigured(t *testing.T) {
	f := NewFileRenderer("")
	if _, err := f.RenderInvoice(sampleInvoiceDoc()); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFileRendererWritesDocumentAndSidecar(t *testing.T) {
	f := NewFileRenderer(t.TempDir())
	path, err := f.RenderInvoice(sampleInvoiceDoc())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, want := range []string{"MC25-1", "Design", "$500.00", "Hargrove Builders"} {
		if !strings.Contains(string(html), want) {
			t.Fatalf("rendered document missing %q", want)
		}
	}

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if doc.Kind != "invoice" || doc.Invoice == nil {
		t.Fatalf("bad envelope: %+v", doc)
	}
	if doc.Invoice.TotalDue != 500 {
		t.Fatalf("sidecar drifted from document: %v", doc.Invoice.TotalDue)
	}
}

func TestFileRendererProposal(t *testing.T) {
	f := NewFileRenderer(t.TempDir())
	path, err := f.RenderProposal(ProposalDoc{
		ProposalDate:  "May 1, 2025",
		CompanyName:   "Conductor Engineering",
		ClientCompany: "Hargrove Builders",
		ProjectName:   "Mill Creek Retaining Wall",
		Tasks:         []ProposalDocTask{{Name: "Survey", Amount: 400}},
		TotalFee:      400,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if doc.Kind != "proposal" || doc.Proposal == nil {
		t.Fatalf("bad envelope: %+v", doc)
	}
}
