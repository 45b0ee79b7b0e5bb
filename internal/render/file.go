package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRenderer renders documents as HTML files under Dir, one subdirectory
// per kind, with a JSON sidecar (the Document envelope) next to each file.
// Templates are parsed once and cached.
type FileRenderer struct {
	Dir string

	once sync.Once
	tpl  *template.Template
	err  error
}

func NewFileRenderer(dir string) *FileRenderer {
	return &FileRenderer{Dir: dir}
}

var docFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
}

func (f *FileRenderer) templates() (*template.Template, error) {
	f.once.Do(func() {
		f.tpl, f.err = template.New("docs").Funcs(docFuncs).
			Parse(invoiceTemplate + proposalTemplate)
	})
	return f.tpl, f.err
}

func (f *FileRenderer) RenderInvoice(doc InvoiceDoc) (string, error) {
	return f.render("invoice", "invoice.html", safeName(doc.InvoiceNumber), doc, Document{Kind: "invoice", Invoice: &doc})
}

func (f *FileRenderer) RenderProposal(doc ProposalDoc) (string, error) {
	name := safeName(doc.ProjectName)
	if name == "" {
		name = "proposal"
	}
	return f.render("proposal", "proposal.html", name, doc, Document{Kind: "proposal", Proposal: &doc})
}

func (f *FileRenderer) render(kind, tplName, base string, data any, envelope Document) (string, error) {
	if f.Dir == "" {
		return "", ErrNotConfigured
	}
	tpl, err := f.templates()
	if err != nil {
		return "", fmt.Errorf("parse templates: %w", err)
	}
	dir := filepath.Join(f.Dir, kind+"s")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", kind, err)
	}
	htmlPath := filepath.Join(dir, base+".html")
	out, err := os.Create(htmlPath)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	defer out.Close()
	if err := tpl.ExecuteTemplate(out, tplName, data); err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}
	sidecar, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(htmlPath+".json", sidecar, 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	return htmlPath, nil
}

// ReadDocument loads the sidecar envelope for a rendered document locator.
func ReadDocument(dataPath string) (*Document, error) {
	b, err := os.ReadFile(dataPath + ".json")
	if err != nil {
		return nil, fmt.Errorf("read document sidecar: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode document sidecar: %w", err)
	}
	return &doc, nil
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
