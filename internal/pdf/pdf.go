// Package pdf exports rendered documents as PDF files with maroto.
package pdf

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/conductorhq/conductor/internal/render"
)

// Exporter builds PDFs from the sidecar envelope the file renderer writes.
// The PDF is always derived from the rendered document, never from a fresh
// database read, so it cannot drift from what the client saw.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportPDF(dataPath string) (string, error) {
	if dataPath == "" {
		return "", render.ErrNotConfigured
	}
	doc, err := render.ReadDocument(dataPath)
	if err != nil {
		return "", err
	}

	m := maroto.New(config.NewBuilder().
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(15).
		Build())

	switch doc.Kind {
	case "invoice":
		if doc.Invoice == nil {
			return "", fmt.Errorf("invoice envelope at %s has no invoice body", dataPath)
		}
		buildInvoice(m, doc.Invoice)
	case "proposal":
		if doc.Proposal == nil {
			return "", fmt.Errorf("proposal envelope at %s has no proposal body", dataPath)
		}
		buildProposal(m, doc.Proposal)
	default:
		return "", fmt.Errorf("unknown document kind %q at %s", doc.Kind, dataPath)
	}

	out, err := m.Generate()
	if err != nil {
		return "", fmt.Errorf("generate pdf: %w", err)
	}
	pdfPath := strings.TrimSuffix(dataPath, ".html") + ".pdf"
	if err := out.Save(pdfPath); err != nil {
		return "", fmt.Errorf("save pdf: %w", err)
	}
	return pdfPath, nil
}

func buildInvoice(m core.Maroto, inv *render.InvoiceDoc) {
	m.AddRows(
		text.NewRow(8, inv.CompanyName, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewRow(5, inv.CompanyAddress, props.Text{Size: 9}),
		text.NewRow(5, strings.TrimSuffix(inv.CompanyEmail+"  "+inv.CompanyPhone, "  "), props.Text{Size: 9}),
		text.NewRow(10, "Invoice "+inv.InvoiceNumber, props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}),
	)
	m.AddRows(
		metaRow("Date", inv.Date.Format("January 2, 2006")),
		metaRow("Bill to", strings.TrimSpace(inv.ClientCompany+" "+parens(inv.ClientName))),
		metaRow("Project", strings.TrimSpace(inv.ProjectName+" "+parens(inv.ProjectNumber))),
	)
	if inv.ClientProjectNumber != "" {
		m.AddRows(metaRow("Client ref", inv.ClientProjectNumber))
	}
	if inv.ProjectLocation != "" {
		m.AddRows(metaRow("Location", inv.ProjectLocation))
	}

	header := props.Text{Size: 9, Style: fontstyle.Bold}
	m.AddRows(row.New(7).Add(
		text.NewCol(4, "Task", header),
		text.NewCol(2, "Fee", alignRight(header)),
		text.NewCol(2, "% This Inv.", alignRight(header)),
		text.NewCol(2, "Prev. Billed", alignRight(header)),
		text.NewCol(2, "Amount Due", alignRight(header)),
	))
	m.AddRows(row.New(1).Add(line.NewCol(12)))
	cell := props.Text{Size: 9}
	for _, li := range inv.Lines {
		m.AddRows(row.New(6).Add(
			text.NewCol(4, li.Name, cell),
			text.NewCol(2, money(li.Fee), alignRight(cell)),
			text.NewCol(2, fmt.Sprintf("%.1f%%", li.Percent), alignRight(cell)),
			text.NewCol(2, money(li.PriorAmount), alignRight(cell)),
			text.NewCol(2, money(li.Amount), alignRight(cell)),
		))
	}
	m.AddRows(row.New(1).Add(line.NewCol(12)))
	m.AddRows(row.New(8).Add(
		text.NewCol(10, "Total due", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(2, money(inv.TotalDue), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	))
}

func buildProposal(m core.Maroto, p *render.ProposalDoc) {
	m.AddRows(
		text.NewRow(8, p.CompanyName, props.Text{Size: 14, Style: fontstyle.Bold}),
		text.NewRow(5, p.ProposalDate, props.Text{Size: 9}),
		text.NewRow(5, p.ClientCompany, props.Text{Size: 9, Top: 2}),
	)
	if p.ClientContactEmail != "" {
		m.AddRows(text.NewRow(5, p.ClientContactEmail, props.Text{Size: 9}))
	}
	m.AddRows(
		text.NewRow(10, "Proposal for Professional Services", props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}),
		text.NewRow(6, strings.TrimSpace(p.ProjectName+"  "+p.ProjectLocation), props.Text{Size: 10}),
	)

	header := props.Text{Size: 9, Style: fontstyle.Bold}
	m.AddRows(row.New(7).Add(
		text.NewCol(9, "Task", header),
		text.NewCol(3, "Fee", alignRight(header)),
	))
	m.AddRows(row.New(1).Add(line.NewCol(12)))
	cell := props.Text{Size: 9}
	for _, t := range p.Tasks {
		m.AddRows(row.New(6).Add(
			text.NewCol(9, t.Name, cell),
			text.NewCol(3, money(t.Amount), alignRight(cell)),
		))
	}
	m.AddRows(row.New(1).Add(line.NewCol(12)))
	m.AddRows(row.New(8).Add(
		text.NewCol(9, "Total fee", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(3, money(p.TotalFee), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	))
	m.AddRows(
		text.NewRow(10, "Respectfully submitted,", props.Text{Size: 9, Top: 6}),
		text.NewRow(5, strings.TrimSuffix(p.EngineerName+", "+p.EngineerTitle, ", "), props.Text{Size: 9}),
	)
}

func metaRow(label, value string) core.Row {
	return row.New(5).Add(
		text.NewCol(3, label, props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(9, value, props.Text{Size: 9}),
	)
}

func alignRight(p props.Text) props.Text {
	p.Align = align.Right
	return p
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func parens(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
