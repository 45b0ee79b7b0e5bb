package render

const invoiceTemplate = `{{define "invoice.html"}}<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Georgia, serif; margin: 2.5em; color: #222; }
h1 { font-size: 1.4em; letter-spacing: 0.05em; }
table { border-collapse: collapse; width: 100%; margin-top: 1.5em; }
th, td { border-bottom: 1px solid #ccc; padding: 0.4em 0.6em; text-align: left; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-top: 2px solid #222; }
.meta { margin-top: 1em; }
.meta td { border: none; padding: 0.1em 1em 0.1em 0; }
</style>
</head>
<body>
<h1>{{.CompanyName}}</h1>
<p>{{.CompanyAddress}}<br>{{.CompanyEmail}}{{if .CompanyPhone}} &middot; {{.CompanyPhone}}{{end}}</p>
<h2>Invoice {{.InvoiceNumber}}</h2>
<table class="meta">
<tr><td>Date</td><td>{{.Date.Format "January 2, 2006"}}</td></tr>
<tr><td>Bill to</td><td>{{.ClientCompany}}{{if .ClientName}} ({{.ClientName}}){{end}}</td></tr>
<tr><td>Project</td><td>{{.ProjectName}}{{if .ProjectNumber}} &mdash; {{.ProjectNumber}}{{end}}</td></tr>
{{if .ClientProjectNumber}}<tr><td>Client ref</td><td>{{.ClientProjectNumber}}</td></tr>{{end}}
{{if .ProjectLocation}}<tr><td>Location</td><td>{{.ProjectLocation}}</td></tr>{{end}}
</table>
<table>
<thead>
<tr><th>Task</th><th class="num">Fee</th><th class="num">% This Invoice</th><th class="num">Previously Billed</th><th class="num">Amount Due</th></tr>
</thead>
<tbody>
{{range .Lines}}<tr>
<td>{{.Name}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td>
<td class="num">{{money .Fee}}</td>
<td class="num">{{pct .Percent}}</td>
<td class="num">{{money .PriorAmount}}</td>
<td class="num">{{money .Amount}}</td>
</tr>
{{end}}</tbody>
<tfoot>
<tr><td colspan="4">Total due</td><td class="num">{{money .TotalDue}}</td></tr>
</tfoot>
</table>
</body>
</html>
{{end}}`

const proposalTemplate = `{{define "proposal.html"}}<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Proposal &mdash; {{.ProjectName}}</title>
<style>
body { font-family: Georgia, serif; margin: 2.5em; color: #222; }
h1 { font-size: 1.4em; letter-spacing: 0.05em; }
table { border-collapse: collapse; width: 100%; margin-top: 1.5em; }
th, td { border-bottom: 1px solid #ccc; padding: 0.4em 0.6em; text-align: left; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-top: 2px solid #222; }
.sig { margin-top: 3em; }
</style>
</head>
<body>
<h1>{{.CompanyName}}</h1>
<p>{{.ProposalDate}}</p>
<p>{{.ClientCompany}}{{if .ClientContactEmail}}<br>{{.ClientContactEmail}}{{end}}</p>
<h2>Proposal for Professional Services</h2>
<p><strong>{{.ProjectName}}</strong>{{if .ProjectLocation}}<br>{{.ProjectLocation}}{{end}}</p>
<table>
<thead><tr><th>Task</th><th class="num">Fee</th></tr></thead>
<tbody>
{{range .Tasks}}<tr>
<td>{{.Name}}{{if .Description}}<br><small>{{.Description}}</small>{{end}}</td>
<td class="num">{{money .Amount}}</td>
</tr>
{{end}}</tbody>
<tfoot><tr><td>Total fee</td><td class="num">{{money .TotalFee}}</td></tr></tfoot>
</table>
<div class="sig">
<p>Respectfully submitted,</p>
<p>{{.EngineerName}}{{if .EngineerTitle}}, {{.EngineerTitle}}{{end}}<br>{{.CompanyName}}</p>
</div>
</body>
</html>
{{end}}`
