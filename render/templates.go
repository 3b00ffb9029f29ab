package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/barrelbook/barrelbook/internal/report"
)

var funcs = template.FuncMap{
	"gallons": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"period": func(month, year int) string {
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	},
}

var inventoryTemplate = template.Must(template.New("inventory").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Monthly Report of Processing Operations</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; margin: 36px; }
h1 { font-size: 18px; }
h2 { font-size: 14px; margin-top: 24px; border-bottom: 1px solid #333; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child, th:nth-child(2), td:nth-child(2) { text-align: left; }
</style>
</head>
<body>
<h1>Monthly Report of Processing Operations</h1>
<p>Period: {{period .Month .Year}}</p>
{{range .Sections}}
<h2>{{.Title}}</h2>
{{if .Lines}}
<table>
<tr><th>Product</th><th>Spirits Class</th><th>Proof Gallons</th><th>Wine Gallons</th></tr>
{{range .Lines}}
<tr><td>{{.Product}}</td><td>{{.SpiritsClass}}</td><td>{{gallons .ProofGallons}}</td><td>{{gallons .WineGallons}}</td></tr>
{{end}}
</table>
{{else}}
<p>No activity.</p>
{{end}}
{{end}}
</body>
</html>`))

var storageTemplate = template.Must(template.New("storage").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Monthly Report of Storage Operations</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; margin: 36px; }
h1 { font-size: 18px; }
h2 { font-size: 14px; margin-top: 24px; border-bottom: 1px solid #333; }
table { border-collapse: collapse; width: 100%; margin-top: 8px; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
<h1>Monthly Report of Storage Operations</h1>
<p>Period: {{period .Month .Year}}</p>
<table>
<tr><th>Line</th><th>Barrels</th></tr>
<tr><td>On hand first of month</td><td>{{.OpeningBarrels}}</td></tr>
<tr><td>Received during month</td><td>{{.ReceivedBarrels}}</td></tr>
<tr><td>Removed during month</td><td>{{.RemovedBarrels}}</td></tr>
<tr><td>On hand end of month</td><td>{{.ClosingBarrels}}</td></tr>
</table>
<h2>Warehouse Spot Count</h2>
{{if .Warehouses}}
<table>
<tr><th>Warehouse</th><th>Units</th><th>Proof Gallons</th></tr>
{{range .Warehouses}}
<tr><td>{{.Warehouse}}</td><td>{{.UnitCount}}</td><td>{{gallons .ProofGallons}}</td></tr>
{{end}}
</table>
{{else}}
<p>No active units.</p>
{{end}}
</body>
</html>`))

type inventorySection struct {
	Title string
	Lines []report.Line
}

type inventoryPage struct {
	Month    int
	Year     int
	Sections []inventorySection
}

// InventoryHTML renders the processing form as HTML.
func InventoryHTML(data report.ReportData) (string, error) {
	page := inventoryPage{
		Month: data.Month,
		Year:  data.Year,
		Sections: []inventorySection{
			{Title: "Opening Balance", Lines: data.Opening},
			{Title: "Production", Lines: data.Production},
			{Title: "Transfers In", Lines: data.TransfersIn},
			{Title: "Transfers Out", Lines: data.TransfersOut},
			{Title: "Losses and Destructions", Lines: data.Losses},
			{Title: "Closing Balance", Lines: data.Closing},
		},
	}
	var buf bytes.Buffer
	if err := inventoryTemplate.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StorageHTML renders the storage form as HTML.
func StorageHTML(data report.StorageData) (string, error) {
	var buf bytes.Buffer
	if err := storageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
