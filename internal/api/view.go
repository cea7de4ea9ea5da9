package api

import (
	"embed"
	"fmt"
	"html/template"

	"pingwatch/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var resultsPage = template.Must(template.ParseFS(templateFS, "templates/results.html"))

type resultRow struct {
	URL          string
	Failed       bool
	ResponseTime string
	Timestamp    string
}

type resultsView struct {
	Rows []resultRow
}

func newResultsView(results []models.Result) resultsView {
	view := resultsView{Rows: make([]resultRow, 0, len(results))}
	for _, r := range results {
		row := resultRow{URL: r.URL, Failed: r.Failed()}
		if !row.Failed {
			row.ResponseTime = fmt.Sprintf("%.3f s", r.ResponseTime.Float64)
		}
		if !r.Timestamp.IsZero() {
			row.Timestamp = r.Timestamp.Format(models.TimestampLayout)
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}
