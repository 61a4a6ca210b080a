// Package export renders analyzed contracts as CSV or XLSX.
package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"clausewise/internal/domain"
)

// columns defines the header row shared by every format.
var columns = []string{
	"Contract Name",
	"Document Type",
	"Chunk Count",
	"Model",
	"Key Insights",
	"Potential Issues",
	"Recommendations",
	"Property Value",
	"Payment Schedule",
	"Additional Costs",
	"Financial Conditions",
	"Summary",
	"Created At",
}

const pointSeparator = "; "

// Write renders contracts in the requested format.
func Write(w io.Writer, format domain.ExportFormat, contracts []domain.Contract) error {
	switch format {
	case domain.ExportFormatCSV:
		cw := NewWriter(w)
		if _, err := w.Write(BOM); err != nil {
			return err
		}
		if err := cw.WriteHeader(); err != nil {
			return err
		}
		if err := cw.WriteContracts(contracts); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	case domain.ExportFormatXLSX:
		return WriteXLSX(w, contracts)
	default:
		return domain.ErrInvalidExportFormat
	}
}

// ContentType returns the media type and file extension for format.
func ContentType(format domain.ExportFormat) (mediaType, ext string) {
	if format == domain.ExportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	}
	return "text/csv; charset=utf-8", "csv"
}

// contractToRow converts one contract to a row. Analysis columns stay empty
// when the stored analysis cannot be decoded.
func contractToRow(c *domain.Contract) []string {
	row := make([]string, len(columns))
	row[0] = c.Name
	row[1] = string(c.DocumentType)
	row[2] = strconv.Itoa(c.ChunkCount)
	row[3] = c.ModelUsed
	row[11] = c.Summary
	row[12] = c.CreatedAt.Format(time.RFC3339)

	if len(c.Analysis) == 0 {
		return row
	}
	var a domain.AnalysisResult
	if err := json.Unmarshal(c.Analysis, &a); err != nil {
		return row
	}
	row[4] = formatCategory(a.KeyInsights)
	row[5] = formatCategory(a.PotentialIssues)
	row[6] = formatCategory(a.Recommendations)
	if ft := a.FinancialTerms; ft != nil {
		row[7] = string(ft.PropertyValue)
		row[8] = string(ft.PaymentSchedule)
		row[9] = joinFlex(ft.AdditionalCosts)
		row[10] = joinFlex(ft.FinancialConditions)
	}
	return row
}

func formatCategory(c domain.Category) string {
	points := strings.Join(c.Points, pointSeparator)
	if c.Summary == "" {
		return points
	}
	if points == "" {
		return c.Summary
	}
	return c.Summary + " | " + points
}

func joinFlex(values []domain.FlexString) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, string(v))
		}
	}
	return strings.Join(parts, pointSeparator)
}

// Filename returns the attachment name for an export taken at now, in the
// form contracts_{YYYY-MM-DD}.{ext}.
func Filename(format domain.ExportFormat, now time.Time) string {
	_, ext := ContentType(format)
	return "contracts_" + now.Format("2006-01-02") + "." + ext
}
