package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/orgdesk/modelgate/internal/models"
)

// FinanceDepartmentLabel keys the on-disk archive directory for exported
// reports.
const FinanceDepartmentLabel = "finance"

// Workbook sheet names for the spreadsheet export.
const (
	sheetSummary = "Cost Summary"
	sheetDetail  = "Detail Records"
)

// Exporter renders a summary into downloadable payloads and archives a copy
// on disk. The archive is a convenience; the usage store stays authoritative.
type Exporter struct {
	archiveDir string
}

// NewExporter constructs an Exporter. archiveDir may be empty to disable
// archiving.
func NewExporter(archiveDir string) *Exporter {
	return &Exporter{archiveDir: archiveDir}
}

// Document renders the summary as an RTF document and archives it. Returns
// the download filename and payload.
func (e *Exporter) Document(summary *Summary, now time.Time) (string, []byte) {
	var doc strings.Builder
	doc.WriteString("{\\rtf1\\ansi\\deff0\n")
	doc.WriteString("{\\b Model Usage & Cost Report}\\par\n")
	fmt.Fprintf(&doc, "Generated: %s\\par\\par\n", now.Format("2006-01-02 15:04:05"))

	doc.WriteString("{\\b By provider and model}\\par\n")
	doc.WriteString("Provider\tModel\tPrompt Tokens\tCompletion Tokens\tTotal Tokens\tEstimated Cost\\par\n")
	for _, group := range summary.ByProviderModel {
		fmt.Fprintf(&doc, "%s\t%s\t%d\t%d\t%d\t%.4f\\par\n",
			group.Provider, group.Model,
			group.PromptTokens, group.CompletionTokens, group.TotalTokens, group.Cost)
	}
	doc.WriteString("\\par\n")

	if len(summary.BySource) > 0 {
		doc.WriteString("{\\b By source (department / employee / project / assistant)}\\par\n")
		doc.WriteString("Source Type\tSource Label\tTotal Tokens\tEstimated Cost\\par\n")
		for _, group := range summary.BySource {
			fmt.Fprintf(&doc, "%s\t%s\t%d\t%.4f\\par\n",
				group.Type, group.Label, group.TotalTokens, group.Cost)
		}
	}
	doc.WriteString("}")

	filename := fmt.Sprintf("model-usage-report_%s.doc", now.Format("2006-01-02"))
	payload := []byte(doc.String())
	e.archive(filename, payload)
	return filename, payload
}

// Spreadsheet renders the summary and per-record detail as a two-sheet xlsx
// workbook and archives it. The summary sheet carries the totals, the
// provider-model table, and the by-source table; the detail sheet carries one
// row per record.
func (e *Exporter) Spreadsheet(summary *Summary, records []models.UsageRecord, now time.Time) (string, []byte, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if errRename := book.SetSheetName(book.GetSheetName(0), sheetSummary); errRename != nil {
		return "", nil, errRename
	}

	totals := summary.Totals()
	summaryRows := [][]any{
		{"Model Usage & Cost Report"},
		{"Generated: " + now.Format("2006-01-02 15:04:05")},
		{},
		{"Total Calls", len(records)},
		{"Total Prompt Tokens", totals.PromptTokens},
		{"Total Completion Tokens", totals.CompletionTokens},
		{"Total Tokens", totals.TotalTokens},
		{"Total Estimated Cost", totals.Cost},
		{},
		{"By provider and model"},
		{"Provider", "Model", "Prompt Tokens", "Completion Tokens", "Total Tokens", "Estimated Cost"},
	}
	for _, group := range summary.ByProviderModel {
		summaryRows = append(summaryRows, []any{
			group.Provider, group.Model,
			group.PromptTokens, group.CompletionTokens, group.TotalTokens, group.Cost,
		})
	}
	summaryRows = append(summaryRows,
		[]any{},
		[]any{"By source"},
		[]any{"Source Type", "Source Label", "Prompt Tokens", "Completion Tokens", "Total Tokens", "Estimated Cost"},
	)
	for _, group := range summary.BySource {
		summaryRows = append(summaryRows, []any{
			group.Type, group.Label,
			group.PromptTokens, group.CompletionTokens, group.TotalTokens, group.Cost,
		})
	}
	if errRows := writeSheetRows(book, sheetSummary, summaryRows); errRows != nil {
		return "", nil, errRows
	}
	if errWidths := setColWidths(book, sheetSummary, []float64{15, 20, 15, 18, 15, 15}); errWidths != nil {
		return "", nil, errWidths
	}

	if _, errSheet := book.NewSheet(sheetDetail); errSheet != nil {
		return "", nil, errSheet
	}
	detailRows := [][]any{
		{"Time", "Provider", "Model", "Prompt Tokens", "Completion Tokens", "Total Tokens", "Source Type", "Source Label"},
	}
	for _, record := range records {
		label := record.SourceLabel
		if label == "" {
			label = labelUnattributed
		}
		detailRows = append(detailRows, []any{
			record.RecordedAt.Format(time.RFC3339),
			record.Provider, record.Model,
			record.PromptTokens, record.CompletionTokens, record.TotalTokens,
			record.SourceType, label,
		})
	}
	if errRows := writeSheetRows(book, sheetDetail, detailRows); errRows != nil {
		return "", nil, errRows
	}
	if errWidths := setColWidths(book, sheetDetail, []float64{20, 12, 20, 15, 18, 15, 12, 15}); errWidths != nil {
		return "", nil, errWidths
	}

	buf, errWrite := book.WriteToBuffer()
	if errWrite != nil {
		return "", nil, errWrite
	}

	filename := fmt.Sprintf("model-usage-report_%s.xlsx", now.Format("2006-01-02"))
	payload := buf.Bytes()
	e.archive(filename, payload)
	return filename, payload, nil
}

func writeSheetRows(book *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, errCell := excelize.CoordinatesToCellName(1, i+1)
		if errCell != nil {
			return errCell
		}
		if errSet := book.SetSheetRow(sheet, cell, &row); errSet != nil {
			return errSet
		}
	}
	return nil
}

func setColWidths(book *excelize.File, sheet string, widths []float64) error {
	for i, width := range widths {
		col, errCol := excelize.ColumnNumberToName(i + 1)
		if errCol != nil {
			return errCol
		}
		if errSet := book.SetColWidth(sheet, col, col, width); errSet != nil {
			return errSet
		}
	}
	return nil
}

// archive writes a copy under the finance department directory. Failures are
// logged, never propagated: the download still proceeds.
func (e *Exporter) archive(filename string, payload []byte) {
	if e == nil || strings.TrimSpace(e.archiveDir) == "" {
		return
	}
	dir := filepath.Join(e.archiveDir, FinanceDepartmentLabel)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		log.WithError(errMkdir).Warn("create report archive dir failed")
		return
	}
	path := filepath.Join(dir, filename)
	if errWrite := os.WriteFile(path, payload, 0644); errWrite != nil {
		log.WithError(errWrite).Warn("archive report file failed")
		return
	}
	log.WithField("path", path).Info("archived usage report")
}
