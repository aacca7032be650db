package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/esic-backend/internal/domain"
)

const (
	SheetRequests   = "Requests"
	SheetStatistics = "Statistics"
)

var requestColumns = []string{
	"Protocol", "Status", "Subject", "Receipt channel", "Submitted at",
	"Base deadline", "Extended deadline", "Effective deadline",
	"Days remaining", "Near deadline", "Overdue", "Responded at",
}

// ReportWriter exports the request list and the statistics as an XLSX
// workbook.
type ReportWriter struct {
	Registry *RequestRegistry
	Stats    *StatisticsAggregator
}

// NewReportWriter returns a writer over the registry and its aggregator.
func NewReportWriter(reg *RequestRegistry, stats *StatisticsAggregator) *ReportWriter {
	return &ReportWriter{Registry: reg, Stats: stats}
}

// Write renders the requests matching (status, text) and the current
// statistics to w. Requester contact data is not exported.
func (s *ReportWriter) Write(ctx context.Context, w io.Writer, status domain.Status, text string) error {
	tr := otel.Tracer("services/ReportWriter")
	ctx, span := tr.Start(ctx, "Write",
		trace.WithAttributes(attribute.String("status", string(status))),
	)
	defer span.End()

	items, err := s.Registry.List(ctx, status, text)
	if err != nil {
		return err
	}
	st, err := s.Stats.Get(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("report.rows", len(items)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRequests); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetStatistics); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(items)+1)
	header := make([]any, len(requestColumns))
	for i, h := range requestColumns {
		header[i] = h
	}
	rows = append(rows, header)
	for _, it := range items {
		rows = append(rows, []any{
			it.Protocol,
			string(it.Status),
			it.Subject,
			string(it.ReceiptChannel),
			stamp(&it.SubmittedAt),
			stamp(&it.BaseDeadline),
			stamp(it.ExtendedDeadline),
			stamp(&it.Deadline.Effective),
			it.Deadline.DaysRemaining,
			it.Deadline.Near,
			it.Deadline.Overdue,
			stamp(it.RespondedAt),
		})
	}
	if err := writeRows(f, SheetRequests, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetRequests, 1, 1, bold); err != nil {
		return err
	}

	summary := [][]any{
		{"Metric", "Value"},
		{"Total", st.Total},
	}
	for _, status := range domain.AllStatuses {
		summary = append(summary, []any{"Status: " + string(status), st.CountByStatus[status]})
	}
	summary = append(summary,
		[]any{"Response rate", st.ResponseRate},
		[]any{"Near deadline", st.NearDeadlineCount},
		[]any{"Overdue", st.OverdueCount},
		[]any{"Open appeals", st.OpenAppeals},
		[]any{"Generated at", stamp(&st.GeneratedAt)},
	)
	if err := writeRows(f, SheetStatistics, summary); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetStatistics, 1, 1, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// stamp formats t as RFC 3339, or "" when nil.
func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
