package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/transportschein/internal/repository"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// DocumentLister yields the documents to export.
type DocumentLister interface {
	ListProcessed(ctx context.Context) ([]repository.Document, error)
}

// Service produces XLSX bytes from processed documents.
type Service struct {
	store  DocumentLister
	logger *slog.Logger
}

func NewService(store DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

var headers = []string{
	"Document",
	"Status",
	"Processed At",
	"Patient",
	"Birth Date",
	"Insurance",
	"Insurance No.",
	"Status No.",
	"Kostenträger IK",
	"BSNR",
	"LANR",
	"Prescription Date",
	"Direction",
	"Transport",
	"Treatment Facility",
	"Ordering Party",
	"Ordering Phone",
	"Flags",
}

// ExportRecordsXLSX renders every processed document into one workbook row.
func (s *Service) ExportRecordsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	docs, err := s.store.ListProcessed(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Records"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, doc := range docs {
		rec, err := schema.Decode(doc.Record)
		if err != nil {
			s.logger.Warn("export.record.skipped", "document_id", doc.ID, "err", err)
			continue
		}
		d := rec.Data

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		processedAt := ""
		if doc.ProcessedAt != nil {
			processedAt = doc.ProcessedAt.Format("2006-01-02 15:04")
		}

		write(1, doc.OriginalName)
		write(2, string(doc.Status))
		write(3, processedAt)
		write(4, joinName(d.PatientLastName, d.PatientFirstName))
		write(5, d.PatientBirthDate)
		write(6, d.InsuranceName)
		write(7, d.InsuranceNumber)
		write(8, d.StatusNumber)
		write(9, d.PayerID)
		write(10, d.FacilityNumber)
		write(11, d.DoctorNumber)
		write(12, d.PrescriptionDate)
		write(13, directionLabel(d))
		write(14, transportLabel(d))
		write(15, d.TreatmentLocationName)
		write(16, d.OrderingPartyName)
		write(17, d.OrderingPartyPhone)
		write(18, flagSummary(rec))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 32) // document
	_ = f.SetColWidth(sheet, "D", "D", 26) // patient
	_ = f.SetColWidth(sheet, "O", "P", 30) // facility, ordering party
	_ = f.SetColWidth(sheet, "R", "R", 48) // flags

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinName(last, first string) string {
	switch {
	case last == "":
		return first
	case first == "":
		return last
	default:
		return last + ", " + first
	}
}

func directionLabel(d schema.FormFields) string {
	switch {
	case d.TransportOutbound:
		return "Hinfahrt"
	case d.TransportReturn:
		return "Rückfahrt"
	default:
		return ""
	}
}

func transportLabel(d schema.FormFields) string {
	switch {
	case d.TransportKTW:
		return "KTW"
	case d.TransportRTW:
		return "RTW"
	case d.TransportNAWNEF:
		return "NAW/NEF"
	case d.TransportTaxi:
		return "Taxi"
	case d.TransportOther:
		return "Sonstige"
	default:
		return ""
	}
}

func flagSummary(rec schema.ExtractionResult) string {
	out := ""
	for i, fl := range rec.Flags {
		if i > 0 {
			out += "; "
		}
		out += fl.Code
	}
	return truncate(out, 140)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
