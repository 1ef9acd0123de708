package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
	"github.com/noah-isme/coach-enroll-api/pkg/export"
	"github.com/noah-isme/coach-enroll-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

type pdfRenderer interface {
	Render(sheet export.Sheet, title string) ([]byte, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult describes a rendered session sheet and its download URL.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders an enrollment's session sheet to CSV or PDF and
// hands out signed download URLs.
type ExportService struct {
	enrollments enrollmentStore
	occurrences occurrenceRepository
	storage     fileStorage
	signer      *storage.SignedURLSigner
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments enrollmentStore, occurrences occurrenceRepository, files fileStorage, signer *storage.SignedURLSigner, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		occurrences: occurrences,
		storage:     files,
		signer:      signer,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
	}
}

// Generate renders the session sheet for one enrollment.
func (s *ExportService) Generate(ctx context.Context, enrollmentID string, format ExportFormat) (*ExportResult, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	occurrences, err := s.occurrences.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
	}

	sheet := buildSessionSheet(occurrences)
	title := fmt.Sprintf("Session sheet - %s (%s)", detail.StudentName, detail.BatchName)

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(sheet)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(sheet, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("sessions-%s-%d.%s", enrollmentID, time.Now().UTC().Unix(), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	url, expiresAt, err := s.signer.Generate(enrollmentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.logger.Info("export generated",
		zap.String("enrollment_id", enrollmentID),
		zap.String("file", relPath),
		zap.String("format", string(format)))
	return &ExportResult{FileName: filename, URL: url, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string) (relPath string, err error) {
	_, relPath, _, err = s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return relPath, nil
}

// Open returns the stored export file for streaming.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return f, nil
}

// Cleanup removes exports older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func buildSessionSheet(occurrences []models.SessionOccurrence) export.Sheet {
	sheet := export.Sheet{
		Headers: []string{"#", "Date", "Start", "End", "Status", "Paused", "Rescheduled From"},
	}
	for _, occ := range occurrences {
		rescheduledFrom := ""
		if occ.RescheduledFrom != nil {
			rescheduledFrom = occ.RescheduledFrom.Format("2006-01-02 15:04")
		}
		sheet.Rows = append(sheet.Rows, []string{
			fmt.Sprintf("%d", occ.SessionNumber),
			occ.ScheduledDate.Format("2006-01-02"),
			occ.StartTime,
			occ.EndTime,
			strings.ToLower(string(occ.Status)),
			fmt.Sprintf("%t", occ.IsPaused),
			rescheduledFrom,
		})
	}
	return sheet
}
