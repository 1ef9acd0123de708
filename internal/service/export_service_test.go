package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coach-enroll-api/internal/models"
	appErrors "github.com/noah-isme/coach-enroll-api/pkg/errors"
	"github.com/noah-isme/coach-enroll-api/pkg/export"
	"github.com/noah-isme/coach-enroll-api/pkg/storage"
)

type fileStorageStub struct {
	saved map[string][]byte
}

func (s *fileStorageStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *fileStorageStub) Open(_ string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *fileStorageStub) CleanupOlderThan(_ time.Duration) ([]string, error) {
	return nil, nil
}

type rendererStub struct {
	lastSheet export.Sheet
	lastTitle string
}

func (r *rendererStub) Render(sheet export.Sheet) ([]byte, error) {
	r.lastSheet = sheet
	return []byte("csv"), nil
}

func (r *rendererStub) RenderPDF(sheet export.Sheet, title string) ([]byte, error) {
	r.lastSheet = sheet
	r.lastTitle = title
	return []byte("pdf"), nil
}

type pdfRendererStub struct{ inner *rendererStub }

func (r pdfRendererStub) Render(sheet export.Sheet, title string) ([]byte, error) {
	return r.inner.RenderPDF(sheet, title)
}

func newExportFixture(t *testing.T) (*ExportService, *fileStorageStub, *rendererStub) {
	t.Helper()
	from := mustDate(2026, time.March, 11, 18, 0)
	occ := &occurrenceRepoStub{items: []*models.SessionOccurrence{
		{ID: "occ-1", EnrollmentID: "enr-1", SessionNumber: 1, ScheduledDate: mustDate(2026, time.March, 9, 18, 0), StartTime: "18:00", EndTime: "19:30", Status: models.SessionStatusCompleted},
		{ID: "occ-2", EnrollmentID: "enr-1", SessionNumber: 2, ScheduledDate: mustDate(2026, time.March, 16, 18, 0), StartTime: "18:00", EndTime: "19:30", Status: models.SessionStatusScheduled, RescheduledFrom: &from},
	}}
	repo := &enrollmentStoreStub{details: map[string]*models.EnrollmentDetail{
		"enr-1": {
			Enrollment:  models.Enrollment{ID: "enr-1", SessionsTotal: 12},
			StudentName: "Asha Rao",
			BatchName:   "U14 Football Evening",
		},
	}}
	files := &fileStorageStub{}
	renderer := &rendererStub{}
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(repo, occ, files, signer, renderer, pdfRendererStub{inner: renderer}, nil)
	return svc, files, renderer
}

func TestExportGenerateCSV(t *testing.T) {
	svc, files, renderer := newExportFixture(t)

	result, err := svc.Generate(context.Background(), "enr-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
	assert.True(t, result.ExpiresAt.After(time.Now()))
	assert.Len(t, files.saved, 1)

	require.Len(t, renderer.lastSheet.Rows, 2)
	assert.Equal(t, []string{"#", "Date", "Start", "End", "Status", "Paused", "Rescheduled From"}, renderer.lastSheet.Headers)
	assert.Equal(t, "2026-03-11 18:00", renderer.lastSheet.Rows[1][6])
}

func TestExportGeneratePDFUsesTitle(t *testing.T) {
	svc, _, renderer := newExportFixture(t)

	_, err := svc.Generate(context.Background(), "enr-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Contains(t, renderer.lastTitle, "Asha Rao")
	assert.Contains(t, renderer.lastTitle, "U14 Football Evening")
}

func TestExportGenerateUnknownEnrollment(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, err := svc.Generate(context.Background(), "enr-404", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportGenerateUnsupportedFormat(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, err := svc.Generate(context.Background(), "enr-1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
