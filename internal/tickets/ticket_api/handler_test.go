package ticket_api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"festival-tickets/internal/ingest"
	"festival-tickets/internal/models"
	"festival-tickets/internal/tickets/ticket_api"
)

type MockProcessor struct{ mock.Mock }

func (m *MockProcessor) ProcessPDF(ctx context.Context, pdf []byte, pdfURL, transactionID string) (models.BatchSummary, error) {
	args := m.Called(ctx, pdf, pdfURL, transactionID)
	return args.Get(0).(models.BatchSummary), args.Error(1)
}

func (m *MockProcessor) ProcessPages(ctx context.Context, pages []ingest.Page) models.BatchSummary {
	args := m.Called(ctx, pages)
	return args.Get(0).(models.BatchSummary)
}

type MockTicketReader struct{ mock.Mock }

func (m *MockTicketReader) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketReader) GetScreenings(ctx context.Context) ([]models.Screening, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Screening), args.Error(1)
}

func (m *MockTicketReader) GetScreening(ctx context.Context, act, date, start string) (*models.Screening, error) {
	args := m.Called(ctx, act, date, start)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Screening), args.Error(1)
}

func (m *MockTicketReader) DeleteTicket(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockBlob struct{ mock.Mock }

func (m *MockBlob) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func newRouter(p *MockProcessor, t *MockTicketReader, b *MockBlob) chi.Router {
	r := chi.NewRouter()
	ticket_api.NewHandler(p, t, b, nil).RegisterRoutes(r)
	return r
}

func encodedPageImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestProcessPDFWithPageImages(t *testing.T) {
	processor := new(MockProcessor)
	processor.On("ProcessPages", mock.Anything, mock.MatchedBy(func(pages []ingest.Page) bool {
		return len(pages) == 2 && pages[0].Number == 0 && pages[1].Number == 1 &&
			pages[0].PDFURL == "http://blob/doc.pdf" &&
			pages[0].TransactionID != "" && pages[0].TransactionID == pages[1].TransactionID
	})).Return(models.BatchSummary{TotalPages: 2, Successful: 2})

	body, _ := json.Marshal(map[string]interface{}{
		"pdfUrl":     "http://blob/doc.pdf",
		"pageImages": []string{encodedPageImage(t), "data:image/png;base64," + encodedPageImage(t)},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", bytes.NewReader(body))
	newRouter(processor, new(MockTicketReader), new(MockBlob)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.BatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalPages)
	processor.AssertExpectations(t)
}

func TestProcessPDFRejectsEmptyRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", bytes.NewReader([]byte(`{}`)))
	newRouter(new(MockProcessor), new(MockTicketReader), new(MockBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessPDFRejectsBadBase64(t *testing.T) {
	body, _ := json.Marshal(map[string]interface{}{"pageImages": []string{"not-base64!!"}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", bytes.NewReader(body))
	newRouter(new(MockProcessor), new(MockTicketReader), new(MockBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPDF(t *testing.T) {
	processor := new(MockProcessor)
	store := new(MockBlob)

	pdf := []byte("%PDF-1.7 fake document")
	store.On("Store", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len("tickets/") && key[:8] == "tickets/"
	}), pdf, "application/pdf").Return("http://blob/tickets/doc.pdf", nil)
	processor.On("ProcessPDF", mock.Anything, pdf, "http://blob/tickets/doc.pdf", mock.Anything).
		Return(models.BatchSummary{TotalPages: 1, Successful: 1}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "tickets.pdf")
	require.NoError(t, err)
	_, err = part.Write(pdf)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newRouter(processor, new(MockTicketReader), store).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PDFURL        string `json:"pdfUrl"`
		TransactionID string `json:"transactionId"`
		TotalPages    int    `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "http://blob/tickets/doc.pdf", resp.PDFURL)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Equal(t, 1, resp.TotalPages)

	processor.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("pdf", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newRouter(new(MockProcessor), new(MockTicketReader), new(MockBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScreeningByCompositeKey(t *testing.T) {
	reader := new(MockTicketReader)
	reader.On("GetScreening", mock.Anything, "32 Meters", "15-11-2025", "06:45 PM").
		Return(&models.Screening{ID: "32 Meters|15-11-2025|06:45 PM", TicketCount: 2}, nil)

	id := url.PathEscape("32 Meters|15-11-2025|06:45 PM")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/screenings/"+id, nil)
	newRouter(new(MockProcessor), reader, new(MockBlob)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var screening models.Screening
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &screening))
	assert.Equal(t, 2, screening.TicketCount)
}

func TestGetScreeningBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/screenings/no-pipes-here", nil)
	newRouter(new(MockProcessor), new(MockTicketReader), new(MockBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTicketNotFound(t *testing.T) {
	reader := new(MockTicketReader)
	reader.On("DeleteTicket", mock.Anything, "missing").Return(errors.New("ticket missing not found"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/tickets/missing", nil)
	newRouter(new(MockProcessor), reader, new(MockBlob)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
