package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"festival-tickets/internal/ingest"
	"festival-tickets/internal/ingest/extract"
	"festival-tickets/internal/ingest/qrlocate"
	"festival-tickets/internal/models"
)

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, img image.Image) (extract.Fields, error) {
	args := m.Called(ctx, img)
	return args.Get(0).(extract.Fields), args.Error(1)
}

type MockLocator struct{ mock.Mock }

func (m *MockLocator) Locate(img image.Image) (image.Image, error) {
	args := m.Called(img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

type MockBlobStore struct{ mock.Mock }

func (m *MockBlobStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

type MockTicketCreator struct{ mock.Mock }

func (m *MockTicketCreator) CreateTicket(ctx context.Context, fields models.NewTicketFields) (*models.Ticket, error) {
	args := m.Called(ctx, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishTicketCreated(ctx context.Context, ticket models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func pageImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 64))
}

func qrImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 500, 500))
}

func fields(act string) extract.Fields {
	return extract.Fields{Act: act, Location: "Kriterion 1", Date: "15-11-2025", Start: "06:45 PM"}
}

func newPipeline(e *MockExtractor, l *MockLocator, b *MockBlobStore, t *MockTicketCreator) *ingest.Pipeline {
	return ingest.NewPipeline(nil, e, l, b, t, nil, nil, nil)
}

func TestProcessPagesAllSuccessful(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)

	extractor.On("Extract", mock.Anything, mock.Anything).Return(fields("Cutting Through Rocks"), nil)
	locator.On("Locate", mock.Anything).Return(qrImage(), nil)
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").Return("http://blob/qr.png", nil)
	creator.On("CreateTicket", mock.Anything, mock.MatchedBy(func(f models.NewTicketFields) bool {
		return f.Act == "Cutting Through Rocks" && f.QRCodeURL == "http://blob/qr.png"
	})).Return(&models.Ticket{ID: "t-1"}, nil)

	p := newPipeline(extractor, locator, store, creator)
	summary := p.ProcessPages(context.Background(), []ingest.Page{
		{Number: 0, Image: pageImage()},
		{Number: 1, Image: pageImage()},
	})

	assert.Equal(t, 2, summary.TotalPages)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Tickets, 2)
	for _, r := range summary.Tickets {
		assert.True(t, r.Success)
		assert.Equal(t, "t-1", r.TicketID)
		assert.Equal(t, "Cutting Through Rocks|15-11-2025|06:45 PM", r.ScreeningKey)
	}
}

func TestQuotaFailureDoesNotAbortSiblingPages(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)

	quotaErr := &extract.ExtractionError{
		Reason:  extract.ReasonQuota,
		Message: "vision API quota exceeded. Please check your billing and plan details",
	}

	first := pageImage()
	second := pageImage()
	extractor.On("Extract", mock.Anything, first).Return(extract.Fields{}, quotaErr).Once()
	extractor.On("Extract", mock.Anything, second).Return(fields("32 Meters"), nil).Once()
	locator.On("Locate", second).Return(qrImage(), nil)
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").Return("http://blob/qr.png", nil)
	creator.On("CreateTicket", mock.Anything, mock.Anything).Return(&models.Ticket{ID: "t-2"}, nil)

	p := newPipeline(extractor, locator, store, creator)
	summary := p.ProcessPages(context.Background(), []ingest.Page{
		{Number: 0, Image: first},
		{Number: 1, Image: second},
	})

	assert.Equal(t, 2, summary.TotalPages)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, summary.Tickets, 2)
	assert.False(t, summary.Tickets[0].Success)
	assert.Contains(t, summary.Tickets[0].Error, "quota exceeded")
	assert.Empty(t, summary.Tickets[0].TicketID)
	assert.True(t, summary.Tickets[1].Success)
}

func TestQRNotFoundFailsPageWithFixedMessage(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)

	extractor.On("Extract", mock.Anything, mock.Anything).Return(fields("X"), nil)
	locator.On("Locate", mock.Anything).Return(nil, qrlocate.ErrQRNotFound)

	p := newPipeline(extractor, locator, store, creator)
	summary := p.ProcessPages(context.Background(), []ingest.Page{{Number: 0, Image: pageImage()}})

	require.Len(t, summary.Tickets, 1)
	assert.False(t, summary.Tickets[0].Success)
	assert.Equal(t, "Could not extract QR code", summary.Tickets[0].Error)
	store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	creator.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}

func TestStorageFailureFailsOnlyThatPage(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)

	extractor.On("Extract", mock.Anything, mock.Anything).Return(fields("X"), nil)
	locator.On("Locate", mock.Anything).Return(qrImage(), nil)
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").
		Return("", errors.New("bucket unavailable")).Once()
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").
		Return("http://blob/qr.png", nil).Once()
	creator.On("CreateTicket", mock.Anything, mock.Anything).Return(&models.Ticket{ID: "t-3"}, nil)

	p := newPipeline(extractor, locator, store, creator)
	summary := p.ProcessPages(context.Background(), []ingest.Page{
		{Number: 0, Image: pageImage()},
		{Number: 1, Image: pageImage()},
	})

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Successful)
	assert.Contains(t, summary.Tickets[0].Error, "failed to store QR image")
}

func TestSummaryPreservesInputOrder(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)

	pages := make([]ingest.Page, 4)
	for i := range pages {
		pages[i] = ingest.Page{Number: i, Image: pageImage()}
	}

	// Pages 0 and 2 extract fine, pages 1 and 3 fail.
	for i := range pages {
		if i%2 == 0 {
			extractor.On("Extract", mock.Anything, pages[i].Image).Return(fields(fmt.Sprintf("Act %d", i)), nil).Once()
		} else {
			extractor.On("Extract", mock.Anything, pages[i].Image).Return(extract.Fields{}, errors.New("unreadable page")).Once()
		}
	}
	locator.On("Locate", mock.Anything).Return(qrImage(), nil)
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").Return("http://blob/qr.png", nil)
	creator.On("CreateTicket", mock.Anything, mock.Anything).Return(&models.Ticket{ID: "t"}, nil)

	p := newPipeline(extractor, locator, store, creator)
	summary := p.ProcessPages(context.Background(), pages)

	assert.Equal(t, 4, summary.TotalPages)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Tickets, 4)
	assert.True(t, summary.Tickets[0].Success)
	assert.False(t, summary.Tickets[1].Success)
	assert.True(t, summary.Tickets[2].Success)
	assert.False(t, summary.Tickets[3].Success)
	assert.Equal(t, "Act 0|15-11-2025|06:45 PM", summary.Tickets[0].ScreeningKey)
	assert.Equal(t, "Act 2|15-11-2025|06:45 PM", summary.Tickets[2].ScreeningKey)
}

func TestPublishFailureDoesNotFailPage(t *testing.T) {
	extractor := new(MockExtractor)
	locator := new(MockLocator)
	store := new(MockBlobStore)
	creator := new(MockTicketCreator)
	publisher := new(MockPublisher)

	extractor.On("Extract", mock.Anything, mock.Anything).Return(fields("X"), nil)
	locator.On("Locate", mock.Anything).Return(qrImage(), nil)
	store.On("Store", mock.Anything, mock.Anything, mock.Anything, "image/png").Return("http://blob/qr.png", nil)
	creator.On("CreateTicket", mock.Anything, mock.Anything).Return(&models.Ticket{ID: "t-4"}, nil)
	publisher.On("PublishTicketCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := ingest.NewPipeline(nil, extractor, locator, store, creator, publisher, nil, nil)
	summary := p.ProcessPages(context.Background(), []ingest.Page{{Number: 0, Image: pageImage()}})

	assert.Equal(t, 1, summary.Successful)
	publisher.AssertExpectations(t)
}

func TestEmptyBatch(t *testing.T) {
	p := newPipeline(new(MockExtractor), new(MockLocator), new(MockBlobStore), new(MockTicketCreator))
	summary := p.ProcessPages(context.Background(), nil)

	assert.Equal(t, 0, summary.TotalPages)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Tickets)
}
