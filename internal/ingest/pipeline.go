// Package ingest orchestrates the ticket ingestion pipeline: render a PDF
// page, extract the showing fields with the vision model, locate the QR
// code, store the crop, and persist a ticket. Pages are independent units of
// work; one page's failure never aborts its siblings.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"festival-tickets/internal/blob"
	"festival-tickets/internal/ingest/extract"
	"festival-tickets/internal/logger"
	"festival-tickets/internal/models"
)

// Renderer rasterizes pages of a PDF document.
type Renderer interface {
	PageCount(pdf []byte) (int, error)
	RenderPage(pdf []byte, pageIndex int) (image.Image, error)
}

// Extractor reads the four ticket fields off a page image.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (extract.Fields, error)
}

// Locator crops and normalizes the QR code region of a page image.
type Locator interface {
	Locate(img image.Image) (image.Image, error)
}

// TicketCreator persists extracted tickets.
type TicketCreator interface {
	CreateTicket(ctx context.Context, fields models.NewTicketFields) (*models.Ticket, error)
}

// EventPublisher announces persisted tickets. Publish failures are logged
// and never fail a page.
type EventPublisher interface {
	PublishTicketCreated(ctx context.Context, ticket models.Ticket) error
}

// LinkFinder resolves the festival page for an act, best-effort.
type LinkFinder interface {
	FindLink(ctx context.Context, act string) string
}

// Page is one unit of work: a rendered page image plus its position in the
// batch and, optionally, the URL of the source document.
type Page struct {
	Number        int // 0-based position in the batch
	Image         image.Image
	PDFURL        string
	TransactionID string
}

// Pipeline wires the per-page collaborators. Events and Links are optional;
// everything else is required.
type Pipeline struct {
	Renderer Renderer
	Extract  Extractor
	Locator  Locator
	Blob     blob.Store
	Tickets  TicketCreator
	Events   EventPublisher
	Links    LinkFinder
	Logger   *logger.Logger

	// now stamps blob object keys; overridable in tests.
	now func() time.Time
}

func NewPipeline(renderer Renderer, extractor Extractor, locator Locator, store blob.Store, tickets TicketCreator, events EventPublisher, links LinkFinder, log *logger.Logger) *Pipeline {
	return &Pipeline{
		Renderer: renderer,
		Extract:  extractor,
		Locator:  locator,
		Blob:     store,
		Tickets:  tickets,
		Events:   events,
		Links:    links,
		Logger:   log,
		now:      time.Now,
	}
}

// ProcessPDF renders every page of the document and processes the batch. A
// document that cannot be opened at all fails the call; a page that fails to
// render fails only that page.
func (p *Pipeline) ProcessPDF(ctx context.Context, pdf []byte, pdfURL, transactionID string) (models.BatchSummary, error) {
	count, err := p.Renderer.PageCount(pdf)
	if err != nil {
		return models.BatchSummary{}, fmt.Errorf("failed to open document: %w", err)
	}

	pages := make([]Page, count)
	for i := 0; i < count; i++ {
		pages[i] = Page{Number: i, PDFURL: pdfURL, TransactionID: transactionID}
		img, err := p.Renderer.RenderPage(pdf, i)
		if err != nil {
			// Leave Image nil; processPage converts it into a per-page
			// failure so sibling pages still run.
			p.logf("RENDER", fmt.Sprintf("page %d failed to render: %v", i, err))
			continue
		}
		pages[i].Image = img
	}

	return p.ProcessPages(ctx, pages), nil
}

// ProcessPages runs the batch over pre-rendered page images. Every page runs
// to completion regardless of sibling outcomes; the summary preserves input
// order, and totals always satisfy successful+failed == totalPages.
func (p *Pipeline) ProcessPages(ctx context.Context, pages []Page) models.BatchSummary {
	summary := models.BatchSummary{
		TotalPages: len(pages),
		Tickets:    make([]models.PageResult, 0, len(pages)),
	}

	for _, page := range pages {
		result := p.processPage(ctx, page)
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
			p.logf("PAGE", fmt.Sprintf("page %d failed: %s", page.Number+1, result.Error))
		}
		summary.Tickets = append(summary.Tickets, result)
	}

	p.logf("BATCH", fmt.Sprintf("processed %d pages: %d successful, %d failed",
		summary.TotalPages, summary.Successful, summary.Failed))
	return summary
}

// processPage is the per-page fold. Every error is converted into a failed
// PageResult here, at the page boundary.
func (p *Pipeline) processPage(ctx context.Context, page Page) models.PageResult {
	if page.Image == nil {
		return failedResult("Could not render page")
	}

	fields, err := p.Extract.Extract(ctx, page.Image)
	if err != nil {
		return failedResult(extractionMessage(err))
	}

	qrImg, err := p.Locator.Locate(page.Image)
	if err != nil {
		// NotFound and locator errors alike: the page has no usable code.
		return failedResult("Could not extract QR code")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrImg); err != nil {
		return failedResult(fmt.Sprintf("failed to encode QR image: %v", err))
	}
	key := fmt.Sprintf("qr-codes/%d-%d.png", p.now().UnixMilli(), page.Number)
	qrURL, err := p.Blob.Store(ctx, key, buf.Bytes(), "image/png")
	if err != nil {
		return failedResult(fmt.Sprintf("failed to store QR image: %v", err))
	}

	// The grouping contract: pipe-joined verbatim field values, identical to
	// the key the screening aggregator derives.
	screeningKey := fields.Act + "|" + fields.Date + "|" + fields.Start

	var festivalLink string
	if p.Links != nil {
		festivalLink = p.Links.FindLink(ctx, fields.Act)
	}

	ticket, err := p.Tickets.CreateTicket(ctx, models.NewTicketFields{
		Act:           fields.Act,
		Location:      fields.Location,
		Date:          fields.Date,
		Start:         fields.Start,
		QRCodeURL:     qrURL,
		PDFURL:        page.PDFURL,
		TransactionID: page.TransactionID,
		FestivalLink:  festivalLink,
	})
	if err != nil {
		return failedResult(fmt.Sprintf("failed to save ticket: %v", err))
	}

	if p.Events != nil {
		if err := p.Events.PublishTicketCreated(ctx, *ticket); err != nil {
			p.logf("KAFKA", fmt.Sprintf("failed to publish ticket %s: %v", ticket.ID, err))
		}
	}

	return models.PageResult{
		TicketID:     ticket.ID,
		ScreeningKey: screeningKey,
		Success:      true,
	}
}

func failedResult(message string) models.PageResult {
	return models.PageResult{Success: false, Error: message}
}

// extractionMessage keeps the actionable quota/rate-limit wording of the
// extractor; other errors pass through as-is.
func extractionMessage(err error) string {
	var ee *extract.ExtractionError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	return err.Error()
}

func (p *Pipeline) logf(action, message string) {
	if p.Logger != nil {
		p.Logger.LogPipeline(action, message)
	}
}
