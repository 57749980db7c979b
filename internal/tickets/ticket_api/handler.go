package ticket_api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"festival-tickets/internal/blob"
	"festival-tickets/internal/ingest"
	"festival-tickets/internal/logger"
	"festival-tickets/internal/models"
	"festival-tickets/internal/utils"
)

const maxUploadBytes = 32 << 20

// PDFProcessor runs the ingestion over an uploaded document or a batch of
// pre-rendered page images.
type PDFProcessor interface {
	ProcessPDF(ctx context.Context, pdf []byte, pdfURL, transactionID string) (models.BatchSummary, error)
	ProcessPages(ctx context.Context, pages []ingest.Page) models.BatchSummary
}

// TicketReader serves tickets and the screening views derived from them.
type TicketReader interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetScreenings(ctx context.Context) ([]models.Screening, error)
	GetScreening(ctx context.Context, act, date, start string) (*models.Screening, error)
	DeleteTicket(ctx context.Context, id string) error
}

type Handler struct {
	Pipeline PDFProcessor
	Tickets  TicketReader
	Blob     blob.Store
	Logger   *logger.Logger
	Client   *http.Client
}

func NewHandler(pipeline PDFProcessor, tickets TicketReader, store blob.Store, log *logger.Logger) *Handler {
	return &Handler{
		Pipeline: pipeline,
		Tickets:  tickets,
		Blob:     store,
		Logger:   log,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterRoutes registers the ticket and screening routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/upload", h.UploadPDF)
	r.Post("/api/process-pdf", h.ProcessPDF)
	r.Get("/api/screenings", h.GetScreenings)
	r.Get("/api/screenings/{id}", h.GetScreening)
	r.Get("/api/tickets/{id}", h.GetTicket)
	r.Delete("/api/tickets/{id}", h.DeleteTicket)
}

// UploadPDF accepts a multipart PDF upload, archives the document, and runs
// the ingestion over its pages.
func (h *Handler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid multipart form", err.Error()))
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("missing pdf file", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("failed to read upload", err.Error()))
		return
	}
	if len(data) > maxUploadBytes {
		utils.SendJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse("file too large", fmt.Sprintf("limit is %d bytes", maxUploadBytes)))
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("not a PDF document", header.Filename))
		return
	}

	transactionID := utils.GenerateTransactionID()
	pdfURL, err := h.Blob.Store(r.Context(), "tickets/"+transactionID+".pdf", data, "application/pdf")
	if err != nil {
		h.Logger.Error("STORAGE", "failed to archive PDF: "+err.Error())
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to store document", err.Error()))
		return
	}

	summary, err := h.Pipeline.ProcessPDF(r.Context(), data, pdfURL, transactionID)
	if err != nil {
		utils.SendJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("failed to process document", err.Error()))
		return
	}

	utils.SendJSON(w, http.StatusOK, uploadResponse{
		PDFURL:        pdfURL,
		TransactionID: transactionID,
		BatchSummary:  summary,
	})
}

type uploadResponse struct {
	PDFURL        string `json:"pdfUrl"`
	TransactionID string `json:"transactionId"`
	models.BatchSummary
}

type processPDFRequest struct {
	PDFURL     string   `json:"pdfUrl"`
	PageImages []string `json:"pageImages"`
}

// ProcessPDF ingests a batch of pre-rendered page images, or fetches and
// renders the document at pdfUrl when no images are supplied.
func (h *Handler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	var req processPDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if len(req.PageImages) > 0 {
		pages, err := decodePageImages(req.PageImages, req.PDFURL)
		if err != nil {
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid page image", err.Error()))
			return
		}
		utils.SendJSON(w, http.StatusOK, h.Pipeline.ProcessPages(r.Context(), pages))
		return
	}

	if req.PDFURL == "" {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("nothing to process", "provide pageImages or pdfUrl"))
		return
	}

	data, err := h.fetchPDF(r.Context(), req.PDFURL)
	if err != nil {
		utils.SendJSON(w, http.StatusBadGateway, utils.ErrorResponse("failed to fetch document", err.Error()))
		return
	}

	summary, err := h.Pipeline.ProcessPDF(r.Context(), data, req.PDFURL, utils.GenerateTransactionID())
	if err != nil {
		utils.SendJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("failed to process document", err.Error()))
		return
	}

	utils.SendJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetScreenings(w http.ResponseWriter, r *http.Request) {
	screenings, err := h.Tickets.GetScreenings(r.Context())
	if err != nil {
		h.Logger.Error("SCREENINGS", "failed to build screenings: "+err.Error())
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load screenings", err.Error()))
		return
	}
	utils.SendJSON(w, http.StatusOK, screenings)
}

// GetScreening resolves one screening by its pipe-joined act|date|start key.
func (h *Handler) GetScreening(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	parts := strings.SplitN(id, "|", 3)
	if len(parts) != 3 {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid screening id", "expected act|date|start"))
		return
	}

	screening, err := h.Tickets.GetScreening(r.Context(), parts[0], parts[1], parts[2])
	if err != nil {
		utils.SendJSON(w, http.StatusNotFound, utils.ErrorResponse("screening not found", err.Error()))
		return
	}
	utils.SendJSON(w, http.StatusOK, screening)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.SendJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found", err.Error()))
		return
	}
	utils.SendJSON(w, http.StatusOK, ticket)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Tickets.DeleteTicket(r.Context(), id); err != nil {
		utils.SendJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found", err.Error()))
		return
	}
	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("ticket deleted", nil))
}

func decodePageImages(encoded []string, pdfURL string) ([]ingest.Page, error) {
	transactionID := utils.GenerateTransactionID()
	pages := make([]ingest.Page, 0, len(encoded))
	for i, s := range encoded {
		// Accept both raw base64 and data URLs.
		if idx := strings.Index(s, ","); idx != -1 && strings.HasPrefix(s, "data:") {
			s = s[idx+1:]
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("page %d: invalid base64: %w", i+1, err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("page %d: undecodable image: %w", i+1, err)
		}
		pages = append(pages, ingest.Page{Number: i, Image: img, PDFURL: pdfURL, TransactionID: transactionID})
	}
	return pages, nil
}

func (h *Handler) fetchPDF(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
}
