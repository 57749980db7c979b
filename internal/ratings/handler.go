package ratings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"festival-tickets/internal/auth"
	"festival-tickets/internal/logger"
	"festival-tickets/internal/utils"
)

// Handler exposes the rating endpoints.
type Handler struct {
	Service *Service
	Logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the rating routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ratings", func(r chi.Router) {
		r.Get("/{act}", h.GetActRatings)
		r.Post("/", h.PostRating)
		r.Delete("/{act}", h.DeleteRating)
	})
}

type rateRequest struct {
	Act     string `json:"act"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type actRatingsResponse struct {
	Ratings interface{} `json:"ratings"`
	Average float64     `json:"average"`
	Count   int         `json:"count"`
}

func (h *Handler) PostRating(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	rating, err := h.Service.Rate(r.Context(), auth.UserEmail(r.Context()), req.Act, req.Rating, req.Comment)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", verr.Error()))
			return
		}
		h.Logger.Error("RATINGS", "failed to save rating: "+err.Error())
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to save rating", err.Error()))
		return
	}

	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("rating saved", rating))
}

func (h *Handler) GetActRatings(w http.ResponseWriter, r *http.Request) {
	act := chi.URLParam(r, "act")

	list, avg, err := h.Service.ActRatings(r.Context(), act)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", verr.Error()))
			return
		}
		h.Logger.Error("RATINGS", "failed to load ratings: "+err.Error())
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load ratings", err.Error()))
		return
	}

	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("ratings", actRatingsResponse{
		Ratings: list,
		Average: avg.Average,
		Count:   avg.Count,
	}))
}

func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	act := chi.URLParam(r, "act")

	err := h.Service.Remove(r.Context(), auth.UserEmail(r.Context()), act)
	if err != nil {
		if errors.Is(err, ErrRatingNotFound) {
			utils.SendJSON(w, http.StatusNotFound, utils.ErrorResponse("rating not found", err.Error()))
			return
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			utils.SendJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", verr.Error()))
			return
		}
		h.Logger.Error("RATINGS", "failed to delete rating: "+err.Error())
		utils.SendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to delete rating", err.Error()))
		return
	}

	utils.SendJSON(w, http.StatusOK, utils.SuccessResponse("rating deleted", nil))
}
