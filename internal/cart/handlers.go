package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/variant"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a handler with its own validator instance.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: validator.New()}
}

// Routes returns the cart sub-router, mounted under /api/v1/carts.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/variants", h.AddVariants)
	r.Delete("/{id}/variants", h.RemoveVariants)
	r.Patch("/{id}/quantities", h.ChangeQuantities)
	r.Patch("/{id}/variants/price", h.SetPrice)
	r.Patch("/{id}/variants/bounds", h.SetBounds)
	return r
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		Product ProductInput `json:"product" validate:"required"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	id, view, err := h.Svc.Create(payload.Product)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{"cartId": id, "product": view},
	})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddVariants handles POST /api/v1/carts/{id}/variants.
func (h *Handler) AddVariants(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path     []string       `json:"path"`
		Variants []VariantInput `json:"variants" validate:"required,min=1,dive"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.AddVariants(chi.URLParam(r, "id"), payload.Path, payload.Variants)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveVariants handles DELETE /api/v1/carts/{id}/variants.
func (h *Handler) RemoveVariants(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Variants RemovalNode `json:"variants" validate:"required,min=1"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.RemoveVariants(chi.URLParam(r, "id"), payload.Variants)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// ChangeQuantities handles PATCH /api/v1/carts/{id}/quantities.
func (h *Handler) ChangeQuantities(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Quantities map[string]QuantityNode `json:"quantities" validate:"required,min=1"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.ChangeQuantities(chi.URLParam(r, "id"), payload.Quantities)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// SetPrice handles PATCH /api/v1/carts/{id}/variants/price.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path         []string `json:"path" validate:"required,min=1"`
		Price        float64  `json:"price"`
		SpecialPrice *float64 `json:"specialPrice"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.SetVariantPrice(chi.URLParam(r, "id"), payload.Path, payload.Price, payload.SpecialPrice)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// SetBounds handles PATCH /api/v1/carts/{id}/variants/bounds.
func (h *Handler) SetBounds(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path   []string    `json:"path" validate:"required,min=1"`
		Bounds BoundsInput `json:"bounds"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.SetVariantBounds(chi.URLParam(r, "id"), payload.Path, payload.Bounds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	if err := common.DecodeJSON(r, dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			var verrs validator.ValidationErrors
			details := any(nil)
			if errors.As(err, &verrs) {
				fields := make([]string, 0, len(verrs))
				for _, fe := range verrs {
					fields = append(fields, fe.Namespace())
				}
				details = fields
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "request validation failed", details)
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, variant.ErrVariantNotFound):
		common.JSONError(w, http.StatusNotFound, "VARIANT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, variant.ErrInvalidBounds):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_BOUNDS", err.Error(), nil)
	case errors.Is(err, variant.ErrUnknownCalcMethod):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_CALC_METHOD", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid input", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
