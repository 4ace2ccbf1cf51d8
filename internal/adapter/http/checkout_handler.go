package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/http/middleware"
	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
	"github.com/javieralejandro89/beztshop-checkout/internal/logging"
	"github.com/javieralejandro89/beztshop-checkout/internal/usecase"
)

type CheckoutHandler struct {
	engine *usecase.Engine
}

func NewCheckoutHandler(engine *usecase.Engine) *CheckoutHandler {
	return &CheckoutHandler{engine: engine}
}

type startReq struct {
	Items []struct {
		ProductID   string `json:"productId" binding:"required"`
		ProductName string `json:"productName"`
		Variant     string `json:"variant"`
		UnitCents   int64  `json:"unitCents" binding:"required,gt=0"`
		Quantity    int    `json:"quantity" binding:"required,gte=1"`
	} `json:"items" binding:"required,min=1"`
}

// Start opens a checkout session over a snapshot of the cart.
func (h *CheckoutHandler) Start(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.CartLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Variant:     it.Variant,
			UnitCents:   it.UnitCents,
			Quantity:    it.Quantity,
		})
	}
	view, err := h.engine.Start(c.Request.Context(), middleware.UserID(c), lines)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *CheckoutHandler) Get(c *gin.Context) {
	view, err := h.engine.Get(c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addressReq struct {
	AddressID string          `json:"addressId"`
	Address   *domain.Address `json:"address"`
}

func (h *CheckoutHandler) SetAddress(c *gin.Context) {
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	if req.AddressID == "" && req.Address == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address_required"})
		return
	}
	view, err := h.engine.SetAddress(c.Param("id"), middleware.UserID(c), req.AddressID, req.Address)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type notesReq struct {
	Notes string `json:"notes"`
}

func (h *CheckoutHandler) SetNotes(c *gin.Context) {
	var req notesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	view, err := h.engine.SetCustomerNotes(c.Param("id"), middleware.UserID(c), req.Notes)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type shippingReq struct {
	ID        string `json:"id" binding:"required"`
	Name      string `json:"name"`
	FlatCents int64  `json:"flatCents" binding:"gte=0"`
}

func (h *CheckoutHandler) SetShippingMethod(c *gin.Context) {
	var req shippingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	view, err := h.engine.SetShippingMethod(c.Request.Context(), c.Param("id"), middleware.UserID(c),
		domain.ShippingMethod{ID: req.ID, Name: req.Name, FlatCents: req.FlatCents})
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type couponReq struct {
	Code string `json:"code" binding:"required"`
}

func (h *CheckoutHandler) ApplyCoupon(c *gin.Context) {
	var req couponReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	view, err := h.engine.ApplyCoupon(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Code)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) RemoveCoupon(c *gin.Context) {
	view, err := h.engine.RemoveCoupon(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type quantityReq struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *CheckoutHandler) SetQuantity(c *gin.Context) {
	var req quantityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	view, err := h.engine.SetQuantity(c.Request.Context(), c.Param("id"), middleware.UserID(c),
		c.Param("productId"), *req.Quantity)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) Advance(c *gin.Context) {
	view, err := h.engine.Advance(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) Back(c *gin.Context) {
	view, err := h.engine.Back(c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) AcknowledgeRemediation(c *gin.Context) {
	view, err := h.engine.AcknowledgeRemediation(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CheckoutHandler) SubmitPayment(c *gin.Context) {
	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated submissions
	outcome, view, err := h.engine.SubmitPayment(c.Request.Context(), c.Param("id"), middleware.UserID(c), idemKey)
	if err != nil {
		h.fail(c, view, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "session": view})
}

// fail maps engine errors onto HTTP statuses. Guard refusals carry the
// session view so the client can render the remediation prompt.
func (h *CheckoutHandler) fail(c *gin.Context, view usecase.SessionView, err error) {
	var cerr *domain.CouponError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	case errors.Is(err, domain.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reauth_required"})
		return
	case errors.As(err, &cerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_coupon", "reason": cerr.Reason, "session": view})
		return
	case errors.Is(err, usecase.ErrStockUnacknowledged):
		c.JSON(http.StatusConflict, gin.H{"error": "stock_findings", "session": view})
		return
	case errors.Is(err, usecase.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, usecase.ErrAddressIncomplete),
		errors.Is(err, usecase.ErrShippingNotReady),
		errors.Is(err, usecase.ErrNotAtPayment),
		errors.Is(err, usecase.ErrPaymentTerminal),
		errors.Is(err, usecase.ErrCartEmpty),
		errors.Is(err, domain.ErrInvalidQuantity):
		status = http.StatusUnprocessableEntity
	default:
		// upstream failure: non-fatal, previous totals stay valid
		status = http.StatusBadGateway
		logging.From(c).Error("upstream failure", "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "session": view})
}
