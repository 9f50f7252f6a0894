package promo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/tenant"
)

// AdminStore captures the mutations behind the admin endpoints. The postgres
// store satisfies it.
type AdminStore interface {
	CreatePromotion(ctx context.Context, p Promotion) (uuid.UUID, error)
	GetPromotion(ctx context.Context, tenantID, id uuid.UUID) (Promotion, error)
	ListPromotions(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Promotion, error)
	UpdatePromotion(ctx context.Context, p Promotion) error
	UpdatePromotionStatus(ctx context.Context, tenantID, id uuid.UUID, status Status) error
	DeletePromotion(ctx context.Context, tenantID, id uuid.UUID) error
	CreateCode(ctx context.Context, c Code) (uuid.UUID, error)
	ListCodes(ctx context.Context, tenantID, promotionID uuid.UUID) ([]Code, error)
	DeactivateCode(ctx context.Context, tenantID, codeID uuid.UUID) error
	ListUsage(ctx context.Context, tenantID, promotionID uuid.UUID, limit, offset int) ([]Usage, error)
}

// Handler exposes the calculation, validation, and admin endpoints.
type Handler struct {
	Svc      *Service
	Store    AdminStore
	Cache    *Cache
	Validate *validator.Validate
}

type cartItemPayload struct {
	ItemID     string   `json:"itemId" validate:"required,uuid4"`
	CategoryID string   `json:"categoryId" validate:"omitempty,uuid4"`
	Name       string   `json:"name"`
	UnitPrice  int64    `json:"unitPrice" validate:"gte=0"`
	Quantity   int      `json:"quantity" validate:"gt=0"`
	Modifiers  []string `json:"modifiers"`
}

type orderHistoryPayload struct {
	TotalOrders        int   `json:"totalOrders" validate:"gte=0"`
	TotalSpent         int64 `json:"totalSpent" validate:"gte=0"`
	DaysSinceLastOrder *int  `json:"daysSinceLastOrder"`
}

type calculateRequest struct {
	Items        []cartItemPayload    `json:"items" validate:"dive"`
	Subtotal     int64                `json:"subtotal" validate:"gte=0"`
	DeliveryFee  int64                `json:"deliveryFee" validate:"gte=0"`
	TaxAmount    int64                `json:"taxAmount" validate:"gte=0"`
	PromoCodes   []string             `json:"promoCodes"`
	CustomerID   *string              `json:"customerId" validate:"omitempty,uuid4"`
	OrderHistory *orderHistoryPayload `json:"orderHistory"`
	Segment      string               `json:"customerSegment" validate:"omitempty,oneof=all_customers new returning vip inactive"`
}

type validateCodeRequest struct {
	Code        string  `json:"code" validate:"required"`
	OrderAmount int64   `json:"orderAmount" validate:"gte=0"`
	CustomerID  *string `json:"customerId" validate:"omitempty,uuid4"`
}

type appliedItemPayload struct {
	ItemID   string `json:"itemId" validate:"required,uuid4"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Discount int64  `json:"discount" validate:"gte=0"`
}

type usageEntryPayload struct {
	PromotionID    string               `json:"promotionId" validate:"required,uuid4"`
	OrderID        string               `json:"orderId" validate:"required,uuid4"`
	CustomerID     *string              `json:"customerId" validate:"omitempty,uuid4"`
	CodeID         *string              `json:"codeId" validate:"omitempty,uuid4"`
	DiscountAmount int64                `json:"discountAmount" validate:"gte=0"`
	OriginalAmount int64                `json:"originalAmount" validate:"gte=0"`
	AppliedItems   []appliedItemPayload `json:"appliedItems" validate:"dive"`
}

type recordUsageRequest struct {
	Entries []usageEntryPayload `json:"entries" validate:"required,min=1,dive"`
}

// Calculate prices a cart against the tenant's promotions. The response is
// always 200 with a calculation result; infrastructure failures surface as
// isValid=false with pass-through pricing rather than an HTTP error.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	in, err := buildCalculationInput(tenantID, req)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	result := h.Svc.Calculate(r.Context(), in)
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// ValidateCode checks a single promotion code before checkout.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var req validateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	customerID, err := parseOptionalUUID(req.CustomerID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
		return
	}
	result, err := h.Svc.ValidateCode(r.Context(), tenantID, req.Code, customerID, req.OrderAmount)
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to validate code", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// RecordUsage accepts the usage entries for a finalized order. Recording is
// fire-and-forget: the response acknowledges receipt, not persistence.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	var req recordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	usages := make([]Usage, 0, len(req.Entries))
	for _, entry := range req.Entries {
		u, err := buildUsage(tenantID, entry)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		usages = append(usages, u)
	}
	h.Svc.RecordUsage(r.Context(), usages)
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"accepted": len(usages)}})
}

type promotionPayload struct {
	Name           string     `json:"name" validate:"required"`
	Type           string     `json:"type" validate:"required"`
	Status         string     `json:"status"`
	Scope          string     `json:"scope"`
	Percentage     float64    `json:"percentage"`
	Amount         int64      `json:"amount"`
	MaxDiscount    *int64     `json:"maxDiscount"`
	BuyQuantity    int        `json:"buyQuantity"`
	GetQuantity    int        `json:"getQuantity"`
	GetDiscountPct float64    `json:"getDiscountPct"`
	MinOrderAmount int64      `json:"minOrderAmount"`
	MinItems       int        `json:"minItems"`
	UsageLimit     *int       `json:"usageLimit"`
	PerCustomer    *int       `json:"perCustomerLimit"`
	Frequency      string     `json:"usageFrequency"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	Weekdays       []int      `json:"weekdays" validate:"dive,gte=0,lte=6"`
	HourStart      string     `json:"hourStart"`
	HourEnd        string     `json:"hourEnd"`
	Segment        string     `json:"customerSegment"`
	Stackable      bool       `json:"stackable"`
	StackPriority  int        `json:"stackPriority"`
	AutoApply      bool       `json:"autoApply"`
	RequiresCode   bool       `json:"requiresCode"`
	CategoryIDs    []string   `json:"categoryIds" validate:"dive,uuid4"`
	ItemIDs        []string   `json:"itemIds" validate:"dive,uuid4"`
	Rules          []Rule     `json:"rules"`
}

type codePayload struct {
	Code        string     `json:"code" validate:"required"`
	Active      *bool      `json:"active"`
	SingleUse   bool       `json:"singleUse"`
	UsageLimit  *int       `json:"usageLimit"`
	PerCustomer *int       `json:"perCustomerLimit"`
	ValidFrom   *time.Time `json:"validFrom"`
	ValidUntil  *time.Time `json:"validUntil"`
}

// CreatePromotion inserts a new promotion for the tenant.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	p, err := buildPromotion(tenantID, payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	id, err := h.Store.CreatePromotion(r.Context(), p)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create promotion", nil)
		return
	}
	h.invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id}})
}

// GetPromotion returns one promotion.
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	p, err := h.Store.GetPromotion(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load promotion", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// ListPromotions pages through the tenant's promotions.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	promos, err := h.Store.ListPromotions(r.Context(), tenantID, limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list promotions", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// UpdatePromotion replaces a promotion's definition.
func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	p, err := buildPromotion(tenantID, payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	p.ID = id
	if err := h.Store.UpdatePromotion(r.Context(), p); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update promotion", nil)
		return
	}
	h.invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id}})
}

// UpdateStatus moves a promotion through its lifecycle.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	var payload struct {
		Status string `json:"status" validate:"required,oneof=draft active paused expired exhausted cancelled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	if err := h.Store.UpdatePromotionStatus(r.Context(), tenantID, id, Status(payload.Status)); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update status", nil)
		return
	}
	h.invalidate(r.Context(), tenantID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": payload.Status}})
}

// DeletePromotion cancels a promotion.
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	if err := h.Store.DeletePromotion(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete promotion", nil)
		return
	}
	h.invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateCode attaches a redemption code to a promotion.
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	promotionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	var payload codePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	id, err := h.Store.CreateCode(r.Context(), Code{
		PromotionID: promotionID,
		TenantID:    tenantID,
		Code:        payload.Code,
		Active:      active,
		SingleUse:   payload.SingleUse,
		UsageLimit:  payload.UsageLimit,
		PerCustomer: payload.PerCustomer,
		ValidFrom:   payload.ValidFrom,
		ValidUntil:  payload.ValidUntil,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promotion code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create code", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id}})
}

// ListCodes returns every code attached to a promotion.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	promotionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	codes, err := h.Store.ListCodes(r.Context(), tenantID, promotionID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list codes", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": codes})
}

// DeactivateCode turns a code off.
func (h *Handler) DeactivateCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	codeID, err := uuid.Parse(chi.URLParam(r, "codeId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid code id", nil)
		return
	}
	if err := h.Store.DeactivateCode(r.Context(), tenantID, codeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "code not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate code", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsage returns a promotion's redemption history.
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.adminPrereqs(w, r)
	if !ok {
		return
	}
	promotionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	usages, err := h.Store.ListUsage(r.Context(), tenantID, promotionID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list usage", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": usages})
}

func (h *Handler) adminPrereqs(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return uuid.Nil, false
	}
	return h.tenantID(w, r)
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := tenant.From(r.Context())
	if !ok || strings.TrimSpace(raw) == "" {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant not resolved", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant id must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func (h *Handler) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if h.Cache == nil {
		return
	}
	_ = h.Cache.Invalidate(ctx, tenantID)
}

func buildCalculationInput(tenantID uuid.UUID, req calculateRequest) (CalculationInput, error) {
	items := make([]CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		itemID, err := uuid.Parse(it.ItemID)
		if err != nil {
			return CalculationInput{}, errors.New("invalid item id")
		}
		categoryID := uuid.Nil
		if it.CategoryID != "" {
			categoryID, err = uuid.Parse(it.CategoryID)
			if err != nil {
				return CalculationInput{}, errors.New("invalid category id")
			}
		}
		items = append(items, CartItem{
			ItemID:     itemID,
			CategoryID: categoryID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			Modifiers:  it.Modifiers,
		})
	}
	customerID, err := parseOptionalUUID(req.CustomerID)
	if err != nil {
		return CalculationInput{}, errors.New("invalid customer id")
	}
	var history *OrderHistory
	if req.OrderHistory != nil {
		history = &OrderHistory{
			TotalOrders:        req.OrderHistory.TotalOrders,
			TotalSpent:         req.OrderHistory.TotalSpent,
			DaysSinceLastOrder: req.OrderHistory.DaysSinceLastOrder,
		}
	}
	return CalculationInput{
		TenantID:   tenantID,
		CustomerID: customerID,
		Cart: Cart{
			Items:       items,
			Subtotal:    req.Subtotal,
			DeliveryFee: req.DeliveryFee,
			TaxAmount:   req.TaxAmount,
		},
		PromoCodes: req.PromoCodes,
		History:    history,
		Segment:    CustomerSegment(req.Segment),
	}, nil
}

func buildPromotion(tenantID uuid.UUID, payload promotionPayload) (Promotion, error) {
	categoryIDs, err := parseUUIDs(payload.CategoryIDs)
	if err != nil {
		return Promotion{}, errors.New("invalid category id")
	}
	itemIDs, err := parseUUIDs(payload.ItemIDs)
	if err != nil {
		return Promotion{}, errors.New("invalid item id")
	}
	weekdays := make([]time.Weekday, 0, len(payload.Weekdays))
	for _, d := range payload.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}
	status := Status(payload.Status)
	if payload.Status == "" {
		status = StatusDraft
	}
	scope := DiscountScope(payload.Scope)
	if payload.Scope == "" {
		scope = ScopeOrderTotal
	}
	frequency := UsageFrequency(payload.Frequency)
	if payload.Frequency == "" {
		frequency = FrequencyUnlimited
	}
	segment := CustomerSegment(payload.Segment)
	if payload.Segment == "" {
		segment = SegmentAll
	}
	var maxDiscount *Money
	if payload.MaxDiscount != nil {
		v := Money(*payload.MaxDiscount)
		maxDiscount = &v
	}
	p := Promotion{
		TenantID:       tenantID,
		Name:           payload.Name,
		Type:           PromotionType(payload.Type),
		Status:         status,
		Scope:          scope,
		Percentage:     payload.Percentage,
		Amount:         payload.Amount,
		MaxDiscount:    maxDiscount,
		BuyQuantity:    payload.BuyQuantity,
		GetQuantity:    payload.GetQuantity,
		GetDiscountPct: payload.GetDiscountPct,
		MinOrderAmount: payload.MinOrderAmount,
		MinItems:       payload.MinItems,
		UsageLimit:     payload.UsageLimit,
		PerCustomer:    payload.PerCustomer,
		Frequency:      frequency,
		ValidFrom:      payload.ValidFrom,
		ValidUntil:     payload.ValidUntil,
		Weekdays:       weekdays,
		HourStart:      payload.HourStart,
		HourEnd:        payload.HourEnd,
		Segment:        segment,
		Stackable:      payload.Stackable,
		StackPriority:  payload.StackPriority,
		AutoApply:      payload.AutoApply,
		RequiresCode:   payload.RequiresCode,
		CategoryIDs:    categoryIDs,
		ItemIDs:        itemIDs,
		Rules:          payload.Rules,
	}
	if err := p.Validate(); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

func buildUsage(tenantID uuid.UUID, entry usageEntryPayload) (Usage, error) {
	promotionID, err := uuid.Parse(entry.PromotionID)
	if err != nil {
		return Usage{}, errors.New("invalid promotion id")
	}
	orderID, err := uuid.Parse(entry.OrderID)
	if err != nil {
		return Usage{}, errors.New("invalid order id")
	}
	customerID, err := parseOptionalUUID(entry.CustomerID)
	if err != nil {
		return Usage{}, errors.New("invalid customer id")
	}
	codeID, err := parseOptionalUUID(entry.CodeID)
	if err != nil {
		return Usage{}, errors.New("invalid code id")
	}
	items := make([]AppliedItem, 0, len(entry.AppliedItems))
	for _, it := range entry.AppliedItems {
		itemID, err := uuid.Parse(it.ItemID)
		if err != nil {
			return Usage{}, errors.New("invalid applied item id")
		}
		items = append(items, AppliedItem{
			ItemID:   itemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Discount: it.Discount,
		})
	}
	return Usage{
		TenantID:       tenantID,
		PromotionID:    promotionID,
		OrderID:        orderID,
		CustomerID:     customerID,
		CodeID:         codeID,
		Discount:       entry.DiscountAmount,
		OriginalAmount: entry.OriginalAmount,
		AppliedItems:   items,
	}, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

