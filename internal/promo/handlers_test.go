package promo_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/promo"
	"github.com/noah-isme/backend-resto/internal/tenant"
)

type fakeQuerier struct {
	promotions []promo.Promotion
	code       promo.Code
	parent     promo.Promotion
}

func (f *fakeQuerier) ListActivePromotions(ctx context.Context, tenantID uuid.UUID) ([]promo.Promotion, error) {
	return f.promotions, nil
}

func (f *fakeQuerier) GetCodeWithPromotion(ctx context.Context, tenantID uuid.UUID, code string) (promo.Code, promo.Promotion, error) {
	if !strings.EqualFold(f.code.Code, code) {
		return promo.Code{}, promo.Promotion{}, promo.ErrNotFound
	}
	return f.code, f.parent, nil
}

func (f *fakeQuerier) CountCodeUsage(ctx context.Context, codeID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeQuerier) CountCodeUsageByCustomer(ctx context.Context, codeID, customerID uuid.UUID) (int, error) {
	return 0, nil
}

type fakeAdminStore struct {
	created    []promo.Promotion
	promotions map[uuid.UUID]promo.Promotion
	codes      []promo.Code
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{promotions: map[uuid.UUID]promo.Promotion{}}
}

func (f *fakeAdminStore) CreatePromotion(ctx context.Context, p promo.Promotion) (uuid.UUID, error) {
	p.ID = uuid.New()
	f.created = append(f.created, p)
	f.promotions[p.ID] = p
	return p.ID, nil
}

func (f *fakeAdminStore) GetPromotion(ctx context.Context, tenantID, id uuid.UUID) (promo.Promotion, error) {
	p, ok := f.promotions[id]
	if !ok || p.TenantID != tenantID {
		return promo.Promotion{}, promo.ErrNotFound
	}
	return p, nil
}

func (f *fakeAdminStore) ListPromotions(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]promo.Promotion, error) {
	out := make([]promo.Promotion, 0, len(f.promotions))
	for _, p := range f.promotions {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAdminStore) UpdatePromotion(ctx context.Context, p promo.Promotion) error {
	if _, ok := f.promotions[p.ID]; !ok {
		return promo.ErrNotFound
	}
	f.promotions[p.ID] = p
	return nil
}

func (f *fakeAdminStore) UpdatePromotionStatus(ctx context.Context, tenantID, id uuid.UUID, status promo.Status) error {
	p, ok := f.promotions[id]
	if !ok {
		return promo.ErrNotFound
	}
	p.Status = status
	f.promotions[id] = p
	return nil
}

func (f *fakeAdminStore) DeletePromotion(ctx context.Context, tenantID, id uuid.UUID) error {
	return f.UpdatePromotionStatus(ctx, tenantID, id, promo.StatusCancelled)
}

func (f *fakeAdminStore) CreateCode(ctx context.Context, c promo.Code) (uuid.UUID, error) {
	for _, existing := range f.codes {
		if strings.EqualFold(existing.Code, c.Code) {
			return uuid.Nil, promo.ErrDuplicate
		}
	}
	c.ID = uuid.New()
	f.codes = append(f.codes, c)
	return c.ID, nil
}

func (f *fakeAdminStore) ListCodes(ctx context.Context, tenantID, promotionID uuid.UUID) ([]promo.Code, error) {
	return f.codes, nil
}

func (f *fakeAdminStore) DeactivateCode(ctx context.Context, tenantID, codeID uuid.UUID) error {
	for i := range f.codes {
		if f.codes[i].ID == codeID {
			f.codes[i].Active = false
			return nil
		}
	}
	return promo.ErrNotFound
}

func (f *fakeAdminStore) ListUsage(ctx context.Context, tenantID, promotionID uuid.UUID, limit, offset int) ([]promo.Usage, error) {
	return nil, nil
}

func newHandler(q *fakeQuerier, store *fakeAdminStore) *promo.Handler {
	svc := &promo.Service{
		Q:   q,
		Log: zerolog.Nop(),
		Now: func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) },
	}
	return &promo.Handler{Svc: svc, Store: store, Validate: validator.New()}
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if tenantID != "" {
		req = req.WithContext(tenant.WithTenant(req.Context(), tenantID))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCalculateHandler(t *testing.T) {
	q := &fakeQuerier{promotions: []promo.Promotion{{
		ID:         uuid.New(),
		Name:       "Lunch Deal",
		Type:       promo.TypePercentage,
		Status:     promo.StatusActive,
		Scope:      promo.ScopeOrderTotal,
		Percentage: 10,
	}}}
	h := newHandler(q, newFakeAdminStore())

	body := `{
		"items": [{"itemId": "` + uuid.NewString() + `", "name": "burger", "unitPrice": 2500, "quantity": 2}],
		"subtotal": 5000,
		"deliveryFee": 500,
		"taxAmount": 400
	}`
	rec := doRequest(t, h.Calculate, http.MethodPost, "/api/v1/promotions/calculate", uuid.NewString(), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data promo.CalculationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Valid)
	require.EqualValues(t, 500, resp.Data.TotalDiscount)
	require.EqualValues(t, 5400, resp.Data.Pricing.TotalAmount)
}

func TestCalculateHandlerRequiresTenant(t *testing.T) {
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	rec := doRequest(t, h.Calculate, http.MethodPost, "/api/v1/promotions/calculate", "", `{"subtotal": 1000}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateHandlerRejectsBadJSON(t *testing.T) {
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	rec := doRequest(t, h.Calculate, http.MethodPost, "/api/v1/promotions/calculate", uuid.NewString(), "{broken")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateCodeHandler(t *testing.T) {
	parent := promo.Promotion{
		ID:         uuid.New(),
		Name:       "Welcome",
		Type:       promo.TypePercentage,
		Status:     promo.StatusActive,
		Scope:      promo.ScopeOrderTotal,
		Percentage: 10,
	}
	q := &fakeQuerier{
		code:   promo.Code{ID: uuid.New(), PromotionID: parent.ID, Code: "WELCOME", Active: true},
		parent: parent,
	}
	h := newHandler(q, newFakeAdminStore())

	rec := doRequest(t, h.ValidateCode, http.MethodPost, "/api/v1/promotions/validate-code",
		uuid.NewString(), `{"code": "WELCOME", "orderAmount": 5000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data promo.CodeValidation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Valid)
	require.EqualValues(t, 500, resp.Data.Preview)
}

func TestValidateCodeHandlerUnknownCode(t *testing.T) {
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	rec := doRequest(t, h.ValidateCode, http.MethodPost, "/api/v1/promotions/validate-code",
		uuid.NewString(), `{"code": "GHOST", "orderAmount": 5000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data promo.CodeValidation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Message)
}

func TestCreatePromotionHandler(t *testing.T) {
	store := newFakeAdminStore()
	h := newHandler(&fakeQuerier{}, store)

	body := `{
		"name": "Happy Hour",
		"type": "happy_hour",
		"status": "active",
		"percentage": 20,
		"hourStart": "16:00",
		"hourEnd": "18:00"
	}`
	rec := doRequest(t, h.CreatePromotion, http.MethodPost, "/api/v1/admin/promotions", uuid.NewString(), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.created, 1)
	require.Equal(t, promo.TypeHappyHour, store.created[0].Type)
}

func TestCreatePromotionHandlerRejectsInvalid(t *testing.T) {
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	// percentage over 100 fails construction validation
	body := `{"name": "Bad", "type": "percentage", "percentage": 150}`
	rec := doRequest(t, h.CreatePromotion, http.MethodPost, "/api/v1/admin/promotions", uuid.NewString(), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCodeHandlerConflict(t *testing.T) {
	store := newFakeAdminStore()
	h := newHandler(&fakeQuerier{}, store)
	tenantID := uuid.NewString()
	promoID := uuid.NewString()

	target := "/api/v1/admin/promotions/" + promoID + "/codes"
	body := `{"code": "WELCOME"}`

	rec := doCodeRequest(t, h, target, promoID, tenantID, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doCodeRequest(t, h, target, promoID, tenantID, body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func doCodeRequest(t *testing.T, h *promo.Handler, target, promoID, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", promoID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = tenant.WithTenant(ctx, tenantID)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.CreateCode(rec, req)
	return rec
}

func TestUpdateStatusHandler(t *testing.T) {
	store := newFakeAdminStore()
	h := newHandler(&fakeQuerier{}, store)
	tenantID := uuid.New()

	created, err := store.CreatePromotion(context.Background(), promo.Promotion{
		TenantID: tenantID, Name: "Pause Me", Type: promo.TypePercentage,
		Status: promo.StatusActive, Percentage: 10,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/promotions/"+created.String()+"/status",
		strings.NewReader(`{"status": "paused"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", created.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = tenant.WithTenant(ctx, tenantID.String())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, promo.StatusPaused, store.promotions[created].Status)
}

type captureRecorder struct {
	entries []promo.Usage
}

func (c *captureRecorder) Record(_ context.Context, u promo.Usage) error {
	c.entries = append(c.entries, u)
	return nil
}

func TestRecordUsageHandler(t *testing.T) {
	rec := &captureRecorder{}
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	h.Svc.Rec = rec
	tenantID := uuid.New()
	promotionID := uuid.New()
	orderID := uuid.New()

	body := fmt.Sprintf(`{"entries": [{"promotionId": %q, "orderId": %q, "discountAmount": 500, "originalAmount": 5900}]}`,
		promotionID, orderID)
	resp := doRequest(t, h.RecordUsage, http.MethodPost, "/api/v1/promotions/usage", tenantID.String(), body)

	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, rec.entries, 1)
	require.Equal(t, tenantID, rec.entries[0].TenantID)
	require.Equal(t, promotionID, rec.entries[0].PromotionID)
	require.Equal(t, int64(500), rec.entries[0].Discount)
}

func TestRecordUsageHandlerRejectsEmpty(t *testing.T) {
	h := newHandler(&fakeQuerier{}, newFakeAdminStore())
	resp := doRequest(t, h.RecordUsage, http.MethodPost, "/api/v1/promotions/usage", uuid.NewString(), `{"entries": []}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
