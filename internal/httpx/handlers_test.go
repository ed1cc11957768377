package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/craftline/storefront/internal/inventory"
	"github.com/craftline/storefront/internal/orders"
	"github.com/craftline/storefront/internal/payments"
)

type fakeProducts map[string]orders.Product

func (f fakeProducts) GetByIDs(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	out := map[string]orders.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f fakeProducts) List(ctx context.Context) ([]orders.Product, error) {
	var out []orders.Product
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

type fakeDirectory struct {
	byID        map[string]*orders.Order
	fulfillment []orders.FulfillmentStage
}

func (f *fakeDirectory) GetByID(ctx context.Context, id string) (*orders.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return o, nil
}

func (f *fakeDirectory) AdvanceFulfillment(ctx context.Context, orderID string, stage orders.FulfillmentStage, tracking *string) error {
	if _, ok := f.byID[orderID]; !ok {
		return orders.ErrNotFound
	}
	f.fulfillment = append(f.fulfillment, stage)
	return nil
}

func (f *fakeDirectory) AppendOperatorNote(ctx context.Context, orderID, note string) error {
	if _, ok := f.byID[orderID]; !ok {
		return orders.ErrNotFound
	}
	return nil
}

func testHandler(t *testing.T, products fakeProducts, dir *fakeDirectory) *Handler {
	t.Helper()
	if dir == nil {
		dir = &fakeDirectory{byID: map[string]*orders.Order{}}
	}
	return &Handler{
		Validator:     &inventory.Validator{Products: products},
		Catalog:       products,
		Orders:        dir,
		Processor:     &payments.Processor{Log: zaptest.NewLogger(t)},
		WebhookSecret: []byte("whsec_test"),
		Log:           zaptest.NewLogger(t),
	}
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStockCheckEndpoint(t *testing.T) {
	h := testHandler(t, fakeProducts{
		"prod-a": {ID: "prod-a", Stock: 5, Published: true},
		"prod-b": {ID: "prod-b", Stock: 1, Published: true},
	}, nil)

	body := []byte(`{"items":[{"product_id":"prod-a","quantity":2},{"product_id":"prod-b","quantity":3},{"product_id":"prod-x","quantity":1}]}`)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/stock/check", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var res inventory.CheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.AllAvailable)
	require.Len(t, res.Items, 3)
	require.True(t, res.Items[0].Available)
	require.Contains(t, res.Items[1].Reason, "insufficient stock (have 1, want 3)")
	require.Equal(t, "not found", res.Items[2].Reason)
}

func TestStockCheckRejectsEmpty(t *testing.T) {
	h := testHandler(t, fakeProducts{}, nil)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/stock/check", bytes.NewReader([]byte(`{"items":[]}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := testHandler(t, fakeProducts{}, nil)
	body := []byte(`{"id":"evt-1","type":"payment.completed"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(payments.SignatureHeader, "deadbeef")
	rec := serve(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	rec = serve(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing signature header")
}

func TestWebhookAcknowledgesUnrecognizedKind(t *testing.T) {
	h := testHandler(t, fakeProducts{}, nil)
	body := []byte(`{"id":"evt-1","type":"customer.updated"}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(payments.SignatureHeader, payments.Sign([]byte("whsec_test"), body))
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())
}

func TestOrderReadScoping(t *testing.T) {
	uid := "user-7"
	dir := &fakeDirectory{byID: map[string]*orders.Order{
		"ord-1": {ID: "ord-1", Email: "buyer@example.com", UserID: &uid, Status: orders.StatusPaid},
	}}
	h := testHandler(t, fakeProducts{}, dir)

	// no identity: reads as not found
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// owning user
	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req.Header.Set("X-User-Id", uid)
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// matching checkout email
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/orders/ord-1?email=Buyer@Example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// wrong user
	req = httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req.Header.Set("X-User-Id", "user-8")
	rec = serve(h, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	dir := &fakeDirectory{byID: map[string]*orders.Order{
		"ord-1": {ID: "ord-1", Email: "buyer@example.com", Status: orders.StatusPaid},
	}}
	h := testHandler(t, fakeProducts{}, dir)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/orders/ord-1", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/ord-1", nil)
	req.Header.Set("X-Roles", "support, admin")
	rec = serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFulfillmentUpdate(t *testing.T) {
	dir := &fakeDirectory{byID: map[string]*orders.Order{
		"ord-1": {ID: "ord-1", Status: orders.StatusPaid},
	}}
	h := testHandler(t, fakeProducts{}, dir)

	body := []byte(`{"stage":"DISPATCHED","tracking_ref":"TRACK123"}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord-1/fulfillment", bytes.NewReader(body))
	req.Header.Set("X-Roles", "admin")
	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []orders.FulfillmentStage{orders.FulfillmentDispatched}, dir.fulfillment)

	// unknown stage rejected before touching the store
	body = []byte(`{"stage":"TELEPORTED"}`)
	req = httptest.NewRequest(http.MethodPatch, "/admin/orders/ord-1/fulfillment", bytes.NewReader(body))
	req.Header.Set("X-Roles", "admin")
	rec = serve(h, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, dir.fulfillment, 1)
}
