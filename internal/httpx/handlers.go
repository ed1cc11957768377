package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/authz"
	"github.com/craftline/storefront/internal/checkout"
	"github.com/craftline/storefront/internal/inventory"
	"github.com/craftline/storefront/internal/orders"
	"github.com/craftline/storefront/internal/payments"
)

const maxWebhookBody = 1 << 20

// OrderDirectory is the slice of the order store the HTTP layer reads and
// administers through.
type OrderDirectory interface {
	GetByID(ctx context.Context, id string) (*orders.Order, error)
	AdvanceFulfillment(ctx context.Context, orderID string, stage orders.FulfillmentStage, tracking *string) error
	AppendOperatorNote(ctx context.Context, orderID, note string) error
}

type ProductLister interface {
	List(ctx context.Context) ([]orders.Product, error)
}

type Handler struct {
	Checkout      *checkout.Service
	Validator     *inventory.Validator
	Catalog       ProductLister
	Orders        OrderDirectory
	Processor     *payments.Processor
	WebhookSecret []byte
	Log           *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/stock/check", h.stockCheck)
	r.Post("/checkout", h.createCheckout)
	r.Post("/webhooks/payment", h.paymentWebhook)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireRole(authz.RoleAdmin))
		r.Get("/orders/{id}", h.adminGetOrder)
		r.Patch("/orders/{id}/fulfillment", h.updateFulfillment)
		r.Post("/orders/{id}/note", h.appendNote)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// requireRole reads gateway-injected roles from X-Roles and rejects callers
// missing the required capability.
func requireRole(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caps []string
			for _, p := range strings.Split(r.Header.Get("X-Roles"), ",") {
				if t := strings.TrimSpace(p); t != "" {
					caps = append(caps, t)
				}
			}
			res := authz.Check(caps, required...)
			if !res.Allowed {
				writeJSON(w, http.StatusForbidden, map[string]any{
					"error":         "forbidden",
					"missing_roles": res.Missing,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type stockCheckReq struct {
	Items []inventory.ItemQty `json:"items"`
}

func (h *Handler) stockCheck(w http.ResponseWriter, r *http.Request) {
	var req stockCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Qty <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Validator.Check(ctx, req.Items)
	if err != nil {
		h.Log.Error("stock check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stock check unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if uid := r.Header.Get("X-User-Id"); uid != "" {
		req.UserID = &uid
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Create(ctx, req)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": res.SessionID,
		"url":        res.URL,
		"order_id":   res.OrderID,
		"quote":      res.Quote,
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var (
		vErr *checkout.ValidationError
		nErr *checkout.NotFoundError
		sErr *checkout.StockError
		pErr *payments.ProviderError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Msg})
	case errors.As(err, &nErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": nErr.Msg})
	case errors.As(err, &sErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "stock validation failed",
			"details": sErr.Result.Items,
		})
	case errors.As(err, &pErr):
		h.Log.Error("payment provider unavailable", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment temporarily unavailable"})
	default:
		h.Log.Error("checkout failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// paymentWebhook verifies the signature before trusting a single payload
// byte. Everything after verification acknowledges with 200: the provider
// retries non-2xx responses, and retrying a business failure would not
// help.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if err := payments.VerifySignature(h.WebhookSecret, body, r.Header.Get(payments.SignatureHeader)); err != nil {
		h.Log.Warn("webhook signature verification failed", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	var ev payments.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		// Signed but unparsable; acknowledging avoids a retry loop.
		h.Log.Error("webhook payload undecodable", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.Processor.Handle(r.Context(), ev); err != nil {
		h.Log.Error("webhook processing failed",
			zap.String("event_id", ev.ID), zap.String("kind", ev.Kind), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	// Customer scoping: the caller must own the order, by user id or by the
	// email used at checkout. Unowned orders read as not found.
	uid := r.Header.Get("X-User-Id")
	email := r.URL.Query().Get("email")
	owns := (uid != "" && o.UserID != nil && *o.UserID == uid) ||
		(email != "" && strings.EqualFold(email, o.Email))
	if !owns {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*orders.Order, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return nil, false
	}
	o, err := h.Orders.GetByID(r.Context(), id)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return nil, false
	}
	if err != nil {
		h.Log.Error("order read failed", zap.String("order_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil, false
	}
	return o, true
}

type fulfillmentReq struct {
	Stage       orders.FulfillmentStage `json:"stage"`
	TrackingRef *string                 `json:"tracking_ref,omitempty"`
}

func (h *Handler) updateFulfillment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req fulfillmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !orders.ValidFulfillment(req.Stage) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown fulfillment stage"})
		return
	}

	err := h.Orders.AdvanceFulfillment(r.Context(), id, req.Stage, req.TrackingRef)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "stage": req.Stage})
	}
}

type noteReq struct {
	Note string `json:"note"`
}

func (h *Handler) appendNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req noteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "note is required"})
		return
	}
	err := h.Orders.AppendOperatorNote(r.Context(), id, req.Note)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case err != nil:
		h.Log.Error("append note failed", zap.String("order_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"order_id": id})
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
