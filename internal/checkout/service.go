package checkout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/config"
	"github.com/craftline/storefront/internal/inventory"
	"github.com/craftline/storefront/internal/orders"
	"github.com/craftline/storefront/internal/payments"
)

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}

type Request struct {
	Email           string         `json:"email"`
	UserID          *string        `json:"user_id,omitempty"`
	Items           []CartItem     `json:"items"`
	ShippingMethod  ShippingMethod `json:"shipping_method"`
	ShippingAddress orders.Address `json:"shipping_address"`
	ShippingCents   *int           `json:"shipping_cents,omitempty"`
}

type Result struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	OrderID   string `json:"order_id"`
	Quote     Quote  `json:"quote"`
}

type OrderCreator interface {
	Create(ctx context.Context, n orders.NewOrder) (*orders.Order, error)
}

type AddressStore interface {
	SaveAddress(ctx context.Context, a orders.Address) (string, error)
}

// Service builds a priced order and links it to an external payment
// session. The session/order linkage is a saga: create the session, create
// the order referencing it, then patch the session with the order id. On
// any failure the whole attempt fails and the caller retries from scratch.
type Service struct {
	Products  inventory.ProductSource
	Validator *inventory.Validator
	Orders    OrderCreator
	Addresses AddressStore
	Sessions  payments.SessionClient
	Pricing   config.Pricing
	Provider  config.Provider
	Log       *zap.Logger
}

func (s *Service) Create(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	// Authoritative product records; the cart's idea of prices is ignored.
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Products.GetByIDs(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	for _, it := range req.Items {
		if _, ok := products[it.ProductID]; !ok {
			return Result{}, &NotFoundError{Msg: fmt.Sprintf("product not found: %s", it.ProductID)}
		}
	}

	checkItems := make([]inventory.ItemQty, 0, len(req.Items))
	for _, it := range req.Items {
		checkItems = append(checkItems, inventory.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	check, err := s.Validator.Check(ctx, checkItems)
	if err != nil {
		return Result{}, err
	}
	if !check.AllAvailable {
		return Result{}, &StockError{Result: check}
	}

	priced := make([]PricedItem, 0, len(req.Items))
	for _, it := range req.Items {
		p := products[it.ProductID]
		priced = append(priced, PricedItem{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: p.PriceCents})
	}
	quote, err := Price(s.Pricing, priced, req.ShippingMethod, req.ShippingCents)
	if err != nil {
		return Result{}, &ValidationError{Msg: err.Error()}
	}

	addr := req.ShippingAddress
	addr.UserID = req.UserID
	addrID, err := s.Addresses.SaveAddress(ctx, addr)
	if err != nil {
		return Result{}, err
	}

	sessReq := payments.SessionRequest{
		SuccessURL: s.Provider.SuccessURL,
		CancelURL:  s.Provider.CancelURL,
	}
	for _, it := range priced {
		sessReq.Lines = append(sessReq.Lines, payments.SessionLine{
			Name:        products[it.ProductID].Name,
			AmountCents: it.UnitPriceCents,
			Qty:         it.Qty,
		})
	}
	// The synthetic shipping line absorbs tax too, so the session charges
	// exactly the order total.
	sessReq.Lines = append(sessReq.Lines, payments.SessionLine{
		Name:        "shipping",
		AmountCents: quote.ShippingCents + quote.TaxCents,
		Qty:         1,
	})
	sess, err := s.Sessions.CreateSession(ctx, sessReq)
	if err != nil {
		return Result{}, err
	}

	items := make([]orders.NewLineItem, 0, len(priced))
	for _, it := range priced {
		items = append(items, orders.NewLineItem{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents})
	}
	o, err := s.Orders.Create(ctx, orders.NewOrder{
		Email:             req.Email,
		UserID:            req.UserID,
		Items:             items,
		SubtotalCents:     quote.SubtotalCents,
		TaxCents:          quote.TaxCents,
		ShippingCents:     quote.ShippingCents,
		TotalCents:        quote.TotalCents,
		PaymentSessionID:  sess.ID,
		ShippingAddressID: &addrID,
	})
	if err != nil {
		return Result{}, err
	}

	// Closes the two-phase linkage: the session cannot know the order id
	// until the order exists. A crash between order creation and this patch
	// is the accepted narrow failure window.
	if err := s.Sessions.PatchSessionMetadata(ctx, sess.ID, map[string]string{"order_id": o.ID}); err != nil {
		s.Log.Error("patch session metadata failed",
			zap.String("order_id", o.ID), zap.String("session_id", sess.ID), zap.Error(err))
		return Result{}, err
	}

	s.Log.Info("checkout session created",
		zap.String("order_id", o.ID),
		zap.String("session_id", sess.ID),
		zap.Int("total_cents", quote.TotalCents))

	return Result{SessionID: sess.ID, URL: sess.URL, OrderID: o.ID, Quote: quote}, nil
}

func validate(req Request) error {
	if req.Email == "" {
		return &ValidationError{Msg: "email is required"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Msg: "cart is empty"}
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Qty <= 0 {
			return &ValidationError{Msg: fmt.Sprintf("invalid quantity for product %q", it.ProductID)}
		}
	}
	if !req.ShippingMethod.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("unknown shipping method %q", req.ShippingMethod)}
	}
	if req.ShippingCents != nil && *req.ShippingCents < 0 {
		return &ValidationError{Msg: "shipping override must not be negative"}
	}
	a := req.ShippingAddress
	if a.Name == "" || a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return &ValidationError{Msg: "shipping address is incomplete"}
	}
	return nil
}
