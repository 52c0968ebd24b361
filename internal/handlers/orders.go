package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/aster-goods/commerce/internal/domain"
	"github.com/aster-goods/commerce/internal/platform/httpx"
	"github.com/aster-goods/commerce/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024

	actorHeader = "X-Actor-Id"
)

var errBodyTooLarge = errors.New("request body too large")

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Post("/{orderID}:confirm", h.confirmOrder)
	r.Post("/{orderID}/payments", h.addPayment)
	r.Post("/{orderID}/shipments", h.createShipment)
	r.Post("/{orderID}:pack", h.markPacked)
	r.Post("/{orderID}:ship", h.markShipped)
	r.Post("/{orderID}:deliver", h.markDelivered)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

type orderItemRequest struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type addressRequest struct {
	Type       string `json:"type"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	PostalCode string `json:"postal_code"`
}

type createOrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	CustomerPhone string             `json:"customer_phone"`
	Currency      string             `json:"currency"`
	Items         []orderItemRequest `json:"items"`
	Addresses     []addressRequest   `json:"addresses"`
}

type updateOrderRequest struct {
	CustomerName  *string           `json:"customer_name"`
	CustomerEmail *string           `json:"customer_email"`
	CustomerPhone *string           `json:"customer_phone"`
	Addresses     *[]addressRequest `json:"addresses"`
}

type addPaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type createShipmentRequest struct {
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	TrackingCode string `json:"tracking_code"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Currency:      req.Currency,
		Items:         make([]services.OrderItemInput, 0, len(req.Items)),
		Addresses:     make([]services.AddressInput, 0, len(req.Addresses)),
		ActorID:       actorID(r),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	for _, addr := range req.Addresses {
		cmd.Addresses = append(cmd.Addresses, addressInput(addr))
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.OrderListFilter{
		OrderStatus:       domain.OrderStatus(strings.TrimSpace(query.Get("order_status"))),
		PaymentStatus:     domain.PaymentStatus(strings.TrimSpace(query.Get("payment_status"))),
		FulfillmentStatus: domain.FulfillmentStatus(strings.TrimSpace(query.Get("fulfillment_status"))),
		Limit:             defaultOrderPageSize,
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case limit <= 0:
			filter.Limit = defaultOrderPageSize
		case limit > maxOrderPageSize:
			filter.Limit = maxOrderPageSize
		default:
			filter.Limit = limit
		}
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "offset must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.Offset = offset
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{
		Items:      items,
		TotalCount: page.TotalCount,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	opts := services.OrderReadOptions{}
	for _, include := range strings.Split(r.URL.Query().Get("include"), ",") {
		switch strings.TrimSpace(include) {
		case "payments":
			opts.IncludePayments = true
		case "shipments":
			opts.IncludeShipments = true
		case "events":
			opts.IncludeEvents = true
		}
	}

	order, err := h.orders.GetOrder(ctx, orderID, opts)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := services.UpdateOrderCommand{
		OrderID:       orderID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ActorID:       actorID(r),
	}
	if req.Addresses != nil {
		addresses := make([]services.AddressInput, 0, len(*req.Addresses))
		for _, addr := range *req.Addresses {
			addresses = append(addresses, addressInput(addr))
		}
		cmd.Addresses = addresses
	}

	order, err := h.orders.UpdateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID, actor string) (services.Order, error) {
		return h.orders.ConfirmOrder(ctx, services.ConfirmOrderCommand{OrderID: orderID, ActorID: actor})
	})
}

func (h *OrderHandlers) addPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req addPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.AddPayment(ctx, services.AddPaymentCommand{
		OrderID: orderID,
		Amount:  req.Amount,
		Method:  req.Method,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) createShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req createShipmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.CreateShipment(ctx, services.CreateShipmentCommand{
		OrderID:      orderID,
		Carrier:      req.Carrier,
		Service:      req.Service,
		TrackingCode: req.TrackingCode,
		ActorID:      actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) markPacked(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID, actor string) (services.Order, error) {
		return h.orders.MarkPacked(ctx, services.FulfillmentCommand{OrderID: orderID, ActorID: actor})
	})
}

func (h *OrderHandlers) markShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID, actor string) (services.Order, error) {
		return h.orders.MarkShipped(ctx, services.FulfillmentCommand{OrderID: orderID, ActorID: actor})
	})
}

func (h *OrderHandlers) markDelivered(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orderID, actor string) (services.Order, error) {
		return h.orders.MarkDelivered(ctx, services.FulfillmentCommand{OrderID: orderID, ActorID: actor})
	})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Reason:  req.Reason,
		ActorID: actorID(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID, actor string) (services.Order, error)) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := fn(ctx, orderID, actorID(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// Response payloads ----------------------------------------------------------

type orderListResponse struct {
	Items      []orderSummaryPayload `json:"items"`
	TotalCount int64                 `json:"total_count"`
}

type orderSummaryPayload struct {
	ID                string `json:"id"`
	Number            string `json:"number"`
	OrderStatus       string `json:"order_status"`
	PaymentStatus     string `json:"payment_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	Currency          string `json:"currency"`
	Total             int64  `json:"total"`
	CreatedAt         string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID                   string                 `json:"id"`
	Number               string                 `json:"number"`
	CustomerName         string                 `json:"customer_name,omitempty"`
	CustomerEmail        string                 `json:"customer_email,omitempty"`
	CustomerPhone        string                 `json:"customer_phone,omitempty"`
	OrderStatus          string                 `json:"order_status"`
	PaymentStatus        string                 `json:"payment_status"`
	FulfillmentStatus    string                 `json:"fulfillment_status"`
	Items                []orderItemPayload     `json:"items"`
	Addresses            []addressPayload       `json:"addresses,omitempty"`
	Subtotal             int64                  `json:"subtotal"`
	Total                int64                  `json:"total"`
	Currency             string                 `json:"currency"`
	ReservationExpiresAt string                 `json:"reservation_expires_at,omitempty"`
	CancelReason         string                 `json:"cancel_reason,omitempty"`
	CanceledAt           string                 `json:"canceled_at,omitempty"`
	CreatedAt            string                 `json:"created_at"`
	UpdatedAt            string                 `json:"updated_at,omitempty"`
	Payments             []orderPaymentPayload  `json:"payments,omitempty"`
	Shipments            []orderShipmentPayload `json:"shipments,omitempty"`
	Events               []orderEventPayload    `json:"events,omitempty"`
}

type orderItemPayload struct {
	SKU       string `json:"sku"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

type addressPayload struct {
	Type       string `json:"type"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type orderPaymentPayload struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type orderShipmentPayload struct {
	ID           string `json:"id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service,omitempty"`
	TrackingCode string `json:"tracking_code,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type orderEventPayload struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:                order.ID,
		Number:            order.Number,
		OrderStatus:       string(order.OrderStatus),
		PaymentStatus:     string(order.PaymentStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		Currency:          order.Currency,
		Total:             order.Total,
		CreatedAt:         formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                order.ID,
		Number:            order.Number,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		CustomerPhone:     order.CustomerPhone,
		OrderStatus:       string(order.OrderStatus),
		PaymentStatus:     string(order.PaymentStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		Items:             make([]orderItemPayload, 0, len(order.Items)),
		Subtotal:          order.Subtotal,
		Total:             order.Total,
		Currency:          order.Currency,
		CancelReason:      order.CancelReason,
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
	}

	if !order.ReservationExpiresAt.IsZero() {
		payload.ReservationExpiresAt = formatTime(order.ReservationExpiresAt)
	}
	if order.CanceledAt != nil {
		payload.CanceledAt = formatTime(*order.CanceledAt)
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}

	for _, addr := range order.Addresses {
		payload.Addresses = append(payload.Addresses, addressPayload{
			Type:       string(addr.Type),
			Country:    addr.Country,
			City:       addr.City,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			PostalCode: addr.PostalCode,
		})
	}

	for _, payment := range order.Payments {
		payload.Payments = append(payload.Payments, orderPaymentPayload{
			ID:        payment.ID,
			Amount:    payment.Amount,
			Method:    payment.Method,
			Status:    payment.Status,
			CreatedAt: formatTime(payment.CreatedAt),
		})
	}

	for _, shipment := range order.Shipments {
		payload.Shipments = append(payload.Shipments, orderShipmentPayload{
			ID:           shipment.ID,
			Carrier:      shipment.Carrier,
			Service:      shipment.Service,
			TrackingCode: shipment.TrackingCode,
			CreatedAt:    formatTime(shipment.CreatedAt),
		})
	}

	for _, event := range order.Events {
		payload.Events = append(payload.Events, orderEventPayload{
			ID:        event.ID,
			Type:      event.Type,
			Data:      event.Data,
			ActorID:   event.ActorID,
			CreatedAt: formatTime(event.CreatedAt),
		})
	}

	return payload
}

// Shared helpers -------------------------------------------------------------

func addressInput(addr addressRequest) services.AddressInput {
	return services.AddressInput{
		Type:       addr.Type,
		Country:    addr.Country,
		City:       addr.City,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		PostalCode: addr.PostalCode,
	}
}

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(actorHeader))
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, out any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}
