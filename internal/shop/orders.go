package shop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/store"
)

// Order statuses.
const (
	StatusPendingPayment = "Pending Payment"
	StatusPaid           = "Paid"
	StatusPrinting       = "Printing"
	StatusShipped        = "Shipped"
	StatusCancelled      = "Cancelled"
)

var orderStatuses = []string{StatusPendingPayment, StatusPaid, StatusPrinting, StatusShipped, StatusCancelled}

var orderKeys = []string{"id", "date", "status", "ip"}

// ValidOrderStatus reports whether status is one of the known order statuses.
func ValidOrderStatus(status string) bool {
	return slices.Contains(orderStatuses, status)
}

// Order is a checkout submission. The cart payload is kept in Details.
type Order struct {
	ID      string    `json:"id"`
	Date    time.Time `json:"date"`
	Status  string    `json:"status"`
	IP      string    `json:"ip,omitempty"`
	Details Fields    `json:"-"`
}

// MarshalJSON flattens Details next to the server-owned fields.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return mergeJSON(o.Details, plain(o))
}

// UnmarshalJSON splits server-owned fields from the cart payload.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var p plain
	details, err := splitJSON(data, &p, orderKeys)
	if err != nil {
		return err
	}
	*o = Order(p)
	o.Details = details
	return nil
}

// CreateOrder stores a new order from a cart payload. Client-supplied id,
// date and status are ignored.
func (s *Service) CreateOrder(ctx context.Context, ip string, body []byte) (Order, error) {
	if err := s.checkBanned(ip); err != nil {
		return Order{}, err
	}

	fields, err := decodeFields(body)
	if err != nil {
		return Order{}, err
	}
	order := Order{
		ID:      uuid.NewString(),
		Date:    s.timestamp(),
		Status:  StatusPendingPayment,
		IP:      ip,
		Details: fields.drop(orderKeys...),
	}

	if err := s.store.Put(store.Orders, order.ID, order); err != nil {
		return Order{}, fmt.Errorf("save order: %w", err)
	}

	s.log.Info("Order received", zap.String("orderId", order.ID), zap.String("ip", ip))
	return order, nil
}

// Orders lists every order, newest first.
func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	orders, err := store.List[Order](s.store, store.Orders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	slices.SortStableFunc(orders, func(a, b Order) int { return b.Date.Compare(a.Date) })
	return orders, nil
}

// UpdateOrderStatus moves an order to status.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status string) (Order, error) {
	params := map[string]interface{}{"status": status}

	if !ValidOrderStatus(status) {
		err := fmt.Errorf("unknown order status %q: %w", status, ErrInvalidInput)
		s.record(ctx, "updateOrderStatus", id, params, err)
		return Order{}, err
	}

	var order Order
	err := s.store.Update(func(tx *store.Tx) error {
		if err := tx.Get(store.Orders, id, &order); err != nil {
			return err
		}
		order.Status = status
		return tx.Put(store.Orders, id, order)
	})
	if errors.Is(err, store.ErrNotFound) {
		err = fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	s.record(ctx, "updateOrderStatus", id, params, err)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}
