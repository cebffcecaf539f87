package service

import (
	"context"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"go.uber.org/zap"
)

// OrderService converts priced carts into persisted orders while
// reserving stock. Every create runs as one atomic transaction: either
// every line's stock is decremented and exactly one order exists, or
// nothing changed.
type OrderService struct {
	store      Datastore
	authorizer PaymentAuthorizer
	logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store Datastore, authorizer PaymentAuthorizer) *OrderService {
	return &OrderService{
		store:      store,
		authorizer: authorizer,
		logger:     util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID     int64             `json:"customer_id"`
	Items          []CartItemRequest `json:"items" binding:"required,min=1"`
	Recipient      string            `json:"recipient" binding:"required"`
	Address        string            `json:"address" binding:"required"`
	PaymentMethod  string            `json:"payment_method" binding:"required"`
	DeliveryFee    int64             `json:"delivery_fee"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CartItemRequest is one cart line. VariationID selects a sub-unit of
// the product with its own price and stock.
type CartItemRequest struct {
	ProductID   int64   `json:"product_id" binding:"required"`
	VariationID *string `json:"variation_id,omitempty"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	Status      models.Status `json:"status"`
}

// CreateOrder prices the cart from server-verified catalog data,
// deducts stock all-or-nothing, and writes the order in PENDING.
// Client-supplied prices are never trusted. Conflicting concurrent
// orders on the same product are resolved by the storage layer's
// transaction retry, never by explicit locks.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, apperr.New(apperr.KindInvalidArgument, "cart is empty")
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			util.OrdersFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, apperr.Newf(apperr.KindInvalidArgument, "invalid quantity for product %d", item.ProductID)
		}
	}
	if req.DeliveryFee < 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "negative delivery fee")
	}

	var resp *CreateOrderResponse

	err := s.store.RunTx(ctx, func(tx store.Tx) error {
		resp = nil

		if req.IdempotencyKey != "" {
			existing, err := tx.GetOrderByIdemKey(ctx, req.IdempotencyKey)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to check idempotency", err)
			}
			if existing != nil {
				s.logger.Info("Duplicate order request detected",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.Int64("order_id", existing.ID))
				resp = &CreateOrderResponse{
					OrderID:     existing.ID,
					OrderNumber: existing.OrderNumber,
					Status:      existing.Status,
				}
				return nil
			}
		}

		var (
			subtotal int64
			vendorID int64
			items    []models.OrderItem
		)

		for _, line := range req.Items {
			product, err := tx.GetProduct(ctx, line.ProductID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to read product", err)
			}
			if product == nil {
				return apperr.Newf(apperr.KindNotFound, "product %d not found", line.ProductID)
			}
			// An order belongs to exactly one vendor; the delivered
			// merchant share is credited to that vendor's wallet.
			if vendorID == 0 {
				vendorID = product.VendorID
			} else if vendorID != product.VendorID {
				util.OrdersFailedTotal.WithLabelValues("mixed_vendors").Inc()
				return apperr.Newf(apperr.KindInvalidArgument,
					"cart spans multiple vendors: %d and %d", vendorID, product.VendorID)
			}

			item := models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				ImageURL:  product.ImageURL,
				Quantity:  line.Quantity,
				VendorID:  product.VendorID,
			}

			if line.VariationID != nil {
				unitPrice, err := deductVariationStock(ctx, tx, product, *line.VariationID, line.Quantity)
				if err != nil {
					return err
				}
				item.VariationID = line.VariationID
				item.UnitPrice = unitPrice
			} else {
				if product.Stock < line.Quantity {
					return apperr.Newf(apperr.KindFailedPrecondition,
						"insufficient stock for product %d", product.ID)
				}
				if err := tx.UpdateProductStock(ctx, product.ID, product.Stock-line.Quantity); err != nil {
					return apperr.Wrap(apperr.KindInternal, "failed to deduct stock", err)
				}
				item.UnitPrice = product.EffectivePrice()
			}

			subtotal += item.UnitPrice * int64(line.Quantity)
			items = append(items, item)
		}

		total := subtotal + req.DeliveryFee

		// Commit only if payment is authorized; a decline aborts the
		// whole transaction and no stock stays deducted.
		if err := s.authorizer.Authorize(ctx, req.CustomerID, total, req.PaymentMethod); err != nil {
			return err
		}

		now := time.Now()
		orderNumber, err := newOrderNumber(now)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to generate order number", err)
		}
		confirmCode, err := newConfirmCode()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to generate confirmation code", err)
		}

		order := &models.Order{
			OrderNumber: orderNumber,
			CustomerID:  req.CustomerID,
			VendorID:    vendorID,
			Subtotal:    subtotal,
			DeliveryFee: req.DeliveryFee,
			TotalAmount: total,
			Status:      models.StatusPending,
			ConfirmCode: confirmCode,
			Recipient:   req.Recipient,
			Address:     req.Address,
			IdemKey:     req.IdempotencyKey,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create order", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to create order item", err)
			}
		}

		created := &models.OrderCreatedEvent{
			BaseEvent:   baseEvent(models.EventTypeOrderCreated),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			VendorID:    order.VendorID,
			TotalAmount: order.TotalAmount,
		}
		if err := writeOutbox(ctx, tx, created.EventID, created.EventType, created); err != nil {
			return err
		}

		resp = &CreateOrderResponse{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", resp.OrderID),
		zap.String("order_number", resp.OrderNumber))
	return resp, nil
}

// deductVariationStock resolves price and stock from the matched
// variation and rewrites the variations list with its stock reduced.
func deductVariationStock(ctx context.Context, tx store.Tx, product *models.Product, variationID string, qty int) (int64, error) {
	for i := range product.Variations {
		v := &product.Variations[i]
		if v.ID != variationID {
			continue
		}
		if v.Stock < qty {
			return 0, apperr.Newf(apperr.KindFailedPrecondition,
				"insufficient stock for product %d variation %s", product.ID, variationID)
		}
		v.Stock -= qty
		if err := tx.UpdateProductVariations(ctx, product.ID, product.Variations); err != nil {
			return 0, apperr.Wrap(apperr.KindInternal, "failed to deduct variation stock", err)
		}
		return v.EffectivePrice(), nil
	}
	return 0, apperr.Newf(apperr.KindNotFound,
		"variation %s not found on product %d", variationID, product.ID)
}

// GetOrder retrieves an order with its line items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to read order", err)
	}
	if order == nil {
		return nil, nil, apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to read order items", err)
	}
	return order, items, nil
}

// ListOrders returns a customer's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	orders, err := s.store.GetOrdersByCustomerID(ctx, customerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list orders", err)
	}
	return orders, nil
}

// AdjustStock is the only stock mutation outside order creation: an
// explicit operator inventory adjustment.
func (s *OrderService) AdjustStock(ctx context.Context, productID int64, delta int) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AdjustStock")
	defer span.End()

	return s.store.RunTx(ctx, func(tx store.Tx) error {
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read product", err)
		}
		if product == nil {
			return apperr.Newf(apperr.KindNotFound, "product %d not found", productID)
		}
		next := product.Stock + delta
		if next < 0 {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"adjustment would make stock negative for product %d", productID)
		}
		return tx.UpdateProductStock(ctx, productID, next)
	})
}
