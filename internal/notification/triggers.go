package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// Source types raised by business triggers.
const (
	SourcePayment        = "pos_payment"
	SourceOrderCreated   = "pos_order_created"
	SourceCouponRedeemed = "coupon_redemption"
)

// Emitter is the part of Center the triggers need.
type Emitter interface {
	Emit(ctx context.Context, p EmitParams) *domain.Alert
	ResolveForSource(ctx context.Context, sourceType string, sourceID int64) int
}

// Triggers are the one-line hooks business operations call to record an
// event as an alert. They never fail the caller: a nil alert is logged and
// the operation carries on.
type Triggers struct {
	emitter Emitter
}

// NewTriggers creates the trigger set.
func NewTriggers(emitter Emitter) *Triggers {
	return &Triggers{emitter: emitter}
}

// Payment describes a completed POS payment.
type Payment struct {
	OrderID       int64
	OrderNumber   string
	Amount        float64
	Method        string
	CustomerName  string
	LoyaltyPoints int
}

// OnPaymentCompleted records a payment and, when points were earned, the
// loyalty award.
func (t *Triggers) OnPaymentCompleted(ctx context.Context, p Payment) {
	t.emit(ctx, "payment_completed", EmitParams{
		Module:   domain.ModuleFinance,
		Title:    "Payment received: " + p.OrderNumber,
		Message:  fmt.Sprintf("%.2f received by %s for order %s.", p.Amount, p.Method, p.OrderNumber),
		Severity: domain.SeverityInfo,
		Source:   &domain.Source{Type: SourcePayment, ID: p.OrderID},
		Payload:  map[string]any{"order_id": p.OrderID, "amount": p.Amount, "method": p.Method},
	})

	if p.LoyaltyPoints <= 0 {
		return
	}
	customer := p.CustomerName
	if customer == "" {
		customer = "Customer"
	}
	t.emit(ctx, "loyalty_awarded", EmitParams{
		Module:         domain.ModuleSales,
		Title:          "Loyalty points awarded",
		Message:        fmt.Sprintf("%s earned %d points on order %s.", customer, p.LoyaltyPoints, p.OrderNumber),
		Severity:       domain.SeverityInfo,
		Payload:        map[string]any{"order_id": p.OrderID, "points": p.LoyaltyPoints},
		AllowDuplicate: true,
	})
}

// OnOrderCreated records a new POS order.
func (t *Triggers) OnOrderCreated(ctx context.Context, orderID int64, orderNumber string, total float64) {
	t.emit(ctx, "order_created", EmitParams{
		Module:   domain.ModuleSales,
		Title:    "New order " + orderNumber,
		Message:  fmt.Sprintf("Order %s created, total %.2f.", orderNumber, total),
		Severity: domain.SeverityInfo,
		Source:   &domain.Source{Type: SourceOrderCreated, ID: orderID},
		Payload:  map[string]any{"order_id": orderID, "total": total},
	})
}

// OnOrderCompleted clears the pending-order alert straight away instead of
// waiting for the next scan.
func (t *Triggers) OnOrderCompleted(ctx context.Context, orderID int64) {
	t.emitter.ResolveForSource(ctx, domain.SourcePendingOrder, orderID)
}

// OnCouponRedeemed records a coupon redemption against an order.
func (t *Triggers) OnCouponRedeemed(ctx context.Context, couponID int64, code, orderNumber string, discount float64) {
	t.emit(ctx, "coupon_redeemed", EmitParams{
		Module:         domain.ModuleSales,
		Title:          "Coupon redeemed: " + code,
		Message:        fmt.Sprintf("Coupon %s took %.2f off order %s.", code, discount, orderNumber),
		Severity:       domain.SeverityInfo,
		Source:         &domain.Source{Type: SourceCouponRedeemed, ID: couponID},
		Payload:        map[string]any{"coupon_id": couponID, "order_number": orderNumber, "discount": discount},
		AllowDuplicate: true,
	})
}

// OnStockAdjusted raises or clears the low stock alert for item after its
// quantity changed.
func (t *Triggers) OnStockAdjusted(ctx context.Context, item domain.StockLevel) {
	if !item.Low() {
		if n := t.emitter.ResolveForSource(ctx, domain.SourceInventoryLow, item.ItemID); n > 0 {
			logger.Debug("low stock alert cleared by adjustment",
				zap.Int64("item_id", item.ItemID),
				zap.Int("resolved", n),
			)
		}
		return
	}
	t.emit(ctx, "stock_low", LowStockAlert(item))
}

func (t *Triggers) emit(ctx context.Context, trigger string, p EmitParams) {
	if a := t.emitter.Emit(ctx, p); a == nil {
		logger.Warn("trigger could not record alert",
			zap.String("trigger", trigger),
			zap.String("module", string(p.Module)),
			zap.String("title", p.Title),
		)
	}
}
