package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderBelowMinimum        = errors.New("order: notional below minimum")
	ErrOrderInvalidQuantity     = errors.New("order: invalid quantity")
	ErrOrderInvalidPrice        = errors.New("order: invalid reference price")
	ErrOrderInvalidNotification = errors.New("order: invalid notification kind")
	ErrOrderQueueFull           = errors.New("order: queue full")
	ErrOrderQueueClosed         = errors.New("order: queue closed")
	ErrOrderUnknownPlan         = errors.New("order: unknown plan order")
	ErrOrderDuplicateLive       = errors.New("order: live order already exists for instrument")
	ErrOrderExhausted           = errors.New("order: all candidates exhausted")
)
