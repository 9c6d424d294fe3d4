package enum

// Side buy, sell
type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderKind limit, market
type OrderKind uint8

const (
	_order_kind_beg OrderKind = iota
	OrderKindLimit
	OrderKindMarket
	_order_kind_end
)

func (k OrderKind) IsAvailable() bool {
	return k > _order_kind_beg && k < _order_kind_end
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindLimit:
		return "limit"
	case OrderKindMarket:
		return "market"
	default:
		return "unknown"
	}
}

// OrderStatus placed, partial filled, filled, canceled
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusPlaced
	OrderStatusPartialFilled
	OrderStatusFilled
	OrderStatusCanceled
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCanceled
}

// Permission buy-only, sell-only, both; which sides an account may
// trade for an instrument.
type Permission uint8

const (
	_permission_beg Permission = iota
	PermissionBuy
	PermissionSell
	PermissionBoth
	_permission_end
)

func (p Permission) IsAvailable() bool {
	return p > _permission_beg && p < _permission_end
}

// Allows reports whether the permission covers the given side.
func (p Permission) Allows(s Side) bool {
	switch p {
	case PermissionBoth:
		return s.IsAvailable()
	case PermissionBuy:
		return s == SideBuy
	case PermissionSell:
		return s == SideSell
	default:
		return false
	}
}
