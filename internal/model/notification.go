package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// NotificationKind fill, cancel, reject, discard
type NotificationKind uint8

const (
	_notification_kind_beg NotificationKind = iota
	NotificationFill
	NotificationCancel
	// NotificationReject marks a live order the exchange reported as
	// rejected after acceptance; it is canceled and replaced on the
	// next pass.
	NotificationReject
	NotificationDiscard
	_notification_kind_end
)

func (k NotificationKind) IsAvailable() bool {
	return k > _notification_kind_beg && k < _notification_kind_end
}

// Notification is an externally produced event routed into the
// dispatch loop: a fill, cancel or rejection report for a live order,
// or a request to discard a plan order entirely.
type Notification struct {
	Kind            NotificationKind
	Instrument      string
	ExchangeOrderID string
	PlanOrderID     uint64          // discard target
	FilledSize      decimal.Decimal // incremental base-asset fill
	Status          enum.OrderStatus
}
