package store

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// ShrinkEvent is one recorded netting offset.
type ShrinkEvent struct {
	PlanOrderID uint64
	Amount      decimal.Decimal
	At          time.Time
}

// OrderResult is one recorded terminal order outcome.
type OrderResult struct {
	ExchangeOrderID string
	LeftSize        decimal.Decimal
	Status          enum.OrderStatus
}

// Memory is the in-memory store used by tests and the paper-trading
// tool.
type Memory struct {
	mu sync.Mutex

	nextID  uint64
	plans   map[uint64]model.PlanOrder
	orders  map[string]model.CandidateOrder // keyed by local ID
	results []OrderResult
	shrinks []ShrinkEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plans:  make(map[uint64]model.PlanOrder),
		orders: make(map[string]model.CandidateOrder),
	}
}

func (m *Memory) StorePlanOrder(plan *model.PlanOrder) error {
	if plan == nil {
		return exception.ErrStoreNilInstance
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == 0 {
		m.nextID++
		plan.ID = m.nextID
	} else if plan.ID > m.nextID {
		m.nextID = plan.ID
	}
	m.plans[plan.ID] = *plan
	return nil
}

func (m *Memory) UpdatePlanOrderLeft(id uint64, left decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	if !ok {
		return exception.ErrStorePlanNotFound
	}
	plan.LeftQuantity = left
	plan.UpdateTime = at
	m.plans[id] = plan
	return nil
}

func (m *Memory) StoreCandidateOrder(order *model.CandidateOrder) error {
	if order == nil {
		return exception.ErrStoreNilInstance
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.LocalID] = *order
	return nil
}

func (m *Memory) CommitCandidateOrder(exchangeOrderID, localID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[localID]
	if !ok {
		return exception.ErrStoreCandidateNotFound
	}
	order.ExchangeOrderID = exchangeOrderID
	m.orders[localID] = order
	return nil
}

func (m *Memory) StoreOrderResult(exchangeOrderID string, leftSize decimal.Decimal, status enum.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, OrderResult{
		ExchangeOrderID: exchangeOrderID,
		LeftSize:        leftSize,
		Status:          status,
	})
	return nil
}

func (m *Memory) StoreShrink(planOrderID uint64, amount decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shrinks = append(m.shrinks, ShrinkEvent{PlanOrderID: planOrderID, Amount: amount, At: at})
	return nil
}

func (m *Memory) QueryUnfinishedPlanOrders() ([]*model.PlanOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PlanOrder, 0, len(m.plans))
	for _, plan := range m.plans {
		if plan.LeftQuantity.IsPositive() {
			copied := plan
			out = append(out, &copied)
		}
	}
	return out, nil
}

// PlanOrder returns the stored snapshot of one plan order.
func (m *Memory) PlanOrder(id uint64) (model.PlanOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[id]
	return plan, ok
}

// PlanCount returns the number of persisted plan orders.
func (m *Memory) PlanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plans)
}

// Shrinks returns the recorded netting events in order.
func (m *Memory) Shrinks() []ShrinkEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ShrinkEvent, len(m.shrinks))
	copy(out, m.shrinks)
	return out
}

// Results returns the recorded order results in order.
func (m *Memory) Results() []OrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderResult, len(m.results))
	copy(out, m.results)
	return out
}
