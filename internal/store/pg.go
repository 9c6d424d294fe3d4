package store

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

type planOrderRow struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	Instrument     string          `gorm:"size:64;index"`
	SignedQuantity decimal.Decimal `gorm:"type:numeric(38,18)"`
	ReferencePrice decimal.Decimal `gorm:"type:numeric(38,18)"`
	LeftQuantity   decimal.Decimal `gorm:"type:numeric(38,18);index"`
	StartTime      time.Time
	UpdateTime     time.Time
}

func (planOrderRow) TableName() string { return "plan_orders" }

type candidateOrderRow struct {
	LocalID         string          `gorm:"primaryKey;size:40"`
	PlanOrderID     uint64          `gorm:"index"`
	Account         string          `gorm:"size:64"`
	Instrument      string          `gorm:"size:64"`
	ExchangeSymbol  string          `gorm:"size:64"`
	Side            uint8
	Kind            uint8
	Size            decimal.Decimal `gorm:"type:numeric(38,18)"`
	QuotePrice      decimal.Decimal `gorm:"type:numeric(38,18)"`
	Notional        decimal.Decimal `gorm:"type:numeric(38,18)"`
	NormalizedPrice decimal.Decimal `gorm:"type:numeric(38,18)"`
	ExchangeOrderID string          `gorm:"size:64;index"`
	CreatedTime     time.Time
}

func (candidateOrderRow) TableName() string { return "candidate_orders" }

type orderResultRow struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	ExchangeOrderID string          `gorm:"size:64;index"`
	LeftSize        decimal.Decimal `gorm:"type:numeric(38,18)"`
	Status          uint8
	CreatedTime     time.Time `gorm:"autoCreateTime"`
}

func (orderResultRow) TableName() string { return "order_results" }

type shrinkEventRow struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	PlanOrderID uint64          `gorm:"index"`
	Amount      decimal.Decimal `gorm:"type:numeric(38,18)"`
	At          time.Time
}

func (shrinkEventRow) TableName() string { return "shrink_events" }

// Postgres is the gorm-backed durable store.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps a gorm connection and migrates the order tables.
func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if db == nil {
		return nil, exception.ErrStoreNilInstance
	}
	if err := db.AutoMigrate(
		&planOrderRow{},
		&candidateOrderRow{},
		&orderResultRow{},
		&shrinkEventRow{},
	); err != nil {
		return nil, errors.Wrap(err, "migrate order tables")
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) StorePlanOrder(plan *model.PlanOrder) error {
	if plan == nil {
		return exception.ErrStoreNilInstance
	}

	row := planOrderRow{
		ID:             plan.ID,
		Instrument:     plan.Instrument,
		SignedQuantity: plan.SignedQuantity,
		ReferencePrice: plan.ReferencePrice,
		LeftQuantity:   plan.LeftQuantity,
		StartTime:      plan.StartTime,
		UpdateTime:     plan.UpdateTime,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "store plan order")
	}
	plan.ID = row.ID
	return nil
}

func (s *Postgres) UpdatePlanOrderLeft(id uint64, left decimal.Decimal, at time.Time) error {
	result := s.db.Model(&planOrderRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"left_quantity": left, "update_time": at})
	if result.Error != nil {
		return errors.Wrap(result.Error, "update plan order left quantity")
	}
	if result.RowsAffected == 0 {
		return exception.ErrStorePlanNotFound
	}
	return nil
}

func (s *Postgres) StoreCandidateOrder(order *model.CandidateOrder) error {
	if order == nil {
		return exception.ErrStoreNilInstance
	}

	row := candidateOrderRow{
		LocalID:         order.LocalID,
		PlanOrderID:     order.PlanOrderID,
		Account:         order.Account,
		Instrument:      order.Instrument,
		ExchangeSymbol:  order.ExchangeSymbol,
		Side:            uint8(order.Side),
		Kind:            uint8(order.Kind),
		Size:            order.Size,
		QuotePrice:      order.QuotePrice,
		Notional:        order.Notional,
		NormalizedPrice: order.NormalizedPrice,
		ExchangeOrderID: order.ExchangeOrderID,
		CreatedTime:     order.CreatedTime,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "store candidate order")
	}
	return nil
}

func (s *Postgres) CommitCandidateOrder(exchangeOrderID, localID string) error {
	result := s.db.Model(&candidateOrderRow{}).
		Where("local_id = ?", localID).
		Update("exchange_order_id", exchangeOrderID)
	if result.Error != nil {
		return errors.Wrap(result.Error, "commit candidate order")
	}
	if result.RowsAffected == 0 {
		return exception.ErrStoreCandidateNotFound
	}
	return nil
}

func (s *Postgres) StoreOrderResult(exchangeOrderID string, leftSize decimal.Decimal, status enum.OrderStatus) error {
	row := orderResultRow{
		ExchangeOrderID: exchangeOrderID,
		LeftSize:        leftSize,
		Status:          uint8(status),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "store order result")
	}
	return nil
}

func (s *Postgres) StoreShrink(planOrderID uint64, amount decimal.Decimal, at time.Time) error {
	row := shrinkEventRow{PlanOrderID: planOrderID, Amount: amount, At: at}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "store shrink event")
	}
	return nil
}

func (s *Postgres) QueryUnfinishedPlanOrders() ([]*model.PlanOrder, error) {
	var rows []planOrderRow
	if err := s.db.Where("left_quantity > 0").Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query unfinished plan orders")
	}

	out := make([]*model.PlanOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.PlanOrder{
			ID:             row.ID,
			Instrument:     row.Instrument,
			SignedQuantity: row.SignedQuantity,
			ReferencePrice: row.ReferencePrice,
			LeftQuantity:   row.LeftQuantity,
			StartTime:      row.StartTime,
			UpdateTime:     row.UpdateTime,
		})
	}
	return out, nil
}
