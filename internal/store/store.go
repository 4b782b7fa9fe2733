// Package store is the GORM-backed persistence gateway for every entity in
// internal/types. Connection dispatch (Postgres vs sqlite), AutoMigrate, and
// the general shape of a thin struct wrapping *gorm.DB follow the teacher's
// internal/database/database.go.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/optionpulse/signalengine/internal/types"
)

// Store wraps a *gorm.DB with typed operations for every domain entity.
type Store struct {
	db *gorm.DB
}

// New opens a connection, dispatching on the dbURL prefix exactly like the
// teacher's internal/database.New: "postgres://"/"postgresql://" means
// Postgres, anything else is treated as a sqlite file path.
func New(dbURL string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("store connected (postgres)")
	} else {
		if dir := filepath.Dir(dbURL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dbURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbURL).Msg("store connected (sqlite)")
	}

	if err := db.AutoMigrate(
		&types.Signal{},
		&types.Decision{},
		&types.Order{},
		&types.Trade{},
		&types.Position{},
		&types.ContextSnapshot{},
		&types.GEXSignal{},
		&types.RiskLimits{},
		&types.ExitRules{},
		&types.AuditLogEntry{},
		&types.PipelineFailure{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// WithTransaction runs fn inside a gorm transaction, rolling back on any
// returned error.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Signal ---

func (s *Store) CreateSignal(ctx context.Context, sig *types.Signal) error {
	return classify(s.db.WithContext(ctx).Create(sig).Error)
}

func (s *Store) GetSignal(ctx context.Context, id string) (*types.Signal, error) {
	var sig types.Signal
	err := s.db.WithContext(ctx).First(&sig, "id = ?", id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &sig, nil
}

func (s *Store) UpdateSignalValidation(ctx context.Context, id string, result types.ValidationResultJSON) error {
	res := s.db.WithContext(ctx).Model(&types.Signal{}).Where("id = ?", id).
		Update("validation_result", result)
	return classify(res.Error)
}

// FindRecentSignal returns the newest signal with the same
// source/symbol/direction whose timestamp is at or after since.
func (s *Store) FindRecentSignal(ctx context.Context, source, symbol string, dir types.Direction, since time.Time) (*types.Signal, error) {
	var sig types.Signal
	err := s.db.WithContext(ctx).
		Where("source = ? AND symbol = ? AND direction = ? AND timestamp >= ?", source, symbol, dir, since).
		Order("timestamp DESC").
		First(&sig).Error
	if err != nil {
		return nil, classify(err)
	}
	return &sig, nil
}

// ListPendingValidationSignals fetches up to limit Signals with a null
// validation_result, oldest first — the SignalProcessor worker's batch.
func (s *Store) ListPendingValidationSignals(ctx context.Context, limit int) ([]types.Signal, error) {
	var out []types.Signal
	err := s.db.WithContext(ctx).
		Where("validation_result IS NULL OR validation_result = ''").
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	return out, classify(err)
}

// ListApprovedSignalsWithoutOrder fetches up to limit Signals whose
// decision was ENTER and which have no Order row yet — the OrderCreator
// worker's batch.
func (s *Store) ListApprovedSignalsWithoutOrder(ctx context.Context, limit int) ([]types.Signal, error) {
	var out []types.Signal
	err := s.db.WithContext(ctx).
		Where("id IN (?)",
			s.db.Model(&types.Decision{}).Select("signal_id").
				Where("decision_type = ? AND decision = ?", types.DecisionTypeEntry, types.DecisionEnter),
		).
		Where("id NOT IN (?)", s.db.Model(&types.Order{}).Select("signal_id")).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	return out, classify(err)
}

// --- Decision ---

func (s *Store) CreateDecision(ctx context.Context, d *types.Decision) error {
	return classify(s.db.WithContext(ctx).Create(d).Error)
}

func (s *Store) ListDecisionsBySignal(ctx context.Context, signalID string) ([]types.Decision, error) {
	var out []types.Decision
	err := s.db.WithContext(ctx).Where("signal_id = ?", signalID).Order("created_at").Find(&out).Error
	return out, classify(err)
}

// --- Order ---

func (s *Store) CreateOrder(ctx context.Context, o *types.Order) error {
	return classify(s.db.WithContext(ctx).Create(o).Error)
}

func (s *Store) GetOrder(ctx context.Context, id uint) (*types.Order, error) {
	var o types.Order
	err := s.db.WithContext(ctx).First(&o, id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &o, nil
}

func (s *Store) GetOrderByClientID(ctx context.Context, clientOrderID string) (*types.Order, error) {
	var o types.Order
	err := s.db.WithContext(ctx).First(&o, "client_order_id = ?", clientOrderID).Error
	if err != nil {
		return nil, classify(err)
	}
	return &o, nil
}

// ListOrdersByStatus returns up to limit orders in the given status, oldest
// first — the shape every worker's bounded batch fetch uses.
func (s *Store) ListOrdersByStatus(ctx context.Context, status types.OrderStatus, limit int) ([]types.Order, error) {
	var out []types.Order
	err := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at").Limit(limit).Find(&out).Error
	return out, classify(err)
}

// ListLiveOrdersPolling returns up to limit LIVE orders still in
// PENDING/PARTIAL/SUBMITTED, the OrderPoller worker's batch.
func (s *Store) ListLiveOrdersPolling(ctx context.Context, limit int) ([]types.Order, error) {
	var out []types.Order
	err := s.db.WithContext(ctx).
		Where("mode = ? AND status IN ?", types.ModeLive, []types.OrderStatus{types.OrderPending, types.OrderPartial, types.OrderSubmitted}).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	return out, classify(err)
}

// UpdateOrderWhereStatus is the optimistic-concurrency primitive: it only
// applies updates if the row is still in expectedStatus, returning the
// number of rows actually changed so the caller can detect a lost race.
func (s *Store) UpdateOrderWhereStatus(ctx context.Context, id uint, expectedStatus types.OrderStatus, updates map[string]any) (int64, error) {
	res := s.db.WithContext(ctx).Model(&types.Order{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return 0, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, &ConflictError{Entity: "order", ID: id}
	}
	return res.RowsAffected, nil
}

// --- Trade ---

func (s *Store) CreateTrade(ctx context.Context, t *types.Trade) error {
	return classify(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) ListTradesByOrder(ctx context.Context, orderID uint) ([]types.Trade, error) {
	var out []types.Trade
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&out).Error
	return out, classify(err)
}

// ListOldTrades returns trades executed at or before the cutoff.
func (s *Store) ListOldTrades(ctx context.Context, cutoff time.Time) ([]types.Trade, error) {
	var out []types.Trade
	err := s.db.WithContext(ctx).Where("executed_at <= ?", cutoff).Find(&out).Error
	return out, classify(err)
}

// --- Position ---

func (s *Store) CreatePosition(ctx context.Context, p *types.Position) error {
	return classify(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	var p types.Position
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

// GetOpenPositionForSignal enforces the "at most one OPEN Position per
// signal_id" invariant at read time; the uniqueIndex on Position enforces it
// at write time.
func (s *Store) GetOpenPositionForSignal(ctx context.Context, signalID string) (*types.Position, error) {
	var p types.Position
	err := s.db.WithContext(ctx).Where("signal_id = ? AND status = ?", signalID, types.PositionOpen).First(&p).Error
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (s *Store) ListOpenPositions(ctx context.Context, limit int) ([]types.Position, error) {
	var out []types.Position
	q := s.db.WithContext(ctx).Where("status = ?", types.PositionOpen).Order("entry_time")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, classify(err)
}

func (s *Store) UpdatePositionMarks(ctx context.Context, id string, currentPrice, unrealizedPnL, highWaterMark interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Position{}).Where("id = ?", id).Updates(map[string]any{
		"current_price":   currentPrice,
		"unrealized_pnl":  unrealizedPnL,
		"high_water_mark": highWaterMark,
	})
	return classify(res.Error)
}

// CloseOpenPosition is the optimistic-concurrency close: it only succeeds if
// the row is still OPEN, preventing a double-close race between the exit
// monitor and a manual close.
func (s *Store) CloseOpenPosition(ctx context.Context, id string, updates map[string]any) (int64, error) {
	updates["status"] = types.PositionClosed
	res := s.db.WithContext(ctx).Model(&types.Position{}).
		Where("id = ? AND status = ?", id, types.PositionOpen).
		Updates(updates)
	if res.Error != nil {
		return 0, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, &ConflictError{Entity: "position", ID: id}
	}
	return res.RowsAffected, nil
}

// --- ContextSnapshot ---

func (s *Store) CreateContextSnapshot(ctx context.Context, c *types.ContextSnapshot) error {
	return classify(s.db.WithContext(ctx).Create(c).Error)
}

func (s *Store) LatestContextSnapshot(ctx context.Context) (*types.ContextSnapshot, error) {
	var c types.ContextSnapshot
	err := s.db.WithContext(ctx).Order("timestamp DESC").First(&c).Error
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

// --- GEXSignal ---

func (s *Store) UpsertGEXSignal(ctx context.Context, g *types.GEXSignal) error {
	return classify(s.db.WithContext(ctx).Create(g).Error)
}

func (s *Store) LatestGEXSignal(ctx context.Context, symbol string) (*types.GEXSignal, error) {
	var g types.GEXSignal
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("timestamp DESC").First(&g).Error
	if err != nil {
		return nil, classify(err)
	}
	return &g, nil
}

// --- RiskLimits / ExitRules ---

func (s *Store) ActiveRiskLimits(ctx context.Context, mode types.OrderMode) (*types.RiskLimits, error) {
	var r types.RiskLimits
	err := s.db.WithContext(ctx).Where("mode = ? AND active = ?", mode, true).Order("updated_at DESC").First(&r).Error
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (s *Store) SaveRiskLimits(ctx context.Context, r *types.RiskLimits) error {
	return classify(s.db.WithContext(ctx).Save(r).Error)
}

func (s *Store) ActiveExitRules(ctx context.Context, mode types.OrderMode) (*types.ExitRules, error) {
	var r types.ExitRules
	err := s.db.WithContext(ctx).Where("mode = ? AND active = ?", mode, true).Order("updated_at DESC").First(&r).Error
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (s *Store) SaveExitRules(ctx context.Context, r *types.ExitRules) error {
	return classify(s.db.WithContext(ctx).Save(r).Error)
}

// --- AuditLogEntry ---

func (s *Store) CreateAuditEntry(ctx context.Context, e *types.AuditLogEntry) error {
	return classify(s.db.WithContext(ctx).Create(e).Error)
}

// AuditQueryFilter is the filter/pagination set QueryAuditEntries accepts,
// one field per dimension AuditQueryService exposes: date range, symbol,
// signal id, decision type, decision verdict, offset/limit.
type AuditQueryFilter struct {
	EventType       types.AuditEventType
	Symbol          string
	SignalID        string
	DecisionType    types.DecisionType
	DecisionVerdict types.DecisionVerdict
	From            time.Time
	To              time.Time
	Limit           int
	Offset          int
}

func (s *Store) QueryAuditEntries(ctx context.Context, filter AuditQueryFilter) ([]types.AuditLogEntry, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC")
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if filter.SignalID != "" {
		q = q.Where("signal_id = ?", filter.SignalID)
	}
	if filter.DecisionType != "" {
		q = q.Where("decision_type = ?", filter.DecisionType)
	}
	if filter.DecisionVerdict != "" {
		q = q.Where("decision = ?", filter.DecisionVerdict)
	}
	if !filter.From.IsZero() {
		q = q.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("timestamp <= ?", filter.To)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []types.AuditLogEntry
	err := q.Find(&out).Error
	return out, classify(err)
}

// --- PipelineFailure ---

func (s *Store) RecordPipelineFailure(ctx context.Context, f *types.PipelineFailure) error {
	return classify(s.db.WithContext(ctx).Create(f).Error)
}

// --- error classification ---

// TransientStoreError wraps a connectivity-class error the caller may retry.
type TransientStoreError struct{ Err error }

func (e *TransientStoreError) Error() string { return "store: transient: " + e.Err.Error() }
func (e *TransientStoreError) Unwrap() error { return e.Err }

// DuplicateError reports a unique-constraint violation (e.g. client_order_id,
// or the "one OPEN position per signal_id" index).
type DuplicateError struct{ Entity string }

func (e *DuplicateError) Error() string { return "store: duplicate " + e.Entity }

// ConflictError reports a failed optimistic-concurrency update: the row's
// status had already moved on by the time the update ran.
type ConflictError struct {
	Entity string
	ID     any
}

func (e *ConflictError) Error() string {
	return "store: conflict updating " + e.Entity
}

// NotFoundError reports gorm.ErrRecordNotFound; classify sets Entity to the
// generic "record".
type NotFoundError struct{ Entity string }

func (e *NotFoundError) Error() string { return "store: " + e.Entity + " not found" }

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: "record"}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key"):
		return &DuplicateError{Entity: "record"}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadlock"):
		return &TransientStoreError{Err: err}
	default:
		return err
	}
}
