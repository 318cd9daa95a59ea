package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertCycleSQL = `INSERT INTO poll_cycles (cycle_id, snapshot_ts, matches)
    VALUES ($1,$2,$3)
    ON CONFLICT (cycle_id) DO NOTHING;`

	insertMovementSQL = `INSERT INTO line_movements (
        cycle_id, match_id, match_title, league, outcome, bookmaker,
        old_price, new_price, delta, sharp, observed_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	insertDisagreementSQL = `INSERT INTO disagreements (
        cycle_id, match_id, match_title, league, outcome, bookmaker,
        price, average, deviation, observed_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	insertValueSignalSQL = `INSERT INTO value_signals (
        cycle_id, match_id, match_title, league, outcome, bookmaker,
        odds, true_odds, true_probability, edge, signal, observed_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	listRecentMovementsSQL = `SELECT
        id, cycle_id, match_id, match_title, league, outcome, bookmaker,
        old_price::text, new_price::text, delta::text, sharp, observed_at
    FROM line_movements
    WHERE ($2::boolean = false OR sharp)
    ORDER BY observed_at DESC, id DESC
    LIMIT $1;`

	listMatchMovementsSQL = `SELECT
        id, cycle_id, match_id, match_title, league, outcome, bookmaker,
        old_price::text, new_price::text, delta::text, sharp, observed_at
    FROM line_movements
    WHERE match_id = $1
      AND observed_at >= $2
      AND observed_at < $3
    ORDER BY observed_at, id;`

	listRecentValueSignalsSQL = `SELECT
        id, cycle_id, match_id, match_title, league, outcome, bookmaker,
        odds::text, true_odds::text, true_probability::text, edge::text, signal, observed_at
    FROM value_signals
    ORDER BY observed_at DESC, edge DESC
    LIMIT $1;`

	insertAlertSQL = `INSERT INTO alerts (
        cycle_id, message, sharp_moves, disagreements, value_signals, status, error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id, cycle_id, message, sharp_moves, disagreements, value_signals, status, error, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteCyclesBeforeSQL = `DELETE FROM poll_cycles WHERE snapshot_ts < $1;`
	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SignalStore defines audit persistence of cycle results.
type SignalStore interface {
	SaveCycle(ctx context.Context, cycle CycleRecord) error
	ListRecentMovements(ctx context.Context, limit int, sharpOnly bool) ([]MovementRecord, error)
	ListMatchMovements(ctx context.Context, matchID string, from, to time.Time) ([]MovementRecord, error)
	ListRecentValueSignals(ctx context.Context, limit int) ([]ValueSignalRecord, error)
	DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to cycle signals and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also ends with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveCycle writes a cycle and its rows in one transaction.
func (s *Store) SaveCycle(ctx context.Context, cycle CycleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin cycle tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(insertCycleSQL, cycle.CycleID, cycle.SnapshotAt, cycle.Matches)
	for _, m := range cycle.Movements {
		batch.Queue(insertMovementSQL,
			cycle.CycleID, m.MatchID, m.Match, m.League, m.Outcome, m.Bookmaker,
			m.OldPrice.String(), m.NewPrice.String(), m.Delta.String(), m.Sharp, m.ObservedAt,
		)
	}
	for _, d := range cycle.Disagreements {
		batch.Queue(insertDisagreementSQL,
			cycle.CycleID, d.MatchID, d.Match, d.League, d.Outcome, d.Bookmaker,
			d.Price.String(), d.Average.String(), d.Deviation.String(), d.ObservedAt,
		)
	}
	for _, v := range cycle.ValueSignals {
		batch.Queue(insertValueSignalSQL,
			cycle.CycleID, v.MatchID, v.Match, v.League, v.Outcome, v.Bookmaker,
			v.Odds.String(), v.TrueOdds.String(), v.TrueProbability.String(), v.Edge.String(), v.Signal, v.ObservedAt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert cycle %s: %w", cycle.CycleID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cycle %s: %w", cycle.CycleID, err)
	}
	return nil
}

// ListRecentMovements lists stored movements, newest first.
func (s *Store) ListRecentMovements(ctx context.Context, limit int, sharpOnly bool) ([]MovementRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentMovementsSQL, limit, sharpOnly)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent movements: %w", queryErr)
	}
	defer rows.Close()
	return collectMovements(rows, limit)
}

// ListMatchMovements lists one match's movements within a window, oldest first.
func (s *Store) ListMatchMovements(ctx context.Context, matchID string, from, to time.Time) ([]MovementRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMatchMovementsSQL, matchID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list match movements: %w", queryErr)
	}
	defer rows.Close()
	return collectMovements(rows, 0)
}

// ListRecentValueSignals lists stored value signals, newest first.
func (s *Store) ListRecentValueSignals(ctx context.Context, limit int) ([]ValueSignalRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentValueSignalsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent value signals: %w", queryErr)
	}
	defer rows.Close()

	out := make([]ValueSignalRecord, 0, limit)
	for rows.Next() {
		var (
			rec                                    ValueSignalRecord
			oddsStr, trueOddsStr, probStr, edgeStr string
		)
		if err := rows.Scan(
			&rec.ID, &rec.CycleID, &rec.MatchID, &rec.Match, &rec.League, &rec.Outcome, &rec.Bookmaker,
			&oddsStr, &trueOddsStr, &probStr, &edgeStr, &rec.Signal, &rec.ObservedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDecimals(
			decimalField{"odds", oddsStr, &rec.Odds},
			decimalField{"true odds", trueOddsStr, &rec.TrueOdds},
			decimalField{"true probability", probStr, &rec.TrueProbability},
			decimalField{"edge", edgeStr, &rec.Edge},
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// DeleteCyclesBefore prunes cycles and their rows.
func (s *Store) DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteCyclesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete cycles before: %w", execErr)
	}
	return nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var errMsg interface{}
	if alert.Error != nil {
		errMsg = *alert.Error
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.CycleID,
		alert.Message,
		alert.SharpMoves,
		alert.Disagreements,
		alert.ValueSignals,
		alert.Status,
		errMsg,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec    AlertRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.CycleID,
			&rec.Message,
			&rec.SharpMoves,
			&rec.Disagreements,
			&rec.ValueSignals,
			&rec.Status,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectMovements(rows pgx.Rows, capacity int) ([]MovementRecord, error) {
	out := make([]MovementRecord, 0, capacity)
	for rows.Next() {
		var (
			rec                      MovementRecord
			oldStr, newStr, deltaStr string
		)
		if err := rows.Scan(
			&rec.ID, &rec.CycleID, &rec.MatchID, &rec.Match, &rec.League, &rec.Outcome, &rec.Bookmaker,
			&oldStr, &newStr, &deltaStr, &rec.Sharp, &rec.ObservedAt,
		); err != nil {
			return nil, err
		}
		if err := parseDecimals(
			decimalField{"old price", oldStr, &rec.OldPrice},
			decimalField{"new price", newStr, &rec.NewPrice},
			decimalField{"delta", deltaStr, &rec.Delta},
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type decimalField struct {
	name string
	raw  string
	dst  *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}

var (
	_ SignalStore    = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
