package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"bybit_bot/internal/models"
	"bybit_bot/pkg/db"
)

// History — журнал событий мониторов и исходов сделок в Postgres.
// База опциональна: при пустом DSN менеджер равен nil и все методы — no-op,
// бот продолжает работать без статистики.
type History struct {
	db *db.PgTxManager
}

func NewHistory(manager *db.PgTxManager) *History {
	return &History{db: manager}
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_events (
	id         BIGSERIAL PRIMARY KEY,
	account    TEXT        NOT NULL,
	symbol     TEXT        NOT NULL,
	approach   TEXT        NOT NULL,
	event      TEXT        NOT NULL,
	details    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS trade_outcomes (
	id        BIGSERIAL PRIMARY KEY,
	account   TEXT        NOT NULL,
	symbol    TEXT        NOT NULL,
	approach  TEXT        NOT NULL,
	win       BOOLEAN     NOT NULL,
	pnl       DOUBLE PRECISION NOT NULL,
	closed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureSchema создаёт таблицы. Зовётся один раз на старте.
func (h *History) EnsureSchema(ctx context.Context) (err error) {
	if h.db == nil {
		return nil
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "History.EnsureSchema")
		}
	}()
	return h.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
}

func (h *History) RecordEvent(ctx context.Context, key models.MonitorKey, event, details string) (err error) {
	if h.db == nil {
		return nil
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "History.RecordEvent")
		}
	}()
	return h.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trade_events (account, symbol, approach, event, details) VALUES ($1, $2, $3, $4, $5)`,
			string(key.Account), key.Symbol, string(key.Approach), event, details)
		return err
	})
}

func (h *History) RecordOutcome(ctx context.Context, key models.MonitorKey, win bool, pnl float64) (err error) {
	if h.db == nil {
		return nil
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "History.RecordOutcome")
		}
	}()
	return h.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trade_outcomes (account, symbol, approach, win, pnl) VALUES ($1, $2, $3, $4, $5)`,
			string(key.Account), key.Symbol, string(key.Approach), win, pnl)
		return err
	})
}

// Stats — агрегат по основному аккаунту: победы, поражения, суммарный PnL.
func (h *History) Stats(ctx context.Context) (stats models.TradeStats, err error) {
	if h.db == nil {
		return stats, nil
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "History.Stats")
		}
	}()
	err = h.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `
			SELECT
				COUNT(*) FILTER (WHERE win),
				COUNT(*) FILTER (WHERE NOT win),
				COALESCE(SUM(pnl), 0)
			FROM trade_outcomes
			WHERE account = $1`,
			string(models.AccountPrimary))
		return row.Scan(&stats.Wins, &stats.Losses, &stats.PnL)
	})
	return stats, err
}

// Outcome — строка истории для /stats.
type Outcome struct {
	Symbol   string
	Approach models.Approach
	Win      bool
	PnL      float64
	ClosedAt time.Time
}

func (h *History) Recent(ctx context.Context, limit int) (out []Outcome, err error) {
	if h.db == nil {
		return nil, nil
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "History.Recent")
		}
	}()
	err = h.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
			SELECT symbol, approach, win, pnl, closed_at
			FROM trade_outcomes
			WHERE account = $1
			ORDER BY closed_at DESC
			LIMIT $2`,
			string(models.AccountPrimary), limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var o Outcome
			var approach string
			if err := rows.Scan(&o.Symbol, &approach, &o.Win, &o.PnL, &o.ClosedAt); err != nil {
				return err
			}
			o.Approach = models.Approach(approach)
			out = append(out, o)
		}
		return rows.Err()
	})
	return out, err
}
