package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrInsufficientFunds is returned by Transfer when the sender's balance
// cannot cover the amount.
var ErrInsufficientFunds = errors.New("storage: insufficient funds")

func (s *Store) GetBalance(ctx context.Context, userID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT balance FROM currency WHERE user_id = ?`, userID)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Transfer moves coins between users. Debit and credit share one transaction
// so a crash cannot lose or mint coins. Returns the sender's new balance.
func (s *Store) Transfer(ctx context.Context, fromID, toID string, amount int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var balance int64
	row := tx.QueryRowContext(ctx, `SELECT balance FROM currency WHERE user_id = ?`, fromID)
	scanErr := row.Scan(&balance)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}
	if balance < amount {
		err = ErrInsufficientFunds
		return balance, err
	}

	balance -= amount
	_, err = tx.ExecContext(ctx, `
		INSERT INTO currency (user_id, balance)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = excluded.balance
	`, fromID, balance)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO currency (user_id, balance)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET balance = currency.balance + excluded.balance
	`, toID, amount)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// ClaimDaily credits the reward if the cooldown has elapsed. When the claim
// is refused, remaining reports the time left until the next claim.
func (s *Store) ClaimDaily(ctx context.Context, userID string, reward int64, cooldown time.Duration) (claimed bool, remaining time.Duration, balance int64, err error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lastClaimed sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT balance, last_claimed_at FROM currency WHERE user_id = ?`, userID)
	scanErr := row.Scan(&balance, &lastClaimed)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return false, 0, 0, err
	}

	if lastClaimed.Valid {
		elapsed := now.Sub(time.Unix(lastClaimed.Int64, 0))
		if elapsed < cooldown {
			if err = tx.Commit(); err != nil {
				return false, 0, 0, err
			}
			return false, cooldown - elapsed, balance, nil
		}
	}

	balance += reward
	_, err = tx.ExecContext(ctx, `
		INSERT INTO currency (user_id, balance, last_claimed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			last_claimed_at = excluded.last_claimed_at
	`, userID, balance, now.Unix())
	if err != nil {
		return false, 0, 0, err
	}
	if err = tx.Commit(); err != nil {
		return false, 0, 0, err
	}
	return true, 0, balance, nil
}
