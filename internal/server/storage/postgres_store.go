package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_info (
	id             BIGSERIAL PRIMARY KEY,
	username       TEXT        NOT NULL UNIQUE,
	password_hash  TEXT        NOT NULL,
	icon_name      TEXT        NOT NULL,
	coin           BIGINT      NOT NULL DEFAULT 0,
	online         BOOLEAN     NOT NULL DEFAULT FALSE,
	last_login_at  TIMESTAMPTZ,
	games          INT         NOT NULL DEFAULT 0,
	wins           INT         NOT NULL DEFAULT 0,
	landlord_games INT         NOT NULL DEFAULT 0,
	landlord_wins  INT         NOT NULL DEFAULT 0,
	current_streak INT         NOT NULL DEFAULT 0,
	max_win_streak INT         NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS user_info_coin_idx ON user_info (coin DESC);
`

const userColumns = `id, username, password_hash, icon_name, coin, last_login_at,
	games, wins, landlord_games, landlord_wins, current_streak, max_win_streak`

// PostgresStore Postgres 账号存储
type PostgresStore struct {
	pool        *pgxpool.Pool
	initialCoin int64
}

// NewPostgresStore 使用已有连接池创建存储
func NewPostgresStore(pool *pgxpool.Pool, initialCoin int64) *PostgresStore {
	return &PostgresStore{pool: pool, initialCoin: initialCoin}
}

// OpenPostgres 连接数据库并建表
func OpenPostgres(ctx context.Context, dsn string, initialCoin int64) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 Postgres 失败: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return NewPostgresStore(pool, initialCoin), nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u         User
		lastLogin *time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IconName, &u.Coin, &lastLogin,
		&u.Games, &u.Wins, &u.LandlordGames, &u.LandlordWins, &u.CurrentStreak, &u.MaxWinStreak)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取用户失败: %w", err)
	}
	if lastLogin != nil {
		u.LastLoginAt = *lastLogin
	}
	return &u, nil
}

// Register 注册新用户
func (ps *PostgresStore) Register(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{
		Username:     username,
		PasswordHash: passwordHash,
		IconName:     randomIcon(),
		Coin:         ps.initialCoin,
	}
	err := ps.pool.QueryRow(ctx,
		`INSERT INTO user_info (username, password_hash, icon_name, coin)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING id`,
		u.Username, u.PasswordHash, u.IconName, u.Coin,
	).Scan(&u.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrUserExist
	}
	if err != nil {
		return nil, fmt.Errorf("保存用户失败: %w", err)
	}
	return u, nil
}

// Login 校验并标记在线，整个过程在同一事务内锁定该行
func (ps *PostgresStore) Login(ctx context.Context, username, passwordHash string) (*User, error) {
	var u *User
	err := pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		var online bool
		row := tx.QueryRow(ctx,
			`SELECT online, `+userColumns+` FROM user_info WHERE username = $1 FOR UPDATE`, username)
		var (
			found     User
			lastLogin *time.Time
		)
		err := row.Scan(&online, &found.ID, &found.Username, &found.PasswordHash, &found.IconName,
			&found.Coin, &lastLogin, &found.Games, &found.Wins, &found.LandlordGames,
			&found.LandlordWins, &found.CurrentStreak, &found.MaxWinStreak)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("查询用户失败: %w", err)
		}
		if online {
			return apperrors.ErrUserOnline
		}
		if found.PasswordHash != passwordHash {
			return apperrors.ErrPasswordMismatch
		}

		found.LastLoginAt = time.Now()
		if _, err := tx.Exec(ctx,
			`UPDATE user_info SET online = TRUE, last_login_at = $2 WHERE id = $1`,
			found.ID, found.LastLoginAt); err != nil {
			return fmt.Errorf("标记在线失败: %w", err)
		}
		u = &found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Logout 标记离线
func (ps *PostgresStore) Logout(ctx context.Context, userID int64) error {
	_, err := ps.pool.Exec(ctx, `UPDATE user_info SET online = FALSE WHERE id = $1`, userID)
	return err
}

// GetUser 按 id 读取用户
func (ps *PostgresStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	return scanUser(ps.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM user_info WHERE id = $1`, userID))
}

// RankList 金币排行榜
func (ps *PostgresStore) RankList(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	rows, err := ps.pool.Query(ctx,
		`SELECT id, username, coin FROM user_info ORDER BY coin DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("读取排行榜失败: %w", err)
	}

	i := 0
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RankEntry, error) {
		i++
		e := RankEntry{Rank: i}
		err := row.Scan(&e.UserID, &e.Username, &e.Coin)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("读取排行榜失败: %w", err)
	}
	return entries, nil
}

// ClearOnline 清除所有在线标记，服务器启动时调用
func (ps *PostgresStore) ClearOnline(ctx context.Context) error {
	_, err := ps.pool.Exec(ctx, `UPDATE user_info SET online = FALSE WHERE online`)
	return err
}

// RecordResult 在一个事务内计入一局的结算
func (ps *PostgresStore) RecordResult(ctx context.Context, changes []CoinChange) error {
	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		for _, c := range changes {
			u, err := scanUser(tx.QueryRow(ctx,
				`SELECT `+userColumns+` FROM user_info WHERE id = $1 FOR UPDATE`, c.UserID))
			if err != nil {
				return err
			}
			applyResult(u, c)

			_, err = tx.Exec(ctx,
				`UPDATE user_info SET coin = $2, games = $3, wins = $4, landlord_games = $5,
				 landlord_wins = $6, current_streak = $7, max_win_streak = $8 WHERE id = $1`,
				u.ID, u.Coin, u.Games, u.Wins, u.LandlordGames, u.LandlordWins,
				u.CurrentStreak, u.MaxWinStreak)
			if err != nil {
				return fmt.Errorf("记录用户 %d 战绩失败: %w", c.UserID, err)
			}
		}
		return nil
	})
}

// Close 关闭连接池
func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
