// Package storage 账号持久化：注册登录、在线状态、金币排行与对局战绩
package storage

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/palemoky/doudizhu-server/internal/config"
	"github.com/palemoky/doudizhu-server/internal/protocol"
)

// 存储驱动
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// DefaultRankLimit 排行榜默认条数
const DefaultRankLimit = 10

// iconCount 可选头像数量，头像名为 headIcon_0 ~ headIcon_18
const iconCount = 19

// User 用户账号与战绩
type User struct {
	ID           int64     `redis:"-"`
	Username     string    `redis:"username"`
	PasswordHash string    `redis:"password_hash"`
	IconName     string    `redis:"icon_name"`
	Coin         int64     `redis:"coin"`
	LastLoginAt  time.Time `redis:"-"`

	// 战绩
	Games         int `redis:"games"`
	Wins          int `redis:"wins"`
	LandlordGames int `redis:"landlord_games"`
	LandlordWins  int `redis:"landlord_wins"`
	CurrentStreak int `redis:"current_streak"` // 正数为连胜，负数为连败
	MaxWinStreak  int `redis:"max_win_streak"`
}

// Info 转换为协议中的用户信息
func (u *User) Info() protocol.UserInfo {
	return protocol.UserInfo{
		UserID:   u.ID,
		Username: u.Username,
		IconName: u.IconName,
		Coin:     u.Coin,
	}
}

// RankEntry 排行榜条目
type RankEntry struct {
	Rank     int
	UserID   int64
	Username string
	Coin     int64
}

// CoinChange 一局结束后单个玩家的结算
type CoinChange struct {
	UserID     int64
	Delta      int64
	Won        bool
	IsLandlord bool
}

// AccountStore 账号存储
//
// Login 的失败顺序为：用户不存在、已在线、密码不匹配，对应 apperrors 中的错误。
type AccountStore interface {
	Register(ctx context.Context, username, passwordHash string) (*User, error)
	Login(ctx context.Context, username, passwordHash string) (*User, error)
	Logout(ctx context.Context, userID int64) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	RankList(ctx context.Context, limit int) ([]RankEntry, error)
	ClearOnline(ctx context.Context) error
	RecordResult(ctx context.Context, changes []CoinChange) error
	Close() error
}

// Open 按配置创建账号存储
func Open(ctx context.Context, cfg *config.Config) (AccountStore, error) {
	switch cfg.Storage.Driver {
	case DriverRedis:
		return OpenRedis(ctx, cfg.Redis, cfg.Game.InitialCoin)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Game.InitialCoin)
	default:
		return nil, fmt.Errorf("未知的存储驱动: %q", cfg.Storage.Driver)
	}
}

func randomIcon() string {
	return fmt.Sprintf("headIcon_%d", rand.IntN(iconCount))
}

// applyResult 把一局结算计入账号，金币不低于 0
func applyResult(u *User, c CoinChange) {
	u.Coin = max(0, u.Coin+c.Delta)
	u.Games++
	if c.IsLandlord {
		u.LandlordGames++
	}

	if c.Won {
		u.Wins++
		if c.IsLandlord {
			u.LandlordWins++
		}
		u.CurrentStreak = max(1, u.CurrentStreak+1)
	} else {
		u.CurrentStreak = min(-1, u.CurrentStreak-1)
	}
	u.MaxWinStreak = max(u.MaxWinStreak, u.CurrentStreak)
}
