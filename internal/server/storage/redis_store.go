package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/doudizhu-server/internal/apperrors"
	"github.com/palemoky/doudizhu-server/internal/config"
)

const (
	// Redis key
	userKeyPrefix     = "user:"         // user:<id> 账号 hash
	usernameKeyPrefix = "user:name:"    // user:name:<username> → id
	userSeqKey        = "user:seq"      // 自增 id
	onlineKey         = "user:online"   // 在线用户 id 集合
	coinRankKey       = "rank:coin"     // 金币排行 zset
	lastLoginField    = "last_login_at" // 最后登录时间（unix 秒）

	// 乐观事务重试次数
	maxTxRetries = 100
)

// RedisStore Redis 账号存储
type RedisStore struct {
	client      *redis.Client
	initialCoin int64
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client, initialCoin int64) *RedisStore {
	return &RedisStore{client: client, initialCoin: initialCoin}
}

// OpenRedis 连接 Redis 并检查连通性
func OpenRedis(ctx context.Context, cfg config.RedisConfig, initialCoin int64) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewRedisStore(client, initialCoin), nil
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

// Register 注册新用户
func (rs *RedisStore) Register(ctx context.Context, username, passwordHash string) (*User, error) {
	id, err := rs.client.Incr(ctx, userSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("分配用户 id 失败: %w", err)
	}

	ok, err := rs.client.SetNX(ctx, usernameKeyPrefix+username, id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("注册用户名失败: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrUserExist
	}

	u := &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		IconName:     randomIcon(),
		Coin:         rs.initialCoin,
	}
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(id), u)
		pipe.ZAdd(ctx, coinRankKey, redis.Z{Score: float64(u.Coin), Member: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("保存用户失败: %w", err)
	}
	return u, nil
}

// Login 校验并标记在线
func (rs *RedisStore) Login(ctx context.Context, username, passwordHash string) (*User, error) {
	id, err := rs.client.Get(ctx, usernameKeyPrefix+username).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户名失败: %w", err)
	}

	online, err := rs.client.SIsMember(ctx, onlineKey, id).Result()
	if err != nil {
		return nil, fmt.Errorf("查询在线状态失败: %w", err)
	}
	if online {
		return nil, apperrors.ErrUserOnline
	}

	u, err := rs.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.PasswordHash != passwordHash {
		return nil, apperrors.ErrPasswordMismatch
	}

	// SAdd 返回 0 说明并发登录已抢先标记在线
	added, err := rs.client.SAdd(ctx, onlineKey, id).Result()
	if err != nil {
		return nil, fmt.Errorf("标记在线失败: %w", err)
	}
	if added == 0 {
		return nil, apperrors.ErrUserOnline
	}

	u.LastLoginAt = time.Now()
	if err := rs.client.HSet(ctx, userKey(id), lastLoginField, u.LastLoginAt.Unix()).Err(); err != nil {
		return nil, fmt.Errorf("记录登录时间失败: %w", err)
	}
	return u, nil
}

// Logout 标记离线
func (rs *RedisStore) Logout(ctx context.Context, userID int64) error {
	return rs.client.SRem(ctx, onlineKey, userID).Err()
}

// GetUser 按 id 读取用户
func (rs *RedisStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	return rs.loadUser(ctx, rs.client, userID)
}

func (rs *RedisStore) loadUser(ctx context.Context, c redis.Cmdable, userID int64) (*User, error) {
	cmd := c.HGetAll(ctx, userKey(userID))
	vals, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("读取用户失败: %w", err)
	}
	if len(vals) == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	u := &User{ID: userID}
	if err := cmd.Scan(u); err != nil {
		return nil, fmt.Errorf("解析用户失败: %w", err)
	}
	if ts, err := strconv.ParseInt(vals[lastLoginField], 10, 64); err == nil && ts > 0 {
		u.LastLoginAt = time.Unix(ts, 0)
	}
	return u, nil
}

// RankList 金币排行榜
func (rs *RedisStore) RankList(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	results, err := rs.client.ZRevRangeWithScores(ctx, coinRankKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取排行榜失败: %w", err)
	}

	names := make([]*redis.StringCmd, len(results))
	ids := make([]int64, len(results))
	_, err = rs.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, z := range results {
			member, _ := z.Member.(string)
			ids[i], _ = strconv.ParseInt(member, 10, 64)
			names[i] = pipe.HGet(ctx, userKey(ids[i]), "username")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("读取排行榜用户名失败: %w", err)
	}

	entries := make([]RankEntry, 0, len(results))
	for i, z := range results {
		name, err := names[i].Result()
		if err != nil {
			continue
		}
		entries = append(entries, RankEntry{
			Rank:     len(entries) + 1,
			UserID:   ids[i],
			Username: name,
			Coin:     int64(z.Score),
		})
	}
	return entries, nil
}

// ClearOnline 清除所有在线标记，服务器启动时调用
func (rs *RedisStore) ClearOnline(ctx context.Context) error {
	return rs.client.Del(ctx, onlineKey).Err()
}

// RecordResult 计入一局的结算，每个玩家单独一个乐观事务
func (rs *RedisStore) RecordResult(ctx context.Context, changes []CoinChange) error {
	for _, c := range changes {
		if err := rs.recordOne(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (rs *RedisStore) recordOne(ctx context.Context, c CoinChange) error {
	key := userKey(c.UserID)
	txf := func(tx *redis.Tx) error {
		u, err := rs.loadUser(ctx, tx, c.UserID)
		if err != nil {
			return err
		}
		applyResult(u, c)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, u)
			pipe.ZAdd(ctx, coinRankKey, redis.Z{Score: float64(u.Coin), Member: c.UserID})
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := rs.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("记录用户 %d 战绩失败: %w", c.UserID, err)
		}
		return nil
	}
	return fmt.Errorf("记录用户 %d 战绩失败: 重试次数过多", c.UserID)
}

// Close 关闭连接
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
