// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PointsRepository 定义了用户积分账本的操作接口。
// 积分是外部账本：本服务只做查询与扣减，不负责充值来源。
type PointsRepository interface {
	// GetPoints 返回用户当前的积分余额，从未有过记录的用户余额为 0。
	GetPoints(ctx context.Context, wxid string) (int64, error)
	// AddPoints 给用户增加 delta 积分（扣减时传负数），返回变更后的余额。
	AddPoints(ctx context.Context, wxid string, delta int64) (int64, error)
}

type redisPointsRepository struct {
	redisClient *redis.Client
}

// NewPointsRepository 创建一个新的 PointsRepository 实例。
func NewPointsRepository(redisClient *redis.Client) PointsRepository {
	return &redisPointsRepository{redisClient: redisClient}
}

func pointsKey(wxid string) string {
	return fmt.Sprintf("points:%s", wxid)
}

// GetPoints 从 Redis 读取用户积分。
func (r *redisPointsRepository) GetPoints(ctx context.Context, wxid string) (int64, error) {
	val, err := r.redisClient.Get(ctx, pointsKey(wxid)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get points: %w", err)
	}
	return val, nil
}

// AddPoints 以原子自增的方式变更积分。
func (r *redisPointsRepository) AddPoints(ctx context.Context, wxid string, delta int64) (int64, error) {
	val, err := r.redisClient.IncrBy(ctx, pointsKey(wxid), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return val, nil
}
