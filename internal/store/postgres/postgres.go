// Package postgres is the GORM-backed store.Store implementation: the
// durable collaborator the Position Ledger write-throughs to and the
// Scheduler reads leader/follower configuration from.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/store"
)

// gormLogger adapts zap to gorm's logger.Interface so migrations and slow
// queries land in the same structured log stream as the rest of the core.
type gormLogger struct {
	logger *zap.SugaredLogger
	level  gormlogger.LogLevel
}

func newGormLogger(logger *zap.Logger) *gormLogger {
	return &gormLogger{logger: logger.Sugar(), level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Infof(msg, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warnf(msg, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Errorf(msg, args...)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	sql, rows := fc()
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		l.logger.Errorw("gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > 200*time.Millisecond && l.level >= gormlogger.Warn:
		l.logger.Warnw("slow gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		l.logger.Debugw("gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

// Store is the Postgres-backed store.Store implementation.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New opens a connection pool against dsn and runs migrations.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   newGormLogger(logger),
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, logger: logger}
	if err := s.runMigrations(); err != nil {
		return nil, err
	}
	return s, nil
}

// runMigrations takes a Postgres advisory lock before AutoMigrate so two
// instances starting concurrently don't race on DDL.
func (s *Store) runMigrations() error {
	const lockKey = 101

	var acquired bool
	if err := s.db.Raw("SELECT pg_try_advisory_lock(?)", lockKey).Scan(&acquired).Error; err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		s.logger.Info("migration lock held elsewhere, skipping AutoMigrate")
		return nil
	}
	defer s.db.Exec("SELECT pg_advisory_unlock(?)", lockKey)

	return s.db.AutoMigrate(&leaderRow{}, &followerRow{}, &followerLeaderRow{}, &positionRow{})
}

func (s *Store) LeaderSet(ctx context.Context) ([]coredomain.Leader, error) {
	var rows []leaderRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load leader set: %w", err)
	}
	out := make([]coredomain.Leader, 0, len(rows))
	for _, r := range rows {
		key, err := solana.PublicKeyFromBase58(r.PublicKey)
		if err != nil {
			s.logger.Warn("skipping leader row with invalid public key", zap.String("value", r.PublicKey), zap.Error(err))
			continue
		}
		out = append(out, coredomain.Leader{PublicKey: key, DisplayName: r.DisplayName})
	}
	return out, nil
}

func (s *Store) FollowerPolicy(ctx context.Context, followerID string) (coredomain.FollowerPolicy, coredomain.Subscription, error) {
	var row followerRow
	if err := s.db.WithContext(ctx).Where("follower_id = ?", followerID).First(&row).Error; err != nil {
		return coredomain.FollowerPolicy{}, coredomain.Subscription{}, fmt.Errorf("load follower policy for %s: %w", followerID, err)
	}

	policy := coredomain.FollowerPolicy{
		FixedLamportsPerBuy:       row.FixedLamportsPerBuy,
		MaxSlippageBps:            row.MaxSlippageBps,
		MinUnitPriceMicroLamports: row.MinUnitPriceMicroLamports,
		TipLamports:               row.TipLamports,
	}
	if row.PlatformAllowListCSV != "" {
		policy.PlatformAllowList = make(map[coredomain.DEXFamily]bool)
		for _, fam := range strings.Split(row.PlatformAllowListCSV, ",") {
			policy.PlatformAllowList[coredomain.DEXFamily(strings.TrimSpace(fam))] = true
		}
	}

	var edges []followerLeaderRow
	if err := s.db.WithContext(ctx).Where("follower_id = ?", followerID).Find(&edges).Error; err != nil {
		return coredomain.FollowerPolicy{}, coredomain.Subscription{}, fmt.Errorf("load subscription for %s: %w", followerID, err)
	}
	sub := coredomain.Subscription{FollowerID: followerID, Leaders: make(map[solana.PublicKey]struct{}, len(edges))}
	for _, e := range edges {
		key, err := solana.PublicKeyFromBase58(e.LeaderKey)
		if err != nil {
			s.logger.Warn("skipping subscription row with invalid leader key", zap.String("value", e.LeaderKey), zap.Error(err))
			continue
		}
		sub.Leaders[key] = struct{}{}
	}

	return policy, sub, nil
}

func (s *Store) RecordPosition(ctx context.Context, pos coredomain.OpenPosition) error {
	row := positionRow{
		Follower:     pos.Follower,
		Mint:         pos.Mint.String(),
		AmountRaw:    pos.AmountRaw,
		SOLSpentRaw:  pos.SOLSpentRaw,
		BuySignature: pos.BuySignature.String(),
		OpenedAt:     pos.OpenedAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(onConflictUpdateAmount()).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("record position for %s/%s: %w", pos.Follower, pos.Mint, err)
	}
	return nil
}

func (s *Store) UpdatePosition(ctx context.Context, follower string, mint solana.PublicKey, newAmountRaw uint64, updatedAt time.Time) error {
	if newAmountRaw == 0 {
		err := s.db.WithContext(ctx).
			Where("follower = ? AND mint = ?", follower, mint.String()).
			Delete(&positionRow{}).Error
		if err != nil {
			return fmt.Errorf("close position for %s/%s: %w", follower, mint, err)
		}
		return nil
	}

	err := s.db.WithContext(ctx).Model(&positionRow{}).
		Where("follower = ? AND mint = ?", follower, mint.String()).
		Updates(map[string]interface{}{
			"amount_raw": newAmountRaw,
			"updated_at": updatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update position for %s/%s: %w", follower, mint, err)
	}
	return nil
}

func (s *Store) LoadPositions(ctx context.Context) ([]coredomain.OpenPosition, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	out := make([]coredomain.OpenPosition, 0, len(rows))
	for _, r := range rows {
		mint, err := solana.PublicKeyFromBase58(r.Mint)
		if err != nil {
			s.logger.Warn("skipping position row with invalid mint", zap.String("value", r.Mint), zap.Error(err))
			continue
		}
		var sig solana.Signature
		if r.BuySignature != "" {
			sig, err = solana.SignatureFromBase58(r.BuySignature)
			if err != nil {
				s.logger.Warn("skipping invalid buy signature", zap.String("value", r.BuySignature), zap.Error(err))
			}
		}
		out = append(out, coredomain.OpenPosition{
			Follower:     r.Follower,
			Mint:         mint,
			AmountRaw:    r.AmountRaw,
			SOLSpentRaw:  r.SOLSpentRaw,
			BuySignature: sig,
			OpenedAt:     r.OpenedAt,
		})
	}
	return out, nil
}
