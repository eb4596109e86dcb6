package postgres

import "time"

// baseModel mirrors the teacher's hand-rolled replacement for gorm.Model:
// explicit fields instead of the embedded default, for full control over
// column tags.
type baseModel struct {
	ID        uint       `gorm:"primaryKey"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`
}

// leaderRow is one operator-curated leader wallet.
type leaderRow struct {
	baseModel
	PublicKey   string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	DisplayName string `gorm:"type:varchar(100)"`
}

// followerRow is one subscriber's policy. Subscriptions live in
// followerLeaderRow as a join table since a follower may list many
// leaders.
type followerRow struct {
	baseModel
	FollowerID                string `gorm:"uniqueIndex;not null;type:varchar(64)"`
	FixedLamportsPerBuy       uint64 `gorm:"not null"`
	MaxSlippageBps            uint32 `gorm:"not null"`
	PlatformAllowListCSV      string `gorm:"type:text"` // comma-separated DEXFamily values, empty means "allow all"
	MinUnitPriceMicroLamports uint64 `gorm:"not null;default:0"`
	TipLamports               uint64 `gorm:"not null;default:0"`
}

// followerLeaderRow is one (follower, leader) subscription edge.
type followerLeaderRow struct {
	baseModel
	FollowerID string `gorm:"index:idx_follower_leader,unique;not null;type:varchar(64)"`
	LeaderKey  string `gorm:"index:idx_follower_leader,unique;not null;type:varchar(44)"`
}

// positionRow is one open position snapshot.
type positionRow struct {
	baseModel
	Follower     string    `gorm:"index:idx_follower_mint,unique;not null;type:varchar(64)"`
	Mint         string    `gorm:"index:idx_follower_mint,unique;not null;type:varchar(44)"`
	AmountRaw    uint64    `gorm:"not null"`
	SOLSpentRaw  uint64    `gorm:"not null"`
	BuySignature string    `gorm:"type:varchar(88)"`
	OpenedAt     time.Time `gorm:"not null"`
}
