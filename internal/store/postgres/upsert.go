package postgres

import "gorm.io/gorm/clause"

// onConflictUpdateAmount lets RecordPosition double as an upsert: a leader
// can buy the same mint twice before a sell closes the position, and the
// ledger's write-through should not fail on the unique (follower, mint)
// index in that case.
func onConflictUpdateAmount() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower"}, {Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount_raw", "sol_spent_raw", "buy_signature", "opened_at", "updated_at"}),
	}
}
