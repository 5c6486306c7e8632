package models

import "time"

// LedgerState is the single process-wide contract state record
type LedgerState struct {
	Owner               string `json:"owner"`
	NextAchievementID   uint64 `json:"nextAchievementId"`
	NextCertificationID uint64 `json:"nextCertificationId"`
	TotalUsers          uint64 `json:"totalUsers"`
	ContractBalance     uint64 `json:"contractBalance"`
	Paused              bool   `json:"paused"`
}

// IssuerRecord represents an identity authorized to issue credentials
type IssuerRecord struct {
	Identity     string    `json:"identity"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Achievement is the definition of an earnable accomplishment
type Achievement struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	RewardAmount uint64    `json:"rewardAmount"`
	Issuer       string    `json:"issuer"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Certification is the definition of a credential gated by prerequisite achievements
type Certification struct {
	ID                   uint64    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	RequiredAchievements []uint64  `json:"requiredAchievements"`
	Issuer               string    `json:"issuer"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"createdAt"`
}

// UserProfile holds per-user rolled-up statistics, created lazily on first award
type UserProfile struct {
	User                string    `json:"user"`
	TotalAchievements   uint64    `json:"totalAchievements"`
	TotalRewardsClaimed uint64    `json:"totalRewardsClaimed"`
	TotalPoints         uint64    `json:"totalPoints"`
	JoinedAt            time.Time `json:"joinedAt"`
	LastActivity        time.Time `json:"lastActivity"`
}

// UserAchievement records that a user earned an achievement
type UserAchievement struct {
	User          string    `json:"user"`
	AchievementID uint64    `json:"achievementId"`
	EarnedAt      time.Time `json:"earnedAt"`
	Claimed       bool      `json:"claimed"`
	Issuer        string    `json:"issuer"`
}

// UserCertification records that a user earned a certification
type UserCertification struct {
	User            string    `json:"user"`
	CertificationID uint64    `json:"certificationId"`
	EarnedAt        time.Time `json:"earnedAt"`
	Issuer          string    `json:"issuer"`
}

// UserAchievementIndex is the ordered set of achievement ids a user has earned
type UserAchievementIndex struct {
	User string   `json:"user"`
	IDs  []uint64 `json:"ids"`
}

// UserCertificationIndex is the ordered set of certification ids a user has earned
type UserCertificationIndex struct {
	User string   `json:"user"`
	IDs  []uint64 `json:"ids"`
}

// ContractStats is an aggregate view over the whole ledger
type ContractStats struct {
	TotalAchievements   uint64 `json:"totalAchievements"`
	TotalCertifications uint64 `json:"totalCertifications"`
	TotalIssuers        uint64 `json:"totalIssuers"`
	ActiveIssuers       uint64 `json:"activeIssuers"`
	TotalUsers          uint64 `json:"totalUsers"`
	ContractBalance     uint64 `json:"contractBalance"`
	Paused              bool   `json:"paused"`
}

// UserSummary is a per-user report with real id enumeration
type UserSummary struct {
	User             string       `json:"user"`
	Profile          *UserProfile `json:"profile"`
	AchievementIDs   []uint64     `json:"achievementIds"`
	CertificationIDs []uint64     `json:"certificationIds"`
	PendingRewards   uint64       `json:"pendingRewards"`
}

// LeaderboardEntry is one ranked row of the points leaderboard
type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	User              string `json:"user"`
	TotalPoints       uint64 `json:"totalPoints"`
	TotalAchievements uint64 `json:"totalAchievements"`
}

// BatchAwardResult reports how far a batch award progressed.
// FailedIndex is -1 when every element applied; on failure the elements before
// FailedIndex stay committed and the rest were skipped.
type BatchAwardResult struct {
	Requested   int    `json:"requested"`
	Applied     int    `json:"applied"`
	FailedIndex int    `json:"failedIndex"`
	FailedID    uint64 `json:"failedId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchClaimResult reports how far a batch claim progressed and the total paid out
type BatchClaimResult struct {
	Requested    int    `json:"requested"`
	Claimed      int    `json:"claimed"`
	TotalClaimed uint64 `json:"totalClaimed"`
	FailedIndex  int    `json:"failedIndex"`
	FailedID     uint64 `json:"failedId,omitempty"`
	Error        string `json:"error,omitempty"`
}
