package contracts

// Global bounds enforced on definitions, awards and batch calls.
const (
	// MinRewardAmount is the smallest reward an achievement may carry
	MinRewardAmount uint64 = 1
	// MaxRewardAmount is the largest reward an achievement may carry
	MaxRewardAmount uint64 = 1000000

	// MaxAchievementsPerUser caps how many achievements one user can hold
	MaxAchievementsPerUser = 100
	// MaxCertificationsPerUser caps how many certifications one user can hold
	MaxCertificationsPerUser = 50

	// MaxBatchAwardSize caps the ids accepted by a single batch award call
	MaxBatchAwardSize = 10
	// MaxBatchClaimSize caps the ids accepted by a single batch claim call
	MaxBatchClaimSize = 5

	// MaxNameLength bounds definition and issuer names
	MaxNameLength = 100
	// MaxDescriptionLength bounds definition and issuer descriptions
	MaxDescriptionLength = 500
	// MaxCategoryLength bounds achievement categories
	MaxCategoryLength = 50
)
