package utils

import (
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Key prefixes for different data types
const (
	LedgerStateKey               = "ledger_state"
	IssuerPrefix                 = "issuer_"
	AchievementPrefix            = "achievement_"
	CertificationPrefix          = "certification_"
	UserProfilePrefix            = "user_profile_"
	UserAchievementPrefix        = "user_achievement_"
	UserCertificationPrefix      = "user_certification_"
	UserAchievementIndexPrefix   = "user_achievement_index_"
	UserCertificationIndexPrefix = "user_certification_index_"
)

// GetIssuerKey returns the key for an issuer record
func GetIssuerKey(identity string) string {
	return fmt.Sprintf("%s%s", IssuerPrefix, identity)
}

// GetAchievementKey returns the key for an achievement definition.
// Ids are zero-padded so range scans enumerate definitions in id order.
func GetAchievementKey(id uint64) string {
	return fmt.Sprintf("%s%012d", AchievementPrefix, id)
}

// GetCertificationKey returns the key for a certification definition
func GetCertificationKey(id uint64) string {
	return fmt.Sprintf("%s%012d", CertificationPrefix, id)
}

// GetUserProfileKey returns the key for a user's profile
func GetUserProfileKey(user string) string {
	return fmt.Sprintf("%s%s", UserProfilePrefix, user)
}

// GetUserAchievementKey returns the key for a (user, achievement) record
func GetUserAchievementKey(user string, achievementID uint64) string {
	return fmt.Sprintf("%s%s_%012d", UserAchievementPrefix, user, achievementID)
}

// GetUserCertificationKey returns the key for a (user, certification) record
func GetUserCertificationKey(user string, certificationID uint64) string {
	return fmt.Sprintf("%s%s_%012d", UserCertificationPrefix, user, certificationID)
}

// GetUserAchievementIndexKey returns the key for a user's achievement id index
func GetUserAchievementIndexKey(user string) string {
	return fmt.Sprintf("%s%s", UserAchievementIndexPrefix, user)
}

// GetUserCertificationIndexKey returns the key for a user's certification id index
func GetUserCertificationIndexKey(user string) string {
	return fmt.Sprintf("%s%s", UserCertificationIndexPrefix, user)
}

// GetTxTimestamp returns the deterministic transaction timestamp
// This ensures all endorsing peers return the same timestamp
func GetTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	txTimestamp, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %v", err)
	}
	return time.Unix(txTimestamp.Seconds, int64(txTimestamp.Nanos)), nil
}
