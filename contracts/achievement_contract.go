package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/models"
	"github.com/Henryno111/Edu-reward-onchain/utils"
)

// AchievementContract provides functions for managing achievement definitions
// and awarding them to users
type AchievementContract struct {
	contractapi.Contract
	AccessContract  *AccessContract
	ProfileContract *ProfileContract
	Log             *zap.Logger
}

func (c *AchievementContract) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// CreateAchievement registers a new achievement definition and returns its id.
// Ids are assigned sequentially starting at 1. Caller must be an active issuer.
func (c *AchievementContract) CreateAchievement(ctx contractapi.TransactionContextInterface, name, description, category string, rewardAmount uint64) (uint64, error) {
	// Initialize access contract if not set
	if c.AccessContract == nil {
		c.AccessContract = &AccessContract{}
	}

	state, err := c.AccessContract.loadState(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.AccessContract.requireNotPaused(state); err != nil {
		return 0, err
	}
	issuer, err := c.AccessContract.requireIssuer(ctx)
	if err != nil {
		return 0, err
	}

	if name == "" {
		return 0, fmt.Errorf("%w: achievement name cannot be empty", ErrInvalidInput)
	}
	if len(name) > MaxNameLength {
		return 0, fmt.Errorf("%w: achievement name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	if len(description) > MaxDescriptionLength {
		return 0, fmt.Errorf("%w: achievement description exceeds %d characters", ErrInvalidInput, MaxDescriptionLength)
	}
	if category == "" {
		return 0, fmt.Errorf("%w: achievement category cannot be empty", ErrInvalidInput)
	}
	if len(category) > MaxCategoryLength {
		return 0, fmt.Errorf("%w: achievement category exceeds %d characters", ErrInvalidInput, MaxCategoryLength)
	}
	if rewardAmount < MinRewardAmount || rewardAmount > MaxRewardAmount {
		return 0, fmt.Errorf("%w: reward amount must be between %d and %d", ErrInvalidInput, MinRewardAmount, MaxRewardAmount)
	}

	// Get deterministic timestamp from transaction
	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return 0, err
	}

	id := state.NextAchievementID
	achievement := models.Achievement{
		ID:           id,
		Name:         name,
		Description:  description,
		Category:     category,
		RewardAmount: rewardAmount,
		Issuer:       issuer,
		Active:       true,
		CreatedAt:    timestamp,
	}

	achievementJSON, err := json.Marshal(achievement)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal achievement: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetAchievementKey(id), achievementJSON); err != nil {
		return 0, fmt.Errorf("failed to save achievement: %v", err)
	}

	state.NextAchievementID++
	if err := c.AccessContract.saveState(ctx, state); err != nil {
		return 0, err
	}

	c.logger().Info("achievement created",
		zap.Uint64("id", id),
		zap.String("name", name),
		zap.Uint64("rewardAmount", rewardAmount))
	return id, nil
}

// DeactivateAchievement retires an achievement definition so it can no longer
// be awarded or claimed against. Existing award records are untouched.
// Only the creating issuer or the owner may deactivate; already inactive
// definitions are a no-op success.
func (c *AchievementContract) DeactivateAchievement(ctx contractapi.TransactionContextInterface, achievementID uint64) error {
	// Initialize access contract if not set
	if c.AccessContract == nil {
		c.AccessContract = &AccessContract{}
	}

	state, err := c.AccessContract.loadState(ctx)
	if err != nil {
		return err
	}
	if err := c.AccessContract.requireNotPaused(state); err != nil {
		return err
	}
	caller, err := c.AccessContract.callerID(ctx)
	if err != nil {
		return err
	}

	achievement, err := c.getAchievement(ctx, achievementID)
	if err != nil {
		return err
	}
	if achievement == nil {
		return fmt.Errorf("%w: achievement %d", ErrNotFound, achievementID)
	}
	if caller != achievement.Issuer && caller != state.Owner {
		return fmt.Errorf("%w: only the creating issuer or the owner may deactivate", ErrUnauthorized)
	}
	if !achievement.Active {
		return nil
	}

	achievement.Active = false
	achievementJSON, err := json.Marshal(achievement)
	if err != nil {
		return fmt.Errorf("failed to marshal achievement: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetAchievementKey(achievementID), achievementJSON); err != nil {
		return fmt.Errorf("failed to save achievement: %v", err)
	}

	c.logger().Info("achievement deactivated", zap.Uint64("id", achievementID))
	return nil
}

// AwardAchievement grants an achievement to a user. Caller must be an active
// issuer; each user can hold a given achievement at most once.
func (c *AchievementContract) AwardAchievement(ctx contractapi.TransactionContextInterface, user string, achievementID uint64) error {
	// Initialize collaborating contracts if not set
	if c.AccessContract == nil {
		c.AccessContract = &AccessContract{}
	}
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	state, err := c.AccessContract.loadState(ctx)
	if err != nil {
		return err
	}
	if err := c.AccessContract.requireNotPaused(state); err != nil {
		return err
	}
	issuer, err := c.AccessContract.requireIssuer(ctx)
	if err != nil {
		return err
	}
	if user == "" {
		return fmt.Errorf("%w: user identity cannot be empty", ErrInvalidInput)
	}

	profile, err := c.ProfileContract.ensureProfile(ctx, state, user)
	if err != nil {
		return err
	}
	index, err := c.ProfileContract.getAchievementIndex(ctx, user)
	if err != nil {
		return err
	}

	record, err := c.awardOne(ctx, user, achievementID, issuer, profile, index)
	if err != nil {
		return err
	}

	if err := c.ProfileContract.putProfile(ctx, profile); err != nil {
		return err
	}
	if err := c.ProfileContract.putAchievementIndex(ctx, index); err != nil {
		return err
	}
	if err := c.AccessContract.saveState(ctx, state); err != nil {
		return err
	}

	// Emit event
	eventPayload := map[string]interface{}{
		"user":          user,
		"achievementId": achievementID,
		"issuer":        issuer,
		"earnedAt":      record.EarnedAt,
	}
	eventJSON, _ := json.Marshal(eventPayload)
	ctx.GetStub().SetEvent("AchievementAwarded", eventJSON)

	c.logger().Info("achievement awarded",
		zap.String("user", user),
		zap.Uint64("achievementId", achievementID))
	return nil
}

// BatchAwardAchievements awards several achievements to one user in a single
// transaction. Elements are applied in order; on the first element that fails
// its checks the loop stops, the result records the failure, and every award
// already applied is kept. Call-level problems (pause, authorization, batch
// size) fail the whole transaction instead.
func (c *AchievementContract) BatchAwardAchievements(ctx contractapi.TransactionContextInterface, user string, achievementIDs []uint64) (*models.BatchAwardResult, error) {
	// Initialize collaborating contracts if not set
	if c.AccessContract == nil {
		c.AccessContract = &AccessContract{}
	}
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	state, err := c.AccessContract.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.AccessContract.requireNotPaused(state); err != nil {
		return nil, err
	}
	issuer, err := c.AccessContract.requireIssuer(ctx)
	if err != nil {
		return nil, err
	}
	if user == "" {
		return nil, fmt.Errorf("%w: user identity cannot be empty", ErrInvalidInput)
	}
	if len(achievementIDs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidInput)
	}
	if len(achievementIDs) > MaxBatchAwardSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds the maximum of %d awards", ErrLimitExceeded, len(achievementIDs), MaxBatchAwardSize)
	}

	// The workspace is loaded once and folded over by every element, because
	// writes made here are not visible to reads until the transaction commits.
	profile, err := c.ProfileContract.ensureProfile(ctx, state, user)
	if err != nil {
		return nil, err
	}
	index, err := c.ProfileContract.getAchievementIndex(ctx, user)
	if err != nil {
		return nil, err
	}

	result := &models.BatchAwardResult{
		Requested:   len(achievementIDs),
		FailedIndex: -1,
	}
	for i, id := range achievementIDs {
		if _, err := c.awardOne(ctx, user, id, issuer, profile, index); err != nil {
			// Freeze progress: earlier elements stay applied, later ones are
			// never attempted
			result.FailedIndex = i
			result.FailedID = id
			result.Error = err.Error()
			break
		}
		result.Applied++
	}

	if result.Applied > 0 {
		if err := c.ProfileContract.putProfile(ctx, profile); err != nil {
			return nil, err
		}
		if err := c.ProfileContract.putAchievementIndex(ctx, index); err != nil {
			return nil, err
		}
		if err := c.AccessContract.saveState(ctx, state); err != nil {
			return nil, err
		}

		// Emit event
		eventPayload := map[string]interface{}{
			"user":      user,
			"requested": result.Requested,
			"applied":   result.Applied,
			"issuer":    issuer,
		}
		eventJSON, _ := json.Marshal(eventPayload)
		ctx.GetStub().SetEvent("BatchAchievementsAwarded", eventJSON)
	}

	c.logger().Info("batch award finished",
		zap.String("user", user),
		zap.Int("requested", result.Requested),
		zap.Int("applied", result.Applied))
	return result, nil
}

// GetAchievement retrieves an achievement definition by id
func (c *AchievementContract) GetAchievement(ctx contractapi.TransactionContextInterface, achievementID uint64) (*models.Achievement, error) {
	achievement, err := c.getAchievement(ctx, achievementID)
	if err != nil {
		return nil, err
	}
	if achievement == nil {
		return nil, fmt.Errorf("%w: achievement %d", ErrNotFound, achievementID)
	}
	return achievement, nil
}

// GetAllAchievements retrieves every achievement definition in id order
func (c *AchievementContract) GetAllAchievements(ctx contractapi.TransactionContextInterface) ([]*models.Achievement, error) {
	iterator, err := ctx.GetStub().GetStateByRange(utils.AchievementPrefix, utils.AchievementPrefix+"\uffff")
	if err != nil {
		return nil, fmt.Errorf("failed to get achievement iterator: %v", err)
	}
	defer iterator.Close()

	var achievements []*models.Achievement
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate achievements: %v", err)
		}

		var achievement models.Achievement
		if err := json.Unmarshal(queryResponse.Value, &achievement); err != nil {
			return nil, fmt.Errorf("failed to unmarshal achievement: %v", err)
		}
		achievements = append(achievements, &achievement)
	}

	return achievements, nil
}

// GetUserAchievements retrieves the award records a user has earned
func (c *AchievementContract) GetUserAchievements(ctx contractapi.TransactionContextInterface, user string) ([]*models.UserAchievement, error) {
	// Initialize profile contract if not set
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	index, err := c.ProfileContract.getAchievementIndex(ctx, user)
	if err != nil {
		return nil, err
	}

	records := make([]*models.UserAchievement, 0, len(index.IDs))
	for _, id := range index.IDs {
		record, err := c.getUserAchievement(ctx, user, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("failed to read user achievement %d for %s: index entry has no record", id, user)
		}
		records = append(records, record)
	}

	return records, nil
}

// GetUserAchievementIDs retrieves the achievement ids a user holds, in the
// order they were awarded
func (c *AchievementContract) GetUserAchievementIDs(ctx contractapi.TransactionContextInterface, user string) ([]uint64, error) {
	// Initialize profile contract if not set
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	index, err := c.ProfileContract.getAchievementIndex(ctx, user)
	if err != nil {
		return nil, err
	}
	return index.IDs, nil
}

// HasAchievement reports whether a user holds a given achievement
func (c *AchievementContract) HasAchievement(ctx contractapi.TransactionContextInterface, user string, achievementID uint64) (bool, error) {
	record, err := c.getUserAchievement(ctx, user, achievementID)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// awardOne validates a single award against the in-memory workspace, writes
// the per-pair record and folds the changes into profile and index. On error
// nothing has been written for this element.
func (c *AchievementContract) awardOne(ctx contractapi.TransactionContextInterface, user string, achievementID uint64, issuer string, profile *models.UserProfile, index *models.UserAchievementIndex) (*models.UserAchievement, error) {
	// The index, not the ledger, answers duplicate checks so that earlier
	// elements of the same transaction are seen
	for _, held := range index.IDs {
		if held == achievementID {
			return nil, fmt.Errorf("%w: achievement %d already awarded to user", ErrInvalidInput, achievementID)
		}
	}
	if len(index.IDs) >= MaxAchievementsPerUser {
		return nil, fmt.Errorf("%w: user holds the maximum of %d achievements", ErrLimitExceeded, MaxAchievementsPerUser)
	}

	achievement, err := c.getAchievement(ctx, achievementID)
	if err != nil {
		return nil, err
	}
	if achievement == nil {
		return nil, fmt.Errorf("%w: achievement %d", ErrNotFound, achievementID)
	}
	if !achievement.Active {
		return nil, fmt.Errorf("%w: achievement %d is deactivated", ErrNotFound, achievementID)
	}

	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	record := models.UserAchievement{
		User:          user,
		AchievementID: achievementID,
		EarnedAt:      timestamp,
		Claimed:       false,
		Issuer:        issuer,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user achievement: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserAchievementKey(user, achievementID), recordJSON); err != nil {
		return nil, fmt.Errorf("failed to save user achievement: %v", err)
	}

	index.IDs = append(index.IDs, achievementID)
	profile.TotalAchievements++
	profile.TotalPoints += achievement.RewardAmount
	profile.LastActivity = timestamp
	return &record, nil
}

// getAchievement reads an achievement definition, returning nil when none
// exists
func (c *AchievementContract) getAchievement(ctx contractapi.TransactionContextInterface, achievementID uint64) (*models.Achievement, error) {
	achievementJSON, err := ctx.GetStub().GetState(utils.GetAchievementKey(achievementID))
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement: %v", err)
	}
	if achievementJSON == nil {
		return nil, nil
	}
	var achievement models.Achievement
	if err := json.Unmarshal(achievementJSON, &achievement); err != nil {
		return nil, fmt.Errorf("failed to unmarshal achievement: %v", err)
	}
	return &achievement, nil
}

// getUserAchievement reads a per-pair award record, returning nil when none
// exists
func (c *AchievementContract) getUserAchievement(ctx contractapi.TransactionContextInterface, user string, achievementID uint64) (*models.UserAchievement, error) {
	recordJSON, err := ctx.GetStub().GetState(utils.GetUserAchievementKey(user, achievementID))
	if err != nil {
		return nil, fmt.Errorf("failed to read user achievement: %v", err)
	}
	if recordJSON == nil {
		return nil, nil
	}
	var record models.UserAchievement
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user achievement: %v", err)
	}
	return &record, nil
}
