package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/models"
	"github.com/Henryno111/Edu-reward-onchain/utils"
)

// RewardContract provides functions for claiming achievement rewards and
// managing the contract balance that pays them
type RewardContract struct {
	contractapi.Contract
	AccessContract      *AccessContract
	AchievementContract *AchievementContract
	ProfileContract     *ProfileContract
	Log                 *zap.Logger
}

func (r *RewardContract) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// ClaimAchievementReward pays out the reward for an achievement the caller
// has earned. Each award record pays at most once, and only while its
// definition is still active. Returns the amount paid.
func (r *RewardContract) ClaimAchievementReward(ctx contractapi.TransactionContextInterface, achievementID uint64) (uint64, error) {
	// Initialize collaborating contracts if not set
	if r.AccessContract == nil {
		r.AccessContract = &AccessContract{}
	}
	if r.AchievementContract == nil {
		r.AchievementContract = &AchievementContract{}
	}
	if r.ProfileContract == nil {
		r.ProfileContract = &ProfileContract{}
	}

	state, err := r.AccessContract.loadState(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.AccessContract.requireNotPaused(state); err != nil {
		return 0, err
	}
	caller, err := r.AccessContract.callerID(ctx)
	if err != nil {
		return 0, err
	}

	profile, err := r.ProfileContract.ensureProfile(ctx, state, caller)
	if err != nil {
		return 0, err
	}

	amount, err := r.claimOne(ctx, caller, achievementID, state, profile, map[uint64]bool{})
	if err != nil {
		return 0, err
	}

	if err := r.ProfileContract.putProfile(ctx, profile); err != nil {
		return 0, err
	}
	if err := r.AccessContract.saveState(ctx, state); err != nil {
		return 0, err
	}

	// Emit event
	eventPayload := map[string]interface{}{
		"user":          caller,
		"achievementId": achievementID,
		"amount":        amount,
	}
	eventJSON, _ := json.Marshal(eventPayload)
	ctx.GetStub().SetEvent("RewardClaimed", eventJSON)

	r.logger().Info("reward claimed",
		zap.String("user", caller),
		zap.Uint64("achievementId", achievementID),
		zap.Uint64("amount", amount))
	return amount, nil
}

// BatchClaimRewards claims several rewards for the caller in a single
// transaction. Elements are applied in order; on the first element that fails
// its checks the loop stops, the result records the failure, and every payout
// already applied is kept. Call-level problems (pause, batch size) fail the
// whole transaction instead.
func (r *RewardContract) BatchClaimRewards(ctx contractapi.TransactionContextInterface, achievementIDs []uint64) (*models.BatchClaimResult, error) {
	// Initialize collaborating contracts if not set
	if r.AccessContract == nil {
		r.AccessContract = &AccessContract{}
	}
	if r.AchievementContract == nil {
		r.AchievementContract = &AchievementContract{}
	}
	if r.ProfileContract == nil {
		r.ProfileContract = &ProfileContract{}
	}

	state, err := r.AccessContract.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.AccessContract.requireNotPaused(state); err != nil {
		return nil, err
	}
	caller, err := r.AccessContract.callerID(ctx)
	if err != nil {
		return nil, err
	}
	if len(achievementIDs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", ErrInvalidInput)
	}
	if len(achievementIDs) > MaxBatchClaimSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds the maximum of %d claims", ErrLimitExceeded, len(achievementIDs), MaxBatchClaimSize)
	}

	// The workspace carries balance, profile and the set of ids already paid
	// in this transaction, because writes made here are not visible to reads
	// until commit. Without the set an id repeated in one batch would pay
	// twice.
	profile, err := r.ProfileContract.ensureProfile(ctx, state, caller)
	if err != nil {
		return nil, err
	}
	claimed := make(map[uint64]bool, len(achievementIDs))

	result := &models.BatchClaimResult{
		Requested:   len(achievementIDs),
		FailedIndex: -1,
	}
	for i, id := range achievementIDs {
		amount, err := r.claimOne(ctx, caller, id, state, profile, claimed)
		if err != nil {
			// Freeze progress: earlier payouts stay applied, later ids are
			// never attempted
			result.FailedIndex = i
			result.FailedID = id
			result.Error = err.Error()
			break
		}
		result.Claimed++
		result.TotalClaimed += amount
	}

	if result.Claimed > 0 {
		if err := r.ProfileContract.putProfile(ctx, profile); err != nil {
			return nil, err
		}
		if err := r.AccessContract.saveState(ctx, state); err != nil {
			return nil, err
		}

		// Emit event
		eventPayload := map[string]interface{}{
			"user":         caller,
			"requested":    result.Requested,
			"claimed":      result.Claimed,
			"totalClaimed": result.TotalClaimed,
		}
		eventJSON, _ := json.Marshal(eventPayload)
		ctx.GetStub().SetEvent("BatchRewardsClaimed", eventJSON)
	}

	r.logger().Info("batch claim finished",
		zap.String("user", caller),
		zap.Int("requested", result.Requested),
		zap.Int("claimed", result.Claimed),
		zap.Uint64("totalClaimed", result.TotalClaimed))
	return result, nil
}

// FundContract adds to the balance rewards are paid from. Owner only.
func (r *RewardContract) FundContract(ctx contractapi.TransactionContextInterface, amount uint64) error {
	// Initialize access contract if not set
	if r.AccessContract == nil {
		r.AccessContract = &AccessContract{}
	}

	state, err := r.AccessContract.loadState(ctx)
	if err != nil {
		return err
	}
	if err := r.AccessContract.requireNotPaused(state); err != nil {
		return err
	}
	if _, err := r.AccessContract.requireOwner(ctx, state); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: funding amount must be positive", ErrInvalidInput)
	}
	if state.ContractBalance+amount < state.ContractBalance {
		return fmt.Errorf("%w: contract balance would overflow", ErrInvalidInput)
	}

	state.ContractBalance += amount
	if err := r.AccessContract.saveState(ctx, state); err != nil {
		return err
	}

	r.logger().Info("contract funded",
		zap.Uint64("amount", amount),
		zap.Uint64("balance", state.ContractBalance))
	return nil
}

// WithdrawContractFunds removes part of the reward balance. Owner only.
func (r *RewardContract) WithdrawContractFunds(ctx contractapi.TransactionContextInterface, amount uint64) error {
	// Initialize access contract if not set
	if r.AccessContract == nil {
		r.AccessContract = &AccessContract{}
	}

	state, err := r.AccessContract.loadState(ctx)
	if err != nil {
		return err
	}
	if err := r.AccessContract.requireNotPaused(state); err != nil {
		return err
	}
	if _, err := r.AccessContract.requireOwner(ctx, state); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidInput)
	}
	if amount > state.ContractBalance {
		return fmt.Errorf("%w: withdrawal of %d exceeds balance of %d", ErrInsufficientBalance, amount, state.ContractBalance)
	}

	state.ContractBalance -= amount
	if err := r.AccessContract.saveState(ctx, state); err != nil {
		return err
	}

	r.logger().Info("funds withdrawn",
		zap.Uint64("amount", amount),
		zap.Uint64("balance", state.ContractBalance))
	return nil
}

// GetContractBalance retrieves the balance available for reward payouts
func (r *RewardContract) GetContractBalance(ctx contractapi.TransactionContextInterface) (uint64, error) {
	// Initialize access contract if not set
	if r.AccessContract == nil {
		r.AccessContract = &AccessContract{}
	}

	state, err := r.AccessContract.loadState(ctx)
	if err != nil {
		return 0, err
	}
	return state.ContractBalance, nil
}

// claimOne validates a single claim against the in-memory workspace, flips
// the award record to claimed and folds the payout into state and profile.
// On error nothing has been written for this element.
func (r *RewardContract) claimOne(ctx contractapi.TransactionContextInterface, user string, achievementID uint64, state *models.LedgerState, profile *models.UserProfile, claimed map[uint64]bool) (uint64, error) {
	if claimed[achievementID] {
		return 0, fmt.Errorf("%w: achievement %d", ErrAlreadyClaimed, achievementID)
	}

	record, err := r.AchievementContract.getUserAchievement(ctx, user, achievementID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, fmt.Errorf("%w: achievement %d not awarded to caller", ErrNotFound, achievementID)
	}
	if record.Claimed {
		return 0, fmt.Errorf("%w: achievement %d", ErrAlreadyClaimed, achievementID)
	}

	achievement, err := r.AchievementContract.getAchievement(ctx, achievementID)
	if err != nil {
		return 0, err
	}
	if achievement == nil {
		return 0, fmt.Errorf("%w: achievement %d", ErrNotFound, achievementID)
	}
	if !achievement.Active {
		return 0, fmt.Errorf("%w: achievement %d is deactivated", ErrNotFound, achievementID)
	}

	if state.ContractBalance < achievement.RewardAmount {
		return 0, fmt.Errorf("%w: reward of %d exceeds balance of %d", ErrInsufficientBalance, achievement.RewardAmount, state.ContractBalance)
	}

	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return 0, err
	}

	record.Claimed = true
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal user achievement: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserAchievementKey(user, achievementID), recordJSON); err != nil {
		return 0, fmt.Errorf("failed to save user achievement: %v", err)
	}

	state.ContractBalance -= achievement.RewardAmount
	profile.TotalRewardsClaimed += achievement.RewardAmount
	profile.LastActivity = timestamp
	claimed[achievementID] = true
	return achievement.RewardAmount, nil
}
