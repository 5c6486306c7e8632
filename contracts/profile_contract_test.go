package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test ProfileContract
func TestGetUserProfile(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	profiles := new(ProfileContract)
	achievements := &AchievementContract{AccessContract: access, ProfileContract: profiles}
	initLedger(t, ctx, access)
	registerIssuer(t, ctx, access, issuerID, "Issuer One")
	createAchievement(t, ctx, achievements, issuerID, "First Steps", 100)

	// No profile exists before the first award
	_, err := profiles.GetUserProfile(ctx, studentID)
	assert.ErrorIs(t, err, ErrNotFound)

	ctx.SetCaller(issuerID)
	ctx.stub.MockTransactionStart("txID1")
	require.NoError(t, achievements.AwardAchievement(ctx, studentID, 1))
	ctx.stub.MockTransactionEnd("txID1")

	profile, err := profiles.GetUserProfile(ctx, studentID)
	assert.NoError(t, err)
	assert.Equal(t, studentID, profile.User)
	assert.NotZero(t, profile.JoinedAt)
	assert.GreaterOrEqual(t, profile.LastActivity, profile.JoinedAt)
}

func TestGetUserSummary(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	profiles := new(ProfileContract)
	achievements := &AchievementContract{AccessContract: access, ProfileContract: profiles}
	profiles.AchievementContract = achievements
	rewards := &RewardContract{AccessContract: access, AchievementContract: achievements, ProfileContract: profiles}
	initLedger(t, ctx, access)
	registerIssuer(t, ctx, access, issuerID, "Issuer One")
	createAchievement(t, ctx, achievements, issuerID, "First Steps", 100)
	createAchievement(t, ctx, achievements, issuerID, "Marathon", 200)

	// Unknown users have no summary
	_, err := profiles.GetUserSummary(ctx, studentID)
	assert.ErrorIs(t, err, ErrNotFound)

	ctx.stub.MockTransactionStart("txID1")
	require.NoError(t, rewards.FundContract(ctx, 1000))

	ctx.SetCaller(issuerID)
	require.NoError(t, achievements.AwardAchievement(ctx, studentID, 1))
	require.NoError(t, achievements.AwardAchievement(ctx, studentID, 2))

	ctx.SetCaller(studentID)
	amount, err := rewards.ClaimAchievementReward(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), amount)
	ctx.stub.MockTransactionEnd("txID1")

	// Claimed rewards leave the pending sum
	summary, err := profiles.GetUserSummary(ctx, studentID)
	assert.NoError(t, err)
	assert.Equal(t, studentID, summary.User)
	assert.Equal(t, []uint64{1, 2}, summary.AchievementIDs)
	assert.Empty(t, summary.CertificationIDs)
	assert.Equal(t, uint64(200), summary.PendingRewards)
	assert.Equal(t, uint64(100), summary.Profile.TotalRewardsClaimed)
	assert.Equal(t, uint64(300), summary.Profile.TotalPoints)

	// Deactivated definitions cannot pay, so they are not pending
	ctx.SetCaller(issuerID)
	ctx.stub.MockTransactionStart("txID2")
	require.NoError(t, achievements.DeactivateAchievement(ctx, 2))
	ctx.stub.MockTransactionEnd("txID2")

	summary, err = profiles.GetUserSummary(ctx, studentID)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), summary.PendingRewards)
}

func TestGetLeaderboard(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	profiles := new(ProfileContract)
	achievements := &AchievementContract{AccessContract: access, ProfileContract: profiles}
	initLedger(t, ctx, access)
	registerIssuer(t, ctx, access, issuerID, "Issuer One")
	createAchievement(t, ctx, achievements, issuerID, "Bronze", 300)
	createAchievement(t, ctx, achievements, issuerID, "Gold", 500)
	createAchievement(t, ctx, achievements, issuerID, "Paper", 100)
	createAchievement(t, ctx, achievements, issuerID, "Copper", 300)

	_, err := profiles.GetLeaderboard(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// An empty ledger ranks nobody
	entries, err := profiles.GetLeaderboard(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, entries)

	ctx.SetCaller(issuerID)
	ctx.stub.MockTransactionStart("txID1")
	require.NoError(t, achievements.AwardAchievement(ctx, "alice", 1))
	require.NoError(t, achievements.AwardAchievement(ctx, "bob", 2))
	require.NoError(t, achievements.AwardAchievement(ctx, "carol", 3))
	require.NoError(t, achievements.AwardAchievement(ctx, "dave", 4))
	ctx.stub.MockTransactionEnd("txID1")

	// Points descending, ties broken by user identity
	entries, err = profiles.GetLeaderboard(ctx, 10)
	assert.NoError(t, err)
	require.Equal(t, 4, len(entries))
	assert.Equal(t, "bob", entries[0].User)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, uint64(500), entries[0].TotalPoints)
	assert.Equal(t, "alice", entries[1].User)
	assert.Equal(t, "dave", entries[2].User)
	assert.Equal(t, "carol", entries[3].User)
	assert.Equal(t, 4, entries[3].Rank)

	// The limit truncates the ranking
	entries, err = profiles.GetLeaderboard(ctx, 2)
	assert.NoError(t, err)
	require.Equal(t, 2, len(entries))
	assert.Equal(t, "bob", entries[0].User)
	assert.Equal(t, "alice", entries[1].User)
}
