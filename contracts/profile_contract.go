package contracts

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/models"
	"github.com/Henryno111/Edu-reward-onchain/utils"
)

// ProfileContract provides functions for reading user profiles and the
// aggregates built on them. Profiles are never created explicitly: the first
// award or claim that touches a user creates one.
type ProfileContract struct {
	contractapi.Contract
	AchievementContract *AchievementContract
	Log                 *zap.Logger
}

func (p *ProfileContract) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// GetUserProfile retrieves a user's profile
func (p *ProfileContract) GetUserProfile(ctx contractapi.TransactionContextInterface, user string) (*models.UserProfile, error) {
	profile, err := p.getProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: user profile %s", ErrNotFound, user)
	}
	return profile, nil
}

// GetUserSummary retrieves a user's profile together with held credential ids
// and the rewards still claimable. Pending rewards count unclaimed records
// whose definition is still active, since those are the only ones a claim
// would pay out.
func (p *ProfileContract) GetUserSummary(ctx contractapi.TransactionContextInterface, user string) (*models.UserSummary, error) {
	// Initialize achievement contract if not set
	if p.AchievementContract == nil {
		p.AchievementContract = &AchievementContract{}
	}

	profile, err := p.getProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: user profile %s", ErrNotFound, user)
	}

	achievementIndex, err := p.getAchievementIndex(ctx, user)
	if err != nil {
		return nil, err
	}
	certificationIndex, err := p.getCertificationIndex(ctx, user)
	if err != nil {
		return nil, err
	}

	var pending uint64
	for _, id := range achievementIndex.IDs {
		record, err := p.AchievementContract.getUserAchievement(ctx, user, id)
		if err != nil {
			return nil, err
		}
		if record == nil || record.Claimed {
			continue
		}
		achievement, err := p.AchievementContract.getAchievement(ctx, id)
		if err != nil {
			return nil, err
		}
		if achievement == nil || !achievement.Active {
			continue
		}
		pending += achievement.RewardAmount
	}

	return &models.UserSummary{
		User:             user,
		Profile:          profile,
		AchievementIDs:   achievementIndex.IDs,
		CertificationIDs: certificationIndex.IDs,
		PendingRewards:   pending,
	}, nil
}

// GetLeaderboard retrieves up to limit users ranked by total points. Ties
// break on user identity so the ordering is deterministic across peers.
func (p *ProfileContract) GetLeaderboard(ctx contractapi.TransactionContextInterface, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: leaderboard limit must be positive", ErrInvalidInput)
	}

	iterator, err := ctx.GetStub().GetStateByRange(utils.UserProfilePrefix, utils.UserProfilePrefix+"\uffff")
	if err != nil {
		return nil, fmt.Errorf("failed to get profile iterator: %v", err)
	}
	defer iterator.Close()

	var profiles []*models.UserProfile
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate profiles: %v", err)
		}

		var profile models.UserProfile
		if err := json.Unmarshal(queryResponse.Value, &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %v", err)
		}
		profiles = append(profiles, &profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].TotalPoints != profiles[j].TotalPoints {
			return profiles[i].TotalPoints > profiles[j].TotalPoints
		}
		return profiles[i].User < profiles[j].User
	})

	if limit > len(profiles) {
		limit = len(profiles)
	}
	entries := make([]*models.LeaderboardEntry, 0, limit)
	for i := 0; i < limit; i++ {
		entries = append(entries, &models.LeaderboardEntry{
			Rank:              i + 1,
			User:              profiles[i].User,
			TotalPoints:       profiles[i].TotalPoints,
			TotalAchievements: profiles[i].TotalAchievements,
		})
	}

	return entries, nil
}

// ensureProfile returns the stored profile for a user, creating a fresh
// in-memory one on first contact and counting the user in state. The caller
// persists both once its own writes succeed.
func (p *ProfileContract) ensureProfile(ctx contractapi.TransactionContextInterface, state *models.LedgerState, user string) (*models.UserProfile, error) {
	profile, err := p.getProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	state.TotalUsers++
	p.logger().Info("user profile created", zap.String("user", user))
	return &models.UserProfile{
		User:         user,
		JoinedAt:     timestamp,
		LastActivity: timestamp,
	}, nil
}

// getProfile reads a user profile, returning nil when none exists
func (p *ProfileContract) getProfile(ctx contractapi.TransactionContextInterface, user string) (*models.UserProfile, error) {
	profileJSON, err := ctx.GetStub().GetState(utils.GetUserProfileKey(user))
	if err != nil {
		return nil, fmt.Errorf("failed to read user profile: %v", err)
	}
	if profileJSON == nil {
		return nil, nil
	}
	var profile models.UserProfile
	if err := json.Unmarshal(profileJSON, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user profile: %v", err)
	}
	return &profile, nil
}

// putProfile writes a user profile
func (p *ProfileContract) putProfile(ctx contractapi.TransactionContextInterface, profile *models.UserProfile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserProfileKey(profile.User), profileJSON); err != nil {
		return fmt.Errorf("failed to save user profile: %v", err)
	}
	return nil
}

// getAchievementIndex reads a user's achievement id index, returning an empty
// index when none exists
func (p *ProfileContract) getAchievementIndex(ctx contractapi.TransactionContextInterface, user string) (*models.UserAchievementIndex, error) {
	indexJSON, err := ctx.GetStub().GetState(utils.GetUserAchievementIndexKey(user))
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement index: %v", err)
	}
	index := &models.UserAchievementIndex{User: user, IDs: []uint64{}}
	if indexJSON == nil {
		return index, nil
	}
	if err := json.Unmarshal(indexJSON, index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal achievement index: %v", err)
	}
	return index, nil
}

// putAchievementIndex writes a user's achievement id index
func (p *ProfileContract) putAchievementIndex(ctx contractapi.TransactionContextInterface, index *models.UserAchievementIndex) error {
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal achievement index: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserAchievementIndexKey(index.User), indexJSON); err != nil {
		return fmt.Errorf("failed to save achievement index: %v", err)
	}
	return nil
}

// getCertificationIndex reads a user's certification id index, returning an
// empty index when none exists
func (p *ProfileContract) getCertificationIndex(ctx contractapi.TransactionContextInterface, user string) (*models.UserCertificationIndex, error) {
	indexJSON, err := ctx.GetStub().GetState(utils.GetUserCertificationIndexKey(user))
	if err != nil {
		return nil, fmt.Errorf("failed to read certification index: %v", err)
	}
	index := &models.UserCertificationIndex{User: user, IDs: []uint64{}}
	if indexJSON == nil {
		return index, nil
	}
	if err := json.Unmarshal(indexJSON, index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certification index: %v", err)
	}
	return index, nil
}

// putCertificationIndex writes a user's certification id index
func (p *ProfileContract) putCertificationIndex(ctx contractapi.TransactionContextInterface, index *models.UserCertificationIndex) error {
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal certification index: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserCertificationIndexKey(index.User), indexJSON); err != nil {
		return fmt.Errorf("failed to save certification index: %v", err)
	}
	return nil
}
