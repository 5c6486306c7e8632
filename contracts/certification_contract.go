package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/models"
	"github.com/Henryno111/Edu-reward-onchain/utils"
)

// CertificationContract provides functions for managing certification
// definitions and awarding them to qualified users
type CertificationContract struct {
	contractapi.Contract
	AccessContract  *AccessContract
	ProfileContract *ProfileContract
	Log             *zap.Logger
}

func (c *CertificationContract) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// CreateCertification registers a new certification definition and returns its
// id. The required achievement list is stored as given; it is evaluated
// set-wise at award time, so order and repeats in it carry no meaning.
func (c *CertificationContract) CreateCertification(ctx contractapi.TransactionContextInterface, name, description string, requiredAchievements []uint64) (uint64, error) {
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
		return 0, fmt.Errorf("%w: certification name cannot be empty", ErrInvalidInput)
	}
	if len(name) > MaxNameLength {
		return 0, fmt.Errorf("%w: certification name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	if description == "" {
		return 0, fmt.Errorf("%w: certification description cannot be empty", ErrInvalidInput)
	}
	if len(description) > MaxDescriptionLength {
		return 0, fmt.Errorf("%w: certification description exceeds %d characters", ErrInvalidInput, MaxDescriptionLength)
	}
	if len(requiredAchievements) == 0 {
		return 0, fmt.Errorf("%w: certification requires at least one achievement", ErrInvalidInput)
	}

	// Get deterministic timestamp from transaction
	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return 0, err
	}

	id := state.NextCertificationID
	certification := models.Certification{
		ID:                   id,
		Name:                 name,
		Description:          description,
		RequiredAchievements: requiredAchievements,
		Issuer:               issuer,
		Active:               true,
		CreatedAt:            timestamp,
	}

	certificationJSON, err := json.Marshal(certification)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal certification: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetCertificationKey(id), certificationJSON); err != nil {
		return 0, fmt.Errorf("failed to save certification: %v", err)
	}

	state.NextCertificationID++
	if err := c.AccessContract.saveState(ctx, state); err != nil {
		return 0, err
	}

	c.logger().Info("certification created",
		zap.Uint64("id", id),
		zap.String("name", name),
		zap.Int("requiredAchievements", len(requiredAchievements)))
	return id, nil
}

// DeactivateCertification retires a certification definition. Only the
// creating issuer or the owner may deactivate; already inactive definitions
// are a no-op success.
func (c *CertificationContract) DeactivateCertification(ctx contractapi.TransactionContextInterface, certificationID uint64) error {
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

	certification, err := c.getCertification(ctx, certificationID)
	if err != nil {
		return err
	}
	if certification == nil {
		return fmt.Errorf("%w: certification %d", ErrNotFound, certificationID)
	}
	if caller != certification.Issuer && caller != state.Owner {
		return fmt.Errorf("%w: only the creating issuer or the owner may deactivate", ErrUnauthorized)
	}
	if !certification.Active {
		return nil
	}

	certification.Active = false
	certificationJSON, err := json.Marshal(certification)
	if err != nil {
		return fmt.Errorf("failed to marshal certification: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetCertificationKey(certificationID), certificationJSON); err != nil {
		return fmt.Errorf("failed to save certification: %v", err)
	}

	c.logger().Info("certification deactivated", zap.Uint64("id", certificationID))
	return nil
}

// AwardCertification grants a certification to a user who holds every
// required achievement. The qualification check runs against the target user,
// not the caller. Certifications carry no reward payout.
func (c *CertificationContract) AwardCertification(ctx contractapi.TransactionContextInterface, user string, certificationID uint64) error {
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

	index, err := c.ProfileContract.getCertificationIndex(ctx, user)
	if err != nil {
		return err
	}
	for _, held := range index.IDs {
		if held == certificationID {
			return fmt.Errorf("%w: certification %d already awarded to user", ErrInvalidInput, certificationID)
		}
	}
	if len(index.IDs) >= MaxCertificationsPerUser {
		return fmt.Errorf("%w: user holds the maximum of %d certifications", ErrLimitExceeded, MaxCertificationsPerUser)
	}

	certification, err := c.getCertification(ctx, certificationID)
	if err != nil {
		return err
	}
	if certification == nil {
		return fmt.Errorf("%w: certification %d", ErrNotFound, certificationID)
	}
	if !certification.Active {
		return fmt.Errorf("%w: certification %d is deactivated", ErrNotFound, certificationID)
	}

	missing, unqualified, err := c.missingRequirement(ctx, user, certification)
	if err != nil {
		return err
	}
	if unqualified {
		return fmt.Errorf("%w: user is missing required achievement %d", ErrInvalidInput, missing)
	}

	profile, err := c.ProfileContract.ensureProfile(ctx, state, user)
	if err != nil {
		return err
	}

	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return err
	}

	record := models.UserCertification{
		User:            user,
		CertificationID: certificationID,
		EarnedAt:        timestamp,
		Issuer:          issuer,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal user certification: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetUserCertificationKey(user, certificationID), recordJSON); err != nil {
		return fmt.Errorf("failed to save user certification: %v", err)
	}

	index.IDs = append(index.IDs, certificationID)
	profile.LastActivity = timestamp

	if err := c.ProfileContract.putProfile(ctx, profile); err != nil {
		return err
	}
	if err := c.ProfileContract.putCertificationIndex(ctx, index); err != nil {
		return err
	}
	if err := c.AccessContract.saveState(ctx, state); err != nil {
		return err
	}

	// Emit event
	eventPayload := map[string]interface{}{
		"user":            user,
		"certificationId": certificationID,
		"issuer":          issuer,
		"earnedAt":        record.EarnedAt,
	}
	eventJSON, _ := json.Marshal(eventPayload)
	ctx.GetStub().SetEvent("CertificationAwarded", eventJSON)

	c.logger().Info("certification awarded",
		zap.String("user", user),
		zap.Uint64("certificationId", certificationID))
	return nil
}

// GetCertification retrieves a certification definition by id
func (c *CertificationContract) GetCertification(ctx contractapi.TransactionContextInterface, certificationID uint64) (*models.Certification, error) {
	certification, err := c.getCertification(ctx, certificationID)
	if err != nil {
		return nil, err
	}
	if certification == nil {
		return nil, fmt.Errorf("%w: certification %d", ErrNotFound, certificationID)
	}
	return certification, nil
}

// GetAllCertifications retrieves every certification definition in id order
func (c *CertificationContract) GetAllCertifications(ctx contractapi.TransactionContextInterface) ([]*models.Certification, error) {
	iterator, err := ctx.GetStub().GetStateByRange(utils.CertificationPrefix, utils.CertificationPrefix+"\uffff")
	if err != nil {
		return nil, fmt.Errorf("failed to get certification iterator: %v", err)
	}
	defer iterator.Close()

	var certifications []*models.Certification
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate certifications: %v", err)
		}

		var certification models.Certification
		if err := json.Unmarshal(queryResponse.Value, &certification); err != nil {
			return nil, fmt.Errorf("failed to unmarshal certification: %v", err)
		}
		certifications = append(certifications, &certification)
	}

	return certifications, nil
}

// GetUserCertificationIDs retrieves the certification ids a user holds, in
// the order they were awarded
func (c *CertificationContract) GetUserCertificationIDs(ctx contractapi.TransactionContextInterface, user string) ([]uint64, error) {
	// Initialize profile contract if not set
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	index, err := c.ProfileContract.getCertificationIndex(ctx, user)
	if err != nil {
		return nil, err
	}
	return index.IDs, nil
}

// HasCertification reports whether a user holds a given certification
func (c *CertificationContract) HasCertification(ctx contractapi.TransactionContextInterface, user string, certificationID uint64) (bool, error) {
	recordJSON, err := ctx.GetStub().GetState(utils.GetUserCertificationKey(user, certificationID))
	if err != nil {
		return false, fmt.Errorf("failed to read user certification: %v", err)
	}
	return recordJSON != nil, nil
}

// IsQualifiedForCertification reports whether a user holds every achievement
// the certification requires
func (c *CertificationContract) IsQualifiedForCertification(ctx contractapi.TransactionContextInterface, user string, certificationID uint64) (bool, error) {
	// Initialize profile contract if not set
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	certification, err := c.getCertification(ctx, certificationID)
	if err != nil {
		return false, err
	}
	if certification == nil {
		return false, fmt.Errorf("%w: certification %d", ErrNotFound, certificationID)
	}

	_, unqualified, err := c.missingRequirement(ctx, user, certification)
	if err != nil {
		return false, err
	}
	return !unqualified, nil
}

// missingRequirement returns the first required achievement the user does not
// hold, in requirement-list order
func (c *CertificationContract) missingRequirement(ctx contractapi.TransactionContextInterface, user string, certification *models.Certification) (uint64, bool, error) {
	// Initialize profile contract if not set
	if c.ProfileContract == nil {
		c.ProfileContract = &ProfileContract{}
	}

	index, err := c.ProfileContract.getAchievementIndex(ctx, user)
	if err != nil {
		return 0, false, err
	}
	held := make(map[uint64]bool, len(index.IDs))
	for _, id := range index.IDs {
		held[id] = true
	}
	for _, id := range certification.RequiredAchievements {
		if !held[id] {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// getCertification reads a certification definition, returning nil when none
// exists
func (c *CertificationContract) getCertification(ctx contractapi.TransactionContextInterface, certificationID uint64) (*models.Certification, error) {
	certificationJSON, err := ctx.GetStub().GetState(utils.GetCertificationKey(certificationID))
	if err != nil {
		return nil, fmt.Errorf("failed to read certification: %v", err)
	}
	if certificationJSON == nil {
		return nil, nil
	}
	var certification models.Certification
	if err := json.Unmarshal(certificationJSON, &certification); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certification: %v", err)
	}
	return &certification, nil
}
