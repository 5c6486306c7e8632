package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/models"
	"github.com/Henryno111/Edu-reward-onchain/utils"
)

// AccessContract provides functions for contract genesis, issuer management
// and the pause switch. Its unexported helpers are the authorization gate
// consulted by every other contract.
type AccessContract struct {
	contractapi.Contract
	Log *zap.Logger
}

func (a *AccessContract) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Initialize records the caller as the contract owner and writes the genesis
// ledger state. It can only run once.
func (a *AccessContract) Initialize(ctx contractapi.TransactionContextInterface) error {
	// Check the ledger was not already initialized
	existing, err := ctx.GetStub().GetState(utils.LedgerStateKey)
	if err != nil {
		return fmt.Errorf("failed to read ledger state: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: ledger already initialized", ErrInvalidInput)
	}

	owner, err := a.callerID(ctx)
	if err != nil {
		return err
	}

	state := models.LedgerState{
		Owner:               owner,
		NextAchievementID:   1,
		NextCertificationID: 1,
		TotalUsers:          0,
		ContractBalance:     0,
		Paused:              false,
	}
	if err := a.saveState(ctx, &state); err != nil {
		return err
	}

	a.logger().Info("ledger initialized", zap.String("owner", owner))
	return nil
}

// RegisterIssuer grants an identity the right to create and award credentials.
// Owner only. Re-registering a known identity is rejected so a revoked issuer
// cannot be reactivated through this path.
func (a *AccessContract) RegisterIssuer(ctx contractapi.TransactionContextInterface, identity, name, description string) error {
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	if err := a.requireNotPaused(state); err != nil {
		return err
	}
	if _, err := a.requireOwner(ctx, state); err != nil {
		return err
	}

	if identity == "" {
		return fmt.Errorf("%w: issuer identity cannot be empty", ErrInvalidInput)
	}
	if name == "" {
		return fmt.Errorf("%w: issuer name cannot be empty", ErrInvalidInput)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: issuer name exceeds %d characters", ErrInvalidInput, MaxNameLength)
	}
	if len(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: issuer description exceeds %d characters", ErrInvalidInput, MaxDescriptionLength)
	}

	// Reject identities that already hold a record, active or revoked
	existing, err := a.getIssuer(ctx, identity)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: issuer %s already registered", ErrInvalidInput, identity)
	}

	timestamp, err := utils.GetTxTimestamp(ctx)
	if err != nil {
		return err
	}

	record := models.IssuerRecord{
		Identity:     identity,
		Name:         name,
		Description:  description,
		Active:       true,
		RegisteredAt: timestamp,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal issuer record: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetIssuerKey(identity), recordJSON); err != nil {
		return fmt.Errorf("failed to save issuer record: %v", err)
	}

	a.logger().Info("issuer registered", zap.String("identity", identity), zap.String("name", name))
	return nil
}

// DeactivateIssuer permanently revokes an identity's issuance rights without
// erasing its history. Owner only. Definitions the issuer already created are
// not touched. Revoking an already inactive issuer is a no-op success.
func (a *AccessContract) DeactivateIssuer(ctx contractapi.TransactionContextInterface, identity string) error {
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	if err := a.requireNotPaused(state); err != nil {
		return err
	}
	if _, err := a.requireOwner(ctx, state); err != nil {
		return err
	}

	record, err := a.getIssuer(ctx, identity)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: issuer %s", ErrNotFound, identity)
	}
	if !record.Active {
		return nil
	}

	record.Active = false
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal issuer record: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.GetIssuerKey(identity), recordJSON); err != nil {
		return fmt.Errorf("failed to save issuer record: %v", err)
	}

	a.logger().Info("issuer deactivated", zap.String("identity", identity))
	return nil
}

// GetIssuer retrieves an issuer record by identity
func (a *AccessContract) GetIssuer(ctx contractapi.TransactionContextInterface, identity string) (*models.IssuerRecord, error) {
	record, err := a.getIssuer(ctx, identity)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: issuer %s", ErrNotFound, identity)
	}
	return record, nil
}

// IsAuthorizedIssuer reports whether an identity holds active issuance rights
func (a *AccessContract) IsAuthorizedIssuer(ctx contractapi.TransactionContextInterface, identity string) (bool, error) {
	record, err := a.getIssuer(ctx, identity)
	if err != nil {
		return false, err
	}
	return record != nil && record.Active, nil
}

// SetContractPaused flips the pause switch. Owner only. Setting the switch to
// its current value is rejected; EmergencyPause and ResumeOperations bypass
// that guard.
func (a *AccessContract) SetContractPaused(ctx contractapi.TransactionContextInterface, paused bool) error {
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	caller, err := a.requireOwner(ctx, state)
	if err != nil {
		return err
	}

	if state.Paused == paused {
		if paused {
			return fmt.Errorf("%w: contract already paused", ErrInvalidInput)
		}
		return fmt.Errorf("%w: contract is not paused", ErrInvalidInput)
	}

	state.Paused = paused
	if err := a.saveState(ctx, state); err != nil {
		return err
	}

	a.emitPauseEvent(ctx, caller, paused)
	a.logger().Info("pause switch set", zap.Bool("paused", paused))
	return nil
}

// EmergencyPause unconditionally halts every mutating operation. Owner only.
func (a *AccessContract) EmergencyPause(ctx contractapi.TransactionContextInterface) error {
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	caller, err := a.requireOwner(ctx, state)
	if err != nil {
		return err
	}

	state.Paused = true
	if err := a.saveState(ctx, state); err != nil {
		return err
	}

	a.emitPauseEvent(ctx, caller, true)
	a.logger().Warn("emergency pause engaged")
	return nil
}

// ResumeOperations unconditionally lifts the pause. Owner only.
func (a *AccessContract) ResumeOperations(ctx contractapi.TransactionContextInterface) error {
	state, err := a.loadState(ctx)
	if err != nil {
		return err
	}
	caller, err := a.requireOwner(ctx, state)
	if err != nil {
		return err
	}

	state.Paused = false
	if err := a.saveState(ctx, state); err != nil {
		return err
	}

	a.emitPauseEvent(ctx, caller, false)
	a.logger().Info("operations resumed")
	return nil
}

// GetContractStats returns aggregate counters over the whole ledger
func (a *AccessContract) GetContractStats(ctx contractapi.TransactionContextInterface) (*models.ContractStats, error) {
	state, err := a.loadState(ctx)
	if err != nil {
		return nil, err
	}

	// Count registered and still-active issuers
	iterator, err := ctx.GetStub().GetStateByRange(utils.IssuerPrefix, utils.IssuerPrefix+"\uffff")
	if err != nil {
		return nil, fmt.Errorf("failed to get issuer iterator: %v", err)
	}
	defer iterator.Close()

	var totalIssuers, activeIssuers uint64
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate issuers: %v", err)
		}
		var record models.IssuerRecord
		if err := json.Unmarshal(queryResponse.Value, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issuer record: %v", err)
		}
		totalIssuers++
		if record.Active {
			activeIssuers++
		}
	}

	return &models.ContractStats{
		TotalAchievements:   state.NextAchievementID - 1,
		TotalCertifications: state.NextCertificationID - 1,
		TotalIssuers:        totalIssuers,
		ActiveIssuers:       activeIssuers,
		TotalUsers:          state.TotalUsers,
		ContractBalance:     state.ContractBalance,
		Paused:              state.Paused,
	}, nil
}

func (a *AccessContract) emitPauseEvent(ctx contractapi.TransactionContextInterface, caller string, paused bool) {
	name := "ContractResumed"
	if paused {
		name = "ContractPaused"
	}
	eventPayload := map[string]interface{}{
		"by":     caller,
		"paused": paused,
	}
	eventJSON, _ := json.Marshal(eventPayload)
	ctx.GetStub().SetEvent(name, eventJSON)
}

// callerID resolves the transaction submitter's identity
func (a *AccessContract) callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %v", err)
	}
	return id, nil
}

// requireOwner verifies the caller is the identity fixed at genesis
func (a *AccessContract) requireOwner(ctx contractapi.TransactionContextInterface, state *models.LedgerState) (string, error) {
	caller, err := a.callerID(ctx)
	if err != nil {
		return "", err
	}
	if caller != state.Owner {
		return "", fmt.Errorf("%w: caller is not the contract owner", ErrUnauthorized)
	}
	return caller, nil
}

// requireIssuer verifies the caller holds an active issuer record
func (a *AccessContract) requireIssuer(ctx contractapi.TransactionContextInterface) (string, error) {
	caller, err := a.callerID(ctx)
	if err != nil {
		return "", err
	}
	record, err := a.getIssuer(ctx, caller)
	if err != nil {
		return "", err
	}
	if record == nil || !record.Active {
		return "", fmt.Errorf("%w: caller is not an active issuer", ErrUnauthorized)
	}
	return caller, nil
}

// requireNotPaused rejects mutating work while the pause switch is set
func (a *AccessContract) requireNotPaused(state *models.LedgerState) error {
	if state.Paused {
		return ErrContractPaused
	}
	return nil
}

// getIssuer reads an issuer record, returning nil when none exists
func (a *AccessContract) getIssuer(ctx contractapi.TransactionContextInterface, identity string) (*models.IssuerRecord, error) {
	recordJSON, err := ctx.GetStub().GetState(utils.GetIssuerKey(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to read issuer record: %v", err)
	}
	if recordJSON == nil {
		return nil, nil
	}
	var record models.IssuerRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuer record: %v", err)
	}
	return &record, nil
}

// loadState reads the singleton ledger state
func (a *AccessContract) loadState(ctx contractapi.TransactionContextInterface) (*models.LedgerState, error) {
	data, err := ctx.GetStub().GetState(utils.LedgerStateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger state: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: ledger not initialized", ErrNotFound)
	}
	var state models.LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger state: %v", err)
	}
	return &state, nil
}

// saveState writes the singleton ledger state
func (a *AccessContract) saveState(ctx contractapi.TransactionContextInterface, state *models.LedgerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %v", err)
	}
	if err := ctx.GetStub().PutState(utils.LedgerStateKey, data); err != nil {
		return fmt.Errorf("failed to save ledger state: %v", err)
	}
	return nil
}
