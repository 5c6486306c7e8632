package contracts

import (
	"crypto/x509"
	"testing"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    = "owner"
	issuerID   = "issuer1"
	issuer2ID  = "issuer2"
	studentID  = "student1"
	student2ID = "student2"
)

// mockClientIdentity is a settable caller identity so tests can switch
// between owner, issuers and users
type mockClientIdentity struct {
	id string
}

func (m *mockClientIdentity) GetID() (string, error)    { return m.id, nil }
func (m *mockClientIdentity) GetMSPID() (string, error) { return "Org1MSP", nil }
func (m *mockClientIdentity) GetAttributeValue(attrName string) (string, bool, error) {
	return "", false, nil
}
func (m *mockClientIdentity) AssertAttributeValue(attrName, attrValue string) error { return nil }
func (m *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error)        { return nil, nil }

// MockTransactionContext is a mock transaction context
type MockTransactionContext struct {
	contractapi.TransactionContext
	stub     *shimtest.MockStub
	identity *mockClientIdentity
}

func (m *MockTransactionContext) GetStub() shim.ChaincodeStubInterface {
	return m.stub
}

func (m *MockTransactionContext) GetClientIdentity() cid.ClientIdentity {
	return m.identity
}

// SetCaller switches the identity subsequent calls run under
func (m *MockTransactionContext) SetCaller(id string) {
	m.identity.id = id
}

func NewMockContext() *MockTransactionContext {
	return &MockTransactionContext{
		stub:     shimtest.NewMockStub("mockStub", nil),
		identity: &mockClientIdentity{id: ownerID},
	}
}

// initLedger runs genesis as the owner in its own transaction
func initLedger(t *testing.T, ctx *MockTransactionContext, access *AccessContract) {
	t.Helper()
	ctx.SetCaller(ownerID)
	ctx.stub.MockTransactionStart("initTx")
	err := access.Initialize(ctx)
	ctx.stub.MockTransactionEnd("initTx")
	require.NoError(t, err)
	ctx.SetCaller(ownerID)
}

// registerIssuer registers an active issuer as the owner
func registerIssuer(t *testing.T, ctx *MockTransactionContext, access *AccessContract, identity, name string) {
	t.Helper()
	ctx.SetCaller(ownerID)
	ctx.stub.MockTransactionStart("registerTx-" + identity)
	err := access.RegisterIssuer(ctx, identity, name, "")
	ctx.stub.MockTransactionEnd("registerTx-" + identity)
	require.NoError(t, err)
}

// Test AccessContract
func TestInitialize(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)

	// Queries before genesis are rejected
	_, err := access.GetContractStats(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	ctx.stub.MockTransactionStart("txID1")
	err = access.Initialize(ctx)
	ctx.stub.MockTransactionEnd("txID1")
	assert.NoError(t, err)

	// Verify genesis state
	stats, err := access.GetContractStats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), stats.TotalAchievements)
	assert.Equal(t, uint64(0), stats.TotalCertifications)
	assert.Equal(t, uint64(0), stats.TotalUsers)
	assert.Equal(t, uint64(0), stats.ContractBalance)
	assert.False(t, stats.Paused)

	// Second genesis is rejected
	ctx.stub.MockTransactionStart("txID2")
	err = access.Initialize(ctx)
	ctx.stub.MockTransactionEnd("txID2")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestRegisterIssuer(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	initLedger(t, ctx, access)

	// Non-owner cannot register issuers
	ctx.SetCaller(issuerID)
	ctx.stub.MockTransactionStart("txID1")
	err := access.RegisterIssuer(ctx, issuerID, "Issuer One", "school of one")
	assert.ErrorIs(t, err, ErrUnauthorized)

	ctx.SetCaller(ownerID)
	err = access.RegisterIssuer(ctx, issuerID, "Issuer One", "school of one")
	assert.NoError(t, err)
	ctx.stub.MockTransactionEnd("txID1")

	// Verify issuer record
	record, err := access.GetIssuer(ctx, issuerID)
	assert.NoError(t, err)
	assert.Equal(t, issuerID, record.Identity)
	assert.Equal(t, "Issuer One", record.Name)
	assert.True(t, record.Active)

	authorized, err := access.IsAuthorizedIssuer(ctx, issuerID)
	assert.NoError(t, err)
	assert.True(t, authorized)

	// Unknown identities are not authorized
	authorized, err = access.IsAuthorizedIssuer(ctx, "nobody")
	assert.NoError(t, err)
	assert.False(t, authorized)

	// Empty identity, empty name and duplicates are rejected
	ctx.stub.MockTransactionStart("txID2")
	err = access.RegisterIssuer(ctx, "", "No Identity", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = access.RegisterIssuer(ctx, issuer2ID, "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = access.RegisterIssuer(ctx, issuerID, "Issuer One Again", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "already registered")
	ctx.stub.MockTransactionEnd("txID2")
}

func TestDeactivateIssuer(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	initLedger(t, ctx, access)
	registerIssuer(t, ctx, access, issuerID, "Issuer One")

	// Non-owner cannot revoke
	ctx.SetCaller(issuerID)
	ctx.stub.MockTransactionStart("txID1")
	err := access.DeactivateIssuer(ctx, issuerID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Unknown issuer
	ctx.SetCaller(ownerID)
	err = access.DeactivateIssuer(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	err = access.DeactivateIssuer(ctx, issuerID)
	assert.NoError(t, err)
	ctx.stub.MockTransactionEnd("txID1")

	// Record survives with history intact
	record, err := access.GetIssuer(ctx, issuerID)
	assert.NoError(t, err)
	assert.False(t, record.Active)
	assert.Equal(t, "Issuer One", record.Name)

	authorized, err := access.IsAuthorizedIssuer(ctx, issuerID)
	assert.NoError(t, err)
	assert.False(t, authorized)

	// Revoking again is a no-op, re-registering is refused
	ctx.stub.MockTransactionStart("txID2")
	err = access.DeactivateIssuer(ctx, issuerID)
	assert.NoError(t, err)

	err = access.RegisterIssuer(ctx, issuerID, "Issuer One Reborn", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	ctx.stub.MockTransactionEnd("txID2")
}

func TestPauseSwitch(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	initLedger(t, ctx, access)

	// Non-owner cannot pause
	ctx.SetCaller(studentID)
	ctx.stub.MockTransactionStart("txID1")
	err := access.SetContractPaused(ctx, true)
	assert.ErrorIs(t, err, ErrUnauthorized)

	ctx.SetCaller(ownerID)
	err = access.SetContractPaused(ctx, true)
	assert.NoError(t, err)

	// Mutations are rejected while paused
	err = access.RegisterIssuer(ctx, issuerID, "Issuer One", "")
	assert.ErrorIs(t, err, ErrContractPaused)

	// Redundant toggles are rejected
	err = access.SetContractPaused(ctx, true)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "already paused")

	// Unpausing works while paused
	err = access.SetContractPaused(ctx, false)
	assert.NoError(t, err)

	err = access.SetContractPaused(ctx, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "not paused")
	ctx.stub.MockTransactionEnd("txID1")

	stats, err := access.GetContractStats(ctx)
	assert.NoError(t, err)
	assert.False(t, stats.Paused)
}

func TestEmergencyPause(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	initLedger(t, ctx, access)

	// Emergency pause is unconditional
	ctx.stub.MockTransactionStart("txID1")
	err := access.EmergencyPause(ctx)
	assert.NoError(t, err)

	err = access.EmergencyPause(ctx)
	assert.NoError(t, err)

	// Non-owner cannot resume
	ctx.SetCaller(studentID)
	err = access.ResumeOperations(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	ctx.SetCaller(ownerID)
	err = access.ResumeOperations(ctx)
	assert.NoError(t, err)
	ctx.stub.MockTransactionEnd("txID1")

	stats, err := access.GetContractStats(ctx)
	assert.NoError(t, err)
	assert.False(t, stats.Paused)
}

func TestGetContractStats(t *testing.T) {
	ctx := NewMockContext()
	access := new(AccessContract)
	initLedger(t, ctx, access)
	registerIssuer(t, ctx, access, issuerID, "Issuer One")
	registerIssuer(t, ctx, access, issuer2ID, "Issuer Two")

	ctx.stub.MockTransactionStart("txID1")
	err := access.DeactivateIssuer(ctx, issuer2ID)
	assert.NoError(t, err)
	ctx.stub.MockTransactionEnd("txID1")

	stats, err := access.GetContractStats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalIssuers)
	assert.Equal(t, uint64(1), stats.ActiveIssuers)
}
