package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Henryno111/Edu-reward-onchain/contracts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using environment as-is: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Panicf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	// Create access contract
	accessContract := &contracts.AccessContract{
		Log: logger.Named("access"),
	}

	// Create profile contract
	profileContract := &contracts.ProfileContract{
		Log: logger.Named("profile"),
	}

	// Create achievement contract with access and profile references
	achievementContract := &contracts.AchievementContract{
		AccessContract:  accessContract,
		ProfileContract: profileContract,
		Log:             logger.Named("achievement"),
	}
	profileContract.AchievementContract = achievementContract

	// Create certification contract with access and profile references
	certificationContract := &contracts.CertificationContract{
		AccessContract:  accessContract,
		ProfileContract: profileContract,
		Log:             logger.Named("certification"),
	}

	// Create reward contract with access, achievement and profile references
	rewardContract := &contracts.RewardContract{
		AccessContract:      accessContract,
		AchievementContract: achievementContract,
		ProfileContract:     profileContract,
		Log:                 logger.Named("reward"),
	}

	// Create chaincode
	chaincode, err := contractapi.NewChaincode(
		accessContract,
		achievementContract,
		certificationContract,
		profileContract,
		rewardContract,
	)

	if err != nil {
		log.Panicf("Error creating reward ledger chaincode: %v", err)
	}

	// Run as an external chaincode service when an address is configured,
	// otherwise under the peer-managed lifecycle
	if address := os.Getenv("CHAINCODE_SERVER_ADDRESS"); address != "" {
		server := &shim.ChaincodeServer{
			CCID:    os.Getenv("CHAINCODE_ID"),
			Address: address,
			CC:      chaincode,
			TLSProps: shim.TLSProperties{
				Disabled: os.Getenv("CHAINCODE_TLS_DISABLED") != "false",
			},
		}
		logger.Info("starting chaincode server", zap.String("address", address))
		if err := server.Serve(); err != nil {
			logger.Error("chaincode server stopped", zap.Error(err))
		}
		return
	}

	if err := chaincode.Start(); err != nil {
		logger.Error("chaincode stopped", zap.Error(err))
	}
}
