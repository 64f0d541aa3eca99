package relayer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// recordActivityABI describes the single contract method the relayer calls.
// The batch is self-contained (through-block plus full window summary), so
// resubmitting the same window is idempotent on the receiving side.
const recordActivityABI = `[{
	"name": "recordActivity",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "throughBlock", "type": "uint256"},
		{"name": "mintCount", "type": "uint256"},
		{"name": "giftCount", "type": "uint256"},
		{"name": "tokenIds", "type": "uint256[]"},
		{"name": "owners", "type": "address[]"}
	],
	"outputs": []
}]`

const submitGasLimit = 500000

// EthSubmitter submits batched updates to the collection contract.
type EthSubmitter struct {
	client   *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	abi      abi.ABI
}

// NewEthSubmitter creates a submitter signing with the relayer key.
func NewEthSubmitter(ctx context.Context, client *ethclient.Client, contractHex, privateKeyHex string) (*EthSubmitter, error) {
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid contract address: %s", contractHex)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relayer private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(recordActivityABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse relay ABI: %w", err)
	}

	return &EthSubmitter{
		client:   client,
		contract: common.HexToAddress(contractHex),
		key:      key,
		chainID:  chainID,
		abi:      parsed,
	}, nil
}

// Submit sends one recordActivity transaction and blocks until it is mined.
// Success is only reported on a confirmed receipt; anything less leaves the
// checkpoint untouched so the window is retried.
func (s *EthSubmitter) Submit(ctx context.Context, batch *Batch) error {
	tokenIDs, owners := batch.SortedOwners()

	ids := make([]*big.Int, len(tokenIDs))
	addrs := make([]common.Address, len(owners))
	for i := range tokenIDs {
		ids[i] = new(big.Int).SetUint64(tokenIDs[i])
		addrs[i] = common.HexToAddress(owners[i])
	}

	data, err := s.abi.Pack("recordActivity",
		new(big.Int).SetUint64(batch.ThroughBlock),
		new(big.Int).SetUint64(batch.MintCount),
		new(big.Int).SetUint64(batch.GiftCount),
		ids,
		addrs,
	)
	if err != nil {
		return fmt.Errorf("failed to pack batch: %w", err)
	}

	from := crypto.PubkeyToAddress(s.key.PublicKey)

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &s.contract,
		Gas:      submitGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return fmt.Errorf("failed to sign batch transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send batch transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, s.client, signed)
	if err != nil {
		return fmt.Errorf("batch transaction %s not confirmed: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("batch transaction %s reverted", signed.Hash().Hex())
	}

	return nil
}
