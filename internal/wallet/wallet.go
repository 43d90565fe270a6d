// Package wallet 实现钱包/凭证协作方：用会话凭证解开长期保存的助记词，
// 换出一次执行内可用的签名能力。原始凭证不落日志、不落盘。
package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/sirupsen/logrus"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/internal/execution"
	"github.com/betbot/swapcore/pkg/secretstore"
)

var wlLog = logrus.WithField("module", "wallet")

// Service 钱包服务。助记词经 keystore(scrypt) 用用户密码包裹后存入 secretstore；
// ResolveSigningCapability 用凭证现场解包，密码错误即拒绝。
type Service struct {
	store          *secretstore.Store
	derivationPath string
	chainID        int64
}

// NewService 创建钱包服务
func NewService(store *secretstore.Store, derivationPath string, chainID int64) *Service {
	if derivationPath == "" {
		derivationPath = "m/44'/60'/0'/0/0"
	}
	return &Service{
		store:          store,
		derivationPath: derivationPath,
		chainID:        chainID,
	}
}

// StoreMnemonic 用 password 包裹助记词并写入 secretstore（初始化/换密码时用）
func (s *Service) StoreMnemonic(mnemonic, password string) error {
	if _, err := hdwallet.NewFromMnemonic(mnemonic); err != nil {
		return fmt.Errorf("invalid mnemonic: %w", err)
	}
	wrapped, err := keystore.EncryptDataV3([]byte(mnemonic), []byte(password),
		keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return fmt.Errorf("wrap mnemonic: %w", err)
	}
	blob, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}
	return s.store.Set(secretstore.KeyWrappedMnemonic, string(blob))
}

// ResolveSigningCapability 用凭证换签名能力。
// 凭证错误（scrypt 解包失败）返回错误，上层映射为 CredentialRejected。
func (s *Service) ResolveSigningCapability(ctx context.Context, userID, credential string) (execution.SigningHandle, error) {
	blob, found, err := s.store.Get(secretstore.KeyWrappedMnemonic)
	if err != nil {
		return nil, fmt.Errorf("secretstore read: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no wallet material for user %s", userID)
	}

	var wrapped keystore.CryptoJSON
	if err := json.Unmarshal([]byte(blob), &wrapped); err != nil {
		return nil, fmt.Errorf("corrupt wallet material: %w", err)
	}

	mnemonic, err := keystore.DecryptDataV3(wrapped, credential)
	if err != nil {
		// 密码不对。凭证内容绝不进日志。
		wlLog.Warnf("凭证校验失败: user=%s", userID)
		return nil, fmt.Errorf("credential rejected")
	}
	defer zeroize(mnemonic)

	w, err := hdwallet.NewFromMnemonic(string(mnemonic))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet material: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(s.derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}
	pk, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("private key failed: %w", err)
	}

	return &signingHandle{
		privateKey: pk,
		address:    acct.Address,
		chainID:    s.chainID,
	}, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// signingHandle 持有派生出的私钥，生命周期不超过一次 Execute 调用
type signingHandle struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
}

func (h *signingHandle) Address() string {
	return h.address.Hex()
}

// SignSwapOrder 对报价做 EIP-712 签名，产出可提交 relay 的订单
func (h *signingHandle) SignSwapOrder(quote *domain.SwapQuote) (*execution.SignedOrder, error) {
	salt, err := randomSalt()
	if err != nil {
		return nil, err
	}

	hash, err := h.swapOrderDigest(quote, salt)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, h.privateKey)
	if err != nil {
		return nil, err
	}
	// Ethereum 习惯：v += 27
	if sig[64] < 27 {
		sig[64] += 27
	}

	return &execution.SignedOrder{
		Signer:    h.address.Hex(),
		Quote:     quote,
		Salt:      salt.String(),
		Signature: "0x" + common.Bytes2Hex(sig),
	}, nil
}

// swapOrderDigest 构造 SwapOrder 的 EIP-712 hash
func (h *signingHandle) swapOrderDigest(quote *domain.SwapQuote, salt *big.Int) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"SwapOrder": []apitypes.Type{
				{Name: "inputAsset", Type: "address"},
				{Name: "outputAsset", Type: "address"},
				{Name: "inputAmount", Type: "uint256"},
				{Name: "minOutputAmount", Type: "uint256"},
				{Name: "feeBps", Type: "uint256"},
				{Name: "feeRecipient", Type: "address"},
				{Name: "deadline", Type: "uint256"},
				{Name: "salt", Type: "uint256"},
			},
		},
		PrimaryType: "SwapOrder",
		Domain: apitypes.TypedDataDomain{
			Name:    "SwapCore",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(h.chainID),
		},
		Message: apitypes.TypedDataMessage{
			"inputAsset":      quote.InputAsset,
			"outputAsset":     quote.OutputAsset,
			"inputAmount":     quote.InputAmount.BigInt().String(),
			"minOutputAmount": quote.MinOutputAmount.BigInt().String(),
			"feeBps":          fmt.Sprintf("%d", quote.FeeBps),
			"feeRecipient":    quote.FeeRecipient,
			"deadline":        fmt.Sprintf("%d", quote.ExpiresAt.Unix()),
			"salt":            salt.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// EIP-712 hash: keccak256("\x19\x01" + domainSeparator + messageHash)
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, messageHash...)
	return crypto.Keccak256(rawData), nil
}

func randomSalt() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, max)
}
