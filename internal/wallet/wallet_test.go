package wallet

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/betbot/swapcore/internal/domain"
	"github.com/betbot/swapcore/pkg/secretstore"
)

// 公开的本地链测试助记词（Hardhat 默认），m/44'/60'/0'/0/0 派生地址固定
const (
	testMnemonic = "test test test test test test test test test test test junk"
	testAddress  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := secretstore.Open(secretstore.OpenOptions{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("secretstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, "", 137)
}

func TestStoreMnemonicRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	if err := svc.StoreMnemonic("not a mnemonic", "pw12345678"); err == nil {
		t.Fatal("非法助记词应被拒绝")
	}
}

func TestResolveWithWrongCredential(t *testing.T) {
	svc := newTestService(t)
	if err := svc.StoreMnemonic(testMnemonic, "correct-password"); err != nil {
		t.Fatalf("StoreMnemonic: %v", err)
	}

	_, err := svc.ResolveSigningCapability(context.Background(), "u1", "wrong-password")
	if err == nil {
		t.Fatal("错误凭证应被拒绝")
	}
}

func TestResolveWithoutStoredMaterial(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ResolveSigningCapability(context.Background(), "u1", "pw"); err == nil {
		t.Fatal("没有钱包材料时应报错")
	}
}

func TestResolveAndSign(t *testing.T) {
	svc := newTestService(t)
	if err := svc.StoreMnemonic(testMnemonic, "correct-password"); err != nil {
		t.Fatalf("StoreMnemonic: %v", err)
	}

	handle, err := svc.ResolveSigningCapability(context.Background(), "u1", "correct-password")
	if err != nil {
		t.Fatalf("ResolveSigningCapability: %v", err)
	}
	if !strings.EqualFold(handle.Address(), testAddress) {
		t.Fatalf("派生地址不符: want=%s got=%s", testAddress, handle.Address())
	}

	quote := &domain.SwapQuote{
		InputAsset:      "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		OutputAsset:     "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619",
		InputAmount:     decimal.NewFromInt(100),
		MinOutputAmount: decimal.NewFromFloat(0.05),
		FeeBps:          30,
		FeeRecipient:    "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Mode:            domain.ExecutionModeGasless,
		ExpiresAt:       time.Now().Add(time.Minute).Truncate(time.Second),
	}

	order, err := handle.SignSwapOrder(quote)
	if err != nil {
		t.Fatalf("SignSwapOrder: %v", err)
	}
	if !strings.HasPrefix(order.Signature, "0x") || len(order.Signature) != 132 {
		t.Fatalf("签名格式不符: %q", order.Signature)
	}

	// 用同一 salt 重建 digest，恢复出的签名人应等于派生地址
	h := handle.(*signingHandle)
	salt, ok := new(big.Int).SetString(order.Salt, 10)
	if !ok {
		t.Fatalf("salt 非十进制: %q", order.Salt)
	}
	digest, err := h.swapOrderDigest(quote, salt)
	if err != nil {
		t.Fatalf("swapOrderDigest: %v", err)
	}

	sig := common.FromHex(order.Signature)
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); !strings.EqualFold(recovered.Hex(), testAddress) {
		t.Fatalf("签名人恢复不符: want=%s got=%s", testAddress, recovered.Hex())
	}
}
