package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atmx/settlement-engine/internal/model"
)

var (
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	book  = common.HexToAddress("0x000000000000000000000000000000000000b00c")
)

func n(v int64) *big.Int { return big.NewInt(v) }

func newFunded(t *testing.T) *Memory {
	t.Helper()
	l := NewMemory()
	if err := l.Mint(usdc, alice, n(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return l
}

func TestTransfer(t *testing.T) {
	l := newFunded(t)
	if err := l.Transfer(usdc, alice, bob, n(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := l.BalanceOf(usdc, alice); got.Cmp(n(600)) != 0 {
		t.Errorf("alice = %s, want 600", got)
	}
	if got := l.BalanceOf(usdc, bob); got.Cmp(n(400)) != 0 {
		t.Errorf("bob = %s, want 400", got)
	}
	if got := l.TotalSupply(usdc); got.Cmp(n(1000)) != 0 {
		t.Errorf("supply = %s, want 1000", got)
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := newFunded(t)
	err := l.Transfer(usdc, alice, bob, n(1001))
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !errors.Is(err, model.ErrCustody) {
		t.Error("insufficient balance should be a custody error")
	}
	if got := l.BalanceOf(usdc, alice); got.Cmp(n(1000)) != 0 {
		t.Errorf("failed transfer moved funds: alice = %s", got)
	}
}

func TestTransfer_InvalidAmount(t *testing.T) {
	l := newFunded(t)
	if err := l.Transfer(usdc, alice, bob, n(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := l.Mint(usdc, alice, huge); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("2^256: expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFrom_Allowance(t *testing.T) {
	l := newFunded(t)

	err := l.TransferFrom(usdc, book, alice, bob, n(100))
	if !errors.Is(err, model.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := l.Approve(usdc, alice, book, n(150)); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(usdc, book, alice, bob, n(100)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := l.Allowance(usdc, alice, book); got.Cmp(n(50)) != 0 {
		t.Errorf("allowance = %s, want 50", got)
	}
	if err := l.TransferFrom(usdc, book, alice, bob, n(51)); !errors.Is(err, model.ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestTransferFrom_InsufficientBalanceKeepsAllowance(t *testing.T) {
	l := newFunded(t)
	if err := l.Approve(usdc, alice, book, n(5000)); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(usdc, book, alice, bob, n(2000)); !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.Allowance(usdc, alice, book); got.Cmp(n(5000)) != 0 {
		t.Errorf("allowance changed on failure: %s", got)
	}
}

func TestTransferFrom_UnlimitedAllowance(t *testing.T) {
	l := newFunded(t)
	unlimited := maxU256.ToBig()
	if err := l.Approve(usdc, alice, book, unlimited); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(usdc, book, alice, bob, n(700)); err != nil {
		t.Fatal(err)
	}
	if got := l.Allowance(usdc, alice, book); got.Cmp(unlimited) != 0 {
		t.Errorf("unlimited allowance decreased to %s", got)
	}
}

func TestAtomic_RevertsOnError(t *testing.T) {
	l := newFunded(t)
	if err := l.Approve(usdc, alice, book, n(500)); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := l.Atomic(func(tx Ledger) error {
		if err := tx.TransferFrom(usdc, book, alice, book, n(300)); err != nil {
			return err
		}
		if err := tx.Transfer(usdc, book, bob, n(300)); err != nil {
			return err
		}
		if got := tx.BalanceOf(usdc, bob); got.Cmp(n(300)) != 0 {
			t.Errorf("inside tx bob = %s, want 300", got)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	for who, want := range map[common.Address]int64{alice: 1000, bob: 0, book: 0} {
		if got := l.BalanceOf(usdc, who); got.Cmp(n(want)) != 0 {
			t.Errorf("%s = %s after revert, want %d", who.Hex(), got, want)
		}
	}
	if got := l.Allowance(usdc, alice, book); got.Cmp(n(500)) != 0 {
		t.Errorf("allowance = %s after revert, want 500", got)
	}
}

func TestAtomic_Commits(t *testing.T) {
	l := newFunded(t)
	err := l.Atomic(func(tx Ledger) error {
		return tx.Transfer(usdc, alice, bob, n(10))
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := l.BalanceOf(usdc, bob); got.Cmp(n(10)) != 0 {
		t.Errorf("bob = %s, want 10", got)
	}
}

func TestTx_PartialRevert(t *testing.T) {
	l := newFunded(t)
	_ = l.Atomic(func(v Ledger) error {
		tx := v.(*Tx)
		_ = tx.Transfer(usdc, alice, bob, n(1))
		snap := tx.Snapshot()
		_ = tx.Transfer(usdc, alice, bob, n(2))
		tx.RevertToSnapshot(snap)
		return nil
	})
	if got := l.BalanceOf(usdc, bob); got.Cmp(n(1)) != 0 {
		t.Errorf("bob = %s, want 1", got)
	}
}

func TestBalances(t *testing.T) {
	l := newFunded(t)
	weth := common.HexToAddress("0x00000000000000000000000000000000000000e7")
	_ = l.Mint(weth, alice, n(3))
	got := l.Balances(alice)
	if len(got) != 2 || got[weth].Cmp(n(3)) != 0 || got[usdc].Cmp(n(1000)) != 0 {
		t.Errorf("Balances = %v", got)
	}
	if len(l.Balances(bob)) != 0 {
		t.Error("bob should hold nothing")
	}
}
