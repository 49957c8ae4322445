// Package ledger provides the fungible-token collaborator the settlement
// engine moves value through, plus an in-memory implementation with a
// journal so a multi-step settlement can be undone as a whole.
package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/atmx/settlement-engine/internal/model"
)

// ErrInvalidAmount is returned for negative amounts or amounts that do not fit
// in 256 bits.
var ErrInvalidAmount = fmt.Errorf("%w: invalid token amount", model.ErrCustody)

// Ledger is the token surface the engine needs. Amounts are raw token units.
type Ledger interface {
	BalanceOf(token, owner model.Address) *big.Int
	Transfer(token, from, to model.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to model.Address, amount *big.Int) error
}

// Transactor runs fn against a ledger view whose writes are all kept when fn
// returns nil and all discarded otherwise.
type Transactor interface {
	Ledger
	Atomic(fn func(Ledger) error) error
}

type allowanceKey struct {
	owner, spender model.Address
}

type token struct {
	supply     uint256.Int
	balances   map[model.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// Memory is an in-memory multi-token ledger. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	tokens map[model.Address]*token
	tx     *Tx
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[model.Address]*token)}
}

func (m *Memory) token(addr model.Address) *token {
	t, ok := m.tokens[addr]
	if !ok {
		t = &token{
			balances:   make(map[model.Address]*uint256.Int),
			allowances: make(map[allowanceKey]*uint256.Int),
		}
		m.tokens[addr] = t
	}
	return t
}

// Mint credits amount of token to owner.
func (m *Memory) Mint(tok, to model.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.token(tok)
	bal := t.balance(to)
	if _, overflow := new(uint256.Int).AddOverflow(&t.supply, v); overflow {
		return fmt.Errorf("%w: supply overflow", ErrInvalidAmount)
	}
	t.supply.Add(&t.supply, v)
	bal.Add(bal, v)
	return nil
}

// Approve sets the amount spender may move out of owner's balance. The
// maximum uint256 value never decreases.
func (m *Memory) Approve(tok, owner, spender model.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token(tok).allowances[allowanceKey{owner, spender}] = v
	return nil
}

// Allowance returns what spender may still move out of owner's balance.
func (m *Memory) Allowance(tok, owner, spender model.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.token(tok).allowances[allowanceKey{owner, spender}]; ok {
		return a.ToBig()
	}
	return new(big.Int)
}

// TotalSupply returns the minted amount of tok.
func (m *Memory) TotalSupply(tok model.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token(tok).supply.ToBig()
}

// Balances returns every non-zero balance held by owner, keyed by token.
func (m *Memory) Balances(owner model.Address) map[model.Address]*big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[model.Address]*big.Int)
	for addr, t := range m.tokens {
		if b, ok := t.balances[owner]; ok && !b.IsZero() {
			out[addr] = b.ToBig()
		}
	}
	return out
}

func (m *Memory) BalanceOf(tok, owner model.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token(tok).balance(owner).ToBig()
}

func (m *Memory) Transfer(tok, from, to model.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfer(tok, from, to, amount)
}

func (m *Memory) TransferFrom(tok, spender, from, to model.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transferFrom(tok, spender, from, to, amount)
}

// Atomic holds the ledger for the duration of fn. Nothing else can observe
// intermediate balances, and a non-nil error from fn reverts every write made
// through the view.
func (m *Memory) Atomic(fn func(Ledger) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &Tx{m: m}
	m.tx = tx
	defer func() { m.tx = nil }()

	snap := tx.Snapshot()
	if err := fn(tx); err != nil {
		tx.RevertToSnapshot(snap)
		return err
	}
	return nil
}

func (m *Memory) transfer(tok, from, to model.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	t := m.token(tok)
	src := t.balance(from)
	if src.Lt(v) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			model.ErrInsufficientBalance, from.Hex(), src.Dec(), tok.Hex(), v.Dec())
	}
	if v.IsZero() || from == to {
		return nil
	}
	dst := t.balance(to)
	m.record(journalEntry{balance: src, prev: *src})
	m.record(journalEntry{balance: dst, prev: *dst})
	src.Sub(src, v)
	dst.Add(dst, v)
	return nil
}

func (m *Memory) transferFrom(tok, spender, from, to model.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return err
	}
	t := m.token(tok)
	key := allowanceKey{from, spender}
	if spender != from {
		allowed, ok := t.allowances[key]
		if !ok || allowed.Lt(v) {
			have := "0"
			if ok {
				have = allowed.Dec()
			}
			return fmt.Errorf("%w: %s may move %s of %s for %s, needs %s",
				model.ErrInsufficientAllowance, spender.Hex(), have, tok.Hex(), from.Hex(), v.Dec())
		}
		if err := m.transfer(tok, from, to, amount); err != nil {
			return err
		}
		if !isMax(allowed) && !v.IsZero() {
			m.record(journalEntry{allowance: allowed, prev: *allowed})
			allowed.Sub(allowed, v)
		}
		return nil
	}
	return m.transfer(tok, from, to, amount)
}

func (m *Memory) record(e journalEntry) {
	if m.tx != nil {
		m.tx.journal = append(m.tx.journal, e)
	}
}

func (t *token) balance(owner model.Address) *uint256.Int {
	b, ok := t.balances[owner]
	if !ok {
		b = new(uint256.Int)
		t.balances[owner] = b
	}
	return b
}

func toU256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

var maxU256 = new(uint256.Int).SetAllOne()

func isMax(v *uint256.Int) bool {
	return v.Eq(maxU256)
}
