package ledger

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/atmx/settlement-engine/internal/model"
)

// journalEntry remembers the value a balance or allowance slot held before a
// write. Exactly one of balance and allowance is set.
type journalEntry struct {
	balance   *uint256.Int
	allowance *uint256.Int
	prev      uint256.Int
}

func (e journalEntry) revert() {
	switch {
	case e.balance != nil:
		e.balance.Set(&e.prev)
	case e.allowance != nil:
		e.allowance.Set(&e.prev)
	}
}

// Tx is the ledger view handed to Atomic callbacks. It must not be retained
// after the callback returns.
type Tx struct {
	m       *Memory
	journal []journalEntry
}

// Snapshot returns an identifier for the current state of the view.
func (tx *Tx) Snapshot() int {
	return len(tx.journal)
}

// RevertToSnapshot undoes every write made since Snapshot returned id.
func (tx *Tx) RevertToSnapshot(id int) {
	for i := len(tx.journal) - 1; i >= id; i-- {
		tx.journal[i].revert()
	}
	tx.journal = tx.journal[:id]
}

func (tx *Tx) BalanceOf(tok, owner model.Address) *big.Int {
	return tx.m.token(tok).balance(owner).ToBig()
}

func (tx *Tx) Transfer(tok, from, to model.Address, amount *big.Int) error {
	return tx.m.transfer(tok, from, to, amount)
}

func (tx *Tx) TransferFrom(tok, spender, from, to model.Address, amount *big.Int) error {
	return tx.m.transferFrom(tok, spender, from, to, amount)
}
