package session

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// PendingTransaction is a transfer before it goes to the signer. It is built
// fresh for every send and never reused.
type PendingTransaction struct {
	FeePayer        solana.PublicKey
	RecentBlockhash solana.Hash
	Instructions    []solana.Instruction
}

func newTransfer(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) PendingTransaction {
	return PendingTransaction{
		FeePayer:        from,
		RecentBlockhash: blockhash,
		Instructions: []solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
	}
}

// Build assembles the ledger transaction. The fee payer must be identity,
// the account the signer authorized.
func (p PendingTransaction) Build(identity solana.PublicKey) (*solana.Transaction, error) {
	if p.FeePayer.IsZero() || !p.FeePayer.Equals(identity) {
		return nil, fmt.Errorf("fee payer %s is not the session identity %s", p.FeePayer, identity)
	}
	if len(p.Instructions) == 0 {
		return nil, fmt.Errorf("transaction has no instructions")
	}
	if p.RecentBlockhash.IsZero() {
		return nil, fmt.Errorf("transaction has no recent blockhash")
	}

	tx, err := solana.NewTransaction(p.Instructions, p.RecentBlockhash, solana.TransactionPayer(p.FeePayer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}
