package model

// UserBalance tracks a user's prepaid funds. The non-negative invariant is
// enforced here and again by the storage layer's compare-and-swap on
// Version, so no interleaving of concurrent debits can drive the balance
// below zero.
//
// Fields:
//  UserID         – owner of the balance.
//  CurrentBalance – spendable amount, never negative.
//  TotalCharged   – lifetime sum of top-ups.
//  TotalUsed      – lifetime sum of debits.
//  Version        – optimistic concurrency guard.
type UserBalance struct {
    UserID         uint64 // user_balances.user_id
    CurrentBalance int64  // user_balances.current_balance
    TotalCharged   int64  // user_balances.total_charged
    TotalUsed      int64  // user_balances.total_used
    Version        uint64 // user_balances.version
}

// Charge adds funds to the balance. Non-positive amounts are rejected.
func (b *UserBalance) Charge(amount int64) error {
    if amount <= 0 {
        return ErrValidation
    }
    b.CurrentBalance += amount
    b.TotalCharged += amount
    return nil
}

// Debit removes funds from the balance. A debit that would leave the
// balance negative fails with ErrInsufficientFunds and changes nothing.
func (b *UserBalance) Debit(amount int64) error {
    if amount <= 0 {
        return ErrValidation
    }
    if b.CurrentBalance < amount {
        return ErrInsufficientFunds
    }
    b.CurrentBalance -= amount
    b.TotalUsed += amount
    return nil
}
