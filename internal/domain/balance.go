package domain

// BalanceEntry is one account's balance in a token, as returned by
// holder listings. Zero balances are not listed; the balance map
// treats absent and zero identically.
type BalanceEntry struct {
	Account AccountID `json:"account"`
	Amount  Amount    `json:"amount"`
}
