package txn

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the normalized lending-protocol action of a transaction.
type Action string

const (
	ActionDeposit     Action = "deposit"
	ActionBorrow      Action = "borrow"
	ActionRepay       Action = "repay"
	ActionRedeem      Action = "redeem"
	ActionLiquidation Action = "liquidation"
)

// raw protocol names mapped to their normalized action
var actionAliases = map[string]Action{
	"deposit":          ActionDeposit,
	"borrow":           ActionBorrow,
	"repay":            ActionRepay,
	"redeem":           ActionRedeem,
	"redeemunderlying": ActionRedeem,
	"liquidation":      ActionLiquidation,
	"liquidationcall":  ActionLiquidation,
}

// ParseAction maps a raw action name to its Action.
// The second value is false for unknown names.
func ParseAction(s string) (Action, bool) {
	a, ok := actionAliases[strings.ToLower(strings.TrimSpace(s))]
	return a, ok
}

// Transaction is a single validated lending-protocol record.
type Transaction struct {
	Wallet    string          `json:"wallet_address" yaml:"walletAddress"`
	Action    Action          `json:"action" yaml:"action"`
	Timestamp int64           `json:"timestamp" yaml:"timestamp"`
	Amount    decimal.Decimal `json:"amount" yaml:"amount"`
	Asset     string          `json:"asset_symbol" yaml:"assetSymbol"`
	PriceUSD  decimal.Decimal `json:"asset_price_usd" yaml:"assetPriceUSD"`
}

// AmountUSD returns the USD value of the transaction given the number of
// token decimals the raw amount is denominated in.
func (t *Transaction) AmountUSD(tokenDecimals int32) decimal.Decimal {
	return t.Amount.Mul(t.PriceUSD).Shift(-tokenDecimals)
}
