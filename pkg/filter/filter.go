// Package filter selects scored wallets with CEL boolean expressions.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/mchmarny/walletscore/pkg/score"
)

var (
	// ErrInvalidExpression is returned when an expression does not compile
	// to a boolean.
	ErrInvalidExpression = errors.New("invalid filter expression")
)

// Filter is a compiled wallet selection expression.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type checks expr. Available variables:
//
//	address, category            string
//	score, volume, repayment,
//	diversity, consistency, risk,
//	maturity, volume_usd,
//	net_balance_usd              double
//	transactions, liquidations,
//	assets                       int
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	env, err := cel.NewEnv(
		cel.Variable("address", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("volume", cel.DoubleType),
		cel.Variable("repayment", cel.DoubleType),
		cel.Variable("diversity", cel.DoubleType),
		cel.Variable("consistency", cel.DoubleType),
		cel.Variable("risk", cel.DoubleType),
		cel.Variable("maturity", cel.DoubleType),
		cel.Variable("volume_usd", cel.DoubleType),
		cel.Variable("net_balance_usd", cel.DoubleType),
		cel.Variable("transactions", cel.IntType),
		cel.Variable("liquidations", cel.IntType),
		cel.Variable("assets", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q must evaluate to bool, got %s",
			ErrInvalidExpression, expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for %q: %w", expr, err)
	}

	return &Filter{expr: expr, program: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Match reports whether the wallet satisfies the expression.
func (f *Filter) Match(ws *score.WalletScore) (bool, error) {
	if ws == nil {
		return false, nil
	}

	out, _, err := f.program.Eval(activation(ws))
	if err != nil {
		return false, fmt.Errorf("error evaluating %q for %s: %w", f.expr, ws.Address, err)
	}

	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrInvalidExpression, f.expr, out.Value())
	}
	return v, nil
}

// Apply returns the wallets that match, in their original order.
func (f *Filter) Apply(list []*score.WalletScore) ([]*score.WalletScore, error) {
	out := make([]*score.WalletScore, 0, len(list))
	for _, ws := range list {
		ok, err := f.Match(ws)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ws)
		}
	}
	return out, nil
}

func activation(ws *score.WalletScore) map[string]any {
	return map[string]any{
		"address":         ws.Address,
		"category":        string(ws.Category),
		"score":           ws.Score,
		"volume":          ws.Components.Volume,
		"repayment":       ws.Components.Repayment,
		"diversity":       ws.Components.Diversity,
		"consistency":     ws.Components.Consistency,
		"risk":            ws.Components.Risk,
		"maturity":        ws.Components.Maturity,
		"volume_usd":      ws.Stats.VolumeUSD,
		"net_balance_usd": ws.Stats.NetBalance,
		"transactions":    int64(ws.Stats.Transactions),
		"liquidations":    int64(ws.Stats.Liquidations),
		"assets":          int64(ws.Stats.Assets),
	}
}
