package txn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	reasonDecode = "decode"
	reasonAction = "action"
	reasonAmount = "amount"
	reasonPrice  = "price"
	reasonTime   = "timestamp"
)

var (
	// ErrMalformedInput is returned when the input is not a JSON array of records.
	ErrMalformedInput = errors.New("input is not a sequence of transaction records")

	validate = newValidator()
)

// LoadResult is the outcome of loading a batch of raw records.
type LoadResult struct {
	Transactions []*Transaction `json:"-" yaml:"-"`
	Total        int            `json:"total" yaml:"total"`
	Loaded       int            `json:"loaded" yaml:"loaded"`
	Skipped      int            `json:"skipped" yaml:"skipped"`
	SkipReasons  map[string]int `json:"skip_reasons,omitempty" yaml:"skipReasons,omitempty"`
}

func (r *LoadResult) skip(index int, reason string, err error) {
	r.Skipped++
	r.SkipReasons[reason]++
	slog.Debug("skipping record", "index", index, "reason", reason, "error", err)
}

// rawString accepts both JSON strings and JSON numbers.
type rawString string

func (s *rawString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = rawString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = rawString(n.String())
	return nil
}

type rawActionData struct {
	Amount      rawString `json:"amount" validate:"required,decimal"`
	AssetSymbol string    `json:"assetSymbol" validate:"required"`
	PriceUSD    rawString `json:"assetPriceUSD" validate:"omitempty,decimal"`
}

type rawRecord struct {
	UserWallet string         `json:"userWallet" validate:"required"`
	Action     string         `json:"action" validate:"required,action"`
	Timestamp  rawString      `json:"timestamp" validate:"required,decimal"`
	ActionData *rawActionData `json:"actionData" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		_, ok := ParseAction(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
	// accepts exponent notation such as 3.35e-06
	if err := v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// LoadFile reads and loads transaction records from a JSON file.
func LoadFile(path string) (*LoadResult, error) {
	if path == "" {
		return nil, errors.New("input path required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening input file %s: %w", path, err)
	}
	defer f.Close()

	res, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	return res, nil
}

// Load parses a JSON array of raw records. Records that fail validation are
// skipped and counted; only an input that is not an array is an error.
func Load(r io.Reader) (*LoadResult, error) {
	if r == nil {
		return nil, errors.New("reader required")
	}

	dec := json.NewDecoder(r)
	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: null input", ErrMalformedInput)
	}
	if tok, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("%w: after array: %v", ErrMalformedInput, err)
		}
		return nil, fmt.Errorf("%w: unexpected %v after array", ErrMalformedInput, tok)
	}

	res := &LoadResult{
		Transactions: make([]*Transaction, 0, len(items)),
		Total:        len(items),
		SkipReasons:  make(map[string]int),
	}

	for i, item := range items {
		var rec rawRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			res.skip(i, reasonDecode, err)
			continue
		}

		t, reason, err := toTransaction(&rec)
		if err != nil {
			res.skip(i, reason, err)
			continue
		}
		res.Transactions = append(res.Transactions, t)
	}

	res.Loaded = len(res.Transactions)
	if res.Skipped > 0 {
		slog.Warn("skipped invalid records", "skipped", res.Skipped, "total", res.Total)
	}
	slog.Debug("records loaded", "loaded", res.Loaded, "total", res.Total)

	return res, nil
}

// toTransaction validates a raw record and converts it. On failure it returns
// the reason under which the skip is counted.
func toTransaction(rec *rawRecord) (*Transaction, string, error) {
	rec.UserWallet = strings.TrimSpace(rec.UserWallet)
	if rec.ActionData != nil {
		rec.ActionData.AssetSymbol = strings.TrimSpace(rec.ActionData.AssetSymbol)
	}

	if err := validate.Struct(rec); err != nil {
		return nil, validationReason(err), err
	}

	action, _ := ParseAction(rec.Action)

	ts, err := decimal.NewFromString(string(rec.Timestamp))
	if err != nil {
		return nil, reasonTime, fmt.Errorf("invalid timestamp %q: %w", rec.Timestamp, err)
	}
	sec := ts.IntPart()

	amount, err := decimal.NewFromString(string(rec.ActionData.Amount))
	if err != nil {
		return nil, reasonAmount, fmt.Errorf("invalid amount %q: %w", rec.ActionData.Amount, err)
	}

	price := decimal.Zero
	if rec.ActionData.PriceUSD != "" {
		if price, err = decimal.NewFromString(string(rec.ActionData.PriceUSD)); err != nil {
			return nil, reasonPrice, fmt.Errorf("invalid price %q: %w", rec.ActionData.PriceUSD, err)
		}
	}

	return &Transaction{
		Wallet:    rec.UserWallet,
		Action:    action,
		Timestamp: sec,
		Amount:    amount,
		Asset:     rec.ActionData.AssetSymbol,
		PriceUSD:  price,
	}, "", nil
}

// validationReason names the first failing field, e.g. "userWallet".
func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Tag() == reasonAction {
			return reasonAction
		}
		return verrs[0].Field()
	}
	return reasonDecode
}
