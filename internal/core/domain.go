package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Date is a calendar date without a time component. It marshals to the
	// provider's YYYY-MM-DD wire format.
	Date struct {
		time.Time
	}

	// Transaction is one provider-reported transaction. The sign convention
	// follows the provider: positive amounts are money leaving the account,
	// negative amounts are money coming in.
	Transaction struct {
		ID           string          `json:"transaction_id"`
		AccountID    string          `json:"account_id"`
		Amount       decimal.Decimal `json:"amount"`
		Date         Date            `json:"date"`
		Category     []string        `json:"category,omitempty"`
		MerchantName *string         `json:"merchant_name,omitempty"`
		Pending      bool            `json:"pending"`
	}

	// Category is immutable reference data from the provider's taxonomy.
	Category struct {
		ID        string   `json:"category_id"`
		Group     string   `json:"group"`
		Hierarchy []string `json:"hierarchy"`
	}

	// Budget is a user-defined spending cap for one category node.
	// A budget is uniquely identified by (UserID, CategoryID).
	Budget struct {
		UserID     string          `json:"user_id"`
		CategoryID string          `json:"category_id"`
		Max        decimal.Decimal `json:"max"`
	}

	// BudgetKey is the explicit identity of a budget. Budgets are always
	// tracked by this key, never by struct equality.
	BudgetKey struct {
		UserID     string
		CategoryID string
	}

	// SyncCursor tracks how far one linked item's change stream has been
	// applied. An empty Cursor means the next sync starts from the beginning.
	SyncCursor struct {
		ItemKey   string `json:"item_key"`
		Cursor    string `json:"cursor,omitempty"`
		Exhausted bool   `json:"exhausted"`
	}

	// LinkedItem is one bank connection with its resolved access credential.
	// The linking flow that produces the credential lives outside this service.
	LinkedItem struct {
		ItemKey     string `json:"item_key"`
		UserID      string `json:"user_id"`
		AccessToken string `json:"access_token"`
	}

	// BudgetSpend pairs a budget with the spending claimed by it.
	BudgetSpend struct {
		Budget Budget          `json:"budget"`
		Spent  decimal.Decimal `json:"spent"`
	}

	// AggregationResult splits a transaction set into budgeted spending and
	// the residual income/spending groups keyed by top-level category.
	// It is derived data, recomputed on every request.
	AggregationResult struct {
		OtherIncome      map[string]decimal.Decimal `json:"other_income"`
		BudgetedSpending []BudgetSpend              `json:"budgeted_spending"`
		OtherSpending    map[string]decimal.Decimal `json:"other_spending"`
	}

	// TransactionFilter narrows a stored-transaction listing.
	//
	// Only StartDate is pushed to the store, as a date >= bound. EndDate is
	// carried through for display state but is not applied as a store-level
	// predicate. Category is matched client side against the leaf element of
	// each transaction's category path, after the page has been fetched, so a
	// filtered page can show fewer than page-size rows even when later pages
	// still hold matches.
	TransactionFilter struct {
		StartDate *Date
		EndDate   *Date
		Category  string
	}
)

const dateLayout = "2006-01-02"

var (
	ErrEmptyTransactionID = errors.New("empty transaction id")
	ErrEmptyAccountID     = errors.New("empty account id")
	ErrEmptyItemKey       = errors.New("empty item key")
	ErrEmptyUserID        = errors.New("empty user id")
	ErrEmptyCategoryID    = errors.New("empty category id")
	ErrInvalidBudgetMax   = errors.New("budget max must be positive")
)

// NewDate creates a Date from year, month and day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the provider's YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTransactionID
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccountID
	}
	return nil
}

// Key returns the identity under which this budget is tracked.
func (b Budget) Key() BudgetKey {
	return BudgetKey{UserID: b.UserID, CategoryID: b.CategoryID}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategoryID
	}
	if !b.Max.IsPositive() {
		return ErrInvalidBudgetMax
	}
	return nil
}

func (i LinkedItem) Validate() error {
	if strings.TrimSpace(i.ItemKey) == "" {
		return ErrEmptyItemKey
	}
	if strings.TrimSpace(i.UserID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

// NewAggregationResult returns an empty result with initialized maps.
func NewAggregationResult() AggregationResult {
	return AggregationResult{
		OtherIncome:      make(map[string]decimal.Decimal),
		BudgetedSpending: []BudgetSpend{},
		OtherSpending:    make(map[string]decimal.Decimal),
	}
}
