package types

import (
	"github.com/shopspring/decimal"
)

// Account is a billing account in the portal, identified by a company and
// account id pair.
type Account struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Number    string `json:"number"`
	Address   string `json:"address,omitempty"`

	// Balance is the amount owed (debt) or credited (overpayment) as reported
	// by the portal. The detail fields stay null until a detail fetch.
	Balance decimal.NullDecimal `json:"balance"`
	Charged decimal.NullDecimal `json:"charged"`
	Area    decimal.NullDecimal `json:"area"`
}

// Code identifies the account across refreshes.
func (a *Account) Code() string {
	return a.CompanyID + "_" + a.ID
}

// AccountDetail holds the values parsed from an account's detail rows. The
// Has* flags record which rows were present: a present row whose value
// couldn't be parsed leaves its field null with the flag set.
type AccountDetail struct {
	Balance decimal.NullDecimal `json:"balance"`
	Charged decimal.NullDecimal `json:"charged"`
	Area    decimal.NullDecimal `json:"area"`

	HasBalance bool `json:"-"`
	HasCharged bool `json:"-"`
	HasArea    bool `json:"-"`
}

// ApplyDetail sets every field whose row was present in d, to null when the
// value didn't parse. Fields without a row keep their current value.
func (a *Account) ApplyDetail(d AccountDetail) {
	if d.HasBalance {
		a.Balance = d.Balance
	}
	if d.HasCharged {
		a.Charged = d.Charged
	}
	if d.HasArea {
		a.Area = d.Area
	}
}

// CarryDetail fills the detail fields that are still null on a from prev.
func (a *Account) CarryDetail(prev *Account) {
	if prev == nil {
		return
	}
	if !a.Balance.Valid {
		a.Balance = prev.Balance
	}
	if !a.Charged.Valid {
		a.Charged = prev.Charged
	}
	if !a.Area.Valid {
		a.Area = prev.Area
	}
}
