package lending

import "fmt"

// Policy carries the lending rules. DefaultPolicy reproduces the library's
// standing rules; deployments may tune them through configuration.
type Policy struct {
	LoanDays          int // due date offset for new loans and book renewals
	MaxOpenLoans      int
	MaxRenewals       int
	RenewalWindowDays int // renewal opens this many days before the due date
	MovieRenewalDays  int // a renewed movie is due this many days from today

	// AllowWindowOverride lets an operator renew before the window opens
	// by passing RenewOptions.OverrideWindow.
	AllowWindowOverride bool
}

func DefaultPolicy() Policy {
	return Policy{
		LoanDays:            7,
		MaxOpenLoans:        3,
		MaxRenewals:         3,
		RenewalWindowDays:   3,
		MovieRenewalDays:    2,
		AllowWindowOverride: true,
	}
}

func (p Policy) Validate() error {
	check := func(field string, v, min int) error {
		if v < min {
			return &InputError{Field: field, Value: fmt.Sprint(v), Reason: fmt.Sprintf("must be at least %d", min)}
		}
		return nil
	}
	for _, c := range []struct {
		field string
		v     int
		min   int
	}{
		{"loan_days", p.LoanDays, 1},
		{"max_open_loans", p.MaxOpenLoans, 1},
		{"max_renewals", p.MaxRenewals, 0},
		{"renewal_window_days", p.RenewalWindowDays, 0},
		{"movie_renewal_days", p.MovieRenewalDays, 1},
	} {
		if err := check(c.field, c.v, c.min); err != nil {
			return err
		}
	}
	return nil
}
