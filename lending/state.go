package lending

import (
	"errors"
	"fmt"
	"slices"
)

// State is the whole library: catalog, patrons and both ledgers. There is
// no package-level instance; callers hold a *State and pass it to every
// Engine operation.
type State struct {
	Catalog       *Catalog
	Registry      *Registry
	Loans         *Ledger[*LoanRecord]
	Consultations *Ledger[*ConsultationRecord]
}

// NewState returns an empty library whose registry checks national IDs
// with validate. A nil validate accepts every ID.
func NewState(validate IDValidator) *State {
	return &State{
		Catalog:       NewCatalog(),
		Registry:      NewRegistry(validate),
		Loans:         newLedger[*LoanRecord](PrefixLoan),
		Consultations: newLedger[*ConsultationRecord](PrefixConsultation),
	}
}

// Verify checks every cross-reference between units, patrons and open
// records:
//
//   - a unit is busy exactly when one open record points at it, with the
//     matching activity
//   - every open record's holder exists and lists the record
//   - every id a patron lists, once, is an open record held by that patron
//
// All violations are reported together.
func (s *State) Verify() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	holders := make(map[string]Activity)
	claim := func(ref ResourceRef, want Activity, recordID string) {
		key := ref.String()
		if _, dup := holders[key]; dup {
			fail("%s: unit %s already held by another open record", recordID, key)
			return
		}
		holders[key] = want
		r, err := s.Catalog.Get(ref.ResourceID)
		if err != nil {
			fail("%s: %v", recordID, err)
			return
		}
		got, err := ActivityOf(r, ref.Copy)
		if err != nil {
			fail("%s: %v", recordID, err)
			return
		}
		if got != want {
			fail("%s: unit %s is %s, want %s", recordID, key, got, want)
		}
	}

	for _, l := range s.Loans.Open() {
		claim(l.Resource, ActivityOnLoan, l.ID)
		m, err := s.Registry.FindMember(l.HolderNationalID)
		if err != nil {
			fail("%s: holder: %v", l.ID, err)
			continue
		}
		if !slices.Contains(m.OpenLoans, l.ID) {
			fail("%s: not listed by member %s", l.ID, m.MemberNumber)
		}
	}
	for _, c := range s.Consultations.Open() {
		claim(c.Resource, ActivityOnConsultation, c.ID)
		p, err := s.Registry.FindByNationalID(c.HolderNationalID)
		if err != nil {
			fail("%s: holder: %v", c.ID, err)
			continue
		}
		if p.ConsultationID() != c.ID {
			fail("%s: holder %s lists consultation %q", c.ID, c.HolderNationalID, p.ConsultationID())
		}
	}

	for _, r := range s.Catalog.List() {
		for _, u := range Units(r) {
			if u.Activity == ActivityFree {
				continue
			}
			key := ResourceRef{ResourceID: r.ID(), Copy: u.Selector}.String()
			if _, ok := holders[key]; !ok {
				fail("unit %s is %s with no open record", key, u.Activity)
			}
		}
	}

	for _, m := range s.Registry.Members() {
		seen := make(map[string]bool, len(m.OpenLoans))
		for _, id := range m.OpenLoans {
			if seen[id] {
				fail("member %s lists %s more than once", m.MemberNumber, id)
				continue
			}
			seen[id] = true
			l, ok := s.Loans.Get(id)
			if !ok || !l.IsOpen() || l.HolderNationalID != m.NationalID {
				fail("member %s lists %s which is not an open loan of theirs", m.MemberNumber, id)
			}
		}
		s.verifyConsultation(m, fail)
	}
	for _, u := range s.Registry.CasualUsers() {
		s.verifyConsultation(u, fail)
	}

	return errors.Join(errs...)
}

func (s *State) verifyConsultation(p Patron, fail func(string, ...any)) {
	id := p.ConsultationID()
	if id == "" {
		return
	}
	c, ok := s.Consultations.Get(id)
	if !ok || !c.IsOpen() || c.HolderNationalID != p.Details().NationalID {
		fail("patron %s lists %s which is not an open consultation of theirs", p.Details().NationalID, id)
	}
}

// VerifyPolicy runs Verify and also checks the quota and renewal limits
// of p.
func (s *State) VerifyPolicy(p Policy) error {
	errs := []error{s.Verify()}
	for _, m := range s.Registry.Members() {
		if len(m.OpenLoans) > p.MaxOpenLoans {
			errs = append(errs, fmt.Errorf("member %s holds %d loans, limit %d", m.MemberNumber, len(m.OpenLoans), p.MaxOpenLoans))
		}
	}
	for _, l := range s.Loans.All() {
		if l.RenewalCount > p.MaxRenewals {
			errs = append(errs, fmt.Errorf("%s renewed %d times, limit %d", l.ID, l.RenewalCount, p.MaxRenewals))
		}
	}
	return errors.Join(errs...)
}
