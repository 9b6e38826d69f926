package lending

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Per-resource unit counts
// =============================================================================

// ResourceStatus counts the units of one resource by activity.
// Utilization is the busy share of units, rounded to two places.
type ResourceStatus struct {
	ID             string
	Kind           Kind
	Label          string
	Total          int
	Free           int
	OnLoan         int
	OnConsultation int
	Utilization    decimal.Decimal
}

// CatalogStatus is the status of every resource plus the totals.
type CatalogStatus struct {
	Resources []ResourceStatus
	Totals    ResourceStatus
}

func StatusOf(r Resource) ResourceStatus {
	s := ResourceStatus{ID: r.ID(), Kind: r.Kind(), Label: r.Label()}
	for _, u := range r.units() {
		s.count(u.Activity)
	}
	s.Utilization = utilization(s.Total, s.Free)
	return s
}

func (s *ResourceStatus) count(a Activity) {
	s.Total++
	switch a {
	case ActivityFree:
		s.Free++
	case ActivityOnLoan:
		s.OnLoan++
	case ActivityOnConsultation:
		s.OnConsultation++
	}
}

func utilization(total, free int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	busy := decimal.NewFromInt(int64(total - free))
	return busy.Div(decimal.NewFromInt(int64(total))).Round(2)
}

// Status reports every resource in List order.
func (e *Engine) Status(st *State) CatalogStatus {
	var out CatalogStatus
	_ = e.View(st, func(st *State) error {
		for _, r := range st.Catalog.List() {
			s := StatusOf(r)
			out.Resources = append(out.Resources, s)
			out.Totals.Total += s.Total
			out.Totals.Free += s.Free
			out.Totals.OnLoan += s.OnLoan
			out.Totals.OnConsultation += s.OnConsultation
		}
		return nil
	})
	out.Totals.Utilization = utilization(out.Totals.Total, out.Totals.Free)
	return out
}

// ResourceStatus reports a single resource.
func (e *Engine) ResourceStatus(st *State, id string) (ResourceStatus, error) {
	var out ResourceStatus
	err := e.View(st, func(st *State) error {
		r, err := st.Catalog.Get(id)
		if err != nil {
			return err
		}
		out = StatusOf(r)
		return nil
	})
	return out, err
}

// =============================================================================
// HOLDINGS - What a patron has out
// =============================================================================

type HeldLoan struct {
	LoanRecord
	Label        string
	DaysUntilDue int // negative once overdue
	Overdue      bool
}

type HeldConsultation struct {
	ConsultationRecord
	Label string
}

type Holdings struct {
	Patron       Person
	MemberNumber string // empty for casual users
	Loans        []HeldLoan
	Consultation *HeldConsultation
}

// Holdings lists the patron's open loans, in opening order, and open
// consultation, judged against the engine's today.
func (e *Engine) Holdings(st *State, nationalID string) (Holdings, error) {
	today := e.Today()
	var out Holdings
	err := e.View(st, func(st *State) error {
		p, err := st.Registry.FindByNationalID(nationalID)
		if err != nil {
			return err
		}
		out.Patron = p.Details()
		if m, ok := p.(*Member); ok {
			out.MemberNumber = m.MemberNumber
			for _, id := range m.OpenLoans {
				l, ok := st.Loans.Get(id)
				if !ok {
					continue
				}
				out.Loans = append(out.Loans, HeldLoan{
					LoanRecord:   *l,
					Label:        labelOf(st, l.Resource),
					DaysUntilDue: today.DaysUntil(l.DueDate),
					Overdue:      l.Overdue(today),
				})
			}
		}
		if id := p.ConsultationID(); id != "" {
			if c, ok := st.Consultations.Get(id); ok {
				out.Consultation = &HeldConsultation{ConsultationRecord: *c, Label: labelOf(st, c.Resource)}
			}
		}
		return nil
	})
	return out, err
}

func labelOf(st *State, ref ResourceRef) string {
	r, err := st.Catalog.Get(ref.ResourceID)
	if err != nil {
		return ""
	}
	return r.Label()
}

// =============================================================================
// LEDGER VIEWS
// =============================================================================

// OpenLoans lists every open loan, oldest first.
func (e *Engine) OpenLoans(st *State) []LoanRecord {
	var out []LoanRecord
	_ = e.View(st, func(st *State) error {
		for _, l := range st.Loans.Open() {
			out = append(out, *l)
		}
		return nil
	})
	return out
}

// OverdueLoans lists open loans whose due date is before today.
func (e *Engine) OverdueLoans(st *State, today Date) []LoanRecord {
	var out []LoanRecord
	for _, l := range e.OpenLoans(st) {
		if l.Overdue(today) {
			out = append(out, l)
		}
	}
	return out
}
