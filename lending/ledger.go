package lending

// =============================================================================
// LEDGER - Append-only record of loans and consultations
// =============================================================================

// Record is implemented by *LoanRecord and *ConsultationRecord.
type Record interface {
	RecordID() string
	IsOpen() bool
}

// Ledger keeps records in creation order. Records are added only by the
// engine's open operations and never removed; closing or renewing mutates
// them in place.
type Ledger[R Record] struct {
	seq   sequence
	order []R
	byID  map[string]R
}

func newLedger[R Record](prefix string) *Ledger[R] {
	return &Ledger[R]{seq: sequence{prefix: prefix}, byID: make(map[string]R)}
}

func (l *Ledger[R]) nextID() string { return l.seq.next() }

func (l *Ledger[R]) append(r R) {
	l.order = append(l.order, r)
	l.byID[r.RecordID()] = r
}

func (l *Ledger[R]) Get(id string) (R, bool) {
	r, ok := l.byID[id]
	return r, ok
}

// All returns every record, oldest first.
func (l *Ledger[R]) All() []R {
	return append([]R(nil), l.order...)
}

// Open returns the records not yet closed, oldest first.
func (l *Ledger[R]) Open() []R {
	var out []R
	for _, r := range l.order {
		if r.IsOpen() {
			out = append(out, r)
		}
	}
	return out
}

func (l *Ledger[R]) Len() int { return len(l.order) }

// =============================================================================
// RECORDS
// =============================================================================

// LoanRecord is one take-home loan. ReturnedDate is zero while open.
type LoanRecord struct {
	ID               string
	HolderNationalID string
	MemberNumber     string
	Resource         ResourceRef
	RequestDate      Date
	RequestTime      ClockTime
	DueDate          Date
	ReturnedDate     Date
	RenewalCount     int
}

func (r *LoanRecord) RecordID() string { return r.ID }
func (r *LoanRecord) IsOpen() bool     { return r.ReturnedDate.IsZero() }

// Overdue reports whether the loan is, or was returned, past its due date.
// Open loans are judged against today.
func (r *LoanRecord) Overdue(today Date) bool {
	return r.DaysLate(today) > 0
}

// DaysLate is the number of days past due: at return for a closed loan,
// at today for an open one. Never negative.
func (r *LoanRecord) DaysLate(today Date) int {
	end := today
	if !r.IsOpen() {
		end = r.ReturnedDate
	}
	if n := r.DueDate.DaysUntil(end); n > 0 {
		return n
	}
	return 0
}

// ConsultationRecord is one on-premises consultation. ClosedTime is zero
// while open.
type ConsultationRecord struct {
	ID               string
	HolderNationalID string
	Resource         ResourceRef
	RequestDate      Date
	RequestTime      ClockTime
	ClosedTime       ClockTime
}

func (r *ConsultationRecord) RecordID() string { return r.ID }
func (r *ConsultationRecord) IsOpen() bool     { return r.ClosedTime.IsZero() }
