/*
engine.go - The lending and consultation state machine

PURPOSE:
  Every change to the library goes through the Engine. It checks the
  lending rules, moves inventory units between Free, OnLoan and
  OnConsultation, appends to the ledgers and persists a snapshot.

TRANSACTIONS:
  Each operation runs inside transact:

    lock ─▶ pre-image ─▶ mutate ─▶ Gateway.Save ─▶ unlock
                            │             │
                            └──── error ──┴──▶ restore pre-image

  A failed Save rolls the in-memory state back, so memory never runs ahead
  of what was persisted. One mutex guards every transition; the library
  is a single logical actor and the HTTP surface is the only source of
  concurrency.

OPEN LOAN CHECKS (in order):
  1. holder is a member               ErrNotMember
  2. open loans < Policy.MaxOpenLoans ErrQuotaExceeded
  3. no open loan on the same title   ErrDuplicateHolding
  4. a free loanable unit exists      ErrNoCopyAvailable

RENEWAL CHECKS (in order):
  1. renewal_count < MaxRenewals          ErrRenewalLimitReached
  2. due date not passed                  ErrLoanOverdue
  3. due - today <= RenewalWindowDays     ErrRenewalWindowNotOpen
     (skipped with RenewOptions.OverrideWindow when the policy allows it)
  Books move the due date LoanDays forward; movies become due
  MovieRenewalDays from today.

EXAMPLE:
  eng, _ := lending.NewEngine(gw, lending.WithClock(clock))
  st, _ := eng.Open(ctx, identity.Valid)
  loan, err := eng.OpenLoan(ctx, st, "12345678Z", "L0000000001")

SEE ALSO:
  - resource.go: per-kind availability
  - report.go:   read-only views
*/
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/warp/lending-engine/log"
)

// Engine applies the lending rules to a *State and persists the result.
type Engine struct {
	mu      sync.Mutex
	gateway Gateway
	clock   Clock
	policy  Policy
}

// Option configures an Engine in NewEngine.
type Option func(e *Engine) error

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		e.clock = c
		return nil
	}
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) error {
		if err := p.Validate(); err != nil {
			return err
		}
		e.policy = p
		return nil
	}
}

func NewEngine(gw Gateway, opts ...Option) (*Engine, error) {
	if gw == nil {
		return nil, errors.New("gateway is nil")
	}
	e := &Engine{gateway: gw, clock: SystemClock, policy: DefaultPolicy()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) Policy() Policy { return e.policy }

// Today is the engine clock's current day.
func (e *Engine) Today() Date { return DateOf(e.clock.Now()) }

// Open loads the last snapshot into a new State. A missing snapshot and a
// corrupt one both yield an empty library; only gateway I/O failures are
// returned. An inconsistent snapshot is quarantined when the gateway
// supports it, and its id counters carry over so no id is issued twice.
func (e *Engine) Open(ctx context.Context, validate IDValidator) (*State, error) {
	snap, err := e.gateway.Load(ctx)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		log.Info(ctx, "no snapshot found, starting with an empty library")
		return NewState(validate), nil
	case errors.Is(err, ErrCorruptSnapshot):
		log.Error(ctx, "snapshot unreadable, starting with an empty library", log.Err("error", err))
		return NewState(validate), nil
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	st, err := FromSnapshot(snap, validate)
	if err != nil {
		log.Error(ctx, "snapshot inconsistent, starting with an empty library", log.Err("error", err))
		if q, ok := e.gateway.(Quarantiner); ok {
			moved, qerr := q.Quarantine(ctx)
			if qerr != nil {
				return nil, fmt.Errorf("quarantine inconsistent snapshot: %w", qerr)
			}
			log.Warn(ctx, "inconsistent snapshot set aside", slog.String("path", moved))
		}
		st = NewState(validate)
		st.carryCounters(snap)
		return st, nil
	}
	if err := st.VerifyPolicy(e.policy); err != nil {
		log.Warn(ctx, "snapshot exceeds current policy limits", log.Err("error", err))
	}
	log.Info(ctx, "snapshot loaded",
		slog.Time("saved_at", snap.SavedAt),
		slog.Int("resources", st.Catalog.Len()),
		slog.Int("patrons", st.Registry.Len()),
		slog.Int("loans", st.Loans.Len()),
		slog.Int("consultations", st.Consultations.Len()),
	)
	return st, nil
}

// View runs fn under the engine lock without persisting anything. Values
// read from st must be copied out before fn returns.
func (e *Engine) View(st *State, fn func(st *State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(st)
}

// transact runs fn and saves a snapshot. Any error from fn or from Save
// restores st to its state before the call. A refused operation that left
// st untouched is not restored, so records handed out earlier stay live.
func (e *Engine) transact(ctx context.Context, st *State, op string, fn func(now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pre := st.Snapshot()
	if err := fn(e.clock.Now()); err != nil {
		if !reflect.DeepEqual(pre, st.Snapshot()) {
			e.restore(ctx, st, pre, op)
		}
		return err
	}

	snap := st.Snapshot()
	snap.SavedAt = e.clock.Now()
	if err := e.gateway.Save(ctx, snap); err != nil {
		e.restore(ctx, st, pre, op)
		log.Error(ctx, "snapshot save failed, change rolled back", slog.String("op", op), log.Err("error", err))
		return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
	}
	return nil
}

func (e *Engine) restore(ctx context.Context, st *State, pre Snapshot, op string) {
	restored, err := FromSnapshot(pre, st.Registry.validate)
	if err != nil {
		log.Error(ctx, "cannot restore pre-image", slog.String("op", op), log.Err("error", err))
		return
	}
	*st = *restored
}

// Reset empties the library and persists the empty snapshot. Sequence
// counters restart as well.
func (e *Engine) Reset(ctx context.Context, st *State) error {
	err := e.transact(ctx, st, "reset", func(time.Time) error {
		*st = *NewState(st.Registry.validate)
		return nil
	})
	if err != nil {
		return err
	}
	log.Warn(ctx, "library reset")
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (e *Engine) AddBook(ctx context.Context, st *State, in BookInput) (*Book, error) {
	var b *Book
	err := e.transact(ctx, st, "add book", func(time.Time) error {
		var err error
		b, err = st.Catalog.AddBook(in)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "book added", slog.String("resource", b.ID()), slog.Int("copies", len(b.Copies)))
	return b, nil
}

func (e *Engine) AddMagazine(ctx context.Context, st *State, in MagazineInput) (*Magazine, error) {
	var m *Magazine
	err := e.transact(ctx, st, "add magazine", func(time.Time) error {
		var err error
		m, err = st.Catalog.AddMagazine(in)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "magazine added", slog.String("resource", m.ID()))
	return m, nil
}

func (e *Engine) AddMovie(ctx context.Context, st *State, in MovieInput) (*Movie, error) {
	var m *Movie
	err := e.transact(ctx, st, "add movie", func(time.Time) error {
		var err error
		m, err = st.Catalog.AddMovie(in)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "movie added", slog.String("resource", m.ID()), slog.Int("copies", m.CopyCount()))
	return m, nil
}

// AddCopiesToBook returns the sequence numbers of the new copies.
func (e *Engine) AddCopiesToBook(ctx context.Context, st *State, bookID string, n int) ([]int, error) {
	var seqs []int
	err := e.transact(ctx, st, "add copies", func(time.Time) error {
		added, err := st.Catalog.AddCopiesToBook(bookID, n)
		for _, c := range added {
			seqs = append(seqs, c.Sequence)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "copies added", slog.String("resource", bookID), slog.Any("sequences", seqs))
	return seqs, nil
}

func (e *Engine) SetMovieCopies(ctx context.Context, st *State, movieID string, hasLibrary, hasLoan bool) error {
	return e.transact(ctx, st, "set movie copies", func(time.Time) error {
		return st.Catalog.SetMovieCopies(movieID, hasLibrary, hasLoan)
	})
}

func (e *Engine) RemoveCopy(ctx context.Context, st *State, ref ResourceRef) error {
	err := e.transact(ctx, st, "remove copy", func(time.Time) error {
		return st.Catalog.RemoveCopy(ref)
	})
	if err == nil {
		log.Info(ctx, "copy removed", log.Stringer("unit", ref))
	}
	return err
}

func (e *Engine) RemoveResource(ctx context.Context, st *State, id string) error {
	err := e.transact(ctx, st, "remove resource", func(time.Time) error {
		return st.Catalog.RemoveResource(id)
	})
	if err == nil {
		log.Info(ctx, "resource removed", slog.String("resource", id))
	}
	return err
}

// =============================================================================
// REGISTRY
// =============================================================================

func (e *Engine) RegisterMember(ctx context.Context, st *State, p Person) (*Member, error) {
	var m *Member
	err := e.transact(ctx, st, "register member", func(time.Time) error {
		var err error
		m, err = st.Registry.RegisterMember(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "member registered", slog.String("member", m.MemberNumber))
	return m, nil
}

func (e *Engine) RegisterCasualUser(ctx context.Context, st *State, p Person) (*CasualUser, error) {
	var u *CasualUser
	err := e.transact(ctx, st, "register casual user", func(time.Time) error {
		var err error
		u, err = st.Registry.RegisterCasualUser(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "casual user registered", slog.String("national_id", u.NationalID))
	return u, nil
}

func (e *Engine) DeleteMember(ctx context.Context, st *State, nationalID string) error {
	return e.transact(ctx, st, "delete member", func(time.Time) error {
		return st.Registry.DeleteMember(nationalID)
	})
}

func (e *Engine) DeleteCasualUser(ctx context.Context, st *State, nationalID string) error {
	return e.transact(ctx, st, "delete casual user", func(time.Time) error {
		return st.Registry.DeleteCasualUser(nationalID)
	})
}

// =============================================================================
// LOANS & CONSULTATIONS
// =============================================================================

// OpenLoan lends the first free loanable unit of resourceID to a member.
func (e *Engine) OpenLoan(ctx context.Context, st *State, nationalID, resourceID string) (LoanRecord, error) {
	var out LoanRecord
	err := e.transact(ctx, st, "open loan", func(now time.Time) error {
		m, err := st.Registry.FindMember(nationalID)
		if err != nil {
			return err
		}
		res, err := st.Catalog.Get(resourceID)
		if err != nil {
			return err
		}
		if len(m.OpenLoans) >= e.policy.MaxOpenLoans {
			return &QuotaError{NationalID: m.NationalID, Open: len(m.OpenLoans), Limit: e.policy.MaxOpenLoans}
		}
		for _, id := range m.OpenLoans {
			if l, ok := st.Loans.Get(id); ok && l.Resource.ResourceID == res.ID() {
				return fmt.Errorf("%s already holds %s under %s: %w", m.MemberNumber, res.ID(), id, ErrDuplicateHolding)
			}
		}
		sel, err := res.freeUnit(PurposeLoan)
		if err != nil {
			return err
		}

		today := DateOf(now)
		rec := &LoanRecord{
			ID:               st.Loans.nextID(),
			HolderNationalID: m.NationalID,
			MemberNumber:     m.MemberNumber,
			Resource:         ResourceRef{ResourceID: res.ID(), Copy: sel},
			RequestDate:      today,
			RequestTime:      ClockOf(now),
			DueDate:          today.AddDays(e.policy.LoanDays),
		}
		if err := res.setActivity(sel, ActivityOnLoan); err != nil {
			return err
		}
		st.Loans.append(rec)
		m.OpenLoans = append(m.OpenLoans, rec.ID)
		out = *rec
		return nil
	})
	if err != nil {
		return LoanRecord{}, err
	}
	log.Info(ctx, "loan opened",
		slog.String("loan", out.ID),
		slog.String("member", out.MemberNumber),
		log.Stringer("unit", out.Resource),
		log.Stringer("due", out.DueDate),
	)
	return out, nil
}

// OpenConsultation gives a patron an on-premises unit of resourceID.
func (e *Engine) OpenConsultation(ctx context.Context, st *State, nationalID, resourceID string) (ConsultationRecord, error) {
	var out ConsultationRecord
	err := e.transact(ctx, st, "open consultation", func(now time.Time) error {
		p, err := st.Registry.FindByNationalID(nationalID)
		if err != nil {
			return err
		}
		if open := p.ConsultationID(); open != "" {
			return fmt.Errorf("%s holds %s: %w", p.Details().NationalID, open, ErrAlreadyConsulting)
		}
		res, err := st.Catalog.Get(resourceID)
		if err != nil {
			return err
		}
		sel, err := res.freeUnit(PurposeConsultation)
		if err != nil {
			return err
		}

		rec := &ConsultationRecord{
			ID:               st.Consultations.nextID(),
			HolderNationalID: p.Details().NationalID,
			Resource:         ResourceRef{ResourceID: res.ID(), Copy: sel},
			RequestDate:      DateOf(now),
			RequestTime:      ClockOf(now),
		}
		if err := res.setActivity(sel, ActivityOnConsultation); err != nil {
			return err
		}
		st.Consultations.append(rec)
		p.setConsultation(rec.ID)
		out = *rec
		return nil
	})
	if err != nil {
		return ConsultationRecord{}, err
	}
	log.Info(ctx, "consultation opened",
		slog.String("consultation", out.ID),
		slog.String("national_id", out.HolderNationalID),
		log.Stringer("unit", out.Resource),
	)
	return out, nil
}

// Receipt describes a closed holding.
type Receipt struct {
	Purpose  Purpose
	RecordID string
	Resource ResourceRef

	// Loans only.
	DueDate      Date
	ReturnedDate Date
	Overdue      bool
	DaysLate     int

	// Consultations only.
	ClosedTime ClockTime
}

// Return closes one holding of the patron. reference is a loan id, a
// consultation id, or the id of a resource the patron holds; a resource
// held both on loan and in consultation must be returned by record id.
func (e *Engine) Return(ctx context.Context, st *State, nationalID, reference string) (Receipt, error) {
	var out Receipt
	err := e.transact(ctx, st, "return", func(now time.Time) error {
		p, err := st.Registry.FindByNationalID(nationalID)
		if err != nil {
			return err
		}
		loan, con, err := resolveHolding(st, p, strings.TrimSpace(reference))
		if err != nil {
			return err
		}
		if loan != nil {
			m, ok := p.(*Member)
			if !ok {
				return fmt.Errorf("%s holds loan %s: %w", nationalID, loan.ID, ErrNotMember)
			}
			out, err = closeLoan(st, m, loan, DateOf(now))
		} else {
			out, err = closeConsultation(st, p, con, ClockOf(now))
		}
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	attrs := []slog.Attr{
		slog.String("record", out.RecordID),
		log.Stringer("unit", out.Resource),
	}
	if out.Purpose == PurposeLoan {
		attrs = append(attrs, slog.Bool("overdue", out.Overdue), slog.Int("days_late", out.DaysLate))
	}
	log.Info(ctx, "holding returned", attrs...)
	return out, nil
}

func resolveHolding(st *State, p Patron, ref string) (*LoanRecord, *ConsultationRecord, error) {
	holder := p.Details().NationalID

	if l, ok := st.Loans.Get(ref); ok {
		if l.HolderNationalID != holder {
			return nil, nil, &NotFoundError{What: "loan", Key: ref}
		}
		if !l.IsOpen() {
			return nil, nil, fmt.Errorf("loan %s returned on %s: %w", ref, l.ReturnedDate, ErrLoanClosed)
		}
		return l, nil, nil
	}
	if c, ok := st.Consultations.Get(ref); ok {
		if c.HolderNationalID != holder {
			return nil, nil, &NotFoundError{What: "consultation", Key: ref}
		}
		if !c.IsOpen() {
			return nil, nil, fmt.Errorf("consultation %s closed at %s: %w", ref, c.ClosedTime, ErrLoanClosed)
		}
		return nil, c, nil
	}

	matches := func(r ResourceRef) bool { return r.ResourceID == ref || r.String() == ref }
	var loan *LoanRecord
	if m, ok := p.(*Member); ok {
		for _, id := range m.OpenLoans {
			if l, ok := st.Loans.Get(id); ok && matches(l.Resource) {
				loan = l
				break
			}
		}
	}
	var con *ConsultationRecord
	if id := p.ConsultationID(); id != "" {
		if c, ok := st.Consultations.Get(id); ok && matches(c.Resource) {
			con = c
		}
	}
	switch {
	case loan != nil && con != nil:
		return nil, nil, fmt.Errorf("%s is held as %s and %s: %w", ref, loan.ID, con.ID, ErrAmbiguous)
	case loan != nil:
		return loan, nil, nil
	case con != nil:
		return nil, con, nil
	}
	return nil, nil, &NotFoundError{What: "holding", Key: ref}
}

func closeLoan(st *State, m *Member, l *LoanRecord, today Date) (Receipt, error) {
	res, err := st.Catalog.Get(l.Resource.ResourceID)
	if err != nil {
		return Receipt{}, err
	}
	if err := res.setActivity(l.Resource.Copy, ActivityFree); err != nil {
		return Receipt{}, err
	}
	l.ReturnedDate = today
	m.dropLoan(l.ID)
	return Receipt{
		Purpose:      PurposeLoan,
		RecordID:     l.ID,
		Resource:     l.Resource,
		DueDate:      l.DueDate,
		ReturnedDate: today,
		Overdue:      l.Overdue(today),
		DaysLate:     l.DaysLate(today),
	}, nil
}

func closeConsultation(st *State, p Patron, c *ConsultationRecord, at ClockTime) (Receipt, error) {
	res, err := st.Catalog.Get(c.Resource.ResourceID)
	if err != nil {
		return Receipt{}, err
	}
	if err := res.setActivity(c.Resource.Copy, ActivityFree); err != nil {
		return Receipt{}, err
	}
	c.ClosedTime = at
	p.setConsultation("")
	return Receipt{
		Purpose:    PurposeConsultation,
		RecordID:   c.ID,
		Resource:   c.Resource,
		ClosedTime: at,
	}, nil
}

// ReturnOutcome is the result of one item of ReturnAll.
type ReturnOutcome struct {
	Reference string
	Receipt   Receipt
	Err       error
}

// ReturnAll returns every open holding of the patron, loans first. Each
// item is its own transaction; a failure on one item does not undo the
// others.
func (e *Engine) ReturnAll(ctx context.Context, st *State, nationalID string) ([]ReturnOutcome, error) {
	var refs []string
	err := e.View(st, func(st *State) error {
		p, err := st.Registry.FindByNationalID(nationalID)
		if err != nil {
			return err
		}
		if m, ok := p.(*Member); ok {
			refs = append(refs, m.OpenLoans...)
		}
		if id := p.ConsultationID(); id != "" {
			refs = append(refs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ReturnOutcome, 0, len(refs))
	for _, ref := range refs {
		r, err := e.Return(ctx, st, nationalID, ref)
		if err != nil {
			log.Warn(ctx, "return failed", slog.String("record", ref), log.Err("error", err))
		}
		out = append(out, ReturnOutcome{Reference: ref, Receipt: r, Err: err})
	}
	return out, nil
}

// RenewOptions tunes a single renewal.
type RenewOptions struct {
	// OverrideWindow renews before the window opens. Ignored unless the
	// policy allows overrides. Overriding on a movie shortens the loan
	// when today plus MovieRenewalDays falls before the current due date.
	OverrideWindow bool
}

// Renew extends an open loan of the member. A book's due date moves
// Policy.LoanDays past the current one. A movie's due date is reset to
// today plus Policy.MovieRenewalDays, which can be earlier than the
// current due date when the window is overridden.
func (e *Engine) Renew(ctx context.Context, st *State, nationalID, loanID string, opts RenewOptions) (LoanRecord, error) {
	var out LoanRecord
	err := e.transact(ctx, st, "renew", func(now time.Time) error {
		m, err := st.Registry.FindMember(nationalID)
		if err != nil {
			return err
		}
		l, ok := st.Loans.Get(strings.TrimSpace(loanID))
		if !ok || l.HolderNationalID != m.NationalID {
			return &NotFoundError{What: "loan", Key: loanID}
		}
		if !l.IsOpen() {
			return fmt.Errorf("loan %s returned on %s: %w", l.ID, l.ReturnedDate, ErrLoanClosed)
		}

		today := DateOf(now)
		refuse := func(cause error) error {
			return &RenewalError{LoanID: l.ID, DueDate: l.DueDate, Today: today, RenewalCount: l.RenewalCount, Cause: cause}
		}
		if l.RenewalCount >= e.policy.MaxRenewals {
			return refuse(ErrRenewalLimitReached)
		}
		if today.After(l.DueDate) {
			return refuse(ErrLoanOverdue)
		}
		override := opts.OverrideWindow && e.policy.AllowWindowOverride
		if today.DaysUntil(l.DueDate) > e.policy.RenewalWindowDays && !override {
			return refuse(ErrRenewalWindowNotOpen)
		}

		res, err := st.Catalog.Get(l.Resource.ResourceID)
		if err != nil {
			return err
		}
		if res.Kind() == KindMovie {
			l.DueDate = today.AddDays(e.policy.MovieRenewalDays)
		} else {
			l.DueDate = l.DueDate.AddDays(e.policy.LoanDays)
		}
		l.RenewalCount++
		out = *l
		return nil
	})
	if err != nil {
		return LoanRecord{}, err
	}
	log.Info(ctx, "loan renewed",
		slog.String("loan", out.ID),
		log.Stringer("due", out.DueDate),
		slog.Int("renewals", out.RenewalCount),
		slog.Bool("override", opts.OverrideWindow),
	)
	return out, nil
}
