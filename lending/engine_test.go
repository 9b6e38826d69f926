package lending_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
	"github.com/warp/lending-engine/lending/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	ctx   context.Context
	eng   *lending.Engine
	st    *lending.State
	gw    *store.Memory
	clock *lending.FixedClock
}

func newFixture(t *testing.T, opts ...lending.Option) *fixture {
	t.Helper()
	gw := store.NewMemory()
	clock := &lending.FixedClock{}
	clock.Set(lending.MustParseDate("2024-03-01"))

	eng, err := lending.NewEngine(gw, append([]lending.Option{lending.WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	st, err := eng.Open(context.Background(), identity.Valid)
	require.NoError(t, err)
	return &fixture{ctx: context.Background(), eng: eng, st: st, gw: gw, clock: clock}
}

func (f *fixture) book(t *testing.T, title string, copies int) *lending.Book {
	t.Helper()
	b, err := f.eng.AddBook(f.ctx, f.st, lending.BookInput{
		Title: title, Author: "Isaac Asimov", Publisher: "Gnome Press", Copies: copies,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) movie(t *testing.T, title string, library, loan bool) *lending.Movie {
	t.Helper()
	m, err := f.eng.AddMovie(f.ctx, f.st, lending.MovieInput{
		Title:           title,
		PublicationDate: lending.MustParseDate("2021-10-22"),
		PrincipalCast:   []string{"Timothée Chalamet"},
		LibraryCopy:     library,
		LoanCopy:        loan,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) magazine(t *testing.T) *lending.Magazine {
	t.Helper()
	m, err := f.eng.AddMagazine(f.ctx, f.st, lending.MagazineInput{
		Name:            "National Geographic",
		PublicationDate: lending.YearMonth{Year: 2024, Month: 3},
		Publisher:       "National Geographic Society",
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) member(t *testing.T, nid string) *lending.Member {
	t.Helper()
	m, err := f.eng.RegisterMember(f.ctx, f.st, lending.Person{
		NationalID: nid, Name: "Member " + nid, Phone: "600000000", Address: "Calle Mayor 1",
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) casual(t *testing.T, nid string) *lending.CasualUser {
	t.Helper()
	u, err := f.eng.RegisterCasualUser(f.ctx, f.st, lending.Person{
		NationalID: nid, Name: "Visitor " + nid, Phone: "600000000", Address: "Gran Vía 2",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) activity(t *testing.T, ref lending.ResourceRef) lending.Activity {
	t.Helper()
	var a lending.Activity
	require.NoError(t, f.eng.View(f.st, func(st *lending.State) error {
		r, err := st.Catalog.Get(ref.ResourceID)
		if err != nil {
			return err
		}
		a, err = lending.ActivityOf(r, ref.Copy)
		return err
	}))
	return a
}

const (
	ana   = "12345678Z"
	luis  = "00000001R"
	marta = "00000002W"
	ben   = "X0000000T"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_FoundationTwoCopies(t *testing.T) {
	// GIVEN: Foundation with two copies and three members
	f := newFixture(t)
	b := f.book(t, "Foundation", 2)
	f.member(t, ana)
	f.member(t, luis)
	f.member(t, marta)

	// WHEN: Ana borrows it
	first, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	// THEN: She gets copy 1, due in seven days
	assert.Equal(t, 1, first.Resource.Copy.Sequence)
	assert.Equal(t, "2024-03-08", first.DueDate.String())
	assert.Equal(t, lending.ActivityOnLoan, f.activity(t, first.Resource))

	// WHEN: Ana asks for it again
	_, err = f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	// THEN: Duplicate holding
	assert.ErrorIs(t, err, lending.ErrDuplicateHolding)

	// WHEN: Luis borrows it
	second, err := f.eng.OpenLoan(f.ctx, f.st, luis, b.ID())
	require.NoError(t, err)
	// THEN: He gets copy 2
	assert.Equal(t, 2, second.Resource.Copy.Sequence)

	// WHEN: Marta asks for it
	_, err = f.eng.OpenLoan(f.ctx, f.st, marta, b.ID())
	// THEN: No copy left
	var avail *lending.AvailabilityError
	require.ErrorAs(t, err, &avail)
	assert.Equal(t, b.ID(), avail.ResourceID)
	assert.ErrorIs(t, err, lending.ErrNoCopyAvailable)

	require.NoError(t, f.st.Verify())
}

func TestScenario_DuneRoles(t *testing.T) {
	// GIVEN: Dune with both copies, a member and a casual user
	f := newFixture(t)
	m := f.movie(t, "Dune", true, true)
	f.member(t, ana)
	f.casual(t, ben)

	// WHEN: Ben consults it
	con, err := f.eng.OpenConsultation(f.ctx, f.st, ben, m.ID())
	require.NoError(t, err)

	// THEN: The library copy is in use
	assert.Equal(t, lending.RoleLibrary, con.Resource.Copy.Role)
	assert.True(t, m.InUse)
	assert.Equal(t, "10:00:00", con.RequestTime.String())

	// AND: The loan copy can still be borrowed
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, m.ID())
	require.NoError(t, err)
	assert.Equal(t, lending.RoleLoan, loan.Resource.Copy.Role)

	// AND: A second consultation fails until Ben returns his
	_, err = f.eng.OpenConsultation(f.ctx, f.st, ana, m.ID())
	assert.ErrorIs(t, err, lending.ErrNoCopyAvailable)

	receipt, err := f.eng.Return(f.ctx, f.st, ben, m.ID())
	require.NoError(t, err)
	assert.Equal(t, lending.PurposeConsultation, receipt.Purpose)
	assert.False(t, m.InUse)

	_, err = f.eng.OpenConsultation(f.ctx, f.st, ana, m.ID())
	require.NoError(t, err)
	require.NoError(t, f.st.Verify())
}

// =============================================================================
// OPEN LOAN / CONSULTATION
// =============================================================================

func TestOpenLoan_QuotaNeverExceeded(t *testing.T) {
	f := newFixture(t)
	f.member(t, ana)
	var ids []string
	for _, title := range []string{"Foundation", "I, Robot", "The Caves of Steel", "The Gods Themselves"} {
		ids = append(ids, f.book(t, title, 1).ID())
	}

	for _, id := range ids[:3] {
		_, err := f.eng.OpenLoan(f.ctx, f.st, ana, id)
		require.NoError(t, err)
	}
	_, err := f.eng.OpenLoan(f.ctx, f.st, ana, ids[3])

	var quota *lending.QuotaError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 3, quota.Open)
	assert.Equal(t, 3, quota.Limit)
	assert.True(t, lending.IsRuleViolation(err))

	m, err := f.st.Registry.FindMember(ana)
	require.NoError(t, err)
	assert.Len(t, m.OpenLoans, 3)
}

func TestOpenLoan_CasualUserRefused(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.casual(t, ben)

	_, err := f.eng.OpenLoan(f.ctx, f.st, ben, b.ID())

	assert.ErrorIs(t, err, lending.ErrNotMember)
	assert.Equal(t, lending.ActivityFree, b.Copies[0].Activity)
}

func TestOpenLoan_MagazineRefused(t *testing.T) {
	f := newFixture(t)
	mag := f.magazine(t)
	f.member(t, ana)

	_, err := f.eng.OpenLoan(f.ctx, f.st, ana, mag.ID())

	assert.ErrorIs(t, err, lending.ErrNoCopyAvailable)
	assert.False(t, mag.InConsultation)
}

func TestOpenLoan_UnknownPatronAndResource(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)

	_, err := f.eng.OpenLoan(f.ctx, f.st, luis, b.ID())
	assert.True(t, lending.IsNotFound(err))

	_, err = f.eng.OpenLoan(f.ctx, f.st, ana, "L0000000099")
	var nf *lending.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "resource", nf.What)
}

func TestOpenLoan_SkipsCopyInConsultation(t *testing.T) {
	// GIVEN: A two-copy book whose first copy is in consultation
	f := newFixture(t)
	b := f.book(t, "Foundation", 2)
	f.casual(t, ben)
	f.member(t, ana)
	con, err := f.eng.OpenConsultation(f.ctx, f.st, ben, b.ID())
	require.NoError(t, err)
	require.Equal(t, 1, con.Resource.Copy.Sequence)

	// WHEN: Ana borrows it
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())

	// THEN: She gets copy 2
	require.NoError(t, err)
	assert.Equal(t, 2, loan.Resource.Copy.Sequence)
}

func TestOpenConsultation_OnePerPatron(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 2)
	mag := f.magazine(t)
	f.member(t, ana)

	_, err := f.eng.OpenConsultation(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	_, err = f.eng.OpenConsultation(f.ctx, f.st, ana, mag.ID())

	assert.ErrorIs(t, err, lending.ErrAlreadyConsulting)
	assert.False(t, mag.InConsultation)
}

// =============================================================================
// RETURN
// =============================================================================

func TestReturn_OnTimeVersusOverdue(t *testing.T) {
	// GIVEN: Two loans due 2024-03-10
	f := newFixture(t)
	f.clock.Set(lending.MustParseDate("2024-03-03"))
	b := f.book(t, "Foundation", 2)
	f.member(t, ana)
	f.member(t, luis)
	late, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	onTime, err := f.eng.OpenLoan(f.ctx, f.st, luis, b.ID())
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", late.DueDate.String())

	// WHEN: One comes back on the due date
	f.clock.Set(lending.MustParseDate("2024-03-10"))
	r1, err := f.eng.Return(f.ctx, f.st, luis, onTime.ID)
	require.NoError(t, err)

	// AND: The other two days later
	f.clock.Set(lending.MustParseDate("2024-03-12"))
	r2, err := f.eng.Return(f.ctx, f.st, ana, late.ID)
	require.NoError(t, err)

	// THEN: Only the second is overdue
	assert.False(t, r1.Overdue)
	assert.Zero(t, r1.DaysLate)
	assert.True(t, r2.Overdue)
	assert.Equal(t, 2, r2.DaysLate)
	assert.Equal(t, "2024-03-12", r2.ReturnedDate.String())

	// AND: Both copies are free and the member lists are empty
	assert.Equal(t, lending.ActivityFree, b.Copies[0].Activity)
	assert.Equal(t, lending.ActivityFree, b.Copies[1].Activity)
	m, _ := f.st.Registry.FindMember(ana)
	assert.Empty(t, m.OpenLoans)
	require.NoError(t, f.st.Verify())
}

func TestReturn_AmbiguousResourceReference(t *testing.T) {
	// GIVEN: Ana has one copy on loan and another in consultation
	f := newFixture(t)
	b := f.book(t, "Foundation", 2)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	con, err := f.eng.OpenConsultation(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	// WHEN: Returning by resource id
	_, err = f.eng.Return(f.ctx, f.st, ana, b.ID())
	// THEN: The reference is ambiguous
	assert.ErrorIs(t, err, lending.ErrAmbiguous)

	// WHEN: Returning by unit reference and by record id
	r, err := f.eng.Return(f.ctx, f.st, ana, con.Resource.String())
	require.NoError(t, err)
	assert.Equal(t, con.ID, r.RecordID)
	r, err = f.eng.Return(f.ctx, f.st, ana, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, r.RecordID)

	// AND: A second return of the loan is refused
	_, err = f.eng.Return(f.ctx, f.st, ana, loan.ID)
	assert.ErrorIs(t, err, lending.ErrLoanClosed)
}

func TestReturn_OtherPatronsRecord(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	f.member(t, luis)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	_, err = f.eng.Return(f.ctx, f.st, luis, loan.ID)

	assert.True(t, lending.IsNotFound(err))
	assert.Equal(t, lending.ActivityOnLoan, b.Copies[0].Activity)
}

func TestReturnAll_LoansThenConsultation(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	mag := f.magazine(t)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	con, err := f.eng.OpenConsultation(f.ctx, f.st, ana, mag.ID())
	require.NoError(t, err)

	out, err := f.eng.ReturnAll(f.ctx, f.st, ana)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, loan.ID, out[0].Reference)
	assert.Equal(t, con.ID, out[1].Reference)
	for _, o := range out {
		assert.NoError(t, o.Err)
	}
	hold, err := f.eng.Holdings(f.st, ana)
	require.NoError(t, err)
	assert.Empty(t, hold.Loans)
	assert.Nil(t, hold.Consultation)
}

// =============================================================================
// RENEW
// =============================================================================

func TestRenew_WeeklyUntilLimit(t *testing.T) {
	// GIVEN: A book loan opened 2024-03-01, due 2024-03-08
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	// WHEN: Renewing three days before each due date
	wantDue := []string{"2024-03-15", "2024-03-22", "2024-03-29"}
	for i, renewOn := range []string{"2024-03-05", "2024-03-12", "2024-03-19"} {
		f.clock.Set(lending.MustParseDate(renewOn))
		got, err := f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{})
		require.NoError(t, err, renewOn)
		// THEN: Each renewal adds a week
		assert.Equal(t, wantDue[i], got.DueDate.String())
		assert.Equal(t, i+1, got.RenewalCount)
	}

	// WHEN: Trying a fourth time
	f.clock.Set(lending.MustParseDate("2024-03-26"))
	_, err = f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{})

	// THEN: The limit is reached
	var renewal *lending.RenewalError
	require.ErrorAs(t, err, &renewal)
	assert.ErrorIs(t, err, lending.ErrRenewalLimitReached)
	assert.Equal(t, 3, renewal.RenewalCount)
}

func TestRenew_WindowNotOpen(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	// Four days before the due date
	f.clock.Set(lending.MustParseDate("2024-03-04"))
	_, err = f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{})
	assert.ErrorIs(t, err, lending.ErrRenewalWindowNotOpen)

	// The operator override bypasses the window
	got, err := f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{OverrideWindow: true})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", got.DueDate.String())
}

func TestRenew_OverrideDisabledByPolicy(t *testing.T) {
	p := lending.DefaultPolicy()
	p.AllowWindowOverride = false
	f := newFixture(t, lending.WithPolicy(p))
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	_, err = f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{OverrideWindow: true})

	assert.ErrorIs(t, err, lending.ErrRenewalWindowNotOpen)
}

func TestRenew_Overdue(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	// Renewing on the due date is allowed; the day after is not
	f.clock.Set(lending.MustParseDate("2024-03-09"))
	_, err = f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{OverrideWindow: true})

	assert.ErrorIs(t, err, lending.ErrLoanOverdue)
}

func TestRenew_MovieShortGrant(t *testing.T) {
	// GIVEN: A movie loan due 2024-03-08
	f := newFixture(t)
	m := f.movie(t, "Dune", false, true)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, m.ID())
	require.NoError(t, err)

	// WHEN: Renewing on 2024-03-07
	f.clock.Set(lending.MustParseDate("2024-03-07"))
	got, err := f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{})

	// THEN: Due two days from today
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", got.DueDate.String())
}

func TestRenew_MovieOverrideResetsToShortGrant(t *testing.T) {
	// GIVEN: A movie loan opened 2024-03-01, due 2024-03-08
	f := newFixture(t)
	m := f.movie(t, "Dune", false, true)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, m.ID())
	require.NoError(t, err)

	// WHEN: The operator overrides the window on the day it was opened
	got, err := f.eng.Renew(f.ctx, f.st, ana, loan.ID, lending.RenewOptions{OverrideWindow: true})

	// THEN: The due date is reset to today plus two, earlier than before
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", got.DueDate.String())
	assert.Equal(t, 1, got.RenewalCount)
}

// =============================================================================
// DELETION
// =============================================================================

func TestDeletion_BlockedWhileBusy(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)

	assert.ErrorIs(t, f.eng.RemoveResource(f.ctx, f.st, b.ID()), lending.ErrResourceInUse)
	assert.ErrorIs(t, f.eng.DeleteMember(f.ctx, f.st, ana), lending.ErrPatronHasActiveHoldings)

	_, err = f.eng.Return(f.ctx, f.st, ana, loan.ID)
	require.NoError(t, err)
	require.NoError(t, f.eng.RemoveResource(f.ctx, f.st, b.ID()))
	require.NoError(t, f.eng.DeleteMember(f.ctx, f.st, ana))

	// Closed records keep pointing at the removed resource
	l, ok := f.st.Loans.Get(loan.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID(), l.Resource.ResourceID)
	require.NoError(t, f.st.Verify())
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestTransact_SaveFailureRollsBack(t *testing.T) {
	// GIVEN: A book, a member and a failing gateway
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	saves := f.gw.Saves()
	f.gw.FailSaves(errors.New("disk full"))

	// WHEN: Opening a loan
	_, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())

	// THEN: The error wraps ErrPersist and nothing changed
	require.ErrorIs(t, err, lending.ErrPersist)
	assert.Equal(t, saves, f.gw.Saves())
	assert.Zero(t, f.st.Loans.Len())
	book, err := f.st.Catalog.Book(b.ID())
	require.NoError(t, err)
	assert.Equal(t, lending.ActivityFree, book.Copies[0].Activity)

	// AND: Once saving works again the loan id counter was not consumed
	f.gw.FailSaves(nil)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	assert.Equal(t, "PREST-0000000001", loan.ID)
}

func TestTransact_FailedOperationDoesNotSave(t *testing.T) {
	f := newFixture(t)
	f.member(t, ana)
	saves := f.gw.Saves()

	_, err := f.eng.OpenLoan(f.ctx, f.st, ana, "L0000000001")

	require.Error(t, err)
	assert.Equal(t, saves, f.gw.Saves())
}

func TestCounters_ContinueAcrossReload(t *testing.T) {
	// GIVEN: Three books saved
	f := newFixture(t)
	for _, title := range []string{"Foundation", "I, Robot", "The Caves of Steel"} {
		f.book(t, title, 1)
	}
	f.member(t, ana)

	// WHEN: A new engine loads the same gateway and adds a fourth
	eng, err := lending.NewEngine(f.gw, lending.WithClock(f.clock))
	require.NoError(t, err)
	st, err := eng.Open(f.ctx, identity.Valid)
	require.NoError(t, err)
	b, err := eng.AddBook(f.ctx, st, lending.BookInput{Title: "Nemesis", Author: "Isaac Asimov", Publisher: "Doubleday"})
	require.NoError(t, err)
	m, err := eng.RegisterMember(f.ctx, st, lending.Person{NationalID: luis, Name: "Luis", Phone: "600", Address: "Calle Sol 5"})
	require.NoError(t, err)

	// THEN: Counters continue
	assert.Equal(t, "L0000000004", b.ID())
	assert.Equal(t, "S0000000002", m.MemberNumber)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	// GIVEN: A library with open and closed records of every kind
	f := newFixture(t)
	b := f.book(t, "Foundation", 3)
	mov := f.movie(t, "Dune", true, true)
	mag := f.magazine(t)
	f.member(t, ana)
	f.member(t, luis)
	f.casual(t, ben)
	_, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	closed, err := f.eng.OpenLoan(f.ctx, f.st, luis, mov.ID())
	require.NoError(t, err)
	_, err = f.eng.Return(f.ctx, f.st, luis, closed.ID)
	require.NoError(t, err)
	_, err = f.eng.OpenConsultation(f.ctx, f.st, ben, mag.ID())
	require.NoError(t, err)
	_, err = f.eng.AddCopiesToBook(f.ctx, f.st, b.ID(), 1)
	require.NoError(t, err)
	require.NoError(t, f.eng.RemoveCopy(f.ctx, f.st, lending.ResourceRef{ResourceID: b.ID(), Copy: lending.CopySelector{Sequence: 2}}))

	// WHEN: Taking a snapshot and rebuilding from it
	before := f.st.Snapshot()
	st, err := lending.FromSnapshot(before, identity.Valid)
	require.NoError(t, err)
	after := st.Snapshot()

	// THEN: The documents are identical
	assert.Equal(t, before, after)
	assert.Equal(t, 4, after.Books[0].LastSequence)
	assert.Len(t, after.Books[0].Copies, 3)
	assert.Nil(t, after.Loans[0].ReturnedDate)
	require.NotNil(t, after.Loans[1].ReturnedDate)
}

func TestSnapshot_RejectsInconsistentUnits(t *testing.T) {
	f := newFixture(t)
	f.book(t, "Foundation", 1)
	snap := f.st.Snapshot()
	snap.Books[0].Copies[0].Activity = lending.ActivityOnLoan

	_, err := lending.FromSnapshot(snap, nil)

	assert.ErrorIs(t, err, lending.ErrCorruptSnapshot)
}

func TestSnapshot_RejectsForeignCopy(t *testing.T) {
	f := newFixture(t)
	f.book(t, "Foundation", 1)
	snap := f.st.Snapshot()
	snap.Books[0].Copies[0].OwningResourceID = "L0000000042"

	_, err := lending.FromSnapshot(snap, nil)

	assert.ErrorIs(t, err, lending.ErrCorruptSnapshot)
}

type brokenGateway struct{ err error }

func (g brokenGateway) Save(context.Context, lending.Snapshot) error { return nil }
func (g brokenGateway) Load(context.Context) (lending.Snapshot, error) {
	return lending.Snapshot{}, g.err
}

func TestOpen_CorruptSnapshotStartsEmpty(t *testing.T) {
	eng, err := lending.NewEngine(brokenGateway{err: lending.ErrCorruptSnapshot})
	require.NoError(t, err)

	st, err := eng.Open(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, st.Catalog.Len())
}

func TestOpen_GatewayFailure(t *testing.T) {
	eng, err := lending.NewEngine(brokenGateway{err: errors.New("permission denied")})
	require.NoError(t, err)

	_, err = eng.Open(context.Background(), nil)

	assert.Error(t, err)
}

func TestReset_EmptiesLibraryAndCounters(t *testing.T) {
	f := newFixture(t)
	f.book(t, "Foundation", 1)
	f.member(t, ana)

	require.NoError(t, f.eng.Reset(f.ctx, f.st))

	assert.Zero(t, f.st.Catalog.Len())
	assert.Zero(t, f.st.Registry.Len())
	b := f.book(t, "Foundation", 1)
	assert.Equal(t, "L0000000001", b.ID())
}

func TestNewEngine_InvalidOptions(t *testing.T) {
	_, err := lending.NewEngine(nil)
	assert.Error(t, err)

	_, err = lending.NewEngine(store.NewMemory(), lending.WithPolicy(lending.Policy{}))
	assert.ErrorIs(t, err, lending.ErrInvalidInput)

	_, err = lending.NewEngine(store.NewMemory(), lending.WithClock(nil))
	assert.Error(t, err)
}

func TestSnapshot_RejectsRepeatedOpenLoan(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "Foundation", 1)
	f.member(t, ana)
	loan, err := f.eng.OpenLoan(f.ctx, f.st, ana, b.ID())
	require.NoError(t, err)
	snap := f.st.Snapshot()
	snap.Members[0].OpenLoans = []string{loan.ID, loan.ID, loan.ID}

	_, err = lending.FromSnapshot(snap, identity.Valid)

	assert.ErrorIs(t, err, lending.ErrCorruptSnapshot)
	assert.ErrorContains(t, err, "more than once")
}

func TestOpen_InconsistentSnapshotKeepsCounters(t *testing.T) {
	// GIVEN: a saved library whose only book claims a loan nobody holds
	f := newFixture(t)
	f.book(t, "Foundation", 1)
	f.member(t, ana)
	snap := f.st.Snapshot()
	snap.Books[0].Copies[0].Activity = lending.ActivityOnLoan
	require.NoError(t, f.gw.Save(f.ctx, snap))

	// WHEN: the engine reopens it
	eng, err := lending.NewEngine(f.gw, lending.WithClock(f.clock))
	require.NoError(t, err)
	st, err := eng.Open(f.ctx, identity.Valid)
	require.NoError(t, err)

	// THEN: the library is empty but ids continue after the discarded ones
	assert.Zero(t, st.Catalog.Len())
	b, err := eng.AddBook(f.ctx, st, lending.BookInput{Title: "Dune", Author: "Frank Herbert", Publisher: "Chilton", Copies: 1})
	require.NoError(t, err)
	assert.Equal(t, "L0000000002", b.ID())
	m, err := eng.RegisterMember(f.ctx, st, lending.Person{NationalID: luis, Name: "Luis", Phone: "600", Address: "Calle Sol 5"})
	require.NoError(t, err)
	assert.Equal(t, "S0000000002", m.MemberNumber)
}
