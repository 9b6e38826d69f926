package lending

import (
	"fmt"
	"time"
)

// =============================================================================
// SNAPSHOT - Whole-library document, the unit of persistence
// =============================================================================

// SnapshotVersion is written into every snapshot and checked on load.
const SnapshotVersion = 1

// Snapshot is the full state in wire form: catalog with copy lists,
// patrons, both ledgers and every id counter. Gateways store it whole.
type Snapshot struct {
	Version       int               `json:"version"`
	SavedAt       time.Time         `json:"saved_at"`
	Counters      Counters          `json:"counters"`
	Books         []BookDoc         `json:"books"`
	Magazines     []MagazineDoc     `json:"magazines"`
	Movies        []MovieDoc        `json:"movies"`
	Members       []MemberDoc       `json:"members"`
	CasualUsers   []CasualUserDoc   `json:"casual_users"`
	Loans         []LoanDoc         `json:"loans"`
	Consultations []ConsultationDoc `json:"consultations"`
}

// Counters holds the last value issued by each id sequence.
type Counters struct {
	Book         int64 `json:"book"`
	Magazine     int64 `json:"magazine"`
	Movie        int64 `json:"movie"`
	Member       int64 `json:"member"`
	Loan         int64 `json:"loan"`
	Consultation int64 `json:"consultation"`
}

type BookDoc struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Author       string    `json:"author"`
	Title        string    `json:"title"`
	Publisher    string    `json:"publisher"`
	LastSequence int       `json:"last_sequence"`
	Copies       []CopyDoc `json:"copies"`
}

type CopyDoc struct {
	OwningResourceID string   `json:"owning_resource_id"`
	Sequence         int      `json:"sequence_number"`
	Activity         Activity `json:"activity"`
}

type MagazineDoc struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	Name            string    `json:"name"`
	PublicationDate YearMonth `json:"publication_date"`
	Publisher       string    `json:"publisher"`
	InConsultation  bool      `json:"in_consultation"`
}

type MovieDoc struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	Title           string   `json:"title"`
	PrincipalCast   []string `json:"principal_cast"`
	SecondaryCast   []string `json:"secondary_cast"`
	PublicationDate Date     `json:"publication_date"`
	HasLibraryCopy  bool     `json:"has_library_copy"`
	InUse           bool     `json:"in_use"`
	HasLoanCopy     bool     `json:"has_loan_copy"`
	OnLoan          bool     `json:"on_loan"`
}

type MemberDoc struct {
	NationalID       string   `json:"national_id"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone"`
	Address          string   `json:"address"`
	MemberNumber     string   `json:"member_number"`
	OpenLoans        []string `json:"open_loans"`
	OpenConsultation string   `json:"open_consultation,omitempty"`
}

type CasualUserDoc struct {
	NationalID       string `json:"national_id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	OpenConsultation string `json:"open_consultation,omitempty"`
}

// LoanDoc stores ReturnedDate as null while the loan is open.
type LoanDoc struct {
	ID               string      `json:"id"`
	HolderNationalID string      `json:"holder_national_id"`
	MemberNumber     string      `json:"member_number"`
	Resource         ResourceRef `json:"resource"`
	RequestDate      Date        `json:"request_date"`
	RequestTime      ClockTime   `json:"request_time"`
	DueDate          Date        `json:"due_date"`
	ReturnedDate     *Date       `json:"returned_date"`
	RenewalCount     int         `json:"renewal_count"`
}

// ConsultationDoc stores ClosedTime as null while the consultation is open.
type ConsultationDoc struct {
	ID               string      `json:"id"`
	HolderNationalID string      `json:"holder_national_id"`
	Resource         ResourceRef `json:"resource"`
	RequestDate      Date        `json:"request_date"`
	RequestTime      ClockTime   `json:"request_time"`
	ClosedTime       *ClockTime  `json:"closed_time"`
}

// =============================================================================
// STATE -> SNAPSHOT
// =============================================================================

// Snapshot copies the state into a fresh document. Nothing in the result
// aliases the state, so it can be handed to a Gateway outside the lock.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Version: SnapshotVersion,
		Counters: Counters{
			Book:         s.Catalog.bookSeq.last,
			Magazine:     s.Catalog.magazineSeq.last,
			Movie:        s.Catalog.movieSeq.last,
			Member:       s.Registry.memberSeq.last,
			Loan:         s.Loans.seq.last,
			Consultation: s.Consultations.seq.last,
		},
		Books:         []BookDoc{},
		Magazines:     []MagazineDoc{},
		Movies:        []MovieDoc{},
		Members:       []MemberDoc{},
		CasualUsers:   []CasualUserDoc{},
		Loans:         []LoanDoc{},
		Consultations: []ConsultationDoc{},
	}

	for _, b := range sortedByID(s.Catalog.books) {
		doc := BookDoc{
			ID:           b.id,
			Description:  b.Description,
			Author:       b.Author,
			Title:        b.Title,
			Publisher:    b.Publisher,
			LastSequence: b.lastSequence,
			Copies:       make([]CopyDoc, 0, len(b.Copies)),
		}
		for _, c := range b.Copies {
			doc.Copies = append(doc.Copies, CopyDoc{OwningResourceID: c.OwningResourceID, Sequence: c.Sequence, Activity: c.Activity})
		}
		snap.Books = append(snap.Books, doc)
	}
	for _, m := range sortedByID(s.Catalog.magazines) {
		snap.Magazines = append(snap.Magazines, MagazineDoc{
			ID:              m.id,
			Description:     m.Description,
			Name:            m.Name,
			PublicationDate: m.PublicationDate,
			Publisher:       m.Publisher,
			InConsultation:  m.InConsultation,
		})
	}
	for _, m := range sortedByID(s.Catalog.movies) {
		snap.Movies = append(snap.Movies, MovieDoc{
			ID:              m.id,
			Description:     m.Description,
			Title:           m.Title,
			PrincipalCast:   append([]string{}, m.PrincipalCast...),
			SecondaryCast:   append([]string{}, m.SecondaryCast...),
			PublicationDate: m.PublicationDate,
			HasLibraryCopy:  m.HasLibraryCopy,
			InUse:           m.InUse,
			HasLoanCopy:     m.HasLoanCopy,
			OnLoan:          m.OnLoan,
		})
	}

	for _, m := range s.Registry.Members() {
		snap.Members = append(snap.Members, MemberDoc{
			NationalID:       m.NationalID,
			Name:             m.Name,
			Phone:            m.Phone,
			Address:          m.Address,
			MemberNumber:     m.MemberNumber,
			OpenLoans:        append([]string{}, m.OpenLoans...),
			OpenConsultation: m.OpenConsultation,
		})
	}
	for _, u := range s.Registry.CasualUsers() {
		snap.CasualUsers = append(snap.CasualUsers, CasualUserDoc{
			NationalID:       u.NationalID,
			Name:             u.Name,
			Phone:            u.Phone,
			Address:          u.Address,
			OpenConsultation: u.OpenConsultation,
		})
	}

	for _, l := range s.Loans.All() {
		doc := LoanDoc{
			ID:               l.ID,
			HolderNationalID: l.HolderNationalID,
			MemberNumber:     l.MemberNumber,
			Resource:         l.Resource,
			RequestDate:      l.RequestDate,
			RequestTime:      l.RequestTime,
			DueDate:          l.DueDate,
			RenewalCount:     l.RenewalCount,
		}
		if !l.IsOpen() {
			returned := l.ReturnedDate
			doc.ReturnedDate = &returned
		}
		snap.Loans = append(snap.Loans, doc)
	}
	for _, c := range s.Consultations.All() {
		doc := ConsultationDoc{
			ID:               c.ID,
			HolderNationalID: c.HolderNationalID,
			Resource:         c.Resource,
			RequestDate:      c.RequestDate,
			RequestTime:      c.RequestTime,
		}
		if !c.IsOpen() {
			closed := c.ClosedTime
			doc.ClosedTime = &closed
		}
		snap.Consultations = append(snap.Consultations, doc)
	}
	return snap
}

// =============================================================================
// SNAPSHOT -> STATE
// =============================================================================

// FromSnapshot rebuilds a State. Copy ownership comes from each copy's
// owning_resource_id and ledger references are resolved through the
// catalog index, then the result is checked with Verify. Any failure
// wraps ErrCorruptSnapshot.
func FromSnapshot(snap Snapshot, validate IDValidator) (*State, error) {
	st, err := fromSnapshot(snap, validate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := st.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return st, nil
}

func fromSnapshot(snap Snapshot, validate IDValidator) (*State, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("version %d, want %d", snap.Version, SnapshotVersion)
	}
	st := NewState(validate)
	cat, reg := st.Catalog, st.Registry

	cat.bookSeq.last = snap.Counters.Book
	cat.magazineSeq.last = snap.Counters.Magazine
	cat.movieSeq.last = snap.Counters.Movie
	reg.memberSeq.last = snap.Counters.Member
	st.Loans.seq.last = snap.Counters.Loan
	st.Consultations.seq.last = snap.Counters.Consultation

	addResource := func(seq *sequence, r Resource) error {
		if err := seq.observe(r.ID()); err != nil {
			return err
		}
		if _, dup := cat.byID[r.ID()]; dup {
			return fmt.Errorf("duplicate resource id %s", r.ID())
		}
		cat.insert(r)
		return nil
	}

	for _, d := range snap.Books {
		b := &Book{
			id:           d.ID,
			Description:  d.Description,
			Author:       d.Author,
			Title:        d.Title,
			Publisher:    d.Publisher,
			lastSequence: d.LastSequence,
		}
		seen := make(map[int]bool, len(d.Copies))
		for _, c := range d.Copies {
			if c.OwningResourceID != d.ID {
				return nil, fmt.Errorf("copy %d listed under %s is owned by %q", c.Sequence, d.ID, c.OwningResourceID)
			}
			if c.Sequence <= 0 || seen[c.Sequence] {
				return nil, fmt.Errorf("book %s: bad or repeated copy sequence %d", d.ID, c.Sequence)
			}
			switch c.Activity {
			case ActivityFree, ActivityOnLoan, ActivityOnConsultation:
			default:
				return nil, fmt.Errorf("book %s copy %d: unknown activity %q", d.ID, c.Sequence, c.Activity)
			}
			seen[c.Sequence] = true
			if c.Sequence > b.lastSequence {
				b.lastSequence = c.Sequence
			}
			b.Copies = append(b.Copies, &Copy{OwningResourceID: c.OwningResourceID, Sequence: c.Sequence, Activity: c.Activity})
		}
		if err := addResource(&cat.bookSeq, b); err != nil {
			return nil, err
		}
	}
	for _, d := range snap.Magazines {
		m := &Magazine{
			id:              d.ID,
			Description:     d.Description,
			Name:            d.Name,
			PublicationDate: d.PublicationDate,
			Publisher:       d.Publisher,
			InConsultation:  d.InConsultation,
		}
		if err := addResource(&cat.magazineSeq, m); err != nil {
			return nil, err
		}
	}
	for _, d := range snap.Movies {
		m := &Movie{
			id:              d.ID,
			Description:     d.Description,
			Title:           d.Title,
			PrincipalCast:   d.PrincipalCast,
			SecondaryCast:   d.SecondaryCast,
			PublicationDate: d.PublicationDate,
			HasLibraryCopy:  d.HasLibraryCopy,
			InUse:           d.InUse,
			HasLoanCopy:     d.HasLoanCopy,
			OnLoan:          d.OnLoan,
		}
		if (m.InUse && !m.HasLibraryCopy) || (m.OnLoan && !m.HasLoanCopy) {
			return nil, fmt.Errorf("movie %s: busy flag on a missing copy", d.ID)
		}
		if err := addResource(&cat.movieSeq, m); err != nil {
			return nil, err
		}
	}

	for _, d := range snap.Members {
		if err := reg.memberSeq.observe(d.MemberNumber); err != nil {
			return nil, err
		}
		if _, dup := reg.byNumber[d.MemberNumber]; dup {
			return nil, fmt.Errorf("duplicate member number %s", d.MemberNumber)
		}
		m := &Member{
			Person:           Person{NationalID: d.NationalID, Name: d.Name, Phone: d.Phone, Address: d.Address},
			MemberNumber:     d.MemberNumber,
			OpenLoans:        append([]string(nil), d.OpenLoans...),
			OpenConsultation: d.OpenConsultation,
		}
		if err := reg.restore(m); err != nil {
			return nil, err
		}
		reg.byNumber[m.MemberNumber] = m
	}
	for _, d := range snap.CasualUsers {
		u := &CasualUser{
			Person:           Person{NationalID: d.NationalID, Name: d.Name, Phone: d.Phone, Address: d.Address},
			OpenConsultation: d.OpenConsultation,
		}
		if err := reg.restore(u); err != nil {
			return nil, err
		}
	}

	for _, d := range snap.Loans {
		if err := st.Loans.seq.observe(d.ID); err != nil {
			return nil, err
		}
		if _, dup := st.Loans.Get(d.ID); dup {
			return nil, fmt.Errorf("duplicate loan id %s", d.ID)
		}
		rec := &LoanRecord{
			ID:               d.ID,
			HolderNationalID: d.HolderNationalID,
			MemberNumber:     d.MemberNumber,
			Resource:         d.Resource,
			RequestDate:      d.RequestDate,
			RequestTime:      d.RequestTime,
			DueDate:          d.DueDate,
			RenewalCount:     d.RenewalCount,
		}
		if d.ReturnedDate != nil {
			if d.ReturnedDate.IsZero() {
				return nil, fmt.Errorf("loan %s: empty returned_date", d.ID)
			}
			rec.ReturnedDate = *d.ReturnedDate
		}
		st.Loans.append(rec)
	}
	for _, d := range snap.Consultations {
		if err := st.Consultations.seq.observe(d.ID); err != nil {
			return nil, err
		}
		if _, dup := st.Consultations.Get(d.ID); dup {
			return nil, fmt.Errorf("duplicate consultation id %s", d.ID)
		}
		rec := &ConsultationRecord{
			ID:               d.ID,
			HolderNationalID: d.HolderNationalID,
			Resource:         d.Resource,
			RequestDate:      d.RequestDate,
			RequestTime:      d.RequestTime,
		}
		if d.ClosedTime != nil {
			if d.ClosedTime.IsZero() {
				return nil, fmt.Errorf("consultation %s: empty closed_time", d.ID)
			}
			rec.ClosedTime = *d.ClosedTime
		}
		st.Consultations.append(rec)
	}
	return st, nil
}

// restore inserts a patron read from a snapshot, bypassing the
// registration checks but keeping one patron per national ID.
func (r *Registry) restore(p Patron) error {
	id := p.Details().NationalID
	if id == "" || id != NormalizeNationalID(id) {
		return fmt.Errorf("malformed national id %q", id)
	}
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("national id %s registered twice", id)
	}
	r.byID[id] = p
	return nil
}

// carryCounters raises the empty state's id counters to the highest value
// recorded in snap, from its counters and from the ids it holds.
// Unparseable ids are skipped.
func (s *State) carryCounters(snap Snapshot) {
	raise := func(seq *sequence, last int64, ids ...string) {
		if last > seq.last {
			seq.last = last
		}
		for _, id := range ids {
			_ = seq.observe(id)
		}
	}
	var books, mags, movies, members, loans, cons []string
	for _, d := range snap.Books {
		books = append(books, d.ID)
	}
	for _, d := range snap.Magazines {
		mags = append(mags, d.ID)
	}
	for _, d := range snap.Movies {
		movies = append(movies, d.ID)
	}
	for _, d := range snap.Members {
		members = append(members, d.MemberNumber)
	}
	for _, d := range snap.Loans {
		loans = append(loans, d.ID)
	}
	for _, d := range snap.Consultations {
		cons = append(cons, d.ID)
	}
	raise(&s.Catalog.bookSeq, snap.Counters.Book, books...)
	raise(&s.Catalog.magazineSeq, snap.Counters.Magazine, mags...)
	raise(&s.Catalog.movieSeq, snap.Counters.Movie, movies...)
	raise(&s.Registry.memberSeq, snap.Counters.Member, members...)
	raise(&s.Loans.seq, snap.Counters.Loan, loans...)
	raise(&s.Consultations.seq, snap.Counters.Consultation, cons...)
}
