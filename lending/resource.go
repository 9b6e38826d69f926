/*
Package lending implements the library's lending and consultation engine.

PURPOSE:
  Decide whether a unit of inventory can be loaned or consulted, record who
  holds what until when, and reconcile renewals and returns. The catalog
  (books, magazines, movies) and the patron registry (members, casual users)
  live here too because every engine transition touches both.

KEY CONCEPTS IN THIS FILE (resource.go):
  - Resource: closed variant over *Book, *Magazine and *Movie
  - Kind:     the variant discriminant
  - Purpose:  loan or consultation
  - Activity: free / on_loan / on_consultation, per inventory unit
  - CopySelector + ResourceRef: the only way ledger records point at units

INVENTORY UNITS:
  Book      N numbered copies, shared pool for loan and consultation
  Magazine  a single unit, consultation only
  Movie     up to two role-typed copies: library (consultation) and loan

STATE MACHINE (per unit):
  Free --open--> OnLoan | OnConsultation --return--> Free

SEE ALSO:
  - catalog.go: resource collection and lookups
  - engine.go:  the transitions
  - ledger.go:  loan and consultation records
*/
package lending

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ENUMS
// =============================================================================

// Kind is the resource discriminant.
type Kind string

const (
	KindBook     Kind = "book"
	KindMagazine Kind = "magazine"
	KindMovie    Kind = "movie"
)

// Purpose is what a patron wants to do with a unit.
type Purpose string

const (
	PurposeLoan         Purpose = "loan"
	PurposeConsultation Purpose = "consultation"
)

// Activity is the state of one inventory unit.
type Activity string

const (
	ActivityFree           Activity = "free"
	ActivityOnLoan         Activity = "on_loan"
	ActivityOnConsultation Activity = "on_consultation"
)

// busyAs maps a purpose to the activity a unit takes while serving it.
func (p Purpose) busyAs() Activity {
	if p == PurposeLoan {
		return ActivityOnLoan
	}
	return ActivityOnConsultation
}

// MovieRole tells the two movie copies apart.
type MovieRole string

const (
	RoleLibrary MovieRole = "library" // consultation on premises
	RoleLoan    MovieRole = "loan"    // take-home
)

// =============================================================================
// REFERENCES - How ledger records point at units
// =============================================================================

// CopySelector picks one unit inside a resource: Sequence for books, Role
// for movies, neither for magazines.
type CopySelector struct {
	Sequence int       `json:"sequence,omitempty"`
	Role     MovieRole `json:"role,omitempty"`
}

func (s CopySelector) IsZero() bool { return s.Sequence == 0 && s.Role == "" }

func (s CopySelector) String() string {
	switch {
	case s.Sequence > 0:
		return strconv.Itoa(s.Sequence)
	case s.Role != "":
		return string(s.Role)
	default:
		return ""
	}
}

// ResourceRef is a foreign key to one unit: resource id plus selector.
type ResourceRef struct {
	ResourceID string       `json:"resource_id"`
	Copy       CopySelector `json:"copy"`
}

// String renders L0000000001#3, P0000000001#loan or R0000000001.
func (r ResourceRef) String() string {
	if r.Copy.IsZero() {
		return r.ResourceID
	}
	return r.ResourceID + "#" + r.Copy.String()
}

// ParseResourceRef is the inverse of ResourceRef.String.
func ParseResourceRef(s string) (ResourceRef, error) {
	s = strings.TrimSpace(s)
	id, sel, found := strings.Cut(s, "#")
	if id == "" {
		return ResourceRef{}, &InputError{Field: "resource reference", Value: s, Reason: "missing resource id"}
	}
	ref := ResourceRef{ResourceID: id}
	if !found {
		return ref, nil
	}
	switch MovieRole(sel) {
	case RoleLibrary, RoleLoan:
		ref.Copy.Role = MovieRole(sel)
		return ref, nil
	}
	n, err := strconv.Atoi(sel)
	if err != nil || n <= 0 {
		return ResourceRef{}, &InputError{Field: "resource reference", Value: s, Reason: "copy must be a positive sequence or a movie role"}
	}
	ref.Copy.Sequence = n
	return ref, nil
}

// =============================================================================
// RESOURCE - Closed variant
// =============================================================================

// Unit is a read-only view of one inventory unit.
type Unit struct {
	Selector CopySelector
	Activity Activity
}

// Resource is implemented by *Book, *Magazine and *Movie only. The
// unexported methods keep the set closed and carry the per-kind
// availability rules.
type Resource interface {
	ID() string
	Kind() Kind
	Label() string

	// freeUnit picks a unit able to serve p, or returns *AvailabilityError.
	freeUnit(p Purpose) (CopySelector, error)
	// setActivity moves one unit; the engine is the only caller.
	setActivity(sel CopySelector, a Activity) error
	// units lists every unit with its activity.
	units() []Unit
}

// CheckAvailability returns the unit that would serve p on r, without
// changing anything.
func CheckAvailability(r Resource, p Purpose) (CopySelector, error) {
	return r.freeUnit(p)
}

// Units lists every unit of r with its current activity.
func Units(r Resource) []Unit {
	return r.units()
}

// ActivityOf reports the activity of the unit selected by sel.
func ActivityOf(r Resource, sel CopySelector) (Activity, error) {
	for _, u := range r.units() {
		if u.Selector == sel {
			return u.Activity, nil
		}
	}
	return "", &NotFoundError{What: "copy", Key: ResourceRef{ResourceID: r.ID(), Copy: sel}.String()}
}

// IsBusy reports whether any unit of r is not free.
func IsBusy(r Resource) bool {
	for _, u := range r.units() {
		if u.Activity != ActivityFree {
			return true
		}
	}
	return false
}

// =============================================================================
// BOOK
// =============================================================================

// Book has any number of individually tracked copies.
type Book struct {
	id          string
	Description string
	Author      string
	Title       string
	Publisher   string
	Copies      []*Copy

	// lastSequence is the highest sequence ever issued. Removing a copy
	// does not lower it.
	lastSequence int
}

// Copy is one physical book.
type Copy struct {
	OwningResourceID string
	Sequence         int
	Activity         Activity
}

func (b *Book) ID() string    { return b.id }
func (b *Book) Kind() Kind    { return KindBook }
func (b *Book) Label() string { return b.Title }

// LastSequence is the highest copy sequence ever issued for b.
func (b *Book) LastSequence() int { return b.lastSequence }

func (b *Book) copy(seq int) (*Copy, int) {
	for i, c := range b.Copies {
		if c.Sequence == seq {
			return c, i
		}
	}
	return nil, -1
}

func (b *Book) freeUnit(p Purpose) (CopySelector, error) {
	for _, c := range b.Copies {
		if c.Activity == ActivityFree {
			return CopySelector{Sequence: c.Sequence}, nil
		}
	}
	reason := fmt.Sprintf("all %d copies are busy", len(b.Copies))
	if len(b.Copies) == 0 {
		reason = "the book has no copies"
	}
	return CopySelector{}, &AvailabilityError{ResourceID: b.id, Kind: KindBook, Purpose: p, Reason: reason}
}

func (b *Book) setActivity(sel CopySelector, a Activity) error {
	c, _ := b.copy(sel.Sequence)
	if c == nil {
		return &NotFoundError{What: "copy", Key: ResourceRef{ResourceID: b.id, Copy: sel}.String()}
	}
	c.Activity = a
	return nil
}

func (b *Book) units() []Unit {
	out := make([]Unit, len(b.Copies))
	for i, c := range b.Copies {
		out[i] = Unit{Selector: CopySelector{Sequence: c.Sequence}, Activity: c.Activity}
	}
	return out
}

func (b *Book) addCopies(n int) []*Copy {
	added := make([]*Copy, 0, n)
	for i := 0; i < n; i++ {
		b.lastSequence++
		c := &Copy{OwningResourceID: b.id, Sequence: b.lastSequence, Activity: ActivityFree}
		b.Copies = append(b.Copies, c)
		added = append(added, c)
	}
	return added
}

func (b *Book) removeCopy(seq int) error {
	c, i := b.copy(seq)
	if c == nil {
		return &NotFoundError{What: "copy", Key: ResourceRef{ResourceID: b.id, Copy: CopySelector{Sequence: seq}}.String()}
	}
	if c.Activity != ActivityFree {
		return fmt.Errorf("copy %d of %s is %s: %w", seq, b.id, c.Activity, ErrResourceInUse)
	}
	b.Copies = append(b.Copies[:i], b.Copies[i+1:]...)
	return nil
}

// =============================================================================
// MAGAZINE
// =============================================================================

// Magazine is a single issue, consulted on premises and never loaned.
type Magazine struct {
	id              string
	Description     string
	Name            string
	PublicationDate YearMonth
	Publisher       string
	InConsultation  bool
}

func (m *Magazine) ID() string    { return m.id }
func (m *Magazine) Kind() Kind    { return KindMagazine }
func (m *Magazine) Label() string { return m.Name }

func (m *Magazine) freeUnit(p Purpose) (CopySelector, error) {
	if p == PurposeLoan {
		return CopySelector{}, &AvailabilityError{ResourceID: m.id, Kind: KindMagazine, Purpose: p, Reason: "magazines are consultation-only"}
	}
	if m.InConsultation {
		return CopySelector{}, &AvailabilityError{ResourceID: m.id, Kind: KindMagazine, Purpose: p, Reason: "already in consultation"}
	}
	return CopySelector{}, nil
}

func (m *Magazine) setActivity(sel CopySelector, a Activity) error {
	if !sel.IsZero() {
		return &NotFoundError{What: "copy", Key: ResourceRef{ResourceID: m.id, Copy: sel}.String()}
	}
	if a == ActivityOnLoan {
		return &InputError{Field: "activity", Value: string(a), Reason: "magazines cannot be loaned"}
	}
	m.InConsultation = a == ActivityOnConsultation
	return nil
}

func (m *Magazine) units() []Unit {
	a := ActivityFree
	if m.InConsultation {
		a = ActivityOnConsultation
	}
	return []Unit{{Activity: a}}
}

// =============================================================================
// MOVIE
// =============================================================================

// MaxCastNames bounds each cast list of a movie.
const MaxCastNames = 2

// Movie has at most one library copy and at most one loan copy.
type Movie struct {
	id              string
	Description     string
	Title           string
	PrincipalCast   []string
	SecondaryCast   []string
	PublicationDate Date

	HasLibraryCopy bool
	InUse          bool // library copy in consultation
	HasLoanCopy    bool
	OnLoan         bool // loan copy out
}

func (m *Movie) ID() string    { return m.id }
func (m *Movie) Kind() Kind    { return KindMovie }
func (m *Movie) Label() string { return m.Title }

// CopyCount is 0, 1 or 2.
func (m *Movie) CopyCount() int {
	n := 0
	if m.HasLibraryCopy {
		n++
	}
	if m.HasLoanCopy {
		n++
	}
	return n
}

// roleFor returns the movie copy that serves a purpose.
func roleFor(p Purpose) MovieRole {
	if p == PurposeLoan {
		return RoleLoan
	}
	return RoleLibrary
}

func (m *Movie) freeUnit(p Purpose) (CopySelector, error) {
	fail := func(reason string) (CopySelector, error) {
		return CopySelector{}, &AvailabilityError{ResourceID: m.id, Kind: KindMovie, Purpose: p, Reason: reason}
	}
	switch roleFor(p) {
	case RoleLoan:
		if !m.HasLoanCopy {
			return fail("the movie has no loan copy")
		}
		if m.OnLoan {
			return fail("the loan copy is out")
		}
	case RoleLibrary:
		if !m.HasLibraryCopy {
			return fail("the movie has no library copy")
		}
		if m.InUse {
			return fail("the library copy is in use")
		}
	}
	return CopySelector{Role: roleFor(p)}, nil
}

func (m *Movie) setActivity(sel CopySelector, a Activity) error {
	switch sel.Role {
	case RoleLoan:
		if !m.HasLoanCopy {
			break
		}
		if a == ActivityOnConsultation {
			return &InputError{Field: "activity", Value: string(a), Reason: "the loan copy is take-home only"}
		}
		m.OnLoan = a == ActivityOnLoan
		return nil
	case RoleLibrary:
		if !m.HasLibraryCopy {
			break
		}
		if a == ActivityOnLoan {
			return &InputError{Field: "activity", Value: string(a), Reason: "the library copy is consultation only"}
		}
		m.InUse = a == ActivityOnConsultation
		return nil
	}
	return &NotFoundError{What: "copy", Key: ResourceRef{ResourceID: m.id, Copy: sel}.String()}
}

func (m *Movie) units() []Unit {
	var out []Unit
	if m.HasLibraryCopy {
		a := ActivityFree
		if m.InUse {
			a = ActivityOnConsultation
		}
		out = append(out, Unit{Selector: CopySelector{Role: RoleLibrary}, Activity: a})
	}
	if m.HasLoanCopy {
		a := ActivityFree
		if m.OnLoan {
			a = ActivityOnLoan
		}
		out = append(out, Unit{Selector: CopySelector{Role: RoleLoan}, Activity: a})
	}
	return out
}

// Compile-time checks that the variants implement Resource.
var (
	_ Resource = (*Book)(nil)
	_ Resource = (*Magazine)(nil)
	_ Resource = (*Movie)(nil)
)
