package lending

// =============================================================================
// PATRONS - Members borrow and consult; casual users only consult
// =============================================================================

// Person holds the personal fields shared by both patron kinds.
type Person struct {
	NationalID string
	Name       string
	Phone      string
	Address    string
}

// Member is an enrolled patron with a member number and up to
// Policy.MaxOpenLoans open loans.
type Member struct {
	Person
	MemberNumber     string
	OpenLoans        []string // loan ids, in opening order
	OpenConsultation string   // consultation id, "" when none
}

// CasualUser is a walk-in patron. Casual users never borrow.
type CasualUser struct {
	Person
	OpenConsultation string
}

// Patron is implemented by *Member and *CasualUser.
type Patron interface {
	Details() Person
	IsMember() bool
	ConsultationID() string
	HasHoldings() bool

	setConsultation(id string)
}

func (m *Member) Details() Person        { return m.Person }
func (m *Member) IsMember() bool         { return true }
func (m *Member) ConsultationID() string { return m.OpenConsultation }
func (m *Member) HasHoldings() bool {
	return len(m.OpenLoans) > 0 || m.OpenConsultation != ""
}
func (m *Member) setConsultation(id string) { m.OpenConsultation = id }

// dropLoan detaches a loan id, keeping the order of the others.
func (m *Member) dropLoan(id string) {
	for i, l := range m.OpenLoans {
		if l == id {
			m.OpenLoans = append(m.OpenLoans[:i:i], m.OpenLoans[i+1:]...)
			return
		}
	}
}

func (u *CasualUser) Details() Person           { return u.Person }
func (u *CasualUser) IsMember() bool            { return false }
func (u *CasualUser) ConsultationID() string    { return u.OpenConsultation }
func (u *CasualUser) HasHoldings() bool         { return u.OpenConsultation != "" }
func (u *CasualUser) setConsultation(id string) { u.OpenConsultation = id }

var (
	_ Patron = (*Member)(nil)
	_ Patron = (*CasualUser)(nil)
)
