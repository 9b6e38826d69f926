package lending

import (
	"fmt"
	"sort"
	"strings"
)

// IDValidator reports whether a national ID passes its checksum. The
// registry only consumes the predicate; see package identity.
type IDValidator func(nationalID string) bool

// acceptAll is used when no validator is configured.
func acceptAll(string) bool { return true }

// Registry holds members and casual users keyed by national ID. A national
// ID names at most one patron of either kind.
type Registry struct {
	validate  IDValidator
	byID      map[string]Patron
	byNumber  map[string]*Member
	memberSeq sequence
}

func NewRegistry(validate IDValidator) *Registry {
	if validate == nil {
		validate = acceptAll
	}
	return &Registry{
		validate:  validate,
		byID:      make(map[string]Patron),
		byNumber:  make(map[string]*Member),
		memberSeq: sequence{prefix: PrefixMember},
	}
}

// NormalizeNationalID upper-cases and trims an ID as typed.
func NormalizeNationalID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// RegisterMember enrols p and assigns the next member number.
func (r *Registry) RegisterMember(p Person) (*Member, error) {
	p, err := r.checkNew(p)
	if err != nil {
		return nil, err
	}
	m := &Member{Person: p, MemberNumber: r.memberSeq.next()}
	r.byID[p.NationalID] = m
	r.byNumber[m.MemberNumber] = m
	return m, nil
}

// RegisterCasualUser records a walk-in patron.
func (r *Registry) RegisterCasualUser(p Person) (*CasualUser, error) {
	p, err := r.checkNew(p)
	if err != nil {
		return nil, err
	}
	u := &CasualUser{Person: p}
	r.byID[p.NationalID] = u
	return u, nil
}

func (r *Registry) checkNew(p Person) (Person, error) {
	p.NationalID = NormalizeNationalID(p.NationalID)
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	p.Phone = strings.TrimSpace(p.Phone)

	if !r.validate(p.NationalID) {
		return p, &InputError{Field: "national_id", Value: p.NationalID, Reason: "checksum does not match"}
	}
	if err := required("name", p.Name); err != nil {
		return p, err
	}
	if err := required("address", p.Address); err != nil {
		return p, err
	}
	if p.Phone == "" || strings.TrimLeft(p.Phone, "0123456789") != "" {
		return p, &InputError{Field: "phone", Value: p.Phone, Reason: "must be digits only"}
	}
	if existing, ok := r.byID[p.NationalID]; ok {
		key := p.NationalID
		if m, isMember := existing.(*Member); isMember {
			key = m.MemberNumber
		}
		return p, &ExistsError{ExistingID: key, Cause: ErrPatronExists}
	}
	return p, nil
}

func (r *Registry) FindByNationalID(id string) (Patron, error) {
	p, ok := r.byID[NormalizeNationalID(id)]
	if !ok {
		return nil, &NotFoundError{What: "patron", Key: id}
	}
	return p, nil
}

// FindMember is FindByNationalID restricted to members; a casual user
// yields ErrNotMember.
func (r *Registry) FindMember(id string) (*Member, error) {
	p, err := r.FindByNationalID(id)
	if err != nil {
		return nil, err
	}
	m, ok := p.(*Member)
	if !ok {
		return nil, fmt.Errorf("%s is a casual user: %w", NormalizeNationalID(id), ErrNotMember)
	}
	return m, nil
}

func (r *Registry) FindMemberByMemberNumber(number string) (*Member, error) {
	m, ok := r.byNumber[strings.ToUpper(strings.TrimSpace(number))]
	if !ok {
		return nil, &NotFoundError{What: "member", Key: number}
	}
	return m, nil
}

// DeleteMember removes a member with no open loans and no open
// consultation. The member number is not reissued.
func (r *Registry) DeleteMember(nationalID string) error {
	m, err := r.FindMember(nationalID)
	if err != nil {
		return err
	}
	if m.HasHoldings() {
		return fmt.Errorf("member %s: %w", m.MemberNumber, ErrPatronHasActiveHoldings)
	}
	delete(r.byID, m.NationalID)
	delete(r.byNumber, m.MemberNumber)
	return nil
}

func (r *Registry) DeleteCasualUser(nationalID string) error {
	p, err := r.FindByNationalID(nationalID)
	if err != nil {
		return err
	}
	u, ok := p.(*CasualUser)
	if !ok {
		return &NotFoundError{What: "casual user", Key: nationalID}
	}
	if u.HasHoldings() {
		return fmt.Errorf("casual user %s: %w", u.NationalID, ErrPatronHasActiveHoldings)
	}
	delete(r.byID, u.NationalID)
	return nil
}

// Members returns all members ordered by member number.
func (r *Registry) Members() []*Member {
	out := make([]*Member, 0, len(r.byNumber))
	for _, m := range r.byNumber {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberNumber < out[j].MemberNumber })
	return out
}

// CasualUsers returns all casual users ordered by national ID.
func (r *Registry) CasualUsers() []*CasualUser {
	var out []*CasualUser
	for _, p := range r.byID {
		if u, ok := p.(*CasualUser); ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NationalID < out[j].NationalID })
	return out
}

func (r *Registry) Len() int { return len(r.byID) }
