package lending_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
)

func person(nid string) lending.Person {
	return lending.Person{NationalID: nid, Name: "Ana García", Phone: "600111222", Address: "Calle Mayor 1"}
}

func TestRegistry_MemberNumbers(t *testing.T) {
	r := lending.NewRegistry(identity.Valid)

	m1, err := r.RegisterMember(person(ana))
	require.NoError(t, err)
	m2, err := r.RegisterMember(person(luis))
	require.NoError(t, err)

	assert.Equal(t, "S0000000001", m1.MemberNumber)
	assert.Equal(t, "S0000000002", m2.MemberNumber)

	got, err := r.FindMemberByMemberNumber("s0000000002")
	require.NoError(t, err)
	assert.Same(t, m2, got)

	// Deleted numbers are not reissued
	require.NoError(t, r.DeleteMember(luis))
	m3, err := r.RegisterMember(person(marta))
	require.NoError(t, err)
	assert.Equal(t, "S0000000003", m3.MemberNumber)
}

func TestRegistry_NormalizesNationalID(t *testing.T) {
	r := lending.NewRegistry(identity.Valid)

	u, err := r.RegisterCasualUser(person(" x0000000t "))
	require.NoError(t, err)

	assert.Equal(t, "X0000000T", u.NationalID)
	p, err := r.FindByNationalID("x0000000t")
	require.NoError(t, err)
	assert.False(t, p.IsMember())
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		p     lending.Person
		field string
	}{
		{"bad checksum", lending.Person{NationalID: "12345678A", Name: "Ana", Phone: "600", Address: "Mayor 1"}, "national_id"},
		{"missing name", lending.Person{NationalID: ana, Phone: "600", Address: "Mayor 1"}, "name"},
		{"missing address", lending.Person{NationalID: ana, Name: "Ana", Phone: "600"}, "address"},
		{"phone with letters", lending.Person{NationalID: ana, Name: "Ana", Phone: "600-abc", Address: "Mayor 1"}, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := lending.NewRegistry(identity.Valid)

			_, err := r.RegisterMember(tt.p)

			var in *lending.InputError
			require.ErrorAs(t, err, &in)
			assert.Equal(t, tt.field, in.Field)
			assert.Zero(t, r.Len())
		})
	}
}

func TestRegistry_NilValidatorAcceptsAnyID(t *testing.T) {
	r := lending.NewRegistry(nil)

	_, err := r.RegisterMember(person("12345678A"))

	assert.NoError(t, err)
}

func TestRegistry_DuplicateAcrossKinds(t *testing.T) {
	r := lending.NewRegistry(identity.Valid)
	_, err := r.RegisterMember(person(ana))
	require.NoError(t, err)

	_, err = r.RegisterCasualUser(person(ana))

	var exists *lending.ExistsError
	require.ErrorAs(t, err, &exists)
	assert.ErrorIs(t, err, lending.ErrPatronExists)
	assert.Equal(t, "S0000000001", exists.ExistingID)
}

func TestRegistry_FindMemberRejectsCasualUser(t *testing.T) {
	r := lending.NewRegistry(identity.Valid)
	_, err := r.RegisterCasualUser(person(ben))
	require.NoError(t, err)

	_, err = r.FindMember(ben)
	assert.ErrorIs(t, err, lending.ErrNotMember)

	err = r.DeleteMember(ben)
	assert.ErrorIs(t, err, lending.ErrNotMember)

	require.NoError(t, r.DeleteCasualUser(ben))
	_, err = r.FindByNationalID(ben)
	assert.True(t, lending.IsNotFound(err))
}

func TestRegistry_Listings(t *testing.T) {
	r := lending.NewRegistry(identity.Valid)
	for _, nid := range []string{luis, ana} {
		_, err := r.RegisterMember(person(nid))
		require.NoError(t, err)
	}
	for _, nid := range []string{"Y0000000Z", ben} {
		_, err := r.RegisterCasualUser(person(nid))
		require.NoError(t, err)
	}

	members := r.Members()
	require.Len(t, members, 2)
	assert.Equal(t, luis, members[0].NationalID)

	casual := r.CasualUsers()
	require.Len(t, casual, 2)
	assert.Equal(t, ben, casual[0].NationalID)
	assert.Equal(t, 4, r.Len())
}
