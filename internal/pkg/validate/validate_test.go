package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_ReportsFailingFields(t *testing.T) {
	type form struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=8"`
	}
	err := Struct(form{Email: "nope", Password: "short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
	assert.Contains(t, err.Error(), "Password")

	require.NoError(t, Struct(form{Email: "a@mail.utdt.edu", Password: "longenough"}))
}

func TestEmail(t *testing.T) {
	assert.True(t, Email("student@mail.utdt.edu"))
	assert.False(t, Email("not-an-email"))
	assert.False(t, Email(""))
}

func TestCampusEmail_AcceptsCampusDomain(t *testing.T) {
	require.NoError(t, CampusEmail("student@mail.utdt.edu", "mail.utdt.edu"))
	// Domain comparison is case-insensitive.
	require.NoError(t, CampusEmail("student@MAIL.UTDT.EDU", "mail.utdt.edu"))
}

func TestCampusEmail_RejectsForeignDomain(t *testing.T) {
	err := CampusEmail("student@gmail.com", "mail.utdt.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail.utdt.edu")
}

func TestCampusEmail_RejectsMalformedAddress(t *testing.T) {
	require.Error(t, CampusEmail("@mail.utdt.edu", "mail.utdt.edu"))
}

func TestCampusEmail_EmptyDomainDisablesRestriction(t *testing.T) {
	require.NoError(t, CampusEmail("anyone@gmail.com", ""))
}
