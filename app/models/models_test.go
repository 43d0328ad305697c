package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIdentity() *Identity {
	return &Identity{
		LoginName: "theo",
		Password:  "p",
		LastName:  "Theodor",
		Email:     "theo@test.de",
		Address:   Address{PostalCode: "76133", City: "Karlsruhe", Street: "Moltkestr", HouseNumber: "30"},
	}
}

func TestValidateRegistration_OK(t *testing.T) {
	c := NewPrivateCustomer(validIdentity())
	c.Discount = decimal.RequireFromString("0.1234")
	require.NoError(t, ValidateRegistration(c, c.Identity))
}

func TestValidateRegistration_Violations(t *testing.T) {
	id := validIdentity()
	id.Email = "not-an-email"
	id.LastName = "lowercase"

	c := NewPrivateCustomer(id)
	c.Category = 6
	c.Discount = decimal.RequireFromString("0.51")
	c.Revenue = decimal.RequireFromString("1.001")
	c.Since = time.Now().Add(time.Hour)
	c.TermsAccepted = false

	err := ValidateRegistration(c, id)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	for _, field := range []string{"category", "discount", "revenue", "since", "termsAccepted", "identity.email", "identity.lastName"} {
		assert.True(t, ve.Has(field), "expected violation on %s: %v", field, ve)
	}
}

func TestValidate_CorporateWithPrivatePayload(t *testing.T) {
	c := NewCorporateCustomer(validIdentity())
	c.Private.Gender = Male
	var ve *ValidationError
	require.True(t, errors.As(Validate(c), &ve))
	assert.True(t, ve.Has("private"))
}

func TestLastNamePattern(t *testing.T) {
	for _, ok := range []string{"Müller", "Meyer-Lüdenscheidt", "von Goethe", "van Beethoven"} {
		assert.True(t, lastNameRe.MatchString(ok), ok)
	}
	for _, bad := range []string{"müller", "M", "Meyer-", "Smith3"} {
		assert.False(t, lastNameRe.MatchString(bad), bad)
	}
}

func TestOrderTotalAccumulates(t *testing.T) {
	var o Order
	o.AddLine(OrderLine{ArticleID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("1.50")})
	o.AddLine(OrderLine{ArticleID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")})
	o.AddLine(OrderLine{ArticleID: 3, Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")})

	assert.True(t, decimal.RequireFromString("13.30").Equal(o.Total), o.Total.String())
	assert.Equal(t, 2, o.Lines[2].Idx)
}

func TestCustomerCloneIsDeep(t *testing.T) {
	fileID := uint(7)
	c := NewPrivateCustomer(validIdentity())
	c.FileID = &fileID
	c.Private.Hobbies = []Hobby{HobbySport}
	c.Orders = []Order{{ID: 1, Lines: []OrderLine{{ID: 1, Quantity: 1}}}}
	c.Identity.Roles = []Role{RoleCustomer}

	cp := c.Clone()
	cp.Private.Hobbies[0] = HobbyTravel
	cp.Orders[0].Lines[0].Quantity = 9
	cp.Identity.Email = "changed@test.de"
	cp.Identity.Roles[0] = RoleAdmin
	*cp.FileID = 8

	assert.Equal(t, HobbySport, c.Private.Hobbies[0])
	assert.Equal(t, 1, c.Orders[0].Lines[0].Quantity)
	assert.Equal(t, "theo@test.de", c.Identity.Email)
	assert.Equal(t, RoleCustomer, c.Identity.Roles[0])
	assert.EqualValues(t, 7, *c.FileID)
}

func TestMimeTypes(t *testing.T) {
	mt, err := ParseMimeType("image/PNG; charset=binary")
	require.NoError(t, err)
	assert.Equal(t, MimePNG, mt)
	assert.Equal(t, "png", mt.Extension())
	assert.Equal(t, Image, mt.Kind())

	mt, err = DetectMimeType([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	assert.Equal(t, MimePNG, mt)

	_, err = ParseMimeType("application/pdf")
	assert.Error(t, err)

	assert.Equal(t, "Customer_42.jpg", AttachmentFilename("Customer", 42, MimePJPEG))
	assert.Equal(t, Audio, MimeWAV.Kind())
}

func TestIdentitySameProfile(t *testing.T) {
	a := validIdentity()
	a.Password = ""
	b := a.Clone()
	assert.True(t, a.SameProfile(b))

	b.Address.City = "Berlin"
	assert.False(t, a.SameProfile(b))

	c := a.Clone()
	c.Password = "new"
	assert.False(t, c.SameProfile(a))
}
