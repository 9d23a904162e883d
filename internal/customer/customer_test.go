package customer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPartialKeepsMissingFields(t *testing.T) {
	addr := Address{Country: "SE", State: "AB", Postcode: "11122", City: "Stockholm", Address1: "Gatan 1"}
	addr.ApplyPartial(Partial{Country: "no", City: "Oslo"})

	require.Equal(t, "NO", addr.Country)
	require.Equal(t, "AB", addr.State)
	require.Equal(t, "11122", addr.Postcode)
	require.Equal(t, "Oslo", addr.City)
	require.Equal(t, "Gatan 1", addr.Address1)
}

func TestApplyPartialIgnoresBlank(t *testing.T) {
	addr := Address{Country: "US"}
	addr.ApplyPartial(Partial{Country: "  ", PostalCode: "94107"})
	require.Equal(t, "US", addr.Country)
	require.Equal(t, "94107", addr.Postcode)
}

func TestCollectedAddress(t *testing.T) {
	got := CollectedAddress{GivenName: "Ada", FamilyName: "L", Country: "gb", PostalCode: "N1"}.Address()
	require.Equal(t, "Ada", got.FirstName)
	require.Equal(t, "GB", got.Country)
	require.Equal(t, "N1", got.Postcode)
}

func TestMergeSkipsEmpty(t *testing.T) {
	addr := Address{FirstName: "Ada", City: "London", Email: "ada@example.com"}
	addr.Merge(Address{City: "Paris", Postcode: "75001"})
	require.Equal(t, Address{FirstName: "Ada", City: "Paris", Postcode: "75001", Email: "ada@example.com"}, addr)
}
