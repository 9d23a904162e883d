package customer

import "strings"

// Address is a postal address as stored on the customer and on orders.
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Partial is the coarse address Klarna shares while the customer is still choosing shipping.
type Partial struct {
	Country    string `json:"country"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
}

// ApplyPartial copies every non-empty field of p onto the address.
func (a *Address) ApplyPartial(p Partial) {
	if v := strings.TrimSpace(p.Country); v != "" {
		a.Country = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(p.Region); v != "" {
		a.State = v
	}
	if v := strings.TrimSpace(p.PostalCode); v != "" {
		a.Postcode = v
	}
	if v := strings.TrimSpace(p.City); v != "" {
		a.City = v
	}
}

// Customer is the session-scoped shopper.
type Customer struct {
	UserID   int64   `json:"user_id"`
	Billing  Address `json:"billing"`
	Shipping Address `json:"shipping"`
}

// CollectedAddress is the full address returned by Klarna after authorization.
type CollectedAddress struct {
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	OrganizationName string `json:"organization_name,omitempty"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	StreetAddress    string `json:"street_address"`
	StreetAddress2   string `json:"street_address2"`
	PostalCode       string `json:"postal_code"`
	City             string `json:"city"`
	Region           string `json:"region"`
	Country          string `json:"country"`
}

// Address maps the collected address into the store's address shape.
func (c CollectedAddress) Address() Address {
	return Address{
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		Company:   c.OrganizationName,
		Address1:  c.StreetAddress,
		Address2:  c.StreetAddress2,
		City:      c.City,
		State:     c.Region,
		Postcode:  c.PostalCode,
		Country:   strings.ToUpper(c.Country),
		Email:     c.Email,
		Phone:     c.Phone,
	}
}

// Merge copies every non-empty field of src onto the address.
func (a *Address) Merge(src Address) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&a.FirstName, src.FirstName)
	set(&a.LastName, src.LastName)
	set(&a.Company, src.Company)
	set(&a.Address1, src.Address1)
	set(&a.Address2, src.Address2)
	set(&a.City, src.City)
	set(&a.State, src.State)
	set(&a.Postcode, src.Postcode)
	set(&a.Country, src.Country)
	set(&a.Email, src.Email)
	set(&a.Phone, src.Phone)
}
