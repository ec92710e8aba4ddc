package app

import (
	"strings"

	"checkout-engine/internal/core/domain"
)

// ProjectBillingAddress maps the provider billing address to a local address.
// Sweden, Norway and Finland send street_address; Germany and Austria send
// street_name and street_number. An empty street_address counts as absent.
func ProjectBillingAddress(src domain.BillingAddress) domain.Address {
	line1 := src.StreetAddress
	if line1 == "" && src.StreetName != "" {
		line1 = src.StreetName + " " + src.StreetNumber
	}
	return domain.Address{
		GivenName:    src.GivenName,
		FamilyName:   src.FamilyName,
		AddressLine1: line1,
		PostalCode:   src.PostalCode,
		Locality:     src.City,
		CountryCode:  strings.ToUpper(src.Country),
	}
}

// UpdateBillingProfile writes the projected address into the order's billing
// profile. Orders without a billing profile are left alone.
func UpdateBillingProfile(order *domain.Order, src domain.BillingAddress) bool {
	if order.BillingProfile == nil {
		return false
	}
	order.BillingProfile.Address = ProjectBillingAddress(src)
	return true
}
