// Package contact canonicalizes phone numbers and email addresses into stable
// addressing keys.
package contact

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidFormat is returned when an identifier has no canonical form.
var ErrInvalidFormat = errors.New("contact: invalid identifier format")

// UnknownCurrency is returned by CurrencyOf when no mapping exists.
const UnknownCurrency = "unknown"

// Normalizer canonicalizes identifiers.
type Normalizer struct {
	defaultRegion string
}

// NewNormalizer returns a Normalizer. defaultRegion (ISO 3166 alpha-2, e.g.
// "ID") is used for phone input without a leading '+'; leave it empty to
// accept international input only.
func NewNormalizer(defaultRegion string) *Normalizer {
	return &Normalizer{defaultRegion: strings.ToUpper(strings.TrimSpace(defaultRegion))}
}

// Phone returns raw in E.164 format.
func (n *Normalizer) Phone(raw string) (string, error) {
	num, err := n.parse(raw)
	if err != nil {
		return "", err
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Email returns raw lowercased and trimmed. It must be a bare address, a
// display name form such as "Bob <bob@x.io>" is rejected.
func (n *Normalizer) Email(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidFormat
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidFormat
	}

	return email, nil
}

// Region returns the ISO 3166 alpha-2 region of a phone number, or "" when
// it cannot be derived.
func (n *Normalizer) Region(phone string) string {
	num, err := n.parse(phone)
	if err != nil {
		return ""
	}

	return phonenumbers.GetRegionCodeForNumber(num)
}

// CurrencyOf maps the region of a phone number to an ISO 4217 currency code.
// It returns UnknownCurrency instead of failing.
func (n *Normalizer) CurrencyOf(phone string) string {
	return CurrencyForRegion(n.Region(phone))
}

func (n *Normalizer) parse(raw string) (*phonenumbers.PhoneNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidFormat
	}

	num, err := phonenumbers.Parse(raw, n.defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return nil, ErrInvalidFormat
	}

	return num, nil
}
