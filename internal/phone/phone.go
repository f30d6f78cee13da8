package phone

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a mobile number cannot be normalized to a
// Syrian mobile in E.164 form.
var ErrInvalidPhone = errors.New("invalid mobile number")

const countryPrefix = "+963"

// digits strips every non-digit rune from the input.
func digits(mobile string) string {
	var b strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lastNine returns the significant 9-digit suffix, or "" when the input has
// fewer than 9 digits.
func lastNine(mobile string) string {
	d := digits(mobile)
	if len(d) < 9 {
		return ""
	}
	return d[len(d)-9:]
}

// ToE164 normalizes a free-form mobile number to E.164. Syrian mobiles carry a
// 9-digit subscriber number starting with 9; anything else is rejected before
// a network call is ever made.
func ToE164(mobile string) (string, error) {
	nine := lastNine(mobile)
	if nine == "" || nine[0] != '9' {
		return "", ErrInvalidPhone
	}
	return countryPrefix + nine, nil
}

// ToLocalForm normalizes a mobile number to the 0-prefixed local form stored
// in profile rows. Used for the pre-registration duplicate check only.
func ToLocalForm(mobile string) (string, error) {
	nine := lastNine(mobile)
	if nine == "" {
		return "", ErrInvalidPhone
	}
	return "0" + nine, nil
}

// LoginKey derives the identity provider login identifier from an E.164
// number. The mapping is one-way and must stay byte-identical everywhere a
// phone number resolves to the same account.
func LoginKey(e164 string) string {
	return "sy" + strings.TrimPrefix(e164, "+") + "@email.com"
}

// LastNine exposes the 9-digit suffix used when comparing a submitted mobile
// against the cached one during offline login.
func LastNine(mobile string) string {
	return lastNine(mobile)
}

// DisplayForm renders a mobile number the way the roster shows it: local form
// when the number normalizes, the raw input otherwise.
func DisplayForm(mobile string) string {
	nine := lastNine(mobile)
	if nine == "" || nine[0] != '9' {
		return mobile
	}
	return "0" + nine
}

// WhatsAppNumber converts a stored mobile to the international digits-only
// form wa.me links expect.
func WhatsAppNumber(mobile string) string {
	d := digits(mobile)
	switch {
	case strings.HasPrefix(d, "09"):
		return "963" + d[1:]
	case strings.HasPrefix(d, "963"):
		return d
	case strings.HasPrefix(d, "9"):
		return "963" + d
	default:
		return d
	}
}
