package mpesa

import (
	"errors"
	"regexp"
	"strings"
)

var nonNumericRegex = regexp.MustCompile(`[^0-9]`)

// ErrInvalidPhone is returned for numbers that are not Kenyan mobile
// numbers.
var ErrInvalidPhone = errors.New("invalid M-Pesa phone number format")

// NormalizePhone converts 07XXXXXXXX, 01XXXXXXXX, 7XXXXXXXX, +2547XXXXXXXX
// and similar spellings to the 2547XXXXXXXX form the gateway expects.
func NormalizePhone(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	switch {
	case (strings.HasPrefix(sanitized, "07") || strings.HasPrefix(sanitized, "01")) && len(sanitized) == 10:
		return "254" + sanitized[1:], nil
	case (strings.HasPrefix(sanitized, "7") || strings.HasPrefix(sanitized, "1")) && len(sanitized) == 9:
		return "254" + sanitized, nil
	case (strings.HasPrefix(sanitized, "2547") || strings.HasPrefix(sanitized, "2541")) && len(sanitized) == 12:
		return sanitized, nil
	}
	return "", ErrInvalidPhone
}
