package validate

import (
	"strings"
	"time"
	"unicode"
)

// NormalizeRut strips dots, blanks and dashes and returns BODY-DV with an
// upper-case check digit, e.g. "12.345.678-k" -> "12345678-K".
func NormalizeRut(rut string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(rut) {
		if unicode.IsDigit(r) || r == 'K' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) < 2 {
		return s
	}
	return s[:len(s)-1] + "-" + s[len(s)-1:]
}

// ValidRut checks the modulo 11 check digit of a Chilean RUT.
func ValidRut(rut string) bool {
	n := NormalizeRut(rut)
	dash := strings.IndexByte(n, '-')
	if dash < 1 || dash > 8 {
		return false
	}
	body, dv := n[:dash], n[dash+1:]
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	return rutCheckDigit(body) == dv
}

func rutCheckDigit(body string) string {
	sum, mul := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * mul
		mul++
		if mul > 7 {
			mul = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return string(rune('0' + r))
	}
}

// FormatPhone renders a Chilean number for display as "+56 9 1234 5678".
// Anything it does not recognise is returned trimmed and unchanged.
func FormatPhone(phone string) string {
	var digits []byte
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	d := string(digits)
	if len(d) == 11 && strings.HasPrefix(d, "56") {
		d = d[2:]
	}
	if len(d) != 9 {
		return strings.TrimSpace(phone)
	}
	return "+56 " + d[:1] + " " + d[1:5] + " " + d[5:]
}

func validTimezone(tz string) bool {
	if tz == "" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}
