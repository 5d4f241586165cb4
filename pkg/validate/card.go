package validate

import (
	"strings"

	"github.com/ShiraazMoollatjie/goluhn"
)

// IsCardNumber reports whether s looks like a payment card number:
// 12 to 19 digits, optionally grouped with spaces, passing the Luhn check.
func IsCardNumber(s string) bool {
	digits := strings.ReplaceAll(s, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	return goluhn.Validate(digits) == nil
}
