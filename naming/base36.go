package naming

// The compact dialect writes timestamps and volume numbers in base 36
// using digits 0-9a-z. Both directions are exact over the full non-negative
// int64 range; a second in base 36 is roughly half the width of its
// decimal form.

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// formatBase36 renders n in base 36. n must be non-negative.
func formatBase36(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [13]byte // 13 digits cover MaxInt64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base36Digits[n%36]
		n /= 36
	}
	return string(buf[i:])
}

// parseBase36 converts a base-36 string back to an integer. It reports
// false for an empty string, a digit outside 0-9a-z, or overflow.
func parseBase36(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var total int64
	for i := 0; i < len(s); i++ {
		var d int64
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'z':
			d = int64(c-'a') + 10
		default:
			return 0, false
		}
		if total > (1<<63-1-d)/36 {
			return 0, false
		}
		total = total*36 + d
	}
	return total, true
}
