package domain

// MaskedIdentifier is a display-safe taxpayer identifier. Once produced there
// is no way back to the unmasked source.
type MaskedIdentifier string

func (m MaskedIdentifier) String() string { return string(m) }

const (
	maskPrefix    = "***-**-"
	maskedUnknown = MaskedIdentifier(maskPrefix + "****")
)

// MaskIdentifier irreversibly masks a taxpayer identifier down to a constant
// prefix plus the last four digits. Fewer than four digits masks fully.
// Masking an already-masked value returns it unchanged.
func MaskIdentifier(identifier string) MaskedIdentifier {
	digits := digitsOf(identifier)
	if len(digits) < 4 {
		return maskedUnknown
	}
	return MaskedIdentifier(maskPrefix + digits[len(digits)-4:])
}

func digitsOf(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
