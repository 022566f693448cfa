package shared

import "strings"

// OnlyDigits strips every non-digit rune from s.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF validates a Brazilian CPF using its two mod-11 check digits.
// Punctuation is ignored; repeated-digit sequences are rejected.
func ValidCPF(cpf string) bool {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return false
	}
	if allSame(digits) {
		return false
	}
	first := checkDigit(digits[:9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2})
	second := checkDigit(digits[:10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(digits[9]-'0') == first && int(digits[10]-'0') == second
}

// ValidCNPJ validates a Brazilian CNPJ using its two mod-11 check digits.
func ValidCNPJ(cnpj string) bool {
	digits := OnlyDigits(cnpj)
	if len(digits) != 14 {
		return false
	}
	if allSame(digits) {
		return false
	}
	first := checkDigit(digits[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	second := checkDigit(digits[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(digits[12]-'0') == first && int(digits[13]-'0') == second
}

// ValidDocument accepts either a CPF (11 digits) or a CNPJ (14 digits).
func ValidDocument(doc string) bool {
	switch len(OnlyDigits(doc)) {
	case 11:
		return ValidCPF(doc)
	case 14:
		return ValidCNPJ(doc)
	default:
		return false
	}
}

func checkDigit(digits string, weights []int) int {
	total := 0
	for i, w := range weights {
		total += int(digits[i]-'0') * w
	}
	remainder := total % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
