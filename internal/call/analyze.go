package call

import (
	"fmt"
	"strings"
)

// premiumInfixes are digit sequences associated with premium-rate numbers.
var premiumInfixes = []string{"900", "976", "970"}

// Analysis is the result of the offline number heuristic.
type Analysis struct {
	// Score is the heuristic risk contribution, 0–100.
	Score int

	// Factors lists the human-readable reasons contributing to the score.
	Factors []string
}

// AnalyzeNumber scores a phone number with a simple offline heuristic:
// +10 for an international prefix, +20 for an unusually short number,
// +40 for a known premium-rate infix. The score is capped at 100. The
// heuristic seeds the overlay before the analysis engine reports; it is not
// a substitute for it.
func AnalyzeNumber(number string) (Analysis, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Analysis{}, fmt.Errorf("call: analyze: empty number")
	}

	var a Analysis
	if strings.HasPrefix(number, "+") {
		a.Score += 10
		a.Factors = append(a.Factors, "International number")
	}
	if len(digitsOf(number)) < 7 {
		a.Score += 20
		a.Factors = append(a.Factors, "Unusually short number")
	}
	for _, infix := range premiumInfixes {
		if strings.Contains(number, infix) {
			a.Score += 40
			a.Factors = append(a.Factors, "Contains premium-rate sequence")
			break
		}
	}
	if a.Score > 100 {
		a.Score = 100
	}
	return a, nil
}

// digitsOf strips everything but decimal digits from number.
func digitsOf(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RiskLevel derives the display label for a risk score when the analysis
// engine does not supply one.
func RiskLevel(score int) string {
	switch {
	case score >= 70:
		return "High Risk"
	case score >= 40:
		return "Medium Risk"
	default:
		return "Low Risk"
	}
}

// FormatPhoneNumber renders a NANP number as (AAA) BBB-CCCC. Numbers that do
// not fit the ten-digit pattern are returned unchanged.
func FormatPhoneNumber(number string) string {
	digits := digitsOf(number)
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	default:
		return number
	}
}
