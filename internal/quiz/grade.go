package quiz

// Score is the tally of a finished quiz.
type Score struct {
	Correct int
	Total   int
	Ratio   float64
	Grade   string
}

// NewScore computes the ratio and letter grade for correct out of total.
// Unanswered questions count as wrong; an empty bank scores zero.
func NewScore(correct, total int) Score {
	var ratio float64
	if total > 0 {
		ratio = float64(correct) / float64(total)
	}
	return Score{Correct: correct, Total: total, Ratio: ratio, Grade: Grade(ratio)}
}

// Grade maps a correctness ratio to A-D.
func Grade(ratio float64) string {
	switch {
	case ratio >= 0.75:
		return "A"
	case ratio >= 0.50:
		return "B"
	case ratio >= 0.25:
		return "C"
	default:
		return "D"
	}
}
