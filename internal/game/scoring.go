package game

import "math"

// ScoreSummary is the result of scoring a guess list.
type ScoreSummary struct {
	CorrectCount int
	TotalCount   int
	Score        int
}

// Score computes the session score from recorded guesses. Pure function:
// score = round(100 * correct / total), 0 when there are no guesses.
func Score(guesses []ImageGuess) ScoreSummary {
	total := len(guesses)
	if total == 0 {
		return ScoreSummary{}
	}
	correct := 0
	for _, g := range guesses {
		if g.Correct {
			correct++
		}
	}
	return ScoreSummary{
		CorrectCount: correct,
		TotalCount:   total,
		Score:        int(math.Round(float64(correct) / float64(total) * 100)),
	}
}
