package game

import "testing"

func TestScore_RoundsToNearestPercent(t *testing.T) {
	guesses := make([]ImageGuess, 0, 8)
	for i := 0; i < 8; i++ {
		guesses = append(guesses, ImageGuess{ImageID: "x", Correct: i < 6})
	}
	got := Score(guesses)
	if got.Score != 75 || got.CorrectCount != 6 || got.TotalCount != 8 {
		t.Fatalf("Score() = %+v, want 75 (6/8)", got)
	}
}

func TestScore_ThirdRoundsUp(t *testing.T) {
	guesses := []ImageGuess{
		{ImageID: "a", Correct: true},
		{ImageID: "b", Correct: true},
		{ImageID: "c", Correct: false},
	}
	if got := Score(guesses); got.Score != 67 {
		t.Fatalf("Score() = %d, want 67", got.Score)
	}
}

func TestScore_EmptyGuesses(t *testing.T) {
	got := Score(nil)
	if got.Score != 0 || got.CorrectCount != 0 || got.TotalCount != 0 {
		t.Fatalf("Score(nil) = %+v, want zero summary", got)
	}
}
