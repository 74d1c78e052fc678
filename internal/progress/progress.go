// Package progress implements the per-visitor level state machine.
//
// State is a plain value. Every transition takes the current state and
// returns the next one; persisting it between requests is the caller's job.
package progress

import (
	"fmt"
	"math/rand/v2"

	"github.com/conorfennell/quizdeck/internal/answer"
	"github.com/conorfennell/quizdeck/internal/domain"
	"github.com/conorfennell/quizdeck/internal/quiz"
)

// Level identifies a quiz mode. The zero value means no level was entered.
type Level int

const (
	LevelNone      Level = 0
	LevelTrueFalse Level = 1
	LevelRecall    Level = 2
	LevelMatching  Level = 3
)

// State is the progress record kept for one visitor.
type State struct {
	CurrentLevel      Level
	Score             int
	QuestionsAnswered int
	TotalQuestions    int
	Level1Completed   bool
	Level2Completed   bool
	Level3Completed   bool
	Deck              string
	Matching          quiz.Matching
}

// Outcome is the result of entering a level. When Redirect is set the
// caller must send the visitor to that level instead; the state is returned
// unchanged in that case.
type Outcome struct {
	Redirect Level
}

// Granted reports whether the requested level was entered.
func (o Outcome) Granted() bool {
	return o.Redirect == LevelNone
}

// EnterLevel1 starts the true/false quiz over total questions. The score
// only starts from zero for a visitor who has never entered a level.
func EnterLevel1(s State, deckID string, total int) State {
	if s.CurrentLevel == LevelNone {
		s.Score = 0
	}
	s.CurrentLevel = LevelTrueFalse
	s.Deck = deckID
	s.QuestionsAnswered = 0
	s.TotalQuestions = total
	s.Level1Completed = false
	return s
}

// EnterLevel2 starts the recall quiz. Visitors who never entered level 1
// are redirected there.
func EnterLevel2(s State, deckID string, deck domain.Deck) (Outcome, State) {
	if s.CurrentLevel == LevelNone {
		return Outcome{Redirect: LevelTrueFalse}, s
	}
	s.CurrentLevel = LevelRecall
	s.Deck = deckID
	s.QuestionsAnswered = 0
	s.TotalQuestions = len(deck.Cards)
	return Outcome{}, s
}

// EnterLevel3 starts the matching sequence. It is only granted once level 2
// is complete; otherwise the visitor is redirected to level 2.
func EnterLevel3(s State, deckID string, deck domain.Deck) (Outcome, State) {
	if !s.Level2Completed {
		return Outcome{Redirect: LevelRecall}, s
	}
	s.CurrentLevel = LevelMatching
	s.Deck = deckID
	s.QuestionsAnswered = 0
	s.TotalQuestions = len(deck.Cards)
	s.Matching = quiz.NewMatching(deck)
	return Outcome{}, s
}

// LevelError is returned when an answer arrives for a level the visitor
// is not currently in. It wraps domain.ErrState.
type LevelError struct {
	Want Level
	Have Level
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("answer for level %d while in level %d", e.Want, e.Have)
}

func (e *LevelError) Unwrap() error { return domain.ErrState }

// Result describes a scored answer.
type Result struct {
	Correct           bool   `json:"correct"`
	Score             int    `json:"score"`
	QuestionsAnswered int    `json:"questions_answered"`
	TotalQuestions    int    `json:"total_questions"`
	LevelCompleted    bool   `json:"level_completed"`
	CorrectAnswer     string `json:"correct_answer,omitempty"`
}

// AnswerTrueFalse scores one true/false answer. Every answer counts toward
// completion; only correct ones raise the score.
func AnswerTrueFalse(s State, given, correct bool) (Result, State, error) {
	if s.CurrentLevel != LevelTrueFalse {
		return Result{}, s, &LevelError{Want: LevelTrueFalse, Have: s.CurrentLevel}
	}
	ok := given == correct
	if ok {
		s.Score++
	}
	s.QuestionsAnswered++
	if s.QuestionsAnswered >= s.TotalQuestions {
		s.Level1Completed = true
	}
	return Result{
		Correct:           ok,
		Score:             s.Score,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
		LevelCompleted:    s.Level1Completed,
	}, s, nil
}

// AnswerRecall checks a typed definition for term. Only correct answers
// advance the level, so a visitor keeps going until every card is recalled.
func AnswerRecall(s State, deck domain.Deck, term, given string) (Result, State, error) {
	if s.CurrentLevel != LevelRecall {
		return Result{}, s, &LevelError{Want: LevelRecall, Have: s.CurrentLevel}
	}
	card, found := deck.FindByTerm(term)
	if !found {
		return Result{}, s, domain.Validationf("term %q is not in the deck", term)
	}

	ok := answer.Match(given, card.Definition)
	if ok {
		s.Score++
		s.QuestionsAnswered++
	}
	if s.QuestionsAnswered >= s.TotalQuestions {
		s.Level2Completed = true
	}
	return Result{
		Correct:           ok,
		Score:             s.Score,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
		LevelCompleted:    s.Level2Completed,
		CorrectAnswer:     card.Definition,
	}, s, nil
}

// AnswerMatching checks a selected term. Level 3 is scored by the client
// and reported through SubmitFinal, so the state is only used for reading.
func AnswerMatching(s State, selected, correctTerm string) Result {
	return Result{
		Correct:           answer.Match(selected, correctTerm),
		Score:             s.Score,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
		LevelCompleted:    s.Level3Completed,
	}
}

// NextMatching serves the next level 3 question, or the completed signal
// once the sequence is exhausted.
func NextMatching(s State, deck domain.Deck, rng *rand.Rand) (quiz.Step, State) {
	step, m := s.Matching.Next(deck, rng)
	s.Matching = m
	if step.Question != nil {
		s.QuestionsAnswered++
	}
	return step, s
}

// Final echoes a level 3 score submission.
type Final struct {
	Message        string `json:"message"`
	FinalScore     int    `json:"final_score"`
	TotalQuestions int    `json:"total_questions"`
}

// SubmitFinal records the client-reported level 3 score and marks the
// level complete. The score is taken as submitted; it is not re-derived
// from the answers served by NextMatching. A negative score counts as zero.
func SubmitFinal(s State, finalScore, totalQuestions int) (Final, State) {
	s.Score += max(finalScore, 0)
	s.Level3Completed = true
	return Final{
		Message:        "Level 3 complete",
		FinalScore:     finalScore,
		TotalQuestions: totalQuestions,
	}, s
}

// Summary is the progress report for the current level.
type Summary struct {
	QuizComplete      bool  `json:"quiz_complete"`
	Score             int   `json:"score"`
	LevelCompleted    bool  `json:"level_completed"`
	CurrentLevel      Level `json:"current_level"`
	QuestionsAnswered int   `json:"questions_answered"`
	TotalQuestions    int   `json:"total_questions"`
}

// Summarize reports on the level the visitor is currently in. The quiz is
// complete once every question of that level has been answered.
func Summarize(s State) Summary {
	var levelDone bool
	switch s.CurrentLevel {
	case LevelTrueFalse:
		levelDone = s.Level1Completed
	case LevelRecall:
		levelDone = s.Level2Completed
	case LevelMatching:
		levelDone = s.Level3Completed
	}
	return Summary{
		QuizComplete:      s.TotalQuestions > 0 && s.QuestionsAnswered >= s.TotalQuestions,
		Score:             s.Score,
		LevelCompleted:    levelDone,
		CurrentLevel:      s.CurrentLevel,
		QuestionsAnswered: s.QuestionsAnswered,
		TotalQuestions:    s.TotalQuestions,
	}
}
