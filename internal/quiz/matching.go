package quiz

import (
	"math/rand/v2"

	"github.com/conorfennell/quizdeck/internal/domain"
)

// Matching is the level 3 question sequence. Cards wait in a holding area
// in deck order and each call to Next turns one of them into a question.
// The zero value is an exhausted sequence of length zero.
type Matching struct {
	Pending []domain.Card `json:"pending"`
	Total   int           `json:"total"`
}

// Step is one element served by Matching.Next.
type Step struct {
	Question  *MatchingQuestion `json:"question,omitempty"`
	Completed bool              `json:"completed"`
	Total     int               `json:"total_questions"`
	Remaining int               `json:"remaining"`
}

// NewMatching starts a sequence over every card of deck.
func NewMatching(deck domain.Deck) Matching {
	pending := make([]domain.Card, len(deck.Cards))
	copy(pending, deck.Cards)
	return Matching{Pending: pending, Total: len(pending)}
}

// Next consumes the head of the holding area and returns its question
// together with the advanced sequence. Once nothing is pending it returns
// a completed step carrying the initial length.
//
// Distractor terms come from deck, which should be the deck the sequence
// was started from.
func (m Matching) Next(deck domain.Deck, rng *rand.Rand) (Step, Matching) {
	if len(m.Pending) == 0 {
		return Step{Completed: true, Total: m.Total}, m
	}

	c := m.Pending[0]
	rest := make([]domain.Card, len(m.Pending)-1)
	copy(rest, m.Pending[1:])
	next := Matching{Pending: rest, Total: m.Total}

	candidates := distinctExcept(deck.Cards, c.Term, termOf)
	q := MatchingQuestion{
		Definition:  c.Definition,
		Options:     options(rng, c.Term, candidates),
		CorrectTerm: c.Term,
	}
	return Step{Question: &q, Total: m.Total, Remaining: len(rest)}, next
}
