// Package quiz builds question sets for the three quiz levels from a deck.
//
// Every builder takes an explicit random source so callers control
// determinism; a fixed seed yields the same questions on every call.
package quiz

import (
	"math/rand/v2"

	"github.com/conorfennell/quizdeck/internal/domain"
)

// MaxDistractors is the number of wrong options offered per question when
// the deck is large enough.
const MaxDistractors = 3

// TrueFalseQuestion pairs a term with a definition that may or may not be
// its own.
type TrueFalseQuestion struct {
	Term          string `json:"term"`
	Definition    string `json:"definition"`
	CorrectAnswer bool   `json:"correct_answer"`
}

// RecallQuestion asks for the definition of a term as free text.
type RecallQuestion struct {
	Term       string `json:"term"`
	Definition string `json:"-"`
}

// MultipleChoiceQuestion shows a term and asks for its definition.
type MultipleChoiceQuestion struct {
	Term          string   `json:"term"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// MatchingQuestion shows a definition and asks for the term it belongs to.
type MatchingQuestion struct {
	Definition  string   `json:"definition"`
	Options     []string `json:"options"`
	CorrectTerm string   `json:"correct_term"`
}

// NewRand returns a random source. A zero seed draws from the runtime's
// global generator, anything else is reproducible.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// BuildTrueFalseSet emits, for every card, a true pairing with its own
// definition and, when another card carries a different definition, a false
// pairing with one of those chosen uniformly. The result is shuffled.
func BuildTrueFalseSet(deck domain.Deck, rng *rand.Rand) ([]TrueFalseQuestion, error) {
	if err := deck.Validate(); err != nil {
		return nil, err
	}

	questions := make([]TrueFalseQuestion, 0, 2*len(deck.Cards))
	for i, c := range deck.Cards {
		questions = append(questions, TrueFalseQuestion{
			Term:          c.Term,
			Definition:    c.Definition,
			CorrectAnswer: true,
		})

		var others []string
		for j, o := range deck.Cards {
			if j != i && o.Definition != c.Definition {
				others = append(others, o.Definition)
			}
		}
		if len(others) == 0 {
			continue
		}
		questions = append(questions, TrueFalseQuestion{
			Term:          c.Term,
			Definition:    others[rng.IntN(len(others))],
			CorrectAnswer: false,
		})
	}

	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions, nil
}

// BuildRecallSet returns one recall prompt per card, in deck order.
func BuildRecallSet(deck domain.Deck) ([]RecallQuestion, error) {
	if err := deck.Validate(); err != nil {
		return nil, err
	}
	questions := make([]RecallQuestion, len(deck.Cards))
	for i, c := range deck.Cards {
		questions[i] = RecallQuestion{Term: c.Term, Definition: c.Definition}
	}
	return questions, nil
}

// BuildMultipleChoiceSet offers, for every card, its definition together
// with up to MaxDistractors definitions from other cards.
func BuildMultipleChoiceSet(deck domain.Deck, rng *rand.Rand) ([]MultipleChoiceQuestion, error) {
	if err := deck.Validate(); err != nil {
		return nil, err
	}

	questions := make([]MultipleChoiceQuestion, 0, len(deck.Cards))
	for _, c := range deck.Cards {
		candidates := distinctExcept(deck.Cards, c.Definition, definitionOf)
		questions = append(questions, MultipleChoiceQuestion{
			Term:          c.Term,
			Options:       options(rng, c.Definition, candidates),
			CorrectAnswer: c.Definition,
		})
	}

	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions, nil
}

// options samples min(MaxDistractors, len(candidates)) distractors, adds the
// correct value and shuffles the result.
func options(rng *rand.Rand, correct string, candidates []string) []string {
	k := min(MaxDistractors, len(candidates))
	opts := append(sample(rng, candidates, k), correct)
	rng.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	return opts
}

func termOf(c domain.Card) string       { return c.Term }
func definitionOf(c domain.Card) string { return c.Definition }

// distinctExcept collects the distinct field values of cards, leaving out
// own. Duplicate values would otherwise show up as identical options.
func distinctExcept(cards []domain.Card, own string, field func(domain.Card) string) []string {
	seen := map[string]bool{own: true}
	var out []string
	for _, c := range cards {
		v := field(c)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sample picks k distinct elements of candidates without replacement.
// It panics if k > len(candidates); callers clamp k first.
func sample(rng *rand.Rand, candidates []string, k int) []string {
	if k > len(candidates) {
		panic("quiz: sample size larger than population")
	}
	perm := rng.Perm(len(candidates))
	out := make([]string, k)
	for i := range k {
		out[i] = candidates[perm[i]]
	}
	return out
}
