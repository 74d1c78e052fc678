package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// DeckExtension is appended to every stored deck identifier.
const DeckExtension = ".csv"

// Card represents a single term-definition pair.
type Card struct {
	Term       string `json:"term" validate:"required"`
	Definition string `json:"definition" validate:"required"`
}

// Deck is a named, ordered collection of cards.
type Deck struct {
	Name    string
	Created string
	Cards   []Card
}

// AddCard appends a card to the deck.
func (d *Deck) AddCard(c Card) {
	d.Cards = append(d.Cards, c)
}

// Validate reports whether the deck can be used to build a quiz.
func (d Deck) Validate() error {
	if len(d.Cards) == 0 {
		return fmt.Errorf("deck %q: %w", d.Name, ErrEmptyDeck)
	}
	return nil
}

// FindByTerm returns the first card whose term equals term.
func (d Deck) FindByTerm(term string) (Card, bool) {
	for _, c := range d.Cards {
		if c.Term == term {
			return c, true
		}
	}
	return Card{}, false
}

// Identifier derives the stored identifier for a deck from its name and
// creation label. Whitespace, colons and both kinds of slash become
// underscores.
// No collision check is performed: two decks with the same name and label
// share an identifier and the later save wins.
func Identifier(name, created string) string {
	raw := name + "_" + created
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, raw)
	return clean + DeckExtension
}
