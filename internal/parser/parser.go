package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/quizdeck/internal/domain"
)

// Line prefixes that open a block. Q: and A: are accepted for files
// written as question/answer notes.
var (
	termPrefixes       = []string{"T:", "Q:"}
	definitionPrefixes = []string{"D:", "A:"}
)

const separator = "---"

type state int

const (
	seeking state = iota
	readingTerm
	readingDefinition
)

// ParseFile reads a markdown file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads term/definition blocks from r.
//
//	T: France
//	D: Paris
//	---
//	T: Japan
//	D: Tokyo
//
// A block runs until the next prefixed line or separator, so definitions
// may span several lines. Cards without a term are dropped.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var (
		cards   []domain.Card
		current domain.Card
		block   []string
		st      = seeking
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch st {
		case readingTerm:
			current.Term = content
		case readingDefinition:
			current.Definition = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Term != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		st = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		if rest, ok := cutPrefix(line, termPrefixes); ok {
			// A new term always starts a new card.
			finishCard()
			st = readingTerm
			block = append(block, rest)
			continue
		}
		if rest, ok := cutPrefix(line, definitionPrefixes); ok {
			flushBlock()
			st = readingDefinition
			block = append(block, rest)
			continue
		}

		if st != seeking {
			block = append(block, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

// cutPrefix strips the first matching prefix and one following space.
func cutPrefix(line string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return strings.TrimPrefix(rest, " "), true
		}
	}
	return "", false
}
