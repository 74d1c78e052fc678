package deckstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conorfennell/quizdeck/internal/domain"
)

var header = []string{"Term", "Definition"}

// Store keeps one delimited file per deck inside a directory.
//
// Writes are not synchronized. Two saves to the same identifier race and the
// last one wins; a load running alongside a save may observe a partial file.
type Store struct {
	dir string
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "decks"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create deck directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the deck under its derived identifier, replacing any existing
// content, and returns the identifier.
func (s *Store) Save(deck domain.Deck) (string, error) {
	id := domain.Identifier(deck.Name, deck.Created)
	if !validIdentifier(id) {
		return "", domain.Validationf("deck identifier %q cannot be stored", id)
	}
	f, err := os.Create(filepath.Join(s.dir, id))
	if err != nil {
		return "", fmt.Errorf("failed to create deck file %s: %w", id, err)
	}

	if err := Encode(f, deck.Cards); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write deck %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close deck file %s: %w", id, err)
	}
	return id, nil
}

// Load reads the deck stored under id. It returns an error wrapping
// domain.ErrNotFound when nothing is stored there and a *domain.ParseError
// when the content is malformed.
func (s *Store) Load(id string) (domain.Deck, error) {
	if !validIdentifier(id) {
		return domain.Deck{}, fmt.Errorf("deck %q: %w", id, domain.ErrNotFound)
	}
	f, err := os.Open(filepath.Join(s.dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Deck{}, fmt.Errorf("deck %q: %w", id, domain.ErrNotFound)
		}
		return domain.Deck{}, fmt.Errorf("failed to open deck %s: %w", id, err)
	}
	defer f.Close()

	cards, err := Decode(f)
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			pe.Identifier = id
		}
		return domain.Deck{}, err
	}
	return domain.Deck{
		Name:  strings.TrimSuffix(id, domain.DeckExtension),
		Cards: cards,
	}, nil
}

// List returns the identifiers of every stored deck in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks in %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), domain.DeckExtension) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// validIdentifier rejects anything that would resolve outside the store.
// Without a separator an identifier names a single entry in the directory,
// so dots inside the name are harmless.
func validIdentifier(id string) bool {
	if id == "" || id == domain.DeckExtension {
		return false
	}
	if strings.ContainsAny(id, `/\`) {
		return false
	}
	return strings.HasSuffix(id, domain.DeckExtension)
}

// Encode writes cards as rows under the fixed Term,Definition header.
func Encode(w io.Writer, cards []domain.Card) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range cards {
		if err := cw.Write([]string{c.Term, c.Definition}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode parses rows written by Encode, preserving their order.
func Decode(r io.Reader) ([]domain.Card, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if err == io.EOF {
		return nil, &domain.ParseError{Reason: "missing header"}
	}
	if err != nil {
		return nil, &domain.ParseError{Line: 1, Reason: err.Error()}
	}
	if len(first) != 2 || first[0] != header[0] || first[1] != header[1] {
		return nil, &domain.ParseError{Line: 1, Reason: fmt.Sprintf("unexpected header %q", first)}
	}

	var cards []domain.Card
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Line: line, Reason: err.Error()}
		}
		if len(rec) != 2 {
			return nil, &domain.ParseError{Line: line, Reason: fmt.Sprintf("expected 2 columns, got %d", len(rec))}
		}
		cards = append(cards, domain.Card{Term: rec[0], Definition: rec[1]})
	}
	return cards, nil
}
