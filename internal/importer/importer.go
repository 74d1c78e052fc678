package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/quizdeck/internal/answer"
	"github.com/conorfennell/quizdeck/internal/deckstore"
	"github.com/conorfennell/quizdeck/internal/domain"
	"github.com/conorfennell/quizdeck/internal/gitsource"
	"github.com/conorfennell/quizdeck/internal/parser"
)

// Report summarizes one import run.
type Report struct {
	Decks     int
	Unchanged int
	Cards     int
	Errors    []error
}

// Run imports every deck file found in source into store. A git URL is
// cloned or pulled into reposDir first; anything else is walked as a local
// directory. Markdown files are parsed as term/definition blocks and CSV
// files are read as stored decks.
func Run(ctx context.Context, source, reposDir string, store *deckstore.Store) (Report, error) {
	slog.Info("Starting deck import", "source", source)

	root := source
	if gitsource.IsRemote(source) {
		localPath, err := gitsource.LocalPath(reposDir, source)
		if err != nil {
			return Report{}, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
			return Report{}, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, source, localPath); err != nil {
			return Report{}, err
		}
		root = localPath
	}

	var report Report
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cards, ok, err := readCards(path)
		if !ok {
			return nil
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		if len(cards) == 0 {
			slog.Debug("Skipping file without cards", "path", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("stat %s: %w", path, err))
			return nil
		}
		deck := domain.Deck{
			Name:    strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Created: info.ModTime().Format("2006-01-02"),
			Cards:   cards,
		}

		id := domain.Identifier(deck.Name, deck.Created)
		if existing, err := store.Load(id); err == nil && answer.Fingerprint(existing.Cards) == answer.Fingerprint(cards) {
			slog.Debug("Deck unchanged", "file", id)
			report.Unchanged++
			return nil
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("Replacing unreadable deck", "file", id, "error", err)
		}

		if _, err := store.Save(deck); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("saving %s: %w", id, err))
			return nil
		}
		slog.Info("Imported deck", "file", id, "cards", len(cards))
		report.Decks++
		report.Cards += len(cards)
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", root, walkErr)
	}

	slog.Info("Import complete",
		"source", source,
		"decks", report.Decks,
		"unchanged", report.Unchanged,
		"cards", report.Cards,
		"errors", len(report.Errors),
	)
	return report, nil
}

// readCards parses path if it is a deck source. The boolean is false for
// files the importer does not handle.
func readCards(path string) ([]domain.Card, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		cards, err := parser.ParseFile(path)
		return cards, true, err
	case domain.DeckExtension:
		f, err := os.Open(path)
		if err != nil {
			return nil, true, err
		}
		defer f.Close()
		cards, err := deckstore.Decode(f)
		return cards, true, err
	default:
		return nil, false, nil
	}
}
