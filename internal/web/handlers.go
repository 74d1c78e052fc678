package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/quizdeck/internal/answer"
	"github.com/conorfennell/quizdeck/internal/domain"
	"github.com/conorfennell/quizdeck/internal/progress"
	"github.com/conorfennell/quizdeck/internal/quiz"
)

// createdLayout labels decks submitted without a creation label.
const createdLayout = "2006-01-02 15:04:05"

type deckRequest struct {
	Name    string        `json:"name" validate:"required"`
	Created string        `json:"created"`
	Cards   []domain.Card `json:"cards" validate:"required,min=1,dive"`
}

type trueFalseAnswer struct {
	Answer        *bool  `json:"answer" validate:"required"`
	CorrectAnswer *bool  `json:"correct_answer" validate:"required"`
	Filename      string `json:"filename"`
}

type recallAnswer struct {
	Filename   string `json:"filename" validate:"required"`
	Term       string `json:"term" validate:"required"`
	UserAnswer string `json:"user_answer"`
}

type matchingAnswer struct {
	Answer        string `json:"answer" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
}

type finalScore struct {
	Filename       string `json:"filename" validate:"required"`
	FinalScore     int    `json:"final_score" validate:"min=0"`
	TotalQuestions int    `json:"total_questions" validate:"min=0"`
}

// handleHealth reports whether the session store is reachable.
func (s *Server) handleHealth() http.HandlerFunc {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := s.sessions.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				s.log.Warn("Session store unreachable", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handlePostDeck stores a submitted deck and returns its identifier.
func (s *Server) handlePostDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deckRequest
		if err := s.decode(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		if req.Created == "" {
			req.Created = time.Now().Format(createdLayout)
		}

		deck := domain.Deck{Name: req.Name, Created: req.Created}
		for _, c := range req.Cards {
			deck.AddCard(c)
		}

		id, err := s.decks.Save(deck)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.log.Info("Deck saved", "file", id, "cards", len(deck.Cards))
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":     "Deck saved",
			"file":        id,
			"fingerprint": answer.Fingerprint(deck.Cards),
		})
	}
}

// handleListDecks returns every stored deck identifier.
func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := s.decks.List()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"decks": ids})
	}
}

// handleGetDeck returns the cards of one deck.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"file":        id,
			"cards":       deck.Cards,
			"fingerprint": answer.Fingerprint(deck.Cards),
		})
	}
}

// handleMultipleChoice returns a practice set outside the level sequence.
func (s *Server) handleMultipleChoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		questions, err := quiz.BuildMultipleChoiceSet(deck, s.rand())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"file":            id,
			"questions":       questions,
			"total_questions": len(questions),
		})
	}
}

// handleLevel1 starts the true/false quiz.
func (s *Server) handleLevel1() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		questions, err := quiz.BuildTrueFalseSet(deck, s.rand())
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		st = progress.EnterLevel1(st, id, len(questions))
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"file":            id,
			"level":           progress.LevelTrueFalse,
			"questions":       questions,
			"total_questions": st.TotalQuestions,
			"score":           st.Score,
		})
	}
}

// handleLevel2 starts the recall quiz, or redirects to level 1.
func (s *Server) handleLevel2() http.HandlerFunc {
	type prompt struct {
		Term string `json:"term"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		questions, err := quiz.BuildRecallSet(deck)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out, st := progress.EnterLevel2(st, id, deck)
		if !out.Granted() {
			redirectToLevel(w, id, out.Redirect)
			return
		}
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}

		prompts := make([]prompt, len(questions))
		for i, q := range questions {
			prompts[i] = prompt{Term: q.Term}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"file":               id,
			"level":              progress.LevelRecall,
			"questions":          prompts,
			"questions_answered": st.QuestionsAnswered,
			"total_questions":    st.TotalQuestions,
			"score":              st.Score,
		})
	}
}

// handleLevel3 starts the matching sequence and serves its first question,
// or redirects to level 2.
func (s *Server) handleLevel3() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := deck.Validate(); err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out, st := progress.EnterLevel3(st, id, deck)
		if !out.Granted() {
			redirectToLevel(w, id, out.Redirect)
			return
		}
		step, st := progress.NextMatching(st, deck, s.rand())
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"file":            id,
			"level":           progress.LevelMatching,
			"question":        step.Question,
			"total_questions": step.Total,
			"remaining":       step.Remaining,
			"score":           st.Score,
		})
	}
}

// handleLevel3Next serves the next matching question or the completion
// signal.
func (s *Server) handleLevel3Next() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if st.CurrentLevel != progress.LevelMatching || st.Deck != id {
			redirectToLevel(w, id, progress.LevelMatching)
			return
		}

		deck, err := s.decks.Load(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		step, st := progress.NextMatching(st, deck, s.rand())
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, step)
	}
}

// handleLevel3Final records the client-reported level 3 score.
func (s *Server) handleLevel3Final() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalScore
		if err := s.decode(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		final, st := progress.SubmitFinal(st, req.FinalScore, req.TotalQuestions)
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}
		s.log.Info("Level 3 submitted", "file", req.Filename, "final_score", req.FinalScore, "total_questions", req.TotalQuestions)
		writeJSON(w, http.StatusOK, final)
	}
}

// handleAnswerTrueFalse scores one level 1 answer.
func (s *Server) handleAnswerTrueFalse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trueFalseAnswer
		if err := s.decode(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		res, st, err := progress.AnswerTrueFalse(st, *req.Answer, *req.CorrectAnswer)
		if err != nil {
			s.levelError(w, r, err, firstNonEmpty(req.Filename, st.Deck))
			return
		}
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleAnswerRecall checks one typed level 2 answer against the stored deck.
func (s *Server) handleAnswerRecall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recallAnswer
		if err := s.decode(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		deck, err := s.decks.Load(req.Filename)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if st.CurrentLevel == progress.LevelRecall && st.Deck != req.Filename {
			redirectToLevel(w, st.Deck, progress.LevelRecall)
			return
		}
		res, st, err := progress.AnswerRecall(st, deck, req.Term, req.UserAnswer)
		if err != nil {
			s.levelError(w, r, err, req.Filename)
			return
		}
		if err := s.sessions.SaveProgress(r.Context(), sessionID(r.Context()), st); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleAnswerMatching checks one level 3 selection.
func (s *Server) handleAnswerMatching() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchingAnswer
		if err := s.decode(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, progress.AnswerMatching(st, req.Answer, req.CorrectAnswer))
	}
}

// handleProgress reports the visitor's progress in the current level.
func (s *Server) handleProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.sessions.LoadProgress(r.Context(), sessionID(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, progress.Summarize(st))
	}
}

// levelError redirects answers sent for the wrong level back to the level
// the visitor should be playing. Other errors go through respondError.
func (s *Server) levelError(w http.ResponseWriter, r *http.Request, err error, deckID string) {
	var le *progress.LevelError
	if errors.As(err, &le) && deckID != "" {
		redirectToLevel(w, deckID, le.Want)
		return
	}
	s.respondError(w, r, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
