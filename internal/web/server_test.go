package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/conorfennell/quizdeck/internal/deckstore"
	"github.com/conorfennell/quizdeck/internal/progress"
)

/* ---------------- In-memory fake that satisfies SessionStore ---------------- */

type fakeSessions struct {
	mu     sync.Mutex
	states map[string]progress.State
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: map[string]progress.State{}}
}

func (f *fakeSessions) LoadProgress(ctx context.Context, id string) (progress.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id], nil
}

func (f *fakeSessions) SaveProgress(ctx context.Context, id string, st progress.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = st
	return nil
}

/* ---------------------------------------------------------------------------- */

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) *client {
	t.Helper()
	decks, err := deckstore.Open(filepath.Join(t.TempDir(), "decks"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(decks, newFakeSessions(), Options{Seed: 1}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{
		t:    t,
		base: srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			if err != nil {
				c.t.Fatal(err)
			}
			r = bytes.NewReader(buf)
		}
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) postCapitals() string {
	c.t.Helper()
	var resp struct {
		Message string `json:"message"`
		File    string `json:"file"`
	}
	status := c.do(http.MethodPost, "/api/decks", map[string]any{
		"name":    "Capitals",
		"created": "t1",
		"cards": []map[string]string{
			{"term": "France", "definition": "Paris"},
			{"term": "Japan", "definition": "Tokyo"},
		},
	}, &resp)
	if status != http.StatusCreated {
		c.t.Fatalf("Expected 201 when saving a deck, got %d", status)
	}
	if resp.File != "Capitals_t1.csv" || resp.Message == "" {
		c.t.Fatalf("Unexpected save response: %+v", resp)
	}
	return resp.File
}

func TestHealth(t *testing.T) {
	c := newTestServer(t)
	if status := c.do(http.MethodGet, "/healthz", nil, nil); status != http.StatusOK {
		t.Errorf("Expected 200, got %d", status)
	}
}

func TestPostDeckValidation(t *testing.T) {
	testCases := []struct {
		name string
		body any
	}{
		{"malformed JSON", "{not json"},
		{"missing name", map[string]any{"cards": []map[string]string{{"term": "a", "definition": "b"}}}},
		{"missing cards", map[string]any{"name": "x"}},
		{"empty cards", map[string]any{"name": "x", "cards": []map[string]string{}}},
		{"card without definition", map[string]any{"name": "x", "cards": []map[string]string{{"term": "a"}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t)
			var resp map[string]string
			status := c.do(http.MethodPost, "/api/decks", tc.body, &resp)
			if status != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", status)
			}
			if resp["error"] == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestDeckRetrieval(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	var list struct {
		Decks []string `json:"decks"`
	}
	if status := c.do(http.MethodGet, "/api/decks", nil, &list); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(list.Decks) != 1 || list.Decks[0] != id {
		t.Errorf("Expected [%s], got %v", id, list.Decks)
	}

	var deck struct {
		Cards []struct {
			Term       string `json:"term"`
			Definition string `json:"definition"`
		} `json:"cards"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id, nil, &deck); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(deck.Cards) != 2 || deck.Cards[0].Term != "France" || deck.Cards[1].Definition != "Tokyo" {
		t.Errorf("Unexpected cards: %+v", deck.Cards)
	}

	for _, path := range []string{"/api/decks/missing.csv", "/api/decks/missing.csv/level1", "/api/decks/missing.csv/multiple-choice"} {
		if status := c.do(http.MethodGet, path, nil, nil); status != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, status)
		}
	}
}

func TestMultipleChoice(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	var resp struct {
		Questions []struct {
			Term          string   `json:"term"`
			Options       []string `json:"options"`
			CorrectAnswer string   `json:"correct_answer"`
		} `json:"questions"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/multiple-choice", nil, &resp); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(resp.Questions) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(resp.Questions))
	}
	for _, q := range resp.Questions {
		if len(q.Options) != 2 {
			t.Errorf("Expected 2 options, got %v", q.Options)
		}
	}
}

func TestLevelGating(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	var redirect struct {
		RedirectLevel int    `json:"redirect_level"`
		Location      string `json:"location"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level2", nil, &redirect); status != http.StatusSeeOther {
		t.Fatalf("Expected 303 for level 2 before level 1, got %d", status)
	}
	if redirect.RedirectLevel != 1 || redirect.Location != "/api/decks/"+id+"/level1" {
		t.Errorf("Unexpected redirect: %+v", redirect)
	}

	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level3", nil, &redirect); status != http.StatusSeeOther {
		t.Fatalf("Expected 303 for level 3 before level 2, got %d", status)
	}
	if redirect.RedirectLevel != 2 {
		t.Errorf("Expected redirect to level 2, got %+v", redirect)
	}

	if status := c.do(http.MethodPost, "/api/decks/"+id+"/level3/next", nil, &redirect); status != http.StatusSeeOther {
		t.Errorf("Expected 303 for next before level 3, got %d", status)
	}
}

func TestRecallAnswerOutsideLevel2Redirects(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	var redirect struct {
		RedirectLevel int `json:"redirect_level"`
	}
	status := c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": id, "term": "France", "user_answer": "Paris",
	}, &redirect)
	if status != http.StatusSeeOther || redirect.RedirectLevel != 2 {
		t.Errorf("Expected 303 to level 2, got %d %+v", status, redirect)
	}

	// Without any deck to point at, a true/false answer is a conflict.
	if status := c.do(http.MethodPost, "/api/answers/true-false", map[string]bool{"answer": true, "correct_answer": true}, nil); status != http.StatusConflict {
		t.Errorf("Expected 409 for a true/false answer with no quiz, got %d", status)
	}
}

func TestFullQuizFlow(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	// Level 1: true/false.
	var level1 struct {
		Questions []struct {
			Term          string `json:"term"`
			Definition    string `json:"definition"`
			CorrectAnswer bool   `json:"correct_answer"`
		} `json:"questions"`
		TotalQuestions int `json:"total_questions"`
		Score          int `json:"score"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level1", nil, &level1); status != http.StatusOK {
		t.Fatalf("Expected 200 for level 1, got %d", status)
	}
	if len(level1.Questions) != 4 || level1.TotalQuestions != 4 {
		t.Fatalf("Expected 4 true/false questions, got %d", len(level1.Questions))
	}
	trues := 0
	for _, q := range level1.Questions {
		if q.CorrectAnswer {
			trues++
		}
	}
	if trues != 2 {
		t.Errorf("Expected 2 true pairings, got %d", trues)
	}

	var result progress.Result
	for i, q := range level1.Questions {
		c.do(http.MethodPost, "/api/answers/true-false", map[string]bool{
			"answer": q.CorrectAnswer, "correct_answer": q.CorrectAnswer,
		}, &result)
		if result.QuestionsAnswered != i+1 || result.Score != i+1 {
			t.Errorf("After answer %d: unexpected result %+v", i+1, result)
		}
	}
	if !result.LevelCompleted {
		t.Error("Expected level 1 to be completed")
	}

	var summary progress.Summary
	c.do(http.MethodGet, "/api/progress", nil, &summary)
	if !summary.QuizComplete || !summary.LevelCompleted || summary.Score != 4 {
		t.Errorf("Unexpected progress after level 1: %+v", summary)
	}

	// Level 2: recall.
	var level2 struct {
		Questions []struct {
			Term       string `json:"term"`
			Definition string `json:"definition"`
		} `json:"questions"`
		TotalQuestions int `json:"total_questions"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level2", nil, &level2); status != http.StatusOK {
		t.Fatalf("Expected 200 for level 2, got %d", status)
	}
	if level2.TotalQuestions != 2 || len(level2.Questions) != 2 {
		t.Fatalf("Expected 2 recall prompts, got %+v", level2)
	}
	if level2.Questions[0].Definition != "" {
		t.Error("Expected recall prompts not to reveal definitions")
	}

	status := c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": id, "term": "France", "user_answer": "Lyon",
	}, &result)
	if status != http.StatusOK || result.Correct || result.CorrectAnswer != "Paris" {
		t.Errorf("Expected wrong answer to be rejected, got %d %+v", status, result)
	}
	c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": id, "term": "France", "user_answer": " paris ",
	}, &result)
	if !result.Correct || result.QuestionsAnswered != 1 || result.LevelCompleted {
		t.Errorf("Unexpected result after first correct recall: %+v", result)
	}
	c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": id, "term": "Japan", "user_answer": "TOKYO",
	}, &result)
	if !result.Correct || result.QuestionsAnswered != 2 || !result.LevelCompleted {
		t.Errorf("Expected level 2 to complete on the last answer, got %+v", result)
	}

	if status := c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": id, "term": "Peru", "user_answer": "Lima",
	}, nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown term, got %d", status)
	}

	// Level 3: matching.
	type question struct {
		Definition  string   `json:"definition"`
		Options     []string `json:"options"`
		CorrectTerm string   `json:"correct_term"`
	}
	var level3 struct {
		Question       *question `json:"question"`
		TotalQuestions int       `json:"total_questions"`
	}
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level3", nil, &level3); status != http.StatusOK {
		t.Fatalf("Expected 200 for level 3, got %d", status)
	}
	if level3.Question == nil || level3.TotalQuestions != 2 {
		t.Fatalf("Expected a first question and total 2, got %+v", level3)
	}
	if level3.Question.CorrectTerm != "France" || len(level3.Question.Options) != 2 {
		t.Errorf("Expected first question from the deck head with 2 options, got %+v", level3.Question)
	}

	var matched progress.Result
	c.do(http.MethodPost, "/api/answers/matching", map[string]string{
		"answer": "france", "correct_answer": level3.Question.CorrectTerm,
	}, &matched)
	if !matched.Correct {
		t.Error("Expected case-insensitive matching answer to be correct")
	}

	var step struct {
		Question  *question `json:"question"`
		Completed bool      `json:"completed"`
		Total     int       `json:"total_questions"`
	}
	c.do(http.MethodPost, "/api/decks/"+id+"/level3/next", nil, &step)
	if step.Completed || step.Question == nil || step.Question.CorrectTerm != "Japan" {
		t.Fatalf("Expected second question for Japan, got %+v", step)
	}
	step.Question = nil
	c.do(http.MethodPost, "/api/decks/"+id+"/level3/next", nil, &step)
	if !step.Completed || step.Total != 2 || step.Question != nil {
		t.Errorf("Expected completion with total 2, got %+v", step)
	}

	var final progress.Final
	if status := c.do(http.MethodPost, "/api/level3/final", map[string]any{
		"filename": id, "final_score": 2, "total_questions": 2,
	}, &final); status != http.StatusOK {
		t.Fatalf("Expected 200 for final score, got %d", status)
	}
	if final.FinalScore != 2 || final.TotalQuestions != 2 {
		t.Errorf("Expected totals echoed back, got %+v", final)
	}

	c.do(http.MethodGet, "/api/progress", nil, &summary)
	if summary.CurrentLevel != progress.LevelMatching || !summary.LevelCompleted || summary.Score != 8 {
		t.Errorf("Unexpected final progress: %+v", summary)
	}
}

func TestSessionsAreSeparate(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()
	c.do(http.MethodGet, "/api/decks/"+id+"/level1", nil, nil)

	other := &client{t: t, base: c.base, http: &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse },
	}}
	if status := other.do(http.MethodGet, "/api/decks/"+id+"/level2", nil, nil); status != http.StatusSeeOther {
		t.Errorf("Expected a visitor without a cookie to be redirected, got %d", status)
	}
}

func TestFinalScoreRejectsNegativeValues(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()

	for _, body := range []map[string]any{
		{"filename": id, "final_score": -10, "total_questions": 2},
		{"filename": id, "final_score": 1, "total_questions": -1},
	} {
		if status := c.do(http.MethodPost, "/api/level3/final", body, nil); status != http.StatusBadRequest {
			t.Errorf("Expected 400 for %v, got %d", body, status)
		}
	}

	var summary progress.Summary
	c.do(http.MethodGet, "/api/progress", nil, &summary)
	if summary.Score != 0 {
		t.Errorf("Expected rejected submissions to leave the score at 0, got %d", summary.Score)
	}
}

func TestRecallAnswerForAnotherDeckRedirects(t *testing.T) {
	c := newTestServer(t)
	id := c.postCapitals()
	if status := c.do(http.MethodPost, "/api/decks", map[string]any{
		"name":    "Rivers",
		"created": "t1",
		"cards":   []map[string]string{{"term": "Egypt", "definition": "Nile"}},
	}, nil); status != http.StatusCreated {
		t.Fatalf("Expected 201 when saving a second deck, got %d", status)
	}

	c.do(http.MethodGet, "/api/decks/"+id+"/level1", nil, nil)
	if status := c.do(http.MethodGet, "/api/decks/"+id+"/level2", nil, nil); status != http.StatusOK {
		t.Fatalf("Expected 200 for level 2, got %d", status)
	}

	var redirect struct {
		RedirectLevel int    `json:"redirect_level"`
		Location      string `json:"location"`
	}
	status := c.do(http.MethodPost, "/api/answers/recall", map[string]string{
		"filename": "Rivers_t1.csv", "term": "Egypt", "user_answer": "Nile",
	}, &redirect)
	if status != http.StatusSeeOther || redirect.Location != "/api/decks/"+id+"/level2" {
		t.Errorf("Expected 303 back to %s level 2, got %d %+v", id, status, redirect)
	}

	var summary progress.Summary
	c.do(http.MethodGet, "/api/progress", nil, &summary)
	if summary.Score != 0 || summary.QuestionsAnswered != 0 {
		t.Errorf("Expected answers for another deck not to count, got %+v", summary)
	}
}
