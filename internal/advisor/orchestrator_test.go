package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/retrieval"
	"github.com/bidit/skillsage/internal/storage"
)

type mockProfiles struct {
	getFn func(email string) (profile.UserProfile, error)
}

func (m *mockProfiles) Get(email string) (profile.UserProfile, error) {
	return m.getFn(email)
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error) {
	return m.retrieveFn(ctx, collection, query, topK)
}

type mockCompleter struct {
	completeFn func(ctx context.Context, model, prompt string) (string, error)
}

func (m *mockCompleter) Complete(ctx context.Context, model, prompt string) (string, error) {
	return m.completeFn(ctx, model, prompt)
}

type mockHistory struct {
	appended []storage.ChatMessage
	recent   []storage.ChatMessage
}

func (m *mockHistory) AppendChatMessage(msg storage.ChatMessage) error {
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mockHistory) RecentChatMessages(string, int) ([]storage.ChatMessage, error) {
	return m.recent, nil
}

func knownProfile() *mockProfiles {
	return &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{
			Email:  "ada@example.com",
			Name:   "Ada",
			Skills: []string{"Python"},
			Goals:  []string{"Data Analyst"},
		}, nil
	}}
}

func emptyRetriever() *mockRetriever {
	return &mockRetriever{retrieveFn: func(context.Context, string, string, int) ([]retrieval.ContextChunk, error) {
		return nil, nil
	}}
}

func echoCompleter(captured *string) *mockCompleter {
	return &mockCompleter{completeFn: func(_ context.Context, _, prompt string) (string, error) {
		if captured != nil {
			*captured = prompt
		}
		return "generated answer", nil
	}}
}

func TestQuery_UnknownUserGetsGuestMessage(t *testing.T) {
	profiles := &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{}, storage.ErrNotFound
	}}
	completer := &mockCompleter{completeFn: func(context.Context, string, string) (string, error) {
		t.Fatal("generation must not run without a profile")
		return "", nil
	}}

	o := NewOrchestrator(profiles, emptyRetriever(), completer, nil, "mistral-nemo", 3, 5)
	got, err := o.Query(context.Background(), "ghost@example.com", "hello", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != guestMessage {
		t.Errorf("answer = %q, want guest message", got)
	}
}

func TestQuery_EmptyRetrievalStillAnswers(t *testing.T) {
	var prompt string
	o := NewOrchestrator(knownProfile(), emptyRetriever(), echoCompleter(&prompt), nil, "mistral-nemo", 3, 5)

	got, err := o.Query(context.Background(), "ada@example.com", "What is SQL?", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got == "" {
		t.Fatal("answer must be non-empty on empty retrieval")
	}
	if !strings.Contains(prompt, emptyKnowledge) {
		t.Errorf("prompt must carry the empty-knowledge marker:\n%s", prompt)
	}
}

func TestQuery_RetrievalErrorDegradesToEmptyEvidence(t *testing.T) {
	ret := &mockRetriever{retrieveFn: func(context.Context, string, string, int) ([]retrieval.ContextChunk, error) {
		return nil, errors.New("vector index unreachable")
	}}
	var prompt string
	o := NewOrchestrator(knownProfile(), ret, echoCompleter(&prompt), nil, "mistral-nemo", 3, 5)

	got, err := o.Query(context.Background(), "ada@example.com", "What is SQL?", nil)
	if err != nil || got != "generated answer" {
		t.Fatalf("got %q, %v; retrieval failure must not fail the turn", got, err)
	}
	if !strings.Contains(prompt, emptyKnowledge) {
		t.Errorf("prompt should report empty knowledge:\n%s", prompt)
	}
}

func TestQuery_PromptBlockOrder(t *testing.T) {
	ret := &mockRetriever{retrieveFn: func(_ context.Context, collection, _ string, _ int) ([]retrieval.ContextChunk, error) {
		if collection != retrieval.CollectionSkills {
			return nil, nil
		}
		return []retrieval.ContextChunk{{ID: "sql", Title: "SQL", Text: "Skill: SQL. Category: Data."}}, nil
	}}
	var prompt string
	o := NewOrchestrator(knownProfile(), ret, echoCompleter(&prompt), nil, "mistral-nemo", 3, 5)

	history := []Turn{{Role: "user", Content: "earlier question"}}
	if _, err := o.Query(context.Background(), "ada@example.com", "Tell me about SQL", history); err != nil {
		t.Fatalf("query: %v", err)
	}

	blocks := []string{
		"You are SkillSage",
		"--- USER PROFILE ---",
		"--- KNOWLEDGE BASE (SOURCE OF TRUTH) ---",
		"--- CONVERSATION HISTORY ---",
		"--- USER QUESTION ---",
	}
	pos := -1
	for _, block := range blocks {
		idx := strings.Index(prompt, block)
		if idx < 0 {
			t.Fatalf("prompt missing block %q:\n%s", block, prompt)
		}
		if idx < pos {
			t.Fatalf("block %q out of order:\n%s", block, prompt)
		}
		pos = idx
	}
	if !strings.Contains(prompt, "Skill: SQL") {
		t.Errorf("retrieved evidence missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: earlier question") {
		t.Errorf("history missing from prompt:\n%s", prompt)
	}
}

func TestQuery_GenerationFailureReturnsApology(t *testing.T) {
	completer := &mockCompleter{completeFn: func(context.Context, string, string) (string, error) {
		return "", errors.New("model overloaded")
	}}
	o := NewOrchestrator(knownProfile(), emptyRetriever(), completer, nil, "mistral-nemo", 3, 5)

	got, err := o.Query(context.Background(), "ada@example.com", "hello", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got != apologyMessage {
		t.Errorf("answer = %q, want apology", got)
	}
}

func TestQuery_HistoryWindowBounded(t *testing.T) {
	var prompt string
	o := NewOrchestrator(knownProfile(), emptyRetriever(), echoCompleter(&prompt), nil, "mistral-nemo", 3, 2)

	history := []Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}
	if _, err := o.Query(context.Background(), "ada@example.com", "now", history); err != nil {
		t.Fatalf("query: %v", err)
	}
	if strings.Contains(prompt, "first") {
		t.Errorf("oldest turn must fall outside the window:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Advisor: second") || !strings.Contains(prompt, "User: third") {
		t.Errorf("recent turns missing:\n%s", prompt)
	}
}

func TestQuery_StoredHistoryUsedWhenNoneSupplied(t *testing.T) {
	hist := &mockHistory{recent: []storage.ChatMessage{
		{Role: "user", Content: "stored question"},
		{Role: "assistant", Content: "stored answer"},
	}}
	var prompt string
	o := NewOrchestrator(knownProfile(), emptyRetriever(), echoCompleter(&prompt), hist, "mistral-nemo", 3, 5)

	if _, err := o.Query(context.Background(), "ada@example.com", "now", nil); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(prompt, "User: stored question") {
		t.Errorf("stored history missing from prompt:\n%s", prompt)
	}
}

func TestQuery_PersistsBothSidesOfTurn(t *testing.T) {
	hist := &mockHistory{}
	o := NewOrchestrator(knownProfile(), emptyRetriever(), echoCompleter(nil), hist, "mistral-nemo", 3, 5)

	if _, err := o.Query(context.Background(), "ada@example.com", "What is Go?", nil); err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hist.appended) != 2 {
		t.Fatalf("appended %d messages, want 2", len(hist.appended))
	}
	if hist.appended[0].Role != "user" || hist.appended[0].Content != "What is Go?" {
		t.Errorf("first persisted = %+v", hist.appended[0])
	}
	if hist.appended[1].Role != "assistant" || hist.appended[1].Content != "generated answer" {
		t.Errorf("second persisted = %+v", hist.appended[1])
	}
	if hist.appended[0].ID == "" || hist.appended[0].ID == hist.appended[1].ID {
		t.Errorf("persisted messages need distinct ids: %q vs %q",
			hist.appended[0].ID, hist.appended[1].ID)
	}
}

func TestFormatProfile_FallbackName(t *testing.T) {
	got := formatProfile(profile.UserProfile{})
	if !strings.HasPrefix(got, "Name: User") {
		t.Errorf("profile block = %q", got)
	}
}
