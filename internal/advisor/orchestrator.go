// Package advisor runs one conversational turn: it grounds the user's
// question in their profile, retrieved knowledge-base evidence, and recent
// history, and delegates generation to the configured engine. A turn always
// produces text. Missing profiles, empty retrieval, and backend failures
// each map to a fixed reply instead of an error.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bidit/skillsage/internal/engine"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/retrieval"
	"github.com/bidit/skillsage/internal/storage"
)

// ProfileSource resolves a user key to a typed profile.
type ProfileSource interface {
	Get(email string) (profile.UserProfile, error)
}

// KnowledgeRetriever runs semantic search over one named collection.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
}

// Completer generates text from a prompt.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// HistoryStore persists chat turns and serves the recent-history window.
type HistoryStore interface {
	AppendChatMessage(m storage.ChatMessage) error
	RecentChatMessages(email string, limit int) ([]storage.ChatMessage, error)
}

// Orchestrator composes grounding context and delegates generation.
type Orchestrator struct {
	profiles  ProfileSource
	retriever KnowledgeRetriever
	completer Completer
	history   HistoryStore
	model     string
	topK      int
	window    int
	logger    *slog.Logger
}

// NewOrchestrator builds an Orchestrator. topK bounds each collection's
// retrieval independently. window bounds the history tail; history may be
// nil, which disables persistence and stored-history lookup.
func NewOrchestrator(profiles ProfileSource, retriever KnowledgeRetriever, completer Completer, history HistoryStore, model string, topK, window int) *Orchestrator {
	return &Orchestrator{
		profiles:  profiles,
		retriever: retriever,
		completer: completer,
		history:   history,
		model:     model,
		topK:      topK,
		window:    window,
		logger:    slog.Default(),
	}
}

// Query runs one turn for the given user. When the caller supplies no
// history, the stored tail for the user is used instead. The returned error
// is reserved for context cancellation; every other failure mode yields a
// fixed message.
func (o *Orchestrator) Query(ctx context.Context, email, query string, history []Turn) (string, error) {
	prof, err := o.profiles.Get(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return guestMessage, nil
		}
		o.logger.Error("profile lookup failed", slog.String("user", email), slog.Any("error", err))
		return apologyMessage, nil
	}

	chunks := o.retrieveAll(ctx, query)

	if len(history) == 0 && o.history != nil {
		history = o.storedHistory(email)
	}
	if len(history) > o.window {
		history = history[len(history)-o.window:]
	}

	prompt := buildPrompt(prof, chunks, history, query)
	answer, err := o.completer.Complete(ctx, o.model, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("advisor turn canceled: %w", ctx.Err())
		}
		o.logger.Error("generation failed", slog.String("user", email), slog.Any("error", err))
		return apologyMessage, nil
	}

	o.persistTurn(email, query, answer)
	return answer, nil
}

// retrieveAll queries every knowledge collection independently and
// concatenates the results in the fixed collection order. A failed
// collection contributes nothing; knowledge-base outages degrade the turn
// to "no evidence" rather than failing it.
func (o *Orchestrator) retrieveAll(ctx context.Context, query string) []retrieval.ContextChunk {
	collections := retrieval.Collections()
	results := make([][]retrieval.ContextChunk, len(collections))

	g, gCtx := errgroup.WithContext(ctx)
	for i, collection := range collections {
		g.Go(func() error {
			chunks, err := o.retriever.Retrieve(gCtx, collection, query, o.topK)
			if err != nil {
				o.logger.Warn("knowledge retrieval failed",
					slog.String("collection", collection), slog.Any("error", err))
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	g.Wait()

	var all []retrieval.ContextChunk
	for _, chunks := range results {
		all = append(all, chunks...)
	}
	return all
}

func (o *Orchestrator) storedHistory(email string) []Turn {
	msgs, err := o.history.RecentChatMessages(email, o.window)
	if err != nil {
		o.logger.Warn("loading chat history failed", slog.String("user", email), slog.Any("error", err))
		return nil
	}
	turns := make([]Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = Turn{Role: m.Role, Content: m.Content}
	}
	return turns
}

// persistTurn records both sides of the exchange. Persistence failures are
// logged and otherwise ignored; the answer has already been produced.
func (o *Orchestrator) persistTurn(email, query, answer string) {
	if o.history == nil {
		return
	}
	for _, m := range []storage.ChatMessage{
		{ID: uuid.NewString(), UserEmail: email, Role: "user", Content: query},
		{ID: uuid.NewString(), UserEmail: email, Role: "assistant", Content: answer},
	} {
		if err := o.history.AppendChatMessage(m); err != nil {
			o.logger.Warn("persisting chat turn failed", slog.String("user", email), slog.Any("error", err))
			return
		}
	}
}

// engine.Engine satisfies Completer.
var _ Completer = (engine.Engine)(nil)
