// Package resolver answers caller questions from the learned-answer corpus
// before falling back to the language model.
package resolver

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/frontdesk/frontdesk/internal/store"
)

// TroublePhrase is spoken when the language model fails outright. It
// deliberately contains an uncertainty keyword so the conversation layer
// escalates it.
const TroublePhrase = "I'm having trouble answering that. Let me check with my supervisor."

// LanguageModel generates a single answer for a question. Implementations
// must respect ctx deadlines; the resolver always bounds the call.
type LanguageModel interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Resolver struct {
	store   *store.Store
	model   LanguageModel
	limit   int
	timeout time.Duration
}

func New(st *store.Store, model LanguageModel) *Resolver {
	return &Resolver{store: st, model: model, limit: 50, timeout: 15 * time.Second}
}

// Resolve returns an answer for the question. Learned answers are checked
// first, most recently learned wins: the match is a case-insensitive
// substring test of the learned question inside the incoming question. This
// is crude containment, not semantic similarity; false positives are a known
// trade-off. With no match the language model is queried under a bounded
// timeout, and any model failure degrades to TroublePhrase rather than
// surfacing an error to the caller.
func (r *Resolver) Resolve(ctx context.Context, question string) string {
	if answer, ok := r.lookupLearned(question); ok {
		log.Printf("using learned answer for: %s", question)
		return answer
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	answer, err := r.model.Answer(ctx, question)
	if err != nil {
		log.Printf("language model query failed for %q: %v", question, err)
		return TroublePhrase
	}
	return answer
}

func (r *Resolver) lookupLearned(question string) (string, bool) {
	learned, err := r.store.ListLearned(r.limit)
	if err != nil {
		log.Printf("warning: failed to list learned answers: %v", err)
		return "", false
	}
	lowered := strings.ToLower(question)
	for _, la := range learned {
		q := strings.ToLower(strings.TrimSpace(la.Question))
		if q == "" {
			continue
		}
		if strings.Contains(lowered, q) {
			return la.Answer, true
		}
	}
	return "", false
}
