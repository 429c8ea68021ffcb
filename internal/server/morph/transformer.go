// Package morph rewrites the words of a board sentence into the forms the
// grammar after a trigger phrase requires. The shipped transformer decides
// which words to rewrite; the inflection itself is pluggable.
package morph

import (
	"context"
	"fmt"
	"strings"
)

// Transformer returns one output word per input word, in order.
type Transformer interface {
	Transform(ctx context.Context, words []string) ([]string, error)
}

// Inflector rewrites a single word that follows a trigger phrase. ok=false
// keeps the word unchanged.
type Inflector interface {
	Inflect(ctx context.Context, word string) (form string, ok bool, err error)
}

// InflectorFunc adapts a function to Inflector.
type InflectorFunc func(ctx context.Context, word string) (string, bool, error)

func (f InflectorFunc) Inflect(ctx context.Context, word string) (string, bool, error) {
	return f(ctx, word)
}

// Identity keeps every word as it is.
var Identity Inflector = InflectorFunc(func(ctx context.Context, word string) (string, bool, error) {
	return word, false, nil
})

// DefaultTriggers are the phrases after which words are inflected.
var DefaultTriggers = []string{"ma tahan"}

// TriggerTransformer passes every word up to and including the first
// trigger phrase through unchanged and hands each later word to the
// Inflector. Blank words and repeated triggers are never inflected. An
// inflection error keeps the original word.
type TriggerTransformer struct {
	triggers  map[string]struct{}
	inflector Inflector
}

func NewTriggerTransformer(inflector Inflector, triggers ...string) *TriggerTransformer {
	if inflector == nil {
		inflector = Identity
	}
	if len(triggers) == 0 {
		triggers = DefaultTriggers
	}
	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		set[normalize(t)] = struct{}{}
	}
	return &TriggerTransformer{triggers: set, inflector: inflector}
}

func (t *TriggerTransformer) Transform(ctx context.Context, words []string) ([]string, error) {
	out := make([]string, len(words))
	copy(out, words)

	start := -1
	for i, w := range words {
		if t.isTrigger(w) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return out, nil
	}

	for i := start; i < len(words); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("morph: %w", err)
		}
		w := words[i]
		if strings.TrimSpace(w) == "" || t.isTrigger(w) {
			continue
		}
		form, ok, err := t.inflector.Inflect(ctx, w)
		if err != nil || !ok || form == "" {
			continue
		}
		out[i] = form
	}
	return out, nil
}

func (t *TriggerTransformer) isTrigger(w string) bool {
	_, ok := t.triggers[normalize(w)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
