// Package translate implements AI-powered translation and review of
// localization strings fetched from Transifex, using HTTP API-based model
// providers (OpenAI, Google Gemini, Groq, Ollama, custom OpenAI-compatible
// endpoints).
//
// Placeholders in source strings are tokenized before the model call and
// restored afterwards; a translation that loses a placeholder is discarded
// in favor of the original source text.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/edSPIRIT/transifex-tools/csvfile"
	"github.com/edSPIRIT/transifex-tools/placeholder"
)

// ---------------------------------------------------------------------------
// System prompts
// ---------------------------------------------------------------------------

// TranslateSystemPrompt instructs the model to translate while passing
// placeholder markers through unchanged. {{targetLang}} is replaced with the
// target language's display name.
const TranslateSystemPrompt = `You are a professional translator. Translate the following text to {{targetLang}}.
Maintain the original meaning and context.
IMPORTANT: The text contains special placeholders that must remain EXACTLY as they are.
These placeholders will be marked with __PLACEHOLDER_X__ tokens.
Do not translate or modify these tokens in any way.`

// ReviewSystemPrompt instructs the model to emit a two-line structured
// verdict that parseVerdict understands.
const ReviewSystemPrompt = `You are a professional translator reviewing translations.
Compare the source text and its translation to {{targetLang}}.
Check for:
1. Accuracy of meaning
2. Preservation of placeholders
3. Cultural appropriateness
4. Grammar and spelling

Respond with:
VERDICT: [APPROVE/REJECT]
REASON: [Brief explanation]`

// noContext is substituted when an item carries no context note.
const noContext = "No specific context provided"

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// GenerateFunc is the external text-generation capability: system prompt and
// user prompt in, model reply out. The default implementation dispatches to
// the configured HTTP provider; tests inject their own.
type GenerateFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Options controls translation and review behavior.
type Options struct {
	// Provider is the AI provider configuration.
	Provider Provider
	// Language is the target language code (e.g. "fa", "ar").
	Language string
	// LanguageName is the human-readable name (e.g. "Persian"). Resolved
	// from Language when empty.
	LanguageName string
	// MaxRetries is the maximum number of retries on rate limit (429).
	// Default: 3.
	MaxRetries int
	// Timeout is the per-request timeout (overrides provider timeout if set).
	Timeout time.Duration
	// Generate overrides the model call. Used by tests and by callers who
	// bring their own transport.
	Generate GenerateFunc
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

func (o *Options) effectiveLanguageName() string {
	if o.LanguageName != "" {
		return o.LanguageName
	}
	return LangDisplayName(o.Language)
}

// LangDisplayName resolves a language code to its English display name
// ("fa" → "Persian"). Transifex-style underscores (pt_BR) are accepted.
// Unknown codes are returned unchanged.
func LangDisplayName(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Engine translates and reviews individual strings with placeholder
// protection. One Engine serves one target language; it is safe for
// concurrent use by multiple workers.
type Engine struct {
	opts     Options
	specs    []placeholder.Spec
	generate GenerateFunc
	rl       *rateLimitState
}

// NewEngine creates an Engine for the target language in opts.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:  opts,
		specs: placeholder.DefaultSpecs(),
		rl:    &rateLimitState{},
	}
	if opts.Timeout > 0 {
		e.opts.Provider.Timeout = opts.Timeout
	}
	e.generate = opts.Generate
	if e.generate == nil {
		e.generate = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
			return callProvider(ctx, e.opts.Provider, systemPrompt, userPrompt, e.rl, e.opts.effectiveMaxRetries(), e.opts.Verbose)
		}
	}
	return e
}

// resolvedPrompt substitutes the target language name into a system prompt.
func (e *Engine) resolvedPrompt(prompt string) string {
	return strings.ReplaceAll(prompt, "{{targetLang}}", e.opts.effectiveLanguageName())
}

// Translate translates a single source string, protecting placeholders.
//
// Every failure path degrades to returning source unchanged: a model error,
// and equally a restored translation that fails the placeholder integrity
// check, both fall back to the input. Translate never returns an error.
func (e *Engine) Translate(ctx context.Context, source, contextNote string) string {
	escaped, tokens := placeholder.Escape(source, e.specs)

	// Tell the model which markers exist so it knows to echo them.
	if len(tokens) > 0 {
		var info []string
		for _, tok := range tokens {
			info = append(info, fmt.Sprintf("%s (%s style)", tok.Token, tok.Style))
		}
		contextNote = contextNote + "\nPlaceholders found: " + strings.Join(info, ", ")
	}
	if strings.TrimSpace(contextNote) == "" {
		contextNote = noContext
	}

	userPrompt := fmt.Sprintf("Text to translate: %s\nContext: %s", escaped, contextNote)
	reply, err := e.generate(ctx, e.resolvedPrompt(TranslateSystemPrompt), userPrompt)
	if err != nil {
		e.opts.logError("Error translating %q: %v", truncate(source, 80), err)
		return source
	}

	restored := placeholder.Restore(reply, tokens)
	if !placeholder.VerifyIntegrity(restored, tokens) {
		e.opts.logError("Warning: placeholder lost in translation of %q, keeping source", truncate(source, 80))
		return source
	}

	return restored
}

// Review asks the model to approve or reject an existing translation.
//
// Review fails closed: a model error or an unparseable reply produces a
// rejected Result carrying the error text as explanation. Every input item
// yields exactly one Result.
func (e *Engine) Review(ctx context.Context, item csvfile.Item) csvfile.Result {
	itemContext := item.Context
	if strings.TrimSpace(itemContext) == "" {
		itemContext = noContext
	}
	userPrompt := fmt.Sprintf("Source: %s\nTranslation: %s\nContext: %s",
		item.Source, item.Translation, itemContext)

	reply, err := e.generate(ctx, e.resolvedPrompt(ReviewSystemPrompt), userPrompt)
	if err != nil {
		e.opts.logError("Error reviewing %q: %v", item.Key, err)
		return csvfile.Result{
			Item:        item,
			IsValid:     false,
			Explanation: fmt.Sprintf("Error during review: %v", err),
		}
	}

	isValid, explanation, err := parseVerdict(reply)
	if err != nil {
		e.opts.logError("Error parsing review of %q: %v", item.Key, err)
		return csvfile.Result{
			Item:        item,
			IsValid:     false,
			Explanation: fmt.Sprintf("Error during review: %v", err),
		}
	}

	return csvfile.Result{
		Item:        item,
		IsValid:     isValid,
		Explanation: explanation,
	}
}

// parseVerdict extracts the structured verdict from a model reply. The first
// line starting with "VERDICT:" decides approval (any line containing
// APPROVE counts), and the first line starting with "REASON:" supplies the
// explanation with the prefix stripped and trimmed.
func parseVerdict(reply string) (isValid bool, explanation string, err error) {
	var verdictLine, reasonLine string
	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		if verdictLine == "" && strings.HasPrefix(trimmed, "VERDICT:") {
			verdictLine = trimmed
		}
		if reasonLine == "" && strings.HasPrefix(trimmed, "REASON:") {
			reasonLine = trimmed
		}
	}

	if verdictLine == "" {
		return false, "", fmt.Errorf("no VERDICT line in reply: %s", truncate(reply, 200))
	}
	if reasonLine == "" {
		return false, "", fmt.Errorf("no REASON line in reply: %s", truncate(reply, 200))
	}

	isValid = strings.Contains(verdictLine, "APPROVE")
	explanation = strings.TrimSpace(strings.TrimPrefix(reasonLine, "REASON:"))
	return isValid, explanation, nil
}
