package intent

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	// defaultFuzzyThreshold is a tuning knob, not a semantic guarantee.
	defaultFuzzyThreshold = 0.75
	defaultLLMTimeout     = 8 * time.Second
)

// Classification cues over the raw (unnormalized) input. The router keeps
// its own lightweight patterns here rather than depending on the full
// extractor: these decide priority between overlapping rules, nothing more.
var (
	orderIDCue = regexp.MustCompile(`(?i)\bORD[-_]?\d{3,}\b`)
	addressCue = regexp.MustCompile(`(?i)\b\d{1,6}\s+[A-Za-z0-9 .'-]+,\s*[A-Za-z .'-]+,\s*[A-Za-z]{2}\s+\d{5}(?:-\d{4})?\b`)
)

// rule binds a label to its trigger keywords and an optional raw-text cue.
// Rules are evaluated in table order: more specific intents come first so
// that shared vocabulary never misroutes to a broader rule.
type rule struct {
	label    Label
	cue      func(text string) bool
	keywords []string
}

func hasOrderWithAddress(text string) bool {
	return orderIDCue.MatchString(text) && addressCue.MatchString(text)
}

var defaultRules = []rule{
	{
		label:    ChangeShippingAddress,
		cue:      hasOrderWithAddress,
		keywords: []string{"change shipping address", "update shipping address", "new shipping address", "shipping address"},
	},
	{label: CheckPayment, keywords: []string{"check payment", "payment status", "track payment"}},
	{label: ChangeAddress, keywords: []string{"change address", "update address", "new address"}},
	{label: ChangeEmail, keywords: []string{"change email", "update email", "new email"}},
	{label: ChangePhone, keywords: []string{"change phone", "update phone", "new phone", "phone number"}},
	{label: ChangeName, keywords: []string{"change name", "update name", "new name"}},
	{label: ForgotPassword, keywords: []string{"forgot password", "reset password", "lost password", "password"}},
	{label: Refund, keywords: []string{"refund", "return", "money back"}},
	{label: Billing, keywords: []string{"billing", "invoice", "charge", "payment"}},
	{label: ShippingStatus, keywords: []string{"shipping", "delivery", "where is my package", "track shipping", "delivered", "carrier"}},
	{label: CheckOrder, keywords: []string{"check order", "my order", "track order", "order status", "order", "orders"}},
	{label: MessageAgent, keywords: []string{"message agent", "send me an email", "email user", "notify user", "send confirmation", "send email"}},
	{label: LiveAgent, keywords: []string{"live agent", "human agent", "chat with agent", "speak to a human", "talk to a human"}},
	{label: Memory, keywords: []string{"chat history", "conversation history", "history", "memory"}},
}

// LLMClient is the external classification collaborator. It receives a
// complete prompt and returns raw, untrusted label text.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier resolves an utterance to a Label via three tiers: rule-table
// match, fuzzy keyword similarity, then LLM fallback. Classification never
// fails a turn; every degraded path resolves to Other.
type Classifier struct {
	rules      []rule
	threshold  float64
	llm        LLMClient
	llmTimeout time.Duration
	log        *slog.Logger
}

type Option func(*Classifier)

// WithThreshold sets the fuzzy-match acceptance threshold in (0,1].
func WithThreshold(t float64) Option {
	return func(c *Classifier) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithLLMTimeout bounds the LLM fallback call.
func WithLLMTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.llmTimeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Classifier) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClassifier creates a Classifier backed by the given LLM collaborator.
func NewClassifier(llm LLMClient, opts ...Option) (*Classifier, error) {
	if llm == nil {
		return nil, errors.New("intent: llm client must not be nil")
	}
	c := &Classifier{
		rules:      defaultRules,
		threshold:  defaultFuzzyThreshold,
		llm:        llm,
		llmTimeout: defaultLLMTimeout,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify resolves text to a label. The result is never empty.
func (c *Classifier) Classify(ctx context.Context, text string) Label {
	norm := normalizeText(text)

	if label, ok := c.exactMatch(text, norm); ok {
		return label
	}
	if label, ok := c.fuzzyMatch(norm); ok {
		return label
	}
	return c.llmFallback(ctx, text)
}

// exactMatch walks the rule table in priority order. Cues run against the
// raw text (punctuation matters for them); keywords are literal substrings
// of the normalized input.
func (c *Classifier) exactMatch(raw, norm string) (Label, bool) {
	for _, r := range c.rules {
		if r.cue != nil && r.cue(raw) {
			return r.label, true
		}
		for _, kw := range r.keywords {
			if strings.Contains(norm, kw) {
				return r.label, true
			}
		}
	}
	return "", false
}

// fuzzyMatch compares every keyword against every input word and accepts the
// single best pair at or above the threshold.
func (c *Classifier) fuzzyMatch(norm string) (Label, bool) {
	words := strings.Fields(norm)
	if len(words) == 0 {
		return "", false
	}
	var (
		best      float64
		bestLabel Label
	)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			for _, w := range words {
				if s := ratio(kw, w); s > best {
					best = s
					bestLabel = r.label
				}
			}
		}
	}
	if best >= c.threshold {
		return bestLabel, true
	}
	return "", false
}

func (c *Classifier) llmFallback(ctx context.Context, text string) Label {
	ctx, cancel := context.WithTimeout(ctx, c.llmTimeout)
	defer cancel()

	raw, err := c.llm.Complete(ctx, classifyPrompt(text))
	if err != nil {
		c.log.Warn("intent classification fallback failed", "err", err)
		return Other
	}
	return Normalize(raw)
}

func classifyPrompt(text string) string {
	labels := make([]string, 0, len(All))
	for _, l := range All {
		labels = append(labels, "'"+string(l)+"'")
	}
	return "Classify the user's intent as one of: [" + strings.Join(labels, ", ") + "].\n" +
		"User: " + text + "\n" +
		"Return just the label."
}

// normalizeText lowercases, strips non-alphanumeric runes, and collapses
// whitespace so keyword matching ignores punctuation.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
