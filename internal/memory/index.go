package memory

import (
	"sort"
	"strings"

	"support-agent/internal/domain"
)

const (
	// DefaultWindow is how many trailing messages an Indexer considers when
	// none is configured.
	DefaultWindow = 20
	// DefaultTopK is how many relevant prior messages are linked per turn.
	DefaultTopK = 5

	refClip     = 220
	summaryClip = 80
)

// Weights are the relevance-scoring coefficients. They are empirically
// chosen tuning knobs, configurable rather than guaranteed.
type Weights struct {
	TokenOverlap  float64
	EntityOverlap float64
	TagOverlap    float64
}

// DefaultWeights returns the scoring coefficients the system ships with.
func DefaultWeights() Weights {
	return Weights{TokenOverlap: 0.5, EntityOverlap: 3.0, TagOverlap: 2.0}
}

// Indexer turns a trailing window of conversation messages into a compact
// context digest for the agent handling the current turn.
type Indexer struct {
	Window  int
	TopK    int
	Weights Weights
}

// DefaultIndexer returns an Indexer with the stock window, top-k, and weights.
func DefaultIndexer() Indexer {
	return Indexer{Window: DefaultWindow, TopK: DefaultTopK, Weights: DefaultWeights()}
}

// Digest is the per-turn context product: a one-line running summary, short
// references to the most relevant prior messages, and the aggregated memory.
type Digest struct {
	Summary string
	Refs    []string
	Memory  domain.Memory
}

// Preface renders the digest as the text block handed to agents: the summary
// line plus up to three bulleted references. Empty digests render empty.
func (d Digest) Preface() string {
	if d.Summary == "" && len(d.Refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Context Summary: ")
	b.WriteString(d.Summary)
	for i, ref := range d.Refs {
		if i == 3 {
			break
		}
		b.WriteString("\n- ")
		b.WriteString(ref)
	}
	return b.String()
}

// message is a window-local annotated view of one conversation message.
// Constructed fresh each turn and discarded with it.
type message struct {
	index   int
	role    string
	content string
	ents    domain.Entities
	tags    []string
	tagSet  map[string]struct{}
	toks    map[string]struct{}
}

// Build indexes the last Window messages of history, scores every prior
// message against the newest one, and composes the digest. An empty window
// yields an empty digest; a malformed history must never abort the turn.
func (ix Indexer) Build(history []domain.ChatMessage) (d Digest) {
	defer func() {
		if r := recover(); r != nil {
			d = Digest{}
		}
	}()

	window := ix.Window
	if window <= 0 {
		window = DefaultWindow
	}
	topK := ix.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) == 0 {
		return Digest{}
	}

	index := make([]message, 0, len(history))
	for i, m := range history {
		role := m.Role
		if role == "" {
			role = domain.RoleAssistant
		}
		toks := Tokenize(m.Content)
		tags := Tags(toks)
		index = append(index, message{
			index:   i,
			role:    role,
			content: m.Content,
			ents:    Extract(m.Content),
			tags:    tags,
			tagSet:  toSet(tags),
			toks:    toks,
		})
	}

	newest := index[len(index)-1]
	links := ix.topLinks(index, newest, topK)

	refs := make([]string, 0, len(links))
	linkIdx := make([]int, 0, len(links))
	for _, m := range links {
		refs = append(refs, m.role+": "+shorten(m.content, refClip))
		linkIdx = append(linkIdx, m.index)
	}

	return Digest{
		Summary: composeSummary(newest),
		Refs:    refs,
		Memory: domain.Memory{
			Entities: aggregateEntities(index),
			Links:    linkIdx,
		},
	}
}

// topLinks ranks every prior message by relevance to the newest one and
// keeps the strictly positive top k, highest first.
func (ix Indexer) topLinks(index []message, newest message, k int) []message {
	type scored struct {
		msg   message
		score float64
	}
	candidates := make([]scored, 0, len(index)-1)
	for _, m := range index[:len(index)-1] {
		if s := ix.score(newest, m); s > 0 {
			candidates = append(candidates, scored{msg: m, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]message, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.msg)
	}
	return out
}

// score measures how relevant a past message is to the newest one. A message
// with no content scores zero; self-comparison is excluded by the caller.
func (ix Indexer) score(newest, past message) float64 {
	if past.content == "" || past.index == newest.index {
		return 0
	}
	score := float64(overlap(newest.toks, past.toks)) * ix.Weights.TokenOverlap
	for _, pair := range [][2][]string{
		{newest.ents.Orders, past.ents.Orders},
		{newest.ents.Payments, past.ents.Payments},
		{newest.ents.Emails, past.ents.Emails},
		{newest.ents.Dates, past.ents.Dates},
	} {
		score += float64(overlap(toSet(lowerAll(pair[0])), toSet(lowerAll(pair[1])))) * ix.Weights.EntityOverlap
	}
	score += float64(overlap(newest.tagSet, past.tagSet)) * ix.Weights.TagOverlap
	return score
}

// composeSummary renders the one-line running summary from the newest
// message: its domain tags plus up to two order/payment ids, falling back to
// a clipped content fragment when no such entity is present.
func composeSummary(newest message) string {
	dom := "general"
	if len(newest.tags) > 0 {
		dom = strings.Join(newest.tags, ", ")
	}
	var clauses []string
	if ids := lowerAll(newest.ents.Orders); len(ids) > 0 {
		clauses = append(clauses, "orders: "+strings.Join(firstN(ids, 2), ", "))
	}
	if ids := lowerAll(newest.ents.Payments); len(ids) > 0 {
		clauses = append(clauses, "payments: "+strings.Join(firstN(ids, 2), ", "))
	}
	if len(clauses) == 0 {
		return dom + " — " + shorten(newest.content, summaryClip)
	}
	return dom + " — " + strings.Join(clauses, "; ")
}

// aggregateEntities unions every entity seen across the window, lowercased
// and sorted per kind for determinism.
func aggregateEntities(index []message) domain.Entities {
	orders := map[string]struct{}{}
	payments := map[string]struct{}{}
	emails := map[string]struct{}{}
	dates := map[string]struct{}{}
	addresses := map[string]struct{}{}
	for _, m := range index {
		addAll(orders, m.ents.Orders)
		addAll(payments, m.ents.Payments)
		addAll(emails, m.ents.Emails)
		addAll(dates, m.ents.Dates)
		addAll(addresses, m.ents.Addresses)
	}
	return domain.Entities{
		Orders:    sortedKeys(orders),
		Payments:  sortedKeys(payments),
		Emails:    sortedKeys(emails),
		Dates:     sortedKeys(dates),
		Addresses: sortedKeys(addresses),
	}
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func toSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

func lowerAll(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, strings.ToLower(v))
	}
	return out
}

func addAll(set map[string]struct{}, vals []string) {
	for _, v := range vals {
		set[strings.ToLower(v)] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func firstN(vals []string, n int) []string {
	if len(vals) > n {
		return vals[:n]
	}
	return vals
}
