// Package brief compiles the bounded-size session brief from current
// memory state. The compiler is a read-only consumer of the store: it
// never mutates records and never blocks on missing data.
package brief

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/engram/engram/internal/decay"
	"github.com/engram/engram/internal/store"
)

// Options bounds the compiled document.
type Options struct {
	SectionLines   int // per-section line budget
	MaxTokens      int // overall cap; 0 disables
	SessionEntries int // max session-history entries considered
	Counter        Counter
}

// Input is everything the compiler reads. Strength must already be
// projected as of Now.
type Input struct {
	Records  []*store.Record
	Sessions []store.SessionEntry
	Stats    *store.Stats
	Now      time.Time
}

// section maps a rendered heading to its record category and whether
// Fuzzy records are eligible alongside Clear ones.
type section struct {
	Heading    string
	Category   decay.Category
	AllowFuzzy bool
}

// Permanent Knowledge is the only section that admits Fuzzy records; the
// rest render Clear records only, and Fading records are omitted from
// the brief entirely (they stay in storage).
var sections = []section{
	{"Permanent Knowledge", decay.Knowledge, true},
	{"Current State", decay.CurrentState, false},
	{"Decisions", decay.Decision, false},
	{"Recovered", decay.Recovered, false},
}

// Compile renders the brief. Output is deterministic for unchanged
// input: candidates are ranked by (significance desc, strength desc,
// recency desc) with insertion order as the final tiebreak.
func Compile(in Input, opts Options) string {
	if opts.SectionLines <= 0 {
		opts.SectionLines = 40
	}
	if opts.SessionEntries <= 0 {
		opts.SessionEntries = 10
	}

	byCategory := make(map[decay.Category][]*store.Record)
	for _, r := range in.Records {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	var b strings.Builder
	b.WriteString("# Session Brief\n")
	fmt.Fprintf(&b, "*Generated: %s*\n", in.Now.Format("2006-01-02 15:04"))
	if in.Stats != nil {
		fmt.Fprintf(&b, "*Memories: %d total — %d clear, %d fuzzy, %d fading*\n",
			in.Stats.Total, in.Stats.Clear, in.Stats.Fuzzy, in.Stats.Fading)
		fmt.Fprintf(&b, "*Last decay: %s | Last reconciliation: %s*\n",
			in.Stats.LastDecay, in.Stats.LastRecon)
	}
	b.WriteString("\n")

	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s\n", sec.Heading)
		lines := renderSection(byCategory[sec.Category], sec.AllowFuzzy, opts.SectionLines)
		if len(lines) == 0 {
			// An empty section renders an explicit marker so consumers can
			// tell "empty" from "section missing".
			b.WriteString("(none)\n\n")
			continue
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Session History\n")
	histLines := renderSessions(in.Sessions, opts.SessionEntries, opts.SectionLines)
	if len(histLines) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, line := range histLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	doc := b.String()
	if opts.MaxTokens > 0 {
		counter := opts.Counter
		if counter == nil {
			counter = NewCounter()
		}
		doc = capTokens(doc, opts.MaxTokens, counter)
	}
	return doc
}

// renderSection ranks eligible records and greedily selects until the
// line budget is exhausted. Each record renders as a single line.
func renderSection(records []*store.Record, allowFuzzy bool, budget int) []string {
	var eligible []*store.Record
	for _, r := range records {
		switch r.Status {
		case decay.Clear:
			eligible = append(eligible, r)
		case decay.Fuzzy:
			if allowFuzzy {
				eligible = append(eligible, r)
			}
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Significance != b.Significance {
			return a.Significance > b.Significance
		}
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
			return a.LastAccessedAt.After(b.LastAccessedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt) // earliest-created wins ties
	})

	var lines []string
	for _, r := range eligible {
		if len(lines) >= budget {
			break
		}
		lines = append(lines, renderRecord(r))
	}
	return lines
}

func renderRecord(r *store.Record) string {
	prefix := ""
	if r.Status == decay.Fuzzy {
		prefix = "[fuzzy] "
	}

	stars := r.Significance
	if stars > 5 {
		stars = 5
	}

	body := firstLine(r.Body, 160)
	line := fmt.Sprintf("- %s**%s** %s — %s", prefix, r.Title, strings.Repeat("*", stars), body)
	if len(r.Tags) > 0 {
		line += fmt.Sprintf(" _[%s]_", strings.Join(r.Tags, ", "))
	}
	return line
}

func renderSessions(entries []store.SessionEntry, maxEntries, budget int) []string {
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	var lines []string
	for _, e := range entries {
		if len(lines) >= budget {
			break
		}
		line := fmt.Sprintf("- %s: %s", e.Date, strings.Join(e.Bullets, "; "))
		if e.Ref != "" {
			line += fmt.Sprintf(" (%s)", e.Ref)
		}
		lines = append(lines, line)
	}
	return lines
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > max {
		// Back up to a rune boundary so the cut never emits invalid UTF-8.
		cut := max - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// capTokens trims trailing lines until the document fits the token
// budget. Trimming from the end keeps the highest-priority sections
// intact.
func capTokens(doc string, maxTokens int, counter Counter) string {
	if counter.Count(doc) <= maxTokens {
		return doc
	}
	lines := strings.Split(doc, "\n")
	for len(lines) > 1 && counter.Count(strings.Join(lines, "\n")) > maxTokens {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

// Build reads current memory state from the store and compiles the
// brief as of now.
func Build(db *store.DB, opts Options, now time.Time) (string, error) {
	records, err := db.All(now)
	if err != nil {
		return "", err
	}
	sessions, err := db.RecentSessions(opts.SessionEntries)
	if err != nil {
		return "", err
	}
	stats, err := db.GetStats(now)
	if err != nil {
		return "", err
	}
	return Compile(Input{Records: records, Sessions: sessions, Stats: stats, Now: now}, opts), nil
}
