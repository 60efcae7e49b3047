// Package cachekey derives the content address of a story request.
//
// A key is a plain delimited string rather than a hash so that keys stay
// readable in the cache tables. Every text field is NFC-normalized and has
// its delimiters escaped, which keeps the concatenation injective.
package cachekey

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/pixel-quest/pkg/story"
	"golang.org/x/text/unicode/norm"
)

const (
	// SafeRoll marks a request that involved no roll.
	SafeRoll = "safe"
	// NoItem marks a request that consumed no item.
	NoItem = "none"
)

var escaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, `,`, `\,`)

func clean(s string) string {
	return escaper.Replace(norm.NFC.String(s))
}

// Build returns the cache key for one story request. It is pure and total:
// inventory order does not matter, every other field does.
func Build(theme story.Theme, history, action string, inventory []string, roll *int, usedItem string, health int) string {
	items := make([]string, len(inventory))
	for i, item := range inventory {
		items[i] = clean(item)
	}
	slices.Sort(items)

	rollPart := SafeRoll
	if roll != nil {
		rollPart = strconv.Itoa(*roll)
	}
	usedPart := NoItem
	if usedItem != "" {
		usedPart = clean(usedItem)
		if usedPart == NoItem {
			// clean never emits a lone backslash, so this cannot collide.
			usedPart = `\` + NoItem
		}
	}

	var b strings.Builder
	b.WriteString(clean(string(theme)))
	b.WriteString("|")
	b.WriteString(clean(history))
	b.WriteString("|")
	b.WriteString(clean(action))
	fmt.Fprintf(&b, "|roll:%s|inv:%s|used:%s|hp:%d", rollPart, strings.Join(items, ","), usedPart, health)
	return b.String()
}

// HistoryContext renders the last n history entries as the bounded context
// that feeds both the cache key and the narrator prompt.
func HistoryContext(history []story.HistoryEntry, n int) string {
	if n <= 0 || len(history) == 0 {
		return ""
	}
	start := max(len(history)-n, 0)
	parts := make([]string, 0, len(history)-start)
	for _, h := range history[start:] {
		parts = append(parts, "Action: "+h.ChoiceLabel+" -> "+h.Node.Text)
	}
	return strings.Join(parts, " | ")
}
