package greeter

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// WaitTimeFlag precedes the requested wait time in seconds: "greeter --wait-time 30".
const WaitTimeFlag = "--wait-time"

// Matcher recognizes commands addressed to the bot. A greeting or help request
// is a vocabulary word immediately followed by the bot's nick, compared
// case-insensitively word by word.
type Matcher struct {
	bot       string
	greetings map[string]struct{}
	help      map[string]struct{}
}

// NewMatcher builds a matcher for bot with the given trigger vocabularies.
func NewMatcher(bot string, greetings, help []string) *Matcher {
	return &Matcher{
		bot:       strings.ToLower(bot),
		greetings: wordSet(greetings),
		help:      wordSet(help),
	}
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// words splits text on whitespace and sentence punctuation, so
// "hi, greeter!" yields ["hi", "greeter"] while "--wait-time" stays whole.
func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",:;!?.", r)
	})
}

// Mentioned reports whether the bot's nick occurs anywhere in text.
func (m *Matcher) Mentioned(text string) bool {
	return m.bot != "" && strings.Contains(strings.ToLower(text), m.bot)
}

func (m *Matcher) followedByBot(text string, vocab map[string]struct{}) bool {
	w := words(text)
	for i := 0; i+1 < len(w); i++ {
		if _, ok := vocab[strings.ToLower(w[i])]; ok && strings.ToLower(w[i+1]) == m.bot {
			return true
		}
	}
	return false
}

// Greeting reports whether text greets the bot, e.g. "hello greeter".
func (m *Matcher) Greeting(text string) bool { return m.followedByBot(text, m.greetings) }

// Help reports whether text asks the bot for help, e.g. "help greeter".
func (m *Matcher) Help(text string) bool { return m.followedByBot(text, m.help) }

// WaitTimeRequested reports whether text contains the bot's nick directly
// followed by WaitTimeFlag.
func (m *Matcher) WaitTimeRequested(text string) bool {
	w := words(text)
	for i := 0; i+1 < len(w); i++ {
		if strings.ToLower(w[i]) == m.bot && w[i+1] == WaitTimeFlag {
			return true
		}
	}
	return false
}

// maxWaitSeconds keeps seconds*time.Second from overflowing a Duration.
const maxWaitSeconds = math.MaxInt64 / int64(time.Second)

// WaitTime returns the non-negative integer following the first WaitTimeFlag
// that has one. ok is false when the flag is missing or not followed by digits.
func (m *Matcher) WaitTime(text string) (seconds int, ok bool) {
	w := words(text)
	for i := 0; i+1 < len(w); i++ {
		if w[i] != WaitTimeFlag || !allDigits(w[i+1]) {
			continue
		}
		n, err := strconv.ParseInt(w[i+1], 10, 64)
		if err != nil || n > maxWaitSeconds {
			continue
		}
		return int(n), true
	}
	return 0, false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
