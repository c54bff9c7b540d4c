// internal/agent/intent.go
package agent

import (
	"sort"
	"strings"
)

// corrections maps known speech-recognition mishearings to what the user
// actually said. Applied longest-match-first on the raw transcription before
// any parsing. Grown from real transcription logs.
var corrections = map[string]string{
	// ChatGPT is misheard constantly.
	"charge gpt":  "chatgpt",
	"charge bt":   "chatgpt",
	"charge pt":   "chatgpt",
	"charger gpt": "chatgpt",
	"chart gpt":   "chatgpt",
	"chat gpt":    "chatgpt",
	"chad gpt":    "chatgpt",
	"chatter gpt": "chatgpt",
	// Gmail
	"g mail": "gmail",
	"g male": "gmail",
	"g meil": "gmail",
	// WhatsApp
	"whats app": "whatsapp",
	"what's app": "whatsapp",
	"what app":  "whatsapp",
	// YouTube
	"you tube": "youtube",
	"u tube":   "youtube",
}

// NormalizeUtterance applies the misrecognition correction table to a raw
// transcription. Longer patterns win so "charge gpt" is fixed before "charge".
func NormalizeUtterance(text string) string {
	out := strings.TrimSpace(text)
	lower := strings.ToLower(out)

	keys := make([]string, 0, len(corrections))
	for k := range corrections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, wrong := range keys {
		for {
			idx := strings.Index(lower, wrong)
			if idx < 0 {
				break
			}
			out = out[:idx] + corrections[wrong] + out[idx+len(wrong):]
			lower = strings.ToLower(out)
		}
	}
	return out
}

// Parser classifies utterances and extracts structured intents. It is a pure
// component: no side effects, no suspension, and it never fails - anything it
// cannot make sense of becomes a plain QUERY.
type Parser struct {
	registry AppRegistry
}

// NewParser builds a parser backed by the given app registry for fuzzy
// target resolution.
func NewParser(registry AppRegistry) *Parser {
	return &Parser{registry: registry}
}

var greetings = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "howdy",
}

var agentQuestions = []string{
	"who are you", "what are you", "what can you do", "how are you",
	"how do you work", "help",
}

var thanksPhrases = []string{"thanks", "thank you"}

// noisePhrases are filler or background speech that must never drive the
// device.
var noisePhrases = []string{
	"hmm", "umm", "uh", "never mind", "forget it", "hold on", "one moment",
	"just a second", "wait", "oops", "i don't know", "what was that",
}

var actionVerbs = []string{
	"open", "launch", "start", "close", "exit", "quit", "tap", "click",
	"press", "type", "search", "find", "ask", "tell", "extract", "read",
	"go", "send",
}

// commandStopWords end app-name extraction after an "open" verb.
var commandStopWords = map[string]bool{
	"and": true, "then": true, "to": true, "for": true,
	"ask": true, "search": true, "find": true, "tell": true,
}

var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "please": true, "you": true,
	"very": true, "so": true, "pretty": true,
}

// IsConversational reports whether text is small talk or noise rather than a
// device command. Conversational input short-circuits the orchestrator
// straight to RESPOND; the device is never touched for it.
func (p *Parser) IsConversational(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return true
	}

	// Anything carrying an action verb is a command, full stop.
	for _, verb := range actionVerbs {
		if containsWord(lower, verb) {
			return false
		}
	}

	// Whole-word matches only: "hi" must not fire inside "highest", nor
	// "wait" inside "await".
	for _, g := range greetings {
		if containsPhrase(lower, g) {
			return true
		}
	}
	for _, q := range agentQuestions {
		if containsPhrase(lower, q) {
			return true
		}
	}
	for _, t := range thanksPhrases {
		if containsPhrase(lower, t) {
			return true
		}
	}
	for _, n := range noisePhrases {
		if containsPhrase(lower, n) {
			return true
		}
	}

	// Very short verb-less phrases are almost always chatter.
	return len(strings.Fields(lower)) <= 3
}

// CannedReply produces the spoken response for conversational input.
func (p *Parser) CannedReply(text string) string {
	lower := strings.ToLower(text)

	for _, g := range greetings {
		if containsPhrase(lower, g) {
			return "Hello! I can open apps, search, and navigate your device. What would you like me to do?"
		}
	}
	if containsPhrase(lower, "how are you") {
		return "I'm doing well, thank you! Ready when you are."
	}
	for _, q := range agentQuestions {
		if containsPhrase(lower, q) {
			return "I'm a hands-free device assistant. I can open apps, search for things, handle sign-ins, and read the screen back to you. Try saying 'open gmail'."
		}
	}
	for _, t := range thanksPhrases {
		if containsPhrase(lower, t) {
			return "You're welcome! Anything else?"
		}
	}
	return "I'm here to help. You can ask me to open apps, search, or read the screen. For example, say 'open settings'."
}

// Parse turns an utterance into an executable intent. It never returns an
// error: unparseable input falls back to a bare QUERY carrying the whole
// text, so every utterance yields something the orchestrator can run.
func (p *Parser) Parse(text string) Intent {
	cleaned := NormalizeUtterance(text)
	if p.IsConversational(cleaned) {
		return Intent{Action: ActionConversational, Query: cleaned}
	}

	words := strings.Fields(cleaned)
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(strings.Trim(w, ".,!?"))
	}

	if intent, ok := p.parseOpen(words, lower); ok {
		return intent
	}
	if intent, ok := p.parseSystem(lower); ok {
		return intent
	}
	if intent, ok := p.parseExtract(lower); ok {
		return intent
	}
	if intent, ok := p.parseSearchOrQuery(words, lower); ok {
		return intent
	}

	return Intent{Action: ActionQuery, Query: cleaned}
}

// parseOpen handles "open <app> [and ask/search <query>]".
func (p *Parser) parseOpen(words, lower []string) (Intent, bool) {
	verbIdx := -1
	for i, w := range lower {
		if w == "open" || w == "launch" || w == "start" {
			verbIdx = i
			break
		}
	}
	if verbIdx < 0 {
		return Intent{}, false
	}

	var appWords []string
	rest := len(words)
	for i := verbIdx + 1; i < len(words); i++ {
		if commandStopWords[lower[i]] {
			rest = i
			break
		}
		if fillerWords[lower[i]] {
			continue
		}
		appWords = append(appWords, lower[i])
	}
	if len(appWords) == 0 {
		return Intent{}, false
	}

	target := strings.Join(appWords, " ")
	if p.registry != nil {
		if canon, ok := p.registry.Canonical(target); ok {
			target = canon
		}
	}

	query := extractQuery(words, lower, rest)
	return Intent{Action: ActionOpenApp, Target: target, Query: query}, true
}

// extractQuery pulls the free-text payload after a query marker ("ask",
// "search", "tell me", "find"), preserving the user's casing.
func extractQuery(words, lower []string, from int) string {
	markerIdx := -1
	for i := from; i < len(lower); i++ {
		switch lower[i] {
		case "ask", "search", "find", "tell", "query":
			markerIdx = i
		}
		if markerIdx >= 0 {
			break
		}
	}
	if markerIdx < 0 || markerIdx+1 >= len(words) {
		return ""
	}
	start := markerIdx + 1
	// "tell me X" -> X
	if lower[markerIdx] == "tell" && start < len(lower) && lower[start] == "me" {
		start++
	}
	if start >= len(words) {
		return ""
	}
	return strings.TrimRight(strings.Join(words[start:], " "), " .!?")
}

func (p *Parser) parseSystem(lower []string) (Intent, bool) {
	for _, w := range lower {
		switch w {
		case "close", "exit", "quit":
			return Intent{Action: ActionSystem, Target: "home"}, true
		}
	}
	if containsWord(strings.Join(lower, " "), "go") && containsWord(strings.Join(lower, " "), "home") {
		return Intent{Action: ActionSystem, Target: "home"}, true
	}
	return Intent{}, false
}

func (p *Parser) parseExtract(lower []string) (Intent, bool) {
	joined := strings.Join(lower, " ")
	if strings.Contains(joined, "extract") ||
		strings.Contains(joined, "what does it say") ||
		strings.Contains(joined, "read the screen") {
		return Intent{Action: ActionExtract}, true
	}
	return Intent{}, false
}

func (p *Parser) parseSearchOrQuery(words, lower []string) (Intent, bool) {
	for i, w := range lower {
		switch w {
		case "search", "find":
			if i+1 < len(words) {
				q := strings.TrimRight(strings.Join(words[i+1:], " "), " .!?")
				q = strings.TrimPrefix(q, "for ")
				return Intent{Action: ActionSearch, Query: q}, true
			}
		case "ask", "query", "tell":
			q := extractQuery(words, lower, i)
			if q != "" {
				return Intent{Action: ActionQuery, Query: q}, true
			}
		}
	}
	return Intent{}, false
}

// containsWord reports whether s contains w as a whole word.
func containsWord(s, w string) bool {
	for _, f := range strings.Fields(s) {
		if strings.Trim(f, ".,!?") == w {
			return true
		}
	}
	return false
}

// containsPhrase reports whether s contains phrase as a run of whole words.
func containsPhrase(s, phrase string) bool {
	want := strings.Fields(phrase)
	have := strings.Fields(s)
	if len(want) == 0 || len(want) > len(have) {
		return false
	}
	for i := 0; i+len(want) <= len(have); i++ {
		match := true
		for j, w := range want {
			if strings.Trim(have[i+j], ".,!?") != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
