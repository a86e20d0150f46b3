package assembler

import (
	"fmt"
	"strings"

	"querymind/app/service/session"
	"querymind/app/util/textutil"

	"github.com/elliotchance/pie/v2"
)

type Field string

const (
	FieldPrefs         Field = "user_profile.prefs"
	FieldConstraints   Field = "user_profile.constraints"
	FieldKeyFacts      Field = "key_facts"
	FieldDecisions     Field = "decisions"
	FieldOpenQuestions Field = "open_questions"
	FieldTodos         Field = "todos"
)

const (
	DefaultTurns  = 1
	ExpandedTurns = 3

	entityWindow    = 4
	entityThreshold = 2

	emptyContext = "(No relevant context)"
)

var (
	DefaultFields = []Field{FieldPrefs, FieldKeyFacts, FieldDecisions}

	pronouns = textutil.Set("it", "they", "them", "this", "that", "he", "she")
	contrast = textutil.Set("but", "however", "instead", "rather", "although")
)

type fieldRenderer struct {
	label  string
	sep    string
	values func(s *session.Summary) []string
}

var renderers = map[Field]fieldRenderer{
	FieldPrefs:         {label: "User preferences", sep: ", ", values: func(s *session.Summary) []string { return s.UserProfile.Prefs }},
	FieldConstraints:   {label: "User constraints", sep: ", ", values: func(s *session.Summary) []string { return s.UserProfile.Constraints }},
	FieldKeyFacts:      {label: "Key facts", sep: "; ", values: func(s *session.Summary) []string { return s.KeyFacts }},
	FieldDecisions:     {label: "Decisions", sep: "; ", values: func(s *session.Summary) []string { return s.Decisions }},
	FieldOpenQuestions: {label: "Open questions", sep: "; ", values: func(s *session.Summary) []string { return s.OpenQuestions }},
	FieldTodos:         {label: "Todos", sep: "; ", values: func(s *session.Summary) []string { return s.Todos }},
}

type Result struct {
	Text       string  `json:"text"`
	FieldsUsed []Field `json:"fields_used"`
	Turns      int     `json:"turns"`
	Expanded   bool    `json:"expanded"`
}

// HasPronoun reports whether query contains a reference pronoun as a whole word.
func HasPronoun(query string) bool {
	return textutil.ContainsAny(pronouns, textutil.LowerWords(query))
}

// ShouldExpand decides between the default and the expanded turn window.
func ShouldExpand(query string, history []session.Message) bool {
	words := textutil.LowerWords(query)
	if textutil.ContainsAny(pronouns, words) || textutil.ContainsAny(contrast, words) {
		return true
	}

	recent := history
	if len(recent) > entityWindow {
		recent = recent[len(recent)-entityWindow:]
	}

	entities := map[string]struct{}{}
	for _, m := range recent {
		for _, w := range textutil.Words(m.Content) {
			if textutil.IsCapitalized(w) {
				entities[w] = struct{}{}
			}
		}
	}

	return len(entities) > entityThreshold
}

// SelectFields returns the default fields, widened with open questions and
// todos on a pronoun, plus any fields the caller asked for.
func SelectFields(query string, requested []Field) []Field {
	fields := append([]Field{}, DefaultFields...)
	if HasPronoun(query) {
		fields = append(fields, FieldOpenQuestions, FieldTodos)
	}
	return dedupe(append(fields, requested...))
}

// Assemble renders the last turns of history and the non-empty summary fields.
// history must not include the current query.
func Assemble(query string, history []session.Message, summary *session.Summary, requested []Field) Result {
	result := Result{Turns: DefaultTurns}
	if ShouldExpand(query, history) {
		result.Turns = ExpandedTurns
		result.Expanded = true
	}

	var parts []string

	if recent := lastTurns(history, result.Turns); len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, m := range recent {
			lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(m.Role), m.Content))
		}
		parts = append(parts, "Recent conversation:\n"+strings.Join(lines, "\n"))
	}

	if summary != nil {
		var memory []string
		for _, field := range orderedFields(SelectFields(query, requested)) {
			r := renderers[field]
			values := r.values(summary)
			if len(values) == 0 {
				continue
			}
			memory = append(memory, fmt.Sprintf("%s: %s", r.label, strings.Join(values, r.sep)))
			result.FieldsUsed = append(result.FieldsUsed, field)
		}
		if len(memory) > 0 {
			parts = append(parts, "Relevant session memory:\n- "+strings.Join(memory, "\n- "))
		}
	}

	result.Text = emptyContext
	if len(parts) > 0 {
		result.Text = strings.Join(parts, "\n\n")
	}

	return result
}

func lastTurns(history []session.Message, turns int) []session.Message {
	if len(history) == 0 {
		return nil
	}
	n := min(turns, len(history)/2)
	if n == 0 {
		n = 1
	}
	if n*2 >= len(history) {
		return history
	}
	return history[len(history)-n*2:]
}

func dedupe(fields []Field) []Field {
	seen := map[Field]struct{}{}
	return pie.Filter(fields, func(f Field) bool {
		if _, dup := seen[f]; dup {
			return false
		}
		seen[f] = struct{}{}
		return true
	})
}

// orderedFields drops unknown ids while keeping the caller's order.
func orderedFields(fields []Field) []Field {
	return pie.Filter(fields, func(f Field) bool {
		_, ok := renderers[f]
		return ok
	})
}

func roleLabel(role session.Role) string {
	switch role {
	case session.RoleUser:
		return "User"
	case session.RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}
