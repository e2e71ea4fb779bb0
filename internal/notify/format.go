package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	FieldStatus   = "status"
	FieldAssignee = "assignee"
	FieldDueDate  = "due_date"
	FieldComment  = "comment"
)

const maxCommentPreview = 80

// FormatChange renders ev's change as a one-line summary.
func FormatChange(ev Event) string {
	c := ev.Change
	switch c.Field {
	case FieldStatus:
		return fmt.Sprintf("Status changed from %s to %s", humanize(c.From), humanize(c.To))
	case FieldAssignee:
		if c.To == "" {
			if c.From == "" {
				return "Unassigned"
			}
			return fmt.Sprintf("Unassigned from %s", c.From)
		}
		return fmt.Sprintf("Assigned to %s", c.To)
	case FieldDueDate:
		if c.To == "" {
			return "Due date removed"
		}
		return fmt.Sprintf("Due date changed to %s", c.To)
	case FieldComment:
		body := preview(c.To)
		if ev.Actor != "" {
			return fmt.Sprintf("New comment from %s: %s", ev.Actor, body)
		}
		return fmt.Sprintf("New comment: %s", body)
	default:
		name := humanize(c.Field)
		if c.From == "" {
			return fmt.Sprintf("%s set to %s", name, c.To)
		}
		return fmt.Sprintf("%s changed from %s to %s", name, c.From, c.To)
	}
}

// SectionFor maps a changed field to the item-detail section the UI should
// highlight.
func SectionFor(field string) string {
	switch field {
	case FieldStatus:
		return "status"
	case FieldAssignee:
		return "assignee"
	case FieldDueDate:
		return "dates"
	case FieldComment:
		return "comments"
	default:
		return "details"
	}
}

// humanize turns "in_progress" into "In Progress".
func humanize(s string) string {
	if s == "" {
		return "none"
	}
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxCommentPreview {
		return s
	}
	r := []rune(s)
	return string(r[:maxCommentPreview-1]) + "…"
}
