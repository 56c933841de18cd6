package services

import (
	"sort"
	"strings"

	"uninotes/pkg/models"
)

// FilterAll disables a select filter.
const FilterAll = "all"

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func active(v string) bool {
	return v != "" && v != FilterAll
}

// tagNames indexes tag names by id.
func tagNames(tags []models.Tag) map[string]string {
	names := make(map[string]string, len(tags))
	for _, t := range tags {
		names[t.ID] = t.Name
	}
	return names
}

// FilterNotes keeps notes whose title, content or tag name contains term,
// ignoring case. An empty term keeps everything.
func FilterNotes(notes []models.Note, tags []models.Tag, term string) []models.Note {
	term = normalizeTerm(term)
	if term == "" {
		return notes
	}
	names := tagNames(tags)

	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if contains(n.Title, term) || contains(n.Content, term) || contains(names[n.TagID], term) {
			out = append(out, n)
		}
	}
	return out
}

// AdminNoteFilter is the admin notes toolbar. "all" or empty disables a field.
type AdminNoteFilter struct {
	Search   string
	Category string
	Status   string
}

// FilterAdminNotes applies the admin toolbar: the search term matches title,
// content, author full name or tag name; category and status must match exactly.
func FilterAdminNotes(notes []models.Note, tags []models.Tag, f AdminNoteFilter) []models.Note {
	term := normalizeTerm(f.Search)
	names := tagNames(tags)

	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if term != "" && !(contains(n.Title, term) ||
			contains(n.Content, term) ||
			contains(n.AuthorName(), term) ||
			contains(names[n.TagID], term)) {
			continue
		}
		if active(f.Category) && n.CategoryID != f.Category {
			continue
		}
		if active(f.Status) && noteStatus(n) != f.Status {
			continue
		}
		out = append(out, n)
	}
	return out
}

func noteStatus(n models.Note) string {
	if n.Status == "" {
		return models.NoteStatusActive
	}
	return n.Status
}

// FilterCategories matches name or description.
func FilterCategories(categories []models.Category, term string) []models.Category {
	term = normalizeTerm(term)
	if term == "" {
		return categories
	}
	out := make([]models.Category, 0, len(categories))
	for _, c := range categories {
		if contains(c.Name, term) || contains(c.Description, term) {
			out = append(out, c)
		}
	}
	return out
}

// FilterTags matches the tag name.
func FilterTags(tags []models.Tag, term string) []models.Tag {
	term = normalizeTerm(term)
	if term == "" {
		return tags
	}
	out := make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		if contains(t.Name, term) {
			out = append(out, t)
		}
	}
	return out
}

// Tag sort orders.
const (
	SortByUsage = "usage"
	SortByName  = "name"
	SortByDate  = "date"
)

// TagUsage counts notes per tag id.
func TagUsage(notes []models.Note) map[string]int {
	usage := make(map[string]int)
	for _, n := range notes {
		if n.TagID != "" {
			usage[n.TagID]++
		}
	}
	return usage
}

// SortTags returns a sorted copy: by name ascending, by date newest first,
// or by usage (most used first, ties by name).
func SortTags(tags []models.Tag, by string, usage map[string]int) []models.Tag {
	out := append([]models.Tag(nil), tags...)
	switch by {
	case SortByName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortByDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if usage[out[i].ID] != usage[out[j].ID] {
				return usage[out[i].ID] > usage[out[j].ID]
			}
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out
}

// UserFilter is the admin users toolbar.
type UserFilter struct {
	Search string
	Role   string
}

// FilterUsers matches full name, email or university, then role.
func FilterUsers(users []models.User, f UserFilter) []models.User {
	term := normalizeTerm(f.Search)
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if term != "" && !(contains(u.FullName(), term) ||
			contains(u.Email, term) ||
			contains(u.University, term)) {
			continue
		}
		if active(f.Role) && !strings.EqualFold(u.Role, f.Role) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// FilterShared keeps preview notes for the tab whose title, content or tags match.
func FilterShared(notes []models.SharedNote, tab, term string) []models.SharedNote {
	term = normalizeTerm(term)
	wantOwner := tab == SharedTabByMe

	out := make([]models.SharedNote, 0, len(notes))
	for _, n := range notes {
		if n.IsOwner != wantOwner {
			continue
		}
		if term != "" && !(contains(n.Title, term) || contains(n.Content, term) || anyContains(n.Tags, term)) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func anyContains(values []string, term string) bool {
	for _, v := range values {
		if contains(v, term) {
			return true
		}
	}
	return false
}
