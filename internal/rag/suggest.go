package rag

import "strings"

// catalogEntry maps question keywords to one site section. Entries are
// ordered by priority; results follow this order, not question word order.
type catalogEntry struct {
	keywords []string
	page     PageSuggestion
}

var suggestionCatalog = []catalogEntry{
	{
		keywords: []string{"experience", "work", "career", "job", "role", "company", "intelswift"},
		page: PageSuggestion{
			Title:       "Experience",
			Href:        "/experience",
			Description: "Roles, companies, and responsibilities",
		},
	},
	{
		keywords: []string{"project", "built", "build", "portfolio", "side project"},
		page: PageSuggestion{
			Title:       "Projects",
			Href:        "/#projects",
			Description: "Featured and personal projects",
		},
	},
	{
		keywords: []string{"skill", "technolog", "tech stack", "stack", "tool", "language", "framework", "specialize"},
		page: PageSuggestion{
			Title:       "Skills & Tools",
			Href:        "/skills-tools",
			Description: "Technical skills and everyday tooling",
		},
	},
	{
		keywords: []string{"education", "degree", "university", "studied", "study", "school"},
		page: PageSuggestion{
			Title:       "Education",
			Href:        "/education",
			Description: "Degrees and certifications",
		},
	},
	{
		keywords: []string{"about", "background", "who is", "bio", "story"},
		page: PageSuggestion{
			Title:       "About",
			Href:        "/about",
			Description: "Background and interests",
		},
	},
	{
		keywords: []string{"contact", "email", "reach", "hire", "linkedin", "github"},
		page: PageSuggestion{
			Title:       "Contact",
			Href:        "/about#contact",
			Description: "How to get in touch",
		},
	},
}

// Suggest maps question text to relevant site sections. Matching is
// case-insensitive substring presence; no match yields an empty result. The
// function is pure and never fails.
func Suggest(question string) []PageSuggestion {
	q := strings.ToLower(question)
	var pages []PageSuggestion
	for _, entry := range suggestionCatalog {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				pages = append(pages, entry.page)
				break
			}
		}
	}
	return pages
}
