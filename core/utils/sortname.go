package utils

import "strings"

var titleArticles = []string{"The", "A", "An"}

// TitleSort moves a leading article to the end ("The Hobbit" -> "Hobbit, The").
func TitleSort(title string) string {
	title = strings.TrimSpace(title)
	for _, article := range titleArticles {
		prefix := article + " "
		if len(title) > len(prefix) && strings.EqualFold(title[:len(prefix)], prefix) {
			rest := strings.TrimSpace(title[len(prefix):])
			if rest != "" {
				return rest + ", " + title[:len(article)]
			}
		}
	}
	return title
}

// AuthorSort renders a person name surname first ("Frank Herbert" -> "Herbert, Frank").
func AuthorSort(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return strings.TrimSpace(name)
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

// AuthorsSort joins the sort names of several authors with calibre's separator.
func AuthorsSort(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, AuthorSort(n))
	}
	return strings.Join(out, " & ")
}
