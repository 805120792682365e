package filter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"go-hh-autoreply/internal/models"
)

// MaxCandidates caps the disambiguation list.
const MaxCandidates = 6

var folder = cases.Fold()

func foldName(s string) string {
	return norm.NFC.String(folder.String(strings.TrimSpace(s)))
}

// ExactArea returns the candidate whose name equals query ignoring case.
func ExactArea(query string, candidates []models.Area) (models.Area, bool) {
	q := foldName(query)
	for _, a := range candidates {
		if foldName(a.Name) == q {
			return a, true
		}
	}
	return models.Area{}, false
}
