package wcag

import (
	"strings"
)

// Assessment is the compliance verdict for a piece of alt text.
type Assessment struct {
	Score          float64  `json:"score"`
	Status         string   `json:"status"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
}

const (
	StatusMissing      = "missing"
	StatusCompliant    = "compliant"
	StatusPoor         = "poor"
	StatusNonCompliant = "non_compliant"
)

var redundantPrefixes = []string{"image of", "picture of", "photo of", "img"}

var genericTerms = map[string]struct{}{
	"image": {}, "photo": {}, "picture": {}, "icon": {},
	"logo": {}, "graphic": {}, "banner": {}, "placeholder": {},
}

var fileExtensions = []string{".jpg", ".png", ".gif", ".svg", ".webp", ".bmp"}

// Analyze scores alt text against WCAG authoring guidance. The deductions
// mirror the scoring used on generated text so stored and checked scores are
// comparable.
func Analyze(altText string) Assessment {
	trimmed := strings.TrimSpace(altText)
	if trimmed == "" {
		return Assessment{
			Score:          0,
			Status:         StatusMissing,
			Issues:         []string{"Alt text is completely missing"},
			Recommendation: "Add descriptive alt text that conveys the image content and purpose",
		}
	}

	var issues []string
	score := 100.0
	lower := strings.ToLower(trimmed)

	for _, prefix := range redundantPrefixes {
		if strings.HasPrefix(lower, prefix) {
			issues = append(issues, "Starts with redundant prefix (e.g., 'Image of')")
			score -= 15
			break
		}
	}

	if len(trimmed) < 10 {
		issues = append(issues, "Too short, may not be descriptive enough")
		score -= 25
	}
	if len(trimmed) > 250 {
		issues = append(issues, "Too long, consider a long description for complex images")
		score -= 10
	}

	if _, ok := genericTerms[lower]; ok {
		issues = append(issues, "Generic, non-descriptive alt text")
		score -= 40
	}

	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			issues = append(issues, "Contains a filename instead of a description")
			score -= 50
			break
		}
	}

	if trimmed == strings.ToUpper(trimmed) && len(trimmed) > 5 && trimmed != lower {
		issues = append(issues, "All uppercase text reads poorly on screen readers")
		score -= 10
	}

	if score < 0 {
		score = 0
	}

	status := StatusNonCompliant
	switch {
	case score >= 80:
		status = StatusCompliant
	case score >= 40:
		status = StatusPoor
	}

	recommendation := "Consider improving alt text to better describe the image content"
	if score >= 80 {
		recommendation = "Alt text is acceptable"
	}
	if len(issues) == 0 {
		issues = []string{"Alt text meets basic compliance standards"}
	}

	return Assessment{
		Score:          score,
		Status:         status,
		Issues:         issues,
		Recommendation: recommendation,
	}
}
