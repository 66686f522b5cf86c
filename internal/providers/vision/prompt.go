package vision

import (
	"fmt"
	"strings"
)

var languageInstructions = map[string]string{
	"en":  "Respond in English.",
	"es":  "Respond in Spanish (Español).",
	"fr":  "Respond in French (Français).",
	"de":  "Respond in German (Deutsch).",
	"pt":  "Respond in Portuguese (Português).",
	"ja":  "Respond in Japanese (日本語).",
	"ko":  "Respond in Korean (한국어).",
	"zh":  "Respond in Chinese (中文).",
	"ar":  "Respond in Arabic (العربية).",
	"hi":  "Respond in Hindi (हिन्दी).",
	"it":  "Respond in Italian (Italiano).",
	"nl":  "Respond in Dutch (Nederlands).",
	"ru":  "Respond in Russian (Русский).",
	"haw": "Respond in Hawaiian (ʻŌlelo Hawaiʻi).",
}

var tonePrompts = map[string]string{
	"formal":    "Use formal, professional language suitable for corporate or government websites.",
	"casual":    "Use casual, friendly language suitable for blogs and social media.",
	"technical": "Use precise technical language with specific details about visual elements.",
	"simple":    "Use simple, clear language at a 6th-grade reading level. Avoid jargon.",
}

// SupportedLanguages lists the ISO codes with dedicated instructions.
func SupportedLanguages() []string {
	out := make([]string, 0, len(languageInstructions))
	for code := range languageInstructions {
		out = append(out, code)
	}
	return out
}

// BuildSystemPrompt assembles the accessibility-specialist instruction block
// sent to every vision model.
func BuildSystemPrompt(language, tone, wcagLevel, context string) string {
	langInstruction, ok := languageInstructions[language]
	if !ok {
		langInstruction = fmt.Sprintf("Respond in the language with ISO code: %s.", language)
	}
	toneInstruction, ok := tonePrompts[tone]
	if !ok {
		toneInstruction = tonePrompts["formal"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are TheAltText, an expert accessibility specialist that generates WCAG %s compliant alt text for images.\n\n", wcagLevel)
	b.WriteString("Your task: Generate a single, concise, descriptive alt text for the provided image.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "1. %s\n", langInstruction)
	fmt.Fprintf(&b, "2. %s\n", toneInstruction)
	fmt.Fprintf(&b, "3. WCAG %s compliance requirements:\n", wcagLevel)
	b.WriteString("   - Describe the meaningful content and function of the image\n")
	b.WriteString("   - Keep alt text between 50-150 characters for most images\n")
	b.WriteString("   - For complex images (charts, infographics), provide detailed descriptions up to 250 characters\n")
	b.WriteString("   - Do NOT start with \"Image of\" or \"Picture of\", describe the content directly\n")
	b.WriteString("   - If the image is decorative, respond with exactly: \"\"\n")
	b.WriteString("   - Include relevant colors, text, actions, and spatial relationships\n")
	b.WriteString("4. Be specific: \"Golden retriever catching a red frisbee in a park\" not \"Dog playing\"\n")
	b.WriteString("5. Include text visible in the image\n")
	b.WriteString("6. Describe the emotional tone or mood when relevant\n")
	b.WriteString("7. For product images, include key product details\n")
	if context != "" {
		fmt.Fprintf(&b, "\nAdditional context: %s\n", context)
	}
	b.WriteString("\nRespond with ONLY the alt text string. No quotes, no explanation, no prefix.")
	return b.String()
}
