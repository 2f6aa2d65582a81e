package ai

import (
	"fmt"
	"strings"

	"github.com/evolearn/studyhub/internal/model"
)

const fastGuide = `Write a short executive summary of the study material below in Markdown.
Include a title with a one sentence thesis, 6 to 10 key points, 3 to 5 quick actions and a short glossary.
Stay faithful to the text, do not invent content, and answer in the language of the material.
Aim for 120 to 250 words.`

const detailedGuide = `Write a detailed, well structured summary of the study material below in Markdown.
Include an executive summary, 8 to 12 key points, concepts and definitions, entities, dates and figures,
short quotes, implications and risks, actionable recommendations and one comparison table.
Keep technical terms exact, do not invent content, and answer in the language of the material.
Aim for 400 to 700 words.`

func guideFor(analysis model.AnalysisType) string {
	if analysis == model.AnalysisDetailed {
		return detailedGuide
	}
	return fastGuide
}

func chunkPrompt(text string, analysis model.AnalysisType, index, total int) string {
	var b strings.Builder
	b.WriteString(guideFor(analysis))
	if total > 1 {
		fmt.Fprintf(&b, "\n\nThis is part %d of %d of the document. Summarize only this part.", index, total)
	}
	b.WriteString("\n\n---\n\n")
	b.WriteString(text)
	return b.String()
}

func combinePrompt(partials []string, analysis model.AnalysisType) string {
	return "Combine the following partial summaries into a single summary.\n" +
		guideFor(analysis) + "\n\n" + strings.Join(partials, "\n\n---\n\n")
}
