package summary

import (
	"strings"

	"github.com/evolearn/studyhub/internal/model"
)

const (
	ModelFast     = "gemini-2.5-flash"
	ModelDetailed = "gemini-2.5-pro"
)

// NormalizeModel maps an empty or retired model name to the default model
// for the analysis type.
func NormalizeModel(analysis model.AnalysisType, name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.HasPrefix(name, "gemini-1.5") {
		return name
	}
	if analysis == model.AnalysisDetailed {
		return ModelDetailed
	}
	return ModelFast
}
