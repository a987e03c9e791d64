package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// systemInstruction provides strict directions for the repair recommendation.
const systemInstruction = `You are a senior hardware repair technician assisting a colleague. Analyze the reported fault (and photos when provided) and give a practical repair recommendation. Structure the answer with "## " section headers, "- " bullet points (use "- **Label**: detail" for key/value bullets) and "**bold**" for emphasis. Ground claims in the provided past cases when relevant and in current web sources otherwise. Answer in the language of the fault description. Be concise and concrete: likely cause first, then step-by-step checks, then the fix.`

// instructionSuffix ditempel di akhir text part, setelah blok knowledge base.
const instructionSuffix = "Berikan rekomendasi perbaikan yang paling mungkin berhasil. Sebutkan juga estimasi tingkat kesulitan."

// caseSeparator joins formatted case blocks.
const caseSeparator = "---"

// noSolution placeholder kalau case lama belum punya solusi tercatat.
const noSolution = "belum ada solusi tercatat"

// Assemble builds one immutable AnalysisRequest from the technician's
// description, uploaded photos (upload order preserved) and the current
// working set of imported cases.
func Assemble(description string, images []ai.ImagePart, records []cases.CaseRecord) ai.AnalysisRequest {
	return ai.AnalysisRequest{
		Description:          description,
		Images:               images,
		KnowledgeBaseContext: BuildKnowledgeBase(records),
		SystemInstruction:    systemInstruction,
		EnableWebSearch:      true,
	}
}

// BuildKnowledgeBase renders each CaseRecord as a fixed-format block with a
// 1-based case index. Empty input yields an empty string (no block at all).
func BuildKnowledgeBase(records []cases.CaseRecord) string {
	if len(records) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(records))
	for i, rec := range records {
		solution := rec.SolutionText
		if solution == "" {
			solution = noSolution
		}
		blocks = append(blocks, fmt.Sprintf(
			"Kasus %d:\nPerangkat: %s\nKerusakan: %s\nSolusi: %s",
			i+1, rec.DeviceName, rec.FaultDescription, solution,
		))
	}
	return strings.Join(blocks, "\n"+caseSeparator+"\n")
}

// UserText composes the final text part sent to the model: the literal
// description, then the optional knowledge-base block, then the fixed
// instruction suffix. Ordering is stable; images always precede this part.
func UserText(req ai.AnalysisRequest) string {
	var b strings.Builder
	b.WriteString(req.Description)
	if req.KnowledgeBaseContext != "" {
		b.WriteString("\n\nRiwayat kasus perbaikan milik teknisi:\n")
		b.WriteString(req.KnowledgeBaseContext)
	}
	b.WriteString("\n\n")
	b.WriteString(instructionSuffix)
	return b.String()
}
