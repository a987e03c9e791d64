package ai

// ImagePart is one uploaded photo attached to an analysis request.
type ImagePart struct {
	Data      []byte
	MediaType string // e.g. image/jpeg, image/png
}

// AnalysisRequest is the structured payload for one outbound AI call.
// Immutable once built; image order is upload order and is preserved
// end to end.
type AnalysisRequest struct {
	Description          string
	Images               []ImagePart
	KnowledgeBaseContext string // formatted CaseRecord blocks, empty when no archive imported
	SystemInstruction    string
	EnableWebSearch      bool
}

// Citation is one {uri, title} grounding source the model used.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// AnalysisResult is the outcome of one successful invocation.
type AnalysisResult struct {
	SummaryText string     `json:"summary_text"`
	Citations   []Citation `json:"citations"`
	Model       string     `json:"model,omitempty"`
}
