// internal/pipeline/classify-intent/models.go
package classifyintent

type Input struct {
	Text string `json:"text"`
}

// Entity is a typed span extracted from the turn text. Start and End
// are byte offsets into the raw text, half-open.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// IntentResult is one ranked hypothesis for the turn's intent.
type IntentResult struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities,omitempty"`
}

// Output carries the ranked hypotheses, best first. Never empty: the
// unknown fallback at confidence 0 is always present.
type Output struct {
	Results []IntentResult `json:"results"`
}

// Top returns the best-ranked result.
func (o *Output) Top() IntentResult {
	return o.Results[0]
}
