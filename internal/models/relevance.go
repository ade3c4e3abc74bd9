package models

// RelevanceStatus classifies a document by its total relevance score.
type RelevanceStatus string

const (
	StatusHighlyRelevant RelevanceStatus = "highly-relevant"
	StatusRelevant       RelevanceStatus = "relevant"
	StatusMarginal       RelevanceStatus = "marginal"
	StatusStale          RelevanceStatus = "stale"
)

// MaxFactorScore is the ceiling of each individual relevance factor.
const MaxFactorScore = 25

// StatusForScore maps a 0-100 score to its status.
func StatusForScore(score int) RelevanceStatus {
	switch {
	case score >= 75:
		return StatusHighlyRelevant
	case score >= 50:
		return StatusRelevant
	case score >= 30:
		return StatusMarginal
	default:
		return StatusStale
	}
}

// RelevanceFactors are the four independent scoring dimensions, each in [0,25].
type RelevanceFactors struct {
	Recency        int `json:"recency"`
	ContentQuality int `json:"content_quality"`
	Connectivity   int `json:"connectivity"`
	Uniqueness     int `json:"uniqueness"`
}

// Total sums the factors.
func (f RelevanceFactors) Total() int {
	return f.Recency + f.ContentQuality + f.Connectivity + f.Uniqueness
}

// RelevanceScore is the result of analyzing one document.
type RelevanceScore struct {
	Path      string           `json:"path"`
	Score     int              `json:"score"`
	Factors   RelevanceFactors `json:"factors"`
	Status    RelevanceStatus  `json:"status"`
	Reasoning string           `json:"reasoning"`
}
