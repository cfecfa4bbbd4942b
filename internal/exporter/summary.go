package exporter

import (
	"loanrecovery/pkg/contracts/domain"
)

// SegmentSummary aggregates the scored borrowers of one segment
type SegmentSummary struct {
	SegmentName   string  `json:"segment_name"`
	Borrowers     int     `json:"borrowers"`
	HighRisk      int     `json:"predicted_high_risk"`
	MeanRiskScore float64 `json:"mean_risk_score"`
	LegalAction   int     `json:"legal_action"`
	Settlement    int     `json:"settlement"`
	Reminders     int     `json:"reminders"`
}

// SummaryColumns is the header of the segment summary sheet
func SummaryColumns() []string {
	return []string{
		domain.ColSegmentName, "Borrowers", "Predicted_High_Risk", "Mean_Risk_Score",
		"Legal_Action", "Settlement", "Reminders",
	}
}

// Summarize groups rows by segment. All four segments are listed in cluster
// order, including empty ones.
func Summarize(rows []domain.RiskAssessment) []SegmentSummary {
	names := domain.SegmentNames()
	index := make(map[string]int, len(names))
	summaries := make([]SegmentSummary, len(names))
	for i, name := range names {
		index[name] = i
		summaries[i].SegmentName = name
	}

	sums := make([]float64, len(names))
	for _, r := range rows {
		i, ok := index[r.SegmentName]
		if !ok {
			continue
		}
		s := &summaries[i]
		s.Borrowers++
		sums[i] += r.RiskScore
		if r.PredictedHighRisk {
			s.HighRisk++
		}
		switch r.Strategy {
		case domain.StrategyLegalAction:
			s.LegalAction++
		case domain.StrategySettlement:
			s.Settlement++
		default:
			s.Reminders++
		}
	}

	for i := range summaries {
		if summaries[i].Borrowers > 0 {
			summaries[i].MeanRiskScore = sums[i] / float64(summaries[i].Borrowers)
		}
	}
	return summaries
}

func summaryRow(s SegmentSummary) []interface{} {
	return []interface{}{
		s.SegmentName, s.Borrowers, s.HighRisk, s.MeanRiskScore,
		s.LegalAction, s.Settlement, s.Reminders,
	}
}
