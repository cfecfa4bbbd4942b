package domain

// RecoveryStrategy is the recommended outreach action for a borrower.
type RecoveryStrategy string

const (
	StrategyLegalAction RecoveryStrategy = "Immediate Legal Notices & Aggressive Recovery"
	StrategySettlement  RecoveryStrategy = "Settlement Offers & Repayment Plans"
	StrategyReminders   RecoveryStrategy = "Automated Reminders & Monitoring"
)

// String implements fmt.Stringer.
func (s RecoveryStrategy) String() string { return string(s) }

// HighRiskThreshold is the score above which a borrower is predicted high risk.
const HighRiskThreshold = 0.5

// RiskAssessment is the scored view of one test-partition borrower.
type RiskAssessment struct {
	Features           FeatureVector    `json:"-"`
	BorrowerID         string           `json:"borrower_id"`
	MonthlyIncome      float64          `json:"monthly_income"`
	LoanAmount         float64          `json:"loan_amount"`
	SegmentName        string           `json:"segment_name"`
	RiskScore          float64          `json:"risk_score"`
	PredictedHighRisk  bool             `json:"predicted_high_risk"`
	Strategy           RecoveryStrategy `json:"recovery_strategy"`
	RecoveryStatus     string           `json:"recovery_status"`
	CollectionMethod   string           `json:"collection_method"`
	CollectionAttempts string           `json:"collection_attempts"`
	LegalActionTaken   string           `json:"legal_action_taken"`
	Row                int              `json:"row"`
}

// PredictedHighRiskInt renders the flag as 0/1, the export format.
func (r RiskAssessment) PredictedHighRiskInt() int {
	if r.PredictedHighRisk {
		return 1
	}
	return 0
}
