package recovery

import "loanrecovery/pkg/contracts/domain"

// Strategy score bands.
const (
	LegalActionThreshold = 0.75
	SettlementThreshold  = 0.50
)

// AssignStrategy maps a risk score to a recovery action:
// above 0.75 legal action, 0.50 through 0.75 settlement, else reminders.
func AssignStrategy(score float64) domain.RecoveryStrategy {
	switch {
	case score > LegalActionThreshold:
		return domain.StrategyLegalAction
	case score >= SettlementThreshold:
		return domain.StrategySettlement
	default:
		return domain.StrategyReminders
	}
}

// ApplyStrategies sets the strategy of every assessment in place.
func ApplyStrategies(assessments []domain.RiskAssessment) {
	for i := range assessments {
		assessments[i].Strategy = AssignStrategy(assessments[i].RiskScore)
	}
}
