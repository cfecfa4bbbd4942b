package domain

// Feature columns of the loan portfolio table. Order is significant: it is the
// column order of every FeatureVector and of the matrices fed to the models.
const (
	ColAge                   = "Age"
	ColMonthlyIncome         = "Monthly_Income"
	ColLoanAmount            = "Loan_Amount"
	ColLoanTenure            = "Loan_Tenure"
	ColInterestRate          = "Interest_Rate"
	ColCollateralValue       = "Collateral_Value"
	ColOutstandingLoanAmount = "Outstanding_Loan_Amount"
	ColMonthlyEMI            = "Monthly_EMI"
	ColNumMissedPayments     = "Num_Missed_Payments"
	ColDaysPastDue           = "Days_Past_Due"
)

// Identifier and categorical columns.
const (
	ColBorrowerID         = "Borrower_ID"
	ColPaymentHistory     = "Payment_History"
	ColRecoveryStatus     = "Recovery_Status"
	ColCollectionMethod   = "Collection_Method"
	ColCollectionAttempts = "Collection_Attempts"
	ColLegalActionTaken   = "Legal_Action_Taken"
)

// Derived columns added by the pipeline.
const (
	ColBorrowerSegment   = "Borrower_Segment"
	ColSegmentName       = "Segment_Name"
	ColHighRiskFlag      = "High_Risk_Flag"
	ColRiskScore         = "Risk_Score"
	ColPredictedHighRisk = "Predicted_High_Risk"
	ColRecoveryStrategy  = "Recovery_Strategy"
)

// NumFeatures is the length of a FeatureVector.
const NumFeatures = 10

// FeatureColumns returns the feature column names in FeatureVector order.
func FeatureColumns() []string {
	return []string{
		ColAge,
		ColMonthlyIncome,
		ColLoanAmount,
		ColLoanTenure,
		ColInterestRate,
		ColCollateralValue,
		ColOutstandingLoanAmount,
		ColMonthlyEMI,
		ColNumMissedPayments,
		ColDaysPastDue,
	}
}

// MetadataColumns returns the identifier and categorical column names.
func MetadataColumns() []string {
	return []string{
		ColBorrowerID,
		ColPaymentHistory,
		ColRecoveryStatus,
		ColCollectionMethod,
		ColCollectionAttempts,
		ColLegalActionTaken,
	}
}

// RequiredColumns returns every column an uploaded table must carry.
func RequiredColumns() []string {
	return append(FeatureColumns(), MetadataColumns()...)
}

// FeatureVector holds the numeric attributes of one borrower in FeatureColumns order.
type FeatureVector [NumFeatures]float64

// Slice returns a copy of the vector as a slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// BorrowerRecord is one row of the uploaded table after feature coercion.
type BorrowerRecord struct {
	Row                int           `json:"row"`
	BorrowerID         string        `json:"borrower_id"`
	Features           FeatureVector `json:"features"`
	PaymentHistory     string        `json:"payment_history"`
	RecoveryStatus     string        `json:"recovery_status"`
	CollectionMethod   string        `json:"collection_method"`
	CollectionAttempts string        `json:"collection_attempts"`
	LegalActionTaken   string        `json:"legal_action_taken"`
}

// Feature returns the value of a feature column, or false if name is not a feature.
func (b BorrowerRecord) Feature(name string) (float64, bool) {
	for i, col := range FeatureColumns() {
		if col == name {
			return b.Features[i], true
		}
	}
	return 0, false
}

// MonthlyIncome is a shortcut for the Monthly_Income feature.
func (b BorrowerRecord) MonthlyIncome() float64 { return b.Features[1] }

// LoanAmount is a shortcut for the Loan_Amount feature.
func (b BorrowerRecord) LoanAmount() float64 { return b.Features[2] }

// NumMissedPayments is a shortcut for the Num_Missed_Payments feature.
func (b BorrowerRecord) NumMissedPayments() float64 { return b.Features[8] }
