package constants

// Flag severities as they appear on the wire.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Stable flag codes. The review UI keys highlighting off these, so they must
// never change once emitted.
const (
	FlagInvalidDate           = "INVALID_DATE"
	FlagInvalidDigitLength    = "INVALID_DIGIT_LENGTH"
	FlagCheckboxUnclear       = "CHECKBOX_UNCLEAR"
	FlagOCRCorrectionApplied  = "OCR_CORRECTION_APPLIED"
	FlagStatusDefaulted       = "STATUS_DEFAULTED"
	FlagStatusRejected        = "STATUS_REJECTED"
	FlagGroupConflict         = "GROUP_CONFLICT"
	FlagEquipmentSuppressed   = "EQUIPMENT_SUPPRESSED"
	FlagTransportNone         = "TRANSPORT_DIRECTION_NONE"
	FlagReasonNone            = "REASON_NONE_SELECTED"
	FlagTaxiNotAllowed        = "TAXI_NOT_ALLOWED"
	FlagOrderingNameMissing   = "ORDERING_PARTY_NAME_MISSING"
	FlagKTWReasonMissing      = "JUSTIFICATION_MISSING_FOR_KTW"
	FlagFrequencyNotNumeric   = "FREQUENCY_NOT_NUMERIC"
	FlagFieldRecoveryFailed   = "FIELD_RECOVERY_FAILED"
	FlagInsuranceNumberSuspec = "INSURANCE_NUMBER_SUSPECT"
)
