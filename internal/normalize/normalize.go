package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// Options toggles the opt-out corrections. Everything else always runs.
type Options struct {
	// FixInsuranceLetter rewrites a 10-digit Versichertennummer whose first
	// digit is a known OCR confusion (4/8/0) into the letter form (A/B/O).
	FixInsuranceLetter bool
}

func DefaultOptions() Options {
	return Options{FixInsuranceLetter: true}
}

const defaultStatus = "5000000"

var (
	statusRe          = regexp.MustCompile(`^5\d{6}$`)
	dateRe            = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	insuranceNumberRe = regexp.MustCompile(`^[A-Z]\d{9}$`)
	frequencyRe       = regexp.MustCompile(`^\d{1,2}$`)
)

// digit confusions on the insurance-number leading letter.
var letterFix = map[byte]byte{'4': 'A', '8': 'B', '0': 'O'}

// Normalize applies the deterministic post-extraction rules in a fixed
// order: identifier canonicalization, date and frequency checks, status
// validation, ordering-party segmentation, checkbox group resolution,
// equipment constraints, then the review warnings. Normalize is a fixed
// point: running it on its own output changes nothing.
func Normalize(res *schema.ExtractionResult, opts Options) {
	normalizeIdentifiers(res, opts)
	normalizeDates(res)
	normalizeFrequency(res)
	normalizeStatus(res)
	normalizeOrderingParty(res)
	resolveGroups(res)
	resolveEquipment(res)
	emitWarnings(res)
}

// exactDigits canonicalizes an identifier to digits and enforces an exact
// length. Wrong-length values are cleared so no half-read number reaches
// dispatch.
func exactDigits(res *schema.ExtractionResult, value *string, field string, n int) {
	digits := schema.DigitsOnly(*value)
	if digits == "" {
		*value = ""
		return
	}
	if len(digits) != n {
		*value = ""
		if !res.HasFlag(constants.FlagInvalidDigitLength, field) {
			res.AddFlag(constants.FlagInvalidDigitLength, constants.SeverityError, field,
				fmt.Sprintf("expected %d digits, got %d", n, len(digits)))
		}
		return
	}
	*value = digits
}

func normalizeIdentifiers(res *schema.ExtractionResult, opts Options) {
	d := &res.Data
	exactDigits(res, &d.PayerID, "kostentraegerkennung", 9)
	exactDigits(res, &d.FacilityNumber, "betriebsstaetten_nr", 9)
	exactDigits(res, &d.DoctorNumber, "arzt_nr", 9)

	nr := strings.ToUpper(strings.ReplaceAll(d.InsuranceNumber, " ", ""))
	if opts.FixInsuranceLetter && len(nr) == 10 && schema.DigitsOnly(nr) == nr {
		if letter, ok := letterFix[nr[0]]; ok {
			nr = string(letter) + nr[1:]
			if !res.HasFlag(constants.FlagOCRCorrectionApplied, "insurance_number") {
				res.AddFlag(constants.FlagOCRCorrectionApplied, constants.SeverityInfo, "insurance_number",
					"leading digit rewritten to letter form")
			}
		}
	}
	d.InsuranceNumber = nr
	if nr != "" && !insuranceNumberRe.MatchString(nr) {
		if !res.HasFlag(constants.FlagInsuranceNumberSuspec, "insurance_number") {
			res.AddFlag(constants.FlagInsuranceNumberSuspec, constants.SeverityWarning, "insurance_number",
				"value does not match the letter plus nine digits shape")
		}
	}
}

func normalizeDates(res *schema.ExtractionResult) {
	d := &res.Data
	checkDate(res, &d.PatientBirthDate, "patient_birth_date")
	checkDate(res, &d.PrescriptionDate, "prescription_date")
	checkDate(res, &d.TreatmentDateFrom, "treatment_date_from")
	checkDate(res, &d.TreatmentUntil, "treatment_until")
}

func checkDate(res *schema.ExtractionResult, value *string, field string) {
	v := strings.TrimSpace(*value)
	if v == "" {
		*value = ""
		return
	}
	if !dateRe.MatchString(v) {
		*value = ""
		flagDate(res, field)
		return
	}
	if _, err := time.Parse("2006-01-02", v); err != nil {
		*value = ""
		flagDate(res, field)
		return
	}
	*value = v
}

func flagDate(res *schema.ExtractionResult, field string) {
	if !res.HasFlag(constants.FlagInvalidDate, field) {
		res.AddFlag(constants.FlagInvalidDate, constants.SeverityError, field,
			"not a valid calendar date in YYYY-MM-DD form")
	}
}

func normalizeFrequency(res *schema.ExtractionResult) {
	freq := strings.TrimSpace(res.Data.TreatmentFrequencyPerWeek.String())
	res.Data.TreatmentFrequencyPerWeek = schema.FlexString(freq)
	if freq == "" || frequencyRe.MatchString(freq) {
		return
	}
	if !res.HasFlag(constants.FlagFrequencyNotNumeric, "treatment_frequency_per_week") {
		res.AddFlag(constants.FlagFrequencyNotNumeric, constants.SeverityWarning, "treatment_frequency_per_week",
			"frequency per week is not a small number")
	}
}

// overlapsID reports whether a status read and another identifier share
// digits wholesale, in either direction.
func overlapsID(status, id string) bool {
	if status == "" || id == "" {
		return false
	}
	return strings.Contains(status, id) || strings.Contains(id, status)
}

// normalizeStatus validates the Statusnummer. Accepted shape is seven
// digits with a leading 5. A six-digit read is padded with a trailing zero
// first (the final zero sits on the form edge and is often cut off). A
// value that repeats or overlaps the insurance number or the Kostenträger
// id is a misplaced read and gets rejected; handwritten notes routinely
// duplicate those ids next to the status line. Everything else falls back
// to the member default 5000000.
func normalizeStatus(res *schema.ExtractionResult) {
	d := &res.Data
	digits := schema.DigitsOnly(d.StatusNumber)

	if len(digits) == 6 && digits[0] == '5' {
		digits += "0"
		if !res.HasFlag(constants.FlagOCRCorrectionApplied, "status_number") {
			res.AddFlag(constants.FlagOCRCorrectionApplied, constants.SeverityInfo, "status_number",
				"trailing zero appended to six digit read")
		}
	}

	if len(digits) >= 6 && digits != defaultStatus {
		if overlapsID(digits, schema.DigitsOnly(d.InsuranceNumber)) || overlapsID(digits, d.PayerID) {
			d.StatusNumber = defaultStatus
			if !res.HasFlag(constants.FlagStatusRejected, "status_number") {
				res.AddFlag(constants.FlagStatusRejected, constants.SeverityWarning, "status_number",
					"value duplicates another identifier on the form",
					"insurance_number", "kostentraegerkennung")
			}
			return
		}
	}

	if statusRe.MatchString(digits) {
		d.StatusNumber = digits
		return
	}

	d.StatusNumber = defaultStatus
	if !res.HasFlag(constants.FlagStatusDefaulted, "status_number") {
		res.AddFlag(constants.FlagStatusDefaulted, constants.SeverityWarning, "status_number",
			"unreadable or invalid, defaulted to member status")
	}
}

func normalizeOrderingParty(res *schema.ExtractionResult) {
	d := &res.Data
	seg := SegmentOrderingParty(
		strings.TrimSpace(d.OrderingPartyName),
		d.OrderingPartyInfo,
		strings.TrimSpace(d.OrderingPartyZip),
		strings.TrimSpace(d.OrderingPartyCity),
		strings.TrimSpace(d.OrderingPartyPhone),
	)

	// Clinic address as fallback when the stamp carries none.
	if seg.Zip == "" && d.TreatmentLocationZip != "" {
		seg.Zip = strings.TrimSpace(d.TreatmentLocationZip)
	}
	if seg.City == "" && d.TreatmentLocationCity != "" {
		seg.City = strings.TrimSpace(d.TreatmentLocationCity)
	}

	d.OrderingPartyName = seg.Name
	d.OrderingPartyInfo = strings.Join(seg.Info, "\n")
	d.OrderingPartyZip = seg.Zip
	d.OrderingPartyCity = seg.City
	d.OrderingPartyPhone = seg.Phone
}

// groupMember pairs a checkbox with its wire name for flagging.
type groupMember struct {
	field string
	value *bool
}

// clearMultiSelect forces a whole exclusive group false when more than one
// member is ticked. Ambiguous multi-select is a misread, not a choice, so no
// member is trusted.
func clearMultiSelect(res *schema.ExtractionResult, members []groupMember) {
	ticked := 0
	for _, m := range members {
		if *m.value {
			ticked++
		}
	}
	if ticked < 2 {
		return
	}
	related := make([]string, 0, len(members)-1)
	for i, m := range members {
		*m.value = false
		if i > 0 {
			related = append(related, m.field)
		}
	}
	if !res.HasFlag(constants.FlagGroupConflict, members[0].field) {
		res.AddFlag(constants.FlagGroupConflict, constants.SeverityWarning, members[0].field,
			"multiple boxes ticked in an exclusive group, all cleared", related...)
	}
}

// resolveGroups enforces the checkbox exclusivity rules. The outbound
// direction wins a double tick; the reason groups carry no priority and a
// multi-select clears the whole group; a mandatory-trip reason overrides
// the treatment reason block.
func resolveGroups(res *schema.ExtractionResult) {
	d := &res.Data

	if d.TransportOutbound && d.TransportReturn {
		d.TransportReturn = false
		if !res.HasFlag(constants.FlagGroupConflict, "transport_outbound") {
			res.AddFlag(constants.FlagGroupConflict, constants.SeverityWarning, "transport_outbound",
				"both directions ticked, keeping outbound", "transport_return")
		}
	}

	clearMultiSelect(res, []groupMember{
		{"reason_accident", &d.ReasonAccident},
		{"reason_work_accident", &d.ReasonWorkAccident},
		{"reason_care_condition", &d.ReasonCareCondition},
	})
	clearMultiSelect(res, []groupMember{
		{"reason_full_or_partial_inpatient", &d.ReasonFullOrPartialInpatient},
		{"reason_pre_post_inpatient", &d.ReasonPrePostInpatient},
		{"reason_ambulatory_with_marker", &d.ReasonAmbulatoryWithMarker},
		{"reason_other", &d.ReasonOther},
	})
	clearMultiSelect(res, []groupMember{
		{"reason_high_frequency", &d.ReasonHighFrequency},
		{"reason_mobility_impairment_6m", &d.ReasonMobilityImpairment6M},
		{"reason_other_ktw", &d.ReasonOtherKTW},
	})

	mandatory := d.ReasonHighFrequency || d.ReasonMobilityImpairment6M || d.ReasonOtherKTW
	treatment := d.ReasonFullOrPartialInpatient || d.ReasonPrePostInpatient ||
		d.ReasonAmbulatoryWithMarker || d.ReasonOther
	if mandatory && treatment {
		d.ReasonFullOrPartialInpatient = false
		d.ReasonPrePostInpatient = false
		d.ReasonAmbulatoryWithMarker = false
		d.ReasonOther = false
		if !res.HasFlag(constants.FlagGroupConflict, "reason_high_frequency") {
			res.AddFlag(constants.FlagGroupConflict, constants.SeverityWarning, "reason_high_frequency",
				"mandatory trip reason overrides the treatment reason block",
				"reason_full_or_partial_inpatient", "reason_pre_post_inpatient",
				"reason_ambulatory_with_marker", "reason_other")
		}
	}
}

// resolveEquipment clears equipment ticks that cannot apply to the chosen
// vehicle. Equipment only exists in KTW, RTW and NAW/NEF transports, and a
// transport chair ride cannot also be lying.
func resolveEquipment(res *schema.ExtractionResult) {
	d := &res.Data
	qualified := d.TransportKTW || d.TransportRTW || d.TransportNAWNEF

	if !qualified && (d.EquipmentWheelchair || d.EquipmentTransportChair || d.EquipmentLying) {
		d.EquipmentWheelchair = false
		d.EquipmentTransportChair = false
		d.EquipmentLying = false
		if !res.HasFlag(constants.FlagEquipmentSuppressed, "equipment_wheelchair") {
			res.AddFlag(constants.FlagEquipmentSuppressed, constants.SeverityWarning, "equipment_wheelchair",
				"equipment ticked without a qualified transport type",
				"equipment_transport_chair", "equipment_lying")
		}
	}

	if d.EquipmentTransportChair && d.EquipmentLying {
		d.EquipmentLying = false
		if !res.HasFlag(constants.FlagEquipmentSuppressed, "equipment_lying") {
			res.AddFlag(constants.FlagEquipmentSuppressed, constants.SeverityWarning, "equipment_lying",
				"transport chair excludes lying", "equipment_transport_chair")
		}
	}
}

// emitWarnings adds the review hints that never change field values.
func emitWarnings(res *schema.ExtractionResult) {
	d := &res.Data

	if !d.TransportOutbound && !d.TransportReturn {
		if !res.HasFlag(constants.FlagTransportNone, "transport_outbound") {
			res.AddFlag(constants.FlagTransportNone, constants.SeverityWarning, "transport_outbound",
				"no transport direction ticked", "transport_return")
		}
	}

	anyReason := d.ReasonAccident || d.ReasonWorkAccident || d.ReasonCareCondition ||
		d.ReasonFullOrPartialInpatient || d.ReasonPrePostInpatient ||
		d.ReasonAmbulatoryWithMarker || d.ReasonOther ||
		d.ReasonHighFrequency || d.ReasonMobilityImpairment6M || d.ReasonOtherKTW
	if !anyReason {
		if !res.HasFlag(constants.FlagReasonNone, "reason_accident") {
			res.AddFlag(constants.FlagReasonNone, constants.SeverityWarning, "reason_accident",
				"no transport reason ticked")
		}
	}

	if d.TransportTaxi {
		if !res.HasFlag(constants.FlagTaxiNotAllowed, "transport_taxi") {
			res.AddFlag(constants.FlagTaxiNotAllowed, constants.SeverityError, "transport_taxi",
				"taxi transports are not driven")
		}
	}

	if d.OrderingPartyName == "" {
		if !res.HasFlag(constants.FlagOrderingNameMissing, "ordering_party_name") {
			res.AddFlag(constants.FlagOrderingNameMissing, constants.SeverityWarning, "ordering_party_name",
				"no ordering party name found on the stamp")
		}
	}

	if d.TransportKTW && strings.TrimSpace(d.MedicalReasonText) == "" &&
		!d.ReasonHighFrequency && !d.ReasonMobilityImpairment6M && !d.ReasonOtherKTW {
		if !res.HasFlag(constants.FlagKTWReasonMissing, "medical_reason_text") {
			res.AddFlag(constants.FlagKTWReasonMissing, constants.SeverityWarning, "medical_reason_text",
				"KTW ticked without a medical justification", "transport_ktw")
		}
	}
}
