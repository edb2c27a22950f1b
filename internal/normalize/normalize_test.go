package normalize

import (
	"reflect"
	"testing"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

func TestNormalizePhoneDuplicateHalves(t *testing.T) {
	got := NormalizePhone("78623647862364")
	if got != "7862364" {
		t.Fatalf("expected collapsed half, got %q", got)
	}
}

func TestNormalizePhoneTelFaxConcatenation(t *testing.T) {
	got := NormalizePhone("0301234567 0307654321")
	if got != "0301234567" {
		t.Fatalf("expected first ten digits, got %q", got)
	}
}

func TestNormalizePhoneKeepsSlashes(t *testing.T) {
	got := NormalizePhone("030/123456")
	if got != "030/123456" {
		t.Fatalf("expected slashes preserved, got %q", got)
	}
}

func TestNormalizePhoneLeadingPlus(t *testing.T) {
	got := NormalizePhone("+49 30 123456")
	if got != "+4930123456" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestExactDigitsClearsWrongLength(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{FacilityNumber: "12345"}}
	Normalize(&res, DefaultOptions())
	if res.Data.FacilityNumber != "" {
		t.Fatalf("expected cleared facility number, got %q", res.Data.FacilityNumber)
	}
	if !res.HasFlag(constants.FlagInvalidDigitLength, "betriebsstaetten_nr") {
		t.Fatal("expected INVALID_DIGIT_LENGTH flag")
	}
}

func TestExactDigitsStripsSeparators(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{DoctorNumber: "12 345 6789"}}
	Normalize(&res, DefaultOptions())
	if res.Data.DoctorNumber != "123456789" {
		t.Fatalf("expected canonical digits, got %q", res.Data.DoctorNumber)
	}
}

func TestInsuranceLetterCorrection(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{InsuranceNumber: "4123456789"}}
	Normalize(&res, DefaultOptions())
	if res.Data.InsuranceNumber != "A123456789" {
		t.Fatalf("expected corrected letter, got %q", res.Data.InsuranceNumber)
	}
	if !res.HasFlag(constants.FlagOCRCorrectionApplied, "insurance_number") {
		t.Fatal("expected OCR_CORRECTION_APPLIED flag")
	}
}

func TestInsuranceLetterCorrectionDisabled(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{InsuranceNumber: "4123456789"}}
	Normalize(&res, Options{FixInsuranceLetter: false})
	if res.Data.InsuranceNumber != "4123456789" {
		t.Fatalf("expected untouched value, got %q", res.Data.InsuranceNumber)
	}
	if !res.HasFlag(constants.FlagInsuranceNumberSuspec, "insurance_number") {
		t.Fatal("expected INSURANCE_NUMBER_SUSPECT flag")
	}
}

func TestInvalidDateCleared(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{PrescriptionDate: "2026-02-30"}}
	Normalize(&res, DefaultOptions())
	if res.Data.PrescriptionDate != "" {
		t.Fatalf("expected cleared date, got %q", res.Data.PrescriptionDate)
	}
	if !res.HasFlag(constants.FlagInvalidDate, "prescription_date") {
		t.Fatal("expected INVALID_DATE flag")
	}
}

func TestValidDateKept(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{PatientBirthDate: "1954-07-12"}}
	Normalize(&res, DefaultOptions())
	if res.Data.PatientBirthDate != "1954-07-12" {
		t.Fatalf("expected date kept, got %q", res.Data.PatientBirthDate)
	}
}

func TestStatusSixDigitsPadded(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{StatusNumber: "500000"}}
	Normalize(&res, DefaultOptions())
	if res.Data.StatusNumber != "5000000" {
		t.Fatalf("expected padded status, got %q", res.Data.StatusNumber)
	}
}

func TestStatusInvalidDefaulted(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{StatusNumber: "1234567"}}
	Normalize(&res, DefaultOptions())
	if res.Data.StatusNumber != "5000000" {
		t.Fatalf("expected default status, got %q", res.Data.StatusNumber)
	}
	if !res.HasFlag(constants.FlagStatusDefaulted, "status_number") {
		t.Fatal("expected STATUS_DEFAULTED flag")
	}
}

func TestStatusDuplicatingPayerRejected(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber: "108310400",
		PayerID:      "108310400",
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.StatusNumber != "5000000" {
		t.Fatalf("expected rejected status, got %q", res.Data.StatusNumber)
	}
	if !res.HasFlag(constants.FlagStatusRejected, "status_number") {
		t.Fatal("expected STATUS_REJECTED flag")
	}
}

func TestStatusOverlappingPayerRejected(t *testing.T) {
	// Over-long read that starts with the Kostenträgerkennung: a handwritten
	// note bleeding into the status box, not a status code.
	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber: "108310400 51",
		PayerID:      "108310400",
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.StatusNumber != "5000000" {
		t.Fatalf("expected rejected status, got %q", res.Data.StatusNumber)
	}
	if !res.HasFlag(constants.FlagStatusRejected, "status_number") {
		t.Fatal("expected STATUS_REJECTED flag")
	}
}

func TestStatusContainedInInsuranceNumberRejected(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		StatusNumber:    "512345678",
		InsuranceNumber: "A512345678",
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.StatusNumber != "5000000" {
		t.Fatalf("expected rejected status, got %q", res.Data.StatusNumber)
	}
	if !res.HasFlag(constants.FlagStatusRejected, "status_number") {
		t.Fatal("expected STATUS_REJECTED flag")
	}
}

func TestDirectionConflictKeepsOutbound(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		TransportOutbound: true,
		TransportReturn:   true,
	}}
	Normalize(&res, DefaultOptions())
	if !res.Data.TransportOutbound || res.Data.TransportReturn {
		t.Fatalf("expected outbound only, got out=%v ret=%v",
			res.Data.TransportOutbound, res.Data.TransportReturn)
	}
	if !res.HasFlag(constants.FlagGroupConflict, "transport_outbound") {
		t.Fatal("expected GROUP_CONFLICT flag")
	}
}

func TestReasonGroupMultiSelectClearsGroup(t *testing.T) {
	tests := []struct {
		name      string
		data      schema.FormFields
		flagField string
		cleared   func(schema.FormFields) bool
	}{
		{
			name:      "accident triad",
			data:      schema.FormFields{ReasonAccident: true, ReasonWorkAccident: true},
			flagField: "reason_accident",
			cleared: func(d schema.FormFields) bool {
				return !d.ReasonAccident && !d.ReasonWorkAccident && !d.ReasonCareCondition
			},
		},
		{
			name:      "treatment quartet",
			data:      schema.FormFields{ReasonFullOrPartialInpatient: true, ReasonPrePostInpatient: true},
			flagField: "reason_full_or_partial_inpatient",
			cleared: func(d schema.FormFields) bool {
				return !d.ReasonFullOrPartialInpatient && !d.ReasonPrePostInpatient &&
					!d.ReasonAmbulatoryWithMarker && !d.ReasonOther
			},
		},
		{
			name:      "mandatory triad",
			data:      schema.FormFields{ReasonHighFrequency: true, ReasonMobilityImpairment6M: true},
			flagField: "reason_high_frequency",
			cleared: func(d schema.FormFields) bool {
				return !d.ReasonHighFrequency && !d.ReasonMobilityImpairment6M && !d.ReasonOtherKTW
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := schema.ExtractionResult{Data: tc.data}
			Normalize(&res, DefaultOptions())
			if !tc.cleared(res.Data) {
				t.Fatalf("expected whole group cleared, got %+v", res.Data)
			}
			if !res.HasFlag(constants.FlagGroupConflict, tc.flagField) {
				t.Fatalf("expected GROUP_CONFLICT flag on %s", tc.flagField)
			}
		})
	}
}

func TestReasonGroupSingleTickKept(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{ReasonPrePostInpatient: true}}
	Normalize(&res, DefaultOptions())
	if !res.Data.ReasonPrePostInpatient {
		t.Fatal("expected lone tick kept")
	}
	if res.HasFlag(constants.FlagGroupConflict, "reason_full_or_partial_inpatient") {
		t.Fatal("unexpected GROUP_CONFLICT flag")
	}
}

func TestMandatoryTripOverridesTreatmentReasons(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		ReasonHighFrequency:          true,
		ReasonFullOrPartialInpatient: true,
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.ReasonFullOrPartialInpatient {
		t.Fatal("expected treatment reason cleared")
	}
	if !res.Data.ReasonHighFrequency {
		t.Fatal("expected mandatory reason kept")
	}
}

func TestEquipmentSuppressedWithoutQualifiedTransport(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		TransportTaxi:      true,
		EquipmentWheelchair: true,
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.EquipmentWheelchair {
		t.Fatal("expected wheelchair cleared")
	}
	if !res.HasFlag(constants.FlagEquipmentSuppressed, "equipment_wheelchair") {
		t.Fatal("expected EQUIPMENT_SUPPRESSED flag")
	}
}

func TestTransportChairExcludesLying(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		TransportKTW:            true,
		EquipmentTransportChair: true,
		EquipmentLying:          true,
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.EquipmentLying {
		t.Fatal("expected lying cleared")
	}
	if !res.Data.EquipmentTransportChair {
		t.Fatal("expected transport chair kept")
	}
}

func TestTaxiFlagged(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{TransportTaxi: true}}
	Normalize(&res, DefaultOptions())
	if !res.HasFlag(constants.FlagTaxiNotAllowed, "transport_taxi") {
		t.Fatal("expected TAXI_NOT_ALLOWED flag")
	}
}

func TestKTWWithoutJustificationFlagged(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{TransportKTW: true}}
	Normalize(&res, DefaultOptions())
	if !res.HasFlag(constants.FlagKTWReasonMissing, "medical_reason_text") {
		t.Fatal("expected JUSTIFICATION_MISSING_FOR_KTW flag")
	}
}

func TestSegmentOrderingPartyFillsGaps(t *testing.T) {
	info := "Dr. med. Eva Brandt\nFA Innere Medizin\nHauptstr. 12\n10115 Berlin\nTel. 030/123456"
	res := schema.ExtractionResult{Data: schema.FormFields{OrderingPartyInfo: info}}
	Normalize(&res, DefaultOptions())

	d := res.Data
	if d.OrderingPartyName != "Dr. med. Eva Brandt" {
		t.Fatalf("unexpected name %q", d.OrderingPartyName)
	}
	if d.OrderingPartyZip != "10115" || d.OrderingPartyCity != "Berlin" {
		t.Fatalf("unexpected zip/city %q %q", d.OrderingPartyZip, d.OrderingPartyCity)
	}
	if d.OrderingPartyPhone != "030/123456" {
		t.Fatalf("unexpected phone %q", d.OrderingPartyPhone)
	}
}

func TestSegmentOrderingPartyKeepsExistingValues(t *testing.T) {
	seg := SegmentOrderingParty("MVZ am Park", "Dr. Someone Else\n10115 Berlin", "01067", "Dresden", "0351/99887")
	if seg.Name != "MVZ am Park" {
		t.Fatalf("existing name overwritten: %q", seg.Name)
	}
	if seg.Zip != "01067" || seg.City != "Dresden" {
		t.Fatalf("existing zip/city overwritten: %q %q", seg.Zip, seg.City)
	}
	if seg.Phone != "0351/99887" {
		t.Fatalf("existing phone overwritten: %q", seg.Phone)
	}
}

func TestClinicZipCityFallback(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		OrderingPartyInfo:    "Gemeinschaftspraxis",
		TreatmentLocationZip: "20095",
		TreatmentLocationCity: "Hamburg",
	}}
	Normalize(&res, DefaultOptions())
	if res.Data.OrderingPartyZip != "20095" || res.Data.OrderingPartyCity != "Hamburg" {
		t.Fatalf("expected clinic fallback, got %q %q",
			res.Data.OrderingPartyZip, res.Data.OrderingPartyCity)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	res := schema.ExtractionResult{Data: schema.FormFields{
		InsuranceNumber:   "4123456789",
		StatusNumber:      "500000",
		FacilityNumber:    "12345",
		PrescriptionDate:  "31.02.2026",
		TransportOutbound: true,
		TransportReturn:   true,
		TransportKTW:      true,
		EquipmentLying:    true,
		OrderingPartyInfo: "Dr. med. Eva Brandt\nHauptstr. 12\n10115 Berlin\nTel. 030/123456",
	}}
	Normalize(&res, DefaultOptions())

	first := res
	firstFlags := append([]schema.Flag(nil), res.Flags...)

	Normalize(&res, DefaultOptions())
	if !reflect.DeepEqual(first.Data, res.Data) {
		t.Fatalf("data changed on second pass:\n%+v\n%+v", first.Data, res.Data)
	}
	if !reflect.DeepEqual(firstFlags, res.Flags) {
		t.Fatalf("flags changed on second pass:\n%+v\n%+v", firstFlags, res.Flags)
	}
}
