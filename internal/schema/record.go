package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/transportschein/internal/common"
)

// FlexString accepts string or numeric JSON values. The extraction service
// occasionally returns numbers for numeric-looking fields.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// Flag is a structured concern attached to a field. Flags never block
// processing; the review step uses them for highlighting.
type Flag struct {
	Code          string   `json:"code"`
	Severity      string   `json:"severity"`
	Field         string   `json:"field"`
	RelatedFields []string `json:"related_fields,omitempty"`
	Message       string   `json:"message"`
}

// FormFields is the flat field set of the Muster 4 form, mirroring form.yaml.
type FormFields struct {
	InsuranceName   string `json:"insurance_name"`
	PayerID         string `json:"kostentraegerkennung"`
	InsuranceNumber string `json:"insurance_number"`
	StatusNumber    string `json:"status_number"`

	PatientLastName  string `json:"patient_last_name"`
	PatientFirstName string `json:"patient_first_name"`
	PatientBirthDate string `json:"patient_birth_date"`
	PatientStreet    string `json:"patient_street"`
	PatientZip       string `json:"patient_zip"`
	PatientCity      string `json:"patient_city"`

	FacilityNumber   string `json:"betriebsstaetten_nr"`
	DoctorNumber     string `json:"arzt_nr"`
	PrescriptionDate string `json:"prescription_date"`

	TransportOutbound bool `json:"transport_outbound"`
	TransportReturn   bool `json:"transport_return"`

	ReasonAccident      bool `json:"reason_accident"`
	ReasonWorkAccident  bool `json:"reason_work_accident"`
	ReasonCareCondition bool `json:"reason_care_condition"`

	ReasonFullOrPartialInpatient bool `json:"reason_full_or_partial_inpatient"`
	ReasonPrePostInpatient       bool `json:"reason_pre_post_inpatient"`
	ReasonAmbulatoryWithMarker   bool `json:"reason_ambulatory_with_marker"`
	ReasonOther                  bool `json:"reason_other"`

	ReasonHighFrequency        bool `json:"reason_high_frequency"`
	ReasonMobilityImpairment6M bool `json:"reason_mobility_impairment_6m"`
	ReasonOtherKTW             bool `json:"reason_other_ktw"`

	TreatmentDateFrom         string     `json:"treatment_date_from"`
	TreatmentFrequencyPerWeek FlexString `json:"treatment_frequency_per_week"`
	TreatmentUntil            string     `json:"treatment_until"`
	TreatmentLocationName     string     `json:"treatment_location_name"`
	TreatmentLocationStreet   string     `json:"treatment_location_street"`
	TreatmentLocationZip      string     `json:"treatment_location_zip"`
	TreatmentLocationCity     string     `json:"treatment_location_city"`

	TransportTaxi   bool `json:"transport_taxi"`
	TransportKTW    bool `json:"transport_ktw"`
	TransportRTW    bool `json:"transport_rtw"`
	TransportNAWNEF bool `json:"transport_naw_nef"`
	TransportOther  bool `json:"transport_other"`

	EquipmentWheelchair     bool `json:"equipment_wheelchair"`
	EquipmentTransportChair bool `json:"equipment_transport_chair"`
	EquipmentLying          bool `json:"equipment_lying"`

	OrderingPartyName  string `json:"ordering_party_name"`
	OrderingPartyInfo  string `json:"ordering_party_info"`
	OrderingPartyZip   string `json:"ordering_party_zip"`
	OrderingPartyCity  string `json:"ordering_party_city"`
	OrderingPartyPhone string `json:"ordering_party_phone"`

	ConfirmationStreet string `json:"confirmation_street"`
	ConfirmationZip    string `json:"confirmation_zip"`
	ConfirmationCity   string `json:"confirmation_city"`

	MedicalReasonText string `json:"medical_reason_text"`
}

// ExtractionResult is the structured record returned by the extraction
// service, and the persisted record layout after normalization.
type ExtractionResult struct {
	Data  FormFields `json:"data"`
	Flags []Flag     `json:"flags"`
}

// AddFlag appends a flag; flags are additive and never removed downstream.
func (r *ExtractionResult) AddFlag(code, severity, field, message string, related ...string) {
	r.Flags = append(r.Flags, Flag{
		Code:          code,
		Severity:      severity,
		Field:         field,
		RelatedFields: related,
		Message:       message,
	})
}

// HasFlag reports whether a flag with the given code is attached to field.
// Empty field matches any field.
func (r *ExtractionResult) HasFlag(code, field string) bool {
	for _, f := range r.Flags {
		if f.Code == code && (field == "" || f.Field == field) {
			return true
		}
	}
	return false
}

// Decode parses raw JSON into an ExtractionResult. Malformed bodies map to
// common.ErrParse.
func Decode(raw []byte) (ExtractionResult, error) {
	var r ExtractionResult
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&r); err != nil {
		return ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	if r.Flags == nil {
		r.Flags = []Flag{}
	}
	return r, nil
}

// Encode renders the persisted record layout: the exact field key set plus
// the flags array.
func Encode(r ExtractionResult) ([]byte, error) {
	if r.Flags == nil {
		r.Flags = []Flag{}
	}
	return json.Marshal(r)
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}
