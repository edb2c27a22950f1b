package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/transportschein/internal/common"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// DriverReport is the flat fahrberichte/add payload. The key set is fixed
// by the dispatch API; every field is always present on the wire.
type DriverReport struct {
	AuftraggeberCity    string   `json:"auftraggeberCity"`
	AuftraggeberInfo    string   `json:"auftraggeberInfo"`
	AuftraggeberName    string   `json:"auftraggeberName"`
	AuftraggeberSurname string   `json:"auftraggeberSurname"`
	AuftraggeberID      string   `json:"auftraggeberId"`
	AuftraggeberTelefon string   `json:"auftraggeberTelefon"`
	AuftraggeberZip     string   `json:"auftraggeberZip"`
	CarNo               string   `json:"carNo"`
	CarPlan             string   `json:"carPlan"`
	Category            string   `json:"category"`
	Check               string   `json:"check"`
	CostStatus          string   `json:"costStatus"`
	Date                string   `json:"date"`
	Dauergenehmigung    string   `json:"dauergenehmigung"`
	Direction           string   `json:"direction"`
	DriveQuestions      bool     `json:"driveQuestions"`
	EmpfangenVonID      string   `json:"empfangenVonId"`
	EndTime             string   `json:"endTime"`
	GefahreneFirma      string   `json:"gefahreneFirma"`
	GenehmigungsEnde    string   `json:"genehmigungsEnde"`
	GenehmigungsNr      string   `json:"genehmigungsNr"`
	Infection           int      `json:"infection"`
	InfectionType       string   `json:"infectionType"`
	ManuelleAnfahrt     int      `json:"manuelleAnfahrt"`
	Materialfahrt       bool     `json:"materialfahrt"`
	Note                string   `json:"note"`
	PatientBirthday     string   `json:"patientBirthday"`
	PatientCity         string   `json:"patientCity"`
	PatientInfo         string   `json:"patientInfo"`
	PatientLand         string   `json:"patientLand"`
	PatientMobile       string   `json:"patientMobile"`
	PatientName         string   `json:"patientName"`
	PatientStreet       string   `json:"patientStreet"`
	PatientSurname      string   `json:"patientSurname"`
	PatientTelephone    string   `json:"patientTelephone"`
	PatientZip          string   `json:"patientZip"`
	PossibleReturn      string   `json:"possibleReturnNotice"`
	Provider            string   `json:"provider"`
	Sonderleistungen    []string `json:"sonderleistungen"`
	StartCity           string   `json:"startCity"`
	StartInfo           string   `json:"startInfo"`
	StartInstitution    string   `json:"startInstitution"`
	StartStreet         string   `json:"startStreet"`
	StartTime           string   `json:"startTime"`
	StartTimeBis        string   `json:"startTimeBis"`
	StartZip            string   `json:"startZip"`
	TargetCity          string   `json:"targetCity"`
	TargetInfo          string   `json:"targetInfo"`
	TargetInstitution   string   `json:"targetInstitution"`
	TargetStreet        string   `json:"targetStreet"`
	TargetZip           string   `json:"targetZip"`
	Terminfahrt         bool     `json:"terminfahrt"`
	Transportart        string   `json:"transportart"`
	Transportschein     string   `json:"transportscheinVorhanden"`
	VerordnungDatum     string   `json:"verordnungAusstellungsDatum"`
	VerordnungsartID    string   `json:"verordnungsartId"`
	Versicherungsnummer string   `json:"versicherungsnummer"`
	ArztNummer          string   `json:"arztNummer"`
	Betriebsstaetten    string   `json:"betriebsstaettenNummer"`
	KkID                string   `json:"kkId"`
}

// Fixed ride parameters until the review UI collects them.
const (
	defaultStartTime  = "07:30"
	defaultEndTime    = "09:30"
	costStatus        = "10"
	checkUnverified   = "0"
	noPermanentPermit = "0"
	scheinVorhanden   = "Ja"
)

// Address is a street/zip/city triple used in the target priority chain.
type Address struct {
	Street string
	Zip    string
	City   string
}

func (a Address) full() bool {
	return a.Street != "" && a.Zip != "" && a.City != ""
}

// Builder assembles a DriverReport from a normalized record, resolving
// directory entries through the dispatch client.
type Builder struct {
	client *Client
	cfg    common.DispatchConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewBuilder(client *Client, cfg common.DispatchConfig, logger *slog.Logger) *Builder {
	return &Builder{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// transportType maps the checkbox block to the dispatch category name.
// KTW wins over a spurious taxi tick, taxi rides are flagged upstream
// anyway.
func transportType(d schema.FormFields) string {
	switch {
	case d.TransportKTW:
		return "KTW"
	case d.TransportTaxi:
		return "Taxi"
	case d.TransportRTW:
		return "RTW"
	case d.TransportNAWNEF:
		return "NAW/NEF"
	default:
		return ""
	}
}

// direction follows the normalized record: a double tick was already
// resolved to outbound, and a missing tick defaults to outbound.
func direction(d schema.FormFields) string {
	if d.TransportReturn && !d.TransportOutbound {
		return "Rückfahrt"
	}
	return "Hinfahrt"
}

// targetAddress picks the destination: a manual override wins, then the
// patient confirmation block, each only when complete. The patient address
// is the last link and is taken as-is, even partial; the dispatcher fills
// gaps from the patient file.
func targetAddress(d schema.FormFields, override Address) Address {
	if override.full() {
		return override
	}
	confirm := Address{Street: d.ConfirmationStreet, Zip: d.ConfirmationZip, City: d.ConfirmationCity}
	if confirm.full() {
		return confirm
	}
	return Address{Street: d.PatientStreet, Zip: d.PatientZip, City: d.PatientCity}
}

// resolveInstitution finds the treatment facility in the directory, or
// creates it when allowed. Creation needs the tenant id, an explicit
// opt-in, and a complete clinic address; otherwise the id stays empty and
// the dispatcher assigns it by hand.
func (b *Builder) resolveInstitution(ctx context.Context, d schema.FormFields) (Institution, error) {
	name := d.TreatmentLocationName
	if name == "" {
		return Institution{}, nil
	}

	inst, err := b.client.FindInstitution(ctx, name)
	if err != nil {
		return Institution{}, err
	}
	if inst.ID != "" {
		return inst, nil
	}

	complete := d.TreatmentLocationStreet != "" && d.TreatmentLocationZip != "" && d.TreatmentLocationCity != ""
	if !b.cfg.AllowCreate || b.cfg.TenantID <= 0 || !complete {
		b.logger.Info("dispatch.institution.skipped", "name", name,
			"allow_create", b.cfg.AllowCreate, "complete_address", complete)
		return Institution{}, nil
	}

	return b.client.CreateInstitution(ctx, NewInstitution{
		Mandant: b.cfg.TenantID,
		Name:    name,
		Street:  d.TreatmentLocationStreet,
		Zip:     d.TreatmentLocationZip,
		City:    d.TreatmentLocationCity,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Build assembles the ride payload. The ride starts at the treatment
// facility; the target follows the address priority chain.
func (b *Builder) Build(ctx context.Context, d schema.FormFields, override Address) (DriverReport, error) {
	inst, err := b.resolveInstitution(ctx, d)
	if err != nil {
		return DriverReport{}, err
	}

	target := targetAddress(d, override)

	vaID := ""
	if tt := transportType(d); tt != "" {
		va, err := b.client.FindVerordnungsart(ctx, tt)
		if err != nil {
			return DriverReport{}, err
		}
		vaID = va.ID
	}

	// Payer: directory id first, raw Kostenträgerkennung as fallback.
	kkID := d.PayerID
	ik := firstNonEmpty(b.cfg.DefaultPayerIK, d.PayerID)
	if ik != "" {
		kt, err := b.client.FindKostentraegerByIK(ctx, ik)
		if err != nil {
			return DriverReport{}, err
		}
		if kt.ID != "" {
			kkID = kt.ID
		}
	}

	orderingName := firstNonEmpty(d.OrderingPartyName, d.TreatmentLocationName, inst.Name)
	orderingZip := firstNonEmpty(d.OrderingPartyZip, d.TreatmentLocationZip, inst.Zip)
	orderingCity := firstNonEmpty(d.OrderingPartyCity, d.TreatmentLocationCity, inst.City)
	orderingInfo := firstNonEmpty(d.OrderingPartyInfo, d.TreatmentLocationStreet, inst.Street)

	rideDate := firstNonEmpty(d.TreatmentDateFrom, b.now().Format("2006-01-02"))

	report := DriverReport{
		AuftraggeberCity:    orderingCity,
		AuftraggeberInfo:    orderingInfo,
		AuftraggeberName:    orderingName,
		AuftraggeberSurname: orderingName,
		AuftraggeberID:      inst.ID,
		AuftraggeberTelefon: d.OrderingPartyPhone,
		AuftraggeberZip:     orderingZip,
		Check:               checkUnverified,
		CostStatus:          costStatus,
		Date:                rideDate,
		Dauergenehmigung:    noPermanentPermit,
		Direction:           direction(d),
		DriveQuestions:      true,
		EndTime:             defaultEndTime,
		ManuelleAnfahrt:     b.cfg.DefaultApproachMn,
		PatientBirthday:     d.PatientBirthDate,
		PatientCity:         d.PatientCity,
		PatientLand:         d.PatientCity,
		PatientName:         d.PatientFirstName,
		PatientStreet:       d.PatientStreet,
		PatientSurname:      d.PatientLastName,
		PatientZip:          d.PatientZip,
		PossibleReturn:      "true",
		Provider:            orderingName,
		Sonderleistungen:    []string{},
		StartCity:           inst.City,
		StartInstitution:    inst.Name,
		StartStreet:         inst.Street,
		StartTime:           defaultStartTime,
		StartZip:            inst.Zip,
		TargetCity:          target.City,
		TargetStreet:        target.Street,
		TargetZip:           target.Zip,
		Terminfahrt:         true,
		Transportschein:     scheinVorhanden,
		VerordnungDatum:     d.PrescriptionDate,
		VerordnungsartID:    vaID,
		Versicherungsnummer: d.InsuranceNumber,
		ArztNummer:          d.DoctorNumber,
		Betriebsstaetten:    d.FacilityNumber,
		KkID:                kkID,
	}

	b.logger.Info("dispatch.payload.built",
		"direction", report.Direction,
		"institution_id", inst.ID,
		"verordnungsart_id", vaID,
		"target_city", target.City)
	return report, nil
}
