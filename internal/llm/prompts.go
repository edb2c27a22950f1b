package llm

// The instruction text below encodes the business semantics for the Muster 4
// form and is treated as versioned configuration data: rule changes happen
// here, nowhere else. Every rule that can be expressed deterministically has
// a backstop in the normalization engine; the service is consulted only for
// visual judgment.

const PromptVersion = "2026-02"

// PageInstructions is the system message of the whole-page extraction call.
const PageInstructions = `You are a document data extraction engine for German medical transport forms:
"Verordnung einer Krankenbefoerderung (Muster 4)".

You will receive:
1) IMAGE containing the full scanned page
2) EXAMPLE JSON STRUCTURE (schema)

Your job is:
A) extract fields into JSON strictly according to the schema
B) run the validation rules below and return flags
C) NEVER invent missing data

Extraction rules:
- Do NOT hallucinate. If a value is not clearly present -> "" for strings, false for booleans.
- Preserve what the form says. Do not "correct" the form. Put problems into flags.
- If multiple candidates exist for a field, pick the clearest one and add a warning flag about ambiguity.
- Normalize dates to YYYY-MM-DD (e.g., 03.02.26 -> 2026-02-03). Unparsable date -> "" plus flag "INVALID_DATE".
- Normalize insurance/ID numbers to digits only (remove spaces and separators).
- Checkboxes: a mark clearly inside the box => true, empty => false. If unclear => false plus warning flag "CHECKBOX_UNCLEAR".
- Ignore random pen strokes unless they clearly fill a specific field line.
- If an OCR confusion is obvious (O vs 0, l vs 1), you may correct it; add warning flag "OCR_CORRECTION_APPLIED".
- Output must be STRICT JSON ONLY. No additional text.

Validation rules:
- Validation never changes extracted values; it only produces flags.
- Every flag contains: code, severity ("error"|"warning"|"info"), field, message, related_fields (optional).
- If neither transport_outbound nor transport_return is marked -> warning "TRANSPORT_DIRECTION_NONE".
- If no reason checkbox is marked -> warning "REASON_NONE_SELECTED".
- If transport_taxi is marked -> error flag "TAXI_NOT_ALLOWED" (taxi transports are not processed).
- If ordering_party_name is missing -> warning "ORDERING_PARTY_NAME_MISSING".
- If medical_reason_text is empty AND transport_ktw is true -> warning "JUSTIFICATION_MISSING_FOR_KTW".
- If treatment_frequency_per_week exists but is not numeric -> "" plus warning "FREQUENCY_NOT_NUMERIC".

Field notes:
- status_number: the 7-digit code printed next to the word "Status" in the insurance block; it usually starts with 5. Read only the printed box, ignore handwriting.
- betriebsstaetten_nr: the 9-digit number printed under the label "Betriebsstaetten-Nr.". Do not reorder digits.
- ordering_party_phone: only a number labeled Tel/Telefon/Phone/Fax in the doctor stamp. Ignore numbers inside names or addresses.
- ordering_party_info: the remaining stamp lines (department, specialty, address) verbatim, one per line.`

// PageUserText introduces the example structure in the user message.
const PageUserText = "EXAMPLE JSON STRUCTURE:\n%s\n\nFill this JSON by reading the attached scanned form page image."

// FieldPrompt is the minimal instruction set of a narrow single-field
// request. The response carries exactly one JSON key.
type FieldPrompt struct {
	Field   string // schema field name
	JSONKey string // single key expected in the response object
	System  string
	User    string
}

// FieldPrompts holds the narrow prompts for the recoverable fields.
var FieldPrompts = map[string]FieldPrompt{
	"status_number": {
		Field:   "status_number",
		JSONKey: "status",
		System: "You extract ONLY the insurance Status code from the printed field labeled 'Status' " +
			"(the 7-digit code printed next to the word 'Status'; it usually starts with 5) " +
			"in the insurance block of the German form 'Verordnung einer Krankenbefoerderung'. " +
			"Return ONLY JSON with the single key 'status'. Locate the word 'Status' and read ONLY the digits in that printed box/row. " +
			"Ignore handwritten/pencil notes and any numbers outside the printed Status box. " +
			"If you cannot read a 7-digit status from the printed Status box, return an empty string.",
		User: `Return JSON like {"status": "5000000"} or empty string if not readable.`,
	},
	"ordering_party_phone": {
		Field:   "ordering_party_phone",
		JSONKey: "phone",
		System: "You extract ONLY the phone number of the ordering party (doctor stamp). " +
			"Return ONLY JSON with the single key 'phone'. " +
			"Ignore numbers that are part of names or addresses. " +
			"Prefer a number labeled Tel/Telefon/Phone/Fax. " +
			"If no phone is clearly labeled, return an empty string.",
		User: `Return JSON like {"phone": "030/8255051"} or empty string if not readable.`,
	},
	"betriebsstaetten_nr": {
		Field:   "betriebsstaetten_nr",
		JSONKey: "betriebsstaetten_nr",
		System: "You extract ONLY the Betriebsstaetten-Nr. (facility ID) from the printed field labeled 'Betriebsstaetten-Nr.' " +
			"(the 9-digit number printed on the line under the label, immediately left of 'Arzt-Nr.' and above 'Datum') " +
			"on the German form 'Verordnung einer Krankenbefoerderung'. " +
			"Return ONLY JSON with the single key 'betriebsstaetten_nr'. " +
			"Ignore handwritten notes. Do NOT reorder digits. If you cannot read a 9-digit number from that printed field, return an empty string.",
		User: `Return JSON like {"betriebsstaetten_nr": "727405500"} or empty string if not readable.`,
	},
}
