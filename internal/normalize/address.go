package normalize

import (
	"regexp"
	"strings"
)

// Line-level heuristics for segmenting the ordering-party free-text block
// (doctor stamp) into name, specialty/department, street, zip+city and phone.

var (
	zipCityRe = regexp.MustCompile(`\b(\d{5})\s+([A-Za-zÄÖÜäöüß\-\.]+(?:\s+[A-Za-zÄÖÜäöüß\-\.]+)*)`)
	doctorRe  = regexp.MustCompile(`(?i)\b(?:Dr\.?|Prof\.?|med\.?)\b`)
)

var orgHints = []string{
	"Universitaetsmedizin",
	"Universitätsmedizin",
	"Klinik",
	"Krankenhaus",
	"MVZ",
	"GmbH",
	"Charit",
	"Praxis",
	"Zentrum",
	"Ambulanz",
	"Hochschulambulanz",
}

var streetTokens = []string{"str.", "str ", "strasse", "straße", "allee", "platz", "weg", "ring", "gasse"}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// foldUmlauts maps German umlauts to their ASCII base so keyword matching
// survives OCR transliteration either way.
func foldUmlauts(s string) string {
	r := strings.NewReplacer(
		"Ä", "A", "Ö", "O", "Ü", "U",
		"ä", "a", "ö", "o", "ü", "u", "ß", "ss",
	)
	return r.Replace(s)
}

func hasOrgHint(line string) bool {
	folded := foldUmlauts(line)
	for _, h := range orgHints {
		if strings.Contains(folded, foldUmlauts(h)) {
			return true
		}
	}
	return false
}

// isPhoneLine requires the explicit label. Bare digit runs on a stamp are
// usually practice identifiers, not phone numbers.
func isPhoneLine(line string) bool {
	return phoneLabelRe.MatchString(line)
}

// isSpecialtyLine: starts with a fixed specialty abbreviation or contains a
// specialty keyword.
func isSpecialtyLine(line string) bool {
	folded := foldUmlauts(line)
	upper := strings.ToUpper(folded)
	if strings.HasPrefix(upper, "FA ") || strings.HasPrefix(upper, "ZB ") {
		return true
	}
	lower := strings.ToLower(folded)
	for _, kw := range []string{"facharzt", "fachaerzt", "hausaerztliche versorgung", "zahnarzt"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isAddressLine: contains a street-type token or matches a "zip city" shape.
func isAddressLine(line string) bool {
	lower := strings.ToLower(foldUmlauts(line))
	for _, t := range streetTokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return zipCityRe.MatchString(line)
}

func isDoctorLine(line string) bool {
	return doctorRe.MatchString(line)
}

// looksLikePersonName: 2-5 capitalized tokens, no organizational keyword.
func looksLikePersonName(line string) bool {
	parts := strings.Fields(line)
	if len(parts) < 2 || len(parts) > 5 {
		return false
	}
	if hasOrgHint(line) || isSpecialtyLine(line) {
		return false
	}
	for _, p := range parts {
		r := []rune(p)
		if len(r) == 0 || !isUpper(r[0]) {
			return false
		}
	}
	return true
}

func isUpper(r rune) bool {
	return (r >= 'A' && r <= 'Z') || r == 'Ä' || r == 'Ö' || r == 'Ü'
}

// isNameCandidate: a doctor-titled or person-shaped line that is not a
// phone, address or specialty line.
func isNameCandidate(line string) bool {
	if isPhoneLine(line) || isAddressLine(line) || isSpecialtyLine(line) {
		return false
	}
	return isDoctorLine(line) || looksLikePersonName(line)
}

// OrderingParty is the segmented doctor-stamp block.
type OrderingParty struct {
	Name  string
	Info  []string
	Zip   string
	City  string
	Phone string
}

// SegmentOrderingParty classifies the free-text stamp lines. Existing
// (already extracted) name/zip/city/phone values win; segmentation only
// fills gaps. Unclassified lines are retained in original order.
func SegmentOrderingParty(name, info, zip, city, phone string) OrderingParty {
	lines := splitLines(info)

	if phone == "" {
		phone = phoneFromLines(lines)
	}

	consumedName := -1
	if name == "" {
		// Prefer a doctor-titled line, then a person-shaped one, then the
		// first line of the stamp.
		for i, line := range lines {
			if isDoctorLine(line) && isNameCandidate(line) {
				name, consumedName = line, i
				break
			}
		}
		if name == "" {
			for i, line := range lines {
				if isNameCandidate(line) {
					name, consumedName = line, i
					break
				}
			}
		}
		if name == "" && len(lines) > 0 && !isPhoneLine(lines[0]) && !isAddressLine(lines[0]) {
			name, consumedName = lines[0], 0
		}
	}

	if zip == "" || city == "" {
		for _, line := range lines {
			if m := zipCityRe.FindStringSubmatch(line); m != nil {
				if zip == "" {
					zip = m[1]
				}
				if city == "" {
					city = strings.TrimSpace(m[2])
				}
				break
			}
		}
	}

	var kept []string
	for i, line := range lines {
		if i == consumedName || isPhoneLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	// Make sure the zip+city line survives in the info block.
	if zip != "" && city != "" {
		present := false
		for _, line := range kept {
			if strings.Contains(line, zip) && strings.Contains(line, city) {
				present = true
				break
			}
		}
		if !present {
			kept = append(kept, zip+" "+city)
		}
	}

	return OrderingParty{
		Name:  name,
		Info:  kept,
		Zip:   zip,
		City:  city,
		Phone: NormalizePhone(phone),
	}
}
