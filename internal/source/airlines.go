package source

// airlineNames maps common IATA carrier codes to display names. Codes not
// listed here pass through unchanged.
var airlineNames = map[string]string{
	"TK": "Turkish Airlines",
	"LH": "Lufthansa",
	"AF": "Air France",
	"KL": "KLM",
	"BA": "British Airways",
	"QR": "Qatar Airways",
	"EK": "Emirates",
	"EY": "Etihad",
	"SQ": "Singapore Airlines",
	"CX": "Cathay Pacific",
	"JL": "Japan Airlines",
	"NH": "ANA",
	"KE": "Korean Air",
	"OZ": "Asiana Airlines",
	"CA": "Air China",
	"MU": "China Eastern",
	"CZ": "China Southern",
	"SU": "Aeroflot",
	"OS": "Austrian Airlines",
	"LX": "Swiss",
	"AY": "Finnair",
	"SK": "SAS",
	"LO": "LOT Polish",
	"W6": "Wizz Air",
	"FR": "Ryanair",
	"U2": "easyJet",
}

// AirlineName resolves an IATA carrier code to its display name.
func AirlineName(code string) string {
	if name, ok := airlineNames[code]; ok {
		return name
	}
	return code
}
