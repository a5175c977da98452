package mapping

// FieldKey is a canonical lead attribute a source column may map to.
type FieldKey string

const (
	FieldExternalID FieldKey = "external_id"
	FieldFirstName  FieldKey = "first_name"
	FieldLastName   FieldKey = "last_name"
	FieldEmail      FieldKey = "email"
	FieldPhone      FieldKey = "phone"
	FieldCompany    FieldKey = "company"
	FieldJobTitle   FieldKey = "job_title"
	FieldAddress    FieldKey = "address"
	FieldCity       FieldKey = "city"
	FieldPostalCode FieldKey = "postal_code"
	FieldCountry    FieldKey = "country"
	FieldStatus     FieldKey = "status"
	FieldSource     FieldKey = "source"
	FieldNotes      FieldKey = "notes"
	FieldAssignedTo FieldKey = "assigned_to"
)

// AllFields lists every canonical field in a stable order.
var AllFields = []FieldKey{
	FieldExternalID, FieldFirstName, FieldLastName, FieldEmail, FieldPhone,
	FieldCompany, FieldJobTitle, FieldAddress, FieldCity, FieldPostalCode,
	FieldCountry, FieldStatus, FieldSource, FieldNotes, FieldAssignedTo,
}

// IsValidField reports whether key is one of the canonical lead attributes.
func IsValidField(key FieldKey) bool {
	for _, f := range AllFields {
		if f == key {
			return true
		}
	}
	return false
}

// fieldAliases maps each canonical field to the header spellings seen in
// real exports. Kept as plain data so the matcher stays generic over the
// field set. Order matters: earlier aliases win ties.
var fieldAliases = map[FieldKey][]string{
	FieldExternalID: {"external_id", "externalid", "id", "lead_id", "contact_id", "crm_id", "record_id", "subscriberid", "ref", "reference"},
	FieldFirstName:  {"first_name", "firstname", "prenom", "first", "fname", "given_name", "givenname", "forename"},
	FieldLastName:   {"last_name", "lastname", "nom", "last", "lname", "surname", "family_name", "familyname", "nom_de_famille"},
	FieldEmail:      {"email", "email_address", "emailaddress", "e_mail", "mail", "courriel", "adresse_email", "adresse_mail", "email_1"},
	FieldPhone:      {"phone", "phone_number", "phonenumber", "telephone", "tel", "mobile", "portable", "cell", "numero_de_telephone", "gsm"},
	FieldCompany:    {"company", "company_name", "companyname", "societe", "entreprise", "organization", "organisation", "org", "business", "raison_sociale"},
	FieldJobTitle:   {"job_title", "jobtitle", "title", "poste", "fonction", "position", "role", "job"},
	FieldAddress:    {"address", "adresse", "street", "street_address", "rue", "address_line_1", "addr"},
	FieldCity:       {"city", "ville", "town", "locality", "commune"},
	FieldPostalCode: {"postal_code", "postalcode", "zip", "zipcode", "zip_code", "code_postal", "cp", "postcode"},
	FieldCountry:    {"country", "pays", "nation", "country_code"},
	FieldStatus:     {"status", "statut", "lead_status", "etat", "state"},
	FieldSource:     {"source", "lead_source", "leadsource", "origine", "origin", "canal", "channel", "utm_source"},
	FieldNotes:      {"notes", "note", "comment", "comments", "commentaire", "commentaires", "remarques", "description"},
	FieldAssignedTo: {"assigned_to", "assignedto", "owner", "assignee", "commercial", "sales_rep", "salesrep", "attribue_a", "responsable"},
}

// ColumnMapping resolves one source column to a canonical field.
// TargetField is empty when the column is unmapped.
type ColumnMapping struct {
	SourceColumn string   `json:"source_column"`
	SourceIndex  int      `json:"source_index"`
	TargetField  FieldKey `json:"target_field,omitempty"`
	Confidence   float64  `json:"confidence"`
	IsManual     bool     `json:"is_manual"`
}

// AutoAcceptConfidence is the threshold above which a suggested mapping
// is pre-selected for the user.
const AutoAcceptConfidence = 0.7

// SuggestMappings runs the header matcher over every column of a header row
// and returns one ColumnMapping per column. Matches below
// AutoAcceptConfidence are reported with an empty TargetField so the caller
// can still show the near-miss score.
func SuggestMappings(header []string) []ColumnMapping {
	mappings := make([]ColumnMapping, 0, len(header))
	taken := make(map[FieldKey]int) // field -> index into mappings

	for i, col := range header {
		m := ColumnMapping{SourceColumn: col, SourceIndex: i}
		field, confidence := FindBestMatch(col)
		m.Confidence = confidence
		if field != "" && confidence >= AutoAcceptConfidence {
			// One column per field: keep the higher-confidence claimant.
			if prev, ok := taken[field]; ok {
				if mappings[prev].Confidence >= confidence {
					mappings = append(mappings, m)
					continue
				}
				mappings[prev].TargetField = ""
			}
			m.TargetField = field
			taken[field] = len(mappings)
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// AssignField manually points a column at a field, clearing any other column
// that previously held it.
func AssignField(mappings []ColumnMapping, sourceIndex int, field FieldKey) {
	for i := range mappings {
		if mappings[i].TargetField == field {
			mappings[i].TargetField = ""
			mappings[i].Confidence = 0
			mappings[i].IsManual = false
		}
	}
	for i := range mappings {
		if mappings[i].SourceIndex == sourceIndex {
			mappings[i].TargetField = field
			mappings[i].Confidence = 1.0
			mappings[i].IsManual = true
			return
		}
	}
}
