package redaction

// Entity type tags. The set is open ended: registering a new recognizer is
// enough to introduce a new tag.
const (
	EntityEmailAddress = "EMAIL_ADDRESS"
	EntityPhoneNumber  = "PHONE_NUMBER"
	EntityCreditCard   = "CREDIT_CARD"
	EntityPerson       = "PERSON"
	EntityLocation     = "LOCATION"
	EntityAPIKey       = "API_KEY"
	EntityIndianPAN    = "INDIAN_PAN"
	EntityIndianGSTIN  = "INDIAN_GSTIN"
)

// DefaultEntityTypes returns the tags detected when a tenant has not narrowed
// the set. Regional tags are governed by Config.EnableRegionalEntities, not by
// this list.
func DefaultEntityTypes() []string {
	return []string{
		EntityEmailAddress,
		EntityPhoneNumber,
		EntityCreditCard,
		EntityPerson,
		EntityLocation,
		EntityAPIKey,
	}
}

// EntityMatch is one detected span. Offsets are byte offsets into the source
// text with 0 <= Start < End <= len(text).
type EntityMatch struct {
	EntityType       string  `json:"entity_type"`
	Start            int     `json:"start"`
	End              int     `json:"end"`
	Confidence       float64 `json:"confidence"`
	SourceRecognizer string  `json:"source_recognizer"`
}

// DetectionResult is an ordered sequence of matches, ascending by Start.
// Immutable once produced by the Detector.
type DetectionResult []EntityMatch

// DefaultConfidenceThreshold is applied when a config carries no explicit
// threshold.
const DefaultConfidenceThreshold = 0.5

// Config are the detector knobs. A zero value gets the defaults.
type Config struct {
	ConfidenceThreshold    *float64 // nil applies DefaultConfidenceThreshold; an explicit 0 keeps every match
	EnabledEntityTypes     []string // nil keeps DefaultEntityTypes plus regional tags when enabled
	EnableRegionalEntities bool
}

// Threshold wraps a threshold value for Config.ConfidenceThreshold.
func Threshold(v float64) *float64 {
	return &v
}

func (c Config) threshold() float64 {
	if c.ConfidenceThreshold == nil {
		return DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

func (c Config) enabledSet() map[string]bool {
	types := c.EnabledEntityTypes
	if types == nil {
		types = DefaultEntityTypes()
		if c.EnableRegionalEntities {
			types = append(types, EntityIndianPAN, EntityIndianGSTIN)
		}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
