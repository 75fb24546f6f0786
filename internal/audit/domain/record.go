package domain

// RecordKind is the resource kind literal that identifies a DNS record
// declaration in the scanned configuration.
const RecordKind = "cloudflare_record"

// Field names read from a record block.
const (
	FieldType   = "type"
	FieldName   = "name"
	FieldDomain = "domain"
	FieldValue  = "value"
)

// SPFPrefix starts every SPF policy string.
const SPFPrefix = "v=spf1"

// ResourceBlock is the raw text of one record resource, from its header up
// to and including its closing brace. It is queried for field values on
// demand and never parsed into a structure.
type ResourceBlock string

// String returns the block text.
func (b ResourceBlock) String() string { return string(b) }
