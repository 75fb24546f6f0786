package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// RRType represents a DNS resource record type (e.g. A, MX, TXT) as it is
// written in a record's type field.
type RRType uint16

// DNS Resource Record Type constants
const (
	RRTypeA     RRType = 1   // A - IPv4 address
	RRTypeNS    RRType = 2   // NS - Name server
	RRTypeCNAME RRType = 5   // CNAME - Canonical name
	RRTypePTR   RRType = 12  // PTR - Pointer
	RRTypeMX    RRType = 15  // MX - Mail exchange
	RRTypeTXT   RRType = 16  // TXT - Text
	RRTypeAAAA  RRType = 28  // AAAA - IPv6 address
	RRTypeSRV   RRType = 33  // SRV - Service
	RRTypeCAA   RRType = 257 // CAA - Certificate authority authorization
)

// AnySelector matches a record of any type.
const AnySelector = ".+?"

// MailCapableTypes are the record types whose presence means a host can
// plausibly send or receive mail.
var MailCapableTypes = []RRType{RRTypeA, RRTypeMX}

// IsValid returns true if the RRType is one of the supported types.
func (t RRType) IsValid() bool {
	switch t {
	case RRTypeA, RRTypeNS, RRTypeCNAME, RRTypePTR, RRTypeMX, RRTypeTXT,
		RRTypeAAAA, RRTypeSRV, RRTypeCAA:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
// For unknown types, it returns "UNKNOWN(<value>)".
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeNS:
		return "NS"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypePTR:
		return "PTR"
	case RRTypeMX:
		return "MX"
	case RRTypeTXT:
		return "TXT"
	case RRTypeAAAA:
		return "AAAA"
	case RRTypeSRV:
		return "SRV"
	case RRTypeCAA:
		return "CAA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// RRTypeFromString converts a record type string to its corresponding RRType value.
func RRTypeFromString(s string) RRType {
	switch strings.ToUpper(s) {
	case "A":
		return RRTypeA
	case "NS":
		return RRTypeNS
	case "CNAME":
		return RRTypeCNAME
	case "PTR":
		return RRTypePTR
	case "MX":
		return RRTypeMX
	case "TXT":
		return RRTypeTXT
	case "AAAA":
		return RRTypeAAAA
	case "SRV":
		return RRTypeSRV
	case "CAA":
		return RRTypeCAA
	default:
		return 0 // invalid/unknown
	}
}

// Selector builds the regex alternation fragment that matches any of the
// given record types, e.g. "A|MX". With no types it returns AnySelector.
func Selector(types ...RRType) string {
	if len(types) == 0 {
		return AnySelector
	}
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, regexp.QuoteMeta(t.String()))
	}
	return strings.Join(parts, "|")
}
