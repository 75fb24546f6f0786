package domain

import (
	"sort"
	"time"
)

// Violation is a mail-capable hostname without an SPF policy.
type Violation struct {
	Hostname Hostname `json:"hostname" yaml:"hostname"`

	// Apex is the registrable domain the hostname belongs to.
	Apex string `json:"apex" yaml:"apex"`

	// LiveSPF is set when a live DNS probe ran: true means an SPF record is
	// published even though the scanned tree does not declare one.
	LiveSPF *bool `json:"live_spf,omitempty" yaml:"live_spf,omitempty"`

	// PreviouslyReported is true when report history already holds the host;
	// ReportedRun then names the run that first reported it.
	PreviouslyReported bool   `json:"previously_reported,omitempty" yaml:"previously_reported,omitempty"`
	ReportedRun        string `json:"reported_run,omitempty" yaml:"reported_run,omitempty"`
}

// Report is the outcome of one audit run as handed to reporters.
type Report struct {
	RunID        string      `json:"run_id" yaml:"run_id"`
	Root         string      `json:"root" yaml:"root"`
	GeneratedAt  time.Time   `json:"generated_at" yaml:"generated_at"`
	Files        int         `json:"files" yaml:"files"`
	MailCapable  int         `json:"mail_capable" yaml:"mail_capable"`
	SPFProtected int         `json:"spf_protected" yaml:"spf_protected"`
	Violations   []Violation `json:"violations" yaml:"violations"`

	// RecordTypes counts scanned record blocks by type name.
	RecordTypes map[string]int `json:"record_types,omitempty" yaml:"record_types,omitempty"`
}

// NewViolations wraps hostnames as violations, keeping their order.
func NewViolations(hosts []Hostname) []Violation {
	out := make([]Violation, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, Violation{Hostname: h, Apex: h.Apex()})
	}
	return out
}

// Hostnames returns the violation hostnames in report order.
func (r Report) Hostnames() []Hostname {
	out := make([]Hostname, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Hostname)
	}
	return out
}

// ByApex groups the violations by apex domain. Keys are returned sorted.
func (r Report) ByApex() ([]string, map[string][]Violation) {
	groups := make(map[string][]Violation)
	for _, v := range r.Violations {
		groups[v.Apex] = append(groups[v.Apex], v)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}
