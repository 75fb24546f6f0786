// Package cfrecord pulls DNS record resource blocks out of raw configuration
// text and reads their fields.
//
// It is deliberately not a configuration-language parser. A record block is
// recognised by its header,
//
//	resource "cloudflare_record" "<any-name>" {
//
// and ends at its own closing brace. Quoted strings, "${...}" interpolations
// and nested blocks up to two levels deep (lifecycle, dynamic, ...) are
// consumed whole, so braces inside them never end the record early and
// fields inside them are never read as the record's own. Everything is
// matched non-greedily across lines and in document order.
package cfrecord

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/common/textmatch"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

// ErrInvalidSelector is returned when a record-type selector is not a valid
// regex alternation fragment.
var ErrInvalidSelector = errors.New("cfrecord: invalid record type selector")

var (
	// header matches the opening line of a record resource with any resource name.
	header = `resource\s+"` + regexp.QuoteMeta(domain.RecordKind) + `"\s+"[^"]*"\s*\{`
	// str matches a double-quoted string, allowing escaped quotes inside.
	str = `"(?:[^"\\]|\\.)*"`
	// inner matches a brace pair holding no further braces outside strings.
	inner = `\{(?:` + str + `|[^{}"])*\}`
	// nested matches a brace pair holding at most one more level of braces.
	nested = `\{(?:` + str + `|` + inner + `|[^{}"])*\}`
	// body matches record content up to, but not across, the closing brace.
	body = `(?:` + str + `|` + nested + `|[^{}"])*?`
	// quoted captures the contents of a double-quoted string.
	quoted = `"((?:[^"\\]|\\.)*)"`
)

// blockPattern returns the pattern for a whole record block whose type field
// matches selector.
func blockPattern(selector string) string {
	return header + body + `\b` + domain.FieldType + `\s*=\s*"(?:` + selector + `)"` + body + `\}`
}

// fieldPattern returns the pattern that captures the first value assigned to
// field inside a record block.
func fieldPattern(field string) string {
	return header + body + `\b` + regexp.QuoteMeta(field) + `\s*=\s*` + quoted
}

// Options configures a Parser.
type Options struct {
	// Matcher caches compiled patterns. One is created when nil.
	Matcher *textmatch.Matcher
	Logger  log.Logger
}

// Parser finds record blocks and reads their fields. It is safe for
// concurrent use.
type Parser struct {
	matcher *textmatch.Matcher
	logger  log.Logger
}

// NewParser returns a Parser using the given options.
func NewParser(opts Options) (*Parser, error) {
	m := opts.Matcher
	if m == nil {
		var err error
		m, err = textmatch.NewMatcher(textmatch.DefaultCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create pattern cache: %w", err)
		}
	}
	return &Parser{matcher: m, logger: log.OrNoop(opts.Logger)}, nil
}

// FindRecords returns every record block in text whose type field matches
// selector, in document order. selector is a regex alternation fragment such
// as "A|MX", "TXT" or domain.AnySelector. Blocks of any other resource kind
// never match. An empty text or no match yields an empty result; only an
// invalid selector is an error.
func (p *Parser) FindRecords(text, selector string) ([]domain.ResourceBlock, error) {
	if text == "" {
		return nil, nil
	}
	matches, err := p.matcher.FindAll(blockPattern(selector), text)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	blocks := make([]domain.ResourceBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, domain.ResourceBlock(m))
	}
	return blocks, nil
}

// FieldValue returns the quoted value assigned to field inside block. When
// the field appears more than once, the first occurrence in document order
// wins. ok is false when the field is absent or block is not a record block.
func (p *Parser) FieldValue(block domain.ResourceBlock, field string) (value string, ok bool) {
	value, ok, err := p.matcher.FirstGroup(fieldPattern(field), string(block))
	if err != nil {
		// field is quoted before compiling, so this only fires on a broken header literal
		p.logger.Error(map[string]any{"field": field, "error": err}, "Field pattern failed to compile")
		return "", false
	}
	return value, ok
}

// RecordType returns the block's type field as an RRType. ok is false when
// the field is missing or names a type outside domain's known set.
func (p *Parser) RecordType(block domain.ResourceBlock) (domain.RRType, bool) {
	v, ok := p.FieldValue(block, domain.FieldType)
	if !ok {
		return 0, false
	}
	t := domain.RRTypeFromString(v)
	return t, t.IsValid()
}

// FullHostname joins the name and domain fields as "<name>.<domain>". It
// returns domain.AbsentHostname and false when either field is missing or
// empty.
func (p *Parser) FullHostname(block domain.ResourceBlock) (domain.Hostname, bool) {
	name, ok := p.FieldValue(block, domain.FieldName)
	if !ok || name == "" {
		return domain.AbsentHostname, false
	}
	zone, ok := p.FieldValue(block, domain.FieldDomain)
	if !ok || zone == "" {
		return domain.AbsentHostname, false
	}
	return domain.Hostname(name + "." + zone), true
}

// IsSPFRecord reports whether the block's value field starts with "v=spf1".
// A missing value counts as empty.
func (p *Parser) IsSPFRecord(block domain.ResourceBlock) bool {
	value, _ := p.FieldValue(block, domain.FieldValue)
	return strings.HasPrefix(value, domain.SPFPrefix)
}

// SPFRecords keeps the blocks that carry an SPF policy.
func (p *Parser) SPFRecords(blocks []domain.ResourceBlock) []domain.ResourceBlock {
	out := make([]domain.ResourceBlock, 0, len(blocks))
	for _, b := range blocks {
		if p.IsSPFRecord(b) {
			out = append(out, b)
		}
	}
	return out
}

// UniqueHostnames collects the full hostname of every block into a set.
// A block without a derivable hostname still contributes
// domain.AbsentHostname; callers decide whether to drop it.
func (p *Parser) UniqueHostnames(blocks []domain.ResourceBlock) domain.HostnameSet {
	set := domain.NewHostnameSet()
	for _, b := range blocks {
		h, _ := p.FullHostname(b)
		set.Add(h)
	}
	return set
}
