package cfrecord

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/tf-spf-audit/internal/audit/common/textmatch"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

const nonRecordBlock = `resource "foobar" "baz" {
            type  = "A"
            value = "blah"
        }`

const aRecordBlock = `resource "cloudflare_record" "baz" {
            type  = "A"
            value = "blah"
        }`

const mxRecordBlock = `resource "cloudflare_record" "bar" {
            type  = "MX"
            value = "blah"
        }`

const spfRecordBlock = `resource "cloudflare_record" "spf_resdiary_com_TXT_SPF" {
            domain  = "resdiary.com"
            value   = "v=spf1 ip4:0.0.0.0 -all"
            type    = "TXT"
            proxied = false
            name    = "spf"
        }`

const spf2RecordBlock = `resource "cloudflare_record" "spf2_resdiary_com_TXT_SPF" {
                domain  = "resdiary.com"
                value   = "v=spf1 ip4:0.0.0.0 -all"
                type    = "TXT"
                proxied = false
                name    = "spf2"
            }`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(Options{})
	require.NoError(t, err)
	return p
}

func TestFindRecords_IgnoresOtherResourceKinds(t *testing.T) {
	p := newTestParser(t)
	got, err := p.FindRecords(nonRecordBlock, "A")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindRecords_MatchesTypeA(t *testing.T) {
	p := newTestParser(t)
	got, err := p.FindRecords(aRecordBlock, "A")
	require.NoError(t, err)
	assert.Equal(t, []domain.ResourceBlock{aRecordBlock}, got)
}

func TestFindRecords_AdjacentBlocksInDocumentOrder(t *testing.T) {
	p := newTestParser(t)
	for _, selector := range []string{"A|MX", "(A|MX)", domain.Selector(domain.MailCapableTypes...)} {
		got, err := p.FindRecords(aRecordBlock+mxRecordBlock, selector)
		require.NoError(t, err)
		assert.Equal(t, []domain.ResourceBlock{aRecordBlock, mxRecordBlock}, got, "selector %q", selector)
	}
}

func TestFindRecords_SelectorMustMatchWholeType(t *testing.T) {
	p := newTestParser(t)
	aaaa := `resource "cloudflare_record" "v6" {
  type   = "AAAA"
  name   = "www"
  domain = "example.com"
}`
	got, err := p.FindRecords(aaaa, "A|MX")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindRecords_TypeMustBeInsideTheBlock(t *testing.T) {
	p := newTestParser(t)
	txtWithoutSPF := `resource "cloudflare_record" "verify" {
  type   = "TXT"
  name   = "verify"
  domain = "example.com"
  value  = "google-site-verification=abc"
}
`
	got, err := p.FindRecords(txtWithoutSPF+aRecordBlock, "A")
	require.NoError(t, err)
	assert.Equal(t, []domain.ResourceBlock{aRecordBlock}, got)
}

func TestFindRecords_ToleratesInterpolation(t *testing.T) {
	p := newTestParser(t)
	block := `resource "cloudflare_record" "web" {
  value  = "${aws_eip.web.public_ip}"
  domain = "${var.zone}"
  type   = "A"
  name   = "web"
}`
	got, err := p.FindRecords(block, "A")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ResourceBlock(block), got[0])
}

func TestFindRecords_NestedBlockBeforeType(t *testing.T) {
	p := newTestParser(t)
	block := `resource "cloudflare_record" "mail" {
  lifecycle {
    prevent_destroy = true
  }
  type   = "A"
  name   = "mail"
  domain = "example.com"
  value  = "192.0.2.10"
}`
	got, err := p.FindRecords(block, "A|MX")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ResourceBlock(block), got[0])

	h, ok := p.FullHostname(got[0])
	assert.True(t, ok)
	assert.Equal(t, domain.Hostname("mail.example.com"), h)
}

func TestFindRecords_TwoLevelNesting(t *testing.T) {
	p := newTestParser(t)
	block := `resource "cloudflare_record" "srv" {
  dynamic "data" {
    for_each = var.targets
    content {
      target = data.value
    }
  }
  type   = "MX"
  name   = "srv"
  domain = "example.com"
}`
	got, err := p.FindRecords(block+"\n"+aRecordBlock, "A|MX")
	require.NoError(t, err)
	assert.Equal(t, []domain.ResourceBlock{domain.ResourceBlock(block), aRecordBlock}, got)
}

func TestFindRecords_BracesInsideQuotedValue(t *testing.T) {
	p := newTestParser(t)
	dkim := `resource "cloudflare_record" "dkim" {
  value  = "v=DKIM1; p={abc}"
  type   = "TXT"
  name   = "sel._domainkey"
  domain = "example.com"
}`
	spf := `resource "cloudflare_record" "spf" {
  value  = "v=spf1 include:%{d}.example.net -all"
  type   = "TXT"
  name   = "mail"
  domain = "example.com"
}`
	got, err := p.FindRecords(dkim+"\n"+spf, "TXT")
	require.NoError(t, err)
	require.Equal(t, []domain.ResourceBlock{domain.ResourceBlock(dkim), domain.ResourceBlock(spf)}, got)

	assert.Equal(t, []domain.ResourceBlock{domain.ResourceBlock(spf)}, p.SPFRecords(got))
	v, ok := p.FieldValue(got[1], "value")
	assert.True(t, ok)
	assert.Equal(t, "v=spf1 include:%{d}.example.net -all", v)
}

func TestFindRecords_TypeInsideNestedBlockIgnored(t *testing.T) {
	p := newTestParser(t)
	block := `resource "cloudflare_record" "x" {
  data {
    type = "A"
  }
  type   = "TXT"
  name   = "x"
  domain = "example.com"
}`
	got, err := p.FindRecords(block, "A")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = p.FindRecords(block, "TXT")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindRecords_AnySelector(t *testing.T) {
	p := newTestParser(t)
	text := aRecordBlock + "\n\n" + nonRecordBlock + "\n" + spfRecordBlock
	got, err := p.FindRecords(text, domain.AnySelector)
	require.NoError(t, err)
	assert.Equal(t, []domain.ResourceBlock{aRecordBlock, spfRecordBlock}, got)
}

func TestFindRecords_EmptyTextAndInvalidSelector(t *testing.T) {
	p := newTestParser(t)

	got, err := p.FindRecords("", "A")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = p.FindRecords(aRecordBlock, "A|(")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelector))
	assert.True(t, errors.Is(err, textmatch.ErrInvalidPattern))
}

func TestFieldValue(t *testing.T) {
	p := newTestParser(t)

	_, ok := p.FieldValue(nonRecordBlock, "value")
	assert.False(t, ok, "non record blocks have no fields")

	_, ok = p.FieldValue(aRecordBlock, "domain")
	assert.False(t, ok, "missing field must be absent")

	v, ok := p.FieldValue(aRecordBlock, "type")
	assert.True(t, ok)
	assert.Equal(t, "A", v)
}

func TestFieldValue_FirstOccurrenceWins(t *testing.T) {
	p := newTestParser(t)
	block := domain.ResourceBlock(`resource "cloudflare_record" "dup" {
  name   = "first"
  type   = "A"
  name   = "second"
  domain = "example.com"
}`)
	v, ok := p.FieldValue(block, "name")
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestFieldValue_DoesNotMatchFieldSuffix(t *testing.T) {
	p := newTestParser(t)
	block := domain.ResourceBlock(`resource "cloudflare_record" "x" {
  zone_name = "wrong"
  name      = "right"
}`)
	v, ok := p.FieldValue(block, "name")
	require.True(t, ok)
	assert.Equal(t, "right", v)
}

func TestFieldValue_SkipsNestedBlocksAndStrings(t *testing.T) {
	p := newTestParser(t)
	block := domain.ResourceBlock(`resource "cloudflare_record" "x" {
  comment = "name = \"quoted\""
  data {
    name = "inner"
  }
  name = "outer"
}`)
	v, ok := p.FieldValue(block, "name")
	require.True(t, ok)
	assert.Equal(t, "outer", v)
}

func TestFieldValue_EscapedQuotes(t *testing.T) {
	p := newTestParser(t)
	block := domain.ResourceBlock(`resource "cloudflare_record" "x" {
  value = "say \"hi\""
}`)
	v, ok := p.FieldValue(block, "value")
	require.True(t, ok)
	assert.Equal(t, `say \"hi\"`, v)
}

func TestRecordType(t *testing.T) {
	p := newTestParser(t)

	rt, ok := p.RecordType(mxRecordBlock)
	assert.True(t, ok)
	assert.Equal(t, domain.RRTypeMX, rt)

	rt, ok = p.RecordType(`resource "cloudflare_record" "v6" {
  type = "aaaa"
}`)
	assert.True(t, ok)
	assert.Equal(t, domain.RRTypeAAAA, rt)

	_, ok = p.RecordType(`resource "cloudflare_record" "loc" {
  type = "LOC"
}`)
	assert.False(t, ok, "unknown type")

	_, ok = p.RecordType(nonRecordBlock)
	assert.False(t, ok)
}

func TestFullHostname(t *testing.T) {
	p := newTestParser(t)

	h, ok := p.FullHostname(nonRecordBlock)
	assert.False(t, ok)
	assert.True(t, h.IsAbsent())

	h, ok = p.FullHostname(`resource "cloudflare_record" "baz" {
            domain = "example.com"
            name   = "subdomain"
        }`)
	assert.True(t, ok)
	assert.Equal(t, domain.Hostname("subdomain.example.com"), h)

	_, ok = p.FullHostname(`resource "cloudflare_record" "baz" {
            name   = "subdomain"
        }`)
	assert.False(t, ok, "missing domain")

	_, ok = p.FullHostname(`resource "cloudflare_record" "baz" {
            name   = ""
            domain = "example.com"
        }`)
	assert.False(t, ok, "empty name")
}

func TestIsSPFRecord(t *testing.T) {
	p := newTestParser(t)
	assert.False(t, p.IsSPFRecord(nonRecordBlock))
	assert.False(t, p.IsSPFRecord(aRecordBlock))
	assert.True(t, p.IsSPFRecord(spfRecordBlock))
	assert.False(t, p.IsSPFRecord(`resource "cloudflare_record" "novalue" {
  type = "TXT"
}`))
}

func TestSPFRecords(t *testing.T) {
	p := newTestParser(t)
	got := p.SPFRecords([]domain.ResourceBlock{aRecordBlock, spfRecordBlock, mxRecordBlock})
	assert.Equal(t, []domain.ResourceBlock{spfRecordBlock}, got)
}

func TestUniqueHostnames(t *testing.T) {
	p := newTestParser(t)

	blocks, err := p.FindRecords(spfRecordBlock, domain.AnySelector)
	require.NoError(t, err)
	assert.True(t, p.UniqueHostnames(blocks).Equal(domain.NewHostnameSet("spf.resdiary.com")))

	text := "\n            " + spfRecordBlock + "\n            \n            " + spf2RecordBlock + "\n        "
	blocks, err = p.FindRecords(text, domain.AnySelector)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.True(t, p.UniqueHostnames(blocks).Equal(domain.NewHostnameSet("spf.resdiary.com", "spf2.resdiary.com")))
}

func TestUniqueHostnames_KeepsAbsentMarker(t *testing.T) {
	p := newTestParser(t)
	got := p.UniqueHostnames([]domain.ResourceBlock{aRecordBlock, mxRecordBlock, spfRecordBlock})
	assert.True(t, got.Equal(domain.NewHostnameSet(domain.AbsentHostname, "spf.resdiary.com")))
}

func TestParser_SharedMatcher(t *testing.T) {
	m, err := textmatch.NewMatcher(8)
	require.NoError(t, err)
	p, err := NewParser(Options{Matcher: m})
	require.NoError(t, err)

	_, _ = p.FindRecords(aRecordBlock, "A")
	_, _ = p.FindRecords(aRecordBlock, "A")
	_, _ = p.FieldValue(aRecordBlock, "type")
	assert.Equal(t, 2, m.Len())
}
