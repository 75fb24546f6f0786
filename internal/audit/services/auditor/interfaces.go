package auditor

import "github.com/haukened/tf-spf-audit/internal/audit/domain"

// RecordParser extracts record blocks and hostnames from file text.
type RecordParser interface {
	FindRecords(text, selector string) ([]domain.ResourceBlock, error)
	RecordType(block domain.ResourceBlock) (domain.RRType, bool)
	FullHostname(block domain.ResourceBlock) (domain.Hostname, bool)
	SPFRecords(blocks []domain.ResourceBlock) []domain.ResourceBlock
	UniqueHostnames(blocks []domain.ResourceBlock) domain.HostnameSet
}

// FileLister returns the files under root whose names end with ext.
type FileLister func(root, ext string) ([]string, error)

// FileReader returns the full contents of one file.
type FileReader func(path string) ([]byte, error)
