// Package auditor reconciles mail-capable hostnames against SPF-protected
// hostnames across a tree of configuration files.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
	"github.com/haukened/tf-spf-audit/internal/audit/repos/tffiles"
)

var (
	mailSelector = domain.Selector(domain.MailCapableTypes...)
	txtSelector  = domain.Selector(domain.RRTypeTXT)
)

// Options configures an Auditor.
type Options struct {
	Parser RecordParser

	// Lister defaults to tffiles.ListConfigFiles.
	Lister FileLister

	// ReadFile defaults to os.ReadFile.
	ReadFile FileReader

	// Extension defaults to tffiles.DefaultExtension.
	Extension string

	// Workers bounds concurrent file scans. Values below 1 mean 1.
	Workers int

	// OnFile, when set, is called once per scanned file.
	OnFile func(path string)

	Logger log.Logger
}

// Auditor scans directory trees for hosts that can handle mail but have no
// SPF policy.
type Auditor struct {
	parser    RecordParser
	lister    FileLister
	readFile  FileReader
	extension string
	workers   int
	onFile    func(string)
	logger    log.Logger
}

// Result summarises one scan.
type Result struct {
	Root  string
	Files int

	// MailRecords counts A and MX blocks; TXTRecords counts TXT blocks, of
	// which SPFRecords carry an SPF policy.
	MailRecords int
	TXTRecords  int
	SPFRecords  int

	// Unnamed counts mail-capable or SPF blocks without a derivable hostname.
	Unnamed int

	// RecordTypes counts every record block by type; OtherTypes counts
	// blocks whose type is not a known RRType.
	RecordTypes map[domain.RRType]int
	OtherTypes  int

	MailCapable  domain.HostnameSet
	SPFProtected domain.HostnameSet

	// Violations is MailCapable minus SPFProtected, sorted, without the
	// absent-hostname marker.
	Violations []domain.Hostname
}

// New returns an Auditor. A Parser is required.
func New(opts Options) (*Auditor, error) {
	if opts.Parser == nil {
		return nil, errors.New("auditor: parser is required")
	}
	a := &Auditor{
		parser:    opts.Parser,
		lister:    opts.Lister,
		readFile:  opts.ReadFile,
		extension: opts.Extension,
		workers:   opts.Workers,
		onFile:    opts.OnFile,
		logger:    log.OrNoop(opts.Logger),
	}
	if a.lister == nil {
		a.lister = tffiles.ListConfigFiles
	}
	if a.readFile == nil {
		a.readFile = os.ReadFile
	}
	if a.extension == "" {
		a.extension = tffiles.DefaultExtension
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a, nil
}

// ListFiles returns the files a scan of root would read.
func (a *Auditor) ListFiles(root string) ([]string, error) {
	return a.lister(root, a.extension)
}

// TypeCounts returns RecordTypes keyed by type name, with unknown types
// under "OTHER".
func (r *Result) TypeCounts() map[string]int {
	out := make(map[string]int, len(r.RecordTypes)+1)
	for t, n := range r.RecordTypes {
		out[t.String()] = n
	}
	if r.OtherTypes > 0 {
		out["OTHER"] = r.OtherTypes
	}
	return out
}

// HostnamesWithoutSPF returns every hostname under root that has an A or MX
// record but no SPF TXT record.
func (a *Auditor) HostnamesWithoutSPF(ctx context.Context, root string) ([]domain.Hostname, error) {
	res, err := a.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	return res.Violations, nil
}

// fileResult holds what one file contributes to the totals.
type fileResult struct {
	mail        domain.HostnameSet
	spf         domain.HostnameSet
	mailRecords int
	txtRecords  int
	spfRecords  int
	unnamed     int
	types       map[domain.RRType]int
	otherTypes  int
}

// Scan reads every matching file under root and reconciles the two hostname
// sets. Any listing or read failure aborts the scan.
func (a *Auditor) Scan(ctx context.Context, root string) (*Result, error) {
	files, err := a.ListFiles(root)
	if err != nil {
		return nil, err
	}
	return a.ScanFiles(ctx, root, files)
}

// ScanFiles is Scan over an already listed set of files. root only labels
// the result and log lines.
func (a *Auditor) ScanFiles(ctx context.Context, root string, files []string) (*Result, error) {
	a.logger.Debug(map[string]any{"root": root, "files": len(files), "workers": a.workers}, "Scanning configuration files")

	res := &Result{
		Root:         root,
		Files:        len(files),
		MailCapable:  domain.NewHostnameSet(),
		SPFProtected: domain.NewHostnameSet(),
		RecordTypes:  make(map[domain.RRType]int),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := a.scanFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			res.MailCapable.Merge(fr.mail)
			res.SPFProtected.Merge(fr.spf)
			res.MailRecords += fr.mailRecords
			res.TXTRecords += fr.txtRecords
			res.SPFRecords += fr.spfRecords
			res.Unnamed += fr.unnamed
			res.OtherTypes += fr.otherTypes
			for t, n := range fr.types {
				res.RecordTypes[t] += n
			}
			mu.Unlock()
			if a.onFile != nil {
				a.onFile(path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	missing := res.MailCapable.Difference(res.SPFProtected)
	missing.Remove(domain.AbsentHostname)
	if res.Unnamed > 0 {
		a.logger.Warn(map[string]any{"root": root, "unnamed_blocks": res.Unnamed}, "Record blocks without name or domain were skipped")
	}
	res.Violations = missing.Sorted()

	a.logger.Info(map[string]any{
		"root":          root,
		"files":         res.Files,
		"mail_capable":  res.MailCapable.Len(),
		"spf_protected": res.SPFProtected.Len(),
		"violations":    len(res.Violations),
		"record_types":  res.TypeCounts(),
	}, "Scan complete")
	return res, nil
}

// scanFile extracts both hostname sets from a single file.
func (a *Auditor) scanFile(path string) (*fileResult, error) {
	raw, err := a.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(raw)

	allBlocks, err := a.parser.FindRecords(text, domain.AnySelector)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	mailBlocks, err := a.parser.FindRecords(text, mailSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	txtBlocks, err := a.parser.FindRecords(text, txtSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	spfBlocks := a.parser.SPFRecords(txtBlocks)

	fr := &fileResult{
		mail:        a.parser.UniqueHostnames(mailBlocks),
		spf:         a.parser.UniqueHostnames(spfBlocks),
		mailRecords: len(mailBlocks),
		txtRecords:  len(txtBlocks),
		spfRecords:  len(spfBlocks),
		types:       make(map[domain.RRType]int),
	}
	for _, b := range allBlocks {
		if t, ok := a.parser.RecordType(b); ok {
			fr.types[t]++
		} else {
			fr.otherTypes++
		}
	}
	for _, blocks := range [][]domain.ResourceBlock{mailBlocks, spfBlocks} {
		for _, b := range blocks {
			if _, ok := a.parser.FullHostname(b); !ok {
				fr.unnamed++
			}
		}
	}

	a.logger.Debug(map[string]any{
		"file":         path,
		"mail_records": fr.mailRecords,
		"txt_records":  fr.txtRecords,
		"spf_records":  fr.spfRecords,
	}, "Scanned file")
	return fr, nil
}
