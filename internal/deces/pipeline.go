// Package deces ingests the monthly civil-registry decedent archives.
package deces

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Source lists and downloads remote archive files.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, name string) (io.ReadCloser, error)
}

// Uploader is the object-storage write side.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) (string, error)
}

// FileLog tracks which archives have already been ingested.
type FileLog interface {
	ScrapedFileNames(ctx context.Context) (map[string]struct{}, error)
	RecordScrapedFile(ctx context.Context, fileName string) (bool, error)
}

// FileFailure records one archive that could not be processed.
type FileFailure struct {
	FileName string
	Err      error
}

type Pipeline struct {
	source   Source
	uploader Uploader
	files    FileLog
	log      *zap.Logger
}

func New(source Source, uploader Uploader, files FileLog, log *zap.Logger) *Pipeline {
	return &Pipeline{source: source, uploader: uploader, files: files, log: log}
}

var yearRe = regexp.MustCompile(`(\d{4})`)

// Run discovers archives not yet ingested and processes each one
// independently: a failure on one file is logged, added to the failure
// list, and does not abort its siblings.
func (p *Pipeline) Run(ctx context.Context) (processed []string, failures []FileFailure, err error) {
	names, err := p.source.List(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list remote archives")
	}
	known, err := p.files.ScrapedFileNames(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list ingested archives")
	}

	for _, name := range names {
		if _, done := known[name]; done {
			continue
		}
		if err := p.processOne(ctx, name); err != nil {
			p.log.Error("archive ingestion failed",
				zap.String("file", name),
				zap.Error(err))
			failures = append(failures, FileFailure{FileName: name, Err: err})
			continue
		}
		processed = append(processed, name)
		p.log.Info("archive ingested", zap.String("file", name))
	}
	return processed, failures, nil
}

func (p *Pipeline) processOne(ctx context.Context, name string) error {
	body, err := p.source.Download(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "download %s", name)
	}
	defer body.Close()

	tmp, err := extractToTemp(body)
	if err != nil {
		return errors.Wrapf(err, "extract %s", name)
	}
	// The extracted payload is removed even when the upload fails.
	defer os.Remove(tmp)

	payload, err := os.ReadFile(tmp)
	if err != nil {
		return errors.Wrapf(err, "read extracted %s", name)
	}

	uri, err := p.uploader.Upload(ctx, storageKey(name), payload)
	if err != nil {
		return errors.Wrapf(err, "upload %s", name)
	}

	claimed, err := p.files.RecordScrapedFile(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "record %s", name)
	}
	if !claimed {
		// A concurrent run claimed it first; the upload key is
		// deterministic so the duplicate write is harmless.
		p.log.Warn("archive already claimed by a concurrent run", zap.String("file", name))
		return nil
	}
	p.log.Debug("archive stored", zap.String("file", name), zap.String("uri", uri))
	return nil
}

func extractToTemp(r io.Reader) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", errors.Wrap(err, "open gzip")
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "deces-*.txt")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "decompress")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// storageKey builds the deterministic object key, e.g.
// deces/2024/deces-2024-m01.txt.
func storageKey(name string) string {
	year := "unknown"
	if m := yearRe.FindString(name); m != "" {
		year = m
	}
	return "deces/" + year + "/" + strings.TrimSuffix(name, ".gz")
}
