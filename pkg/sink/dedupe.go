package sink

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	errs "xscraper/pkg/errors"
)

// DedupeResult summarises a Dedupe pass
type DedupeResult struct {
	Kept    int
	Removed int
}

// Dedupe rewrites path keeping the first row for each Tweet ID. The new
// file replaces the old one by rename, so readers never see a partial file
func Dedupe(path string) (DedupeResult, error) {
	var res DedupeResult

	in, err := os.Open(path)
	if err != nil {
		return res, errs.NewFileIO("failed to open file", err)
	}
	defer in.Close()

	br := bufio.NewReader(in)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return res, errs.NewFileIO("failed to read header", err)
	}
	idIdx := -1
	for i, h := range header {
		if h == "Tweet ID" {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return res, errs.NewFileIO(`no "Tweet ID" column`, nil)
	}

	tempFile := path + ".tmp"
	out, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return res, errs.NewFileIO("failed to create temporary file", err)
	}

	bw := bufio.NewWriter(out)
	w := csv.NewWriter(bw)
	seen := make(map[string]struct{})

	copyErr := func() error {
		if err := w.Write(header); err != nil {
			return err
		}
		for {
			row, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", res.Kept+res.Removed+2, err)
			}
			if idIdx < len(row) {
				if _, dup := seen[row[idIdx]]; dup {
					res.Removed++
					continue
				}
				seen[row[idIdx]] = struct{}{}
			}
			if err := w.Write(row); err != nil {
				return err
			}
			res.Kept++
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return out.Sync()
	}()
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempFile)
		return DedupeResult{}, errs.NewFileIO("failed to write deduplicated file", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return DedupeResult{}, errs.NewFileIO("failed to close temporary file", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return DedupeResult{}, errs.NewFileIO("failed to replace file", err)
	}
	return res, nil
}
