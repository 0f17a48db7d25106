// Package stitch concatenates emitted part files into one ordered row
// sequence with provenance. It never deduplicates: a wrong merge here would
// discard history unrecoverably, while overlap that survives is removed by
// the cleaner with batch context in hand. Part numbers rise as capture
// walks backward through history, so ascending part order within a batch is
// descending chronological recency.
package stitch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/minhvu/chatrake/internal/row"
)

var numberRe = regexp.MustCompile(`(\d+)`)

// partFile is one discovered part file with its sort key.
type partFile struct {
	path  string
	batch string // parent directory name
	bnum  int
	part  int
}

// Result is the stitcher's output: rows in deterministic order plus
// non-fatal issues encountered during discovery.
type Result struct {
	Rows     []row.StitchedRow
	Warnings []string
}

// Stitch discovers every part file under rawDir and concatenates them in
// (numeric batch, numeric part) order, preserving intra-part row order.
// Ordering is a pure function of the discovered set: two runs over the same
// files yield identical output. Unreadable files are reported as warnings,
// never an abort.
func Stitch(rawDir string) (Result, error) {
	parts, err := discover(rawDir)
	if err != nil {
		return Result{}, err
	}
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("no %s files under %s", row.PartFilePattern, rawDir)
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].bnum != parts[j].bnum {
			return parts[i].bnum < parts[j].bnum
		}
		if parts[i].part != parts[j].part {
			return parts[i].part < parts[j].part
		}
		return parts[i].path < parts[j].path
	})

	var res Result
	for _, pf := range parts {
		rows, err := row.ReadPartFile(pf.path)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		rel, rerr := filepath.Rel(rawDir, pf.path)
		if rerr != nil {
			rel = pf.path
		}
		for i, r := range rows {
			res.Rows = append(res.Rows, row.StitchedRow{
				Sender:     r.Sender,
				Content:    r.RawText,
				MediaURLs:  r.MediaURLs,
				SourceFile: rel,
				Batch:      pf.batch,
				Part:       pf.part,
				Index:      i,
			})
		}
	}
	return res, nil
}

// discover walks rawDir for part files. Parts directly under rawDir belong
// to a batch named after rawDir itself.
func discover(rawDir string) ([]partFile, error) {
	var parts []partFile
	err := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(row.PartFilePattern, d.Name())
		if !ok {
			return nil
		}
		batch := filepath.Base(filepath.Dir(path))
		parts = append(parts, partFile{
			path:  path,
			batch: batch,
			bnum:  firstNumber(batch),
			part:  PartNumber(d.Name()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", rawDir, err)
	}
	return parts, nil
}

// PartNumber extracts the numeric part from a part file name, handling
// copy-suffixed names like "rows_part_12 (1).json" by taking the first
// number after the pattern prefix.
func PartNumber(name string) int {
	base := name[:len(name)-len(filepath.Ext(name))]
	m := numberRe.FindString(base)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// firstNumber extracts the first integer in s, zero if none. Batch
// directories are named batch<N>.
func firstNumber(s string) int {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
