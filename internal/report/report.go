// Package report inspects a raw capture directory and summarizes what made
// it to disk: which parts each batch holds, where the numbering has holes,
// and how much content repeats. A missing part is a coverage gap to be
// reported, never a reason to abort the pipeline.
package report

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/minhvu/chatrake/internal/row"
	"github.com/minhvu/chatrake/internal/stitch"
)

// BatchCoverage is the part inventory of one batch directory.
type BatchCoverage struct {
	Batch   string
	MinPart int
	MaxPart int
	Parts   int
	Rows    int
	// Missing lists part numbers absent between MinPart and MaxPart.
	Missing []int
}

// Report is the full coverage summary for a raw directory.
type Report struct {
	Batches    []BatchCoverage
	TotalParts int
	TotalRows  int
	Warnings   []string
}

// Coverage scans rawDir for part files and builds the inventory.
func Coverage(rawDir string) (Report, error) {
	type batchAcc struct {
		parts map[int]int // part -> row count, -1 when unreadable
	}
	batches := make(map[string]*batchAcc)
	var warnings []string

	err := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(row.PartFilePattern, d.Name())
		if !ok {
			return nil
		}
		batch := filepath.Base(filepath.Dir(path))
		acc := batches[batch]
		if acc == nil {
			acc = &batchAcc{parts: make(map[int]int)}
			batches[batch] = acc
		}
		part := stitch.PartNumber(d.Name())
		rows, rerr := row.ReadPartFile(path)
		if rerr != nil {
			warnings = append(warnings, rerr.Error())
			acc.parts[part] = -1
			return nil
		}
		acc.parts[part] = len(rows)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	rep := Report{Warnings: warnings}
	names := make([]string, 0, len(batches))
	for name := range batches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		acc := batches[name]
		cov := BatchCoverage{Batch: name}
		first := true
		for part, rows := range acc.parts {
			if first {
				cov.MinPart, cov.MaxPart = part, part
				first = false
			}
			if part < cov.MinPart {
				cov.MinPart = part
			}
			if part > cov.MaxPart {
				cov.MaxPart = part
			}
			cov.Parts++
			if rows > 0 {
				cov.Rows += rows
			}
		}
		for p := cov.MinPart; p <= cov.MaxPart; p++ {
			if _, ok := acc.parts[p]; !ok {
				cov.Missing = append(cov.Missing, p)
			}
		}
		rep.TotalParts += cov.Parts
		rep.TotalRows += cov.Rows
		rep.Batches = append(rep.Batches, cov)
	}
	return rep, nil
}

// DuplicateGroup is one repeated (sender, content) pair in a stitched set.
type DuplicateGroup struct {
	Sender  string
	Content string
	Count   int
	Batches []string // distinct batches the repeats came from, sorted
}

// Duplicates finds stitched rows whose (sender, content) repeats. Repeats
// confined to one batch are likely scroll-overlap artifacts; repeats across
// batches are likely genuine. The cleaner makes the authoritative call —
// this is diagnostics.
func Duplicates(rows []row.StitchedRow) []DuplicateGroup {
	type key struct{ sender, content string }
	counts := make(map[key]int)
	batchSets := make(map[key]map[string]struct{})
	for _, r := range rows {
		k := key{sender: r.Sender, content: r.Content}
		counts[k]++
		if batchSets[k] == nil {
			batchSets[k] = make(map[string]struct{})
		}
		batchSets[k][r.Batch] = struct{}{}
	}

	var groups []DuplicateGroup
	for k, n := range counts {
		if n < 2 {
			continue
		}
		var bs []string
		for b := range batchSets[k] {
			bs = append(bs, b)
		}
		sort.Strings(bs)
		groups = append(groups, DuplicateGroup{
			Sender:  k.sender,
			Content: k.content,
			Count:   n,
			Batches: bs,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Content < groups[j].Content
	})
	return groups
}
