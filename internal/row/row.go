// Package row defines the record types that flow through the capture
// pipeline and the on-disk formats of its intermediate artifacts.
package row

// Sender identifies which side of the conversation produced a row. The
// capture side only ever distinguishes the two; display names are applied
// by the cleaner from configuration.
const (
	SenderSelf  = "self"
	SenderOther = "other"
)

// RowRecord is one captured message row, exactly as extracted from the
// rendered view. Immutable after creation; owned by the emitter until its
// part is flushed.
type RowRecord struct {
	Y         float64  `json:"y"`
	Sender    string   `json:"sender"`
	RawText   string   `json:"raw_text"`
	MediaURLs []string `json:"media_urls"`
	TS        int64    `json:"ts"` // capture time, epoch milliseconds
}

// StitchedRow is a RowRecord after stitching, carrying provenance back to
// the part file it came from. Duplicates across batches are intentionally
// still present at this stage.
type StitchedRow struct {
	Sender     string   `json:"sender"`
	Content    string   `json:"content"`
	MediaURLs  []string `json:"media_urls"`
	SourceFile string   `json:"source_file"`
	Batch      string   `json:"batch"`
	Part       int      `json:"part"`
	Index      int      `json:"index"`
}

// CleanedMessage is one final conversation message after noise filtering,
// grouping and artifact dedup.
type CleanedMessage struct {
	Timestamp   string   `json:"timestamp,omitempty"`
	Sender      string   `json:"sender"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`

	// Provenance used by the artifact dedup pass; stripped before the
	// cleaned file is written.
	SourceBatch string `json:"_source_batch,omitempty"`
	SourcePart  int    `json:"_source_part,omitempty"`
	SourceIndex int    `json:"_source_index,omitempty"`
}
