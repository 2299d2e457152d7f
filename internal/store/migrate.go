package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tixtracker/tix/internal/model"
)

// document is the current on-disk shape of a JSON task file.
type document struct {
	NextID int64        `json:"next_id"`
	Tasks  []model.Task `json:"tasks"`
}

// taskRecord is the loose decoding target for a persisted task. Every
// field is optional here; normalizeTask turns a record into a total
// model.Task with explicit defaults. All schema tolerance lives in this
// file rather than being scattered across call sites.
type taskRecord struct {
	ID          *int64   `json:"id"`
	Text        string   `json:"text"`
	Priority    string   `json:"priority"`
	Completed   bool     `json:"completed"`
	CreatedAt   string   `json:"created_at"`
	CompletedAt *string  `json:"completed_at"`
	Tags        []string `json:"tags"`
	Attachments []string `json:"attachments"`
	Links       []string `json:"links"`
	ParentID    *int64   `json:"parent_id"`
	Subtasks    []int64  `json:"subtasks"`
	Notes       string   `json:"notes"`
	IsGlobal    bool     `json:"is_global"`
}

// decodeDocument parses a raw task file in either shape. It reports
// whether the document was a legacy bare array and therefore needs to
// be rewritten in current shape. Malformed input returns an error; the
// caller heals it to an empty store.
func decodeDocument(raw []byte) (document, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return document{}, false, fmt.Errorf("empty document")
	}

	if trimmed[0] == '[' {
		doc, err := upgradeLegacyArray(trimmed)
		return doc, err == nil, err
	}

	var loose struct {
		NextID *int64        `json:"next_id"`
		Tasks  *[]taskRecord `json:"tasks"`
	}
	if err := json.Unmarshal(trimmed, &loose); err != nil {
		return document{}, false, fmt.Errorf("parsing task document: %w", err)
	}
	if loose.NextID == nil || loose.Tasks == nil {
		return document{}, false, fmt.Errorf("task document missing next_id or tasks")
	}

	doc := document{NextID: *loose.NextID}
	for _, rec := range *loose.Tasks {
		doc.Tasks = append(doc.Tasks, normalizeTask(rec))
	}
	return doc, false, nil
}

// upgradeLegacyArray converts a legacy bare-array document. Entries
// that are not objects are skipped. Entries without a valid positive
// ID get a synthetic ID equal to their 1-based position, and next_id
// becomes the maximum ID plus one. The upgrade is idempotent.
func upgradeLegacyArray(raw []byte) (document, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return document{}, fmt.Errorf("parsing legacy task array: %w", err)
	}

	var doc document
	var maxID int64
	for i, entry := range entries {
		trimmed := bytes.TrimSpace(entry)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var rec taskRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return document{}, fmt.Errorf("parsing legacy task entry %d: %w", i+1, err)
		}
		task := normalizeTask(rec)
		if task.ID <= 0 {
			task.ID = int64(i + 1)
		}
		if task.ID > maxID {
			maxID = task.ID
		}
		doc.Tasks = append(doc.Tasks, task)
	}

	doc.NextID = maxID + 1
	return doc, nil
}

// normalizeTask converts a loose record into a total Task: priority is
// normalized, timestamps parsed tolerantly, and the completed_at <->
// completed invariant restored. A completed task missing its timestamp
// inherits created_at so the result stays deterministic and the
// upgrade idempotent.
func normalizeTask(rec taskRecord) model.Task {
	task := model.Task{
		Text:        rec.Text,
		Priority:    model.ParsePriority(rec.Priority),
		Completed:   rec.Completed,
		Tags:        dedupe(rec.Tags),
		Attachments: rec.Attachments,
		Links:       rec.Links,
		ParentID:    rec.ParentID,
		Subtasks:    rec.Subtasks,
		Notes:       rec.Notes,
		IsGlobal:    rec.IsGlobal,
	}
	if rec.ID != nil && *rec.ID > 0 {
		task.ID = *rec.ID
	}
	if ts := parseTimestamp(rec.CreatedAt); ts != nil {
		task.CreatedAt = *ts
	}
	if rec.Completed {
		if rec.CompletedAt != nil {
			task.CompletedAt = parseTimestamp(*rec.CompletedAt)
		}
		if task.CompletedAt == nil {
			done := task.CreatedAt
			task.CompletedAt = &done
		}
	}
	if task.ParentID != nil && *task.ParentID == task.ID {
		task.ParentID = nil
	}
	return task
}

// timestampLayouts accepts RFC 3339 plus the zone-less ISO-8601 forms
// older writers produced.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

// dedupe collapses duplicate tags, preserving first-seen order.
func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := tags[:0:0]
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// encodeDocument renders a document in the current on-disk shape.
func encodeDocument(doc document) ([]byte, error) {
	if doc.Tasks == nil {
		doc.Tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding task document: %w", err)
	}
	return data, nil
}
