package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FileEntity represents an uploaded document and its AI-derived metadata.
type FileEntity struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	FileType       string    `json:"file_type"`
	URL            string    `json:"url"`
	UploadedAt     Timestamp `json:"uploaded_at"`
	IsAnalyzed     bool      `json:"is_analyzed"`
	AITags         *string   `json:"ai_tags,omitempty"`
	Summary        *string   `json:"summary,omitempty"`
	OCRText        *string   `json:"ocr_text,omitempty"`
	VisionAnalysis *string   `json:"vision_analysis,omitempty"`
}

// Tags returns the comma-separated tag string, or "" when absent.
func (f *FileEntity) Tags() string {
	if f == nil || f.AITags == nil {
		return ""
	}
	return *f.AITags
}

// SummaryText returns the summary, or "" when absent.
func (f *FileEntity) SummaryText() string {
	if f == nil || f.Summary == nil {
		return ""
	}
	return *f.Summary
}

// ActivityLog is one entry of the user's upload/delete history.
type ActivityLog struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Route     string    `json:"route"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp accepts both RFC 3339 and the zone-less ISO form the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
