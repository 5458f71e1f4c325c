package domain

import "time"

// ContentRecord is one analyzed video, stored in the analysis table.
// UserID is nil for records that have no owner; unauthenticated analyses are never stored.
type ContentRecord struct {
	ID               string    `json:"id"`
	YouTubeURL       string    `json:"youtube_url"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	UserDescription  *string   `json:"user_description,omitempty"`
	VideoID          string    `json:"video_id,omitempty"`
	ThumbnailURL     string    `json:"thumbnail_url,omitempty"`
	Transcript       string    `json:"transcript,omitempty"`
	TranscriptSource string    `json:"transcript_source,omitempty"`
	AISummary        string    `json:"ai_summary,omitempty"`
	KeyPoints        []string  `json:"key_points"`
	Category         string    `json:"category,omitempty"`
	Sentiment        string    `json:"sentiment,omitempty"`
	Difficulty       string    `json:"difficulty,omitempty"`
	DurationEstimate string    `json:"duration_estimate,omitempty"`
	AITags           []string  `json:"ai_tags"`
	UserID           *string   `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Tags is filled by reads that join analysis_tags; it is not a column.
	Tags []Tag `json:"tags,omitempty"`
}

// OwnedBy reports whether the record belongs to userID.
func (r *ContentRecord) OwnedBy(userID string) bool {
	return r.UserID != nil && *r.UserID == userID
}

// RecordUpdate carries the editable fields of a ContentRecord. Nil fields are left unchanged.
type RecordUpdate struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	UserDescription *string `json:"user_description,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u RecordUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.UserDescription == nil
}

// RecordQuery selects a page of one user's records, optionally narrowed to a tag name.
type RecordQuery struct {
	UserID  string
	TagName string
	Limit   int // 0 means no limit
	Offset  int
}

// Tag is a user-scoped label. Names are unique per user and case-sensitive.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ContentTagLink associates a record with a tag.
type ContentTagLink struct {
	AnalysisID string    `json:"analysis_id"`
	TagID      string    `json:"tag_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryEntry records that a user created or viewed a record.
type HistoryEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AnalysisID string    `json:"analysis_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Record is populated by history reads that join the analysis row.
	Record *ContentRecord `json:"analysis,omitempty"`
}
