package domain

import "time"

// VideoMetadata is what a metadata provider could learn about a video.
type VideoMetadata struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
}

// Empty reports whether neither title nor description is known.
func (m *VideoMetadata) Empty() bool {
	return m == nil || (m.Title == "" && m.Description == "")
}

// TranscriptSegment is one timed caption line.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// CaptionTrack describes one caption track offered by the player.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
	Kind         string `json:"kind,omitempty"` // "asr" for auto-generated
}

// TranscriptArchive is a real transcript cached in MongoDB, keyed by video id.
//
// Placeholder transcripts are never archived.
type TranscriptArchive struct {
	VideoID     string    `bson:"video_id" json:"video_id"`
	Title       string    `bson:"title,omitempty" json:"title,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Transcript  string    `bson:"transcript" json:"transcript"`
	Provenance  string    `bson:"provenance" json:"provenance"`
	FetchedAt   time.Time `bson:"fetched_at" json:"fetched_at"`
}
