package acquisition

import (
	"fmt"

	"video-digest/pkg/domain"
)

// maxPlaceholderDescription caps how much of a description goes into a placeholder.
const maxPlaceholderDescription = 2000

// Placeholder synthesizes the transcript used when every acquisition attempt failed.
// It returns the text and its provenance label; the text is never empty.
func Placeholder(videoID string, meta *domain.VideoMetadata) (string, string) {
	if meta.Empty() {
		return fmt.Sprintf("이 영상은 \"%s\" ID를 가진 유튜브 영상입니다. 자막과 영상 정보를 모두 추출할 수 없어서 기본적인 분석만 가능합니다.", videoID), ProvenanceNone
	}

	title := meta.Title
	if title == "" {
		title = "제목 없음"
	}
	description := truncateRunes(meta.Description, maxPlaceholderDescription)
	if description == "" {
		description = "설명 없음"
	}

	text := fmt.Sprintf("이 영상의 제목: \"%s\"\n\n영상 설명:\n%s\n\n자막을 추출할 수 없어서 제목과 설명을 바탕으로 분석을 진행합니다.", title, description)
	return text, ProvenanceMetadata
}

// playerInfoTranscript is the stand-in transcript built from innertube basic info.
func playerInfoTranscript(title, description string) string {
	return fmt.Sprintf("영상 제목: %s\n영상 설명: %s", title, description)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
