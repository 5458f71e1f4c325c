package summarizer

import (
	"fmt"
	"strings"
)

// Mode selects which prompt template is used.
type Mode int

const (
	// ModeFull summarizes real transcript content.
	ModeFull Mode = iota
	// ModePlaceholder asks only for an acknowledgement that no content was available.
	ModePlaceholder
	// ModeStandIn summarizes a title and description in place of captions.
	ModeStandIn
)

func (m Mode) String() string {
	switch m {
	case ModePlaceholder:
		return "placeholder"
	case ModeStandIn:
		return "stand-in"
	}
	return "full"
}

const placeholderTemplate = `다음은 유튜브 영상 ID입니다: %s

자막을 추출할 수 없는 영상이므로, 영상 ID와 일반적인 유튜브 영상 패턴을 바탕으로 기본적인 정보를 생성해주세요:

응답 형식:
{
  "title": "유튜브 영상 (자막 없음)",
  "summary": "이 영상은 자막을 추출할 수 없어서 상세한 분석이 어렵습니다. 영상을 직접 시청하시기를 권장합니다.\n\n✨ 한줄 요약: 자막이 제공되지 않는 유튜브 영상입니다.",
  "keyPoints": [
    "자막이 제공되지 않는 영상입니다",
    "직접 시청을 통해 내용을 확인해주세요",
    "영상의 제목과 설명을 참고하시기 바랍니다"
  ],
  "category": "일반",
  "sentiment": "중립적",
  "difficulty": "알 수 없음",
  "duration_estimate": "알 수 없음",
  "tags": ["유튜브", "영상", "자막없음"]
}

반드시 유효한 JSON 형식으로만 응답해주세요.
`

const fullTemplate = `다음은 유튜브 영상의 자막입니다. 자막의 흐름을 토대로 핵심 내용을 요약하여 아래 형식으로 응답해주세요:

자막 내용:
%s

요약 시 다음 사항을 준수하세요:
1. 유튜브 자막을 바탕으로 핵심 요약을 생성해 주세요

응답 형식:
{
  "title": "영상의 제목을 추론하여 작성",
  "summary": "자막의 흐름을 따라 영상의 핵심 내용을 체계적으로 요약 (도입부 → 전개 → 결론 순서로 정리)\n\n✨ 한줄 요약: 영상의 핵심 메시지를 한 문장으로 압축",
  "keyPoints": [
    "영상에서 강조한 주요 포인트 1",
    "영상에서 강조한 주요 포인트 2",
    "영상에서 강조한 주요 포인트 3"
  ],
  "category": "영상의 카테고리 (예: 교육, 기술, 엔터테인먼트, 뉴스, 뷰티, 건강, 생활정보 등)",
  "sentiment": "영상의 전반적인 감정 (긍정적, 부정적, 중립적)",
  "difficulty": "내용의 난이도 (초급, 중급, 고급)",
  "duration_estimate": "예상 시청 시간 (분 단위)",
  "tags": ["관련", "태그", "목록"]
}

반드시 유효한 JSON 형식으로만 응답해주세요.
`

const standInTemplate = `다음은 자막 대신 가져온 유튜브 영상의 제목과 설명입니다. 실제 자막이 아니므로 제목과 설명에서 확인할 수 있는 내용만 요약하고, 영상 내용을 추측하지 마세요.

영상 정보:
%s

응답 형식:
{
  "title": "영상의 제목",
  "summary": "제목과 설명을 바탕으로 한 영상 소개 (자막 없이 작성된 요약임을 밝혀주세요)\n\n✨ 한줄 요약: 영상의 주제를 한 문장으로 압축",
  "keyPoints": [
    "설명에서 확인되는 주요 포인트 1",
    "설명에서 확인되는 주요 포인트 2"
  ],
  "category": "영상의 카테고리 (예: 교육, 기술, 엔터테인먼트, 뉴스, 뷰티, 건강, 생활정보 등)",
  "sentiment": "설명의 전반적인 감정 (긍정적, 부정적, 중립적)",
  "difficulty": "내용의 난이도 (초급, 중급, 고급, 알 수 없음)",
  "duration_estimate": "알 수 없음",
  "tags": ["관련", "태그", "목록"]
}

반드시 유효한 JSON 형식으로만 응답해주세요.
`

// BuildPrompt renders the prompt for mode.
func BuildPrompt(mode Mode, videoID, transcript string) string {
	switch mode {
	case ModePlaceholder:
		return fmt.Sprintf(placeholderTemplate, videoID)
	case ModeStandIn:
		return fmt.Sprintf(standInTemplate, strings.TrimSpace(transcript))
	}
	return fmt.Sprintf(fullTemplate, strings.TrimSpace(transcript))
}
