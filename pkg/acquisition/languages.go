package acquisition

// Language is one entry of the transcript language priority list.
// Code is sent to the transcript provider; an empty code means no constraint.
type Language struct {
	Code  string
	Label string
}

// DefaultLanguages is the order in which transcript languages are tried.
// The labels double as provenance labels.
var DefaultLanguages = []Language{
	{Code: "ko", Label: "한국어"},
	{Code: "en", Label: "영어"},
	{Code: "en-US", Label: "영어(미국)"},
	{Code: "en-GB", Label: "영어(영국)"},
	{Code: "ja", Label: "일본어"},
	{Code: "zh", Label: "중국어"},
	{Code: "zh-CN", Label: "중국어(간체)"},
	{Code: "zh-TW", Label: "중국어(번체)"},
	{Code: "es", Label: "스페인어"},
	{Code: "fr", Label: "프랑스어"},
	{Code: "de", Label: "독일어"},
	{Code: "ru", Label: "러시아어"},
	{Code: "pt", Label: "포르투갈어"},
	{Code: "it", Label: "이탈리아어"},
	{Code: "hi", Label: "힌디어"},
	{Code: "ar", Label: "아랍어"},
	{Code: "", Label: "자동 감지"},
}

// Provenance labels for the strategies that are not tied to a language.
const (
	ProvenanceUnconstrained = "기본 자막"
	ProvenancePlayerInfo    = "youtubei (기본 정보)"
	ProvenanceMetadata      = "영상 정보 기반"
	ProvenanceNone          = "자막 없음"
)

// IsPlaceholderProvenance reports whether a label marks a synthesized placeholder transcript.
func IsPlaceholderProvenance(label string) bool {
	return label == ProvenanceMetadata || label == ProvenanceNone
}
