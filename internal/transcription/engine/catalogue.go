package engine

import "sort"

// ModelInfo describes an available model for a backend.
type ModelInfo struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Parameters   string `json:"parameters,omitempty"`
	RequiredVRAM string `json:"required_vram,omitempty"`
	EnglishOnly  bool   `json:"english_only"`
	IsDefault    bool   `json:"is_default,omitempty"`
}

// DefaultModel is the whisper size used when none is configured.
const DefaultModel = "base"

var whisperModels = []ModelInfo{
	{ID: "tiny", DisplayName: "Whisper Tiny", Parameters: "39M", RequiredVRAM: "~1 GB"},
	{ID: "base", DisplayName: "Whisper Base", Parameters: "74M", RequiredVRAM: "~1 GB", IsDefault: true},
	{ID: "small", DisplayName: "Whisper Small", Parameters: "244M", RequiredVRAM: "~2 GB"},
	{ID: "medium", DisplayName: "Whisper Medium", Parameters: "769M", RequiredVRAM: "~5 GB"},
	{ID: "large", DisplayName: "Whisper Large", Parameters: "1550M", RequiredVRAM: "~10 GB"},
	{ID: "tiny.en", DisplayName: "Whisper Tiny (English)", Parameters: "39M", RequiredVRAM: "~1 GB", EnglishOnly: true},
	{ID: "base.en", DisplayName: "Whisper Base (English)", Parameters: "74M", RequiredVRAM: "~1 GB", EnglishOnly: true},
	{ID: "small.en", DisplayName: "Whisper Small (English)", Parameters: "244M", RequiredVRAM: "~2 GB", EnglishOnly: true},
	{ID: "medium.en", DisplayName: "Whisper Medium (English)", Parameters: "769M", RequiredVRAM: "~5 GB", EnglishOnly: true},
}

// WhisperModels returns the local whisper model catalogue. When englishOnly
// is set only the .en variants are returned.
func WhisperModels(englishOnly bool) []ModelInfo {
	out := make([]ModelInfo, 0, len(whisperModels))
	for _, m := range whisperModels {
		if englishOnly && !m.EnglishOnly {
			continue
		}
		out = append(out, m)
	}
	return out
}

// LookupModel returns catalogue information for a whisper model.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range whisperModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

var languages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ar": "Arabic",
	"hi": "Hindi",
	"ko": "Korean",
	"tr": "Turkish",
	"pl": "Polish",
	"ca": "Catalan",
	"cs": "Czech",
	"da": "Danish",
	"el": "Greek",
	"fi": "Finnish",
	"he": "Hebrew",
	"hu": "Hungarian",
	"id": "Indonesian",
	"no": "Norwegian",
	"ro": "Romanian",
	"sv": "Swedish",
	"th": "Thai",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
}

// Language is a supported transcription language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages returns the supported languages ordered by code.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for code, name := range languages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LanguageName returns the display name of a language code.
func LanguageName(code string) (string, bool) {
	name, ok := languages[code]
	return name, ok
}
