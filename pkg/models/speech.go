package models

import (
	"time"

	"github.com/google/uuid"
)

// InputMethod определяет источник текста для синтеза
type InputMethod string

const (
	InputMethodText InputMethod = "text"
	InputMethodFile InputMethod = "file"
)

// ParseInputMethod разбирает значение из формы; всё, что не текст, считается загрузкой файла
func ParseInputMethod(s string) InputMethod {
	switch s {
	case "text", "Text Input", "":
		return InputMethodText
	default:
		return InputMethodFile
	}
}

// GenerationInput представляет один запрос пользователя на синтез и клонирование
type GenerationInput struct {
	Method         InputMethod `json:"input_method"`
	Text           string      `json:"text_input"`
	TextFilePath   string      `json:"text_filepath,omitempty"`
	Voice          string      `json:"voice"`
	LanguageCode   string      `json:"language_code"`
	ReferenceAudio string      `json:"ref_audio"`
}

// GenerationResult содержит пути к обоим сгенерированным файлам
type GenerationResult struct {
	TTSPath    string `json:"tts_path"`
	ClonedPath string `json:"cloned_path"`
}

// SynthesisRequest представляет запрос к облачному TTS
type SynthesisRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`         // Charon, Leda
	LanguageCode string `json:"language_code"` // id-ID, en-US
}

// SynthesisResult содержит аудио в MP3 и путь к временному файлу с теми же байтами
type SynthesisResult struct {
	Audio []byte `json:"-"`
	Path  string `json:"path"`
}

// CloningRequest представляет запрос к модели клонирования голоса
type CloningRequest struct {
	SourcePath      string `json:"source_path"`
	TargetVoicePath string `json:"target_voice_path"`
}

// CloningResult содержит путь к WAV файлу с клонированным голосом
type CloningResult struct {
	Path       string `json:"path"`
	SampleRate int    `json:"sample_rate"`
}

// ArtifactKind различает типы временных файлов
type ArtifactKind string

const (
	ArtifactSynthesis ArtifactKind = "synthesis"
	ArtifactCloned    ArtifactKind = "cloned"
	ArtifactUpload    ArtifactKind = "upload"
)

// Artifact представляет временный файл, запланированный к удалению
type Artifact struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Path      string       `json:"path" db:"path"`
	Kind      ArtifactKind `json:"kind" db:"kind"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	ExpiresAt time.Time    `json:"expires_at" db:"expires_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Voice описывает голос, доступный в облачном TTS
type Voice struct {
	Name                   string   `json:"name"`
	LanguageCodes          []string `json:"language_codes"`
	SSMLGender             string   `json:"ssml_gender"`
	NaturalSampleRateHertz int      `json:"natural_sample_rate_hertz"`
}
