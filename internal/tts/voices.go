package tts

import (
	"fmt"
	"slices"
)

// Пресеты голосов и языков, доступные в интерфейсе
var (
	Voices        = []string{"Charon", "Leda"}
	LanguageCodes = []string{"id-ID", "en-US"}
)

// Значения по умолчанию, если голос и язык не заданы в окружении
const (
	DefaultVoice    = "Charon"
	DefaultLanguage = "id-ID"
)

const voiceFamily = "Chirp3-HD"

// VoiceName собирает полный идентификатор голоса, например "en-US-Chirp3-HD-Leda"
func VoiceName(languageCode, voice string) string {
	return fmt.Sprintf("%s-%s-%s", languageCode, voiceFamily, voice)
}

// IsKnownVoice проверяет, входит ли голос в список пресетов
func IsKnownVoice(voice string) bool {
	return slices.Contains(Voices, voice)
}

// IsKnownLanguage проверяет, входит ли язык в список пресетов
func IsKnownLanguage(code string) bool {
	return slices.Contains(LanguageCodes, code)
}
