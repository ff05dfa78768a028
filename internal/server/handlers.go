package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tts-vc/internal/tts"
	"tts-vc/pkg/models"
)

// Раздаются только результаты генерации, загрузки пользователей недоступны
var servedPatterns = []string{"tts-*.mp3", "vc-*.wav"}

var errUnknownPreset = errors.New("неизвестный голос или язык")

type synthesizeResponse struct {
	TTSURL          *string `json:"tts_url"`
	ClonedURL       *string `json:"cloned_url"`
	TTSPath         *string `json:"tts_path"`
	ClonedPath      *string `json:"cloned_path"`
	TTSPublicURL    *string `json:"tts_public_url"`
	ClonedPublicURL *string `json:"cloned_public_url"`
}

type voicesResponse struct {
	LanguageCode string         `json:"language_code"`
	Voices       []models.Voice `json:"voices"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type pageData struct {
	Voices          []string
	Languages       []string
	DefaultVoice    string
	DefaultLanguage string
	TTLMinutes      int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Voices:          tts.Voices,
		Languages:       tts.LanguageCodes,
		DefaultVoice:    s.opts.DefaultVoice,
		DefaultLanguage: s.opts.DefaultLanguage,
		TTLMinutes:      int(s.opts.TTL.Minutes()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("ошибка рендера страницы", zap.Error(err))
	}
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, err := s.buildInput(r)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errUnknownPreset) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	// Разрыв соединения прерывает генерацию. Таймауты вызовов задаются
	// TTS_TIMEOUT_SECONDS и VC_TIMEOUT_SECONDS, 0 отключает ограничение.
	result, err := s.pipeline.SynthesizeSpeech(r.Context(), in)
	if err != nil {
		s.logger.Error("❌ ошибка генерации", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.buildResponse(r, result))
}

// buildInput собирает запрос из формы и сохраняет загруженные файлы в каталог артефактов
func (s *Server) buildInput(r *http.Request) (models.GenerationInput, error) {
	in := models.GenerationInput{
		Method:       models.ParseInputMethod(r.FormValue("input_method")),
		Text:         r.FormValue("text_input"),
		Voice:        valueOr(r.FormValue("voice"), s.opts.DefaultVoice),
		LanguageCode: valueOr(r.FormValue("language_code"), s.opts.DefaultLanguage),
	}

	if !tts.IsKnownVoice(in.Voice) || !tts.IsKnownLanguage(in.LanguageCode) {
		return in, fmt.Errorf("%w: %s / %s", errUnknownPreset, in.Voice, in.LanguageCode)
	}

	if in.Method == models.InputMethodFile {
		path, err := s.saveUpload(r, "text_file", "text-*.txt")
		if err != nil {
			return in, err
		}
		in.TextFilePath = path
	}

	ref, err := s.saveUpload(r, "ref_audio", "ref-*"+uploadExt(r, "ref_audio"))
	if err != nil {
		return in, err
	}
	in.ReferenceAudio = valueOr(ref, s.opts.DefaultReference)

	return in, nil
}

// saveUpload копирует файл из поля формы во временный файл.
// Отсутствующее поле не является ошибкой: возвращается пустой путь.
func (s *Server) saveUpload(r *http.Request, field, pattern string) (string, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения поля %s: %w", field, err)
	}
	defer file.Close()

	if err := os.MkdirAll(s.opts.Dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории: %w", err)
	}

	out, err := os.CreateTemp(s.opts.Dir, pattern)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("ошибка сохранения загрузки: %w", err)
	}

	s.cleanup.ScheduleKind(out.Name(), models.ArtifactUpload, s.opts.TTL)
	return out.Name(), nil
}

func (s *Server) buildResponse(r *http.Request, result *models.GenerationResult) synthesizeResponse {
	var resp synthesizeResponse
	if result == nil {
		return resp
	}

	resp.TTSPath = &result.TTSPath
	resp.ClonedPath = &result.ClonedPath
	resp.TTSURL = ptr("/files/" + filepath.Base(result.TTSPath))
	resp.ClonedURL = ptr("/files/" + filepath.Base(result.ClonedPath))

	if s.publisher != nil {
		resp.TTSPublicURL = s.publish(r, result.TTSPath, "audio/mpeg")
		resp.ClonedPublicURL = s.publish(r, result.ClonedPath, "audio/wav")
	}
	return resp
}

// publish не прерывает ответ при ошибке: локальные файлы остаются доступны
func (s *Server) publish(r *http.Request, path, contentType string) *string {
	url, err := s.publisher.Publish(r.Context(), path, contentType)
	if err != nil {
		s.logger.Warn("⚠️ не удалось опубликовать файл", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &url
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	languageCode := valueOr(r.URL.Query().Get("language_code"), s.opts.DefaultLanguage)
	if !tts.IsKnownLanguage(languageCode) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported language_code: " + languageCode})
		return
	}

	voices, err := s.voices.ListVoices(r.Context(), languageCode)
	if err != nil {
		s.logger.Error("ошибка получения списка голосов", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	if r.URL.Query().Get("all") != "true" {
		voices = presetsOnly(voices)
	}

	writeJSON(w, http.StatusOK, voicesResponse{LanguageCode: languageCode, Voices: voices})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || !isServed(name) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err != nil {
		// Файл мог быть уже удален по истечении срока хранения
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}

func presetsOnly(voices []models.Voice) []models.Voice {
	filtered := make([]models.Voice, 0, len(voices))
	for _, v := range voices {
		short := v.Name[strings.LastIndexByte(v.Name, '-')+1:]
		if tts.IsKnownVoice(short) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func isServed(name string) bool {
	for _, pattern := range servedPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func uploadExt(r *http.Request, field string) string {
	if r.MultipartForm == nil {
		return ""
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return ""
	}
	return safeExt(files[0])
}

func safeExt(h *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func ptr(s string) *string {
	return &s
}
