package bot

import (
	"sync"
	"time"
)

// Session хранит настройки генерации для одного чата
type Session struct {
	Voice          string
	LanguageCode   string
	ReferenceAudio string // пустая строка означает эталон по умолчанию
	UpdatedAt      time.Time
}

// Sessions потокобезопасное хранилище настроек чатов
type Sessions struct {
	mu              sync.RWMutex
	byChat          map[int64]*Session
	defaultVoice    string
	defaultLanguage string
}

// NewSessions создает хранилище с настройками по умолчанию
func NewSessions(defaultVoice, defaultLanguage string) *Sessions {
	return &Sessions{
		byChat:          make(map[int64]*Session),
		defaultVoice:    defaultVoice,
		defaultLanguage: defaultLanguage,
	}
}

// Get возвращает копию настроек чата
func (s *Sessions) Get(chatID int64) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.byChat[chatID]; ok {
		return *sess
	}
	return Session{Voice: s.defaultVoice, LanguageCode: s.defaultLanguage}
}

func (s *Sessions) SetVoice(chatID int64, voice string) {
	s.update(chatID, func(sess *Session) { sess.Voice = voice })
}

func (s *Sessions) SetLanguage(chatID int64, languageCode string) {
	s.update(chatID, func(sess *Session) { sess.LanguageCode = languageCode })
}

// SetReference сохраняет эталон и возвращает предыдущий
func (s *Sessions) SetReference(chatID int64, path string) string {
	var previous string
	s.update(chatID, func(sess *Session) {
		previous = sess.ReferenceAudio
		sess.ReferenceAudio = path
	})
	return previous
}

func (s *Sessions) update(chatID int64, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byChat[chatID]
	if !ok {
		sess = &Session{Voice: s.defaultVoice, LanguageCode: s.defaultLanguage}
		s.byChat[chatID] = sess
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
}
