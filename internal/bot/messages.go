package bot

import (
	"fmt"
	"strings"
	"time"
)

// Messages тексты ответов бота
type Messages struct{}

func NewMessages() *Messages {
	return &Messages{}
}

func (m *Messages) Welcome(ttl time.Duration) string {
	return "👋 <b>Синтез речи с клонированием голоса</b>\n\n" +
		"Отправьте текст, и я озвучу его голосом Chirp 3 HD, а затем перенесу тембр эталонной записи.\n\n" +
		m.Help(ttl)
}

func (m *Messages) Help(ttl time.Duration) string {
	return "<b>Команды:</b>\n" +
		"/voice <i>Charon|Leda</i> - выбрать голос синтеза\n" +
		"/lang <i>id-ID|en-US</i> - выбрать язык\n" +
		"/reset - вернуть эталон по умолчанию\n" +
		"/settings - текущие настройки\n\n" +
		"🎤 Голосовое сообщение или аудиофайл станет эталоном для клонирования.\n\n" +
		fmt.Sprintf("⚠️ Файлы не хранятся постоянно и удаляются примерно через %d мин.", int(ttl.Minutes()))
}

func (m *Messages) Settings(sess Session) string {
	ref := "по умолчанию"
	if sess.ReferenceAudio != "" {
		ref = "ваша запись"
	}
	return fmt.Sprintf("⚙️ Голос: <b>%s</b>\nЯзык: <b>%s</b>\nЭталон: %s", sess.Voice, sess.LanguageCode, ref)
}

func (m *Messages) VoiceSet(voice string) string {
	return fmt.Sprintf("✅ Голос синтеза: <b>%s</b>", voice)
}

func (m *Messages) LanguageSet(code string) string {
	return fmt.Sprintf("✅ Язык: <b>%s</b>", code)
}

func (m *Messages) UnknownOption(kind string, options []string) string {
	return fmt.Sprintf("Неизвестный %s. Доступно: %s", kind, strings.Join(options, ", "))
}

func (m *Messages) ReferenceSaved() string {
	return "✅ Эталон сохранен. Теперь отправьте текст."
}

func (m *Messages) ReferenceReset() string {
	return "✅ Используется эталон по умолчанию."
}

func (m *Messages) ReferenceExpired() string {
	return "⚠️ Ваш эталон устарел и был удален, используется эталон по умолчанию."
}

func (m *Messages) Processing() string {
	return "⏳ Генерирую речь и клонирую голос..."
}

func (m *Messages) EmptyText() string {
	return "Нечего озвучивать: отправьте непустой текст."
}

func (m *Messages) TextTooLong(limit int) string {
	return fmt.Sprintf("✂️ Текст слишком длинный: Google TTS принимает до %d байт (около %d символов кириллицы). Разбейте его на части.", limit, limit/2)
}

func (m *Messages) UnknownCommand() string {
	return "Неизвестная команда. Используйте /help"
}

func (m *Messages) RateLimited() string {
	return "⚠️ Слишком много запросов. Подождите минуту."
}

func (m *Messages) Error(text string) string {
	return "❌ " + text
}
