package conversation

import (
	"fmt"
	"strings"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/transport"
)

// Commands
const cmdStart = "/start"

// Onboarding buttons
const (
	btnYes           = "Да"
	btnNo            = "Нет"
	btnKeepProfile   = "✅ Оставить как есть"
	btnUpdateProfile = "📝 Обновить профиль"
)

// Main menu buttons
const (
	btnRegister     = "📝Записаться на игру"
	btnCancel       = "❌Отменить запись"
	btnSchedule     = "📅Расписание игр"
	btnParticipants = "👥Список участников"
	btnDirections   = "📍Как до нас добраться?"
	btnAdminPanel   = "⚙️ Админ-панель"
	btnBackToMenu   = "🔙 В меню"
)

// Admin menu buttons
const (
	btnAddGame           = "➕ Добавить игру"
	btnDeleteGame        = "❌ Удалить игру"
	btnRestoreGame       = "♻️ Восстановить игру"
	btnCancelGame        = "🚫 Отмена игры"
	btnRemind            = "🔔 Напомнить об игре"
	btnBroadcast         = "📢 Рассылка"
	btnAdminParticipants = "👥 Список участников"
	btnEditSchedule      = "🗓 Изменить расписание"
	btnMainMenu          = "🏠 Главное меню"
	btnBack              = "🔙 Назад"
)

// Audience buttons
const (
	btnAudienceAll           = "👥 Всем пользователям"
	btnAudienceRegistered    = "✅ Только записавшимся"
	btnAudienceNotRegistered = "❌ Только не записавшимся"
	btnAudienceManual        = "👤 Выбрать пользователей"
)

// Custom selection actions
const (
	pickPrefix = "pick:"
	pickDone   = "pick:done"
	selectMark = "✅ "
)

// Choice prefixes in session lists
const (
	prefixDate         = "📆"
	prefixParticipants = "👥"
)

const minAttendanceWarning = "❗️Игра не состоится, если придут меньше 10 человек.\n" +
	"Поэтому, пожалуйста, приходи обязательно, если записался или отмени запись, если планы изменятся.🙏"

const (
	msgUseButtons      = "Пожалуйста, воспользуйся кнопками для выбора."
	msgUseMenu         = "Пожалуйста, воспользуйся кнопками меню."
	msgPickFromList    = "Пожалуйста, выбери игру из списка."
	msgSendStart       = "Чтобы начать, отправь /start"
	msgTryLater        = "Что-то пошло не так. Попробуй ещё раз чуть позже."
	msgSessionNotFound = "Игра не найдена."
	msgSessionConflict = "Такая игра уже есть в расписании."
	msgBackToMenu      = "Ты вернулся в меню."
	msgBackToAdmin     = "Вы вернулись в админ-меню."
	msgListInactive    = "Этот список больше не активен."
)

func (c *Controller) mainMenu(id model.PersonID) *transport.ReplyKeyboard {
	last := []string{btnDirections}
	if c.isOrganizer(id) {
		last = append(last, btnAdminPanel)
	}
	return transport.Keyboard(
		[]string{btnRegister, btnCancel},
		[]string{btnSchedule, btnParticipants},
		last,
	)
}

func adminMenu() *transport.ReplyKeyboard {
	return transport.Keyboard(
		[]string{btnAddGame, btnDeleteGame},
		[]string{btnRestoreGame, btnCancelGame},
		[]string{btnRemind, btnBroadcast},
		[]string{btnAdminParticipants, btnEditSchedule},
		[]string{btnMainMenu},
	)
}

func yesNoKeyboard() *transport.ReplyKeyboard {
	return transport.Keyboard([]string{btnYes, btnNo})
}

func confirmProfileKeyboard() *transport.ReplyKeyboard {
	return transport.Column(btnKeepProfile, btnUpdateProfile)
}

func kindKeyboard() *transport.ReplyKeyboard {
	labels := make([]string, 0, len(model.Kinds)+1)
	for _, k := range model.Kinds {
		labels = append(labels, k.Label())
	}
	return transport.Column(append(labels, btnBack)...)
}

func audienceKeyboard() *transport.ReplyKeyboard {
	return transport.Column(btnAudienceAll, btnAudienceRegistered, btnAudienceNotRegistered, btnAudienceManual, btnBack)
}

func backKeyboard() *transport.ReplyKeyboard {
	return transport.Column(btnBack)
}

func greetingText(contact string) string {
	return "Привет!👋\n" +
		"Я бот, который поможет тебе записываться на мафию в клубе настольных игр Тайная комната.\n\n" +
		"Если возникнут вопросы - пиши Нате " + contact + "\n\n" +
		"Готов познакомиться?"
}

func welcomeBackText(nick string) string {
	return "С возвращением, " + nick + "!\n" +
		"Вижу, что мы с тобой уже знакомились☺️ Хочешь изменить свое имя, фамилию или ник?"
}

const (
	promptFirstName  = "Как тебя зовут?"
	promptUpdate     = "Хорошо! Давай обновим твою анкету. Как тебя зовут?"
	promptLastName   = "А какая у тебя фамилия?"
	promptNickname   = "И какой у тебя игровой ник в мафии?\n\n" +
		"P.S. В мафии используют ники для того, чтобы разделять игру и реальную жизнь, и не переносить негативные эмоции на личности игроков"
	promptAge        = "Сколько тебе лет?"
	ageRange         = "от 1 до 120"
	msgAgeNotNumber  = "Пожалуйста, введи возраст цифрами, " + ageRange + "."
	msgAgeOutOfRange = "Такой возраст не подходит. Введи настоящий возраст, " + ageRange + "."
	msgNameTooLong   = "Слишком длинно. Пожалуйста, не больше 64 символов."
	msgComeBackLater = "Хорошо, запускай бота снова, когда будешь готов."
	msgAgeNotice     = "В Тайной комнате действуют возрастные ограничения для игры в мафию:\n" +
		"• 18+ для Спортивной мафии\n" +
		"• 16+ для Городской мафии"
)

func onboardedText(contact string) string {
	return "Спасибо за знакомство!☺️\n\n" +
		"Обрати внимание на кнопки меню ниже. С их помощью ты сможешь:\n" +
		"• Записаться на игру\n" +
		"• Отменить запись на игру\n" +
		"• Посмотреть расписание ближайших игр\n" +
		"• Узнать, как до нас добраться\n\n" +
		"Если возникнут вопросы - пиши Нате " + contact
}

func directionsText(venue string) string {
	return "📍 Мы находимся по адресу\n\n" + venue
}

func registeredText(session *model.Session, venue string) string {
	return "Ты успешно записался на игру " + session.Title() + "!\n\n" +
		session.Kind.Rules() + "\n" +
		directionsText(venue) + "\n\n" +
		minAttendanceWarning
}

func scheduleText(announcement string, sessions []*model.Session) string {
	var b strings.Builder
	b.WriteString(announcement)
	b.WriteString("\n\nРасписание ближайших игр:\n\n")
	if len(sessions) == 0 {
		b.WriteString("Игр пока не запланировано.")
		return b.String()
	}
	for _, s := range sessions {
		b.WriteString(prefixDate + s.Title() + "\n")
		b.WriteString(s.Kind.Rules() + "\n")
	}
	return strings.TrimSpace(b.String())
}

func participantsText(session *model.Session, participants []model.Participant, full bool) string {
	if len(participants) == 0 {
		return "На игру " + session.Title() + " пока никто не записался."
	}
	name := func(p model.Person) string {
		if full {
			return p.FullName()
		}
		return p.Nickname
	}

	var b strings.Builder
	b.WriteString("Список участников на игру " + session.Title() + ":\n")
	n := 0
	for _, p := range participants {
		if p.Tag == model.TagRegistered {
			n++
			fmt.Fprintf(&b, "%d. %s\n", n, name(p.Person))
		} else {
			fmt.Fprintf(&b, "- %s (думает)\n", name(p.Person))
		}
	}
	return b.String()
}

func reportText(prefix string, report fanout.Report) string {
	text := fmt.Sprintf("%s %d пользователям.", prefix, report.Delivered)
	if report.Failed > 0 {
		text += fmt.Sprintf("\nНе доставлено: %d.", report.Failed)
	}
	return text
}

// Organizer notices

func noticeRegistered(p *model.Person, s *model.Session) string {
	return "Новая запись: " + p.FullName() + " на " + s.Title()
}

func noticeCancelled(p *model.Person, s *model.Session) string {
	return "❌ Отмена записи: " + p.FullName() + " на " + s.Title()
}

func noticeThinking(p *model.Person, s *model.Session) string {
	return "🤔 Игрок думает: " + p.FullName() + " на " + s.Title()
}

const msgRegistrationCancelled = "Запись отменена.\n" +
	"Спасибо за то, что уважаешь клуб и других игроков!☺️\n" +
	"Будем ждать тебя на следующих играх."
