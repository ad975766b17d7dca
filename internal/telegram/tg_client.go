// Package telegram posts new-report alerts into the Telegram chats of ward offices.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/localization"
	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FallbackChat is the TELEGRAM_CHAT_IDS key used for departments without their own chat.
const FallbackChat = "*"

// Sender is the part of *tgbotapi.BotAPI the alerter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter sends one Markdown message per qualifying report.
type Alerter struct {
	Bot       Sender
	ChatIDs   map[string]int64
	MinThreat models.ThreatLevel
	Directory *config.Directory
	Localizer *localization.Localizer
	Language  string
}

// NewAlerter authorizes the bot token and returns an alerter for chatIDs.
func NewAlerter(token string, chatIDs map[string]int64, minThreat models.ThreatLevel, dir *config.Directory, loc *localization.Localizer, lang string) (*Alerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization failed: %w", err)
	}
	bot.Debug = false
	log.Printf("INFO: Telegram alerts authorized on account %s", bot.Self.UserName)

	return &Alerter{
		Bot:       bot,
		ChatIDs:   chatIDs,
		MinThreat: minThreat,
		Directory: dir,
		Localizer: loc,
		Language:  lang,
	}, nil
}

func (a *Alerter) Name() string { return "telegram" }

// Alert skips reports below MinThreat and reports with no chat to go to.
func (a *Alerter) Alert(ctx context.Context, report *models.Report) error {
	if report.AIAnalysis.ThreatLevel.Tier() < a.MinThreat.Tier() {
		return nil
	}
	chatID, ok := a.chatFor(report.TargetDepartment)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, a.render(report))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := a.Bot.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

func (a *Alerter) chatFor(department string) (int64, bool) {
	if id, ok := a.ChatIDs[department]; ok && department != "" {
		return id, true
	}
	id, ok := a.ChatIDs[FallbackChat]
	return id, ok
}

func (a *Alerter) render(report *models.Report) string {
	loc := a.Localizer
	if loc == nil {
		loc = localization.NewDefaultLocalizer()
	}

	ward := report.TargetDepartment
	if dep, ok := a.Directory.Lookup(ward); ok {
		ward = dep.Name
	}
	if ward == "" {
		ward = "-"
	}

	heading := loc.GetString(a.Language, "telegram_alert_"+notify.Urgency(report.AIAnalysis.ThreatLevel))
	return loc.Format(a.Language, "telegram_alert",
		escapeMarkdown(heading+": "+report.Title),
		escapeMarkdown(ward),
		report.AIAnalysis.ThreatLevel,
		report.AIAnalysis.SeverityScore,
		escapeMarkdown(report.Location),
		report.ID,
	)
}

var markdownReplacer = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes the characters legacy Markdown mode treats as markup.
func escapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}
