package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"memoryping/internal/model"
	"memoryping/internal/service"
)

const (
	cbSnoozePrefix  = "snooze:"
	cbDonePrefix    = "done:"
	cbDismissPrefix = "dismiss:"
	cbQuickPrefix   = "quick:"
)

var priorityIcons = map[string]string{
	model.PriorityHigh:   "🔴",
	model.PriorityMedium: "🟡",
	model.PriorityLow:    "🟢",
}

var categoryIcons = map[string]string{
	"work": "💼", "personal": "👤", "health": "💊",
	"shopping": "🛒", "fitness": "💪", "family": "👨‍👩‍👧",
	"finance": "💰", "education": "📚", "other": "📌",
}

type quickTemplate struct {
	key      string
	text     string
	category string
}

var quickTemplates = []quickTemplate{
	{"medicine", "Take medicine", "health"},
	{"water", "Drink water", "health"},
}

// Bot is the Telegram collaborator around the core: it turns incoming
// text into reminder operations and implements the delivery callback.
// Owners are Telegram chat ids rendered as strings.
type Bot struct {
	api    *tgbotapi.BotAPI
	svc    *service.ReminderService
	digest *service.DigestService
	log    zerolog.Logger
}

func New(token string, svc *service.ReminderService, digest *service.DigestService, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:    api,
		svc:    svc,
		digest: digest,
		log:    log,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

// Deliver implements service.Notifier: it pushes the reminder to the
// owner's chat with snooze and acknowledgment buttons.
func (b *Bot) Deliver(ctx context.Context, d service.Delivery) error {
	chatID, err := strconv.ParseInt(d.Owner, 10, 64)
	if err != nil {
		return fmt.Errorf("owner %q is not a chat id: %w", d.Owner, err)
	}

	text := fmt.Sprintf("🔔 <b>Reminder!%s</b>\n\n%s", priorityMark(d.Priority), escape(d.Text))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = reminderKeyboard(d.ID)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

// SendDailyDigests pushes the digest to every known owner.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	owners, err := b.svc.Owners(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, owner := range owners {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chatID, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			continue
		}
		text, err := b.digest.Digest(ctx, owner, now)
		if err != nil {
			b.log.Error().Err(err).Str("owner", owner).Msg("build digest")
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error().Err(err).Str("owner", owner).Msg("send digest")
		}
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Info().Int64("chat", msg.Chat.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	return b.createFromText(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "list":
		return b.handleList(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "digest":
		return b.handleDigest(ctx, msg)
	case "quick":
		return b.handleQuick(msg)
	case "timezone":
		return b.handleTimezone(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "🧠 <b>Welcome to MemoryPing!</b>\n\n" +
		"Just talk naturally:\n" +
		"• <i>Remind me to call mom at 5pm</i>\n" +
		"• <i>Meeting in 2h 30m #work !high</i>\n" +
		"• <i>Take medicine every day at 9am</i>\n\n" +
		"Commands: /list /today /digest /quick /timezone /stats /help"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "📖 <b>MemoryPing guide</b>\n\n" +
		"<b>Natural language</b>\n" +
		"• Workout at 6am tomorrow\n" +
		"• Meeting in 2h 30m #work !high\n" +
		"• Call mom after lunch\n\n" +
		"<b>Tags</b>\n" +
		"• #work #health #family … category\n" +
		"• !high !medium !low priority\n" +
		"• -- free-text notes\n" +
		"• @user to share\n" +
		"• every day / every monday / every month to repeat\n\n" +
		"<b>Commands</b>\n" +
		"• /list [#category] [!priority] — active reminders\n" +
		"• /today — today's schedule\n" +
		"• /digest — full agenda\n" +
		"• /quick — one-tap templates\n" +
		"• /timezone &lt;zone&gt; — e.g. /timezone Europe/Berlin\n" +
		"• /stats — your activity counters"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) createFromText(ctx context.Context, msg *tgbotapi.Message) error {
	owner := ownerKey(msg.Chat.ID)
	reminder, err := b.svc.Create(ctx, owner, msg.Text, time.Now())
	switch {
	case errors.Is(err, service.ErrNoTask):
		return b.sendText(msg.Chat.ID,
			"❌ I couldn't understand that.\n\nTry: <i>Remind me to call mom at 5pm</i>\nOr: <i>Meeting in 2h #work !high</i>")
	case errors.Is(err, service.ErrBadTime):
		return b.sendText(msg.Chat.ID,
			"🤔 When should I remind you?\n\nTry: at 5pm, in 30min, tomorrow 9am, after lunch")
	case errors.Is(err, service.ErrPastTime):
		return b.sendText(msg.Chat.ID, "❌ That time is in the past!")
	case err != nil:
		b.log.Error().Err(err).Str("owner", owner).Msg("create reminder")
		return b.sendText(msg.Chat.ID, "Something went wrong saving that, please try again.")
	}

	loc, tzErr := b.svc.Timezone(ctx, owner)
	if tzErr != nil {
		loc = time.UTC
	}
	due := reminder.DueAt.In(loc)

	var sb strings.Builder
	sb.WriteString("✅ <b>Got it!</b>\n\n")
	sb.WriteString(fmt.Sprintf("%s %s\n", priorityIcons[reminder.Priority], escape(reminder.Text)))
	sb.WriteString(fmt.Sprintf("%s %s\n", categoryIcons[reminder.Category], escape(reminder.Category)))
	sb.WriteString(fmt.Sprintf("⏰ %s\n", due.Format("3:04 PM, Mon Jan 2")))
	sb.WriteString(fmt.Sprintf("⏳ In %s", formatUntil(time.Until(reminder.DueAt))))
	if reminder.Recurrence != model.RecurNone {
		sb.WriteString(fmt.Sprintf("\n🔄 Repeats %s", reminder.Recurrence))
	}
	if reminder.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s", escape(reminder.Notes)))
	}
	if len(reminder.SharedWith) > 0 {
		sb.WriteString(fmt.Sprintf("\n👥 Shared with %s", escape(strings.Join(reminder.SharedWith, ", "))))
	}
	return b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) error {
	owner := ownerKey(msg.Chat.ID)
	filter := parseFilterArgs(msg.CommandArguments())

	reminders, err := b.svc.ListActive(ctx, owner, filter)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load reminders: %s", escape(err.Error())))
	}
	if len(reminders) == 0 {
		return b.sendText(msg.Chat.ID, "📭 Nothing pending. Tell me what to remember!")
	}

	loc, tzErr := b.svc.Timezone(ctx, owner)
	if tzErr != nil {
		loc = time.UTC
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>Active reminders</b> (%d)\n\n", len(reminders)))
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, reminder := range reminders {
		due := reminder.DueAt.In(loc)
		sb.WriteString(fmt.Sprintf("%d. %s %s — %s",
			i+1, priorityIcons[reminder.Priority], escape(reminder.Text), due.Format("3:04 PM, Jan 2")))
		if reminder.Recurrence != model.RecurNone {
			sb.WriteString(fmt.Sprintf(" 🔄 %s", reminder.Recurrence))
		}
		sb.WriteByte('\n')
		if len(rows) < 10 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✅ %d. %s", i+1, shortText(reminder.Text, 24)),
					cbDonePrefix+reminder.ID,
				),
			))
		}
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(sb.String()))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.digest.Today(ctx, ownerKey(msg.Chat.ID), time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build today's view: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDigest(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.digest.Digest(ctx, ownerKey(msg.Chat.ID), time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build digest: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleQuick(msg *tgbotapi.Message) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, tpl := range quickTemplates {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tpl.text+" · 15m", cbQuickPrefix+tpl.key+":15"),
			tgbotapi.NewInlineKeyboardButtonData("30m", cbQuickPrefix+tpl.key+":30"),
			tgbotapi.NewInlineKeyboardButtonData("1h", cbQuickPrefix+tpl.key+":60"),
		))
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, "⚡ <b>Quick reminders</b>\n\nPick one:")
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := b.api.Send(reply)
	return err
}

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message) error {
	owner := ownerKey(msg.Chat.ID)
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		loc, err := b.svc.Timezone(ctx, owner)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Could not read your timezone.")
		}
		return b.sendText(msg.Chat.ID,
			fmt.Sprintf("🌍 Your timezone is <b>%s</b>.\nChange it with /timezone Europe/Berlin", escape(loc.String())))
	}
	if err := b.svc.SetTimezone(ctx, owner, args); err != nil {
		return b.sendText(msg.Chat.ID,
			fmt.Sprintf("❌ I don't know the zone %q. Use an IANA name like Europe/Berlin.", escape(args)))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🌍 Timezone set to <b>%s</b>.", escape(args)))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	counters, err := b.svc.Stats(ctx, ownerKey(msg.Chat.ID))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load stats: %s", escape(err.Error())))
	}
	text := fmt.Sprintf(
		"📊 <b>Your stats</b>\n\n• Created: %d\n• Completed: %d\n• Snoozed: %d",
		counters.Created, counters.Completed, counters.Snoozed,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("answer callback")
	}
	if cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbSnoozePrefix):
		id, minutes, err := parseSnoozeData(data)
		if err != nil {
			return err
		}
		newDue, err := b.svc.Snooze(ctx, id, minutes)
		if errors.Is(err, service.ErrNotFound) {
			return b.editText(chatID, cb.Message.MessageID, "❌ That reminder is gone.")
		}
		if err != nil {
			return err
		}
		loc, tzErr := b.svc.Timezone(ctx, ownerKey(chatID))
		if tzErr != nil {
			loc = time.UTC
		}
		return b.editText(chatID, cb.Message.MessageID,
			fmt.Sprintf("⏰ <b>Snoozed!</b>\n\nI'll ping you at %s.", newDue.In(loc).Format("3:04 PM")))

	case strings.HasPrefix(data, cbDonePrefix):
		id := strings.TrimPrefix(data, cbDonePrefix)
		done, err := b.svc.Complete(ctx, id)
		if err != nil {
			return err
		}
		if !done {
			return b.editText(chatID, cb.Message.MessageID, "❌ That reminder is gone.")
		}
		return b.editText(chatID, cb.Message.MessageID, "✅ <b>Done!</b> Nice work.")

	case strings.HasPrefix(data, cbDismissPrefix):
		id := strings.TrimPrefix(data, cbDismissPrefix)
		if _, err := b.svc.Delete(ctx, id); err != nil {
			return err
		}
		return b.editText(chatID, cb.Message.MessageID, "👋 Dismissed.")

	case strings.HasPrefix(data, cbQuickPrefix):
		return b.handleQuickCallback(ctx, cb)
	}

	return nil
}

func (b *Bot) handleQuickCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	parts := strings.Split(strings.TrimPrefix(cb.Data, cbQuickPrefix), ":")
	if len(parts) != 2 {
		return fmt.Errorf("bad quick callback %q", cb.Data)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes <= 0 {
		return fmt.Errorf("bad quick minutes %q", cb.Data)
	}
	for _, tpl := range quickTemplates {
		if tpl.key != parts[0] {
			continue
		}
		// Reuse the normal creation pipeline so counters, scheduling
		// and tagging behave identically to typed requests.
		raw := fmt.Sprintf("%s in %dm #%s", tpl.text, minutes, tpl.category)
		if _, err := b.svc.Create(ctx, ownerKey(chatID), raw, time.Now()); err != nil {
			b.log.Error().Err(err).Str("template", tpl.key).Msg("quick create")
			return b.editText(chatID, cb.Message.MessageID, "Something went wrong, please try again.")
		}
		return b.editText(chatID, cb.Message.MessageID,
			fmt.Sprintf("✅ <b>%s</b>\n⏰ In %dmin", escape(tpl.text), minutes))
	}
	return fmt.Errorf("unknown quick template %q", cb.Data)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func reminderKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ 5min", cbSnoozePrefix+id+":5"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ 15min", cbSnoozePrefix+id+":15"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ 1hr", cbSnoozePrefix+id+":60"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbDonePrefix+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Dismiss", cbDismissPrefix+id),
		),
	)
}

func parseSnoozeData(data string) (string, int, error) {
	rest := strings.TrimPrefix(data, cbSnoozePrefix)
	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return "", 0, fmt.Errorf("bad snooze callback %q", data)
	}
	minutes, err := strconv.Atoi(rest[sep+1:])
	if err != nil || minutes <= 0 {
		return "", 0, fmt.Errorf("bad snooze minutes %q", data)
	}
	return rest[:sep], minutes, nil
}

func parseFilterArgs(args string) service.Filter {
	var filter service.Filter
	for _, field := range strings.Fields(args) {
		switch {
		case strings.HasPrefix(field, "#"):
			filter.Category = strings.ToLower(strings.TrimPrefix(field, "#"))
		case strings.HasPrefix(field, "!"):
			filter.Priority = strings.ToLower(strings.TrimPrefix(field, "!"))
		}
	}
	return filter
}

func ownerKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func priorityMark(priority string) string {
	if icon, ok := priorityIcons[priority]; ok {
		return " " + icon
	}
	return ""
}

func formatUntil(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func shortText(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
