package pollbot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/telegram"
)

const (
	startText   = "Please select /poll to get a Poll, /quiz to get a Quiz or /preview to generate a preview for your poll"
	helpText    = "Use /quiz, /poll or /preview to test this bot."
	previewText = "Press the button to let the bot generate a preview for your poll"

	pollQuestion = "How are you?"
	quizQuestion = "How many eggs do you need for a cake?"
	// quizCorrectOption is the index of "4" in quizOptions.
	quizCorrectOption = 2
)

var (
	pollOptions = []string{"Good", "Really good", "Fantastic", "Great"}
	quizOptions = []string{"1", "2", "4", "20"}
)

func (b *Bot) reply(ctx context.Context, c *ext.CallbackContext, u *telegram.Update, text string) error {
	_, err := c.Bot.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID: telegram.ChatIDFromInt(u.EffectiveChat().ID),
		Text:   text,
	})
	return err
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	if err := b.reply(ctx, c, u, startText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}
	return nil
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	if err := b.reply(ctx, c, u, helpText); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}
	return nil
}

// handlePoll sends a non-anonymous multiple answer poll and remembers it for
// receivePollAnswer.
func (b *Bot) handlePoll(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	chatID := u.EffectiveChat().ID
	anonymous := false
	msg, err := c.Bot.SendPoll(ctx, &telegram.SendPollRequest{
		ChatID:                telegram.ChatIDFromInt(chatID),
		Question:              pollQuestion,
		Options:               telegram.PollOptions(pollOptions...),
		IsAnonymous:           &anonymous,
		AllowsMultipleAnswers: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send poll: %w", err)
	}
	if msg.Poll == nil {
		return errors.New("sent poll message carries no poll")
	}

	c.BotData().Set(pollKey(msg.Poll.ID), pollRecord{
		Options:   slices.Clone(pollOptions),
		ChatID:    chatID,
		MessageID: msg.MessageID,
	})
	b.pollsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("type", telegram.PollRegular)))
	return b.scheduleClose(c, msg.Poll.ID, chatID)
}

// receivePollAnswer reports a user's vote and closes the poll after
// TotalVoterCount votes.
func (b *Bot) receivePollAnswer(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	answer := u.PollAnswer
	// retracted votes and votes of anonymous admins
	if answer.User == nil || len(answer.OptionIDs) == 0 {
		return nil
	}
	rec, ok := recordAnswer(c.BotData(), answer.PollID)
	if !ok || len(rec.Options) == 0 {
		// an old poll, or one we did not send
		return nil
	}
	b.answers.Add(ctx, 1)

	_, err := c.Bot.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID:    telegram.ChatIDFromInt(rec.ChatID),
		Text:      fmt.Sprintf("%s feels %s!", answer.User.MentionHTML(""), formatAnswer(rec.Options, answer.OptionIDs)),
		ParseMode: telegram.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send poll answer summary: %w", err)
	}

	if rec.Answers == TotalVoterCount {
		return b.closePoll(ctx, c, answer.PollID, rec)
	}
	return nil
}

// handleQuiz replies with a quiz.
func (b *Bot) handleQuiz(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	chatID := u.EffectiveChat().ID
	correct := quizCorrectOption
	msg, err := c.Bot.SendPoll(ctx, &telegram.SendPollRequest{
		ChatID:          telegram.ChatIDFromInt(chatID),
		Question:        quizQuestion,
		Options:         telegram.PollOptions(quizOptions...),
		Type:            telegram.PollQuiz,
		CorrectOptionID: &correct,
		SendOptions:     telegram.ReplyTo(u.EffectiveMessage().MessageID),
	})
	if err != nil {
		return fmt.Errorf("failed to send quiz: %w", err)
	}
	if msg.Poll == nil {
		return errors.New("sent quiz message carries no poll")
	}

	c.BotData().Set(pollKey(msg.Poll.ID), pollRecord{ChatID: chatID, MessageID: msg.MessageID})
	b.pollsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("type", telegram.PollQuiz)))
	return b.scheduleClose(c, msg.Poll.ID, chatID)
}

// receiveQuizAnswer closes a quiz after TotalVoterCount participants took it.
func (b *Bot) receiveQuizAnswer(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	p := u.Poll
	// the bot also receives updates for closed polls and regular polls
	if p.IsClosed || p.Type != telegram.PollQuiz || p.TotalVoterCount != TotalVoterCount {
		return nil
	}
	rec, ok := lookupRecord(c.BotData(), p.ID)
	if !ok {
		return nil
	}
	return b.closePoll(ctx, c, p.ID, rec)
}

// handlePreview asks the user to create a poll.
func (b *Bot) handlePreview(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	_, err := c.Bot.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID: telegram.ChatIDFromInt(u.EffectiveChat().ID),
		Text:   previewText,
		SendOptions: telegram.SendOptions{
			ReplyMarkup: &telegram.ReplyKeyboardMarkup{
				Keyboard: [][]telegram.KeyboardButton{{
					{Text: "Press me!", RequestPoll: &telegram.KeyboardButtonPollType{}},
				}},
				OneTimeKeyboard: true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send preview keyboard: %w", err)
	}
	return nil
}

// receivePoll echoes a poll created by the user as a closed poll.
func (b *Bot) receivePoll(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	msg := u.EffectiveMessage()
	_, err := c.Bot.SendPoll(ctx, &telegram.SendPollRequest{
		ChatID:   telegram.ChatIDFromInt(msg.Chat.ID),
		Question: msg.Poll.Question,
		Options:  telegram.PollOptions(optionTexts(msg.Poll)...),
		IsClosed: true,
		SendOptions: telegram.SendOptions{
			ReplyParameters: &telegram.ReplyParameters{MessageID: msg.MessageID},
			ReplyMarkup:     telegram.RemoveKeyboard(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send poll preview: %w", err)
	}
	return nil
}

// closePoll stops the poll and forgets it.
func (b *Bot) closePoll(ctx context.Context, c *ext.CallbackContext, pollID string, rec pollRecord) error {
	c.BotData().Delete(pollKey(pollID))
	if _, err := c.Bot.StopPoll(ctx, telegram.ChatIDFromInt(rec.ChatID), rec.MessageID, nil); err != nil {
		return fmt.Errorf("failed to stop poll: %w", err)
	}
	b.log.Debug().Str("poll_id", pollID).Int("answers", rec.Answers).Msg("Poll closed")
	return nil
}

// scheduleClose closes the poll after the configured lifetime unless it was
// closed by then.
func (b *Bot) scheduleClose(c *ext.CallbackContext, pollID string, chatID int64) error {
	jq := c.JobQueue()
	if b.pollLifetime <= 0 || jq == nil {
		return nil
	}
	_, err := jq.RunOnce(b.expirePoll, b.pollLifetime,
		ext.JobName("close-poll"),
		ext.JobData(pollID),
		ext.JobChatID(chatID),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule poll close: %w", err)
	}
	return nil
}

func (b *Bot) expirePoll(ctx context.Context, c *ext.CallbackContext) error {
	pollID, _ := c.Job.Data.(string)
	rec, ok := lookupRecord(c.BotData(), pollID)
	if !ok {
		return nil
	}
	return b.closePoll(ctx, c, pollID, rec)
}
