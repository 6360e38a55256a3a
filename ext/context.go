package ext

import (
	"errors"

	"gitlab.com/yelinaung/tgbot/ext/filters"
	"gitlab.com/yelinaung/tgbot/telegram"
)

// CallbackContext is passed to every handler, error handler and job callback.
// A fresh context is built for each invocation.
type CallbackContext struct {
	Bot         *telegram.Bot
	Application *Application
	Update      any

	// Args holds the arguments of a command, split on whitespace.
	Args []string
	// Matches holds regex submatches produced by patterns and filters.
	Matches [][]string
	// Error is set for error handlers.
	Error error
	// Job is set for job callbacks and errors raised by jobs.
	Job *Job

	userID int64
	chatID int64
}

// NewContextFromUpdate builds the context for handling update.
func NewContextFromUpdate(update any, app *Application) *CallbackContext {
	c := &CallbackContext{Application: app, Update: update}
	if app != nil {
		c.Bot = app.Bot()
	}
	if u, ok := update.(*telegram.Update); ok && u != nil {
		if user := u.EffectiveUser(); user != nil {
			c.userID = user.ID
		}
		if chat := u.EffectiveChat(); chat != nil {
			c.chatID = chat.ID
		}
	}
	return c
}

// NewContextFromError builds the context passed to error handlers. update
// may be nil, e.g. for errors raised by jobs.
func NewContextFromError(update any, err error, app *Application, job *Job) *CallbackContext {
	var c *CallbackContext
	if job != nil && update == nil {
		c = NewContextFromJob(job, app)
	} else {
		c = NewContextFromUpdate(update, app)
		c.Job = job
	}
	c.Error = err
	return c
}

// NewContextFromJob builds the context for running job.
func NewContextFromJob(job *Job, app *Application) *CallbackContext {
	c := &CallbackContext{Application: app, Job: job}
	if app != nil {
		c.Bot = app.Bot()
	}
	if job != nil {
		c.userID = job.UserID
		c.chatID = job.ChatID
	}
	return c
}

// TelegramUpdate returns the update as a Telegram update, or nil when a
// custom value is being handled.
func (c *CallbackContext) TelegramUpdate() *telegram.Update {
	u, _ := c.Update.(*telegram.Update)
	return u
}

// UserID returns the id of the user the context belongs to, or 0.
func (c *CallbackContext) UserID() int64 { return c.userID }

// ChatID returns the id of the chat the context belongs to, or 0.
func (c *CallbackContext) ChatID() int64 { return c.chatID }

// UserData returns the data of the effective user, or nil when the update
// has no user.
func (c *CallbackContext) UserData() *Store {
	if c.Application == nil || c.userID == 0 {
		return nil
	}
	return c.Application.UserData(c.userID)
}

// ChatData returns the data of the effective chat, or nil when the update
// has no chat.
func (c *CallbackContext) ChatData() *Store {
	if c.Application == nil || c.chatID == 0 {
		return nil
	}
	return c.Application.ChatData(c.chatID)
}

// BotData returns the data shared by all updates.
func (c *CallbackContext) BotData() *Store {
	if c.Application == nil {
		return nil
	}
	return c.Application.BotData()
}

// JobQueue returns the application's job queue, or nil.
func (c *CallbackContext) JobQueue() *JobQueue {
	if c.Application == nil {
		return nil
	}
	return c.Application.JobQueue()
}

// DropCallbackData removes the keyboard the callback query was sent from
// from the callback data cache.
func (c *CallbackContext) DropCallbackData(q *telegram.CallbackQuery) error {
	if c.Application == nil || c.Application.CallbackDataCache() == nil {
		return errors.New("ext: arbitrary callback data is not enabled")
	}
	return c.Application.CallbackDataCache().DropData(q)
}

func (c *CallbackContext) addData(data filters.Data) {
	c.Matches = append(c.Matches, data.Matches()...)
}
