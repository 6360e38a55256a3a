// Package gotelegram lets an application built on github.com/go-telegram/bot
// hand its updates to an ext.Application.
//
//	app, _ := ext.NewApplication(tgbot)
//	b, _ := bot.New(token, bot.WithDefaultHandler(gotelegram.Handler(app)))
package gotelegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/telegram"
)

// ConvertUpdate converts a go-telegram update. Both types follow the Bot API
// JSON schema, so the conversion goes through JSON.
func ConvertUpdate(u *models.Update) (*telegram.Update, error) {
	if u == nil {
		return nil, errors.New("gotelegram: nil update")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("gotelegram: encode update %d: %w", u.ID, err)
	}
	var out telegram.Update
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("gotelegram: decode update %d: %w", u.ID, err)
	}
	return &out, nil
}

// ToModels converts an update the other way.
func ToModels(u *telegram.Update) (*models.Update, error) {
	if u == nil {
		return nil, errors.New("gotelegram: nil update")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("gotelegram: encode update %d: %w", u.UpdateID, err)
	}
	var out models.Update
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("gotelegram: decode update %d: %w", u.UpdateID, err)
	}
	return &out, nil
}

// Handler returns a handler that converts each update, restores arbitrary
// callback data and puts the update on app's queue. Updates that cannot be
// converted are logged and dropped.
func Handler(app *ext.Application) bot.HandlerFunc {
	log := app.Logger().With().Str("component", "gotelegram").Logger()
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		u, err := ConvertUpdate(update)
		if err != nil {
			log.Error().Err(err).Msg("Failed to convert update")
			return
		}
		app.Bot().ResolveCallbackData(u)
		if err := app.Enqueue(ctx, u); err != nil {
			log.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("Update dropped")
		}
	}
}

// Middleware mirrors every update into app and then calls the next handler,
// so go-telegram handlers and ext handlers can run side by side.
func Middleware(app *ext.Application) bot.Middleware {
	mirror := Handler(app)
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			mirror(ctx, b, update)
			next(ctx, b, update)
		}
	}
}
