package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/model"
)

const (
	DefaultCacheTime      = 0
	DefaultUpdateTimeout  = 60
	DefaultRefreshButton  = "Actualizar"
	DefaultRefreshedToast = "Actualizado"
	DefaultFailedToast    = "No se pudo actualizar"

	// Maximum number of results in an answer to an inline query.
	MaxInlineResults = 50
)

// The subset of *tgbotapi.BotAPI used by Bot.
type API interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Service interface {
	HandleInlineQuery(ctx context.Context, text string, location *model.Position) []model.Result
	HandleRefresh(ctx context.Context, stopID string) (*model.Result, error)
}

// Bot answers inline queries and refresh button presses.
type Bot struct {
	CacheTime      int
	RefreshButton  string
	RefreshedToast string
	FailedToast    string

	api     API
	service Service
	log     *logrus.Entry
}

func NewBot(api API, service Service) *Bot {
	return &Bot{
		CacheTime:      DefaultCacheTime,
		RefreshButton:  DefaultRefreshButton,
		RefreshedToast: DefaultRefreshedToast,
		FailedToast:    DefaultFailedToast,

		api:     api,
		service: service,
		log:     logging.GetLogger(logging.TelegramModule),
	}
}

func (b *Bot) keyboard(action model.RefreshAction) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.RefreshButton, action.StopID),
		),
	)
	return &markup
}

func (b *Bot) article(r model.Result) tgbotapi.InlineQueryResultArticle {
	article := tgbotapi.NewInlineQueryResultArticleMarkdown(r.ID, r.Title, r.Body)
	article.Description = r.Description
	article.ThumbURL = r.Thumbnail
	article.ReplyMarkup = b.keyboard(r.Refresh)
	return article
}

func location(q *tgbotapi.InlineQuery) *model.Position {
	if q.Location == nil {
		return nil
	}
	return &model.Position{Lat: q.Location.Latitude, Lon: q.Location.Longitude}
}

// HandleInlineQuery answers q, possibly with no results.
func (b *Bot) HandleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) error {
	results := b.service.HandleInlineQuery(ctx, q.Query, location(q))
	if len(results) > MaxInlineResults {
		results = results[:MaxInlineResults]
	}

	articles := make([]interface{}, 0, len(results))
	for _, r := range results {
		articles = append(articles, b.article(r))
	}

	_, err := b.api.Request(tgbotapi.InlineConfig{
		InlineQueryID: q.ID,
		Results:       articles,
		CacheTime:     b.CacheTime,
		IsPersonal:    q.Location != nil,
	})
	if err != nil {
		return fmt.Errorf("answering inline query %s: %w", q.ID, err)
	}
	return nil
}

// HandleCallbackQuery refreshes the inline message the pressed button
// belongs to. Failed refreshes leave the message as is.
func (b *Bot) HandleCallbackQuery(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	log := b.log.WithField("stop_id", q.Data)

	if q.InlineMessageID == "" {
		log.Warn("callback query without inline message")
		return b.answerCallback(q, b.FailedToast)
	}

	result, err := b.service.HandleRefresh(ctx, q.Data)
	if err != nil {
		log.WithError(err).Error("refresh dropped")
		return b.answerCallback(q, b.FailedToast)
	}

	_, err = b.api.Request(tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{
			InlineMessageID: q.InlineMessageID,
			ReplyMarkup:     b.keyboard(result.Refresh),
		},
		Text:      result.Body,
		ParseMode: tgbotapi.ModeMarkdown,
	})
	if err != nil && !notModified(err) {
		return fmt.Errorf("editing message for %s: %w", q.Data, err)
	}

	return b.answerCallback(q, b.RefreshedToast)
}

func (b *Bot) answerCallback(q *tgbotapi.CallbackQuery, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(q.ID, text))
	if err != nil {
		return fmt.Errorf("answering callback %s: %w", q.ID, err)
	}
	return nil
}

// Telegram rejects edits that leave a message unchanged.
func notModified(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return strings.Contains(tgErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.InlineQuery != nil:
		return b.HandleInlineQuery(ctx, update.InlineQuery)
	case update.CallbackQuery != nil:
		return b.HandleCallbackQuery(ctx, update.CallbackQuery)
	}
	return nil
}

// Run handles updates until ctx is cancelled or updates is closed.
// Each update is handled in its own goroutine; Run waits for all of
// them before returning.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				err := b.HandleUpdate(ctx, update)
				if err != nil {
					b.log.WithError(err).WithField("update_id", update.UpdateID).Error("handling update")
				}
			}(update)
		}
	}
}

// Connect authenticates with the Bot API and starts long polling.
func Connect(token string) (*tgbotapi.BotAPI, tgbotapi.UpdatesChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to bot api: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultUpdateTimeout
	u.AllowedUpdates = []string{"inline_query", "callback_query"}

	return api, api.GetUpdatesChan(u), nil
}
