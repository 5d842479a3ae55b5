// Package telegram hosts the Telegram client, event routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_notify_relay_bot/internal/broadcast"
	"tg_notify_relay_bot/internal/config"
	"tg_notify_relay_bot/internal/domain"
	"tg_notify_relay_bot/internal/logging"
	"tg_notify_relay_bot/internal/session"
)

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
		"my_chat_member",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

type identityResolver interface {
	Resolve(ctx context.Context, actorID int64) (domain.User, error)
}

type userRegistry interface {
	identityResolver
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, userID int64) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type groupDirectory interface {
	RegisterChat(ctx context.Context, chatID int64, title string) (bool, error)
	CreateGroup(ctx context.Context, title string, creatorID int64) (domain.Group, error)
	AttachChat(ctx context.Context, groupTitle string, chatID int64) (domain.Chat, error)
	DetachChat(ctx context.Context, groupTitle string, chatID int64) error
	ListGroupsFor(ctx context.Context, userID int64) ([]domain.Group, error)
	ActiveMemberships(ctx context.Context, groupTitle string) ([]domain.Membership, error)
	DisconnectChat(ctx context.Context, chatID int64) (int64, error)
}

type broadcaster interface {
	Broadcast(ctx context.Context, groupTitle, text string) (broadcast.Result, error)
}

// Client wraps the Telegram bot instance and the collaborators the event
// handlers dispatch into.
type Client struct {
	bot        botAPI
	api        botAPI
	logger     *logrus.Entry
	registry   userRegistry
	directory  groupDirectory
	dispatcher broadcaster
	sessions   *session.Store
	logChatID  int64
}

// Option customizes a Client during construction.
type Option func(*Client)

// WithRegistry wires the user registry used for identity resolution and
// enrollment.
func WithRegistry(registry userRegistry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithDirectory wires the group/chat directory.
func WithDirectory(directory groupDirectory) Option {
	return func(c *Client) {
		c.directory = directory
	}
}

// WithDispatcher overrides the broadcast dispatcher; without it the client
// builds one over the directory and its own send primitive.
func WithDispatcher(dispatcher broadcaster) Option {
	return func(c *Client) {
		c.dispatcher = dispatcher
	}
}

// WithSessions overrides the pending-operation store.
func WithSessions(sessions *session.Store) Option {
	return func(c *Client) {
		c.sessions = sessions
	}
}

// NewClient initializes the Telegram bot with long polling and the relay's
// update handler.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{
		logger:    logger,
		logChatID: cfg.LogChatID,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.registry == nil {
		return nil, errors.New("user registry is required")
	}
	if client.directory == nil {
		return nil, errors.New("group directory is required")
	}
	if client.sessions == nil {
		client.sessions = session.NewStore(session.DefaultTTL)
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			client.handleUpdate(ctx, update)
		}),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	client.api = tgBot

	if client.dispatcher == nil {
		client.dispatcher = broadcast.New(client.directory, client, logger)
	}

	return client, nil
}

// Start begins receiving updates via long polling until the context is
// canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// Deliver sends one broadcast message to one chat; it is the dispatcher's
// delivery primitive.
func (c *Client) Deliver(ctx context.Context, chatID int64, text string) error {
	if _, err := c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("deliver to chat %d: %w", chatID, err)
	}

	return nil
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
