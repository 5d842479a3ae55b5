package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_notify_relay_bot/internal/domain"
	"tg_notify_relay_bot/internal/logging"
	"tg_notify_relay_bot/internal/session"
)

// Top-level commands. Anything else falls through to the help listing.
const (
	cmdAddGroup        = "/addgroup"
	cmdAttachChat      = "/addchattogroup"
	cmdBroadcast       = "/sendnewsletter"
	cmdDetachChat      = "/removechatfromgroup"
	cmdListUsers       = "/getlistofusers"
	cmdAddUser         = "/adduser"
	cmdDeleteUser      = "/deleteuser"
	chatTypePrivate    = "private"
	chatTypeGroup      = "group"
	chatTypeSupergroup = "supergroup"
)

// handleUpdate is the top-level event handler. Unexpected failures are caught
// here: the event is dropped and logged, the process never crashes.
func (c *Client) handleUpdate(ctx context.Context, update *models.Update) {
	if update == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logging.Fields{
				"event":     "handler_panic",
				"update_id": update.ID,
				"panic":     fmt.Sprintf("%v", r),
			}).Error("dropped update after panic")
		}
	}()

	switch {
	case update.MyChatMember != nil:
		c.handleChatMembership(ctx, update.MyChatMember)
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, update.CallbackQuery)
	default:
		c.logger.WithFields(logging.Fields{
			"event":     "telegram_update_ignored",
			"update_id": update.ID,
		}).Debug("ignoring unsupported update type")
	}
}

// handleChatMembership reacts to the bot being added to or removed from a
// chat. Removal cascades a soft delete over every membership of that chat.
func (c *Client) handleChatMembership(ctx context.Context, ev *models.ChatMemberUpdated) {
	chatID := ev.Chat.ID

	switch ev.NewChatMember.Type {
	case models.ChatMemberTypeLeft, models.ChatMemberTypeBanned:
		removed, err := c.directory.DisconnectChat(ctx, chatID)
		if err != nil {
			c.logger.WithError(err).WithField("chat_id", chatID).Error("failed to disconnect removed chat")
			return
		}
		c.logger.WithFields(logging.Fields{
			"event":       "bot_removed_from_chat",
			"chat_id":     chatID,
			"memberships": removed,
		}).Info("bot removed from chat")
	default:
		if _, err := c.directory.RegisterChat(ctx, chatID, ev.Chat.Title); err != nil {
			c.logger.WithError(err).WithField("chat_id", chatID).Error("failed to register chat")
			return
		}

		c.sendText(ctx, chatID, fmt.Sprintf(msgWelcome, chatID), nil)
		c.audit(ctx, auditChatConnected, actorName(&ev.From), ev.Chat.Title)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *models.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	chatID := msg.Chat.ID

	// Direct commands only; group chats are broadcast targets, not consoles.
	if msg.Chat.Type == chatTypeGroup || msg.Chat.Type == chatTypeSupergroup {
		c.sendText(ctx, chatID, msgGroupOrigin, nil)
		return
	}

	actorID := userID(msg.From)
	if actorID == 0 {
		actorID = chatID
	}

	user, err := c.registry.Resolve(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			c.sendText(ctx, chatID, msgUnknownActor, nil)
			return
		}
		c.logger.WithError(err).WithField("actor_id", actorID).Error("identity resolution failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
		return
	}

	if strings.HasPrefix(text, "/") {
		// A fresh command abandons whatever operation was in flight.
		c.sessions.Clear(actorID)
		c.handleCommand(ctx, user, chatID, text)
		return
	}

	if pending, ok := c.sessions.Get(actorID); ok {
		c.continueFlow(ctx, user, chatID, text, pending)
		return
	}

	c.sendHelp(ctx, chatID)
}

func (c *Client) handleCommand(ctx context.Context, user domain.User, chatID int64, command string) {
	switch command {
	case cmdAddGroup:
		if !user.Role.CanManageGroups() {
			c.sendText(ctx, chatID, msgNoGroupRights, nil)
			return
		}
		c.sessions.Begin(user.UserID, session.Pending{Kind: session.KindAddGroup})
		c.sendText(ctx, chatID, promptNewGroupTitle, forceReply())

	case cmdAttachChat:
		c.beginGroupChoice(ctx, user, chatID, session.KindAttachChat)

	case cmdDetachChat:
		c.beginGroupChoice(ctx, user, chatID, session.KindDetachChat)

	case cmdBroadcast:
		c.beginGroupChoice(ctx, user, chatID, session.KindBroadcast)

	case cmdListUsers:
		users, err := c.registry.List(ctx)
		if err != nil {
			c.logger.WithError(err).Error("failed to list users")
			c.sendText(ctx, chatID, msgOopsTryAgain, nil)
			return
		}
		c.sendText(ctx, chatID, formatUserList(users), nil)

	case cmdAddUser:
		if !user.Role.CanManageUsers() {
			c.sendText(ctx, chatID, msgNoUserRights, nil)
			return
		}
		c.sessions.Begin(user.UserID, session.Pending{Kind: session.KindEnrollID})
		c.sendText(ctx, chatID, promptNewUserID, forceReply())

	case cmdDeleteUser:
		if !user.Role.CanManageUsers() {
			c.sendText(ctx, chatID, msgNoUserRights, nil)
			return
		}
		c.sessions.Begin(user.UserID, session.Pending{Kind: session.KindDeleteUser})
		c.sendText(ctx, chatID, promptDeleteUserID, forceReply())

	default:
		c.sendHelp(ctx, chatID)
	}
}

// beginGroupChoice starts the two-phase group-targeted flows: the command
// presents a keyboard of the actor's groups, the button callback picks one.
func (c *Client) beginGroupChoice(ctx context.Context, user domain.User, chatID int64, kind session.Kind) {
	if !roleAllows(kind, user.Role) {
		c.sendText(ctx, chatID, denialMessage(kind), nil)
		return
	}

	c.typing(ctx, chatID)

	groups, err := c.directory.ListGroupsFor(ctx, user.UserID)
	if err != nil {
		c.logger.WithError(err).WithField("actor_id", user.UserID).Error("failed to list groups")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
		return
	}
	if len(groups) == 0 {
		c.sendText(ctx, chatID, msgNoGroups, nil)
		return
	}

	c.sessions.Begin(user.UserID, session.Pending{Kind: kind})
	c.sendText(ctx, chatID, groupChoicePrompt(kind), groupKeyboard(groups))
}

// continueFlow advances the actor's pending multi-step operation with a text
// reply. The role gate is evaluated fresh on every step, not only at entry.
func (c *Client) continueFlow(ctx context.Context, user domain.User, chatID int64, text string, pending session.Pending) {
	actorID := user.UserID

	if !roleAllows(pending.Kind, user.Role) {
		c.sessions.Clear(actorID)
		c.sendText(ctx, chatID, denialMessage(pending.Kind), nil)
		return
	}

	if pending.AwaitingGroupChoice() {
		// The group is picked with a button, not typed; repeat the keyboard.
		groups, err := c.directory.ListGroupsFor(ctx, actorID)
		if err != nil {
			c.logger.WithError(err).WithField("actor_id", actorID).Error("failed to list groups")
			c.sessions.Clear(actorID)
			c.sendText(ctx, chatID, msgOopsTryAgain, nil)
			return
		}
		if len(groups) == 0 {
			c.sessions.Clear(actorID)
			c.sendText(ctx, chatID, msgNoGroups, nil)
			return
		}
		c.sendText(ctx, chatID, groupChoicePrompt(pending.Kind), groupKeyboard(groups))
		return
	}

	switch pending.Kind {
	case session.KindAddGroup:
		c.finishAddGroup(ctx, user, chatID, text)

	case session.KindAttachChat:
		targetID, ok := c.requireID(ctx, chatID, text)
		if !ok {
			return // pending step is not consumed by a failed validation
		}
		c.finishAttachChat(ctx, user, chatID, pending.GroupTitle, targetID)

	case session.KindDetachChat:
		targetID, ok := c.requireID(ctx, chatID, text)
		if !ok {
			return
		}
		c.finishDetachChat(ctx, user, chatID, pending.GroupTitle, targetID)

	case session.KindBroadcast:
		c.finishBroadcast(ctx, user, chatID, pending.GroupTitle, text)

	case session.KindEnrollID:
		targetID, ok := c.requireID(ctx, chatID, text)
		if !ok {
			return
		}
		c.sessions.Advance(actorID, session.Pending{Kind: session.KindEnrollName, UserID: targetID})
		c.sendText(ctx, chatID, promptNewUserName, forceReply())

	case session.KindEnrollName:
		name := strings.TrimSpace(text)
		if name == "" {
			c.sendText(ctx, chatID, promptNewUserName, forceReply())
			return
		}
		c.sessions.Advance(actorID, session.Pending{Kind: session.KindEnrollRole, UserID: pending.UserID, FullName: name})
		c.sendText(ctx, chatID, promptNewUserRole, roleKeyboard())

	case session.KindEnrollRole:
		// The role is picked with a button, not typed.
		c.sendText(ctx, chatID, promptNewUserRole, roleKeyboard())

	case session.KindDeleteUser:
		targetID, ok := c.requireID(ctx, chatID, text)
		if !ok {
			return
		}
		c.finishDeleteUser(ctx, user, chatID, targetID)

	default:
		c.sessions.Clear(actorID)
		c.sendHelp(ctx, chatID)
	}
}

func (c *Client) handleCallback(ctx context.Context, cb *models.CallbackQuery) {
	defer c.answerCallback(ctx, cb.ID)

	actorID := cb.From.ID
	chatID := messageChatID(cb.Message)
	if chatID == 0 {
		chatID = actorID
	}

	user, err := c.registry.Resolve(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			c.sendText(ctx, chatID, msgUnknownActor, nil)
			return
		}
		c.logger.WithError(err).WithField("actor_id", actorID).Error("identity resolution failed")
		return
	}

	pending, ok := c.sessions.Get(actorID)
	if !ok {
		c.logger.WithFields(logging.Fields{
			"event":    "stale_callback",
			"actor_id": actorID,
		}).Debug("callback without a pending operation")
		return
	}

	if !roleAllows(pending.Kind, user.Role) {
		c.sessions.Clear(actorID)
		c.sendText(ctx, chatID, denialMessage(pending.Kind), nil)
		return
	}

	switch {
	case pending.AwaitingGroupChoice():
		pending.GroupTitle = cb.Data
		c.sessions.Advance(actorID, pending)
		c.sendText(ctx, chatID, fmt.Sprintf(groupTargetPrompt(pending.Kind), cb.Data), forceReply())

	case pending.Kind == session.KindEnrollRole:
		role, err := domain.ParseRole(cb.Data)
		if err != nil {
			c.logger.WithField("data", cb.Data).Warn("callback carried an unknown role")
			return
		}
		c.finishEnrollment(ctx, chatID, actorID, pending, role)

	default:
		c.logger.WithFields(logging.Fields{
			"event":    "unexpected_callback",
			"actor_id": actorID,
		}).Debug("callback does not match the pending operation")
	}
}

func (c *Client) finishAddGroup(ctx context.Context, user domain.User, chatID int64, title string) {
	c.sessions.Clear(user.UserID)

	group, err := c.directory.CreateGroup(ctx, title, user.UserID)
	switch {
	case errors.Is(err, domain.ErrConflict):
		c.sendText(ctx, chatID, fmt.Sprintf(msgGroupExists, strings.TrimSpace(title)), nil)
	case errors.Is(err, domain.ErrValidation):
		c.sendText(ctx, chatID, promptNewGroupTitle, forceReply())
		c.sessions.Begin(user.UserID, session.Pending{Kind: session.KindAddGroup})
	case err != nil:
		c.logger.WithError(err).Error("group creation failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
	default:
		c.sendText(ctx, chatID, fmt.Sprintf(msgGroupCreated, group.Title), nil)
		c.audit(ctx, auditGroupCreated, group.Title)
	}
}

func (c *Client) finishAttachChat(ctx context.Context, user domain.User, chatID int64, groupTitle string, targetChatID int64) {
	c.sessions.Clear(user.UserID)

	chat, err := c.directory.AttachChat(ctx, groupTitle, targetChatID)
	switch {
	case errors.Is(err, domain.ErrConflict):
		c.sendText(ctx, chatID, fmt.Sprintf(msgChatIsAttached, chat.DisplayName(), groupTitle), nil)
	case errors.Is(err, domain.ErrNotFound):
		c.sendText(ctx, chatID, fmt.Sprintf(msgGroupUnknown, groupTitle), nil)
	case err != nil:
		c.logger.WithError(err).Error("chat attachment failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
	default:
		c.sendText(ctx, chatID, fmt.Sprintf(msgChatAttached, chat.DisplayName(), groupTitle), nil)
		c.audit(ctx, auditChatAttached, user.Name, chat.DisplayName(), groupTitle)
	}
}

func (c *Client) finishDetachChat(ctx context.Context, user domain.User, chatID int64, groupTitle string, targetChatID int64) {
	c.sessions.Clear(user.UserID)

	err := c.directory.DetachChat(ctx, groupTitle, targetChatID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.sendText(ctx, chatID, fmt.Sprintf(msgChatNotInGroup, strconv.FormatInt(targetChatID, 10), groupTitle), nil)
	case err != nil:
		c.logger.WithError(err).Error("chat detachment failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
	default:
		c.sendText(ctx, chatID, fmt.Sprintf(msgChatDetached, strconv.FormatInt(targetChatID, 10), groupTitle), nil)
		c.audit(ctx, auditChatDetached, user.Name, targetChatID, groupTitle)
	}
}

func (c *Client) finishBroadcast(ctx context.Context, user domain.User, chatID int64, groupTitle, text string) {
	c.sessions.Clear(user.UserID)

	result, err := c.dispatcher.Broadcast(ctx, groupTitle, text)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.sendText(ctx, chatID, fmt.Sprintf(msgGroupUnknown, groupTitle), nil)
		return
	case err != nil:
		c.logger.WithError(err).Error("broadcast run failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
		return
	}

	ack := fmt.Sprintf(msgBroadcastDone, groupTitle, result.Delivered, result.Total)
	if result.Failed > 0 {
		ack += fmt.Sprintf(msgBroadcastFails, result.Failed)
	}
	c.sendText(ctx, chatID, ack, nil)
}

func (c *Client) finishEnrollment(ctx context.Context, chatID, actorID int64, pending session.Pending, role domain.Role) {
	c.sessions.Clear(actorID)

	_, err := c.registry.Create(ctx, domain.User{
		UserID: pending.UserID,
		Name:   pending.FullName,
		Role:   role,
	})
	switch {
	case errors.Is(err, domain.ErrConflict):
		c.sendText(ctx, chatID, msgUserExists, nil)
	case err != nil:
		c.logger.WithError(err).Error("user enrollment failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
	default:
		c.sendText(ctx, chatID, msgUserSaved, nil)
	}
}

func (c *Client) finishDeleteUser(ctx context.Context, user domain.User, chatID, targetID int64) {
	c.sessions.Clear(user.UserID)

	removed, err := c.registry.Delete(ctx, targetID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.sendText(ctx, chatID, fmt.Sprintf(msgUserUnknown, targetID), nil)
	case err != nil:
		c.logger.WithError(err).Error("user deletion failed")
		c.sendText(ctx, chatID, msgOopsTryAgain, nil)
	default:
		c.sendText(ctx, chatID, msgUserDeleted, nil)
		c.audit(ctx, auditUserDeleted, user.Name, removed.Name)
	}
}

// requireID enforces the numeric-id format shared by the chat and user id
// prompts. A mismatch reports the format error and leaves the flow pending.
func (c *Client) requireID(ctx context.Context, chatID int64, text string) (int64, bool) {
	if !session.ValidIDText(text) {
		c.sendText(ctx, chatID, msgBadID, nil)
		return 0, false
	}

	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		c.sendText(ctx, chatID, msgBadID, nil)
		return 0, false
	}

	return id, true
}

func (c *Client) sendHelp(ctx context.Context, chatID int64) {
	c.typing(ctx, chatID)
	c.sendText(ctx, chatID, msgHelp, nil)
}

func (c *Client) sendText(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		c.logger.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}

// audit fans a notification out to the fixed log chat.
func (c *Client) audit(ctx context.Context, format string, args ...interface{}) {
	if c.logChatID == 0 {
		return
	}

	c.sendText(ctx, c.logChatID, fmt.Sprintf(format, args...), nil)
}

func (c *Client) typing(ctx context.Context, chatID int64) {
	if _, err := c.api.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	}); err != nil {
		c.logger.WithError(err).WithField("chat_id", chatID).Debug("failed to send typing action")
	}
}

func (c *Client) answerCallback(ctx context.Context, callbackID string) {
	if _, err := c.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	}); err != nil {
		c.logger.WithError(err).Debug("failed to answer callback query")
	}
}

// roleAllows is the per-operation role predicate. Group and membership
// mutations need admin; user registry mutations need exactly super admin;
// broadcasting and listing only need a known user.
func roleAllows(kind session.Kind, role domain.Role) bool {
	switch kind {
	case session.KindAddGroup, session.KindAttachChat, session.KindDetachChat:
		return role.CanManageGroups()
	case session.KindEnrollID, session.KindEnrollName, session.KindEnrollRole, session.KindDeleteUser:
		return role.CanManageUsers()
	default:
		return true
	}
}

func denialMessage(kind session.Kind) string {
	switch kind {
	case session.KindEnrollID, session.KindEnrollName, session.KindEnrollRole, session.KindDeleteUser:
		return msgNoUserRights
	default:
		return msgNoGroupRights
	}
}

func groupChoicePrompt(kind session.Kind) string {
	switch kind {
	case session.KindAttachChat:
		return chooseGroupToAttach
	case session.KindDetachChat:
		return chooseGroupToDetach
	default:
		return chooseGroupToBroadcast
	}
}

func groupTargetPrompt(kind session.Kind) string {
	switch kind {
	case session.KindAttachChat:
		return promptChatIDToAdd
	case session.KindDetachChat:
		return promptChatIDToDrop
	default:
		return promptBroadcastText
	}
}

func formatUserList(users []domain.User) string {
	var b strings.Builder
	b.WriteString(msgUserListHeader)
	for _, user := range users {
		fmt.Fprintf(&b, "\n%s (ID %d)", user.Name, user.UserID)
	}
	return b.String()
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func actorName(user *models.User) string {
	if user == nil {
		return "someone"
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return "someone"
	}
	return name
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
