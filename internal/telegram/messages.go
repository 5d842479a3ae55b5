package telegram

// User-visible texts. The prompts no longer drive routing (the pending-
// operation store does), but they remain the conversational surface of each
// multi-step flow.
const (
	promptNewGroupTitle = "Send me the title of the new group."
	promptChatIDToAdd   = "Send me the chat ID to add to group %s"
	promptBroadcastText = "Send me the message to broadcast to group %s"
	promptChatIDToDrop  = "Send me the chat ID to remove from group %s"
	promptNewUserID     = "Send me the id of the new user"
	promptNewUserName   = "Now send me the full name of the new user."
	promptNewUserRole   = "Choose the role of the new user."
	promptDeleteUserID  = "Send me the id of the user to delete"

	chooseGroupToAttach    = "Choose the group to add the chat to:"
	chooseGroupToDetach    = "Choose the group to remove the chat from:"
	chooseGroupToBroadcast = "Choose the group to send your message to:"

	msgWelcome = "Hello! I am the notification relay bot: IT staff use me to announce important events in the systems you rely on. Chat ID: %d. Tell this ID to the bot administrator."

	msgUnknownActor   = "You are not allowed to message this bot!"
	msgGroupOrigin    = "The bot cannot be messaged from a group chat!"
	msgNoGroupRights  = "You do not have permission to manage groups!"
	msgNoUserRights   = "You do not have permission to manage users!"
	msgBadID          = "The ID may contain only digits and an optional leading minus, please check and resend."
	msgNoGroups       = "You are not associated with any group yet."
	msgGroupCreated   = "Group '%s' added!"
	msgGroupExists    = "Group '%s' was already added earlier!"
	msgChatAttached   = "Chat '%s' added to group '%s'!"
	msgChatIsAttached = "Chat '%s' was already added to group '%s' earlier!"
	msgChatDetached   = "Chat '%s' removed from group '%s'!"
	msgChatNotInGroup = "Chat '%s' was already removed from group '%s' or never added to it!"
	msgGroupUnknown   = "Group '%s' does not exist."
	msgUserSaved      = "User added!"
	msgUserExists     = "A user with this id already exists!"
	msgUserDeleted    = "User deleted!"
	msgUserUnknown    = "No user with id %d was found."
	msgUserListHeader = "List of users:"
	msgBroadcastDone  = "Message sent to group %s: delivered to %d of %d chats."
	msgBroadcastFails = " %d deliveries failed."
	msgOopsTryAgain   = "Something went wrong, please try again later."

	msgHelp = "Hi! Here is what I can do:\n" +
		"/sendnewsletter - broadcast a message to a group\n" +
		"/addgroup - add a distribution group\n" +
		"/addchattogroup - add a chat to a distribution group\n" +
		"/removechatfromgroup - remove a chat from a distribution group\n" +
		"/adduser - add a user\n" +
		"/deleteuser - delete a user\n" +
		"/getlistofusers - list the registered users\n"
)

// Audit notification texts sent to the fixed log chat.
const (
	auditChatConnected = "%s connected chat '%s' to the bot!"
	auditGroupCreated  = "Group '%s' added!"
	auditChatAttached  = "%s added chat '%s' to group '%s'!"
	auditChatDetached  = "%s removed chat '%d' from group '%s'!"
	auditUserDeleted   = "%s deleted user %s"
)
