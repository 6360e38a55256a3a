package filters

import "gitlab.com/yelinaung/tgbot/telegram"

func status(name string, fn func(m *telegram.Message) bool) Filter {
	return NewMessageFilter("filters.StatusUpdate."+name, fn)
}

// Service message filters.
var (
	StatusNewChatMembers  = status("NewChatMembers", func(m *telegram.Message) bool { return len(m.NewChatMembers) > 0 })
	StatusLeftChatMember  = status("LeftChatMember", func(m *telegram.Message) bool { return m.LeftChatMember != nil })
	StatusNewChatTitle    = status("NewChatTitle", func(m *telegram.Message) bool { return m.NewChatTitle != "" })
	StatusNewChatPhoto    = status("NewChatPhoto", func(m *telegram.Message) bool { return len(m.NewChatPhoto) > 0 })
	StatusDeleteChatPhoto = status("DeleteChatPhoto", func(m *telegram.Message) bool { return m.DeleteChatPhoto })
	StatusChatCreated     = status("ChatCreated", func(m *telegram.Message) bool {
		return m.GroupChatCreated || m.SupergroupChatCreated || m.ChannelChatCreated
	})
	StatusMessageAutoDeleteTimerChanged = status("MessageAutoDeleteTimerChanged", func(m *telegram.Message) bool {
		return m.MessageAutoDeleteTimerChanged != nil
	})
	StatusMigrate = status("Migrate", func(m *telegram.Message) bool {
		return m.MigrateToChatID != 0 || m.MigrateFromChatID != 0
	})
	StatusPinnedMessage           = status("PinnedMessage", func(m *telegram.Message) bool { return m.PinnedMessage != nil })
	StatusConnectedWebsite        = status("ConnectedWebsite", func(m *telegram.Message) bool { return m.ConnectedWebsite != "" })
	StatusProximityAlertTriggered = status("ProximityAlertTriggered", func(m *telegram.Message) bool { return m.ProximityAlertTriggered != nil })
	StatusBoostAdded              = status("BoostAdded", func(m *telegram.Message) bool { return m.BoostAdded != nil })
	StatusWebAppData              = status("WebAppData", func(m *telegram.Message) bool { return m.WebAppData != nil })
	StatusUsersShared             = status("UsersShared", func(m *telegram.Message) bool { return m.UsersShared != nil })
	StatusChatShared              = status("ChatShared", func(m *telegram.Message) bool { return m.ChatShared != nil })
	StatusWriteAccessAllowed      = status("WriteAccessAllowed", func(m *telegram.Message) bool { return m.WriteAccessAllowed != nil })

	StatusVideoChatScheduled           = status("VideoChatScheduled", func(m *telegram.Message) bool { return m.VideoChatScheduled != nil })
	StatusVideoChatStarted             = status("VideoChatStarted", func(m *telegram.Message) bool { return m.VideoChatStarted != nil })
	StatusVideoChatEnded               = status("VideoChatEnded", func(m *telegram.Message) bool { return m.VideoChatEnded != nil })
	StatusVideoChatParticipantsInvited = status("VideoChatParticipantsInvited", func(m *telegram.Message) bool {
		return m.VideoChatParticipantsInvited != nil
	})

	StatusForumTopicCreated         = status("ForumTopicCreated", func(m *telegram.Message) bool { return m.ForumTopicCreated != nil })
	StatusForumTopicEdited          = status("ForumTopicEdited", func(m *telegram.Message) bool { return m.ForumTopicEdited != nil })
	StatusForumTopicClosed          = status("ForumTopicClosed", func(m *telegram.Message) bool { return m.ForumTopicClosed != nil })
	StatusForumTopicReopened        = status("ForumTopicReopened", func(m *telegram.Message) bool { return m.ForumTopicReopened != nil })
	StatusGeneralForumTopicHidden   = status("GeneralForumTopicHidden", func(m *telegram.Message) bool { return m.GeneralForumTopicHidden != nil })
	StatusGeneralForumTopicUnhidden = status("GeneralForumTopicUnhidden", func(m *telegram.Message) bool {
		return m.GeneralForumTopicUnhidden != nil
	})

	StatusGiveawayCreated   = status("GiveawayCreated", func(m *telegram.Message) bool { return m.GiveawayCreated != nil })
	StatusGiveaway          = status("Giveaway", func(m *telegram.Message) bool { return m.Giveaway != nil })
	StatusGiveawayWinners   = status("GiveawayWinners", func(m *telegram.Message) bool { return m.GiveawayWinners != nil })
	StatusGiveawayCompleted = status("GiveawayCompleted", func(m *telegram.Message) bool { return m.GiveawayCompleted != nil })
)

var statusFilters = []Filter{
	StatusNewChatMembers, StatusLeftChatMember, StatusNewChatTitle, StatusNewChatPhoto,
	StatusDeleteChatPhoto, StatusChatCreated, StatusMessageAutoDeleteTimerChanged, StatusMigrate,
	StatusPinnedMessage, StatusConnectedWebsite, StatusProximityAlertTriggered, StatusBoostAdded,
	StatusWebAppData, StatusUsersShared, StatusChatShared, StatusWriteAccessAllowed,
	StatusVideoChatScheduled, StatusVideoChatStarted, StatusVideoChatEnded, StatusVideoChatParticipantsInvited,
	StatusForumTopicCreated, StatusForumTopicEdited, StatusForumTopicClosed, StatusForumTopicReopened,
	StatusGeneralForumTopicHidden, StatusGeneralForumTopicUnhidden,
	StatusGiveawayCreated, StatusGiveaway, StatusGiveawayWinners, StatusGiveawayCompleted,
}

// StatusUpdate matches any service message.
var StatusUpdate Filter = NewUpdateFilter("filters.StatusUpdate", func(u *telegram.Update) bool {
	for _, f := range statusFilters {
		if ok, _ := f.Check(u); ok {
			return true
		}
	}
	return false
})
