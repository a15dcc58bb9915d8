package events

var BroadcastRequestedTopic = "BroadcastRequestedEvent"

type BroadcastRequested struct {
	AdminChatID int64
	Text        string
}
