package tui

import (
	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/notify"
)

// ReplyMsg is sent when an assistant request completes.
type ReplyMsg struct {
	Reply chat.Message
	Err   error // storage failure; gateway failures arrive as an error reply
}

// SummaryMsg carries the result of /summary.
type SummaryMsg struct {
	Summary string
	Err     error
}

// NoticeMsg relays a notify.Center event into the program.
type NoticeMsg struct {
	Event notify.Event
}
