// learnex/chat/thread.go
package chat

import (
	"sort"

	"learnex/learnex/types"
)

// sortThread orders messages by createdAt, keeping arrival order for equal
// timestamps. Applied on fetch and on live append so concurrent multi-device
// sends cannot leave the rendered list out of chronological order.
func sortThread(msgs []types.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// insertSorted appends msg at its chronological position. A message equal to
// or newer than the tail lands at the end, preserving arrival order for ties.
func insertSorted(msgs []types.Message, msg types.Message) []types.Message {
	i := sort.Search(len(msgs), func(i int) bool {
		return msg.CreatedAt.Before(msgs[i].CreatedAt)
	})
	msgs = append(msgs, types.Message{})
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = msg
	return msgs
}
