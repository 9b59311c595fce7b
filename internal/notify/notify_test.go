package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInbox_DrainEmptiesBuffer(t *testing.T) {
	inbox := NewInbox(0)
	inbox.Notify(Notice{Level: LevelWarning, Message: "a"})
	inbox.Notify(Notice{Level: LevelError, Message: "b"})

	assert.Len(t, inbox.Peek(), 2)
	drained := inbox.Drain()
	assert.Equal(t, "a", drained[0].Message)
	assert.Equal(t, "b", drained[1].Message)
	assert.Empty(t, inbox.Drain())
}

func TestInbox_KeepsNewestWhenFull(t *testing.T) {
	inbox := NewInbox(2)
	for _, m := range []string{"1", "2", "3"} {
		inbox.Notify(Notice{Message: m})
	}

	got := inbox.Drain()
	assert.Equal(t, []Notice{{Message: "2"}, {Message: "3"}}, got)
}

func TestLogged_ForwardsToNext(t *testing.T) {
	inbox := NewInbox(0)
	logged := NewLogged(inbox, zap.NewNop())

	logged.Notify(Notice{Message: "hello"})

	assert.Len(t, inbox.Peek(), 1)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	inbox := NewInbox(0)
	n, ok := FromContext(WithContext(context.Background(), inbox))
	assert.True(t, ok)
	n.Notify(Notice{Level: LevelInfo, Message: "saved"})
	assert.Len(t, inbox.Peek(), 1)
}
