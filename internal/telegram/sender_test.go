package telegram

import (
	"context"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI fails the first failures calls, then succeeds.
type fakeAPI struct {
	calls    int
	failures int
	lastMsg  tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.lastMsg = msg
	}
	if f.calls <= f.failures {
		return tgbotapi.Message{}, fmt.Errorf("telegram: 502 bad gateway")
	}
	return tgbotapi.Message{MessageID: f.calls}, nil
}

func TestSendSucceedsFirstTry(t *testing.T) {
	api := &fakeAPI{}
	sender := NewSender(api, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	id, err := sender.Send(context.Background(), 42, "<b>hello</b>", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, api.calls)
	assert.EqualValues(t, 42, api.lastMsg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, api.lastMsg.ParseMode)
}

func TestSendRetriesTransientFailures(t *testing.T) {
	api := &fakeAPI{failures: 2}
	sender := NewSender(api, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	id, err := sender.Send(context.Background(), 42, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, api.calls)
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	api := &fakeAPI{failures: 10}
	sender := NewSender(api, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	_, err := sender.Send(context.Background(), 42, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 3, api.calls)
	assert.Contains(t, err.Error(), "502")
}

func TestSendHonorsCancelledContext(t *testing.T) {
	api := &fakeAPI{failures: 10}
	sender := NewSender(api, RetryPolicy{MaxAttempts: 5, Backoff: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sender.Send(ctx, 42, "hello", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.calls)
}

func TestZeroPolicyFallsBackToDefault(t *testing.T) {
	api := &fakeAPI{failures: 10}
	sender := NewSender(api, RetryPolicy{})

	_, err := sender.Send(context.Background(), 42, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, DefaultRetryPolicy.MaxAttempts, api.calls)
}
