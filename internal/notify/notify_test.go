package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"campusres/internal/events"
	"campusres/internal/models"
	"campusres/internal/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) ReservationStatusChanged(context.Context, models.Reservation, string) error {
	r.calls++
	return r.err
}

func (r *recordingNotifier) ReportMessageAdded(context.Context, models.Report, models.ReportMessage) error {
	r.calls++
	return r.err
}

func approvedReservation() models.Reservation {
	start := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	return models.Reservation{
		ID:          7,
		Resource:    models.SpaceRef(2),
		RequesterID: 1,
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Status:      models.StatusApproved,
	}
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	logger := zerolog.Nop()
	broken := &recordingNotifier{err: errors.New("down")}
	ok := &recordingNotifier{}
	multi := NewMulti(&logger, Channel{Name: "broken", Notifier: broken}, Channel{Name: "ok", Notifier: ok})

	assert.Equal(t, 2, multi.Len())
	assert.NoError(t, multi.ReservationStatusChanged(context.Background(), approvedReservation(), "Aula Magna"))
	assert.NoError(t, multi.ReportMessageAdded(context.Background(), models.Report{ID: 1}, models.ReportMessage{}))
	assert.Equal(t, 2, broken.calls)
	assert.Equal(t, 2, ok.calls)
}

func TestLogNotifier(t *testing.T) {
	logger := zerolog.Nop()
	n := NewLogNotifier(&logger)
	assert.NoError(t, n.ReservationStatusChanged(context.Background(), approvedReservation(), "Aula Magna"))
	assert.NoError(t, n.ReportMessageAdded(context.Background(), models.Report{ID: 1}, models.ReportMessage{AuthorID: 2}))
}

func TestAMQPNotifier(t *testing.T) {
	logger := zerolog.Nop()
	ch := &fakeChannel{}
	n := newAMQPNotifier(ch, "campusres.notifications", &logger)
	n.now = func() time.Time { return time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC) }

	t.Run("ReservationApproved", func(t *testing.T) {
		require.NoError(t, n.ReservationStatusChanged(context.Background(), approvedReservation(), "Aula Magna"))
		require.Len(t, ch.published, 1)

		msg := ch.published[0]
		assert.Equal(t, "campusres.notifications", ch.keys[0])
		assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
		assert.Equal(t, events.EventReservationApproved, msg.Type)
		assert.NotEmpty(t, msg.MessageId)

		var payload events.ReservationEventPayload
		require.NoError(t, json.Unmarshal(msg.Body, &payload))
		assert.Equal(t, int64(7), payload.ReservationID)
		assert.Equal(t, "space", payload.ResourceKind)
		assert.Equal(t, "Aula Magna", payload.ResourceName)
	})

	t.Run("ReservationRejected", func(t *testing.T) {
		r := approvedReservation()
		r.Status = models.StatusRejected
		require.NoError(t, n.ReservationStatusChanged(context.Background(), r, "Aula Magna"))
		assert.Equal(t, events.EventReservationRejected, ch.published[len(ch.published)-1].Type)
	})

	t.Run("ReportMessage", func(t *testing.T) {
		err := n.ReportMessageAdded(context.Background(),
			models.Report{ID: 3, Title: "Projector", RequesterID: 1, Status: models.ReportOpen},
			models.ReportMessage{AuthorID: 2, Text: "fixed"})
		require.NoError(t, err)

		var payload events.ReportEventPayload
		require.NoError(t, json.Unmarshal(ch.published[len(ch.published)-1].Body, &payload))
		assert.Equal(t, "fixed", payload.Message)
		assert.Equal(t, int64(2), payload.AuthorID)
	})

	t.Run("PublishError", func(t *testing.T) {
		failing := newAMQPNotifier(&fakeChannel{err: errors.New("channel closed")}, "q", &logger)
		assert.Error(t, failing.ReservationStatusChanged(context.Background(), approvedReservation(), "x"))
	})

	require.NoError(t, n.Close())
	assert.True(t, ch.closed)
}

func TestTelegramNotifier(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	users := repository.NewMemoryUserRepository()
	require.NoError(t, users.CreateUser(ctx, &models.User{ID: 1, Email: "maria@campus.edu", Role: models.RoleRequester, TelegramChatID: 555}))
	require.NoError(t, users.CreateUser(ctx, &models.User{ID: 2, Email: "nochat@campus.edu", Role: models.RoleRequester}))

	t.Run("SendsToLinkedChat", func(t *testing.T) {
		bot := new(mockSender)
		bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ChatID == 555 && msg.ParseMode == tgbotapi.ModeMarkdown
		})).Return(tgbotapi.Message{}, nil).Once()

		n := NewTelegramNotifier(bot, users, &logger)
		require.NoError(t, n.ReservationStatusChanged(ctx, approvedReservation(), "Aula Magna"))
		bot.AssertExpectations(t)
	})

	t.Run("SkipsPending", func(t *testing.T) {
		bot := new(mockSender)
		n := NewTelegramNotifier(bot, users, &logger)
		r := approvedReservation()
		r.Status = models.StatusPending
		require.NoError(t, n.ReservationStatusChanged(ctx, r, "Aula Magna"))
		bot.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("SkipsUnlinkedUser", func(t *testing.T) {
		bot := new(mockSender)
		n := NewTelegramNotifier(bot, users, &logger)
		require.NoError(t, n.ReportMessageAdded(ctx, models.Report{ID: 1, RequesterID: 2}, models.ReportMessage{Text: "hi"}))
		bot.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("SendError", func(t *testing.T) {
		bot := new(mockSender)
		bot.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("forbidden"))
		n := NewTelegramNotifier(bot, users, &logger)
		assert.Error(t, n.ReportMessageAdded(ctx, models.Report{ID: 1, RequesterID: 1}, models.ReportMessage{Text: "hi"}))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		n := NewTelegramNotifier(new(mockSender), users, &logger)
		assert.Error(t, n.ReservationStatusChanged(ctx, models.Reservation{RequesterID: 99, Status: models.StatusApproved}, "x"))
	})
}
