package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"campusres/internal/domain"
	"campusres/internal/ledger"
	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	answered int
	stopped  bool
}

func (c *fakeClient) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.updates
}

func (c *fakeClient) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return tgbotapi.Message{}, nil
}

func (c *fakeClient) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (c *fakeClient) StopReceivingUpdates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeClient) GetSelf() tgbotapi.User { return tgbotapi.User{UserName: "campus_bot"} }

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// last returns the text of the most recent message or edit.
func (c *fakeClient) last(t *testing.T) (string, *tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	switch m := c.sent[len(c.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		markup, _ := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		return m.Text, &markup
	case tgbotapi.EditMessageTextConfig:
		return m.Text, m.ReplyMarkup
	}
	t.Fatalf("unexpected chattable %T", c.sent[len(c.sent)-1])
	return "", nil
}

type stubUsers map[int64]*models.User

func (s stubUsers) ByTelegramChat(_ context.Context, chatID int64) (*models.User, error) {
	if u, ok := s[chatID]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

type stubReservations struct {
	list      []models.Reservation
	decideErr error
	decided   []string
	panicOn   bool
}

func (s *stubReservations) ForRequester(_ context.Context, userID int64) ([]models.Reservation, error) {
	if s.panicOn {
		panic("boom")
	}
	var out []models.Reservation
	for _, r := range s.list {
		if r.RequesterID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubReservations) Pending(context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range s.list {
		if r.Status == models.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubReservations) Approve(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	return s.decide(id, actorID, models.StatusApproved)
}

func (s *stubReservations) Reject(ctx context.Context, id, actorID int64) (*models.Reservation, error) {
	return s.decide(id, actorID, models.StatusRejected)
}

func (s *stubReservations) decide(id, actorID int64, status models.ReservationStatus) (*models.Reservation, error) {
	if s.decideErr != nil {
		return nil, s.decideErr
	}
	s.decided = append(s.decided, fmt.Sprintf("%d:%s:%d", id, status, actorID))
	for i := range s.list {
		if s.list[i].ID == id {
			s.list[i].Status = status
			r := s.list[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubReservations) ResourceName(_ context.Context, ref models.ResourceRef) string {
	return fmt.Sprintf("Room_%d", ref.ID())
}

func (s *stubReservations) UserName(_ context.Context, id int64) string {
	return fmt.Sprintf("user %d", id)
}

type stubDashboard struct{}

func (stubDashboard) Metrics(context.Context) (models.DashboardMetrics, error) {
	return models.DashboardMetrics{PendingReservations: 3, SpacesOccupied: 1, EquipmentInUse: 2, OpenReports: 4}, nil
}

const (
	adminChat     = 100
	requesterChat = 200
	strangerChat  = 300
)

func newTestBot(t *testing.T) (*Bot, *fakeClient, *stubReservations) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	client := &fakeClient{updates: make(chan tgbotapi.Update, 4)}

	base := time.Date(2030, 3, 11, 9, 0, 0, 0, time.UTC)
	res := &stubReservations{}
	for i := 1; i <= 7; i++ {
		res.list = append(res.list, models.Reservation{
			ID:          int64(i),
			Resource:    models.SpaceRef(int64(i)),
			RequesterID: 2,
			StartTime:   base.Add(time.Duration(i) * time.Hour),
			EndTime:     base.Add(time.Duration(i+1) * time.Hour),
			Status:      models.StatusPending,
		})
	}

	users := stubUsers{
		adminChat:     {ID: 1, FullName: "Admin", Role: models.RoleAdmin, TelegramChatID: adminChat},
		requesterChat: {ID: 2, FullName: "Alice", Role: models.RoleRequester, TelegramChatID: requesterChat},
	}
	return New(client, res, users, stubDashboard{}, 3, &logger), client, res
}

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chatID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestStartCommand(t *testing.T) {
	b, client, _ := newTestBot(t)
	ctx := context.Background()

	b.processUpdate(ctx, command(requesterChat, "/start"))
	text, _ := client.last(t)
	assert.Contains(t, text, "Hello, Alice!")
	assert.Contains(t, text, "/mine")
	assert.NotContains(t, text, "/pending")

	b.processUpdate(ctx, command(adminChat, "/help"))
	text, _ = client.last(t)
	assert.Contains(t, text, "/pending")

	b.processUpdate(ctx, command(strangerChat, "/start"))
	text, _ = client.last(t)
	assert.Contains(t, text, "not linked")
	assert.Contains(t, text, "300")
}

func TestMineIsPaginated(t *testing.T) {
	b, client, _ := newTestBot(t)
	ctx := context.Background()

	b.processUpdate(ctx, command(requesterChat, "/mine"))
	text, markup := client.last(t)
	assert.Contains(t, text, "Page 1 of 3")
	assert.Contains(t, text, `Room\_1`)
	assert.NotContains(t, text, `Room\_4`)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "mine_page:1", *markup.InlineKeyboard[0][0].CallbackData)

	b.processUpdate(ctx, callback(requesterChat, "mine_page:2"))
	text, markup = client.last(t)
	assert.Contains(t, text, "Page 3 of 3")
	assert.Contains(t, text, `Room\_7`)
	require.NotNil(t, markup)
	assert.Equal(t, "mine_page:1", *markup.InlineKeyboard[0][0].CallbackData)

	// номер страницы за пределами списка прижимается к последней
	b.processUpdate(ctx, callback(requesterChat, "mine_page:9"))
	text, _ = client.last(t)
	assert.Contains(t, text, "Page 3 of 3")
	assert.Equal(t, 2, client.answered)
}

func TestPendingRequiresAdmin(t *testing.T) {
	b, client, res := newTestBot(t)
	ctx := context.Background()

	b.processUpdate(ctx, command(requesterChat, "/pending"))
	text, _ := client.last(t)
	assert.Contains(t, text, "administrators")

	b.processUpdate(ctx, callback(requesterChat, "approve:1"))
	text, _ = client.last(t)
	assert.Contains(t, text, "administrators")
	assert.Empty(t, res.decided)

	b.processUpdate(ctx, command(strangerChat, "/pending"))
	text, _ = client.last(t)
	assert.Contains(t, text, "not linked")
}

func TestAdminDecides(t *testing.T) {
	b, client, res := newTestBot(t)
	ctx := context.Background()

	b.processUpdate(ctx, command(adminChat, "/pending"))
	text, markup := client.last(t)
	assert.Contains(t, text, "Pending reservations")
	assert.Contains(t, text, "user 2")
	require.NotNil(t, markup)
	assert.Equal(t, "approve:1", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reject:1", *markup.InlineKeyboard[0][1].CallbackData)

	b.processUpdate(ctx, callback(adminChat, "approve:1"))
	text, _ = client.last(t)
	assert.Contains(t, text, "#1 is now *approved*")

	b.processUpdate(ctx, callback(adminChat, "reject:2"))
	text, _ = client.last(t)
	assert.Contains(t, text, "#2 is now *rejected*")
	assert.Equal(t, []string{"1:approved:1", "2:rejected:1"}, res.decided)

	res.decideErr = &ledger.ConflictError{Resource: models.SpaceRef(3), ReservationID: 9}
	b.processUpdate(ctx, callback(adminChat, "approve:3"))
	text, _ = client.last(t)
	assert.Contains(t, text, "already booked")

	res.decideErr = fmt.Errorf("reservation 99: %w", domain.ErrNotFound)
	b.processUpdate(ctx, callback(adminChat, "reject:99"))
	text, _ = client.last(t)
	assert.Contains(t, text, "not found")
}

func TestDashboardCommand(t *testing.T) {
	b, client, _ := newTestBot(t)

	b.processUpdate(context.Background(), command(adminChat, "/dashboard"))
	text, _ := client.last(t)
	assert.Contains(t, text, "Pending requests: 3")
	assert.Contains(t, text, "Open reports: 4")
}

func TestMalformedCallbackIgnored(t *testing.T) {
	b, client, res := newTestBot(t)

	b.processUpdate(context.Background(), callback(adminChat, "approve:abc"))
	assert.Equal(t, 0, client.count())
	assert.Equal(t, 1, client.answered)
	assert.Empty(t, res.decided)
}

func TestPanicIsRecovered(t *testing.T) {
	b, _, res := newTestBot(t)
	res.panicOn = true

	assert.NotPanics(t, func() {
		b.processUpdate(context.Background(), command(requesterChat, "/mine"))
	})
}

func TestStartStopsWithContext(t *testing.T) {
	b, client, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	client.updates <- command(requesterChat, "/start")
	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	client.mu.Lock()
	assert.True(t, client.stopped)
	client.mu.Unlock()
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, errorText(&ledger.DecidedError{ReservationID: 3, Status: models.StatusApproved}), "already decided")
	assert.Contains(t, errorText(&ledger.ValidationError{Field: "status", Reason: "bad"}), "invalid status")
	assert.Contains(t, errorText(errors.New("db down")), "Something went wrong")
}
