package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		text   string
		want   models.Screen
		wantOK bool
	}{
		{"Давай подышим", models.ScreenBreathing, true},
		{"Сделай паузу и почувствуй опору", models.ScreenPlacement, true},
		{"ДЫХАНИЕ поможет", models.ScreenBreathing, true},
		{"Расставь сферы вокруг себя", models.ScreenPlacement, true},
		{"Попробуем заземление", models.ScreenBreathing, true},
		{"Расскажи подробнее", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ClassifyReply(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func activeEngine(t *testing.T, fb *fakeBackend, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, fb, opts...)
	require.NoError(t, e.StartSession(context.Background(), "oasis", "Тревога", 7))
	return e
}

func TestSendChatDelivered(t *testing.T) {
	fb := newFakeBackend()
	e := activeEngine(t, fb)

	require.NoError(t, e.SendChat(context.Background(), "  Мне тревожно  "))

	st := e.Store().Snapshot()
	require.Len(t, st.Chat, 2)
	assert.Equal(t, models.RoleUser, st.Chat[0].Role)
	assert.Equal(t, "Мне тревожно", st.Chat[0].Text)
	assert.Equal(t, models.StatusDelivered, st.Chat[0].Status)
	assert.Equal(t, models.RoleAgent, st.Chat[1].Role)
	assert.Equal(t, "Я слышу тебя.", st.Chat[1].Text)
	assert.Equal(t, 1, st.DeliveredMessages)

	require.Len(t, fb.chats, 1)
	req := fb.chats[0]
	assert.Equal(t, "oasis", req.District)
	assert.Equal(t, "Тревога", req.Emotion)
	sess, ok := req.SessionContext.(models.Session)
	require.True(t, ok)
	assert.Equal(t, 7, sess.Intensity)
}

func TestSendChatWithoutSessionSendsEmptyContext(t *testing.T) {
	fb := newFakeBackend()
	e := newTestEngine(t, fb)

	require.NoError(t, e.SendChat(context.Background(), "Привет"))

	require.Len(t, fb.chats, 1)
	assert.Equal(t, map[string]any{}, fb.chats[0].SessionContext)
	assert.Empty(t, fb.chats[0].District)
}

func TestSendChatEchoIsPendingWhileInFlight(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		<-release
		return &api.ChatResponse{Response: "Ок"}, nil
	}
	e := activeEngine(t, fb)

	done := make(chan error, 1)
	go func() { done <- e.SendChat(context.Background(), "Мне тревожно") }()

	require.Eventually(t, func() bool { return fb.count("chat") == 1 }, time.Second, 5*time.Millisecond)
	st := e.Store().Snapshot()
	require.Len(t, st.Chat, 1)
	assert.Equal(t, models.StatusPending, st.Chat[0].Status)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, e.Store().Snapshot().Chat, 2)
}

func TestSendChatFailureAppendsFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"offline", errOffline, FallbackOffline},
		{"rejected", errRejected, FallbackRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend()
			fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) { return nil, tt.err }
			e := activeEngine(t, fb)

			err := e.SendChat(context.Background(), "Мне тревожно")
			require.ErrorIs(t, err, tt.err)

			st := e.Store().Snapshot()
			require.Len(t, st.Chat, 2, "every user turn gets an agent entry")
			assert.Equal(t, models.StatusFailed, st.Chat[0].Status)
			assert.Equal(t, "Мне тревожно", st.Chat[0].Text, "the user message is kept")
			assert.Equal(t, models.RoleAgent, st.Chat[1].Role)
			assert.Equal(t, tt.want, st.Chat[1].Text)
			assert.Zero(t, st.DeliveredMessages)
		})
	}
}

func TestSendChatRoundTripCompleteness(t *testing.T) {
	fb := newFakeBackend()
	turn := 0
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		turn++
		if turn%2 == 0 {
			return nil, errOffline
		}
		return &api.ChatResponse{Response: fmt.Sprintf("ответ %d", turn)}, nil
	}
	e := activeEngine(t, fb)

	for i := 0; i < 6; i++ {
		_ = e.SendChat(context.Background(), fmt.Sprintf("сообщение %d", i))
	}

	chat := e.Store().Snapshot().Chat
	require.Len(t, chat, 12)
	for i := 0; i < len(chat); i += 2 {
		assert.Equal(t, models.RoleUser, chat[i].Role)
		assert.NotEqual(t, models.StatusPending, chat[i].Status)
		assert.Equal(t, models.RoleAgent, chat[i+1].Role)
	}
}

func TestSendChatEmpty(t *testing.T) {
	fb := newFakeBackend()
	e := activeEngine(t, fb)

	require.ErrorIs(t, e.SendChat(context.Background(), "   "), ErrEmptyMessage)
	assert.Zero(t, fb.count("chat"))
	assert.Empty(t, e.Store().Snapshot().Chat)
}

func TestSendChatCrisis(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fb := newFakeBackend()
	helplines := []models.Helpline{
		{Name: "Телефон доверия", Phone: "8-800-2000-122", Description: "Бесплатно, круглосуточно"},
		{Name: "Экстренная помощь", Phone: "112"},
	}
	replies := []*api.ChatResponse{
		{Response: "Давай подышим"},
		{Response: "Ты не один. Позвони, пожалуйста.", IsCrisis: true, BlockGame: true, Helplines: helplines},
	}
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		r := replies[0]
		replies = replies[1:]
		return r, nil
	}
	e := activeEngine(t, fb, WithTransitionDelay(time.Hour))
	ctx := context.Background()

	require.NoError(t, e.SendChat(ctx, "Мне тревожно"))
	require.True(t, e.TransitionPending())

	require.NoError(t, e.SendChat(ctx, "Мне очень плохо"))

	st := e.Store().Snapshot()
	require.NotNil(t, st.Crisis)
	assert.Equal(t, "Ты не один. Позвони, пожалуйста.", st.Crisis.Message)
	assert.Equal(t, helplines, st.Crisis.Helplines)
	assert.Equal(t, models.ScreenCrisis, st.Screen)
	assert.False(t, e.TransitionPending(), "crisis cancels the mini-game transition")

	require.Len(t, st.Chat, 3, "no agent entry for the crisis turn")
	assert.Equal(t, "Мне очень плохо", st.Chat[2].Text)
	assert.Equal(t, models.StatusDelivered, st.Chat[2].Status)

	e.DismissCrisis()
	st = e.Store().Snapshot()
	assert.Nil(t, st.Crisis)
	assert.Equal(t, models.ScreenDialog, st.Screen)
}

func TestSendChatSchedulesTransition(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fb := newFakeBackend()
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Response: "Давай подышим", IsCrisis: false}, nil
	}
	e := activeEngine(t, fb, WithTransitionDelay(20*time.Millisecond))

	require.NoError(t, e.SendChat(context.Background(), "Мне тревожно"))

	st := e.Store().Snapshot()
	assert.Nil(t, st.Crisis)
	assert.Equal(t, "Давай подышим", st.Chat[1].Text)
	assert.Equal(t, models.ScreenDialog, st.Screen, "the switch is delayed")

	require.Eventually(t, func() bool {
		return e.Store().Snapshot().Screen == models.ScreenBreathing
	}, time.Second, 5*time.Millisecond)
	assert.False(t, e.TransitionPending())
}

func TestNewerTurnCancelsTransition(t *testing.T) {
	fb := newFakeBackend()
	replies := []string{"Найди опору", "Расскажи больше"}
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		r := replies[0]
		replies = replies[1:]
		return &api.ChatResponse{Response: r}, nil
	}
	e := activeEngine(t, fb, WithTransitionDelay(time.Hour))
	ctx := context.Background()

	require.NoError(t, e.SendChat(ctx, "Что делать?"))
	require.True(t, e.TransitionPending())

	require.NoError(t, e.SendChat(ctx, "Не знаю"))
	assert.False(t, e.TransitionPending())
}

func TestSessionStartCancelsTransition(t *testing.T) {
	fb := newFakeBackend()
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Response: "Сделаем паузу"}, nil
	}
	e := newTestEngine(t, fb, WithTransitionDelay(time.Hour))
	ctx := context.Background()

	require.NoError(t, e.SendChat(ctx, "Привет"))
	require.True(t, e.TransitionPending())

	require.NoError(t, e.StartSession(ctx, "oasis", "Тревога", 7))
	assert.False(t, e.TransitionPending())
}

func TestReplyAfterNewSessionIsDropped(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		<-release
		return &api.ChatResponse{Response: "поздний ответ"}, nil
	}
	e := newTestEngine(t, fb)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.SendChat(ctx, "Привет") }()
	require.Eventually(t, func() bool { return fb.count("chat") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.StartSession(ctx, "oasis", "Тревога", 7))
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, e.Store().Snapshot().Chat, "the new dialog does not inherit the old reply")
}

func TestCrisisAfterNewSessionStillOpens(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	helplines := []models.Helpline{{Name: "Экстренная помощь", Phone: "112"}}
	fb.chat = func(api.ChatRequest) (*api.ChatResponse, error) {
		<-release
		return &api.ChatResponse{Response: "Пожалуйста, позвони.", IsCrisis: true, Helplines: helplines}, nil
	}
	e := newTestEngine(t, fb)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.SendChat(ctx, "Мне очень плохо") }()
	require.Eventually(t, func() bool { return fb.count("chat") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.StartSession(ctx, "oasis", "Тревога", 7))
	close(release)
	require.NoError(t, <-done)

	st := e.Store().Snapshot()
	require.NotNil(t, st.Crisis)
	assert.Equal(t, "Пожалуйста, позвони.", st.Crisis.Message)
	assert.Equal(t, helplines, st.Crisis.Helplines)
	assert.Equal(t, models.ScreenCrisis, st.Screen)
	assert.Empty(t, st.Chat)
}

func TestFriendAchievement(t *testing.T) {
	book, err := models.OpenAchievements(t.TempDir())
	require.NoError(t, err)
	fb := newFakeBackend()
	e := activeEngine(t, fb, WithAchievements(book))
	ctx := context.Background()

	for i := 0; i < friendThreshold-1; i++ {
		require.NoError(t, e.SendChat(ctx, "ещё"))
	}
	assert.False(t, book.Has(AchievementFriend))

	require.NoError(t, e.SendChat(ctx, "десятое"))
	assert.True(t, book.Has(AchievementFriend))

	st := e.Store().Snapshot()
	assert.Equal(t, friendThreshold, st.DeliveredMessages)
	require.Len(t, st.Achievements, 1)
	assert.Equal(t, "Достижение: "+AchievementFriend, st.Notice.Text)
}

func TestTransitionIgnoredOutsideDialog(t *testing.T) {
	e := newTestEngine(t, newFakeBackend(), WithTransitionDelay(time.Millisecond))
	e.Store().Update(func(s *store.State) store.Topic {
		s.Screen = models.ScreenMap
		return store.TopicScreen
	})

	e.scheduleTransition(models.ScreenBreathing)
	require.Eventually(t, func() bool { return !e.TransitionPending() }, time.Second, time.Millisecond)
	assert.Equal(t, models.ScreenMap, e.Store().Snapshot().Screen)
}
