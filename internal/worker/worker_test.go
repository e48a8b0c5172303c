package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/models"
	"ferrybook/internal/service"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeSender struct {
	mu    sync.Mutex
	fails int
	texts []string
	calls int
}

func (f *fakeSender) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return tgbotapi.Message{}, errors.New("telegram: too many requests")
	}
	f.texts = append(f.texts, text)
	return tgbotapi.Message{MessageID: f.calls}, nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func newTestNotifier(sender MessageSender, redisClient *redis.Client, retry RetryPolicy) (*TelegramNotifier, *[]time.Duration) {
	logger := zerolog.Nop()
	n := NewTelegramNotifier(sender, -100123, redisClient, retry, &logger)
	var delays []time.Duration
	n.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return n, &delays
}

func bookingEvent(t *testing.T, eventType string) *events.Event {
	t.Helper()
	ev, err := events.NewJSONEvent(eventType, events.BookingEventPayload{
		BookingID:      7,
		BookingCode:    "FRY-0A1B2C3D4E",
		ScheduleID:     3,
		DepartureDate:  "2026-11-02",
		PassengerCount: 2,
		Status:         "CANCELLED",
		PreviousStatus: "PENDING",
		Notes:          "changed_plans",
		ChangedBy:      "USER:42",
	})
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	return &ev
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyDo(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	attempts, err := policy.Do(context.Background(), sleep, func(attempt int) error {
		if attempt < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on attempt 3, got attempts=%d err=%v", attempts, err)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected delays %v", slept)
	}

	attempts, err = policy.Do(context.Background(), sleep, func(int) error { return errors.New("fatal") })
	if err == nil || attempts != 3 {
		t.Fatalf("expected failure after 3 attempts, got attempts=%d err=%v", attempts, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts, err = policy.Do(ctx, nil, func(int) error { return errors.New("fatal") })
	if err == nil || attempts != 1 {
		t.Fatalf("cancelled context should stop after first attempt, got %d", attempts)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	if p.MaxRetries != 5 || p.InitialDelay != 2*time.Second || p.MaxDelay != time.Minute || p.BackoffFactor != 2 {
		t.Fatalf("unexpected defaults %+v", p)
	}
}

func TestFormatEvent(t *testing.T) {
	text, err := FormatEvent(bookingEvent(t, events.EventBookingCancelled))
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	for _, want := range []string{"*Booking FRY-0A1B2C3D4E*", "CANCELLED", "2026-11-02", `changed\_plans`, "USER:42"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}

	refund, _ := events.NewJSONEvent(events.EventRefundRequested, events.RefundEventPayload{
		BookingCode: "FRY-1", RefundAmount: 54000, Percentage: 90, Reason: "sick",
	})
	text, err = FormatEvent(&refund)
	if err != nil || !strings.Contains(text, "54000 (90%)") {
		t.Fatalf("refund text %q err=%v", text, err)
	}

	open, _ := events.NewJSONEvent(events.EventScheduleDateState, events.ScheduleDatePayload{ScheduleID: 1, Date: "2026-11-02", Status: "AVAILABLE"})
	if text, _ := FormatEvent(&open); text != "" {
		t.Fatalf("reopened date should be silent, got %q", text)
	}

	storm, _ := events.NewJSONEvent(events.EventScheduleDateState, events.ScheduleDatePayload{ScheduleID: 1, Date: "2026-11-02", Status: "WEATHER_ISSUE", Reason: "storm"})
	text, _ = FormatEvent(&storm)
	if !strings.Contains(text, `WEATHER\_ISSUE`) || !strings.Contains(text, "storm") {
		t.Fatalf("unexpected schedule text %q", text)
	}

	if _, err := FormatEvent(&events.Event{Type: events.EventBookingExpired, Payload: []byte("{")}); err == nil {
		t.Fatalf("expected decode error")
	}
	if text, _ := FormatEvent(&events.Event{Type: events.EventBookingCreated}); text != "" {
		t.Fatalf("created bookings are not notified")
	}
}

func TestNotifierDeliverRetries(t *testing.T) {
	sender := &fakeSender{fails: 2}
	n, delays := newTestNotifier(sender, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})

	if err := n.HandleEvent(bookingEvent(t, events.EventBookingCancelled)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	n.deliver(context.Background(), <-n.queue)

	if got := sender.sent(); len(got) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(got))
	}
	if len(*delays) != 2 || (*delays)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", *delays)
	}
}

func TestNotifierDeadLetter(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sender := &fakeSender{fails: 10}
	n, _ := newTestNotifier(sender, client, RetryPolicy{MaxRetries: 2})

	if err := n.HandleEvent(bookingEvent(t, events.EventBookingExpired)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	n.deliver(context.Background(), <-n.queue)

	items, err := s.List(n.deadLetterKey)
	if err != nil {
		t.Fatalf("deadletter list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 deadletter item, got %d", len(items))
	}
	var msg Notification
	if err := json.Unmarshal([]byte(items[0]), &msg); err != nil {
		t.Fatalf("decode deadletter: %v", err)
	}
	if msg.Attempts != 2 || msg.EventType != events.EventBookingExpired || msg.LastError == "" {
		t.Fatalf("unexpected deadletter %+v", msg)
	}
}

func TestNotifierQueueFull(t *testing.T) {
	n, _ := newTestNotifier(&fakeSender{}, nil, RetryPolicy{})
	ev := bookingEvent(t, events.EventBookingCancelled)
	for i := 0; i < models.NotifierQueueSize+5; i++ {
		if err := n.HandleEvent(ev); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(n.queue) != models.NotifierQueueSize {
		t.Fatalf("expected full queue, got %d", len(n.queue))
	}
}

func TestNotifierSubscribeAndStart(t *testing.T) {
	sender := &fakeSender{}
	n, _ := newTestNotifier(sender, nil, RetryPolicy{})
	bus := events.NewEventBus()
	n.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Start(ctx)
		close(done)
	}()

	if err := bus.PublishJSON(events.EventBookingCompleted, events.BookingEventPayload{BookingCode: "FRY-9", Status: "COMPLETED"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_ = bus.PublishJSON(events.EventBookingConfirmed, events.BookingEventPayload{BookingCode: "FRY-9", Status: "CONFIRMED"})

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	got := sender.sent()
	if len(got) != 1 || !strings.Contains(got[0], "COMPLETED") {
		t.Fatalf("expected the completion message only, got %v", got)
	}
}

type fakeSweeper struct {
	mu        sync.Mutex
	calls     []string
	expireErr error
	syncErr   error
}

func (f *fakeSweeper) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeSweeper) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSweeper) ExpireTickets(ctx context.Context) (service.SweepResult, error) {
	f.record(service.SweepExpireTickets)
	return service.SweepResult{Success: true, Message: "tickets expired"}, f.expireErr
}

func (f *fakeSweeper) SyncBookingStatus(ctx context.Context) (service.SweepResult, error) {
	f.record(service.SweepSyncBookingStatus)
	return service.SweepResult{Success: false, Message: "booking statuses synchronized with 1 failures"}, f.syncErr
}

func TestSweepRunnerRunOnce(t *testing.T) {
	logger := zerolog.Nop()
	sweeps := &fakeSweeper{expireErr: domain.ErrLockHeld}
	r := NewSweepRunner(sweeps, time.Hour, &logger)

	r.RunOnce(context.Background())
	got := sweeps.snapshot()
	if len(got) != 2 || got[0] != service.SweepExpireTickets || got[1] != service.SweepSyncBookingStatus {
		t.Fatalf("unexpected order %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.RunOnce(ctx)
	if got := sweeps.snapshot(); len(got) != 3 {
		t.Fatalf("cancelled run should stop after the first sweep, got %v", got)
	}
}

func TestSweepRunnerStart(t *testing.T) {
	logger := zerolog.Nop()
	sweeps := &fakeSweeper{}
	r := NewSweepRunner(sweeps, 20*time.Millisecond, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(sweeps.snapshot()) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := sweeps.snapshot(); len(got) < 4 {
		t.Fatalf("expected at least two rounds, got %v", got)
	}
	if NewSweepRunner(sweeps, 0, &logger).interval != 15*time.Minute {
		t.Fatalf("zero interval should fall back to default")
	}
}
