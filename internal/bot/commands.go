package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// botIP stands in for the client address in booking logs.
const botIP = "telegram"

const helpText = `Harbour staff commands:
/booking CODE - booking summary and tickets
/checkin TICKET_ID - board a passenger
/seats SCHEDULE_ID YYYY-MM-DD - remaining capacity
/close SCHEDULE_ID YYYY-MM-DD [reason] - stop sales for a departure
/open SCHEDULE_ID YYYY-MM-DD - resume sales
/sweep - expire unpaid bookings and sync statuses (admin)`

type commandFunc func(ctx context.Context, actor models.Actor, args []string) (string, error)

func (b *Bot) commands() map[string]commandFunc {
	return map[string]commandFunc{
		"booking": b.cmdBooking,
		"checkin": b.cmdCheckIn,
		"seats":   b.cmdSeats,
		"close":   b.cmdClose,
		"open":    b.cmdOpen,
		"sweep":   b.cmdSweep,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	l := zerolog.Ctx(ctx)
	chatID := msg.Chat.ID

	actor, ok := b.staff[msg.From.ID]
	if !ok {
		metrics.IncBotCommand("unknown_user", "rejected")
		l.Warn().Str("username", msg.From.UserName).Msg("message from non-staff account")
		b.reply(chatID, "This bot is for harbour staff only.")
		return
	}

	if !msg.IsCommand() {
		b.reply(chatID, helpText)
		return
	}

	command := msg.Command()
	if command == "start" || command == "help" {
		b.reply(chatID, helpText)
		return
	}

	fn, ok := b.commands()[command]
	if !ok {
		metrics.IncBotCommand("unknown", "rejected")
		b.reply(chatID, "Unknown command. Send /help for the list.")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	text, err := fn(ctx, actor, args)
	if err != nil {
		metrics.IncBotCommand(command, "error")
		l.Warn().Err(err).Str("command", command).Str("actor", actor.String()).Msg("bot command failed")
		b.reply(chatID, errorMessage(err))
		return
	}

	metrics.IncBotCommand(command, "ok")
	l.Info().Str("command", command).Str("actor", actor.String()).Msg("bot command handled")
	b.reply(chatID, text)
}

func (b *Bot) cmdBooking(ctx context.Context, actor models.Actor, args []string) (string, error) {
	if len(args) != 1 {
		return "", domain.ValidationError{Field: "code", Msg: "usage: /booking CODE"}
	}

	details, err := b.svc.Bookings.GetBookingByCode(ctx, actor, strings.ToUpper(args[0]))
	if err != nil {
		return "", err
	}
	return formatBooking(details), nil
}

func (b *Bot) cmdCheckIn(ctx context.Context, actor models.Actor, args []string) (string, error) {
	if len(args) != 1 {
		return "", domain.ValidationError{Field: "ticket_id", Msg: "usage: /checkin TICKET_ID"}
	}
	id, err := parseID("ticket_id", args[0])
	if err != nil {
		return "", err
	}

	ticket, err := b.svc.Bookings.CheckIn(ctx, id, actor, botIP)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Ticket %s checked in: %s", ticket.TicketCode, ticket.PassengerName), nil
}

func (b *Bot) cmdSeats(ctx context.Context, actor models.Actor, args []string) (string, error) {
	scheduleID, date, err := scheduleArgs(args, "usage: /seats SCHEDULE_ID YYYY-MM-DD")
	if err != nil {
		return "", err
	}

	a, err := b.svc.Schedules.Availability(ctx, scheduleID, date)
	if err != nil {
		return "", err
	}
	return formatAvailability(a), nil
}

func (b *Bot) cmdClose(ctx context.Context, actor models.Actor, args []string) (string, error) {
	scheduleID, date, err := scheduleArgs(args, "usage: /close SCHEDULE_ID YYYY-MM-DD [reason]")
	if err != nil {
		return "", err
	}
	reason := strings.Join(args[2:], " ")

	sd, err := b.svc.Schedules.SetDateStatus(ctx, scheduleID, date, models.DateUnavailable, reason, nil, actor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Schedule #%d on %s is now %s", scheduleID, date.Format(models.DateLayout), sd.Status), nil
}

func (b *Bot) cmdOpen(ctx context.Context, actor models.Actor, args []string) (string, error) {
	scheduleID, date, err := scheduleArgs(args, "usage: /open SCHEDULE_ID YYYY-MM-DD")
	if err != nil {
		return "", err
	}

	sd, err := b.svc.Schedules.SetDateStatus(ctx, scheduleID, date, models.DateAvailable, "", nil, actor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Schedule #%d on %s is now %s", scheduleID, date.Format(models.DateLayout), sd.Status), nil
}

func (b *Bot) cmdSweep(ctx context.Context, actor models.Actor, _ []string) (string, error) {
	if !actor.Privileged() {
		return "", domain.ErrForbidden
	}

	expired, err := b.svc.Sweeps.ExpireTickets(ctx)
	if err != nil {
		return "", err
	}
	synced, err := b.svc.Sweeps.SyncBookingStatus(ctx)
	if err != nil {
		return "", err
	}
	return expired.Message + "\n" + synced.Message, nil
}

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ValidationError{Field: field, Msg: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

func scheduleArgs(args []string, usage string) (int64, time.Time, error) {
	if len(args) < 2 {
		return 0, time.Time{}, domain.ValidationError{Msg: usage}
	}
	id, err := parseID("schedule_id", args[0])
	if err != nil {
		return 0, time.Time{}, err
	}
	date, err := models.ParseDate(args[1])
	if err != nil {
		return 0, time.Time{}, domain.ValidationError{Field: "date", Msg: "expected YYYY-MM-DD", Err: err}
	}
	return id, date, nil
}

func formatBooking(d *models.BookingDetails) string {
	bk := d.Booking
	var sb strings.Builder
	fmt.Fprintf(&sb, "Booking %s (%s)\n", bk.BookingCode, bk.Status)
	fmt.Fprintf(&sb, "Departure: %s, schedule #%d\n", bk.DepartureDate.Format(models.DateLayout), bk.ScheduleID)
	fmt.Fprintf(&sb, "Passengers: %d, vehicles: %d\n", bk.PassengerCount, bk.VehicleCount)
	fmt.Fprintf(&sb, "Total: %d", bk.TotalAmount)
	if len(d.Tickets) > 0 {
		sb.WriteString("\nTickets:")
	}
	for _, t := range d.Tickets {
		boarding := "not checked in"
		if t.CheckedIn {
			boarding = "checked in"
		}
		fmt.Fprintf(&sb, "\n  #%d %s - %s, %s", t.ID, t.PassengerName, t.Status, boarding)
	}
	return sb.String()
}

func formatAvailability(a *models.Availability) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Schedule #%d on %s: %s", a.ScheduleID, a.Date, a.Status)

	rows := []struct {
		label               string
		remaining, capacity int
	}{
		{"Passengers", a.Remaining.Passengers, a.Capacity.Passengers},
		{"Motorcycles", a.Remaining.Motorcycles, a.Capacity.Motorcycles},
		{"Cars", a.Remaining.Cars, a.Capacity.Cars},
		{"Buses", a.Remaining.Buses, a.Capacity.Buses},
		{"Trucks", a.Remaining.Trucks, a.Capacity.Trucks},
	}
	for _, r := range rows {
		if r.capacity == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %d of %d left", r.label, r.remaining, r.capacity)
	}
	return sb.String()
}
