package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/bus-booking-gateway/internal/adapters/backend"
	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/passenger"
	"github.com/robertarktes/bus-booking-gateway/internal/payment"
	"github.com/robertarktes/bus-booking-gateway/internal/receipt"
	"github.com/robertarktes/bus-booking-gateway/internal/session"
	"github.com/robertarktes/bus-booking-gateway/internal/workflow"
)

var errQuit = errors.New("quit")

type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out}
}

func (t *terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// ask prints the prompt and reads one trimmed line. End of input quits.
func (t *terminal) ask(prompt string) (string, error) {
	t.printf("%s: ", prompt)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(t.in.Text()), nil
}

func (t *terminal) notice(err error) {
	n := receipt.Describe(err)
	t.printf("\n! %s\n", n.Message)
	for _, f := range n.Fields {
		t.printf("  - %s: %s\n", f.Field, f.Message)
	}
}

type authenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (session.LoginResponse, error)
}

type app struct {
	term     *terminal
	auth     authenticator
	sessions *session.Registry
	ctrl     *workflow.Controller
	bookings *workflow.Bookings
	finder   *workflow.Finder
	rider    workflow.Rider
}

func (a *app) run(ctx context.Context) error {
	s, err := a.login(ctx)
	if errors.Is(err, errQuit) {
		return nil
	}
	if err != nil {
		return err
	}
	defer a.sessions.Logout(s.ID)
	a.rider = workflow.RiderFrom(s)

	for {
		select {
		case <-s.Done():
			a.term.printf("\nYour session has expired. Please log in again.\n")
			return nil
		default:
		}

		a.term.printf("\n1) Search trips\n2) My bookings\n3) Quit\n")
		choice, err := a.term.ask("Choose")
		if err != nil {
			return ignoreQuit(err)
		}
		switch choice {
		case "1":
			err = a.search(ctx)
		case "2":
			err = a.myBookings(ctx)
		case "3", "q":
			return nil
		default:
			continue
		}
		if err != nil {
			return ignoreQuit(err)
		}
	}
}

func ignoreQuit(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (a *app) login(ctx context.Context) (*session.Session, error) {
	for {
		email, err := a.term.ask("Email")
		if err != nil {
			return nil, err
		}
		password, err := a.term.ask("Password")
		if err != nil {
			return nil, err
		}
		resp, err := a.auth.Login(ctx, backend.Credentials{Email: email, Password: password})
		if err != nil {
			a.term.notice(err)
			continue
		}
		s, err := a.sessions.Open(resp, "terminal")
		if err != nil {
			a.term.notice(err)
			continue
		}
		if !s.HasRole(session.RoleUser) {
			s.Logout()
			a.term.printf("\n! Only riders can book seats.\n")
			continue
		}
		a.term.printf("Welcome, %s.\n", s.Email)
		return s, nil
	}
}

func (a *app) search(ctx context.Context) error {
	var q domain.TripQuery
	var err error
	if q.Origin, err = a.term.ask("From"); err != nil {
		return err
	}
	if q.Destination, err = a.term.ask("To"); err != nil {
		return err
	}
	if q.Date, err = a.term.ask("Date (YYYY-MM-DD)"); err != nil {
		return err
	}
	if q.BusType, err = a.term.ask("Bus type (blank for any)"); err != nil {
		return err
	}

	trips, err := a.finder.Search(ctx, a.rider, q)
	if err != nil {
		a.term.notice(err)
		return nil
	}
	if len(trips) == 0 {
		a.term.printf("No trips found.\n")
		return nil
	}
	for i, t := range trips {
		a.term.printf("%d) %s  %s  departs %s  INR %s\n", i+1, t.Bus, t.Route, t.DepartureTime.Format("02 Jan 15:04"), t.Fare.StringFixed(2))
	}
	pick, err := a.term.ask("Trip number (blank to go back)")
	if err != nil || pick == "" {
		return err
	}
	n, convErr := strconv.Atoi(pick)
	if convErr != nil || n < 1 || n > len(trips) {
		a.term.printf("No such trip.\n")
		return nil
	}
	return a.book(ctx, trips[n-1].ID)
}

// book walks one trip from seat selection to a receipt. Notices that send the
// rider back re-enter the loop at the step the workflow now reports.
func (a *app) book(ctx context.Context, tripID int64) error {
	st, err := a.ctrl.Start(ctx, a.rider, tripID)
	if err != nil {
		a.term.notice(err)
		return nil
	}
	for {
		switch st.Step {
		case workflow.StepSeatSelection:
			st, err = a.selectSeats(ctx, st)
		case workflow.StepPassengers:
			st, err = a.passengers(ctx, st)
		case workflow.StepPayment:
			st, err = a.pay(ctx, st)
		case workflow.StepCompleted:
			a.term.printf("\nBooking confirmed.\n\n")
			if st.Receipt != nil {
				if err := st.Receipt.Render(a.term.out); err != nil {
					return err
				}
			}
			return nil
		}
		if errors.Is(err, errQuit) {
			_, _ = a.ctrl.Abandon(ctx, a.rider)
			return err
		}
		if errors.Is(err, errBack) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var errBack = errors.New("back to menu")

func renderSeats(w io.Writer, st *workflow.State) {
	if st.SeatMapUnavailable {
		fmt.Fprintln(w, "Seat map unavailable.")
		return
	}
	selected := map[string]bool{}
	for _, s := range st.Selected {
		selected[s] = true
	}
	cell := func(s domain.Seat) string {
		switch {
		case s.Booked:
			return fmt.Sprintf("[%3s x]", s.SeatNumber)
		case selected[s.SeatNumber]:
			return fmt.Sprintf("[%3s *]", s.SeatNumber)
		default:
			return fmt.Sprintf("[%3s  ]", s.SeatNumber)
		}
	}
	for _, row := range st.Rows() {
		var b strings.Builder
		for _, s := range row.Left {
			b.WriteString(cell(s))
		}
		b.WriteString(strings.Repeat(" ", 4))
		for _, s := range row.Right {
			b.WriteString(cell(s))
		}
		fmt.Fprintln(w, b.String())
	}
	fmt.Fprintf(w, "Selected: %s\n", strings.Join(st.Selected, ", "))
}

func (a *app) selectSeats(ctx context.Context, st *workflow.State) (*workflow.State, error) {
	for {
		a.term.printf("\n")
		renderSeats(a.term.out, st)
		in, err := a.term.ask("Seat number to toggle, c to continue, b to go back")
		if err != nil {
			return st, err
		}
		switch in {
		case "b":
			if _, err := a.ctrl.Abandon(ctx, a.rider); err != nil {
				a.term.notice(err)
			}
			return st, errBack
		case "c":
			next, err := a.ctrl.ConfirmSelection(ctx, a.rider)
			if err != nil {
				a.term.notice(err)
				continue
			}
			return next, nil
		case "":
			continue
		default:
			next, err := a.ctrl.ToggleSeat(ctx, a.rider, in)
			if err != nil {
				a.term.notice(err)
				continue
			}
			st = next
		}
	}
}

func (a *app) passengers(ctx context.Context, st *workflow.State) (*workflow.State, error) {
	a.term.printf("\nTotal: INR %s for %d seat(s)\n", st.TotalAmount.StringFixed(2), len(st.Selected))
	for {
		form := passenger.Form{Passengers: make([]domain.PassengerRecord, len(st.Selected))}
		for i, seat := range st.Selected {
			a.term.printf("Passenger for seat %s\n", seat)
			name, err := a.term.ask("  Name")
			if err != nil {
				return st, err
			}
			ageText, err := a.term.ask("  Age")
			if err != nil {
				return st, err
			}
			gender, err := a.term.ask("  Gender (male/female/other)")
			if err != nil {
				return st, err
			}
			age, _ := strconv.Atoi(ageText)
			form.Passengers[i] = domain.PassengerRecord{Name: name, Age: age, Gender: domain.Gender(gender)}
		}
		var err error
		if form.Mobile, err = a.term.ask("Mobile"); err != nil {
			return st, err
		}
		if form.Email, err = a.term.ask("Email"); err != nil {
			return st, err
		}

		next, err := a.ctrl.SubmitPassengers(ctx, a.rider, form)
		if err == nil {
			return next, nil
		}
		a.term.notice(err)
		if next == nil {
			return st, nil
		}
		if next.Step != workflow.StepPassengers {
			return next, nil
		}
	}
}

func (a *app) pay(ctx context.Context, st *workflow.State) (*workflow.State, error) {
	uri, err := a.ctrl.PaymentURI(ctx, a.rider)
	if err == nil {
		if qr, qrErr := payment.QRText(uri); qrErr == nil {
			a.term.printf("\nScan to pay INR %s\n%s\n", st.TotalAmount.StringFixed(2), qr)
		}
		a.term.printf("UPI: %s\n", uri)
	}

	for {
		method, err := a.term.ask("Pay with upi, card or netbank (a to abandon)")
		if err != nil {
			return st, err
		}
		in := workflow.PaymentInput{Method: payment.Method(method)}
		switch in.Method {
		case payment.MethodUPI:
			if in.UPIID, err = a.term.ask("UPI id (blank for default)"); err != nil {
				return st, err
			}
		case payment.MethodCard:
			if in.Card.Number, err = a.term.ask("Card number"); err != nil {
				return st, err
			}
		case payment.MethodNetbank:
			if in.Bank, err = a.term.ask("Bank code"); err != nil {
				return st, err
			}
		case "a":
			next, err := a.ctrl.Abandon(ctx, a.rider)
			if err != nil {
				a.term.notice(err)
				return st, errBack
			}
			return next, nil
		default:
			continue
		}

		a.term.printf("Processing payment...\n")
		next, err := a.ctrl.Pay(ctx, a.rider, in)
		if err == nil {
			return next, nil
		}
		a.term.notice(err)
		if next == nil {
			return st, errBack
		}
		if next.Step != workflow.StepPayment {
			return next, nil
		}
	}
}

func (a *app) myBookings(ctx context.Context) error {
	list, err := a.bookings.List(ctx, a.rider)
	if err != nil {
		a.term.notice(err)
		return nil
	}
	if len(list) == 0 {
		a.term.printf("No bookings yet.\n")
		return nil
	}
	for i, b := range list {
		a.term.printf("%d) %s  %s  %s  seats %s  INR %s  %s\n", i+1, b.ID, b.Bus, b.Route,
			strings.Join(b.Seats, ","), b.TotalAmount.StringFixed(2), b.Status)
	}
	pick, err := a.term.ask("Booking number to cancel (blank to go back)")
	if err != nil || pick == "" {
		return err
	}
	n, convErr := strconv.Atoi(pick)
	if convErr != nil || n < 1 || n > len(list) {
		a.term.printf("No such booking.\n")
		return nil
	}
	b := list[n-1]
	if !b.Cancellable {
		a.term.printf("Only confirmed bookings can be cancelled.\n")
		return nil
	}
	yes, err := a.term.ask(fmt.Sprintf("Cancel booking %s? (y/n)", b.ID))
	if err != nil {
		return err
	}
	if yes != "y" {
		a.term.printf("Booking kept.\n")
		return nil
	}
	if _, err := a.bookings.Cancel(ctx, a.rider, b.ID, true); err != nil {
		a.term.notice(err)
		return nil
	}
	a.term.printf("Booking %s cancelled.\n", b.ID)
	return nil
}
