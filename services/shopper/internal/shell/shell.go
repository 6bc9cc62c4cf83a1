// Package shell is a line-oriented front end to one storefront session. Each
// command stands in for something a shopper does on the page.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/gothglitter/storefront/pkg/cartsync"
)

var errUsage = errors.New("usage")

const help = `commands:
  set <product> <qty> [name] [price]   change a line (0 removes it)
  avail <product>                      fetch availability now
  show                                 list the cart
  refresh                              reload the cart from the server
  clear                                empty the cart and release stock
  pay                                  pay the cart total, then empty the cart
  touch                                send a heartbeat now
  activity <pointer|key|click|scroll|focus>
  help
  quit`

// Shell runs commands against a session and prints to out.
type Shell struct {
	session *cartsync.Session
	out     io.Writer

	outMu sync.Mutex
	sub   *cartsync.Subscription

	mu    sync.Mutex
	views map[string]*cartsync.ProductView
	wg    sync.WaitGroup
}

// New attaches a shell to session. Availability events are echoed to out.
func New(session *cartsync.Session, out io.Writer) *Shell {
	s := &Shell{
		session: session,
		out:     out,
		views:   make(map[string]*cartsync.ProductView),
	}
	s.sub = session.Bus.Subscribe(func(ev cartsync.Event) {
		s.printf("* availability changed: %s (%s)\n", strings.Join(ev.ProductIDs, ", "), ev.Reason)
	})
	return s
}

// Run reads commands from in until EOF, quit, or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	s.printf("> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := s.Exec(ctx, line)
			if errors.Is(err, errUsage) {
				s.printf("%s\n", help)
			} else if err != nil {
				s.printf("error: %s\n", err)
			}
			if quit {
				return nil
			}
			s.printf("> ")
		}
	}
}

// Exec runs one command line. It reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	// Typing counts as shopper activity.
	s.session.Monitor.Activity(cartsync.ActivityKey)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "set":
		return false, s.set(ctx, rest)
	case "avail":
		return false, s.avail(ctx, rest)
	case "show":
		s.show()
		return false, nil
	case "refresh":
		if err := s.session.Store.Refresh(ctx); err != nil {
			return false, err
		}
		s.show()
		return false, nil
	case "clear":
		return false, s.session.Store.ClearAndRelease(ctx, cartsync.ReasonManual)
	case "pay":
		return false, s.pay(ctx)
	case "touch":
		sent, err := s.session.Monitor.Heartbeat(ctx)
		if err != nil {
			return false, err
		}
		if !sent {
			s.printf("heartbeat skipped\n")
		}
		return false, nil
	case "activity":
		if len(rest) != 1 || !cartsync.ActivityKind(rest[0]).Valid() {
			return false, errUsage
		}
		s.session.Monitor.Activity(cartsync.ActivityKind(rest[0]))
		return false, nil
	case "help":
		s.printf("%s\n", help)
		return false, nil
	case "quit", "exit":
		return true, nil
	default:
		return false, errUsage
	}
}

// pay creates a payment intent for the cart total and clears the cart only
// once the intent exists. A refused intent leaves the cart and its holds alone.
func (s *Shell) pay(ctx context.Context) error {
	if s.session.Store.Len() == 0 {
		return errors.New("cart is empty")
	}
	total := s.session.Store.Total()
	secret, err := s.session.Payments.CreatePaymentIntent(ctx, cartsync.MinorUnits(total), s.session.Config.Currency)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	s.printf("payment intent ready for %s %s (%s)\n", total.StringFixed(2), strings.ToUpper(s.session.Config.Currency), intentID(secret))
	return s.session.Store.ClearAfterPayment(ctx)
}

// intentID strips the secret part of a client secret.
func intentID(secret string) string {
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return "intent"
}

func (s *Shell) set(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return errUsage
	}
	target, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}
	var meta cartsync.Metadata
	if len(args) > 2 {
		meta.Name = args[2]
	}
	if len(args) > 3 {
		price, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("invalid price %q", args[3])
		}
		meta.UnitPrice = price
	}

	view := s.view(ctx, args[0])
	res, msg, err := view.SetQuantity(ctx, target, meta)
	if msg != "" {
		s.printf("%s\n", msg)
	}
	if err != nil {
		return err
	}
	s.printf("%s: %d in cart\n", res.ProductID, res.Quantity)
	return nil
}

func (s *Shell) avail(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := s.view(ctx, args[0]).Poll(ctx)
	if err != nil {
		return err
	}
	s.printf("%s: %d available\n", args[0], n)
	return nil
}

func (s *Shell) show() {
	items := s.session.Store.Items()
	if len(items) == 0 {
		s.printf("cart is empty\n")
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, it := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			it.ProductID, it.Name, it.Quantity, it.UnitPrice.StringFixed(2), it.Subtotal().StringFixed(2))
	}
	_, _ = fmt.Fprintf(tw, "\t\t\t\t%s\n", s.session.Store.Total().StringFixed(2))
	_ = tw.Flush()
}

// view returns the open view for productID, opening it on first use.
func (s *Shell) view(ctx context.Context, productID string) *cartsync.ProductView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[productID]; ok {
		return v
	}
	v := s.session.View(productID)
	s.views[productID] = v
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		v.Run(ctx)
	}()
	return v
}

// OpenViews lists the products with an open view.
func (s *Shell) OpenViews() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every view and the event echo.
func (s *Shell) Close() {
	s.sub.Unsubscribe()
	s.mu.Lock()
	views := s.views
	s.views = map[string]*cartsync.ProductView{}
	s.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
	s.wg.Wait()
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintf(s.out, format, args...)
}
