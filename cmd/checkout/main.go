// checkout drives an event checkout from the command line against the
// ticketing backend API. The draft is kept in a local directory, so the
// steps can be run as separate invocations:
//
//	checkout acme launch --qty general=2
//	checkout acme launch --answers attendees.yaml --accept-terms
//	checkout acme launch --email pat@example.com --submit --wait
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/config"
	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/poller"
	"event-checkout-platform/internal/services"
)

// answersFile is the YAML layout of --answers: one answer map per attendee slot
type answersFile struct {
	Attendees []map[string]any `yaml:"attendees"`
}

type options struct {
	backendURL  string
	draftDir    string
	quantities  map[string]int
	answersPath string
	acceptTerms bool
	buyer       models.Buyer
	token       string
	submit      bool
	wait        bool
	cancel      bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options

	defaultDir := filepath.Join(os.TempDir(), "event-checkout")
	if dir, err := os.UserCacheDir(); err == nil {
		defaultDir = filepath.Join(dir, "event-checkout")
	}

	flagSet := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
	flagSet.StringVar(&opts.backendURL, "backend-url", "", "ticketing backend base URL (default: BACKEND_URL)")
	flagSet.StringVar(&opts.draftDir, "draft-dir", defaultDir, "directory holding checkout drafts")
	flagSet.StringToIntVar(&opts.quantities, "qty", nil, "set product quantities, e.g. general=2,vip=1")
	flagSet.StringVar(&opts.answersPath, "answers", "", "YAML file with attendee answers")
	flagSet.BoolVar(&opts.acceptTerms, "accept-terms", false, "accept the terms")
	flagSet.StringVar(&opts.buyer.Email, "email", "", "buyer email")
	flagSet.StringVar(&opts.buyer.Name, "name", "", "buyer name")
	flagSet.StringVar(&opts.buyer.Phone, "phone", "", "buyer phone")
	flagSet.StringVar(&opts.token, "anti-abuse-token", "", "anti-abuse token sent with the order")
	flagSet.BoolVar(&opts.submit, "submit", false, "place the order")
	flagSet.BoolVar(&opts.wait, "wait", false, "after submitting, wait until the order settles")
	flagSet.BoolVar(&opts.cancel, "cancel", false, "discard the draft")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 2 {
		printHelp(flagSet)
		return fmt.Errorf("expected <org> <event>, got %d arguments", len(args))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.backendURL == "" {
		opts.backendURL = cfg.Backend.BaseURL
	}
	if opts.backendURL == "" {
		return errors.New("no backend URL: pass --backend-url or set BACKEND_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	backend := services.NewRemoteBackend(strings.TrimRight(opts.backendURL, "/"), cfg.Backend.APIKey, cfg.Backend.Timeout)
	catalog, err := checkout.LoadCatalog(ctx, backend, args[0], args[1])
	if err != nil {
		return err
	}

	backing, err := checkout.NewFileBacking(opts.draftDir)
	if err != nil {
		return err
	}
	reconciler := checkout.NewReconciler(cfg.Checkout.MaxQuantity, checkout.ParseInvalidationPolicy(cfg.Checkout.Invalidation))
	svc := checkout.NewService(reconciler, backend)
	session, err := svc.Open(checkout.NewDraftStore(backing), catalog, checkout.DraftKey(args[0], args[1]))
	if err != nil {
		return err
	}

	if opts.cancel {
		if err := session.Cancel(); err != nil {
			return err
		}
		fmt.Println("Checkout discarded.")
		return nil
	}

	if err := applyChanges(session, opts); err != nil {
		return err
	}

	if !opts.submit {
		printDraft(session)
		return nil
	}

	outcome, err := session.Submit(ctx, opts.buyer, opts.token)
	if err != nil {
		return err
	}

	orderID := checkout.MatchOutcome(outcome,
		func(o checkout.ShowConfirmation) string {
			fmt.Printf("Order %s placed.\n", o.OrderID)
			return o.OrderID
		},
		func(o checkout.ExternalRedirect) string {
			fmt.Printf("Order %s is awaiting payment. Complete it at:\n  %s\n", o.OrderID, o.URL)
			return o.OrderID
		},
		func(o checkout.ShowError) string {
			fmt.Printf("Order not placed (%s): %s\n", o.Kind, o.Message)
			return ""
		},
	)
	if orderID == "" {
		return errors.New("order not placed")
	}
	if !opts.wait {
		return nil
	}
	return waitForOrder(ctx, backend, orderID, cfg)
}

// applyChanges applies quantities first so answers land on the resulting slots
func applyChanges(session *checkout.Session, opts options) error {
	ids := make([]string, 0, len(opts.quantities))
	for id := range opts.quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := session.SetQuantity(id, opts.quantities[id]); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}

	if opts.answersPath != "" {
		data, err := os.ReadFile(opts.answersPath)
		if err != nil {
			return err
		}
		var file answersFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse %s: %w", opts.answersPath, err)
		}
		for i, answers := range file.Attendees {
			if err := session.SetAnswers(i, answers); err != nil {
				return fmt.Errorf("attendee %d: %w", i+1, err)
			}
		}
	}

	if opts.acceptTerms {
		return session.AcceptTerms()
	}
	return nil
}

func printDraft(session *checkout.Session) {
	catalog := session.Catalog()
	draft := session.Draft()

	fmt.Printf("%s\n\n", catalog.Event.Name)
	total := 0
	for _, product := range catalog.Products {
		qty := draft.Quantities[product.ID]
		total += qty * product.Price
		fmt.Printf("  %-24s %-16s x%d\n", product.Name, product.ID, qty)
	}
	fmt.Printf("\n  Total: %d %s\n", total, catalog.Event.Currency)

	missing := session.MissingFields()
	for i, slot := range session.Slots() {
		status := "complete"
		if keys := missing[i]; len(keys) > 0 {
			status = "missing " + strings.Join(keys, ", ")
		}
		fmt.Printf("  Attendee %d (%s): %s\n", i+1, slot.ProductID, status)
	}

	switch {
	case draft.IsEmpty():
		fmt.Println("\nSelect tickets with --qty.")
	case !session.CanProceedToPayment():
		fmt.Println("\nComplete attendee details with --answers.")
	case !draft.AcceptedTerms:
		fmt.Println("\nAccept the terms with --accept-terms.")
	default:
		fmt.Println("\nReady to submit.")
	}
}

func waitForOrder(ctx context.Context, backend poller.StatusFetcher, orderID string, cfg *config.Config) error {
	p := poller.New(backend, orderID, true, poller.Config{
		Interval: cfg.Checkout.PollInterval,
		Timeout:  cfg.Checkout.PollTimeout,
	})
	updates := p.Updates()
	go p.Start(ctx)
	defer p.Stop()

	var last poller.Snapshot
	for snap := range updates {
		last = snap
		if snap.Status != nil {
			fmt.Printf("  %s: %s\n", snap.State, snap.Status.Status.DisplayName())
		}
	}

	switch {
	case last.State == poller.StateTerminal && last.Status.Status == models.OrderPaid:
		fmt.Println("Payment confirmed.")
		return nil
	case last.State == poller.StateTerminal:
		return fmt.Errorf("order %s ended as %s", orderID, last.Status.Status)
	case last.Reason == poller.ReasonTimeout:
		return fmt.Errorf("order %s is still %s; check again later", orderID, statusName(last))
	}
	return ctx.Err()
}

func statusName(snap poller.Snapshot) string {
	if snap.Status == nil {
		return "unconfirmed"
	}
	return string(snap.Status.Status)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: checkout <org> <event> [flags]\n\nFlags:\n")
	flagSet.PrintDefaults()
}
