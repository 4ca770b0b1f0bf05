package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"text/tabwriter"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/ports"
)

var errUsage = errors.New("usage error")

const commandTimeout = 30 * time.Second

func runAdd(args []string, store ports.Store, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	address := fs.String("address", "", "Decoy email address (required)")
	customer := fs.String("customer", "", "Email address that receives alerts (required)")
	useCase := fs.String("use-case", "", "Free-text description of where the decoy was planted")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	if *address == "" || *customer == "" {
		fmt.Fprintln(stderr, "add: -address and -customer are required")
		fs.Usage()
		return errUsage
	}
	if _, err := mail.ParseAddress(*customer); err != nil {
		return fmt.Errorf("invalid customer address %q: %w", *customer, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	decoy := &core.Decoy{
		Address:       *address,
		CustomerEmail: *customer,
		UseCase:       *useCase,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.UpsertDecoy(ctx, decoy); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Decoy %s registered for %s\n", decoy.Address, decoy.CustomerEmail)
	return nil
}

func runList(args []string, store ports.Store, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	decoys, err := store.ListDecoys(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DECOY\tCUSTOMER\tUSE CASE\tALERTS\tCREATED")
	for _, d := range decoys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			d.Address, d.CustomerEmail, d.UseCase, d.Alerts, formatTime(d.CreatedAt))
	}
	return tw.Flush()
}

func runEvents(args []string, store ports.Store, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "Maximum number of events to show")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	events, err := store.RecentEvents(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tDECOY\tSENDER\tIP\tSUBJECT")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, formatTime(e.CreatedAt), e.DecoyAddress, e.Sender, e.IP, e.Subject)
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
