// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:    "event",
		Summary: "Create and manage events",
		Subcommands: []*cli.Command{
			eventCreateCommand(),
			eventLifecycleCommand("publish", "Open a draft event for registration", "event.publish"),
			eventLifecycleCommand("start", "Mark an open event as in progress", "event.start"),
			eventLifecycleCommand("complete", "Complete an in-progress event", "event.complete"),
			eventLifecycleCommand("cancel", "Cancel an event before completion", "event.cancel"),
			eventLifecycleCommand("unlock", "Release escrowed funds after the refund deadline", "event.unlock"),
			eventShowCommand(),
			eventListCommand(),
			eventAttendeesCommand(),
		},
	}
}

func eventCreateCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var name, description, category, venueRef, imageRef string
	var start, end, registrationDeadline, refundDeadline string
	var capacity, price uint64
	var transferable bool

	return &cli.Command{
		Name:    "create",
		Summary: "Create a draft event with its treasury and ticket pool",
		Examples: []cli.Example{
			{
				Description: "Create a 500-seat show",
				Command:     "turnstile event create --name 'Warehouse Night' --category music --start 2026-09-01T20:00:00Z --end 2026-09-02T02:00:00Z --capacity 500 --price 1000",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&name, "name", "", "event name (required)")
			flags.StringVar(&description, "description", "", "event description")
			flags.StringVar(&category, "category", "", "event category")
			flags.StringVar(&venueRef, "venue", "", "venue blob reference")
			flags.StringVar(&imageRef, "image", "", "image blob reference")
			flags.StringVar(&start, "start", "", "start time, RFC 3339 (required)")
			flags.StringVar(&end, "end", "", "end time, RFC 3339 (required)")
			flags.StringVar(&registrationDeadline, "registration-deadline", "", "registration deadline, RFC 3339 (defaults to start)")
			flags.StringVar(&refundDeadline, "refund-deadline", "", "refund deadline, RFC 3339 (defaults to start)")
			flags.Uint64Var(&capacity, "capacity", 0, "ticket capacity (required)")
			flags.Uint64Var(&price, "price", 0, "ticket price in base units")
			flags.BoolVar(&transferable, "transferable", true, "allow ticket transfers")
			return flags
		},
		Run: func(args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			startTime, err := parseTime(start, "start")
			if err != nil {
				return err
			}
			endTime, err := parseTime(end, "end")
			if err != nil {
				return err
			}
			regDeadline, err := parseTime(registrationDeadline, "registration-deadline")
			if err != nil {
				return err
			}
			if regDeadline == 0 {
				regDeadline = startTime
			}
			refDeadline, err := parseTime(refundDeadline, "refund-deadline")
			if err != nil {
				return err
			}
			if refDeadline == 0 {
				refDeadline = startTime
			}

			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var created event.Created
			err = client.Call(context.Background(), "event.create", map[string]any{
				"metadata": event.Metadata{
					Name:        name,
					Description: description,
					Category:    category,
					VenueRef:    venueRef,
					ImageRef:    imageRef,
				},
				"config": event.Config{
					StartTime:            startTime,
					EndTime:              endTime,
					RegistrationDeadline: regDeadline,
					RefundDeadline:       refDeadline,
					Capacity:             capacity,
					TicketPrice:          price,
					Transferable:         transferable,
				},
			}, &created)
			if err != nil {
				return err
			}
			return cli.WriteJSON(created)
		},
	}
}

// eventLifecycleCommand builds the shared shape of the status
// transition commands: all take a capability and an event ID.
func eventLifecycleCommand(name, summary, action string) *cli.Command {
	var conn cli.ConnectionFlags
	var capID, eventID string

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&capID, "cap", "", "organizer capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(capID)
			if err != nil {
				return fmt.Errorf("--cap: %w", err)
			}
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result map[string]any
			err = client.Call(context.Background(), action, map[string]any{
				"cap_id":   capObjectID,
				"event_id": eventObjectID,
			}, &result)
			if err != nil {
				return err
			}
			if len(result) > 0 {
				return cli.WriteJSON(result)
			}
			return nil
		},
	}
}

func eventShowCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var eventID string

	return &cli.Command{
		Name:    "show",
		Summary: "Show full event state",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var ev event.Event
			if err := client.Call(context.Background(), "event.read", map[string]any{"event_id": id}, &ev); err != nil {
				return err
			}
			return cli.WriteJSON(ev)
		},
	}
}

func eventListCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var category string

	return &cli.Command{
		Name:    "list",
		Summary: "List events, optionally by category",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&category, "category", "", "only events in this category")
			return flags
		},
		Run: func(args []string) error {
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result map[string]any
			fields := map[string]any{}
			if category != "" {
				fields["category"] = category
			}
			if err := client.Call(context.Background(), "event.list", fields, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func eventAttendeesCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var eventID string

	return &cli.Command{
		Name:    "attendees",
		Summary: "List an event's registered attendees",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("attendees", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				Attendees map[string]event.Registration `cbor:"attendees" json:"attendees"`
				Count     int                           `cbor:"count" json:"count"`
			}
			if err := client.Call(context.Background(), "event.attendees", map[string]any{"event_id": id}, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}
