/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/suparena/recordstore/registry"
)

func (a *app) tables(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing tables subcommand")
	}
	client, err := a.client(ctx)
	if err != nil {
		return err
	}

	fs := subcommand("tables " + args[0])
	file := fs.String("f", "", "Table descriptor YAML file")
	wait := fs.Bool("wait", false, "Wait for the table to settle")
	timeout := fs.Duration("timeout", 5*time.Minute, "Maximum time to wait")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "list":
		names, err := client.ListTables(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(a.out, name)
		}
		return nil

	case "describe":
		if fs.NArg() != 1 {
			return fmt.Errorf("describe takes one table name")
		}
		desc, err := client.DescribeTable(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return a.printJSON(desc)

	case "create", "update":
		if *file == "" {
			return fmt.Errorf("%s needs -f <descriptor.yaml>", args[0])
		}
		desc, err := registry.ReadDescriptor(*file)
		if err != nil {
			return err
		}
		if args[0] == "create" {
			err = client.CreateTable(ctx, desc)
		} else {
			err = client.UpdateTable(ctx, desc)
		}
		if err != nil {
			return err
		}
		if *wait {
			if err := client.WaitUntilActive(ctx, desc.Name, *timeout); err != nil {
				return err
			}
		}
		fmt.Fprintf(a.out, "%s: %sd\n", desc.Name, args[0])
		return nil

	case "delete":
		if fs.NArg() != 1 {
			return fmt.Errorf("delete takes one table name")
		}
		name := fs.Arg(0)
		if err := client.DeleteTable(ctx, name); err != nil {
			return err
		}
		if *wait {
			if err := client.WaitUntilDeleted(ctx, name, *timeout); err != nil {
				return err
			}
		}
		fmt.Fprintf(a.out, "%s: deleted\n", name)
		return nil

	case "ensure":
		return a.storage.EnsureTables(ctx)

	default:
		return fmt.Errorf("unknown tables subcommand %q", args[0])
	}
}
