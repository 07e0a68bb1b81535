/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/storagemodels"
)

// exprFlags are the condition placeholders shared by several commands.
type exprFlags struct {
	names  *string
	values *string
}

func addExprFlags(fs *flag.FlagSet) exprFlags {
	return exprFlags{
		names:  fs.String("names", "", "Expression attribute names as a JSON object"),
		values: fs.String("values", "", "Expression attribute values as a JSON object"),
	}
}

func (a *app) parseExpr(f exprFlags) (map[string]string, attr.Record, error) {
	var names map[string]string
	if *f.names != "" {
		if err := json.Unmarshal([]byte(*f.names), &names); err != nil {
			return nil, nil, fmt.Errorf("invalid -names: %w", err)
		}
	}
	var values attr.Record
	if *f.values != "" {
		var err error
		if values, err = a.parseRecord(*f.values); err != nil {
			return nil, nil, fmt.Errorf("invalid -values: %w", err)
		}
	}
	return names, values, nil
}

// parseRecord reads a record from text or from @file.
func (a *app) parseRecord(arg string) (attr.Record, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	if !a.plain {
		return attr.UnmarshalWireJSON(data)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var in map[string]any
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to parse json: %w", err)
	}
	return attr.RecordFromGo(in)
}

func (a *app) renderRecord(r attr.Record) (json.RawMessage, error) {
	if a.plain {
		return json.Marshal(r.ToGo())
	}
	return attr.MarshalWireJSON(r)
}

type pageOutput struct {
	Items        []json.RawMessage `json:"items"`
	Count        int32             `json:"count"`
	ScannedCount int32             `json:"scannedCount"`
	Cursor       string            `json:"cursor,omitempty"`
}

func (a *app) printPage(page *storagemodels.Page) error {
	out := pageOutput{Items: []json.RawMessage{}, Count: page.Count, ScannedCount: page.ScannedCount}
	for _, item := range page.Items {
		raw, err := a.renderRecord(item)
		if err != nil {
			return err
		}
		out.Items = append(out.Items, raw)
	}
	cursor, err := storagemodels.EncodeCursor(page.Cursor)
	if err != nil {
		return err
	}
	out.Cursor = cursor
	return a.printJSON(out)
}

// printItems writes one item per line.
func (a *app) printItems(items []attr.Record) error {
	for _, item := range items {
		raw, err := a.renderRecord(item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.out, "%s\n", raw); err != nil {
			return err
		}
	}
	return nil
}

func requireTable(table string) error {
	if table == "" {
		return fmt.Errorf("-table is required")
	}
	return nil
}

func (a *app) put(ctx context.Context, args []string) error {
	fs := subcommand("put")
	table := fs.String("table", "", "Table name")
	itemArg := fs.String("item", "", "Item as JSON or @file")
	condition := fs.String("condition", "", "Condition expression")
	returnOld := fs.Bool("return-old", false, "Print the replaced item")
	ef := addExprFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireTable(*table); err != nil {
		return err
	}
	item, err := a.parseRecord(*itemArg)
	if err != nil {
		return fmt.Errorf("invalid -item: %w", err)
	}
	names, values, err := a.parseExpr(ef)
	if err != nil {
		return err
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	res, err := client.PutItem(ctx, *table, item, &storagemodels.PutOptions{
		ConditionExpression:       *condition,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnOldItem:             *returnOld,
	})
	if err != nil {
		return err
	}
	if res.OldItem != nil {
		return a.printItems([]attr.Record{res.OldItem})
	}
	return nil
}

func (a *app) get(ctx context.Context, args []string) error {
	fs := subcommand("get")
	table := fs.String("table", "", "Table name")
	keyArg := fs.String("key", "", "Key as JSON or @file")
	consistent := fs.Bool("consistent", false, "Strongly consistent read")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireTable(*table); err != nil {
		return err
	}
	key, err := a.parseRecord(*keyArg)
	if err != nil {
		return fmt.Errorf("invalid -key: %w", err)
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	res, err := client.GetItem(ctx, *table, key, &storagemodels.GetOptions{ConsistentRead: *consistent})
	if err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("item not found")
	}
	return a.printItems([]attr.Record{res.Item})
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := subcommand("delete")
	table := fs.String("table", "", "Table name")
	keyArg := fs.String("key", "", "Key as JSON or @file")
	condition := fs.String("condition", "", "Condition expression")
	ef := addExprFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireTable(*table); err != nil {
		return err
	}
	key, err := a.parseRecord(*keyArg)
	if err != nil {
		return fmt.Errorf("invalid -key: %w", err)
	}
	names, values, err := a.parseExpr(ef)
	if err != nil {
		return err
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.DeleteItem(ctx, *table, key, &storagemodels.DeleteOptions{
		ConditionExpression:       *condition,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (a *app) query(ctx context.Context, args []string) error {
	fs := subcommand("query")
	table := fs.String("table", "", "Table name")
	index := fs.String("index", "", "Secondary index name")
	keyCondition := fs.String("key-condition", "", "Key condition expression")
	filter := fs.String("filter", "", "Filter expression")
	limit := fs.Int("limit", 0, "Items evaluated per page")
	desc := fs.Bool("desc", false, "Descending sort key order")
	consistent := fs.Bool("consistent", false, "Strongly consistent read")
	cursor := fs.String("cursor", "", "Cursor from a previous page")
	all := fs.Bool("all", false, "Follow cursors and print every item")
	ef := addExprFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireTable(*table); err != nil {
		return err
	}
	names, values, err := a.parseExpr(ef)
	if err != nil {
		return err
	}
	start, err := storagemodels.DecodeCursor(*cursor)
	if err != nil {
		return err
	}

	opts := &storagemodels.QueryOptions{
		IndexName:                 *index,
		KeyConditionExpression:    *keyCondition,
		FilterExpression:          *filter,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		Limit:                     int32(*limit),
		ConsistentRead:            *consistent,
		ExclusiveStartKey:         start,
	}
	if *desc {
		forward := false
		opts.ScanIndexForward = &forward
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	if *all {
		items, err := client.QueryAll(ctx, *table, opts)
		if err != nil {
			return err
		}
		return a.printItems(items)
	}
	page, err := client.QueryTable(ctx, *table, opts)
	if err != nil {
		return err
	}
	return a.printPage(page)
}

func (a *app) scan(ctx context.Context, args []string) error {
	fs := subcommand("scan")
	table := fs.String("table", "", "Table name")
	index := fs.String("index", "", "Secondary index name")
	filter := fs.String("filter", "", "Filter expression")
	limit := fs.Int("limit", 0, "Items evaluated per page")
	consistent := fs.Bool("consistent", false, "Strongly consistent read")
	cursor := fs.String("cursor", "", "Cursor from a previous page")
	all := fs.Bool("all", false, "Follow cursors and print every item")
	segments := fs.Int("segments", 0, "Scan the whole table with this many parallel segments")
	ef := addExprFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireTable(*table); err != nil {
		return err
	}
	names, values, err := a.parseExpr(ef)
	if err != nil {
		return err
	}
	start, err := storagemodels.DecodeCursor(*cursor)
	if err != nil {
		return err
	}

	opts := &storagemodels.ScanOptions{
		IndexName:                 *index,
		FilterExpression:          *filter,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		Limit:                     int32(*limit),
		ConsistentRead:            *consistent,
		ExclusiveStartKey:         start,
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	switch {
	case *segments > 0:
		// Pages arrive from several goroutines.
		var mu sync.Mutex
		return client.ParallelScan(ctx, *table, int32(*segments), opts, func(_ int32, page *storagemodels.Page) error {
			mu.Lock()
			defer mu.Unlock()
			return a.printItems(page.Items)
		})
	case *all:
		items, err := client.ScanAll(ctx, *table, opts)
		if err != nil {
			return err
		}
		return a.printItems(items)
	default:
		page, err := client.ScanTable(ctx, *table, opts)
		if err != nil {
			return err
		}
		return a.printPage(page)
	}
}
