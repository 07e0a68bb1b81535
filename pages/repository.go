/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package pages

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/suparena/recordstore/attr"
	"github.com/suparena/recordstore/datastore"
	"github.com/suparena/recordstore/errors"
	"github.com/suparena/recordstore/registry"
	"github.com/suparena/recordstore/storagemodels"
)

// DefaultTable is the table pages and folders are stored in unless New is given another.
const DefaultTable = "pages"

// LocationIndex is the global index listing page headers by location.
const LocationIndex = "by-location"

const (
	pagePrefix    = "PAGE#"
	folderPrefix  = "FOLDER#"
	versionPrefix = "VERSION#"
	metaSort      = "META"

	kindPage    = "page"
	kindVersion = "version"
	kindFolder  = "folder"
)

var (
	// ErrPageNotFound is returned when a page id does not exist.
	ErrPageNotFound = stderrors.New("page not found")
	// ErrFolderNotFound is returned when a folder id does not exist.
	ErrFolderNotFound = stderrors.New("folder not found")
	// ErrVersionConflict is returned when another writer added the same version first.
	ErrVersionConflict = stderrors.New("version already exists")
)

func init() {
	registry.RegisterType[Page](DefaultTable)
	registry.RegisterType[Folder](DefaultTable)
}

// Descriptor returns the table layout the repository expects under name.
func Descriptor(name string) storagemodels.TableDescriptor {
	return storagemodels.TableDescriptor{
		Name: name,
		AttributeDefinitions: []storagemodels.AttributeDefinition{
			{Name: "pk", Type: storagemodels.ScalarString},
			{Name: "sk", Type: storagemodels.ScalarString},
			{Name: "location", Type: storagemodels.ScalarString},
		},
		KeySchema: storagemodels.KeySchema{PartitionKey: "pk", SortKey: "sk"},
		GlobalSecondaryIndexes: []storagemodels.GlobalSecondaryIndex{{
			Name:      LocationIndex,
			KeySchema: storagemodels.KeySchema{PartitionKey: "location", SortKey: "pk"},
		}},
		BillingMode: storagemodels.BillingOnDemand,
	}
}

// Repository stores pages, their versions and folders in one table.
type Repository struct {
	store datastore.ItemStore
	table string
	now   func() time.Time
	newID func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the time source for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIDGenerator sets the id source. The default generates random UUIDs.
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) {
		r.newID = newID
	}
}

// New returns a repository over store. An empty table selects the table
// registered for Page.
func New(store datastore.ItemStore, table string, opts ...Option) *Repository {
	if table == "" {
		table = registry.MustTableFor[Page]()
	}
	r := &Repository{
		store: store,
		table: table,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreatePage stores a new page at location with its first version named name.
func (r *Repository) CreatePage(ctx context.Context, location, name string) (*Page, error) {
	if location == "" {
		return nil, errors.NewValidationError("location", "location is required")
	}
	if name == "" {
		return nil, errors.NewValidationError("name", "version name is required")
	}

	id := r.newID()
	created := r.timestamp()
	header := item{
		PK:        pagePrefix + id,
		SK:        metaSort,
		Kind:      kindPage,
		ID:        id,
		Location:  location,
		CreatedAt: created.String(),
	}
	if err := r.putNew(ctx, header); err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	v, err := r.putVersion(ctx, id, 0, name, created)
	if err != nil {
		// A header without versions is not a page; take it back out.
		if cleanupErr := r.deleteHeader(context.WithoutCancel(ctx), id); cleanupErr != nil {
			return nil, stderrors.Join(err, fmt.Errorf("failed to remove header of page %s: %w", id, cleanupErr))
		}
		return nil, err
	}
	return &Page{ID: strfmt.UUID(id), Location: location, Versions: []Version{*v}, CreatedAt: created}, nil
}

// AddVersion appends a version named name to the page. Concurrent writers
// racing for the same number get ErrVersionConflict.
func (r *Repository) AddVersion(ctx context.Context, pageID strfmt.UUID, name string) (*Version, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "version name is required")
	}
	if err := checkID("pageID", pageID); err != nil {
		return nil, err
	}

	expr, err := expression.NewBuilder().WithKeyCondition(
		expression.Key("pk").Equal(expression.Value(pagePrefix + pageID.String())).
			And(expression.Key("sk").BeginsWith(versionPrefix)),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build version query: %w", err)
	}
	opts, err := queryOptions(expr)
	if err != nil {
		return nil, err
	}
	forward := false
	opts.ScanIndexForward = &forward
	opts.Limit = 1
	opts.ConsistentRead = true

	page, err := r.store.QueryTable(ctx, r.table, opts)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}
	var latest item
	if err := attr.Unmarshal(page.Items[0], &latest); err != nil {
		return nil, err
	}
	next := 0
	if latest.Number != nil {
		next = *latest.Number + 1
	}
	return r.putVersion(ctx, pageID.String(), next, name, r.timestamp())
}

// GetPage returns the page with all its versions.
func (r *Repository) GetPage(ctx context.Context, id strfmt.UUID) (*Page, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}

	expr, err := expression.NewBuilder().WithKeyCondition(
		expression.Key("pk").Equal(expression.Value(pagePrefix + id.String())),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build page query: %w", err)
	}
	opts, err := queryOptions(expr)
	if err != nil {
		return nil, err
	}
	records, err := r.queryAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	var items []item
	if err := attr.UnmarshalAll(records, &items); err != nil {
		return nil, err
	}
	var page *Page
	versions := []Version{}
	for _, it := range items {
		switch it.Kind {
		case kindPage:
			p, err := it.page()
			if err != nil {
				return nil, fmt.Errorf("page %s: %w", id, err)
			}
			page = &p
		case kindVersion:
			v, err := it.version()
			if err != nil {
				return nil, fmt.Errorf("page %s: %w", id, err)
			}
			versions = append(versions, v)
		}
	}
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	page.Versions = versions
	return page, nil
}

// ListPagesByLocation returns every page at location ordered by id.
func (r *Repository) ListPagesByLocation(ctx context.Context, location string) ([]Page, error) {
	if location == "" {
		return nil, errors.NewValidationError("location", "location is required")
	}

	expr, err := expression.NewBuilder().WithKeyCondition(
		expression.Key("location").Equal(expression.Value(location)),
	).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build location query: %w", err)
	}
	opts, err := queryOptions(expr)
	if err != nil {
		return nil, err
	}
	opts.IndexName = LocationIndex
	records, err := r.queryAll(ctx, opts)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(records))
	for _, rec := range records {
		id, _ := rec.GetString("id")
		p, err := r.GetPage(ctx, strfmt.UUID(id))
		if stderrors.Is(err, ErrPageNotFound) {
			// Deleted between the index read and the page read.
			continue
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}

// CreateFolder stores a folder. A non-empty parentID must name an existing folder.
func (r *Repository) CreateFolder(ctx context.Context, name string, parentID strfmt.UUID) (*Folder, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "folder name is required")
	}
	if parentID != "" {
		if _, err := r.GetFolder(ctx, parentID); err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
	}

	id := r.newID()
	created := r.timestamp()
	folder := item{
		PK:        folderPrefix + id,
		SK:        metaSort,
		Kind:      kindFolder,
		ID:        id,
		Name:      name,
		Parent:    parentID.String(),
		CreatedAt: created.String(),
	}
	if err := r.putNew(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return &Folder{ID: strfmt.UUID(id), Name: name, ParentID: parentID, CreatedAt: created}, nil
}

// GetFolder returns the folder with id.
func (r *Repository) GetFolder(ctx context.Context, id strfmt.UUID) (*Folder, error) {
	if err := checkID("id", id); err != nil {
		return nil, err
	}
	key := attr.Record{"pk": attr.String(folderPrefix + id.String()), "sk": attr.String(metaSort)}
	res, err := r.store.GetItem(ctx, r.table, key, &storagemodels.GetOptions{ConsistentRead: true})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}

	var it item
	if err := attr.Unmarshal(res.Item, &it); err != nil {
		return nil, err
	}
	f, err := it.folder()
	if err != nil {
		return nil, fmt.Errorf("folder %s: %w", id, err)
	}
	return &f, nil
}

func (r *Repository) putVersion(ctx context.Context, pageID string, number int, name string, created strfmt.DateTime) (*Version, error) {
	id := r.newID()
	v := item{
		PK:        pagePrefix + pageID,
		SK:        fmt.Sprintf("%s%08d", versionPrefix, number),
		Kind:      kindVersion,
		ID:        id,
		Name:      name,
		Number:    &number,
		CreatedAt: created.String(),
	}
	err := r.putNew(ctx, v)
	if errors.IsConditionFailed(err) {
		return nil, fmt.Errorf("%w: version %d of page %s", ErrVersionConflict, number, pageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add version: %w", err)
	}
	return &Version{ID: strfmt.UUID(id), Name: name, Version: number, CreatedAt: created}, nil
}

func (r *Repository) deleteHeader(ctx context.Context, pageID string) error {
	expr, err := expression.NewBuilder().WithCondition(expression.AttributeExists(expression.Name("pk"))).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	params, err := storagemodels.FromExpression(expr)
	if err != nil {
		return err
	}
	key := attr.Record{"pk": attr.String(pagePrefix + pageID), "sk": attr.String(metaSort)}
	_, err = r.store.DeleteItem(ctx, r.table, key, params.DeleteOptions())
	return err
}

// putNew writes it only if no item with its key exists.
func (r *Repository) putNew(ctx context.Context, it item) error {
	rec, err := attr.Marshal(it)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().WithCondition(expression.AttributeNotExists(expression.Name("pk"))).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	params, err := storagemodels.FromExpression(expr)
	if err != nil {
		return err
	}
	_, err = r.store.PutItem(ctx, r.table, rec, params.PutOptions())
	return err
}

func (r *Repository) queryAll(ctx context.Context, opts *storagemodels.QueryOptions) ([]attr.Record, error) {
	var records []attr.Record
	for {
		page, err := r.store.QueryTable(ctx, r.table, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Items...)
		if !page.HasMore() {
			return records, nil
		}
		opts.ExclusiveStartKey = page.Cursor
	}
}

func (r *Repository) timestamp() strfmt.DateTime {
	return strfmt.DateTime(r.now().UTC().Truncate(time.Millisecond))
}

func queryOptions(expr expression.Expression) (*storagemodels.QueryOptions, error) {
	params, err := storagemodels.FromExpression(expr)
	if err != nil {
		return nil, err
	}
	return &storagemodels.QueryOptions{
		KeyConditionExpression:    params.KeyCondition,
		ExpressionAttributeNames:  params.Names,
		ExpressionAttributeValues: params.Values,
	}, nil
}

func checkID(field string, id strfmt.UUID) error {
	if !strfmt.IsUUID(id.String()) {
		return errors.NewValidationError(field, fmt.Sprintf("%q is not a UUID", id))
	}
	return nil
}
