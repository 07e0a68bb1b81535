/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package pages

import (
	"github.com/go-openapi/strfmt"
)

// Version is one named revision of a page. Versions are numbered from 0.
type Version struct {
	ID        strfmt.UUID     `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	CreatedAt strfmt.DateTime `json:"createdAt"`
}

// Page is a document at a location with its versions in ascending order.
type Page struct {
	ID        strfmt.UUID     `json:"id"`
	Location  string          `json:"location"`
	Versions  []Version       `json:"versions"`
	CreatedAt strfmt.DateTime `json:"createdAt"`
}

// Latest returns the newest version, or nil for a page without versions.
func (p *Page) Latest() *Version {
	if len(p.Versions) == 0 {
		return nil
	}
	return &p.Versions[len(p.Versions)-1]
}

// Folder groups pages. A root folder has no parent.
type Folder struct {
	ID        strfmt.UUID     `json:"id"`
	Name      string          `json:"name"`
	ParentID  strfmt.UUID     `json:"parentId,omitempty"`
	CreatedAt strfmt.DateTime `json:"createdAt"`
}

// item is the stored shape shared by page headers, versions and folders.
type item struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Kind      string `dynamodbav:"kind"`
	ID        string `dynamodbav:"id"`
	Location  string `dynamodbav:"location,omitempty"`
	Name      string `dynamodbav:"name,omitempty"`
	Number    *int   `dynamodbav:"number,omitempty"`
	Parent    string `dynamodbav:"parent,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

func (it item) version() (Version, error) {
	created, err := strfmt.ParseDateTime(it.CreatedAt)
	if err != nil {
		return Version{}, err
	}
	v := Version{ID: strfmt.UUID(it.ID), Name: it.Name, CreatedAt: created}
	if it.Number != nil {
		v.Version = *it.Number
	}
	return v, nil
}

func (it item) page() (Page, error) {
	created, err := strfmt.ParseDateTime(it.CreatedAt)
	if err != nil {
		return Page{}, err
	}
	return Page{ID: strfmt.UUID(it.ID), Location: it.Location, Versions: []Version{}, CreatedAt: created}, nil
}

func (it item) folder() (Folder, error) {
	created, err := strfmt.ParseDateTime(it.CreatedAt)
	if err != nil {
		return Folder{}, err
	}
	return Folder{ID: strfmt.UUID(it.ID), Name: it.Name, ParentID: strfmt.UUID(it.Parent), CreatedAt: created}, nil
}
