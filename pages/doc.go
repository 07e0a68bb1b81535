/*
Package pages stores versioned pages and the folders that group them.

All records live in one table keyed by pk and sk:

	PAGE#<id>     META               page header with its location
	PAGE#<id>     VERSION#00000003   one version of the page
	FOLDER#<id>   META               folder with its optional parent

The by-location global index lists page headers under a location. New
versions are written with an attribute_not_exists condition, so two writers
racing for the same version number cannot both succeed.

	repo := pages.New(client, "")
	page, err := repo.CreatePage(ctx, "/docs", "draft")
	v, err := repo.AddVersion(ctx, page.ID, "review")
*/
package pages
