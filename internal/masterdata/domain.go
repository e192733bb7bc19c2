// Package masterdata proxies the stock-related reference collections of the
// ERP backend: magasins, categories, fournisseurs, produits and clients.
// Rows travel through untyped, exactly as the backend serves them; the
// gateway's only contribution is rights-based pruning, search and paging.
package masterdata

// Resource describes one proxied collection.
type Resource struct {
	// Name is the route segment and collection name, e.g. "magasins".
	Name string
	// Path is the backend collection path.
	Path string
	// FilterKind selects the droits filter applied to list responses; empty
	// means the collection has no rights axis and is served unfiltered.
	FilterKind string
	// RequireMagasin gates the collection's routes behind the mandatory
	// magasin check.
	RequireMagasin bool
}

// Resources lists every proxied collection. Fournisseurs carry no rights
// axis of their own but still sit behind the magasin gate like the rest of
// the stock screens.
func Resources() []Resource {
	return []Resource{
		{Name: "magasins", Path: "/magasins", FilterKind: "magasins", RequireMagasin: true},
		{Name: "categories", Path: "/categories", FilterKind: "categories", RequireMagasin: true},
		{Name: "fournisseurs", Path: "/fournisseurs", FilterKind: "", RequireMagasin: true},
		{Name: "produits", Path: "/produits", FilterKind: "products", RequireMagasin: true},
		{Name: "clients", Path: "/clients", FilterKind: "clients", RequireMagasin: true},
	}
}
