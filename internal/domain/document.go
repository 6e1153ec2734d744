package domain

import "context"

// Document is a schemaless record in the remote document store.
type Document map[string]any

const (
	CollectionUsers     = "users"
	CollectionCarts     = "carts"
	CollectionFavorites = "favorites"
	CollectionOrders    = "orders"
)

// DocumentRepo is a hosted document database. Read returns nil, nil when the
// document does not exist. Write replaces the whole document.
type DocumentRepo interface {
	Read(ctx context.Context, collection, id string) (Document, error)
	Write(ctx context.Context, collection, id string, body Document) error
}

// RemoteWrite is a pending full-document overwrite.
type RemoteWrite struct {
	Collection string
	DocID      string
	Body       Document
}

func (w RemoteWrite) Key() string {
	return w.Collection + "/" + w.DocID
}
