package domain

import "encoding/json"

// Product is a catalog item as the storefront knows it. It is identified by
// ID, which is serialized as "_id" to match the catalog documents.
//
// Catalog fields the storefront does not model are kept in Attributes and
// written back as top-level keys, so carts and favorites round-trip them.
type Product struct {
	ID              string         `json:"_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Images          []string       `json:"images,omitempty"`
	RegularPrice    float64        `json:"regularPrice"`
	DiscountedPrice float64        `json:"discountedPrice"`
	Category        string         `json:"category,omitempty"`
	Brand           string         `json:"brand,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty,remain"`
}

var productKeys = []string{"_id", "name", "description", "images", "regularPrice", "discountedPrice", "category", "brand"}

type productFields Product

func (p Product) MarshalJSON() ([]byte, error) {
	return marshalProduct(p, nil)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var known productFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var rest map[string]any
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	for _, k := range productKeys {
		delete(rest, k)
	}

	*p = Product(known)
	p.Attributes = nil
	if len(rest) > 0 {
		p.Attributes = rest
	}

	return nil
}

// marshalProduct writes the known fields over the attributes, then extra.
func marshalProduct(p Product, extra map[string]any) ([]byte, error) {
	attrs := p.Attributes
	p.Attributes = nil

	known, err := json.Marshal(productFields(p))
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 && len(extra) == 0 {
		return known, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(attrs)+len(fields)+len(extra))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}

	return json.Marshal(out)
}

func (p Product) Clone() Product {
	c := p
	if p.Images != nil {
		c.Images = append([]string(nil), p.Images...)
	}
	if p.Attributes != nil {
		c.Attributes = make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// CartLine is a product in the cart. Quantity is always at least 1.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (l CartLine) MarshalJSON() ([]byte, error) {
	return marshalProduct(l.Product, map[string]any{"quantity": l.Quantity})
}

func (l *CartLine) UnmarshalJSON(data []byte) error {
	var p Product
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}

	var q struct {
		Quantity int `json:"quantity"`
	}
	if err := json.Unmarshal(data, &q); err != nil {
		return err
	}

	delete(p.Attributes, "quantity")
	if len(p.Attributes) == 0 {
		p.Attributes = nil
	}

	l.Product = p
	l.Quantity = q.Quantity

	return nil
}

func (l CartLine) Clone() CartLine {
	return CartLine{Product: l.Product.Clone(), Quantity: l.Quantity}
}

// LineTotal is the discounted price times quantity.
func (l CartLine) LineTotal() float64 {
	return l.DiscountedPrice * float64(l.Quantity)
}

// FavoriteItem is a product the user marked as favorite.
type FavoriteItem struct {
	Product
}

func (f FavoriteItem) Clone() FavoriteItem {
	return FavoriteItem{Product: f.Product.Clone()}
}
