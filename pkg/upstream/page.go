package upstream

import "encoding/json"

// Item is one record of a collection page. Only the fields the aggregation
// core interprets are decoded; the full upstream document is retained
// verbatim and re-emitted on marshal, so pass-through fields (title,
// excerpt, URLs, dates, image) survive caching untouched.
type Item struct {
	ID         string
	Categories []string
	Tags       []string
	Starred    bool

	raw json.RawMessage
}

type itemFields struct {
	ID         string   `json:"id"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Starred    bool     `json:"starred"`
}

// UnmarshalJSON decodes the interpreted fields and keeps the raw document.
func (it *Item) UnmarshalJSON(data []byte) error {
	var f itemFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	it.ID = f.ID
	it.Categories = f.Categories
	it.Tags = f.Tags
	it.Starred = f.Starred
	it.raw = append(json.RawMessage(nil), data...)

	return nil
}

// MarshalJSON emits the original upstream document when available.
func (it Item) MarshalJSON() ([]byte, error) {
	if len(it.raw) > 0 {
		return it.raw, nil
	}
	return json.Marshal(itemFields{
		ID:         it.ID,
		Categories: it.Categories,
		Tags:       it.Tags,
		Starred:    it.Starred,
	})
}

// Raw returns the verbatim upstream document, or nil if the item was not
// built from one.
func (it Item) Raw() json.RawMessage {
	return it.raw
}

// Pagination signals whether another page follows and where to find it.
type Pagination struct {
	NextPage    bool   `json:"nextPage"`
	NextPageURL string `json:"nextPageUrl"`
}

// Page is one fetched collection document. Pages are transient: the pager
// consumes the items and discards the page.
type Page struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// HasNext reports whether the page advertises a usable successor.
func (p *Page) HasNext() bool {
	return p.Pagination.NextPage && p.Pagination.NextPageURL != ""
}
