package catalog

import (
	"encoding/json"
	"time"
)

// The session layer passes these resources through without interpreting
// them, so only the fields the CLI shows are typed.

type Book struct {
	ID              string          `json:"id"`
	ISBN            string          `json:"isbn"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Price           float64         `json:"price"`
	StockQuantity   int             `json:"stock_quantity"`
	PublisherID     string          `json:"publisher_id,omitempty"`
	PublicationDate string          `json:"publication_date,omitempty"`
	Language        string          `json:"language,omitempty"`
	Pages           int             `json:"pages,omitempty"`
	Format          string          `json:"format,omitempty"`
	CoverImageURL   string          `json:"cover_image_url,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Authors         []Author        `json:"authors,omitempty"`
	Categories      []Category      `json:"categories,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID string `json:"parent_id,omitempty"`
}

// BookFilters are the list query parameters. Zero values are omitted.
type BookFilters struct {
	Title      string
	Author     string
	CategoryID string
	MinPrice   float64
	MaxPrice   float64
	Limit      int
	Offset     int
}

type BooksPage struct {
	Data   []Book `json:"data"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type WishlistItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	Book      *Book     `json:"book,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Wishlist struct {
	Data  []WishlistItem `json:"data"`
	Total int            `json:"total"`
}
