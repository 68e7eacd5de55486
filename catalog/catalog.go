package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/jrsteele09/bookstore-session/internal/apiclient"
)

const (
	RouteBooks      = "/api/v1/books"
	RouteCategories = "/api/v1/categories"
	RouteWishlist   = "/api/v1/users/me/wishlist"
)

// Client reads and edits the catalog. It expects an authorized http.Client,
// normally one built on pipeline.Transport.
type Client struct {
	api *apiclient.Client
}

func New(apiURL string, authorized *http.Client) *Client {
	return &Client{api: apiclient.New(apiURL, authorized)}
}

func (f BookFilters) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("title", f.Title)
	set("author", f.Author)
	set("category_id", f.CategoryID)
	if f.MinPrice > 0 {
		v.Set("min_price", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		v.Set("max_price", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	return v
}

func (c *Client) Books(ctx context.Context, filters BookFilters) (BooksPage, error) {
	var page BooksPage
	err := c.api.Do(ctx, http.MethodGet, RouteBooks, filters.values(), nil, &page)
	return page, errors.Wrap(err, "[Client.Books]")
}

func (c *Client) Book(ctx context.Context, id string) (Book, error) {
	var out apiclient.Envelope[Book]
	err := c.api.Do(ctx, http.MethodGet, RouteBooks+"/"+url.PathEscape(id), nil, nil, &out)
	return out.Data, errors.Wrap(err, "[Client.Book]")
}

func (c *Client) CreateBook(ctx context.Context, book Book) (Book, error) {
	var out apiclient.Envelope[Book]
	err := c.api.Do(ctx, http.MethodPost, RouteBooks, nil, book, &out)
	return out.Data, errors.Wrap(err, "[Client.CreateBook]")
}

func (c *Client) UpdateBook(ctx context.Context, id string, book Book) (Book, error) {
	var out apiclient.Envelope[Book]
	err := c.api.Do(ctx, http.MethodPut, RouteBooks+"/"+url.PathEscape(id), nil, book, &out)
	return out.Data, errors.Wrap(err, "[Client.UpdateBook]")
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	err := c.api.Do(ctx, http.MethodDelete, RouteBooks+"/"+url.PathEscape(id), nil, nil, nil)
	return errors.Wrap(err, "[Client.DeleteBook]")
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out apiclient.Envelope[[]Category]
	err := c.api.Do(ctx, http.MethodGet, RouteCategories, nil, nil, &out)
	return out.Data, errors.Wrap(err, "[Client.Categories]")
}

func (c *Client) Category(ctx context.Context, id string) (Category, error) {
	var out apiclient.Envelope[Category]
	err := c.api.Do(ctx, http.MethodGet, RouteCategories+"/"+url.PathEscape(id), nil, nil, &out)
	return out.Data, errors.Wrap(err, "[Client.Category]")
}

func (c *Client) Wishlist(ctx context.Context) (Wishlist, error) {
	var out Wishlist
	err := c.api.Do(ctx, http.MethodGet, RouteWishlist, nil, nil, &out)
	return out, errors.Wrap(err, "[Client.Wishlist]")
}

type addWishlistRequest struct {
	BookID string `json:"book_id"`
}

func (c *Client) AddToWishlist(ctx context.Context, bookID string) (WishlistItem, error) {
	var out apiclient.Envelope[WishlistItem]
	err := c.api.Do(ctx, http.MethodPost, RouteWishlist, nil, addWishlistRequest{BookID: bookID}, &out)
	return out.Data, errors.Wrap(err, "[Client.AddToWishlist]")
}

func (c *Client) RemoveFromWishlist(ctx context.Context, bookID string) error {
	err := c.api.Do(ctx, http.MethodDelete, RouteWishlist+"/"+url.PathEscape(bookID), nil, nil, nil)
	return errors.Wrap(err, "[Client.RemoveFromWishlist]")
}
