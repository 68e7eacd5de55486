package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/bookstore-session/catalog"
	"github.com/jrsteele09/bookstore-session/guard"
)

// NewBooksCommand creates the books command group.
func NewBooksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}
	cmd.AddCommand(newBooksListCommand(rootOpts))
	cmd.AddCommand(newBooksGetCommand(rootOpts))
	cmd.AddCommand(newBooksCreateCommand(rootOpts))
	cmd.AddCommand(newBooksDeleteCommand(rootOpts))
	return cmd
}

func newBooksListCommand(rootOpts *RootOptions) *cobra.Command {
	var filters catalog.BookFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Public, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				page, err := app.Catalog.Books(ctx, filters)
				if err != nil {
					return err
				}
				return out.Success(page, func(w io.Writer) {
					writeBooks(w, page.Data)
					fmt.Fprintf(w, "%d of %d\n", len(page.Data), page.Total)
				})
			})
		},
	}
	cmd.Flags().StringVar(&filters.Title, "title", "", "filter by title")
	cmd.Flags().StringVar(&filters.Author, "author", "", "filter by author name")
	cmd.Flags().StringVar(&filters.CategoryID, "category", "", "filter by category id")
	cmd.Flags().Float64Var(&filters.MinPrice, "min-price", 0, "minimum price")
	cmd.Flags().Float64Var(&filters.MaxPrice, "max-price", 0, "maximum price")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&filters.Offset, "offset", 0, "page offset")
	return cmd
}

func newBooksGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Public, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				book, err := app.Catalog.Book(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(book, func(w io.Writer) {
					writeBooks(w, []catalog.Book{book})
					if book.Description != "" {
						fmt.Fprintln(w, book.Description)
					}
				})
			})
		},
	}
}

func newBooksCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var book catalog.Book
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book to the catalog (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Admin, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				created, err := app.Catalog.CreateBook(ctx, book)
				if err != nil {
					return err
				}
				return out.Success(created, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s\n", created.ID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&book.Title, "title", "", "title")
	cmd.Flags().StringVar(&book.ISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&book.Description, "description", "", "description")
	cmd.Flags().Float64Var(&book.Price, "price", 0, "price")
	cmd.Flags().IntVar(&book.StockQuantity, "stock", 0, "stock quantity")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newBooksDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a book from the catalog (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Admin, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Catalog.DeleteBook(ctx, args[0]); err != nil {
					return err
				}
				return out.Success(map[string]string{"id": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %s\n", args[0])
				})
			})
		},
	}
}

// NewCategoriesCommand creates the categories command group.
func NewCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Browse catalog categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Public, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				categories, err := app.Catalog.Categories(ctx)
				if err != nil {
					return err
				}
				return out.Success(categories, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tSLUG")
					for _, c := range categories {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Slug)
					}
					tw.Flush()
				})
			})
		},
	})
	return cmd
}

// NewWishlistCommand creates the wishlist command group.
func NewWishlistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage your wishlist",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List wishlist books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Authenticated, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				list, err := app.Catalog.Wishlist(ctx)
				if err != nil {
					return err
				}
				return out.Success(list, func(w io.Writer) {
					books := make([]catalog.Book, 0, len(list.Data))
					for _, item := range list.Data {
						if item.Book != nil {
							books = append(books, *item.Book)
						} else {
							books = append(books, catalog.Book{ID: item.BookID})
						}
					}
					writeBooks(w, books)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <book-id>",
		Short: "Add a book to your wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Authenticated, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				item, err := app.Catalog.AddToWishlist(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Success(item, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s\n", item.BookID)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from your wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuarded(rootOpts, cmd, guard.Authenticated, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Catalog.RemoveFromWishlist(ctx, args[0]); err != nil {
					return err
				}
				return out.Success(map[string]string{"book_id": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Removed %s\n", args[0])
				})
			})
		},
	})
	return cmd
}

func writeBooks(w io.Writer, books []catalog.Book) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHORS\tPRICE")
	for _, b := range books {
		names := make([]string, 0, len(b.Authors))
		for _, a := range b.Authors {
			names = append(names, a.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\n", b.ID, b.Title, strings.Join(names, ", "), b.Price)
	}
	tw.Flush()
}
