package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dfryer1193/spacetraveling/blog/application"
	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/dfryer1193/spacetraveling/shared/config"
	"github.com/spf13/cobra"
)

func newBrowseCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "browse [slug]",
		Short: "Print the post index, or a single post",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				outcome, err := a.posts.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if outcome.Redirect != nil {
					fmt.Fprintf(out, "Post %q not found; redirecting to %s\n", args[0], outcome.Redirect.Destination)
					return nil
				}
				printPost(out, outcome.Page)
				return nil
			}

			list, err := a.posts.IndexPage(ctx)
			if err != nil {
				return err
			}
			if err := a.posts.Paginator().LoadAll(ctx, list, limit); err != nil {
				return err
			}
			printIndex(out, list)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "stop loading pages once this many posts are listed (0 loads all)")
	return cmd
}

func printIndex(w io.Writer, list *domain.PagedPostList) {
	for _, p := range list.Items() {
		fmt.Fprintf(w, "%s  %-40s  %s\n", application.FormatDate(p.PublishedAt), p.Title, p.Author)
		if p.Subtitle != "" {
			fmt.Fprintf(w, "             %s\n", p.Subtitle)
		}
		fmt.Fprintf(w, "             /posts/%s\n", p.UID)
	}
	if list.HasMore() {
		fmt.Fprintln(w, "(more posts available)")
	}
}

func printPost(w io.Writer, page *domain.PostPage) {
	post := page.Post
	fmt.Fprintln(w, post.Title)
	fmt.Fprintf(w, "%s · %s · %s\n", page.FormattedDate, post.Author, application.FormatReadingTime(page.ReadingTime))
	if page.Edited {
		fmt.Fprintf(w, "* editado em %s\n", page.FormattedEditedAt)
	}
	for _, sec := range post.Sections {
		fmt.Fprintln(w)
		if sec.Heading != "" {
			fmt.Fprintln(w, sec.Heading)
			fmt.Fprintln(w, strings.Repeat("-", len([]rune(sec.Heading))))
		}
		fmt.Fprintln(w, domain.AsText(sec.Body))
	}
	fmt.Fprintln(w)
	if prev := page.Neighbors.Previous; prev != nil {
		fmt.Fprintf(w, "Post anterior: %s (/posts/%s)\n", prev.Title, prev.UID)
	}
	if next := page.Neighbors.Next; next != nil {
		fmt.Fprintf(w, "Próximo post: %s (/posts/%s)\n", next.Title, next.UID)
	}
}
