package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/scribe/internal/client/feed"
	"github.com/keyxmakerx/scribe/internal/client/platform"
	"github.com/keyxmakerx/scribe/internal/client/posts"
)

const timeLayout = "2006-01-02 15:04"

func (a *App) feedCommand() *cobra.Command {
	var q feed.Query
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the public feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := feed.Filter(a.repo.FetchFeed(cmd.Context()), q)
			if len(list) == 0 {
				fmt.Fprintln(a.Stdout, "No posts found.")
				return nil
			}
			for _, p := range list {
				author := p.AuthorEmail
				if p.AuthorUsername != nil && *p.AuthorUsername != "" {
					author = *p.AuthorUsername
				}
				fmt.Fprintf(a.Stdout, "#%d %s\n  by %s on %s\n", p.ID, p.Title, author, p.CreatedAt.Local().Format(timeLayout))
				writeBody(a.Stdout, p.Content, p.ImageURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Text, "q", "q", "", "match title or content")
	cmd.Flags().StringVar(&q.Author, "author", "", "match author username or email")
	return cmd
}

func (a *App) postsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Manage your posts",
	}
	cmd.AddCommand(a.postsListCommand(), a.postsCreateCommand(), a.postsEditCommand(), a.postsDeleteCommand())
	return cmd
}

func (a *App) postsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.dashboard.Reload(cmd.Context()); err != nil {
				return err
			}
			list := a.dashboard.Posts()
			if len(list) == 0 {
				fmt.Fprintln(a.Stdout, "You have no posts yet.")
				return nil
			}
			for _, p := range list {
				a.printPost(p)
			}
			return nil
		},
	}
}

// draftFlags binds the shared create and edit flags.
type draftFlags struct {
	title   string
	content string
	image   string
}

func (f *draftFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.content, "content", "", "post body")
	cmd.Flags().StringVar(&f.image, "image", "", "image file to attach")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
}

func (f *draftFlags) draft() (posts.Draft, io.Closer, error) {
	d := posts.Draft{Title: f.title, Content: f.content}
	if f.image == "" {
		return d, io.NopCloser(nil), nil
	}
	file, closer, err := openFile(f.image)
	if err != nil {
		return d, nil, err
	}
	d.Image = file
	return d, closer, nil
}

func (a *App) postsCreateCommand() *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closer, err := flags.draft()
			if err != nil {
				return err
			}
			defer closer.Close()
			p, err := a.dashboard.Create(cmd.Context(), d)
			if err != nil {
				return err
			}
			a.toast("ok", fmt.Sprintf("Post #%d created", p.ID))
			a.printPost(*p)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func (a *App) postsEditCommand() *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a post's title and content, and optionally its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, closer, err := flags.draft()
			if err != nil {
				return err
			}
			defer closer.Close()
			p, err := a.dashboard.Edit(cmd.Context(), id, d)
			if err != nil {
				return err
			}
			a.toast("ok", fmt.Sprintf("Post #%d updated", p.ID))
			a.printPost(*p)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func (a *App) postsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.dashboard.Remove(cmd.Context(), id); err != nil {
				return err
			}
			a.toast("ok", fmt.Sprintf("Post #%d deleted", id))
			return nil
		},
	}
}

func (a *App) avatarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a new avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, closer, err := openFile(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()
			p, err := a.profiles.ChangeAvatar(cmd.Context(), *file)
			if err != nil {
				return err
			}
			a.toast("ok", "Avatar updated: "+*p.AvatarURL)
			return nil
		},
	}
}

func (a *App) printPost(p platform.Post) {
	stamp := p.CreatedAt
	if p.UpdatedAt.After(stamp) {
		stamp = p.UpdatedAt
	}
	fmt.Fprintf(a.Stdout, "#%d %s  (%s)\n", p.ID, p.Title, stamp.Local().Format(timeLayout))
	writeBody(a.Stdout, p.Content, p.ImageURL)
}

func writeBody(w io.Writer, content string, imageURL *string) {
	fmt.Fprintf(w, "  %s\n", content)
	if imageURL != nil && *imageURL != "" {
		fmt.Fprintf(w, "  image: %s\n", *imageURL)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", s)
	}
	return id, nil
}
