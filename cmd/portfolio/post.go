package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thomasboom/portfolio/internal/services"
)

func newPostCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage blog posts",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <file>",
			Short: "Store the posts of a JSON or YAML file, as generated by the /blog/new editor",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := opts.openPosts()
				if err != nil {
					return err
				}
				defer db.Close()

				posts, err := services.LoadPosts(args[0])
				if err != nil {
					return err
				}
				n, err := db.ImportPosts(cmd.Context(), posts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d post(s)\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the stored posts, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := opts.openPosts()
				if err != nil {
					return err
				}
				defer db.Close()

				return listPosts(cmd, db, cmd.OutOrStdout())
			},
		},
	)

	return cmd
}

func (o *rootOptions) openPosts() (services.BoltDB, error) {
	cfg, _, err := o.load()
	if err != nil {
		return services.BoltDB{}, err
	}
	path, err := cfg.dbPath()
	if err != nil {
		return services.BoltDB{}, err
	}
	return services.NewBoltDB(path)
}

func listPosts(cmd *cobra.Command, db services.BoltDB, w io.Writer) error {
	posts, err := db.Posts(cmd.Context())
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(w, "No blogs yet")
		return nil
	}
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Date, p.Slug, p.Title)
	}
	return nil
}
