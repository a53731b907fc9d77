package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anonto42/postacad/backend/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("POSTACAD_PASSWORD")
		}
		if email == "" || password == "" {
			return fmt.Errorf("--email and --password (or POSTACAD_PASSWORD) are required")
		}

		token, user, err := newClient().SignIn(cmd.Context(), email, password)
		if err != nil {
			return err
		}

		viper.Set("token", token)
		if err := os.MkdirAll(filepath.Dir(cfgFile), 0o700); err != nil {
			return err
		}
		if err := viper.WriteConfigAs(cfgFile); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as @%s\n", user.Username)
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the feed, newest update first",
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, _ := cmd.Flags().GetInt("pages")
		loader := client.NewFeedLoader(newClient())
		out := cmd.OutOrStdout()

		for i := 0; i < pages && loader.HasMore(); i++ {
			posts, err := loader.LoadMore(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range posts {
				printPost(out, p)
			}
		}
		if loader.HasMore() {
			fmt.Fprintln(out, "... more with --pages")
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search posts by caption, or users with --users",
	Long: `Search posts by caption. With a term the search runs once. Without one, each line
read from stdin is a new search box value and results are printed once typing settles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _ := cmd.Flags().GetBool("users")
		imagesOnly, _ := cmd.Flags().GetBool("images-only")
		c := newClient()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			if users {
				found, err := c.SearchUsers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, u := range found {
					printUser(out, u)
				}
				return nil
			}
			posts, err := c.SearchPosts(cmd.Context(), args[0], imagesOnly)
			if err != nil {
				return err
			}
			for _, p := range posts {
				printPost(out, p)
			}
			return nil
		}

		if users {
			return interactiveSearch(cmd.InOrStdin(), c.SearchUsers, func(u client.User) { printUser(out, u) })
		}
		return interactiveSearch(cmd.InOrStdin(), func(ctx context.Context, term string) ([]client.Post, error) {
			return c.SearchPosts(ctx, term, imagesOnly)
		}, func(p client.Post) { printPost(out, p) })
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := newClient().ToggleLike(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <post-id>",
	Short: "Save or unsave a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := newClient().ToggleSave(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <post-id>",
	Short: "Show likes and save state of a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := newClient().Stats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password")
	feedCmd.Flags().Int("pages", 1, "Number of pages to load")
	searchCmd.Flags().Bool("users", false, "Search users instead of posts")
	searchCmd.Flags().Bool("images-only", false, "Only posts with an image")
}

// interactiveSearch feeds stdin lines to a debounced search controller until EOF, then waits
// for the results of the last line
func interactiveSearch[R any](in io.Reader, search client.SearchFunc[R], show func(R)) error {
	var (
		mu   sync.Mutex
		last string
	)
	done := make(chan struct{}, 1)

	s := client.NewSearchController(client.SearchDelay, search, func(res client.SearchResult[R]) {
		switch {
		case res.Err != nil:
			fmt.Fprintf(os.Stderr, "search %q: %v\n", res.Term, res.Err)
		case res.Term == "":
			fmt.Println("(cleared)")
		default:
			fmt.Printf("== %s: %d result(s)\n", res.Term, len(res.Results))
			for _, r := range res.Results {
				show(r)
			}
		}

		mu.Lock()
		settled := res.Term == last
		mu.Unlock()
		if settled {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer s.Close()

	scanner := bufio.NewScanner(in)
	typed := false
	for scanner.Scan() {
		mu.Lock()
		last = strings.TrimSpace(scanner.Text())
		mu.Unlock()
		s.Type(scanner.Text())
		typed = true
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if typed {
		<-done
	}
	return nil
}

func printPost(w io.Writer, p client.Post) {
	author := "?"
	if p.Author != nil {
		author = p.Author.Username
	}
	marks := ""
	if p.IsLiked {
		marks += " [liked]"
	}
	if p.IsSaved {
		marks += " [saved]"
	}
	if p.IsResource && p.Price > 0 {
		marks += fmt.Sprintf(" [%d.%02d]", p.Price/100, p.Price%100)
	}
	fmt.Fprintf(w, "%s  @%-15s %s  ♥%d%s\n", p.ID, author, strings.TrimSpace(p.Caption), len(p.Likes), marks)
}

func printUser(w io.Writer, u client.User) {
	fmt.Fprintf(w, "%d  @%s  %s\n", u.ID, u.Username, u.Name)
}

func printState(w io.Writer, s *client.CardState) {
	fmt.Fprintf(w, "post %s: liked=%t likes=%d saved=%t (%s, %d pending)\n",
		s.PostID, s.Liked, s.LikesCount, s.Saved, s.Phase, s.Pending)
}
