package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jason-s-yu/clique/internal/app"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/spf13/pflag"
)

type command struct {
	name    string
	usage   string
	summary string
	// anonymous commands run without a session.
	anonymous bool
	minArgs   int
	maxArgs   int // -1 => unbounded
	flags     func(*pflag.FlagSet)
	run       func(ctx context.Context, a *app.App, args []string) error
}

var (
	password  string
	firstName string
	lastName  string
	emoji     string
)

var commands = []command{
	{
		name: "login", usage: "USERNAME [--password PASSWORD]", summary: "log in",
		anonymous: true, minArgs: 1, maxArgs: 1,
		flags: passwordFlag,
		run: func(ctx context.Context, a *app.App, args []string) error {
			pw, err := readPassword()
			if err != nil {
				return err
			}
			if err := a.Session.Login(ctx, args[0], pw); err != nil {
				return err
			}
			return whoami(ctx, a, nil)
		},
	},
	{
		name: "signup", usage: "USERNAME --first NAME --last NAME [--password PASSWORD]", summary: "create an account",
		anonymous: true, minArgs: 1, maxArgs: 1,
		flags: func(fs *pflag.FlagSet) {
			passwordFlag(fs)
			fs.StringVar(&firstName, "first", "", "first name")
			fs.StringVar(&lastName, "last", "", "last name")
		},
		run: func(ctx context.Context, a *app.App, args []string) error {
			pw, err := readPassword()
			if err != nil {
				return err
			}
			if err := a.Session.Signup(ctx, args[0], pw, firstName, lastName); err != nil {
				return err
			}
			return whoami(ctx, a, nil)
		},
	},
	{
		name: "logout", summary: "log out and clear local data", anonymous: true,
		run: func(ctx context.Context, a *app.App, _ []string) error {
			return a.Session.Logout(ctx)
		},
	},
	{name: "whoami", summary: "show the logged in user", run: whoami},
	{
		name: "refresh", summary: "renew the session token",
		run: func(ctx context.Context, a *app.App, _ []string) error {
			// Start already refreshed the token.
			return whoami(ctx, a, nil)
		},
	},
	{
		name: "statuses", summary: "show everyone's status",
		run: func(ctx context.Context, a *app.App, _ []string) error {
			if err := a.Statuses.Fetch(ctx); err != nil {
				return err
			}
			current, ok := a.Statuses.Current()
			printStatuses(current, ok, a.Statuses.Others())
			return nil
		},
	},
	{
		name: "set-status", usage: "[--emoji EMOJI] TEXT...", summary: "update your status",
		minArgs: 1, maxArgs: -1,
		flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&emoji, "emoji", "e", "", "status emoji")
		},
		run: func(ctx context.Context, a *app.App, args []string) error {
			if err := a.Statuses.UpdateStatus(ctx, emoji, strings.Join(args, " ")); err != nil {
				return err
			}
			if current, ok := a.Statuses.Current(); ok {
				printStatuses(current, true, nil)
			}
			return nil
		},
	},
	{
		name: "color", usage: "COLOR", summary: "change your avatar colour",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			c := models.ParseIconColor(args[0])
			if err := a.Statuses.UpdateIconColor(ctx, c); err != nil {
				return err
			}
			fmt.Println(swatch(c) + " " + c.DisplayName())
			return nil
		},
	},
	{
		name: "friends", summary: "list friends and pending requests",
		run: func(ctx context.Context, a *app.App, _ []string) error {
			if err := a.Friends.FetchAll(ctx); err != nil {
				return err
			}
			printFriends(a.Friends.Friends())
			printIncoming(a.Friends.IncomingRequests())
			printOutgoing(a.Friends.OutgoingRequests())
			return nil
		},
	},
	{
		name: "requests", summary: "list incoming friend requests",
		run: func(ctx context.Context, a *app.App, _ []string) error {
			if err := a.Friends.FetchAll(ctx); err != nil {
				return err
			}
			printIncoming(a.Friends.IncomingRequests())
			return nil
		},
	},
	{
		name: "add-friend", usage: "USERNAME", summary: "send a friend request",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			f, err := a.Friends.AddFriend(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Request sent to " + displayName(f.FirstName, f.LastName, f.Username)))
			return nil
		},
	},
	{
		name: "add-user", usage: "USERNAME", summary: "add a user to your feed",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			if err := a.API.AddUser(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Added " + args[0]))
			return nil
		},
	},
	{
		name: "remove-friend", usage: "USERNAME", summary: "remove a friend",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			if err := a.Friends.FetchAll(ctx); err != nil {
				return err
			}
			f, ok := findFriend(a.Friends.Friends(), args[0])
			if !ok {
				return fmt.Errorf("%s is not in your friends list", args[0])
			}
			a.Friends.RemoveOptimistically(ctx, f)
			return settle(a)
		},
	},
	{
		name: "approve", usage: "USERNAME", summary: "accept a friend request",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			r, err := incomingFrom(ctx, a, args[0])
			if err != nil {
				return err
			}
			a.Friends.ApproveOptimistically(ctx, r)
			return settle(a)
		},
	},
	{
		name: "deny", usage: "USERNAME", summary: "deny a friend request",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			r, err := incomingFrom(ctx, a, args[0])
			if err != nil {
				return err
			}
			a.Friends.DenyOptimistically(ctx, r)
			return settle(a)
		},
	},
	{
		name: "share-location", usage: "on|off", summary: "turn location sharing on or off",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, a *app.App, args []string) error {
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			if err := a.Statuses.SetLocationSharing(ctx, on); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Location sharing " + strings.ToLower(args[0])))
			return nil
		},
	},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage() {
	fmt.Println(headerStyle.Render("clique") + " <command> [flags] [args]")
	fmt.Println()
	names := make([]string, 0, len(commands))
	byName := make(map[string]command, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
		byName[c.name] = c
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-16s %s\n", n, mutedStyle.Render(byName[n].summary))
	}
}

func passwordFlag(fs *pflag.FlagSet) {
	fs.StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
}

func readPassword() (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func whoami(ctx context.Context, a *app.App, _ []string) error {
	s, ok := a.Session.Session(ctx)
	if !ok {
		fmt.Println(mutedStyle.Render("Not logged in"))
		return nil
	}
	fmt.Printf("%s %s\n", headerStyle.Render(displayName(s.FirstName, s.LastName, s.Username)), mutedStyle.Render("@"+s.Username))
	return nil
}

// settle waits for background edits and reports the failure they left behind, if any.
func settle(a *app.App) error {
	a.Friends.Wait()
	if msg := a.Friends.ErrorMessage(); msg != "" {
		return errors.New(msg)
	}
	fmt.Println(okStyle.Render("Done"))
	return nil
}

func findFriend(friends []models.Friend, username string) (models.Friend, bool) {
	for _, f := range friends {
		if strings.EqualFold(f.Username, username) {
			return f, true
		}
	}
	return models.Friend{}, false
}

func incomingFrom(ctx context.Context, a *app.App, username string) (models.FriendRequest, error) {
	if err := a.Friends.FetchAll(ctx); err != nil {
		return models.FriendRequest{}, err
	}
	for _, r := range a.Friends.IncomingRequests() {
		if strings.EqualFold(r.Username, username) {
			return r, nil
		}
	}
	return models.FriendRequest{}, fmt.Errorf("no friend request from %s", username)
}
