package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/config"
	"uninotes/pkg/logging"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
	"uninotes/pkg/services"
	"uninotes/pkg/storage"
)

// cliNamespace is the storage namespace the command line signs in under.
const cliNamespace = "cli"

// env is what every command needs, opened per invocation.
type env struct {
	cfg    *config.Config
	log    logrus.FieldLogger
	store  storage.Store
	sess   *auth.Store
	client *api.Client
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel)
	if cfg.LogLevel == "" || cfg.LogLevel == "info" {
		log.SetLevel(logrus.WarnLevel)
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	sess, err := auth.Open(ctx, store, cliNamespace)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &env{
		cfg:    cfg,
		log:    log,
		store:  store,
		sess:   sess,
		client: api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, log),
	}, nil
}

// withEnv opens the environment around a command action.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c.Context)
		if err != nil {
			return err
		}
		defer e.store.Close()
		return fn(c, e)
	}
}

func requireSession(e *env) error {
	if e.sess.Session() == nil {
		return cli.Exit("not signed in; run `unictl login` first", 1)
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "unictl",
		Usage: "manage your UniNotes account from the terminal",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "sign in and remember the session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
					&cli.StringFlag{Name: "password", EnvVars: []string{"UNINOTES_PASSWORD"}, Usage: "prompted for when empty"},
				},
				Action: withEnv(login),
			},
			{
				Name:   "logout",
				Usage:  "forget the stored session",
				Action: withEnv(logout),
			},
			{
				Name:   "whoami",
				Usage:  "show the signed-in user",
				Action: withEnv(whoami),
			},
			{
				Name:  "notes",
				Usage: "work with your notes",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "list notes, optionally filtered",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "search", Aliases: []string{"s"}},
						},
						Action: withEnv(listNotes),
					},
					{
						Name:  "add",
						Usage: "create a note",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
							&cli.StringFlag{Name: "content", Aliases: []string{"c"}},
							&cli.StringFlag{Name: "category"},
							&cli.StringFlag{Name: "tag"},
						},
						Action: withEnv(addNote),
					},
				},
			},
			{
				Name:  "seed",
				Usage: "create sample notes with generated markdown content",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 3},
				},
				Action: withEnv(seed),
			},
			{
				Name:  "backup",
				Usage: "zip the session files of the file storage backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dest", Value: "."},
				},
				Action: withEnv(backup),
			},
			{
				Name:   "sweep",
				Usage:  "purge idle sessions and sign out expired ones once",
				Action: withEnv(sweep),
			},
		},
	}
}

func login(c *cli.Context, e *env) error {
	password := c.String("password")
	if password == "" {
		fmt.Fprint(c.App.Writer, "Enter your password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(c.App.Writer)
		password = string(raw)
	}

	svc := services.NewAuthService(e.client, e.log)
	user, err := svc.SignIn(c.Context, e.sess, models.Credentials{Email: c.String("email"), Password: password})
	if err != nil {
		return cli.Exit(userMessage(err), 1)
	}
	fmt.Fprintf(c.App.Writer, "Signed in as %s (%s)\n", displayName(*user), user.Role)
	return nil
}

func logout(c *cli.Context, e *env) error {
	if err := e.sess.Logout(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Signed out")
	return nil
}

func whoami(c *cli.Context, e *env) error {
	if err := requireSession(e); err != nil {
		return err
	}
	u := e.sess.User()
	fmt.Fprintf(c.App.Writer, "%s <%s> %s\n", displayName(*u), u.Email, u.Role)
	fmt.Fprintf(c.App.Writer, "backend %s\n", e.client.BaseURL())
	if exp, ok := auth.TokenExpiry(e.sess.Token()); ok {
		fmt.Fprintf(c.App.Writer, "session expires %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func listNotes(c *cli.Context, e *env) error {
	if err := requireSession(e); err != nil {
		return err
	}
	notes := services.NewNoteService(e.client, nil, performance.NewInFlight(), e.log)
	d, err := notes.Dashboard(c.Context, e.sess)
	if err != nil {
		return err
	}
	if d.Stale {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", userMessage(d.Err))
	}
	return printNotes(c.App.Writer, services.FilterNotes(d.Notes, d.Tags, c.String("search")), d.Categories)
}

func printNotes(w io.Writer, notes []models.Note, categories []models.Category) error {
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tUPDATED")
	for _, n := range notes {
		updated := ""
		if !n.UpdatedAt.IsZero() {
			updated = n.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Title, names[n.CategoryID], updated)
	}
	return tw.Flush()
}

func addNote(c *cli.Context, e *env) error {
	if err := requireSession(e); err != nil {
		return err
	}
	notes := services.NewNoteService(e.client, nil, performance.NewInFlight(), e.log)
	err := notes.Save(c.Context, e.sess, services.NewNoteID, models.NoteInput{
		Title:      c.String("title"),
		Content:    c.String("content"),
		CategoryID: c.String("category"),
		TagID:      c.String("tag"),
	})
	if err != nil {
		return cli.Exit(userMessage(err), 1)
	}
	fmt.Fprintln(c.App.Writer, "Note created")
	return nil
}

// sampleBody returns markdown exercising every formatting rule the note view supports.
func sampleBody(f faker.Faker) string {
	return "# " + f.Lorem().Sentence(4) + "\n\n" +
		f.Lorem().Paragraph(2) + " **" + f.Lorem().Word() + "** and *" + f.Lorem().Word() + "*.\n\n" +
		"- " + f.Lorem().Sentence(6) + "\n" +
		"- " + f.Lorem().Sentence(6) + "\n\n" +
		"Inline `" + f.Lorem().Word() + "` and a block:\n\n" +
		"```\n" + f.Lorem().Sentence(5) + "\n```\n"
}

func seed(c *cli.Context, e *env) error {
	if err := requireSession(e); err != nil {
		return err
	}
	f := faker.New()
	notes := services.NewNoteService(e.client, nil, performance.NewInFlight(), e.log)
	for i := 0; i < c.Int("count"); i++ {
		title := strings.TrimSuffix(f.Lorem().Sentence(3), ".")
		if err := notes.Save(c.Context, e.sess, services.NewNoteID, models.NoteInput{Title: title, Content: sampleBody(f)}); err != nil {
			return cli.Exit(userMessage(err), 1)
		}
		fmt.Fprintf(c.App.Writer, "Generated note %q\n", title)
	}
	return nil
}

func backup(c *cli.Context, e *env) error {
	st := e.store
	if in, ok := st.(*storage.Instrumented); ok {
		st = in.Unwrap()
	}
	fs, ok := st.(*storage.FileStore)
	if !ok {
		return cli.Exit("backup is only available for the file storage driver", 1)
	}
	path, err := fs.Backup(c.String("dest"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Backup written to %s\n", path)
	return nil
}

func sweep(c *cli.Context, e *env) error {
	j := services.NewJanitor(e.store, nil, nil, e.cfg.SessionIdleTTL, e.log)
	res, err := j.Sweep(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Purged %d idle and signed out %d expired sessions\n", res.Purged, res.LoggedOut)
	return nil
}
