// Command visamate is a terminal client for the VisaMate API. Session
// tokens, the cached profile and the upload outbox live in a JSON state
// file so each invocation picks up where the last one stopped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"visamate-backend/client"
	"visamate-backend/models"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const usage = `usage: visamate [flags] <command> [args]

commands:
  signin <email> <password>     sign in and store the session
  signup <email> <password> <first> <last> <visa>
  signout                       forget the stored session
  status                        show the signed-in user
  dashboard                     show timeline and checklist
  toggle <item-id> <true|false> mark a checklist item
  upload [-category c] <file>...
  files                         list uploaded files and queued saves
  flush                         retry queued file saves
  delete <file-id>
  generate [-refine] <kind> key=value...

flags:
`

type cli struct {
	session   *client.Session
	public    *client.PublicClient
	authed    *client.AuthedClient
	dashboard *client.Dashboard
	uploader  *client.Uploader
	out       io.Writer
}

func main() {
	_ = godotenv.Load()

	defaultState := filepath.Join(os.Getenv("HOME"), ".visamate", "state.json")
	apiURL := flag.String("api", envDefault("VISAMATE_API_URL", "http://localhost:8080/api"), "API base URL")
	apiKey := flag.String("key", os.Getenv("VISAMATE_API_KEY"), "public API key")
	statePath := flag.String("state", envDefault("VISAMATE_STATE", defaultState), "state file")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	backend, err := client.NewFileBackend(*statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "visamate: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI(*apiURL, *apiKey, backend, *timeout, logger)
	if err := c.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "visamate: %s\n", client.FriendlyMessage(err))
		logger.Debug("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newCLI(apiURL, apiKey string, backend client.Backend, timeout time.Duration, logger *slog.Logger) *cli {
	opts := []client.Option{client.WithTimeout(timeout), client.WithLogger(logger)}
	tokens := client.NewTokenStore(backend)
	public := client.NewPublicClient(apiURL, apiKey, opts...)
	authed := client.NewAuthedClient(apiURL, tokens, opts...)
	session := client.NewSession(public, authed, tokens, logger)
	return &cli{
		session:   session,
		public:    public,
		authed:    authed,
		dashboard: client.NewDashboard(session, public, authed, logger),
		uploader:  client.NewUploader(session, authed, client.NewOutbox(backend), logger),
		out:       os.Stdout,
	}
}

var errUsage = errors.New("invalid arguments, run visamate -h")

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signin":
		if len(args) != 2 {
			return errUsage
		}
		return c.signIn(ctx, args[0], args[1])
	case "signup":
		if len(args) != 5 {
			return errUsage
		}
		return c.signUp(ctx, args)
	}

	c.session.Initialize(ctx)
	if !c.session.State().IsAuthenticated() {
		if cmd == "signout" {
			return nil
		}
		return client.ErrNeedsSignIn
	}

	switch cmd {
	case "signout":
		c.session.SignOut(ctx)
		fmt.Fprintln(c.out, "Signed out")
		return nil
	case "status":
		return c.status()
	case "dashboard":
		return c.showDashboard(ctx)
	case "toggle":
		if len(args) != 2 {
			return errUsage
		}
		return c.toggle(ctx, args[0], args[1])
	case "upload":
		return c.upload(ctx, args)
	case "files":
		return c.files(ctx)
	case "flush":
		return c.flush(ctx)
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		return c.delete(ctx, args[0])
	case "generate":
		return c.generate(ctx, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *cli) signIn(ctx context.Context, email, password string) error {
	if res := c.session.SignIn(ctx, email, password); !res.Success {
		return res.Err
	}
	return c.status()
}

func (c *cli) signUp(ctx context.Context, args []string) error {
	res := c.session.SignUp(ctx, client.SignUpRequest{
		Email:        args[0],
		Password:     args[1],
		FirstName:    args[2],
		LastName:     args[3],
		VisaCategory: args[4],
	})
	if !res.Success {
		return res.Err
	}
	fmt.Fprintln(c.out, "Account created, sign in to continue")
	return nil
}

func (c *cli) status() error {
	u := c.session.User()
	if u == nil {
		return client.ErrNeedsSignIn
	}
	fmt.Fprintf(c.out, "%s %s <%s>\n", u.FirstName, u.LastName, u.Email)
	fmt.Fprintf(c.out, "  visa:      %s\n", u.VisaCategory)
	fmt.Fprintf(c.out, "  status:    %s\n", u.CaseStatus)
	fmt.Fprintf(c.out, "  documents: %d\n", u.DocumentCount)
	fmt.Fprintf(c.out, "  RFE risk:  %d%%\n", u.RFERisk)
	return nil
}

func (c *cli) showDashboard(ctx context.Context) error {
	data, err := c.dashboard.Load(ctx)
	if err != nil {
		return err
	}
	if err := c.status(); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "\nTimeline")
	if data.TimelineErr != nil {
		fmt.Fprintf(c.out, "  unavailable: %s\n", client.FriendlyMessage(data.TimelineErr))
	}
	for _, e := range data.Timeline {
		fmt.Fprintf(c.out, "  %s  %-28s %s\n", e.Timestamp.Local().Format("2006-01-02"), e.Title, e.Description)
	}

	fmt.Fprintln(c.out, "\nChecklist")
	if data.ChecklistErr != nil {
		fmt.Fprintf(c.out, "  unavailable: %s\n", client.FriendlyMessage(data.ChecklistErr))
	}
	printChecklist(c.out, data.Checklist)
	return nil
}

func printChecklist(w io.Writer, categories []models.ChecklistCategory) {
	for _, cat := range categories {
		fmt.Fprintf(w, "  %s\n", cat.Name)
		for _, item := range cat.Items {
			mark := " "
			if item.Completed {
				mark = "x"
			}
			req := ""
			if item.Required {
				req = " (required)"
			}
			fmt.Fprintf(w, "    [%s] %-10s %s%s\n", mark, item.ID, item.Name, req)
		}
	}
}

func (c *cli) toggle(ctx context.Context, itemID, value string) error {
	var completed bool
	switch strings.ToLower(value) {
	case "true", "done", "yes":
		completed = true
	case "false", "undone", "no":
	default:
		return errUsage
	}
	if err := c.dashboard.ToggleItem(ctx, itemID, completed); err != nil {
		return err
	}
	printChecklist(c.out, c.dashboard.Data().Checklist)
	return nil
}

func (c *cli) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	category := fs.String("category", "", "checklist category")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	var files []client.LocalFile
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, client.LocalFile{
			Name:     filepath.Base(path),
			Category: *category,
			Data:     f,
		})
	}

	if err := c.uploader.Load(ctx); err != nil {
		return err
	}
	records, err := c.uploader.Upload(ctx, files)
	if err != nil {
		return err
	}
	printRecords(c.out, records)
	return nil
}

func (c *cli) files(ctx context.Context) error {
	if err := c.uploader.Load(ctx); err != nil {
		return err
	}
	printRecords(c.out, c.uploader.Records())
	return nil
}

func (c *cli) flush(ctx context.Context) error {
	if err := c.uploader.Load(ctx); err != nil {
		return err
	}
	records, err := c.uploader.FlushOutbox(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(c.out, "Nothing queued")
		return nil
	}
	printRecords(c.out, records)
	return nil
}

func (c *cli) delete(ctx context.Context, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid file id %q", raw)
	}
	if err := c.uploader.Load(ctx); err != nil {
		return err
	}
	if err := c.uploader.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Deleted")
	return nil
}

func printRecords(w io.Writer, records []client.UploadRecord) {
	for _, r := range records {
		line := fmt.Sprintf("%-36s  %-13s %s", r.File.ID, r.State, r.File.Filename)
		if r.Reason != "" {
			line += "  (" + r.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func (c *cli) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	refine := fs.Bool("refine", false, "polish the draft with the language model")
	instructions := fs.String("instructions", "", "refinement instructions")
	output := fs.String("o", "", "write the document to this file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	fields := make(map[string]string)
	for _, kv := range fs.Args()[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("field %q is not key=value", kv)
		}
		fields[k] = v
	}

	res, err := c.authed.Generate(ctx, client.GenerateRequest{
		Kind:         models.DocumentKind(fs.Arg(0)),
		Fields:       fields,
		Refine:       *refine,
		Instructions: *instructions,
	})
	if err != nil {
		return err
	}

	filename, content := "", ""
	if res.Document != nil {
		filename, content = res.Document.Filename, res.Document.Content
	} else {
		fmt.Fprintf(os.Stderr, "refining (job %s)...\n", res.JobID)
		job, err := c.authed.WaitJob(ctx, res.JobID, 2*time.Second)
		if err != nil {
			return err
		}
		if job.Content == nil {
			return errors.New("refinement returned no content")
		}
		filename, content = job.Filename, *job.Content
	}

	if *output == "" {
		fmt.Fprint(c.out, content)
		return nil
	}
	if err := os.WriteFile(*output, []byte(content), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Wrote %s (%s)\n", *output, filename)
	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
