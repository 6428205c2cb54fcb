package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/pflag"

	"github.com/welldanyogia/ephemera-backend/internal/base37"
	"github.com/welldanyogia/ephemera-backend/internal/client"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultKeysDir = ".ephemera"
)

// connFlags are shared by every command that talks to a server
type connFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
}

func (c *connFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.server, "server", envOr("EPHEMERA_SERVER", defaultServer), "server base URL")
	fs.StringVar(&c.apiKey, "api-key", os.Getenv("EPHEMERA_API_KEY"), "admin API key")
	fs.DurationVar(&c.timeout, "timeout", client.DefaultTimeout, "request timeout")
}

func (c *connFlags) client() *client.Client {
	return client.New(client.Config{BaseURL: c.server, APIKey: c.apiKey, Timeout: c.timeout})
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func newFlagSet(env *cliEnv, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ephemeractl "+name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

func keysFlag(fs *pflag.FlagSet) *string {
	return fs.String("keys", envOr("EPHEMERA_KEYS", defaultKeysDir), "identity directory")
}

type signer func(signal.Payload) (signal.Signal, error)

// loadIdentity returns a signer for the identity in dir and its author id
func loadIdentity(dir string) (signer, string, error) {
	public, private, err := signal.LoadKeyPair(dir)
	if err != nil {
		return nil, "", err
	}
	sign := func(p signal.Payload) (signal.Signal, error) { return signal.Sign(p, private) }
	return sign, signal.AuthorID(public), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runKeygen(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "keygen")
	dir := keysFlag(fs)
	force := fs.Bool("force", false, "overwrite an existing identity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, _, err := signal.LoadKeyPair(*dir); err == nil && !*force {
		return fmt.Errorf("identity already exists in %s (use --force to replace it)", *dir)
	}

	public, private, err := signal.GenerateKeyPair()
	if err != nil {
		return err
	}
	if err := signal.SaveKeyPair(*dir, public, private); err != nil {
		return err
	}

	fmt.Fprintln(env.stdout, signal.AuthorID(public))
	return nil
}

func runWhoami(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "whoami")
	dir := keysFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, author, err := loadIdentity(*dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, author)
	return nil
}

func runPost(ctx context.Context, env *cliEnv, args []string) error {
	var conn connFlags
	fs := newFlagSet(env, "post")
	conn.add(fs)
	dir := keysFlag(fs)
	host := fs.String("host", os.Getenv("EPHEMERA_HOST"), "host the signal is bound to")
	text := fs.StringP("text", "t", "", "post text")
	attach := fs.StringArrayP("attach", "a", nil, "attachment file (repeatable)")
	dryRun := fs.Bool("dry-run", false, "print the signed signal instead of sending it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *host == "" {
		return errors.New("--host is required")
	}
	if len(*attach) > services.MaxAttachmentsPerPost {
		return fmt.Errorf("at most %d attachments are allowed", services.MaxAttachmentsPerPost)
	}
	if err := validator.ValidatePostContent(*text); err != nil {
		return err
	}

	sign, author, err := loadIdentity(*dir)
	if err != nil {
		return err
	}

	footer := make([]signal.FooterEntry, 0, len(*attach))
	for _, p := range *attach {
		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return fmt.Errorf("detect type of %s: %w", p, err)
		}
		hash, err := services.FileDigest(p)
		if err != nil {
			return err
		}
		footer = append(footer, signal.AttachmentEntry(mt.String(), hash))
	}

	sig, err := sign(signal.NewCreatePost(*host, author, time.Now().UnixMilli(), *text, footer))
	if err != nil {
		return err
	}
	if *dryRun {
		return printJSON(env.stdout, sig)
	}

	uploads := make([]client.Attachment, 0, len(*attach))
	for _, p := range *attach {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		uploads = append(uploads, client.Attachment{Name: filepath.Base(p), Reader: f})
	}

	c := conn.client()
	defer c.Close()

	id, err := c.CreatePost(ctx, sig, uploads...)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, id)
	return nil
}

func runList(ctx context.Context, env *cliEnv, args []string) error {
	var conn connFlags
	fs := newFlagSet(env, "list")
	conn.add(fs)
	author := fs.String("author", "", "only posts by this author id")
	cursor := fs.String("cursor", "", "resume from a previous page's cursor")
	limit := fs.IntP("limit", "n", validator.DefaultLimit, "posts per page")
	all := fs.Bool("all", false, "follow cursors until the last page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *author != "" {
		normalized, err := base37.Normalize(*author)
		if err != nil {
			return fmt.Errorf("--author: %w", err)
		}
		*author = normalized
	}

	c := conn.client()
	defer c.Close()

	opts := client.ListOptions{Author: *author, Cursor: *cursor, Limit: *limit}
	for {
		page, err := c.ListPosts(ctx, opts)
		if err != nil {
			return err
		}
		for _, p := range page.Posts {
			if err := printJSON(env.stdout, p); err != nil {
				return err
			}
		}

		if page.NextCursor == nil {
			return nil
		}
		if !*all {
			fmt.Fprintf(env.stderr, "next cursor: %s\n", *page.NextCursor)
			return nil
		}
		opts.Cursor = *page.NextCursor
	}
}

func runDelete(ctx context.Context, env *cliEnv, args []string) error {
	var conn connFlags
	fs := newFlagSet(env, "delete")
	conn.add(fs)
	dir := keysFlag(fs)
	host := fs.String("host", os.Getenv("EPHEMERA_HOST"), "host the signal is bound to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ephemeractl delete [flags] <post-id>")
	}
	if *host == "" {
		return errors.New("--host is required")
	}

	postID := fs.Arg(0)
	if !validator.IsContentHash(postID) {
		return fmt.Errorf("%q is not a post id", postID)
	}

	sign, author, err := loadIdentity(*dir)
	if err != nil {
		return err
	}
	sig, err := sign(signal.NewDeletePost(*host, author, time.Now().UnixMilli(), postID))
	if err != nil {
		return err
	}

	c := conn.client()
	defer c.Close()

	if err := c.DeletePost(ctx, sig); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "deleted", postID)
	return nil
}

func runVerify(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet(env, "verify")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := env.stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	sig, err := signal.Decode(data)
	if err != nil {
		return err
	}
	if !signal.Verify(sig) {
		return errors.New("signature does not verify")
	}

	return printJSON(env.stdout, map[string]string{
		"id":     signal.DigestHex(sig.Payload),
		"type":   string(sig.Payload.Header.Type),
		"author": sig.Payload.Header.Author,
		"host":   sig.Payload.Header.Host,
	})
}

func runSweep(ctx context.Context, env *cliEnv, args []string) error {
	var conn connFlags
	fs := newFlagSet(env, "sweep")
	conn.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := conn.client()
	defer c.Close()

	n, err := c.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "reclaimed %d\n", n)
	return nil
}
