// The chatsweep command deletes every message you wrote in one or more
// Discord channels, newest first, one message at a time.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matta/chatsweep/internal/config"
	"github.com/matta/chatsweep/internal/discord"
	"github.com/matta/chatsweep/internal/discordhttp"
	"github.com/matta/chatsweep/internal/message"
	"github.com/matta/chatsweep/internal/prompt"
	"github.com/matta/chatsweep/internal/sweep"
	"github.com/matta/chatsweep/internal/tracehttp"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// exitInterrupted is the conventional status of a process stopped by
// SIGINT.
const exitInterrupted = 130

var errInterrupted = errors.New("interrupted")

type flags struct {
	configPath string
	max        int
	bot        bool
	yes        bool
	baseURL    string
	pace       time.Duration
	trace      bool
}

func newRootCmd() *cobra.Command {
	return newCommand(&flags{})
}

func newCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatsweep [flags] [CHANNEL_ID...]",
		Short: "Delete your own messages from Discord channels",
		Long: `chatsweep walks the history of each channel from newest to oldest and
deletes every message written by the account the token belongs to.

The token is read from $CHATSWEEP_TOKEN, a .env file, the config file, or
asked for interactively.  Deleted messages cannot be recovered.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, f)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file path (default is $HOME/"+config.DefaultName+")")
	fl.IntVarP(&f.max, "max", "m", 0, "maximum messages to delete per channel (0 means all)")
	fl.BoolVar(&f.bot, "bot", false, "the token is a bot token")
	fl.BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	fl.StringVar(&f.baseURL, "base-url", discord.DefaultBaseURL, "Discord API root")
	fl.DurationVar(&f.pace, "pace", sweep.DefaultPace, "wait after each delete attempt")
	fl.BoolVarP(&f.trace, "trace", "T", false, "request debug tracing")
	return cmd
}

func loadConfig(cmd *cobra.Command, args []string, f *flags) (*config.Config, error) {
	path, required := f.configPath, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}
	cfg, err := config.LoadFromFile(path, required)
	if err != nil {
		return nil, err
	}
	dotenv, err := config.ReadDotEnv(".env")
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(config.Chain(os.LookupEnv, config.MapLookup(dotenv))); err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if len(args) > 0 {
		cfg.Channels = args
	}
	if fl.Changed("max") {
		cfg.Max = f.max
	}
	if fl.Changed("bot") {
		cfg.Bot = f.bot
	}
	if fl.Changed("base-url") || cfg.BaseURL == "" {
		cfg.BaseURL = f.baseURL
	}
	if fl.Changed("pace") || cfg.Pace == "" {
		cfg.Pace = f.pace.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w, "⚠️  DISCORD MESSAGE DELETER ⚠️")
	fmt.Fprintln(w, "Deleting messages with a user token is against Discord's Terms of Service and may result in a ban. Use at your own risk.")
	fmt.Fprintln(w, "This tool will permanently delete messages.")
	fmt.Fprintln(w, "This action cannot be undone.")
}

func tokenSource(ctx context.Context, cfg *config.Config, p *prompt.Prompter) oauth2.TokenSource {
	tokenType := ""
	if cfg.Bot {
		tokenType = discordhttp.BotTokenType
	}
	if cfg.Token != "" {
		return discordhttp.StaticTokenSource(cfg.Token, tokenType)
	}
	return p.TokenSource(ctx, "Enter your Discord token: ", tokenType)
}

func newPrompter(cmd *cobra.Command) *prompt.Prompter {
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	if f, ok := in.(*os.File); ok {
		return prompt.New(f, out)
	}
	return prompt.NewReader(in, out)
}

// run drives a whole session while a second goroutine waits for SIGINT
// or SIGTERM.  A signal, or cancellation of the command's context,
// stops whatever the session is doing, prompts included, and ends the
// run with the cancellation report.
func run(cmd *cobra.Command, args []string, f *flags) error {
	out := cmd.OutOrStdout()
	if f.trace {
		tracehttp.WrapDefaultTransport()
	}

	cfg, err := loadConfig(cmd, args, f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	total := 0
	done := make(chan struct{})
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		select {
		case <-sigs:
			cancel()
		case <-done:
		}
		return nil
	})
	grp.Go(func() error {
		defer close(done)
		return session(gctx, cmd, f, cfg, &total)
	})
	err = grp.Wait()
	if ctx.Err() != nil {
		fmt.Fprintln(out, "\n\nOperation cancelled by user.")
		fmt.Fprintf(out, "Messages deleted before cancelling: %s\n", humanize.Comma(int64(total)))
		return errInterrupted
	}
	return err
}

// session asks for what is missing, checks the credential and sweeps
// every channel, adding to total as messages are deleted.
func session(ctx context.Context, cmd *cobra.Command, f *flags, cfg *config.Config, total *int) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd)

	printBanner(out)
	if !f.yes {
		ok, err := p.ConfirmWord(ctx, "\nDo you want to continue? (type 'yes' to confirm): ", "yes")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Operation cancelled.")
			return nil
		}
	}

	c := discord.New(discordhttp.New(tokenSource(ctx, cfg, p), nil),
		discord.WithBaseURL(cfg.BaseURL))

	id, err := c.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(out, "❌ Invalid token or connection error. Exiting.")
		return err
	}
	fmt.Fprintf(out, "✅ Connected as user ID: %s\n", id.ID)

	if !f.yes && !cmd.Flags().Changed("max") && cfg.Max == 0 {
		if cfg.Max, err = p.Count(ctx, "\nEnter max messages to delete (or press Enter for all): "); err != nil {
			return err
		}
	}
	if len(cfg.Channels) == 0 {
		ch, err := p.Line(ctx, "\nEnter channel ID: ")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || ch == "" {
			fmt.Fprintln(out, "No channel given. Exiting.")
			return nil
		}
		cfg.Channels = []string{ch}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	pace, err := cfg.PaceDuration()
	if err != nil {
		return err
	}
	opts := sweep.Options{Max: cfg.Max, Pace: pace, Out: out}

	*total, err = sweepAll(ctx, c, id, cfg.Channels, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\n✅ Operation completed!")
	fmt.Fprintf(out, "Total messages deleted: %s\n", humanize.Comma(int64(*total)))
	return nil
}

// sweepAll sweeps each channel in turn and returns the number of
// messages deleted across all of them, including when it stops early.
func sweepAll(ctx context.Context, s sweep.ChannelStorage, id message.Identity, channels []string, opts sweep.Options) (int, error) {
	total := 0
	for _, ch := range channels {
		st, err := sweep.RunIdentity(ctx, s, id, ch, opts)
		if st != nil {
			total += st.Deleted
			if st.Failed > 0 {
				log.Printf("%d messages in channel %v could not be deleted", st.Failed, ch)
			}
		}
		if err != nil {
			return total, errors.Wrapf(err, "sweeping channel %v", ch)
		}
	}
	return total, nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("chatsweep: ")
	if err := newRootCmd().Execute(); err != nil {
		if errors.Cause(err) == errInterrupted {
			os.Exit(exitInterrupted)
		}
		log.Fatalf("Failed: %v\n", err)
	}
	os.Exit(0)
}
