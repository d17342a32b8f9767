package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/store"
)

const (
	defaultServer = "http://localhost:8780"
	configName    = ".parley"
)

// App holds what the commands share. Tests build one with their own viper
// and writers.
type App struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	// printer overrides the terminal printer; nil means build one from flags.
	printer *Printer
}

func NewApp(v *viper.Viper, in io.Reader, out, errOut io.Writer) *App {
	return &App{v: v, in: in, out: out, errOut: errOut}
}

// Execute runs parleyctl with the process arguments.
func Execute() error {
	return NewApp(viper.New(), os.Stdin, os.Stdout, os.Stderr).RootCmd().Execute()
}

func (a *App) RootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "parleyctl",
		Short: "Terminal client for a parley chat server",
		Long: `parleyctl talks to a parley server: log in, stream a chat reply,
and read your recent history with code blocks highlighted.

Settings come from flags, PARLEY_* environment variables or ~/.parley.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.parley.yaml)")
	root.PersistentFlags().String("server", defaultServer, "parley server URL")
	root.PersistentFlags().String("token", "", "session token")
	root.PersistentFlags().Bool("plain", false, "disable colors and highlighting")
	a.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	a.v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	a.v.BindPFlag("plain", root.PersistentFlags().Lookup("plain"))
	a.v.SetDefault("server", defaultServer)

	root.AddCommand(a.signupCmd(), a.loginCmd(), a.chatCmd(), a.historyCmd(), a.followCmd())
	return root
}

func (a *App) initConfig(cfgFile string) error {
	a.v.SetEnvPrefix("PARLEY")
	a.v.AutomaticEnv()

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(configName)
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if a.v.GetBool("plain") {
		color.NoColor = true
	}
	return nil
}

func (a *App) client() *Client {
	return NewClient(a.v.GetString("server"), a.v.GetString("token"))
}

func (a *App) newPrinter() (*Printer, error) {
	if a.printer != nil {
		return a.printer, nil
	}
	opts := PrinterOptions{CodeFormatter: "terminal256"}
	if a.v.GetBool("plain") {
		opts.MarkdownStyle = "notty"
		opts.CodeFormatter = "noop"
	}
	return NewPrinter(a.out, opts)
}

func (a *App) signupCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Signup(cmd.Context(), email, password, name); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.errOut, "  ✓ account created for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	var email, password string
	var save bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(a.errOut, "  password: ")
				line, err := bufio.NewReader(a.in).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}

			sess, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.v.Set("token", sess.Token)

			if save {
				path := a.v.ConfigFileUsed()
				if path == "" {
					home, err := os.UserHomeDir()
					if err != nil {
						return fmt.Errorf("locate home dir: %w", err)
					}
					path = filepath.Join(home, configName+".yaml")
				}
				if err := a.v.WriteConfigAs(path); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
			}
			color.New(color.FgGreen).Fprintf(a.errOut, "  ✓ logged in, session valid until %s\n", sess.ExpiresAt.Local().Format("Jan 2 15:04"))
			if !save {
				fmt.Fprintln(a.out, sess.Token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().BoolVar(&save, "save", true, "write the token to the config file")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) chatCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt, or start an interactive session when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.newPrinter()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				msgs := []chat.Message{{Role: chat.RoleUser, Content: strings.Join(args, " ")}}
				_, err := a.exchange(cmd.Context(), p, msgs, raw)
				return err
			}
			return a.interactive(cmd.Context(), p, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the streamed reply only, without re-rendering")
	return cmd
}

// exchange streams one reply to out. In raw mode fragments are printed as
// they arrive; otherwise each block is rendered as soon as it is complete.
func (a *App) exchange(ctx context.Context, p *Printer, msgs []chat.Message, raw bool) (string, error) {
	sp := newWaitSpinner(a.errOut, "Thinking...")
	sp.Start()
	defer sp.Stop()

	live := p.Live()
	var renderErr error
	reply, err := a.client().Chat(ctx, msgs, func(frag string) {
		sp.Stop()
		if raw {
			fmt.Fprint(a.out, frag)
			return
		}
		if renderErr == nil {
			renderErr = live.Feed(frag)
		}
	})
	sp.Stop()
	if raw {
		if reply != "" {
			fmt.Fprintln(a.out)
		}
		return reply, err
	}
	if renderErr == nil {
		renderErr = live.Finish()
	}
	if err != nil {
		return reply, err
	}
	return reply, renderErr
}

func (a *App) interactive(ctx context.Context, p *Printer, raw bool) error {
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprintln(a.errOut, "  parley chat")
	dim.Fprintf(a.errOut, "  Type 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(a.in)
	var history []chat.Message
	for {
		green.Fprint(a.errOut, "  you → ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		history = append(history, chat.Message{Role: chat.RoleUser, Content: input})
		reply, err := a.exchange(ctx, p, history, raw)
		if err != nil {
			fmt.Fprintf(a.errOut, "  Error: %v\n\n", err)
			history = history[:len(history)-1]
			continue
		}
		history = append(history, chat.Message{Role: chat.RoleAssistant, Content: reply})
	}
}

func (a *App) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your recent exchanges, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := a.client().History(cmd.Context())
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Fprintln(a.errOut, "  No messages yet.")
				return nil
			}
			p, err := a.newPrinter()
			if err != nil {
				return err
			}
			for _, c := range store.Chronological(chats) {
				if err := p.Exchange(c); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
