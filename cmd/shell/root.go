package shell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/ValentinKolb/aKV/rpc/client"
	"github.com/ValentinKolb/aKV/rpc/protocol"
	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// sessionCommands are answered by the server session, not by the query registry
var sessionCommands = []string{"INFO", "QUIT", "RESETALL", "SELECT"}

var (
	ShellCmd = &cobra.Command{
		Use:   "shell [COMMAND [ARGS...]]",
		Short: "Interactive client for an aKV server",
		Long: `Connects to an aKV server and reads commands line by line (e.g. SET name :John Doe).
If a command is given as arguments it is executed once and the shell exits.
The format of the environment variables is AKV_<flag> (e.g. AKV_ENDPOINT=localhost:6667)`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func init() {
	util.SetupClientFlags(ShellCmd)
}

func run(_ *cobra.Command, args []string) error {
	c, err := util.Connect()
	if err != nil {
		return err
	}
	defer c.Close()

	// one-shot mode
	if len(args) > 0 {
		return execute(os.Stdout, c, strings.Join(args, " "))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "akv> ",
		HistoryFile:       historyFilePath(),
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "QUIT",
		HistorySearchFold: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to initialize line editing")
	}
	defer rl.Close()

	fmt.Printf("connected to %s (%s)\n", util.GetClientConfig().Endpoint, util.GetClientConfig().Transport)
	fmt.Println("type HELP for a list of commands, QUIT or Ctrl+D to leave")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "help"):
			printHelp(rl.Stdout())
			continue
		}

		cmd, err := protocol.Parse(line)
		if err != nil {
			_, _ = fmt.Fprintf(rl.Stdout(), "(error) %v\n", err)
			continue
		}

		if err := execute(rl.Stdout(), c, line); err != nil {
			var statusErr *client.StatusError
			if !errors.As(err, &statusErr) {
				// the connection is unusable
				return err
			}
		}
		if cmd.Name == "QUIT" {
			return nil
		}
	}
}

// execute sends one command line and prints its result
func execute(w io.Writer, c *client.Client, line string) error {
	res, err := c.DoLine(line)
	if res != nil {
		printResult(w, res)
	} else if err != nil {
		_, _ = fmt.Fprintf(w, "(error) %v\n", err)
	}
	return err
}

// printResult writes a result in a human readable form
func printResult(w io.Writer, res *client.Result) {
	switch {
	case res.Err != nil:
		_, _ = fmt.Fprintf(w, "(error) %s %s\n", res.Err.Status, res.Err.Text)
	case !res.Vector:
		_, _ = fmt.Fprintf(w, "%q\n", res.Value)
	case res.Len() == 0:
		_, _ = fmt.Fprintln(w, "(empty)")
	default:
		for i, it := range res.Items {
			if it.HasField {
				_, _ = fmt.Fprintf(w, "%d) %s => %q\n", i+1, it.Field, it.Value)
			} else {
				_, _ = fmt.Fprintf(w, "%d) %q\n", i+1, it.Value)
			}
		}
	}
}

// printHelp lists all commands with their argument counts
func printHelp(w io.Writer) {
	for _, spec := range query.Specs() {
		switch {
		case spec.MaxArgs == query.Variadic:
			_, _ = fmt.Fprintf(w, "  %-14s %d+ args\n", spec.Name, spec.MinArgs)
		case spec.MinArgs == spec.MaxArgs:
			_, _ = fmt.Fprintf(w, "  %-14s %d args\n", spec.Name, spec.MinArgs)
		default:
			_, _ = fmt.Fprintf(w, "  %-14s %d-%d args\n", spec.Name, spec.MinArgs, spec.MaxArgs)
		}
	}
	_, _ = fmt.Fprintf(w, "  %s\n", strings.Join(sessionCommands, " "))
}

// completer builds the tab completion from the registered commands
func completer() *readline.PrefixCompleter {
	specs := query.Specs()
	items := make([]readline.PrefixCompleterInterface, 0, len(specs)+len(sessionCommands))
	for _, spec := range specs {
		items = append(items, readline.PcItem(spec.Name))
	}
	for _, name := range sessionCommands {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".akv_history")
}
