// hostelctl is the operator CLI for the hostel complaint store.
//
// Commands:
//
//	classify <text>            run the rule pipeline and print the payload
//	list [--pending]           list complaints, newest first
//	show --token <token>       show the complaint holding a resolve token
//	resolve --token <token>    resolve a complaint (--note to add a remark)
//
// list, show and resolve use the store configured through the same
// environment as the server (STORE_BACKEND and friends). Resolving here
// does not notify anyone; use the resolve link for that.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"hostelmon/internal/complaint"
	"hostelmon/internal/config"
	"hostelmon/internal/logger"
	"hostelmon/internal/storage"

	"github.com/spf13/pflag"
)

// openStore opens the configured record store. Tests replace it.
var openStore = func(ctx context.Context) (complaint.Store, func() error, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New("warn", "console", "hostelctl")
	if err != nil {
		return nil, nil, err
	}
	return storage.Open(ctx, cfg, log)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("missing command")
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "classify":
		return runClassify(rest, out)
	case "list":
		return runList(ctx, rest, out)
	case "show":
		return runShow(ctx, rest, out)
	case "resolve":
		return runResolve(ctx, rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `Usage: hostelctl <command> [flags]

Commands:
  classify <text>            run the rule pipeline and print the payload
  list [--pending]           list complaints, newest first
  show --token <token>       show the complaint holding a resolve token
  resolve --token <token>    resolve a complaint (--note to add a remark)
`)
}

// payloadView is the printed form of an assembled payload.
type payloadView struct {
	Facility     *string `json:"facility"`
	SubUnit      *string `json:"sub_unit"`
	Category     string  `json:"category"`
	Priority     string  `json:"priority"`
	Summary      string  `json:"summary"`
	RouteAddress string  `json:"route_address"`
	Confidence   float64 `json:"confidence"`
}

func runClassify(args []string, out io.Writer) error {
	var routesFile string
	flagSet := pflag.NewFlagSet("classify", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&routesFile, "routes", "", "YAML file with category -> address overrides")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	text := strings.Join(flagSet.Args(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("classify needs complaint text")
	}

	var overrides map[string]string
	if routesFile != "" {
		var err error
		if overrides, err = config.LoadRoutes(routesFile); err != nil {
			return err
		}
	}

	p := complaint.NewAssembler(complaint.NewRoutingTable(overrides)).Assemble(text, "")
	return writeJSON(out, payloadView{
		Facility:     p.Facility,
		SubUnit:      p.SubUnit,
		Category:     string(p.Category),
		Priority:     string(p.Priority),
		Summary:      p.Summary,
		RouteAddress: p.RouteAddress,
		Confidence:   p.Confidence,
	})
}

func runList(ctx context.Context, args []string, out io.Writer) error {
	var pendingOnly bool
	flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.BoolVar(&pendingOnly, "pending", false, "only PENDING complaints")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	return withManager(ctx, func(m *complaint.Manager) error {
		list := m.List
		if pendingOnly {
			list = m.Pending
		}
		cs, err := list(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%-10s %-9s %-13s %-7s %-8s %s\n", "ID", "STATUS", "CATEGORY", "PRIO", "ROOM", "SUMMARY")
		for _, c := range cs {
			room := "-"
			if c.SubUnit != nil {
				room = *c.SubUnit
			}
			fmt.Fprintf(out, "%-10s %-9s %-13s %-7s %-8s %s\n",
				c.ShortID(), c.Status, c.Category, c.Priority, room, complaint.Truncate(c.Summary, 50))
		}
		fmt.Fprintf(out, "%d complaint(s)\n", len(cs))
		return nil
	})
}

func runShow(ctx context.Context, args []string, out io.Writer) error {
	var token string
	flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&token, "token", "", "resolve token")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("--token is required")
	}

	return withManager(ctx, func(m *complaint.Manager) error {
		c, err := m.FindByToken(ctx, token)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("no complaint for that token")
		}
		return writeJSON(out, c)
	})
}

func runResolve(ctx context.Context, args []string, out io.Writer) error {
	var token, note string
	flagSet := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&token, "token", "", "resolve token")
	flagSet.StringVar(&note, "note", "", "resolution note")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("--token is required")
	}

	return withManager(ctx, func(m *complaint.Manager) error {
		res, err := m.Resolve(ctx, token, note)
		if err != nil {
			return err
		}
		switch res.Outcome {
		case complaint.OutcomeNotFound:
			return fmt.Errorf("no complaint for that token")
		case complaint.OutcomeAlreadyResolved:
			fmt.Fprintf(out, "#%s was already resolved\n", res.Complaint.ShortID())
		default:
			fmt.Fprintf(out, "#%s resolved\n", res.Complaint.ShortID())
		}
		return nil
	})
}

func withManager(ctx context.Context, fn func(*complaint.Manager) error) error {
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: close store: %v\n", err)
		}
	}()
	return fn(complaint.NewManager(store))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
