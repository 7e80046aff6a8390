package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/strata-db/strata/pkg/branch"
	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/events"
	"github.com/strata-db/strata/pkg/graph"
	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/session"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/wal"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata - embeddable, multi-primitive database engine",
	Long: `Strata combines Key-Value, JSON, State, Event, and Graph primitives
under one MVCC + WAL + branch-isolation discipline, in a single embeddable
process.

This CLI opens a Strata data directory, runs one command against it, and
exits (serve, which exposes metrics over HTTP, runs until interrupted) — it
is a smoke-testing surface, not a shell.`,
	Version: Version,
}

var sess *session.Session
var engineWal *wal.WAL
var engineBus *events.Broker

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"strata version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("data-dir", "./strata-data", "Data directory")
	rootCmd.PersistentFlags().String("branch", branch.Default, "Branch to operate on")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().Bool("read-only", false, "Open the data directory read-only")

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentPreRunE = openSession
	rootCmd.PersistentPostRunE = closeSession

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(kvCmd)
	rootCmd.AddCommand(jsonCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(branchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// openSession recovers the data directory's durable state and constructs
// the Session every subcommand runs against. No auto-embed backend is
// wired from the CLI — embedding callers that want one construct a
// session.Session directly with a real QueryEmbedder/VectorCollection.
func openSession(cmd *cobra.Command, args []string) error {
	// serve doesn't touch the data directory at all.
	if cmd.Name() == "serve" {
		return nil
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	readOnly, _ := cmd.Flags().GetBool("read-only")

	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.ReadOnly = readOnly

	snapshotDir := filepath.Join(dataDir, "snapshots")
	segmentDir := filepath.Join(dataDir, "wal")

	store := storage.New()
	result, err := wal.Recover(snapshotDir, segmentDir, store)
	if err != nil {
		return fmt.Errorf("recovering data directory: %w", err)
	}
	if result.StoppedEarly {
		fmt.Fprintln(os.Stderr, "warning: WAL replay stopped early at a corrupt or unrecognized entry")
	}

	engineWal, err = wal.Open(segmentDir, cfg)
	if err != nil {
		return fmt.Errorf("opening write-ahead log: %w", err)
	}

	engineBus = events.NewBroker()
	engineBus.Start()

	ctrl := txn.New(store, engineWal, engineBus, cfg, result.MaxCommitVersion)
	sess = session.New(ctrl, cfg, nil, nil)

	branchFlag, _ := cmd.Flags().GetString("branch")
	if branchFlag != branch.Default {
		if err := sess.SetBranch(branchFlag); err != nil {
			return err
		}
	}
	return nil
}

func closeSession(cmd *cobra.Command, args []string) error {
	if sess == nil {
		return nil
	}
	defer engineBus.Stop()
	if err := sess.Flush(); err != nil {
		return err
	}
	return engineWal.Close()
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the data directory opens and replays cleanly",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sess.Ping())
		info := sess.Info()
		fmt.Printf("branch: %s\n", info.CurrentBranch)
		fmt.Printf("global version: %d\n", info.GlobalVersion.Uint64())
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Write a fresh snapshot of every live entry at the current version",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := sess.Compact()
		if err != nil {
			return err
		}
		fmt.Printf("snapshot written: %s\n", path)
		return nil
	},
}

// serve runs the Prometheus metrics exporter until interrupted. It does
// not expose a network or SQL surface onto the engine itself — metrics is
// the only thing worth serving continuously from an embeddable library's
// CLI shell.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Prometheus /metrics endpoint until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		fmt.Printf("serving metrics on http://%s/metrics\n", addr)
		return http.ListenAndServe(addr, mux)
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Metrics listen address")
}

// --- kv ---

var kvCmd = &cobra.Command{Use: "kv", Short: "Key-Value primitive"}

var kvGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read the current value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok, err := sess.KvGet(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(formatValue(v))
		return nil
	},
}

var kvPutCmd = &cobra.Command{
	Use:   "put KEY VALUE",
	Short: "Write a key (VALUE parsed as JSON, else taken literally)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseValue(args[1])
		if err != nil {
			return err
		}
		ver, err := sess.KvPut(context.Background(), args[0], v)
		if err != nil {
			return err
		}
		fmt.Printf("ok, version=%d\n", ver.Uint64())
		return nil
	},
}

var kvDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Tombstone a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := sess.KvDelete(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

var kvListCmd = &cobra.Command{
	Use:   "list [PREFIX]",
	Short: "List current key/value pairs under an optional prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		entries, err := sess.KvList(prefix)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%s\n", e.Key, formatValue(e.Value))
		}
		return nil
	},
}

func init() {
	kvCmd.AddCommand(kvGetCmd, kvPutCmd, kvDeleteCmd, kvListCmd)
}

// --- json ---

var jsonCmd = &cobra.Command{Use: "json", Short: "JSON document primitive"}

var jsonGetCmd = &cobra.Command{
	Use:   "get KEY [PATH]",
	Short: "Read a document, or a sub-path within it (default: $)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "$"
		if len(args) == 2 {
			path = args[1]
		}
		v, ok, err := sess.JsonGet(args[0], path)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(formatValue(v))
		return nil
	},
}

var jsonSetCmd = &cobra.Command{
	Use:   "set KEY PATH VALUE",
	Short: "Set the value at PATH within a document (VALUE parsed as JSON)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseValue(args[2])
		if err != nil {
			return err
		}
		ver, err := sess.JsonSet(context.Background(), args[0], args[1], v)
		if err != nil {
			return err
		}
		fmt.Printf("ok, version=%d\n", ver.Uint64())
		return nil
	},
}

var jsonDeleteCmd = &cobra.Command{
	Use:   "delete KEY PATH",
	Short: "Delete the sub-value at PATH",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := sess.JsonDelete(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

func init() {
	jsonCmd.AddCommand(jsonGetCmd, jsonSetCmd, jsonDeleteCmd)
}

// --- state ---

var stateCmd = &cobra.Command{Use: "state", Short: "State cell primitive"}

var stateInitCmd = &cobra.Command{
	Use:   "init CELL VALUE",
	Short: "Initialize a cell if it doesn't already exist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseValue(args[1])
		if err != nil {
			return err
		}
		ver, err := sess.StateInit(context.Background(), args[0], v)
		if err != nil {
			return err
		}
		fmt.Printf("ok, version=%d\n", ver.Uint64())
		return nil
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set CELL VALUE",
	Short: "Overwrite a cell unconditionally",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseValue(args[1])
		if err != nil {
			return err
		}
		ver, err := sess.StateSet(context.Background(), args[0], v)
		if err != nil {
			return err
		}
		fmt.Printf("ok, version=%d\n", ver.Uint64())
		return nil
	},
}

var stateReadCmd = &cobra.Command{
	Use:   "read CELL",
	Short: "Read a cell's current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok, err := sess.StateRead(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(formatValue(v))
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateInitCmd, stateSetCmd, stateReadCmd)
}

// --- event ---

var eventCmd = &cobra.Command{Use: "event", Short: "Event stream primitive"}

var eventAppendCmd = &cobra.Command{
	Use:   "append STREAM PAYLOAD",
	Short: "Append a payload to a stream",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseValue(args[1])
		if err != nil {
			return err
		}
		ver, err := sess.EventAppend(args[0], v)
		if err != nil {
			return err
		}
		fmt.Printf("ok, sequence version=%d\n", ver.Uint64())
		return nil
	},
}

var eventRangeCmd = &cobra.Command{
	Use:   "range STREAM",
	Short: "List every entry currently in a stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := sess.EventRange(args[0], nil, nil, nil)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%d\t%s\n", e.Version.Uint64(), formatValue(e.Value))
		}
		return nil
	},
}

func init() {
	eventCmd.AddCommand(eventAppendCmd, eventRangeCmd)
}

// --- graph ---

var graphCmd = &cobra.Command{Use: "graph", Short: "Graph primitive"}

var graphCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a named graph in the current branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, _ := cmd.Flags().GetString("cascade")
		_, err := sess.GraphCreate(args[0], graph.CascadePolicy(policy), 0)
		return err
	},
}

var graphAddNodeCmd = &cobra.Command{
	Use:   "add-node GRAPH NODE",
	Short: "Add a node to a graph",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityRef, _ := cmd.Flags().GetString("entity-ref")
		_, err := sess.GraphAddNode(args[0], args[1], entityRef, nil)
		return err
	},
}

var graphAddEdgeCmd = &cobra.Command{
	Use:   "add-edge GRAPH SRC DST TYPE",
	Short: "Add a directed edge between two nodes",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, _ := cmd.Flags().GetFloat64("weight")
		_, err := sess.GraphAddEdge(args[0], args[1], args[2], args[3], weight, nil)
		return err
	},
}

var graphNeighborsCmd = &cobra.Command{
	Use:   "neighbors GRAPH NODE",
	Short: "List a node's neighboring edges",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		weighted, _ := cmd.Flags().GetBool("weighted")
		order := graph.Unordered
		if weighted {
			order = graph.Weighted
		}
		edges, err := sess.GraphNeighbors(args[0], args[1], graph.Outgoing, nil, order)
		if err != nil {
			return err
		}
		for _, e := range edges {
			fmt.Printf("%s --%s(%.3g)--> %s\n", e.Src, e.Type, e.Weight, e.Dst)
		}
		return nil
	},
}

func init() {
	graphCreateCmd.Flags().String("cascade", string(graph.PolicyIgnore), "Node-delete cascade policy: cascade|detach|ignore")
	graphAddNodeCmd.Flags().String("entity-ref", "", "Optional external entity reference")
	graphAddEdgeCmd.Flags().Float64("weight", 1.0, "Edge weight")
	graphNeighborsCmd.Flags().Bool("weighted", false, "Order by edge weight, descending")
	graphCmd.AddCommand(graphCreateCmd, graphAddNodeCmd, graphAddEdgeCmd, graphNeighborsCmd)
}

// --- branch ---

var branchCmd = &cobra.Command{Use: "branch", Short: "Branch index"}

var branchCreateCmd = &cobra.Command{
	Use:   "create ID",
	Short: "Create a new branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := sess.BranchCreate(args[0], args[0], nil, graph.PolicyIgnore, 0)
		return err
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		branches, err := sess.BranchList(nil)
		if err != nil {
			return err
		}
		for _, b := range branches {
			fmt.Printf("%s\t%s\n", b.ID, b.State)
		}
		return nil
	},
}

var branchForkCmd = &cobra.Command{
	Use:   "fork SOURCE DEST",
	Short: "Fork a branch, copying current values only unless --full-history is set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full-history")
		mode := branch.ForkLatestOnly
		if full {
			mode = branch.ForkFullHistory
		}
		_, err := sess.BranchFork(args[0], args[1], mode)
		return err
	},
}

var branchMergeCmd = &cobra.Command{
	Use:   "merge SOURCE TARGET",
	Short: "Merge one branch into another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		n, err := sess.BranchMerge(args[0], args[1], branch.MergeStrategy(strategy))
		if err != nil {
			return err
		}
		fmt.Printf("merged %d keys\n", n)
		return nil
	},
}

func init() {
	branchForkCmd.Flags().Bool("full-history", false, "Copy every version in each key's chain, not just the latest")
	branchMergeCmd.Flags().String("strategy", string(branch.LastWriterWins), "Merge strategy: last_writer_wins|source_wins|target_wins")
	branchCmd.AddCommand(branchCreateCmd, branchListCmd, branchForkCmd, branchMergeCmd)
}
