package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harun/cortex/pkg/coordinator"
	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

type execOptions struct {
	key       string
	value     string
	valueFile string
	target    string
	sentiment float64
	hasSent   bool
	min       float64
	max       float64
	depth     int
}

var execOpts execOptions

var execCmd = &cobra.Command{
	Use:   "exec <region> <op>",
	Short: "Execute one memory operation",
	Long: `Execute one memory operation against a region and print the result as JSON.

Regions: working, declarative, procedural, associative, emotional.
Operations:
  working       put, get, clear, keys
  declarative   store, retrieve
  procedural    store_procedure, load_procedure, list_procedures, delete_procedure
  associative   add_association, get_associations, list_concepts, traverse
  emotional     store, retrieve, query_sentiment

Working memory lives only as long as the process, so it is empty on every
invocation.`,
	Example: `  cortex exec declarative store --key capital --value Paris
  cortex exec emotional store --key rain --value gloomy --sentiment -0.4
  cortex exec procedural store_procedure --key deploy --value-file deploy.yaml
  cortex exec associative traverse --key fire --depth 2`,
	Args: cobra.ExactArgs(2),
	RunE: runExec,
}

func init() {
	f := execCmd.Flags()
	f.StringVar(&execOpts.key, "key", "", "memory key, procedure name or source concept")
	f.StringVar(&execOpts.value, "value", "", "value to store")
	f.StringVar(&execOpts.valueFile, "value-file", "", "read the value from a file ('-' for stdin)")
	f.StringVar(&execOpts.target, "target", "", "target concept for add_association")
	f.Float64Var(&execOpts.sentiment, "sentiment", 0, "sentiment in [-1, 1], required for emotional store")
	f.Float64Var(&execOpts.min, "min", -1, "lower sentiment bound for query_sentiment")
	f.Float64Var(&execOpts.max, "max", 1, "upper sentiment bound for query_sentiment")
	f.IntVar(&execOpts.depth, "depth", 1, "hops for traverse")
	execCmd.MarkFlagsMutuallyExclusive("value", "value-file")

	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	opts := execOpts
	opts.hasSent = cmd.Flags().Changed("sentiment")

	req, err := buildRequest(cmd.InOrStdin(), args, opts)
	if err != nil {
		return err
	}

	cfg, log, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	c, err := coordinator.New(cfg,
		coordinator.WithLogger(log.GetZerolog()),
		coordinator.WithoutMaintenance(),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), newResultView(req, res))
}

func buildRequest(stdin io.Reader, args []string, opts execOptions) (memory.Request, error) {
	region, err := memory.ParseRegion(args[0])
	if err != nil {
		return memory.Request{}, err
	}

	req := memory.Request{
		Region:       region,
		Op:           memory.Operation(strings.ToLower(strings.TrimSpace(args[1]))),
		Key:          opts.key,
		Target:       opts.target,
		MinSentiment: opts.min,
		MaxSentiment: opts.max,
		Depth:        opts.depth,
	}

	if opts.hasSent {
		req.Sentiment = memory.Sentiment(opts.sentiment)
	}

	switch {
	case opts.valueFile == "-":
		req.Value, err = io.ReadAll(stdin)
	case opts.valueFile != "":
		req.Value, err = os.ReadFile(opts.valueFile)
	case opts.value != "":
		req.Value = []byte(opts.value)
	}
	if err != nil {
		return memory.Request{}, fmt.Errorf("failed to read value: %w", err)
	}
	return req, nil
}

// resultView is the JSON shape printed by exec. Values that are not valid
// UTF-8 are printed base64 encoded.
type resultView struct {
	Region    string      `json:"region"`
	Op        string      `json:"op"`
	Found     bool        `json:"found"`
	Value     string      `json:"value,omitempty"`
	Encoding  string      `json:"encoding,omitempty"`
	Sentiment *float64    `json:"sentiment,omitempty"`
	Concepts  []string    `json:"concepts,omitempty"`
	Names     []string    `json:"names,omitempty"`
	Entries   []entryView `json:"entries,omitempty"`
}

type entryView struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encoding  string    `json:"encoding,omitempty"`
	Sentiment float64   `json:"sentiment"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeValue(v []byte) (string, string) {
	if utf8.Valid(v) {
		return string(v), ""
	}
	return base64.StdEncoding.EncodeToString(v), "base64"
}

func newResultView(req memory.Request, res memory.Result) resultView {
	view := resultView{
		Region:   string(req.Region),
		Op:       string(req.Op),
		Found:    res.Found,
		Concepts: res.Concepts,
		Names:    res.Names,
	}
	if res.Value != nil {
		view.Value, view.Encoding = encodeValue(res.Value)
	}
	if req.Region == memory.RegionEmotional && req.Op == memory.OpRetrieve {
		s := res.Sentiment
		view.Sentiment = &s
	}
	for _, e := range res.Entries {
		ev := entryView{Key: e.Key, Sentiment: e.Sentiment, UpdatedAt: e.UpdatedAt}
		ev.Value, ev.Encoding = encodeValue(e.Value)
		view.Entries = append(view.Entries, ev)
	}
	return view
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
