package command

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvwait/internal/cli/connection"
	"github.com/yndnr/kvwait/internal/cli/output"
	"github.com/yndnr/kvwait/internal/wire"
)

// Batch operations.
const (
	BatchPut      = "put"
	BatchGet      = "get"
	BatchMultiPut = "mput"
	BatchMultiGet = "mget"
)

// BatchSummary reports a finished batch run. Positive counts PUT/MULTIPUT
// calls answered true, GETs that found their key and MULTIGETs that
// returned at least one pair.
type BatchSummary struct {
	Op         string  `json:"op" yaml:"op"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	Positive   int     `json:"positive" yaml:"positive"`
	Negative   int     `json:"negative" yaml:"negative"`
	Duration   string  `json:"duration" yaml:"duration"`
	OpsPerSec  float64 `json:"ops_per_sec" yaml:"ops_per_sec"`
}

// BatchCommand returns the batch command.
func BatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Run random operations against the server",
		Description: "Issues --iterations random operations of one kind over a single\n" +
			"connection, drawing keys from key1..keyN and values from value1..valueN.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "op",
				Usage:    "Operation: put, get, mput, mget",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Usage:   "Number of operations",
				Value:   100,
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "Size of the key and value pools",
				Value: 5,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed (0 picks one)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Show a progress bar instead of one line per operation",
			},
		},
		Action: batchAction,
	}
}

func batchAction(c *cli.Context) error {
	op, err := parseBatchOp(c.String("op"))
	if err != nil {
		return err
	}
	iterations := c.Int("iterations")
	if iterations <= 0 {
		return fmt.Errorf("--iterations must be positive, got %d", iterations)
	}
	poolSize := c.Int("keys")
	if poolSize <= 0 {
		return fmt.Errorf("--keys must be positive, got %d", poolSize)
	}

	seed := c.Uint64("seed")
	if seed == 0 {
		seed = rand.Uint64()
	}

	return withSession(c, func(ctx context.Context, s *Settings, client *connection.Client) error {
		runner := newBatchRunner(client, op, poolSize, seed)

		var bar *output.ProgressBar
		if c.Bool("quiet") {
			bar = output.NewProgressBar(stderr(c), op, iterations)
		} else {
			runner.log = c.App.Writer
		}

		summary, err := runner.run(ctx, iterations, func(positive bool) {
			if bar != nil {
				bar.Increment(positive)
			}
		})
		if bar != nil {
			bar.Finish()
		}
		if rerr := render(c, s, summary); rerr != nil && err == nil {
			err = rerr
		}
		return err
	})
}

func parseBatchOp(s string) (string, error) {
	switch strings.ToLower(s) {
	case BatchPut:
		return BatchPut, nil
	case BatchGet:
		return BatchGet, nil
	case BatchMultiPut, "multiput":
		return BatchMultiPut, nil
	case BatchMultiGet, "multiget":
		return BatchMultiGet, nil
	default:
		return "", fmt.Errorf("unknown batch operation %q (want put, get, mput or mget)", s)
	}
}

type batchRunner struct {
	client *connection.Client
	op     string
	keys   []string
	values [][]byte
	rng    *rand.Rand

	// log receives one line per operation; nil discards them.
	log io.Writer
}

func newBatchRunner(client *connection.Client, op string, poolSize int, seed uint64) *batchRunner {
	keys := make([]string, poolSize)
	values := make([][]byte, poolSize)
	for i := range poolSize {
		keys[i] = fmt.Sprintf("key%d", i+1)
		values[i] = []byte(fmt.Sprintf("value%d", i+1))
	}

	return &batchRunner{
		client: client,
		op:     op,
		keys:   keys,
		values: values,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		log:    io.Discard,
	}
}

// run issues n operations. It stops at the first transport error; the
// summary covers the operations completed before it.
func (b *batchRunner) run(ctx context.Context, n int, progress func(positive bool)) (*BatchSummary, error) {
	if b.log == nil {
		b.log = io.Discard
	}

	summary := &BatchSummary{Op: b.op}
	start := time.Now()

	var err error
	for i := 0; i < n; i++ {
		var positive bool
		positive, err = b.step(ctx)
		if err != nil {
			break
		}
		summary.Iterations++
		if positive {
			summary.Positive++
		} else {
			summary.Negative++
		}
		if progress != nil {
			progress(positive)
		}
	}

	elapsed := time.Since(start)
	summary.Duration = elapsed.Round(time.Millisecond).String()
	if secs := elapsed.Seconds(); secs > 0 {
		summary.OpsPerSec = float64(summary.Iterations) / secs
	}
	return summary, err
}

func (b *batchRunner) step(ctx context.Context) (bool, error) {
	switch b.op {
	case BatchPut:
		key, value := b.randomKey(), b.randomValue()
		ok, err := b.client.Put(ctx, key, value)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(b.log, "put %s=%s stored=%t\n", key, value, ok)
		return ok, nil

	case BatchGet:
		key := b.randomKey()
		v, found, err := b.client.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			fmt.Fprintf(b.log, "get %s = %s\n", key, output.FormatBytes(v))
		} else {
			fmt.Fprintf(b.log, "get %s: not found\n", key)
		}
		return found, nil

	case BatchMultiPut:
		pairs := make([]wire.Pair, b.rng.IntN(len(b.keys))+1)
		for i := range pairs {
			pairs[i] = wire.Pair{Key: b.randomKey(), Value: b.randomValue()}
		}
		ok, err := b.client.MultiPut(ctx, pairs)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(b.log, "mput %d pairs stored=%t\n", len(pairs), ok)
		return ok, nil

	case BatchMultiGet:
		keys := b.distinctKeys(b.rng.IntN(len(b.keys)) + 1)
		pairs, err := b.client.MultiGet(ctx, keys)
		if err != nil {
			return false, err
		}
		if len(pairs) == 0 {
			fmt.Fprintf(b.log, "mget %s: no keys found\n", strings.Join(keys, ","))
			return false, nil
		}
		for _, p := range pairs {
			fmt.Fprintf(b.log, "mget %s = %s\n", p.Key, output.FormatBytes(p.Value))
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown batch operation %q", b.op)
}

func (b *batchRunner) randomKey() string {
	return b.keys[b.rng.IntN(len(b.keys))]
}

func (b *batchRunner) randomValue() []byte {
	return b.values[b.rng.IntN(len(b.values))]
}

// distinctKeys returns n different keys from the pool in random order.
func (b *batchRunner) distinctKeys(n int) []string {
	perm := b.rng.Perm(len(b.keys))
	out := make([]string, n)
	for i := range out {
		out[i] = b.keys[perm[i]]
	}
	return out
}
