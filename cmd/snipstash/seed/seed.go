// Package seedcmder provides the seed command for loading demo snippets.
package seedcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snipstash/snipstash/pkg/cliui"
	"github.com/snipstash/snipstash/pkg/config"
	"github.com/snipstash/snipstash/pkg/dotdir"
	"github.com/snipstash/snipstash/pkg/embeddings/hashed"
	"github.com/snipstash/snipstash/pkg/logger"
	"github.com/snipstash/snipstash/pkg/snippet"
	"github.com/snipstash/snipstash/pkg/storage/sqlite"
)

const seedLongDesc string = `Seed demo snippets into a SQLite database.

Embeddings are computed with the offline hashed embedder so seeding works
without a running embedding provider. Run "snipstash backfill" afterwards
to re-embed with the configured model.

Examples:
  snipstash seed
  snipstash seed --sqlite ./snippets.db
  snipstash seed --overwrite`

const seedShortDesc string = "Seed demo snippets"

type seedCommander struct {
	sqlitePath string
	overwrite  bool
	configDir  string
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database")
	cmd.Flags().BoolVarP(&cmder.overwrite, "overwrite", "f", false, "Overwrite database before seeding")

	return cmd
}

func (c *seedCommander) run(ctx context.Context) error {
	path, err := c.resolveSQLitePath()
	if err != nil {
		return err
	}

	if c.overwrite {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing database: %w", err)
		}
	}

	var count int
	if err := cliui.Step(os.Stdout, "Seeding demo snippets", func() error {
		embedder := hashed.NewEmbedder(hashed.DefaultDimensions)
		defer embedder.Close()

		store, err := sqlite.NewStore(path, embedder, logger.Nop())
		if err != nil {
			return err
		}
		defer store.Close()

		for _, fields := range demoSnippets() {
			if _, err := store.Create(ctx, fields); err != nil {
				return fmt.Errorf("seeding %q: %w", fields.Title, err)
			}
			count++
		}
		return nil
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Seeded %s snippets into %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(count)),
		cliui.DimStyle.Render(path),
	)
	return nil
}

func (c *seedCommander) resolveSQLitePath() (string, error) {
	if c.sqlitePath != "" {
		return c.sqlitePath, nil
	}

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return "", err
	}
	if path := v.GetString("storage.sqlite_path"); path != "" {
		return path, nil
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return "", fmt.Errorf("resolving snipstash directory: %w", err)
	}
	return filepath.Join(dir, "snipstash.db"), nil
}

func demoSnippets() []snippet.Fields {
	return []snippet.Fields{
		{
			Title:       "quicksort",
			Description: "In-place quicksort with median-of-three pivot selection",
			Code: `func quicksort(a []int, lo, hi int) {
	if lo >= hi {
		return
	}
	p := partition(a, lo, hi)
	quicksort(a, lo, p-1)
	quicksort(a, p+1, hi)
}`,
			Language: "go",
			Tags:     []string{"sorting", "algorithms"},
		},
		{
			Title:       "debounce",
			Description: "Debounce a function so it only fires after calls stop",
			Code: `function debounce(fn, wait) {
  let timer;
  return (...args) => {
    clearTimeout(timer);
    timer = setTimeout(() => fn(...args), wait);
  };
}`,
			Language: "javascript",
			Tags:     []string{"timing", "events"},
		},
		{
			Title:       "lru cache",
			Description: "Least-recently-used cache on OrderedDict",
			Code: `from collections import OrderedDict

class LRUCache:
    def __init__(self, capacity):
        self.cache = OrderedDict()
        self.capacity = capacity

    def get(self, key):
        if key not in self.cache:
            return None
        self.cache.move_to_end(key)
        return self.cache[key]

    def put(self, key, value):
        self.cache[key] = value
        self.cache.move_to_end(key)
        if len(self.cache) > self.capacity:
            self.cache.popitem(last=False)`,
			Language: "python",
			Tags:     []string{"caching", "data-structures"},
		},
		{
			Title:       "retry with backoff",
			Description: "Retry a flaky operation with exponential backoff and jitter",
			Code: `func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * 100 * time.Millisecond
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return err
}`,
			Language: "go",
			Tags:     []string{"resilience", "networking"},
		},
		{
			Title:       "binary search",
			Description: "Classic binary search over a sorted slice",
			Code: `fn binary_search(a: &[i32], target: i32) -> Option<usize> {
    let (mut lo, mut hi) = (0usize, a.len());
    while lo < hi {
        let mid = lo + (hi - lo) / 2;
        match a[mid].cmp(&target) {
            std::cmp::Ordering::Equal => return Some(mid),
            std::cmp::Ordering::Less => lo = mid + 1,
            std::cmp::Ordering::Greater => hi = mid,
        }
    }
    None
}`,
			Language: "rust",
			Tags:     []string{"searching", "algorithms"},
		},
		{
			Title:       "worker pool",
			Description: "Bounded worker pool draining a jobs channel",
			Code: `func pool(jobs <-chan func(), workers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				job()
			}
		}()
	}
	return &wg
}`,
			Language: "go",
			Tags:     []string{"concurrency"},
		},
		{
			Title:       "flatten nested list",
			Description: "Recursively flatten arbitrarily nested lists",
			Code: `def flatten(xs):
    for x in xs:
        if isinstance(x, list):
            yield from flatten(x)
        else:
            yield x`,
			Language: "python",
			Tags:     []string{"iterators"},
		},
		{
			Title:       "group by key",
			Description: "Group an array of objects by a key selector",
			Code: `const groupBy = (xs, keyFn) =>
  xs.reduce((acc, x) => {
    const k = keyFn(x);
    (acc[k] ||= []).push(x);
    return acc;
  }, {});`,
			Language: "javascript",
			Tags:     []string{"collections"},
		},
	}
}
