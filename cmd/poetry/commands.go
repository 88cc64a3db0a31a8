package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/service"
)

var (
	pruneOnce        bool
	batchConcurrency int
)

var errEmptyText = errors.New("text must not be empty")

var poemCmd = &cobra.Command{
	Use:   "poem [text]",
	Short: "Write a classical poem for a piece of modern text",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		if text == "" {
			return errEmptyText
		}
		return withApp(func(ctx context.Context, a *app) error {
			printPoem(cmd.OutOrStdout(), a.studio.GenerateText(ctx, text))
			return nil
		})
	},
}

var imageCmd = &cobra.Command{
	Use:   "image [text]",
	Short: "Illustrate a piece of text and print the stored asset",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			id, err := a.studio.GenerateImage(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.location(id))
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run [text]",
	Short: "Write a poem and illustrate it",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := inputText(cmd, args)
		if err != nil {
			return err
		}
		if text == "" {
			return errEmptyText
		}
		return withApp(func(ctx context.Context, a *app) error {
			card, err := a.studio.GenerateCard(ctx, text)
			printPoem(cmd.OutOrStdout(), card.Poem)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", a.location(card.Image))
			return nil
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [file.yaml]",
	Short: "Run many requests from a YAML file and print the results as YAML",
	Long: `Reads a YAML list of requests:

  - text: 今天天气真好
    mode: card       # poem | image | card (default)
  - text: 秋夜听雨
    mode: poem

Requests run concurrently, bounded by --concurrency.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := readBatch(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			results, err := runBatch(ctx, a.studio, items, batchConcurrency, a.location, logger)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(results)
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete generated images older than PRUNE_MAX_AGE",
	Long: `Without --once, prune runs on PRUNE_SCHEDULE (six-field cron, seconds first)
until interrupted. The shared placeholder image is never removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		if pruneOnce {
			n, err := a.pruner.Prune(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d assets\n", n)
			return nil
		}

		if err := a.pruner.Start(ctx, cfg.PruneSchedule); err != nil {
			return err
		}
		<-ctx.Done()
		a.pruner.Stop()
		return nil
	},
}

// withApp builds the application under a signal-aware context.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// inputText joins the arguments, or reads stdin when the only argument is "-".
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

// location is the file path of id for the file store, the bare name otherwise.
func (a *app) location(id domain.AssetID) string {
	if a.fileDir == "" {
		return string(id)
	}
	return filepath.Join(a.fileDir, string(id))
}

func printPoem(w io.Writer, art domain.TextArtifact) {
	fmt.Fprintf(w, "《%s》\n", art.Title)
	if art.Body != "" {
		fmt.Fprintln(w, art.Body)
	}
	if art.Annotation != "" {
		fmt.Fprintf(w, "\n注释：%s\n", art.Annotation)
	}
}

// batch

// BatchItem is one request in a batch file.
type BatchItem struct {
	Text string `yaml:"text"`
	Mode string `yaml:"mode,omitempty"`
}

// BatchResult is printed for every item, in input order.
type BatchResult struct {
	Text       string `yaml:"text"`
	Title      string `yaml:"title,omitempty"`
	Poem       string `yaml:"poem,omitempty"`
	Annotation string `yaml:"annotation,omitempty"`
	Fallback   bool   `yaml:"fallback,omitempty"`
	Image      string `yaml:"image,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

const (
	modePoem  = "poem"
	modeImage = "image"
	modeCard  = "card"
)

func readBatch(path string) ([]BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var items []BatchItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	for i := range items {
		items[i].Mode = strings.ToLower(strings.TrimSpace(items[i].Mode))
		switch items[i].Mode {
		case "":
			items[i].Mode = modeCard
		case modePoem, modeImage, modeCard:
		default:
			return nil, fmt.Errorf("item %d: unknown mode %q", i+1, items[i].Mode)
		}
	}
	return items, nil
}

// cardStudio is the part of service.Studio a batch needs.
type cardStudio interface {
	GenerateText(ctx context.Context, text string) domain.TextArtifact
	GenerateImage(ctx context.Context, text string) (domain.AssetID, error)
	GenerateCard(ctx context.Context, text string) (service.Card, error)
}

// runBatch runs independent requests concurrently. A failing item is reported
// in its result and does not stop the others.
func runBatch(ctx context.Context, studio cardStudio, items []BatchItem, limit int, location func(domain.AssetID) string, logger *zap.Logger) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			res := BatchResult{Text: item.Text}
			var poem domain.TextArtifact
			var id domain.AssetID
			var err error

			switch item.Mode {
			case modePoem:
				poem = studio.GenerateText(gctx, item.Text)
			case modeImage:
				id, err = studio.GenerateImage(gctx, item.Text)
			default:
				var card service.Card
				card, err = studio.GenerateCard(gctx, item.Text)
				poem, id = card.Poem, card.Image
			}

			if item.Mode != modeImage {
				res.Title, res.Poem, res.Annotation, res.Fallback = poem.Title, poem.Body, poem.Annotation, poem.Fallback
			}
			if id != "" {
				res.Image = location(id)
			}
			if err != nil {
				res.Error = err.Error()
				logger.Warn("batch item failed", zap.Int("item", i+1), zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}
