package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codequery-dev/codequery/internal/search"
)

// NewSearchCmd creates the one-shot search command.
func NewSearchCmd() *cobra.Command {
	var (
		storeName  string
		topK       int
		pathPrefix string
		languages  []string
		jsonOutput bool
		noRerank   bool
		groupFiles bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one search against a configured store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			query := strings.Join(args, " ")
			if storeName == "" {
				stores := rt.engine.Stores()
				if len(stores) != 1 {
					return fmt.Errorf("--store is required (%d stores configured)", len(stores))
				}
				storeName = stores[0]
			}

			req := &search.SearchRequest{
				Query:       query,
				TopK:        topK,
				GroupByFile: groupFiles,
			}
			if pathPrefix != "" || len(languages) > 0 {
				req.Filters = &search.SearchFilters{
					PathPrefix: pathPrefix,
					Languages:  languages,
				}
			}
			if noRerank {
				f := false
				req.EnableReranking = &f
			}

			resp, err := rt.engine.Search(cmd.Context(), storeName, req)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResults(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storeName, "store", "s", "", "Store to search (defaults to the only configured store)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Maximum results (default 20, max 100)")
	cmd.Flags().StringVar(&pathPrefix, "path", "", "Restrict results to this path prefix")
	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Restrict results to these languages")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&noRerank, "no-rerank", false, "Skip cross-encoder reranking")
	cmd.Flags().BoolVarP(&groupFiles, "group", "g", false, "Group results by file")
	return cmd
}

func printResults(cmd *cobra.Command, resp *search.SearchResponse) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%d results in %dms (intent=%s strategy=%s)\n\n",
		resp.Total, resp.SearchTimeMs,
		resp.Intelligence.Intent, resp.Intelligence.Strategy)

	for i, r := range resp.Results {
		fmt.Fprintf(out, "%2d. %s:%d-%d  score=%.4f", i+1, r.Path, r.StartLine, r.EndLine, r.FinalScore)
		if r.SparseRank > 0 && r.DenseRank > 0 {
			fmt.Fprintf(out, "  (sparse #%d, dense #%d)", r.SparseRank, r.DenseRank)
		} else if r.SparseRank > 0 {
			fmt.Fprintf(out, "  (sparse #%d)", r.SparseRank)
		} else if r.DenseRank > 0 {
			fmt.Fprintf(out, "  (dense #%d)", r.DenseRank)
		}
		fmt.Fprintln(out)

		if snippet := firstLine(r.Content); snippet != "" {
			fmt.Fprintf(out, "    %s\n", snippet)
		}
	}
}

// firstLine returns the first non-empty line of a chunk, trimmed.
func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if len(trimmed) > 120 {
				return trimmed[:120] + "..."
			}
			return trimmed
		}
	}
	return ""
}
