package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencode-ai/missionctl/internal/sequences"
	"github.com/spf13/cobra"
)

var (
	listTags  []string
	listFiles []string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "only list sequences with these tags")
	listCmd.Flags().StringArrayVarP(&listFiles, "file", "f", nil, "list these files instead of the search paths")
}

// sequenceSummary is the JSON shape of a listed sequence.
type sequenceSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Missions    int      `json:"missions"`
	TotalDelay  string   `json:"total_delay"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List available sequences",
	Long: `List sequences resolved from the search paths in registry order.
The first column of the shell status output uses the same indices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var defs []*sequences.Definition
		var err error
		if len(listFiles) > 0 {
			defs, err = loadDefinitionFiles(listFiles)
		} else {
			defs, err = loadDefinitions(GetConfig())
		}
		if err != nil {
			return err
		}
		defs = filterDefinitions(defs, listTags)

		summaries := make([]sequenceSummary, 0, len(defs))
		for _, def := range defs {
			summaries = append(summaries, summarizeDefinition(def))
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, summaries)
		}

		if len(summaries) == 0 {
			fmt.Fprintln(os.Stdout, "No sequences found.")
			return nil
		}

		rows := make([][]string, 0, len(summaries))
		for i, s := range summaries {
			rows = append(rows, []string{
				fmt.Sprintf("%d", i),
				s.Name,
				fmt.Sprintf("%d", s.Missions),
				s.TotalDelay,
				orDash(strings.Join(s.Tags, ",")),
				s.Source,
			})
		}
		return writeTable(os.Stdout, []string{"#", "NAME", "MISSIONS", "DELAY", "TAGS", "SOURCE"}, rows)
	},
}

// summarizeDefinition reports the sum of the start delays a run would wait
// through, honoring a total_delay override.
func summarizeDefinition(def *sequences.Definition) sequenceSummary {
	var total time.Duration
	override := def.TotalDelayDuration()
	for i := range def.Missions {
		if override > 0 {
			total += override
			continue
		}
		total += def.Missions[i].DelayDuration()
	}

	return sequenceSummary{
		Name:        def.Name,
		Description: def.Description,
		Missions:    len(def.Missions),
		TotalDelay:  total.String(),
		Tags:        def.Tags,
		Source:      def.Source,
	}
}
