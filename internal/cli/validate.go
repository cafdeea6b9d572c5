package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/sequences"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validationReport struct {
	Name   string   `json:"name"`
	Source string   `json:"source"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check sequence files",
	Long: `Parse and check sequence definitions. With no arguments every sequence
on the search paths is checked. Unknown mission kinds are reported here even
though at run time such missions are only skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		progress := startProgress("Loading sequences")
		var defs []*sequences.Definition
		var reports []validationReport
		if len(args) > 0 {
			for _, path := range args {
				def, err := sequences.LoadDefinition(path)
				if err != nil {
					reports = append(reports, validationReport{Name: path, Source: path, Errors: []string{err.Error()}})
					continue
				}
				defs = append(defs, def)
			}
		} else {
			var err error
			defs, err = loadDefinitions(GetConfig())
			if err != nil {
				progress.Fail(err)
				return err
			}
		}
		progress.Done("%d loaded", len(defs))

		reports = append(reports, validateDefinitions(defs, mission.NewStandardFactory())...)

		invalid := 0
		for _, r := range reports {
			if !r.Valid {
				invalid++
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			if err := WriteOutput(os.Stdout, reports); err != nil {
				return err
			}
		} else {
			styleSet := currentStyles()
			for _, r := range reports {
				if r.Valid {
					fmt.Fprintf(os.Stdout, "%s %s (%s)\n", styleSet.Success.Render("ok"), r.Name, r.Source)
					continue
				}
				fmt.Fprintf(os.Stdout, "%s %s (%s)\n", styleSet.Error.Render("invalid"), r.Name, r.Source)
				for _, msg := range r.Errors {
					fmt.Fprintf(os.Stdout, "  - %s\n", msg)
				}
			}
		}

		if invalid > 0 {
			return fmt.Errorf("%d of %d sequence(s) invalid", invalid, len(reports))
		}
		return nil
	},
}

func validateDefinitions(defs []*sequences.Definition, factory *mission.Factory) []validationReport {
	reports := make([]validationReport, 0, len(defs))
	for _, def := range defs {
		report := validationReport{Name: def.Name, Source: def.Source, Valid: true}
		if err := sequences.Validate(def, factory); err != nil {
			report.Valid = false
			var verrs *models.ValidationErrors
			if errors.As(err, &verrs) {
				for _, e := range verrs.Errors {
					report.Errors = append(report.Errors, e.Error())
				}
			} else {
				report.Errors = append(report.Errors, err.Error())
			}
		}
		reports = append(reports, report)
	}
	return reports
}
