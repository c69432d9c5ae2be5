package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NonStopMan/vamo-heatos/internal/funnel"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/validate"
)

// classification is the report printed by the classify command.
type classification struct {
	Stage            model.Stage `json:"stage"`
	Valid            bool        `json:"valid"`
	Issues           []string    `json:"issues,omitempty"`
	MissingDiscovery []string    `json:"missingDiscovery,omitempty"`
	MissingSelling   []string    `json:"missingSelling,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file|->",
	Short: "Validate a lead payload and report its funnel stage",
	Args:  cobra.ExactArgs(1),
	// No config or store is needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")

		raw, err := readPayload(cmd, args[0])
		if err != nil {
			return err
		}

		report, err := classifyPayload(raw)
		if err != nil {
			return err
		}
		return writeStructured(cmd.OutOrStdout(), format, report)
	},
}

func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		return raw, eris.Wrap(err, "classify: read stdin")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read %s", path)
	}
	return raw, nil
}

func classifyPayload(raw []byte) (*classification, error) {
	var p model.LeadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrap(err, "classify: decode payload")
	}

	issues := validate.Lead(&p)
	return &classification{
		Stage:            funnel.Classify(&p),
		Valid:            len(issues) == 0,
		Issues:           issues,
		MissingDiscovery: funnel.MissingDiscovery(&p),
		MissingSelling:   funnel.MissingSelling(&p),
	}, nil
}

func init() {
	classifyCmd.Flags().StringP("output", "o", formatJSON, "output format: json or yaml")
	rootCmd.AddCommand(classifyCmd)
}
