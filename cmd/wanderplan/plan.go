package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/wanderplan/pkg/models"
	"github.com/pario-ai/wanderplan/pkg/planner"
)

func newPlanCmd() *cobra.Command {
	var (
		configPath string
		in         models.TripInput
		output     string
		saveDir    string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate an itinerary for one trip",
		Example: `  wanderplan plan --from "New York" --to Paris --currency USD --min 500 --max 2000
  wanderplan plan --from Delhi --to Goa --currency INR --min 20000 --max 50000 --pref Adventure --lang hi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			req, err := in.Request(models.DefaultLanguage)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rep, err := a.pipeline.Plan(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := writeReport(out, rep, output); err != nil {
				return err
			}
			if saveDir != "" {
				if err := saveArtifacts(out, saveDir, rep.Document); err != nil {
					return err
				}
			}
			if rep.Document.Status == models.DocumentError {
				return errors.New("itinerary generation failed")
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&in.Source, "from", "", "departure city")
	cmd.Flags().StringVar(&in.Destination, "to", "", "destination city")
	cmd.Flags().StringVar(&in.TravelDate, "date", "", "travel date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Currency, "currency", "USD", "ISO 4217 currency code")
	cmd.Flags().Float64Var(&in.Budget.Min, "min", 0, "minimum budget")
	cmd.Flags().Float64Var(&in.Budget.Max, "max", 0, "maximum budget")
	cmd.Flags().StringSliceVar(&in.Preferences, "pref", nil, "travel preference (repeatable)")
	cmd.Flags().StringVar(&in.Language, "lang", "", "output language code or name")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, markdown or json")
	cmd.Flags().StringVar(&saveDir, "save", "", "directory to write the text and calendar exports to")
	return cmd
}

func writeReport(w io.Writer, rep *planner.Report, output string) error {
	doc := rep.Document
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "markdown":
		if doc.Status == models.DocumentOK {
			_, err := fmt.Fprintln(w, doc.Body)
			return err
		}
	case "text":
		if doc.Status == models.DocumentOK && doc.Download != nil {
			_, err := w.Write(doc.Download.Content)
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	fmt.Fprintln(w, doc.Title)
	fmt.Fprintln(w, doc.Message)
	if doc.Diagnostic != "" {
		fmt.Fprintln(w, "Details:", doc.Diagnostic)
	}
	return nil
}

// diskName replaces path separators so city names cannot escape the save
// directory.
func diskName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

// saveArtifacts writes the document's exports into dir.
func saveArtifacts(w io.Writer, dir string, doc models.PresentationDocument) error {
	var saved []string
	for _, a := range []*models.Artifact{doc.Download, doc.Calendar} {
		if a == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(dir, diskName(a.Filename))
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("save %s: %w", a.Filename, err)
		}
		saved = append(saved, path)
	}
	if len(saved) > 0 {
		fmt.Fprintf(w, "\nSaved: %s\n", strings.Join(saved, ", "))
	}
	return nil
}
