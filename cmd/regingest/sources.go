package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
)

func sourcesCmd() *cobra.Command {
	var (
		jurisdiction string
		tag          string
	)

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the declared sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcesDir, _ := cmd.Flags().GetString("sources")
			reg, err := registry.Load(sourcesDir)
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}

			defs := reg.Filter(jurisdiction, tag)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tFREQUENCY\tJURISDICTION\tREGION\tPRIORITY\tACTIVE\tENDPOINTS")
			for _, d := range defs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%v\t%d\n",
					d.ID, d.Name, d.SourceType, d.FetchFrequency,
					d.Jurisdiction, d.Region, d.Priority, d.IsActive, len(d.Endpoints))
			}
			tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d sources shown\n", len(defs), reg.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Only sources of this jurisdiction")
	cmd.Flags().StringVar(&tag, "tag", "", "Only sources carrying this tag")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the source files without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcesDir, _ := cmd.Flags().GetString("sources")
			reg, err := registry.Load(sourcesDir)
			if err != nil {
				return err
			}
			regions := map[string]int{}
			for _, d := range reg.All() {
				regions[d.Region]++
			}
			var parts []string
			for region, n := range regions {
				parts = append(parts, fmt.Sprintf("%s: %d", region, n))
			}
			sort.Strings(parts)
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d sources (%s)\n", reg.Len(), strings.Join(parts, ", "))
			return nil
		},
	}
}
