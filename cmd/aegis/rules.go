package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/detector"
)

var rulesFlags struct {
	packs   []string
	verbose bool
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate detector rules",
	Long: `Inspect the detector rule set and validate rule pack files.

Rule packs are YAML files that add patterns to the built-in categories,
typically for another language.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rule categories and patterns",
	Long: `List the detector categories with their severity, confidence and
pattern count. Packs from the config file are included; --pack adds more.

Examples:
  aegis rules list
  aegis rules list --pack packs/spanish.yaml --patterns`,
	Args: cobra.NoArgs,
	RunE: runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Validate rule pack files",
	Long: `Parse each rule pack, check its category names and compile every
pattern. All problems in a pack are reported together.

Examples:
  aegis rules validate packs/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesValidate,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesValidateCmd)

	rulesListCmd.Flags().StringSliceVar(&rulesFlags.packs, "pack", nil, "additional rule pack file (repeatable)")
	rulesListCmd.Flags().BoolVar(&rulesFlags.verbose, "patterns", false, "list individual patterns")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Detector.RulePacks = append(cfg.Detector.RulePacks, rulesFlags.packs...)

	rules, err := loadRules(cfg.Detector)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSEVERITY\tCONFIDENCE\tPATTERNS")
	for _, c := range rules.Categories() {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", c.Type, c.Severity, c.Confidence, len(c.Patterns))
		if rulesFlags.verbose {
			for _, p := range c.Patterns {
				fmt.Fprintf(tw, "  %s\t\t\t%s\n", p.Name, p.Source())
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d patterns, context keywords: %v\n", rules.PatternCount(), rules.ContextKeywords())
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		pack, err := detector.LoadRulePack(path)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			failed++
			continue
		}
		if _, err := detector.DefaultRuleSet().Extend(pack); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s %s (%d patterns)\n", path, pack.Name, pack.Version, pack.PatternCount())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d rule packs invalid", failed, len(args))
	}
	return nil
}
