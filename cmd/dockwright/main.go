// Command dockwright inspects and rewrites Dockerfiles using the parsing
// library. It is an example consumer, not part of the library surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dockwright/dockwright/pkg/dockerfile"
)

var (
	// Version information (set by build)
	version = "dev"
	commit  = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dockwright",
	Short: "Inspect and rewrite Dockerfiles",
	Long: `Dockwright parses Dockerfiles into typed instructions with byte-exact
source spans, prints their build stages, and splices targeted edits back
into the file without touching unrelated formatting.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		logrus.WithFields(logrus.Fields{
			"version": version,
			"commit":  commit,
		}).Debug("starting dockwright")
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages FILE...",
	Short: "Print the build stages of one or more Dockerfiles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStages,
}

var dumpCmd = &cobra.Command{
	Use:   "dump FILE...",
	Short: "Dump parsed Dockerfiles as JSON or YAML",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDump,
}

var spliceCmd = &cobra.Command{
	Use:   "splice FILE",
	Short: "Replace the base image of a build stage",
	Long: `Splice rewrites the image reference of one FROM instruction, leaving
every other byte of the file untouched. The result is printed to stdout
unless -w is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplice,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dockwright.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	dumpCmd.Flags().StringP("output", "o", "json", "output format (json or yaml)")

	spliceCmd.Flags().String("stage", "0", "stage to rewrite, by index or alias")
	spliceCmd.Flags().String("image", "", "replacement image reference")
	spliceCmd.Flags().BoolP("write", "w", false, "rewrite the file in place")
	spliceCmd.MarkFlagRequired("image")

	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(spliceCmd)

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output", dumpCmd.Flags().Lookup("output"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dockwright")
	}

	viper.SetEnvPrefix("DOCKWRIGHT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("config", viper.ConfigFileUsed()).Debug("loaded config file")
	}
}

func parseFile(path string) (*dockerfile.Dockerfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	d, err := dockerfile.ParseBytes(content)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return d, nil
}

// parseAll parses the given files concurrently, preserving input order.
func parseAll(ctx context.Context, paths []string) ([]*dockerfile.Dockerfile, error) {
	files := make([]*dockerfile.Dockerfile, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)

	var mu sync.Mutex
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			d, err := parseFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			files[i] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func runStages(cmd *cobra.Command, args []string) error {
	files, err := parseAll(cmd.Context(), args)
	if err != nil {
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	name := color.New(color.FgGreen)
	dim := color.New(color.Faint)

	for i, d := range files {
		if len(args) > 1 {
			header.Fprintf(cmd.OutOrStdout(), "%s\n", args[i])
		}
		for _, stage := range d.Stages().Stages {
			label := fmt.Sprintf("#%d", stage.Index)
			if stage.Name != "" {
				label += " (" + stage.Name + ")"
			}
			name.Fprintf(cmd.OutOrStdout(), "stage %s", label)
			dim.Fprintf(cmd.OutOrStdout(), "  from %s, root %s\n", stage.Parent, stage.Root)

			for _, ins := range stage.Instructions {
				pos := d.Position(ins.GetSpan().Start)
				fmt.Fprintf(cmd.OutOrStdout(), "  %4d  %s\n", pos.Line, ins)
			}
		}
	}
	return nil
}

type fileReport struct {
	File       string                       `json:"file" yaml:"file"`
	Escape     string                       `json:"escape" yaml:"escape"`
	GlobalArgs []*dockerfile.ArgInstruction `json:"global_args,omitempty" yaml:"global_args,omitempty"`
	Stages     []*dockerfile.Stage          `json:"stages" yaml:"stages"`
}

func runDump(cmd *cobra.Command, args []string) error {
	files, err := parseAll(cmd.Context(), args)
	if err != nil {
		return err
	}

	reports := make([]fileReport, len(files))
	for i, d := range files {
		reports[i] = fileReport{
			File:       args[i],
			Escape:     string(d.Escape),
			GlobalArgs: d.GlobalArgs,
			Stages:     d.Stages().Stages,
		}
	}

	switch format := viper.GetString("output"); format {
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(reports)
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func runSplice(cmd *cobra.Command, args []string) error {
	stageRef, _ := cmd.Flags().GetString("stage")
	image, _ := cmd.Flags().GetString("image")
	write, _ := cmd.Flags().GetBool("write")

	d, err := parseFile(args[0])
	if err != nil {
		return err
	}

	stage := d.Stages().Get(stageRef)
	if stage == nil {
		return errors.Errorf("no stage %q in %s", stageRef, args[0])
	}

	logrus.WithFields(logrus.Fields{
		"stage": stage.Index,
		"old":   stage.From.Image.Value,
		"new":   image,
	}).Debug("splicing image reference")

	out, _, err := dockerfile.Splice(d.Content, []dockerfile.Edit{
		{Span: stage.From.Image.Span, Text: image},
	})
	if err != nil {
		return err
	}

	// the result must still parse before we hand it back
	if _, err := dockerfile.Parse(out); err != nil {
		return errors.Wrap(err, "splice produced an unparseable file")
	}

	if write {
		info, err := os.Stat(args[0])
		if err != nil {
			return errors.Wrap(err, "stat")
		}
		return errors.Wrap(os.WriteFile(args[0], []byte(out), info.Mode()), "writing file")
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logrus.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		if !strings.Contains(err.Error(), "unknown command") {
			logrus.Error(err)
		}
		os.Exit(1)
	}
}
