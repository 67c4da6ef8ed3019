package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/export"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/handlers"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services"
	sqlvalidator "github.com/ekaya-inc/ekaya-datagen/pkg/sql"
)

// stdoutPath selects standard output instead of a file.
const stdoutPath = "-"

type outputFlags struct {
	path   string
	format string
}

func (o *outputFlags) register(cmd *cobra.Command, pathHelp string) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "", pathHelp)
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format: json, csv or parquet (default: from the file extension)")
}

// resolve fills unset flags from the config. The format follows the file
// extension unless given explicitly.
func (o outputFlags) resolve(defPath, defFormat string) (string, string) {
	path := o.path
	if path == "" {
		path = defPath
	}
	format := o.format
	if format == "" {
		format = export.FormatFromPath(path, defFormat)
	}
	return path, format
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a validation dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			path, format := out.resolve(a.cfg.Output.Path, a.cfg.Output.Format)

			schema, err := a.loadSchema(ctx)
			if err != nil {
				return err
			}
			seeds, err := a.loadSeeds()
			if err != nil {
				return err
			}

			gen, closeGen, err := a.newGenerator()
			if err != nil {
				return err
			}
			defer closeGen()

			resultCache, err := cache.NewResultCache(a.cfg.Cache.Capacity, a.logger)
			if err != nil {
				return err
			}
			m := metrics.New()
			progress := handlers.NewProgress("generate")
			defer a.serveHTTP(m, gen.ModelID(), progress)()

			svc, err := services.NewDatasetGenerationService(gen, resultCache, a.cfg.GenerationOptions(), a.cfg.Validation, m, a.logger)
			if err != nil {
				return err
			}

			result, runErr := svc.Generate(ctx, schema, seeds, func(completed, total int) {
				progress.Update(completed, total)
				a.logger.Debug("Progress", zap.Int("completed", completed), zap.Int("total", total))
			})
			progress.Finish()
			if result == nil {
				return runErr
			}

			// a partial dataset is still written when the run was aborted
			if err := writeOutput(cmd.OutOrStdout(), path, func(w io.Writer) error {
				return export.Write(w, format, result)
			}, func() error {
				return export.WriteFile(path, format, result)
			}); err != nil {
				return err
			}

			s := result.Summary
			a.logger.Info("Dataset written",
				zap.String("path", path),
				zap.String("format", format),
				zap.String("status", string(s.Status)),
				zap.Any("accepted", s.Accepted),
				zap.Any("shortfall", s.Shortfall()))
			return runErr
		},
	}
	out.register(cmd, `output file, "-" for stdout (default: output.path)`)
	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dataset]",
		Short: "Check the configuration, the schema and the SQL of a dataset or the seed file",
		Long: `validate loads the configuration and the schema and checks every query of the
given dataset file against the schema. Without a dataset the seed examples are
checked instead. It exits non-zero when any query is invalid. No language model
is contacted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			schema, err := a.loadSchema(cmd.Context())
			if err != nil {
				return err
			}

			var items []models.GeneratedItem
			if len(args) == 1 {
				if items, err = export.ReadItemsFile(args[0]); err != nil {
					return err
				}
			} else {
				seeds, err := a.loadSeeds()
				if err != nil {
					return err
				}
				items = seedItems(seeds)
			}

			v := sqlvalidator.NewValidator(schema, a.cfg.Validation, a.logger)
			invalid := reportValidation(cmd.OutOrStdout(), v, items)
			if invalid > 0 {
				return fmt.Errorf("%d of %d queries are invalid", invalid, len(items))
			}
			return nil
		},
	}
	return cmd
}

func newAnswerCmd(configPath *string) *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "answer <dataset>",
		Short: "Fill in missing answers of an existing dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			input := args[0]
			path, format := out.resolve(input, export.FormatFromPath(input, export.FormatJSON))

			items, err := export.ReadItemsFile(input)
			if err != nil {
				return err
			}
			schema, err := a.loadSchema(ctx)
			if err != nil {
				return err
			}

			gen, closeGen, err := a.newGenerator()
			if err != nil {
				return err
			}
			defer closeGen()

			resultCache, err := cache.NewResultCache(a.cfg.Cache.Capacity, a.logger)
			if err != nil {
				return err
			}
			m := metrics.New()
			progress := handlers.NewProgress("answer")
			defer a.serveHTTP(m, gen.ModelID(), progress)()

			svc, err := services.NewAnswerService(gen, resultCache, a.cfg.GenerationOptions(), m, a.logger)
			if err != nil {
				return err
			}
			result, err := svc.BackfillAnswers(ctx, schema, items, progress.Update)
			progress.Finish()
			if err != nil {
				return err
			}

			if err := writeOutput(cmd.OutOrStdout(), path, func(w io.Writer) error {
				return export.WriteItems(w, format, result.Items)
			}, func() error {
				return export.WriteItemsFile(path, format, result.Items)
			}); err != nil {
				return err
			}

			a.logger.Info("Answers written",
				zap.String("path", path),
				zap.Int("filled", result.Filled),
				zap.Int("failed", result.Failed))
			return nil
		},
	}
	out.register(cmd, `output file, "-" for stdout (default: overwrite the input)`)
	return cmd
}

func writeOutput(stdout io.Writer, path string, toWriter func(io.Writer) error, toFile func() error) error {
	if path == stdoutPath {
		return toWriter(stdout)
	}
	return toFile()
}

func seedItems(seeds []models.SeedExample) []models.GeneratedItem {
	items := make([]models.GeneratedItem, len(seeds))
	for i, s := range seeds {
		items[i] = models.GeneratedItem{
			Question:   s.Question,
			Answer:     s.Answer,
			SQL:        s.SQL,
			Difficulty: s.Difficulty,
			Slot:       i,
		}
	}
	return items
}

// reportValidation prints one line per item plus its errors and returns the
// number of invalid queries.
func reportValidation(w io.Writer, v *sqlvalidator.Validator, items []models.GeneratedItem) int {
	invalid := 0
	for _, item := range items {
		report := v.Validate(item.SQL)
		status := "ok"
		if !report.IsValid {
			status = "INVALID"
			invalid++
		}
		fmt.Fprintf(w, "%-7s %s#%d  %s\n", status, item.Difficulty, item.Slot, item.Question)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "        - %s\n", e)
		}
	}
	fmt.Fprintf(w, "%d queries checked, %d invalid\n", len(items), invalid)
	return invalid
}
