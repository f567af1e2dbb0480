package main

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"blockrand/adapters/excel"
	"blockrand/app"
	"blockrand/domain/allocation"
	"blockrand/internal/config"
	"blockrand/internal/container"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"
	"blockrand/internal/testkit"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newAssignCmd() *cobra.Command {
	var req app.EnrollRequest
	var covariates []string

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign one subject to a group",
		Long: `Assign one subject and append the result to the history.

Example: blockrand assign --id S001 --gender Female --age 61 --cov site=North`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			req.Covariates, err = parseCovariates(covariates)
			if err != nil {
				return err
			}
			result, err := c.Enrollment.Enroll(ctx, req)
			if result != nil {
				fmt.Println(renderResult(*result))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&req.SubjectID, "id", "", "Subject ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Subject name")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "Male or Female (required)")
	cmd.Flags().IntVar(&req.Age, "age", -1, "Age in years (required)")
	cmd.Flags().StringArrayVar(&covariates, "cov", nil, "Extra stratum level as name=level, repeatable")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("gender")
	cmd.MarkFlagRequired("age")

	return cmd
}

func newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll",
		Short: "Enroll subjects interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			for {
				req, err := promptSubject(c.Stratifier)
				if err != nil {
					return err
				}
				result, err := c.Enrollment.Enroll(ctx, req)
				switch {
				case result != nil:
					fmt.Println(renderResult(*result))
					if err != nil {
						fmt.Println(Styles.Warning.Render("Not saved: " + err.Error()))
					}
				case err != nil:
					fmt.Println(Styles.Error.Render(err.Error()))
				}

				more := true
				if err := huh.NewConfirm().Title("Enroll another subject?").Value(&more).Run(); err != nil {
					return err
				}
				if !more {
					fmt.Println(renderBalance(c.Balance.Report()))
					return nil
				}
			}
		},
	}
}

// promptSubject shows the enrollment form
func promptSubject(stratifier *randomization.Stratifier) (app.EnrollRequest, error) {
	var (
		req    app.EnrollRequest
		ageStr string
	)
	req.Gender = string(allocation.Male)

	fields := []huh.Field{
		huh.NewInput().Title("Subject ID").Value(&req.SubjectID).Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("subject ID is required")
			}
			return nil
		}),
		huh.NewInput().Title("Name").Value(&req.Name),
		huh.NewInput().Title("Age").Value(&ageStr).Validate(func(s string) error {
			age, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || age < 0 {
				return fmt.Errorf("please enter a valid age")
			}
			return nil
		}),
		huh.NewSelect[string]().Title("Gender").
			Options(huh.NewOptions(string(allocation.Male), string(allocation.Female))...).
			Value(&req.Gender),
	}

	covValues := make(map[string]*string)
	for _, d := range stratifier.Dimensions() {
		cov, ok := d.(*randomization.CovariateDimension)
		if !ok {
			continue
		}
		value := new(string)
		covValues[cov.Name()] = value
		fields = append(fields, huh.NewSelect[string]().Title(cov.Name()).Options(huh.NewOptions(cov.Levels()...)...).Value(value))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return req, err
	}

	req.Age, _ = strconv.Atoi(strings.TrimSpace(ageStr))
	if len(covValues) > 0 {
		req.Covariates = make(map[string]string, len(covValues))
		for name, v := range covValues {
			req.Covariates[name] = *v
		}
	}
	return req, nil
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show per-stratum and global arm counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			fmt.Println(renderBalance(c.Balance.Report()))
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded assignments, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			records := c.Enrollment.History()
			if limit > 0 && len(records) > limit {
				records = records[len(records)-limit:]
			}
			fmt.Println(renderHistory(records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "last", 0, "Only show the most recent N assignments")
	return cmd
}

func newExportCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rewrite the spreadsheet mirror from the history",
		Long: `Rewrite the spreadsheet mirror from the history, and optionally write
a standalone CSV copy (useful with the postgres backend).

Example: blockrand export --csv backup.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			written, err := exportHistory(ctx, c, csvPath)
			if err != nil {
				return err
			}
			fmt.Println(Styles.Success.Render(fmt.Sprintf("Exported %d assignments to %s", len(c.Enrollment.History()), strings.Join(written, ", "))))
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Also write a full CSV copy of the history to this path")
	return cmd
}

// exportHistory refreshes the configured mirror and writes the optional CSV
// copy, returning the paths written
func exportHistory(ctx context.Context, c *container.Container, csvPath string) ([]string, error) {
	var written []string
	if csvPath != "" {
		if err := excel.WriteCSV(csvPath, c.Enrollment.History()); err != nil {
			return nil, errors.Wrap(err, "failed to write CSV copy")
		}
		written = append(written, csvPath)
	}
	if csvPath == "" || c.Exporter != nil {
		if err := c.Enrollment.Export(ctx); err != nil {
			return written, err
		}
		written = append(written, c.Config.Storage.HistoryXLSX)
	}
	return written, nil
}

func newSimulateCmd() *cobra.Command {
	var (
		subjects   int
		seed       int64
		femaleRate float64
		blockSize  int
		noBias     bool
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Allocate a synthetic population in memory and report the balance",
		Long: `Allocate a synthetic population without touching the history store.

Example: blockrand simulate --subjects 500 --seed 7 --block-size 6 --priority-mode weighted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := simulate(cmd.Context(), simulation{
				Subjects:   subjects,
				Seed:       seed,
				FemaleRate: femaleRate,
				Randomization: config.RandomizationConfig{
					BlockSize:    blockSize,
					Seed:         seed,
					BiasEnabled:  !noBias,
					PriorityMode: mode,
				},
			})
			if err != nil {
				return err
			}
			fmt.Println(renderBalance(report))
			return nil
		},
	}

	cmd.Flags().IntVar(&subjects, "subjects", 200, "Number of synthetic subjects")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for population and allocation")
	cmd.Flags().Float64Var(&femaleRate, "female-rate", 0.55, "Share of female subjects")
	cmd.Flags().IntVar(&blockSize, "block-size", 4, "Block size")
	cmd.Flags().BoolVar(&noBias, "no-bias", false, "Disable the rebalancing heuristic")
	cmd.Flags().StringVar(&mode, "priority-mode", "neutral", "neutral or weighted")

	return cmd
}

type simulation struct {
	Subjects      int
	Seed          int64
	FemaleRate    float64
	Randomization config.RandomizationConfig
}

// simulate runs a whole population through an in-memory stack
func simulate(ctx context.Context, sim simulation) (app.BalanceReport, error) {
	engineConfig, err := container.EngineConfig(sim.Randomization)
	if err != nil {
		return app.BalanceReport{}, errors.Wrap(err, "invalid simulation settings")
	}
	stratifier, err := container.BuildStratifier(sim.Randomization.ExtraStrata)
	if err != nil {
		return app.BalanceReport{}, err
	}

	kit := testkit.NewTestKit()
	var stream *rand.Rand
	if stream, err = kit.RNGAdapter().SeededStream(ctx, "simulate", sim.Seed); err != nil {
		return app.BalanceReport{}, err
	}
	engine, err := randomization.NewEngine(engineConfig, stratifier, nil, stream)
	if err != nil {
		return app.BalanceReport{}, err
	}

	genConfig := testkit.DefaultEnrollmentConfig()
	genConfig.SubjectCount = sim.Subjects
	genConfig.FemaleRate = sim.FemaleRate
	genConfig.Seed = sim.Seed
	population, err := testkit.NewEnrollmentGenerator(genConfig).Generate()
	if err != nil {
		return app.BalanceReport{}, err
	}

	repo := kit.HistoryRepository()
	svc := app.NewEnrollmentService(engine, repo, nil)
	for _, subject := range population {
		if _, err := svc.EnrollSubject(ctx, subject); err != nil {
			return app.BalanceReport{}, err
		}
	}
	return app.NewBalanceReporter(engine).Report(), nil
}

// parseCovariates turns ["site=North"] into a map
func parseCovariates(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, level, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("covariate %q must look like name=level", p))
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(level)
	}
	return out, nil
}
