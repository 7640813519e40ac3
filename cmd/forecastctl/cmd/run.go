package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/config"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/dataset"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/operations"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/pipeline"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/render"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/services"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/validation"
	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// maxInputBytes matches the web upload limit
const maxInputBytes = 1 << 20

type runOptions struct {
	text    string
	file    string
	sample  string
	pngOut  string
	xlsxOut string
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit the series and wait for the forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runForecast(ctx, cmd, v, opts)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "series as comma separated numbers")
	cmd.Flags().StringVar(&opts.file, "file", "", "file holding the series")
	cmd.Flags().StringVar(&opts.sample, "sample", "", "built-in sample set (sine, cosine, linear)")
	cmd.Flags().StringVar(&opts.pngOut, "png", "", "write the chart as PNG to this path")
	cmd.Flags().StringVar(&opts.xlsxOut, "xlsx", "", "write the series as a workbook to this path")
	cmd.MarkFlagsMutuallyExclusive("text", "file", "sample")

	return cmd
}

// jobWaiter signals the first idle or errored snapshot after submission
type jobWaiter struct {
	done chan domain.StatusSnapshot
}

func (w *jobWaiter) OnEvent(ev operations.Event) {
	if ev.Snapshot.Busy || ev.Kind == operations.EventData {
		return
	}
	select {
	case w.done <- ev.Snapshot:
	default:
	}
}

func runForecast(ctx context.Context, cmd *cobra.Command, v *viper.Viper, opts *runOptions) error {
	logger := cliLogger(cmd, v)

	if err := checkPaths(validation.NewPathValidator(logger), opts); err != nil {
		return err
	}

	transport, err := pipeline.NewHTTPTransport(pipeline.Options{
		Endpoint: v.GetString(keyEndpoint),
		Timeout:  durationOr(v, keyRequestTimeout, config.DefaultRequestTimeout),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	store := dataset.NewStore(dataset.DefaultSeries())
	jobConfig := operations.NewConfigBuilder().
		WithStartAction(v.GetString(keyStartAction)).
		WithPollInterval(durationOr(v, keyPollInterval, config.DefaultPollInterval)).
		WithRequestTimeout(durationOr(v, keyRequestTimeout, config.DefaultRequestTimeout)).
		Build()

	machine := operations.NewMachine(transport, store, jobConfig, operations.WithLogger(logger))
	defer machine.Close()

	renderer := render.NewRenderer(store, config.DefaultChartWidth, config.DefaultChartHeight, logger)
	machine.AddListener(renderer)

	forecast := services.NewForecastService(machine, renderer, logger)
	if err := loadSeries(ctx, forecast, opts); err != nil {
		return err
	}

	waiter := &jobWaiter{done: make(chan domain.StatusSnapshot, 1)}
	forecast.Subscribe(waiter)

	submitted, err := forecast.Submit(ctx)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	cmd.Printf("Submitted %d values to %s (job %s)\n", submitted.SeriesLength, transport.Endpoint(), submitted.JobID)

	var final domain.StatusSnapshot
	select {
	case final = <-waiter.done:
	case <-ctx.Done():
		_, _ = forecast.Cancel(context.Background())
		return ctx.Err()
	}

	if final.State == string(operations.StateErrored) {
		if final.Warning != "" {
			return errors.New(final.Warning)
		}
		return fmt.Errorf("forecast failed: %s", final.ErrorType)
	}
	cmd.Printf("%s Appended %d values, series length %d.\n", final.Message, final.AppendedRange, final.SeriesLength)

	return writeOutputs(ctx, cmd, forecast, opts)
}

// checkPaths fails fast so a finished job is never lost to a bad output path
func checkPaths(paths *validation.PathValidator, opts *runOptions) error {
	if opts.file != "" {
		if err := paths.ValidateInputFile(opts.file, maxInputBytes); err != nil {
			return err
		}
	}
	if opts.pngOut != "" {
		if err := paths.ValidateOutputFile(opts.pngOut, ".png"); err != nil {
			return err
		}
	}
	if opts.xlsxOut != "" {
		if err := paths.ValidateOutputFile(opts.xlsxOut, ".xlsx"); err != nil {
			return err
		}
	}
	return nil
}

func loadSeries(ctx context.Context, forecast *services.ForecastService, opts *runOptions) error {
	switch {
	case opts.sample != "":
		_, err := forecast.ChangeSampleSet(ctx, opts.sample)
		return err
	case opts.text != "":
		_, err := forecast.ChangeFromText(ctx, opts.text)
		return err
	case opts.file != "":
		f, err := os.Open(opts.file)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = forecast.ChangeFromFile(ctx, f)
		return err
	}
	return nil
}

func writeOutputs(ctx context.Context, cmd *cobra.Command, forecast *services.ForecastService, opts *runOptions) error {
	if opts.pngOut != "" {
		png, err := forecast.ChartPNG(ctx)
		if err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		if err := os.WriteFile(opts.pngOut, png, 0o644); err != nil {
			return err
		}
		cmd.Printf("Chart written to %s\n", opts.pngOut)
	}

	if opts.xlsxOut != "" {
		f, err := os.Create(opts.xlsxOut)
		if err != nil {
			return err
		}
		if err := forecast.WriteXLSX(ctx, f); err != nil {
			f.Close()
			return fmt.Errorf("export workbook: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		cmd.Printf("Workbook written to %s\n", opts.xlsxOut)
	}
	return nil
}
