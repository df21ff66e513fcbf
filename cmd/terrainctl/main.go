// Command terrainctl is the CLI entrypoint for the acquisition and
// processing pipelines (spec §4.3, §4.7), replacing the teacher's Wails
// desktop bindings (deleted per DESIGN.md — "no UI" is a spec Non-goal).
// Grounded on spatialmodel-inmap's cobra-command idiom and
// jcom-dev-zmanim/api/cmd/import-elevation/main.go's flag-parsing style.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"terrain-pipeline/internal/cache"
	"terrain-pipeline/internal/config"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/imagery"
	"terrain-pipeline/internal/orchestrator"
	"terrain-pipeline/internal/pipeline"
	"terrain-pipeline/internal/region"
	"terrain-pipeline/internal/router"
	"terrain-pipeline/internal/sources"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(s config.Settings) *slog.Logger {
	var handler slog.Handler
	if s.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return slog.New(handler)
}

func buildRegistry(s config.Settings) router.Registry {
	return router.Registry{
		"opentopography":       sources.NewOpenTopography(s.OpenTopographyAPIKey, "COP30", s.CacheDir),
		"brazilian_elevation":  sources.NewBrazilianElevation(s.OpenTopographyAPIKey, s.CacheDir),
		"usgs_3dep":            sources.NewUSGS3DEP(s.CacheDir),
		"copernicus_sentinel2": sources.NewCopernicusSentinel2(s.CDSEToken, s.CDSEClientID, s.CDSEClientSecret, s.CacheDir),
		"ornl_daac":            sources.NewORNLDAAC(s.EarthdataUsername, s.CacheDir),
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "terrainctl",
		Short: "Acquire and process terrain-analysis raster products",
	}
	root.AddCommand(newAcquireCmd(), newRegionsCmd(), newCacheCmd())
	return root
}

func newAcquireCmd() *cobra.Command {
	var lat, lng, buffer float64
	var source string
	var dataType string
	var ndvi bool

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire a raster for a geographic point and buffer (spec §4.3)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := config.Load()
			logger := newLogger(s)

			c := cache.New(s.CacheDir, time.Duration(s.CacheTTLHours)*time.Hour)
			store := region.New(s.OutputDir, s.InputDir)
			registry := buildRegistry(s)
			r := router.New(registry)

			trigger := func(ctx context.Context, slug, rasterPath string, sink events.Sink) {
				result := pipeline.RunElevation(ctx, store, slug, rasterPath, sink, s)
				logger.Info("processing pipeline finished", "region", slug, "successful", result.Successful, "total", result.Total)
			}

			o := orchestrator.New(r, c, store, int64(s.MaxConcurrentAcquisitions), trigger)
			o.SetConversionTrigger(imagery.Trigger(store))

			sink := events.NewChanSink(64)
			go func() {
				for e := range sink.Events() {
					b, _ := json.Marshal(e)
					fmt.Fprintln(cmd.OutOrStdout(), string(b))
				}
			}()

			var override []string
			if source != "" {
				override = []string{source}
			}

			result := o.Acquire(cmd.Context(), lat, lng, buffer, domain.DataType(dataType), domain.ResolutionMedium, ndvi, override, registry, sink)
			sink.Close()

			if !result.Success {
				return fmt.Errorf("acquisition failed: %v", result.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "acquired %s into region %s\n", result.FilePath, result.RegionSlug)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.Flags().Float64Var(&buffer, "buffer", 1.0, "buffer radius in km")
	cmd.Flags().StringVar(&source, "source", "", "force a specific source adapter")
	cmd.Flags().StringVar(&dataType, "data-type", string(domain.DataTypeElevation), "data type to acquire")
	cmd.Flags().BoolVar(&ndvi, "ndvi", false, "enable NDVI derivation for Sentinel-2 imagery acquisitions")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")
	return cmd
}

func newRegionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "regions", Short: "Inspect and manage regions"}
	cmd.AddCommand(newRegionsListCmd(), newRegionsDeleteCmd())
	return cmd
}

func newRegionsListCmd() *cobra.Command {
	var populatedOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List regions (spec §4.4)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := config.Load()
			store := region.New(s.OutputDir, s.InputDir)
			regions, err := store.List(region.ListFilter{PopulatedOnly: populatedOnly})
			if err != nil {
				return err
			}
			for _, r := range regions {
				fmt.Fprintln(cmd.OutOrStdout(), r.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&populatedOnly, "populated-only", false, "only regions with a populated lidar/ subtree")
	return cmd
}

func newRegionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a region (spec §4.4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := config.Load()
			store := region.New(s.OutputDir, s.InputDir)
			return store.Delete(args[0])
		},
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage the content-addressed cache"}
	cmd.AddCommand(newCacheGCCmd())
	return cmd
}

func newCacheGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Evict cache entries older than the configured max age (spec §4.5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := config.Load()
			c := cache.New(s.CacheDir, time.Duration(s.CacheTTLHours)*time.Hour)
			evicted, err := c.GC(time.Duration(s.CacheMaxAgeDays) * 24 * time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %d entries\n", evicted)
			return nil
		},
	}
}
