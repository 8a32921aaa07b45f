package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"mangareader/internal/pages"
	"mangareader/internal/scramble"
)

// batchInput is the page list format produced by reader API scrapers.
type batchInput struct {
	GridSize     int      `json:"grid_size"`
	ScrambleSeed int64    `json:"scramble_seed"`
	PageList     []string `json:"page_list"`
}

type tileFlags struct {
	grid   int
	seed   int64
	ratio  float64
	output string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "descramble",
		Short:        "Restore or produce tile-scrambled manga pages",
		SilenceUsage: true,
	}
	root.AddCommand(newFileCmd(), newScrambleCmd(), newBatchCmd(), newPermCmd())
	return root
}

func addTileFlags(cmd *cobra.Command, f *tileFlags) {
	cmd.Flags().IntVar(&f.grid, "grid", 4, "tiles per side")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "scramble seed (wrapped to 32 bits)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file")
	_ = cmd.MarkFlagRequired("seed")
}

func newFileCmd() *cobra.Command {
	var f tileFlags
	cmd := &cobra.Command{
		Use:   "file <input>",
		Short: "Descramble a local image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remapFile(args[0], f, scramble.Descramble)
		},
	}
	addTileFlags(cmd, &f)
	cmd.Flags().Float64Var(&f.ratio, "ratio", 1, "output pixel ratio")
	return cmd
}

func newScrambleCmd() *cobra.Command {
	var f tileFlags
	cmd := &cobra.Command{
		Use:   "scramble <input>",
		Short: "Scramble a local image, for fixtures and uploads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ratio = 1
			return remapFile(args[0], f, scramble.Scramble)
		},
	}
	addTileFlags(cmd, &f)
	return cmd
}

func newPermCmd() *cobra.Command {
	var tiles int
	var seed int64
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Print the tile permutation and its inverse for a seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			perm := scramble.GeneratePermutation(tiles, int32(seed))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "perm: %v\n", perm)
			fmt.Fprintf(out, "inv:  %v\n", scramble.InvertPermutation(perm))
			return nil
		},
	}
	cmd.Flags().IntVar(&tiles, "tiles", 16, "number of tiles")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed (wrapped to 32 bits)")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var jobs int
	var outDir string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "batch <json>",
		Short: "Download and descramble every page in a page list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read page list: %w", err)
			}
			var in batchInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("parse page list: %w", err)
			}
			if in.GridSize == 0 {
				in.GridSize = 4
			}
			svc := pages.NewService(nil, pages.Options{OriginTimeout: timeout})
			return runBatch(cmd.Context(), svc, in, outDir, jobs)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "concurrent downloads")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per page download timeout")
	return cmd
}

func runBatch(ctx context.Context, svc *pages.Service, in batchInput, outDir string, jobs int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = 1
	}
	log.Printf("seed %d, grid %d, %d pages", in.ScrambleSeed, in.GridSize, len(in.PageList))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, url := range in.PageList {
		i, url := i, url
		g.Go(func() error {
			img, _, err := svc.Fetch(gctx, strings.TrimSpace(url))
			if err != nil {
				return fmt.Errorf("[%3d] %w", i+1, err)
			}
			out, err := svc.Descramble(gctx, img, in.GridSize, float64(in.ScrambleSeed), 1)
			if err != nil {
				return fmt.Errorf("[%3d] %w", i+1, err)
			}
			path := filepath.Join(outDir, fmt.Sprintf("out_%03d.jpg", i+1))
			if err := writeJPEG(path, out); err != nil {
				return fmt.Errorf("[%3d] %w", i+1, err)
			}
			log.Printf("[%3d] saved %s", i+1, path)
			return nil
		})
	}
	return g.Wait()
}

func remapFile(input string, f tileFlags, remap func(image.Image, scramble.Surface, int, float64) bool) error {
	file, err := os.Open(input)
	if err != nil {
		return err
	}
	defer file.Close()
	src, _, err := image.Decode(file)
	if err != nil {
		return fmt.Errorf("decode %s: %w", input, err)
	}
	canvas := scramble.NewCanvas(f.ratio)
	if !remap(src, canvas, f.grid, float64(f.seed)) {
		return fmt.Errorf("%s: nothing to do for grid %d on a %dx%d image", input, f.grid, src.Bounds().Dx(), src.Bounds().Dy())
	}
	output := f.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_out.png"
	}
	return writeImage(output, canvas.Image())
}

func writeImage(path string, img image.Image) error {
	if strings.EqualFold(filepath.Ext(path), ".jpg") || strings.EqualFold(filepath.Ext(path), ".jpeg") {
		return writeJPEG(path, img)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pages.Encode(file, img, pages.FormatPNG, 0); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeJPEG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 95}); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
