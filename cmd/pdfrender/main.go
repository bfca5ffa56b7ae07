// Command pdfrender rasterizes one page of a PDF file to PNG, using the
// same decoder as the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"mobile-pdf/internal/decoder"
	"mobile-pdf/internal/logging"
	"mobile-pdf/internal/pdfdoc"
	"mobile-pdf/internal/version"

	"github.com/gogpu/gg"
)

func main() {
	input := flag.String("i", "", "Path to PDF file")
	page := flag.Int("p", 1, "Page number (1-based)")
	scale := flag.Float64("s", 2, "Pixels per PDF point")
	width := flag.Int("w", 0, "Target width in pixels (overrides -s)")
	output := flag.String("o", "page.png", "Output PNG path")
	verbose := flag.Bool("v", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("pdfrender", version.String())
		return
	}
	if *input == "" {
		fmt.Println("Usage: pdfrender -i <file.pdf> [-p page] [-s scale | -w width] [-o out.png]")
		os.Exit(1)
	}
	if *verbose {
		logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *input, *page, *scale, *width, *output); err != nil {
		fmt.Fprintf(os.Stderr, "pdfrender: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input string, index int, scale float64, width int, output string) error {
	src, err := decoder.FromFile(input)
	if err != nil {
		return err
	}
	doc, err := pdfdoc.New().Open(ctx, src)
	if err != nil {
		return err
	}
	defer doc.Close()

	if index < 1 || index > doc.PageCount() {
		return fmt.Errorf("page %d out of range (document has %d)", index, doc.PageCount())
	}
	p, err := doc.Page(ctx, index)
	if err != nil {
		return err
	}
	defer p.Release()

	if width > 0 {
		natural := p.NaturalSize(1)
		if natural.Width <= 0 {
			return fmt.Errorf("page %d has no width", index)
		}
		scale = float64(width) / natural.Width
	}
	size := p.NaturalSize(scale)
	dc := gg.NewContext(max(1, int(math.Ceil(size.Width))), max(1, int(math.Ceil(size.Height))))
	defer dc.Close()

	if err := p.Render(ctx, dc, scale); err != nil {
		return &decoder.RenderError{Page: index, Err: err}
	}
	if err := dc.SavePNG(output); err != nil {
		return err
	}
	fmt.Printf("Page %d of %s: %dx%d px -> %s\n", index, src.Name, dc.Width(), dc.Height(), output)
	return nil
}
