package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"hash/fnv"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"
)

// seedassets generates a labeled PNG per product plus a matching CSV, so the
// importer can be exercised end to end without real catalog data. Some rows
// deliberately share an image file to exercise asset reuse.

const imageSize = 1600

var palette = []color.NRGBA{
	{R: 0x2F, G: 0x6F, B: 0xB8, A: 0xFF},
	{R: 0xB8, G: 0x4A, B: 0x2F, A: 0xFF},
	{R: 0x3A, G: 0x8F, B: 0x5C, A: 0xFF},
	{R: 0x7A, G: 0x4F, B: 0xA8, A: 0xFF},
	{R: 0xB8, G: 0x8A, B: 0x2F, A: 0xFF},
	{R: 0x2F, G: 0x8F, B: 0xA8, A: 0xFF},
}

func main() {
	outDir := flag.String("out", "./seed", "output directory for images and CSV")
	count := flag.Int("count", 50, "number of products to generate")
	shared := flag.Int("shared", 5, "number of trailing products that reuse the first image")
	fontPath := flag.String("font", os.Getenv("SEED_FONT"), "path to a TTF font for image labels")
	flag.Parse()

	if *fontPath == "" {
		fmt.Fprintln(os.Stderr, "usage: seedassets -font label.ttf [-out ./seed] [-count 50] [-shared 5]")
		os.Exit(2)
	}

	imagesDir := filepath.Join(*outDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	face, err := loadFontFace(*fontPath, 120)
	if err != nil {
		fmt.Fprintf(os.Stderr, "font: %v\n", err)
		os.Exit(1)
	}

	var g errgroup.Group
	g.SetLimit(8)
	for i := 0; i < *count; i++ {
		sku := skuFor(i)
		g.Go(func() error {
			return renderLabeledImage(filepath.Join(imagesDir, sku+".png"), sku, face)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}

	if err := writeCSV(filepath.Join(*outDir, "products.csv"), *count, *shared); err != nil {
		fmt.Fprintf(os.Stderr, "csv: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d images and products.csv under %s\n", *count, *outDir)
}

func skuFor(i int) string {
	return fmt.Sprintf("SKU-%04d", i+1)
}

func renderLabeledImage(path, label string, face font.Face) error {
	dc := gg.NewContext(imageSize, imageSize)

	dc.SetColor(colorFor(label))
	dc.DrawRectangle(0, 0, imageSize, imageSize)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetFontFace(face)
	tw, th := dc.MeasureString(label)
	dc.DrawString(label, (imageSize-tw)/2, (imageSize+th)/2)

	return dc.SavePNG(path)
}

func colorFor(label string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	return palette[int(h.Sum32())%len(palette)]
}

func writeCSV(path string, count, shared int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sku", "name", "description", "price", "stock", "image_path"}); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		sku := skuFor(i)
		image := sku + ".png"
		// Trailing rows point at the first product's image file; the importer
		// should reuse the stored asset instead of uploading it again.
		if shared > 0 && i >= count-shared {
			image = skuFor(0) + ".png"
		}
		row := []string{
			sku,
			"Sample Product " + strings.TrimPrefix(sku, "SKU-"),
			fmt.Sprintf("Generated catalog item %d", i+1),
			fmt.Sprintf("%.2f", 5.0+float64(i)*1.25),
			fmt.Sprintf("%d", (i*7)%100),
			image,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
