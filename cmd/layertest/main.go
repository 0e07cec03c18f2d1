// Command layertest runs detection against a real image and prints the
// resulting layer stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"layer-anything/internal/engine"
	"layer-anything/internal/layer"
	"layer-anything/internal/ocr"
	"layer-anything/internal/preview"
	"layer-anything/internal/segment"
	"layer-anything/internal/source"
	"layer-anything/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to source image (PNG, JPEG, WebP, TIFF, or BMP)")
	runOCR := flag.Bool("ocr", false, "Detect text layers with Tesseract")
	granularity := flag.String("granularity", "line", "OCR granularity: block, paragraph, line, or word")
	language := flag.String("lang", "eng", "Tesseract language code")
	segmentRect := flag.String("segment", "", "Segment an object from \"x,y,w,h\"")
	auto := flag.Bool("auto", false, "Auto-segment the most prominent object")
	exportPath := flag.String("export", "", "Write the layer graph JSON to this path")
	compositePath := flag.String("composite", "", "Write the flattened composite to this path")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: layertest -image <path> [-ocr] [-segment x,y,w,h] [-auto] [-export out.json] [-composite out.png]")
		os.Exit(1)
	}

	img, format, err := source.DecodeFile(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}
	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	eng := engine.New()
	graphID, err := eng.InitializeFromImage("file://"+*imagePath, bounds.Dx(), bounds.Dy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Graph: %s\n", graphID)

	if *runOCR {
		detectText(eng, *imagePath, layer.Granularity(*granularity), *language)
	}

	if *segmentRect != "" || *auto {
		segmentObject(eng, *imagePath, *segmentRect, *auto)
	}

	printLayers(eng)

	if *exportPath != "" {
		data, err := eng.ExportJSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write export: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote layer graph to %s (%d bytes)\n", *exportPath, len(data))
	}

	if *compositePath != "" {
		renderer := preview.NewRenderer(img)
		flat := renderer.Render(eng.GetLayers())
		if err := preview.Save(flat, *compositePath, preview.EncodeOptions{}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write composite: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote composite to %s\n", *compositePath)
	}
}

func detectText(eng *engine.Engine, path string, granularity layer.Granularity, language string) {
	ocrEngine, err := ocr.NewEngine(ocr.Config{
		Language:      language,
		MinConfidence: 0.3,
		Binarize:      true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tesseract unavailable: %v\n", err)
		return
	}
	defer ocrEngine.Close()

	blocks, err := ocrEngine.DetectFile(path, granularity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Text detection failed: %v\n", err)
		return
	}

	for _, block := range blocks {
		if _, err := eng.CreateTextLayer(block); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create text layer: %v\n", err)
			return
		}
	}
	fmt.Printf("Detected %d text blocks at %s granularity\n", len(blocks), granularity)
}

func segmentObject(eng *engine.Engine, path, rectSpec string, auto bool) {
	svc := segment.NewService(segment.DefaultConfig(), zap.NewNop())
	ctx := context.Background()

	var res *segment.Result
	var err error
	if auto {
		fmt.Println("Auto-segmenting most prominent object...")
		res, err = svc.AutoSegmentFile(ctx, path)
	} else {
		rect, perr := parseRect(rectSpec)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Bad -segment rectangle: %v\n", perr)
			os.Exit(1)
		}
		fmt.Printf("Segmenting %dx%d region at (%d, %d)...\n", rect.Width, rect.Height, rect.X, rect.Y)
		res, err = svc.SegmentFile(ctx, path, rect)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %v\n", err)
		return
	}

	id, err := eng.CreateObjectLayer(res.Mask, res.BBox, layer.ObjectOptions{Confidence: res.Confidence})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create object layer: %v\n", err)
		return
	}
	fmt.Printf("Segmented object %s (confidence %.2f, mask area %d px)\n", id, res.Confidence, res.Mask.Area())
}

func parseRect(spec string) (geometry.RectInt, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return geometry.RectInt{}, fmt.Errorf("want x,y,w,h, got %q", spec)
	}

	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return geometry.RectInt{}, fmt.Errorf("bad component %q", p)
		}
		vals[i] = v
	}
	return geometry.RectInt{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func printLayers(eng *engine.Engine) {
	layers := eng.GetLayers()
	fmt.Printf("\n%d layers:\n", len(layers))
	fmt.Printf("%-28s %-12s %-24s %4s %7s %7s %4s\n",
		"ID", "TYPE", "NAME", "Z", "AREA%", "OPAC", "VIS")
	for _, l := range layers {
		vis := "yes"
		if !l.Visible {
			vis = "no"
		}
		fmt.Printf("%-28s %-12s %-24s %4d %7.2f %7.2f %4s\n",
			l.ID, l.Type, l.Name, l.ZIndex, l.AreaPct*100, l.Opacity, vis)
	}
}
