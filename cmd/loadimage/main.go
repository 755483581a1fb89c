// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command loadimage prints JPEG metadata, renders images with geometry
// options and rewrites the Exif orientation without re-encoding.
//
//	loadimage -meta photo.jpg
//	loadimage -presets presets.yaml -preset thumb -out thumb.jpg s3://bucket/photo.jpg
//	loadimage -orientation 1 -reorient fixed.jpg photo.jpg
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"

	"github.com/bbrks/go-blurhash"
	"github.com/bep/loadimage"
	"github.com/bep/loadimage/fetch"
	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

// config is the file given with -presets.
type config struct {
	S3      *fetch.S3Config                      `yaml:"s3"`
	Presets map[string]loadimage.GeometryOptions `yaml:"presets"`
}

type flags struct {
	meta        bool
	presets     string
	preset      string
	out         string
	reorient    string
	orientation int
	blurhash    bool
	autoOrient  bool
	verbose     bool

	geometry loadimage.GeometryOptions
	// set holds the names of the flags given on the command line.
	set map[string]bool
}

func main() {
	log.SetFlags(0)

	var f flags
	flag.BoolVar(&f.meta, "meta", false, "print the metadata as JSON")
	flag.StringVar(&f.presets, "presets", "", "YAML file with presets and S3 settings")
	flag.StringVar(&f.preset, "preset", "", "name of the geometry preset to use")
	flag.StringVar(&f.out, "out", "", "write the rendered image to this file")
	flag.StringVar(&f.reorient, "reorient", "", "write a copy with the Exif orientation set by -orientation to this file")
	flag.IntVar(&f.orientation, "orientation", 0, "Exif orientation (1-8) for -reorient")
	flag.BoolVar(&f.blurhash, "blurhash", false, "print a blurhash of the rendered image")
	flag.BoolVar(&f.autoOrient, "autoorient", false, "let the decoder apply the Exif orientation")
	flag.BoolVar(&f.verbose, "v", false, "print warnings")
	flag.Float64Var(&f.geometry.MaxWidth, "maxwidth", 0, "maximum output width")
	flag.Float64Var(&f.geometry.MaxHeight, "maxheight", 0, "maximum output height")
	flag.Float64Var(&f.geometry.AspectRatio, "aspect", 0, "crop to this width/height ratio")
	flag.BoolVar(&f.geometry.Cover, "cover", false, "fill the maximum size")
	flag.BoolVar(&f.geometry.Crop, "crop", false, "crop to the maximum size")
	flag.Float64Var(&f.geometry.PixelRatio, "pixelratio", 0, "output pixel ratio")
	flag.TextVar(&f.geometry.Orientation, "orient", loadimage.OrientationFromExif, `orientation to render: "exif", "none" or 1-8`)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: loadimage [flags] <file-or-url>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	f.set = make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), f); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, url string, f flags) error {
	cfg, err := loadConfig(f.presets)
	if err != nil {
		return err
	}

	mux := fetch.NewMux()
	if s3cfg := s3Config(cfg); s3cfg != nil {
		s3, err := fetch.NewS3Fetcher(*s3cfg)
		if err != nil {
			return err
		}
		mux.Handle("s3", s3)
	}

	warnf := func(format string, args ...any) {
		if f.verbose {
			log.Printf("warning: "+format, args...)
		}
	}

	if f.meta {
		md, err := loadimage.ParseMetaDataURL(ctx, url, mux, loadimage.MetaOptions{Warnf: warnf})
		if err != nil && md == nil {
			return err
		}
		if err := printMeta(os.Stdout, md); err != nil {
			return err
		}
	}

	if f.reorient != "" {
		blob, err := mux.Fetch(ctx, url, 0)
		if err != nil {
			return err
		}
		blob, err = loadimage.SetOrientation(blob, loadimage.Orientation(f.orientation))
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.reorient, blob.Data, 0o644); err != nil {
			return err
		}
	}

	if f.out == "" && !f.blurhash {
		return nil
	}

	geometry := f.geometry
	if f.preset != "" {
		preset, found := cfg.Presets[f.preset]
		if !found {
			return fmt.Errorf("preset %q not found", f.preset)
		}
		geometry = mergeGeometry(preset, f.geometry, f.set)
	}

	res, err := loadimage.LoadURL(ctx, url, mux, loadimage.Options{
		Geometry:   geometry,
		AutoOrient: f.autoOrient,
		Warnf:      warnf,
	})
	if err != nil {
		return err
	}

	if f.out != "" {
		if err := imaging.Save(res.Image, f.out); err != nil {
			return err
		}
	}

	if f.blurhash {
		hash, err := blurhash.Encode(4, 3, res.Image)
		if err != nil {
			return err
		}
		fmt.Println(hash)
	}

	return nil
}

func loadConfig(filename string) (config, error) {
	var cfg config
	if filename == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filename, err)
	}
	for name, preset := range cfg.Presets {
		if err := preset.Validate(); err != nil {
			return cfg, fmt.Errorf("%s: preset %q: %w", filename, name, err)
		}
	}
	return cfg, nil
}

// s3Config returns the S3 settings from the config file, or from
// the S3_* environment variables.
func s3Config(cfg config) *fetch.S3Config {
	if cfg.S3 != nil {
		return cfg.S3
	}
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	return &fetch.S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("S3_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Region:    os.Getenv("S3_REGION"),
	}
}

// mergeGeometry applies the values of the geometry flags in set on top of preset.
func mergeGeometry(preset, override loadimage.GeometryOptions, set map[string]bool) loadimage.GeometryOptions {
	if set["maxwidth"] {
		preset.MaxWidth = override.MaxWidth
	}
	if set["maxheight"] {
		preset.MaxHeight = override.MaxHeight
	}
	if set["aspect"] {
		preset.AspectRatio = override.AspectRatio
	}
	if set["pixelratio"] {
		preset.PixelRatio = override.PixelRatio
	}
	if set["cover"] {
		preset.Cover = override.Cover
	}
	if set["crop"] {
		preset.Crop = override.Crop
	}
	if set["orient"] {
		preset.Orientation = override.Orientation
	}
	return preset
}

type position struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type metaJSON struct {
	Orientation string         `json:"orientation"`
	Segments    []string       `json:"segments"`
	Position    *position      `json:"position,omitempty"`
	Exif        map[string]any `json:"exif,omitempty"`
	IPTC        map[string]any `json:"iptc,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

func printMeta(w io.Writer, md *loadimage.MetaData) error {
	if md == nil {
		return errors.New("no metadata")
	}
	m := metaJSON{
		Orientation: md.Orientation().String(),
	}
	for _, seg := range md.Segments {
		m.Segments = append(m.Segments, fmt.Sprintf("%s@%d+%d", seg.Name(), seg.Offset, seg.Length))
	}
	if md.Exif != nil {
		m.Exif = jsonMap(md.Exif.All())
		if lat, long, found := md.Exif.LatLong(); found {
			m.Position = &position{Lat: lat, Long: long}
		}
	}
	if md.IPTC != nil {
		m.IPTC = jsonMap(md.IPTC.All())
	}
	for _, w := range md.Warnings() {
		m.Warnings = append(m.Warnings, w.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// jsonMap replaces values JSON can't represent, such as the
// infinite quotient of a rational with a zero denominator.
func jsonMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = jsonValue(v)
	}
	return m
}

func jsonValue(v any) any {
	switch vv := v.(type) {
	case float64:
		if math.IsNaN(vv) || math.IsInf(vv, 0) {
			return "undef"
		}
	case []any:
		// The slice is shared with the decoded directory.
		vs := make([]any, len(vv))
		for i, e := range vv {
			vs[i] = jsonValue(e)
		}
		return vs
	case map[string]any:
		return jsonMap(vv)
	}
	return v
}
