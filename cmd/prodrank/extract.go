package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/fixture"
	"github.com/use-agent/prodrank/harness"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

type extractOutput struct {
	Product models.Product             `json:"product" yaml:"product"`
	Scores  map[models.Feature]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
	Misses  map[models.Feature]string  `json:"misses,omitempty" yaml:"misses,omitempty"`
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "extract title, image and price from a case directory or a markup/geometry pair",
		ArgsUsage: "[case-dir]",
		Flags: []cli.Flag{
			formatFlag,
			&cli.StringFlag{Name: "html", Usage: "rendered markup file"},
			&cli.StringFlag{Name: "geometry", Usage: "geometry table captured for the markup"},
		},
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	cfg := loadConfig(c)
	_, opts, err := extractorOptions(cfg)
	if err != nil {
		return err
	}
	x, err := rules.New(opts)
	if err != nil {
		return err
	}

	page, err := loadPage(c)
	if err != nil {
		return err
	}
	res := x.Extract(page)
	out := extractOutput{Product: res.Product, Scores: res.Scores}
	for f, ferr := range res.Errors {
		if out.Misses == nil {
			out.Misses = make(map[models.Feature]string)
		}
		out.Misses[f] = ferr.Error()
	}
	return emit(os.Stdout, c.String("format"), out)
}

func loadPage(c *cli.Context) (*dom.Page, error) {
	if dir := c.Args().First(); dir != "" {
		tc := fixture.LoadCase(dir)
		if tc.Err != nil {
			return nil, tc.Err
		}
		return tc.Page, nil
	}

	htmlPath, geoPath := c.String("html"), c.String("geometry")
	if htmlPath == "" || geoPath == "" {
		return nil, fmt.Errorf("extract needs a case directory or both --html and --geometry")
	}
	markup, err := os.Open(htmlPath)
	if err != nil {
		return nil, err
	}
	defer markup.Close()
	doc, err := dom.Parse(markup)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "unparseable markup", err)
	}

	gf, err := os.Open(geoPath)
	if err != nil {
		return nil, err
	}
	defer gf.Close()
	geo, err := dom.ReadGeometry(gf)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeFixtureIntegrity, "invalid geometry table", err)
	}
	return dom.NewPage(doc, geo)
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "report whether two values of a feature are equal after canonicalization",
		ArgsUsage: "<feature> <expected> <actual>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("compare needs <feature> <expected> <actual>")
			}
			f, err := models.ParseFeature(c.Args().Get(0))
			if err != nil {
				return err
			}
			ok, err := harness.Compare(c.Args().Get(1), c.Args().Get(2), f)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
