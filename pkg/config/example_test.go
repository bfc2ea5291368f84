package config_test

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ajitpratap0/recordflow/pkg/config"
)

// ExampleBuildCodec builds a codec from its YAML description and parses a line.
func ExampleBuildCodec() {
	c, err := config.BuildCodec(config.FormatConfig{Type: "delimited", Separator: ";", Quote: "'"})
	if err != nil {
		log.Fatal(err)
	}

	r, err := c.Parse("a;'b;c';d")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(r.Fields())

	// Output:
	// [a b;c d]
}

// ExampleParse runs a job that converts key/value entries from standard
// input into tab separated lines on standard output.
func ExampleParse() {
	job := &config.Job{}
	err := config.Parse([]byte(`
name: properties-to-tsv
source:
  path: "-"
  format:
    type: key-value
destinations:
  - path: "-"
    format:
      type: tsv
stages:
  - type: map-field
    field: 0
    function: upper
`), job)
	if err != nil {
		log.Fatal(err)
	}
	job.ApplyDefaults()

	var out bytes.Buffer
	p, err := job.BuildPipeline(strings.NewReader("# settings\nhost=localhost\nport=8080\n"), &out, nil)
	if err != nil {
		log.Fatal(err)
	}
	result, err := p.Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Print(out.String())
	fmt.Println(result.Outcome, result.Written)

	// Output:
	// HOST	localhost
	// PORT	8080
	// completed 2
}
