// Package config loads recordflow job files.
//
// A job file is YAML describing one pipeline run: a source with its format,
// one or more destinations, the transformation stages and the per-record
// error policy. Environment variables are substituted before parsing with
// ${VAR_NAME} or ${VAR_NAME:-default} syntax, and unknown keys are rejected.
//
// # Example Job
//
//	name: customers
//	source:
//	  path: ${INPUT_DIR}/customers.csv.gz
//	  compression: auto
//	  skip_first_lines: 1
//	  format:
//	    type: csv
//	destinations:
//	  - path: customers.txt
//	    format:
//	      type: fixed-width
//	      fields:
//	        - {start: 0, length: 10}
//	        - {start: 10, length: 20}
//	stages:
//	  - type: reorder
//	    indices: [0, 2]
//	  - type: map-field
//	    field: 1
//	    function: upper
//	policy:
//	  on_record_error: collect
//	  max_failures: 100
//
// # Usage
//
//	job, err := config.LoadJob("customers.yaml")
//	if err != nil {
//		return err
//	}
//	p, err := job.BuildPipeline(os.Stdin, os.Stdout, logger)
//	if err != nil {
//		return err
//	}
//	result, err := p.Run(ctx)
//
// Validate builds every codec and stage once without opening any file, so
// configuration mistakes are reported together before a run starts.
package config
