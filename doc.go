// Package recordflow converts streams of text records between formats.
//
// A record is an ordered list of string fields with an optional category and
// the number of the line it was read from. Codecs turn one line of text into
// a record and back. A producer reads records from a file or stream through a
// codec, a consumer writes them through another codec, and a pipeline moves
// records from one to the other through mapper and filter stages.
//
// # Quick Start
//
// Convert a CSV file to tab separated values, keeping only active rows:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/recordflow/internal/pipeline"
//	    "github.com/ajitpratap0/recordflow/pkg/codec"
//	    "github.com/ajitpratap0/recordflow/pkg/consumer"
//	    "github.com/ajitpratap0/recordflow/pkg/producer"
//	    "github.com/ajitpratap0/recordflow/pkg/transform"
//	)
//
//	csv, _ := codec.NewDelimited(codec.CSV())
//	tsv, _ := codec.NewDelimited(codec.TSV())
//
//	src := producer.New(producer.FileSource("orders.csv"), csv, producer.WithSkipFirstLines(1))
//	dst := consumer.New(consumer.FileDestination("orders.tsv"), tsv)
//
//	p := pipeline.New(src, []consumer.Consumer{dst},
//	    pipeline.WithStages(transform.Where("active", transform.FieldEquals(3, "active"))),
//	    pipeline.WithPolicy(pipeline.ErrorPolicy{OnRecordError: pipeline.Skip}),
//	)
//	result, err := p.Run(context.Background())
//
// The same job can be described in YAML and run with the recordflow command,
// see package config.
//
// # Key Packages
//
//	pkg/record        - The immutable record value
//	pkg/codec         - Delimited, fixed-width, key/value, single value, JSON lines,
//	                    Markdown list and Markdown/HTML table codecs
//	pkg/producer      - Reading records from files and streams
//	pkg/consumer      - Writing records, fan-out groups and category routing
//	pkg/transform     - Mapper and filter stages
//	pkg/charset       - Character set encoding and validation
//	pkg/compression   - Compressed sources and destinations
//	pkg/config        - YAML job files
//	pkg/errors        - Structured error handling with record numbers
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus counters per run
//	pkg/observability - OpenTelemetry spans per run
//	internal/pipeline - The run loop and error policies
//
// # Error Policies
//
// Failures of a single record (a malformed line, an arity mismatch, a value
// the output charset cannot represent) are handled by the error policy:
// skip and collect continue with the next record, abort stops the run.
// Failures of the files themselves always stop the run. Producer and
// consumer are closed exactly once whatever happens.
//
// # Command Line
//
//	recordflow run --job orders.yaml          # run a job
//	recordflow run --job orders.yaml --summary json
//	recordflow formats                        # list formats and compression
//	recordflow version
//
// Environment variables with the RECORDFLOW_ prefix override run flags, and
// a .env file in the working directory is loaded on start.
package recordflow
