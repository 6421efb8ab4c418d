package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/southernunderground/quoteform/libs/components/quoteform"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a quote request record",
	Long: `Reads a JSON object of field values from file, or stdin when file is omitted
or "-", and reports every validation error. Exits non-zero when invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	record, err := readRecord(in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result := quoteform.Validate(record)
	if result.OK() {
		fmt.Fprintln(out, "ok")
		return nil
	}
	for _, fe := range result.Errors() {
		fmt.Fprintf(out, "%s: %s\n", fe.Field, fe.Reason)
	}
	return errInvalid
}

func readRecord(r io.Reader) (quoteform.Record, error) {
	var fields map[string]string
	dec := json.NewDecoder(r)
	if err := dec.Decode(&fields); err != nil {
		return quoteform.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return quoteform.RecordFromMap(fields)
}
