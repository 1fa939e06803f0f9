package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

func errorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [code]",
		Short: "Explain an error code",
		Long: `List every error code flight reports, or explain one of them.

Examples:
  flight errors
  flight errors E206`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				printCodes(out)
				return nil
			}
			code := strings.ToUpper(args[0])
			if _, ok := ferrors.GetTemplate(code); !ok {
				return usageError(cmd, fmt.Errorf("unknown error code %q", args[0]))
			}
			io.WriteString(out, ferrors.New(code).Format())
			return nil
		},
	}
}

func printCodes(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCATEGORY\tMESSAGE")
	for _, code := range ferrors.GetAllCodes() {
		t, _ := ferrors.GetTemplate(code)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", code, t.Category, t.Message)
	}
	tw.Flush()
}
