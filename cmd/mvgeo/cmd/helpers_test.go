package cmd

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// executeCommand runs the root command with args on fresh flag and config
// state and returns what it wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetCommandState(t *testing.T) {
	t.Helper()

	prev := slog.Default()
	viper.Reset()
	bindPersistentFlags()
	globalConfig = nil
	configLoader = nil
	resetFlags(rootCmd)

	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		slog.SetDefault(prev)
	})
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if v := freshSliceValue(f); v != nil {
			f.Value = v
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// freshSliceValue rebuilds a slice flag value holding its default. Slice
// values remember that they were set and append on every later Set, so
// resetting them in place leaks values into the next command.
func freshSliceValue(f *pflag.Flag) pflag.Value {
	fs := pflag.NewFlagSet(f.Name, pflag.ContinueOnError)
	def := sliceDefault(f.DefValue)
	switch f.Value.Type() {
	case "stringSlice":
		fs.StringSlice(f.Name, def, f.Usage)
	case "intSlice":
		ints := make([]int, 0, len(def))
		for _, s := range def {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil
			}
			ints = append(ints, n)
		}
		fs.IntSlice(f.Name, ints, f.Usage)
	default:
		return nil
	}
	return fs.Lookup(f.Name).Value
}

// sliceDefault splits a slice flag default such as "[20,100,500]".
func sliceDefault(def string) []string {
	def = strings.Trim(def, "[]")
	if def == "" {
		return []string{}
	}
	return strings.Split(def, ",")
}
