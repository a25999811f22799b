package kv

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/pKV/cmd/util"
	"github.com/ValentinKolb/pKV/lib/hooks"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/spf13/cobra"
)

// --------------------------------------------------------------------------
// Flag helpers shared by the operation commands
// --------------------------------------------------------------------------

func addPathFlag(cmd *cobra.Command) {
	cmd.Flags().String("path", "", util.WrapString("Dotted path inside the value, e.g. address.city or tags.0"))
}

func pathFlag(cmd *cobra.Command) []string {
	path, _ := cmd.Flags().GetString("path")
	return util.SplitPath(path)
}

func addConditionFlags(cmd *cobra.Command) {
	cmd.Flags().String("where", "", util.WrapString("expr-lang condition over value and key, e.g. 'value.age > 30'"))
	cmd.Flags().String("cel", "", util.WrapString("CEL condition over value and key, e.g. 'key.startsWith(\"user:\")'"))
	cmd.Flags().String("equals", "", util.WrapString("JSON value the element (or its field) must equal"))
	cmd.Flags().String("field", "", util.WrapString("Dotted path compared by --equals"))
	cmd.MarkFlagsMutuallyExclusive("where", "cel", "equals")
	cmd.MarkFlagsOneRequired("where", "cel", "equals")
}

// conditionFlags builds the condition selected by --where, --cel or --equals
func conditionFlags(cmd *cobra.Command) (provider.Condition, error) {
	flags := cmd.Flags()
	if where, _ := flags.GetString("where"); where != "" {
		hook, err := hooks.Condition(where)
		if err != nil {
			return nil, err
		}
		return provider.ByHook(hook), nil
	}
	if cel, _ := flags.GetString("cel"); cel != "" {
		hook, err := hooks.CELCondition(cel)
		if err != nil {
			return nil, err
		}
		return provider.ByHook(hook), nil
	}
	if flags.Changed("equals") {
		equals, _ := flags.GetString("equals")
		field, _ := flags.GetString("field")
		return provider.ByValue(util.ParseValue(equals), util.SplitPath(field)...), nil
	}
	return nil, errors.New("one of --where, --cel or --equals is required")
}

// printResult prints v as JSON
func printResult(v any) {
	fmt.Println(util.FormatValue(v))
}
