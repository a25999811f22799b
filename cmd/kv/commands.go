package kv

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/pKV/cmd/util"
	"github.com/ValentinKolb/pKV/lib/hooks"
	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/spf13/cobra"
)

// --------------------------------------------------------------------------
// Single key
// --------------------------------------------------------------------------

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := kvStore.Get(cmd.Context(), args[0], pathFlag(cmd)...)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("key=%s, found=false\n", args[0])
				return nil
			}
			printResult(value)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key (values are parsed as JSON, anything else is a string)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Set(cmd.Context(), args[0], util.ParseValue(args[1]), pathFlag(cmd)...); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair or a path inside the value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(cmd.Context(), args[0], pathFlag(cmd)...); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key (or a path inside its value) exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := kvStore.Has(cmd.Context(), args[0], pathFlag(cmd)...)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	incCmd = &cobra.Command{
		Use:   "inc [key]",
		Short: "Increments the number at a key by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Inc(cmd.Context(), args[0], pathFlag(cmd)...); err != nil {
				return err
			}
			return printValue(cmd.Context(), args[0], pathFlag(cmd))
		},
	}
	decCmd = &cobra.Command{
		Use:   "dec [key]",
		Short: "Decrements the number at a key by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Dec(cmd.Context(), args[0], pathFlag(cmd)...); err != nil {
				return err
			}
			return printValue(cmd.Context(), args[0], pathFlag(cmd))
		},
	}
	mathCmd = &cobra.Command{
		Use:   "math [key] [operator] [operand]",
		Short: "Applies an operator (+ - * / % ^) to the number at a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := provider.ParseOperator(args[1])
			if err != nil {
				return err
			}
			operand, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("operand must be a number: %w", err)
			}
			if err := kvStore.Math(cmd.Context(), args[0], op, operand, pathFlag(cmd)...); err != nil {
				return err
			}
			return printValue(cmd.Context(), args[0], pathFlag(cmd))
		},
	}
	pushCmd = &cobra.Command{
		Use:   "push [key] [value]",
		Short: "Appends a value to the array at a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Push(cmd.Context(), args[0], util.ParseValue(args[1]), pathFlag(cmd)...); err != nil {
				return err
			}
			return printValue(cmd.Context(), args[0], pathFlag(cmd))
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Removes the elements matching a condition from the array at a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			if err := kvStore.Remove(cmd.Context(), args[0], cond, pathFlag(cmd)...); err != nil {
				return err
			}
			return printValue(cmd.Context(), args[0], pathFlag(cmd))
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [expression]",
		Short: "Replaces the value at a key with the result of an expr-lang expression, e.g. 'value * 2'",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hook, err := hooks.Updater(args[1])
			if err != nil {
				return err
			}
			value, err := kvStore.Update(cmd.Context(), args[0], hook, pathFlag(cmd)...)
			if err != nil {
				return err
			}
			printResult(value)
			return nil
		},
	}
	ensureCmd = &cobra.Command{
		Use:   "ensure [key] [default]",
		Short: "Stores the default value unless the key exists and prints the stored value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := kvStore.Ensure(cmd.Context(), args[0], util.ParseValue(args[1]))
			if err != nil {
				return err
			}
			printResult(value)
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Many keys
// --------------------------------------------------------------------------

var (
	getManyCmd = &cobra.Command{
		Use:   "getmany [key...]",
		Short: "Reads the values of several keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := kvStore.GetMany(cmd.Context(), args...)
			if err != nil {
				return err
			}
			printResult(values)
			return nil
		},
	}
	setManyCmd = &cobra.Command{
		Use:   "setmany [key=value...]",
		Short: "Sets several keys; existing keys are kept unless --overwrite is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make([]provider.SetManyEntry, 0, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid entry %q, expected key=value", arg)
				}
				entries = append(entries, provider.SetManyEntry{KeyPath: provider.KeyPath{Key: key}, Value: util.ParseValue(value)})
			}
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			if err := kvStore.SetMany(cmd.Context(), entries, overwrite); err != nil {
				return err
			}
			fmt.Println("setmany successfully")
			return nil
		},
	}
	delManyCmd = &cobra.Command{
		Use:   "delmany [key...]",
		Short: "Deletes several keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.DeleteMany(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Println("delmany successfully")
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := kvStore.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	autoKeyCmd = &cobra.Command{
		Use:   "autokey",
		Short: "Prints a key that is not in use yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := kvStore.AutoKey(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Whole store
// --------------------------------------------------------------------------

var (
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, err := kvStore.Size(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(size)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Prints all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := kvStore.Keys(cmd.Context())
			if err != nil {
				return err
			}
			printResult(keys)
			return nil
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values",
		Short: "Prints all values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := kvStore.Values(cmd.Context())
			if err != nil {
				return err
			}
			printResult(values)
			return nil
		},
	}
	entriesCmd = &cobra.Command{
		Use:   "entries",
		Short: "Prints all key value pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := kvStore.Entries(cmd.Context())
			if err != nil {
				return err
			}
			printResult(entries)
			return nil
		},
	}
	eachCmd = &cobra.Command{
		Use:   "each",
		Short: "Prints one line per entry in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return kvStore.Each(cmd.Context(), func(_ context.Context, value any, key string) error {
				fmt.Printf("%s\t%s\n", key, util.FormatValue(value))
				return nil
			})
		},
	}
	everyCmd = &cobra.Command{
		Use:   "every",
		Short: "Checks whether all values match a condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			ok, err := kvStore.Every(cmd.Context(), cond)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
	someCmd = &cobra.Command{
		Use:   "some",
		Short: "Checks whether at least one value matches a condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			ok, err := kvStore.Some(cmd.Context(), cond)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
	filterCmd = &cobra.Command{
		Use:   "filter",
		Short: "Prints the entries matching a condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			entries, err := kvStore.Filter(cmd.Context(), cond)
			if err != nil {
				return err
			}
			printResult(entries)
			return nil
		},
	}
	findCmd = &cobra.Command{
		Use:   "find",
		Short: "Prints the first entry (in key order) matching a condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			entry, err := kvStore.Find(cmd.Context(), cond)
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Println("found=false")
				return nil
			}
			fmt.Printf("%s\t%s\n", entry.Key, util.FormatValue(entry.Value))
			return nil
		},
	}
	partitionCmd = &cobra.Command{
		Use:   "partition",
		Short: "Splits the entries by a condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cond, err := conditionFlags(cmd)
			if err != nil {
				return err
			}
			p, err := kvStore.Partition(cmd.Context(), cond)
			if err != nil {
				return err
			}
			printResult(map[string]any{"truthy": p.Truthy, "falsy": p.Falsy})
			return nil
		},
	}
	mapCmd = &cobra.Command{
		Use:   "map",
		Short: "Projects every value with an expr-lang expression (--expr) or a path (--field)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var mapper provider.Mapper
			if expression, _ := cmd.Flags().GetString("expr"); expression != "" {
				hook, err := hooks.Mapper(expression)
				if err != nil {
					return err
				}
				mapper = provider.MapByHook(hook)
			} else {
				field, _ := cmd.Flags().GetString("field")
				mapper = provider.MapByPath(util.SplitPath(field)...)
			}
			values, err := kvStore.Map(cmd.Context(), mapper)
			if err != nil {
				return err
			}
			printResult(values)
			return nil
		},
	}
	randomCmd = &cobra.Command{
		Use:   "random [count]",
		Short: "Prints random values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, duplicates, err := randomArgs(cmd, args)
			if err != nil {
				return err
			}
			values, err := kvStore.Random(cmd.Context(), count, duplicates)
			if err != nil {
				return err
			}
			printResult(values)
			return nil
		},
	}
	randomKeyCmd = &cobra.Command{
		Use:   "randomkey [count]",
		Short: "Prints random keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, duplicates, err := randomArgs(cmd, args)
			if err != nil {
				return err
			}
			keys, err := kvStore.RandomKey(cmd.Context(), count, duplicates)
			if err != nil {
				return err
			}
			printResult(keys)
			return nil
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{getCmd, setCmd, delCmd, hasCmd, incCmd, decCmd, mathCmd, pushCmd, removeCmd, updateCmd} {
		addPathFlag(cmd)
	}
	for _, cmd := range []*cobra.Command{removeCmd, everyCmd, someCmd, filterCmd, findCmd, partitionCmd} {
		addConditionFlags(cmd)
	}
	setManyCmd.Flags().Bool("overwrite", false, util.WrapString("Replace values of existing keys"))
	mapCmd.Flags().String("expr", "", util.WrapString("expr-lang expression over value and key"))
	mapCmd.Flags().String("field", "", util.WrapString("Dotted path projected out of every value"))
	mapCmd.MarkFlagsMutuallyExclusive("expr", "field")
	for _, cmd := range []*cobra.Command{randomCmd, randomKeyCmd} {
		cmd.Flags().Bool("duplicates", false, util.WrapString("Allow the same entry to be picked more than once"))
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printValue prints the value at key and path after a mutation
func printValue(ctx context.Context, key string, path []string) error {
	value, _, err := kvStore.Get(ctx, key, path...)
	if err != nil {
		return err
	}
	printResult(value)
	return nil
}

func randomArgs(cmd *cobra.Command, args []string) (int, bool, error) {
	count := 1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, false, fmt.Errorf("count must be a number: %w", err)
		}
		count = n
	}
	duplicates, _ := cmd.Flags().GetBool("duplicates")
	return count, duplicates, nil
}
