// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nbcin/polder/ini"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var defaultValue string
	cmd := &cobra.Command{
		Use:   "get FILE SECTION KEY",
		Short: "Print the value of a property",
		Long: "Print the value of the first property named KEY in the first section named SECTION.\n" +
			"If the property is absent, print the --default value, or fail if none was given.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := a.options()
			if err != nil {
				return err
			}
			path, section, key := args[0], args[1], args[2]
			value, ok, err := ini.Lookup(ctx, path, section, key, opts)
			if err != nil {
				return err
			}
			if !ok {
				if !cmd.Flags().Changed("default") {
					return fmt.Errorf("%s: [%s] %s: %w", path, section, key, ini.ErrKeyNotFound)
				}
				value = defaultValue
			}
			fmt.Fprintln(a.out, value)
			return nil
		},
	}
	cmd.Flags().StringVar(&defaultValue, "default", "", "value to print if the property is absent")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var asInt, asFloat bool
	cmd := &cobra.Command{
		Use:   "set FILE SECTION KEY VALUE",
		Short: "Set the value of a property",
		Long: "Set the value of a property, adding the key or section if needed.\n" +
			"The file is created if it does not exist.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, section, key, value := args[0], args[1], args[2], args[3]
			return a.mutate(cmd.Context(), path, func(ctx context.Context, opts *ini.Options) error {
				switch {
				case asInt:
					i, err := strconv.ParseInt(value, 10, 64)
					if err != nil {
						return fmt.Errorf("--int: %w", err)
					}
					return ini.WriteInt(ctx, path, section, key, i, opts)
				case asFloat:
					f, err := strconv.ParseFloat(value, 64)
					if err != nil {
						return fmt.Errorf("--float: %w", err)
					}
					return ini.WriteFloat(ctx, path, section, key, f, opts)
				default:
					return ini.Write(ctx, path, section, key, value, opts)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&asInt, "int", false, "write VALUE as a base-10 integer")
	cmd.Flags().BoolVar(&asFloat, "float", false, "write VALUE as a fixed-point number")
	cmd.MarkFlagsMutuallyExclusive("int", "float")
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "exists FILE SECTION [KEY]",
		Short: "Report whether a section or property exists",
		Long:  "Print true or false. The exit status is 1 if the section or property does not exist.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := a.options()
			if err != nil {
				return err
			}
			var ok bool
			if len(args) == 3 {
				ok, err = ini.KeyExists(ctx, args[0], args[1], args[2], opts)
			} else {
				ok, err = ini.SectionExists(ctx, args[0], args[1], opts)
			}
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(a.out, ok)
			}
			if !ok {
				return errFalse
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only set the exit status")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm FILE SECTION [KEY]",
		Short: "Delete a property or a whole section",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd.Context(), args[0], func(ctx context.Context, opts *ini.Options) error {
				if len(args) == 3 {
					return ini.DeleteKey(ctx, args[0], args[1], args[2], opts)
				}
				return ini.DeleteSection(ctx, args[0], args[1], opts)
			})
		},
	}
}

func newRenameSectionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-section FILE OLD NEW",
		Short: "Rename a section",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd.Context(), args[0], func(ctx context.Context, opts *ini.Options) error {
				return ini.RenameSection(ctx, args[0], args[1], args[2], opts)
			})
		},
	}
}

func newRenameKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-key FILE SECTION OLD NEW",
		Short: "Rename a property, keeping its value",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd.Context(), args[0], func(ctx context.Context, opts *ini.Options) error {
				return ini.RenameKey(ctx, args[0], args[1], args[2], args[3], opts)
			})
		},
	}
}
