// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nbcin/polder/ini"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sections FILE",
		Short: "List section names in file order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			names, err := ini.Sections(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys FILE SECTION",
		Short: "List the keys of a section in file order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			keys, err := ini.Keys(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(a.out, k)
			}
			return nil
		},
	}
}

// document is the content of a file as seen by Read, in file order.
type document struct {
	sections []string
	keys     map[string][]string
	values   map[string]map[string]string
}

func readDocument(ctx context.Context, path string, opts *ini.Options) (*document, error) {
	doc := &document{keys: make(map[string][]string)}
	var err error
	doc.sections, err = ini.Sections(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	doc.values, err = ini.Dump(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	for _, name := range doc.sections {
		doc.keys[name], err = ini.Keys(ctx, path, name, opts)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (doc *document) writeINI(w io.Writer, d ini.Dialect) error {
	bw := bufio.NewWriter(w)
	for i, name := range doc.sections {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "[%s]\n", name)
		for _, k := range doc.keys[name] {
			bw.WriteString(ini.FormatProperty(k, doc.values[name][k], d))
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

func (doc *document) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc.values)
}

func (doc *document) writeYAML(w io.Writer) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range doc.sections {
		sec := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range doc.keys[name] {
			sec.Content = append(sec.Content, yamlString(k), yamlString(doc.values[name][k]))
		}
		root.Content = append(root.Content, yamlString(name), sec)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

func yamlString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func newDumpCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print every property visible to get",
		Long: "Print every property visible to get, in file order. Repeated sections and keys,\n" +
			"comments, and malformed lines are left out.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			switch format {
			case "ini":
				return doc.writeINI(a.out, opts.Dialect)
			case "json":
				return doc.writeJSON(a.out)
			case "yaml":
				return doc.writeYAML(a.out)
			default:
				return fmt.Errorf("--format %q: must be ini, json, or yaml", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "ini", "output `format`: ini, json, or yaml")
	return cmd
}
