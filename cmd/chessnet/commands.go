package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hailam/chessnet/internal/arch"
	"github.com/hailam/chessnet/internal/engine"
	"github.com/hailam/chessnet/internal/render"
)

func (a *app) buildCmd() *cobra.Command {
	var cache bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Print the network graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc []byte
			if cache {
				_, in, cfg, err := a.network()
				if err != nil {
					return err
				}
				cat, err := a.openCatalog()
				if err != nil {
					return err
				}
				defer cat.Close()
				e, cached, err := cat.Resolve(in, cfg, arch.WithLogger(a.log))
				if err != nil {
					return err
				}
				a.log.Info("catalog", zap.String("key", e.Key), zap.Bool("cached", cached))
				desc = e.Graph
			} else {
				net, err := a.build()
				if err != nil {
					return err
				}
				if desc, err = net.Graph.MarshalJSON(); err != nil {
					return err
				}
			}
			var out bytes.Buffer
			if err := json.Indent(&out, desc, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err := out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVar(&cache, "cache", false, "look the network up in the catalog and store it on a miss")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print one line per node with output shape and parameter count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := a.build()
			if err != nil {
				return err
			}
			rows, total := net.Graph.Summary()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tOP\tSHAPE\tPARAMS\tINPUTS")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Name, r.Op, r.Shape, r.Params, strings.Join(r.Inputs, ","))
			}
			fmt.Fprintf(w, "total\t\t\t%d\t\n", total)
			fmt.Fprintf(w, "policy size\t\t\t%d\t\n", net.PolicySize())
			return w.Flush()
		},
	}
}

func (a *app) renderCmd() *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Draw the network graph as a PNG or SVG diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			if format != "png" && format != "svg" {
				return fmt.Errorf("unsupported diagram format %q", format)
			}
			net, err := a.build()
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if format == "svg" {
				_, err = f.Write(render.SVG(net.Graph))
			} else {
				err = render.PNG(f, net.Graph)
			}
			if err != nil {
				return fmt.Errorf("render %s: %w", output, err)
			}
			a.log.Info("diagram written", zap.String("path", output), zap.Int("nodes", net.Graph.Len()))
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "network.png", "output file")
	cmd.Flags().StringVar(&format, "format", "", "png or svg (default: from the output extension)")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var seed uint64
	var top int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the network on random planes with synthetic weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := a.build()
			if err != nil {
				return err
			}
			e, err := engine.New(net.Graph, engine.WithSeed(seed), engine.WithLogger(a.log))
			if err != nil {
				return err
			}

			in := engine.NewTensor(net.Input.Shape())
			r := rand.New(rand.NewPCG(seed, uint64(len(in.Data))))
			for i := range in.Data {
				if r.IntN(4) == 0 {
					in.Data[i] = 1
				}
			}
			start := time.Now()
			res, err := e.Run(map[string]*engine.Tensor{arch.DataName: in})
			if err != nil {
				return err
			}
			a.log.Debug("forward pass", zap.Duration("took", time.Since(start)))
			return printResult(cmd.OutOrStdout(), net, res, top)
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", engine.DefaultSeed, "seed for weights and input planes")
	cmd.Flags().IntVar(&top, "top", 5, "number of most likely moves to print per sample")
	return cmd
}

func printResult(w io.Writer, net *arch.Network, res *engine.Result, top int) error {
	value := res.Value(net.Value.Output)
	probs := res.Value(net.Policy.Node)
	for n := 0; n < net.Input.Batch; n++ {
		row := probs.Row(n)
		idx := make([]int, len(row))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(x, y int) int {
			switch {
			case row[x] > row[y]:
				return -1
			case row[x] < row[y]:
				return 1
			}
			return 0
		})
		if _, err := fmt.Fprintf(w, "sample %d: value %+.4f\n", n, value.Row(n)[0]); err != nil {
			return err
		}
		for _, i := range idx[:min(top, len(idx))] {
			if _, err := fmt.Fprintf(w, "  move %5d  p=%.5f\n", i, row[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the catalog of built networks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cataloged networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()
			entries, err := cat.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tINPUT\tENCODING\tNODES\tPARAMS\tCREATED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", e.Key, e.Input.Shape(), e.Config.MoveEncoding,
					e.Nodes, e.Params, e.Created.Format(time.RFC3339))
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show KEY",
		Short: "Print the summary of a cataloged network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()
			e, err := cat.Get(args[0])
			if err != nil {
				return err
			}
			g, err := e.Decode()
			if err != nil {
				return err
			}
			rows, total := g.Summary()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "key\t%s\n", e.Key)
			fmt.Fprintf(w, "input\t%s\n", e.Input.Shape())
			fmt.Fprintf(w, "act\t%s\n", e.Config.ActType)
			fmt.Fprintf(w, "nodes\t%d\n", len(rows))
			fmt.Fprintf(w, "params\t%d\n", total)
			return w.Flush()
		},
	})
	return cmd
}
