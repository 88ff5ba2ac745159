package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/native"
	"github.com/san-kum/upperatm/internal/viz"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tSHAPE\tPOINTS\tFAILED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%d\t%d\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Shape,
			run.Points,
			run.Failed,
		)
	}
	return w.Flush()
}

func plotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one column of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().StringVar(&column, "column", "", "column to plot (default t_local_k or zonal_ms)")
	cmd.Flags().BoolVar(&logPlot, "log", false, "plot log10 values")
	return cmd
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	t, err := st.LoadResults(args[0])
	if err != nil {
		return err
	}

	name := column
	if name == "" {
		name = "t_local_k"
		if meta.Kind == "wind" {
			name = "zonal_ms"
		}
	}
	col, ok := t.Column(name)
	if !ok {
		return fmt.Errorf("run %s has no column %s (have %s)", meta.ID, name, strings.Join(t.Columns, ", "))
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("%s %s %v", meta.Model, meta.Kind, meta.Shape)))
	plot := viz.Profile(col, name, logPlot)
	if plot == "" {
		return fmt.Errorf("no finite values to plot in %s", name)
	}
	fmt.Println(plot)
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return st.ExportJSON(w, args[0])
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list space-weather presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tF107\tF107A\tAP")
			for _, name := range config.ListPresets() {
				sw := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", name, sw.F107, sw.F107A, sw.Ap)
			}
			return w.Flush()
		},
	}
}

func variantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "list native model variants and where their libraries are searched",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLIBRARY\tSYMBOL\tPRECISION\tENV")
			for _, name := range native.Variants() {
				v := native.MustLookup(name)
				precisions := make([]string, len(v.Precisions))
				for i, p := range v.Precisions {
					precisions[i] = p.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					v.Name, native.FileName(v.Library), v.Symbols[0], strings.Join(precisions, ","), native.EnvVar(v))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			v := native.MustLookup(cfg.DensityModel)
			fmt.Println()
			fmt.Println(viz.Label.Render("search order for " + v.Name + ":"))
			for _, c := range native.Candidates(v, cfg.LibraryPath, cfg.LibraryDir) {
				fmt.Println("  " + c)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config file helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "write the default config as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "upperatm.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Encode(os.Stdout, cfg)
		},
	})
	return cmd
}
