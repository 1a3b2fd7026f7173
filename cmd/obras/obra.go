package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/autosave"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/models"
	"github.com/zulandar/obras/internal/obra"
	"golang.org/x/term"
)

// stdinIsTerminal reports whether confirmation prompts can be shown.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newObraCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obra",
		Short: "Contract record commands",
	}

	cmd.AddCommand(newObraListCmd())
	cmd.AddCommand(newObraShowCmd())
	cmd.AddCommand(newObraResolveCmd())
	cmd.AddCommand(newObraCreateCmd())
	cmd.AddCommand(newObraCloneCmd())
	cmd.AddCommand(newObraDeleteCmd())
	cmd.AddCommand(newObraSetCmd())
	cmd.AddCommand(newObraEmpresasCmd())
	return cmd
}

func newObraListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contract records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraList(cmd, configPath)
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func runObraList(cmd *cobra.Command, configPath string) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	list := store.List()
	if len(list) == 0 {
		fmt.Fprintln(out, "No obras found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NOMBRE\tEXPEDIENTE\tTIPO\tEMPRESAS\tMODIFICADA")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			truncate(s.NombreObra, 50), dash(s.NumeroExpediente), dash(s.TipoActuacion), s.Empresas, dash(s.FechaModificacion))
	}
	w.Flush()
	return nil
}

func newObraShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <obra>",
		Short: "Show a contract record",
		Long:  "Displays every field of the record the identifier resolves to. The identifier may be the name, a truncated name ending in \"...\", a close misspelling or the case number.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraShow(cmd, configPath, args[0], asJSON)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored JSON object")
	return cmd
}

func runObraShow(cmd *cobra.Command, configPath, id string, asJSON bool) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	m, err := store.Resolve(id)
	if err != nil {
		return err
	}
	o, err := store.Read(m.Name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Obra: %s\n", o.NombreObra)
	printMatch(cmd, m)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	seen := map[string]bool{}
	for _, f := range models.Schema {
		seen[f.ID] = true
		switch f.ID {
		case models.KeyNombreObra, models.KeyEmpresas, models.KeyFasesDocumentos:
			continue
		}
		if v, ok := o.Get(f.ID); ok {
			fmt.Fprintf(w, "%s:\t%s\n", f.Label, formatValue(v))
		}
	}
	extra := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(o.Extra[k]))
	}
	w.Flush()

	if len(o.Empresas) > 0 {
		fmt.Fprintf(out, "\nEmpresas (%d):\n", len(o.Empresas))
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  #\tNOMBRE\tNIF\tEMAIL\tCONTACTO")
		for i, e := range o.Empresas {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", i+1, dash(e.Nombre), dash(e.NIF), dash(e.Email), dash(e.Contacto))
		}
		w.Flush()
	}

	done := 0
	for _, p := range fases.All() {
		if e, ok := o.FasesDocumentos[p.ID()]; ok && e.Firmado != nil && *e.Firmado != "" {
			done++
		}
	}
	fmt.Fprintf(out, "\nFases firmadas: %d/%d\n", done, fases.Total)
	return nil
}

// printMatch warns when the identifier did not match a name exactly.
func printMatch(cmd *cobra.Command, m obra.Match) {
	if m.Kind == obra.MatchExact {
		return
	}
	note := ""
	if m.Kind.LowConfidence() {
		note = ", low confidence"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "(matched by %s%s)\n", m.Kind, note)
}

func newObraResolveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Show which record an identifier designates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraResolve(cmd, configPath, args[0])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func runObraResolve(cmd *cobra.Command, configPath, id string) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	m, err := store.Resolve(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Name, m.Kind)
	return nil
}

func newObraCreateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create <name> [field=value...]",
		Short: "Create a contract record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraCreate(cmd, configPath, args[0], args[1:])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func runObraCreate(cmd *cobra.Command, configPath, name string, assignments []string) error {
	fields, err := parseAssignments(assignments)
	if err != nil {
		return err
	}
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	o, err := store.Create(name, fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created obra %s\n", o.NombreObra)
	return nil
}

func newObraCloneCmd() *cobra.Command {
	var (
		configPath string
		groups     []string
	)

	cmd := &cobra.Command{
		Use:   "clone <source> <new-name>",
		Short: "Create a record from field groups of another",
		Long:  "Creates a new record copying only the selected field groups (" + strings.Join(models.Groups, ", ") + ") of the source record.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraClone(cmd, configPath, args[0], args[1], groups)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringSliceVar(&groups, "groups", []string{models.GroupImportes}, "field groups to copy")
	return cmd
}

func runObraClone(cmd *cobra.Command, configPath, source, name string, groups []string) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	sel := make(map[string]bool, len(groups))
	for _, g := range groups {
		sel[strings.TrimSpace(g)] = true
	}
	o, err := store.Clone(source, name, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created obra %s from %s (%s)\n", o.NombreObra, source, strings.Join(groups, ", "))
	return nil
}

func newObraDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <obra>",
		Short: "Delete a contract record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraDelete(cmd, configPath, args[0], yes)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runObraDelete(cmd *cobra.Command, configPath, id string, yes bool) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	m, err := store.Resolve(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !yes {
		if !stdinIsTerminal() {
			return fmt.Errorf("refusing to delete %s without --yes", m.Name)
		}
		fmt.Fprintf(out, "Delete %s? [y/N] ", m.Name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes", "s", "si", "sí":
		default:
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	name, err := store.Delete(m.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted obra %s\n", name)
	return nil
}

func newObraSetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set <obra> field=value...",
		Short: "Edit fields of a contract record",
		Long:  "Notifies each field=value to the autosave cache and saves them in a single write. Values equal to the stored ones are not written; an empty value clears the field.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraSet(cmd, configPath, args[0], args[1:])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func runObraSet(cmd *cobra.Command, configPath, id string, assignments []string) error {
	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	cache := autosave.New(store, autosave.Options{})
	o, err := cache.Open(id, nil)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		k, v, err := parseAssignment(a)
		if err != nil {
			return err
		}
		if err := cache.NotifyFieldChanged(k, v); err != nil {
			return err
		}
	}
	return saveEdits(cmd, cache, o.NombreObra)
}

func newObraEmpresasCmd() *cobra.Command {
	var (
		configPath string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "empresas <obra>",
		Short: "Replace the empresas list of a contract record",
		Long:  "Reads a JSON array of empresas ({nombre, nif, email, contacto, ofertas}) and replaces the whole list in stored order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObraEmpresas(cmd, configPath, args[0], file)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the empresas list (- for stdin)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runObraEmpresas(cmd *cobra.Command, configPath, id, file string) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read empresas: %w", err)
	}
	var list []models.Empresa
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse empresas: %w", err)
	}

	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}
	cache := autosave.New(store, autosave.Options{})
	o, err := cache.Open(id, nil)
	if err != nil {
		return err
	}
	cache.NotifyEmpresasChanged(list)
	return saveEdits(cmd, cache, o.NombreObra)
}

// saveEdits flushes the cache with the save trigger and reports what was written.
func saveEdits(cmd *cobra.Command, cache *autosave.Cache, name string) error {
	res, err := cache.Flush(autosave.TriggerSave)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !res.Wrote {
		fmt.Fprintf(out, "No changes to %s\n", name)
		return nil
	}
	changed := append([]string(nil), res.Fields...)
	if res.Empresas {
		changed = append(changed, models.KeyEmpresas)
	}
	fmt.Fprintf(out, "Updated %s: %s\n", res.Contract, strings.Join(changed, ", "))
	return nil
}
