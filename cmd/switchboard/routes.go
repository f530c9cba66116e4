package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/switchboard"
	"github.com/sagarc03/switchboard/config"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table serve would build",
	RunE:  runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

type routeEntry struct {
	Kind      string `yaml:"kind"`
	Method    string `yaml:"method,omitempty"`
	Path      string `yaml:"path"`
	Directory bool   `yaml:"directory,omitempty"`
	ID        string `yaml:"id"`
}

type routeListing struct {
	BaseDirectory      string       `yaml:"base_directory"`
	AccessMode         string       `yaml:"access_mode"`
	Authentication     string       `yaml:"authentication"`
	PreAuthentication  []routeEntry `yaml:"pre_authentication"`
	PostAuthentication []routeEntry `yaml:"post_authentication"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer func() { _ = a.server.Close() }()

	accessMode := "disabled"
	if m := a.server.Settings.AccessControl; m != nil {
		accessMode = string(m.Mode)
	}

	listing := routeListing{
		BaseDirectory:      cfg.Content.BaseDirectory,
		AccessMode:         accessMode,
		Authentication:     cfg.Auth.Mode,
		PreAuthentication:  listGroup(a.server.Routes.PreAuthentication),
		PostAuthentication: listGroup(a.server.Routes.PostAuthentication),
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(listing); err != nil {
		return fmt.Errorf("encode routes: %w", err)
	}
	return enc.Close()
}

// listGroup lists a group in match order.
func listGroup(g *switchboard.RoutingGroup) []routeEntry {
	out := []routeEntry{}
	for _, r := range g.Content.All() {
		out = append(out, routeEntry{Kind: string(switchboard.RouteKindContent), Path: r.Path, Directory: r.IsDirectory, ID: r.ID.String()})
	}
	for _, r := range g.Static.All() {
		out = append(out, routeEntry{Kind: string(switchboard.RouteKindStatic), Method: r.Method, Path: r.Path, ID: r.ID.String()})
	}
	for _, r := range g.Parameter.All() {
		out = append(out, routeEntry{Kind: string(switchboard.RouteKindParameter), Method: r.Method, Path: r.Path, ID: r.ID.String()})
	}
	for _, r := range g.Dynamic.All() {
		out = append(out, routeEntry{Kind: string(switchboard.RouteKindDynamic), Method: r.Method, Path: r.Path, ID: r.ID.String()})
	}
	return out
}
