package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mentor/internal/config"
	"github.com/kalambet/mentor/internal/storage"
)

// --- roadmap ---

var roadmapCmd = &cobra.Command{
	Use:     "roadmap",
	Aliases: []string{"roadmaps"},
	Short:   "Generate and manage learning roadmaps",
}

var roadmapCreateCmd = &cobra.Command{
	Use:   "create <learning goal...>",
	Short: "Generate a roadmap for a learning goal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		return createRoadmap(cmd.Context(), client, os.Stdout, strings.Join(args, " "), jsonOut)
	},
}

var roadmapListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored roadmaps, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listRoadmaps(cmd.Context(), client, os.Stdout, skip, limit)
	},
}

var roadmapShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a roadmap with its content and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRoadmapID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		return showRoadmap(cmd.Context(), client, os.Stdout, id, jsonOut)
	},
}

var roadmapDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a roadmap permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRoadmapID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := deleteRoadmap(cmd.Context(), client, id); err != nil {
			return err
		}
		printSuccess("Deleted roadmap %d", id)
		return nil
	},
}

func init() {
	roadmapCreateCmd.Flags().Bool("json", false, "print the stored roadmap as JSON")
	roadmapShowCmd.Flags().Bool("json", false, "print the roadmap as JSON")
	roadmapListCmd.Flags().Int("skip", 0, "number of roadmaps to skip")
	roadmapListCmd.Flags().Int("limit", 50, "maximum number of roadmaps to list")

	roadmapCmd.AddCommand(roadmapCreateCmd)
	roadmapCmd.AddCommand(roadmapListCmd)
	roadmapCmd.AddCommand(roadmapShowCmd)
	roadmapCmd.AddCommand(roadmapDeleteCmd)
}

func parseRoadmapID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid roadmap id %q", s)
	}
	return id, nil
}

func createRoadmap(ctx context.Context, client *apiClient, w io.Writer, query string, jsonOut bool) error {
	printStep("Generating roadmap for %q (this can take a minute)", query)
	resp, err := client.post(ctx, "/api/roadmaps", map[string]string{"query": query})
	if err != nil {
		return err
	}

	var rm storage.Roadmap
	if err := decodeJSON(resp, &rm); err != nil {
		return err
	}
	if jsonOut {
		return writeIndentedJSON(w, rm)
	}
	printSuccess("Created roadmap %d", rm.ID)
	renderRoadmap(w, rm)
	return nil
}

func listRoadmaps(ctx context.Context, client *apiClient, w io.Writer, skip, limit int) error {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	resp, err := client.get(ctx, "/api/roadmaps?"+q.Encode())
	if err != nil {
		return err
	}

	var list struct {
		Roadmaps []storage.RoadmapSummary `json:"roadmaps"`
		Total    int                      `json:"total"`
	}
	if err := decodeJSON(resp, &list); err != nil {
		return err
	}

	if len(list.Roadmaps) == 0 {
		fmt.Fprintln(w, "No roadmaps found.")
		return nil
	}

	for _, r := range list.Roadmaps {
		title := r.Title
		if runes := []rune(title); len(runes) > 60 {
			title = string(runes[:60]) + "..."
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			colorize(colorCyan, fmt.Sprintf("%5d", r.ID)),
			r.CreatedAt.Local().Format(time.DateTime),
			title,
		)
	}
	if shown := skip + len(list.Roadmaps); shown < list.Total {
		fmt.Fprintln(w, colorize(colorDim, fmt.Sprintf("showing %d-%d of %d", skip+1, shown, list.Total)))
	}
	return nil
}

func showRoadmap(ctx context.Context, client *apiClient, w io.Writer, id int64, jsonOut bool) error {
	resp, err := client.get(ctx, fmt.Sprintf("/api/roadmaps/%d", id))
	if err != nil {
		return err
	}

	var rm storage.Roadmap
	if err := decodeJSON(resp, &rm); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("roadmap %d not found", id)
		}
		return err
	}
	if jsonOut {
		return writeIndentedJSON(w, rm)
	}
	renderRoadmap(w, rm)
	return nil
}

func deleteRoadmap(ctx context.Context, client *apiClient, id int64) error {
	resp, err := client.delete(ctx, fmt.Sprintf("/api/roadmaps/%d", id))
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, nil); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("roadmap %d not found", id)
		}
		return err
	}
	return nil
}

// renderRoadmap prints the title, the phase timeline and the markdown body.
func renderRoadmap(w io.Writer, rm storage.Roadmap) {
	fmt.Fprintln(w, colorize(colorBold, rm.Title))
	fmt.Fprintf(w, "%s\n\n", colorize(colorDim, fmt.Sprintf("#%d · %s · %q", rm.ID, rm.CreatedAt.Local().Format(time.DateTime), rm.UserQuery)))

	if vd := rm.VisualData; vd != nil && len(vd.Phases) > 0 {
		for _, p := range vd.Phases {
			fmt.Fprintf(w, "%s %s", colorize(colorCyan, fmt.Sprintf("Phase %d:", p.ID)), p.Title)
			if p.Duration != "" {
				fmt.Fprintf(w, " (%s)", p.Duration)
			}
			fmt.Fprintln(w)
			for _, m := range p.Milestones {
				fmt.Fprintf(w, "    - %s\n", m)
			}
		}
		if vd.TotalDuration != "" {
			fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Total:"), vd.TotalDuration)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rm.Content)
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetAPIKeyCmd = &cobra.Command{
	Use:   "set-api-key <key>",
	Short: "Store the Claude API key in the platform secret store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.StoreAPIKey(args[0]); err != nil {
			return fmt.Errorf("storing API key: %w", err)
		}
		printSuccess("Stored Claude API key")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetAPIKeyCmd)
}
