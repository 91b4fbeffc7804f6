package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prismakit/internal/approvers"
	"prismakit/internal/store"
)

// =============================================================================
// APPROVER COMMANDS - directory search, facets and favorites
// =============================================================================

var approversCmd = &cobra.Command{
	Use:   "approvers",
	Short: "Search the approver directory and manage favorites",
}

var approverCriteria approvers.Criteria

var approversSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List approvers matching a name or email and facet filters",
	Long: `Lists approvers whose first name, last name or email contains the query.
Repeated --bu, --function and --client values match any of them;
repeated --cuid values must all be present on an approver.`,
	Args: cobra.MaximumNArgs(1),
	RunE: approversSearch,
}

var approversFacetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "List the distinct business units, functions, clients and company user IDs",
	Args:  cobra.NoArgs,
	RunE:  approversFacets,
}

var approversFavoriteCmd = &cobra.Command{
	Use:   "favorite [approver-id]",
	Short: "Toggle an approver's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE:  approversFavorite,
}

func init() {
	f := approversSearchCmd.Flags()
	f.StringSliceVar(&approverCriteria.BusinessUnits, "bu", nil, "Business unit (repeatable)")
	f.StringSliceVar(&approverCriteria.Functions, "function", nil, "Function/specialty (repeatable)")
	f.StringSliceVar(&approverCriteria.Clients, "client", nil, "Client (repeatable)")
	f.StringSliceVar(&approverCriteria.CompanyUserIDs, "cuid", nil, "Company user ID, all required (repeatable)")
	f.BoolVar(&approverCriteria.FavoritesOnly, "favorites", false, "Only favorites")

	approversCmd.AddCommand(approversSearchCmd)
	approversCmd.AddCommand(approversFacetsCmd)
	approversCmd.AddCommand(approversFavoriteCmd)
}

// withFavorites loads the directory and the saved favorites.
func withFavorites(ctx context.Context, fn func(*approvers.Directory, *approvers.Favorites) error) error {
	dir, err := approvers.Load(cfg.Approvers.DataPath)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	favs, err := approvers.LoadFavorites(ctx, st.Scope(store.ScopeSync))
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	return fn(dir, favs)
}

func approversSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	crit := approverCriteria
	if len(args) == 1 {
		crit.Query = args[0]
	}
	return withFavorites(ctx, func(dir *approvers.Directory, favs *approvers.Favorites) error {
		crit.Favorites = favs.Set()
		matches := approvers.Filter(dir.All(), crit)
		if len(matches) == 0 {
			cmd.Println(dimStyle.Render("No approvers match."))
			return nil
		}
		rows := make([][]string, 0, len(matches))
		for _, a := range matches {
			rows = append(rows, []string{
				mark(crit.Favorites[a.ID]), a.ID, a.FullName(), a.Email,
				a.BusinessUnit, a.Specialty, a.Client, strings.Join(a.CompanyUserIDs, ", "),
			})
		}
		cmd.Println(renderTable([]string{"Fav", "ID", "Name", "Email", "BU", "Function", "Client", "Company user IDs"}, rows))
		cmd.Println(dimStyle.Render(fmt.Sprintf("%d of %d approvers", len(matches), dir.Len())))
		return nil
	})
}

func approversFacets(cmd *cobra.Command, args []string) error {
	dir, err := approvers.Load(cfg.Approvers.DataPath)
	if err != nil {
		return err
	}
	facets := approvers.Facets(dir.All())
	rows := [][]string{
		{"Business units", strings.Join(facets.BusinessUnits, ", ")},
		{"Functions", strings.Join(facets.Functions, ", ")},
		{"Clients", strings.Join(facets.Clients, ", ")},
		{"Company user IDs", strings.Join(facets.CompanyUserIDs, ", ")},
	}
	cmd.Println(renderTable([]string{"Facet", "Values"}, rows))
	return nil
}

func approversFavorite(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	id := args[0]
	return withFavorites(ctx, func(dir *approvers.Directory, favs *approvers.Favorites) error {
		a, ok := dir.Get(id)
		if !ok {
			return fmt.Errorf("unknown approver %q", id)
		}
		on, err := favs.Toggle(ctx, id)
		if err != nil {
			return err
		}
		if on {
			cmd.Printf("Added %s to favorites\n", a.FullName())
		} else {
			cmd.Printf("Removed %s from favorites\n", a.FullName())
		}
		return nil
	})
}
