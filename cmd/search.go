package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoleads/leadgen-cli/internal/model"
)

var (
	searchLat       float64
	searchLng       float64
	searchRadius    int
	searchCity      string
	searchCountry   string
	searchCats      []string
	searchCreatedBy string
	searchCurrency  string
	searchListLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run and inspect spatial lead searches",
}

var searchCoordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Search around a coordinate pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		radius := searchRadius
		if radius == 0 {
			radius = cfg.Search.DefaultRadius
		}
		job := &model.SearchJob{
			Method:      model.SearchMethodCoordinates,
			Coordinates: fmt.Sprintf("%v, %v", searchLat, searchLng),
			Radius:      radius,
			Categories:  searchCats,
			CreatedBy:   searchCreatedBy,
			Currency:    currencyOrDefault(),
		}
		if err := env.store.CreateSearchJob(cmd.Context(), job); err != nil {
			return err
		}
		if err := env.runner.Execute(cmd.Context(), job.ID); err != nil {
			return err
		}
		return printSearchJob(env, cmd, job.ID)
	},
}

var searchCityCmd = &cobra.Command{
	Use:   "city",
	Short: "Search a city by directional text queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		job := &model.SearchJob{
			Method:     model.SearchMethodCity,
			City:       searchCity,
			Country:    searchCountry,
			Categories: searchCats,
			CreatedBy:  searchCreatedBy,
			Currency:   currencyOrDefault(),
		}
		if err := env.store.CreateSearchJob(cmd.Context(), job); err != nil {
			return err
		}
		if err := env.runner.Execute(cmd.Context(), job.ID); err != nil {
			return err
		}
		return printSearchJob(env, cmd, job.ID)
	},
}

var searchStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a search job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetSearchJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var searchRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Reset a failed search job and run it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.runner.Retry(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printSearchJob(env, cmd, args[0])
	},
}

var searchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent search jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		jobsList, err := st.ListSearchJobs(cmd.Context(), searchListLimit)
		if err != nil {
			return err
		}
		return printJSON(jobsList)
	},
}

func currencyOrDefault() string {
	if searchCurrency != "" {
		return searchCurrency
	}
	return cfg.Search.DefaultCurrency
}

func printSearchJob(env *appEnv, cmd *cobra.Command, id string) error {
	job, err := env.store.GetSearchJob(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(job)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	searchCoordsCmd.Flags().Float64Var(&searchLat, "lat", 0, "center latitude")
	searchCoordsCmd.Flags().Float64Var(&searchLng, "lng", 0, "center longitude")
	searchCoordsCmd.Flags().IntVar(&searchRadius, "radius", 0, "search radius in meters (default from config)")
	searchCoordsCmd.MarkFlagRequired("lat")
	searchCoordsCmd.MarkFlagRequired("lng")

	searchCityCmd.Flags().StringVar(&searchCity, "city", "", "city name")
	searchCityCmd.Flags().StringVar(&searchCountry, "country", "", "country name")
	searchCityCmd.MarkFlagRequired("city")

	for _, c := range []*cobra.Command{searchCoordsCmd, searchCityCmd} {
		c.Flags().StringSliceVar(&searchCats, "categories", nil, "business categories to search")
		c.Flags().StringVar(&searchCreatedBy, "created-by", "", "record owner for created leads")
		c.Flags().StringVar(&searchCurrency, "currency", "", "currency for created leads (default from config)")
		c.MarkFlagRequired("categories")
	}

	searchListCmd.Flags().IntVar(&searchListLimit, "limit", 50, "maximum jobs to list")

	searchCmd.AddCommand(searchCoordsCmd, searchCityCmd, searchStatusCmd, searchRetryCmd, searchListCmd)
	rootCmd.AddCommand(searchCmd)
}
