package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"preader/config"
	"preader/db"

	"github.com/urfave/cli/v2"
)

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openDB(ctx *cli.Context) (*db.DB, error) {
	database, err := db.Open(ctx.String("database"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// feedIds parses the command arguments as feed ids
func feedIds(args cli.Args) ([]int64, error) {
	if args.Len() == 0 {
		return nil, errors.New("at least one feed id is required")
	}
	ids := make([]int64, 0, args.Len())
	for _, arg := range args.Slice() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid feed id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
