package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
	"github.com/DevRickLin/feishu-meet-bot/internal/data"
)

const usage = `Usage:
  prefixctl list
  prefixctl get <chat_id>
  prefixctl set <chat_id> <prefix>
  prefixctl delete <chat_id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	store, err := data.NewPrefixRepo(data.Options{
		PrefixDriver: cfg.Store.Driver,
		PrefixDir:    cfg.Store.Dir,
		PrefixDBPath: cfg.Store.DBPath,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	err = run(context.Background(), store, os.Args[1:])
	store.Close()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store repo.PrefixRepo, args []string) error {
	switch {
	case args[0] == "list" && len(args) == 1:
		prefixes, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range prefixes {
			fmt.Printf("%s\t%s\n", p.ChannelID, p.Prefix)
		}
	case args[0] == "get" && len(args) == 2:
		prefix, found, err := store.Get(ctx, args[1])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no prefix registered for %s", args[1])
		}
		fmt.Println(prefix)
	case args[0] == "set" && len(args) == 3:
		prefix, err := domain.NormalizePrefix(args[2])
		if err != nil {
			return err
		}
		if err := store.Set(ctx, args[1], prefix); err != nil {
			return err
		}
		fmt.Printf("Prefix for %s set to %q\n", args[1], prefix)
	case args[0] == "delete" && len(args) == 2:
		if err := store.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Prefix for %s removed\n", args[1])
	default:
		return fmt.Errorf("unknown command\n%s", usage)
	}
	return nil
}
