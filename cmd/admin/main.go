package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"duochat/backend/internal/auth"
	"duochat/backend/internal/config"
	"duochat/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

const usage = `Usage: admin <command> [args]

Commands:
  token <user_id> [ttl_hours]      print a signed token for user_id (default 24h)
  befriend <user_id> <user_id>     make two users friends, creating them if needed`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	switch os.Args[1] {
	case "token":
		if len(os.Args) < 3 || len(os.Args) > 4 {
			fmt.Println("Usage: admin token <user_id> [ttl_hours]")
			os.Exit(1)
		}
		ttl := 24 * time.Hour
		if len(os.Args) == 4 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil || hours <= 0 {
				fmt.Println("Invalid ttl. Please provide a positive number of hours.")
				os.Exit(1)
			}
			ttl = time.Duration(hours) * time.Hour
		}
		token, err := auth.Issue(cfg.JWTSecret, os.Args[2], ttl)
		if err != nil {
			logrus.WithError(err).Fatal("Error signing token")
		}
		fmt.Println(token)

	case "befriend":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin befriend <user_id> <user_id>")
			os.Exit(1)
		}
		if cfg.StorageDriver != config.StorageDriverPostgres {
			fmt.Println("The friend graph lives in postgres; set STORAGE_DRIVER=postgres.")
			os.Exit(1)
		}
		db, err := storage.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect database")
		}
		friends := storage.NewFriendStore(db)
		if err := friends.Befriend(context.Background(), os.Args[2], os.Args[3]); err != nil {
			logrus.WithError(err).Fatal("Error linking users")
		}
		fmt.Printf("Users %s and %s are now friends.\n", os.Args[2], os.Args[3])

	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}
