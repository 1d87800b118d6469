package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"

	"github.com/IlyasAtabaev731/sweet-shop/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

func main() {
	var dbUrl, migrationsPath, migrationsTable string
	var down bool

	flag.StringVar(&dbUrl, "db-url", "", "postgres connection url, built from POSTGRES_* variables when empty")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "migrations", "name of migrations table")
	flag.BoolVar(&down, "down", false, "roll back every migration instead of applying")
	flag.Parse()

	if dbUrl == "" {
		_ = godotenv.Load()

		var pg config.Postgres
		if err := cleanenv.ReadEnv(&pg); err != nil {
			panic("failed to read postgres settings: " + err.Error())
		}
		dbUrl = pg.URL()
	}
	if migrationsPath == "" {
		panic("migrations path is required")
	}

	u, err := url.Parse(dbUrl)
	if err != nil {
		panic("invalid db url: " + err.Error())
	}
	q := u.Query()
	q.Set("x-migrations-table", migrationsTable)
	u.RawQuery = q.Encode()

	m, err := migrate.New("file://"+migrationsPath, u.String())
	if err != nil {
		panic(err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}

	if down {
		fmt.Println("migrations rolled back successfully")
		return
	}
	fmt.Println("migrations applied successfully")
}
