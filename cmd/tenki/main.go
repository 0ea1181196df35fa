package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/sorairo/tenki/internal/models"
	"github.com/sorairo/tenki/internal/publish"
	"github.com/sorairo/tenki/internal/store"
)

var defaultLocations = []models.Location{
	{Key: "osaka-taisho", Name: "大阪市大正区", Lat: 34.6658, Lon: 135.4692},
	{Key: "kobe-sannomiya", Name: "神戸市三宮", Lat: 34.6937, Lon: 135.1955},
	{Key: "kagoshima", Name: "鹿児島市", Lat: 31.5969, Lon: 130.5571, HasAsh: true, Volcano: "桜島"},
}

// Globals are shared by every command.
type Globals struct {
	DB       string `name:"db" default:"data/tenki.db" help:"Path to SQLite database."`
	DataDir  string `name:"data-dir" default:"public/data" help:"Directory for weather.json and build-info.json."`
	Timezone string `default:"Asia/Tokyo" help:"Time zone for dates and display."`
}

// FTPFlags configure optional upload of generated files.
type FTPFlags struct {
	FTPHost     string `name:"ftp-host" env:"TENKI_FTP_HOST" help:"FTP host:port to publish to (disabled when empty)."`
	FTPUser     string `name:"ftp-user" env:"TENKI_FTP_USER" help:"FTP user."`
	FTPPassword string `name:"ftp-password" env:"TENKI_FTP_PASSWORD" help:"FTP password."`
	FTPDir      string `name:"ftp-dir" env:"TENKI_FTP_DIR" help:"Remote directory."`
}

func (f FTPFlags) publisher() *publish.FTPPublisher {
	if f.FTPHost == "" {
		return nil
	}
	return publish.NewFTPPublisher(publish.FTPConfig{
		Host:     f.FTPHost,
		User:     f.FTPUser,
		Password: f.FTPPassword,
		Dir:      f.FTPDir,
	})
}

type CLI struct {
	Globals

	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the dashboard server and the fetch scheduler."`
	Fetch     FetchCmd     `cmd:"" help:"Fetch weather once, write the document and exit."`
	Advise    AdviseCmd    `cmd:"" help:"Print the advisory report for a location."`
	BuildInfo BuildInfoCmd `cmd:"" name:"build-info" help:"Write build-info.json with a fresh run ID."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tenki"),
		kong.Description("Weather dashboard with clothing, umbrella, pressure and ash advisories."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func (g *Globals) location() *time.Location {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", g.Timezone, err)
		return time.UTC
	}
	return loc
}

// openStore opens and migrates the database and seeds the default locations.
// The returned close func releases the database.
func (g *Globals) openStore(loc *time.Location) (*store.Store, func() error, error) {
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	for _, l := range defaultLocations {
		if err := st.UpsertLocation(l); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("upsert location %s: %w", l.Key, err)
		}
	}
	return st, db.Close, nil
}
