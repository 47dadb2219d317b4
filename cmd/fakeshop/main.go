package main

import (
	"flag"
	"log"
	"net/http"

	"go.uber.org/zap"

	"shopcrawl/internal/config"
	"shopcrawl/internal/fakeshop"
	"shopcrawl/internal/logger"
)

type Config struct {
	Addr     string
	Count    int
	Seed     int64
	PageSize int
	Shape    string
	BuildID  string
	FailPage int
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("fakeshop failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Addr, "http", ":8088", "listen address")
	flag.IntVar(&cfg.Count, "count", 95, "number of generated products")
	flag.Int64Var(&cfg.Seed, "seed", 1, "catalog seed")
	flag.IntVar(&cfg.PageSize, "page-size", 20, "items per listing page")
	flag.StringVar(&cfg.Shape, "shape", string(fakeshop.ShapeNested), "listing layout: nested|meta|list")
	flag.StringVar(&cfg.BuildID, "build-id", "YCAT8CqZsxROurPUx6-Ts", "accepted detail build id")
	flag.IntVar(&cfg.FailPage, "fail-page", 0, "answer this listing page with 502")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	lg, err := logger.New(config.LoadEnv().Logger)
	if err != nil {
		return err
	}
	defer lg.Sync()

	h := fakeshop.NewHandler(fakeshop.Options{
		Items:    fakeshop.Generate(cfg.Count, cfg.Seed),
		PageSize: cfg.PageSize,
		Shape:    fakeshop.Shape(cfg.Shape),
		BuildID:  cfg.BuildID,
		FailPage: cfg.FailPage,
		Logger:   lg,
	})
	lg.Info("serving fake shop", zap.String("addr", cfg.Addr), zap.Int("products", cfg.Count), zap.String("shape", cfg.Shape))
	return http.ListenAndServe(cfg.Addr, h)
}
