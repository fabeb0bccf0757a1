package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ivlev/blocktree/internal/analyzer"
	"github.com/ivlev/blocktree/internal/config"
	"github.com/ivlev/blocktree/internal/engine"
	"github.com/ivlev/blocktree/internal/source"
	"github.com/ivlev/blocktree/internal/system"
)

var buildVersion = "dev"

func main() {
	configPtr := flag.String("config", "", "Путь к YAML-конфигурации (по умолчанию: встроенные значения)")
	inputPtr := flag.String("input", "", "Путь к PDF, изображению или папке с изображениями (по умолчанию: самый свежий файл в input/)")
	outputPtr := flag.String("output", "", "Папка для деревьев блоков и отчета")
	detectorPtr := flag.String("detector", "", "Детектор зон: components, contrast")
	workersPtr := flag.Int("workers", 0, "Потоки")
	dpiPtr := flag.Int("dpi", 0, "DPI для рендеринга PDF")
	sortPtr := flag.String("sort", "", "Порядок зон: left, right, top, bottom")
	logLevelPtr := flag.String("log-level", "", "Уровень логов: debug, info, warn, error")
	logFormatPtr := flag.String("log-format", "", "Формат логов: text, json")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	cfg.BuildVersion = buildVersion

	// Флаги имеют приоритет над файлом
	if *inputPtr != "" {
		cfg.InputPath = *inputPtr
	}
	if *outputPtr != "" {
		cfg.OutputDir = *outputPtr
	}
	if *detectorPtr != "" {
		cfg.Detector = *detectorPtr
	}
	if *workersPtr > 0 {
		cfg.Workers = *workersPtr
	}
	if *dpiPtr > 0 {
		cfg.DPI = *dpiPtr
	}
	if *sortPtr != "" {
		cfg.SortBy = *sortPtr
	}
	if *logLevelPtr != "" {
		cfg.LogLevel = *logLevelPtr
	}
	if *logFormatPtr != "" {
		cfg.LogFormat = *logFormatPtr
	}
	if *statsPtr {
		cfg.ShowStats = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits(logger)

	if cfg.InputPath == "" {
		if err := os.MkdirAll("input", 0755); err != nil {
			log.Fatalf("[-] Ошибка: %v", err)
		}
		latest, err := system.FindLatestInput("input")
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите PDF или изображения в input/", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.InputPath)
	}

	var src source.Source
	if strings.HasSuffix(strings.ToLower(cfg.InputPath), ".pdf") {
		src, err = source.NewFitzPDFSource(cfg.InputPath)
	} else {
		src, err = source.NewImageSource(cfg.InputPath)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}
	defer src.Close()

	det, err := analyzer.NewDetector(cfg.Detector, cfg)
	if err != nil {
		log.Fatalf("[-] Ошибка детектора: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	project := engine.NewProject(cfg, src, det)
	project.Log = logger
	res, err := project.Run(ctx)
	if err != nil {
		if res != nil {
			fmt.Printf("[!] Отчет с ошибками: %s\n", res.ReportPath)
		}
		log.Printf("[-] Ошибка проекта: %v", err)
		stop()
		src.Close()
		os.Exit(1)
	}

	fmt.Printf("[+++] Успех! Отчет: %s\n", res.ReportPath)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Printf("[!] Неизвестный уровень логов %q, используется info\n", cfg.LogLevel)
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
