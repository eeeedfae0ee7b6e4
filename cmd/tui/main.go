package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quantsignals/internal/config"
	"quantsignals/internal/store"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== QuantSignals Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit risk knobs")
		fmt.Println("3) Edit signal job settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch backtest")
		fmt.Println("6) Show recent backtest results")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editSignals(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchBacktest(reader)
		case "6":
			showResults(cfg)
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	run := cfg.Backtest.Run
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Strategy: %s (%s)\n", run.StrategyName, run.StrategyType)
	fmt.Println("Backtest symbols:", strings.Join(run.Symbols, ", "))
	fmt.Printf("Range: %s to %s | capital $%.2f\n",
		run.Start.Format("2006-01-02"), run.End.Format("2006-01-02"), run.InitialCapital)
	fmt.Printf("Max position fraction: %.2f%%\n", cfg.Risk.MaxPositionFraction*100)
	fmt.Printf("Daily loss fraction: %.2f%%\n", cfg.Risk.MaxDailyLossFraction*100)
	fmt.Printf("Stop loss fraction: %.2f%%\n", cfg.Risk.StopLossFraction*100)
	fmt.Printf("Duplicate window: %dh\n", cfg.Risk.DuplicateWindowHours)
	fmt.Println("Signal symbols:", strings.Join(cfg.Signals.Symbols, ", "))
	fmt.Printf("Signal interval: %s | lookback %d days\n", cfg.Signals.Interval(), cfg.Signals.LookbackDays)
	fmt.Printf("Store: %s\n", cfg.Store.Path)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk ---")
	cfg.Backtest.Run.InitialCapital = promptFloat(reader, "Initial capital (USD)", cfg.Backtest.Run.InitialCapital)
	cfg.Risk.MaxPositionFraction = promptPercent(reader, "Max position fraction (%)", cfg.Risk.MaxPositionFraction)
	cfg.Risk.MaxDailyLossFraction = promptPercent(reader, "Daily loss fraction (%)", cfg.Risk.MaxDailyLossFraction)
	cfg.Risk.StopLossFraction = promptPercent(reader, "Stop loss fraction (%)", cfg.Risk.StopLossFraction)
	cfg.Risk.DuplicateWindowHours = int(promptFloat(reader, "Duplicate window (hours)", float64(cfg.Risk.DuplicateWindowHours)))
}

func editSignals(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Signal Job ---")
	fmt.Printf("Current symbols: %s\n", strings.Join(cfg.Signals.Symbols, ", "))
	fmt.Print("Enter symbols comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		parts := strings.Split(strings.TrimSpace(line), ",")
		cfg.Signals.Symbols = nil
		for _, p := range parts {
			if trimmed := strings.ToUpper(strings.TrimSpace(p)); trimmed != "" {
				cfg.Signals.Symbols = append(cfg.Signals.Symbols, trimmed)
			}
		}
	}
	cfg.Signals.IntervalSecs = int(promptFloat(reader, "Interval (seconds)", float64(cfg.Signals.IntervalSecs)))
	cfg.Signals.LookbackDays = int(promptFloat(reader, "History lookback (days)", float64(cfg.Signals.LookbackDays)))
}

func launchBacktest(reader *bufio.Reader) {
	fmt.Println("Launching backtest (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/backtest")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start backtest: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the run and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func showResults(cfg *config.Config) {
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summaries, err := db.ListBacktests(ctx, 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list results: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		fmt.Println("no stored backtests")
		return
	}

	fmt.Println("\n--- Recent Backtests ---")
	for _, s := range summaries {
		fmt.Printf("#%d %s (%s) return %.2f%% sharpe %.2f drawdown %.2f%% win %.0f%% trades %d at %s\n",
			s.ID, s.StrategyName, s.StrategyType,
			s.TotalReturn*100, s.SharpeRatio, s.MaxDrawdown*100, s.WinRate*100,
			s.TradeCount, s.ExecutedAt.Format("2006-01-02 15:04"))
	}
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
