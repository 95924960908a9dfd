package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shreddy/internal/config"
)

const (
	Version = "2.1.0"
	AppName = "Shreddy"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_ERROR   = 1
)

var (
	verbose    bool
	configPath string
	host       string
	port       int
	profile    string
)

// CLI команды
var rootCmd = &cobra.Command{
	Use:           "shreddy",
	Short:         "Shreddy - станция затирания USB-носителей",
	Long:          "Автоматически затирает подключаемые USB-накопители, размечает их и создаёт FAT, статус доступен по TCP",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить станцию: мониторинг устройств, индикатор и сервер статуса",
	RunE:  runStation,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Проверить наличие внешних инструментов",
	RunE:  runCheck,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Записать конфигурацию по умолчанию",
	Args:  cobra.ExactArgs(1),
	RunE:  runInitConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")

	runCmd.Flags().StringVar(&host, "host", "", "Адрес сервера статуса")
	runCmd.Flags().IntVar(&port, "port", 0, "Порт сервера статуса (0 отключает)")
	runCmd.Flags().StringVar(&profile, "profile", "", fmt.Sprintf("Профиль шаблонов перезаписи %v", config.Profiles()))

	rootCmd.AddCommand(runCmd, checkCmd, initConfigCmd)
}

// loadConfig загружает конфигурацию и применяет флаги командной строки поверх неё.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	flags := cmd.Flags()
	if flags.Lookup("host") != nil && flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Lookup("profile") != nil && flags.Changed("profile") {
		if err := config.ApplyProfile(cfg, profile); err != nil {
			return nil, fmt.Errorf("ошибка применения профиля %s: %w", profile, err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация: %w", err)
	}
	return cfg, nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if err := config.Save(config.Default(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Конфигурация записана: %s\n", args[0])
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(EXIT_ERROR)
	}
	os.Exit(EXIT_SUCCESS)
}
