package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Output struct {
		Path string
	}
	Execution struct {
		MaxConcurrent        int
		AdmissionWaitSeconds int
	}
	Scheduler struct {
		Enabled         bool
		Timezone        string
		SkipOverlapping bool
	}
	Mail struct {
		SMTPHost string
		SMTPPort int
		From     string
		Password string
	}
	Log struct {
		Level string
		File  string
	}
	Server struct {
		Port int
	}
}

// LoadConfig loads the configuration from config.yaml
func LoadConfig() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("database.path", "data/reportengine.db")
	viper.SetDefault("output.path", "data/reports")
	viper.SetDefault("execution.maxconcurrent", 5)
	viper.SetDefault("execution.admissionwaitseconds", 30)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.timezone", "UTC")
	viper.SetDefault("scheduler.skipoverlapping", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("server.port", 8080)

	var config Config

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, write one with the defaults
			if err := os.MkdirAll("data", 0755); err != nil {
				fmt.Printf("Warning: Failed to create data directory: %v\n", err)
			}
			if err := viper.SafeWriteConfig(); err != nil {
				fmt.Printf("Warning: Failed to write default config: %v\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Printf("Error unmarshaling config: %v\n", err)
	}

	return &config
}
